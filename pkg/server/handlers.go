package server

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/units"
)

type elementInfo struct {
	Name     string   `json:"name"`
	Index    int      `json:"index"`
	Type     string   `json:"type"`
	Length   float64  `json:"length"`
	S        float64  `json:"s"`
	Cell     int      `json:"cell,omitempty"`
	Families []string `json:"families"`
	Fields   []string `json:"fields"`
}

type valueResponse struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Handle string  `json:"handle,omitempty"`
}

type writeRequest struct {
	Value float64 `json:"value"`
	Unit  string  `json:"unit"`
}

type convertRequest struct {
	ElementID int     `json:"element"`
	Field     string  `json:"field"`
	Value     float64 `json:"value"`
	Origin    string  `json:"origin"`
	Target    string  `json:"target"`
}

type unitConvInfo struct {
	Kind       string   `json:"kind"`
	PhysUnits  string   `json:"physUnits"`
	EngUnits   string   `json:"engUnits"`
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
}

func (s *Server) getInfo(c *gin.Context) {
	c.IndentedJSON(http.StatusOK, gin.H{
		"name":     s.lat.Name,
		"elements": s.lat.Len(),
		"families": s.lat.Families(),
		"length":   s.lat.Length(),
		"energy":   s.lat.EnergyMeV,
	})
}

func (s *Server) elementParam(c *gin.Context) (int, bool) {
	id, err := strconv.Atoi(c.Param("id"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return 0, false
	}
	return id, true
}

func (s *Server) getElement(c *gin.Context) {
	id, ok := s.elementParam(c)
	if !ok {
		return
	}

	e, err := s.lat.Element(id)
	if err != nil {
		c.IndentedJSON(http.StatusNotFound, err.Error())
		_ = c.AbortWithError(http.StatusNotFound, err)
		return
	}

	c.IndentedJSON(http.StatusOK, elementInfo{
		Name:     e.Name,
		Index:    e.Index,
		Type:     e.Type.String(),
		Length:   e.Length,
		S:        e.S,
		Cell:     e.Cell,
		Families: e.Families(),
		Fields:   e.Fields(),
	})
}

func (s *Server) getValue(c *gin.Context) {
	id, ok := s.elementParam(c)
	if !ok {
		return
	}

	handle, err := lattice.ParseHandle(c.Query("handle"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	unit, err := lattice.ParseUnitSystem(c.Query("unit"))
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	value, err := s.lat.GetValue(c.Request.Context(), id, c.Param("field"), handle, unit)
	if err != nil {
		status := statusFor(err)
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusOK, valueResponse{Value: value, Unit: unit.String(), Handle: handle.String()})
}

func (s *Server) setValue(c *gin.Context) {
	id, ok := s.elementParam(c)
	if !ok {
		return
	}

	var req writeRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	unit, err := lattice.ParseUnitSystem(req.Unit)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	if err := s.lat.SetValue(c.Request.Context(), id, c.Param("field"), req.Value, unit); err != nil {
		status := statusFor(err)
		c.IndentedJSON(status, err.Error())
		_ = c.AbortWithError(status, err)
		return
	}

	c.IndentedJSON(http.StatusCreated, "ok")
}

func (s *Server) getUnitConv(c *gin.Context) {
	id, ok := s.elementParam(c)
	if !ok {
		return
	}

	conv := s.lat.Resolve(id, c.Param("field"))
	c.IndentedJSON(http.StatusOK, unitConvInfo{
		Kind:       conv.Kind.String(),
		PhysUnits:  conv.PhysUnits,
		EngUnits:   conv.EngUnits,
		LowerLimit: conv.LowerLimit,
		UpperLimit: conv.UpperLimit,
	})
}

func (s *Server) convert(c *gin.Context) {
	var req convertRequest
	if err := c.BindJSON(&req); err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	origin, err := lattice.ParseUnitSystem(req.Origin)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}
	target, err := lattice.ParseUnitSystem(req.Target)
	if err != nil {
		c.IndentedJSON(http.StatusBadRequest, err.Error())
		_ = c.AbortWithError(http.StatusBadRequest, err)
		return
	}

	conv := s.lat.Resolve(req.ElementID, req.Field)
	value := req.Value
	if origin != target {
		if target == lattice.Physics {
			value, err = conv.ToPhysics(req.Value)
		} else {
			value, err = conv.ToEngineering(req.Value)
		}
		if err != nil {
			c.IndentedJSON(http.StatusUnprocessableEntity, err.Error())
			_ = c.AbortWithError(http.StatusUnprocessableEntity, err)
			return
		}
	}

	c.IndentedJSON(http.StatusOK, valueResponse{Value: value, Unit: target.String()})
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, lattice.ErrElementNotFound), errors.Is(err, lattice.ErrNoDevice), errors.Is(err, lattice.ErrNoPV):
		return http.StatusNotFound
	case errors.Is(err, units.ErrDivisionByZero), errors.Is(err, units.ErrNotInvertible):
		return http.StatusUnprocessableEntity
	default:
		return http.StatusInternalServerError
	}
}
