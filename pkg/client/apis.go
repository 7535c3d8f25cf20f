package client

import (
	"encoding/json"
	"fmt"
	"net/url"

	pkgerrors "github.com/pkg/errors"
)

// LatticeInfo summarizes the lattice the server has loaded.
type LatticeInfo struct {
	Name     string   `json:"name"`
	Elements int      `json:"elements"`
	Families []string `json:"families"`
	Length   float64  `json:"length"`
	Energy   float64  `json:"energy"`
}

// ElementInfo describes one element.
type ElementInfo struct {
	Name     string   `json:"name"`
	Index    int      `json:"index"`
	Type     string   `json:"type"`
	Length   float64  `json:"length"`
	S        float64  `json:"s"`
	Cell     int      `json:"cell,omitempty"`
	Families []string `json:"families"`
	Fields   []string `json:"fields"`
}

// Value is a field value in the unit system it was requested in.
type Value struct {
	Value  float64 `json:"value"`
	Unit   string  `json:"unit"`
	Handle string  `json:"handle,omitempty"`
}

// UnitConvInfo describes the conversion bound to a field.
type UnitConvInfo struct {
	Kind       string   `json:"kind"`
	PhysUnits  string   `json:"physUnits"`
	EngUnits   string   `json:"engUnits"`
	LowerLimit *float64 `json:"lowerLimit,omitempty"`
	UpperLimit *float64 `json:"upperLimit,omitempty"`
}

func (c *Client) GetInfo() (*LatticeInfo, error) {
	ret, err := c.Get("/info")
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get lattice info")
	}

	var info LatticeInfo
	if err := json.Unmarshal([]byte(ret), &info); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal lattice info")
	}
	return &info, nil
}

func (c *Client) GetElement(id int) (*ElementInfo, error) {
	ret, err := c.Get(fmt.Sprintf("/elements/%d", id))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get element %d", id)
	}

	var e ElementInfo
	if err := json.Unmarshal([]byte(ret), &e); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal element %d", id)
	}
	return &e, nil
}

func (c *Client) GetValue(id int, field, handle, unit string) (*Value, error) {
	q := url.Values{}
	if handle != "" {
		q.Set("handle", handle)
	}
	if unit != "" {
		q.Set("unit", unit)
	}
	path := fmt.Sprintf("/elements/%d/fields/%s/value", id, url.PathEscape(field))
	if enc := q.Encode(); enc != "" {
		path += "?" + enc
	}

	ret, err := c.Get(path)
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get %s of element %d", field, id)
	}

	var v Value
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal value")
	}
	return &v, nil
}

func (c *Client) SetValue(id int, field string, value float64, unit string) (string, error) {
	payload, err := json.Marshal(map[string]any{"value": value, "unit": unit})
	if err != nil {
		return "", err
	}
	return c.Put(fmt.Sprintf("/elements/%d/fields/%s/value", id, url.PathEscape(field)), string(payload))
}

func (c *Client) GetUnitConv(id int, field string) (*UnitConvInfo, error) {
	ret, err := c.Get(fmt.Sprintf("/elements/%d/fields/%s/unitconv", id, url.PathEscape(field)))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to get conversion for %s of element %d", field, id)
	}

	var uc UnitConvInfo
	if err := json.Unmarshal([]byte(ret), &uc); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal conversion")
	}
	return &uc, nil
}

func (c *Client) Convert(id int, field string, value float64, origin, target string) (*Value, error) {
	payload, err := json.Marshal(map[string]any{
		"element": id,
		"field":   field,
		"value":   value,
		"origin":  origin,
		"target":  target,
	})
	if err != nil {
		return nil, err
	}

	ret, err := c.Send("POST", "/convert", string(payload))
	if err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to convert %s of element %d", field, id)
	}

	var v Value
	if err := json.Unmarshal([]byte(ret), &v); err != nil {
		return nil, pkgerrors.Wrapf(err, "failed to unmarshal converted value")
	}
	return &v, nil
}
