// Package server exposes a loaded lattice over HTTP on a unix socket so
// operators can inspect conversions and read or command field values
// without writing a script. It is a thin layer over the field accessor;
// all conversion semantics live in pkg/units and pkg/registry.
package server

import (
	"errors"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/DiamondLightSource/pytac/pkg/lattice"
)

// Server serves the inspection API for one lattice.
type Server struct {
	lat *lattice.Lattice
}

// New returns a server for the given lattice.
func New(lat *lattice.Lattice) *Server {
	return &Server{lat: lat}
}

func (s *Server) setupRoutes() *gin.Engine {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(ginLogger(logrus.StandardLogger()))
	router.GET("/info", s.getInfo)
	router.GET("/elements/:id", s.getElement)
	router.GET("/elements/:id/fields/:field/value", s.getValue)
	router.PUT("/elements/:id/fields/:field/value", s.setValue)
	router.GET("/elements/:id/fields/:field/unitconv", s.getUnitConv)
	router.POST("/convert", s.convert)

	return router
}

// Run serves the API on the given unix socket until the server errors.
// The socket file is removed first so a stale socket from a previous run
// cannot block startup.
func (s *Server) Run(unixSocketPath string) error {
	router := s.setupRoutes()

	if err := os.Remove(unixSocketPath); err != nil && !os.IsNotExist(err) {
		return err
	}

	l, err := net.Listen("unix", unixSocketPath)
	if err != nil {
		return err
	}

	srv := &http.Server{
		Handler: router,
	}

	logrus.Infof("http server listening on %s", l.Addr().String())
	if err := srv.Serve(l); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
