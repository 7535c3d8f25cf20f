package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DiamondLightSource/pytac/pkg/config"
	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/load"
	"github.com/DiamondLightSource/pytac/pkg/server"
)

func NewServeCommand() *cobra.Command {
	var mockPVs map[string]string

	cmd := &cobra.Command{
		Use:     "serve",
		Short:   "Load the lattice tables and serve the inspection API",
		GroupID: gLattice,
		Long: `Load the lattice tables for the selected mode and serve the inspection
API on a unix socket.

Without a control system attached, PV reads return zero and writes are
discarded. Pass --mock-pv to prefill specific PVs for testing.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			cfg, err := config.NewFile(configPath)
			if err != nil {
				return err
			}
			logrus.WithFields(cfg.LogrusFields()).Info("config loaded")

			var client cs.Client = cs.NullClient{}
			if len(mockPVs) > 0 {
				prefill, err := parseMockPVs(mockPVs)
				if err != nil {
					return err
				}
				client = cs.NewMock(prefill)
			}

			lat, err := load.Load(dataDir, mode, client)
			if err != nil {
				return err
			}

			return server.New(lat).Run(unixSocketPath)
		},
	}

	cmd.Flags().StringToStringVar(&mockPVs, "mock-pv", nil, "prefill PV values for a mock control system (pv=value)")

	return cmd
}
