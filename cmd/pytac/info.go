package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DiamondLightSource/pytac/pkg/client"
	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/load"
)

func bold(format string, a ...interface{}) string {
	return color.New(color.Bold).Sprintf(format, a...)
}

func NewInfoCommand() *cobra.Command {
	return &cobra.Command{
		Use:     "info",
		Short:   "Print a lattice summary",
		GroupID: gLattice,
		Long: `Print a summary of the loaded lattice: element count, families, total
length and beam energy.

Asks a running lattice server first; if none is running, loads the
tables from --data-dir.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			info, err := apiClient.GetInfo()
			if errors.Is(err, client.ErrServerNotRunning) {
				info, err = infoLocally()
			}
			if err != nil {
				return err
			}

			fmt.Printf("%s %s\n", bold("Lattice:"), info.Name)
			fmt.Printf("%s %d\n", bold("Elements:"), info.Elements)
			fmt.Printf("%s %.3f m\n", bold("Length:"), info.Length)
			fmt.Printf("%s %g MeV\n", bold("Energy:"), info.Energy)
			fmt.Printf("%s %d (%s)\n", bold("Families:"), len(info.Families), strings.Join(info.Families, ", "))

			return nil
		},
	}
}

func infoLocally() (*client.LatticeInfo, error) {
	lat, err := load.Load(dataDir, mode, cs.NullClient{})
	if err != nil {
		return nil, err
	}
	return &client.LatticeInfo{
		Name:     lat.Name,
		Elements: lat.Len(),
		Families: lat.Families(),
		Length:   lat.Length(),
		Energy:   lat.EnergyMeV,
	}, nil
}
