package main

import (
	"errors"
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/DiamondLightSource/pytac/pkg/client"
	"github.com/DiamondLightSource/pytac/pkg/cs"
	"github.com/DiamondLightSource/pytac/pkg/lattice"
	"github.com/DiamondLightSource/pytac/pkg/load"
)

func NewConvertCommand() *cobra.Command {
	var (
		elementID int
		field     string
		origin    string
		target    string
	)

	cmd := &cobra.Command{
		Use:     "convert [value]",
		Short:   "Convert one value between engineering and physics units",
		GroupID: gLattice,
		Long: `Convert one value between engineering and physics units for a given
element field.

Asks a running lattice server first; if none is running, loads the
tables from --data-dir and converts locally.`,
		RunE: func(_ *cobra.Command, args []string) error {
			value, err := parseFloatArg(args, "value")
			if err != nil {
				return err
			}

			result, err := apiClient.Convert(elementID, field, value, origin, target)
			if errors.Is(err, client.ErrServerNotRunning) {
				result, err = convertLocally(elementID, field, value, origin, target)
			}
			if err != nil {
				return err
			}

			from := color.New(color.Faint).Sprintf("%g %s", value, origin)
			to := color.New(color.Bold, color.FgGreen).Sprintf("%g %s", result.Value, result.Unit)
			fmt.Printf("%s = %s\n", from, to)

			return nil
		},
	}

	flags := cmd.Flags()
	flags.IntVarP(&elementID, "element", "e", 0, "element index (1-based)")
	flags.StringVarP(&field, "field", "f", "", "field name (e.g. b1, x_kick)")
	flags.StringVar(&origin, "from", "engineering", "unit system of the input value")
	flags.StringVar(&target, "to", "physics", "unit system to convert into")
	_ = cmd.MarkFlagRequired("element")
	_ = cmd.MarkFlagRequired("field")

	return cmd
}

func convertLocally(elementID int, field string, value float64, origin, target string) (*client.Value, error) {
	from, err := lattice.ParseUnitSystem(origin)
	if err != nil {
		return nil, err
	}
	to, err := lattice.ParseUnitSystem(target)
	if err != nil {
		return nil, err
	}

	lat, err := load.Load(dataDir, mode, cs.NullClient{})
	if err != nil {
		return nil, err
	}
	if _, err := lat.Element(elementID); err != nil {
		return nil, err
	}

	conv := lat.Resolve(elementID, field)
	out := value
	if from != to {
		if to == lattice.Physics {
			out, err = conv.ToPhysics(value)
		} else {
			out, err = conv.ToEngineering(value)
		}
		if err != nil {
			return nil, err
		}
	}

	return &client.Value{Value: out, Unit: to.String()}, nil
}
