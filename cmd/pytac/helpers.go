package main

import (
	"errors"
	"fmt"
	"strconv"
)

var errNoOutput = errors.New("nothing to do: pass --csv-out and/or --sqlite-out")

func parseFloatArg(args []string, valueName string) (float64, error) {
	if len(args) != 1 {
		return 0, fmt.Errorf("invalid number of arguments")
	}

	value, err := strconv.ParseFloat(args[0], 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %v", valueName, err)
	}

	return value, nil
}

func parseMockPVs(raw map[string]string) (map[string]float64, error) {
	prefill := make(map[string]float64, len(raw))
	for pv, s := range raw {
		v, err := strconv.ParseFloat(s, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid value for PV %s: %v", pv, err)
		}
		prefill[pv] = v
	}
	return prefill, nil
}
