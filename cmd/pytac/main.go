package main

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/DiamondLightSource/pytac/pkg/client"
)

var (
	logLevel       = "info"
	unixSocketPath = "/var/run/pytac.sock"
	configPath     = "/etc/pytac.json"
	dataDir        = "data"
	mode           = "VMX"
)

var (
	gLattice     = "Lattice:"
	gMaintenance = "Maintenance:"
	commandGroups = []string{
		gLattice,
		gMaintenance,
	}
)

var apiClient *client.Client

func setupLogger() error {
	level, err := logrus.ParseLevel(logLevel)
	if err != nil {
		return fmt.Errorf("failed to parse log level: %v", err)
	}
	logrus.SetLevel(level)
	logrus.SetFormatter(&logrus.TextFormatter{})
	if term.IsTerminal(int(os.Stderr.Fd())) {
		logrus.SetFormatter(&logrus.TextFormatter{
			FullTimestamp:   true,
			TimestampFormat: time.Kitchen,
		})
	}

	return nil
}

func handleCmdError(err error) {
	if errors.Is(err, client.ErrServerNotRunning) {
		fmt.Fprintln(os.Stderr, "\nError: lattice server is not running")
		fmt.Fprintln(os.Stderr, "Start it with 'pytac serve'")
	} else if errors.Is(err, client.ErrPermissionDenied) {
		fmt.Fprintln(os.Stderr, "\nError: Permission Denied")
		fmt.Fprintln(os.Stderr, "  - Try running the command again with 'sudo'")
		fmt.Fprintln(os.Stderr, "  - Or point --socket at a socket you can open")
	}
}

func main() {
	// Optional .env next to the working directory; flags and real
	// environment variables win over it.
	_ = godotenv.Load()

	if v := os.Getenv("PYTAC_DATA_DIR"); v != "" {
		dataDir = v
	}
	if v := os.Getenv("PYTAC_MODE"); v != "" {
		mode = v
	}
	if v := os.Getenv("PYTAC_SOCKET"); v != "" {
		unixSocketPath = v
	}

	cmd := NewCommand()
	if err := cmd.Execute(); err != nil {
		handleCmdError(err)
		os.Exit(1)
	}
}

func NewCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "pytac",
		Short:        "pytac converts accelerator field values between engineering and physics units",
		Long: `pytac loads a lattice description and its unit conversion tables, and
converts controllable field values between engineering units (what the
hardware speaks, e.g. amperes) and physics units (what the accelerator
model speaks, e.g. metres and radians).`,
		SilenceUsage: true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			if err := setupLogger(); err != nil {
				return err
			}
			apiClient = client.NewClient(unixSocketPath)
			return nil
		},
	}

	globalFlags := cmd.PersistentFlags()
	globalFlags.StringVarP(&logLevel, "log-level", "l", "info", "log level (trace, debug, info, warn, error, fatal, panic)")
	globalFlags.StringVar(&configPath, "config", configPath, "config file path")
	globalFlags.StringVar(&unixSocketPath, "socket", unixSocketPath, "lattice server unix socket path")
	globalFlags.StringVar(&dataDir, "data-dir", dataDir, "directory holding per-mode table directories")
	globalFlags.StringVar(&mode, "mode", mode, "machine mode to load")

	for _, i := range commandGroups {
		cmd.AddGroup(&cobra.Group{
			ID:    i,
			Title: i,
		})
	}

	cmd.AddCommand(
		NewServeCommand(),
		NewInfoCommand(),
		NewConvertCommand(),
		NewExportCommand(),
	)

	return cmd
}
