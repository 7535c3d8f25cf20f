package main

import (
	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/DiamondLightSource/pytac/pkg/config"
	"github.com/DiamondLightSource/pytac/pkg/export"
	"github.com/DiamondLightSource/pytac/pkg/load"
	"github.com/DiamondLightSource/pytac/pkg/store"
)

func NewExportCommand() *cobra.Command {
	var (
		snapshotPath string
		csvOut       string
		sqliteOut    string
	)

	cmd := &cobra.Command{
		Use:     "export",
		Short:   "Export a machine snapshot to loader tables",
		GroupID: gMaintenance,
		Long: `Export a machine snapshot to the relational tables the loader consumes.

With --snapshot, a JSON machine description is exported. Without it,
the existing CSV tables for the selected mode are read back, which
turns the command into a CSV to SQLite converter.

At least one of --csv-out and --sqlite-out must be given.`,
		RunE: func(_ *cobra.Command, _ []string) error {
			if csvOut == "" && sqliteOut == "" {
				return errNoOutput
			}

			cfg, err := config.NewFile(configPath)
			if err != nil {
				return err
			}

			var tables *load.Tables
			if snapshotPath != "" {
				snapshot, err := export.ReadSnapshot(snapshotPath)
				if err != nil {
					return err
				}
				tables, err = export.New(cfg).Export(snapshot)
				if err != nil {
					return err
				}
			} else {
				tables, err = load.ReadTables(dataDir, mode)
				if err != nil {
					return err
				}
			}

			if csvOut != "" {
				if err := export.WriteCSV(tables, csvOut, mode); err != nil {
					return err
				}
				logrus.WithField("dir", csvOut).Info("CSV tables written")
			}
			if sqliteOut != "" {
				db, err := store.Open(sqliteOut)
				if err != nil {
					return err
				}
				defer func() {
					if err := db.Close(); err != nil {
						logrus.Warnf("failed to close snapshot db: %v", err)
					}
				}()
				if err := db.Save(tables); err != nil {
					return err
				}
				logrus.WithField("file", sqliteOut).Info("SQLite snapshot written")
			}

			return nil
		},
	}

	flags := cmd.Flags()
	flags.StringVar(&snapshotPath, "snapshot", "", "JSON machine description to export")
	flags.StringVar(&csvOut, "csv-out", "", "directory to write CSV tables into")
	flags.StringVar(&sqliteOut, "sqlite-out", "", "SQLite file to write the snapshot into")

	return cmd
}
