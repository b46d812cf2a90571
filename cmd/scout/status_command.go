package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newStatusCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show database health and layer row counts",
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := ctx.openStore()
			if err != nil {
				return fmt.Errorf("open store: %w", err)
			}
			defer st.Close()

			out := cmd.OutOrStdout()
			colorize := shouldColorize(out)
			lines := renderSectionHeader("Database", colorize)

			health, healthErr := st.CheckHealth(cmd.Context())
			lines = append(lines, renderStatusLine("Path", statusInfo, health.DBPath, colorize))
			if healthErr != nil {
				lines = append(lines, renderStatusLine("Health", statusError, healthErr.Error(), colorize))
			} else {
				switch {
				case !health.DatabaseExists:
					lines = append(lines, renderStatusLine("Health", statusWarn, "database not created yet", colorize))
				case !health.IntegrityCheck:
					lines = append(lines, renderStatusLine("Health", statusError, "integrity check failed", colorize))
				case len(health.MissingTables) > 0:
					lines = append(lines, renderStatusLine("Health", statusError,
						"missing tables: "+strings.Join(health.MissingTables, ", "), colorize))
				default:
					lines = append(lines, renderStatusLine("Health", statusOK, "", colorize))
				}
			}

			counts, err := st.Counts(cmd.Context())
			if err != nil {
				return fmt.Errorf("count rows: %w", err)
			}
			lines = append(lines, "")
			lines = append(lines, renderSectionHeader("Layers", colorize)...)
			lines = append(lines, renderStatusLine("Bronze", statusInfo, fmt.Sprintf("%d rows", counts.Bronze), colorize))
			lines = append(lines, renderStatusLine("Silver", statusInfo, fmt.Sprintf("%d rows", counts.Silver), colorize))
			lines = append(lines, renderStatusLine("Gold", statusInfo, fmt.Sprintf("%d rows", counts.Gold), colorize))

			fmt.Fprintln(out, strings.Join(lines, "\n"))
			return nil
		},
	}
}
