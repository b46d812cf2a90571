package main

import (
	"context"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"scout/internal/etl"
	"scout/internal/store"
)

func withPipeline(ctx *commandContext, fn func(context.Context, *etl.Pipeline, io.Writer) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		cfg, err := ctx.ensureConfig()
		if err != nil {
			return err
		}
		logger, err := ctx.newLogger()
		if err != nil {
			return fmt.Errorf("init logger: %w", err)
		}
		st, err := store.Open(cfg)
		if err != nil {
			return fmt.Errorf("open store: %w", err)
		}
		defer st.Close()

		return fn(cmd.Context(), etl.New(cfg, st, logger), cmd.OutOrStdout())
	}
}

func newRunCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Run the full bronze, silver, and gold pipeline",
		RunE: withPipeline(ctx, func(runCtx context.Context, pipeline *etl.Pipeline, out io.Writer) error {
			summary, err := pipeline.Run(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Run %s complete\n", summary.RunID)
			fmt.Fprintf(out, "  bronze: %d rows\n", summary.BronzeRows)
			fmt.Fprintf(out, "  silver: %d rows\n", summary.SilverRows)
			fmt.Fprintf(out, "  gold:   %d rows\n", summary.GoldRows)
			return nil
		}),
	}
}

func newBronzeCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "bronze",
		Short: "Ingest raw CSV events into the bronze layer",
		RunE: withPipeline(ctx, func(runCtx context.Context, pipeline *etl.Pipeline, out io.Writer) error {
			processed, err := pipeline.Bronze(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Bronze stage processed %d rows\n", processed)
			return nil
		}),
	}
}

func newSilverCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "silver",
		Short: "Normalize new bronze events into the silver layer",
		RunE: withPipeline(ctx, func(runCtx context.Context, pipeline *etl.Pipeline, out io.Writer) error {
			inserted, err := pipeline.Silver(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Silver stage inserted %d rows\n", inserted)
			return nil
		}),
	}
}

func newGoldCommand(ctx *commandContext) *cobra.Command {
	return &cobra.Command{
		Use:   "gold",
		Short: "Predict brands for new silver events",
		RunE: withPipeline(ctx, func(runCtx context.Context, pipeline *etl.Pipeline, out io.Writer) error {
			predicted, err := pipeline.Gold(runCtx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Gold stage predicted %d rows\n", predicted)
			return nil
		}),
	}
}
