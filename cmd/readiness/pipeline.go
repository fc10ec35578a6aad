package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/fairyhunter13/career-readiness/internal/app"
	"github.com/fairyhunter13/career-readiness/internal/config"
	"github.com/fairyhunter13/career-readiness/internal/domain"
)

// offline builds a container on the in-memory store so commands that never
// touch stored records need no database.
func offline(ctx context.Context) (*app.Container, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	cfg.StoreBackend = app.StoreMemory
	return app.Build(ctx, cfg, app.Options{})
}

func newExtractCmd() *cobra.Command {
	var mimeType string
	cmd := &cobra.Command{
		Use:   "extract FILE",
		Short: "Extract resume text from a PDF or image",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read file: %w", err)
			}
			c, err := offline(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			ext, err := c.Extraction.Extract(cmd.Context(), data, mimeType)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), ext)
		},
	}
	cmd.Flags().StringVar(&mimeType, "mime", "", "Declared MIME type; sniffed when empty")
	return cmd
}

func newQuickCmd() *cobra.Command {
	var in, typ string
	cmd := &cobra.Command{
		Use:   "quick",
		Short: "Score responses with the model, falling back to the keyword scorer",
		RunE: func(cmd *cobra.Command, _ []string) error {
			t, err := domain.ParseAssessmentType(typ)
			if err != nil {
				return err
			}
			responses, err := readResponses(cmd, in)
			if err != nil {
				return err
			}
			c, err := offline(cmd.Context())
			if err != nil {
				return err
			}
			defer c.Close()
			res, err := c.Quick.Analyze(cmd.Context(), responses, t)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringVarP(&in, "in", "i", "-", "Responses JSON file, - for stdin")
	cmd.Flags().StringVarP(&typ, "type", "t", string(domain.TypeIdealJob), "Assessment type code")
	return cmd
}

func newSeedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed FILE",
		Short: "Insert the assessments listed in a YAML file into the configured store",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			c, err := app.Build(cmd.Context(), cfg, app.Options{})
			if err != nil {
				return err
			}
			defer c.Close()
			insert, err := c.InserterFor()
			if err != nil {
				return err
			}
			n, err := app.LoadSeed(cmd.Context(), insert, args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "seeded %d assessments\n", n)
			return nil
		},
	}
}

func newRunCmd() *cobra.Command {
	var (
		typ     string
		timeout time.Duration
	)
	cmd := &cobra.Command{
		Use:   "run ID",
		Short: "Run the analysis pipeline for one stored assessment and print the result",
		Long: `Runs the full pipeline in-process against the configured store, bypassing
the queue. The usual guards apply: a processed or locked record is left alone.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if timeout <= 0 {
				timeout = cfg.ProcessingTimeout
			}
			ctx, cancel := context.WithTimeout(cmd.Context(), timeout)
			defer cancel()
			return runOne(ctx, cmd, cfg, args[0], typ)
		},
	}
	cmd.Flags().StringVarP(&typ, "type", "t", "", "Assessment type code; defaults to the stored type")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Overall deadline; defaults to PROCESSING_TIMEOUT")
	return cmd
}

func runOne(ctx context.Context, cmd *cobra.Command, cfg config.Config, id, typ string) error {
	c, err := app.Build(ctx, cfg, app.Options{RequireAI: true})
	if err != nil {
		return err
	}
	defer c.Close()
	res, err := c.Trigger.Trigger(ctx, id, typ, "cli")
	if err != nil {
		return err
	}
	view, err := c.Status.Get(ctx, id)
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), map[string]any{"trigger": res, "analysis": view})
}
