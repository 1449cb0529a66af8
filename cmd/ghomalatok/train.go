package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-ghomala-tok/internal/pipeline"
)

func newTrainCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "train",
		Short: "Extract the corpus, train the tokenizer and save it",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}

			opts := pipeline.FromConfig(cfg)
			opts.Progress = cmd.ErrOrStderr()

			if _, err := pipeline.Run(cmd.Context(), opts); err != nil {
				return fmt.Errorf("train failed at %w", err)
			}

			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "Tokenizer training complete. Saved to '%s'.\n", cfg.Paths.Output)

			return nil
		},
	}
}
