package main

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/go-ghomala-tok/internal/artifact"
	"github.com/example/go-ghomala-tok/internal/doctor"
)

func newDoctorCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Run preflight checks on the corpus and output locations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			cfgErr := cfg.Validate()
			if cfgErr != nil {
				_, _ = fmt.Fprintf(out, "%s configuration: %v\n", doctor.FailMark, cfgErr)
			}

			dcfg := doctor.Config{
				CorpusPath:       cfg.Paths.Corpus,
				Field:            cfg.Corpus.Field,
				IntermediatePath: cfg.Paths.Intermediate,
				OutputPath:       cfg.Paths.Output,
				ManifestPath:     cfg.Paths.Manifest,
				VerifyArtifact: func(path string) error {
					opts := verifyOptions(cfg)
					opts.Path = path
					_, err := artifact.Verify(opts)
					return err
				},
			}

			result := doctor.Run(dcfg, out)
			if cfgErr != nil {
				result.AddFailure(fmt.Sprintf("configuration: %v", cfgErr))
			}

			if result.Failed() {
				for _, f := range result.Failures() {
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "FAIL: %s\n", f)
				}

				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "doctor checks passed")

			return nil
		},
	}

	return cmd
}
