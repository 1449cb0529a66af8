package main

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

func newEncodeCmd() *cobra.Command {
	var pair string
	var asJSON bool

	cmd := &cobra.Command{
		Use:   "encode TEXT...",
		Short: "Encode text with the trained tokenizer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			tok, err := tokenizer.Load(cfg.Paths.Output)
			if err != nil {
				return err
			}

			text := strings.Join(args, " ")
			var enc tokenizer.Encoding
			if cmd.Flags().Changed("pair") {
				enc, err = tok.EncodePair(text, pair)
			} else {
				enc, err = tok.Encode(text)
			}
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if asJSON {
				e := json.NewEncoder(out)
				e.SetEscapeHTML(false)
				return e.Encode(enc)
			}

			_, _ = fmt.Fprintf(out, "tokens:   %s\n", strings.Join(enc.Tokens, " "))
			_, _ = fmt.Fprintf(out, "ids:      %s\n", joinInts(enc.IDs))
			_, _ = fmt.Fprintf(out, "type_ids: %s\n", joinInts(enc.TypeIDs))

			return nil
		},
	}

	cmd.Flags().StringVar(&pair, "pair", "", "Second sequence, encoded with the pair template")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print the full encoding as JSON")

	return cmd
}

func joinInts(xs []int) string {
	parts := make([]string, len(xs))
	for i, x := range xs {
		parts[i] = fmt.Sprint(x)
	}
	return strings.Join(parts, " ")
}
