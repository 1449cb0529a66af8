package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/go-ghomala-tok/internal/tokenizer"
)

func newDecodeCmd() *cobra.Command {
	var keepSpecial bool

	cmd := &cobra.Command{
		Use:   "decode ID...",
		Short: "Decode token ids with the trained tokenizer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := requireConfig()
			if err != nil {
				return err
			}

			ids, err := parseIDs(args)
			if err != nil {
				return err
			}

			tok, err := tokenizer.Load(cfg.Paths.Output)
			if err != nil {
				return err
			}

			text, err := tok.Decode(ids, !keepSpecial)
			if err != nil {
				return err
			}

			_, _ = fmt.Fprintln(cmd.OutOrStdout(), text)

			return nil
		},
	}

	cmd.Flags().BoolVar(&keepSpecial, "keep-special", false, "Keep special tokens in the output")

	return cmd
}

// parseIDs accepts ids as separate arguments or comma separated.
func parseIDs(args []string) ([]int, error) {
	var ids []int
	for _, arg := range args {
		for _, field := range strings.FieldsFunc(arg, func(r rune) bool { return r == ',' || r == ' ' }) {
			id, err := strconv.Atoi(field)
			if err != nil {
				return nil, fmt.Errorf("invalid token id %q: %w", field, err)
			}
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 {
		return nil, errors.New("no token ids given")
	}
	return ids, nil
}
