package main

import (
	"encoding/json"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/intent"
)

func newParseCmd(_ *app) *cobra.Command {
	return &cobra.Command{
		Use:   "parse <utterance...>",
		Short: "Parse an utterance into a structured command",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			it, ok := intent.NewParser().Parse(strings.Join(args, " "))
			out := struct {
				Matched bool         `json:"matched"`
				Intent  *core.Intent `json:"intent,omitempty"`
			}{Matched: ok}
			if ok {
				out.Intent = &it
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(out)
		},
	}
}
