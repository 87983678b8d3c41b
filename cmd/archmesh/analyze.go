package main

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/hupe1980/archmesh/vision"
)

func newAnalyzeCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a room photo and print the RoomAnalysis as JSON",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return err
			}
			analyzer, err := vision.NewAnalyzer(func(o *vision.AnalyzerOptions) {
				o.Params.MaxDimension = a.cfg.MaxImageDimension
				o.CacheSize = 1
				o.Logger = a.logger
			})
			if err != nil {
				return err
			}
			analysis, err := analyzer.AnalyzeBytes(cmd.Context(), data)
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			if err := enc.Encode(analysis); err != nil {
				return fmt.Errorf("encode analysis: %w", err)
			}
			return nil
		},
	}
}
