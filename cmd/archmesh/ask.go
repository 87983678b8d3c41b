package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/hupe1980/archmesh"
	"github.com/hupe1980/archmesh/core"
	"github.com/hupe1980/archmesh/orchestrator"
)

func newAskCmd(a *app) *cobra.Command {
	var (
		imagePath      string
		conversationID string
	)
	cmd := &cobra.Command{
		Use:   "ask <message...>",
		Short: "Ask the specialist team a question and stream the answer",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if !a.cfg.HasProvider() {
				return fmt.Errorf("set ANTHROPIC_API_KEY, OPENAI_API_KEY or GEMINI_API_KEY")
			}
			req := archmesh.AskRequest{ConversationID: conversationID, Message: strings.Join(args, " ")}
			if imagePath != "" {
				data, err := os.ReadFile(imagePath)
				if err != nil {
					return err
				}
				req.Image = data
			}

			mesh, err := archmesh.NewFromConfig(cmd.Context(), a.cfg, func(o *archmesh.Options) { o.Logger = a.logger })
			if err != nil {
				return err
			}
			defer mesh.Close()

			turn, err := mesh.Ask(cmd.Context(), req)
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			render(out, turn.Events())
			outcome, err := turn.Result()
			if err != nil {
				return err
			}
			for _, n := range outcome.Notices {
				fmt.Fprintf(out, "\n! %s\n", n)
			}
			fmt.Fprintf(out, "\nconversation: %s\n", turn.ConversationID)
			return nil
		},
	}
	cmd.Flags().StringVar(&imagePath, "image", "", "room photo to analyze first")
	cmd.Flags().StringVar(&conversationID, "conversation", "", "continue a conversation (requires REDIS_ADDR across runs)")
	return cmd
}

// render prints events as they arrive, one heading per role. Reset chunks
// are shown as a marker because printed text cannot be taken back.
func render(w io.Writer, events <-chan orchestrator.Event) {
	var current core.AgentRole
	for e := range events {
		switch e.Type {
		case orchestrator.EventAnalysis:
			fmt.Fprintf(w, "[analysis] %s\n", strings.ReplaceAll(e.Analysis.Summary(), "\n", "; "))
		case orchestrator.EventRoute:
			fmt.Fprintf(w, "[route] primary=%s collaborators=%v\n", e.Selection.Primary, e.Selection.Collaborators)
		case orchestrator.EventChunk:
			if e.Role != current {
				current = e.Role
				fmt.Fprintf(w, "\n## %s\n", e.Role.DisplayName())
			}
			if e.Reset {
				fmt.Fprint(w, " [retrying] ")
				continue
			}
			fmt.Fprint(w, e.Text)
		}
	}
	fmt.Fprintln(w)
}
