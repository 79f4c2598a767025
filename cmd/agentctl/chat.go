package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/peterh/liner"
	"github.com/spf13/cobra"
)

func newChatCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "chat",
		Short: "Interactive streaming chat session",
		RunE: func(cmd *cobra.Command, args []string) error {
			line := liner.NewLiner()
			defer line.Close()
			line.SetCtrlCAborts(true)

			historyFile := filepath.Join(os.TempDir(), ".agentctl_history")
			if f, err := os.Open(historyFile); err == nil {
				_, _ = line.ReadHistory(f)
				f.Close()
			}
			defer func() {
				if f, err := os.Create(historyFile); err == nil {
					_, _ = line.WriteHistory(f)
					f.Close()
				}
			}()

			c := newClient()
			fmt.Println("Chat session started. Type /quit to exit.")

			for {
				input, err := line.Prompt("> ")
				if errors.Is(err, liner.ErrPromptAborted) || errors.Is(err, io.EOF) {
					fmt.Println()
					return nil
				}
				if err != nil {
					return err
				}
				input = strings.TrimSpace(input)
				if input == "" {
					continue
				}
				if input == "/quit" || input == "/exit" {
					return nil
				}
				line.AppendHistory(input)

				stream, err := c.Stream(cmd.Context(), params(input))
				if err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
					continue
				}
				if err := printStream(cmd, stream); err != nil {
					fmt.Fprintln(cmd.ErrOrStderr(), "Error:", err)
				}
				_ = stream.Close()
			}
		},
	}
}
