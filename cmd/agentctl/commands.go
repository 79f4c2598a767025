package main

import (
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/agentserve-dev/agentserve/agent"
	"github.com/agentserve-dev/agentserve/client"
)

func newClient() *client.Client {
	var opts []client.Option
	if authToken != "" {
		opts = append(opts, client.WithAuthToken(authToken))
	}
	return client.New(serverURL, opts...)
}

func params(message string) client.Params {
	return client.Params{
		AgentID:  agentID,
		ThreadID: threadID,
		Message:  message,
		Options:  agent.RunOptions{Model: modelName},
	}
}

func newAgentsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "agents",
		Short: "List the server's agents",
		RunE: func(cmd *cobra.Command, args []string) error {
			descs, err := newClient().Agents(cmd.Context())
			if err != nil {
				return err
			}
			for _, d := range descs {
				caps := []string{}
				if d.Capabilities.Streaming {
					caps = append(caps, "streaming")
				}
				if d.Capabilities.Tools {
					caps = append(caps, "tools")
				}
				fmt.Printf("%-12s  %s", d.AgentID, d.Description)
				if len(caps) > 0 {
					fmt.Printf("  [%s]", strings.Join(caps, ", "))
				}
				fmt.Println()
			}
			return nil
		},
	}
}

func newInvokeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "invoke <message>",
		Short: "Send a message and print the reply",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := newClient().Invoke(cmd.Context(), params(args[0]))
			if err != nil {
				return err
			}
			fmt.Println(res.Message.Content)
			fmt.Fprintf(cmd.ErrOrStderr(), "thread: %s\n", res.ThreadID)
			return nil
		},
	}
}

func newStreamCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stream <message>",
		Short: "Send a message and print the reply as it streams",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			stream, err := newClient().Stream(cmd.Context(), params(args[0]))
			if err != nil {
				return err
			}
			defer stream.Close()

			return printStream(cmd, stream)
		},
	}
}

// printStream renders one run's events: tokens inline, task updates as
// side notes, and the error detail when the run fails.
func printStream(cmd *cobra.Command, stream client.EventStream) error {
	for {
		ev, err := stream.Recv()
		if errors.Is(err, io.EOF) {
			fmt.Println()
			return nil
		}
		if err != nil {
			return err
		}

		switch ev.Kind {
		case agent.EventToken:
			fmt.Print(ev.Text)
		case agent.EventCustomUpdate:
			fmt.Fprintf(cmd.ErrOrStderr(), "\n[update] %s\n", ev.Payload)
		case agent.EventMessage:
			if ev.Message != nil {
				threadID = ev.Message.MetadataString(agent.MetaThreadID, threadID)
			}
		case agent.EventError:
			return fmt.Errorf("run failed: %s", ev.Detail)
		}
	}
}
