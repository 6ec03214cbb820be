// Package commands provides the copilot-ctl command tree.
package commands

import (
	"context"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"copilot/internal/backend"
	"copilot/internal/config"
	"copilot/internal/ipc"
	"copilot/internal/proxy"
	"copilot/internal/timeline"
)

type options struct {
	socket  string
	timeout time.Duration
	backend string
	proxy   string
	envFile string
}

// NewRootCmd builds the command tree writing to out.
func NewRootCmd(out io.Writer) *cobra.Command {
	opts := &options{}

	root := &cobra.Command{
		Use:   "copilot-ctl",
		Short: "Control a running copilot daemon",
		Long: `copilot-ctl talks to copilot-daemon over its unix socket.

Examples:
  copilot-ctl listen                  Open the microphone
  copilot-ctl stop                    End speech now
  copilot-ctl ask "best driver"       Run one turn and print the reply
  copilot-ctl history                 Print the conversation so far
  copilot-ctl weather Austin          Query the backend weather route`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.envFile)
			if err != nil {
				return err
			}
			if !cmd.Flags().Changed("socket") {
				opts.socket = cfg.SocketPath
			}
			if !cmd.Flags().Changed("backend") {
				opts.backend = cfg.BackendURL
			}
			opts.proxy = cfg.Proxy
			return nil
		},
	}
	root.SetOut(out)
	root.SetErr(out)

	root.PersistentFlags().StringVarP(&opts.envFile, "env", "e", ".env", "Env file path")
	root.PersistentFlags().StringVarP(&opts.socket, "socket", "s", "", "Daemon socket (default $COPILOT_SOCKET)")
	root.PersistentFlags().DurationVarP(&opts.timeout, "timeout", "t", ipc.DefaultTimeout, "Request timeout")
	root.PersistentFlags().StringVar(&opts.backend, "backend", "", "Backend base URL (default $COPILOT_BACKEND_URL)")

	root.AddCommand(
		simpleCmd(opts, ipc.CmdListen, "Start a speech capture"),
		simpleCmd(opts, ipc.CmdStop, "Signal end of speech"),
		simpleCmd(opts, ipc.CmdCancel, "Discard the current capture"),
		askCmd(opts),
		historyCmd(opts),
		weatherCmd(opts),
	)
	return root
}

func send(opts *options, req ipc.Request) (ipc.Response, error) {
	resp, err := ipc.SendCommand(opts.socket, req, opts.timeout)
	if err != nil {
		return ipc.Response{}, fmt.Errorf("copilot-daemon not running: %w", err)
	}
	if !resp.OK {
		return resp, fmt.Errorf("%s: %s", req.Cmd, resp.Error)
	}
	return resp, nil
}

func simpleCmd(opts *options, name, short string) *cobra.Command {
	return &cobra.Command{
		Use:   name,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			_, err := send(opts, ipc.Request{Cmd: name})
			return err
		},
	}
}

func askCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "ask <question>",
		Short: "Run one conversational turn",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(opts, ipc.Request{Cmd: ipc.CmdAsk, Text: strings.Join(args, " ")})
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), resp.Reply)
			return nil
		},
	}
}

func historyCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "history",
		Short: "Print the conversation timeline",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			resp, err := send(opts, ipc.Request{Cmd: ipc.CmdHistory})
			if err != nil {
				return err
			}
			for _, m := range resp.Messages {
				fmt.Fprintln(cmd.OutOrStdout(), formatMessage(m))
			}
			return nil
		},
	}
}

func formatMessage(m timeline.Message) string {
	content := m.Content
	if m.Pending {
		content = "…"
	}
	return fmt.Sprintf("[%s] %-4s %s", m.CreatedAt.Format("15:04:05"), m.Role, content)
}

func weatherCmd(opts *options) *cobra.Command {
	return &cobra.Command{
		Use:   "weather <city>",
		Short: "Show current weather and alerts for a city",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			httpClient, err := proxy.NewClient(opts.proxy, opts.timeout)
			if err != nil {
				return err
			}
			client := backend.NewClient(opts.backend, httpClient)

			ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
			defer cancel()

			w, err := client.Weather(ctx, strings.Join(args, " "))
			if err != nil {
				return err
			}
			printWeather(cmd.OutOrStdout(), w)
			return nil
		},
	}
}
