package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/q09sssisiwjb/boltshell/internal/client"
	"github.com/q09sssisiwjb/boltshell/internal/shared/types"
	"github.com/q09sssisiwjb/boltshell/internal/shell"
)

func newClient(cmd *cobra.Command) *client.Client {
	server, _ := cmd.Flags().GetString("server")
	return client.New(client.DefaultConfig(server))
}

func execCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exec [flags] -- COMMAND...",
		Short: "Run a command in a hosted terminal and exit with its status",
		Long: "Runs one command line in the terminal given by --terminal. Without it a\n" +
			"fresh terminal is created and killed afterwards unless --keep is set.",
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c := newClient(cmd)
			ctx := cmd.Context()
			terminalID, _ := cmd.Flags().GetString("terminal")
			session, _ := cmd.Flags().GetString("session")
			keep, _ := cmd.Flags().GetBool("keep")
			plain, _ := cmd.Flags().GetBool("plain")
			timeout, _ := cmd.Flags().GetDuration("timeout")

			if terminalID == "" {
				dir, _ := cmd.Flags().GetString("dir")
				info, err := c.CreateTerminal(ctx, types.CreateTerminalRequest{WorkingDir: dir})
				if err != nil {
					return fmt.Errorf("create terminal: %w", err)
				}
				terminalID = info.ID
				if keep {
					fmt.Fprintln(os.Stderr, "terminal:", terminalID)
				} else {
					defer c.Kill(context.WithoutCancel(ctx), terminalID)
				}
			}

			res, err := c.Exec(ctx, terminalID, types.ExecRequest{
				Command:   strings.Join(args, " "),
				SessionID: session,
				TimeoutMS: timeout.Milliseconds(),
			})
			if err != nil {
				var apiErr *client.APIError
				if errors.Is(err, shell.ErrCommandTimeout) && errors.As(err, &apiErr) {
					fmt.Print(apiErr.Output)
				}
				return err
			}

			if plain {
				fmt.Print(res.Plain)
			} else {
				fmt.Print(res.Output)
			}
			if res.ExitCode != 0 {
				return &exitError{code: res.ExitCode}
			}
			return nil
		},
	}
	cmd.Flags().StringP("terminal", "t", "", "Terminal ID to run in")
	cmd.Flags().String("session", "", "Session ID recorded with the command")
	cmd.Flags().String("dir", "", "Working directory for a new terminal")
	cmd.Flags().Bool("keep", false, "Keep the terminal created for this command")
	cmd.Flags().Bool("plain", false, "Strip ANSI escape sequences from the output")
	cmd.Flags().Duration("timeout", 0, "Give up waiting after this long")
	return cmd
}

func stateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "state TERMINAL_ID",
		Short: "Show whether a terminal is running a command",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			st, err := newClient(cmd).State(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if st.Pending == nil {
				fmt.Println("idle")
				return nil
			}
			fmt.Printf("busy  %s  (running %s, session %q)\n",
				st.Pending.Command,
				time.Since(st.Pending.StartedAt).Round(time.Second),
				st.SessionID,
			)
			return nil
		},
	}
}

func terminalsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "terminals",
		Short: "List hosted terminals",
		RunE: func(cmd *cobra.Command, args []string) error {
			list, err := newClient(cmd).ListTerminals(cmd.Context())
			if err != nil {
				return err
			}
			if len(list) == 0 {
				fmt.Println("no terminals")
				return nil
			}

			w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
			fmt.Fprintln(w, "ID\tSTATE\tSIZE\tCOMMAND\tSTARTED")
			for _, t := range list {
				fmt.Fprintf(w, "%s\t%s\t%dx%d\t%s\t%s\n",
					t.ID, t.State, t.Cols, t.Rows, t.Command, t.StartedAt.Format(time.RFC3339))
			}
			return w.Flush()
		},
	}
}

func killCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "kill TERMINAL_ID",
		Short: "Terminate a hosted terminal",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return newClient(cmd).Kill(cmd.Context(), args[0])
		},
	}
}
