// ABOUTME: auth subcommands for connecting Google and Microsoft calendars
// ABOUTME: login prints the consent URL; complete exchanges the redirect code for a token

package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/harper/calendar-mcp/pkg/auth"
	"github.com/harper/calendar-mcp/pkg/server"
)

func newAuthCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "auth",
		Short: "Manage calendar provider sign-in",
	}

	var force bool
	login := &cobra.Command{
		Use:   "login <google|microsoft>",
		Short: "Print the URL to authorize calendar access",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := auth.ParseProvider(args[0])
			if err != nil {
				return err
			}
			out := cmd.OutOrStdout()
			status, err := server.NewAuthManager(a.cfg, a.logger).Login(p, force)
			if err != nil {
				return err
			}
			if status.AuthURL == "" {
				fmt.Fprintln(out, status.Message)
				return nil
			}
			fmt.Fprintln(out, auth.ConsentMessage())
			fmt.Fprintf(out, "\nOpen this URL in a browser:\n\n%s\n\n", status.AuthURL)
			fmt.Fprintf(out, "Then run: calendar-mcp auth complete %s '<redirect URL>'\n", p)
			return nil
		},
	}
	login.Flags().BoolVar(&force, "force", false, "Re-authenticate even if the cached token is valid")

	var firstName string
	complete := &cobra.Command{
		Use:   "complete <google|microsoft> <code-or-redirect-url>",
		Short: "Exchange the authorization code for a token",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := auth.ParseProvider(args[0])
			if err != nil {
				return err
			}
			if err := server.NewAuthManager(a.cfg, a.logger).Complete(cmd.Context(), p, args[1]); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), auth.WelcomeMessage(firstName))
			return nil
		},
	}
	complete.Flags().StringVar(&firstName, "name", "", "First name to greet")

	status := &cobra.Command{
		Use:   "status [google|microsoft]",
		Short: "Show provider connection status",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			providers := auth.Providers
			if len(args) == 1 {
				p, err := auth.ParseProvider(args[0])
				if err != nil {
					return err
				}
				providers = []auth.Provider{p}
			}
			manager := server.NewAuthManager(a.cfg, a.logger)
			for _, p := range providers {
				printState(cmd.OutOrStdout(), manager.Status(p))
			}
			return nil
		},
	}

	logout := &cobra.Command{
		Use:   "logout <google|microsoft>",
		Short: "Remove the cached token for a provider",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := auth.ParseProvider(args[0])
			if err != nil {
				return err
			}
			removed, err := server.NewAuthManager(a.cfg, a.logger).Logout(p)
			if err != nil {
				return err
			}
			if removed {
				fmt.Fprintf(cmd.OutOrStdout(), "Disconnected from %s Calendar.\n", p.Title())
			} else {
				fmt.Fprintf(cmd.OutOrStdout(), "Not connected to %s Calendar.\n", p.Title())
			}
			return nil
		},
	}

	cmd.AddCommand(login, complete, status, logout)
	return cmd
}

func printState(w io.Writer, s auth.AuthState) {
	fmt.Fprintf(w, "%-10s configured=%-5t connected=%-5t %s\n", s.Provider, s.Configured, s.Authenticated, s.Message)
	if s.Token != nil && s.Token.AccessToken != "" {
		fmt.Fprintf(w, "%-10s token=%s\n", "", s.Token.AccessToken)
	}
}
