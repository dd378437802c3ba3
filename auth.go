package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivecast/internal/config"
	"github.com/tonimelisma/drivecast/internal/session"
	"github.com/tonimelisma/drivecast/internal/tokenstore"
)

func newLoginCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "login",
		Short: "Connect drivecast to your Google Drive",
		Long: `Print the Google consent URL. After granting access the browser is
redirected to the configured redirect URL with a "code" parameter. If the
server is running it completes the login itself; otherwise pass that code
with --code.`,
		Args: cobra.NoArgs,
		RunE: runLogin,
	}

	cmd.Flags().String("code", "", "authorization code from the redirect URL")

	return cmd
}

func runLogin(cmd *cobra.Command, _ []string) error {
	logger := buildLogger()

	app, err := NewApp(cmd.Context(), resolvedCfg, logger)
	if err != nil {
		return err
	}
	defer app.Close()

	code, err := cmd.Flags().GetString("code")
	if err != nil {
		return err
	}

	if code == "" {
		statusf(flagQuiet, "Open this URL in your browser and grant read-only Drive access:\n\n")
		fmt.Fprintln(cmd.OutOrStdout(), app.Session.ConsentURL())
		statusf(flagQuiet, "\nThen run: drivecast login --code <code from the redirect URL>\n")

		return nil
	}

	if err := app.Session.Exchange(cmd.Context(), code); err != nil {
		if errors.Is(err, session.ErrInvalidGrant) {
			return fmt.Errorf("authorization code rejected (codes are single-use and expire quickly): %w", err)
		}

		return err
	}

	statusf(flagQuiet, "Login successful. Token saved (%s backend).\n", resolvedCfg.Token.Backend)

	return nil
}

func newLogoutCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Revoke access and delete the saved token",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			app, err := NewApp(cmd.Context(), resolvedCfg, logger)
			if err != nil {
				return err
			}
			defer app.Close()

			if err := app.Session.Revoke(cmd.Context()); err != nil {
				return err
			}

			statusf(flagQuiet, "Logged out.\n")

			return nil
		},
	}
}

// statusReport is the output of the status command.
type statusReport struct {
	Authenticated bool       `json:"authenticated"`
	TokenBackend  string     `json:"token_backend"`
	TokenPath     string     `json:"token_path,omitempty"`
	TokenExpiry   *time.Time `json:"token_expiry,omitempty"`
	RefreshToken  bool       `json:"has_refresh_token"`
	ServerRunning bool       `json:"server_running"`
	ServerPID     int        `json:"server_pid,omitempty"`
	Listen        string     `json:"listen"`
}

func newStatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show login and server status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger()

			// Only the token store is needed; credentials may not be set up yet.
			store, closeStore, err := tokenstore.Open(cmd.Context(), resolvedCfg.Token.Backend, resolvedCfg.TokenPath, logger)
			if err != nil {
				return err
			}
			defer closeStore()

			report, err := collectStatus(cmd.Context(), store, resolvedCfg)
			if err != nil {
				return err
			}

			return printStatus(cmd.OutOrStdout(), report, flagJSON)
		},
	}
}

func collectStatus(ctx context.Context, store tokenstore.Store, cfg *config.Resolved) (statusReport, error) {
	report := statusReport{
		TokenBackend: cfg.Token.Backend,
		TokenPath:    cfg.TokenPath,
		Listen:       cfg.Server.Listen,
	}

	tok, err := store.Load(ctx)

	switch {
	case err == nil:
		report.Authenticated = true
		report.RefreshToken = tok.RefreshToken != ""

		if !tok.Expiry.IsZero() {
			expiry := tok.Expiry
			report.TokenExpiry = &expiry
		}
	case errors.Is(err, tokenstore.ErrNotFound):
	default:
		return report, err
	}

	if pid, running := runningServerPID(cfg.PIDPath); running {
		report.ServerRunning = true
		report.ServerPID = pid
	}

	return report, nil
}

func printStatus(w io.Writer, r statusReport, asJSON bool) error {
	if asJSON {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")

		return enc.Encode(r)
	}

	signedIn := "no (run 'drivecast login')"
	if r.Authenticated {
		signedIn = "yes"
	}

	rows := [][]string{
		{"Signed in:", signedIn},
		{"Token backend:", r.TokenBackend},
	}

	if r.TokenPath != "" {
		rows = append(rows, []string{"Token path:", r.TokenPath})
	}

	if r.TokenExpiry != nil {
		rows = append(rows, []string{"Access token expires:", formatTime(r.TokenExpiry.Local())})
	}

	if r.Authenticated && !r.RefreshToken {
		rows = append(rows, []string{"Refresh token:", "missing (session ends at expiry)"})
	}

	server := "not running"
	if r.ServerRunning {
		server = fmt.Sprintf("running (PID %d) on %s", r.ServerPID, r.Listen)
	}

	rows = append(rows, []string{"Server:", server})

	printRows(w, rows)

	return nil
}

// runningServerPID reports the PID of a live server holding the PID file.
func runningServerPID(path string) (int, bool) {
	pid, err := readPIDFile(path)
	if err != nil {
		return 0, false
	}

	return pid, processAlive(pid)
}
