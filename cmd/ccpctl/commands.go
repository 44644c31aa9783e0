// Copyright (c) 2025 ManuGH
// Licensed under the PolyForm Noncommercial License 1.0.0
// Since v2.0.0, this software is restricted to non-commercial use only.

package main

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"

	"github.com/luuxx/ccp/internal/version"
)

const defaultAddr = "127.0.0.1:8765"

type rootOptions struct {
	addr    string
	timeout time.Duration
	out     io.Writer
}

func (o *rootOptions) client() *client {
	return newClient(o.addr, o.timeout)
}

func (o *rootOptions) printJSON(v any) error {
	enc := json.NewEncoder(o.out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newRootCmd(out io.Writer) *cobra.Command {
	opts := &rootOptions{out: out}

	addr := os.Getenv("CCP_ADDR")
	if addr == "" {
		addr = defaultAddr
	}

	root := &cobra.Command{
		Use:           "ccpctl",
		Short:         "Control a running ccp daemon",
		Version:       version.String(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.SetOut(out)
	root.PersistentFlags().StringVar(&opts.addr, "addr", addr, "daemon API address (env CCP_ADDR)")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 10*time.Second, "request timeout")

	root.AddCommand(
		newStatusCmd(opts),
		newSessionsCmd(opts),
		newStartCmd(opts),
		newSimpleCmd(opts, "pause", "Pause the running session", "/session/pause"),
		newSimpleCmd(opts, "resume", "Resume the paused session", "/session/resume"),
		newStopCmd(opts),
		newSimpleCmd(opts, "panic", "Stop the session, autonomy and every effect", "/panic"),
		newAutonomyCmd(opts),
		newHistoryCmd(opts),
		newCompleteCmd(opts),
		newSettingsCmd(opts),
		newSimpleCmd(opts, "reload", "Reload the daemon configuration file", "/config/reload"),
	)
	return root
}

func newStatusCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show session, autonomy and interaction status",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var status json.RawMessage
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/status", nil, nil, &status); err != nil {
				return err
			}
			return opts.printJSON(status)
		},
	}
}

type sessionRow struct {
	ID       string        `json:"id"`
	Name     string        `json:"name"`
	Duration time.Duration `json:"duration"`
	MinLevel int           `json:"minLevel"`
	Unlocked bool          `json:"unlocked"`
}

func newSessionsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "sessions",
		Short: "List available sessions",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var rows []sessionRow
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/sessions", nil, nil, &rows); err != nil {
				return err
			}
			tw := tabwriter.NewWriter(opts.out, 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tNAME\tDURATION\tLEVEL\tUNLOCKED")
			for _, r := range rows {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%d\t%t\n", r.ID, r.Name, r.Duration, r.MinLevel, r.Unlocked)
			}
			return tw.Flush()
		},
	}
}

func newStartCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "start SESSION",
		Short: "Start a session by id or name",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			var info json.RawMessage
			path := "/sessions/" + url.PathEscape(args[0]) + "/start"
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, nil, &info); err != nil {
				return err
			}
			return opts.printJSON(info)
		},
	}
}

func newStopCmd(opts *rootOptions) *cobra.Command {
	var completed bool
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop the running session",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			q := url.Values{"completed": {strconv.FormatBool(completed)}}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/session/stop", q, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "session stopped")
			return nil
		},
	}
	cmd.Flags().BoolVar(&completed, "completed", false, "count the run as completed")
	return cmd
}

// newSimpleCmd builds a command that POSTs to path and reports success.
func newSimpleCmd(opts *rootOptions, use, short, path string) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "ok")
			return nil
		},
	}
}

func newAutonomyCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "autonomy",
		Short: "Control the autonomy scheduler",
	}

	start := &cobra.Command{
		Use:   "start",
		Short: "Start autonomy if enabled, consented and unlocked",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Started bool `json:"started"`
			}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/autonomy/start", nil, nil, &resp); err != nil {
				return err
			}
			if !resp.Started {
				return fmt.Errorf("autonomy not started: check autonomy.enabled, autonomy.consent and level")
			}
			fmt.Fprintln(opts.out, "autonomy started")
			return nil
		},
	}

	var reason string
	trigger := &cobra.Command{
		Use:   "trigger",
		Short: "Run one autonomous action now",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var resp struct {
				Action string `json:"action"`
			}
			body := map[string]string{"reason": reason}
			if err := opts.client().do(cmd.Context(), http.MethodPost, "/autonomy/trigger", nil, body, &resp); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, resp.Action)
			return nil
		},
	}
	trigger.Flags().StringVar(&reason, "reason", "manual", "trigger reason recorded with the action")

	var end bool
	pulse := &cobra.Command{
		Use:   "pulse KIND",
		Short: "Pulse the spiral or pink filter overlay",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			method, key := http.MethodPost, "started"
			if end {
				method, key = http.MethodDelete, "ended"
			}
			var resp map[string]bool
			path := "/autonomy/pulse/" + url.PathEscape(args[0])
			if err := opts.client().do(cmd.Context(), method, path, nil, nil, &resp); err != nil {
				return err
			}
			fmt.Fprintf(opts.out, "%s: %t\n", key, resp[key])
			return nil
		},
	}
	pulse.Flags().BoolVar(&end, "end", false, "end an active pulse early")

	cmd.AddCommand(
		start,
		newSimpleCmd(opts, "stop", "Stop autonomy", "/autonomy/stop"),
		newSimpleCmd(opts, "activity", "Report user activity", "/autonomy/activity"),
		trigger,
		pulse,
	)
	return cmd
}

func newHistoryCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Show recent session runs",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var runs json.RawMessage
			q := url.Values{"limit": {strconv.Itoa(limit)}}
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/history", q, nil, &runs); err != nil {
				return err
			}
			return opts.printJSON(runs)
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "number of runs to show")
	return cmd
}

func newCompleteCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "complete KIND",
		Short: "Report that a full-screen interaction finished",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			path := "/interactions/" + url.PathEscape(args[0]) + "/complete"
			if err := opts.client().do(cmd.Context(), http.MethodPost, path, nil, nil, nil); err != nil {
				return err
			}
			fmt.Fprintln(opts.out, "ok")
			return nil
		},
	}
}

func newSettingsCmd(opts *rootOptions) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "settings",
		Short: "Read or change effect settings",
	}
	get := &cobra.Command{
		Use:   "get",
		Short: "Print the current settings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			var s json.RawMessage
			if err := opts.client().do(cmd.Context(), http.MethodGet, "/settings", nil, nil, &s); err != nil {
				return err
			}
			return opts.printJSON(s)
		},
	}
	set := &cobra.Command{
		Use:   "set FIELD=VALUE...",
		Short: "Change one or more fields atomically",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patch, err := parseAssignments(args)
			if err != nil {
				return err
			}
			var s json.RawMessage
			if err := opts.client().do(cmd.Context(), http.MethodPatch, "/settings", nil, patch, &s); err != nil {
				return err
			}
			return opts.printJSON(s)
		},
	}
	cmd.AddCommand(get, set)
	return cmd
}

// parseAssignments turns field=value pairs into a patch. Values that parse
// as JSON literals keep their type; anything else is sent as a string.
func parseAssignments(args []string) (map[string]any, error) {
	patch := make(map[string]any, len(args))
	for _, arg := range args {
		field, raw, ok := strings.Cut(arg, "=")
		if !ok || field == "" {
			return nil, fmt.Errorf("invalid assignment %q, want field=value", arg)
		}
		var v any
		if err := json.Unmarshal([]byte(raw), &v); err != nil {
			v = raw
		}
		patch[field] = v
	}
	return patch, nil
}
