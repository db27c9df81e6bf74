package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/site-shields/internal/bravery"
	"github.com/JakeFAU/site-shields/internal/hostpattern"
	"github.com/JakeFAU/site-shields/internal/sitesettings"
)

func newResolveCmd() *cobra.Command {
	var (
		private bool
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "resolve URL",
		Short: "Show the site settings and active protections for a URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			appInstance, err := resolveApp(cmd.Context())
			if err != nil {
				return err
			}
			settings, res := appInstance.Manager().Active(args[0], private)
			if asJSON {
				return writeResolveJSON(cmd.OutOrStdout(), args[0], settings, res)
			}
			return writeResolveText(cmd.OutOrStdout(), settings, res)
		},
	}
	cmd.Flags().BoolVar(&private, "private", false, "include temporary (private browsing) settings")
	cmd.Flags().BoolVar(&asJSON, "json", false, "print JSON instead of text")
	return cmd
}

func writeResolveJSON(w io.Writer, location string, settings bravery.Settings, res sitesettings.Resolution) error {
	site := res.Settings
	if site == nil {
		site = sitesettings.Record{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(map[string]any{
		"url":     location,
		"matched": res.Matched,
		"site":    site,
		"active":  settings,
	}); err != nil {
		return fmt.Errorf("encode resolution: %w", err)
	}
	return nil
}

func writeResolveText(w io.Writer, settings bravery.Settings, res sitesettings.Resolution) error {
	var b strings.Builder
	if len(res.Matched) == 0 {
		b.WriteString("matched: (none)\n")
	} else {
		fmt.Fprintf(&b, "matched: %s\n", strings.Join(res.Matched, ", "))
	}
	rec := settings.Record()
	for _, key := range rec.Keys() {
		if key == bravery.KeyAdInsertion {
			continue
		}
		v, _ := rec.Get(key)
		fmt.Fprintf(&b, "%-26s %s\n", key, v)
	}
	fmt.Fprintf(&b, "%-26s enabled=%t url=%s\n", bravery.KeyAdInsertion, settings.AdInsertion.Enabled, settings.AdInsertion.URL)
	if _, err := io.WriteString(w, b.String()); err != nil {
		return fmt.Errorf("write resolution: %w", err)
	}
	return nil
}

func newPatternsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "patterns URL",
		Short: "List candidate host patterns for a URL, most specific first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			patterns := slices.Collect(hostpattern.Candidates(args[0]))
			if len(patterns) == 0 {
				return fmt.Errorf("no patterns: %q is not an absolute URL", args[0])
			}
			for _, p := range patterns {
				if _, err := fmt.Fprintln(cmd.OutOrStdout(), p); err != nil {
					return fmt.Errorf("write pattern: %w", err)
				}
			}
			return nil
		},
	}
}
