package main

import (
	"fmt"
	"runtime/debug"

	"github.com/common-nighthawk/go-figure"
	"github.com/spf13/cobra"
)

// Set at build time via ldflags.
var (
	version = ""
	commit  = ""
)

// getVersion prefers ldflags, then module build info.
func getVersion() string {
	if version != "" {
		return version
	}
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" {
		return info.Main.Version
	}
	return "(devel)"
}

func getCommit() string {
	if commit != "" {
		return commit
	}
	if info, ok := debug.ReadBuildInfo(); ok {
		for _, s := range info.Settings {
			if s.Key == "vcs.revision" {
				if len(s.Value) > 7 {
					return s.Value[:7]
				}
				return s.Value
			}
		}
	}
	return "unknown"
}

// NewVersionCmd creates the version command.
func NewVersionCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			out := cmd.OutOrStdout()
			p := newPalette(out)
			if banner, _ := cmd.Flags().GetBool("banner"); banner {
				fmt.Fprint(out, p.danger.Sprint(figure.NewFigure("CICI", "doom", true).String()))
			}
			fmt.Fprintf(out, "coordinator version %s\n", p.accent.Sprint(getVersion()))
			fmt.Fprintf(out, "  commit: %s\n", getCommit())
			return nil
		},
	}
	cmd.Flags().Bool("banner", true, "Print the ASCII banner")
	return cmd
}
