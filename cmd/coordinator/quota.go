package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

// NewQuotaCmd creates the quota command and its subcommands.
func NewQuotaCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "quota",
		Short: "Show today's advisory scan count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			counts, err := a.tracker().Peek(cmd.Context())
			if err != nil {
				return err
			}
			p := newPalette(cmd.OutOrStdout())
			remaining := p.ok.Sprint(counts.Remaining)
			if counts.Remaining == 0 {
				remaining = p.danger.Sprint(counts.Remaining)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "scans today: %d/%d, remaining: %s\n", counts.ScansToday, counts.DailyLimit, remaining)
			return nil
		},
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "reset",
		Short: "Zero today's scan count",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.tracker().Reset(cmd.Context()); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "quota reset")
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "limit <n>",
		Short: "Set the daily scan limit",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			n, err := strconv.Atoi(args[0])
			if err != nil {
				return fmt.Errorf("limit must be a number: %w", err)
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()
			if err := a.tracker().SetLimit(cmd.Context(), n); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "daily limit set to %d\n", n)
			return nil
		},
	})
	return cmd
}
