package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	appscans "github.com/bryanwahyu/caniclickit/internal/application/scans"
	"github.com/bryanwahyu/caniclickit/internal/domain/quota"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/browser"
	"github.com/bryanwahyu/caniclickit/internal/middleware"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <url>",
		Short: "Scan one URL the way a hovered link is scanned",
		Long: `Scan one URL through the same orchestrator the daemon uses. The scan
counts against today's quota; a service failure prints the fallback result.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := middleware.ValidateURL(args[0]); err != nil {
				return err
			}
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			ctx := cmd.Context()
			tracker := a.tracker()
			svc, err := a.scanService(ctx, tracker, browser.NewBoard(), nil)
			if err != nil {
				return err
			}
			defer svc.Wait()
			source, _ := cmd.Flags().GetString("source-page")
			result := svc.Scan(ctx, appscans.ScanCommand{URL: args[0], SourcePage: source, HoverContext: source != ""})
			counts, err := tracker.Peek(ctx)
			if err != nil {
				return err
			}

			if asJSON, _ := cmd.Flags().GetBool("json"); asJSON {
				enc := json.NewEncoder(cmd.OutOrStdout())
				enc.SetIndent("", "  ")
				return enc.Encode(struct {
					Result *scans.ScanResult `json:"result"`
					Quota  quota.Counts      `json:"quota"`
				}{result, counts})
			}
			printResult(cmd.OutOrStdout(), args[0], result, counts)
			return nil
		},
	}
	cmd.Flags().String("source-page", "", "Page the link was found on")
	cmd.Flags().Bool("json", false, "Print the raw result as JSON")
	return cmd
}

func printResult(w io.Writer, url string, r *scans.ScanResult, counts quota.Counts) {
	p := newPalette(w)
	fmt.Fprintf(w, "%s  %s (%s confidence)\n", url, p.verdict(r.Verdict), r.Confidence)
	if r.Summary != "" {
		fmt.Fprintf(w, "  %s\n", middleware.SanitizeText(r.Summary))
	}
	if r.ConsequenceWarning != "" {
		fmt.Fprintf(w, "  %s %s\n", p.danger.Sprint("!"), middleware.SanitizeText(r.ConsequenceWarning))
	}
	if r.SafeActionSuggestion != "" {
		fmt.Fprintf(w, "  %s %s\n", p.ok.Sprint("→"), middleware.SanitizeText(r.SafeActionSuggestion))
	}
	for _, s := range r.Signals {
		fmt.Fprintf(w, "  - %s: %v (%s)\n", s.Name, s.Value, s.RiskContribution)
	}
	if r.IsFallback() {
		fmt.Fprintln(w, p.muted.Sprint("  result produced locally; the scan service was not reached"))
	}
	fmt.Fprintf(w, "%s\n", p.muted.Sprintf("scans today: %d/%d (%d remaining)", counts.ScansToday, counts.DailyLimit, counts.Remaining))
}
