package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/gabriel-vasile/mimetype"
	"github.com/nao1215/markdown"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/bryanwahyu/caniclickit/internal/application/hover"
	"github.com/bryanwahyu/caniclickit/internal/application/messaging"
	"github.com/bryanwahyu/caniclickit/internal/domain/platform"
	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
	"github.com/bryanwahyu/caniclickit/internal/infra/browser"
	"github.com/bryanwahyu/caniclickit/internal/infra/page"
	"github.com/bryanwahyu/caniclickit/internal/infra/render"
	"github.com/bryanwahyu/caniclickit/internal/middleware"
)

const maxInspectBytes = 4 << 20

var errNoInput = errors.New("no HTML files matched")

// linkReport is one scanned link of an inspected page.
type linkReport struct {
	URL      string
	Result   *scans.ScanResult
	Decision hover.Decision
}

type pageReport struct {
	Path       string
	Location   string
	Restricted bool
	Links      []linkReport
	Skipped    int
	Badge      platform.BadgeState
}

// NewInspectCmd creates the inspect command.
func NewInspectCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "inspect <file|glob>...",
		Short: "Hover every external link of saved HTML pages and report verdicts",
		Long: `Load saved HTML pages into a headless page, hover every external link
through the content-script state machine and write a markdown report with
each verdict and what a click would do. Globs support ** (e.g. mail/**/*.html).
Every scanned link counts against today's quota.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := openApp(cmd)
			if err != nil {
				return err
			}
			defer a.close()

			files, err := expandInputs(args)
			if err != nil {
				return err
			}
			pageURL, _ := cmd.Flags().GetString("page-url")
			debounce, _ := cmd.Flags().GetDuration("debounce")
			if debounce <= 0 {
				debounce = a.cfg.Hover.Debounce
			}

			ctx := cmd.Context()
			board := browser.NewBoard()
			tracker := a.tracker()
			svc, err := a.scanService(ctx, tracker, board, nil)
			if err != nil {
				return err
			}
			defer svc.Wait()
			in := inspector{
				router:   messaging.NewRouter(svc, tracker, a.logger.Named("messages")),
				board:    board,
				debounce: debounce,
				wait:     a.cfg.Scan.Timeout*time.Duration(a.cfg.Scan.Retries+1) + debounce + time.Second,
				logger:   a.logger,
			}

			var reports []pageReport
			for i, f := range files {
				r, err := in.inspect(ctx, platform.TabID(i+1), f, pageURL)
				if err != nil {
					a.logger.Warn("skipping file", zap.String("path", f), zap.Error(err))
					continue
				}
				reports = append(reports, r)
			}
			if len(reports) == 0 {
				return errNoInput
			}

			out := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			counts, err := tracker.Peek(ctx)
			if err != nil {
				return err
			}
			return writeInspectReport(out, reports, fmt.Sprintf("%d/%d scans used today", counts.ScansToday, counts.DailyLimit))
		},
	}
	cmd.Flags().String("page-url", "", "URL the pages were saved from, for resolving relative links (default file:// path)")
	cmd.Flags().Duration("debounce", 0, "Hover debounce (default hover.debounce)")
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}

// expandInputs resolves each argument as a glob and keeps HTML files.
func expandInputs(args []string) ([]string, error) {
	seen := map[string]bool{}
	var files []string
	for _, arg := range args {
		matches, err := doublestar.FilepathGlob(arg)
		if err != nil {
			return nil, fmt.Errorf("bad pattern %q: %w", arg, err)
		}
		for _, m := range matches {
			if seen[m] {
				continue
			}
			seen[m] = true
			if ok, err := isHTML(m); err != nil || !ok {
				continue
			}
			files = append(files, m)
		}
	}
	if len(files) == 0 {
		return nil, errNoInput
	}
	return files, nil
}

func isHTML(path string) (bool, error) {
	info, err := os.Stat(path)
	if err != nil || info.IsDir() {
		return false, err
	}
	mt, err := mimetype.DetectFile(path)
	if err != nil {
		return false, err
	}
	return mt.Is("text/html"), nil
}

type inspector struct {
	router   *messaging.Router
	board    *browser.Board
	debounce time.Duration
	wait     time.Duration
	logger   *zap.Logger
}

func (in inspector) inspect(ctx context.Context, tab platform.TabID, path, pageURL string) (pageReport, error) {
	f, err := os.Open(path)
	if err != nil {
		return pageReport{}, err
	}
	raw, err := io.ReadAll(io.LimitReader(f, maxInspectBytes))
	_ = f.Close()
	if err != nil {
		return pageReport{}, err
	}
	if pageURL == "" {
		abs, err := filepath.Abs(path)
		if err != nil {
			return pageReport{}, err
		}
		pageURL = "file://" + filepath.ToSlash(abs)
	}
	p, err := page.New(pageURL, string(raw))
	if err != nil {
		return pageReport{}, err
	}

	m := hover.New(
		hover.Config{PageURL: pageURL, Debounce: in.debounce},
		hover.TimerScheduler{},
		hover.RouterMessenger{Router: in.router, Tab: tab, Ctx: ctx},
		render.NewPresenter(p),
		in.logger.Named("hover"),
	)

	rep := pageReport{Path: path, Location: pageURL, Restricted: m.Restricted()}
	seen := map[string]bool{}
	for _, href := range p.Links() {
		link, ok := hover.Qualify(href, pageURL)
		if !ok {
			rep.Skipped++
			continue
		}
		if seen[link] {
			continue
		}
		seen[link] = true

		result, err := in.hoverLink(ctx, m, href, link)
		if err != nil {
			return pageReport{}, err
		}
		rep.Links = append(rep.Links, linkReport{
			URL:      link,
			Result:   result,
			Decision: hover.Decide(result.Verdict, rep.Restricted),
		})
	}
	rep.Badge, _ = in.board.Get(tab)
	return rep, nil
}

// hoverLink points at href until the machine has a verdict for link.
func (in inspector) hoverLink(ctx context.Context, m *hover.Machine, href, link string) (*scans.ScanResult, error) {
	m.Dispatch(hover.PointerOver{Href: href, At: hover.Point{X: 120, Y: 120}})
	defer m.Dispatch(hover.PointerOut{Href: href})

	deadline := time.NewTimer(in.wait)
	defer deadline.Stop()
	tick := time.NewTicker(10 * time.Millisecond)
	defer tick.Stop()
	for {
		if r, ok := m.Result(link); ok {
			return r, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-deadline.C:
			return nil, fmt.Errorf("no verdict for %s after %s", link, in.wait)
		case <-tick.C:
		}
	}
}

func writeInspectReport(w io.Writer, reports []pageReport, footer string) error {
	md := markdown.NewMarkdown(w)
	md.H1("Link safety report")
	md.PlainText("")

	for _, r := range reports {
		md.H2(r.Path)
		md.PlainText("")
		md.Table(markdown.TableSet{
			Header: []string{"Property", "Value"},
			Rows: [][]string{
				{"Page", "`" + r.Location + "`"},
				{"Links scanned", strconv.Itoa(len(r.Links))},
				{"Links skipped", strconv.Itoa(r.Skipped)},
				{"Rendering", renderingText(r.Restricted)},
				{"Badge", badgeText(r.Badge)},
			},
		})
		md.PlainText("")

		if len(r.Links) == 0 {
			md.PlainText("No external links found.")
			md.PlainText("")
			continue
		}

		rows := make([][]string, 0, len(r.Links))
		worst := scans.VerdictSafe
		for _, l := range r.Links {
			if l.Result.Verdict.Rank() > worst.Rank() {
				worst = l.Result.Verdict
			}
			rows = append(rows, []string{
				"`" + l.URL + "`",
				string(l.Result.Verdict),
				string(l.Result.Confidence),
				l.Decision.Mode.String(),
				cell(middleware.SanitizeText(l.Result.Summary)),
			})
		}
		md.Table(markdown.TableSet{
			Header: []string{"Link", "Verdict", "Confidence", "On click", "Summary"},
			Rows:   rows,
		})
		md.PlainText("")

		switch {
		case worst.Dangerous():
			md.Cautionf("This page links to %s risk destinations. Clicks on them are blocked.", worst)
		case worst == scans.VerdictMedium:
			md.Warning("Some links are medium risk. They are shown with a warning but not blocked.")
		default:
			md.Tip("No risky links found.")
		}
		md.PlainText("")
	}

	md.PlainText("---")
	md.PlainText("")
	md.PlainText(footer)
	return md.Build()
}

func renderingText(restricted bool) string {
	if restricted {
		return "restricted (native dialogs)"
	}
	return "isolated overlay"
}

func badgeText(b platform.BadgeState) string {
	if b.Text == "" {
		return "none"
	}
	return b.Text + " " + b.Color
}

// cell keeps table rows on one line.
func cell(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	return strings.ReplaceAll(s, "|", `\|`)
}
