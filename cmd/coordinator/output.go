package main

import (
	"io"
	"os"

	"github.com/fatih/color"
	"golang.org/x/term"

	"github.com/bryanwahyu/caniclickit/internal/domain/scans"
)

// palette colors CLI output. Colors are off unless w is a terminal.
type palette struct {
	danger, warn, ok, muted, accent *color.Color
}

func newPalette(w io.Writer) palette {
	p := palette{
		danger: color.New(color.FgRed, color.Bold),
		warn:   color.New(color.FgYellow),
		ok:     color.New(color.FgGreen),
		muted:  color.New(color.FgHiBlack),
		accent: color.New(color.FgCyan),
	}
	if !isTerminal(w) {
		for _, c := range []*color.Color{p.danger, p.warn, p.ok, p.muted, p.accent} {
			c.DisableColor()
		}
	}
	return p
}

func isTerminal(w io.Writer) bool {
	if os.Getenv("NO_COLOR") != "" {
		return false
	}
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

func (p palette) verdict(v scans.Verdict) string {
	switch v {
	case scans.VerdictCritical, scans.VerdictHigh:
		return p.danger.Sprint(v)
	case scans.VerdictMedium:
		return p.warn.Sprint(v)
	case scans.VerdictLow, scans.VerdictSafe:
		return p.ok.Sprint(v)
	}
	return p.muted.Sprint(v)
}
