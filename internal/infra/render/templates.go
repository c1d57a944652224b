package render

import (
	"bytes"
	"fmt"
	"html/template"

	"github.com/bryanwahyu/caniclickit/internal/domain/advisory"
)

const urlDisplayMax = 60

const tooltipCSS = `
:host { all: initial; position: fixed; z-index: 999998; pointer-events: none;
  font-family: 'Inter', -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
.cici-tooltip { background: #FFFFFF; border: 1px solid #D0D5DD; border-left: 4px solid #D0D5DD;
  border-radius: 6px; box-shadow: 0 4px 16px rgba(0,0,0,.12); padding: 12px 14px;
  max-width: 320px; min-width: 200px; font-size: 13px; line-height: 1.4; color: #344054; }
.cici-tooltip__header { display: flex; align-items: center; gap: 8px; margin-bottom: 6px; }
.cici-tooltip__dot { width: 8px; height: 8px; border-radius: 50%; flex-shrink: 0; }
.cici-tooltip__title { font-weight: 600; font-size: 14px; color: #101828; }
.cici-tooltip__confidence { font-size: 11px; color: #667085; margin-left: auto; }
.cici-tooltip__summary { font-size: 12px; margin-bottom: 8px; }
.cici-tooltip__meta { font-size: 11px; color: #667085; margin-bottom: 6px; }
.cici-tooltip__url { font-size: 11px; color: #98A2B3; overflow: hidden; text-overflow: ellipsis; white-space: nowrap; }
.cici-tooltip__spinner { width: 14px; height: 14px; border: 2px solid #D0D5DD; border-top-color: #2E90FA;
  border-radius: 50%; animation: cici-spin .8s linear infinite; }
@keyframes cici-spin { to { transform: rotate(360deg); } }
`

const interstitialCSS = `
:host { all: initial; position: fixed; inset: 0; z-index: 999999;
  font-family: 'Inter', -apple-system, BlinkMacSystemFont, 'Segoe UI', Roboto, sans-serif; }
.cici-interstitial { position: fixed; inset: 0; display: flex; align-items: center; justify-content: center;
  background: rgba(16,24,40,.7); backdrop-filter: blur(6px); }
.cici-interstitial__card { background: #FFFFFF; border-radius: 12px; max-width: 480px;
  width: calc(100% - 32px); padding: 32px; text-align: center; }
.cici-interstitial__title { font-size: 20px; font-weight: 700; color: #101828; margin-bottom: 8px; }
.cici-interstitial__threat { display: inline-block; font-size: 12px; font-weight: 600; text-transform: uppercase;
  padding: 4px 10px; border-radius: 16px; background: #FEF3F2; color: #D92D20; margin-bottom: 16px; }
.cici-interstitial__summary { font-size: 15px; color: #344054; margin-bottom: 12px; }
.cici-interstitial__consequence { font-size: 13px; color: #D92D20; background: #FEF3F2;
  border: 1px solid #FECDCA; border-radius: 8px; padding: 12px 16px; margin-bottom: 12px; text-align: left; }
.cici-interstitial__safe-action { font-size: 13px; color: #027A48; background: #ECFDF3;
  border: 1px solid #ABEFC6; border-radius: 8px; padding: 12px 16px; margin-bottom: 24px; text-align: left; }
.cici-interstitial__actions { display: flex; flex-direction: column; gap: 10px; margin-bottom: 16px; }
.cici-interstitial__btn-primary { padding: 12px 24px; background: #2E90FA; color: #FFFFFF; font-weight: 600;
  border: none; border-radius: 8px; cursor: pointer; }
.cici-interstitial__btn-secondary { padding: 10px 20px; background: transparent; color: #667085;
  border: 1px solid #D0D5DD; border-radius: 8px; cursor: pointer; }
.cici-interstitial__recovery-link { display: block; font-size: 13px; color: #2E90FA; margin-bottom: 16px; cursor: pointer; }
.cici-interstitial__disclaimer { font-size: 11px; color: #98A2B3; }
`

var templates = template.Must(template.New("render").Parse(`
{{define "loading"}}<div class="cici-tooltip" style="border-left-color: #D0D5DD">
  <div class="cici-tooltip__header">
    <span class="cici-tooltip__spinner"></span>
    <span class="cici-tooltip__title">Analyzing…</span>
  </div>
  <div class="cici-tooltip__url">{{.URL}}</div>
</div>{{end}}

{{define "tooltip"}}<div class="cici-tooltip" data-verdict="{{.Verdict}}" style="border-left-color: {{.Color}}">
  <div class="cici-tooltip__header">
    <span class="cici-tooltip__dot" style="background: {{.Color}}"></span>
    <span class="cici-tooltip__title">{{.Label}}</span>
    <span class="cici-tooltip__confidence">{{.Confidence}}</span>
  </div>
  <div class="cici-tooltip__summary">{{.Summary}}</div>
  <div class="cici-tooltip__meta"><span class="cici-tooltip__domain-age">{{.DomainAge}}</span></div>
  <div class="cici-tooltip__url">{{.URL}}</div>
</div>{{end}}

{{define "interstitial"}}<div class="cici-interstitial" data-verdict="{{.Verdict}}">
  <div class="cici-interstitial__card">
    <div class="cici-interstitial__icon">⚠️</div>
    <div class="cici-interstitial__title">This link may be dangerous</div>
    <div class="cici-interstitial__threat">{{.ThreatLabel}}</div>
    <div class="cici-interstitial__summary">{{.Summary}}</div>
    <div class="cici-interstitial__consequence"><strong>What could happen:</strong> {{.Consequence}}</div>
    <div class="cici-interstitial__safe-action"><strong>What to do instead:</strong> {{.SafeAction}}</div>
    <div class="cici-interstitial__actions">
      <button class="cici-interstitial__btn-primary" data-action="go-back">Go Back to Safety</button>
      <button class="cici-interstitial__btn-secondary" data-action="proceed">Proceed Anyway</button>
    </div>
    <a class="cici-interstitial__recovery-link" data-action="recovery">What do I do now?</a>
    <div class="cici-interstitial__disclaimer">This analysis is our best assessment based on available signals.
      Always verify directly with the sender if you are unsure. This guidance is informational and not a
      substitute for professional security or legal advice.</div>
  </div>
</div>{{end}}
`))

type tooltipView struct {
	URL        string
	Verdict    string
	Color      string
	Label      string
	Confidence string
	Summary    string
	DomainAge  string
}

type interstitialView struct {
	Verdict     string
	ThreatLabel string
	Summary     string
	Consequence string
	SafeAction  string
}

// TooltipMarkup renders d. Every field is inserted as text.
func TooltipMarkup(d advisory.TooltipData) (string, error) {
	if d.Loading {
		return execute("loading", tooltipView{URL: advisory.Truncate(d.URL, urlDisplayMax)})
	}
	return execute("tooltip", tooltipView{
		URL:        advisory.Truncate(d.URL, urlDisplayMax),
		Verdict:    string(d.Verdict),
		Color:      advisory.VerdictColor(d.Verdict),
		Label:      advisory.VerdictLabel(d.Verdict),
		Confidence: advisory.ConfidenceLabel(d.Confidence),
		Summary:    d.Summary,
		DomainAge:  d.DomainAge(),
	})
}

// InterstitialMarkup renders d. Every field is inserted as text.
func InterstitialMarkup(d advisory.InterstitialData) (string, error) {
	return execute("interstitial", interstitialView{
		Verdict:     string(d.Verdict),
		ThreatLabel: d.ThreatLabel(),
		Summary:     d.ThreatSummary,
		Consequence: d.ConsequenceWarning,
		SafeAction:  d.SafeActionSuggestion,
	})
}

func execute(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("render %s: %w", name, err)
	}
	return buf.String(), nil
}
