// Package page is a headless page: an HTML document that renderers mount
// onto and that tests or the CLI drive like a user would.
package page

import (
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"

	"github.com/bryanwahyu/caniclickit/internal/infra/render"
)

var (
	ErrIsolationBlocked = errors.New("page blocks isolated roots")
	ErrNoRoot           = errors.New("root not mounted")
	ErrNoAction         = errors.New("no element with that action")
)

var _ render.Surface = (*Page)(nil)

type root struct {
	host      *html.Node
	css       string
	left, top float64
	onAction  func(string)
}

// Page is safe for concurrent use. Handlers are always called without the
// page lock held.
type Page struct {
	mu       sync.Mutex
	location string
	doc      *goquery.Document
	body     *html.Node
	roots    map[string]*root
	keys     map[int]func(string)
	nextKey  int
	opened   []string
	dialogs  []string

	blocked  bool
	viewport render.Size
	measure  func(id string) render.Size
	confirm  func(message string) bool
}

type Option func(*Page)

// WithIsolationBlocked simulates a page whose CSP forbids isolated roots.
func WithIsolationBlocked() Option { return func(p *Page) { p.blocked = true } }

func WithViewport(s render.Size) Option { return func(p *Page) { p.viewport = s } }

// WithMeasure overrides the rendered size of mounted roots.
func WithMeasure(fn func(id string) render.Size) Option { return func(p *Page) { p.measure = fn } }

// WithConfirm sets how native confirmation dialogs are answered. The
// default answer is Cancel.
func WithConfirm(fn func(message string) bool) Option { return func(p *Page) { p.confirm = fn } }

// New parses markup as the document loaded at location.
func New(location, markup string, opts ...Option) (*Page, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(markup))
	if err != nil {
		return nil, fmt.Errorf("parse page: %w", err)
	}
	body := doc.Find("body").Get(0)
	if body == nil {
		return nil, fmt.Errorf("parse page: no body")
	}
	p := &Page{
		location: location,
		doc:      doc,
		body:     body,
		roots:    map[string]*root{},
		keys:     map[int]func(string){},
		viewport: render.Size{Width: 1280, Height: 800},
		measure:  defaultMeasure,
		confirm:  func(string) bool { return false },
	}
	for _, o := range opts {
		o(p)
	}
	return p, nil
}

func defaultMeasure(id string) render.Size {
	if id == render.InterstitialID {
		return render.Size{Width: 480, Height: 520}
	}
	return render.Size{Width: 280, Height: 110}
}

func (p *Page) Location() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.location
}

// Links returns the href of every anchor in document order.
func (p *Page) Links() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []string
	p.doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
		href, _ := s.Attr("href")
		out = append(out, href)
	})
	return out
}

func (p *Page) ProbeIsolated() error {
	if p.blocked {
		return ErrIsolationBlocked
	}
	return nil
}

func (p *Page) Mount(id, css, markup string) error {
	if p.blocked {
		return ErrIsolationBlocked
	}
	host := &html.Node{Type: html.ElementNode, Data: "div", DataAtom: atom.Div,
		Attr: []html.Attribute{{Key: "id", Val: id}}}
	nodes, err := html.ParseFragment(strings.NewReader(markup), host)
	if err != nil {
		return fmt.Errorf("mount %s: %w", id, err)
	}
	for _, n := range nodes {
		host.AppendChild(n)
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	p.unmountLocked(id)
	p.body.AppendChild(host)
	p.roots[id] = &root{host: host, css: css}
	return nil
}

func (p *Page) Unmount(id string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.unmountLocked(id)
}

func (p *Page) unmountLocked(id string) {
	r, ok := p.roots[id]
	if !ok {
		return
	}
	if r.host.Parent != nil {
		r.host.Parent.RemoveChild(r.host)
	}
	delete(p.roots, id)
}

func (p *Page) Mounted(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.roots[id]
	return ok
}

func (p *Page) Position(id string, left, top float64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.roots[id]; ok {
		r.left, r.top = left, top
	}
}

// PositionOf reports where a root was placed.
func (p *Page) PositionOf(id string) (left, top float64, ok bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.roots[id]
	if !ok {
		return 0, 0, false
	}
	return r.left, r.top, true
}

func (p *Page) Measure(id string) render.Size { return p.measure(id) }

func (p *Page) Viewport() render.Size { return p.viewport }

func (p *Page) OnAction(id string, fn func(string)) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.roots[id]; ok {
		r.onAction = fn
	}
}

func (p *Page) OnKey(fn func(string)) func() {
	p.mu.Lock()
	defer p.mu.Unlock()
	k := p.nextKey
	p.nextKey++
	p.keys[k] = fn
	return func() {
		p.mu.Lock()
		defer p.mu.Unlock()
		delete(p.keys, k)
	}
}

func (p *Page) Confirm(message string) bool {
	p.mu.Lock()
	p.dialogs = append(p.dialogs, message)
	fn := p.confirm
	p.mu.Unlock()
	return fn(message)
}

func (p *Page) Navigate(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.location = url
}

func (p *Page) Open(url string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.opened = append(p.opened, url)
}

// Query selects inside a mounted root.
func (p *Page) Query(id, selector string) (*goquery.Selection, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.roots[id]
	if !ok {
		return nil, ErrNoRoot
	}
	return goquery.NewDocumentFromNode(r.host).Find(selector), nil
}

// Text returns the text content of a mounted root.
func (p *Page) Text(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	r, ok := p.roots[id]
	if !ok {
		return ""
	}
	return goquery.NewDocumentFromNode(r.host).Text()
}

// Stylesheet returns the isolated CSS of a mounted root.
func (p *Page) Stylesheet(id string) string {
	p.mu.Lock()
	defer p.mu.Unlock()
	if r, ok := p.roots[id]; ok {
		return r.css
	}
	return ""
}

// ClickAction clicks the element carrying data-action inside a root.
func (p *Page) ClickAction(id, action string) error {
	p.mu.Lock()
	r, ok := p.roots[id]
	if !ok {
		p.mu.Unlock()
		return ErrNoRoot
	}
	found := goquery.NewDocumentFromNode(r.host).Find(fmt.Sprintf(`[data-action=%q]`, action)).Length() > 0
	fn := r.onAction
	p.mu.Unlock()

	if !found {
		return fmt.Errorf("%w: %s", ErrNoAction, action)
	}
	if fn != nil {
		fn(action)
	}
	return nil
}

// PressKey delivers a keydown to every document-level handler.
func (p *Page) PressKey(key string) {
	p.mu.Lock()
	handlers := make([]func(string), 0, len(p.keys))
	for _, fn := range p.keys {
		handlers = append(handlers, fn)
	}
	p.mu.Unlock()
	for _, fn := range handlers {
		fn(key)
	}
}

// Dialogs returns every native confirmation message shown so far.
func (p *Page) Dialogs() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.dialogs...)
}

func (p *Page) Opened() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]string(nil), p.opened...)
}

// HTML serializes the current document, mounted roots included.
func (p *Page) HTML() (string, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return goquery.OuterHtml(p.doc.Selection)
}
