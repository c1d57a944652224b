// Package render draws the hover tooltip and the blocking interstitial onto
// a page Surface.
package render

// Size is a width/height pair in CSS pixels.
type Size struct {
	Width, Height float64
}

// Surface is the page a renderer draws on. Each root is identified by id and
// hosts its markup in a style-isolated subtree.
type Surface interface {
	// ProbeIsolated fails when the page forbids isolated roots.
	ProbeIsolated() error
	// Mount replaces any root already mounted under id.
	Mount(id, css, markup string) error
	Unmount(id string)
	Mounted(id string) bool
	Position(id string, left, top float64)
	Measure(id string) Size
	Viewport() Size
	// OnAction receives the data-action of clicked elements inside the root.
	OnAction(id string, fn func(action string))
	// OnKey adds a document-level key handler and returns its remover.
	OnKey(fn func(key string)) (remove func())
	Confirm(message string) bool
	Navigate(url string)
	// Open loads url in a new browsing context without opener access.
	Open(url string)
}
