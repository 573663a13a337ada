// Package dom defines the page capabilities the matcher, filler and learner
// need, independent of whether the page is a parsed HTML tree or a live browser
// tab.
package dom

import "context"

// EventType is the name of a DOM event
type EventType string

const (
	EventInput  EventType = "input"
	EventChange EventType = "change"
	EventSubmit EventType = "submit"
	EventUnload EventType = "beforeunload"
)

// Option is one entry of a select control
type Option struct {
	Text     string
	Value    string
	Selected bool
}

// Element is a node of the page tree. Structural reads never fail; state
// writes may, for example when a live page has navigated away.
type Element interface {
	Tag() string
	Attr(name string) string
	HasAttr(name string) bool
	Parent() Element
	PrevElementSibling() Element
	Children() []Element
	TextContent() string

	// Visible reports whether the element takes part in layout.
	Visible() bool

	Value() string
	SetValue(value string) error
	Checked() bool
	SetChecked(checked bool) error
	Options() []Option
	Dispatch(event EventType) error

	HasClass(name string) bool
	AddClass(name string) error
	RemoveClass(names ...string) error

	// Data reads a data-* annotation.
	Data(key string) (string, bool)
	SetData(key, value string) error
}

// Document is a page
type Document interface {
	Host() string
	Root() Element

	// OnSubmit registers a hook that runs when a form is submitted, before
	// any handler that could navigate away.
	OnSubmit(fn func())
	// OnUnload registers a best-effort hook for page teardown.
	OnUnload(fn func())
}

// Mirror receives every state mutation made through an HTMLDocument so that
// another representation of the same page can follow along.
type Mirror interface {
	SetValue(el Element, value string) error
	SetChecked(el Element, checked bool) error
	SetClass(el Element, class string) error
	SetData(el Element, key, value string) error
	Dispatch(el Element, event EventType) error
}

// Refresher is implemented by pages whose control state can change outside
// the engine, such as a live tab the user types into. Refresh pulls the
// current values in.
type Refresher interface {
	Refresh(ctx context.Context) error
}
