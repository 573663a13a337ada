package dom

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"golang.org/x/net/html"
)

// VisibleAttr is stamped by the browser adapter with the computed layout
// visibility of a control. It overrides the static heuristics.
const VisibleAttr = "data-jobfill-visible"

// Event is a dispatched event recorded by an HTMLDocument
type Event struct {
	Target Element
	Type   EventType
}

// HTMLDocument is a Document backed by a parsed HTML tree. Controls keep
// their state in attributes (value, checked, selected) so the tree can be
// re-rendered at any time.
type HTMLDocument struct {
	host string
	doc  *html.Node

	mu       sync.Mutex
	elements map[*html.Node]*htmlElement
	mirror   Mirror
	events   []Event
	onSubmit []func()
	onUnload []func()
}

// Parse reads an HTML page served from host
func Parse(r io.Reader, host string) (*HTMLDocument, error) {
	node, err := html.Parse(r)
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}
	return &HTMLDocument{
		host:     host,
		doc:      node,
		elements: make(map[*html.Node]*htmlElement),
	}, nil
}

// ParseString is Parse over a string
func ParseString(s, host string) (*HTMLDocument, error) {
	return Parse(strings.NewReader(s), host)
}

func (d *HTMLDocument) Host() string { return d.host }

func (d *HTMLDocument) Root() Element {
	for c := d.doc.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			return d.wrap(c)
		}
	}
	return nil
}

// SetMirror routes subsequent mutations to m as well
func (d *HTMLDocument) SetMirror(m Mirror) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.mirror = m
}

func (d *HTMLDocument) OnSubmit(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onSubmit = append(d.onSubmit, fn)
}

func (d *HTMLDocument) OnUnload(fn func()) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.onUnload = append(d.onUnload, fn)
}

// Submit runs the submit hooks in registration order
func (d *HTMLDocument) Submit() {
	d.record(Event{Type: EventSubmit})
	for _, fn := range d.hooks(&d.onSubmit) {
		fn()
	}
}

// Unload runs the unload hooks in registration order
func (d *HTMLDocument) Unload() {
	d.record(Event{Type: EventUnload})
	for _, fn := range d.hooks(&d.onUnload) {
		fn()
	}
}

// Events returns the events dispatched so far
func (d *HTMLDocument) Events() []Event {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Event, len(d.events))
	copy(out, d.events)
	return out
}

// Sync overwrites the state of el without mirroring or dispatching. It is
// used to pull values typed into a live page back into the tree.
func (d *HTMLDocument) Sync(el Element, value string, checked bool) {
	e, ok := el.(*htmlElement)
	if !ok {
		return
	}
	switch e.Tag() {
	case "select":
		_ = e.selectValue(value)
	case "textarea":
		e.setText(value)
	default:
		setAttr(e.n, "value", value)
		if t := InputType(e); t == "checkbox" || t == "radio" {
			toggleAttr(e.n, "checked", checked)
		}
	}
}

// Refresh asks the mirror, when it is a Refresher, to pull the live state
// of the page into the tree. A document without one is always current.
func (d *HTMLDocument) Refresh(ctx context.Context) error {
	if r, ok := d.currentMirror().(Refresher); ok {
		return r.Refresh(ctx)
	}
	return nil
}

// Render writes the current tree as HTML
func (d *HTMLDocument) Render(w io.Writer) error {
	return html.Render(w, d.doc)
}

func (d *HTMLDocument) hooks(list *[]func()) []func() {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]func(), len(*list))
	copy(out, *list)
	return out
}

func (d *HTMLDocument) record(ev Event) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.events = append(d.events, ev)
}

func (d *HTMLDocument) currentMirror() Mirror {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.mirror
}

func (d *HTMLDocument) wrap(n *html.Node) *htmlElement {
	if n == nil || n.Type != html.ElementNode {
		return nil
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	if e, ok := d.elements[n]; ok {
		return e
	}
	e := &htmlElement{doc: d, n: n}
	d.elements[n] = e
	return e
}

// htmlElement wraps one element node. Wrappers are cached per node so
// elements compare equal across lookups.
type htmlElement struct {
	doc *HTMLDocument
	n   *html.Node
}

func (e *htmlElement) Tag() string { return e.n.Data }

func (e *htmlElement) Attr(name string) string {
	v, _ := getAttr(e.n, name)
	return v
}

func (e *htmlElement) HasAttr(name string) bool {
	_, ok := getAttr(e.n, name)
	return ok
}

func (e *htmlElement) Parent() Element {
	if p := e.doc.wrap(e.n.Parent); p != nil {
		return p
	}
	return nil
}

func (e *htmlElement) PrevElementSibling() Element {
	for s := e.n.PrevSibling; s != nil; s = s.PrevSibling {
		if s.Type == html.ElementNode {
			return e.doc.wrap(s)
		}
	}
	return nil
}

func (e *htmlElement) Children() []Element {
	var out []Element
	for c := e.n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode {
			out = append(out, e.doc.wrap(c))
		}
	}
	return out
}

func (e *htmlElement) TextContent() string {
	return textOf(e.n)
}

func (e *htmlElement) Visible() bool {
	if v, ok := getAttr(e.n, VisibleAttr); ok {
		return v != "false"
	}
	if e.Tag() == "input" && InputType(e) == "hidden" {
		return false
	}
	for n := e.n; n != nil && n.Type == html.ElementNode; n = n.Parent {
		if _, hidden := getAttr(n, "hidden"); hidden {
			return false
		}
		style, _ := getAttr(n, "style")
		if displayNone(style) {
			return false
		}
	}
	return true
}

func (e *htmlElement) Value() string {
	switch e.Tag() {
	case "textarea":
		return textOf(e.n)
	case "select":
		opts := e.Options()
		for _, o := range opts {
			if o.Selected {
				return o.Value
			}
		}
		if len(opts) > 0 {
			return opts[0].Value
		}
		return ""
	}
	return e.Attr("value")
}

func (e *htmlElement) SetValue(value string) error {
	if m := e.doc.currentMirror(); m != nil {
		if err := m.SetValue(e, value); err != nil {
			return err
		}
	}
	switch e.Tag() {
	case "select":
		return e.selectValue(value)
	case "textarea":
		e.setText(value)
	default:
		setAttr(e.n, "value", value)
	}
	return nil
}

func (e *htmlElement) Checked() bool {
	return e.HasAttr("checked")
}

func (e *htmlElement) SetChecked(checked bool) error {
	if m := e.doc.currentMirror(); m != nil {
		if err := m.SetChecked(e, checked); err != nil {
			return err
		}
	}
	toggleAttr(e.n, "checked", checked)
	if checked && InputType(e) == "radio" {
		e.uncheckGroup()
	}
	return nil
}

// uncheckGroup clears the other radios sharing this one's name
func (e *htmlElement) uncheckGroup() {
	name := e.Attr("name")
	if name == "" {
		return
	}
	scope := Closest(e, Tag("form"))
	if scope == nil {
		scope = e.doc.Root()
	}
	for _, other := range FindAll(scope, func(el Element) bool {
		return el.Tag() == "input" && InputType(el) == "radio" && el.Attr("name") == name
	}) {
		if o, ok := other.(*htmlElement); ok && o != e {
			toggleAttr(o.n, "checked", false)
		}
	}
}

func (e *htmlElement) Options() []Option {
	if e.Tag() != "select" {
		return nil
	}
	var out []Option
	for _, el := range FindAll(e, Tag("option")) {
		o := el.(*htmlElement)
		out = append(out, Option{
			Text:     textOf(o.n),
			Value:    optionValue(o.n),
			Selected: o.HasAttr("selected"),
		})
	}
	return out
}

func (e *htmlElement) selectValue(value string) error {
	var matched bool
	for _, el := range FindAll(e, Tag("option")) {
		o := el.(*htmlElement)
		hit := !matched && optionValue(o.n) == value
		toggleAttr(o.n, "selected", hit)
		matched = matched || hit
	}
	if !matched {
		return fmt.Errorf("select has no option with value %q", value)
	}
	return nil
}

func (e *htmlElement) setText(value string) {
	for c := e.n.FirstChild; c != nil; {
		next := c.NextSibling
		e.n.RemoveChild(c)
		c = next
	}
	e.n.AppendChild(&html.Node{Type: html.TextNode, Data: value})
}

func (e *htmlElement) Dispatch(event EventType) error {
	e.doc.record(Event{Target: e, Type: event})
	if m := e.doc.currentMirror(); m != nil {
		return m.Dispatch(e, event)
	}
	return nil
}

func (e *htmlElement) HasClass(name string) bool {
	for _, c := range strings.Fields(e.Attr("class")) {
		if c == name {
			return true
		}
	}
	return false
}

func (e *htmlElement) AddClass(name string) error {
	if e.HasClass(name) {
		return nil
	}
	classes := append(strings.Fields(e.Attr("class")), name)
	return e.setClass(strings.Join(classes, " "))
}

func (e *htmlElement) RemoveClass(names ...string) error {
	drop := make(map[string]bool, len(names))
	for _, n := range names {
		drop[n] = true
	}
	var kept []string
	changed := false
	for _, c := range strings.Fields(e.Attr("class")) {
		if drop[c] {
			changed = true
			continue
		}
		kept = append(kept, c)
	}
	if !changed {
		return nil
	}
	return e.setClass(strings.Join(kept, " "))
}

func (e *htmlElement) setClass(class string) error {
	if m := e.doc.currentMirror(); m != nil {
		if err := m.SetClass(e, class); err != nil {
			return err
		}
	}
	setAttr(e.n, "class", class)
	return nil
}

func (e *htmlElement) Data(key string) (string, bool) {
	return getAttr(e.n, "data-"+key)
}

func (e *htmlElement) SetData(key, value string) error {
	if m := e.doc.currentMirror(); m != nil {
		if err := m.SetData(e, key, value); err != nil {
			return err
		}
	}
	setAttr(e.n, "data-"+key, value)
	return nil
}

func getAttr(n *html.Node, name string) (string, bool) {
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			return a.Val, true
		}
	}
	return "", false
}

func setAttr(n *html.Node, name, value string) {
	for i, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			n.Attr[i].Val = value
			return
		}
	}
	n.Attr = append(n.Attr, html.Attribute{Key: name, Val: value})
}

func removeAttr(n *html.Node, name string) {
	out := n.Attr[:0]
	for _, a := range n.Attr {
		if a.Namespace == "" && a.Key == name {
			continue
		}
		out = append(out, a)
	}
	n.Attr = out
}

func toggleAttr(n *html.Node, name string, on bool) {
	if on {
		setAttr(n, name, "")
		return
	}
	removeAttr(n, name)
}

func textOf(n *html.Node) string {
	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return sb.String()
}

func optionValue(n *html.Node) string {
	if v, ok := getAttr(n, "value"); ok {
		return v
	}
	return strings.Join(strings.Fields(textOf(n)), " ")
}

func displayNone(style string) bool {
	for _, decl := range strings.Split(style, ";") {
		prop, val, ok := strings.Cut(decl, ":")
		if !ok {
			continue
		}
		if strings.EqualFold(strings.TrimSpace(prop), "display") &&
			strings.EqualFold(strings.TrimSpace(val), "none") {
			return true
		}
	}
	return false
}
