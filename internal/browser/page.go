package browser

import (
	"context"
	"fmt"
	"net/url"
	"sync"

	"github.com/playwright-community/playwright-go"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
)

// Page is a live tab mirrored by a parsed dom.HTMLDocument. The engine reads
// and writes the parsed tree; every write is replayed into the tab, and the
// tab reports submit and unload back with the values the user typed.
type Page struct {
	page   playwright.Page
	logger *zap.Logger

	mu    sync.RWMutex
	doc   *dom.HTMLDocument
	index map[string]dom.Element

	events chan dom.EventType
}

var (
	_ dom.Mirror    = (*Page)(nil)
	_ dom.Refresher = (*Page)(nil)
)

// controlState is the live state of one control
type controlState struct {
	value   string
	checked bool
}

func newPage(page playwright.Page, logger *zap.Logger) (*Page, error) {
	p := &Page{
		page:   page,
		logger: logger,
		events: make(chan dom.EventType, 8),
	}
	if err := page.ExposeFunction(bindingName, p.onPageEvent); err != nil {
		return nil, fmt.Errorf("exposing page binding: %w", err)
	}
	if _, err := page.AddStyleTag(playwright.PageAddStyleTagOptions{
		Content: playwright.String(highlightCSS),
	}); err != nil {
		return nil, fmt.Errorf("adding highlight styles: %w", err)
	}
	return p, nil
}

// Snapshot stamps the controls of the live page and re-parses it. Hooks
// registered on an earlier document are not carried over.
func (p *Page) Snapshot(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	count, err := p.page.Evaluate(stampScript)
	if err != nil {
		return fmt.Errorf("stamping controls: %w", err)
	}
	content, err := p.page.Content()
	if err != nil {
		return fmt.Errorf("reading page content: %w", err)
	}

	doc, err := dom.ParseString(content, hostOf(p.page.URL()))
	if err != nil {
		return err
	}
	doc.SetMirror(p)

	p.mu.Lock()
	p.doc = doc
	p.index = indexControls(doc)
	p.mu.Unlock()

	p.logger.Debug("page snapshot",
		zap.String("host", doc.Host()),
		zap.Any("controls", count),
	)
	return nil
}

// Refresh pulls the values currently shown in the tab into the tree, so
// reads see what the user typed since the last snapshot
func (p *Page) Refresh(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	raw, err := p.page.Evaluate(collectScript)
	if err != nil {
		return fmt.Errorf("collecting control state: %w", err)
	}
	p.apply(parseStates(raw))
	return nil
}

// Document returns the current parsed tree
func (p *Page) Document() *dom.HTMLDocument {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.doc
}

// Events reports submit and unload after the document hooks have run
func (p *Page) Events() <-chan dom.EventType {
	return p.events
}

// URL returns the address of the tab
func (p *Page) URL() string {
	return p.page.URL()
}

// Close closes the tab
func (p *Page) Close() error {
	return p.page.Close()
}

func (p *Page) SetValue(el dom.Element, value string) error {
	return p.evaluate(el, "set value", setValueScript, value)
}

func (p *Page) SetChecked(el dom.Element, checked bool) error {
	return p.evaluate(el, "set checked", setCheckedScript, checked)
}

func (p *Page) SetClass(el dom.Element, class string) error {
	return p.evaluate(el, "set class", setClassScript, class)
}

func (p *Page) SetData(el dom.Element, key, value string) error {
	return p.evaluate(el, "set data", setDataScript, []string{key, value})
}

func (p *Page) Dispatch(el dom.Element, event dom.EventType) error {
	selector, ok := selectorFor(el)
	if !ok {
		return nil
	}
	if err := p.page.Locator(selector).DispatchEvent(string(event), nil); err != nil {
		return fmt.Errorf("dispatch %s on %s: %w", event, selector, err)
	}
	return nil
}

// evaluate runs script against the live twin of el. Elements that were not
// stamped have no twin and are left alone.
func (p *Page) evaluate(el dom.Element, op, script string, arg any) error {
	selector, ok := selectorFor(el)
	if !ok {
		return nil
	}
	if _, err := p.page.Locator(selector).Evaluate(script, arg); err != nil {
		return fmt.Errorf("%s on %s: %w", op, selector, err)
	}
	return nil
}

// onPageEvent is the exposed binding. It returns at once so the page is not
// held up; the document hooks run on their own goroutine.
func (p *Page) onPageEvent(args ...any) any {
	if len(args) == 0 {
		return nil
	}
	kind, _ := args[0].(string)
	var states map[string]controlState
	if len(args) > 1 {
		states = parseStates(args[1])
	}
	go p.handle(dom.EventType(kind), states)
	return nil
}

// apply writes reported control states into the tree. It returns the
// document, or nil before the first snapshot.
func (p *Page) apply(states map[string]controlState) *dom.HTMLDocument {
	p.mu.RLock()
	doc, index := p.doc, p.index
	p.mu.RUnlock()
	if doc == nil {
		return nil
	}

	for idx, st := range states {
		if el, ok := index[idx]; ok {
			doc.Sync(el, st.value, st.checked)
		}
	}
	return doc
}

// handle pulls the live values into the tree, then runs the hooks
func (p *Page) handle(kind dom.EventType, states map[string]controlState) {
	doc := p.apply(states)
	if doc == nil {
		return
	}

	switch kind {
	case dom.EventSubmit:
		doc.Submit()
	case dom.EventUnload:
		doc.Unload()
	default:
		p.logger.Warn("unknown page event", zap.String("event", string(kind)))
		return
	}

	select {
	case p.events <- kind:
	default:
	}
}

func selectorFor(el dom.Element) (string, bool) {
	if el == nil {
		return "", false
	}
	idx := el.Attr(IndexAttr)
	if idx == "" {
		return "", false
	}
	return fmt.Sprintf(`[%s="%s"]`, IndexAttr, idx), true
}

// indexControls maps stamp values to the parsed controls
func indexControls(doc *dom.HTMLDocument) map[string]dom.Element {
	index := make(map[string]dom.Element)
	root := doc.Root()
	if root == nil {
		return index
	}
	for _, el := range dom.FindAll(root, func(el dom.Element) bool { return el.HasAttr(IndexAttr) }) {
		index[el.Attr(IndexAttr)] = el
	}
	return index
}

// parseStates decodes the binding payload {idx: {value, checked}}
func parseStates(raw any) map[string]controlState {
	entries, ok := raw.(map[string]any)
	if !ok {
		return nil
	}
	states := make(map[string]controlState, len(entries))
	for idx, entry := range entries {
		fields, ok := entry.(map[string]any)
		if !ok {
			continue
		}
		var st controlState
		st.value, _ = fields["value"].(string)
		st.checked, _ = fields["checked"].(bool)
		states[idx] = st
	}
	return states
}

func hostOf(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return u.Hostname()
}
