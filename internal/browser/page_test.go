package browser

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobfill/jobfill/internal/config"
	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/repository/memory"
	"github.com/jobfill/jobfill/internal/services/autofill"
	"github.com/jobfill/jobfill/internal/services/background"
)

const stampedForm = `<html><body><form>
<label for="fn">First Name</label><input id="fn" name="first_name" data-jobfill-idx="0">
<input type="checkbox" id="ok" name="terms" data-jobfill-idx="1">
<select id="sp" data-jobfill-idx="2"><option value="">Select</option><option>Yes</option><option>No</option></select>
<div id="plain"></div>
</form></body></html>`

func stampedPage(t *testing.T) *Page {
	t.Helper()
	doc, err := dom.ParseString(stampedForm, "jobs.lever.co")
	require.NoError(t, err)
	return &Page{
		logger: zaptest.NewLogger(t),
		doc:    doc,
		index:  indexControls(doc),
		events: make(chan dom.EventType, 8),
	}
}

func TestIndexControls(t *testing.T) {
	p := stampedPage(t)

	require.Len(t, p.index, 3)
	assert.Equal(t, "fn", p.index["0"].Attr("id"))
	assert.Equal(t, "sp", p.index["2"].Attr("id"))
}

func TestSelectorFor(t *testing.T) {
	p := stampedPage(t)
	root := p.doc.Root()

	selector, ok := selectorFor(dom.ByID(root, "ok"))
	assert.True(t, ok)
	assert.Equal(t, `[data-jobfill-idx="1"]`, selector)

	_, ok = selectorFor(dom.ByID(root, "plain"))
	assert.False(t, ok, "unstamped elements have no live twin")

	_, ok = selectorFor(nil)
	assert.False(t, ok)
}

func TestParseStates(t *testing.T) {
	states := parseStates(map[string]any{
		"0": map[string]any{"value": "Janet", "checked": false},
		"1": map[string]any{"value": "on", "checked": true},
		"2": "garbage",
	})

	assert.Equal(t, map[string]controlState{
		"0": {value: "Janet"},
		"1": {value: "on", checked: true},
	}, states)

	assert.Nil(t, parseStates("nope"))
}

func TestPage_HandleSyncsBeforeHooks(t *testing.T) {
	p := stampedPage(t)

	var seen []string
	p.doc.OnSubmit(func() {
		root := p.doc.Root()
		seen = append(seen,
			dom.ByID(root, "fn").Value(),
			dom.ByID(root, "sp").Value(),
		)
		assert.True(t, dom.ByID(root, "ok").Checked())
	})

	p.handle(dom.EventSubmit, map[string]controlState{
		"0":  {value: "Janet"},
		"1":  {value: "on", checked: true},
		"2":  {value: "No"},
		"99": {value: "ignored"},
	})

	assert.Equal(t, []string{"Janet", "No"}, seen)
	select {
	case ev := <-p.Events():
		assert.Equal(t, dom.EventSubmit, ev)
	default:
		t.Fatal("expected a submit event")
	}
}

func TestPage_ApplyWithoutHooks(t *testing.T) {
	p := stampedPage(t)
	submits := 0
	p.doc.OnSubmit(func() { submits++ })

	doc := p.apply(map[string]controlState{"0": {value: "Janet"}, "2": {value: "Yes"}})
	require.NotNil(t, doc)

	root := doc.Root()
	assert.Equal(t, "Janet", dom.ByID(root, "fn").Value())
	assert.Equal(t, "Yes", dom.ByID(root, "sp").Value())
	assert.Zero(t, submits, "a refresh runs no hooks")
	assert.Empty(t, p.events)

	assert.Nil(t, (&Page{}).apply(nil), "nothing to apply before the first snapshot")
}

func TestPage_RefreshCanceled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	assert.ErrorIs(t, stampedPage(t).Refresh(ctx), context.Canceled)
}

func TestPage_HandleUnloadAndUnknown(t *testing.T) {
	p := stampedPage(t)

	unloads := 0
	p.doc.OnUnload(func() { unloads++ })

	p.handle(dom.EventUnload, nil)
	p.handle("focus", nil)

	assert.Equal(t, 1, unloads)
	assert.Len(t, p.events, 1, "unknown events are not reported")
}

func TestHostOf(t *testing.T) {
	assert.Equal(t, "boards.greenhouse.io", hostOf("https://boards.greenhouse.io/acme/jobs/1?gh_src=x"))
	assert.Equal(t, "127.0.0.1", hostOf("http://127.0.0.1:8080/form"))
	assert.Equal(t, "", hostOf("::not a url"))
}

func TestEngineName(t *testing.T) {
	assert.Equal(t, "chromium", engineName(""))
	assert.Equal(t, "firefox", engineName("firefox"))
	assert.Equal(t, "webkit", engineName("webkit"))
	assert.Equal(t, "chromium", engineName("netscape"))
}

func launchHeadless(t *testing.T) *Session {
	t.Helper()
	if testing.Short() {
		t.Skip("Skipping browser test in short mode")
	}

	session, err := Launch(config.BrowserConfig{
		Engine:         "chromium",
		Headless:       true,
		NavigationWait: 30 * time.Second,
		ActionTimeout:  5 * time.Second,
	}, zaptest.NewLogger(t))
	if err != nil {
		t.Skipf("playwright unavailable: %v", err)
	}
	t.Cleanup(func() { session.Close() })
	return session
}

type seed struct{ profile *domain.Profile }

func (s seed) LoadProfile(ctx context.Context) (*domain.Profile, error) {
	return s.profile, nil
}

func TestSession_LiveCorrectionsWithoutSubmit(t *testing.T) {
	session := launchHeadless(t)
	ctx := context.Background()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><form onsubmit="return false">
<label for="fn">First Name</label><input id="fn" name="first_name">
<label for="ln">Last Name</label><input id="ln" name="last_name">
</form></body></html>`))
	}))
	defer server.Close()

	page, err := session.Open(ctx, server.URL)
	require.NoError(t, err)
	defer page.Close()

	svc := background.NewService(memory.New(), zaptest.NewLogger(t))
	require.NoError(t, svc.Install(ctx, seed{&domain.Profile{
		Personal: domain.Personal{FirstName: "Jane", LastName: "Doe"},
	}}))
	agent := autofill.New(page.Document(), svc, nil, zaptest.NewLogger(t))

	// typed before the first fill
	require.NoError(t, page.page.Locator("#ln").Fill("Smith"))

	resp := agent.Fill(ctx)
	require.True(t, resp.Success, resp.Error)
	assert.Equal(t, 1, resp.Results.Filled)
	assert.Equal(t, 1, resp.Results.Failed)

	live, err := page.page.Locator("#fn").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Jane", live)
	live, err = page.page.Locator("#ln").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Smith", live)

	require.NoError(t, page.page.Locator("#fn").Fill("Janet"))
	require.NoError(t, svc.UpdateProfile(ctx, domain.UpdateProfileRequest{
		"personal": []byte(`{"firstName":"Janet","lastName":"Doe"}`),
	}))

	assert.Equal(t, 1, agent.SaveCorrections(ctx).Saved)

	// a second pass leaves the typed value alone
	require.True(t, agent.Fill(ctx).Success)
	live, err = page.page.Locator("#fn").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Janet", live)
}

func TestSession_LivePage(t *testing.T) {
	session := launchHeadless(t)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(`<html><body><form onsubmit="return false">
<label for="fn">First Name</label><input id="fn" name="first_name">
<input type="hidden" id="tok" name="token" value="x">
<button type="submit" id="go">Apply</button>
</form></body></html>`))
	}))
	defer server.Close()

	page, err := session.Open(context.Background(), server.URL)
	require.NoError(t, err)
	defer page.Close()

	doc := page.Document()
	assert.Equal(t, "127.0.0.1", doc.Host())

	root := doc.Root()
	fn := dom.ByID(root, "fn")
	require.NotNil(t, fn)
	assert.True(t, fn.Visible())
	assert.False(t, dom.ByID(root, "tok").Visible())

	require.NoError(t, fn.SetValue("Jane"))
	require.NoError(t, fn.AddClass("autofill-high"))

	live, err := page.page.Locator("#fn").InputValue()
	require.NoError(t, err)
	assert.Equal(t, "Jane", live)

	// typing without submitting reaches the tree through Refresh
	require.NoError(t, page.page.Locator("#fn").Fill("Jan"))
	assert.Equal(t, "Jane", fn.Value())
	require.NoError(t, doc.Refresh(context.Background()))
	assert.Equal(t, "Jan", fn.Value())

	submitted := make(chan string, 1)
	doc.OnSubmit(func() { submitted <- fn.Value() })

	require.NoError(t, page.page.Locator("#fn").Fill("Janet"))
	require.NoError(t, page.page.Locator("#go").Click())

	select {
	case v := <-submitted:
		assert.Equal(t, "Janet", v, "typed values are pulled in before the hooks run")
	case <-time.After(10 * time.Second):
		t.Fatal("submit was not reported")
	}
}
