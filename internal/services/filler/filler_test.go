package filler

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/services/matcher"
)

func testProfile() *domain.Profile {
	return &domain.Profile{
		Personal: domain.Personal{
			FirstName: "Jane",
			LastName:  "Doe",
			Email:     "jane@example.com",
			Address:   domain.Address{City: "Portland", Country: "United States"},
		},
		Work: []domain.WorkEntry{{Company: "Acme", Title: "Engineer"}},
		Education: []domain.Education{
			{School: "State University", GPA: "3.8"},
		},
		AdditionalInfo: domain.AdditionalInfo{
			SponsorshipRequired: domain.Bool(true),
			Gender:              "Female",
		},
	}
}

func TestResolveValue(t *testing.T) {
	p := testProfile()

	tests := []struct {
		name    string
		profile *domain.Profile
		path    domain.FieldPath
		want    any
	}{
		{"plain leaf", p, domain.FieldEmail, "jane@example.com"},
		{"nested leaf", p, domain.FieldCity, "Portland"},
		{"empty leaf is absent", p, domain.FieldZip, nil},
		{"computed full name", p, domain.FieldFullName, "Jane Doe"},
		{"indexed leaf", p, domain.FieldWorkCompany, "Acme"},
		{"indexed missing leaf", p, domain.FieldWorkEndDate, nil},
		{"gpa", p, domain.FieldGPA, "3.8"},
		{"boolean", p, domain.FieldSponsorshipRequired, true},
		{"no path", p, domain.FieldNone, nil},
		{"work absent", &domain.Profile{}, domain.FieldWorkCompany, nil},
		{"work empty", &domain.Profile{Work: []domain.WorkEntry{}}, domain.FieldWorkCompany, nil},
		{"index out of range", p, domain.FieldPath("work[3].company"), nil},
		{"unknown key", p, domain.FieldPath("personal.nickname"), nil},
		{"through a leaf", p, domain.FieldPath("personal.email.domain"), nil},
		{"nil profile", nil, domain.FieldEmail, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ResolveValue(tt.profile, tt.path))
		})
	}
}

func TestResolveValue_FullNameWithOneHalf(t *testing.T) {
	p := &domain.Profile{Personal: domain.Personal{LastName: "Doe"}}
	assert.Equal(t, "Doe", ResolveValue(p, domain.FieldFullName))

	empty := &domain.Profile{}
	assert.Equal(t, "", ResolveValue(empty, domain.FieldFullName))
}

func parse(t *testing.T, body string) *dom.HTMLDocument {
	t.Helper()
	doc, err := dom.ParseString("<html><body>"+body+"</body></html>", "boards.greenhouse.io")
	require.NoError(t, err)
	return doc
}

func byID(doc *dom.HTMLDocument, id string) dom.Element {
	return dom.ByID(doc.Root(), id)
}

func TestKindOf(t *testing.T) {
	doc := parse(t, `<input id="a"><input id="b" type="email"><input id="c" type="checkbox">
<input id="d" type="RADIO"><select id="e"></select><textarea id="f"></textarea>`)

	assert.Equal(t, KindText, KindOf(byID(doc, "a")))
	assert.Equal(t, KindText, KindOf(byID(doc, "b")))
	assert.Equal(t, KindCheckbox, KindOf(byID(doc, "c")))
	assert.Equal(t, KindRadio, KindOf(byID(doc, "d")))
	assert.Equal(t, KindSelect, KindOf(byID(doc, "e")))
	assert.Equal(t, KindTextarea, KindOf(byID(doc, "f")))
}

func TestFill_Text(t *testing.T) {
	doc := parse(t, `<input id="name"><input id="taken" value="Mine"><textarea id="bio"> </textarea>`)
	f := New(zaptest.NewLogger(t))

	name := byID(doc, "name")
	assert.True(t, f.Fill(name, "Jane", domain.ConfidenceHigh))
	assert.Equal(t, "Jane", name.Value())
	assert.True(t, name.HasClass(ClassHigh))
	original, ok := name.Data(DataOriginal)
	assert.True(t, ok)
	assert.Equal(t, "Jane", original)
	conf, _ := name.Data(DataConfidence)
	assert.Equal(t, "high", conf)

	events := doc.Events()
	require.Len(t, events, 2)
	assert.Equal(t, dom.EventInput, events[0].Type)
	assert.Equal(t, dom.EventChange, events[1].Type)

	taken := byID(doc, "taken")
	assert.False(t, f.Fill(taken, "Jane", domain.ConfidenceHigh))
	assert.Equal(t, "Mine", taken.Value())

	bio := byID(doc, "bio")
	assert.True(t, f.Fill(bio, 3.5, domain.ConfidenceLow), "whitespace counts as empty")
	assert.Equal(t, "3.5", bio.Value())
	assert.True(t, bio.HasClass(ClassLow))
}

func TestFill_NilAndEmptyNeverMutate(t *testing.T) {
	doc := parse(t, `<input id="name"><input id="cb" type="checkbox" checked>`)
	f := New(nil)

	assert.False(t, f.Fill(byID(doc, "name"), nil, domain.ConfidenceHigh))
	assert.False(t, f.Fill(byID(doc, "name"), "", domain.ConfidenceHigh))
	assert.False(t, f.Fill(byID(doc, "cb"), "", domain.ConfidenceHigh))
	assert.True(t, byID(doc, "cb").Checked())
	assert.Empty(t, doc.Events())
}

func TestFill_Select(t *testing.T) {
	doc := parse(t, `
<select id="yn"><option value="">Select...</option><option>Yes</option><option>No</option></select>
<select id="country"><option value="">--</option><option value="CA">Canada</option><option value="US">United States of America</option></select>
<select id="gender"><option value="f">Female</option><option value="m">Male</option></select>
<select id="none"><option value="x1">Alpha</option></select>`)
	f := New(nil)

	yn := byID(doc, "yn")
	assert.True(t, f.Fill(yn, true, domain.ConfidenceMedium))
	assert.Equal(t, "Yes", yn.Value())
	assert.True(t, yn.HasClass(ClassMedium))

	country := byID(doc, "country")
	assert.True(t, f.Fill(country, "United States", domain.ConfidenceHigh))
	assert.Equal(t, "US", country.Value())

	gender := byID(doc, "gender")
	assert.True(t, f.Fill(gender, "female", domain.ConfidenceHigh))
	assert.Equal(t, "f", gender.Value())

	assert.False(t, f.Fill(byID(doc, "none"), "Omega", domain.ConfidenceHigh))

	placeholder := parse(t, `<select id="ph"><option value="">Choose one</option><option value="a">Alpha</option></select>`)
	ph := byID(placeholder, "ph")
	assert.False(t, f.Fill(ph, "Omega", domain.ConfidenceHigh), "an empty option value matches nothing")
	assert.Equal(t, "", ph.Value())
	assert.False(t, ph.HasClass(ClassHigh))
	assert.Empty(t, placeholder.Events())

	ynNo := parse(t, `<select id="yn"><option value="1">Yes</option><option value="0">No</option></select>`)
	el := byID(ynNo, "yn")
	assert.True(t, f.Fill(el, false, domain.ConfidenceHigh))
	assert.Equal(t, "0", el.Value())
}

func TestFill_Checkbox(t *testing.T) {
	f := New(nil)

	tests := []struct {
		name    string
		checked bool
		value   any
		want    bool
		changed bool
	}{
		{"bool true checks", false, true, true, true},
		{"string yes checks", false, "yes", true, true},
		{"string Yes checks", false, "Yes", true, true},
		{"string true checks", false, "true", true, true},
		{"YES is not truthy", false, "YES", false, false},
		{"already checked", true, true, true, false},
		{"false unchecks", true, false, false, true},
		{"other string unchecks", true, "no", false, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			attr := ""
			if tt.checked {
				attr = " checked"
			}
			doc := parse(t, `<input id="cb" type="checkbox"`+attr+`>`)
			cb := byID(doc, "cb")

			assert.Equal(t, tt.changed, f.Fill(cb, tt.value, domain.ConfidenceHigh))
			assert.Equal(t, tt.want, cb.Checked())
			assert.Equal(t, tt.changed, cb.HasClass(ClassHigh))
		})
	}
}

func TestFill_Radio(t *testing.T) {
	doc := parse(t, `
<div><label for="g-f">Female</label><input type="radio" id="g-f" name="gender" value="F"></div>
<div><label for="g-m">Male</label><input type="radio" id="g-m" name="gender" value="M"></div>
<div><input type="radio" id="r-yes" name="relocate" value="yes"></div>`)
	f := New(nil)

	assert.True(t, f.Fill(byID(doc, "g-f"), "Female", domain.ConfidenceHigh), "label match")
	assert.True(t, byID(doc, "g-f").Checked())

	assert.True(t, f.Fill(byID(doc, "r-yes"), "Yes", domain.ConfidenceHigh), "value match")

	// matching is loose: "female" contains both "m" and "male"
	assert.True(t, f.Fill(byID(doc, "g-m"), "Female", domain.ConfidenceHigh))

	other := parse(t, `<div><label for="x">Other</label><input type="radio" id="x" name="g" value="o"></div>`)
	assert.False(t, f.Fill(byID(other, "x"), "Female", domain.ConfidenceHigh))
	assert.False(t, byID(other, "x").Checked())
}

func TestHighlight_ReplacesTier(t *testing.T) {
	doc := parse(t, `<input id="a" class="form autofill-high">`)
	el := byID(doc, "a")

	require.NoError(t, highlight(el, domain.ConfidenceLow))
	assert.Equal(t, "form autofill-low", el.Attr("class"))

	require.NoError(t, highlight(el, domain.Confidence("bogus")))
	assert.True(t, el.HasClass(ClassLow))
	assert.False(t, el.HasClass(ClassHigh))
}

type panickyElement struct {
	dom.Element
}

func (panickyElement) Tag() string         { return "textarea" }
func (panickyElement) Attr(string) string  { return "" }
func (panickyElement) HasAttr(string) bool { return false }
func (panickyElement) Value() string       { panic("detached node") }

type failingElement struct {
	dom.Element
}

func (failingElement) Tag() string           { return "input" }
func (failingElement) Attr(string) string    { return "" }
func (failingElement) HasAttr(string) bool   { return false }
func (failingElement) Value() string         { return "" }
func (failingElement) SetValue(string) error { return errors.New("page closed") }

func TestFill_ErrorsStayAtFieldBoundary(t *testing.T) {
	f := New(zaptest.NewLogger(t))

	assert.False(t, f.Fill(panickyElement{}, "x", domain.ConfidenceHigh))
	assert.False(t, f.Fill(failingElement{}, "x", domain.ConfidenceHigh))
}

// unmarkableElement writes values but cannot take classes or data attributes
type unmarkableElement struct {
	dom.Element
}

func (unmarkableElement) AddClass(string) error        { return errors.New("stale handle") }
func (unmarkableElement) SetData(string, string) error { return errors.New("stale handle") }

func TestFill_ChangedValueWithoutMarkersCountsAsFilled(t *testing.T) {
	doc := parse(t, `<input id="name"><input id="cb" type="checkbox">
<select id="yn"><option>Yes</option><option>No</option></select>
<div><input type="radio" id="r" name="relocate" value="yes"></div>`)
	f := New(zaptest.NewLogger(t))

	name := unmarkableElement{byID(doc, "name")}
	assert.True(t, f.Fill(name, "Jane", domain.ConfidenceHigh))
	assert.Equal(t, "Jane", name.Value())
	assert.False(t, name.HasClass(ClassHigh))

	assert.True(t, f.Fill(unmarkableElement{byID(doc, "cb")}, true, domain.ConfidenceHigh))
	assert.True(t, byID(doc, "cb").Checked())

	assert.True(t, f.Fill(unmarkableElement{byID(doc, "yn")}, "no", domain.ConfidenceMedium))
	assert.Equal(t, "No", byID(doc, "yn").Value())

	assert.True(t, f.Fill(unmarkableElement{byID(doc, "r")}, "Yes", domain.ConfidenceLow))
	assert.True(t, byID(doc, "r").Checked())

	assert.False(t, f.Fill(unmarkableElement{byID(doc, "name")}, "Other", domain.ConfidenceHigh), "filled text is left alone")
}

func TestFillAll_MarkerFailureIsNotAFailedField(t *testing.T) {
	doc := parse(t, `<div><label for="fn">First Name</label><input id="fn" name="first_name"></div>`)
	fields := matcher.ForDocument(doc, nil).MatchAllFields(doc, nil)
	require.Len(t, fields, 1)
	fields[0].Element = unmarkableElement{fields[0].Element}

	results := New(zaptest.NewLogger(t)).FillAll(fields, testProfile())
	assert.Equal(t, domain.FillResults{Filled: 1, Uncertain: 1}, results)
	assert.Equal(t, "Jane", byID(doc, "fn").Value())
}

const formHTML = `<form>
<div><label for="fn">First Name</label><input id="fn" name="first_name"></div>
<div><label for="em">Email</label><input id="em" name="email" value="prefilled@example.com"></div>
<div><label for="co">Favorite Color</label><input id="co" name="color"></div>
<div><label for="zip">Zip</label><input id="zip" name="zip"></div>
<div><label for="cl">Tell us about your cover letter and why you want to join</label><textarea id="cl"></textarea></div>
<div><label for="company">Employer</label><input id="company" name="employer_name"></div>
</form>`

func TestFillAll_Counts(t *testing.T) {
	doc := parse(t, formHTML)
	m := matcher.ForDocument(doc, nil)
	fields := m.MatchAllFields(doc, nil)
	require.Len(t, fields, 6)

	profile := testProfile()
	profile.CoverLetter = "Dear team"

	f := New(zaptest.NewLogger(t))
	results := f.FillAll(fields, profile)

	// fn, cl and company are filled at medium confidence (their composite
	// labels repeat the label text), em is prefilled, co is unmatched and
	// zip has no profile value
	assert.Equal(t, domain.FillResults{Filled: 3, Skipped: 2, Uncertain: 3, Failed: 1}, results)
	assert.Equal(t, 6, results.Total())

	assert.Equal(t, "Jane", byID(doc, "fn").Value())
	assert.Equal(t, "prefilled@example.com", byID(doc, "em").Value())
	assert.Equal(t, "", byID(doc, "co").Value())
	assert.Equal(t, "Dear team", byID(doc, "cl").Value())
	assert.Equal(t, "Acme", byID(doc, "company").Value())
}

func TestFillAll_Idempotent(t *testing.T) {
	doc := parse(t, `<input id="fn" name="first_name">`)
	fields := matcher.ForDocument(doc, nil).MatchAllFields(doc, nil)
	require.Len(t, fields, 1)
	require.Equal(t, domain.ConfidenceHigh, fields[0].Confidence)
	f := New(nil)

	first := f.FillAll(fields, testProfile())
	assert.Equal(t, domain.FillResults{Filled: 1}, first)

	byID(doc, "fn").SetValue("Janet") //nolint:errcheck

	second := f.FillAll(fields, &domain.Profile{Personal: domain.Personal{FirstName: "Someone"}})
	assert.Equal(t, domain.FillResults{Failed: 1}, second)
	assert.Equal(t, "Janet", byID(doc, "fn").Value())
}

func TestFillAll_EmptyFullNameIsAttempted(t *testing.T) {
	doc := parse(t, `<div><label for="n">Full Name</label><input id="n"></div>`)
	fields := matcher.ForDocument(doc, nil).MatchAllFields(doc, nil)

	results := New(nil).FillAll(fields, &domain.Profile{})
	assert.Equal(t, domain.FillResults{Failed: 1}, results)
}
