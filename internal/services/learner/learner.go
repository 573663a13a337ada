// Package learner turns user edits of autofilled values into site-scoped
// learned patterns.
package learner

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/services/filler"
	"github.com/jobfill/jobfill/internal/services/matcher"
)

// TrackedField is a control the filler wrote to, with the value it wrote
type TrackedField struct {
	Element       dom.Element
	LabelText     string
	OriginalValue string
	ProfileField  domain.FieldPath
	Confidence    domain.Confidence
}

// Session holds the tracked fields of one page view
type Session struct {
	ID   uuid.UUID
	site domain.Site

	mu      sync.Mutex
	tracked []TrackedField
}

// NewSession starts an empty session for a page on site
func NewSession(site domain.Site) *Session {
	return &Session{
		ID:   uuid.New(),
		site: site,
	}
}

// Site returns the site the session was opened on
func (s *Session) Site() domain.Site {
	return s.site
}

// Track replaces the tracked set with the fields the filler annotated
func (s *Session) Track(fields []matcher.MatchedField) {
	tracked := make([]TrackedField, 0, len(fields))
	for _, f := range fields {
		original, ok := f.Element.Data(filler.DataOriginal)
		if !ok {
			continue
		}
		tracked = append(tracked, TrackedField{
			Element:       f.Element,
			LabelText:     f.LabelText,
			OriginalValue: original,
			ProfileField:  f.Field,
			Confidence:    f.Confidence,
		})
	}

	s.mu.Lock()
	s.tracked = tracked
	s.mu.Unlock()
}

// Tracked returns a copy of the tracked set
func (s *Session) Tracked() []TrackedField {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TrackedField, len(s.tracked))
	copy(out, s.tracked)
	return out
}

// DetectCorrections compares every tracked control's live value with the
// value written into it. A changed value that is not blank is a correction.
func (s *Session) DetectCorrections() []domain.Correction {
	var corrections []domain.Correction
	for _, t := range s.Tracked() {
		current := t.Element.Value()
		if current == t.OriginalValue || strings.TrimSpace(current) == "" {
			continue
		}
		corrections = append(corrections, domain.Correction{
			Site:           s.site,
			LabelText:      t.LabelText,
			OriginalField:  t.ProfileField,
			OriginalValue:  t.OriginalValue,
			CorrectedValue: current,
			Confidence:     t.Confidence,
		})
	}
	return corrections
}

// reverseOrder is the priority order for mapping a value back to a field
var reverseOrder = []domain.FieldPath{
	domain.FieldFirstName,
	domain.FieldLastName,
	domain.FieldEmail,
	domain.FieldPhone,
	domain.FieldPhoneCountryCode,
	domain.FieldPhoneType,
	domain.FieldStreet,
	domain.FieldCity,
	domain.FieldState,
	domain.FieldZip,
	domain.FieldCountry,
	domain.FieldLinkedIn,
	domain.FieldPortfolio,
	domain.FieldGitHub,
	domain.FieldWorkCompany,
	domain.FieldWorkTitle,
	domain.FieldWorkStartDate,
	domain.FieldWorkEndDate,
	domain.FieldSchool,
	domain.FieldDegree,
	domain.FieldStudy,
	domain.FieldGPA,
	domain.FieldWorkAuthorization,
	domain.FieldWorkAuthorizationText,
	domain.FieldVeteranStatus,
	domain.FieldDisability,
	domain.FieldGender,
	domain.FieldEthnicity,
}

// ReverseMatch returns the first profile field whose value equals value,
// ignoring case and surrounding whitespace, or FieldNone
func ReverseMatch(profile *domain.Profile, value string) domain.FieldPath {
	want := normalizeValue(value)
	if want == "" || profile == nil {
		return domain.FieldNone
	}

	resolver, err := filler.NewResolver(profile)
	if err != nil {
		return domain.FieldNone
	}
	for _, path := range reverseOrder {
		have := normalizeValue(domain.Stringify(resolver.Resolve(path)))
		if have != "" && have == want {
			return path
		}
	}
	return domain.FieldNone
}

func normalizeValue(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}

// Backend is the part of the background the learner needs
type Backend interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	SaveLearnedPattern(ctx context.Context, pattern domain.LearnedPattern) error
}

// Learner persists corrections as learned patterns
type Learner struct {
	backend     Backend
	metrics     *observability.Metrics
	logger      *zap.Logger
	hookTimeout time.Duration
}

// DefaultHookTimeout bounds the learning run started from a submit or
// unload hook
const DefaultHookTimeout = 5 * time.Second

// New creates a learner
func New(backend Backend, metrics *observability.Metrics, logger *zap.Logger) *Learner {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Learner{
		backend:     backend,
		metrics:     metrics,
		logger:      logger.Named("learner"),
		hookTimeout: DefaultHookTimeout,
	}
}

// Learn saves a pattern for every correction whose corrected value maps back
// to a profile field and returns how many were saved. Corrections without a
// reverse match are dropped.
func (l *Learner) Learn(ctx context.Context, site domain.Site, corrections []domain.Correction) (int, error) {
	if len(corrections) == 0 {
		return 0, nil
	}

	profile, err := l.backend.GetProfile(ctx)
	if err != nil {
		return 0, err
	}
	if profile == nil {
		return 0, nil
	}

	saved := 0
	for _, c := range corrections {
		field := ReverseMatch(profile, c.CorrectedValue)
		if field == domain.FieldNone {
			continue
		}
		pattern := domain.LearnedPattern{
			Site:         site,
			LabelPattern: domain.NormalizeLabel(c.LabelText),
			ProfileField: field,
		}
		if err := l.backend.SaveLearnedPattern(ctx, pattern); err != nil {
			return saved, err
		}
		l.logger.Info("learned pattern",
			zap.String("site", string(site)),
			zap.String("label", pattern.LabelPattern),
			zap.String("field", string(field)),
		)
		saved++
	}
	return saved, nil
}

// SaveCurrentCorrections detects corrections now and learns from them. It
// returns the number detected; learning failures are logged.
func (l *Learner) SaveCurrentCorrections(ctx context.Context, session *Session) int {
	corrections := session.DetectCorrections()
	if len(corrections) == 0 {
		return 0
	}

	learned, err := l.Learn(ctx, session.Site(), corrections)
	if err != nil {
		l.logger.Warn("failed to save corrections",
			zap.String("session", session.ID.String()),
			zap.Error(err),
		)
	}
	l.metrics.RecordCorrections(session.Site(), len(corrections), learned)
	return len(corrections)
}

// Listen runs SaveCurrentCorrections when the document is submitted or
// unloaded. Both may fire for one interaction; saving twice is harmless.
func (l *Learner) Listen(doc dom.Document, session *Session) {
	run := func() {
		ctx, cancel := context.WithTimeout(context.Background(), l.hookTimeout)
		defer cancel()
		l.SaveCurrentCorrections(ctx, session)
	}
	doc.OnSubmit(run)
	doc.OnUnload(run)
}
