// Package autofill is the page-side orchestrator: it answers fill,
// saveCorrections and getStatus for one page view.
package autofill

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/observability"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/internal/services/filler"
	"github.com/jobfill/jobfill/internal/services/learner"
	"github.com/jobfill/jobfill/internal/services/matcher"
)

// Backend is what the agent asks the background for
type Backend interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	GetLearnedPatterns(ctx context.Context) (domain.LearnedPatterns, error)
	SaveLearnedPattern(ctx context.Context, pattern domain.LearnedPattern) error
}

// Agent drives matching, filling and learning on one document
type Agent struct {
	doc     dom.Document
	backend Backend
	matcher *matcher.Matcher
	filler  *filler.Filler
	learner *learner.Learner
	session *learner.Session
	metrics *observability.Metrics
	logger  *zap.Logger

	// one fill pass at a time
	mu sync.Mutex
}

var _ background.PageAgent = (*Agent)(nil)

// New creates an agent for doc and registers the learning hooks on it
func New(doc dom.Document, backend Backend, metrics *observability.Metrics, logger *zap.Logger) *Agent {
	if logger == nil {
		logger = zap.NewNop()
	}
	m := matcher.ForDocument(doc, logger.Named("matcher"))
	session := learner.NewSession(m.Site())

	a := &Agent{
		doc:     doc,
		backend: backend,
		matcher: m,
		filler:  filler.New(logger.Named("filler")),
		learner: learner.New(backend, metrics, logger),
		session: session,
		metrics: metrics,
		logger: logger.Named("agent").With(
			zap.String("site", string(m.Site())),
			zap.String("session", session.ID.String()),
		),
	}
	a.learner.Listen(doc, session)
	return a
}

// Site returns the detected site of the page
func (a *Agent) Site() domain.Site {
	return a.matcher.Site()
}

// Session returns the page's tracking session
func (a *Agent) Session() *learner.Session {
	return a.session
}

// Fill runs one match and fill pass. A missing profile or a failure inside
// the pass is reported in the response, never returned as an error.
func (a *Agent) Fill(ctx context.Context) (resp domain.FillResponse) {
	a.mu.Lock()
	defer a.mu.Unlock()

	defer func() {
		if r := recover(); r != nil {
			a.logger.Error("panic during fill", zap.Any("panic", r))
			a.metrics.RecordFillPass(a.Site(), "error", domain.FillResults{})
			resp = domain.FillResponse{Success: false, Error: fmt.Sprint(r)}
		}
	}()

	if err := a.refresh(ctx); err != nil {
		a.logger.Error("failed to read page state", zap.Error(err))
		a.metrics.RecordFillPass(a.Site(), "error", domain.FillResults{})
		return domain.FillResponse{Success: false, Error: err.Error()}
	}

	profile, learned, err := a.fetch(ctx)
	if err != nil {
		a.logger.Error("failed to fetch profile", zap.Error(err))
		a.metrics.RecordFillPass(a.Site(), "error", domain.FillResults{})
		return domain.FillResponse{Success: false, Error: err.Error()}
	}
	if profile == nil {
		a.metrics.RecordFillPass(a.Site(), "no_profile", domain.FillResults{})
		return domain.FillResponse{Success: false, Error: domain.MissingProfileMessage}
	}

	fields := a.matcher.MatchAllFields(a.doc, learned)
	for _, f := range fields {
		a.metrics.RecordMatch(a.Site(), f.Source, f.Confidence)
	}

	results := a.filler.FillAll(fields, profile)
	a.session.Track(fields)
	a.metrics.RecordFillPass(a.Site(), "ok", results)

	a.logger.Info("form filled",
		zap.Int("fields", len(fields)),
		zap.Int("filled", results.Filled),
		zap.Int("uncertain", results.Uncertain),
		zap.Int("skipped", results.Skipped),
		zap.Int("failed", results.Failed),
	)

	return domain.FillResponse{
		Success: true,
		Results: results,
		Site:    a.Site(),
	}
}

// fetch loads the profile and learned patterns concurrently. A pattern
// failure degrades to no learned patterns.
func (a *Agent) fetch(ctx context.Context) (*domain.Profile, domain.LearnedPatterns, error) {
	var (
		wg         sync.WaitGroup
		profile    *domain.Profile
		profileErr error
		learned    domain.LearnedPatterns
		learnedErr error
	)

	wg.Add(2)
	go func() {
		defer wg.Done()
		profile, profileErr = a.backend.GetProfile(ctx)
	}()
	go func() {
		defer wg.Done()
		learned, learnedErr = a.backend.GetLearnedPatterns(ctx)
	}()
	wg.Wait()

	if learnedErr != nil {
		a.logger.Warn("failed to fetch learned patterns", zap.Error(learnedErr))
		learned = nil
	}
	if learned == nil {
		learned = domain.LearnedPatterns{}
	}
	if profileErr != nil {
		return nil, nil, profileErr
	}
	return profile, learned, nil
}

// refresh brings a live page's control values into the document so fill
// never overwrites typing and corrections compare against what is shown
func (a *Agent) refresh(ctx context.Context) error {
	if r, ok := a.doc.(dom.Refresher); ok {
		return r.Refresh(ctx)
	}
	return nil
}

// SaveCorrections learns from the edits made since the last fill
func (a *Agent) SaveCorrections(ctx context.Context) domain.SaveCorrectionsResponse {
	if err := a.refresh(ctx); err != nil {
		a.logger.Warn("failed to read page state, no corrections saved", zap.Error(err))
		return domain.SaveCorrectionsResponse{}
	}
	return domain.SaveCorrectionsResponse{
		Saved: a.learner.SaveCurrentCorrections(ctx, a.session),
	}
}

// Status reports the site and how many fillable controls the page has
func (a *Agent) Status(ctx context.Context) domain.StatusResponse {
	if err := a.refresh(ctx); err != nil {
		a.logger.Warn("failed to read page state", zap.Error(err))
	}
	site := a.Site()
	return domain.StatusResponse{
		Site:        site,
		Supported:   site.Supported(),
		FieldsFound: len(a.matcher.FindFields(a.doc)),
	}
}
