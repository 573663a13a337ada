// Package filler writes profile values into matched form controls.
package filler

import (
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/dom"
	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/services/matcher"
)

// Filler applies fill strategies to controls
type Filler struct {
	strategies map[ControlKind]Strategy
	logger     *zap.Logger
}

// New creates a filler with the strategy for every control kind
func New(logger *zap.Logger) *Filler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filler{
		strategies: defaultStrategies(),
		logger:     logger,
	}
}

// Fill writes value into el and reports whether the control changed. A nil
// or empty value never changes anything. Errors and panics raised while
// filling stay inside this call and report false, except a failure to mark
// a control whose value already changed.
func (f *Filler) Fill(el dom.Element, value any, confidence domain.Confidence) (filled bool) {
	if value == nil {
		return false
	}
	if s, ok := value.(string); ok && s == "" {
		return false
	}

	kind := KindOf(el)
	strategy, ok := f.strategies[kind]
	if !ok {
		return false
	}

	defer func() {
		if r := recover(); r != nil {
			f.logger.Error("panic filling field",
				zap.String("kind", string(kind)),
				zap.String("id", el.Attr("id")),
				zap.Any("panic", r),
			)
			filled = false
		}
	}()

	filled, err := strategy.AttemptFill(el, value, confidence)
	if filled && errors.Is(err, errMarking) {
		f.logger.Warn("filled field without markers",
			zap.String("kind", string(kind)),
			zap.String("id", el.Attr("id")),
			zap.Error(err),
		)
		return true
	}
	if err != nil {
		f.logger.Warn("error filling field",
			zap.String("kind", string(kind)),
			zap.String("id", el.Attr("id")),
			zap.Error(fmt.Errorf("attempt fill: %w", err)),
		)
		return false
	}
	return filled
}

// FillAll fills every matched field from profile. Fields without a match or
// without a profile value are skipped; attempted fields that did not change
// count as failed. Uncertain counts filled fields below high confidence.
func (f *Filler) FillAll(fields []matcher.MatchedField, profile *domain.Profile) domain.FillResults {
	var results domain.FillResults

	resolver, err := NewResolver(profile)
	if err != nil {
		f.logger.Error("failed to read profile", zap.Error(err))
		results.Skipped = len(fields)
		return results
	}

	for _, field := range fields {
		if !field.Matched() {
			results.Skipped++
			continue
		}

		value := resolver.Resolve(field.Field)
		if value == nil {
			results.Skipped++
			continue
		}

		if !f.Fill(field.Element, value, field.Confidence) {
			results.Failed++
			continue
		}

		results.Filled++
		if field.Confidence != domain.ConfidenceHigh {
			results.Uncertain++
		}
	}

	f.logger.Debug("fill pass complete",
		zap.Int("filled", results.Filled),
		zap.Int("skipped", results.Skipped),
		zap.Int("uncertain", results.Uncertain),
		zap.Int("failed", results.Failed),
	)
	return results
}
