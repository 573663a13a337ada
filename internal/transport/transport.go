// Package transport carries action requests from the page agent to the
// background service.
package transport

import (
	"context"

	"github.com/jobfill/jobfill/internal/domain"
)

// Backend is the set of background actions the page agent relies on. Every
// call is fallible; callers degrade failures to empty results.
type Backend interface {
	GetProfile(ctx context.Context) (*domain.Profile, error)
	GetLearnedPatterns(ctx context.Context) (domain.LearnedPatterns, error)
	SaveLearnedPattern(ctx context.Context, pattern domain.LearnedPattern) error
	UpdateProfile(ctx context.Context, partial domain.UpdateProfileRequest) error
	FillForm(ctx context.Context) (domain.FillResponse, error)
}
