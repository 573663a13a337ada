// Package background owns the persisted profile and learned patterns and
// answers the actions the page agent sends.
package background

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/transport"
)

// PageAgent is the page-side counterpart a fillForm is forwarded to
type PageAgent interface {
	Fill(ctx context.Context) domain.FillResponse
	SaveCorrections(ctx context.Context) domain.SaveCorrectionsResponse
	Status(ctx context.Context) domain.StatusResponse
}

// ProfileSource supplies the profile written on install
type ProfileSource interface {
	LoadProfile(ctx context.Context) (*domain.Profile, error)
}

// Service is the background action handler
type Service struct {
	store  domain.KVStore
	logger *zap.Logger

	// serialises read-modify-write of stored records
	writeMu sync.Mutex

	agentMu sync.RWMutex
	agent   PageAgent
}

var _ transport.Backend = (*Service)(nil)

// NewService creates a background service over store
func NewService(store domain.KVStore, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:  store,
		logger: logger.Named("background"),
	}
}

// Install seeds the store: the profile from source (a failure is logged and
// leaves the stored profile alone) and an empty learned-pattern record when
// none exists yet.
func (s *Service) Install(ctx context.Context, source ProfileSource) error {
	if source != nil {
		profile, err := source.LoadProfile(ctx)
		switch {
		case err != nil:
			s.logger.Error("failed to load profile seed", zap.Error(err))
		case profile != nil:
			if err := s.put(ctx, domain.KeyProfile, profile); err != nil {
				s.logger.Error("failed to store profile seed", zap.Error(err))
			} else {
				s.logger.Info("profile loaded into storage")
			}
		}
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	_, found, err := s.store.Get(ctx, domain.KeyLearnedPatterns)
	if err != nil {
		return domain.ErrStorage("get learned patterns", err)
	}
	if !found {
		if err := s.put(ctx, domain.KeyLearnedPatterns, domain.LearnedPatterns{}); err != nil {
			return err
		}
	}
	return nil
}

// GetProfile returns the stored profile, or nil when none is stored
func (s *Service) GetProfile(ctx context.Context) (*domain.Profile, error) {
	var profile domain.Profile
	found, err := s.get(ctx, domain.KeyProfile, &profile)
	if err != nil || !found {
		return nil, err
	}
	return &profile, nil
}

// GetLearnedPatterns returns every learned pattern; an empty record when
// none are stored
func (s *Service) GetLearnedPatterns(ctx context.Context) (domain.LearnedPatterns, error) {
	patterns := domain.LearnedPatterns{}
	if _, err := s.get(ctx, domain.KeyLearnedPatterns, &patterns); err != nil {
		return nil, err
	}
	if patterns == nil {
		patterns = domain.LearnedPatterns{}
	}
	return patterns, nil
}

// SaveLearnedPattern records a label association under its site, replacing
// any earlier one for the same normalized label
func (s *Service) SaveLearnedPattern(ctx context.Context, pattern domain.LearnedPattern) error {
	if err := pattern.Validate(); err != nil {
		return err
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	patterns, err := s.GetLearnedPatterns(ctx)
	if err != nil {
		return err
	}
	patterns.Set(pattern.Site, pattern.LabelPattern, pattern.ProfileField)
	if err := s.put(ctx, domain.KeyLearnedPatterns, patterns); err != nil {
		return err
	}

	s.logger.Info("learned pattern saved",
		zap.String("site", string(pattern.Site)),
		zap.String("label", domain.NormalizeLabel(pattern.LabelPattern)),
		zap.String("field", string(pattern.ProfileField)),
	)
	return nil
}

// UpdateProfile replaces the top-level sections present in partial
func (s *Service) UpdateProfile(ctx context.Context, partial domain.UpdateProfileRequest) error {
	if len(partial) == 0 {
		return domain.ValidationError("profile", "update is empty")
	}

	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	current, err := s.GetProfile(ctx)
	if err != nil {
		return err
	}
	merged, err := current.Merge(partial)
	if err != nil {
		return err
	}
	return s.put(ctx, domain.KeyProfile, merged)
}

// AttachAgent makes agent the target of fillForm until the returned detach
// function is called
func (s *Service) AttachAgent(agent PageAgent) (detach func()) {
	s.agentMu.Lock()
	s.agent = agent
	s.agentMu.Unlock()

	return func() {
		s.agentMu.Lock()
		defer s.agentMu.Unlock()
		if s.agent == agent {
			s.agent = nil
		}
	}
}

// Agent returns the attached page agent
func (s *Service) Agent() (PageAgent, bool) {
	s.agentMu.RLock()
	defer s.agentMu.RUnlock()
	return s.agent, s.agent != nil
}

// FillForm forwards a fill to the attached page agent
func (s *Service) FillForm(ctx context.Context) (domain.FillResponse, error) {
	agent, ok := s.Agent()
	if !ok {
		return domain.FillResponse{}, domain.ErrNoActivePage()
	}
	return agent.Fill(ctx), nil
}

// Health reports store connectivity when the store supports it
func (s *Service) Health(ctx context.Context) error {
	if hc, ok := s.store.(domain.HealthChecker); ok {
		return hc.Health(ctx)
	}
	return nil
}

func (s *Service) get(ctx context.Context, key string, v any) (bool, error) {
	data, found, err := s.store.Get(ctx, key)
	if err != nil {
		return false, domain.ErrStorage("get "+key, err)
	}
	if !found {
		return false, nil
	}
	if err := json.Unmarshal(data, v); err != nil {
		return false, domain.ErrStorage("decode "+key, fmt.Errorf("unmarshal: %w", err))
	}
	return true, nil
}

func (s *Service) put(ctx context.Context, key string, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return domain.ErrStorage("encode "+key, err)
	}
	if err := s.store.Set(ctx, key, data); err != nil {
		return domain.ErrStorage("set "+key, err)
	}
	return nil
}
