package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/jobfill/jobfill/internal/domain"
	"github.com/jobfill/jobfill/internal/services/background"
	"github.com/jobfill/jobfill/pkg/httputil"
)

// ActionHandler serves the action API on behalf of the background service
type ActionHandler struct {
	svc     *background.Service
	maxBody int64
	logger  *zap.Logger
}

// NewActionHandler creates a new action handler. maxBody caps request
// payloads; 0 leaves them unbounded.
func NewActionHandler(svc *background.Service, maxBody int64, logger *zap.Logger) *ActionHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ActionHandler{
		svc:     svc,
		maxBody: maxBody,
		logger:  logger,
	}
}

// Dispatch handles POST /api/v1/actions/{action}
func (h *ActionHandler) Dispatch(w http.ResponseWriter, r *http.Request) {
	action := domain.Action(chi.URLParam(r, "action"))
	if h.maxBody > 0 && r.Body != nil && r.Body != http.NoBody {
		r.Body = http.MaxBytesReader(w, r.Body, h.maxBody)
	}

	switch action {
	case domain.ActionGetProfile:
		h.getProfile(w, r)
	case domain.ActionGetLearnedPatterns:
		h.getLearnedPatterns(w, r)
	case domain.ActionSaveLearnedPattern:
		h.saveLearnedPattern(w, r)
	case domain.ActionUpdateProfile:
		h.updateProfile(w, r)
	case domain.ActionFillForm:
		h.fillForm(w, r)
	case domain.ActionFill, domain.ActionSaveCorrections, domain.ActionGetStatus:
		h.forwardToAgent(w, r, action)
	default:
		httputil.ErrorFromDomain(w, domain.ErrUnknownAction(string(action)))
	}
}

func (h *ActionHandler) getProfile(w http.ResponseWriter, r *http.Request) {
	profile, err := h.svc.GetProfile(r.Context())
	if err != nil {
		h.logger.Error("Failed to get profile", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domain.ProfileResponse{Profile: profile})
}

func (h *ActionHandler) getLearnedPatterns(w http.ResponseWriter, r *http.Request) {
	patterns, err := h.svc.GetLearnedPatterns(r.Context())
	if err != nil {
		h.logger.Error("Failed to get learned patterns", zap.Error(err))
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domain.LearnedPatternsResponse{LearnedPatterns: patterns})
}

func (h *ActionHandler) saveLearnedPattern(w http.ResponseWriter, r *http.Request) {
	var pattern domain.LearnedPattern
	if err := httputil.DecodeJSON(r, &pattern); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if err := h.svc.SaveLearnedPattern(r.Context(), pattern); err != nil {
		h.logger.Warn("Failed to save learned pattern",
			zap.String("site", string(pattern.Site)),
			zap.String("field", string(pattern.ProfileField)),
			zap.Error(err),
		)
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domain.AckResponse{Success: true})
}

func (h *ActionHandler) updateProfile(w http.ResponseWriter, r *http.Request) {
	var partial domain.UpdateProfileRequest
	if err := httputil.DecodeJSON(r, &partial); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}

	if err := h.svc.UpdateProfile(r.Context(), partial); err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, domain.AckResponse{Success: true})
}

func (h *ActionHandler) fillForm(w http.ResponseWriter, r *http.Request) {
	resp, err := h.svc.FillForm(r.Context())
	if err != nil {
		httputil.ErrorFromDomain(w, err)
		return
	}
	httputil.JSON(w, http.StatusOK, resp)
}

// forwardToAgent answers the page-side actions from the attached agent
func (h *ActionHandler) forwardToAgent(w http.ResponseWriter, r *http.Request, action domain.Action) {
	agent, ok := h.svc.Agent()
	if !ok {
		httputil.ErrorFromDomain(w, domain.ErrNoActivePage())
		return
	}

	switch action {
	case domain.ActionFill:
		httputil.JSON(w, http.StatusOK, agent.Fill(r.Context()))
	case domain.ActionSaveCorrections:
		httputil.JSON(w, http.StatusOK, agent.SaveCorrections(r.Context()))
	case domain.ActionGetStatus:
		httputil.JSON(w, http.StatusOK, agent.Status(r.Context()))
	}
}
