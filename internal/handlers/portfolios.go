package handlers

import (
	"net/http"

	"investing_monitor/internal/coordinator"
	apperrors "investing_monitor/internal/errors"
	"investing_monitor/internal/models"
)

// PortfolioHandler handles the tracked-portfolio routes.
type PortfolioHandler struct {
	coord    *coordinator.Coordinator
	defaults models.ScheduleOptions
}

// NewPortfolioHandler creates a new PortfolioHandler. The defaults apply
// to portfolios added without an explicit schedule.
func NewPortfolioHandler(coord *coordinator.Coordinator, defaults models.ScheduleOptions) *PortfolioHandler {
	return &PortfolioHandler{coord: coord, defaults: defaults}
}

type addPortfolioRequest struct {
	PortfolioID int64                   `json:"portfolio_id"`
	DisplayName string                  `json:"display_name"`
	Schedule    *models.ScheduleOptions `json:"schedule,omitempty"`
}

// List returns the status of every tracked portfolio.
func (h *PortfolioHandler) List(w http.ResponseWriter, r *http.Request) {
	statuses, err := h.coord.Portfolios()
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "listing portfolios", err))
		return
	}
	respondJSON(w, http.StatusOK, statuses)
}

// Create starts tracking a portfolio.
func (h *PortfolioHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req addPortfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		respondError(w, err)
		return
	}
	if req.PortfolioID <= 0 {
		respondError(w, apperrors.Validation("portfolio_id is required"))
		return
	}

	opts := h.defaults
	if req.Schedule != nil {
		opts = *req.Schedule
	}

	cfg, err := h.coord.AddPortfolio(r.Context(), req.PortfolioID, req.DisplayName, opts)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusCreated, cfg)
}

// Delete stops tracking a portfolio and removes its stored state.
func (h *PortfolioHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	if err := h.coord.RemovePortfolio(id); err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusNoContent, nil)
}

// Refresh triggers an immediate fetch and returns the fresh snapshot.
// Coalesces with any fetch already in flight for the portfolio.
func (h *PortfolioHandler) Refresh(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.coord.ManualRefresh(r.Context(), id)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// Snapshot returns the latest successful snapshot for a portfolio.
func (h *PortfolioHandler) Snapshot(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	snap, err := h.coord.GetSnapshot(id)
	if err != nil {
		respondError(w, err)
		return
	}
	if snap == nil {
		respondError(w, apperrors.NotFound("snapshot"))
		return
	}
	respondJSON(w, http.StatusOK, snap)
}

// History returns the recent fetch attempts for a portfolio.
func (h *PortfolioHandler) History(w http.ResponseWriter, r *http.Request) {
	id, err := portfolioID(r)
	if err != nil {
		respondError(w, err)
		return
	}
	records, err := h.coord.FetchHistory(id, 50)
	if err != nil {
		respondError(w, err)
		return
	}
	respondJSON(w, http.StatusOK, records)
}

// Readings returns the latest metric set of every portfolio, keyed by
// normalized name. This is the endpoint home-automation integrations poll.
func (h *PortfolioHandler) Readings(w http.ResponseWriter, r *http.Request) {
	readings, err := h.coord.Readings()
	if err != nil {
		respondError(w, apperrors.Wrap(apperrors.ErrInternal, "collecting readings", err))
		return
	}
	respondJSON(w, http.StatusOK, readings)
}
