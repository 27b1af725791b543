package api

import (
	"net/http"

	"github.com/okian/raceledger/internal/domain/rank"
)

// RankHandler serves the static rank tables.
type RankHandler struct {
	ranks   *rank.Table
	rewards RankRewards
}

// NewRankHandler creates a new rank handler.
func NewRankHandler(ranks *rank.Table, rewards RankRewards) *RankHandler {
	return &RankHandler{ranks: ranks, rewards: rewards}
}

// HandleRanks handles GET /ranks.
func (h *RankHandler) HandleRanks(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if h.ranks == nil {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.ranks.Tiers())
}

// HandleRankRewards handles GET /ranks/rewards.
func (h *RankHandler) HandleRankRewards(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	if h.rewards == nil {
		writeError(w, http.StatusNotFound, "not_found", nil)
		return
	}
	writeJSON(w, http.StatusOK, h.rewards.RankRewardTable())
}
