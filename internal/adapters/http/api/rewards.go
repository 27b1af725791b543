package api

import (
	"net/http"

	"github.com/okian/raceledger/internal/domain/promotion"
)

type claimRequest struct {
	RewardKey string `json:"reward_key"`
}

type claimResponse struct {
	RewardsGranted promotion.ClaimResult `json:"rewards_granted"`
}

type rewardView struct {
	promotion.Reward
	State string `json:"state"`
}

// RewardsHandler serves promotion reward claims.
type RewardsHandler struct {
	ledger RewardLedger
}

// NewRewardsHandler creates a new rewards handler.
func NewRewardsHandler(ledger RewardLedger) *RewardsHandler {
	return &RewardsHandler{ledger: ledger}
}

// HandleClaim handles POST /rewards/claim.
func (h *RewardsHandler) HandleClaim(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req claimRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	res, err := h.ledger.Claim(r.Context(), playerID, req.RewardKey)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, claimResponse{RewardsGranted: res})
}

// HandleList handles GET /rewards.
func (h *RewardsHandler) HandleList(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	status, err := h.ledger.Status(r.Context(), playerID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	out := make([]rewardView, 0, len(status))
	for _, s := range status {
		out = append(out, rewardView{Reward: s.Reward, State: s.State.String()})
	}
	writeJSON(w, http.StatusOK, out)
}
