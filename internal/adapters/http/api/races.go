package api

import (
	"net/http"
	"strings"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/internal/domain/settlement"
)

// startRequest mirrors the OpenAPI schema for POST /races/start.
type startRequest struct {
	RaceID       string    `json:"race_id"`
	LobbyRatings []float64 `json:"lobby_ratings"`
	PlayerIndex  *int      `json:"player_index"`
}

// finishRequest mirrors the OpenAPI schema for POST /races/finish.
type finishRequest struct {
	RaceID         string `json:"race_id"`
	FinishOrder    []int  `json:"finish_order"`
	Place          *int   `json:"place"`
	HasCoinBooster bool   `json:"has_coin_booster"`
	HasExpBooster  bool   `json:"has_exp_booster"`
}

// RacesHandler serves the race lifecycle.
type RacesHandler struct {
	races RaceSettler
}

// NewRacesHandler creates a new races handler.
func NewRacesHandler(races RaceSettler) *RacesHandler {
	return &RacesHandler{races: races}
}

// HandleStart handles POST /races/start.
func (h *RacesHandler) HandleStart(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req startRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.PlayerIndex == nil {
		writeAppError(w, missingField("api.start_race", "player_index"))
		return
	}
	res, err := h.races.Start(r.Context(), settlement.StartRequest{
		PlayerID: playerID,
		RaceID:   req.RaceID,
		Lobby:    model.NewLobby(req.LobbyRatings, *req.PlayerIndex),
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleFinish handles POST /races/finish.
func (h *RacesHandler) HandleFinish(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.NotFound(w, r)
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	var req finishRequest
	if err := decodeJSON(w, r, &req); err != nil {
		writeAppError(w, err)
		return
	}
	if req.Place == nil {
		writeAppError(w, missingField("api.finish_race", "place"))
		return
	}
	res, err := h.races.Finish(r.Context(), settlement.FinishRequest{
		PlayerID:    playerID,
		RaceID:      req.RaceID,
		FinishOrder: req.FinishOrder,
		Place:       *req.Place,
		CoinBooster: req.HasCoinBooster,
		ExpBooster:  req.HasExpBooster,
	})
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// HandleGetSession handles GET /races/{race_id}.
func (h *RacesHandler) HandleGetSession(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.NotFound(w, r)
		return
	}
	raceID := strings.TrimPrefix(r.URL.Path, "/races/")
	if raceID == "" || strings.Contains(raceID, "/") {
		writeAppError(w, apperr.Wrap(apperr.InvalidArgument, "api.get_race", ErrBadRequest))
		return
	}
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	s, err := h.races.Session(r.Context(), playerID, raceID)
	if err != nil {
		writeAppError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, s)
}

func missingField(op, name string) error {
	return apperr.Wrapf(apperr.InvalidArgument, op, ErrMissingField, "%s is required", name)
}
