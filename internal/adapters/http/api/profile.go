package api

import (
	"net/http"

	"github.com/okian/raceledger/internal/domain/player"
)

type registerResponse struct {
	Profile player.View `json:"profile"`
	Created bool        `json:"created"`
}

// ProfileHandler serves the caller's profile.
type ProfileHandler struct {
	profiles Profiles
}

// NewProfileHandler creates a new profile handler.
func NewProfileHandler(profiles Profiles) *ProfileHandler {
	return &ProfileHandler{profiles: profiles}
}

// HandleProfile handles GET /profile and POST /profile. POST creates an
// empty profile when none exists and is otherwise a read.
func (h *ProfileHandler) HandleProfile(w http.ResponseWriter, r *http.Request) {
	playerID, err := playerFrom(r.Context())
	if err != nil {
		writeAppError(w, err)
		return
	}
	switch r.Method {
	case http.MethodGet:
		v, err := h.profiles.Get(r.Context(), playerID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, v)
	case http.MethodPost:
		v, created, err := h.profiles.Register(r.Context(), playerID)
		if err != nil {
			writeAppError(w, err)
			return
		}
		status := http.StatusOK
		if created {
			status = http.StatusCreated
		}
		writeJSON(w, status, registerResponse{Profile: v, Created: created})
	default:
		http.NotFound(w, r)
	}
}
