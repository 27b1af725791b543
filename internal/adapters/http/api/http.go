// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/websocket"
	"google.golang.org/grpc/codes"

	"github.com/okian/raceledger/internal/domain/apperr"
	"github.com/okian/raceledger/internal/domain/model"
	"github.com/okian/raceledger/internal/domain/player"
	"github.com/okian/raceledger/internal/domain/promotion"
	"github.com/okian/raceledger/internal/domain/rank"
	"github.com/okian/raceledger/internal/domain/reward"
	"github.com/okian/raceledger/internal/domain/settlement"
	"github.com/okian/raceledger/pkg/logger"
)

// RaceSettler runs the two-phase race lifecycle.
type RaceSettler interface {
	Start(ctx context.Context, req settlement.StartRequest) (settlement.StartResult, error)
	Finish(ctx context.Context, req settlement.FinishRequest) (settlement.FinishResult, error)
	Session(ctx context.Context, playerID, raceID string) (*model.RaceSession, error)
}

// RewardLedger claims and lists promotion rewards.
type RewardLedger interface {
	Claim(ctx context.Context, playerID, key string) (promotion.ClaimResult, error)
	Status(ctx context.Context, playerID string) ([]promotion.RewardStatus, error)
}

// Profiles reads and registers player profiles.
type Profiles interface {
	Get(ctx context.Context, playerID string) (player.View, error)
	Register(ctx context.Context, playerID string) (player.View, bool, error)
}

// RankRewards exposes the per-rank coin ceiling.
type RankRewards interface {
	RankRewardTable() []reward.RankReward
}

// PlayerResolver identifies the caller of a request.
type PlayerResolver interface {
	PlayerID(r *http.Request) (string, error)
}

// Notifier attaches a player's websocket until it disconnects.
type Notifier interface {
	Serve(ctx context.Context, playerID string, conn *websocket.Conn) error
}

// Dependencies bundles what the handlers need. Notifier and Stats may be nil.
type Dependencies struct {
	Races       RaceSettler
	Rewards     RewardLedger
	Profiles    Profiles
	Ranks       *rank.Table
	RankRewards RankRewards
	Auth        PlayerResolver
	Notifier    Notifier
	Stats       StatsProvider
	Logger      logger.Logger

	// AllowedOrigins lists extra browser origins for /ws.
	AllowedOrigins []string
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	racesHandler   *RacesHandler
	rewardsHandler *RewardsHandler
	rankHandler    *RankHandler
	profileHandler *ProfileHandler
	wsHandler      *WebsocketHandler
	auth           PlayerResolver
	logger         logger.Logger
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies) *Server {
	log := deps.Logger
	if log == nil {
		log = logger.Nop()
	}
	log = log.Named("api")
	return &Server{
		healthHandler:  NewHealthHandler(),
		statsHandler:   NewStatsHandler(deps.Stats),
		racesHandler:   NewRacesHandler(deps.Races),
		rewardsHandler: NewRewardsHandler(deps.Rewards),
		rankHandler:    NewRankHandler(deps.Ranks, deps.RankRewards),
		profileHandler: NewProfileHandler(deps.Profiles),
		wsHandler:      NewWebsocketHandler(deps.Notifier, log, deps.AllowedOrigins),
		auth:           deps.Auth,
		logger:         log,
	}
}

// Register attaches all HTTP routes to mux.
func (s *Server) Register(_ context.Context, mux *http.ServeMux) {
	mux.HandleFunc("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	mux.HandleFunc("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))
	mux.HandleFunc("/ranks", MetricsMiddleware(s.rankHandler.HandleRanks, "ranks"))
	mux.HandleFunc("/ranks/rewards", MetricsMiddleware(s.rankHandler.HandleRankRewards, "ranks_rewards"))

	mux.HandleFunc("/races/start", MetricsMiddleware(s.authed(s.racesHandler.HandleStart), "races_start"))
	mux.HandleFunc("/races/finish", MetricsMiddleware(s.authed(s.racesHandler.HandleFinish), "races_finish"))
	mux.HandleFunc("/races/", MetricsMiddleware(s.authed(s.racesHandler.HandleGetSession), "races_get"))
	mux.HandleFunc("/rewards", MetricsMiddleware(s.authed(s.rewardsHandler.HandleList), "rewards"))
	mux.HandleFunc("/rewards/claim", MetricsMiddleware(s.authed(s.rewardsHandler.HandleClaim), "rewards_claim"))
	mux.HandleFunc("/profile", MetricsMiddleware(s.authed(s.profileHandler.HandleProfile), "profile"))
	mux.HandleFunc("/ws", s.authed(s.wsHandler.HandleWS))
}

// authed resolves the caller before next runs.
func (s *Server) authed(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if s.auth == nil {
			writeAppError(w, apperr.New(apperr.Unauthenticated, "api.auth", "authentication is not configured"))
			return
		}
		id, err := s.auth.PlayerID(r)
		if err != nil {
			s.logger.Debug(r.Context(), "unauthenticated request",
				logger.String("path", r.URL.Path), logger.Error(err))
			writeAppError(w, err)
			return
		}
		next(w, r.WithContext(withPlayer(r.Context(), id)))
	}
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, code string, err error) {
	msg := http.StatusText(status)
	if err != nil {
		msg = err.Error()
	}
	writeJSON(w, status, errorResponse{Code: code, Message: msg})
}

// writeAppError maps the error code onto an HTTP status.
func writeAppError(w http.ResponseWriter, err error) {
	code := apperr.CodeOf(err)
	writeError(w, httpStatus(code), codeName(code), err)
}

func httpStatus(c codes.Code) int {
	switch c {
	case codes.InvalidArgument:
		return http.StatusBadRequest
	case codes.Unauthenticated:
		return http.StatusUnauthorized
	case codes.NotFound:
		return http.StatusNotFound
	case codes.FailedPrecondition:
		return http.StatusPreconditionFailed
	case codes.AlreadyExists, codes.Aborted:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

func codeName(c codes.Code) string {
	switch c {
	case codes.InvalidArgument:
		return "invalid_argument"
	case codes.Unauthenticated:
		return "unauthenticated"
	case codes.NotFound:
		return "not_found"
	case codes.FailedPrecondition:
		return "failed_precondition"
	case codes.AlreadyExists:
		return "already_exists"
	case codes.Aborted:
		return "aborted"
	default:
		return "internal"
	}
}

func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return apperr.Wrapf(apperr.InvalidArgument, "api.decode", ErrBadRequest, "malformed body: %v", err)
	}
	return nil
}

const maxBodyBytes = 1 << 20
