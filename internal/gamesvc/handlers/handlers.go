package handlers

import (
	"encoding/json"
	"net/http"
	"os"

	"github.com/go-chi/chi"
	"github.com/go-chi/jwtauth"
	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/gamesvc/game"
	"github.com/mekides/tictactoe-services/internal/gamesvc/service"
)

type Handler struct {
	tokenAuth     *jwtauth.JWTAuth
	gameService   *service.GameService
	playerService *service.PlayerService
}

func NewHandler(gameService *service.GameService, playerService *service.PlayerService) *Handler {
	return &Handler{
		gameService:   gameService,
		playerService: playerService,
	}
}

type Response struct {
	Message string      `json:"message"`
	Code    int         `json:"code"`
	Data    interface{} `json:"data"`
	Error   string      `json:"error"`
}

func (h *Handler) CreateResponse(w http.ResponseWriter, rsp Response) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rsp.Code)

	json.NewEncoder(w).Encode(rsp)
}

// statusForKind maps the domain error taxonomy to HTTP statuses.
// Lifecycle, turn and cell conflicts are all 409: the request was well
// formed, the game state just does not admit it.
func statusForKind(kind game.Kind) int {
	switch kind {
	case game.KindInvalidInput:
		return http.StatusBadRequest
	case game.KindNotFound:
		return http.StatusNotFound
	case game.KindForbidden:
		return http.StatusForbidden
	case game.KindInvalidState, game.KindOutOfTurn, game.KindCellOccupied:
		return http.StatusConflict
	default:
		return http.StatusInternalServerError
	}
}

// fail writes a domain error. Untagged errors are logged and reported
// as a plain 500, the caller gets no internals.
func (h *Handler) fail(w http.ResponseWriter, err error) {
	kind := game.KindOf(err)
	if kind == "" {
		log.Errorf("internal error: %s", err)
		h.CreateResponse(w, Response{Code: http.StatusInternalServerError, Error: "internal error"})
		return
	}
	h.CreateResponse(w, Response{Code: statusForKind(kind), Error: err.Error()})
}

type createGameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) CreateGame(w http.ResponseWriter, r *http.Request) {
	var req createGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, game.E(game.KindInvalidInput, "invalid request body"))
		return
	}

	g, err := h.gameService.Create(r.Context(), req.Username)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusCreated, Data: g})
}

type joinGameRequest struct {
	Username string `json:"username"`
}

func (h *Handler) JoinGame(w http.ResponseWriter, r *http.Request) {
	var req joinGameRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, game.E(game.KindInvalidInput, "invalid request body"))
		return
	}

	g, err := h.gameService.Join(r.Context(), chi.URLParam(r, "gameID"), req.Username)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: g})
}

type submitMoveRequest struct {
	Username string `json:"username"`
	Position *int   `json:"position"`
}

func (h *Handler) SubmitMove(w http.ResponseWriter, r *http.Request) {
	var req submitMoveRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, game.E(game.KindInvalidInput, "invalid request body"))
		return
	}
	if req.Position == nil {
		h.fail(w, game.E(game.KindInvalidInput, "username and numeric position are required"))
		return
	}

	moveID, err := h.gameService.SubmitMove(r.Context(), chi.URLParam(r, "gameID"), req.Username, *req.Position)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusCreated, Data: map[string]string{"move_id": moveID}})
}

func (h *Handler) GameState(w http.ResponseWriter, r *http.Request) {
	snapshot, err := h.gameService.Snapshot(r.Context(), chi.URLParam(r, "gameID"))
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: snapshot})
}

func (h *Handler) ListOpenGames(w http.ResponseWriter, r *http.Request) {
	games, err := h.gameService.ListOpen(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: games})
}

func (h *Handler) PlayerHistory(w http.ResponseWriter, r *http.Request) {
	entries, err := h.gameService.History(r.Context(), chi.URLParam(r, "username"))
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: entries})
}

type upsertPlayerRequest struct {
	Username string `json:"username"`
}

func (h *Handler) UpsertPlayer(w http.ResponseWriter, r *http.Request) {
	var req upsertPlayerRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.fail(w, game.E(game.KindInvalidInput, "invalid request body"))
		return
	}

	player, err := h.playerService.Upsert(r.Context(), req.Username)
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusCreated, Data: player})
}

func (h *Handler) Leaderboard(w http.ResponseWriter, r *http.Request) {
	entries, err := h.playerService.Leaderboard(r.Context())
	if err != nil {
		h.fail(w, err)
		return
	}

	h.CreateResponse(w, Response{Code: http.StatusOK, Data: entries})
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	rsp := Response{
		Message: "game service is running at port " + os.Getenv("GAME_SERVICE_PORT"),
		Code:    200,
		Data:    nil,
	}
	json.NewEncoder(w).Encode(rsp)
}
