package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"strings"

	"github.com/avvvet/matchvote-services/internal/matchsvc/imagestore"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/avvvet/matchvote-services/internal/matchsvc/service"
	"github.com/go-chi/chi"
	log "github.com/sirupsen/logrus"
)

const maxBodyBytes = 1_048_576

var errEmptyBody = errors.New("body must not be empty")

type MatchService interface {
	ListMatches(ctx context.Context, limit int) ([]models.Match, error)
	GetMatch(ctx context.Context, gameID int) (*models.Match, error)
	CreateMatch(ctx context.Context, input service.CreateMatchInput) (*models.Match, error)
	UpdateMatch(ctx context.Context, gameID int, patch models.MatchPatch) (*models.Match, error)
	BulkUpdate(ctx context.Context, input service.BulkUpdateInput) (*models.Match, error)
	DeleteMatch(ctx context.Context, gameID int) (*models.Match, error)
}

type VoteService interface {
	CastVote(ctx context.Context, input service.VoteInput) (*models.Match, error)
	Tally(ctx context.Context, gameID int) (*models.Tally, error)
}

type Options struct {
	Service       string
	InstanceID    string
	VoteRateLimit int // votes per minute per ip, 0 disables the extra limit
}

type Handler struct {
	matches MatchService
	votes   VoteService
	images  imagestore.Store
	opts    Options
}

func NewHandler(matches MatchService, votes VoteService, images imagestore.Store, opts Options) *Handler {
	return &Handler{
		matches: matches,
		votes:   votes,
		images:  images,
		opts:    opts,
	}
}

// Response is the envelope of every match and vote endpoint.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   string      `json:"error,omitempty"`
}

func (h *Handler) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, Response{
		Success: true,
		Data: map[string]string{
			"service":    h.opts.Service,
			"instanceId": h.opts.InstanceID,
			"status":     "ok",
		},
	})
}

// readJSON decodes a single JSON value into dst. Unknown fields are ignored.
func readJSON(w http.ResponseWriter, r *http.Request, dst interface{}) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)

	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(dst); err != nil {
		var syntaxError *json.SyntaxError
		var unmarshalTypeError *json.UnmarshalTypeError
		var maxBytesError *http.MaxBytesError

		switch {
		case errors.Is(err, io.EOF):
			return errEmptyBody
		case errors.As(err, &syntaxError):
			return fmt.Errorf("body contains badly-formed JSON (at character %d)", syntaxError.Offset)
		case errors.Is(err, io.ErrUnexpectedEOF):
			return errors.New("body contains badly-formed JSON")
		case errors.As(err, &unmarshalTypeError):
			if unmarshalTypeError.Field != "" {
				return fmt.Errorf("body contains incorrect JSON type for field %q", unmarshalTypeError.Field)
			}
			return fmt.Errorf("body contains incorrect JSON type (at character %d)", unmarshalTypeError.Offset)
		case errors.As(err, &maxBytesError):
			return fmt.Errorf("body must not be larger than %d bytes", maxBodyBytes)
		case errors.Is(err, models.ErrInvalidGameTime):
			return err
		default:
			log.WithError(err).Debug("request body rejected")
			return errors.New("body contains invalid JSON")
		}
	}

	if err := dec.Decode(&struct{}{}); !errors.Is(err, io.EOF) {
		return errors.New("body must only contain a single JSON value")
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		log.Errorf("error writing json response: %v", err)
	}
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, Response{Success: false, Error: message})
}

func badRequest(w http.ResponseWriter, err error) {
	errorResponse(w, http.StatusBadRequest, err.Error())
}

// serviceError maps service errors to a status and a message safe for
// clients. Unexpected errors are logged and answered with fallback.
func serviceError(w http.ResponseWriter, r *http.Request, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrValidation):
		errorResponse(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, service.ErrVotingClosed):
		errorResponse(w, http.StatusBadRequest, "Voting is not allowed for completed games")
	case errors.Is(err, service.ErrNotFound):
		errorResponse(w, http.StatusNotFound, "Game not found")
	case errors.Is(err, service.ErrConflict):
		errorResponse(w, http.StatusConflict, "Game id was taken by a concurrent request, please retry")
	default:
		log.WithError(err).Errorf("%s %s failed", r.Method, r.URL.Path)
		errorResponse(w, http.StatusInternalServerError, fallback)
	}
}

// gameIDParam reads the {gameId} url parameter. Valid ids are positive and
// fit the INTEGER game_id column.
func gameIDParam(r *http.Request) (int, error) {
	raw := chi.URLParam(r, "gameId")
	id, err := strconv.ParseInt(raw, 10, 32)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid game id %q", raw)
	}
	return int(id), nil
}

// clientIP expects middleware.RealIP to have run.
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return strings.TrimSpace(r.RemoteAddr)
	}
	return host
}
