package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/go-playground/validator/v10"
	log "github.com/sirupsen/logrus"
)

type MatchStore interface {
	Create(ctx context.Context, m models.NewMatch) (*models.Match, error)
	FindByGameID(ctx context.Context, gameID int) (*models.Match, error)
	ListRecent(ctx context.Context, limit int) ([]models.Match, error)
	Update(ctx context.Context, gameID int, patch models.MatchPatch) (*models.Match, error)
	Delete(ctx context.Context, gameID int) (*models.Match, error)
}

// EventPublisher forwards match changes to live subscribers.
type EventPublisher interface {
	Publish(ctx context.Context, event comm.MatchEvent) error
}

type CreateMatchInput struct {
	Player1      string  `json:"player1" validate:"required"`
	Player2      string  `json:"player2" validate:"required"`
	GameTime     string  `json:"gameTime" validate:"required"`
	Winner       *string `json:"winner"`
	Player1Score *int    `json:"player1Score"`
	Player2Score *int    `json:"player2Score"`
	Player1Image *string `json:"player1Image"`
	Player2Image *string `json:"player2Image"`
}

// BulkUpdateInput is the body of the legacy UPDATE /match call. Presence of
// every field except the vote counters is required.
type BulkUpdateInput struct {
	GameID       int     `json:"gameId" validate:"required,gt=0,max=2147483647"`
	Player1Score *int    `json:"player1Score" validate:"required"`
	Player2Score *int    `json:"player2Score" validate:"required"`
	Winner       *string `json:"winner" validate:"required,min=1"`
	IsCompleted  *bool   `json:"isCompleted" validate:"required"`
	Player1Votes *int    `json:"player1Votes"`
	Player2Votes *int    `json:"player2Votes"`
}

type MatchService struct {
	store     MatchStore
	publisher EventPublisher
	validate  *validator.Validate
}

func NewMatchService(store MatchStore, publisher EventPublisher) *MatchService {
	return &MatchService{
		store:     store,
		publisher: publisher,
		validate:  newValidator(),
	}
}

// ListMatches returns the newest matches first; limit <= 0 returns all.
func (s *MatchService) ListMatches(ctx context.Context, limit int) ([]models.Match, error) {
	matches, err := s.store.ListRecent(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}
	if matches == nil {
		matches = []models.Match{}
	}
	return matches, nil
}

func (s *MatchService) GetMatch(ctx context.Context, gameID int) (*models.Match, error) {
	match, err := s.store.FindByGameID(ctx, gameID)
	if err != nil {
		return nil, translate(err, "get match", gameID)
	}
	return match, nil
}

func (s *MatchService) CreateMatch(ctx context.Context, input CreateMatchInput) (*models.Match, error) {
	input.Player1 = strings.TrimSpace(input.Player1)
	input.Player2 = strings.TrimSpace(input.Player2)
	input.GameTime = strings.TrimSpace(input.GameTime)

	if err := s.check(input); err != nil {
		return nil, err
	}

	gameTime, err := parseGameTime(input.GameTime)
	if err != nil {
		return nil, err
	}

	newMatch := models.NewMatch{
		Player1:      input.Player1,
		Player2:      input.Player2,
		GameTime:     gameTime,
		Winner:       optional(input.Winner),
		Player1Score: valueOr(input.Player1Score, 0),
		Player2Score: valueOr(input.Player2Score, 0),
		Player1Image: optional(input.Player1Image),
		Player2Image: optional(input.Player2Image),
	}

	match, err := s.store.Create(ctx, newMatch)
	if err != nil {
		return nil, translate(err, "create match", 0)
	}

	log.Infof("match %d created (%s vs %s)", match.GameID, match.Player1, match.Player2)
	s.publish(ctx, comm.EventMatchCreated, match)
	return match, nil
}

// UpdateMatch merges the supplied fields over the stored match. No field
// level validation is applied.
func (s *MatchService) UpdateMatch(ctx context.Context, gameID int, patch models.MatchPatch) (*models.Match, error) {
	match, err := s.store.Update(ctx, gameID, patch)
	if err != nil {
		return nil, translate(err, "update match", gameID)
	}

	s.publish(ctx, comm.EventMatchUpdated, match)
	return match, nil
}

// BulkUpdate checks the legacy required fields and then goes through the
// same path as UpdateMatch.
func (s *MatchService) BulkUpdate(ctx context.Context, input BulkUpdateInput) (*models.Match, error) {
	if err := s.check(input); err != nil {
		return nil, err
	}

	patch := models.MatchPatch{
		Player1Score: input.Player1Score,
		Player2Score: input.Player2Score,
		Winner:       input.Winner,
		IsCompleted:  input.IsCompleted,
		Player1Votes: input.Player1Votes,
		Player2Votes: input.Player2Votes,
	}
	return s.UpdateMatch(ctx, input.GameID, patch)
}

// DeleteMatch removes the match and returns it as it was.
func (s *MatchService) DeleteMatch(ctx context.Context, gameID int) (*models.Match, error) {
	match, err := s.store.Delete(ctx, gameID)
	if err != nil {
		return nil, translate(err, "delete match", gameID)
	}

	log.Infof("match %d deleted", gameID)
	s.publish(ctx, comm.EventMatchDeleted, match)
	return match, nil
}

func (s *MatchService) check(input interface{}) error {
	return checkStruct(s.validate, input)
}

func (s *MatchService) publish(ctx context.Context, eventType string, match *models.Match) {
	publishEvent(ctx, s.publisher, eventType, match)
}

func publishEvent(ctx context.Context, publisher EventPublisher, eventType string, match *models.Match) {
	if publisher == nil {
		return
	}
	data, err := json.Marshal(match)
	if err != nil {
		log.WithError(err).Errorf("failed to encode match %d for %s", match.GameID, eventType)
		return
	}
	event := comm.MatchEvent{
		Type:   eventType,
		GameID: match.GameID,
		Match:  data,
		At:     time.Now().UTC(),
	}
	if err := publisher.Publish(ctx, event); err != nil {
		log.WithError(err).Warnf("failed to publish %s for match %d", eventType, match.GameID)
	}
}

func newValidator() *validator.Validate {
	v := validator.New()
	// report fields by their json names
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})
	return v
}

// checkStruct runs the validator and folds its field errors into one
// ErrValidation naming the offending fields.
func checkStruct(v *validator.Validate, input interface{}) error {
	err := v.Struct(input)
	if err == nil {
		return nil
	}

	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %v", ErrValidation, err)
	}

	var missing, invalid []string
	for _, fe := range fieldErrs {
		if fe.Tag() == "required" {
			missing = append(missing, fe.Field())
		} else {
			invalid = append(invalid, fe.Field())
		}
	}

	var parts []string
	if len(missing) > 0 {
		parts = append(parts, "missing required fields: "+strings.Join(missing, ", "))
	}
	if len(invalid) > 0 {
		parts = append(parts, "invalid fields: "+strings.Join(invalid, ", "))
	}
	return fmt.Errorf("%w: %s", ErrValidation, strings.Join(parts, "; "))
}

func parseGameTime(value string) (time.Time, error) {
	t, err := models.ParseGameTime(value)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %v", ErrValidation, err)
	}
	return t, nil
}

// optional maps an absent or empty reference to nil.
func optional(v *string) *string {
	if v == nil {
		return nil
	}
	trimmed := strings.TrimSpace(*v)
	if trimmed == "" {
		return nil
	}
	return &trimmed
}

func valueOr(v *int, def int) int {
	if v == nil {
		return def
	}
	return *v
}
