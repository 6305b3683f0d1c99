package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jmoiron/sqlx"
	log "github.com/sirupsen/logrus"
)

var (
	ErrMatchNotFound   = errors.New("match not found")
	ErrMatchCompleted  = errors.New("match is completed")
	ErrGameIDConflict  = errors.New("game id already taken")
	ErrNoGameIDCounter = errors.New("game id counter row missing")
)

const (
	gameIDConstraint = "game_records_game_id_key"

	// attempts made by Create before giving up on a game_id collision
	createAttempts = 3

	matchColumns = `id, game_id, player1, player2, player1_score, player2_score,
		player1_votes, player2_votes, winner, is_completed, player1_image, player2_image,
		game_time, created_at, updated_at`
)

type MatchStore struct {
	db *sqlx.DB
}

func NewMatchStore(db *sqlx.DB) *MatchStore {
	return &MatchStore{db: db}
}

// Create inserts a match and assigns it the next game id in the same
// statement. Ids come from the game_id_counter high-water mark, so deleting
// the newest match never frees its id. The counter row lock serializes
// concurrent creates; the unique constraint on game_id still guards against
// rows inserted outside the counter, and a collision is retried.
func (s *MatchStore) Create(ctx context.Context, m models.NewMatch) (*models.Match, error) {
	query := `
		WITH next AS (
			UPDATE game_id_counter
			SET last_id = GREATEST(last_id, (SELECT COALESCE(MAX(game_id), 0) FROM game_records)) + 1
			RETURNING last_id
		)
		INSERT INTO game_records (
			id, game_id, player1, player2, game_time, winner,
			player1_score, player2_score, player1_image, player2_image
		)
		SELECT $1, next.last_id, $2, $3, $4, $5, $6, $7, $8, $9
		FROM next
		RETURNING ` + matchColumns

	for attempt := 1; attempt <= createAttempts; attempt++ {
		match := &models.Match{}
		err := s.db.GetContext(ctx, match, query,
			uuid.New(),
			m.Player1,
			m.Player2,
			m.GameTime,
			m.Winner,
			m.Player1Score,
			m.Player2Score,
			m.Player1Image,
			m.Player2Image,
		)
		if err == nil {
			return match, nil
		}
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNoGameIDCounter
		}
		if !isUniqueViolation(err, gameIDConstraint) {
			return nil, fmt.Errorf("failed to create match: %w", err)
		}
		log.Warnf("game id collision on create, attempt %d of %d", attempt, createAttempts)
	}

	return nil, ErrGameIDConflict
}

func (s *MatchStore) FindByGameID(ctx context.Context, gameID int) (*models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM game_records WHERE game_id = $1`

	match := &models.Match{}
	if err := s.db.GetContext(ctx, match, query, gameID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to get match %d: %w", gameID, err)
	}

	return match, nil
}

// ListRecent returns matches newest first. A limit <= 0 returns all of them.
func (s *MatchStore) ListRecent(ctx context.Context, limit int) ([]models.Match, error) {
	query := `SELECT ` + matchColumns + ` FROM game_records ORDER BY created_at DESC, game_id DESC`

	var args []interface{}
	if limit > 0 {
		query += ` LIMIT $1`
		args = append(args, limit)
	}

	matches := []models.Match{}
	if err := s.db.SelectContext(ctx, &matches, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list matches: %w", err)
	}

	return matches, nil
}

// Update applies the non-nil fields of patch and refreshes updated_at.
func (s *MatchStore) Update(ctx context.Context, gameID int, patch models.MatchPatch) (*models.Match, error) {
	var (
		sets []string
		args []interface{}
	)
	set := func(column string, value interface{}) {
		args = append(args, value)
		sets = append(sets, fmt.Sprintf("%s = $%d", column, len(args)))
	}

	if patch.Player1 != nil {
		set("player1", *patch.Player1)
	}
	if patch.Player2 != nil {
		set("player2", *patch.Player2)
	}
	if patch.Player1Score != nil {
		set("player1_score", *patch.Player1Score)
	}
	if patch.Player2Score != nil {
		set("player2_score", *patch.Player2Score)
	}
	if patch.Player1Votes != nil {
		set("player1_votes", *patch.Player1Votes)
	}
	if patch.Player2Votes != nil {
		set("player2_votes", *patch.Player2Votes)
	}
	if patch.Winner != nil {
		set("winner", nullIfEmpty(*patch.Winner))
	}
	if patch.IsCompleted != nil {
		set("is_completed", *patch.IsCompleted)
	}
	if patch.Player1Image != nil {
		set("player1_image", nullIfEmpty(*patch.Player1Image))
	}
	if patch.Player2Image != nil {
		set("player2_image", nullIfEmpty(*patch.Player2Image))
	}
	if patch.GameTime != nil {
		set("game_time", patch.GameTime.Time)
	}
	sets = append(sets, "updated_at = NOW()")
	args = append(args, gameID)

	query := fmt.Sprintf(`UPDATE game_records SET %s WHERE game_id = $%d RETURNING %s`,
		strings.Join(sets, ", "), len(args), matchColumns)

	match := &models.Match{}
	if err := s.db.GetContext(ctx, match, query, args...); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to update match %d: %w", gameID, err)
	}

	return match, nil
}

// Delete removes the match and returns the row as it was.
func (s *MatchStore) Delete(ctx context.Context, gameID int) (*models.Match, error) {
	query := `DELETE FROM game_records WHERE game_id = $1 RETURNING ` + matchColumns

	match := &models.Match{}
	if err := s.db.GetContext(ctx, match, query, gameID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrMatchNotFound
		}
		return nil, fmt.Errorf("failed to delete match %d: %w", gameID, err)
	}

	return match, nil
}

// IncrementVotes adds one vote to the slot's counter unless the match is
// completed. The completion check and the increment are one statement, so a
// vote never lands after completion has committed.
func (s *MatchStore) IncrementVotes(ctx context.Context, gameID int, slot models.PlayerSlot) (*models.Match, error) {
	column, ok := slot.VoteColumn()
	if !ok {
		return nil, fmt.Errorf("unknown player slot %q", slot)
	}

	query := fmt.Sprintf(`
		UPDATE game_records
		SET %[1]s = %[1]s + 1, updated_at = NOW()
		WHERE game_id = $1 AND is_completed = FALSE
		RETURNING %[2]s`, column, matchColumns)

	match := &models.Match{}
	err := s.db.GetContext(ctx, match, query, gameID)
	if err == nil {
		return match, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("failed to increment votes of match %d: %w", gameID, err)
	}

	// no row matched: either the match is gone or it was completed
	if _, err := s.FindByGameID(ctx, gameID); err != nil {
		return nil, err
	}
	return nil, ErrMatchCompleted
}

func isUniqueViolation(err error, constraint string) bool {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) {
		return false
	}
	return pgErr.Code == "23505" && pgErr.ConstraintName == constraint
}

func nullIfEmpty(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}
