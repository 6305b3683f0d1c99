package models

import (
	"time"

	"github.com/google/uuid"
)

// Match is one head-to-head game record (game_records table).
type Match struct {
	ID           uuid.UUID `db:"id" json:"id"`          // internal key, never used for lookups
	GameID       int       `db:"game_id" json:"gameId"` // public sequential id
	Player1      string    `db:"player1" json:"player1"`
	Player2      string    `db:"player2" json:"player2"`
	Player1Score int       `db:"player1_score" json:"player1Score"`
	Player2Score int       `db:"player2_score" json:"player2Score"`
	Player1Votes int       `db:"player1_votes" json:"player1Votes"`
	Player2Votes int       `db:"player2_votes" json:"player2Votes"`
	Winner       *string   `db:"winner" json:"winner"`
	IsCompleted  bool      `db:"is_completed" json:"isCompleted"`
	Player1Image *string   `db:"player1_image" json:"player1Image"`
	Player2Image *string   `db:"player2_image" json:"player2Image"`
	GameTime     time.Time `db:"game_time" json:"gameTime"`
	CreatedAt    time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt    time.Time `db:"updated_at" json:"updatedAt"`
}

// NewMatch holds the fields of a match about to be inserted. GameID is
// assigned by the store.
type NewMatch struct {
	Player1      string
	Player2      string
	GameTime     time.Time
	Winner       *string
	Player1Score int
	Player2Score int
	Player1Image *string
	Player2Image *string
}

// MatchPatch lists the editable columns of a match. Nil fields are left
// untouched. An empty string for Winner or an image clears the column.
type MatchPatch struct {
	Player1      *string   `json:"player1"`
	Player2      *string   `json:"player2"`
	Player1Score *int      `json:"player1Score"`
	Player2Score *int      `json:"player2Score"`
	Player1Votes *int      `json:"player1Votes"`
	Player2Votes *int      `json:"player2Votes"`
	Winner       *string   `json:"winner"`
	IsCompleted  *bool     `json:"isCompleted"`
	Player1Image *string   `json:"player1Image"`
	Player2Image *string   `json:"player2Image"`
	GameTime     *GameTime `json:"gameTime"`
}

// Empty reports whether the patch changes no column.
func (p MatchPatch) Empty() bool {
	return p.Player1 == nil && p.Player2 == nil &&
		p.Player1Score == nil && p.Player2Score == nil &&
		p.Player1Votes == nil && p.Player2Votes == nil &&
		p.Winner == nil && p.IsCompleted == nil &&
		p.Player1Image == nil && p.Player2Image == nil &&
		p.GameTime == nil
}
