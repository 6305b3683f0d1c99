package models

import "time"

// PlayerSlot selects which side of a match a vote goes to.
type PlayerSlot string

const (
	Player1 PlayerSlot = "player1"
	Player2 PlayerSlot = "player2"
)

// Valid reports whether s is one of the two accepted selectors.
func (s PlayerSlot) Valid() bool {
	return s == Player1 || s == Player2
}

// VoteColumn returns the counter column for the slot.
func (s PlayerSlot) VoteColumn() (string, bool) {
	switch s {
	case Player1:
		return "player1_votes", true
	case Player2:
		return "player2_votes", true
	default:
		return "", false
	}
}

// VoteEntry is one row of the vote ledger
type VoteEntry struct {
	GameID    int        `bson:"game_id" json:"gameId"`
	Player    PlayerSlot `bson:"player" json:"player"`
	Voter     string     `bson:"voter" json:"voter"` // client IP
	VotedAt   time.Time  `bson:"voted_at" json:"votedAt"`
	ExpiresAt time.Time  `bson:"expires_at" json:"expiresAt"`
}

// Tally summarises the votes of a match. Shares are percentages with two
// decimals.
type Tally struct {
	GameID       int    `json:"gameId"`
	Player1Votes int    `json:"player1Votes"`
	Player2Votes int    `json:"player2Votes"`
	TotalVotes   int    `json:"totalVotes"`
	Player1Share string `json:"player1Share"`
	Player2Share string `json:"player2Share"`
}
