package service

import (
	"context"
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	log "github.com/sirupsen/logrus"
)

type VoteStore interface {
	FindByGameID(ctx context.Context, gameID int) (*models.Match, error)
	IncrementVotes(ctx context.Context, gameID int, slot models.PlayerSlot) (*models.Match, error)
}

// VoteRecorder keeps an audit trail of accepted votes.
type VoteRecorder interface {
	Record(ctx context.Context, entry models.VoteEntry) error
}

type VoteInput struct {
	GameID int    `json:"gameId" validate:"required,gt=0,max=2147483647"`
	Player string `json:"player" validate:"required,oneof=player1 player2"`
	Voter  string `json:"-"`
}

type VoteService struct {
	store     VoteStore
	recorder  VoteRecorder
	publisher EventPublisher
	validate  *validator.Validate
}

func NewVoteService(store VoteStore, recorder VoteRecorder, publisher EventPublisher) *VoteService {
	return &VoteService{
		store:     store,
		recorder:  recorder,
		publisher: publisher,
		validate:  newValidator(),
	}
}

// CastVote adds one vote for the selected player unless the match is
// completed.
func (s *VoteService) CastVote(ctx context.Context, input VoteInput) (*models.Match, error) {
	if err := checkStruct(s.validate, input); err != nil {
		return nil, err
	}

	slot := models.PlayerSlot(input.Player)
	match, err := s.store.IncrementVotes(ctx, input.GameID, slot)
	if err != nil {
		return nil, translate(err, "cast vote", input.GameID)
	}

	s.record(ctx, input, slot)
	publishEvent(ctx, s.publisher, comm.EventVoteCast, match)
	return match, nil
}

// Tally reports vote counts and percentage shares of a match.
func (s *VoteService) Tally(ctx context.Context, gameID int) (*models.Tally, error) {
	match, err := s.store.FindByGameID(ctx, gameID)
	if err != nil {
		return nil, translate(err, "tally votes", gameID)
	}

	total := match.Player1Votes + match.Player2Votes
	tally := &models.Tally{
		GameID:       match.GameID,
		Player1Votes: match.Player1Votes,
		Player2Votes: match.Player2Votes,
		TotalVotes:   total,
		Player1Share: share(match.Player1Votes, total),
		Player2Share: share(match.Player2Votes, total),
	}
	return tally, nil
}

// the counter has committed already, a ledger failure only gets logged
func (s *VoteService) record(ctx context.Context, input VoteInput, slot models.PlayerSlot) {
	if s.recorder == nil {
		return
	}
	entry := models.VoteEntry{
		GameID:  input.GameID,
		Player:  slot,
		Voter:   input.Voter,
		VotedAt: time.Now().UTC(),
	}
	if err := s.recorder.Record(ctx, entry); err != nil {
		log.WithError(err).Warnf("failed to record vote for match %d", input.GameID)
	}
}

func share(votes, total int) string {
	if total == 0 {
		return decimal.Zero.StringFixed(2)
	}
	hundred := decimal.NewFromInt(100)
	return decimal.NewFromInt(int64(votes)).
		Mul(hundred).
		DivRound(decimal.NewFromInt(int64(total)), 2).
		StringFixed(2)
}
