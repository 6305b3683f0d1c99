package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"github.com/avvvet/matchvote-services/internal/matchsvc/store"
	"github.com/google/uuid"
)

// memStore keeps matches in memory and honours the store contract: game ids
// follow a high-water mark, vote increments are gated on completion atomically.
type memStore struct {
	mu      sync.Mutex
	matches map[int]*models.Match
	clock   time.Time
	creates int
	lastID  int
}

func newMemStore() *memStore {
	return &memStore{
		matches: map[int]*models.Match{},
		clock:   time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC),
	}
}

func (s *memStore) tick() time.Time {
	s.clock = s.clock.Add(time.Second)
	return s.clock
}

func (s *memStore) Create(_ context.Context, m models.NewMatch) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.lastID++
	next := s.lastID
	now := s.tick()
	match := &models.Match{
		ID:           uuid.New(),
		GameID:       next,
		Player1:      m.Player1,
		Player2:      m.Player2,
		Player1Score: m.Player1Score,
		Player2Score: m.Player2Score,
		Winner:       m.Winner,
		Player1Image: m.Player1Image,
		Player2Image: m.Player2Image,
		GameTime:     m.GameTime,
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	s.matches[next] = match
	s.creates++
	copied := *match
	return &copied, nil
}

func (s *memStore) FindByGameID(_ context.Context, gameID int) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[gameID]
	if !ok {
		return nil, store.ErrMatchNotFound
	}
	copied := *match
	return &copied, nil
}

func (s *memStore) ListRecent(_ context.Context, limit int) ([]models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	matches := make([]models.Match, 0, len(s.matches))
	for _, m := range s.matches {
		matches = append(matches, *m)
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].CreatedAt.Equal(matches[j].CreatedAt) {
			return matches[i].GameID > matches[j].GameID
		}
		return matches[i].CreatedAt.After(matches[j].CreatedAt)
	})
	if limit > 0 && len(matches) > limit {
		matches = matches[:limit]
	}
	return matches, nil
}

func (s *memStore) Update(_ context.Context, gameID int, patch models.MatchPatch) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[gameID]
	if !ok {
		return nil, store.ErrMatchNotFound
	}
	if patch.Player1 != nil {
		match.Player1 = *patch.Player1
	}
	if patch.Player2 != nil {
		match.Player2 = *patch.Player2
	}
	if patch.Player1Score != nil {
		match.Player1Score = *patch.Player1Score
	}
	if patch.Player2Score != nil {
		match.Player2Score = *patch.Player2Score
	}
	if patch.Player1Votes != nil {
		match.Player1Votes = *patch.Player1Votes
	}
	if patch.Player2Votes != nil {
		match.Player2Votes = *patch.Player2Votes
	}
	if patch.Winner != nil {
		match.Winner = emptyToNil(*patch.Winner)
	}
	if patch.IsCompleted != nil {
		match.IsCompleted = *patch.IsCompleted
	}
	if patch.Player1Image != nil {
		match.Player1Image = emptyToNil(*patch.Player1Image)
	}
	if patch.Player2Image != nil {
		match.Player2Image = emptyToNil(*patch.Player2Image)
	}
	if patch.GameTime != nil {
		match.GameTime = patch.GameTime.Time
	}
	match.UpdatedAt = s.tick()
	copied := *match
	return &copied, nil
}

func (s *memStore) Delete(_ context.Context, gameID int) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[gameID]
	if !ok {
		return nil, store.ErrMatchNotFound
	}
	delete(s.matches, gameID)
	return match, nil
}

func (s *memStore) IncrementVotes(_ context.Context, gameID int, slot models.PlayerSlot) (*models.Match, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	match, ok := s.matches[gameID]
	if !ok {
		return nil, store.ErrMatchNotFound
	}
	if match.IsCompleted {
		return nil, store.ErrMatchCompleted
	}
	switch slot {
	case models.Player1:
		match.Player1Votes++
	case models.Player2:
		match.Player2Votes++
	}
	match.UpdatedAt = s.tick()
	copied := *match
	return &copied, nil
}

func (s *memStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.matches)
}

func emptyToNil(v string) *string {
	if v == "" {
		return nil
	}
	return &v
}

type capturePublisher struct {
	mu     sync.Mutex
	events []comm.MatchEvent
	err    error
}

func (p *capturePublisher) Publish(_ context.Context, event comm.MatchEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
	return p.err
}

func (p *capturePublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	var types []string
	for _, e := range p.events {
		types = append(types, e.Type)
	}
	return types
}

type captureRecorder struct {
	mu      sync.Mutex
	entries []models.VoteEntry
	err     error
}

func (r *captureRecorder) Record(_ context.Context, entry models.VoteEntry) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.entries = append(r.entries, entry)
	return r.err
}
