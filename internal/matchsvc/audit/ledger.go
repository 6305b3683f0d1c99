package audit

import (
	"context"
	"fmt"
	"time"

	"github.com/avvvet/matchvote-services/internal/db"
	"github.com/avvvet/matchvote-services/internal/matchsvc/models"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

const Collection = "vote_ledger"

type inserter interface {
	InsertOne(ctx context.Context, document interface{}, opts ...*options.InsertOneOptions) (*mongo.InsertOneResult, error)
}

// Ledger appends accepted votes to a mongo collection. Entries expire after
// ttl through the collection's TTL index.
type Ledger struct {
	coll inserter
	ttl  time.Duration
}

// NewLedger ensures the TTL index on the vote collection exists.
func NewLedger(ctx context.Context, database *mongo.Database, ttl time.Duration) (*Ledger, error) {
	if err := db.CreateTTLIndexForCollection(ctx, database, Collection); err != nil {
		return nil, err
	}
	return &Ledger{coll: database.Collection(Collection), ttl: ttl}, nil
}

func (l *Ledger) Record(ctx context.Context, entry models.VoteEntry) error {
	if entry.VotedAt.IsZero() {
		entry.VotedAt = time.Now().UTC()
	}
	entry.ExpiresAt = entry.VotedAt.Add(l.ttl)

	if _, err := l.coll.InsertOne(ctx, entry); err != nil {
		return fmt.Errorf("failed to record vote for match %d: %w", entry.GameID, err)
	}
	return nil
}

// Noop drops every entry; used when no mongo uri is configured.
type Noop struct{}

func (Noop) Record(context.Context, models.VoteEntry) error { return nil }
