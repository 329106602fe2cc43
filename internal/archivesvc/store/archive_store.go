package store

import (
	"context"
	"fmt"
	"time"

	"go.mongodb.org/mongo-driver/mongo"
)

// GameArchive is the finished-game document kept for history browsing.
// It is written once per game and never read on the hot path; the
// Postgres ledger stays the source of truth.
type GameArchive struct {
	GameID       string     `bson:"game_id"`
	Player1ID    string     `bson:"player1_id"`
	Player2ID    string     `bson:"player2_id"`
	WinnerID     string     `bson:"winner_id,omitempty"`
	WinnerSymbol string     `bson:"winner_symbol,omitempty"`
	IsDraw       bool       `bson:"is_draw"`
	Board        [9]string  `bson:"board"`
	MoveCount    int        `bson:"move_count"`
	EndedAt      *time.Time `bson:"ended_at"`
	ArchivedAt   time.Time  `bson:"archived_at"`
	ExpiresAt    *time.Time `bson:"expires_at,omitempty"` // drives the TTL index when retention is configured
}

type ArchiveStore struct {
	coll *mongo.Collection
}

func NewArchiveStore(db *mongo.Database, collectionName string) *ArchiveStore {
	return &ArchiveStore{coll: db.Collection(collectionName)}
}

// Insert writes one archive document.
func (s *ArchiveStore) Insert(ctx context.Context, doc GameArchive) error {
	if _, err := s.coll.InsertOne(ctx, doc); err != nil {
		return fmt.Errorf("failed to insert game archive for %s: %w", doc.GameID, err)
	}
	return nil
}
