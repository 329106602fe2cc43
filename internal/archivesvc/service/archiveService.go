package service

import (
	"context"
	"encoding/json"
	"time"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/archivesvc/store"
	"github.com/mekides/tictactoe-services/internal/comm"
)

// Archiver is the store surface the consumer needs.
type Archiver interface {
	Insert(ctx context.Context, doc store.GameArchive) error
}

// ArchiveService consumes game-finished events and persists the archive
// document. Retention is optional: with a positive TTL each document
// carries an expires_at the Mongo TTL index acts on.
type ArchiveService struct {
	archives Archiver
	ttl      time.Duration
}

func NewArchiveService(archives Archiver, ttl time.Duration) *ArchiveService {
	return &ArchiveService{archives: archives, ttl: ttl}
}

// Subscribe starts consuming game events from the topic. Messages other
// than game-finished are skipped; socketsvc handles those.
func (s *ArchiveService) Subscribe(nc *nats.Conn, topic string) (*nats.Subscription, error) {
	return nc.Subscribe(topic, s.handleMessage)
}

func (s *ArchiveService) handleMessage(msgNats *nats.Msg) {
	msg := &comm.WSMessage{}
	if err := json.Unmarshal(msgNats.Data, msg); err != nil {
		log.Errorf("Error nats message %s", err)
		return
	}

	if msg.Type != comm.TypeGameFinished {
		return
	}

	var ev comm.GameEvent
	if err := json.Unmarshal(msg.Data, &ev); err != nil {
		log.Errorf("malformed game-finished event: %s", err)
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := s.archives.Insert(ctx, s.buildDoc(ev)); err != nil {
		log.Errorf("Error [ArchiveStore.Insert] %s", err)
		return
	}

	log.Infof("archived finished game %s (%d moves)", ev.GameID, ev.MoveCount)
}

func (s *ArchiveService) buildDoc(ev comm.GameEvent) store.GameArchive {
	now := time.Now()
	doc := store.GameArchive{
		GameID:       ev.GameID,
		Player1ID:    ev.Player1ID,
		Player2ID:    ev.Player2ID,
		WinnerID:     ev.WinnerID,
		WinnerSymbol: ev.WinnerSymbol,
		IsDraw:       ev.IsDraw,
		Board:        ev.Board,
		MoveCount:    ev.MoveCount,
		EndedAt:      ev.EndedAt,
		ArchivedAt:   now,
	}
	if s.ttl > 0 {
		expires := now.Add(s.ttl)
		doc.ExpiresAt = &expires
	}
	return doc
}
