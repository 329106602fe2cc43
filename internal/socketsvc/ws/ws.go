package ws

import (
	"encoding/json"
	"sync"

	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/comm"
)

// Ws tracks websocket connections and which game each one watches.
// Watching is the only client-initiated message; everything a watcher
// receives originates from gamesvc events relayed over NATS. Polling
// the game API stays the authoritative interface, the socket is a
// convenience push.
type Ws struct {
	connMap  sync.Map // socketId -> *websocket.Conn
	watchMap sync.Map // socketId -> gameId
}

func NewWs() *Ws {
	return &Ws{}
}

// SocketMessage handles a message from a web client.
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case comm.TypeWatchGame:
		s.handleWatch(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var payload comm.WatchGame
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		log.Errorf("malformed watch-game payload from %s: %s", socketId, err)
		return
	}
	if payload.GameID == "" {
		log.Errorf("watch-game from %s without game id", socketId)
		return
	}

	s.watchMap.Store(socketId, payload.GameID)
	log.Infof("socket %s now watching game %s", socketId, payload.GameID)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, conn)
}

func (s *Ws) GetConnection(socketId string) (*websocket.Conn, bool) {
	conn, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return conn.(*websocket.Conn), true
}

// GetGameSockets returns every socket currently watching the game.
func (s *Ws) GetGameSockets(gameId string) ([]string, bool) {
	var sockets []string
	found := false

	s.watchMap.Range(func(key, value interface{}) bool {
		if value.(string) == gameId {
			sockets = append(sockets, key.(string))
			found = true
		}
		return true // continue iterating
	})

	return sockets, found
}

// HandleDisconnect drops all state for a closed socket.
func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
	s.watchMap.Delete(socketId)
}
