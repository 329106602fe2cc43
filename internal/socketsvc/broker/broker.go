package broker

import (
	"encoding/json"

	"github.com/gorilla/websocket"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/comm"
)

// Broker relays game events from NATS to the websocket clients
// watching the affected game.
type Broker struct {
	Conn           *nats.Conn
	GetConnection  func(string) (*websocket.Conn, bool)
	GetGameSockets func(string) ([]string, bool)
}

func NewBroker(conn *nats.Conn, fncGetConnection func(string) (*websocket.Conn, bool), fncGetGameSockets func(string) ([]string, bool)) *Broker {
	return &Broker{
		Conn:           conn,
		GetConnection:  fncGetConnection,
		GetGameSockets: fncGetGameSockets,
	}
}

// Subscribe consumes game events published by gamesvc.
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, b.handleMessages)
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) handleMessages(msgNats *nats.Msg) {
	message := &comm.WSMessage{}
	err := json.Unmarshal(msgNats.Data, &message)
	if err != nil {
		log.Errorf("Error %s", err)
		return
	}

	switch message.Type {
	case comm.TypeGameUpdate, comm.TypeGameFinished:
		b.relayToWatchers(message)
	default:
		// archivesvc shares the topic; ignore anything we don't relay
	}
}

// relayToWatchers forwards the event to every socket watching the game.
func (b *Broker) relayToWatchers(m *comm.WSMessage) {
	var ev comm.GameEvent
	if err := json.Unmarshal(m.Data, &ev); err != nil {
		log.Errorf("malformed game event: %s", err)
		return
	}

	sockets, ok := b.GetGameSockets(ev.GameID)
	if !ok {
		return
	}

	for _, socketId := range sockets {
		conn, ok := b.GetConnection(socketId)
		if !ok {
			continue
		}
		if err := conn.WriteJSON(m); err != nil {
			log.Errorf("failed to relay %s to socket %s: %s", m.Type, socketId, err)
		}
	}
}
