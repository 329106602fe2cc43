package broker

import (
	"encoding/json"

	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"

	"github.com/mekides/tictactoe-services/internal/comm"
)

// Broker publishes game events to NATS for the socket relay and the
// archive consumer. Publishing is best-effort: a broker failure is
// logged and never fails the request that produced the event, polling
// clients stay correct either way.
type Broker struct {
	Conn *nats.Conn
}

func NewBroker(nc *nats.Conn) *Broker {
	return &Broker{Conn: nc}
}

// GameUpdated announces a join or a non-terminal move.
func (b *Broker) GameUpdated(ev comm.GameEvent) {
	b.publish(comm.TypeGameUpdate, ev)
}

// GameFinished announces a terminal move; archivesvc persists these.
func (b *Broker) GameFinished(ev comm.GameEvent) {
	b.publish(comm.TypeGameFinished, ev)
}

func (b *Broker) publish(msgType string, ev comm.GameEvent) {
	data, err := json.Marshal(ev)
	if err != nil {
		log.Errorf("unable to marshal %s event for game %s: %s", msgType, ev.GameID, err)
		return
	}

	msg := &comm.WSMessage{
		Type: msgType,
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		log.Errorf("unable to marshal %s envelope: %s", msgType, err)
		return
	}

	if err := b.Conn.Publish(comm.GameTopic, payload); err != nil {
		log.Errorf("failed to publish %s for game %s: %s", msgType, ev.GameID, err)
	}
}
