package broker

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/avvvet/matchvote-services/internal/comm"
	log "github.com/sirupsen/logrus"
)

// conn is satisfied by *nats.Conn
type conn interface {
	Publish(subject string, data []byte) error
}

type Broker struct {
	Conn conn
}

func NewBroker(nc conn) *Broker {
	return &Broker{Conn: nc}
}

// Publish sends a match event to the socket service wrapped in a WSMessage,
// so it can be relayed to web clients unchanged.
func (b *Broker) Publish(_ context.Context, event comm.MatchEvent) error {
	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("unable to marshal %s event: %w", event.Type, err)
	}

	msg := &comm.WSMessage{
		Type: event.Type,
		Data: data,
	}

	payload, err := json.Marshal(msg)
	if err != nil {
		return fmt.Errorf("unable to marshal ws message: %w", err)
	}

	return b.publish(comm.SubjectMatchEvents, payload)
}

func (b *Broker) PublishHeartbeat(hb comm.ServiceHeartbeat) error {
	payload, err := json.Marshal(hb)
	if err != nil {
		return fmt.Errorf("unable to marshal heartbeat: %w", err)
	}
	return b.publish(comm.SubjectHeartbeat, payload)
}

func (b *Broker) publish(topic string, payload []byte) error {
	if err := b.Conn.Publish(topic, payload); err != nil {
		log.Errorf("Error publishing to topic %s: %s", topic, err)
		return err
	}
	return nil
}

// Noop is used when NATS is not reachable at startup.
type Noop struct{}

func (Noop) Publish(context.Context, comm.MatchEvent) error { return nil }

func (Noop) PublishHeartbeat(comm.ServiceHeartbeat) error { return nil }
