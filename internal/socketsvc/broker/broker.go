package broker

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/nats-io/nats.go"
	log "github.com/sirupsen/logrus"
)

// MatchServiceName is the service name carried in match service heartbeats.
const MatchServiceName = "match"

type Broker struct {
	Conn      *nats.Conn
	Broadcast func(m *comm.WSMessage, gameID int)

	LastHeartbeatMap   sync.Map // service name -> time of last heartbeat
	heartbeatThreshold time.Duration
}

// NewBroker relays match events through broadcast. A service counts as alive
// while its last heartbeat is younger than threshold.
func NewBroker(conn *nats.Conn, broadcast func(*comm.WSMessage, int), threshold time.Duration) *Broker {
	return &Broker{
		Conn:               conn,
		Broadcast:          broadcast,
		heartbeatThreshold: threshold,
	}
}

// consume match events from the match service
func (b *Broker) Subscribe(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, func(msg *nats.Msg) {
		b.HandleMessage(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

func (b *Broker) SubscribeHeartbeat(topic string) (*nats.Subscription, error) {
	sub, err := b.Conn.Subscribe(topic, func(msg *nats.Msg) {
		b.HandleHeartbeat(msg.Data)
	})
	if err != nil {
		return nil, err
	}

	return sub, nil
}

// HandleMessage relays a match event to the web clients following it.
func (b *Broker) HandleMessage(data []byte) {
	message := &comm.WSMessage{}
	if err := json.Unmarshal(data, message); err != nil {
		log.Errorf("Error decoding nats message %s", err)
		return
	}

	switch message.Type {
	case comm.EventMatchCreated, comm.EventMatchUpdated, comm.EventMatchDeleted, comm.EventVoteCast:
		var event comm.MatchEvent
		if err := json.Unmarshal(message.Data, &event); err != nil {
			log.Errorf("Error decoding %s event %s", message.Type, err)
			return
		}
		b.Broadcast(message, event.GameID)
	default:
		log.Errorf("Unknown message %s", message.Type)
	}
}

func (b *Broker) HandleHeartbeat(data []byte) {
	hb := comm.ServiceHeartbeat{}
	if err := json.Unmarshal(data, &hb); err != nil {
		log.Errorf("Error decoding heartbeat %s", err)
		return
	}
	if hb.Timestamp.IsZero() {
		hb.Timestamp = time.Now()
	}
	b.storeHeartbeat(hb.Service, hb.Timestamp)
	log.Debugf("heartbeat from %s instance %s", hb.Service, hb.ID)
}

// storeHeartbeat keeps the newest beat per service, so a late beat from one
// instance never hides a fresher one from another.
func (b *Broker) storeHeartbeat(service string, at time.Time) {
	for {
		prev, loaded := b.LastHeartbeatMap.LoadOrStore(service, at)
		if !loaded || !at.After(prev.(time.Time)) {
			return
		}
		if b.LastHeartbeatMap.CompareAndSwap(service, prev, at) {
			return
		}
	}
}

// Alive reports whether service sent a heartbeat within the threshold.
func (b *Broker) Alive(service string) bool {
	v, ok := b.LastHeartbeatMap.Load(service)
	if !ok {
		return false
	}
	return time.Since(v.(time.Time)) <= b.heartbeatThreshold
}

func (b *Broker) MatchServiceAlive() bool {
	return b.Alive(MatchServiceName)
}
