package comm

import (
	"encoding/json"
	"time"
)

// NATS subjects shared by the match and socket services
const (
	SubjectMatchEvents = "match.events"
	SubjectHeartbeat   = "service.heartbeat"
)

// match event types, also used as WSMessage.Type towards web clients
const (
	EventMatchCreated = "match-created"
	EventMatchUpdated = "match-updated"
	EventMatchDeleted = "match-deleted"
	EventVoteCast     = "vote-cast"
)

type WSMessage struct {
	Type     string          `json:"type"` // e.g. "watch", "vote-cast"
	Data     json.RawMessage `json:"data"`
	SocketId string          `json:"socketid,omitempty"`
}

// MatchEvent carries the match record as published by the match service.
type MatchEvent struct {
	Type   string          `json:"type"`
	GameID int             `json:"gameId"`
	Match  json.RawMessage `json:"match"`
	At     time.Time       `json:"at"`
}

type ServiceHeartbeat struct {
	ID        string    `json:"id"` // service instance id
	Service   string    `json:"service"`
	Timestamp time.Time `json:"timestamp"`
}

// WatchRequest is sent by a web client to follow one match; GameID 0 follows all.
type WatchRequest struct {
	GameID int `json:"gameId"`
}
