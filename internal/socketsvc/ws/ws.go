package ws

import (
	"encoding/json"
	"sync"

	"github.com/avvvet/matchvote-services/internal/comm"
	"github.com/gorilla/websocket"
	log "github.com/sirupsen/logrus"
)

// message types exchanged with web clients besides match events
const (
	TypeConnected = "connected"
	TypeWatch     = "watch"
	TypeWatching  = "watching"
	TypeError     = "error"
)

// client is one web socket connection. gorilla connections allow a single
// concurrent writer, so writes go through mu.
type client struct {
	conn   *websocket.Conn
	mu     sync.Mutex
	gameID int // 0 follows every match
}

func (c *client) write(v interface{}) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.conn.WriteJSON(v)
}

type Ws struct {
	connMap sync.Map // socketId -> *client
}

func NewWs() *Ws {
	return &Ws{}
}

// handle socket message from web clients
func (s *Ws) SocketMessage(socketId string, message *comm.WSMessage) {
	switch message.Type {
	case TypeWatch:
		s.handleWatch(socketId, message)
	default:
		log.Warnf("unknown event received: %s", message.Type)
		s.SendError(socketId, "unknown message type "+message.Type)
	}
}

func (s *Ws) handleWatch(socketId string, msg *comm.WSMessage) {
	var req comm.WatchRequest
	if len(msg.Data) > 0 {
		if err := json.Unmarshal(msg.Data, &req); err != nil {
			log.Errorf("Error: malformed watch payload from %s: %s", socketId, err)
			s.SendError(socketId, "invalid watch payload")
			return
		}
	}
	if req.GameID < 0 {
		s.SendError(socketId, "gameId must not be negative")
		return
	}

	c, ok := s.load(socketId)
	if !ok {
		return
	}
	c.mu.Lock()
	c.gameID = req.GameID
	c.mu.Unlock()

	data, _ := json.Marshal(req)
	s.Send(socketId, &comm.WSMessage{Type: TypeWatching, Data: data})
	log.Infof("socket %s watching game %d", socketId, req.GameID)
}

func (s *Ws) StoreConnection(socketId string, conn *websocket.Conn) {
	s.connMap.Store(socketId, &client{conn: conn})

	data, _ := json.Marshal(map[string]string{"socketId": socketId})
	s.Send(socketId, &comm.WSMessage{Type: TypeConnected, Data: data})
}

func (s *Ws) HandleDisconnect(socketId string) {
	s.connMap.Delete(socketId)
}

// Send writes one message to a single socket.
func (s *Ws) Send(socketId string, v interface{}) {
	c, ok := s.load(socketId)
	if !ok {
		return
	}
	if err := c.write(v); err != nil {
		log.Errorf("Failed to write to socket %s: %v", socketId, err)
	}
}

func (s *Ws) SendError(socketId, errorMsg string) {
	s.Send(socketId, map[string]interface{}{
		"type":  TypeError,
		"error": errorMsg,
	})
}

// Broadcast sends m to every socket following gameID or following all.
func (s *Ws) Broadcast(m *comm.WSMessage, gameID int) {
	s.connMap.Range(func(key, value interface{}) bool {
		c := value.(*client)
		c.mu.Lock()
		watching := c.gameID
		c.mu.Unlock()

		if watching == 0 || watching == gameID {
			if err := c.write(m); err != nil {
				log.Errorf("Failed to broadcast to socket %s: %v", key, err)
			}
		}
		return true // continue iterating
	})
}

// Count returns the number of open sockets.
func (s *Ws) Count() int {
	count := 0
	s.connMap.Range(func(key, value any) bool {
		count++
		return true
	})
	return count
}

func (s *Ws) load(socketId string) (*client, bool) {
	v, ok := s.connMap.Load(socketId)
	if !ok {
		return nil, false
	}
	return v.(*client), true
}
