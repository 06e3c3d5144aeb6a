package service

import (
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/rs/zerolog"

	"github.com/gchat-dev/gchat-api/internal/dto"
	"github.com/gchat-dev/gchat-api/internal/observability"
)

const sessionSendBufferSize = 32

// Session is one live websocket connection of an authenticated user. A user
// may hold any number of concurrent sessions.
type Session struct {
	conn     *websocket.Conn
	send     chan dto.Event
	closed   chan struct{}
	once     sync.Once
	UserID   uint
	Username string
	hub      *Hub
}

// Push queues an event for the session's writer, dropping it when the queue
// is full rather than blocking the caller.
func (s *Session) Push(event dto.Event) {
	select {
	case <-s.closed:
		return
	default:
	}

	select {
	case s.send <- event:
	default:
		s.hub.log.Warn().Str("username", s.Username).Str("event", event.Type).Msg("dropping event for slow session")
	}
}

func (s *Session) close() {
	s.once.Do(func() {
		close(s.closed)
		_ = s.conn.Close()
	})
}

// EventSink delivers events to users and room subscribers.
type EventSink interface {
	SendToUser(username string, event dto.Event)
	SendToRoom(room string, event dto.Event, exclude *Session)
}

// Hub is the in-process session directory. It tracks which sessions belong to
// which user and which sessions have joined which room's broadcast set. When a
// relay is attached, deliveries also fan out to other nodes.
type Hub struct {
	mu       sync.RWMutex
	users    map[string]map[*Session]struct{}
	rooms    map[string]map[*Session]struct{}
	byRoomOf map[*Session]map[string]struct{}
	relay    *Relay
	log      zerolog.Logger
}

// NewHub constructs an empty session directory.
func NewHub(logger zerolog.Logger) *Hub {
	return &Hub{
		users:    make(map[string]map[*Session]struct{}),
		rooms:    make(map[string]map[*Session]struct{}),
		byRoomOf: make(map[*Session]map[string]struct{}),
		log:      logger.With().Str("component", "presence_hub").Logger(),
	}
}

// AttachRelay wires cross-node fan-out. Must be called before serving traffic.
func (h *Hub) AttachRelay(relay *Relay) {
	h.relay = relay
}

// NewSession wraps a websocket connection for the given identity.
func (h *Hub) NewSession(conn *websocket.Conn, userID uint, username string) *Session {
	return &Session{
		conn:     conn,
		send:     make(chan dto.Event, sessionSendBufferSize),
		closed:   make(chan struct{}),
		UserID:   userID,
		Username: username,
		hub:      h,
	}
}

// Register adds the session to the user's live set. It reports whether this
// is the user's first live session.
func (h *Hub) Register(session *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	set, exists := h.users[session.Username]
	if !exists {
		set = make(map[*Session]struct{})
		h.users[session.Username] = set
	}
	set[session] = struct{}{}
	h.byRoomOf[session] = make(map[string]struct{})

	observability.SessionsActive().Inc()
	h.log.Debug().Str("username", session.Username).Msg("session registered")
	return len(set) == 1
}

// Unregister removes the session and all its room subscriptions. It reports
// whether the user has no remaining live sessions.
func (h *Hub) Unregister(session *Session) bool {
	h.mu.Lock()
	defer h.mu.Unlock()

	for room := range h.byRoomOf[session] {
		if subscribers, ok := h.rooms[room]; ok {
			delete(subscribers, session)
			if len(subscribers) == 0 {
				delete(h.rooms, room)
			}
		}
	}
	delete(h.byRoomOf, session)

	last := false
	if set, ok := h.users[session.Username]; ok {
		delete(set, session)
		if len(set) == 0 {
			delete(h.users, session.Username)
			last = true
		}
	}

	observability.SessionsActive().Dec()
	h.log.Debug().Str("username", session.Username).Bool("last", last).Msg("session unregistered")
	return last
}

// JoinRoom adds the session to the room's broadcast set. Access control is
// the caller's responsibility.
func (h *Hub) JoinRoom(session *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	subscribers, exists := h.rooms[room]
	if !exists {
		subscribers = make(map[*Session]struct{})
		h.rooms[room] = subscribers
	}
	subscribers[session] = struct{}{}
	if joined, ok := h.byRoomOf[session]; ok {
		joined[room] = struct{}{}
	}
}

// LeaveRoom drops the session from the room's broadcast set.
func (h *Hub) LeaveRoom(session *Session, room string) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if subscribers, ok := h.rooms[room]; ok {
		delete(subscribers, session)
		if len(subscribers) == 0 {
			delete(h.rooms, room)
		}
	}
	if joined, ok := h.byRoomOf[session]; ok {
		delete(joined, room)
	}
}

// InRoom reports whether the session currently subscribes to the room.
func (h *Hub) InRoom(session *Session, room string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	joined, ok := h.byRoomOf[session]
	if !ok {
		return false
	}
	_, in := joined[room]
	return in
}

// SendToUser delivers the event to every live session of the user, on this
// node and, through the relay, on every other node.
func (h *Hub) SendToUser(username string, event dto.Event) {
	h.deliverToUser(username, event)
	if h.relay != nil {
		h.relay.PublishToUser(username, event)
	}
}

// SendToRoom delivers the event to every session subscribed to the room,
// optionally excluding the originating session.
func (h *Hub) SendToRoom(room string, event dto.Event, exclude *Session) {
	h.deliverToRoom(room, event, exclude)
	if h.relay != nil {
		h.relay.PublishToRoom(room, event)
	}
}

func (h *Hub) deliverToUser(username string, event dto.Event) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.users[username]))
	for session := range h.users[username] {
		sessions = append(sessions, session)
	}
	h.mu.RUnlock()

	for _, session := range sessions {
		session.Push(event)
	}
	observability.EventsDelivered().WithLabelValues(event.Type).Add(float64(len(sessions)))
}

func (h *Hub) deliverToRoom(room string, event dto.Event, exclude *Session) {
	h.mu.RLock()
	sessions := make([]*Session, 0, len(h.rooms[room]))
	for session := range h.rooms[room] {
		if session == exclude {
			continue
		}
		sessions = append(sessions, session)
	}
	h.mu.RUnlock()

	for _, session := range sessions {
		session.Push(event)
	}
	observability.EventsDelivered().WithLabelValues(event.Type).Add(float64(len(sessions)))
}

// IsOnline reports whether the user has at least one live session on this node.
func (h *Hub) IsOnline(username string) bool {
	h.mu.RLock()
	defer h.mu.RUnlock()

	return len(h.users[username]) > 0
}

// writer drains the session's queue onto the wire, pinging on idle.
func (s *Session) writer(logger zerolog.Logger) {
	defer s.close()

	for {
		select {
		case event, ok := <-s.send:
			if !ok {
				return
			}
			if err := s.conn.WriteJSON(event); err != nil {
				logger.Debug().Err(err).Str("username", s.Username).Msg("session write loop terminated")
				return
			}
		case <-time.After(30 * time.Second):
			if err := s.conn.WriteMessage(websocket.PingMessage, []byte("keepalive")); err != nil {
				logger.Debug().Err(err).Str("username", s.Username).Msg("session ping failed")
				return
			}
		case <-s.closed:
			return
		}
	}
}
