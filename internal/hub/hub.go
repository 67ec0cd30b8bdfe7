package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"sync"
	"time"

	"github.com/AhmedEhabH/Come2Chat/pkg/state"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Conn is the slice of a transport connection the hub needs. Send must not
// block; sends to a closing connection are dropped by the transport.
type Conn interface {
	ID() uuid.UUID
	Send(message []byte)
	Close(err error)
}

type member struct {
	conn   Conn
	ip     string
	joined time.Time
}

type handlerFunc func(connID uuid.UUID, payload gjson.Result)

// Hub is the single entry point translating transport lifecycle and
// client-invoked events into registry and session mutations and outbound
// broadcasts. It owns the global broadcast group; the registry and session
// table are mutated only through its handlers.
//
// All state mutations and snapshots happen under one mutex; outbound sends
// always happen after it is released, so slow delivery never couples to
// registry throughput.
type Hub struct {
	mu    sync.Mutex
	group map[uuid.UUID]member

	registry state.Registry
	sessions state.SessionTable

	handlers map[string]handlerFunc
	logger   *slog.Logger
}

func New(logger *slog.Logger, registry state.Registry, sessions state.SessionTable) *Hub {
	h := &Hub{
		group:    make(map[uuid.UUID]member),
		registry: registry,
		sessions: sessions,
		logger:   logger.With(slog.String("component", "hub")),
	}
	h.handlers = map[string]handlerFunc{
		EventAddUserConnectionID: h.handleAddUserConnectionID,
		EventSendPublicMessage:   h.handleSendPublicMessage,
		EventCreatePrivateChat:   h.handleCreatePrivateChat,
		EventReceivePrivateMessage: func(connID uuid.UUID, payload gjson.Result) {
			h.ReceivePrivateMessage(messageFromPayload(payload))
		},
		EventRemovePrivateChat: func(connID uuid.UUID, payload gjson.Result) {
			msg := messageFromPayload(payload)
			h.RemovePrivateChat(msg.From, msg.To)
		},
	}
	return h
}

func (h *Hub) handleAddUserConnectionID(connID uuid.UUID, payload gjson.Result) {
	h.AddUserConnectionID(connID, nameFromPayload(payload))
}

func (h *Hub) handleSendPublicMessage(connID uuid.UUID, payload gjson.Result) {
	h.SendPublicMessage(messageFromPayload(payload))
}

func (h *Hub) handleCreatePrivateChat(connID uuid.UUID, payload gjson.Result) {
	h.CreatePrivateChat(messageFromPayload(payload))
}

// HandleMessage is the transport's inbound callback. Unknown events and
// malformed envelopes are logged and dropped; the channel is fire-and-forget.
func (h *Hub) HandleMessage(ctx context.Context, connID uuid.UUID, raw []byte) {
	var msg ClientMessage
	if err := json.Unmarshal(raw, &msg); err != nil {
		h.logger.Warn("Failed to unmarshal client message",
			slog.String("connID", connID.String()), slog.Any("error", err))
		return
	}

	handler, ok := h.handlers[msg.Event]
	if !ok {
		h.logger.Warn("Received unknown event",
			slog.String("event", msg.Event), slog.String("connID", connID.String()))
		return
	}

	h.logger.Debug("Dispatching event",
		slog.String("event", msg.Event), slog.String("connID", connID.String()))
	handler(connID, gjson.ParseBytes(msg.Payload))
}

// OnConnect adds the connection to the broadcast group and greets the caller
// with UserConnected, prompting it to register a display name.
func (h *Hub) OnConnect(conn Conn, ipAddr string) {
	h.mu.Lock()
	h.group[conn.ID()] = member{conn: conn, ip: ipAddr, joined: time.Now()}
	h.mu.Unlock()

	payload, err := marshalEvent(EventUserConnected, nil)
	if err != nil {
		h.logger.Error("Failed to marshal greeting", slog.Any("error", err))
		return
	}
	conn.Send(payload)
}

// OnDisconnect removes the connection from the group, unregisters its user
// if one was registered, closes that user's private sessions (notifying each
// peer), and broadcasts the new presence snapshot. Safe to call for
// connections that never registered a name.
func (h *Hub) OnDisconnect(connID uuid.UUID) {
	type closeNotice struct {
		conn Conn
		from string
		to   string
	}

	h.mu.Lock()
	delete(h.group, connID)

	user, registered := h.registry.LookupByConnection(connID)
	var notices []closeNotice
	var names []string
	var recipients []Conn
	if registered {
		h.registry.Unregister(connID)
		for _, session := range h.sessions.CloseAllFor(user.Name) {
			peer := session.Peer(user.Name)
			peerConn, ok := h.lookupConn(peer)
			if !ok {
				continue
			}
			notices = append(notices, closeNotice{conn: peerConn, from: user.Name, to: peer})
		}
		names = h.registry.ListOnlineNames()
		recipients = h.groupConns()
	}
	h.mu.Unlock()

	if !registered {
		h.logger.Debug("Unregistered connection departed", slog.String("connID", connID.String()))
		return
	}

	h.logger.Info("User departed", slog.String("name", user.Name), slog.String("connID", connID.String()))
	for _, n := range notices {
		h.sendEvent(n.conn, EventClosePrivateChat, state.Message{From: n.from, To: n.to})
	}
	h.broadcastOnlineUsers(names, recipients)
}

// AddUserConnectionID registers the display name for the connection and
// broadcasts the updated presence snapshot to the whole group.
func (h *Hub) AddUserConnectionID(connID uuid.UUID, name string) {
	h.mu.Lock()
	m, ok := h.group[connID]
	if !ok {
		h.mu.Unlock()
		h.logger.Warn("Name registration for connection outside the group",
			slog.String("connID", connID.String()), slog.String("name", name))
		return
	}
	h.registry.Register(connID, name, m.ip)
	names := h.registry.ListOnlineNames()
	recipients := h.groupConns()
	h.mu.Unlock()

	h.logger.Info("User registered", slog.String("name", name), slog.String("connID", connID.String()))
	h.broadcastOnlineUsers(names, recipients)
}

// SendPublicMessage fans the message out to every group member, the sender
// included. Messages carrying a target are not public and are dropped.
func (h *Hub) SendPublicMessage(msg state.Message) {
	if msg.To != "" {
		h.logger.Warn("Public message with a target dropped", slog.String("from", msg.From))
		return
	}

	h.mu.Lock()
	recipients := h.groupConns()
	h.mu.Unlock()

	payload, err := marshalEvent(EventNewMessage, msg)
	if err != nil {
		h.logger.Error("Failed to marshal public message", slog.Any("error", err))
		return
	}
	for _, conn := range recipients {
		conn.Send(payload)
	}
}

// CreatePrivateChat opens a private session between the sender and the
// target and delivers the opening message. If the pair already has a session
// the call collapses into a normal private-message delivery; no duplicate
// session is ever created. Unresolvable names drop the request silently.
func (h *Hub) CreatePrivateChat(msg state.Message) {
	h.mu.Lock()
	if _, ok := h.registry.LookupByName(msg.From); !ok {
		h.mu.Unlock()
		h.logger.Debug("Private chat create from unregistered name", slog.String("from", msg.From))
		return
	}
	target, ok := h.lookupConn(msg.To)
	if !ok {
		h.mu.Unlock()
		h.logger.Debug("Private chat target not online", slog.String("to", msg.To))
		return
	}
	session, alreadyExisted := h.sessions.Create(msg.From, msg.To)
	if alreadyExisted {
		// The peer answered with its own create; both sides have spoken now.
		h.sessions.MarkActive(msg.From, msg.To)
	}
	h.mu.Unlock()

	event := EventOpenPrivateChat
	if alreadyExisted {
		event = EventNewPrivateMessage
	}
	h.logger.Debug("Private chat requested",
		slog.String("key", session.Key), slog.Bool("alreadyExisted", alreadyExisted))
	h.sendEvent(target, event, msg)
}

// ReceivePrivateMessage delivers the message to the target connection only.
// Without an existing session for the pair the message is dropped.
func (h *Hub) ReceivePrivateMessage(msg state.Message) {
	h.mu.Lock()
	if !h.sessions.Exists(msg.From, msg.To) {
		h.mu.Unlock()
		h.logger.Warn("No active private session",
			slog.String("from", msg.From), slog.String("to", msg.To))
		return
	}
	h.sessions.MarkActive(msg.From, msg.To)
	target, ok := h.lookupConn(msg.To)
	h.mu.Unlock()

	if !ok {
		h.logger.Debug("Private message target not online", slog.String("to", msg.To))
		return
	}
	h.sendEvent(target, EventNewPrivateMessage, msg)
}

// RemovePrivateChat closes the session for the pair, if any, and notifies
// the other participant. Idempotent.
func (h *Hub) RemovePrivateChat(from, to string) {
	h.mu.Lock()
	removed := h.sessions.Close(from, to)
	var peer Conn
	if removed {
		peer, _ = h.lookupConn(to)
	}
	h.mu.Unlock()

	if !removed || peer == nil {
		return
	}
	h.sendEvent(peer, EventClosePrivateChat, state.Message{From: from, To: to})
}

// ConnectionCountForIP reports how many group members share the client IP.
// Feeds the connection limiter.
func (h *Hub) ConnectionCountForIP(ipAddr string) int {
	h.mu.Lock()
	defer h.mu.Unlock()

	count := 0
	for _, m := range h.group {
		if m.ip == ipAddr {
			count++
		}
	}
	return count
}

// CycleOldestForIP closes the longest-lived connection from the client IP to
// make room for a new one.
func (h *Hub) CycleOldestForIP(ipAddr string, reason error) {
	h.mu.Lock()
	var oldest Conn
	var oldestAt time.Time
	for _, m := range h.group {
		if m.ip != ipAddr {
			continue
		}
		if oldest == nil || m.joined.Before(oldestAt) {
			oldest = m.conn
			oldestAt = m.joined
		}
	}
	h.mu.Unlock()

	if oldest != nil {
		h.logger.Info("Cycling connection: closing oldest",
			slog.String("ip", ipAddr), slog.String("connID", oldest.ID().String()))
		oldest.Close(reason)
	}
}

// CloseAll shuts every live connection down; used during server shutdown.
func (h *Hub) CloseAll(reason error) {
	h.mu.Lock()
	conns := h.groupConns()
	h.mu.Unlock()

	for _, conn := range conns {
		conn.Close(reason)
	}
}

// lookupConn resolves a display name to its live group connection. Caller
// must hold the hub mutex.
func (h *Hub) lookupConn(name string) (Conn, bool) {
	connID, ok := h.registry.LookupByName(name)
	if !ok {
		return nil, false
	}
	m, ok := h.group[connID]
	if !ok {
		return nil, false
	}
	return m.conn, true
}

// groupConns snapshots the broadcast group. Caller must hold the hub mutex.
func (h *Hub) groupConns() []Conn {
	conns := make([]Conn, 0, len(h.group))
	for _, m := range h.group {
		conns = append(conns, m.conn)
	}
	return conns
}

func (h *Hub) sendEvent(conn Conn, event string, payload any) {
	b, err := marshalEvent(event, payload)
	if err != nil {
		h.logger.Error("Failed to marshal event", slog.String("event", event), slog.Any("error", err))
		return
	}
	conn.Send(b)
}
