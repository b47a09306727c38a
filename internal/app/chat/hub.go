/*
Package chat contains the session & broadcast engine.

This file defines the Hub, the single event loop that owns every piece of
mutable chat state: the connection registry, the credential & session store,
the presence roster, the message log, and the typing set. Clients funnel
parsed intents into the hub channel; handlers run to completion one at a
time, so no further locking is needed on the state the hub owns.
*/
package chat

import (
	"encoding/json"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rs/zerolog"

	"huddle/internal/app/history"
	"huddle/internal/app/presence"
	"huddle/internal/app/session"
	"huddle/internal/app/user"
	"huddle/internal/configs"
	"huddle/internal/pkg/errs"
	"huddle/internal/pkg/logx"
	"huddle/internal/pkg/metrics"
	"huddle/internal/pkg/randx"
)

const (
	// intentChannelBuffer bounds the queue of parsed client intents.
	intentChannelBuffer = 1024

	// lifecycleChannelBuffer bounds the register/unregister queues.
	lifecycleChannelBuffer = 256

	// MaxTextBytes is the maximum allowed size (in bytes) of one chat message.
	MaxTextBytes = 5000
)

// intent is one parsed client event waiting for the hub loop.
type intent struct {
	client  *Client
	kind    EventType
	payload json.RawMessage
}

// Stats is a point-in-time summary of the engine, served by the REST surface.
type Stats struct {
	Connections      int64 `json:"connections"`
	OnlineUsers      int64 `json:"onlineUsers"`
	RetainedMessages int64 `json:"retainedMessages"`
}

// Hub is the central dispatcher. All five state structures hang off it and
// are only touched from its run loop.
type Hub struct {
	// config holds the application's read-only configuration settings.
	config *configs.AppConfig

	// registry maps authenticated connections to their user record.
	registry *Registry

	// sessions owns credentials and live session tokens.
	sessions *session.Store

	// roster is the durable presence directory.
	roster *presence.Directory

	// log is the bounded chat history.
	log *history.Log

	// typing tracks connections with an active typing marker.
	typing *TypingSet

	// clients holds every open connection, authenticated or not, by conn id.
	clients map[string]*Client

	// register and unregister queue connection lifecycle changes.
	register   chan *Client
	unregister chan *Client

	// intents queues parsed client events for serialized handling.
	intents chan intent

	// stopChan signals the run loop to terminate.
	stopChan chan struct{}

	// counters mirrored out of the loop so Stats() never touches hub state.
	connections      atomic.Int64
	onlineUsers      atomic.Int64
	retainedMessages atomic.Int64

	// wg waits for the run loop during shutdown.
	wg sync.WaitGroup

	// structured logger with hub context.
	logger zerolog.Logger
}

// NewHub constructs a Hub with empty state. Call Start to begin dispatching.
func NewHub(cfg *configs.AppConfig) *Hub {
	hubLogger := logx.Logger().With().Str("component", "Hub").Logger()

	return &Hub{
		config:     cfg,
		registry:   NewRegistry(),
		sessions:   session.NewStore(cfg.TokenSecret, cfg.SessionTTL),
		roster:     presence.NewDirectory(),
		log:        history.NewLog(cfg.HistoryLimit),
		typing:     NewTypingSet(),
		clients:    make(map[string]*Client),
		register:   make(chan *Client, lifecycleChannelBuffer),
		unregister: make(chan *Client, lifecycleChannelBuffer),
		intents:    make(chan intent, intentChannelBuffer),
		stopChan:   make(chan struct{}),
		logger:     hubLogger,
	}
}

// Start launches the hub run loop.
func (h *Hub) Start() {
	h.wg.Add(1)
	go h.run()
}

// Shutdown stops the run loop and waits for it to finish. Safe to call more
// than once.
func (h *Hub) Shutdown() {
	select {
	case <-h.stopChan:
	default:
		close(h.stopChan)
	}

	h.wg.Wait()
}

// Register queues a freshly upgraded connection for the run loop.
func (h *Hub) Register(c *Client) {
	select {
	case h.register <- c:
	default:
		h.logger.Warn().Str("conn_id", c.id).Msg("Register channel full, rejecting connection.")
		c.closeConn()
	}
}

// Stats returns a point-in-time summary of the engine.
func (h *Hub) Stats() Stats {
	return Stats{
		Connections:      h.connections.Load(),
		OnlineUsers:      h.onlineUsers.Load(),
		RetainedMessages: h.retainedMessages.Load(),
	}
}

// run is the hub event loop. Every mutation of chat state happens here.
func (h *Hub) run() {
	defer h.wg.Done()

	h.logger.Info().Msg("Hub event loop started.")

	for {
		select {
		case client := <-h.register:
			h.addClient(client)

		case client := <-h.unregister:
			h.dropClient(client)

		case in := <-h.intents:
			h.dispatch(in)

		case <-h.stopChan:
			for _, client := range h.clients {
				client.closeSendOnce()
			}
			h.clients = make(map[string]*Client)
			h.connections.Store(0)

			h.logger.Info().Msg("Hub event loop stopped.")
			return
		}
	}
}

// addClient tracks a new connection. It stays Unauthenticated until a
// successful login or session resume binds a user to it.
func (h *Hub) addClient(c *Client) {
	h.clients[c.id] = c
	h.connections.Store(int64(len(h.clients)))
	metrics.ConnectionsActive.Inc()

	h.logger.Debug().Str("conn_id", c.id).Int("total_conns", len(h.clients)).Msg("Connection registered.")
}

// dropClient discards a connection. If it was authenticated, the cleanup is
// identical to an explicit logout: presence goes offline, the typing marker
// is cleared, and both the user-left notice and the fresh roster snapshot are
// broadcast. Raw disconnects and explicit logouts share this path so peers
// never see a stale roster.
func (h *Hub) dropClient(c *Client) {
	if _, tracked := h.clients[c.id]; !tracked {
		return
	}

	h.cleanupAuthenticated(c)

	// The cleanup broadcasts above can re-enter dropClient through fanOut when
	// this same client's send queue is full. Re-check before the teardown tail
	// so it runs exactly once.
	if _, tracked := h.clients[c.id]; !tracked {
		return
	}

	delete(h.clients, c.id)
	c.closeSendOnce()
	h.connections.Store(int64(len(h.clients)))
	metrics.ConnectionsActive.Dec()

	h.logger.Debug().Str("conn_id", c.id).Int("total_conns", len(h.clients)).Msg("Connection discarded.")
}

// cleanupAuthenticated tears down the authenticated state of a connection, if
// any. No-op for connections that never logged in.
func (h *Hub) cleanupAuthenticated(c *Client) {
	connected, ok := h.registry.Unbind(c.id)
	if !ok {
		return
	}

	h.typing.Unmark(c.id)
	h.roster.SetOffline(connected.Username)
	h.onlineUsers.Store(int64(h.roster.OnlineCount()))

	h.appendSystemMessage(connected.Username + " left the chat")
	h.broadcastExcept(c.id, NewEvent(EventUserLeft, UserEventPayload{User: connected.User()}))
	h.broadcast(NewEvent(EventPresence, PresencePayload{Users: h.roster.Snapshot()}))

	h.logger.Info().Str("username", connected.Username).Str("conn_id", c.id).Msg("User left the chat.")
}

// dispatch routes one parsed client event to its handler. Events queued by a
// connection that has since been discarded are dropped; its send channel is
// already closed.
func (h *Hub) dispatch(in intent) {
	if _, tracked := h.clients[in.client.id]; !tracked {
		return
	}

	switch in.kind {
	case EventLogin:
		h.handleLogin(in.client, in.payload)

	case EventSessionLogin:
		h.handleSessionLogin(in.client, in.payload)

	case EventText:
		h.handleText(in.client, in.payload)

	case EventTypingStart:
		h.handleTyping(in.client, true)

	case EventTypingStop:
		h.handleTyping(in.client, false)

	case EventLogout:
		h.handleLogout(in.client)

	default:
		h.logger.Warn().Str("conn_id", in.client.id).Str("event_type", string(in.kind)).Msg("Client sent unsupported event type.")
	}
}

// handleLogin processes an interactive credential login. Accounts register on
// first use; an existing account must present its original password.
func (h *Hub) handleLogin(c *Client, payload json.RawMessage) {
	if _, authed := h.registry.Lookup(c.id); authed {
		h.logger.Warn().Str("conn_id", c.id).Msg("Login from an already authenticated connection dropped.")
		return
	}

	var p LoginPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("Client sent invalid LOGIN payload.")
		return
	}

	if p.Username == "" {
		cerr := errs.NewError(errs.ErrInvalidParams)
		h.sendTo(c, NewEvent(EventLoginError, LoginErrorPayload{Code: cerr.Code, Message: cerr.Message}))
		return
	}

	avatar, registered, cerr := h.sessions.RegisterOrVerify(p.Username, p.Password, p.Avatar)
	if cerr != nil {
		metrics.LoginsTotal.WithLabelValues("invalid_password").Inc()
		h.sendTo(c, NewEvent(EventLoginError, LoginErrorPayload{Code: cerr.Code, Message: cerr.Message}))

		h.logger.Warn().Str("username", p.Username).Str("conn_id", c.id).Msg("Login rejected: password mismatch.")
		return
	}

	sessionToken, err := h.sessions.IssueSession(p.Username)
	if err != nil {
		h.logger.Error().Err(err).Str("username", p.Username).Msg("Failed to issue session token.")

		cerr := errs.NewError(errs.ErrUnknown)
		h.sendTo(c, NewEvent(EventLoginError, LoginErrorPayload{Code: cerr.Code, Message: cerr.Message}))
		return
	}

	connected := &user.Connected{
		ConnID:       c.id,
		Username:     p.Username,
		Avatar:       avatar,
		JoinedAt:     time.Now(),
		SessionToken: sessionToken,
	}
	h.registry.Bind(connected)

	if registered {
		metrics.LoginsTotal.WithLabelValues("registered").Inc()
	} else {
		metrics.LoginsTotal.WithLabelValues("verified").Inc()
	}

	h.completeAuth(c, connected, registered)

	h.logger.Info().
		Str("username", p.Username).
		Str("conn_id", c.id).
		Bool("registered", registered).
		Msg("User logged in.")
}

// handleSessionLogin processes a silent re-authentication with a previously
// issued token. A successful resume mirrors the tail of a login but stays
// quiet: no joined notice, and the presented token is re-acknowledged as is.
func (h *Hub) handleSessionLogin(c *Client, payload json.RawMessage) {
	if _, authed := h.registry.Lookup(c.id); authed {
		h.logger.Warn().Str("conn_id", c.id).Msg("Session login from an already authenticated connection dropped.")
		return
	}

	var p SessionLoginPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("Client sent invalid SESSION_LOGIN payload.")
		return
	}

	avatar, cerr := h.sessions.ResumeSession(p.Token, p.Username)
	if cerr != nil {
		metrics.SessionResumesTotal.WithLabelValues("invalid").Inc()
		h.sendTo(c, NewEvent(EventLoginError, LoginErrorPayload{Code: cerr.Code, Message: cerr.Message}))

		h.logger.Warn().Str("username", p.Username).Str("conn_id", c.id).Msg("Session resume rejected.")
		return
	}

	connected := &user.Connected{
		ConnID:       c.id,
		Username:     p.Username,
		Avatar:       avatar,
		JoinedAt:     time.Now(),
		SessionToken: p.Token,
	}
	h.registry.Bind(connected)

	metrics.SessionResumesTotal.WithLabelValues("ok").Inc()

	h.completeAuth(c, connected, false)

	h.logger.Info().Str("username", p.Username).Str("conn_id", c.id).Msg("Session resumed.")
}

// completeAuth performs the shared tail of both login paths: acknowledge the
// session token, replay history to the requester, announce a first-time join,
// mark presence online, and broadcast the fresh roster snapshot to everyone.
func (h *Hub) completeAuth(c *Client, connected *user.Connected, announceJoin bool) {
	h.sendTo(c, NewEvent(EventSession, SessionPayload{
		Token:    connected.SessionToken,
		Username: connected.Username,
	}))

	h.sendTo(c, NewEvent(EventHistory, HistoryPayload{Messages: h.log.History()}))

	if announceJoin {
		h.appendSystemMessage(connected.Username + " joined the chat")
		h.broadcastExcept(c.id, NewEvent(EventUserJoined, UserEventPayload{User: connected.User()}))
	}

	h.roster.SetOnline(connected.Username, connected.Avatar)
	h.onlineUsers.Store(int64(h.roster.OnlineCount()))

	h.broadcast(NewEvent(EventPresence, PresencePayload{Users: h.roster.Snapshot()}))
}

// handleText appends a chat message and broadcasts it to every connection,
// the sender included. Messages from unauthenticated connections are dropped.
func (h *Hub) handleText(c *Client, payload json.RawMessage) {
	connected, authed := h.registry.Lookup(c.id)
	if !authed {
		h.logger.Warn().Str("conn_id", c.id).Msg("Chat message from unauthenticated connection dropped.")
		return
	}

	var p TextPayload
	if err := json.Unmarshal(payload, &p); err != nil {
		h.logger.Warn().Err(err).Str("conn_id", c.id).Msg("Client sent invalid TEXT payload.")
		return
	}

	if p.Text == "" {
		cerr := errs.NewError(errs.ErrMessageEmpty)
		h.sendTo(c, NewEvent(EventError, ErrorPayload{Code: cerr.Code, Message: cerr.Message}))
		return
	}

	if len(p.Text) > MaxTextBytes {
		cerr := errs.NewError(errs.ErrMessageContentTooLong)
		h.sendTo(c, NewEvent(EventError, ErrorPayload{Code: cerr.Code, Message: cerr.Message}))
		return
	}

	msg := history.Message{
		ID:        randx.MessageID(),
		Text:      p.Text,
		Author:    connected.User(),
		Timestamp: time.Now(),
		Kind:      history.KindMessage,
	}

	h.log.Append(msg)
	h.retainedMessages.Store(int64(h.log.Len()))
	metrics.MessagesTotal.WithLabelValues(string(history.KindMessage)).Inc()

	h.broadcast(NewEvent(EventMessage, msg))
}

// handleTyping updates the typing set and tells everyone but the typist.
func (h *Hub) handleTyping(c *Client, isTyping bool) {
	connected, authed := h.registry.Lookup(c.id)
	if !authed {
		h.logger.Warn().Str("conn_id", c.id).Msg("Typing event from unauthenticated connection dropped.")
		return
	}

	if isTyping {
		h.typing.Mark(c.id)
	} else {
		h.typing.Unmark(c.id)
	}

	metrics.TypingEventsTotal.Inc()

	h.broadcastExcept(c.id, NewEvent(EventTyping, TypingPayload{
		ConnID:   c.id,
		Username: connected.Username,
		IsTyping: isTyping,
	}))
}

// handleLogout discards an authenticated connection. Logout from an
// unauthenticated connection is a client bug and is dropped.
func (h *Hub) handleLogout(c *Client) {
	if _, authed := h.registry.Lookup(c.id); !authed {
		h.logger.Warn().Str("conn_id", c.id).Msg("Logout from unauthenticated connection dropped.")
		return
	}

	h.dropClient(c)
}

// appendSystemMessage records a server-generated notice in the history log so
// that later joiners see past roster changes in their replay.
func (h *Hub) appendSystemMessage(text string) {
	msg := history.Message{
		ID:        randx.MessageID(),
		Text:      text,
		Author:    user.System,
		Timestamp: time.Now(),
		Kind:      history.KindSystem,
	}

	h.log.Append(msg)
	h.retainedMessages.Store(int64(h.log.Len()))
	metrics.MessagesTotal.WithLabelValues(string(history.KindSystem)).Inc()
}

// broadcast fans an event out to every connection.
func (h *Hub) broadcast(ev Event) {
	h.fanOut(ev, "")
}

// broadcastExcept fans an event out to every connection except exceptID.
func (h *Hub) broadcastExcept(exceptID string, ev Event) {
	h.fanOut(ev, exceptID)
}

// fanOut marshals the event once and queues it on every matching client.
// Clients whose send queue is full are torn down after the sweep, the same
// way the write side would drop them on a stalled socket.
func (h *Hub) fanOut(ev Event, exceptID string) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Error marshaling event for broadcast.")
		return
	}

	var stalled []*Client
	for id, client := range h.clients {
		if id == exceptID {
			continue
		}

		select {
		case client.send <- raw:
		default:
			h.logger.Warn().Str("conn_id", id).Msg("Client send channel full, scheduling teardown.")
			stalled = append(stalled, client)
		}
	}

	for _, client := range stalled {
		h.dropClient(client)
	}
}

// sendTo queues an event on a single client. Delivery is fire-and-forget; a
// full queue drops the event with a warning.
func (h *Hub) sendTo(c *Client, ev Event) {
	raw, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error().Err(err).Str("event_type", string(ev.Type)).Msg("Error marshaling event for client.")
		return
	}

	select {
	case c.send <- raw:
	default:
		h.logger.Warn().Str("conn_id", c.id).Int("queue_len", len(c.send)).Msg("Client send channel full, dropping event.")
	}
}
