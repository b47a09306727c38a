package chat

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"

	"huddle/internal/app/history"
	"huddle/internal/app/presence"
	"huddle/internal/configs"
	"huddle/internal/pkg/errs"
	"huddle/internal/pkg/metrics"
	"huddle/internal/pkg/randx"
)

// Handlers are exercised directly, without the run loop: a test is a single
// goroutine, which gives the same serialization the loop provides.

func newTestHub() *Hub {
	cfg := &configs.AppConfig{
		Environment:  "test",
		Port:         8080,
		TokenSecret:  "test-secret",
		HistoryLimit: 100,
		SessionTTL:   time.Hour,
	}
	return NewHub(cfg)
}

// connect registers a connection that is not backed by a real websocket.
func connect(h *Hub) *Client {
	c := &Client{
		id:     randx.ConnectionID(),
		hub:    h,
		send:   make(chan []byte, sendChannelBuffer),
		logger: zerolog.Nop(),
	}
	h.addClient(c)
	return c
}

type receivedEvent struct {
	ID        string          `json:"id"`
	Type      EventType       `json:"type"`
	Timestamp int64           `json:"timestamp"`
	Payload   json.RawMessage `json:"payload"`
}

// received drains and decodes everything currently queued for the client.
func received(t *testing.T, c *Client) []receivedEvent {
	t.Helper()

	var out []receivedEvent
	for {
		select {
		case raw, ok := <-c.send:
			if !ok {
				return out
			}
			var ev receivedEvent
			if err := json.Unmarshal(raw, &ev); err != nil {
				t.Fatalf("undecodable event frame: %v", err)
			}
			out = append(out, ev)
		default:
			return out
		}
	}
}

func eventsOfType(events []receivedEvent, kind EventType) []receivedEvent {
	var out []receivedEvent
	for _, ev := range events {
		if ev.Type == kind {
			out = append(out, ev)
		}
	}
	return out
}

func singleEvent(t *testing.T, events []receivedEvent, kind EventType) receivedEvent {
	t.Helper()

	matches := eventsOfType(events, kind)
	if len(matches) != 1 {
		t.Fatalf("expected exactly one %s event, got %d", kind, len(matches))
	}
	return matches[0]
}

func login(h *Hub, c *Client, username, password, avatar string) {
	payload, _ := json.Marshal(LoginPayload{Username: username, Password: password, Avatar: avatar})
	h.dispatch(intent{client: c, kind: EventLogin, payload: payload})
}

func sessionLogin(h *Hub, c *Client, token, username string) {
	payload, _ := json.Marshal(SessionLoginPayload{Token: token, Username: username})
	h.dispatch(intent{client: c, kind: EventSessionLogin, payload: payload})
}

func sendText(h *Hub, c *Client, text string) {
	payload, _ := json.Marshal(TextPayload{Text: text})
	h.dispatch(intent{client: c, kind: EventText, payload: payload})
}

func TestLoginRegistersAndReplaysEmptyHistory(t *testing.T) {
	h := newTestHub()
	alice := connect(h)

	login(h, alice, "alice", "secret", "🚀")

	events := received(t, alice)

	session := singleEvent(t, events, EventSession)
	var sp SessionPayload
	if err := json.Unmarshal(session.Payload, &sp); err != nil {
		t.Fatalf("decode session payload: %v", err)
	}
	if sp.Token == "" {
		t.Fatal("expected a session token")
	}
	if sp.Username != "alice" {
		t.Fatalf("expected username alice, got %q", sp.Username)
	}

	hist := singleEvent(t, events, EventHistory)
	var hp HistoryPayload
	if err := json.Unmarshal(hist.Payload, &hp); err != nil {
		t.Fatalf("decode history payload: %v", err)
	}
	if len(hp.Messages) != 0 {
		t.Fatalf("expected empty history replay, got %d messages", len(hp.Messages))
	}

	pres := singleEvent(t, events, EventPresence)
	var pp PresencePayload
	if err := json.Unmarshal(pres.Payload, &pp); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	if len(pp.Users) != 1 || pp.Users[0].Username != "alice" || pp.Users[0].Status != presence.StatusOnline {
		t.Fatalf("unexpected presence snapshot: %+v", pp.Users)
	}

	if len(eventsOfType(events, EventUserJoined)) != 0 {
		t.Fatal("the joiner must not receive its own joined notice")
	}

	if _, authed := h.registry.Lookup(alice.id); !authed {
		t.Fatal("expected alice's connection to be bound")
	}
}

func TestLoginWrongPasswordIsTargetedAndMutationFree(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice) // drain

	intruder := connect(h)
	login(h, intruder, "alice", "wrong", "🎯")

	events := received(t, intruder)
	loginErr := singleEvent(t, events, EventLoginError)
	var ep LoginErrorPayload
	if err := json.Unmarshal(loginErr.Payload, &ep); err != nil {
		t.Fatalf("decode login error payload: %v", err)
	}
	if ep.Code != errs.ErrInvalidPassword {
		t.Fatalf("expected code %d, got %d", errs.ErrInvalidPassword, ep.Code)
	}

	if _, authed := h.registry.Lookup(intruder.id); authed {
		t.Fatal("failed login must not bind the connection")
	}

	if others := received(t, alice); len(others) != 0 {
		t.Fatalf("failed login must not broadcast, alice got %d events", len(others))
	}

	// The connection stays usable for a retry.
	login(h, intruder, "alice", "secret", "🎯")
	if _, authed := h.registry.Lookup(intruder.id); !authed {
		t.Fatal("retry with the correct password must succeed")
	}
}

func TestNewUserJoinIsAnnouncedToOthersOnly(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	bob := connect(h)
	login(h, bob, "bob", "pw2", "🎮")

	aliceEvents := received(t, alice)
	joined := singleEvent(t, aliceEvents, EventUserJoined)
	var up UserEventPayload
	if err := json.Unmarshal(joined.Payload, &up); err != nil {
		t.Fatalf("decode user event payload: %v", err)
	}
	if up.User.Username != "bob" {
		t.Fatalf("expected bob in joined notice, got %q", up.User.Username)
	}

	pres := singleEvent(t, aliceEvents, EventPresence)
	var pp PresencePayload
	if err := json.Unmarshal(pres.Payload, &pp); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	if len(pp.Users) != 2 {
		t.Fatalf("expected 2 roster entries, got %d", len(pp.Users))
	}

	bobEvents := received(t, bob)
	if len(eventsOfType(bobEvents, EventUserJoined)) != 0 {
		t.Fatal("bob must not receive his own joined notice")
	}

	// Bob's replay includes alice's join notice from the system log.
	hist := singleEvent(t, bobEvents, EventHistory)
	var hp HistoryPayload
	if err := json.Unmarshal(hist.Payload, &hp); err != nil {
		t.Fatalf("decode history payload: %v", err)
	}
	if len(hp.Messages) != 1 || hp.Messages[0].Kind != history.KindSystem {
		t.Fatalf("expected one system message in bob's replay, got %+v", hp.Messages)
	}
}

func TestReturningUserIsNotAnnounced(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	h.dispatch(intent{client: alice, kind: EventLogout})

	watcher := connect(h)
	login(h, watcher, "bob", "pw2", "🎮")
	received(t, watcher)

	again := connect(h)
	login(h, again, "alice", "secret", "🚀")

	watcherEvents := received(t, watcher)
	if len(eventsOfType(watcherEvents, EventUserJoined)) != 0 {
		t.Fatal("an already registered user logging back in must not be announced as joined")
	}
	if len(eventsOfType(watcherEvents, EventPresence)) != 1 {
		t.Fatal("expected a fresh presence snapshot for the returning user")
	}
}

func TestTextBroadcastsToAllIncludingSender(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	received(t, alice)
	received(t, bob)

	sendText(h, alice, "hello")

	for _, c := range []*Client{alice, bob} {
		events := received(t, c)
		msg := singleEvent(t, events, EventMessage)

		var m history.Message
		if err := json.Unmarshal(msg.Payload, &m); err != nil {
			t.Fatalf("decode message payload: %v", err)
		}
		if m.Text != "hello" {
			t.Fatalf("expected text hello, got %q", m.Text)
		}
		if m.Author.Username != "alice" {
			t.Fatalf("expected author alice, got %q", m.Author.Username)
		}
		if m.Kind != history.KindMessage {
			t.Fatalf("expected kind message, got %q", m.Kind)
		}
	}
}

func TestTextFromUnauthenticatedConnectionIsDropped(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	lurker := connect(h)
	retainedBefore := h.log.Len()

	sendText(h, lurker, "should vanish")

	if h.log.Len() != retainedBefore {
		t.Fatal("unauthenticated message must not reach the log")
	}
	if events := received(t, alice); len(events) != 0 {
		t.Fatalf("unauthenticated message must not broadcast, got %d events", len(events))
	}
	if events := received(t, lurker); len(events) != 0 {
		t.Fatalf("drop must be silent, lurker got %d events", len(events))
	}
}

func TestOverlongTextIsRejectedToSenderOnly(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	received(t, alice)
	received(t, bob)

	long := make([]byte, MaxTextBytes+1)
	for i := range long {
		long[i] = 'x'
	}
	sendText(h, alice, string(long))

	events := received(t, alice)
	errEvent := singleEvent(t, events, EventError)
	var ep ErrorPayload
	if err := json.Unmarshal(errEvent.Payload, &ep); err != nil {
		t.Fatalf("decode error payload: %v", err)
	}
	if ep.Code != errs.ErrMessageContentTooLong {
		t.Fatalf("expected code %d, got %d", errs.ErrMessageContentTooLong, ep.Code)
	}

	if events := received(t, bob); len(events) != 0 {
		t.Fatalf("rejected message must not broadcast, bob got %d events", len(events))
	}
}

func TestTypingReachesOthersOnly(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	received(t, alice)
	received(t, bob)

	h.dispatch(intent{client: alice, kind: EventTypingStart})

	if !h.typing.Contains(alice.id) {
		t.Fatal("expected alice's typing marker to be set")
	}

	bobEvents := received(t, bob)
	typing := singleEvent(t, bobEvents, EventTyping)
	var tp TypingPayload
	if err := json.Unmarshal(typing.Payload, &tp); err != nil {
		t.Fatalf("decode typing payload: %v", err)
	}
	if tp.Username != "alice" || !tp.IsTyping {
		t.Fatalf("unexpected typing payload: %+v", tp)
	}

	if events := received(t, alice); len(events) != 0 {
		t.Fatalf("typist must not receive its own typing event, got %d", len(events))
	}

	h.dispatch(intent{client: alice, kind: EventTypingStop})

	if h.typing.Contains(alice.id) {
		t.Fatal("expected alice's typing marker to be cleared")
	}

	bobEvents = received(t, bob)
	typing = singleEvent(t, bobEvents, EventTyping)
	if err := json.Unmarshal(typing.Payload, &tp); err != nil {
		t.Fatalf("decode typing payload: %v", err)
	}
	if tp.IsTyping {
		t.Fatal("expected typing stop")
	}
}

func TestLogoutCleansUpAndNotifiesOthers(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	h.dispatch(intent{client: alice, kind: EventTypingStart})
	received(t, alice)
	received(t, bob)

	h.dispatch(intent{client: alice, kind: EventLogout})

	bobEvents := received(t, bob)
	left := singleEvent(t, bobEvents, EventUserLeft)
	var up UserEventPayload
	if err := json.Unmarshal(left.Payload, &up); err != nil {
		t.Fatalf("decode user event payload: %v", err)
	}
	if up.User.Username != "alice" {
		t.Fatalf("expected alice in left notice, got %q", up.User.Username)
	}

	pres := singleEvent(t, bobEvents, EventPresence)
	var pp PresencePayload
	if err := json.Unmarshal(pres.Payload, &pp); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	for _, entry := range pp.Users {
		if entry.Username == "alice" && entry.Status != presence.StatusOffline {
			t.Fatalf("expected alice offline, got %q", entry.Status)
		}
	}

	if _, authed := h.registry.Lookup(alice.id); authed {
		t.Fatal("logout must unbind the connection")
	}
	if h.typing.Contains(alice.id) {
		t.Fatal("logout must clear the typing marker")
	}
	if _, tracked := h.clients[alice.id]; tracked {
		t.Fatal("logout must discard the connection")
	}
}

func TestDisconnectMirrorsLogoutCleanup(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	h.dispatch(intent{client: bob, kind: EventTypingStart})
	received(t, alice)
	received(t, bob)

	h.dropClient(bob)

	aliceEvents := received(t, alice)
	if len(eventsOfType(aliceEvents, EventUserLeft)) != 1 {
		t.Fatal("disconnect must broadcast the left notice like logout does")
	}

	pres := singleEvent(t, aliceEvents, EventPresence)
	var pp PresencePayload
	if err := json.Unmarshal(pres.Payload, &pp); err != nil {
		t.Fatalf("decode presence payload: %v", err)
	}
	for _, entry := range pp.Users {
		if entry.Username == "bob" && entry.Status != presence.StatusOffline {
			t.Fatalf("expected bob offline, got %q", entry.Status)
		}
	}

	if h.typing.Contains(bob.id) {
		t.Fatal("disconnect must clear the typing marker")
	}
	if _, authed := h.registry.Lookup(bob.id); authed {
		t.Fatal("disconnect must unbind the connection")
	}
}

func TestUnauthenticatedDisconnectIsQuiet(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	lurker := connect(h)
	h.dropClient(lurker)

	if events := received(t, alice); len(events) != 0 {
		t.Fatalf("disconnect of a never-authenticated connection must not broadcast, got %d events", len(events))
	}
}

func TestSessionResumeRoundTrip(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")

	events := received(t, alice)
	var sp SessionPayload
	if err := json.Unmarshal(singleEvent(t, events, EventSession).Payload, &sp); err != nil {
		t.Fatalf("decode session payload: %v", err)
	}

	h.dispatch(intent{client: alice, kind: EventLogout})

	watcher := connect(h)
	login(h, watcher, "bob", "pw2", "🎮")
	received(t, watcher)

	resumed := connect(h)
	sessionLogin(h, resumed, sp.Token, "alice")

	resumedEvents := received(t, resumed)

	var reack SessionPayload
	if err := json.Unmarshal(singleEvent(t, resumedEvents, EventSession).Payload, &reack); err != nil {
		t.Fatalf("decode session payload: %v", err)
	}
	if reack.Token != sp.Token {
		t.Fatal("resume must re-acknowledge the presented token")
	}

	if len(eventsOfType(resumedEvents, EventHistory)) != 1 {
		t.Fatal("resume must replay history")
	}

	watcherEvents := received(t, watcher)
	if len(eventsOfType(watcherEvents, EventUserJoined)) != 0 {
		t.Fatal("resumption must be silent, no joined notice")
	}
	if len(eventsOfType(watcherEvents, EventPresence)) != 1 {
		t.Fatal("resumption must broadcast a fresh presence snapshot")
	}

	connected, authed := h.registry.Lookup(resumed.id)
	if !authed {
		t.Fatal("resume must bind the new connection")
	}
	if connected.Avatar != "🚀" {
		t.Fatalf("resume must restore the stored avatar, got %q", connected.Avatar)
	}
}

func TestSessionResumeRejectsForgedToken(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	forger := connect(h)
	sessionLogin(h, forger, "not-a-real-token", "alice")

	events := received(t, forger)
	loginErr := singleEvent(t, events, EventLoginError)
	var ep LoginErrorPayload
	if err := json.Unmarshal(loginErr.Payload, &ep); err != nil {
		t.Fatalf("decode login error payload: %v", err)
	}
	if ep.Code != errs.ErrInvalidSession {
		t.Fatalf("expected code %d, got %d", errs.ErrInvalidSession, ep.Code)
	}

	if _, authed := h.registry.Lookup(forger.id); authed {
		t.Fatal("forged resume must not bind the connection")
	}
	if events := received(t, alice); len(events) != 0 {
		t.Fatalf("forged resume must not broadcast, got %d events", len(events))
	}
}

func TestLoginFromAuthenticatedConnectionIsDropped(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	login(h, alice, "mallory", "pw", "🃏")

	connected, _ := h.registry.Lookup(alice.id)
	if connected.Username != "alice" {
		t.Fatalf("second login on a bound connection must be ignored, got %q", connected.Username)
	}
	if events := received(t, alice); len(events) != 0 {
		t.Fatalf("dropped protocol misuse must be silent, got %d events", len(events))
	}
}

func TestStalledClientIsTornDownOnceDuringFanOut(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	received(t, alice)

	// A tiny send queue, so the broadcast below finds it full.
	bob := &Client{
		id:     randx.ConnectionID(),
		hub:    h,
		send:   make(chan []byte, 4),
		logger: zerolog.Nop(),
	}
	h.addClient(bob)
	login(h, bob, "bob", "pw2", "🎮")
	received(t, bob)
	received(t, alice)

	for len(bob.send) < cap(bob.send) {
		bob.send <- []byte("{}")
	}

	baseline := testutil.ToFloat64(metrics.ConnectionsActive)

	// The teardown itself broadcasts, which stalls bob a second time; the
	// gauge must still move by exactly one.
	sendText(h, alice, "hello")

	if got := testutil.ToFloat64(metrics.ConnectionsActive); got != baseline-1 {
		t.Fatalf("expected the connections gauge to drop by exactly 1, got %v (baseline %v)", got, baseline)
	}
	if _, tracked := h.clients[bob.id]; tracked {
		t.Fatal("stalled client must be discarded")
	}
	if _, authed := h.registry.Lookup(bob.id); authed {
		t.Fatal("stalled client must be unbound")
	}

	stats := h.Stats()
	if stats.Connections != 1 {
		t.Fatalf("expected 1 remaining connection, got %d", stats.Connections)
	}

	aliceEvents := received(t, alice)
	if len(eventsOfType(aliceEvents, EventMessage)) != 1 {
		t.Fatal("expected the triggering message to reach the healthy client")
	}
	if len(eventsOfType(aliceEvents, EventUserLeft)) != 1 {
		t.Fatal("stalled teardown must announce the departure like any disconnect")
	}
}

func TestStatsReflectEngineState(t *testing.T) {
	h := newTestHub()
	alice := connect(h)
	bob := connect(h)
	login(h, alice, "alice", "secret", "🚀")
	login(h, bob, "bob", "pw2", "🎮")
	sendText(h, alice, "hello")

	stats := h.Stats()
	if stats.Connections != 2 {
		t.Fatalf("expected 2 connections, got %d", stats.Connections)
	}
	if stats.OnlineUsers != 2 {
		t.Fatalf("expected 2 online users, got %d", stats.OnlineUsers)
	}
	// Two system join notices plus the chat message.
	if stats.RetainedMessages != 3 {
		t.Fatalf("expected 3 retained messages, got %d", stats.RetainedMessages)
	}

	h.dispatch(intent{client: bob, kind: EventLogout})

	stats = h.Stats()
	if stats.Connections != 1 {
		t.Fatalf("expected 1 connection after logout, got %d", stats.Connections)
	}
	if stats.OnlineUsers != 1 {
		t.Fatalf("expected 1 online user after logout, got %d", stats.OnlineUsers)
	}
}
