package game

import (
	"context"
	"encoding/json"
	"time"

	"github.com/stretchr/testify/suite"

	"mafiagame/internal/app/store/memory"
	"mafiagame/internal/configs"
	"mafiagame/internal/pkg/clockx"
	"mafiagame/internal/pkg/logx"
	"mafiagame/internal/pkg/randx"
)

// gameSuite is the shared harness for hub tests. It runs a real hub loop
// against the in-memory store with deterministic randomness and time, and
// exercises it through sessions without a network transport.
type gameSuite struct {
	suite.Suite
	store *memory.Storage
	rng   *randx.Mock
	clock *clockx.Mock
	hub   *Hub
}

func (s *gameSuite) SetupTest() {
	logx.InitGlobalLogger(false)

	cfg := &configs.AppConfig{
		Environment:   "test",
		JWTSecret:     "test-secret",
		AdminNickname: "Admin",
		Game:          configs.DefaultGameConfig(),
	}

	s.store = memory.New()
	s.rng = randx.NewMock()
	s.clock = clockx.NewMock(time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC))
	s.hub = NewHub(cfg, s.store, s.rng, s.clock)

	go s.hub.Run()
}

func (s *gameSuite) TearDownTest() {
	s.hub.Shutdown()
}

// run executes fn on the hub's mutation stream and waits for it to complete.
func (s *gameSuite) run(fn func()) {
	done := make(chan struct{})
	s.hub.post(func() {
		fn()
		close(done)
	})

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		s.FailNow("hub command did not complete")
	}
}

// sync waits until every previously queued command has been processed.
func (s *gameSuite) sync() {
	s.run(func() {})
}

// connect opens a transportless session and consumes its greeting.
func (s *gameSuite) connect() *Session {
	sess := NewSession(s.hub, nil, "test")
	s.hub.Connect(sess)
	s.sync()
	s.drain(sess)

	return sess
}

// send delivers one inbound message and waits until it has been dispatched.
// Handlers that go through the store finish asynchronously; use login or
// eventually for those.
func (s *gameSuite) send(sess *Session, v any) {
	raw, err := json.Marshal(v)
	s.Require().NoError(err)

	s.hub.HandleInbound(sess, raw)
	s.sync()
}

// login registers the account if needed, connects a session, and
// authenticates it.
func (s *gameSuite) login(nickname string) *Session {
	_, _ = s.store.CreateUser(context.Background(), nickname, "password123", "")

	sess := s.connect()
	s.send(sess, map[string]any{"type": "login", "nickname": nickname, "password": "password123"})

	s.Require().Eventually(func() bool {
		var bound bool
		s.run(func() { bound = s.hub.byNickname[nickname] == sess })
		return bound
	}, 2*time.Second, 5*time.Millisecond, "session for %s was not bound", nickname)

	s.drain(sess)

	return sess
}

// loginAdmin authenticates the configured admin account.
func (s *gameSuite) loginAdmin() *Session {
	return s.login("Admin")
}

// drain reads every queued outbound event from a session's send buffer.
func (s *gameSuite) drain(sess *Session) []map[string]any {
	var events []map[string]any
	for {
		select {
		case raw, ok := <-sess.send:
			if !ok {
				return events
			}
			var event map[string]any
			s.Require().NoError(json.Unmarshal(raw, &event))
			events = append(events, event)
		default:
			return events
		}
	}
}

// requireEvent finds the first event of the given type or fails the test.
func (s *gameSuite) requireEvent(events []map[string]any, eventType string) map[string]any {
	for _, event := range events {
		if event["type"] == eventType {
			return event
		}
	}

	s.Require().Failf("missing event", "no %q event in %v", eventType, eventTypes(events))
	return nil
}

// hasEvent reports whether an event of the given type was delivered.
func hasEvent(events []map[string]any, eventType string) bool {
	for _, event := range events {
		if event["type"] == eventType {
			return true
		}
	}

	return false
}

func eventTypes(events []map[string]any) []string {
	types := make([]string, 0, len(events))
	for _, event := range events {
		types = append(types, event["type"].(string))
	}

	return types
}

// errorCode extracts the code of the first error event, or 0.
func errorCode(events []map[string]any) int {
	for _, event := range events {
		if event["type"] == evtError {
			return int(event["code"].(float64))
		}
	}

	return 0
}

// createRoom creates a room through the wire protocol and returns its id.
func (s *gameSuite) createRoom(sess *Session, params map[string]any) string {
	s.send(sess, map[string]any{"type": "createRoom", "room": params})

	events := s.drain(sess)
	joined := s.requireEvent(events, evtRoomJoined)
	room := joined["room"].(map[string]any)

	return room["id"].(string)
}

// joinRoom joins an existing room and consumes the resulting events.
func (s *gameSuite) joinRoom(sess *Session, roomID string) {
	s.send(sess, map[string]any{"type": "joinRoom", "roomId": roomID})
	events := s.drain(sess)
	s.requireEvent(events, evtRoomJoined)
}

// withRoom runs fn against the live room on the mutation stream.
func (s *gameSuite) withRoom(roomID string, fn func(r *Room)) {
	s.run(func() {
		r := s.hub.rooms[roomID]
		s.Require().NotNil(r, "room %s not found", roomID)
		fn(r)
	})
}

// queueIdentityShuffle queues mock randomness that makes the role shuffle a
// no-op, so roles land in pool order across the seats.
func (s *gameSuite) queueIdentityShuffle(n int) {
	for i := n - 1; i > 0; i-- {
		s.rng.QueueIntn(i)
	}
}
