/*
This file defines the Hub, the single owner of all live coordination state:
connected sessions, the identity registry, and the room registry. Every
mutation runs as a closure on one command channel consumed by Run, so room and
game state never needs locking. Timers and store continuations post closures
back onto the same channel.
*/
package game

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/rs/zerolog"

	"mafiagame/internal/app/store"
	"mafiagame/internal/configs"
	"mafiagame/internal/pkg/auth/jwt"
	"mafiagame/internal/pkg/clockx"
	"mafiagame/internal/pkg/errs"
	"mafiagame/internal/pkg/logx"
	"mafiagame/internal/pkg/randx"
)

const (
	// timeout for background persistence calls.
	storeTimeout = 5 * time.Second

	// how many server log lines the admin log ring retains.
	maxRecentLogs = 100

	minNicknameLen = 3
	maxNicknameLen = 20
	minPasswordLen = 4
	maxAvatarLen   = 64
)

// effectPrices lists the purchasable nickname effects and their coin cost.
var effectPrices = map[string]int{
	"rainbow": 50,
	"glow":    30,
	"shake":   25,
	"bounce":  20,
	"fade":    15,
}

// tickHandle identifies one scheduled ticker. Cancelling stops the feeding
// goroutine; callbacks already queued check their handle and drop themselves.
type tickHandle struct {
	stop chan struct{}
	once sync.Once
}

// Cancel stops the ticker. Safe to call more than once.
func (t *tickHandle) Cancel() {
	t.once.Do(func() {
		close(t.stop)
	})
}

// Hub owns all live coordination state and serializes every mutation on one
// command channel.
type Hub struct {
	cfg   *configs.AppConfig
	store store.Store
	rng   randx.Rand
	clock clockx.Clock

	// sessions holds every open connection in registration order; broadcasts
	// iterate it so delivery order is deterministic.
	sessions []*Session

	// registered tracks live sessions for O(1) stale-continuation checks.
	registered map[*Session]struct{}

	// byNickname maps an authenticated identity to its single active session.
	byNickname map[string]*Session

	rooms map[string]*Room

	commands chan func()
	stopChan chan struct{}
	stopOnce sync.Once
	done     chan struct{}

	startedAt  time.Time
	botSeq     int
	recentLogs []string

	logger zerolog.Logger
}

// NewHub constructs a Hub. Run must be called before any sessions connect.
func NewHub(cfg *configs.AppConfig, st store.Store, rng randx.Rand, clock clockx.Clock) *Hub {
	return &Hub{
		cfg:        cfg,
		store:      st,
		rng:        rng,
		clock:      clock,
		registered: make(map[*Session]struct{}),
		byNickname: make(map[string]*Session),
		rooms:      make(map[string]*Room),
		commands:   make(chan func(), 512),
		stopChan:   make(chan struct{}),
		done:       make(chan struct{}),
		startedAt:  clock.Now(),
		logger:     logx.Component("hub"),
	}
}

// Run consumes the command channel until Shutdown. This goroutine is the only
// one that touches hub state.
func (h *Hub) Run() {
	h.logger.Info().Msg("Hub started")
	h.note("server started")

	defer close(h.done)

	for {
		select {
		case cmd := <-h.commands:
			cmd()

		case <-h.stopChan:
			h.logger.Info().Msg("Hub stopped")
			return
		}
	}
}

// Shutdown stops the command loop and closes all remaining sessions.
func (h *Hub) Shutdown() {
	h.stopOnce.Do(func() {
		close(h.stopChan)
	})
	<-h.done

	// the loop has exited; hub state is safe to touch from here.
	for _, s := range h.sessions {
		s.closeSend()
	}
}

// post queues a mutation onto the command stream. Posts after shutdown are
// dropped.
func (h *Hub) post(cmd func()) {
	select {
	case h.commands <- cmd:
	case <-h.stopChan:
	}
}

// startTicker runs fn on the mutation stream every interval until the
// returned handle is cancelled.
func (h *Hub) startTicker(interval time.Duration, fn func()) *tickHandle {
	t := &tickHandle{stop: make(chan struct{})}

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()

		for {
			select {
			case <-ticker.C:
				select {
				case h.commands <- fn:
				case <-t.stop:
					return
				case <-h.stopChan:
					return
				}

			case <-t.stop:
				return

			case <-h.stopChan:
				return
			}
		}
	}()

	return t
}

// persist runs a store write in the background with a bounded timeout.
// Failures are logged; the live state is already authoritative.
func (h *Hub) persist(desc string, fn func(ctx context.Context) error) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		if err := fn(ctx); err != nil {
			h.logger.Error().Err(err).Str("operation", desc).Msg("Background persistence failed")
		}
	}()
}

func (h *Hub) persistRoomStatus(r *Room) {
	id, status := r.ID, string(r.Status)
	h.persist("update room status", func(ctx context.Context) error {
		return h.store.UpdateRoomStatus(ctx, id, status)
	})
}

// Connect registers a freshly accepted session and greets it.
func (h *Hub) Connect(s *Session) {
	h.post(func() {
		h.sessions = append(h.sessions, s)
		h.registered[s] = struct{}{}
		s.sendEvent(connectedEvent{Type: evtConnected, Message: "Connected to Mafia server"})
	})
}

// HandleInbound queues one client frame for dispatch.
func (h *Hub) HandleInbound(s *Session, raw []byte) {
	h.post(func() {
		h.dispatch(s, raw)
	})
}

// Disconnect tears down a session whose connection has closed. Membership in
// a waiting room is released; membership in a running or finished game is
// retained so the player can rejoin.
func (h *Hub) Disconnect(s *Session) {
	h.post(func() {
		if _, ok := h.registered[s]; !ok {
			return
		}

		if r := h.rooms[s.roomID]; r != nil && r.Status == RoomWaiting {
			s.roomID = ""
			h.removeFromRoom(r, s.nickname())
		}

		h.unregister(s)
		s.closeSend()
	})
}

// ResumeSession authenticates a session from a login-issued token presented at
// the WebSocket upgrade.
func (h *Hub) ResumeSession(s *Session, nickname string) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		user, err := h.store.GetUser(ctx, nickname)

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}
			if err != nil {
				s.sendError(errs.NewError(errs.ErrInvalidCredentials))
				return
			}

			h.bindIdentity(s, user)
		})
	}()
}

// unregister removes a session from all registries. Does not touch room
// membership.
func (h *Hub) unregister(s *Session) {
	delete(h.registered, s)

	for i, existing := range h.sessions {
		if existing == s {
			h.sessions = append(h.sessions[:i], h.sessions[i+1:]...)
			break
		}
	}

	if nick := s.nickname(); nick != "" && h.byNickname[nick] == s {
		delete(h.byNickname, nick)
	}
}

// dispatch decodes one inbound frame and routes it. Runs on the mutation
// stream.
func (h *Hub) dispatch(s *Session, raw []byte) {
	var envelope inboundEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return
	}

	switch envelope.Type {
	case msgPing:
		s.sendEvent(pongEvent{Type: evtPong})

	case msgRegister:
		var msg registerMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleRegister(s, msg)

	case msgLogin:
		var msg loginMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleLogin(s, msg)

	case msgGetRooms:
		h.handleGetRooms(s)

	case msgCreateRoom:
		var msg createRoomMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleCreateRoom(s, msg.Room)

	case msgJoinRoom:
		var msg joinRoomMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleJoinRoom(s, msg)

	case msgLeaveRoom:
		h.handleLeaveRoom(s)

	case msgRejoinRoom:
		var msg rejoinRoomMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleRejoinRoom(s, msg)

	case msgChatMessage:
		var msg chatMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleChat(s, msg)

	case msgStartGame:
		h.handleStartGame(s)

	case msgGameAction:
		var msg gameActionMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleGameAction(s, msg.Action)

	case msgUpdateAvatar:
		var msg updateAvatarMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleUpdateAvatar(s, msg)

	case msgBuyEffect:
		var msg buyEffectMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleBuyEffect(s, msg)

	case msgAdminAction:
		var msg adminActionMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleAdminAction(s, msg)

	case msgGetStats:
		h.handleGetStats(s)

	case msgAddBot:
		var msg addBotMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleAddBot(s, msg)

	case msgRemoveBot:
		var msg removeBotMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleRemoveBot(s, msg)

	case msgForceEndGame:
		var msg forceEndGameMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleForceEndGame(s, msg)

	case msgSendAnnouncement:
		var msg sendAnnouncementMsg
		if !h.decode(s, raw, &msg) {
			return
		}
		h.handleAnnouncement(s, msg)

	case msgGetLogs:
		h.handleGetLogs(s)

	default:
		s.sendError(errs.NewError(errs.ErrUnknownMessageType))
	}
}

func (h *Hub) decode(s *Session, raw []byte, dst any) bool {
	if err := json.Unmarshal(raw, dst); err != nil {
		s.sendError(errs.NewError(errs.ErrInvalidJSONFormat))
		return false
	}

	return true
}

// requireUser returns the session's bound account or sends an auth error.
func (h *Hub) requireUser(s *Session) *store.User {
	if s.user == nil {
		s.sendError(errs.NewError(errs.ErrNotAuthenticated))
		return nil
	}

	return s.user
}

// requireAdmin returns the session's account if it carries the admin flag.
func (h *Hub) requireAdmin(s *Session) *store.User {
	u := h.requireUser(s)
	if u == nil {
		return nil
	}
	if !u.IsAdmin {
		s.sendError(errs.NewError(errs.ErrNotAdmin))
		return nil
	}

	return u
}

// --- auth ---

func (h *Hub) handleRegister(s *Session, msg registerMsg) {
	nickname := strings.TrimSpace(msg.Nickname)
	if n := utf8.RuneCountInString(nickname); n < minNicknameLen || n > maxNicknameLen {
		s.sendError(errs.NewError(errs.ErrInvalidNickname))
		return
	}
	if len(msg.Password) < minPasswordLen {
		s.sendError(errs.NewError(errs.ErrInvalidPassword))
		return
	}

	avatar, password := msg.Avatar, msg.Password
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		_, err := h.store.CreateUser(ctx, nickname, password, avatar)

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}

			switch {
			case err == nil:
				s.sendEvent(registerSuccessEvent{Type: evtRegisterSuccess, Message: "Registration successful. You can now log in."})
			case errors.Is(err, store.ErrDuplicate):
				s.sendError(errs.NewError(errs.ErrUserAlreadyExists))
			default:
				h.logger.Error().Err(err).Str("nickname", nickname).Msg("Registration failed")
				s.sendError(errs.NewError(errs.ErrStorage))
			}
		})
	}()
}

func (h *Hub) handleLogin(s *Session, msg loginMsg) {
	if msg.Nickname == "" || msg.Password == "" {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	nickname, password := msg.Nickname, msg.Password
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		user, err := h.store.LoginUser(ctx, nickname, password)

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}

			switch {
			case err == nil:
				h.bindIdentity(s, user)
			case errors.Is(err, store.ErrInvalidCredentials), errors.Is(err, store.ErrNotFound):
				s.sendError(errs.NewError(errs.ErrInvalidCredentials))
			default:
				h.logger.Error().Err(err).Str("nickname", nickname).Msg("Login failed")
				s.sendError(errs.NewError(errs.ErrStorage))
			}
		})
	}()
}

// bindIdentity binds an authenticated account to a session, displacing any
// prior session holding the same identity. The displaced session is told why,
// released from its room with full leave semantics, and its transport closed,
// all before the new binding takes effect.
func (h *Hub) bindIdentity(s *Session, user *store.User) {
	// a session switching accounts releases its previous identity first:
	// the old nickname index entry and its room seat must not survive the
	// rebind, or private events for the old identity would be routed here.
	if prev := s.nickname(); prev != "" && prev != user.Nickname {
		if h.byNickname[prev] == s {
			delete(h.byNickname, prev)
		}
		if r := h.rooms[s.roomID]; r != nil {
			s.roomID = ""
			h.removeFromRoom(r, prev)
		}
	}

	if existing := h.byNickname[user.Nickname]; existing != nil && existing != s {
		h.displace(existing)
	}

	// promote the configured admin account on login
	if !user.IsAdmin && user.Nickname == h.cfg.AdminNickname && h.cfg.AdminNickname != "" {
		user.IsAdmin = true
		nickname := user.Nickname
		h.persist("promote admin", func(ctx context.Context) error {
			return h.store.SetAdmin(ctx, nickname, true)
		})
	}

	s.user = user
	h.byNickname[user.Nickname] = s

	token, err := jwt.GenerateToken(
		&jwt.Payload{Nickname: user.Nickname, IsAdmin: user.IsAdmin},
		h.cfg.JWTSecret,
		jwt.SessionResumeExpiration,
	)
	if err != nil {
		h.logger.Error().Err(err).Msg("Failed to generate session resume token")
	}

	s.logger = s.logger.With().Str("nickname", user.Nickname).Logger()
	s.sendEvent(loginSuccessEvent{Type: evtLoginSuccess, User: userPayload(user), Token: token})
	h.note("user %s logged in", user.Nickname)
}

// displace evicts the current holder of an identity in favor of a new
// connection.
func (h *Hub) displace(old *Session) {
	reason := "Signed in from another device"
	old.sendEvent(kickedEvent{Type: evtKicked, Reason: reason})

	if r := h.rooms[old.roomID]; r != nil {
		old.roomID = ""
		h.removeFromRoom(r, old.nickname())
	}

	h.unregister(old)
	old.Kick(reason)
}

// --- lobby and rooms ---

// lobbySummaries builds the sanitized room list, oldest room first.
func (h *Hub) lobbySummaries() []RoomSummary {
	summaries := make([]RoomSummary, 0, len(h.rooms))
	for _, r := range h.rooms {
		summaries = append(summaries, r.summary())
	}

	sort.Slice(summaries, func(i, j int) bool {
		if summaries[i].CreatedAt != summaries[j].CreatedAt {
			return summaries[i].CreatedAt < summaries[j].CreatedAt
		}
		return summaries[i].ID < summaries[j].ID
	})

	return summaries
}

func (h *Hub) handleGetRooms(s *Session) {
	if h.requireUser(s) == nil {
		return
	}

	s.sendEvent(roomsEvent{Type: evtRooms, Rooms: h.lobbySummaries()})
}

// broadcastLobbyRooms pushes the room list to every authenticated session not
// currently in a room.
func (h *Hub) broadcastLobbyRooms() {
	event := roomsEvent{Type: evtRooms, Rooms: h.lobbySummaries()}
	messageBytes, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error marshaling lobby room list")
		return
	}

	for _, s := range h.sessions {
		if s.user != nil && s.roomID == "" {
			s.queueRaw(messageBytes)
		}
	}
}

func (h *Hub) handleCreateRoom(s *Session, params RoomParams) {
	u := h.requireUser(s)
	if u == nil {
		return
	}
	if s.roomID != "" {
		s.sendError(errs.NewError(errs.ErrAlreadyInRoom))
		return
	}

	params.Name = strings.TrimSpace(params.Name)
	if params.Name == "" || utf8.RuneCountInString(params.Name) > maxRoomNameLen {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	r := newRoom(randx.RoomID(), params, u.Nickname, u.Avatar, h.clock.Now())
	h.rooms[r.ID] = r
	s.roomID = r.ID

	rec := store.RoomRecord{
		ID:         r.ID,
		Name:       r.Name,
		Creator:    r.Creator,
		MinPlayers: r.MinPlayers,
		MaxPlayers: r.MaxPlayers,
		Password:   r.Password,
		Status:     string(r.Status),
		Doctor:     r.Roles.Doctor,
		Lovers:     r.Roles.Lovers,
		CreatedAt:  r.CreatedAt,
	}
	h.persist("create room", func(ctx context.Context) error {
		return h.store.CreateRoom(ctx, rec)
	})

	s.sendEvent(roomEvent{Type: evtRoomJoined, Room: r.view(u.Nickname)})
	h.broadcastLobbyRooms()
	h.note("room %s (%s) created by %s", r.Name, r.ID, u.Nickname)
}

func (h *Hub) handleJoinRoom(s *Session, msg joinRoomMsg) {
	u := h.requireUser(s)
	if u == nil {
		return
	}
	if s.roomID != "" {
		s.sendError(errs.NewError(errs.ErrAlreadyInRoom))
		return
	}

	r := h.rooms[msg.RoomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}
	if r.hasPlayer(u.Nickname) {
		// the player is still a member from a dropped connection; rejoining
		// is the way back in.
		s.sendError(errs.NewError(errs.ErrAlreadyMember))
		return
	}
	if r.Status != RoomWaiting {
		s.sendError(errs.NewError(errs.ErrAlreadyStarted))
		return
	}
	if r.Password != "" && r.Password != msg.Password {
		s.sendError(errs.NewError(errs.ErrWrongPassword))
		return
	}
	if len(r.Players) >= r.MaxPlayers {
		s.sendError(errs.NewError(errs.ErrRoomFull))
		return
	}

	r.addPlayer(u.Nickname, u.Avatar, false)
	s.roomID = r.ID

	s.sendEvent(roomEvent{Type: evtRoomJoined, Room: r.view(u.Nickname)})
	h.systemChat(r, fmt.Sprintf("%s joined the room.", u.Nickname))
	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
	h.evalAutoStart(r)
}

func (h *Hub) handleLeaveRoom(s *Session) {
	u := h.requireUser(s)
	if u == nil {
		return
	}

	r := h.rooms[s.roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	s.roomID = ""
	h.removeFromRoom(r, u.Nickname)
	s.sendEvent(roomsEvent{Type: evtRooms, Rooms: h.lobbySummaries()})
}

func (h *Hub) handleRejoinRoom(s *Session, msg rejoinRoomMsg) {
	u := h.requireUser(s)
	if u == nil {
		return
	}
	if s.roomID != "" {
		s.sendError(errs.NewError(errs.ErrAlreadyInRoom))
		return
	}

	r := h.rooms[msg.RoomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	p := r.player(u.Nickname)
	if p == nil {
		s.sendError(errs.NewError(errs.ErrNotRoomMember))
		return
	}

	s.roomID = r.ID
	s.sendEvent(roomEvent{Type: evtRoomJoined, Room: r.view(u.Nickname)})

	// restore the private role briefing for a game in progress
	if r.Game != nil && r.Game.Phase != PhaseEnded && p.Role != "" {
		event := roleAssignedEvent{Type: evtRoleAssigned, Role: p.Role}
		if p.Role.MafiaAligned() {
			for _, member := range r.Players {
				if member.Role.MafiaAligned() {
					event.Teammates = append(event.Teammates, member.Nickname)
				}
			}
		}
		s.sendEvent(event)
	}

	h.systemChat(r, fmt.Sprintf("%s reconnected.", u.Nickname))
	h.broadcastRoomState(r)
}

// removeFromRoom applies full leave semantics for one member: removal with
// creator succession, game win re-evaluation, auto-start reconciliation, and
// room deletion once no humans remain.
func (h *Hub) removeFromRoom(r *Room, nickname string) {
	removed, _ := r.removePlayer(nickname)
	if !removed {
		return
	}

	if r.humanCount() == 0 {
		h.deleteRoom(r)
		return
	}

	h.systemChat(r, fmt.Sprintf("%s left the room.", nickname))

	if r.Game != nil && r.Game.Phase != PhaseEnded {
		r.Game.forget(nickname)
		if h.checkWin(r) {
			return
		}
	}
	if r.Status == RoomWaiting {
		h.evalAutoStart(r)
	}

	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
}

// deleteRoom tears a room down: timers cancelled, members detached, record
// dropped.
func (h *Hub) deleteRoom(r *Room) {
	h.cancelAutoStart(r, "")
	if r.resetTimer != nil {
		r.resetTimer.Stop()
		r.resetTimer = nil
	}
	if r.Game != nil && r.Game.clock != nil {
		r.Game.clock.Cancel()
	}

	delete(h.rooms, r.ID)

	for _, s := range h.sessions {
		if s.roomID == r.ID {
			s.roomID = ""
		}
	}

	id := r.ID
	h.persist("delete room", func(ctx context.Context) error {
		return h.store.DeleteRoom(ctx, id)
	})

	h.broadcastLobbyRooms()
	h.note("room %s (%s) deleted", r.Name, r.ID)
}

// --- room broadcast helpers ---

// roomSession returns the live session of a room member, or nil when the
// member is detached.
func (h *Hub) roomSession(r *Room, nickname string) *Session {
	s := h.byNickname[nickname]
	if s == nil || s.roomID != r.ID {
		return nil
	}

	return s
}

// roomSessions lists the sessions attached to a room in registration order.
func (h *Hub) roomSessions(r *Room) []*Session {
	var members []*Session
	for _, s := range h.sessions {
		if s.roomID == r.ID {
			members = append(members, s)
		}
	}

	return members
}

// broadcastRoomEvent delivers one identical event to every attached member.
func (h *Hub) broadcastRoomEvent(r *Room, event any) {
	messageBytes, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error marshaling room event")
		return
	}

	for _, s := range h.roomSessions(r) {
		s.queueRaw(messageBytes)
	}
}

// broadcastRoomState delivers a per-recipient room snapshot to every attached
// member, so role visibility is filtered for each viewer.
func (h *Hub) broadcastRoomState(r *Room) {
	for _, s := range h.roomSessions(r) {
		s.sendEvent(roomEvent{Type: evtRoomUpdated, Room: r.view(s.nickname())})
	}
}

func (h *Hub) broadcastGameState(r *Room) {
	if r.Game == nil {
		return
	}

	h.broadcastRoomEvent(r, gameStateEvent{Type: evtGameState, Game: r.Game.view()})
}

// --- chat ---

func (h *Hub) handleChat(s *Session, msg chatMsg) {
	u := h.requireUser(s)
	if u == nil {
		return
	}

	r := h.rooms[s.roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	text := strings.TrimSpace(msg.Message)
	if text == "" {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}
	if utf8.RuneCountInString(text) > maxChatMessageLen {
		s.sendError(errs.NewError(errs.ErrMessageTooLong))
		return
	}

	h.postChat(r, u.Nickname, text)
}

// systemChat posts a server-authored chat line to a room.
func (h *Hub) systemChat(r *Room, text string) {
	h.postChat(r, "System", text)
}

func (h *Hub) postChat(r *Room, sender, text string) {
	msg := ChatMessage{
		Sender:    sender,
		Message:   text,
		Timestamp: h.clock.Now().UTC().Format(time.RFC3339),
	}
	r.appendMessage(msg)

	rec := store.ChatRecord{RoomID: r.ID, Sender: sender, Message: text, SentAt: h.clock.Now()}
	h.persist("save chat message", func(ctx context.Context) error {
		return h.store.SaveMessage(ctx, rec)
	})

	h.broadcastRoomEvent(r, chatEvent{
		Type:      evtChatMessage,
		Sender:    msg.Sender,
		Message:   msg.Message,
		Timestamp: msg.Timestamp,
	})
}

// --- game start ---

func (h *Hub) handleStartGame(s *Session) {
	u := h.requireUser(s)
	if u == nil {
		return
	}

	r := h.rooms[s.roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	if err := h.startGame(r, u.Nickname, false); err != nil {
		s.sendError(err)
	}
}

// --- profile ---

func (h *Hub) handleUpdateAvatar(s *Session, msg updateAvatarMsg) {
	u := h.requireUser(s)
	if u == nil {
		return
	}

	avatar := strings.TrimSpace(msg.Avatar)
	if avatar == "" || utf8.RuneCountInString(avatar) > maxAvatarLen {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	u.Avatar = avatar
	nickname := u.Nickname
	h.persist("update avatar", func(ctx context.Context) error {
		return h.store.UpdateUserAvatar(ctx, nickname, avatar)
	})

	if r := h.rooms[s.roomID]; r != nil {
		if p := r.player(nickname); p != nil {
			p.Avatar = avatar
		}
		h.broadcastRoomState(r)
	}

	s.sendEvent(avatarUpdatedEvent{Type: evtAvatarUpdated, Avatar: avatar})
}

func (h *Hub) handleBuyEffect(s *Session, msg buyEffectMsg) {
	u := h.requireUser(s)
	if u == nil {
		return
	}

	price, ok := effectPrices[msg.Effect]
	if !ok {
		s.sendError(errs.NewError(errs.ErrUnknownEffect))
		return
	}

	for _, owned := range u.NicknameEffects {
		if owned == msg.Effect {
			s.sendError(errs.NewError(errs.ErrEffectOwned))
			return
		}
	}

	if u.Coins < price {
		s.sendError(errs.NewError(errs.ErrNotEnoughCoins))
		return
	}

	u.Coins -= price
	u.NicknameEffects = append(u.NicknameEffects, msg.Effect)

	nickname, effects := u.Nickname, append([]string(nil), u.NicknameEffects...)
	h.persist("charge effect purchase", func(ctx context.Context) error {
		if err := h.store.UpdateUserCoins(ctx, nickname, -price); err != nil {
			return err
		}
		return h.store.UpdateUserNicknameEffects(ctx, nickname, effects)
	})

	s.sendEvent(effectBoughtEvent{
		Type:            evtEffectBought,
		Effect:          msg.Effect,
		Coins:           u.Coins,
		NicknameEffects: effects,
	})
}

// --- stats and admin ---

func (h *Hub) handleGetStats(s *Session) {
	if h.requireUser(s) == nil {
		return
	}

	online := len(h.sessions)
	activeRooms := len(h.rooms)
	activeGames := 0
	for _, r := range h.rooms {
		if r.Game != nil && r.Game.Phase != PhaseEnded {
			activeGames++
		}
	}
	uptime := int64(h.clock.Now().Sub(h.startedAt).Seconds())

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		stored, err := h.store.GetStats(ctx)

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}

			payload := StatsPayload{
				OnlineUsers:   online,
				ActiveRooms:   activeRooms,
				ActiveGames:   activeGames,
				UptimeSeconds: uptime,
			}
			if err != nil {
				h.logger.Error().Err(err).Msg("Failed to load stored stats")
			} else {
				payload.RegisteredUsers = stored.RegisteredUsers
				payload.GamesRecorded = stored.GamesRecorded
			}

			s.sendEvent(statsEvent{Type: evtStats, Stats: payload})
		})
	}()
}

func (h *Hub) handleAdminAction(s *Session, msg adminActionMsg) {
	if h.requireAdmin(s) == nil {
		return
	}

	switch msg.Action {
	case "giveCoins":
		h.adminGiveCoins(s, msg.Target, msg.Amount)

	case "giveEffect":
		h.adminSetEffect(s, msg.Target, msg.Effect, true)

	case "removeEffect":
		h.adminSetEffect(s, msg.Target, msg.Effect, false)

	default:
		s.sendError(errs.NewError(errs.ErrInvalidParams))
	}
}

func (h *Hub) adminGiveCoins(s *Session, target string, amount int) {
	if target == "" || amount == 0 {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	if member := h.byNickname[target]; member != nil && member.user != nil {
		member.user.Coins += amount
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		err := h.store.UpdateUserCoins(ctx, target, amount)

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}
			if errors.Is(err, store.ErrNotFound) {
				s.sendError(errs.NewError(errs.ErrUserNotFound))
				return
			}
			if err != nil {
				s.sendError(errs.NewError(errs.ErrStorage))
				return
			}

			s.sendEvent(adminSuccessEvent{
				Type:    evtAdminSuccess,
				Message: fmt.Sprintf("Granted %d coins to %s.", amount, target),
			})
		})
	}()
}

func (h *Hub) adminSetEffect(s *Session, target, effect string, grant bool) {
	if target == "" || effect == "" {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}
	if _, known := effectPrices[effect]; grant && !known {
		s.sendError(errs.NewError(errs.ErrUnknownEffect))
		return
	}

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), storeTimeout)
		defer cancel()

		user, err := h.store.GetUser(ctx, target)
		if err == nil {
			effects := user.NicknameEffects[:0:0]
			for _, owned := range user.NicknameEffects {
				if owned != effect {
					effects = append(effects, owned)
				}
			}
			if grant {
				effects = append(effects, effect)
			}
			err = h.store.UpdateUserNicknameEffects(ctx, target, effects)
			user.NicknameEffects = effects
		}

		h.post(func() {
			if _, ok := h.registered[s]; !ok {
				return
			}
			if errors.Is(err, store.ErrNotFound) {
				s.sendError(errs.NewError(errs.ErrUserNotFound))
				return
			}
			if err != nil {
				s.sendError(errs.NewError(errs.ErrStorage))
				return
			}

			if member := h.byNickname[target]; member != nil && member.user != nil {
				member.user.NicknameEffects = user.NicknameEffects
			}

			verb := "Granted"
			if !grant {
				verb = "Removed"
			}
			s.sendEvent(adminSuccessEvent{
				Type:    evtAdminSuccess,
				Message: fmt.Sprintf("%s effect %q for %s.", verb, effect, target),
			})
		})
	}()
}

func (h *Hub) handleAddBot(s *Session, msg addBotMsg) {
	if h.requireAdmin(s) == nil {
		return
	}

	r := h.rooms[s.roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}
	if r.Status != RoomWaiting {
		s.sendError(errs.NewError(errs.ErrAlreadyStarted))
		return
	}
	if len(r.Players) >= r.MaxPlayers {
		s.sendError(errs.NewError(errs.ErrRoomFull))
		return
	}

	name := strings.TrimSpace(msg.BotName)
	if name == "" {
		h.botSeq++
		name = fmt.Sprintf("Bot_%d", h.botSeq)
	}
	if r.hasPlayer(name) || h.byNickname[name] != nil {
		s.sendError(errs.NewError(errs.ErrNameTaken))
		return
	}

	avatar := msg.BotAvatar
	if avatar == "" {
		avatar = "🤖"
	}

	r.addPlayer(name, avatar, true)
	s.sendEvent(botAddedEvent{Type: evtBotAdded, BotName: name})
	h.systemChat(r, fmt.Sprintf("%s joined the room.", name))
	h.broadcastRoomState(r)
	h.broadcastLobbyRooms()
	h.evalAutoStart(r)
}

func (h *Hub) handleRemoveBot(s *Session, msg removeBotMsg) {
	if h.requireAdmin(s) == nil {
		return
	}

	r := h.rooms[s.roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrNotInRoom))
		return
	}

	p := r.player(msg.BotName)
	if p == nil || !p.IsBot {
		s.sendError(errs.NewError(errs.ErrBotNotFound))
		return
	}

	h.removeFromRoom(r, p.Nickname)
}

func (h *Hub) handleForceEndGame(s *Session, msg forceEndGameMsg) {
	if h.requireAdmin(s) == nil {
		return
	}

	roomID := msg.RoomID
	if roomID == "" {
		roomID = s.roomID
	}

	r := h.rooms[roomID]
	if r == nil {
		s.sendError(errs.NewError(errs.ErrRoomNotFound))
		return
	}

	h.forceEndGame(r)
	s.sendEvent(adminSuccessEvent{Type: evtAdminSuccess, Message: "Game ended."})
}

func (h *Hub) handleAnnouncement(s *Session, msg sendAnnouncementMsg) {
	u := h.requireAdmin(s)
	if u == nil {
		return
	}

	text := strings.TrimSpace(msg.Text)
	if text == "" {
		s.sendError(errs.NewError(errs.ErrInvalidParams))
		return
	}

	event := announcementEvent{Type: evtAnnouncement, Message: text}
	messageBytes, err := json.Marshal(event)
	if err != nil {
		h.logger.Error().Err(err).Msg("Error marshaling announcement")
		return
	}

	for _, target := range h.sessions {
		if target.user != nil {
			target.queueRaw(messageBytes)
		}
	}

	s.sendEvent(adminSuccessEvent{Type: evtAdminSuccess, Message: "Announcement sent."})
	h.note("announcement by %s: %s", u.Nickname, text)
}

func (h *Hub) handleGetLogs(s *Session) {
	if h.requireAdmin(s) == nil {
		return
	}

	logs := append([]string(nil), h.recentLogs...)
	s.sendEvent(logsEvent{Type: evtLogs, Logs: logs})
}

// note records a server event in the admin log ring and the structured log.
func (h *Hub) note(format string, args ...any) {
	line := fmt.Sprintf("[%s] %s",
		h.clock.Now().UTC().Format(time.RFC3339),
		fmt.Sprintf(format, args...),
	)

	h.recentLogs = append(h.recentLogs, line)
	if len(h.recentLogs) > maxRecentLogs {
		h.recentLogs = h.recentLogs[len(h.recentLogs)-maxRecentLogs:]
	}

	h.logger.Info().Msg(line)
}
