/*
Package game contains the core coordination logic for the Mafia game server:
live sessions, room membership, auto-start scheduling, and the game phase
state machine.

This file defines the outbound event payloads sent to clients. Every event is a
structured message with a "type" discriminator. Room snapshots are built per
recipient so that role secrecy holds for every broadcast, not just the
initiating one.
*/
package game

import (
	"mafiagame/internal/app/store"
)

// Outbound event type tags.
const (
	evtConnected          = "connected"
	evtRegisterSuccess    = "registerSuccess"
	evtLoginSuccess       = "loginSuccess"
	evtKicked             = "kicked"
	evtRooms              = "rooms"
	evtRoomJoined         = "roomJoined"
	evtRoomUpdated        = "roomUpdated"
	evtChatMessage        = "chatMessage"
	evtRoleAssigned       = "roleAssigned"
	evtGameStarted        = "gameStarted"
	evtGameState          = "gameState"
	evtAutoStart          = "autoStart"
	evtAutoStartCancelled = "autoStartCancelled"
	evtGameEnded          = "gameEnded"
	evtAvatarUpdated      = "avatarUpdated"
	evtEffectBought       = "effectBought"
	evtAdminSuccess       = "adminActionSuccess"
	evtAnnouncement       = "announcement"
	evtStats              = "stats"
	evtLogs               = "logs"
	evtBotAdded           = "botAdded"
	evtPong               = "pong"
	evtError              = "error"
)

// ChatMessage is one chat line as shown to clients and kept in the room's
// bounded log.
type ChatMessage struct {
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

// PlayerView is the per-recipient projection of a Player. Role is nil unless
// the viewer owns the player or the room's game is finished.
type PlayerView struct {
	Nickname  string `json:"nickname"`
	Avatar    string `json:"avatar"`
	IsCreator bool   `json:"isCreator"`
	IsBot     bool   `json:"isBot"`
	IsAlive   bool   `json:"isAlive"`
	Role      *Role  `json:"role"`
}

// GameView is the public snapshot of a live game: phase, day, remaining time,
// voting tally, and the last-action narrative. Never includes role assignments.
type GameView struct {
	Phase         Phase          `json:"phase"`
	Day           int            `json:"day"`
	TimeLeft      int            `json:"timeLeft"`
	VotingResults map[string]int `json:"votingResults"`
	LastAction    string         `json:"lastAction"`
}

// RoomView is the full per-recipient room snapshot sent on join and on every
// room-state broadcast.
type RoomView struct {
	ID         string        `json:"id"`
	Name       string        `json:"name"`
	Status     RoomStatus    `json:"status"`
	MinPlayers int           `json:"minPlayers"`
	MaxPlayers int           `json:"maxPlayers"`
	Creator    string        `json:"creator"`
	Roles      RoleConfig    `json:"roles"`
	Players    []PlayerView  `json:"players"`
	Messages   []ChatMessage `json:"messages"`
	Game       *GameView     `json:"game"`
}

// RoomSummary is the sanitized lobby listing entry, produced for every room
// regardless of membership.
type RoomSummary struct {
	ID          string     `json:"id"`
	Name        string     `json:"name"`
	Status      RoomStatus `json:"status"`
	Players     int        `json:"players"`
	MaxPlayers  int        `json:"maxPlayers"`
	Creator     string     `json:"creator"`
	HasPassword bool       `json:"hasPassword"`
	CreatedAt   string     `json:"createdAt"`
}

// UserPayload is the account projection delivered on login and kept in sync by
// gameplay outcomes and purchases.
type UserPayload struct {
	Nickname        string   `json:"nickname"`
	Avatar          string   `json:"avatar"`
	Coins           int      `json:"coins"`
	NicknameEffects []string `json:"nicknameEffects"`
	GamesPlayed     int      `json:"gamesPlayed"`
	GamesWon        int      `json:"gamesWon"`
	GamesSurvived   int      `json:"gamesSurvived"`
	IsAdmin         bool     `json:"isAdmin"`
}

// userPayload projects a stored account into its wire shape.
func userPayload(u *store.User) UserPayload {
	effects := u.NicknameEffects
	if effects == nil {
		effects = []string{}
	}

	return UserPayload{
		Nickname:        u.Nickname,
		Avatar:          u.Avatar,
		Coins:           u.Coins,
		NicknameEffects: effects,
		GamesPlayed:     u.GamesPlayed,
		GamesWon:        u.GamesWon,
		GamesSurvived:   u.GamesSurvived,
		IsAdmin:         u.IsAdmin,
	}
}

type connectedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type registerSuccessEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type loginSuccessEvent struct {
	Type  string      `json:"type"`
	User  UserPayload `json:"user"`
	Token string      `json:"token,omitempty"`
}

type kickedEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type roomsEvent struct {
	Type  string        `json:"type"`
	Rooms []RoomSummary `json:"rooms"`
}

type roomEvent struct {
	Type string   `json:"type"`
	Room RoomView `json:"room"`
}

type chatEvent struct {
	Type      string `json:"type"`
	Sender    string `json:"sender"`
	Message   string `json:"message"`
	Timestamp string `json:"timestamp"`
}

type roleAssignedEvent struct {
	Type string `json:"type"`
	Role Role   `json:"role"`

	// Teammates lists the mafia-aligned roster and is only present for
	// mafia-aligned recipients. This is the single intentional cross-player
	// information leak.
	Teammates []string `json:"teammates,omitempty"`
}

type gameStartedEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type gameStateEvent struct {
	Type string   `json:"type"`
	Game GameView `json:"game"`
}

type autoStartEvent struct {
	Type        string `json:"type"`
	SecondsLeft int    `json:"secondsLeft"`
	Reason      string `json:"reason"`
}

type autoStartCancelledEvent struct {
	Type   string `json:"type"`
	Reason string `json:"reason"`
}

type gameEndedEvent struct {
	Type   string          `json:"type"`
	Winner string          `json:"winner"`
	Roles  map[string]Role `json:"roles"`
}

type avatarUpdatedEvent struct {
	Type   string `json:"type"`
	Avatar string `json:"avatar"`
}

type effectBoughtEvent struct {
	Type            string   `json:"type"`
	Effect          string   `json:"effect"`
	Coins           int      `json:"coins"`
	NicknameEffects []string `json:"nicknameEffects"`
}

type adminSuccessEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

type announcementEvent struct {
	Type    string `json:"type"`
	Message string `json:"message"`
}

// StatsPayload aggregates live and persisted counters for the lobby.
type StatsPayload struct {
	OnlineUsers     int   `json:"onlineUsers"`
	ActiveRooms     int   `json:"activeRooms"`
	ActiveGames     int   `json:"activeGames"`
	RegisteredUsers int   `json:"registeredUsers"`
	GamesRecorded   int   `json:"gamesRecorded"`
	UptimeSeconds   int64 `json:"uptime"`
}

type statsEvent struct {
	Type  string       `json:"type"`
	Stats StatsPayload `json:"stats"`
}

type logsEvent struct {
	Type string   `json:"type"`
	Logs []string `json:"logs"`
}

type botAddedEvent struct {
	Type    string `json:"type"`
	BotName string `json:"botName"`
}

type pongEvent struct {
	Type string `json:"type"`
}

type errorEvent struct {
	Type    string `json:"type"`
	Code    int    `json:"code"`
	Message string `json:"message"`
}
