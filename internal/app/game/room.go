package game

import (
	"time"
)

// Role is a game role dealt at start.
type Role string

const (
	RoleDon     Role = "don"
	RoleMafia   Role = "mafia"
	RoleDoctor  Role = "doctor"
	RoleLover   Role = "lover"
	RoleCitizen Role = "citizen"
)

// MafiaAligned reports whether the role belongs to the mafia faction.
func (r Role) MafiaAligned() bool {
	return r == RoleDon || r == RoleMafia
}

// RoleConfig toggles the optional roles for a room. One don is always dealt.
type RoleConfig struct {
	Don    bool `json:"don"`
	Doctor bool `json:"doctor"`
	Lovers bool `json:"lovers"`
}

// RoomStatus is the room lifecycle state.
type RoomStatus string

const (
	RoomWaiting  RoomStatus = "waiting"
	RoomPlaying  RoomStatus = "playing"
	RoomFinished RoomStatus = "finished"
)

const (
	defaultMinPlayers = 4
	defaultMaxPlayers = 10
	minPlayersFloor   = 3
	maxPlayersCeiling = 20
	maxRoomNameLen    = 30
	maxChatLog        = 50
	maxChatMessageLen = 500
)

// Player is a room member, human or bot. Role and IsAlive only matter while a
// game is running or just finished.
type Player struct {
	Nickname  string
	Avatar    string
	IsCreator bool
	IsBot     bool
	IsAlive   bool
	Role      Role
}

// Room is the authoritative state of one game room. All fields are owned by
// the hub's mutation stream; nothing here locks.
type Room struct {
	ID         string
	Name       string
	Status     RoomStatus
	MinPlayers int
	MaxPlayers int
	Creator    string
	Password   string
	Roles      RoleConfig
	Players    []*Player
	Messages   []ChatMessage
	Game       *Game
	CreatedAt  time.Time

	autoStart  *autoStartTimer
	resetTimer *time.Timer
}

// newRoom builds a room from client params with server-side bounds clamping.
func newRoom(id string, p RoomParams, creator string, avatar string, now time.Time) *Room {
	minP := p.MinPlayers
	if minP <= 0 {
		minP = defaultMinPlayers
	}
	if minP < minPlayersFloor {
		minP = minPlayersFloor
	}
	maxP := p.MaxPlayers
	if maxP <= 0 {
		maxP = defaultMaxPlayers
	}
	if maxP > maxPlayersCeiling {
		maxP = maxPlayersCeiling
	}
	if maxP < minP {
		maxP = minP
	}

	r := &Room{
		ID:         id,
		Name:       p.Name,
		Status:     RoomWaiting,
		MinPlayers: minP,
		MaxPlayers: maxP,
		Creator:    creator,
		Password:   p.Password,
		Roles:      p.Roles,
		CreatedAt:  now,
	}
	r.Players = append(r.Players, &Player{
		Nickname:  creator,
		Avatar:    avatar,
		IsCreator: true,
		IsAlive:   true,
	})

	return r
}

// player returns the member with the given nickname, or nil.
func (r *Room) player(nickname string) *Player {
	for _, p := range r.Players {
		if p.Nickname == nickname {
			return p
		}
	}

	return nil
}

func (r *Room) hasPlayer(nickname string) bool {
	return r.player(nickname) != nil
}

// addPlayer appends a new member. Capacity and duplicate checks are the
// caller's job.
func (r *Room) addPlayer(nickname, avatar string, isBot bool) *Player {
	p := &Player{
		Nickname: nickname,
		Avatar:   avatar,
		IsBot:    isBot,
		IsAlive:  true,
	}
	r.Players = append(r.Players, p)

	return p
}

// removePlayer drops a member. When the departing member is the creator the
// room is handed to the earliest remaining member. Reports whether anything
// was removed and whether the creator changed.
func (r *Room) removePlayer(nickname string) (removed, creatorChanged bool) {
	idx := -1
	for i, p := range r.Players {
		if p.Nickname == nickname {
			idx = i
			break
		}
	}
	if idx < 0 {
		return false, false
	}

	wasCreator := r.Players[idx].IsCreator
	r.Players = append(r.Players[:idx], r.Players[idx+1:]...)

	if wasCreator && len(r.Players) > 0 {
		r.Players[0].IsCreator = true
		r.Creator = r.Players[0].Nickname
		creatorChanged = true
	}

	return true, creatorChanged
}

// humanCount reports how many members are not bots.
func (r *Room) humanCount() int {
	n := 0
	for _, p := range r.Players {
		if !p.IsBot {
			n++
		}
	}

	return n
}

func (r *Room) alivePlayers() []*Player {
	alive := make([]*Player, 0, len(r.Players))
	for _, p := range r.Players {
		if p.IsAlive {
			alive = append(alive, p)
		}
	}

	return alive
}

// appendMessage adds a chat line, evicting the oldest when the log exceeds its
// bound.
func (r *Room) appendMessage(msg ChatMessage) {
	r.Messages = append(r.Messages, msg)
	if len(r.Messages) > maxChatLog {
		r.Messages = r.Messages[len(r.Messages)-maxChatLog:]
	}
}

// view builds the room snapshot as seen by viewer. A player's role is exposed
// only to its owner, except once the game has finished, when all roles are
// revealed to everyone.
func (r *Room) view(viewer string) RoomView {
	players := make([]PlayerView, 0, len(r.Players))
	for _, p := range r.Players {
		pv := PlayerView{
			Nickname:  p.Nickname,
			Avatar:    p.Avatar,
			IsCreator: p.IsCreator,
			IsBot:     p.IsBot,
			IsAlive:   p.IsAlive,
		}
		if p.Role != "" && (p.Nickname == viewer || r.Status == RoomFinished) {
			role := p.Role
			pv.Role = &role
		}
		players = append(players, pv)
	}

	messages := r.Messages
	if messages == nil {
		messages = []ChatMessage{}
	}

	v := RoomView{
		ID:         r.ID,
		Name:       r.Name,
		Status:     r.Status,
		MinPlayers: r.MinPlayers,
		MaxPlayers: r.MaxPlayers,
		Creator:    r.Creator,
		Roles:      r.Roles,
		Players:    players,
		Messages:   messages,
	}
	if r.Game != nil {
		gv := r.Game.view()
		v.Game = &gv
	}

	return v
}

// summary builds the sanitized lobby listing entry.
func (r *Room) summary() RoomSummary {
	return RoomSummary{
		ID:          r.ID,
		Name:        r.Name,
		Status:      r.Status,
		Players:     len(r.Players),
		MaxPlayers:  r.MaxPlayers,
		Creator:     r.Creator,
		HasPassword: r.Password != "",
		CreatedAt:   r.CreatedAt.UTC().Format(time.RFC3339),
	}
}
