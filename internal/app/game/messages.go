package game

// Inbound message payloads. Every client frame carries a "type" tag; the hub
// decodes the envelope first and then the per-type payload.

// Inbound message type tags.
const (
	msgRegister         = "register"
	msgLogin            = "login"
	msgGetRooms         = "getRooms"
	msgCreateRoom       = "createRoom"
	msgJoinRoom         = "joinRoom"
	msgLeaveRoom        = "leaveRoom"
	msgRejoinRoom       = "rejoinRoom"
	msgChatMessage      = "chatMessage"
	msgStartGame        = "startGame"
	msgGameAction       = "gameAction"
	msgUpdateAvatar     = "updateAvatar"
	msgBuyEffect        = "buyEffect"
	msgAdminAction      = "adminAction"
	msgPing             = "ping"
	msgGetStats         = "getStats"
	msgAddBot           = "addBot"
	msgRemoveBot        = "removeBot"
	msgForceEndGame     = "forceEndGame"
	msgSendAnnouncement = "sendAnnouncement"
	msgGetLogs          = "getLogs"
)

type inboundEnvelope struct {
	Type string `json:"type"`
}

type registerMsg struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
	Avatar   string `json:"avatar"`
}

type loginMsg struct {
	Nickname string `json:"nickname"`
	Password string `json:"password"`
}

// RoomParams carries the client-requested room settings. Bounds are clamped
// server-side before the room is created.
type RoomParams struct {
	Name       string     `json:"name"`
	MinPlayers int        `json:"minPlayers"`
	MaxPlayers int        `json:"maxPlayers"`
	Password   string     `json:"password"`
	Roles      RoleConfig `json:"roles"`
}

type createRoomMsg struct {
	Room RoomParams `json:"room"`
}

type joinRoomMsg struct {
	RoomID   string `json:"roomId"`
	Password string `json:"password"`
}

type rejoinRoomMsg struct {
	RoomID string `json:"roomId"`
}

type chatMsg struct {
	Message string `json:"message"`
}

type gameActionMsg struct {
	Action GameAction `json:"action"`
}

// GameAction is a night or voting action submitted by a living player.
type GameAction struct {
	Action string `json:"action"`
	Target string `json:"target"`
}

type updateAvatarMsg struct {
	Avatar string `json:"avatar"`
}

type buyEffectMsg struct {
	Effect string `json:"effect"`
}

type adminActionMsg struct {
	Action string `json:"action"`
	Target string `json:"target"`
	Amount int    `json:"amount"`
	Effect string `json:"effect"`
}

type addBotMsg struct {
	BotName   string `json:"botName"`
	BotAvatar string `json:"botAvatar"`
}

type removeBotMsg struct {
	BotName string `json:"botName"`
}

type forceEndGameMsg struct {
	RoomID string `json:"roomId"`
}

type sendAnnouncementMsg struct {
	Text string `json:"text"`
}
