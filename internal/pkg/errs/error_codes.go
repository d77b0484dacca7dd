/*
Package errs provides custom error types and application-level error code constants.

These error codes are used to clearly identify specific business or system errors
both internally within the server and in communication with clients.
*/
package errs

// 1xxx: General Request Handling and Validation Errors
const (
	// ErrInvalidParams indicates that request parameter validation failed.
	ErrInvalidParams = 1001

	// ErrInvalidJSONFormat indicates that an inbound message was not valid JSON.
	ErrInvalidJSONFormat = 1002

	// ErrUnknownMessageType indicates an inbound message with an unrecognized type tag.
	ErrUnknownMessageType = 1003

	// ErrRateLimitExceeded indicates that the request rate has exceeded the set limit.
	ErrRateLimitExceeded = 1004

	// ErrInvalidNickname indicates a nickname outside the allowed 3-20 character range.
	ErrInvalidNickname = 1005

	// ErrInvalidPassword indicates a password shorter than the 4 character minimum.
	ErrInvalidPassword = 1006

	// ErrMessageTooLong indicates a chat message exceeding the maximum length limit.
	ErrMessageTooLong = 1007
)

// 2xxx: Room Lifecycle and Membership Errors
const (
	// ErrRoomNotFound indicates that the requested room does not exist.
	ErrRoomNotFound = 2001

	// ErrRoomFull indicates that the room being joined has reached its maximum player count.
	ErrRoomFull = 2002

	// ErrAlreadyStarted indicates a join attempt on a room whose game is already in progress.
	ErrAlreadyStarted = 2003

	// ErrAlreadyInRoom indicates the session already occupies a room.
	ErrAlreadyInRoom = 2004

	// ErrAlreadyMember indicates the nickname is already a member of the target room.
	ErrAlreadyMember = 2005

	// ErrNotInRoom indicates an operation requiring room membership from a lobby session.
	ErrNotInRoom = 2006

	// ErrWrongPassword indicates a join attempt with an incorrect room password.
	ErrWrongPassword = 2007

	// ErrNotRoomMember indicates a rejoin attempt by a nickname that never joined the room.
	ErrNotRoomMember = 2008

	// ErrNameTaken indicates a player with the requested nickname already occupies the room.
	ErrNameTaken = 2009
)

// 3xxx: User, Session, and Security Errors
const (
	// ErrNotAuthenticated indicates an operation that requires a signed-in session.
	ErrNotAuthenticated = 3001

	// ErrInvalidCredentials indicates an incorrect nickname/password pair.
	ErrInvalidCredentials = 3002

	// ErrUserAlreadyExists indicates the nickname is already registered.
	ErrUserAlreadyExists = 3003

	// ErrUserNotFound indicates the requested account does not exist.
	ErrUserNotFound = 3004

	// ErrSessionKicked indicates that the current client connection has been displaced.
	ErrSessionKicked = 3005

	// ErrNotAdmin indicates an administrative operation from a non-admin session.
	ErrNotAdmin = 3006
)

// 4xxx: Game State Machine Errors
const (
	// ErrNotCreator indicates a start attempt by a player who is not the room creator.
	ErrNotCreator = 4001

	// ErrNotEnoughPlayers indicates a start attempt below the room's minimum player count.
	ErrNotEnoughPlayers = 4002

	// ErrGameNotFound indicates a game action on a room with no live game.
	ErrGameNotFound = 4003

	// ErrInvalidAction indicates an unknown or phase-inappropriate game action.
	ErrInvalidAction = 4004

	// ErrUnknownEffect indicates a purchase attempt for an effect not in the price list.
	ErrUnknownEffect = 4005

	// ErrNotEnoughCoins indicates a purchase attempt exceeding the coin balance.
	ErrNotEnoughCoins = 4006

	// ErrEffectOwned indicates a purchase attempt for an already owned effect.
	ErrEffectOwned = 4007

	// ErrBotNotFound indicates a bot removal for a name that is not a bot in the room.
	ErrBotNotFound = 4008
)

// 5xxx: Internal System Errors
const (
	// ErrUnknown represents an unclassified, general server internal error.
	ErrUnknown = 5000

	// ErrStorage indicates a persistence collaborator failure, surfaced generically.
	ErrStorage = 5001
)
