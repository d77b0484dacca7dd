/*
Package store defines the persistence collaborator consumed by the game core.

The in-memory coordination layer is authoritative for live gameplay; the store is the
durable system of record for accounts, room metadata, chat history, and game outcomes.
Implementations: postgres (production) and memory (tests).
*/
package store

import (
	"context"
	"errors"
	"time"
)

// Sentinel errors returned by Store implementations. Any other error is treated
// by callers as a transient storage failure.
var (
	// ErrNotFound indicates the requested record does not exist.
	ErrNotFound = errors.New("store: not found")

	// ErrDuplicate indicates a uniqueness conflict (e.g. nickname already registered).
	ErrDuplicate = errors.New("store: duplicate")

	// ErrInvalidCredentials indicates a failed credential check.
	ErrInvalidCredentials = errors.New("store: invalid credentials")
)

// User is a registered account. Nickname is the unique key. Accounts are
// created at registration, mutated by gameplay outcomes and purchases, and
// never deleted.
type User struct {
	Nickname        string
	Avatar          string
	Coins           int
	NicknameEffects []string
	GamesPlayed     int
	GamesWon        int
	GamesSurvived   int
	IsAdmin         bool
	CreatedAt       time.Time
	LastLogin       time.Time
}

// RoomRecord is the durable shape of a room. Live membership and game state
// stay in memory; the record survives for the lobby list across restarts and
// for history.
type RoomRecord struct {
	ID         string
	Name       string
	Creator    string
	MinPlayers int
	MaxPlayers int
	Password   string
	Status     string
	Doctor     bool
	Lovers     bool
	CreatedAt  time.Time
}

// ChatRecord is one persisted chat line.
type ChatRecord struct {
	RoomID  string
	Sender  string
	Message string
	SentAt  time.Time
}

// GameResult carries one player's outcome of a finished game, applied to the
// account's lifetime stats and coin balance.
type GameResult struct {
	Nickname   string
	Won        bool
	Survived   bool
	CoinsDelta int
}

// Stats is an aggregate snapshot used for the lobby stats event.
type Stats struct {
	RegisteredUsers int
	GamesRecorded   int
}

// Store is the persistence collaborator interface. All operations take a
// context and may fail with one of the sentinel errors above or a generic
// storage error. The game core treats generic failures as transient: they are
// logged and never block the phase clock.
type Store interface {
	// CreateUser registers a new account with the given plaintext password
	// (hashed by the implementation) and starting avatar.
	CreateUser(ctx context.Context, nickname, password, avatar string) (*User, error)

	// LoginUser performs the credential check and returns the account on
	// success, or ErrInvalidCredentials.
	LoginUser(ctx context.Context, nickname, password string) (*User, error)

	// GetUser fetches an account by nickname.
	GetUser(ctx context.Context, nickname string) (*User, error)

	// UpdateUserAvatar persists a changed avatar.
	UpdateUserAvatar(ctx context.Context, nickname, avatar string) error

	// UpdateUserCoins applies a delta to the account's coin balance.
	UpdateUserCoins(ctx context.Context, nickname string, delta int) error

	// UpdateUserNicknameEffects replaces the owned cosmetic effect set.
	UpdateUserNicknameEffects(ctx context.Context, nickname string, effects []string) error

	// SetAdmin flips the account's admin flag.
	SetAdmin(ctx context.Context, nickname string, isAdmin bool) error

	// RecordGameResult applies the outcome of one finished game to every
	// participating account's lifetime stats and balance.
	RecordGameResult(ctx context.Context, results []GameResult) error

	// CreateRoom persists a newly created room's metadata.
	CreateRoom(ctx context.Context, rec RoomRecord) error

	// GetRoom fetches room metadata by id.
	GetRoom(ctx context.Context, id string) (*RoomRecord, error)

	// GetRooms lists all persisted rooms.
	GetRooms(ctx context.Context) ([]RoomRecord, error)

	// DeleteRoom removes a room that has become empty.
	DeleteRoom(ctx context.Context, id string) error

	// UpdateRoomStatus persists a room status transition.
	UpdateRoomStatus(ctx context.Context, id, status string) error

	// SaveMessage appends one chat line to the room's history.
	SaveMessage(ctx context.Context, rec ChatRecord) error

	// GetStats returns aggregate counters for the lobby stats event.
	GetStats(ctx context.Context) (*Stats, error)

	// Ping verifies the store is reachable. Called once at startup; failure is
	// fatal before the server accepts connections.
	Ping(ctx context.Context) error

	// Close releases the store's resources.
	Close()
}
