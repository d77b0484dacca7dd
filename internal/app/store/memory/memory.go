/*
Package memory provides an in-memory Store implementation.

It mirrors the postgres implementation's semantics (including bcrypt credential
checks) without external dependencies, and is used by tests.
*/
package memory

import (
	"context"
	"sync"
	"time"

	"golang.org/x/crypto/bcrypt"

	"mafiagame/internal/app/store"
)

// Storage is an in-memory Store keyed by nickname and room id.
type Storage struct {
	mu        sync.Mutex
	users     map[string]*userRecord
	rooms     map[string]store.RoomRecord
	messages  []store.ChatRecord
	gameCount int
}

type userRecord struct {
	user         store.User
	passwordHash []byte
}

var _ store.Store = (*Storage)(nil)

// New creates an empty in-memory store.
func New() *Storage {
	return &Storage{
		users: make(map[string]*userRecord),
		rooms: make(map[string]store.RoomRecord),
	}
}

// CreateUser registers a new account. Fails with ErrDuplicate when the
// nickname is taken.
func (s *Storage) CreateUser(ctx context.Context, nickname, password, avatar string) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	if err != nil {
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[nickname]; ok {
		return nil, store.ErrDuplicate
	}

	if avatar == "" {
		avatar = "👤"
	}

	now := time.Now()
	rec := &userRecord{
		user: store.User{
			Nickname:        nickname,
			Avatar:          avatar,
			Coins:           100,
			NicknameEffects: []string{},
			CreatedAt:       now,
			LastLogin:       now,
		},
		passwordHash: hash,
	}
	s.users[nickname] = rec

	u := rec.user
	return &u, nil
}

// LoginUser performs the credential check.
func (s *Storage) LoginUser(ctx context.Context, nickname, password string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return nil, store.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword(rec.passwordHash, []byte(password)); err != nil {
		return nil, store.ErrInvalidCredentials
	}

	rec.user.LastLogin = time.Now()

	u := rec.user
	u.NicknameEffects = append([]string(nil), rec.user.NicknameEffects...)
	return &u, nil
}

// GetUser fetches an account by nickname.
func (s *Storage) GetUser(ctx context.Context, nickname string) (*store.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return nil, store.ErrNotFound
	}

	u := rec.user
	u.NicknameEffects = append([]string(nil), rec.user.NicknameEffects...)
	return &u, nil
}

// UpdateUserAvatar persists a changed avatar.
func (s *Storage) UpdateUserAvatar(ctx context.Context, nickname, avatar string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return store.ErrNotFound
	}
	rec.user.Avatar = avatar
	return nil
}

// UpdateUserCoins applies a delta to the coin balance.
func (s *Storage) UpdateUserCoins(ctx context.Context, nickname string, delta int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return store.ErrNotFound
	}
	rec.user.Coins += delta
	return nil
}

// UpdateUserNicknameEffects replaces the owned effect set.
func (s *Storage) UpdateUserNicknameEffects(ctx context.Context, nickname string, effects []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return store.ErrNotFound
	}
	rec.user.NicknameEffects = append([]string(nil), effects...)
	return nil
}

// SetAdmin flips the account's admin flag.
func (s *Storage) SetAdmin(ctx context.Context, nickname string, isAdmin bool) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.users[nickname]
	if !ok {
		return store.ErrNotFound
	}
	rec.user.IsAdmin = isAdmin
	return nil
}

// RecordGameResult applies one finished game's outcomes.
func (s *Storage) RecordGameResult(ctx context.Context, results []store.GameResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, res := range results {
		rec, ok := s.users[res.Nickname]
		if !ok {
			continue
		}
		rec.user.GamesPlayed++
		if res.Won {
			rec.user.GamesWon++
		}
		if res.Survived {
			rec.user.GamesSurvived++
		}
		rec.user.Coins += res.CoinsDelta
	}
	s.gameCount++
	return nil
}

// CreateRoom persists room metadata.
func (s *Storage) CreateRoom(ctx context.Context, rec store.RoomRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.rooms[rec.ID]; ok {
		return store.ErrDuplicate
	}
	s.rooms[rec.ID] = rec
	return nil
}

// GetRoom fetches room metadata by id.
func (s *Storage) GetRoom(ctx context.Context, id string) (*store.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	return &rec, nil
}

// GetRooms lists all persisted rooms.
func (s *Storage) GetRooms(ctx context.Context) ([]store.RoomRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]store.RoomRecord, 0, len(s.rooms))
	for _, rec := range s.rooms {
		out = append(out, rec)
	}
	return out, nil
}

// DeleteRoom removes a room.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.rooms, id)
	return nil
}

// UpdateRoomStatus persists a room status transition.
func (s *Storage) UpdateRoomStatus(ctx context.Context, id, status string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.rooms[id]
	if !ok {
		return store.ErrNotFound
	}
	rec.Status = status
	s.rooms[id] = rec
	return nil
}

// SaveMessage appends one chat line.
func (s *Storage) SaveMessage(ctx context.Context, rec store.ChatRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.messages = append(s.messages, rec)
	return nil
}

// Messages returns a copy of all persisted chat lines, for tests.
func (s *Storage) Messages() []store.ChatRecord {
	s.mu.Lock()
	defer s.mu.Unlock()

	return append([]store.ChatRecord(nil), s.messages...)
}

// GetStats returns aggregate counters.
func (s *Storage) GetStats(ctx context.Context) (*store.Stats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return &store.Stats{
		RegisteredUsers: len(s.users),
		GamesRecorded:   s.gameCount,
	}, nil
}

// Ping always succeeds for the in-memory store.
func (s *Storage) Ping(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory store.
func (s *Storage) Close() {}
