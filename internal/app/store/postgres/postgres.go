/*
Package postgres provides the PostgreSQL-backed Store implementation.

It initializes a pgx connection pool, applies embedded schema migrations with goose,
and performs bcrypt credential checks so that plaintext passwords never leave the
persistence layer.
*/
package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
	"github.com/pressly/goose/v3"
	"golang.org/x/crypto/bcrypt"

	"mafiagame/internal/app/store"
)

//go:embed migrations/*.sql
var embedMigrations embed.FS

// Storage is a PostgreSQL-backed Store.
type Storage struct {
	pool *pgxpool.Pool
}

var _ store.Store = (*Storage)(nil)

// New initializes a new PostgreSQL connection pool, executes database migrations,
// and returns the Storage.
func New(dsn string) (*Storage, error) {
	ctx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()

	config, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to parse database DSN: %w", err)
	}

	config.MaxConns = 25
	config.MinConns = 5
	config.MaxConnLifetime = 30 * time.Minute
	config.MaxConnIdleTime = 5 * time.Minute
	config.HealthCheckPeriod = 1 * time.Minute

	pool, err := pgxpool.NewWithConfig(ctx, config)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	sqlDB := stdlib.OpenDB(*pool.Config().ConnConfig)
	defer sqlDB.Close()

	if err := runMigrations(sqlDB); err != nil {
		pool.Close()
		return nil, err
	}

	return &Storage{pool: pool}, nil
}

// runMigrations applies all pending migrations from the embedded file system.
func runMigrations(db *sql.DB) error {
	goose.SetBaseFS(embedMigrations)

	if err := goose.SetDialect("postgres"); err != nil {
		return fmt.Errorf("failed to set goose dialect: %w", err)
	}

	if err := goose.Up(db, "migrations"); err != nil {
		return fmt.Errorf("failed to apply migrations: %w", err)
	}

	return nil
}

// isUniqueViolation checks if the error is a PostgreSQL unique constraint violation (code 23505).
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

// CreateUser registers a new account with a bcrypt-hashed password.
func (s *Storage) CreateUser(ctx context.Context, nickname, password, avatar string) (*store.User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	if avatar == "" {
		avatar = "👤"
	}

	row := s.pool.QueryRow(ctx, `
		INSERT INTO users (nickname, password_hash, avatar)
		VALUES ($1, $2, $3)
		RETURNING nickname, avatar, coins, nickname_effects,
			games_played, games_won, games_survived, is_admin, created_at, last_login`,
		nickname, string(hash), avatar)

	user, err := scanUser(row)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrDuplicate
		}
		return nil, err
	}

	return user, nil
}

// LoginUser performs the credential check and refreshes last_login.
func (s *Storage) LoginUser(ctx context.Context, nickname, password string) (*store.User, error) {
	var hash string
	err := s.pool.QueryRow(ctx,
		`SELECT password_hash FROM users WHERE nickname = $1`, nickname).Scan(&hash)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrInvalidCredentials
		}
		return nil, err
	}

	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return nil, store.ErrInvalidCredentials
	}

	row := s.pool.QueryRow(ctx, `
		UPDATE users SET last_login = now() WHERE nickname = $1
		RETURNING nickname, avatar, coins, nickname_effects,
			games_played, games_won, games_survived, is_admin, created_at, last_login`,
		nickname)

	return scanUser(row)
}

// GetUser fetches an account by nickname.
func (s *Storage) GetUser(ctx context.Context, nickname string) (*store.User, error) {
	row := s.pool.QueryRow(ctx, `
		SELECT nickname, avatar, coins, nickname_effects,
			games_played, games_won, games_survived, is_admin, created_at, last_login
		FROM users WHERE nickname = $1`, nickname)

	user, err := scanUser(row)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}

	return user, nil
}

// scanUser reads one user row in the canonical column order.
func scanUser(row pgx.Row) (*store.User, error) {
	var u store.User
	err := row.Scan(
		&u.Nickname, &u.Avatar, &u.Coins, &u.NicknameEffects,
		&u.GamesPlayed, &u.GamesWon, &u.GamesSurvived, &u.IsAdmin,
		&u.CreatedAt, &u.LastLogin,
	)
	if err != nil {
		return nil, err
	}

	if u.NicknameEffects == nil {
		u.NicknameEffects = []string{}
	}

	return &u, nil
}

// UpdateUserAvatar persists a changed avatar.
func (s *Storage) UpdateUserAvatar(ctx context.Context, nickname, avatar string) error {
	return s.exec(ctx, `UPDATE users SET avatar = $2 WHERE nickname = $1`, nickname, avatar)
}

// UpdateUserCoins applies a delta to the account's coin balance.
func (s *Storage) UpdateUserCoins(ctx context.Context, nickname string, delta int) error {
	return s.exec(ctx, `UPDATE users SET coins = coins + $2 WHERE nickname = $1`, nickname, delta)
}

// UpdateUserNicknameEffects replaces the owned cosmetic effect set.
func (s *Storage) UpdateUserNicknameEffects(ctx context.Context, nickname string, effects []string) error {
	return s.exec(ctx, `UPDATE users SET nickname_effects = $2 WHERE nickname = $1`, nickname, effects)
}

// SetAdmin flips the account's admin flag.
func (s *Storage) SetAdmin(ctx context.Context, nickname string, isAdmin bool) error {
	return s.exec(ctx, `UPDATE users SET is_admin = $2 WHERE nickname = $1`, nickname, isAdmin)
}

// RecordGameResult applies every participant's outcome in one transaction.
func (s *Storage) RecordGameResult(ctx context.Context, results []store.GameResult) error {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	for _, res := range results {
		won := 0
		if res.Won {
			won = 1
		}
		survived := 0
		if res.Survived {
			survived = 1
		}

		_, err := tx.Exec(ctx, `
			UPDATE users SET
				games_played = games_played + 1,
				games_won = games_won + $2,
				games_survived = games_survived + $3,
				coins = coins + $4
			WHERE nickname = $1`,
			res.Nickname, won, survived, res.CoinsDelta)
		if err != nil {
			return err
		}
	}

	if _, err := tx.Exec(ctx, `INSERT INTO games (ended_at) VALUES (now())`); err != nil {
		return err
	}

	return tx.Commit(ctx)
}

// CreateRoom persists a newly created room's metadata.
func (s *Storage) CreateRoom(ctx context.Context, rec store.RoomRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO rooms (id, name, creator_nickname, min_players, max_players,
			password, status, doctor_enabled, lovers_enabled)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
		rec.ID, rec.Name, rec.Creator, rec.MinPlayers, rec.MaxPlayers,
		rec.Password, rec.Status, rec.Doctor, rec.Lovers)
	if err != nil && isUniqueViolation(err) {
		return store.ErrDuplicate
	}
	return err
}

// GetRoom fetches room metadata by id.
func (s *Storage) GetRoom(ctx context.Context, id string) (*store.RoomRecord, error) {
	var rec store.RoomRecord
	err := s.pool.QueryRow(ctx, `
		SELECT id, name, creator_nickname, min_players, max_players,
			password, status, doctor_enabled, lovers_enabled, created_at
		FROM rooms WHERE id = $1`, id).Scan(
		&rec.ID, &rec.Name, &rec.Creator, &rec.MinPlayers, &rec.MaxPlayers,
		&rec.Password, &rec.Status, &rec.Doctor, &rec.Lovers, &rec.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &rec, nil
}

// GetRooms lists all persisted rooms, newest first.
func (s *Storage) GetRooms(ctx context.Context) ([]store.RoomRecord, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, name, creator_nickname, min_players, max_players,
			password, status, doctor_enabled, lovers_enabled, created_at
		FROM rooms ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []store.RoomRecord
	for rows.Next() {
		var rec store.RoomRecord
		if err := rows.Scan(
			&rec.ID, &rec.Name, &rec.Creator, &rec.MinPlayers, &rec.MaxPlayers,
			&rec.Password, &rec.Status, &rec.Doctor, &rec.Lovers, &rec.CreatedAt,
		); err != nil {
			return nil, err
		}
		out = append(out, rec)
	}

	return out, rows.Err()
}

// DeleteRoom removes a room that has become empty.
func (s *Storage) DeleteRoom(ctx context.Context, id string) error {
	_, err := s.pool.Exec(ctx, `DELETE FROM rooms WHERE id = $1`, id)
	return err
}

// UpdateRoomStatus persists a room status transition.
func (s *Storage) UpdateRoomStatus(ctx context.Context, id, status string) error {
	return s.exec(ctx, `UPDATE rooms SET status = $2 WHERE id = $1`, id, status)
}

// SaveMessage appends one chat line to the room's history.
func (s *Storage) SaveMessage(ctx context.Context, rec store.ChatRecord) error {
	_, err := s.pool.Exec(ctx, `
		INSERT INTO messages (room_id, sender, message, sent_at)
		VALUES ($1, $2, $3, $4)`,
		rec.RoomID, rec.Sender, rec.Message, rec.SentAt)
	return err
}

// GetStats returns aggregate counters for the lobby stats event.
func (s *Storage) GetStats(ctx context.Context) (*store.Stats, error) {
	var stats store.Stats
	err := s.pool.QueryRow(ctx, `
		SELECT
			(SELECT count(*) FROM users),
			(SELECT count(*) FROM games)`).Scan(&stats.RegisteredUsers, &stats.GamesRecorded)
	if err != nil {
		return nil, err
	}
	return &stats, nil
}

// Ping verifies the database is reachable.
func (s *Storage) Ping(ctx context.Context) error {
	return s.pool.Ping(ctx)
}

// Close releases the connection pool.
func (s *Storage) Close() {
	s.pool.Close()
}

// exec runs a statement expected to affect exactly one row, mapping zero rows
// to ErrNotFound.
func (s *Storage) exec(ctx context.Context, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return err
	}
	if tag.RowsAffected() == 0 {
		return store.ErrNotFound
	}
	return nil
}
