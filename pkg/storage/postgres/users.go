package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/lib/pq"
	"github.com/mattn/go-sqlite3"
	"github.com/sirupsen/logrus"

	"github.com/udea/innosistemas/pkg/auth"
	"github.com/udea/innosistemas/pkg/storage"
)

const userColumns = `id, email, password_hash, role, team_id, course_id, first_name, last_name, enabled, created_at, updated_at`

var postgresSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            BIGSERIAL PRIMARY KEY,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		team_id       BIGINT,
		course_id     BIGINT,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		enabled       BOOLEAN NOT NULL DEFAULT TRUE,
		created_at    TIMESTAMPTZ NOT NULL,
		updated_at    TIMESTAMPTZ NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_team ON users (team_id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_course ON users (course_id)`,
}

var sqliteSchema = []string{
	`CREATE TABLE IF NOT EXISTS users (
		id            INTEGER PRIMARY KEY AUTOINCREMENT,
		email         TEXT NOT NULL UNIQUE,
		password_hash TEXT NOT NULL,
		role          TEXT NOT NULL,
		team_id       INTEGER,
		course_id     INTEGER,
		first_name    TEXT NOT NULL DEFAULT '',
		last_name     TEXT NOT NULL DEFAULT '',
		enabled       BOOLEAN NOT NULL DEFAULT 1,
		created_at    TIMESTAMP NOT NULL,
		updated_at    TIMESTAMP NOT NULL
	)`,
	`CREATE INDEX IF NOT EXISTS idx_users_team ON users (team_id)`,
	`CREATE INDEX IF NOT EXISTS idx_users_course ON users (course_id)`,
}

// userCache is the optional read-through cache in front of GetByEmail
type userCache interface {
	GetUser(ctx context.Context, email string) (*auth.User, error)
	SetUser(ctx context.Context, u *auth.User) error
	InvalidateUser(ctx context.Context, email string) error
}

// UserStore implements storage.UserStore on database/sql.
// Reads go to a replica when one is configured.
type UserStore struct {
	conn   *ConnectionManager
	cache  userCache
	now    func() time.Time
	logger logrus.FieldLogger
}

// UserStoreOption configures a UserStore
type UserStoreOption func(*UserStore)

// WithUserCache puts a Redis cache in front of email lookups
func WithUserCache(c *RedisClient) UserStoreOption {
	return func(s *UserStore) {
		if c != nil {
			s.cache = c
		}
	}
}

// NewUserStore creates a user store on conn
func NewUserStore(conn *ConnectionManager, logger logrus.FieldLogger, opts ...UserStoreOption) *UserStore {
	s := &UserStore{
		conn:   conn,
		now:    time.Now,
		logger: logger.WithField("component", "user_store"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

var _ storage.UserStore = (*UserStore)(nil)

// Migrate creates the users table when it does not exist
func (s *UserStore) Migrate(ctx context.Context) error {
	stmts := postgresSchema
	if s.conn.Driver() == "sqlite3" {
		stmts = sqliteSchema
	}
	for _, stmt := range stmts {
		if _, err := s.conn.Primary().ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("failed to apply schema: %w", err)
		}
	}
	return nil
}

// rebind rewrites ? placeholders to $n for postgres
func (s *UserStore) rebind(query string) string {
	if s.conn.Driver() != "postgres" {
		return query
	}
	var b strings.Builder
	n := 0
	for _, r := range query {
		if r == '?' {
			n++
			b.WriteString("$" + strconv.Itoa(n))
			continue
		}
		b.WriteRune(r)
	}
	return b.String()
}

// CreateUser inserts user and sets its ID
func (s *UserStore) CreateUser(ctx context.Context, user *auth.User) error {
	email := auth.NormalizeEmail(user.Email)
	if email == "" {
		return fmt.Errorf("email is required")
	}
	if !user.Role.Valid() {
		return fmt.Errorf("invalid role %q", user.Role)
	}

	now := s.now().UTC()
	if user.CreatedAt.IsZero() {
		user.CreatedAt = now
	}
	user.UpdatedAt = now
	user.Email = email

	query := s.rebind(`
		INSERT INTO users (email, password_hash, role, team_id, course_id, first_name, last_name, enabled, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)

	err := s.conn.Primary().QueryRowContext(ctx, query,
		user.Email,
		user.PasswordHash,
		string(user.Role),
		nullableID(user.TeamID),
		nullableID(user.CourseID),
		user.FirstName,
		user.LastName,
		user.Enabled,
		user.CreatedAt,
		user.UpdatedAt,
	).Scan(&user.ID)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", storage.ErrDuplicateEmail, email)
		}
		return fmt.Errorf("failed to create user: %w", err)
	}

	if s.cache != nil {
		if err := s.cache.InvalidateUser(ctx, email); err != nil {
			s.logger.WithError(err).Warn("user cache invalidation failed")
		}
	}
	return nil
}

// GetByEmail returns the user with email or auth.ErrUserNotFound
func (s *UserStore) GetByEmail(ctx context.Context, email string) (*auth.User, error) {
	email = auth.NormalizeEmail(email)

	if s.cache != nil {
		cached, err := s.cache.GetUser(ctx, email)
		if err != nil {
			s.logger.WithError(err).Debug("user cache read failed")
		} else if cached != nil {
			return cached, nil
		}
	}

	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE email = ?`)
	u, err := scanUser(s.conn.Replica().QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if err := s.cache.SetUser(ctx, u); err != nil {
			s.logger.WithError(err).Debug("user cache write failed")
		}
	}
	return u, nil
}

// GetByID returns the user with id or auth.ErrUserNotFound
func (s *UserStore) GetByID(ctx context.Context, id int64) (*auth.User, error) {
	query := s.rebind(`SELECT ` + userColumns + ` FROM users WHERE id = ?`)
	return scanUser(s.conn.Replica().QueryRowContext(ctx, query, id))
}

// ListByTeam returns the members of teamID ordered by id
func (s *UserStore) ListByTeam(ctx context.Context, teamID int64) ([]*auth.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE team_id = ? ORDER BY id`, teamID)
}

// ListByCourse returns the users enrolled in courseID ordered by id
func (s *UserStore) ListByCourse(ctx context.Context, courseID int64) ([]*auth.User, error) {
	return s.list(ctx, `SELECT `+userColumns+` FROM users WHERE course_id = ? ORDER BY id`, courseID)
}

// HealthCheck pings the database
func (s *UserStore) HealthCheck(ctx context.Context) error {
	return s.conn.HealthCheck(ctx)
}

func (s *UserStore) list(ctx context.Context, query string, arg interface{}) ([]*auth.User, error) {
	rows, err := s.conn.Replica().QueryContext(ctx, s.rebind(query), arg)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}
	defer rows.Close()

	users := make([]*auth.User, 0)
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, err
		}
		users = append(users, u)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate users: %w", err)
	}
	return users, nil
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanUser(row rowScanner) (*auth.User, error) {
	var (
		u        auth.User
		role     string
		teamID   sql.NullInt64
		courseID sql.NullInt64
	)
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &teamID, &courseID,
		&u.FirstName, &u.LastName, &u.Enabled, &u.CreatedAt, &u.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, auth.ErrUserNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to scan user: %w", err)
	}

	u.Role = auth.Role(role)
	if teamID.Valid {
		v := teamID.Int64
		u.TeamID = &v
	}
	if courseID.Valid {
		v := courseID.Int64
		u.CourseID = &v
	}
	return &u, nil
}

func nullableID(id *int64) sql.NullInt64 {
	if id == nil {
		return sql.NullInt64{}
	}
	return sql.NullInt64{Int64: *id, Valid: true}
}

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr sqlite3.Error
	if errors.As(err, &liteErr) {
		return liteErr.ExtendedCode == sqlite3.ErrConstraintUnique
	}
	return false
}
