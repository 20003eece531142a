package accounts

import (
	"context"
	"crypto/rand"
	"crypto/sha256"
	"database/sql"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/voltline/j1939-console/internal/db"
)

// Store persists users, signup challenges and API tokens.
type Store struct {
	db   *db.DB
	cost int
}

// NewStore creates a Store backed by the given database.
func NewStore(database *db.DB) *Store {
	return &Store{db: database, cost: bcrypt.DefaultCost}
}

const userColumns = "id, email, name, password_hash, role, status, created_at, updated_at"

// CreateUser inserts a user with a bcrypt hash of password.
func (s *Store) CreateUser(ctx context.Context, email, name, password string, role Role, status Status) (*User, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return nil, fmt.Errorf("hashing password: %w", err)
	}

	id := uuid.New().String()
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO users (id, email, name, password_hash, role, status)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, normalizeEmail(email), name, string(hash), string(role), string(status),
	)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE") {
			return nil, ErrEmailTaken
		}
		return nil, fmt.Errorf("inserting user: %w", err)
	}
	return s.GetUser(ctx, id)
}

// GetUser returns the user with id, or nil, nil when absent.
func (s *Store) GetUser(ctx context.Context, id string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE id = ?", id)
	return scanUserRow(row)
}

// GetUserByEmail returns the user registered under email, or nil, nil.
func (s *Store) GetUserByEmail(ctx context.Context, email string) (*User, error) {
	row := s.db.QueryRowContext(ctx, "SELECT "+userColumns+" FROM users WHERE email = ?", normalizeEmail(email))
	return scanUserRow(row)
}

// ListUsers returns all users ordered by email.
func (s *Store) ListUsers(ctx context.Context) ([]User, error) {
	rows, err := s.db.QueryContext(ctx, "SELECT "+userColumns+" FROM users ORDER BY email")
	if err != nil {
		return nil, fmt.Errorf("listing users: %w", err)
	}
	defer rows.Close()

	users := []User{}
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning user: %w", err)
		}
		users = append(users, *u)
	}
	return users, rows.Err()
}

// CountUsers returns the number of registered users.
func (s *Store) CountUsers(ctx context.Context) (int, error) {
	var n int
	if err := s.db.QueryRowContext(ctx, "SELECT COUNT(*) FROM users").Scan(&n); err != nil {
		return 0, fmt.Errorf("counting users: %w", err)
	}
	return n, nil
}

// SetRole changes a user's role.
func (s *Store) SetRole(ctx context.Context, id string, role Role) error {
	return s.update(ctx, "role", string(role), id)
}

// SetStatus changes a user's status.
func (s *Store) SetStatus(ctx context.Context, id string, status Status) error {
	return s.update(ctx, "status", string(status), id)
}

// SetPassword replaces a user's password hash.
func (s *Store) SetPassword(ctx context.Context, id, password string) error {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), s.cost)
	if err != nil {
		return fmt.Errorf("hashing password: %w", err)
	}
	return s.update(ctx, "password_hash", string(hash), id)
}

func (s *Store) update(ctx context.Context, column, value, id string) error {
	res, err := s.db.ExecContext(ctx,
		"UPDATE users SET "+column+" = ?, updated_at = datetime('now') WHERE id = ?", value, id)
	if err != nil {
		return fmt.Errorf("updating user %s: %w", column, err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// DeleteUser removes a user along with their challenges and tokens.
func (s *Store) DeleteUser(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, "DELETE FROM users WHERE id = ?", id)
	if err != nil {
		return fmt.Errorf("deleting user: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// Authenticate checks email and password. It returns ErrInvalidCredentials
// for an unknown email or a wrong password.
func (s *Store) Authenticate(ctx context.Context, email, password string) (*User, error) {
	u, err := s.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		return nil, ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(u.PasswordHash), []byte(password)); err != nil {
		return nil, ErrInvalidCredentials
	}
	return u, nil
}

// IssueToken creates an API token for userID valid for ttl. The plaintext
// token is returned once; only its hash is stored.
func (s *Store) IssueToken(ctx context.Context, userID, name string, ttl time.Duration) (string, *Token, error) {
	raw := make([]byte, 32)
	if _, err := rand.Read(raw); err != nil {
		return "", nil, fmt.Errorf("generating token: %w", err)
	}
	plaintext := "j1c_" + hex.EncodeToString(raw)

	now := time.Now().UTC().Truncate(time.Second)
	tok := &Token{
		ID:        uuid.New().String(),
		UserID:    userID,
		Name:      name,
		CreatedAt: now,
		ExpiresAt: now.Add(ttl),
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO api_tokens (id, user_id, name, token_hash, created_at, expires_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		tok.ID, userID, name, hashSecret(plaintext), db.FormatTime(now), db.FormatTime(tok.ExpiresAt),
	)
	if err != nil {
		return "", nil, fmt.Errorf("inserting token: %w", err)
	}
	return plaintext, tok, nil
}

// ResolveToken returns the active user owning plaintext.
func (s *Store) ResolveToken(ctx context.Context, plaintext string) (*User, error) {
	var tokenID, userID, expires string
	err := s.db.QueryRowContext(ctx,
		"SELECT id, user_id, expires_at FROM api_tokens WHERE token_hash = ?", hashSecret(plaintext),
	).Scan(&tokenID, &userID, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrInvalidToken
	}
	if err != nil {
		return nil, fmt.Errorf("looking up token: %w", err)
	}
	if time.Now().UTC().After(db.ParseTime(expires)) {
		return nil, ErrInvalidToken
	}

	u, err := s.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	if u == nil || u.Status != StatusActive {
		return nil, ErrInvalidToken
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE api_tokens SET last_used = datetime('now') WHERE id = ?", tokenID); err != nil {
		return nil, fmt.Errorf("touching token: %w", err)
	}
	return u, nil
}

// RevokeToken deletes the token matching plaintext.
func (s *Store) RevokeToken(ctx context.Context, plaintext string) error {
	if _, err := s.db.ExecContext(ctx,
		"DELETE FROM api_tokens WHERE token_hash = ?", hashSecret(plaintext)); err != nil {
		return fmt.Errorf("revoking token: %w", err)
	}
	return nil
}

// scanner is implemented by both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanUser(sc scanner) (*User, error) {
	var (
		u                User
		role, status     string
		created, updated string
	)
	if err := sc.Scan(&u.ID, &u.Email, &u.Name, &u.PasswordHash, &role, &status, &created, &updated); err != nil {
		return nil, err
	}
	u.Role = Role(role)
	u.Status = Status(status)
	u.CreatedAt = db.ParseTime(created)
	u.UpdatedAt = db.ParseTime(updated)
	return &u, nil
}

func scanUserRow(row *sql.Row) (*User, error) {
	u, err := scanUser(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("getting user: %w", err)
	}
	return u, nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

func hashSecret(secret string) string {
	sum := sha256.Sum256([]byte(secret))
	return hex.EncodeToString(sum[:])
}
