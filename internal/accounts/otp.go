package accounts

import (
	"context"
	"crypto/rand"
	"crypto/subtle"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"time"

	"github.com/google/uuid"

	"github.com/voltline/j1939-console/internal/db"
)

// IssueChallenge replaces any outstanding challenge for userID and purpose
// with a fresh numeric code of length digits. The code is returned in
// plaintext for delivery; only its hash is stored.
func (s *Store) IssueChallenge(ctx context.Context, userID, purpose string, length int, ttl time.Duration) (string, error) {
	code, err := numericCode(length)
	if err != nil {
		return "", err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx,
		"DELETE FROM otp_challenges WHERE user_id = ? AND purpose = ?", userID, purpose); err != nil {
		return "", fmt.Errorf("clearing challenges: %w", err)
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO otp_challenges (id, user_id, purpose, code_hash, expires_at)
		VALUES (?, ?, ?, ?, ?)`,
		uuid.New().String(), userID, purpose, hashSecret(code), db.FormatTime(time.Now().Add(ttl)),
	)
	if err != nil {
		return "", fmt.Errorf("inserting challenge: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing challenge: %w", err)
	}
	return code, nil
}

// VerifyChallenge checks code against the outstanding challenge. A wrong
// code counts as an attempt; once maxAttempts is reached the challenge is
// locked until a new one is issued.
func (s *Store) VerifyChallenge(ctx context.Context, userID, purpose, code string, maxAttempts int) error {
	var (
		id, hash, expires string
		attempts          int
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT id, code_hash, attempts, expires_at FROM otp_challenges
		WHERE user_id = ? AND purpose = ? AND consumed_at IS NULL
		ORDER BY created_at DESC LIMIT 1`, userID, purpose,
	).Scan(&id, &hash, &attempts, &expires)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrInvalidCode
	}
	if err != nil {
		return fmt.Errorf("looking up challenge: %w", err)
	}

	if attempts >= maxAttempts {
		return ErrLocked
	}
	if time.Now().UTC().After(db.ParseTime(expires)) {
		return ErrCodeExpired
	}

	if subtle.ConstantTimeCompare([]byte(hash), []byte(hashSecret(code))) != 1 {
		// Guarded increment so concurrent guesses never push past maxAttempts.
		err := s.db.QueryRowContext(ctx, `
			UPDATE otp_challenges SET attempts = attempts + 1
			WHERE id = ? AND attempts < ?
			RETURNING attempts`, id, maxAttempts,
		).Scan(&attempts)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrLocked
		}
		if err != nil {
			return fmt.Errorf("recording attempt: %w", err)
		}
		if attempts >= maxAttempts {
			return ErrLocked
		}
		return ErrInvalidCode
	}

	if _, err := s.db.ExecContext(ctx,
		"UPDATE otp_challenges SET consumed_at = datetime('now') WHERE id = ?", id); err != nil {
		return fmt.Errorf("consuming challenge: %w", err)
	}
	return nil
}

func numericCode(length int) (string, error) {
	if length <= 0 {
		length = 6
	}
	buf := make([]byte, length)
	ten := big.NewInt(10)
	for i := range buf {
		n, err := rand.Int(rand.Reader, ten)
		if err != nil {
			return "", fmt.Errorf("generating code: %w", err)
		}
		buf[i] = byte('0' + n.Int64())
	}
	return string(buf), nil
}
