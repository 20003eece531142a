package accounts

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"

	"github.com/voltline/j1939-console/internal/config"
	"github.com/voltline/j1939-console/internal/metrics"
)

// Sender delivers a one-time verification code to an email address.
type Sender interface {
	SendCode(ctx context.Context, email, code string) error
}

// SenderFunc adapts a function to Sender.
type SenderFunc func(ctx context.Context, email, code string) error

// SendCode calls f.
func (f SenderFunc) SendCode(ctx context.Context, email, code string) error {
	return f(ctx, email, code)
}

// LogSender writes codes to the structured log. It stands in for a mail
// gateway in development deployments.
type LogSender struct{}

// SendCode logs the code.
func (LogSender) SendCode(_ context.Context, email, code string) error {
	slog.Info("accounts: verification code issued", "email", email, "code", code)
	return nil
}

// SignupRequest is the body of a registration.
type SignupRequest struct {
	Email    string `json:"email"`
	Name     string `json:"name"`
	Password string `json:"password"`
}

const (
	minPasswordLen = 8
	maxPasswordLen = 72 // bcrypt input limit
)

// Service runs the multi-step signup, verification and login flow.
type Service struct {
	store   *Store
	sender  Sender
	cfg     config.AuthConfig
	metrics *metrics.Metrics
}

// NewService creates a Service. A nil sender logs codes; m may be nil.
func NewService(store *Store, sender Sender, cfg config.AuthConfig, m *metrics.Metrics) *Service {
	if sender == nil {
		sender = LogSender{}
	}
	return &Service{store: store, sender: sender, cfg: cfg, metrics: m}
}

// Store returns the underlying store.
func (s *Service) Store() *Store { return s.store }

// Signup registers a pending viewer and sends the first verification code.
func (s *Service) Signup(ctx context.Context, req SignupRequest) (*User, error) {
	if err := validateSignup(req); err != nil {
		s.metrics.Signup("signup", "rejected")
		return nil, err
	}

	u, err := s.store.CreateUser(ctx, req.Email, strings.TrimSpace(req.Name), req.Password, RoleViewer, StatusPending)
	if err != nil {
		s.metrics.Signup("signup", "rejected")
		return nil, err
	}
	if err := s.sendChallenge(ctx, u); err != nil {
		return nil, err
	}
	s.metrics.Signup("signup", "ok")
	return u, nil
}

// Verify activates a pending account when code matches its challenge.
func (s *Service) Verify(ctx context.Context, email, code string) (*User, error) {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil {
		s.metrics.Signup("verify", "invalid")
		return nil, ErrInvalidCode
	}
	if u.Status != StatusPending {
		return nil, ErrNotPending
	}

	if err := s.store.VerifyChallenge(ctx, u.ID, PurposeSignup, strings.TrimSpace(code), s.cfg.OTPMaxAttempts); err != nil {
		s.metrics.Signup("verify", outcome(err))
		return nil, err
	}
	if err := s.store.SetStatus(ctx, u.ID, StatusActive); err != nil {
		return nil, err
	}
	s.metrics.Signup("verify", "ok")
	u.Status = StatusActive
	return u, nil
}

// Resend issues a fresh code to a pending account. Unknown emails succeed
// silently so registrations cannot be probed.
func (s *Service) Resend(ctx context.Context, email string) error {
	u, err := s.store.GetUserByEmail(ctx, email)
	if err != nil {
		return err
	}
	if u == nil {
		return nil
	}
	if u.Status != StatusPending {
		return ErrNotPending
	}
	if err := s.sendChallenge(ctx, u); err != nil {
		return err
	}
	s.metrics.Signup("resend", "ok")
	return nil
}

// Login checks credentials and issues a session token.
func (s *Service) Login(ctx context.Context, email, password string) (*LoginResult, error) {
	u, err := s.store.Authenticate(ctx, email, password)
	if err != nil {
		s.metrics.Signup("login", "invalid")
		return nil, err
	}
	switch u.Status {
	case StatusPending:
		s.metrics.Signup("login", "unverified")
		return nil, ErrNotVerified
	case StatusDisabled:
		s.metrics.Signup("login", "disabled")
		return nil, ErrInactive
	}

	token, tok, err := s.store.IssueToken(ctx, u.ID, "session", s.cfg.TokenTTL)
	if err != nil {
		return nil, err
	}
	s.metrics.Signup("login", "ok")
	return &LoginResult{Token: token, ExpiresAt: tok.ExpiresAt, User: u}, nil
}

// Logout revokes a session token.
func (s *Service) Logout(ctx context.Context, token string) error {
	return s.store.RevokeToken(ctx, token)
}

func (s *Service) sendChallenge(ctx context.Context, u *User) error {
	code, err := s.store.IssueChallenge(ctx, u.ID, PurposeSignup, s.cfg.OTPLength, s.cfg.OTPTTL)
	if err != nil {
		return err
	}
	if err := s.sender.SendCode(ctx, u.Email, code); err != nil {
		return fmt.Errorf("sending verification code: %w", err)
	}
	return nil
}

func validateSignup(req SignupRequest) error {
	email := strings.TrimSpace(req.Email)
	if _, err := mail.ParseAddress(email); err != nil || strings.ContainsAny(email, "<> ") {
		return fmt.Errorf("%w: email is not valid", ErrInvalidInput)
	}
	return ValidatePassword(req.Password)
}

// ValidatePassword checks the password length bounds.
func ValidatePassword(pw string) error {
	if n := len(pw); n < minPasswordLen || n > maxPasswordLen {
		return fmt.Errorf("%w: password must be %d to %d bytes", ErrInvalidInput, minPasswordLen, maxPasswordLen)
	}
	return nil
}

func outcome(err error) string {
	switch {
	case errors.Is(err, ErrLocked):
		return "locked"
	case errors.Is(err, ErrCodeExpired):
		return "expired"
	default:
		return "invalid"
	}
}
