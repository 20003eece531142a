package accounts

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"golang.org/x/crypto/bcrypt"

	"github.com/voltline/j1939-console/internal/audit"
	"github.com/voltline/j1939-console/internal/config"
	"github.com/voltline/j1939-console/internal/db"
)

// mailbox captures delivered codes by email.
type mailbox struct {
	mu    sync.Mutex
	codes map[string]string
}

func (m *mailbox) SendCode(_ context.Context, email, code string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.codes[email] = code
	return nil
}

func (m *mailbox) last(email string) string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.codes[email]
}

func testAuthConfig() config.AuthConfig {
	return config.AuthConfig{
		OTPLength:      6,
		OTPTTL:         10 * time.Minute,
		OTPMaxAttempts: 3,
		TokenTTL:       time.Hour,
	}
}

func setupService(t *testing.T) (*Service, *mailbox, *db.DB) {
	t.Helper()
	database, err := db.OpenMemory()
	if err != nil {
		t.Fatalf("OpenMemory: %v", err)
	}
	t.Cleanup(func() { database.Close() })

	store := NewStore(database)
	store.cost = bcrypt.MinCost
	box := &mailbox{codes: map[string]string{}}
	return NewService(store, box, testAuthConfig(), nil), box, database
}

func wrongCode(code string) string {
	if code == "000000" {
		return "111111"
	}
	return "000000"
}

func TestRoleAllows(t *testing.T) {
	tests := []struct {
		role, min Role
		want      bool
	}{
		{RoleAdmin, RoleEditor, true},
		{RoleEditor, RoleEditor, true},
		{RoleViewer, RoleEditor, false},
		{RoleEditor, RoleAdmin, false},
		{Role("root"), RoleViewer, false},
	}
	for _, tt := range tests {
		if got := tt.role.Allows(tt.min); got != tt.want {
			t.Errorf("%s.Allows(%s) = %v, want %v", tt.role, tt.min, got, tt.want)
		}
	}
}

func TestSignupVerifyLogin(t *testing.T) {
	svc, box, _ := setupService(t)
	ctx := context.Background()

	u, err := svc.Signup(ctx, SignupRequest{Email: " Ops@Example.com ", Name: "Ops", Password: "correct horse"})
	if err != nil {
		t.Fatalf("Signup: %v", err)
	}
	if u.Status != StatusPending || u.Role != RoleViewer || u.Email != "ops@example.com" {
		t.Fatalf("new user = %+v", u)
	}

	if _, err := svc.Login(ctx, "ops@example.com", "correct horse"); !errors.Is(err, ErrNotVerified) {
		t.Fatalf("login before verify: %v", err)
	}

	code := box.last("ops@example.com")
	if len(code) != 6 {
		t.Fatalf("code %q is not 6 digits", code)
	}
	u, err = svc.Verify(ctx, "ops@example.com", code)
	if err != nil {
		t.Fatalf("Verify: %v", err)
	}
	if u.Status != StatusActive {
		t.Errorf("status after verify = %s", u.Status)
	}
	if _, err := svc.Verify(ctx, "ops@example.com", code); !errors.Is(err, ErrNotPending) {
		t.Errorf("second verify: %v", err)
	}

	res, err := svc.Login(ctx, "OPS@example.com", "correct horse")
	if err != nil {
		t.Fatalf("Login: %v", err)
	}
	if res.Token == "" || res.User.ID != u.ID {
		t.Errorf("login result = %+v", res)
	}

	who, err := svc.Store().ResolveToken(ctx, res.Token)
	if err != nil || who.ID != u.ID {
		t.Fatalf("ResolveToken = %+v, %v", who, err)
	}

	if err := svc.Logout(ctx, res.Token); err != nil {
		t.Fatalf("Logout: %v", err)
	}
	if _, err := svc.Store().ResolveToken(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token still valid after logout: %v", err)
	}
}

func TestSignupValidation(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	tests := []struct {
		name string
		req  SignupRequest
		want error
	}{
		{"bad email", SignupRequest{Email: "not-an-email", Password: "longenough"}, ErrInvalidInput},
		{"short password", SignupRequest{Email: "a@example.com", Password: "short"}, ErrInvalidInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := svc.Signup(ctx, tt.req); !errors.Is(err, tt.want) {
				t.Errorf("err = %v, want %v", err, tt.want)
			}
		})
	}

	if _, err := svc.Signup(ctx, SignupRequest{Email: "dup@example.com", Password: "longenough"}); err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Signup(ctx, SignupRequest{Email: "DUP@example.com", Password: "longenough"}); !errors.Is(err, ErrEmailTaken) {
		t.Errorf("duplicate signup: %v", err)
	}
}

func TestOTPLockout(t *testing.T) {
	svc, box, _ := setupService(t)
	ctx := context.Background()

	if _, err := svc.Signup(ctx, SignupRequest{Email: "lock@example.com", Password: "longenough"}); err != nil {
		t.Fatal(err)
	}
	code := box.last("lock@example.com")
	bad := wrongCode(code)

	for i := 0; i < 2; i++ {
		if _, err := svc.Verify(ctx, "lock@example.com", bad); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("attempt %d: %v", i+1, err)
		}
	}
	if _, err := svc.Verify(ctx, "lock@example.com", bad); !errors.Is(err, ErrLocked) {
		t.Fatalf("third wrong attempt should lock, got %v", err)
	}
	if _, err := svc.Verify(ctx, "lock@example.com", code); !errors.Is(err, ErrLocked) {
		t.Fatalf("correct code after lockout should stay locked, got %v", err)
	}

	if err := svc.Resend(ctx, "lock@example.com"); err != nil {
		t.Fatalf("Resend: %v", err)
	}
	if _, err := svc.Verify(ctx, "lock@example.com", box.last("lock@example.com")); err != nil {
		t.Fatalf("verify with fresh code: %v", err)
	}
}

func TestConcurrentWrongCodesStopAtMax(t *testing.T) {
	_, _, database := setupService(t)
	store := NewStore(database)
	store.cost = bcrypt.MinCost
	ctx := context.Background()

	u, err := store.CreateUser(ctx, "race@example.com", "", "longenough", RoleViewer, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	code, err := store.IssueChallenge(ctx, u.ID, PurposeSignup, 6, time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	bad := wrongCode(code)

	const guesses, maxAttempts = 12, 3
	errs := make([]error, guesses)
	var wg sync.WaitGroup
	for i := 0; i < guesses; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			errs[i] = store.VerifyChallenge(ctx, u.ID, PurposeSignup, bad, maxAttempts)
		}(i)
	}
	wg.Wait()

	invalid := 0
	for i, err := range errs {
		switch {
		case errors.Is(err, ErrInvalidCode):
			invalid++
		case errors.Is(err, ErrLocked):
		default:
			t.Errorf("guess %d: unexpected error %v", i, err)
		}
	}
	if invalid != maxAttempts-1 {
		t.Errorf("invalid-code results = %d, want %d", invalid, maxAttempts-1)
	}

	var attempts int
	if err := database.QueryRowContext(ctx,
		"SELECT attempts FROM otp_challenges WHERE user_id = ?", u.ID).Scan(&attempts); err != nil {
		t.Fatal(err)
	}
	if attempts != maxAttempts {
		t.Errorf("attempts = %d, want %d", attempts, maxAttempts)
	}
	if err := store.VerifyChallenge(ctx, u.ID, PurposeSignup, code, maxAttempts); !errors.Is(err, ErrLocked) {
		t.Errorf("correct code after lockout: %v", err)
	}
}

func TestOTPExpiry(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()

	u, err := svc.Store().CreateUser(ctx, "late@example.com", "", "longenough", RoleViewer, StatusPending)
	if err != nil {
		t.Fatal(err)
	}
	code, err := svc.Store().IssueChallenge(ctx, u.ID, PurposeSignup, 6, -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Verify(ctx, "late@example.com", code); !errors.Is(err, ErrCodeExpired) {
		t.Errorf("expired code: %v", err)
	}
}

func TestResendUnknownEmail(t *testing.T) {
	svc, box, _ := setupService(t)
	if err := svc.Resend(context.Background(), "ghost@example.com"); err != nil {
		t.Errorf("Resend unknown: %v", err)
	}
	if box.last("ghost@example.com") != "" {
		t.Error("code sent to unknown address")
	}
}

func TestLoginRejections(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	store := svc.Store()

	u, err := store.CreateUser(ctx, "off@example.com", "", "longenough", RoleEditor, StatusDisabled)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := svc.Login(ctx, "off@example.com", "longenough"); !errors.Is(err, ErrInactive) {
		t.Errorf("disabled login: %v", err)
	}
	if _, err := svc.Login(ctx, "off@example.com", "wrong password"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("wrong password: %v", err)
	}
	if _, err := svc.Login(ctx, "nobody@example.com", "longenough"); !errors.Is(err, ErrInvalidCredentials) {
		t.Errorf("unknown email: %v", err)
	}

	if err := store.SetStatus(ctx, u.ID, StatusActive); err != nil {
		t.Fatal(err)
	}
	res, err := svc.Login(ctx, "off@example.com", "longenough")
	if err != nil {
		t.Fatalf("Login after enable: %v", err)
	}
	if err := store.SetStatus(ctx, u.ID, StatusDisabled); err != nil {
		t.Fatal(err)
	}
	if _, err := store.ResolveToken(ctx, res.Token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("token of disabled user resolved: %v", err)
	}
}

func TestExpiredToken(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	store := svc.Store()

	u, err := store.CreateUser(ctx, "tok@example.com", "", "longenough", RoleViewer, StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	token, _, err := store.IssueToken(ctx, u.ID, "ci", -time.Minute)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.ResolveToken(ctx, token); !errors.Is(err, ErrInvalidToken) {
		t.Errorf("expired token: %v", err)
	}
}

func TestStoreUserAdmin(t *testing.T) {
	svc, _, _ := setupService(t)
	ctx := context.Background()
	store := svc.Store()

	u, err := store.CreateUser(ctx, "b@example.com", "B", "longenough", RoleViewer, StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	if _, err := store.CreateUser(ctx, "a@example.com", "A", "longenough", RoleViewer, StatusActive); err != nil {
		t.Fatal(err)
	}

	users, err := store.ListUsers(ctx)
	if err != nil {
		t.Fatal(err)
	}
	if len(users) != 2 || users[0].Email != "a@example.com" {
		t.Errorf("ListUsers = %+v", users)
	}
	if n, _ := store.CountUsers(ctx); n != 2 {
		t.Errorf("CountUsers = %d", n)
	}

	if err := store.SetRole(ctx, u.ID, RoleEditor); err != nil {
		t.Fatal(err)
	}
	got, _ := store.GetUser(ctx, u.ID)
	if got.Role != RoleEditor {
		t.Errorf("role = %s", got.Role)
	}

	if err := store.SetRole(ctx, "missing", RoleEditor); !errors.Is(err, ErrNotFound) {
		t.Errorf("SetRole missing: %v", err)
	}
	if err := store.DeleteUser(ctx, u.ID); err != nil {
		t.Fatal(err)
	}
	if got, _ := store.GetUser(ctx, u.ID); got != nil {
		t.Error("user survived delete")
	}
}

// --- HTTP handler tests ---

func setupRouter(t *testing.T) (chi.Router, *Service, *mailbox, *audit.Store) {
	t.Helper()
	svc, box, database := setupService(t)
	auditStore := audit.NewStore(database)
	r := chi.NewRouter()
	RegisterRoutes(r, svc, NewGuard(svc.Store()), auditStore)
	return r, svc, box, auditStore
}

func doJSON(t *testing.T, r http.Handler, method, path, token string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func loginAs(t *testing.T, svc *Service, email string, role Role) (string, *User) {
	t.Helper()
	ctx := context.Background()
	u, err := svc.Store().CreateUser(ctx, email, "", "longenough", role, StatusActive)
	if err != nil {
		t.Fatal(err)
	}
	res, err := svc.Login(ctx, email, "longenough")
	if err != nil {
		t.Fatal(err)
	}
	return res.Token, u
}

func TestHTTPSignupFlow(t *testing.T) {
	r, _, box, _ := setupRouter(t)

	w := doJSON(t, r, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		Email: "new@example.com", Name: "New", Password: "longenough",
	})
	if w.Code != http.StatusCreated {
		t.Fatalf("signup status = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/signup", "", SignupRequest{
		Email: "new@example.com", Password: "longenough",
	})
	if w.Code != http.StatusConflict {
		t.Errorf("duplicate signup status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "new@example.com", "password": "longenough",
	})
	if w.Code != http.StatusForbidden {
		t.Errorf("unverified login status = %d", w.Code)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/verify", "", map[string]string{
		"email": "new@example.com", "code": box.last("new@example.com"),
	})
	if w.Code != http.StatusOK {
		t.Fatalf("verify status = %d: %s", w.Code, w.Body)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/login", "", map[string]string{
		"email": "new@example.com", "password": "longenough",
	})
	if w.Code != http.StatusOK {
		t.Fatalf("login status = %d: %s", w.Code, w.Body)
	}
	var res LoginResult
	if err := json.NewDecoder(w.Body).Decode(&res); err != nil {
		t.Fatal(err)
	}

	w = doJSON(t, r, http.MethodGet, "/api/auth/me", res.Token, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("me status = %d", w.Code)
	}
	var me User
	json.NewDecoder(w.Body).Decode(&me)
	if me.Email != "new@example.com" {
		t.Errorf("me = %+v", me)
	}

	w = doJSON(t, r, http.MethodPost, "/api/auth/logout", res.Token, nil)
	if w.Code != http.StatusNoContent {
		t.Errorf("logout status = %d", w.Code)
	}
	w = doJSON(t, r, http.MethodGet, "/api/auth/me", res.Token, nil)
	if w.Code != http.StatusUnauthorized {
		t.Errorf("me after logout status = %d", w.Code)
	}
}

func TestHTTPVerifyLockout(t *testing.T) {
	r, _, box, _ := setupRouter(t)
	doJSON(t, r, http.MethodPost, "/api/auth/signup", "", SignupRequest{Email: "x@example.com", Password: "longenough"})
	bad := wrongCode(box.last("x@example.com"))

	var last int
	for i := 0; i < 3; i++ {
		last = doJSON(t, r, http.MethodPost, "/api/auth/verify", "", map[string]string{"email": "x@example.com", "code": bad}).Code
	}
	if last != http.StatusTooManyRequests {
		t.Errorf("final attempt status = %d, want 429", last)
	}
}

func TestHTTPRoleEnforcement(t *testing.T) {
	r, svc, _, auditStore := setupRouter(t)
	viewerToken, viewer := loginAs(t, svc, "viewer@example.com", RoleViewer)
	adminToken, admin := loginAs(t, svc, "admin@example.com", RoleAdmin)

	if w := doJSON(t, r, http.MethodGet, "/api/users", "", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("anonymous status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/users", "garbage", nil); w.Code != http.StatusUnauthorized {
		t.Errorf("bad token status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/users", viewerToken, nil); w.Code != http.StatusForbidden {
		t.Errorf("viewer status = %d", w.Code)
	}

	w := doJSON(t, r, http.MethodGet, "/api/users", adminToken, nil)
	if w.Code != http.StatusOK {
		t.Fatalf("admin status = %d", w.Code)
	}
	var users []User
	json.NewDecoder(w.Body).Decode(&users)
	if len(users) != 2 {
		t.Errorf("users = %d", len(users))
	}

	w = doJSON(t, r, http.MethodPut, "/api/users/"+viewer.ID+"/role", adminToken, map[string]string{"role": "editor"})
	if w.Code != http.StatusOK {
		t.Fatalf("set role status = %d: %s", w.Code, w.Body)
	}
	var updated User
	json.NewDecoder(w.Body).Decode(&updated)
	if updated.Role != RoleEditor {
		t.Errorf("role = %s", updated.Role)
	}

	if w := doJSON(t, r, http.MethodPut, "/api/users/"+viewer.ID+"/role", adminToken, map[string]string{"role": "root"}); w.Code != http.StatusBadRequest {
		t.Errorf("invalid role status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodPut, "/api/users/"+admin.ID+"/status", adminToken, map[string]string{"status": "disabled"}); w.Code != http.StatusConflict {
		t.Errorf("self disable status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodDelete, "/api/users/"+viewer.ID, adminToken, nil); w.Code != http.StatusNoContent {
		t.Errorf("delete status = %d", w.Code)
	}
	if w := doJSON(t, r, http.MethodGet, "/api/users/"+viewer.ID, adminToken, nil); w.Code != http.StatusNotFound {
		t.Errorf("get deleted status = %d", w.Code)
	}

	entries, err := auditStore.Query(context.Background(), audit.QueryFilter{ActorID: admin.ID})
	if err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Errorf("audit entries = %d, want 2", len(entries))
	}
}

func TestNoAuthGuard(t *testing.T) {
	r := chi.NewRouter()
	r.With(NoAuth().Require(RoleAdmin)).Get("/secret", func(w http.ResponseWriter, r *http.Request) {
		u, _ := UserFromContext(r.Context())
		w.Write([]byte(u.Role))
	})

	w := doJSON(t, r, http.MethodGet, "/secret", "", nil)
	if w.Code != http.StatusOK || w.Body.String() != "admin" {
		t.Errorf("NoAuth: %d %q", w.Code, w.Body.String())
	}
}

func TestBearerToken(t *testing.T) {
	tests := map[string]string{
		"Bearer abc":  "abc",
		"bearer  xyz": "xyz",
		"Basic abc":   "",
		"":            "",
	}
	for header, want := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", header)
		if got := BearerToken(req); got != want {
			t.Errorf("BearerToken(%q) = %q, want %q", header, got, want)
		}
	}
}

func TestBearerTokenCookie(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.AddCookie(&http.Cookie{Name: SessionCookie, Value: "from-cookie"})
	if got := BearerToken(req); got != "from-cookie" {
		t.Errorf("cookie token = %q", got)
	}

	req.Header.Set("Authorization", "Bearer from-header")
	if got := BearerToken(req); got != "from-header" {
		t.Errorf("header should win, got %q", got)
	}
}
