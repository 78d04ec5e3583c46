package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap"

	"asha-portal/internal/audit"
	"asha-portal/internal/hashing"
	"asha-portal/internal/model"
	"asha-portal/internal/repository/memory"
	"asha-portal/internal/token"
)

type fakeClock struct {
	mu sync.Mutex
	t  time.Time
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.t
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.t = c.t.Add(d)
}

// capturePublisher records published events for assertions.
type capturePublisher struct {
	mu     sync.Mutex
	events []audit.Event
}

func (p *capturePublisher) Publish(ctx context.Context, event audit.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, event)
}

func (p *capturePublisher) countOf(eventType string) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, e := range p.events {
		if e.EventType == eventType {
			n++
		}
	}
	return n
}

type fixture struct {
	svc    *AuthService
	users  *memory.UserStore
	otps   *memory.OTPStore
	tokens *token.Manager
	clock  *fakeClock
	events *capturePublisher
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	clock := &fakeClock{t: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
	users := memory.NewUserStore(clock.Now)
	otps := memory.NewOTPStore(clock.Now)

	tokens, err := token.NewManager(token.Config{
		Secret:     []byte("test-secret-key-for-unit-tests"),
		Issuer:     "asha-portal",
		Audience:   "asha-portal-users",
		AccessTTL:  30 * time.Minute,
		RefreshTTL: 7 * 24 * time.Hour,
	})
	if err != nil {
		t.Fatalf("token.NewManager failed: %v", err)
	}

	events := &capturePublisher{}
	svc := NewAuthService(users, otps, tokens, hashing.NewHasher("test-pepper"), events, zap.NewNop(), Options{
		LockThreshold:  5,
		OTPExpiry:      2 * time.Minute,
		MaxOTPAttempts: 3,
		Now:            clock.Now,
	})

	return &fixture{svc: svc, users: users, otps: otps, tokens: tokens, clock: clock, events: events}
}

func (f *fixture) addUser(t *testing.T, email, password, role string, active bool) *model.User {
	t.Helper()
	hash, err := hashing.HashPassword(password)
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	user := &model.User{
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		IsActive:     active,
	}
	if err := f.users.Create(context.Background(), user); err != nil {
		t.Fatalf("Create user failed: %v", err)
	}
	return user
}

func TestLoginIssuesOTP(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "sunita.dixit.asha@gmail.com", "Dixit.Sunita@123", model.RoleASHA, true)

	res, err := f.svc.Login(ctx, "Sunita.Dixit.ASHA@Gmail.com", "Dixit.Sunita@123", "10.0.0.1")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	if !res.RequiresOTP {
		t.Error("login did not require an OTP")
	}
	if res.Role != model.RoleASHA {
		t.Errorf("Role = %q, want ASHA", res.Role)
	}
	if len(res.RawCode) != 6 {
		t.Errorf("RawCode = %q, want a 6-digit code", res.RawCode)
	}

	// The stored record carries no raw code, only hash material.
	rec, err := f.otps.GetLive(ctx, res.UserID, res.Email)
	if err != nil || rec == nil {
		t.Fatalf("GetLive = (%+v, %v)", rec, err)
	}
	if rec.CodeHash == res.RawCode || rec.CodeHash == "" {
		t.Error("code stored in the clear or not at all")
	}
	if got := rec.ExpiresAt.Sub(f.clock.Now()); got != 2*time.Minute {
		t.Errorf("OTP expiry window = %v, want 2m", got)
	}

	if f.events.countOf(audit.EventOTPIssued) != 1 {
		t.Error("otp_issued event not published")
	}
}

func TestLoginValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	tests := []struct {
		name     string
		email    string
		password string
	}{
		{"empty email", "", "x"},
		{"empty password", "a@b.c", ""},
		{"both empty", "", ""},
		{"whitespace email", "   ", "x"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.svc.Login(ctx, tt.email, tt.password, "")
			if !errors.Is(err, ErrInvalidInput) {
				t.Errorf("Login(%q, %q) = %v, want ErrInvalidInput", tt.email, tt.password, err)
			}
		})
	}
}

func TestLoginUnknownEmailMatchesWrongPassword(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "known@example.com", "Right@123", model.RoleASHA, true)

	_, errUnknown := f.svc.Login(ctx, "unknown@example.com", "whatever", "")
	_, errWrong := f.svc.Login(ctx, "known@example.com", "Wrong@123", "")

	if !errors.Is(errUnknown, ErrInvalidCredentials) {
		t.Errorf("unknown email error = %v, want ErrInvalidCredentials", errUnknown)
	}
	if !errors.Is(errWrong, ErrInvalidCredentials) {
		t.Errorf("wrong password error = %v, want ErrInvalidCredentials", errWrong)
	}
	if errUnknown.Error() != errWrong.Error() {
		t.Error("unknown-email and wrong-password errors are distinguishable")
	}
}

func TestLoginLockPrecedesPasswordCheck(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "locked@example.com", "Right@123", model.RoleASHA, true)
	if err := f.users.SetLocked(ctx, user.UserID, true); err != nil {
		t.Fatalf("SetLocked failed: %v", err)
	}

	// Locked wins even with the correct password.
	if _, err := f.svc.Login(ctx, "locked@example.com", "Right@123", ""); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("correct password on locked account = %v, want ErrAccountLocked", err)
	}
	if _, err := f.svc.Login(ctx, "locked@example.com", "Wrong@123", ""); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("wrong password on locked account = %v, want ErrAccountLocked", err)
	}
}

func TestLoginDeactivatedAccount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "gone@example.com", "Right@123", model.RoleASHA, false)

	if _, err := f.svc.Login(ctx, "gone@example.com", "Right@123", ""); !errors.Is(err, ErrAccountDeactivated) {
		t.Errorf("login on deactivated account = %v, want ErrAccountDeactivated", err)
	}
}

func TestLoginLocksAfterRepeatedFailures(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "victim@example.com", "Right@123", model.RoleASHA, true)

	for i := 0; i < 5; i++ {
		if _, err := f.svc.Login(ctx, "victim@example.com", "Wrong@123", "10.0.0.9"); !errors.Is(err, ErrInvalidCredentials) {
			t.Fatalf("failure %d = %v, want ErrInvalidCredentials", i+1, err)
		}
	}

	stored, _ := f.users.FindByID(ctx, user.UserID)
	if !stored.IsLocked {
		t.Fatal("account not locked after five failures")
	}
	if f.events.countOf(audit.EventAccountLocked) != 1 {
		t.Error("account_locked event not published exactly once")
	}
	if f.events.countOf(audit.EventLoginFailed) != 5 {
		t.Errorf("login_failed events = %d, want 5", f.events.countOf(audit.EventLoginFailed))
	}

	// Correct password after the lock still fails with the locked error.
	if _, err := f.svc.Login(ctx, "victim@example.com", "Right@123", ""); !errors.Is(err, ErrAccountLocked) {
		t.Errorf("post-lock login = %v, want ErrAccountLocked", err)
	}
}

func TestLoginSuccessResetsFailureCount(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "careful@example.com", "Right@123", model.RoleASHA, true)

	for i := 0; i < 4; i++ {
		f.svc.Login(ctx, "careful@example.com", "Wrong@123", "")
	}
	if _, err := f.svc.Login(ctx, "careful@example.com", "Right@123", ""); err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	stored, _ := f.users.FindByID(ctx, user.UserID)
	if stored.LoginAttempts != 0 {
		t.Errorf("attempts after success = %d, want 0", stored.LoginAttempts)
	}
	if stored.IsLocked {
		t.Error("account locked despite the counter resetting")
	}
}

func TestVerifyOTPHappyPath(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "sunita.dixit.asha@gmail.com", "Dixit.Sunita@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "sunita.dixit.asha@gmail.com", "Dixit.Sunita@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	res, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode)
	if err != nil {
		t.Fatalf("VerifyOTP failed: %v", err)
	}

	claims, err := f.tokens.Verify(res.Token)
	if err != nil {
		t.Fatalf("issued token did not verify: %v", err)
	}
	if claims.UserID != login.UserID || claims.Email != login.Email || claims.Role != model.RoleASHA {
		t.Errorf("claims = %+v, want user %s", claims, login.UserID)
	}

	if res.User.LastLoginAt == nil || !res.User.LastLoginAt.Equal(f.clock.Now()) {
		t.Errorf("LastLoginAt = %v, want %v", res.User.LastLoginAt, f.clock.Now())
	}
	stored, _ := f.users.FindByID(ctx, login.UserID)
	if stored.LastLoginAt == nil {
		t.Error("LastLoginAt not persisted")
	}

	// Single use: the same code is dead after success.
	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("reused code = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyOTPValidation(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)

	if _, err := f.svc.VerifyOTP(ctx, "", "a@b.c", "123456"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing user ID = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, "u1", "", "123456"); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing email = %v, want ErrInvalidInput", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, "u1", "a@b.c", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("missing code = %v, want ErrInvalidInput", err)
	}
	// Malformed codes are rejected before any lookup.
	if _, err := f.svc.VerifyOTP(ctx, "u1", "a@b.c", "12345"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("short code = %v, want ErrInvalidCode", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, "u1", "a@b.c", "12345a"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("non-numeric code = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyOTPNoLiveRecord(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	if _, err := f.svc.VerifyOTP(ctx, user.UserID, "a@b.c", "123456"); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("no live record = %v, want ErrInvalidCode", err)
	}
}

func TestVerifyOTPExhaustionAfterThreeWrongCodes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "a@b.c", "Right@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	wrong := "000000"
	if wrong == login.RawCode {
		wrong = "000001"
	}

	// First two wrong submissions report an invalid code.
	for i := 0; i < 2; i++ {
		if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, wrong); !errors.Is(err, ErrInvalidCode) {
			t.Fatalf("wrong attempt %d = %v, want ErrInvalidCode", i+1, err)
		}
	}
	// The third exhausts the code.
	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, wrong); !errors.Is(err, ErrCodeExpiredOrExhausted) {
		t.Fatalf("third wrong attempt = %v, want ErrCodeExpiredOrExhausted", err)
	}

	// Even the correct code is dead once exhausted.
	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode); !errors.Is(err, ErrInvalidCode) {
		t.Errorf("correct code after exhaustion = %v, want ErrInvalidCode", err)
	}

	if f.events.countOf(audit.EventOTPFailed) != 3 {
		t.Errorf("otp_failed events = %d, want 3", f.events.countOf(audit.EventOTPFailed))
	}
}

func TestVerifyOTPExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "a@b.c", "Right@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	f.clock.Advance(2*time.Minute + time.Second)

	res, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode)
	if !errors.Is(err, ErrCodeExpiredOrExhausted) {
		t.Fatalf("expired code = %v, want ErrCodeExpiredOrExhausted", err)
	}
	if res != nil {
		t.Error("token issued for an expired code")
	}
	if f.events.countOf(audit.EventOTPVerified) != 0 {
		t.Error("otp_verified published for an expired code")
	}
}

func TestVerifyOTPJustInsideExpiry(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "a@b.c", "Right@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Exactly at the boundary is still valid; expiry means strictly after.
	f.clock.Advance(2 * time.Minute)

	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode); err != nil {
		t.Fatalf("code at expiry boundary = %v, want success", err)
	}
}

func TestResendOTPSupersedes(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "a@b.c", "Right@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}

	// Burn one attempt against the first code.
	wrong := "000000"
	if wrong == login.RawCode {
		wrong = "000001"
	}
	f.svc.VerifyOTP(ctx, login.UserID, login.Email, wrong)

	f.clock.Advance(time.Minute)
	newCode, err := f.svc.ResendOTP(ctx, login.UserID, login.Email, "")
	if err != nil {
		t.Fatalf("ResendOTP failed: %v", err)
	}

	// The old code is dead, regardless of its remaining window.
	if newCode != login.RawCode {
		if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, login.RawCode); !errors.Is(err, ErrInvalidCode) {
			t.Errorf("superseded code = %v, want ErrInvalidCode", err)
		}
	}

	// The fresh record has a full window and a clean attempt counter.
	rec, err := f.otps.GetLive(ctx, login.UserID, login.Email)
	if err != nil || rec == nil {
		t.Fatalf("GetLive = (%+v, %v)", rec, err)
	}
	if rec.AttemptCount != 0 {
		t.Errorf("fresh record attempts = %d, want 0", rec.AttemptCount)
	}
	if got := rec.ExpiresAt.Sub(f.clock.Now()); got != 2*time.Minute {
		t.Errorf("fresh record window = %v, want 2m", got)
	}

	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, newCode); err != nil {
		t.Fatalf("fresh code rejected: %v", err)
	}
}

func TestResendOTPAfterExhaustionRecovers(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	login, err := f.svc.Login(ctx, "a@b.c", "Right@123", "")
	if err != nil {
		t.Fatalf("Login failed: %v", err)
	}
	wrong := "000000"
	if wrong == login.RawCode {
		wrong = "000001"
	}
	for i := 0; i < 3; i++ {
		f.svc.VerifyOTP(ctx, login.UserID, login.Email, wrong)
	}

	newCode, err := f.svc.ResendOTP(ctx, login.UserID, login.Email, "")
	if err != nil {
		t.Fatalf("ResendOTP after exhaustion failed: %v", err)
	}
	if _, err := f.svc.VerifyOTP(ctx, login.UserID, login.Email, newCode); err != nil {
		t.Fatalf("fresh code after exhaustion rejected: %v", err)
	}
}

func TestResendOTPUnknownUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "a@b.c", "Right@123", model.RoleASHA, true)

	if _, err := f.svc.ResendOTP(ctx, "no-such-id", "a@b.c", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("unknown user = %v, want ErrUserNotFound", err)
	}
	if _, err := f.svc.ResendOTP(ctx, user.UserID, "other@b.c", ""); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("mismatched email = %v, want ErrUserNotFound", err)
	}
	if _, err := f.svc.ResendOTP(ctx, "", "", ""); !errors.Is(err, ErrInvalidInput) {
		t.Errorf("empty fields = %v, want ErrInvalidInput", err)
	}
}

func TestCurrentUser(t *testing.T) {
	ctx := context.Background()
	f := newFixture(t)
	user := f.addUser(t, "a@b.c", "Right@123", model.RoleAdmin, true)

	got, err := f.svc.CurrentUser(ctx, user.UserID)
	if err != nil {
		t.Fatalf("CurrentUser failed: %v", err)
	}
	if got.Email != "a@b.c" || got.Role != model.RoleAdmin {
		t.Errorf("CurrentUser = %+v", got)
	}

	if _, err := f.svc.CurrentUser(ctx, "ghost"); !errors.Is(err, ErrUserNotFound) {
		t.Errorf("CurrentUser(ghost) = %v, want ErrUserNotFound", err)
	}
}

func TestLogoutPublishesEvent(t *testing.T) {
	f := newFixture(t)
	f.svc.Logout(context.Background(), "u1")
	if f.events.countOf(audit.EventLogout) != 1 {
		t.Error("logout event not published")
	}
}
