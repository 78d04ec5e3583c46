package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"asha-portal/internal/audit"
	"asha-portal/internal/hashing"
	"asha-portal/internal/model"
	"asha-portal/internal/otp"
	"asha-portal/internal/token"
	"asha-portal/internal/util"
)

var (
	// ErrInvalidInput covers missing or malformed request fields.
	ErrInvalidInput = errors.New("invalid input")
	// ErrInvalidCredentials is shared between unknown-email and
	// wrong-password so callers cannot enumerate accounts.
	ErrInvalidCredentials = errors.New("invalid email or password")
	ErrAccountLocked      = errors.New("account is locked")
	ErrAccountDeactivated = errors.New("account is deactivated")
	ErrInvalidCode        = errors.New("invalid OTP")
	// ErrCodeExpiredOrExhausted covers both expiry and the attempt cap.
	ErrCodeExpiredOrExhausted = errors.New("OTP has expired or exceeded maximum attempts")
	ErrUserNotFound           = errors.New("user not found")
)

// AuthService orchestrates the login, OTP verification, and token issuance
// flow. Validation and policy failures surface as the sentinel errors above;
// anything else is an infrastructure failure.
type AuthService struct {
	users  model.UserStore
	otps   model.OTPStore
	tokens *token.Manager
	hasher *hashing.Hasher
	audit  audit.Publisher
	logger *zap.Logger

	lockThreshold  int
	otpExpiry      time.Duration
	maxOTPAttempts int

	now func() time.Time
}

type Options struct {
	LockThreshold  int
	OTPExpiry      time.Duration
	MaxOTPAttempts int
	Now            func() time.Time
}

func NewAuthService(
	users model.UserStore,
	otps model.OTPStore,
	tokens *token.Manager,
	hasher *hashing.Hasher,
	publisher audit.Publisher,
	logger *zap.Logger,
	opts Options,
) *AuthService {
	if opts.LockThreshold <= 0 {
		opts.LockThreshold = 5
	}
	if opts.OTPExpiry <= 0 {
		opts.OTPExpiry = 2 * time.Minute
	}
	if opts.MaxOTPAttempts <= 0 {
		opts.MaxOTPAttempts = 3
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if publisher == nil {
		publisher = audit.NopPublisher{}
	}

	return &AuthService{
		users:          users,
		otps:           otps,
		tokens:         tokens,
		hasher:         hasher,
		audit:          publisher,
		logger:         logger,
		lockThreshold:  opts.LockThreshold,
		otpExpiry:      opts.OTPExpiry,
		maxOTPAttempts: opts.MaxOTPAttempts,
		now:            opts.Now,
	}
}

// LoginResult is returned on a successful password check. RawCode carries
// the freshly minted OTP for the delivery mechanism; handlers must never
// echo it to the client outside of development.
type LoginResult struct {
	UserID      string
	Email       string
	Role        string
	RequiresOTP bool
	RawCode     string
}

// Login checks credentials and, on success, issues an OTP for the second
// factor. Failed password checks count toward the lock threshold.
func (s *AuthService) Login(ctx context.Context, email, password, clientIP string) (*LoginResult, error) {
	email = util.NormalizeEmail(email)
	if email == "" || password == "" {
		return nil, fmt.Errorf("%w: email and password are required", ErrInvalidInput)
	}

	user, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if user == nil {
		// Same failure as wrong password, on purpose.
		return nil, ErrInvalidCredentials
	}

	if user.IsLocked {
		return nil, ErrAccountLocked
	}
	if !user.IsActive {
		return nil, ErrAccountDeactivated
	}

	if !hashing.CheckPassword(user.PasswordHash, password) {
		attempts, err := s.users.IncrementLoginAttempts(ctx, user.UserID)
		if err != nil {
			return nil, err
		}
		s.audit.Publish(ctx, audit.Event{
			UserID:    user.UserID,
			Email:     user.Email,
			EventType: audit.EventLoginFailed,
			IPAddress: clientIP,
		})
		if attempts >= s.lockThreshold {
			if err := s.users.SetLocked(ctx, user.UserID, true); err != nil {
				return nil, err
			}
			s.audit.Publish(ctx, audit.Event{
				UserID:    user.UserID,
				Email:     user.Email,
				EventType: audit.EventAccountLocked,
				IPAddress: clientIP,
				Details:   fmt.Sprintf("locked after %d failed attempts", attempts),
			})
			s.logger.Warn("Account locked after repeated failed logins",
				zap.String("user_id", user.UserID),
				zap.Int("attempts", attempts))
		}
		return nil, ErrInvalidCredentials
	}

	if err := s.users.ResetLoginAttempts(ctx, user.UserID); err != nil {
		return nil, err
	}

	rawCode, err := s.issueOTP(ctx, user, clientIP)
	if err != nil {
		return nil, err
	}

	return &LoginResult{
		UserID:      user.UserID,
		Email:       user.Email,
		Role:        user.Role,
		RequiresOTP: true,
		RawCode:     rawCode,
	}, nil
}

// VerifyResult carries the session token and the user it was issued for.
type VerifyResult struct {
	Token string
	User  *model.User
}

// VerifyOTP validates a submitted code against the live record for the
// (user, email) pair. Wrong submissions increment the record's attempt
// counter; reaching the cap consumes the record.
func (s *AuthService) VerifyOTP(ctx context.Context, userID, email, code string) (*VerifyResult, error) {
	email = util.NormalizeEmail(email)
	if userID == "" || email == "" || code == "" {
		return nil, fmt.Errorf("%w: user ID, email, and OTP are required", ErrInvalidInput)
	}
	if !otp.ValidFormat(code) {
		return nil, ErrInvalidCode
	}

	rec, err := s.otps.GetLive(ctx, userID, email)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, ErrInvalidCode
	}

	if s.now().After(rec.ExpiresAt) || rec.AttemptCount >= s.maxOTPAttempts {
		return nil, ErrCodeExpiredOrExhausted
	}

	match, err := s.hasher.VerifyCode(code, &hashing.HashResult{Hash: rec.CodeHash, Salt: rec.CodeSalt})
	if err != nil {
		return nil, err
	}
	if !match {
		attempts, err := s.otps.IncrementAttempts(ctx, rec)
		if err != nil {
			return nil, err
		}
		s.audit.Publish(ctx, audit.Event{
			UserID:    userID,
			Email:     email,
			EventType: audit.EventOTPFailed,
			Details:   fmt.Sprintf("attempt %d of %d", attempts, s.maxOTPAttempts),
		})
		if attempts >= s.maxOTPAttempts {
			// Exhausted codes are gone for good; only a resend helps.
			if err := s.otps.Delete(ctx, rec); err != nil {
				return nil, err
			}
			return nil, ErrCodeExpiredOrExhausted
		}
		return nil, ErrInvalidCode
	}

	if err := s.otps.MarkUsed(ctx, rec); err != nil {
		return nil, err
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil || !user.IsActive {
		// OTP matched but the account is gone or inactive; an integrity
		// anomaly rather than a credential failure.
		return nil, ErrUserNotFound
	}

	signed, err := s.tokens.Issue(user.UserID, user.Email, user.Role)
	if err != nil {
		return nil, err
	}

	loginAt := s.now().UTC()
	if err := s.users.UpdateLastLogin(ctx, user.UserID, loginAt); err != nil {
		return nil, err
	}
	user.LastLoginAt = &loginAt

	s.audit.Publish(ctx, audit.Event{
		UserID:    user.UserID,
		Email:     user.Email,
		EventType: audit.EventOTPVerified,
	})
	s.logger.Info("OTP verified, session token issued",
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role))

	return &VerifyResult{Token: signed, User: user}, nil
}

// ResendOTP supersedes the prior code for the pair and restarts the expiry
// clock. The attempt counter starts at zero on the fresh record.
func (s *AuthService) ResendOTP(ctx context.Context, userID, email, clientIP string) (string, error) {
	email = util.NormalizeEmail(email)
	if userID == "" || email == "" {
		return "", fmt.Errorf("%w: user ID and email are required", ErrInvalidInput)
	}

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return "", err
	}
	if user == nil || user.Email != email || !user.IsActive {
		return "", ErrUserNotFound
	}

	return s.issueOTP(ctx, user, clientIP)
}

// Logout acknowledges the call. There is no server-side token state to
// discard; clients drop the token themselves.
func (s *AuthService) Logout(ctx context.Context, userID string) {
	s.audit.Publish(ctx, audit.Event{
		UserID:    userID,
		EventType: audit.EventLogout,
	})
}

// CurrentUser loads the account behind a verified token.
func (s *AuthService) CurrentUser(ctx context.Context, userID string) (*model.User, error) {
	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, ErrUserNotFound
	}
	return user, nil
}

func (s *AuthService) issueOTP(ctx context.Context, user *model.User, clientIP string) (string, error) {
	rawCode, err := otp.GenerateCode()
	if err != nil {
		return "", err
	}

	hashed, err := s.hasher.HashCode(rawCode)
	if err != nil {
		return "", err
	}

	now := s.now().UTC()
	rec := &model.OTP{
		UserID:    user.UserID,
		Email:     user.Email,
		CodeHash:  hashed.Hash,
		CodeSalt:  hashed.Salt,
		ExpiresAt: now.Add(s.otpExpiry),
		CreatedAt: now,
	}
	if err := s.otps.Replace(ctx, rec); err != nil {
		return "", err
	}

	s.audit.Publish(ctx, audit.Event{
		UserID:    user.UserID,
		Email:     user.Email,
		EventType: audit.EventOTPIssued,
		IPAddress: clientIP,
	})
	s.logger.Info("OTP issued",
		zap.String("user_id", user.UserID),
		zap.Time("expires_at", rec.ExpiresAt))

	return rawCode, nil
}
