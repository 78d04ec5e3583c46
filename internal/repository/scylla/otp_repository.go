package scylla

import (
	"context"
	"fmt"
	"time"

	"github.com/gocql/gocql"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"asha-portal/internal/model"
	"asha-portal/internal/util"
)

// ttlGrace keeps expired rows readable slightly past their expiry so the
// service can report "expired" instead of "invalid".
const ttlGrace = time.Minute

// OTPRepository stores one row per (user_id, email) pair, so inserting a new
// code supersedes the prior one by primary key. Rows carry a TTL; stale
// records are dropped by the storage engine itself.
type OTPRepository struct {
	client *Client
}

func NewOTPRepository(client *Client) *OTPRepository {
	return &OTPRepository{client: client}
}

func (r *OTPRepository) Replace(ctx context.Context, rec *model.OTP) error {
	if rec.OTPID == "" {
		rec.OTPID = uuid.New().String()
	}
	rec.Email = util.NormalizeEmail(rec.Email)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = time.Now().UTC()
	}

	ttl := int(time.Until(rec.ExpiresAt).Seconds() + ttlGrace.Seconds())
	if ttl <= 0 {
		return fmt.Errorf("otp record already expired")
	}

	query := r.client.Session.Query(`
		INSERT INTO otps (user_id, email, otp_id, code_hash, code_salt,
			attempt_count, is_used, expires_at, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?) USING TTL ?`,
		rec.UserID, rec.Email, rec.OTPID, rec.CodeHash, rec.CodeSalt,
		rec.AttemptCount, rec.IsUsed, rec.ExpiresAt, rec.CreatedAt, ttl,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to store OTP record",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to store OTP record: %w", err)
	}

	util.Debug("OTP record stored",
		zap.String("user_id", rec.UserID),
		zap.Time("expires_at", rec.ExpiresAt))
	return nil
}

func (r *OTPRepository) GetLive(ctx context.Context, userID, email string) (*model.OTP, error) {
	rec := &model.OTP{}
	query := r.client.Session.Query(`
		SELECT user_id, email, otp_id, code_hash, code_salt,
			attempt_count, is_used, expires_at, created_at
		FROM otps WHERE user_id = ? AND email = ?`,
		userID, util.NormalizeEmail(email),
	).WithContext(ctx)

	err := r.client.ScanWithRetry(query,
		&rec.UserID, &rec.Email, &rec.OTPID, &rec.CodeHash, &rec.CodeSalt,
		&rec.AttemptCount, &rec.IsUsed, &rec.ExpiresAt, &rec.CreatedAt)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		util.Error("Failed to get OTP record",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get OTP record: %w", err)
	}

	if rec.IsUsed {
		return nil, nil
	}
	return rec, nil
}

func (r *OTPRepository) IncrementAttempts(ctx context.Context, rec *model.OTP) (int, error) {
	attempts := rec.AttemptCount + 1
	query := r.client.Session.Query(`
		UPDATE otps SET attempt_count = ? WHERE user_id = ? AND email = ?`,
		attempts, rec.UserID, rec.Email,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to increment OTP attempts",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
		return 0, fmt.Errorf("failed to increment OTP attempts: %w", err)
	}
	return attempts, nil
}

func (r *OTPRepository) MarkUsed(ctx context.Context, rec *model.OTP) error {
	query := r.client.Session.Query(`
		UPDATE otps SET is_used = true WHERE user_id = ? AND email = ?`,
		rec.UserID, rec.Email,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to mark OTP as used",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to mark OTP as used: %w", err)
	}
	return nil
}

func (r *OTPRepository) Delete(ctx context.Context, rec *model.OTP) error {
	query := r.client.Session.Query(`
		DELETE FROM otps WHERE user_id = ? AND email = ?`,
		rec.UserID, rec.Email,
	).WithContext(ctx)

	if err := r.client.ExecuteWithRetry(query, 2); err != nil {
		util.Error("Failed to delete OTP record",
			zap.String("user_id", rec.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to delete OTP record: %w", err)
	}
	return nil
}

// DeleteExpired is satisfied by the row TTL; nothing to sweep here.
func (r *OTPRepository) DeleteExpired(ctx context.Context) (int, error) {
	return 0, nil
}
