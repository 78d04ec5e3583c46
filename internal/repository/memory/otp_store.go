package memory

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"asha-portal/internal/model"
	"asha-portal/internal/util"
	"go.uber.org/zap"
)

// OTPStore keeps one live code per (user, email) pair in memory, with an
// injected clock and an explicit expiry sweep. Deleting an already-gone
// record is not an error; the sweep and request handling may race benignly.
type OTPStore struct {
	mu      sync.Mutex
	records map[string]*model.OTP // pairKey(userID, email) -> record
	now     func() time.Time
}

func NewOTPStore(now func() time.Time) *OTPStore {
	if now == nil {
		now = time.Now
	}
	return &OTPStore{
		records: make(map[string]*model.OTP),
		now:     now,
	}
}

func pairKey(userID, email string) string {
	return userID + "|" + util.NormalizeEmail(email)
}

// Replace supersedes any prior code for the record's (user, email) pair.
func (s *OTPStore) Replace(ctx context.Context, rec *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec.OTPID == "" {
		rec.OTPID = uuid.New().String()
	}
	rec.Email = util.NormalizeEmail(rec.Email)
	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = s.now().UTC()
	}

	clone := *rec
	s.records[pairKey(rec.UserID, rec.Email)] = &clone
	return nil
}

// GetLive returns the unused record for the pair, or (nil, nil) when none
// exists. Expiry and attempt caps are the caller's decision.
func (s *OTPStore) GetLive(ctx context.Context, userID, email string) (*model.OTP, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	rec, ok := s.records[pairKey(userID, email)]
	if !ok || rec.IsUsed {
		return nil, nil
	}
	clone := *rec
	return &clone, nil
}

func (s *OTPStore) IncrementAttempts(ctx context.Context, rec *model.OTP) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[pairKey(rec.UserID, rec.Email)]
	if !ok || stored.OTPID != rec.OTPID {
		return 0, fmt.Errorf("otp record not found: %s", rec.OTPID)
	}
	stored.AttemptCount++
	return stored.AttemptCount, nil
}

func (s *OTPStore) MarkUsed(ctx context.Context, rec *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	stored, ok := s.records[pairKey(rec.UserID, rec.Email)]
	if !ok || stored.OTPID != rec.OTPID {
		return fmt.Errorf("otp record not found: %s", rec.OTPID)
	}
	stored.IsUsed = true
	return nil
}

func (s *OTPStore) Delete(ctx context.Context, rec *model.OTP) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := pairKey(rec.UserID, rec.Email)
	if stored, ok := s.records[key]; ok && stored.OTPID == rec.OTPID {
		delete(s.records, key)
	}
	return nil
}

// DeleteExpired removes every record past its expiry. Idempotent.
func (s *OTPStore) DeleteExpired(ctx context.Context) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now()
	removed := 0
	for key, rec := range s.records {
		if now.After(rec.ExpiresAt) {
			delete(s.records, key)
			removed++
		}
	}
	return removed, nil
}

// StartSweeper runs DeleteExpired on a ticker until the context is canceled.
func (s *OTPStore) StartSweeper(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			removed, _ := s.DeleteExpired(ctx)
			if removed > 0 {
				util.Debug("Expired OTP records swept", zap.Int("removed", removed))
			}
		}
	}
}
