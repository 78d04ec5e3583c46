package memory

import (
	"context"
	"testing"
	"time"

	"asha-portal/internal/model"
)

func TestUserStoreCreateAndFind(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	user := &model.User{
		Email:        "Sunita.Dixit.ASHA@Gmail.com",
		PasswordHash: "hash",
		Role:         model.RoleASHA,
		IsActive:     true,
	}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if user.UserID == "" {
		t.Fatal("Create did not assign a user ID")
	}
	if user.Email != "sunita.dixit.asha@gmail.com" {
		t.Errorf("email not normalized: %q", user.Email)
	}

	// Lookups are case-insensitive on email.
	found, err := store.FindByEmail(ctx, "SUNITA.DIXIT.ASHA@GMAIL.COM")
	if err != nil {
		t.Fatalf("FindByEmail failed: %v", err)
	}
	if found == nil || found.UserID != user.UserID {
		t.Fatalf("FindByEmail = %+v, want user %s", found, user.UserID)
	}

	byID, err := store.FindByID(ctx, user.UserID)
	if err != nil {
		t.Fatalf("FindByID failed: %v", err)
	}
	if byID == nil || byID.Email != user.Email {
		t.Fatalf("FindByID = %+v", byID)
	}
}

func TestUserStoreMissingIsNilNil(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	found, err := store.FindByEmail(ctx, "nobody@example.com")
	if err != nil || found != nil {
		t.Fatalf("FindByEmail(missing) = (%+v, %v), want (nil, nil)", found, err)
	}
	found, err = store.FindByID(ctx, "no-such-id")
	if err != nil || found != nil {
		t.Fatalf("FindByID(missing) = (%+v, %v), want (nil, nil)", found, err)
	}
}

func TestUserStoreRejectsDuplicateEmail(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	if err := store.Create(ctx, &model.User{Email: "a@b.c"}); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if err := store.Create(ctx, &model.User{Email: "A@B.C"}); err == nil {
		t.Fatal("duplicate email accepted")
	}
}

func TestUserStoreReturnsClones(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	user := &model.User{Email: "a@b.c", IsActive: true}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	first, _ := store.FindByID(ctx, user.UserID)
	first.IsActive = false
	first.Email = "mutated@b.c"

	second, _ := store.FindByID(ctx, user.UserID)
	if !second.IsActive || second.Email != "a@b.c" {
		t.Error("mutation of a returned user leaked into the store")
	}
}

func TestUserStoreLoginAttemptLifecycle(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	user := &model.User{Email: "a@b.c", IsActive: true}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}

	for want := 1; want <= 3; want++ {
		got, err := store.IncrementLoginAttempts(ctx, user.UserID)
		if err != nil {
			t.Fatalf("IncrementLoginAttempts failed: %v", err)
		}
		if got != want {
			t.Fatalf("attempt count = %d, want %d", got, want)
		}
	}

	if err := store.SetLocked(ctx, user.UserID, true); err != nil {
		t.Fatalf("SetLocked failed: %v", err)
	}
	locked, _ := store.FindByID(ctx, user.UserID)
	if !locked.IsLocked {
		t.Error("user not locked after SetLocked")
	}

	if err := store.ResetLoginAttempts(ctx, user.UserID); err != nil {
		t.Fatalf("ResetLoginAttempts failed: %v", err)
	}
	reset, _ := store.FindByID(ctx, user.UserID)
	if reset.LoginAttempts != 0 {
		t.Errorf("attempts = %d after reset, want 0", reset.LoginAttempts)
	}
	// Reset touches the counter only, never the lock.
	if !reset.IsLocked {
		t.Error("ResetLoginAttempts cleared the lock")
	}
}

func TestUserStoreUpdateLastLogin(t *testing.T) {
	ctx := context.Background()
	clock := newFakeClock(time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC))
	store := NewUserStore(clock.Now)

	user := &model.User{Email: "a@b.c"}
	if err := store.Create(ctx, user); err != nil {
		t.Fatalf("Create failed: %v", err)
	}
	if found, _ := store.FindByID(ctx, user.UserID); found.LastLoginAt != nil {
		t.Fatal("LastLoginAt set before any login")
	}

	at := clock.Now().Add(5 * time.Minute)
	if err := store.UpdateLastLogin(ctx, user.UserID, at); err != nil {
		t.Fatalf("UpdateLastLogin failed: %v", err)
	}
	found, _ := store.FindByID(ctx, user.UserID)
	if found.LastLoginAt == nil || !found.LastLoginAt.Equal(at) {
		t.Errorf("LastLoginAt = %v, want %v", found.LastLoginAt, at)
	}
}

func TestUserStoreOpsOnMissingUser(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	if _, err := store.IncrementLoginAttempts(ctx, "ghost"); err == nil {
		t.Error("IncrementLoginAttempts on missing user succeeded")
	}
	if err := store.ResetLoginAttempts(ctx, "ghost"); err == nil {
		t.Error("ResetLoginAttempts on missing user succeeded")
	}
	if err := store.SetLocked(ctx, "ghost", true); err == nil {
		t.Error("SetLocked on missing user succeeded")
	}
	if err := store.UpdateLastLogin(ctx, "ghost", time.Now()); err == nil {
		t.Error("UpdateLastLogin on missing user succeeded")
	}
}
