package memory

import (
	"context"
	"testing"

	"asha-portal/internal/hashing"
	"asha-portal/internal/model"
)

func TestSeedDemoUsers(t *testing.T) {
	ctx := context.Background()
	store := NewUserStore(nil)

	if err := SeedDemoUsers(ctx, store); err != nil {
		t.Fatalf("SeedDemoUsers failed: %v", err)
	}

	admin, err := store.FindByEmail(ctx, "admin@gmail.com")
	if err != nil || admin == nil {
		t.Fatalf("admin account missing after seed: %v", err)
	}
	if admin.Role != model.RoleAdmin || !admin.IsActive {
		t.Errorf("admin = %+v", admin)
	}
	if !hashing.CheckPassword(admin.PasswordHash, "Admin@123") {
		t.Error("admin password hash does not match the demo credential")
	}
	if admin.PasswordHash == "Admin@123" {
		t.Error("admin password stored in the clear")
	}

	asha, err := store.FindByEmail(ctx, "sunita.dixit.asha@gmail.com")
	if err != nil || asha == nil {
		t.Fatalf("ASHA account missing after seed: %v", err)
	}
	if asha.Role != model.RoleASHA {
		t.Errorf("ASHA role = %q", asha.Role)
	}

	// Re-seeding skips existing accounts rather than failing on duplicates.
	if err := SeedDemoUsers(ctx, store); err != nil {
		t.Fatalf("repeat SeedDemoUsers failed: %v", err)
	}
	again, _ := store.FindByEmail(ctx, "admin@gmail.com")
	if again.UserID != admin.UserID {
		t.Error("re-seed replaced the existing admin account")
	}
}
