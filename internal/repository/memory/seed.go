package memory

import (
	"context"

	"go.uber.org/zap"

	"asha-portal/internal/hashing"
	"asha-portal/internal/model"
	"asha-portal/internal/util"
)

type seedUser struct {
	Email    string
	Password string
	Role     string
}

// Demo accounts for local development only.
var demoUsers = []seedUser{
	{Email: "admin@gmail.com", Password: "Admin@123", Role: model.RoleAdmin},
	{Email: "sunita.dixit.asha@gmail.com", Password: "Dixit.Sunita@123", Role: model.RoleASHA},
}

// SeedDemoUsers provisions the demo accounts, skipping any that exist.
func SeedDemoUsers(ctx context.Context, store *UserStore) error {
	for _, seed := range demoUsers {
		existing, err := store.FindByEmail(ctx, seed.Email)
		if err != nil {
			return err
		}
		if existing != nil {
			continue
		}

		hash, err := hashing.HashPassword(seed.Password)
		if err != nil {
			return err
		}
		user := &model.User{
			Email:        seed.Email,
			PasswordHash: hash,
			Role:         seed.Role,
			IsActive:     true,
		}
		if err := store.Create(ctx, user); err != nil {
			return err
		}
		util.Info("Seeded demo user",
			zap.String("email", user.Email),
			zap.String("role", user.Role))
	}
	return nil
}
