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

// UserRepository persists user accounts across two tables: users_by_email
// (lookup partition) and users_by_id. Both are written in a logged batch.
type UserRepository struct {
	client *Client
}

func NewUserRepository(client *Client) *UserRepository {
	return &UserRepository{client: client}
}

const userColumns = `user_id, email, password_hash, role, is_active, is_locked,
	login_attempts, last_login_at, created_at, updated_at`

func (r *UserRepository) Create(ctx context.Context, user *model.User) error {
	if user.UserID == "" {
		user.UserID = uuid.New().String()
	}
	user.Email = util.NormalizeEmail(user.Email)

	now := time.Now().UTC()
	user.CreatedAt = now
	user.UpdatedAt = now

	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)
	for _, table := range []string{"users_by_email", "users_by_id"} {
		batch.Query(
			fmt.Sprintf(`INSERT INTO %s (%s) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`, table, userColumns),
			user.UserID, user.Email, user.PasswordHash, user.Role, user.IsActive,
			user.IsLocked, user.LoginAttempts, user.LastLoginAt, user.CreatedAt, user.UpdatedAt)
	}

	if err := r.client.Session.ExecuteBatch(batch); err != nil {
		util.Error("Failed to create user",
			zap.String("email", user.Email),
			zap.String("user_id", user.UserID),
			zap.Error(err))
		return fmt.Errorf("failed to create user: %w", err)
	}

	util.Info("User created",
		zap.String("user_id", user.UserID),
		zap.String("role", user.Role))
	return nil
}

func (r *UserRepository) FindByEmail(ctx context.Context, email string) (*model.User, error) {
	email = util.NormalizeEmail(email)
	query := r.client.Session.Query(
		fmt.Sprintf(`SELECT %s FROM users_by_email WHERE email = ?`, userColumns), email,
	).WithContext(ctx)

	user, err := r.scanUser(query)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		util.Error("Failed to get user by email", zap.Error(err))
		return nil, fmt.Errorf("failed to get user by email: %w", err)
	}
	return user, nil
}

func (r *UserRepository) FindByID(ctx context.Context, userID string) (*model.User, error) {
	query := r.client.Session.Query(
		fmt.Sprintf(`SELECT %s FROM users_by_id WHERE user_id = ?`, userColumns), userID,
	).WithContext(ctx)

	user, err := r.scanUser(query)
	if err != nil {
		if err == gocql.ErrNotFound {
			return nil, nil
		}
		util.Error("Failed to get user by ID",
			zap.String("user_id", userID),
			zap.Error(err))
		return nil, fmt.Errorf("failed to get user by ID: %w", err)
	}
	return user, nil
}

func (r *UserRepository) scanUser(query *gocql.Query) (*model.User, error) {
	user := &model.User{}
	var lastLogin time.Time
	err := r.client.ScanWithRetry(query,
		&user.UserID, &user.Email, &user.PasswordHash, &user.Role, &user.IsActive,
		&user.IsLocked, &user.LoginAttempts, &lastLogin, &user.CreatedAt, &user.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if !lastLogin.IsZero() {
		user.LastLoginAt = &lastLogin
	}
	return user, nil
}

// IncrementLoginAttempts is a read-modify-write; last write wins, which is
// acceptable for this counter.
func (r *UserRepository) IncrementLoginAttempts(ctx context.Context, userID string) (int, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return 0, err
	}
	if user == nil {
		return 0, fmt.Errorf("user not found: %s", userID)
	}

	attempts := user.LoginAttempts + 1
	if err := r.updateBoth(ctx, user,
		`SET login_attempts = ?, updated_at = ?`, attempts, time.Now().UTC()); err != nil {
		return 0, fmt.Errorf("failed to increment login attempts: %w", err)
	}
	return attempts, nil
}

func (r *UserRepository) ResetLoginAttempts(ctx context.Context, userID string) error {
	user, err := r.mustFind(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.updateBoth(ctx, user,
		`SET login_attempts = 0, updated_at = ?`, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to reset login attempts: %w", err)
	}
	return nil
}

func (r *UserRepository) SetLocked(ctx context.Context, userID string, locked bool) error {
	user, err := r.mustFind(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.updateBoth(ctx, user,
		`SET is_locked = ?, updated_at = ?`, locked, time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update lock flag: %w", err)
	}
	util.Info("User lock flag updated",
		zap.String("user_id", userID),
		zap.Bool("locked", locked))
	return nil
}

func (r *UserRepository) UpdateLastLogin(ctx context.Context, userID string, at time.Time) error {
	user, err := r.mustFind(ctx, userID)
	if err != nil {
		return err
	}
	if err := r.updateBoth(ctx, user,
		`SET last_login_at = ?, updated_at = ?`, at.UTC(), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update last login: %w", err)
	}
	return nil
}

func (r *UserRepository) mustFind(ctx context.Context, userID string) (*model.User, error) {
	user, err := r.FindByID(ctx, userID)
	if err != nil {
		return nil, err
	}
	if user == nil {
		return nil, fmt.Errorf("user not found: %s", userID)
	}
	return user, nil
}

// updateBoth applies the same SET clause to users_by_email and users_by_id.
func (r *UserRepository) updateBoth(ctx context.Context, user *model.User, setClause string, values ...interface{}) error {
	batch := r.client.Session.NewBatch(gocql.LoggedBatch).WithContext(ctx)

	emailArgs := append(append([]interface{}{}, values...), user.Email)
	batch.Query(fmt.Sprintf(`UPDATE users_by_email %s WHERE email = ?`, setClause), emailArgs...)

	idArgs := append(append([]interface{}{}, values...), user.UserID)
	batch.Query(fmt.Sprintf(`UPDATE users_by_id %s WHERE user_id = ?`, setClause), idArgs...)

	return r.client.Session.ExecuteBatch(batch)
}
