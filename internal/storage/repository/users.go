package repository

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

const userColumns = `uid, name, email, password_hash, role, tier, stripe_customer_id, download_count, created_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanUser(row rowScanner) (*models.User, error) {
	var (
		u          models.User
		customerID sql.NullString
		tier       string
	)
	if err := row.Scan(&u.UUID, &u.Name, &u.Email, &u.PasswordHash, &u.Role, &tier,
		&customerID, &u.DownloadCount, &u.CreatedAt); err != nil {
		return nil, err
	}
	u.Tier = models.Tier(tier)
	u.StripeCustomerID = customerID.String
	return &u, nil
}

// RegisterUser сохраняет нового пользователя и возвращает его ID.
func (s *Storage) RegisterUser(ctx context.Context, user models.User) (string, error) {
	const op = "storage.RegisterUser"
	select {
	case <-ctx.Done():
		return "", fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `INSERT INTO users (name, email, password_hash, role, tier)
			  VALUES ($1, $2, $3, $4, $5)
			  RETURNING uid`
	var newID string
	if err := s.DB.QueryRowContext(ctx, query,
		user.Name, user.Email, user.PasswordHash, user.Role, string(user.Tier)).Scan(&newID); err != nil {
		if isUniqueViolation(err) {
			return "", fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
		}
		return "", fmt.Errorf("%s: %w", op, err)
	}
	return newID, nil
}

// GetUser возвращает пользователя по его UID.
func (s *Storage) GetUser(ctx context.Context, userUID string) (*models.User, error) {
	const op = "storage.GetUser"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE uid = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// GetUserByEmail возвращает пользователя по email.
func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	const op = "storage.GetUserByEmail"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `SELECT ` + userColumns + ` FROM users WHERE email = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, email))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// GetUserByStripeCustomer ищет пользователя по идентификатору клиента Stripe.
func (s *Storage) GetUserByStripeCustomer(ctx context.Context, customerID string) (*models.User, error) {
	const op = "storage.GetUserByStripeCustomer"

	query := `SELECT ` + userColumns + ` FROM users WHERE stripe_customer_id = $1`
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, customerID))
	if err != nil {
		return nil, notFound(op, err)
	}
	return u, nil
}

// ListUsers возвращает всех пользователей, новые первыми.
func (s *Storage) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "storage.ListUsers"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	rows, err := s.DB.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	defer func() {
		_ = rows.Close()
	}()

	var result []*models.User
	for rows.Next() {
		u, err := scanUser(rows)
		if err != nil {
			return nil, fmt.Errorf("%s: %w", op, err)
		}
		result = append(result, u)
	}
	if err = rows.Err(); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return result, nil
}

// UpdateProfile меняет имя и email, пустые значения сохраняют прежние.
func (s *Storage) UpdateProfile(ctx context.Context, userUID, name, email string) (*models.User, error) {
	const op = "storage.UpdateProfile"
	select {
	case <-ctx.Done():
		return nil, fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	query := `UPDATE users
			  SET name = COALESCE(NULLIF($2, ''), name),
			      email = COALESCE(NULLIF($3, ''), email)
			  WHERE uid = $1
			  RETURNING ` + userColumns
	u, err := scanUser(s.DB.QueryRowContext(ctx, query, userUID, name, email))
	if err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("%s: %w", op, models.ErrEmailTaken)
		}
		return nil, notFound(op, err)
	}
	return u, nil
}

// UpdatePassword сохраняет новый хеш пароля.
func (s *Storage) UpdatePassword(ctx context.Context, userUID, passwordHash string) error {
	const op = "storage.UpdatePassword"
	return s.execOne(ctx, op, `UPDATE users SET password_hash = $2 WHERE uid = $1`, userUID, passwordHash)
}

// SetStripeCustomerID сохраняет клиента Stripe за пользователем.
func (s *Storage) SetStripeCustomerID(ctx context.Context, userUID, customerID string) error {
	const op = "storage.SetStripeCustomerID"
	return s.execOne(ctx, op, `UPDATE users SET stripe_customer_id = $2 WHERE uid = $1`, userUID, customerID)
}

// SetTier меняет уровень доступа пользователя.
func (s *Storage) SetTier(ctx context.Context, userUID string, tier models.Tier) error {
	const op = "storage.SetTier"
	return s.execOne(ctx, op, `UPDATE users SET tier = $2 WHERE uid = $1`, userUID, string(tier))
}

// SetRoleByEmail меняет роль пользователя, найденного по email.
func (s *Storage) SetRoleByEmail(ctx context.Context, email, role string) error {
	const op = "storage.SetRoleByEmail"
	return s.execOne(ctx, op, `UPDATE users SET role = $2 WHERE email = $1`, email, role)
}

func (s *Storage) execOne(ctx context.Context, op, query string, args ...any) error {
	select {
	case <-ctx.Done():
		return fmt.Errorf("%s: %w", op, ctx.Err())
	default:
	}

	res, err := s.DB.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if n == 0 {
		return fmt.Errorf("%s: %w", op, models.ErrNotFound)
	}
	return nil
}
