// Package services содержит логику регистрации, входа и управления профилем пользователя.
package services

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/magabrotheeeer/video-downloader/internal/lib/jwt"
	"github.com/magabrotheeeer/video-downloader/internal/lib/password"
	"github.com/magabrotheeeer/video-downloader/internal/lib/sl"
	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// UserRepository описывает контракт для работы с пользователями в базе данных.
type UserRepository interface {
	// RegisterUser сохраняет нового пользователя и возвращает его ID.
	RegisterUser(ctx context.Context, user models.User) (string, error)
	GetUser(ctx context.Context, userUID string) (*models.User, error)
	GetUserByEmail(ctx context.Context, email string) (*models.User, error)
	ListUsers(ctx context.Context) ([]*models.User, error)
	UpdateProfile(ctx context.Context, userUID, name, email string) (*models.User, error)
	UpdatePassword(ctx context.Context, userUID, passwordHash string) error
}

// AuthService отвечает за регистрацию, авторизацию и валидацию JWT.
type AuthService struct {
	users    UserRepository
	jwtMaker jwt.Maker
	log      *slog.Logger
}

// NewAuthService создает новый экземпляр AuthService.
func NewAuthService(users UserRepository, jwtMaker jwt.Maker, log *slog.Logger) *AuthService {
	return &AuthService{
		users:    users,
		jwtMaker: jwtMaker,
		log:      log,
	}
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Register создает пользователя с ролью user и тарифом free и сразу выдаёт токен.
func (s *AuthService) Register(ctx context.Context, req models.RegisterRequest) (*models.User, string, error) {
	const op = "services.Register"
	hashed, err := password.GetHash(req.Password)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	user := models.User{
		Name:         strings.TrimSpace(req.Name),
		Email:        normalizeEmail(req.Email),
		PasswordHash: hashed,
		Role:         models.RoleUser,
		Tier:         models.TierFree,
	}
	user.UUID, err = s.users.RegisterUser(ctx, user)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.jwtMaker.GenerateToken(user.UUID, user.Role)
	if err != nil {
		return nil, "", fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("user registered", slog.String("user_uid", user.UUID))
	return &user, token, nil
}

// Login проверяет пароль и выдаёт токен. Неизвестный email и неверный пароль
// неразличимы для клиента.
func (s *AuthService) Login(ctx context.Context, email, rawPassword string) (string, *models.User, error) {
	const op = "services.Login"
	user, err := s.users.GetUserByEmail(ctx, normalizeEmail(email))
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, rawPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return "", nil, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	token, err := s.jwtMaker.GenerateToken(user.UUID, user.Role)
	if err != nil {
		return "", nil, fmt.Errorf("%s: %w", op, err)
	}
	return token, user, nil
}

// Profile возвращает текущего пользователя.
func (s *AuthService) Profile(ctx context.Context, userUID string) (*models.User, error) {
	const op = "services.Profile"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdateProfile меняет имя и/или email.
func (s *AuthService) UpdateProfile(ctx context.Context, userUID string, req models.UpdateProfileRequest) (*models.User, error) {
	const op = "services.UpdateProfile"
	name := strings.TrimSpace(req.Name)
	email := normalizeEmail(req.Email)
	if name == "" && email == "" {
		return nil, fmt.Errorf("%s: %w: nothing to update", op, models.ErrValidation)
	}
	user, err := s.users.UpdateProfile(ctx, userUID, name, email)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return user, nil
}

// UpdatePassword меняет пароль после проверки текущего.
func (s *AuthService) UpdatePassword(ctx context.Context, userUID, currentPassword, newPassword string) error {
	const op = "services.UpdatePassword"
	user, err := s.users.GetUser(ctx, userUID)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = password.CompareHash(user.PasswordHash, currentPassword); err != nil {
		if errors.Is(err, password.ErrMismatch) {
			return fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return fmt.Errorf("%s: %w", op, err)
	}
	hashed, err := password.GetHash(newPassword)
	if err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	if err = s.users.UpdatePassword(ctx, userUID, hashed); err != nil {
		return fmt.Errorf("%s: %w", op, err)
	}
	s.log.Info("password updated", slog.String("user_uid", userUID))
	return nil
}

// ListUsers все пользователи, для администратора.
func (s *AuthService) ListUsers(ctx context.Context) ([]*models.User, error) {
	const op = "services.ListUsers"
	users, err := s.users.ListUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return users, nil
}

// ValidateToken проверяет JWT и возвращает того, кто обращается.
// Роль берётся из базы, а не из токена: понижение роли или удаление
// пользователя действует сразу. Неверный токен и неизвестный пользователь
// дают ErrInvalidCredentials.
func (s *AuthService) ValidateToken(ctx context.Context, token string) (models.Requester, error) {
	const op = "services.ValidateToken"
	claims, err := s.jwtMaker.ParseToken(token)
	if err != nil {
		s.log.Debug("token rejected", sl.Err(err))
		return models.Requester{}, fmt.Errorf("%s: %w", op, errors.Join(models.ErrInvalidCredentials, err))
	}

	user, err := s.users.GetUser(ctx, claims.UserUID)
	if err != nil {
		if errors.Is(err, models.ErrNotFound) {
			s.log.Debug("token of unknown user", slog.String("user_uid", claims.UserUID))
			return models.Requester{}, fmt.Errorf("%s: %w", op, models.ErrInvalidCredentials)
		}
		return models.Requester{}, fmt.Errorf("%s: %w", op, err)
	}
	return models.Requester{UserUID: user.UUID, Role: user.Role}, nil
}
