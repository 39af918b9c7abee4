// Package models содержит доменные структуры сервиса: пользователей, задания на загрузку,
// подписки и метаданные видео, а также общие ошибки.
package models

import "time"

// Роли пользователей.
const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Tier уровень доступа пользователя.
type Tier string

const (
	TierFree    Tier = "free"
	TierPremium Tier = "premium"
)

// User представляет зарегистрированного пользователя системы.
type User struct {
	UUID             string    `json:"id"`
	Name             string    `json:"name"`
	Email            string    `json:"email"`
	PasswordHash     string    `json:"-"`
	Role             string    `json:"role"`
	Tier             Tier      `json:"tier"`
	StripeCustomerID string    `json:"-"`
	DownloadCount    int       `json:"download_count"`
	CreatedAt        time.Time `json:"created_at"`
}

// IsAdmin сообщает, является ли пользователь администратором.
func (u *User) IsAdmin() bool {
	return u.Role == RoleAdmin
}

// Requester описывает того, кто обращается к ресурсу.
type Requester struct {
	UserUID string
	Role    string
}

// CanAccess проверяет право доступа к ресурсу владельца ownerUID.
func (r Requester) CanAccess(ownerUID string) bool {
	return r.Role == RoleAdmin || r.UserUID == ownerUID
}

// RegisterRequest тело запроса регистрации.
type RegisterRequest struct {
	Name     string `json:"name" validate:"required,max=50"`
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=6"`
}

// LoginRequest тело запроса входа.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest изменение профиля, пустые поля не меняются.
type UpdateProfileRequest struct {
	Name  string `json:"name" validate:"omitempty,max=50"`
	Email string `json:"email" validate:"omitempty,email"`
}

// UpdatePasswordRequest смена пароля.
type UpdatePasswordRequest struct {
	CurrentPassword string `json:"current_password" validate:"required"`
	NewPassword     string `json:"new_password" validate:"required,min=6"`
}
