// Package quota решает, может ли пользователь начать новую загрузку,
// и вычисляет срок хранения готового файла в зависимости от уровня доступа.
package quota

import (
	"time"

	"github.com/magabrotheeeer/video-downloader/internal/models"
)

// DefaultFreeDailyLimit лимит загрузок в сутки для бесплатного уровня.
const DefaultFreeDailyLimit = 3

// Policy правила квот и сроков хранения.
type Policy struct {
	FreeDailyLimit int
	FreeTTL        time.Duration
	PremiumTTL     time.Duration
	DefaultTTL     time.Duration
}

// NewPolicy возвращает Policy, подставляя значения по умолчанию для нулевых полей.
func NewPolicy(freeDailyLimit int, defaultTTL, freeTTL, premiumTTL time.Duration) Policy {
	p := Policy{
		FreeDailyLimit: freeDailyLimit,
		DefaultTTL:     defaultTTL,
		FreeTTL:        freeTTL,
		PremiumTTL:     premiumTTL,
	}
	if p.FreeDailyLimit <= 0 {
		p.FreeDailyLimit = DefaultFreeDailyLimit
	}
	if p.DefaultTTL <= 0 {
		p.DefaultTTL = 24 * time.Hour
	}
	if p.FreeTTL <= 0 {
		p.FreeTTL = 24 * time.Hour
	}
	if p.PremiumTTL <= 0 {
		p.PremiumTTL = 7 * 24 * time.Hour
	}
	return p
}

// CanStartDownload premium всегда может, free пока заданий за сутки меньше лимита.
// Неизвестный уровень считается бесплатным.
func (p Policy) CanStartDownload(tier models.Tier, jobsToday int) bool {
	if tier == models.TierPremium {
		return true
	}
	return jobsToday < p.FreeDailyLimit
}

// ExpiryFor срок хранения файла, завершённого в момент completedAt.
func (p Policy) ExpiryFor(tier models.Tier, completedAt time.Time) time.Time {
	if tier == models.TierPremium {
		return completedAt.Add(p.PremiumTTL)
	}
	return completedAt.Add(p.FreeTTL)
}

// InitialExpiry срок жизни только что созданного задания.
func (p Policy) InitialExpiry(createdAt time.Time) time.Time {
	return createdAt.Add(p.DefaultTTL)
}

// StartOfDay начало календарных суток в UTC для момента t.
func StartOfDay(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
