package models

import (
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

const (
	BotStatusRunning = "running"
	BotStatusStopped = "stopped"
	BotStatusError   = "error"
)

// Bot is a user-submitted script hosted on the external runner backend.
// Status mirrors the last confirmed runner state and may be stale; the
// runner owns the actual process state.
type Bot struct {
	ID             uint           `gorm:"primaryKey" json:"id"`
	UUID           string         `gorm:"type:varchar(36);uniqueIndex" json:"uuid"`
	UserID         uint           `gorm:"not null;index" json:"user_id"`
	Name           string         `gorm:"type:varchar(100);not null" json:"name" validate:"required,min=1,max=100"`
	Code           string         `gorm:"type:longtext" json:"-" validate:"required"`
	Status         string         `gorm:"type:varchar(20);not null;default:'stopped';index" json:"status" validate:"oneof=running stopped error"`
	LastDeployedAt *time.Time     `gorm:"type:timestamp;default:null" json:"last_deployed_at,omitempty"`
	LastError      string         `gorm:"type:text" json:"last_error,omitempty"`
	CreatedAt      time.Time      `gorm:"autoCreateTime" json:"created_at"`
	UpdatedAt      time.Time      `gorm:"autoUpdateTime" json:"updated_at"`
	DeletedAt      gorm.DeletedAt `gorm:"index" json:"-"`
}

func (b *Bot) Validate() error {
	v := validator.New()

	return v.Struct(b)
}

// NewBot builds an unsaved bot record in the stopped state.
func NewBot(userID uint, name, code string) (*Bot, error) {
	b := &Bot{
		UUID:   uuid.New().String(),
		UserID: userID,
		Name:   name,
		Code:   code,
		Status: BotStatusStopped,
	}
	if err := b.Validate(); err != nil {
		return nil, err
	}
	return b, nil
}

// IsOwnedBy reports whether the given user owns this bot.
func (b *Bot) IsOwnedBy(userID uint) bool {
	return b.UserID == userID
}

// IsRunning reports whether the cached status is running.
func (b *Bot) IsRunning() bool {
	return b.Status == BotStatusRunning
}

// BotRuntimeStat holds aggregated runtime counters per bot, flushed
// periodically from Redis by the metrics counter package.
type BotRuntimeStat struct {
	ID          uint      `gorm:"primaryKey" json:"id"`
	BotID       uint      `gorm:"uniqueIndex" json:"bot_id"`
	DeployCount int64     `gorm:"default:0" json:"deploy_count"`
	StartCount  int64     `gorm:"default:0" json:"start_count"`
	UpdatedAt   time.Time `gorm:"autoUpdateTime" json:"updated_at"`
}
