package repository

import (
	"github.com/BotPilotHQ/botpilot/app/models"
	"gorm.io/gorm"
)

// UserRepository defines the interface for user-related database operations
type UserRepository interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByEmail(email string) (*models.User, error)
	GetByActivationToken(token string) (*models.User, error)
	GetByAPIKeyHash(hash string) (*models.User, *models.UserSettings, error)
	Update(user *models.User) error
	Delete(id uint) error
	List(offset, limit int) ([]models.User, error)
	Count() (int64, error)
}

// BotRepository defines the interface for bot-record database operations
type BotRepository interface {
	Create(bot *models.Bot) error
	// CreateWithinQuota inserts the bot only if the owner currently holds
	// fewer than maxSlots bots. The count and insert run in one
	// transaction so two concurrent creates cannot both pass the check.
	// Returns false when the quota is exhausted.
	CreateWithinQuota(bot *models.Bot, maxSlots int) (bool, error)
	GetByID(id uint) (*models.Bot, error)
	GetByUUID(uuid string) (*models.Bot, error)
	GetByUserID(userID uint) ([]models.Bot, error)
	Update(bot *models.Bot) error
	UpdateStatus(id uint, status string) error
	Delete(id uint) error
	Count() (int64, error)
	CountByUserID(userID uint) (int64, error)
	CountRunning() (int64, error)
}

// Repositories struct holds all repository instances
type Repositories struct {
	User UserRepository
	Bot  BotRepository
}

// NewRepositories creates a new instance of all repositories
func NewRepositories(db *gorm.DB) *Repositories {
	return &Repositories{
		User: NewUserRepository(db),
		Bot:  NewBotRepository(db),
	}
}
