package repository

import (
	"errors"

	"github.com/BotPilotHQ/botpilot/app/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type botRepository struct {
	db *gorm.DB
}

// NewBotRepository creates a bot repository backed by GORM.
func NewBotRepository(db *gorm.DB) BotRepository {
	return &botRepository{db: db}
}

func (r *botRepository) Create(bot *models.Bot) error {
	return r.db.Create(bot).Error
}

var errSlotsExhausted = errors.New("bot slots exhausted")

func (r *botRepository) CreateWithinQuota(bot *models.Bot, maxSlots int) (bool, error) {
	err := r.db.Transaction(func(tx *gorm.DB) error {
		var count int64
		// Lock the owner's rows so a concurrent create serializes behind
		// this transaction instead of double-passing the quota check.
		if err := tx.Model(&models.Bot{}).
			Clauses(clause.Locking{Strength: "UPDATE"}).
			Where("user_id = ?", bot.UserID).
			Count(&count).Error; err != nil {
			return err
		}
		if count >= int64(maxSlots) {
			return errSlotsExhausted
		}
		return tx.Create(bot).Error
	})
	if errors.Is(err, errSlotsExhausted) {
		return false, nil
	}
	if err != nil {
		return false, err
	}
	return true, nil
}

func (r *botRepository) GetByID(id uint) (*models.Bot, error) {
	var bot models.Bot
	if err := r.db.First(&bot, id).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) GetByUUID(uuid string) (*models.Bot, error) {
	var bot models.Bot
	if err := r.db.Where("uuid = ?", uuid).First(&bot).Error; err != nil {
		return nil, err
	}
	return &bot, nil
}

func (r *botRepository) GetByUserID(userID uint) ([]models.Bot, error) {
	var bots []models.Bot
	err := r.db.Where("user_id = ?", userID).Order("created_at DESC").Find(&bots).Error
	return bots, err
}

func (r *botRepository) Update(bot *models.Bot) error {
	return r.db.Save(bot).Error
}

func (r *botRepository) UpdateStatus(id uint, status string) error {
	return r.db.Model(&models.Bot{}).Where("id = ?", id).Update("status", status).Error
}

func (r *botRepository) Delete(id uint) error {
	return r.db.Unscoped().Delete(&models.Bot{}, id).Error
}

func (r *botRepository) Count() (int64, error) {
	var count int64
	err := r.db.Model(&models.Bot{}).Count(&count).Error
	return count, err
}

func (r *botRepository) CountByUserID(userID uint) (int64, error) {
	var count int64
	err := r.db.Model(&models.Bot{}).Where("user_id = ?", userID).Count(&count).Error
	return count, err
}

func (r *botRepository) CountRunning() (int64, error) {
	var count int64
	err := r.db.Model(&models.Bot{}).Where("status = ?", models.BotStatusRunning).Count(&count).Error
	return count, err
}
