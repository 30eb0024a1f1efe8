package statistics

import (
	"log"
	"strconv"
	"sync"
	"time"

	"github.com/BotPilotHQ/botpilot/app/models"
	"github.com/BotPilotHQ/botpilot/internal/pkg/cache"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
)

const (
	CacheKeyUsersTotal  = "statistics:users:total"
	CacheKeyBotsTotal   = "statistics:bots:total"
	CacheKeyBotsRunning = "statistics:bots:running"
	CacheExpiration     = 30 * time.Minute
)

// StatisticsData holds the platform totals shown on the dashboard and the
// admin overview.
type StatisticsData struct {
	TotalUsers  int
	TotalBots   int
	RunningBots int
}

var (
	lastCacheUpdate     time.Time
	cacheUpdateMutex    sync.Mutex
	cacheUpdateInterval = 5 * time.Minute
)

// ShouldUpdateCache reports whether the cached totals are older than the
// refresh interval.
func ShouldUpdateCache() bool {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	return time.Since(lastCacheUpdate) > cacheUpdateInterval
}

// UpdateCacheIfNeeded refreshes the cached totals when they are stale.
func UpdateCacheIfNeeded() {
	if ShouldUpdateCache() {
		cacheUpdateMutex.Lock()
		defer cacheUpdateMutex.Unlock()

		if err := UpdateStatisticsCache(); err != nil {
			log.Printf("Error updating statistics cache: %v", err)
		} else {
			lastCacheUpdate = time.Now()
		}
	}
}

// ResetCacheUpdateTimer forces the next UpdateCacheIfNeeded to refresh.
func ResetCacheUpdateTimer() {
	cacheUpdateMutex.Lock()
	defer cacheUpdateMutex.Unlock()

	lastCacheUpdate = time.Time{}
}

// UpdateStatisticsCache recounts all totals and stores them in the cache
func UpdateStatisticsCache() error {
	db := database.GetDB()

	var totalUsers int64
	if err := db.Model(&models.User{}).Count(&totalUsers).Error; err != nil {
		log.Printf("Error counting total users: %v", err)
		return err
	}

	var totalBots int64
	if err := db.Model(&models.Bot{}).Count(&totalBots).Error; err != nil {
		log.Printf("Error counting total bots: %v", err)
		return err
	}

	var runningBots int64
	if err := db.Model(&models.Bot{}).Where("status = ?", models.BotStatusRunning).Count(&runningBots).Error; err != nil {
		log.Printf("Error counting running bots: %v", err)
		return err
	}

	if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(totalUsers, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total users: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyBotsTotal, strconv.FormatInt(totalBots, 10), CacheExpiration); err != nil {
		log.Printf("Error caching total bots: %v", err)
		return err
	}
	if err := cache.Set(CacheKeyBotsRunning, strconv.FormatInt(runningBots, 10), CacheExpiration); err != nil {
		log.Printf("Error caching running bots: %v", err)
		return err
	}

	log.Printf("Statistics updated in cache: Users: %d, Bots: %d, Running: %d",
		totalUsers, totalBots, runningBots)

	return nil
}

// GetTotalUsers returns the total number of users from cache or database
func GetTotalUsers() int {
	val, err := cache.Get(CacheKeyUsersTotal)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.User{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total users: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyUsersTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total users: %v", err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetTotalBots returns the total number of bots from cache or database
func GetTotalBots() int {
	val, err := cache.Get(CacheKeyBotsTotal)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.Bot{}).Count(&count).Error; err != nil {
			log.Printf("Error counting total bots: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyBotsTotal, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching total bots: %v", err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetRunningBots returns the number of currently running bots from cache or database
func GetRunningBots() int {
	val, err := cache.Get(CacheKeyBotsRunning)
	if err != nil {
		var count int64
		if err := database.GetDB().Model(&models.Bot{}).Where("status = ?", models.BotStatusRunning).Count(&count).Error; err != nil {
			log.Printf("Error counting running bots: %v", err)
			return 0
		}
		if err := cache.Set(CacheKeyBotsRunning, strconv.FormatInt(count, 10), CacheExpiration); err != nil {
			log.Printf("Error caching running bots: %v", err)
		}
		return int(count)
	}

	count, err := strconv.ParseInt(val, 10, 64)
	if err != nil {
		return 0
	}
	return int(count)
}

// GetStatisticsData returns all totals, refreshing stale cache entries.
func GetStatisticsData() StatisticsData {
	UpdateCacheIfNeeded()

	return StatisticsData{
		TotalUsers:  GetTotalUsers(),
		TotalBots:   GetTotalBots(),
		RunningBots: GetRunningBots(),
	}
}
