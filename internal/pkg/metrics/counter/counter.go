package counter

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/BotPilotHQ/botpilot/internal/pkg/cache"
	"github.com/BotPilotHQ/botpilot/internal/pkg/database"
)

const (
	botDeploysKey = "bot:counters:deploys"
	botStartsKey  = "bot:counters:starts"
)

// AddBotDeploy increments the pending deploy counter for a bot in Redis
func AddBotDeploy(botID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(botID), 10)
	return cache.GetClient().HIncrBy(ctx, botDeploysKey, field, 1).Err()
}

// AddBotStart increments the pending start counter for a bot in Redis
func AddBotStart(botID uint) error {
	ctx := context.Background()
	field := strconv.FormatUint(uint64(botID), 10)
	return cache.GetClient().HIncrBy(ctx, botStartsKey, field, 1).Err()
}

// FlushAll flushes pending deploy and start counters to the database
func FlushAll() error {
	if err := flushHashToColumn(botDeploysKey, "deploy_count"); err != nil {
		return err
	}
	if err := flushHashToColumn(botStartsKey, "start_count"); err != nil {
		return err
	}
	return nil
}

// flushHashToColumn drains a Redis hash atomically and applies batched
// increments to bot_runtime_stats. Uses RENAME to a temporary key for
// atomic drain without losing in-flight increments; rows are created on
// first flush via the bot_id unique key.
func flushHashToColumn(redisKey, column string) error {
	ctx := context.Background()
	rdb := cache.GetClient()

	// Atomically move the hash to a temp key for draining
	tmpKey := fmt.Sprintf("%s:tmp:%d", redisKey, time.Now().UnixNano())
	if err := rdb.Do(ctx, "RENAME", redisKey, tmpKey).Err(); err != nil {
		// If key does not exist, nothing to flush
		if strings.Contains(strings.ToLower(err.Error()), "no such key") {
			return nil
		}
		if err.Error() == "redis: nil" {
			return nil
		}
		return err
	}

	// Ensure cleanup of tmpKey even if later steps fail
	defer rdb.Del(ctx, tmpKey)

	data, err := rdb.HGetAll(ctx, tmpKey).Result()
	if err != nil {
		return err
	}
	if len(data) == 0 {
		return nil
	}

	type pair struct {
		id  uint64
		inc int64
	}
	pairs := make([]pair, 0, len(data))
	for k, v := range data {
		id, perr := strconv.ParseUint(k, 10, 64)
		if perr != nil {
			continue
		}
		inc, ierr := strconv.ParseInt(v, 10, 64)
		if ierr != nil || inc == 0 {
			continue
		}
		pairs = append(pairs, pair{id: id, inc: inc})
	}
	if len(pairs) == 0 {
		return nil
	}
	sort.Slice(pairs, func(i, j int) bool { return pairs[i].id < pairs[j].id })

	// Compose batched upsert:
	// INSERT INTO bot_runtime_stats (bot_id, <column>) VALUES (?,?),...
	// ON DUPLICATE KEY UPDATE <column> = <column> + VALUES(<column>)
	var builder strings.Builder
	args := make([]interface{}, 0, len(pairs)*2)
	builder.WriteString("INSERT INTO bot_runtime_stats (bot_id, ")
	builder.WriteString(column)
	builder.WriteString(") VALUES ")
	for i, p := range pairs {
		if i > 0 {
			builder.WriteString(",")
		}
		builder.WriteString("(?,?)")
		args = append(args, p.id, p.inc)
	}
	builder.WriteString(" ON DUPLICATE KEY UPDATE ")
	builder.WriteString(column)
	builder.WriteString(" = ")
	builder.WriteString(column)
	builder.WriteString(" + VALUES(")
	builder.WriteString(column)
	builder.WriteString(")")

	db := database.GetDB()
	if err := db.Exec(builder.String(), args...).Error; err != nil {
		return err
	}
	return nil
}
