package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/target/mmk-items-api/internal/core"
)

const (
	cacheScanCount  = 100
	cacheDeleteSize = 100
	cacheCmdTimeout = 2 * time.Minute
)

type cacheClearOptions struct {
	ItemID string
	DryRun bool
	Yes    bool
}

type cacheDeleteStats struct {
	Matched int
	Deleted int64
}

func runListCacheKeys(cmdCtx *commandContext, _ []string) error {
	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, cacheCmdTimeout)
	defer cancel()

	redisClient, err := connectCacheRedis(cmdCtx)
	if err != nil || redisClient == nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	pattern := core.ItemCacheKeyPrefix + "*"
	cmdCtx.Logger.Info("scanning redis", "pattern", pattern)

	if headerErr := writef(os.Stdout, "\nCached Items in Redis\n"); headerErr != nil {
		return fmt.Errorf("print cache header: %w", headerErr)
	}
	total, err := writeCacheKeys(ctx, os.Stdout, redisClient, pattern, cmdCtx.Logger)
	if err != nil {
		return err
	}
	if total == 0 {
		return writeln(os.Stdout, "(no keys found)")
	}
	return writef(os.Stdout, "\nTotal keys: %d\n", total)
}

func writeCacheKeys(
	ctx context.Context,
	w io.Writer,
	client redis.UniversalClient,
	pattern string,
	logger *slog.Logger,
) (int, error) {
	iter := client.Scan(ctx, 0, pattern, cacheScanCount).Iterator()
	total := 0
	for iter.Next(ctx) {
		key := iter.Val()
		total++

		ttl, ttlErr := client.TTL(ctx, key).Result()
		if ttlErr != nil {
			logger.ErrorContext(ctx, "failed to fetch TTL", "key", key, "error", ttlErr)
			if err := writef(w, "  %s (TTL: error: %v)\n", key, ttlErr); err != nil {
				return 0, err
			}
			continue
		}
		if err := writef(w, "  %s (TTL: %s)\n", key, renderTTL(ttl)); err != nil {
			return 0, err
		}
	}
	if err := iter.Err(); err != nil {
		return 0, fmt.Errorf("redis scan: %w", err)
	}
	return total, nil
}

func runClearItemCache(cmdCtx *commandContext, args []string) error {
	opts, err := parseCacheClearFlags(args)
	if err != nil {
		return err
	}
	if confirmErr := confirmAction(cacheClearConfirmOptions{opts}, "clear cached items"); confirmErr != nil {
		return confirmErr
	}

	ctx, cancel := context.WithTimeout(cmdCtx.Ctx, cacheCmdTimeout)
	defer cancel()

	redisClient, err := connectCacheRedis(cmdCtx)
	if err != nil || redisClient == nil {
		return err
	}
	defer func() {
		if closeErr := redisClient.Close(); closeErr != nil {
			cmdCtx.Logger.Warn("redis close failed", "error", closeErr)
		}
	}()

	stats, err := deleteCacheKeys(ctx, redisClient, opts)
	if err != nil {
		return err
	}
	if opts.DryRun {
		return writef(os.Stdout, "Dry run: %d cached item keys would be deleted\n", stats.Matched)
	}
	cmdCtx.Logger.Info("clear item cache complete", "matched", stats.Matched, "deleted", stats.Deleted)
	return nil
}

func deleteCacheKeys(ctx context.Context, client redis.UniversalClient, opts cacheClearOptions) (cacheDeleteStats, error) {
	pattern := core.ItemCacheKeyPrefix + "*"
	if opts.ItemID != "" {
		pattern = core.ItemCacheKeyPrefix + opts.ItemID
	}

	var stats cacheDeleteStats
	batch := make([]string, 0, cacheDeleteSize)
	flush := func() error {
		if len(batch) == 0 || opts.DryRun {
			batch = batch[:0]
			return nil
		}
		n, err := client.Del(ctx, batch...).Result()
		if err != nil {
			return fmt.Errorf("delete cache keys: %w", err)
		}
		stats.Deleted += n
		batch = batch[:0]
		return nil
	}

	iter := client.Scan(ctx, 0, pattern, cacheScanCount).Iterator()
	for iter.Next(ctx) {
		stats.Matched++
		batch = append(batch, iter.Val())
		if len(batch) == cacheDeleteSize {
			if err := flush(); err != nil {
				return stats, err
			}
		}
	}
	if err := iter.Err(); err != nil {
		return stats, fmt.Errorf("redis scan: %w", err)
	}
	return stats, flush()
}

func parseCacheClearFlags(args []string) (cacheClearOptions, error) {
	fs := flag.NewFlagSet("clear-item-cache", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	opts := cacheClearOptions{}
	fs.StringVar(&opts.ItemID, "id", "", "Only remove the cache entry for this item")
	fs.BoolVar(&opts.DryRun, "dry-run", false, "Count matching keys without deleting them")
	fs.BoolVar(&opts.Yes, "yes", false, "Skip confirmation prompt")

	if err := fs.Parse(args); err != nil {
		return cacheClearOptions{}, err
	}
	opts.ItemID = strings.TrimSpace(opts.ItemID)
	if strings.ContainsAny(opts.ItemID, "*?[]") {
		return cacheClearOptions{}, errors.New("--id must be a literal item id")
	}
	return opts, nil
}

// connectCacheRedis returns nil without error when Redis is not configured.
//
//nolint:ireturn // returning redis.UniversalClient keeps sentinel/cluster support flexible.
func connectCacheRedis(cmdCtx *commandContext) (redis.UniversalClient, error) {
	_, redisClient, err := connectInfraWithOptions(&connectInfraOptions{
		Logger:    cmdCtx.Logger,
		Config:    &cmdCtx.Config,
		WantRedis: true,
	})
	if err != nil {
		return nil, err
	}
	if redisClient == nil {
		if writeErr := writeln(os.Stderr, "Redis client is not available"); writeErr != nil {
			return nil, fmt.Errorf("print redis availability: %w", writeErr)
		}
	}
	return redisClient, nil
}

func renderTTL(d time.Duration) string {
	switch d {
	case -1 * time.Second:
		return "no expiry"
	case -2 * time.Second:
		return "key missing"
	default:
		return d.String()
	}
}
