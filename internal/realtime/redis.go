package realtime

import (
	"context"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/Windi-Fikriyansyah/freelance_escrow/internal/logger"
)

// NewRedis creates a client and checks that the server answers.
func NewRedis(ctx context.Context, addr, password string, db int, log logger.Logger) (*redis.Client, error) {
	if addr == "" {
		addr = "localhost:6379"
	}
	rdb := redis.NewClient(&redis.Options{
		Addr:     addr,
		Password: password,
		DB:       db,
	})

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := rdb.Ping(pctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, err
	}
	log.Info("redis client connected", map[string]interface{}{"addr": addr, "db": db})
	return rdb, nil
}
