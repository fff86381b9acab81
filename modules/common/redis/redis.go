package redis

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"clonesome-server/modules/common/config"
)

const cancelFlagTTL = time.Hour

// Connect - Redis 연결 생성 후 ping 으로 확인
func Connect(ctx context.Context, cfg config.RedisConfig, logger *zap.Logger) (*redis.Client, error) {
	addr := fmt.Sprintf("%s:%s", cfg.Host, cfg.Port)
	logger.Info("[Redis] connecting", zap.String("addr", addr), zap.Bool("tls", cfg.UseTLS))

	var tlsConfig *tls.Config
	if cfg.UseTLS {
		tlsConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(&redis.Options{
		Addr:         addr,
		Username:     cfg.Username,
		Password:     cfg.Password,
		TLSConfig:    tlsConfig,
		DB:           0,
		DialTimeout:  10 * time.Second,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 30 * time.Second,
	})

	pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	if err := rdb.Ping(pingCtx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping %s: %w", addr, err)
	}
	return rdb, nil
}

func cancelKey(jobID string) string {
	return "jobs:cancel:" + jobID
}

// SetJobCancelled - 취소 플래그 설정. worker 가 다음 확인 때 job 을 멈춘다.
func SetJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) error {
	return rdb.Set(ctx, cancelKey(jobID), "1", cancelFlagTTL).Err()
}

// IsJobCancelled - 취소 플래그 확인
func IsJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) (bool, error) {
	n, err := rdb.Exists(ctx, cancelKey(jobID)).Result()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ClearJobCancelled - 취소 플래그 제거
func ClearJobCancelled(ctx context.Context, rdb *redis.Client, jobID string) error {
	return rdb.Del(ctx, cancelKey(jobID)).Err()
}
