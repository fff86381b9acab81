package cancel

import (
	"context"
	"errors"
	"time"

	"go.uber.org/zap"
)

// ErrUserCancelled - 사용자 취소 요청으로 멈춘 job 의 context cause
var ErrUserCancelled = errors.New("job cancelled by user")

// Checker - 취소 플래그 조회
type Checker interface {
	IsJobCancelled(ctx context.Context, jobID string) (bool, error)
}

// Watch - interval 마다 취소 플래그를 확인하고, 설정되면 반환된 context 를
// ErrUserCancelled cause 로 취소한다. 끝나면 반환된 stop 을 호출해야 한다.
func Watch(parent context.Context, checker Checker, jobID string, interval time.Duration, logger *zap.Logger) (context.Context, context.CancelFunc) {
	ctx, cancel := context.WithCancelCause(parent)

	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
			}

			cancelled, err := checker.IsJobCancelled(ctx, jobID)
			if err != nil {
				if ctx.Err() == nil {
					logger.Warn("[Cancel] cancel flag check failed", zap.String("job_id", jobID), zap.Error(err))
				}
				continue
			}
			if cancelled {
				logger.Info("[Cancel] job cancelled, stopping generation", zap.String("job_id", jobID))
				cancel(ErrUserCancelled)
				return
			}
		}
	}()

	return ctx, func() { cancel(context.Canceled) }
}

// IsUserCancelled - ctx 가 사용자 취소로 끝났는지
func IsUserCancelled(ctx context.Context) bool {
	return errors.Is(context.Cause(ctx), ErrUserCancelled)
}
