package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"clonesome-server/modules/common/model"
	redisutil "clonesome-server/modules/common/redis"
)

const (
	// QueueKey - 대기 중인 job id 리스트 (LPUSH / BRPOP)
	QueueKey = "jobs:generate"

	jobTTL = 24 * time.Hour
)

// ErrJobNotFound - 저장된 job 이 없음
var ErrJobNotFound = errors.New("job not found")

func jobKey(jobID string) string {
	return "jobs:" + jobID
}

// EventsChannel - job 상태 변경 pub/sub 채널
func EventsChannel(jobID string) string {
	return "jobs:events:" + jobID
}

// Store - Redis 에 저장되는 job 기록과 큐
type Store struct {
	rdb *redis.Client
}

func NewStore(rdb *redis.Client) *Store {
	return &Store{rdb: rdb}
}

// Save - job hash 저장 (TTL 갱신)
func (s *Store) Save(ctx context.Context, job *model.GenerationJob) error {
	key := jobKey(job.JobID)
	_, err := s.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, job)
		pipe.Expire(ctx, key, jobTTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("save job %s: %w", job.JobID, err)
	}
	return nil
}

// Get - job 조회. 없으면 ErrJobNotFound
func (s *Store) Get(ctx context.Context, jobID string) (*model.GenerationJob, error) {
	res := s.rdb.HGetAll(ctx, jobKey(jobID))
	fields, err := res.Result()
	if err != nil {
		return nil, fmt.Errorf("get job %s: %w", jobID, err)
	}
	if len(fields) == 0 {
		return nil, ErrJobNotFound
	}

	var job model.GenerationJob
	if err := res.Scan(&job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", jobID, err)
	}
	return &job, nil
}

// Enqueue - 큐에 job id 추가. 추가 후 큐 길이를 반환한다.
func (s *Store) Enqueue(ctx context.Context, jobID string) (int64, error) {
	n, err := s.rdb.LPush(ctx, QueueKey, jobID).Result()
	if err != nil {
		return 0, fmt.Errorf("enqueue job %s: %w", jobID, err)
	}
	return n, nil
}

// Dequeue - 큐에서 job id 하나를 꺼낸다. timeout 동안 비어 있으면 ("", nil)
func (s *Store) Dequeue(ctx context.Context, timeout time.Duration) (string, error) {
	result, err := s.rdb.BRPop(ctx, timeout, QueueKey).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	// result[0] 은 큐 이름, result[1] 이 job id
	return result[1], nil
}

// Publish - 현재 상태를 이벤트로 발행
func (s *Store) Publish(ctx context.Context, job *model.GenerationJob) error {
	payload, err := json.Marshal(job.Event())
	if err != nil {
		return err
	}
	return s.rdb.Publish(ctx, EventsChannel(job.JobID), payload).Err()
}

// Subscribe - job 이벤트 구독. 구독이 확정된 뒤 반환한다.
func (s *Store) Subscribe(ctx context.Context, jobID string) (*redis.PubSub, error) {
	sub := s.rdb.Subscribe(ctx, EventsChannel(jobID))
	if _, err := sub.Receive(ctx); err != nil {
		_ = sub.Close()
		return nil, fmt.Errorf("subscribe job %s: %w", jobID, err)
	}
	return sub, nil
}

// SetCancelled - 취소 플래그 설정
func (s *Store) SetCancelled(ctx context.Context, jobID string) error {
	return redisutil.SetJobCancelled(ctx, s.rdb, jobID)
}

// IsJobCancelled - cancel.Checker 구현
func (s *Store) IsJobCancelled(ctx context.Context, jobID string) (bool, error) {
	return redisutil.IsJobCancelled(ctx, s.rdb, jobID)
}

// ClearCancelled - 취소 플래그 제거
func (s *Store) ClearCancelled(ctx context.Context, jobID string) error {
	return redisutil.ClearJobCancelled(ctx, s.rdb, jobID)
}
