package generateimage

import (
	"context"
	"errors"
	"time"
	"unicode/utf8"

	"go.uber.org/zap"

	"clonesome-server/modules/common/config"
	"clonesome-server/modules/common/metrics"
)

const remoteCancelTimeout = 5 * time.Second

// PollConfig - polling 한도. 조회 횟수와 전체 시간 둘 다 제한한다.
type PollConfig struct {
	Interval    time.Duration
	MaxAttempts int
	Timeout     time.Duration
}

// PollConfigFrom - 설정값에서 PollConfig 생성
func PollConfigFrom(cfg config.GenerationConfig) PollConfig {
	return PollConfig{
		Interval:    cfg.PollInterval,
		MaxAttempts: cfg.MaxPollAttempts,
		Timeout:     cfg.PollTimeout,
	}
}

func (p PollConfig) withDefaults() PollConfig {
	if p.Interval <= 0 {
		p.Interval = time.Second
	}
	if p.MaxAttempts <= 0 {
		p.MaxAttempts = 120
	}
	if p.Timeout <= 0 {
		p.Timeout = 5 * time.Minute
	}
	return p
}

// Service - submit → poll → 결과 추출. 요청 간 공유 상태는 provider 뿐이다.
type Service struct {
	provider Provider
	poll     PollConfig
	logger   *zap.Logger
}

// NewService - Service 생성
func NewService(provider Provider, poll PollConfig, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		provider: provider,
		poll:     poll.withDefaults(),
		logger:   logger,
	}
}

// Generate - 이미지 하나를 생성하고 URL 을 반환한다.
// 실패 시 분류된 에러(ValidationError, SubmissionError, TransportError,
// GenerationError, EmptyArtifactError, TimeoutError, CancelledError)만 반환.
func (s *Service) Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error) {
	start := time.Now()
	result, attempts, err := s.generate(ctx, req)

	outcome := metrics.OutcomeSuccess
	if err != nil {
		outcome = ErrorCode(err)
	}
	metrics.GenerationsTotal.WithLabelValues(outcome).Inc()
	if attempts > 0 {
		metrics.PollAttempts.Observe(float64(attempts))
		metrics.GenerationDuration.Observe(time.Since(start).Seconds())
	}
	return result, err
}

func (s *Service) generate(ctx context.Context, req GenerationRequest) (*GenerationResult, int, error) {
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, 0, err
	}

	log := s.logger.With(
		zap.String("style", string(req.Style)),
		zap.Int("width", req.Width),
		zap.Int("height", req.Height),
	)
	if !IsKnownStyle(req.Style) {
		log.Warn("[GenerateImage] unknown style, prompt sent without suffix")
	}

	enhanced := EnhancePrompt(req.Prompt, req.Style)
	log.Debug("[GenerateImage] submitting job", zap.String("prompt", truncateString(enhanced, 80)))

	handle, err := s.provider.Submit(ctx, Submission{
		Prompt:         enhanced,
		Width:          req.Width,
		Height:         req.Height,
		InferenceSteps: DefaultInferenceSteps,
		RandomizeSeed:  true,
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, 0, &CancelledError{Err: ctx.Err()}
		}
		var se *SubmissionError
		if !errors.As(err, &se) {
			err = &SubmissionError{Err: err}
		}
		log.Error("[GenerateImage] job submission failed", zap.Error(err))
		return nil, 0, err
	}

	log = log.With(zap.String("job_id", handle.ID))
	log.Info("[GenerateImage] job submitted")

	artifacts, attempts, err := s.pollUntilTerminal(ctx, handle, log)
	if err != nil {
		log.Error("[GenerateImage] job did not succeed", zap.Int("attempts", attempts), zap.Error(err))
		return nil, attempts, err
	}

	imageURL, err := extractArtifact(handle.ID, artifacts)
	if err != nil {
		log.Error("[GenerateImage] job succeeded without artifact", zap.Int("attempts", attempts))
		return nil, attempts, err
	}

	log.Info("[GenerateImage] image generated", zap.Int("attempts", attempts), zap.String("image_url", imageURL))
	return &GenerationResult{Success: true, ImageURL: imageURL}, attempts, nil
}

// pollUntilTerminal - terminal 상태가 될 때까지 status 조회.
// MaxAttempts 번 조회하거나 Timeout 이 지나면 TimeoutError.
func (s *Service) pollUntilTerminal(ctx context.Context, handle JobHandle, log *zap.Logger) ([]string, int, error) {
	start := time.Now()
	pollCtx, cancel := context.WithTimeout(ctx, s.poll.Timeout)
	defer cancel()

	for attempt := 1; attempt <= s.poll.MaxAttempts; attempt++ {
		status, err := s.provider.Status(pollCtx, handle)
		if err != nil {
			if stopErr := s.stopReason(ctx, pollCtx, handle, attempt, start); stopErr != nil {
				return nil, attempt, stopErr
			}
			var te *TransportError
			if !errors.As(err, &te) {
				err = &TransportError{JobID: handle.ID, Err: err}
			}
			return nil, attempt, err
		}

		switch status.State {
		case JobSucceeded:
			return status.Artifacts, attempt, nil
		case JobFailed:
			return nil, attempt, &GenerationError{JobID: handle.ID, Reason: status.Reason}
		}

		log.Debug("[GenerateImage] job not finished",
			zap.Int("attempt", attempt),
			zap.String("status", status.Raw))

		if attempt == s.poll.MaxAttempts {
			break
		}

		timer := time.NewTimer(s.poll.Interval)
		select {
		case <-pollCtx.Done():
			timer.Stop()
			return nil, attempt, s.stopReason(ctx, pollCtx, handle, attempt, start)
		case <-timer.C:
		}
	}

	s.cancelRemote(handle, log)
	return nil, s.poll.MaxAttempts, &TimeoutError{JobID: handle.ID, Attempts: s.poll.MaxAttempts, Elapsed: time.Since(start)}
}

// stopReason - 호출자 취소면 CancelledError, polling 시간 초과면 TimeoutError, 아니면 nil
func (s *Service) stopReason(ctx, pollCtx context.Context, handle JobHandle, attempts int, start time.Time) error {
	if err := ctx.Err(); err != nil {
		s.cancelRemote(handle, s.logger)
		return &CancelledError{JobID: handle.ID, Err: err}
	}
	if pollCtx.Err() != nil {
		s.cancelRemote(handle, s.logger)
		return &TimeoutError{JobID: handle.ID, Attempts: attempts, Elapsed: time.Since(start)}
	}
	return nil
}

// cancelRemote - provider 쪽 job 취소 시도. 실패해도 결과에 영향 없음.
func (s *Service) cancelRemote(handle JobHandle, log *zap.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), remoteCancelTimeout)
	defer cancel()
	if err := s.provider.Cancel(ctx, handle); err != nil {
		log.Warn("[GenerateImage] remote cancel failed", zap.String("job_id", handle.ID), zap.Error(err))
	}
}

// extractArtifact - 첫 번째 artifact URL
func extractArtifact(jobID string, artifacts []string) (string, error) {
	if len(artifacts) == 0 || artifacts[0] == "" {
		return "", &EmptyArtifactError{JobID: jobID}
	}
	return artifacts[0], nil
}

// truncateString - maxLen 바이트 이하로 자른다. 문자 중간에서는 자르지 않는다.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	cut := maxLen
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
