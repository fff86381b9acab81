package model

import "time"

// GenerationJob - 큐로 처리되는 이미지 생성 job. Redis hash jobs:<id> 에 저장된다.
// 시간 값은 unix millisecond.
type GenerationJob struct {
	JobID        string `json:"job_id" redis:"job_id"`
	Status       string `json:"status" redis:"status"`
	Prompt       string `json:"prompt" redis:"prompt"`
	Style        string `json:"style" redis:"style"`
	Width        int    `json:"width" redis:"width"`
	Height       int    `json:"height" redis:"height"`
	ImageURL     string `json:"imageUrl,omitempty" redis:"image_url"`
	ErrorCode    string `json:"error_code,omitempty" redis:"error_code"`
	ErrorMessage string `json:"error_message,omitempty" redis:"error_message"`
	CreatedAt    int64  `json:"created_at" redis:"created_at"`
	StartedAt    int64  `json:"started_at,omitempty" redis:"started_at"`
	CompletedAt  int64  `json:"completed_at,omitempty" redis:"completed_at"`
	UpdatedAt    int64  `json:"updated_at" redis:"updated_at"`
}

// JobEvent - jobs:events:<id> 채널로 발행되는 상태 변경
type JobEvent struct {
	JobID        string `json:"job_id"`
	Status       string `json:"status"`
	ImageURL     string `json:"imageUrl,omitempty"`
	ErrorCode    string `json:"error_code,omitempty"`
	ErrorMessage string `json:"error_message,omitempty"`
	At           int64  `json:"at"`
}

const (
	StatusPending       = "pending"
	StatusProcessing    = "processing"
	StatusCompleted     = "completed"
	StatusFailed        = "failed"
	StatusUserCancelled = "user_cancelled"
)

// IsTerminalStatus - 더 이상 바뀌지 않는 상태인지
func IsTerminalStatus(status string) bool {
	switch status {
	case StatusCompleted, StatusFailed, StatusUserCancelled:
		return true
	}
	return false
}

// SetStatus - 상태와 관련 시각 갱신
func (j *GenerationJob) SetStatus(status string, now time.Time) {
	ms := now.UnixMilli()
	j.Status = status
	j.UpdatedAt = ms
	if status == StatusProcessing {
		j.StartedAt = ms
	}
	if IsTerminalStatus(status) {
		j.CompletedAt = ms
	}
}

// Event - 현재 상태를 JobEvent 로
func (j *GenerationJob) Event() JobEvent {
	return JobEvent{
		JobID:        j.JobID,
		Status:       j.Status,
		ImageURL:     j.ImageURL,
		ErrorCode:    j.ErrorCode,
		ErrorMessage: j.ErrorMessage,
		At:           j.UpdatedAt,
	}
}
