package generateimage

import (
	"errors"
	"fmt"
	"net/http"
	"time"
)

// Error codes - 응답 body 의 "code" 값
const (
	CodeValidation    = "validation_error"
	CodeSubmission    = "submission_error"
	CodeTransport     = "transport_error"
	CodeGeneration    = "generation_error"
	CodeEmptyArtifact = "empty_artifact"
	CodeTimeout       = "timeout"
	CodeCancelled     = "cancelled"
	CodeInternal      = "internal_error"
)

// ValidationError - 잘못된 호출자 입력. 네트워크 호출 전에 반환된다.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid %s: %s", e.Field, e.Reason)
}

func (e *ValidationError) Code() string { return CodeValidation }

// SubmissionError - job 생성 요청 실패 (연결 실패 또는 non-2xx)
type SubmissionError struct {
	StatusCode int // 연결 실패면 0
	Body       string
	Err        error
}

func (e *SubmissionError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("job submission failed: status %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("job submission failed: %v", e.Err)
}

func (e *SubmissionError) Unwrap() error { return e.Err }

func (e *SubmissionError) Code() string { return CodeSubmission }

// TransportError - polling 중 연결 실패 또는 non-2xx. 재시도하지 않는다.
type TransportError struct {
	JobID      string
	StatusCode int
	Body       string
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("status query for job %s failed: status %d: %s", e.JobID, e.StatusCode, e.Body)
	}
	return fmt.Sprintf("status query for job %s failed: %v", e.JobID, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

func (e *TransportError) Code() string { return CodeTransport }

// GenerationError - provider 가 명시적으로 실패를 보고
type GenerationError struct {
	JobID  string
	Reason string
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("image generation failed: %s", e.Reason)
}

func (e *GenerationError) Code() string { return CodeGeneration }

// EmptyArtifactError - 성공했지만 output 이 비어 있음
type EmptyArtifactError struct {
	JobID string
}

func (e *EmptyArtifactError) Error() string {
	return fmt.Sprintf("job %s succeeded without any artifact", e.JobID)
}

func (e *EmptyArtifactError) Code() string { return CodeEmptyArtifact }

// TimeoutError - 최대 조회 횟수 또는 polling 시간 초과
type TimeoutError struct {
	JobID    string
	Attempts int
	Elapsed  time.Duration
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("job %s did not finish after %d status queries (%s)", e.JobID, e.Attempts, e.Elapsed.Round(time.Millisecond))
}

func (e *TimeoutError) Code() string { return CodeTimeout }

// CancelledError - 호출자 context 취소로 polling 중단
type CancelledError struct {
	JobID string
	Err   error
}

func (e *CancelledError) Error() string {
	if e.JobID == "" {
		return fmt.Sprintf("cancelled before submission: %v", e.Err)
	}
	return fmt.Sprintf("job %s cancelled: %v", e.JobID, e.Err)
}

func (e *CancelledError) Unwrap() error { return e.Err }

func (e *CancelledError) Code() string { return CodeCancelled }

type coded interface {
	Code() string
}

// ErrorCode - 분류된 에러의 code. 분류되지 않은 에러는 internal_error.
func ErrorCode(err error) string {
	var c coded
	if errors.As(err, &c) {
		return c.Code()
	}
	return CodeInternal
}

// HTTPStatus - ValidationError 는 400, 나머지는 모두 500
func HTTPStatus(err error) int {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// ErrorReason - 응답에 실어 보낼 사유 문자열
func ErrorReason(err error) string {
	var ve *ValidationError
	if errors.As(err, &ve) {
		return ve.Reason
	}
	var ge *GenerationError
	if errors.As(err, &ge) {
		return ge.Reason
	}
	return err.Error()
}
