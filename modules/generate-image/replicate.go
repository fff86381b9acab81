package generateimage

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"clonesome-server/modules/common/config"
)

// Provider - 비동기 이미지 생성 API
type Provider interface {
	Submit(ctx context.Context, sub Submission) (JobHandle, error)
	Status(ctx context.Context, handle JobHandle) (JobStatus, error)
	Cancel(ctx context.Context, handle JobHandle) error
}

// ReplicateClient - Replicate predictions API 클라이언트.
// http.Client 외에 상태가 없으므로 동시 요청에 공유해도 된다.
type ReplicateClient struct {
	baseURL      string
	apiToken     string
	modelVersion string
	httpClient   *http.Client
	logger       *zap.Logger
}

// NewReplicateClient - 토큰은 생성 시점에 주입받는다
func NewReplicateClient(cfg config.ReplicateConfig, logger *zap.Logger) *ReplicateClient {
	timeout := cfg.HTTPTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	return &ReplicateClient{
		baseURL:      strings.TrimRight(cfg.APIURL, "/"),
		apiToken:     cfg.APIToken,
		modelVersion: cfg.ModelVersion,
		httpClient:   &http.Client{Timeout: timeout},
		logger:       logger,
	}
}

// replicatePredictionRequest - POST /v1/predictions body
type replicatePredictionRequest struct {
	Version string         `json:"version"`
	Input   replicateInput `json:"input"`
}

type replicateInput struct {
	Prompt            string `json:"prompt"`
	Width             int    `json:"width"`
	Height            int    `json:"height"`
	NumInferenceSteps int    `json:"num_inference_steps"`
	RandomizeSeed     bool   `json:"randomize_seed"`
}

// replicatePrediction - prediction 생성/조회 응답
type replicatePrediction struct {
	ID     string          `json:"id"`
	Status string          `json:"status"`
	Output json.RawMessage `json:"output"`
	Error  json.RawMessage `json:"error"`
	URLs   struct {
		Get    string `json:"get"`
		Cancel string `json:"cancel"`
	} `json:"urls"`
}

// Submit - POST /v1/predictions
func (c *ReplicateClient) Submit(ctx context.Context, sub Submission) (JobHandle, error) {
	payload := replicatePredictionRequest{
		Version: c.modelVersion,
		Input: replicateInput{
			Prompt:            sub.Prompt,
			Width:             sub.Width,
			Height:            sub.Height,
			NumInferenceSteps: sub.InferenceSteps,
			RandomizeSeed:     sub.RandomizeSeed,
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: fmt.Errorf("failed to marshal request: %w", err)}
	}

	endpoint := c.baseURL + "/v1/predictions"
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(body))
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobHandle{}, &SubmissionError{Err: err}
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		c.logger.Warn("[Replicate] prediction rejected",
			zap.Int("status_code", resp.StatusCode),
			zap.ByteString("response_body", respBody))
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Body: string(respBody)}
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(respBody, &prediction); err != nil {
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if prediction.ID == "" && prediction.URLs.Get == "" {
		return JobHandle{}, &SubmissionError{StatusCode: resp.StatusCode, Body: string(respBody), Err: fmt.Errorf("response carries no prediction id")}
	}

	handle := JobHandle{
		ID:        prediction.ID,
		StatusURL: prediction.URLs.Get,
		CancelURL: prediction.URLs.Cancel,
	}
	if handle.StatusURL == "" {
		handle.StatusURL = fmt.Sprintf("%s/v1/predictions/%s", c.baseURL, prediction.ID)
	}
	if handle.CancelURL == "" && prediction.ID != "" {
		handle.CancelURL = fmt.Sprintf("%s/v1/predictions/%s/cancel", c.baseURL, prediction.ID)
	}

	c.logger.Debug("[Replicate] prediction created",
		zap.String("prediction_id", handle.ID),
		zap.String("status", prediction.Status))
	return handle, nil
}

// Status - GET urls.get
func (c *ReplicateClient) Status(ctx context.Context, handle JobHandle) (JobStatus, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, handle.StatusURL, nil)
	if err != nil {
		return JobStatus{}, &TransportError{JobID: handle.ID, Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return JobStatus{}, &TransportError{JobID: handle.ID, Err: err}
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return JobStatus{}, &TransportError{JobID: handle.ID, StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return JobStatus{}, &TransportError{JobID: handle.ID, StatusCode: resp.StatusCode, Body: string(body)}
	}

	var prediction replicatePrediction
	if err := json.Unmarshal(body, &prediction); err != nil {
		return JobStatus{}, &TransportError{JobID: handle.ID, StatusCode: resp.StatusCode, Body: string(body), Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	if prediction.ID == "" {
		prediction.ID = handle.ID
	}
	if _, ok := knownPredictionStatuses[prediction.Status]; !ok {
		c.logger.Warn("[Replicate] unknown prediction status, still waiting",
			zap.String("prediction_id", handle.ID),
			zap.String("status", prediction.Status))
	}
	return prediction.toJobStatus()
}

// Cancel - POST urls.cancel (best effort)
func (c *ReplicateClient) Cancel(ctx context.Context, handle JobHandle) error {
	if handle.CancelURL == "" {
		return nil
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, handle.CancelURL, nil)
	if err != nil {
		return fmt.Errorf("failed to create cancel request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.apiToken)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("cancel request failed: %w", err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("cancel request returned status %d", resp.StatusCode)
	}
	return nil
}

var knownPredictionStatuses = map[string]struct{}{
	"starting":   {},
	"processing": {},
	"succeeded":  {},
	"failed":     {},
	"canceled":   {},
}

func (p replicatePrediction) toJobStatus() (JobStatus, error) {
	status := JobStatus{Raw: p.Status}
	switch p.Status {
	case "starting", "":
		status.State = JobPending
	case "processing":
		status.State = JobRunning
	case "succeeded":
		status.State = JobSucceeded
		artifacts, err := decodeOutput(p.Output)
		if err != nil {
			return JobStatus{}, &TransportError{JobID: p.ID, Err: err}
		}
		status.Artifacts = artifacts
	case "failed", "canceled":
		status.State = JobFailed
		status.Reason = decodeReason(p.Error)
		if status.Reason == "" {
			status.Reason = "prediction " + p.Status
		}
	default:
		// 알 수 없는 상태는 진행 중으로 본다
		status.State = JobRunning
	}
	return status, nil
}

// decodeOutput - output 은 URL 배열 또는 단일 URL 문자열
func decodeOutput(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 || string(raw) == "null" {
		return nil, nil
	}
	var list []string
	if err := json.Unmarshal(raw, &list); err == nil {
		return list, nil
	}
	var single string
	if err := json.Unmarshal(raw, &single); err == nil {
		if single == "" {
			return nil, nil
		}
		return []string{single}, nil
	}
	return nil, fmt.Errorf("unexpected output shape: %s", string(raw))
}

// decodeReason - error 는 문자열이거나 임의의 JSON
func decodeReason(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	return string(raw)
}
