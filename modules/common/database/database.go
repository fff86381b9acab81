package database

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/supabase-community/supabase-go"
	"go.uber.org/zap"

	"clonesome-server/modules/common/config"
	"clonesome-server/modules/common/model"
)

const generatedImagesTable = "generated_images"

// Client - 생성 이력 기록용 Supabase 클라이언트
type Client struct {
	supabase *supabase.Client
	logger   *zap.Logger
}

// GeneratedImage - generated_images 테이블 row
type GeneratedImage struct {
	JobID        string  `json:"job_id"`
	Status       string  `json:"status"`
	Prompt       string  `json:"prompt"`
	Style        string  `json:"style"`
	Width        int     `json:"width"`
	Height       int     `json:"height"`
	ImageURL     *string `json:"image_url"`
	ErrorCode    *string `json:"error_code"`
	ErrorMessage *string `json:"error_message"`
	CreatedAt    string  `json:"created_at"`
	CompletedAt  string  `json:"completed_at"`
}

// NewClient - Database 클라이언트 생성
func NewClient(cfg config.SupabaseConfig, logger *zap.Logger) (*Client, error) {
	if cfg.URL == "" || cfg.ServiceKey == "" {
		return nil, errors.New("supabase url and service key are required")
	}
	supabaseClient, err := supabase.NewClient(cfg.URL, cfg.ServiceKey, &supabase.ClientOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create Supabase client: %w", err)
	}
	return &Client{
		supabase: supabaseClient,
		logger:   logger,
	}, nil
}

// RecordGeneration - terminal 상태의 job 을 generated_images 에 기록
func (c *Client) RecordGeneration(ctx context.Context, job *model.GenerationJob) error {
	if !model.IsTerminalStatus(job.Status) {
		return fmt.Errorf("job %s is not terminal (status: %s)", job.JobID, job.Status)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	row := toRow(job)
	_, _, err := c.supabase.From(generatedImagesTable).
		Insert(row, false, "", "minimal", "").
		Execute()
	if err != nil {
		return fmt.Errorf("failed to insert generated image: %w", err)
	}

	c.logger.Debug("[Database] generation recorded", zap.String("job_id", job.JobID), zap.String("status", job.Status))
	return nil
}

func toRow(job *model.GenerationJob) GeneratedImage {
	return GeneratedImage{
		JobID:        job.JobID,
		Status:       job.Status,
		Prompt:       job.Prompt,
		Style:        job.Style,
		Width:        job.Width,
		Height:       job.Height,
		ImageURL:     nilIfEmpty(job.ImageURL),
		ErrorCode:    nilIfEmpty(job.ErrorCode),
		ErrorMessage: nilIfEmpty(job.ErrorMessage),
		CreatedAt:    formatMillis(job.CreatedAt),
		CompletedAt:  formatMillis(job.CompletedAt),
	}
}

func nilIfEmpty(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}

func formatMillis(ms int64) string {
	return time.UnixMilli(ms).UTC().Format(time.RFC3339Nano)
}
