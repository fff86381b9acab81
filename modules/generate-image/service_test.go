package generateimage

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func fastPoll(maxAttempts int) PollConfig {
	return PollConfig{Interval: time.Millisecond, MaxAttempts: maxAttempts, Timeout: 5 * time.Second}
}

func TestEnhancePrompt(t *testing.T) {
	tests := []struct {
		style Style
		want  string
	}{
		{StyleRealistic, "a woman, photorealistic, high quality, detailed, beautiful person, professional photography"},
		{StyleAnime, "a woman, anime style, high quality, detailed, beautiful character"},
		{StyleCartoon, "a woman, cartoon style, vibrant colors, detailed, cute character"},
		{StyleFantasy, "a woman, fantasy art style, magical, detailed, ethereal beauty"},
		{"watercolor", "a woman"},
		{"", "a woman"},
	}
	for _, tt := range tests {
		t.Run(string(tt.style), func(t *testing.T) {
			assert.Equal(t, tt.want, EnhancePrompt("a woman", tt.style))
		})
	}
}

func TestEnhancePrompt_EveryKnownStyleAppendsItsSuffix(t *testing.T) {
	for style, suffix := range styleSuffixes {
		assert.True(t, IsKnownStyle(style))
		assert.Equal(t, "prompt, "+suffix, EnhancePrompt("prompt", style))
	}
}

func TestGenerationRequest_Normalize(t *testing.T) {
	req := GenerationRequest{Prompt: "p"}.Normalize()
	assert.Equal(t, StyleRealistic, req.Style)
	assert.Equal(t, DefaultWidth, req.Width)
	assert.Equal(t, DefaultHeight, req.Height)

	req = GenerationRequest{Prompt: "p", Style: "steampunk", Width: 640, Height: 480}.Normalize()
	assert.Equal(t, Style("steampunk"), req.Style)
	assert.Equal(t, 640, req.Width)
	assert.Equal(t, 480, req.Height)
}

func TestGenerate_EmptyPromptMakesNoNetworkCalls(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	result, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "", Style: StyleAnime})
	assert.Nil(t, result)

	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "prompt", ve.Field)
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(err))

	requests, _, _ := m.counts()
	assert.Zero(t, requests)
}

func TestGenerate_NegativeDimensionsRejected(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p", Width: -1})
	var ve *ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "width", ve.Field)

	requests, _, _ := m.counts()
	assert.Zero(t, requests)
}

func TestGenerate_SucceedsOnNthPoll(t *testing.T) {
	const n = 4
	m := newMockReplicate(t, func(call int) (int, string) {
		switch {
		case call < 2:
			return http.StatusOK, statusBody("starting")
		case call < n:
			return http.StatusOK, statusBody("processing")
		default:
			return http.StatusOK, succeededBody("urlA", "urlB")
		}
	})
	svc := NewService(m.client(), fastPoll(10), zap.NewNop())

	result, err := svc.Generate(context.Background(), GenerationRequest{
		Prompt: "a smiling elf",
		Style:  StyleFantasy,
		Width:  512,
		Height: 768,
	})
	require.NoError(t, err)
	assert.Equal(t, &GenerationResult{Success: true, ImageURL: "urlA"}, result)

	_, statusCalls, cancelCalls := m.counts()
	assert.Equal(t, n, statusCalls)
	assert.Zero(t, cancelCalls)

	submitted, _ := m.submissions()
	require.Len(t, submitted, 1)
	assert.Equal(t, "a smiling elf, fantasy art style, magical, detailed, ethereal beauty", submitted[0].Input.Prompt)
	assert.Equal(t, 512, submitted[0].Input.Width)
	assert.Equal(t, 768, submitted[0].Input.Height)
}

func TestGenerate_DefaultsApplied(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "portrait"})
	require.NoError(t, err)

	submitted, _ := m.submissions()
	require.Len(t, submitted, 1)
	assert.Equal(t, "portrait, photorealistic, high quality, detailed, beautiful person, professional photography", submitted[0].Input.Prompt)
	assert.Equal(t, 1024, submitted[0].Input.Width)
	assert.Equal(t, 1024, submitted[0].Input.Height)
}

func TestGenerate_UnknownStyleSendsPromptUnchanged(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "portrait", Style: "pixel"})
	require.NoError(t, err)

	submitted, _ := m.submissions()
	require.Len(t, submitted, 1)
	assert.Equal(t, "portrait", submitted[0].Input.Prompt)
}

func TestGenerate_ProviderFailurePreservesReason(t *testing.T) {
	m := newMockReplicate(t, func(call int) (int, string) {
		if call == 1 {
			return http.StatusOK, statusBody("processing")
		}
		return http.StatusOK, `{"id":"pred-1","status":"failed","error":"NSFW content detected"}`
	})
	svc := NewService(m.client(), fastPoll(10), zap.NewNop())

	result, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})
	assert.Nil(t, result)

	var ge *GenerationError
	require.ErrorAs(t, err, &ge)
	assert.Equal(t, "NSFW content detected", ge.Reason)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
	assert.Equal(t, "NSFW content detected", ErrorReason(err))
	assert.Equal(t, CodeGeneration, ErrorCode(err))

	_, statusCalls, _ := m.counts()
	assert.Equal(t, 2, statusCalls)
}

func TestGenerate_NeverTerminalHitsAttemptCap(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, statusBody("starting") })
	svc := NewService(m.client(), fastPoll(5), zap.NewNop())

	result, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})
	assert.Nil(t, result)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, 5, te.Attempts)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))

	_, statusCalls, cancelCalls := m.counts()
	assert.Equal(t, 5, statusCalls)
	assert.Equal(t, 1, cancelCalls)
}

func TestGenerate_NeverTerminalHitsWallClockTimeout(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, statusBody("processing") })
	svc := NewService(m.client(), PollConfig{
		Interval:    10 * time.Millisecond,
		MaxAttempts: 100000,
		Timeout:     80 * time.Millisecond,
	}, zap.NewNop())

	start := time.Now()
	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})
	elapsed := time.Since(start)

	var te *TimeoutError
	require.ErrorAs(t, err, &te)
	assert.Less(t, elapsed, 5*time.Second)

	_, statusCalls, _ := m.counts()
	assert.Less(t, statusCalls, 100000)
}

func TestGenerate_EmptyArtifactList(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) {
		return http.StatusOK, `{"id":"pred-1","status":"succeeded","output":[]}`
	})
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	result, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})
	assert.Nil(t, result)

	var ee *EmptyArtifactError
	require.ErrorAs(t, err, &ee)
	assert.Equal(t, "pred-1", ee.JobID)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))
}

func TestGenerate_PollTransportErrorIsNotRetried(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusInternalServerError, "boom" })
	svc := NewService(m.client(), fastPoll(10), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})

	var te *TransportError
	require.ErrorAs(t, err, &te)
	assert.Equal(t, http.StatusInternalServerError, te.StatusCode)

	_, statusCalls, _ := m.counts()
	assert.Equal(t, 1, statusCalls)
}

func TestGenerate_SubmissionRejected(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	m.submitCode = http.StatusUnauthorized
	m.submitBody = `{"detail":"Unauthenticated"}`
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})

	var se *SubmissionError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, http.StatusUnauthorized, se.StatusCode)
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(err))

	_, statusCalls, _ := m.counts()
	assert.Zero(t, statusCalls)
}

func TestGenerate_CancelledBetweenPolls(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	m := newMockReplicate(t, func(call int) (int, string) {
		if call == 2 {
			cancel()
		}
		return http.StatusOK, statusBody("processing")
	})
	svc := NewService(m.client(), fastPoll(100), zap.NewNop())

	_, err := svc.Generate(ctx, GenerationRequest{Prompt: "p"})

	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.True(t, errors.Is(err, context.Canceled))
	assert.Equal(t, CodeCancelled, ErrorCode(err))

	_, statusCalls, _ := m.counts()
	assert.LessOrEqual(t, statusCalls, 3)
}

func TestGenerate_ConcurrentRequestsAreIndependent(t *testing.T) {
	a := newMockReplicate(t, func(call int) (int, string) {
		if call < 3 {
			return http.StatusOK, statusBody("processing")
		}
		return http.StatusOK, succeededBody("https://a.example/1.png")
	})
	b := newMockReplicate(t, func(call int) (int, string) {
		if call < 5 {
			return http.StatusOK, statusBody("starting")
		}
		return http.StatusOK, succeededBody("https://b.example/1.png")
	})
	svcA := NewService(a.client(), fastPoll(10), zap.NewNop())
	svcB := NewService(b.client(), fastPoll(10), zap.NewNop())

	var wg sync.WaitGroup
	results := make([]*GenerationResult, 2)
	errs := make([]error, 2)
	wg.Add(2)
	go func() {
		defer wg.Done()
		results[0], errs[0] = svcA.Generate(context.Background(), GenerationRequest{Prompt: "first", Style: StyleAnime})
	}()
	go func() {
		defer wg.Done()
		results[1], errs[1] = svcB.Generate(context.Background(), GenerationRequest{Prompt: "second", Style: StyleCartoon})
	}()
	wg.Wait()

	require.NoError(t, errs[0])
	require.NoError(t, errs[1])
	assert.Equal(t, "https://a.example/1.png", results[0].ImageURL)
	assert.Equal(t, "https://b.example/1.png", results[1].ImageURL)

	_, callsA, _ := a.counts()
	_, callsB, _ := b.counts()
	assert.Equal(t, 3, callsA)
	assert.Equal(t, 5, callsB)

	subA, _ := a.submissions()
	subB, _ := b.submissions()
	assert.Contains(t, subA[0].Input.Prompt, "first, anime style")
	assert.Contains(t, subB[0].Input.Prompt, "second, cartoon style")
}

func TestGenerate_SharedServiceConcurrentRequests(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			result, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "p"})
			assert.NoError(t, err)
			if result != nil {
				assert.Equal(t, "urlA", result.ImageURL)
			}
		}()
	}
	wg.Wait()

	_, statusCalls, _ := m.counts()
	assert.Equal(t, 8, statusCalls)
}

func TestExtractArtifact(t *testing.T) {
	url, err := extractArtifact("j", []string{"first", "second"})
	require.NoError(t, err)
	assert.Equal(t, "first", url)

	_, err = extractArtifact("j", nil)
	var ee *EmptyArtifactError
	assert.ErrorAs(t, err, &ee)
}

func TestGenerate_WhitespacePromptIsSubmitted(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	_, err := svc.Generate(context.Background(), GenerationRequest{Prompt: "  ", Style: "pixel"})
	require.NoError(t, err)

	submitted, _ := m.submissions()
	require.Len(t, submitted, 1)
	assert.Equal(t, "  ", submitted[0].Input.Prompt)
}

func TestGenerate_CancelledBeforeSubmission(t *testing.T) {
	m := newMockReplicate(t, func(int) (int, string) { return http.StatusOK, succeededBody("urlA") })
	svc := NewService(m.client(), fastPoll(3), zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := svc.Generate(ctx, GenerationRequest{Prompt: "p"})

	var ce *CancelledError
	require.ErrorAs(t, err, &ce)
	assert.Empty(t, ce.JobID)
	assert.Equal(t, "cancelled before submission: context canceled", err.Error())
	assert.Equal(t, "cancelled before submission: context canceled", ErrorReason(err))

	_, statusCalls, _ := m.counts()
	assert.Zero(t, statusCalls)
}

func TestCancelledError_MessageWithJobID(t *testing.T) {
	err := &CancelledError{JobID: "pred-1", Err: context.Canceled}
	assert.Equal(t, "job pred-1 cancelled: context canceled", err.Error())
}

func TestTruncateString(t *testing.T) {
	assert.Equal(t, "short", truncateString("short", 10))
	assert.Equal(t, "abcd...", truncateString("abcdefgh", 4))

	// 한 글자는 3바이트
	got := truncateString("가나다라", 4)
	assert.Equal(t, "가...", got)
	assert.True(t, utf8.ValidString(got))

	assert.Equal(t, "가나...", truncateString("가나다라", 6))
	assert.Equal(t, "...", truncateString("가나", 2))
}
