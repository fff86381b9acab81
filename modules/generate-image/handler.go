package generateimage

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// Generator - Handler 가 의존하는 생성 기능
type Generator interface {
	Generate(ctx context.Context, req GenerationRequest) (*GenerationResult, error)
}

// GenerateResponse - POST /api/generate-image 응답
type GenerateResponse struct {
	Success  bool   `json:"success"`
	ImageURL string `json:"imageUrl,omitempty"`
	Error    string `json:"error,omitempty"`
	Code     string `json:"code,omitempty"`
	Reason   string `json:"reason,omitempty"`
}

type Handler struct {
	generator Generator
	logger    *zap.Logger
}

func NewHandler(generator Generator, logger *zap.Logger) *Handler {
	return &Handler{
		generator: generator,
		logger:    logger,
	}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generate-image", h.HandleGenerate).Methods("POST", "OPTIONS")
}

// HandleGenerate - POST /api/generate-image
func (h *Handler) HandleGenerate(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("[GenerateImage] invalid request body", zap.Error(err))
		WriteError(w, &ValidationError{Field: "body", Reason: "Invalid request body"})
		return
	}

	result, err := h.generator.Generate(r.Context(), req)
	if err != nil {
		WriteError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, GenerateResponse{
		Success:  true,
		ImageURL: result.ImageURL,
	})
}

// ErrorResponse - 분류된 에러를 응답 body 로 변환
func ErrorResponse(err error) GenerateResponse {
	resp := GenerateResponse{
		Success: false,
		Error:   "Failed to generate image",
		Code:    ErrorCode(err),
		Reason:  ErrorReason(err),
	}
	if HTTPStatus(err) == http.StatusBadRequest {
		resp.Error = resp.Reason
	}
	return resp
}

// WriteError - 에러를 HTTP 상태 코드와 JSON body 로 기록
func WriteError(w http.ResponseWriter, err error) {
	writeJSON(w, HTTPStatus(err), ErrorResponse(err))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
