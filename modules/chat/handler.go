package chat

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// HistoryMessage - 이전 대화
type HistoryMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Request - POST /api/chat 요청
type Request struct {
	Message              string           `json:"message"`
	CharacterPersonality string           `json:"characterPersonality"`
	ConversationHistory  []HistoryMessage `json:"conversationHistory"`
}

// Response - POST /api/chat 응답
type Response struct {
	Success  bool   `json:"success"`
	Response string `json:"response,omitempty"`
	Error    string `json:"error,omitempty"`
}

type Handler struct {
	logger *zap.Logger
}

func NewHandler(logger *zap.Logger) *Handler {
	return &Handler{logger: logger}
}

// RegisterRoutes - 라우트 등록
func (h *Handler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/chat", h.HandleChat).Methods("POST", "OPTIONS")
}

// HandleChat - POST /api/chat
func (h *Handler) HandleChat(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("[Chat] invalid request body", zap.Error(err))
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Invalid request body"})
		return
	}
	if req.Message == "" || req.CharacterPersonality == "" {
		writeJSON(w, http.StatusBadRequest, Response{Success: false, Error: "Message and character personality are required"})
		return
	}

	reply := Respond(req.Message, req.CharacterPersonality)
	h.logger.Debug("[Chat] reply generated", zap.Int("history", len(req.ConversationHistory)))
	writeJSON(w, http.StatusOK, Response{Success: true, Response: reply})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
