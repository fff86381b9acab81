package worker

import (
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"clonesome-server/modules/common/model"
	generateimage "clonesome-server/modules/generate-image"
)

// EnqueueResponse - Enqueue 응답
type EnqueueResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	Queue         string `json:"queue,omitempty"`
	QueuePosition int64  `json:"queuePosition,omitempty"`
}

// JobResponse - job 조회 응답
type JobResponse struct {
	Success bool                 `json:"success"`
	Error   string               `json:"error,omitempty"`
	Job     *model.GenerationJob `json:"job,omitempty"`
}

// JobHandler - 비동기 job 생성/조회/취소 API
type JobHandler struct {
	store  *Store
	logger *zap.Logger
	now    func() time.Time
}

func NewJobHandler(store *Store, logger *zap.Logger) *JobHandler {
	return &JobHandler{store: store, logger: logger, now: time.Now}
}

// RegisterRoutes - 라우트 등록
func (h *JobHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/api/generate-image/jobs", h.HandleEnqueue).Methods("POST", "OPTIONS")
	r.HandleFunc("/api/generate-image/jobs/{jobId}", h.HandleGetJob).Methods("GET")
	r.HandleFunc("/api/generate-image/jobs/{jobId}/cancel", h.HandleCancel).Methods("POST", "OPTIONS")
}

// HandleEnqueue - POST /api/generate-image/jobs
func (h *JobHandler) HandleEnqueue(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	var req generateimage.GenerationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.logger.Warn("[Enqueue] invalid request", zap.Error(err))
		generateimage.WriteError(w, &generateimage.ValidationError{Field: "body", Reason: "Invalid request body"})
		return
	}
	req = req.Normalize()
	if err := req.Validate(); err != nil {
		generateimage.WriteError(w, err)
		return
	}

	job := &model.GenerationJob{
		JobID:     uuid.NewString(),
		Prompt:    req.Prompt,
		Style:     string(req.Style),
		Width:     req.Width,
		Height:    req.Height,
		CreatedAt: h.now().UnixMilli(),
	}
	job.SetStatus(model.StatusPending, h.now())

	ctx := r.Context()
	if err := h.store.Save(ctx, job); err != nil {
		h.logger.Error("[Enqueue] failed to save job", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, EnqueueResponse{Success: false, Error: "Failed to create job"})
		return
	}
	position, err := h.store.Enqueue(ctx, job.JobID)
	if err != nil {
		h.logger.Error("[Enqueue] Redis LPUSH failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, EnqueueResponse{Success: false, Error: "Failed to enqueue job"})
		return
	}

	h.logger.Info("[Enqueue] job enqueued", zap.String("job_id", job.JobID), zap.Int64("position", position))
	writeJSON(w, http.StatusAccepted, EnqueueResponse{
		Success:       true,
		Message:       "Job enqueued successfully",
		JobID:         job.JobID,
		Queue:         QueueKey,
		QueuePosition: position,
	})
}

// HandleGetJob - GET /api/generate-image/jobs/{jobId}
func (h *JobHandler) HandleGetJob(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]

	job, err := h.store.Get(r.Context(), jobID)
	if errors.Is(err, ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, JobResponse{Success: false, Error: "Job not found"})
		return
	}
	if err != nil {
		h.logger.Error("[Jobs] failed to load job", zap.String("job_id", jobID), zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, JobResponse{Success: false, Error: "Failed to load job"})
		return
	}

	writeJSON(w, http.StatusOK, JobResponse{Success: true, Job: job})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
