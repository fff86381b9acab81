package worker

import (
	"errors"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"

	"clonesome-server/modules/common/model"
)

// CancelResponse - 취소 요청 응답
type CancelResponse struct {
	Success       bool   `json:"success"`
	Message       string `json:"message,omitempty"`
	Error         string `json:"error,omitempty"`
	JobID         string `json:"job_id,omitempty"`
	CurrentStatus string `json:"current_status,omitempty"`
}

// HandleCancel - POST /api/generate-image/jobs/{jobId}/cancel
// 플래그만 설정하고, 실제 중단은 worker 가 다음 확인 때 한다.
func (h *JobHandler) HandleCancel(w http.ResponseWriter, r *http.Request) {
	if r.Method == http.MethodOptions {
		w.WriteHeader(http.StatusOK)
		return
	}

	jobID := mux.Vars(r)["jobId"]
	log := h.logger.With(zap.String("job_id", jobID))
	ctx := r.Context()

	job, err := h.store.Get(ctx, jobID)
	if errors.Is(err, ErrJobNotFound) {
		writeJSON(w, http.StatusNotFound, CancelResponse{Success: false, Error: "Job not found", JobID: jobID})
		return
	}
	if err != nil {
		log.Error("[CancelHandler] failed to load job", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, CancelResponse{Success: false, Error: "Failed to load job", JobID: jobID})
		return
	}

	// 이미 끝난 job 은 취소 불가
	if model.IsTerminalStatus(job.Status) {
		log.Info("[CancelHandler] job already finished", zap.String("status", job.Status))
		writeJSON(w, http.StatusConflict, CancelResponse{
			Success:       false,
			Message:       "Job already " + job.Status,
			JobID:         jobID,
			CurrentStatus: job.Status,
		})
		return
	}

	if err := h.store.SetCancelled(ctx, jobID); err != nil {
		log.Error("[CancelHandler] failed to set cancel flag", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, CancelResponse{Success: false, Error: "Failed to set cancel flag", JobID: jobID})
		return
	}

	log.Info("[CancelHandler] cancel flag set", zap.String("status", job.Status))
	writeJSON(w, http.StatusOK, CancelResponse{
		Success:       true,
		Message:       "Cancel request sent. Job will stop at the next status check.",
		JobID:         jobID,
		CurrentStatus: job.Status,
	})
}
