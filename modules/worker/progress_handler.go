package worker

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"go.uber.org/zap"

	"clonesome-server/modules/common/model"
)

const writeWait = 10 * time.Second

// ProgressHandler - job 상태를 websocket 으로 전달
type ProgressHandler struct {
	store    *Store
	logger   *zap.Logger
	upgrader websocket.Upgrader
}

func NewProgressHandler(store *Store, logger *zap.Logger) *ProgressHandler {
	return &ProgressHandler{
		store:  store,
		logger: logger,
		upgrader: websocket.Upgrader{
			// 모든 origin 허용. 앞단 CORS 정책을 따른다.
			CheckOrigin: func(r *http.Request) bool { return true },
		},
	}
}

// RegisterRoutes - 라우트 등록
func (h *ProgressHandler) RegisterRoutes(r *mux.Router) {
	r.HandleFunc("/ws/jobs/{jobId}", h.HandleProgress).Methods("GET")
}

// HandleProgress - GET /ws/jobs/{jobId}
// 현재 상태를 먼저 보내고, terminal 상태가 될 때까지 이벤트를 전달한다.
func (h *ProgressHandler) HandleProgress(w http.ResponseWriter, r *http.Request) {
	jobID := mux.Vars(r)["jobId"]
	log := h.logger.With(zap.String("job_id", jobID))

	if _, err := h.store.Get(r.Context(), jobID); err != nil {
		if errors.Is(err, ErrJobNotFound) {
			writeJSON(w, http.StatusNotFound, JobResponse{Success: false, Error: "Job not found"})
			return
		}
		log.Error("[Progress] failed to load job", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, JobResponse{Success: false, Error: "Failed to load job"})
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// 구독을 먼저 해야 현재 상태 조회와 첫 이벤트 사이를 놓치지 않는다
	sub, err := h.store.Subscribe(ctx, jobID)
	if err != nil {
		log.Error("[Progress] subscribe failed", zap.Error(err))
		writeJSON(w, http.StatusInternalServerError, JobResponse{Success: false, Error: "Failed to subscribe"})
		return
	}
	defer sub.Close()

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Warn("[Progress] websocket upgrade failed", zap.Error(err))
		return
	}
	defer conn.Close()

	// 클라이언트가 끊으면 종료
	go func() {
		defer cancel()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Debug("[Progress] client read error", zap.Error(err))
				}
				return
			}
		}
	}()

	job, err := h.store.Get(ctx, jobID)
	if err != nil {
		log.Error("[Progress] failed to load job", zap.Error(err))
		return
	}
	if !h.send(conn, job.Event(), log) || model.IsTerminalStatus(job.Status) {
		closeNormal(conn)
		return
	}

	events := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-events:
			if !ok {
				return
			}
			var ev model.JobEvent
			if err := json.Unmarshal([]byte(msg.Payload), &ev); err != nil {
				log.Warn("[Progress] invalid event payload", zap.Error(err))
				continue
			}
			if !h.send(conn, ev, log) {
				return
			}
			if model.IsTerminalStatus(ev.Status) {
				closeNormal(conn)
				return
			}
		}
	}
}

func (h *ProgressHandler) send(conn *websocket.Conn, ev model.JobEvent, log *zap.Logger) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(writeWait))
	if err := conn.WriteJSON(ev); err != nil {
		log.Debug("[Progress] websocket write failed", zap.Error(err))
		return false
	}
	return true
}

func closeNormal(conn *websocket.Conn) {
	msg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, "job finished")
	_ = conn.WriteControl(websocket.CloseMessage, msg, time.Now().Add(writeWait))
}
