package server

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
	"go.uber.org/zap"
)

// NewRouter 挂载 WebSocket、监控接口与静态资源（staticDir 为空则不挂载）
func NewRouter(h *Hub, staticDir string) *mux.Router {
	r := mux.NewRouter()
	r.HandleFunc("/ws", h.ServeWS)
	r.HandleFunc("/healthz", HandleHealth).Methods(http.MethodGet)
	r.HandleFunc("/metrics", h.HandleMetrics).Methods(http.MethodGet)
	r.HandleFunc("/players", h.HandlePlayers).Methods(http.MethodGet)
	if staticDir != "" {
		// 前后端分离：将 / 映射到静态资源目录
		r.PathPrefix("/").Handler(http.FileServer(http.Dir(staticDir)))
	}
	return r
}

// HandleHealth 存活检查
func HandleHealth(w http.ResponseWriter, _ *http.Request) {
	_, _ = w.Write([]byte("ok"))
}

// HandleMetrics 输出运行指标
// GET /metrics
func (h *Hub) HandleMetrics(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, h.log, map[string]any{"metrics": h.metrics.Snapshot()})
}

// HandlePlayers 输出当前公开视图（与广播给客户端的内容相同）
// GET /players
func (h *Hub) HandlePlayers(w http.ResponseWriter, r *http.Request) {
	view, err := h.PublicView(r.Context())
	if err != nil {
		http.Error(w, "unavailable", http.StatusServiceUnavailable)
		return
	}
	writeJSON(w, h.log, view)
}

func writeJSON(w http.ResponseWriter, log *zap.Logger, v any) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Warn("writing response", zap.Error(err))
	}
}
