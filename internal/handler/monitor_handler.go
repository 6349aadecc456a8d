package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"

	"github.com/campushq/campus-backend/internal/config"
	"github.com/campushq/campus-backend/internal/service"
	ws "github.com/campushq/campus-backend/internal/websocket"
)

// buildUpgrader creates a WebSocket upgrader with origin validation.
// allowedOrigins comes from config.Config.AllowedOrigins.
// An empty slice permits all origins (development mode).
func buildUpgrader(allowedOrigins []string) websocket.Upgrader {
	return websocket.Upgrader{
		ReadBufferSize:  1024,
		WriteBufferSize: 1024,
		CheckOrigin: func(r *http.Request) bool {
			if len(allowedOrigins) == 0 {
				return true
			}
			origin := r.Header.Get("Origin")
			for _, allowed := range allowedOrigins {
				if strings.EqualFold(allowed, origin) {
					return true
				}
			}
			return false
		},
	}
}

// MonitorHandler streams live session and exam activity to the owning
// instructor over WebSocket, fed by Redis PubSub.
type MonitorHandler struct {
	rdb               *redis.Client
	attendanceService *service.AttendanceService
	examService       *service.ExamService
	log               zerolog.Logger
	upgrader          websocket.Upgrader
}

// NewMonitorHandler creates a new MonitorHandler.
func NewMonitorHandler(rdb *redis.Client, attendanceService *service.AttendanceService, examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *MonitorHandler {
	return &MonitorHandler{
		rdb:               rdb,
		attendanceService: attendanceService,
		examService:       examService,
		log:               log.With().Str("component", "monitor_handler").Logger(),
		upgrader:          buildUpgrader(allowedOrigins),
	}
}

// SessionStream godoc
// WS /ws/v1/instructor/sessions/:session_id/stream
// Streams mark events for a session to its owner in real time.
func (h *MonitorHandler) SessionStream(c *gin.Context) {
	sessionID, err := uuid.Parse(c.Param("session_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid session ID"})
		return
	}

	sess, err := h.attendanceService.GetSession(c.Request.Context(), sessionID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session not found"})
		return
	}
	if sess.OwnerID != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the session owner"})
		return
	}

	h.stream(c, config.CacheKey.SessionMonitorChannel(sessionID.String()))
}

// ExamStream godoc
// WS /ws/v1/instructor/exams/:exam_id/stream
// Streams attempt activity for an exam to its owner in real time.
func (h *MonitorHandler) ExamStream(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	exam, err := h.examService.GetByID(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not found"})
		return
	}
	if exam.OwnerID != userID(c) {
		c.JSON(http.StatusForbidden, gin.H{"error": "not the exam owner"})
		return
	}

	h.stream(c, config.CacheKey.ExamMonitorChannel(examID.String()))
}

// stream upgrades the connection and pumps PubSub messages until either
// side goes away. The reader goroutine only services pings and detects
// client disconnects.
func (h *MonitorHandler) stream(c *gin.Context, channel string) {
	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(c.Request.Context())
	defer cancel()

	sub := h.rdb.Subscribe(ctx, channel)
	defer sub.Close()

	streamLog := h.log.With().Str("channel", channel).Logger()
	streamLog.Info().Msg("Monitor connected")

	go func() {
		defer cancel()
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					streamLog.Warn().Err(err).Msg("Unexpected close")
				} else {
					streamLog.Debug().Msg("Connection closed")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong})
			}
		}
	}()

	ch := sub.Channel()
	for {
		select {
		case <-ctx.Done():
			return
		case msg, ok := <-ch:
			if !ok {
				return
			}
			err := ws.WriteTyped(conn, ws.UpdateResponse{
				Event:   ws.EventUpdate,
				Payload: json.RawMessage(msg.Payload),
			})
			if err != nil {
				streamLog.Debug().Err(err).Msg("Write failed, closing stream")
				return
			}
		}
	}
}
