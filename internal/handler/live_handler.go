package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/quizdrive/quizdrive-backend/internal/engine"
	"github.com/quizdrive/quizdrive-backend/internal/service"
	ws "github.com/quizdrive/quizdrive-backend/internal/websocket"
)

// LiveHandler handles registration-free live/replay viewing runs. A run
// paces through the exam's questions by media duration, collects no answers
// and produces no result.
type LiveHandler struct {
	examService *service.ExamService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewLiveHandler creates a new LiveHandler.
func NewLiveHandler(examService *service.ExamService, log zerolog.Logger, allowedOrigins []string) *LiveHandler {
	return &LiveHandler{
		examService: examService,
		log:         log.With().Str("component", "live_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// LiveStream godoc
// WS /ws/v1/live/exams/:exam_id/stream
// Upgrades to WebSocket and drives a paced viewing run over the published
// exam. Skips and media-end reports come from the client; advances and the
// final finish frame go back.
func (h *LiveHandler) LiveStream(c *gin.Context) {
	examID, err := uuid.Parse(c.Param("exam_id"))
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid exam ID"})
		return
	}

	exam, err := h.examService.GetPublished(c.Request.Context(), examID)
	if err != nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "exam not available"})
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wc := &wsConn{conn: conn}

	driver := engine.NewLiveDriver(exam, h.log)
	defer driver.Close()

	wsLog := h.log.With().Str("exam_id", examID.String()).Logger()
	wsLog.Info().Msg("Viewer connected")

	// Opening frame so the client can start the first medium.
	h.writeCurrent(wc, driver)

	go h.driveTicks(wc, driver)

	for {
		_, raw, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				wsLog.Warn().Err(err).Msg("Unexpected close")
			} else {
				wsLog.Debug().Msg("Viewer disconnected")
			}
			return
		}

		var envelope ws.RequestEnvelope
		if err := json.Unmarshal(raw, &envelope); err != nil {
			wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed message"})
			continue
		}

		switch envelope.Action {
		case ws.ActionSkip:
			driver.Skip()
		case ws.ActionMediaEnded:
			var msg ws.MediaEndedRequest
			if err := json.Unmarshal(raw, &msg); err != nil {
				wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "malformed media_ended payload"})
				continue
			}
			driver.MediaEnded(msg.Seq)
		case ws.ActionPing:
			wc.write(ws.PongResponse{Event: ws.EventPong})
		default:
			wc.write(ws.ErrorResponse{Event: ws.EventError, Error: "unknown action: " + string(envelope.Action)})
		}
	}
}

// driveTicks runs the driver's clock and forwards its progression events.
func (h *LiveHandler) driveTicks(wc *wsConn, driver *engine.LiveDriver) {
	ticker := time.NewTicker(time.Second)
	defer ticker.Stop()

	for {
		select {
		case ev, ok := <-driver.Events():
			if !ok {
				return
			}
			if ev.Finished {
				wc.write(ws.FinishedResponse{Event: ws.EventFinished})
				return
			}
			h.writeCurrent(wc, driver)

		case <-driver.Done():
			// Drain any trailing finish event, then stop.
			select {
			case ev := <-driver.Events():
				if ev.Finished {
					wc.write(ws.FinishedResponse{Event: ws.EventFinished})
				}
			default:
			}
			return

		case <-ticker.C:
			driver.Tick()
		}
	}
}

// writeCurrent announces the item now playing with its sequence number.
func (h *LiveHandler) writeCurrent(wc *wsConn, driver *engine.LiveDriver) {
	items := driver.Items()
	idx := driver.Current()
	if idx < 0 || idx >= len(items) {
		return
	}
	wc.write(ws.AdvancedResponse{
		Event:    ws.EventAdvanced,
		Index:    idx,
		Seq:      driver.Seq(),
		MediaRef: items[idx].MediaRef,
		Seconds:  items[idx].Seconds,
	})
}
