package api

import (
	"context"
	"fmt"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"
	"github.com/labstack/echo/v4"

	"FolioSim/internal/domain/models"
	"FolioSim/internal/usecase"
	xhttp "FolioSim/pkg/http"
	xlogger "FolioSim/pkg/logger"
)

const (
	streamWriteWait  = 10 * time.Second
	progressInterval = 100 * time.Millisecond
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(*http.Request) bool { return true },
}

// StreamHandler runs a simulation over a WebSocket: the client sends one
// request frame, the server streams progress counts and a final result.
type StreamHandler struct {
	logger *xlogger.Logger
	sim    *usecase.SimulateUseCase
}

func NewStreamHandler(logger *xlogger.Logger, sim *usecase.SimulateUseCase) *StreamHandler {
	return &StreamHandler{logger: logger, sim: sim}
}

func (h *StreamHandler) RegisterRoutes(e *echo.Echo) {
	e.GET("/api/simulate/stream", h.Stream)
}

type progressFrame struct {
	Type      string `json:"type"`
	Completed int    `json:"completed"`
	Total     int    `json:"total"`
}

type resultFrame struct {
	Type   string                     `json:"type"`
	Result *models.SimulationResponse `json:"result"`
}

type errorFrame struct {
	Type    string      `json:"type"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

func (h *StreamHandler) Stream(c echo.Context) error {
	// Upgrade writes its own handshake error response on failure.
	conn, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		return fmt.Errorf("websocket upgrade: %w", err)
	}
	defer conn.Close()

	// Drop the server read deadline inherited from the hijacked request;
	// the connection outlives it for the whole run.
	_ = conn.SetReadDeadline(time.Time{})

	req := &models.SimulationRequest{}
	if err := conn.ReadJSON(req); err != nil {
		h.writeFrame(conn, errorFrame{Type: "error", Message: "invalid request frame: " + err.Error()})
		return nil
	}
	if verr := xhttp.ValidateStruct(c.Request().Context(), req); verr != nil {
		h.writeFrame(conn, errorFrame{Type: "error", Message: "request validation failed", Details: verr})
		return nil
	}

	// Cancel the run when the client goes away. After the upgrade the
	// request context no longer tracks the connection, so a read loop
	// stands in for it.
	ctx, cancel := context.WithCancel(c.Request().Context())
	defer cancel()
	go func() {
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				cancel()
				return
			}
		}
	}()

	// Trials complete on worker goroutines; writes must stay on one.
	// The callback only advances a high-water mark and a ticker goroutine
	// flushes it, so slow clients drop frames instead of stalling workers.
	var completed, total atomic.Int64
	progress := func(done, tot int) {
		total.Store(int64(tot))
		for {
			cur := completed.Load()
			if int64(done) <= cur || completed.CompareAndSwap(cur, int64(done)) {
				return
			}
		}
	}

	stop := make(chan struct{})
	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		ticker := time.NewTicker(progressInterval)
		defer ticker.Stop()

		var last int64
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				cur := completed.Load()
				if cur == last {
					continue
				}
				last = cur
				frame := progressFrame{Type: "progress", Completed: int(cur), Total: int(total.Load())}
				if !h.writeFrame(conn, frame) {
					return
				}
			}
		}
	}()

	res, err := h.sim.SimulateWithProgress(ctx, req, progress)
	close(stop)
	<-writerDone

	if err != nil {
		h.logger.Warn("streamed simulation failed", xlogger.Error(err))
		h.writeFrame(conn, errorFrame{Type: "error", Message: err.Error()})
		return nil
	}

	h.writeFrame(conn, progressFrame{
		Type:      "progress",
		Completed: req.NumSimulations,
		Total:     req.NumSimulations,
	})
	h.writeFrame(conn, resultFrame{Type: "result", Result: res})

	_ = conn.WriteControl(websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
		time.Now().Add(streamWriteWait))
	return nil
}

func (h *StreamHandler) writeFrame(conn *websocket.Conn, frame interface{}) bool {
	_ = conn.SetWriteDeadline(time.Now().Add(streamWriteWait))
	if err := conn.WriteJSON(frame); err != nil {
		h.logger.Debug("stream write failed", xlogger.Error(err))
		return false
	}
	return true
}
