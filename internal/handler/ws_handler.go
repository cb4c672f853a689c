package handler

import (
	"encoding/json"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
	"github.com/stemsi/exstem-authoring/internal/bulk"
	"github.com/stemsi/exstem-authoring/internal/model"
	"github.com/stemsi/exstem-authoring/internal/response"
	"github.com/stemsi/exstem-authoring/internal/service"
	ws "github.com/stemsi/exstem-authoring/internal/websocket"
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

// WSHandler streams bulk run progress.
type WSHandler struct {
	bulkService *service.BulkService
	log         zerolog.Logger
	upgrader    websocket.Upgrader
}

// NewWSHandler creates a new WSHandler.
func NewWSHandler(bulkService *service.BulkService, log zerolog.Logger, allowedOrigins []string) *WSHandler {
	return &WSHandler{
		bulkService: bulkService,
		log:         log.With().Str("component", "ws_handler").Logger(),
		upgrader:    buildUpgrader(allowedOrigins),
	}
}

// BulkRunStream godoc
// WS /ws/v1/authoring/bulk/:id/stream
// Sends the stored run state, then relays progress events until the run
// finishes or the client leaves.
func (h *WSHandler) BulkRunStream(c *gin.Context) {
	runID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		response.Fail(c, http.StatusBadRequest, response.ErrInvalidID)
		return
	}

	ctx := c.Request.Context()
	owner := author(c)
	if _, err := h.bulkService.Get(ctx, owner, runID); err != nil {
		writeError(c, h.log, err)
		return
	}

	// Subscribe before reading the snapshot so no event falls in between.
	sub := h.bulkService.Subscribe(ctx, runID.String())
	defer sub.Close()
	if _, err := sub.Receive(ctx); err != nil {
		h.log.Error().Err(err).Msg("Subscribe failed")
		response.Fail(c, http.StatusInternalServerError, response.ErrInternal)
		return
	}

	conn, err := h.upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		h.log.Error().Err(err).Msg("WebSocket upgrade failed")
		return
	}
	defer conn.Close()

	wsLog := h.log.With().Str("run_id", runID.String()).Str("author", owner).Logger()
	wsLog.Debug().Msg("Client connected")

	run, err := h.bulkService.Get(ctx, owner, runID)
	if err != nil {
		_ = ws.WriteError(conn, "run unavailable")
		return
	}
	if err := ws.WriteTyped(conn, ws.SnapshotResponse{Event: ws.EventSnapshot, Run: run}); err != nil {
		return
	}
	if run.Status == model.BulkRunSucceeded || run.Status == model.BulkRunFailed {
		_ = ws.WriteClose(conn, "run finished")
		return
	}

	// The reader goroutine only turns pings into pong requests; every write
	// happens on this goroutine.
	pings := make(chan struct{}, 1)
	gone := make(chan struct{})
	go func() {
		defer close(gone)
		for {
			var msg ws.RequestEnvelope
			if err := ws.ReadJSON(conn, &msg); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					wsLog.Warn().Err(err).Msg("Unexpected close")
				}
				return
			}
			if msg.Action == ws.ActionPing {
				select {
				case pings <- struct{}{}:
				default:
				}
			}
		}
	}()

	events := sub.Channel()
	for {
		select {
		case <-gone:
			return
		case <-ctx.Done():
			return
		case <-pings:
			if err := ws.WriteTyped(conn, ws.PongResponse{Event: ws.EventPong}); err != nil {
				return
			}
		case msg, ok := <-events:
			if !ok {
				return
			}
			if err := ws.WriteTyped(conn, ws.ProgressResponse{Event: ws.EventProgress, Progress: json.RawMessage(msg.Payload)}); err != nil {
				return
			}
			var ev service.BulkEvent
			if json.Unmarshal([]byte(msg.Payload), &ev) == nil && ev.Kind == bulk.EventFinished {
				_ = ws.WriteClose(conn, "run finished")
				return
			}
		}
	}
}
