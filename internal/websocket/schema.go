package websocket

import (
	"encoding/json"

	"github.com/stemsi/exstem-authoring/internal/model"
)

// ─── Actions (Client → Server) ──────────────────────────────────────

type Action string

const (
	ActionPing Action = "ping"
)

// RequestEnvelope is used to peek at the action before full parsing.
type RequestEnvelope struct {
	Action Action `json:"action"`
}

// ─── Events (Server → Client) ───────────────────────────────────────

type Event string

const (
	EventError    Event = "error"
	EventSnapshot Event = "snapshot"
	EventProgress Event = "progress"
	EventPong     Event = "pong"
)

// SnapshotResponse carries the stored state of a run, sent on connect.
type SnapshotResponse struct {
	Event Event          `json:"event"`
	Run   *model.BulkRun `json:"run"`
}

// ProgressResponse relays one progress event as published by the worker.
type ProgressResponse struct {
	Event    Event           `json:"event"`
	Progress json.RawMessage `json:"progress"`
}

type ErrorResponse struct {
	Event Event  `json:"event"`
	Error string `json:"error"`
}

type PongResponse struct {
	Event Event `json:"event"`
}
