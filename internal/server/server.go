// Package server implements the per-connection handler: handshake →
// recipe → run → summary (spec.md §4.5).
package server

import (
	"context"
	"encoding/json"
	"errors"
	"io"

	"taskd/internal/obslog"
	"taskd/internal/queue"
	"taskd/internal/wire"
)

// Handler serves one connection at a time against a shared job queue.
type Handler struct {
	queue *queue.Queue
	log   obslog.Logger
}

// New builds a Handler that submits recipes to q.
func New(q *queue.Queue, log obslog.Logger) *Handler {
	return &Handler{queue: q, log: log}
}

// HandleConn runs one client session to completion: handshake, status,
// recipe, run, response. conn is always closed before returning.
func (h *Handler) HandleConn(ctx context.Context, conn io.ReadWriteCloser) {
	defer conn.Close()
	codec := wire.NewCodec(conn)

	hs, err := codec.ReadHandshake()
	if err != nil {
		h.log.WithFields(map[string]any{"err": err.Error()}).Debug("handshake rejected")
		_ = codec.WriteStatus(wire.RejectedStatus())
		return
	}
	entry := h.log.WithFields(map[string]any{"hello": hs.Hello, "version": hs.Version})
	entry.Debug("handshake accepted")
	if err := codec.WriteStatus(wire.OKStatus()); err != nil {
		entry.Debug("failed writing handshake status: " + err.Error())
		return
	}

	body, err := codec.ReadRecipeBody()
	if err != nil {
		entry.Debug("failed reading recipe body: " + err.Error())
		return
	}

	instrs, err := wire.ParseRecipe(body)
	if errors.Is(err, wire.ErrNotArray) {
		entry.Debug("recipe was not a JSON array, closing without reply")
		return
	}

	var events []json.RawMessage
	sink := func(order []int, snapshot map[int]int64) {
		ev, err := wire.EncodeReportEvent(snapshot, order)
		if err != nil {
			entry.Debug("failed encoding report event: " + err.Error())
			return
		}
		events = append(events, ev)
	}

	if _, err := h.queue.Submit(ctx, instrs, sink); err != nil {
		entry.WithFields(map[string]any{"err": err.Error()}).Debug("job submission dropped")
		return
	}

	if err := codec.WriteResponse(events); err != nil {
		entry.Debug("failed writing response: " + err.Error())
	}
}
