package server

import (
	"context"
	"encoding/json"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"taskd/internal/fsops"
	"taskd/internal/interp"
	"taskd/internal/obslog"
	"taskd/internal/queue"
)

func newTestHandler(t *testing.T) *Handler {
	t.Helper()
	vm := interp.New(fsops.New(obslog.Discard()), obslog.Discard(), 1)
	q := queue.New(vm, obslog.Discard(), 4)
	t.Cleanup(q.Close)
	return New(q, obslog.Discard())
}

func serveOnPipe(t *testing.T, h *Handler) net.Conn {
	t.Helper()
	client, server := net.Pipe()
	go h.HandleConn(context.Background(), server)
	t.Cleanup(func() { client.Close() })
	return client
}

func TestHandshakeAcceptedThenRecipeRuns(t *testing.T) {
	h := newTestHandler(t)
	client := serveOnPipe(t, h)
	client.SetDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(client)
	dec := json.NewDecoder(client)

	require.NoError(t, enc.Encode(map[string]any{"hello": "host", "version": 1}))

	var status map[string]int
	require.NoError(t, dec.Decode(&status))
	require.Equal(t, 0, status["status"])

	recipe := []map[string]any{
		{"op": "SM_OP_LOAD_CONST", "data": map[string]any{"dest": 0, "value": 5}},
		{"op": "SM_OP_REPORT", "data": map[string]any{"regs": []int{0}}},
		{"op": "SM_OP_RETURN", "data": map[string]any{"value": 0}},
	}
	require.NoError(t, enc.Encode(recipe))

	var response []json.RawMessage
	require.NoError(t, dec.Decode(&response))
	require.Len(t, response, 2)

	var report map[string]int64
	require.NoError(t, json.Unmarshal(response[0], &report))
	require.Equal(t, int64(5), report["0"])

	var final map[string]int
	require.NoError(t, json.Unmarshal(response[1], &final))
	require.Equal(t, 0, final["status"])
}

func TestMalformedHandshakeIsRejected(t *testing.T) {
	h := newTestHandler(t)
	client := serveOnPipe(t, h)
	client.SetDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(client)
	dec := json.NewDecoder(client)
	require.NoError(t, enc.Encode(map[string]any{"hello": "host"})) // missing version

	var status map[string]int
	require.NoError(t, dec.Decode(&status))
	require.Equal(t, -1, status["status"])
}

func TestNonArrayRecipeClosesWithoutReply(t *testing.T) {
	h := newTestHandler(t)
	client := serveOnPipe(t, h)
	client.SetDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(client)
	dec := json.NewDecoder(client)
	require.NoError(t, enc.Encode(map[string]any{"hello": "host", "version": 1}))

	var status map[string]int
	require.NoError(t, dec.Decode(&status))

	require.NoError(t, enc.Encode(map[string]any{"not": "an array"}))

	var response []json.RawMessage
	err := dec.Decode(&response)
	require.Error(t, err)
}

func TestUnknownOpcodeToleratedRestOfRecipeRuns(t *testing.T) {
	h := newTestHandler(t)
	client := serveOnPipe(t, h)
	client.SetDeadline(time.Now().Add(5 * time.Second))

	enc := json.NewEncoder(client)
	dec := json.NewDecoder(client)
	require.NoError(t, enc.Encode(map[string]any{"hello": "host", "version": 1}))

	var status map[string]int
	require.NoError(t, dec.Decode(&status))

	recipe := []map[string]any{
		{"op": "SM_OP_NOT_A_REAL_OPCODE", "data": map[string]any{}},
		{"op": "SM_OP_RETURN", "data": map[string]any{"value": 9}},
	}
	require.NoError(t, enc.Encode(recipe))

	var response []json.RawMessage
	require.NoError(t, dec.Decode(&response))
	require.Len(t, response, 1)

	var final map[string]int
	require.NoError(t, json.Unmarshal(response[0], &final))
	require.Equal(t, 0, final["status"])
}
