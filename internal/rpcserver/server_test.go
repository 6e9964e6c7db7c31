package rpcserver

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/jsonrpc"
	"github.com/spool-labs/tape-node/internal/store"
)

func testServer(t *testing.T) (*Server, *store.Store) {
	t.Helper()
	s, err := store.Open(t.TempDir(), store.ModeExclusiveWriter)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return NewServer(s, slog.Default()), s
}

func rawCall(t *testing.T, srv *Server, method string, params interface{}) *jsonrpc.Response {
	t.Helper()
	paramsRaw, err := json.Marshal(params)
	require.NoError(t, err)

	body, err := json.Marshal(jsonrpc.Request{
		JSONRPC: "2.0",
		ID:      json.RawMessage(`1`),
		Method:  method,
		Params:  paramsRaw,
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api", bytes.NewReader(body))
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	return &resp
}

func TestGetHealthOnFreshStore(t *testing.T) {
	srv, _ := testServer(t)
	resp := rawCall(t, srv, "getHealth", map[string]interface{}{})
	require.Nil(t, resp.Error)

	var h healthResult
	require.NoError(t, json.Unmarshal(resp.Result, &h))
	require.Equal(t, uint64(0), h.LastProcessedSlot)
	require.Equal(t, uint64(0), h.Drift)
}

func TestGetTapeAddressRoundTrip(t *testing.T) {
	srv, s := testServer(t)
	var a addr.Address
	a[0] = 0x42
	require.NoError(t, s.PutTapeAddress(7, a))

	resp := rawCall(t, srv, "getTapeAddress", map[string]uint64{"tape_number": 7})
	require.Nil(t, resp.Error)

	var encoded string
	require.NoError(t, json.Unmarshal(resp.Result, &encoded))
	require.Equal(t, a.String(), encoded)
}

func TestUnknownMethodIsMethodNotFound(t *testing.T) {
	srv, _ := testServer(t)
	resp := rawCall(t, srv, "doesNotExist", map[string]interface{}{})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeMethodNotFound, resp.Error.Code)
}

func TestMissingTapeIsServerError(t *testing.T) {
	srv, _ := testServer(t)
	resp := rawCall(t, srv, "getTapeAddress", map[string]uint64{"tape_number": 999})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeServerError, resp.Error.Code)
}

func TestMalformedAddressIsInvalidParams(t *testing.T) {
	srv, _ := testServer(t)
	resp := rawCall(t, srv, "getTapeNumber", map[string]string{"tape_address": "not-base58!!"})
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeInvalidParams, resp.Error.Code)
}

func TestGetTapeOrdersSegmentsAscending(t *testing.T) {
	srv, s := testServer(t)
	var a addr.Address
	a[0] = 0x07
	require.NoError(t, s.PutTapeAddress(1, a))
	require.NoError(t, s.PutSegment(a, store.SectorSlots+3, bytes.Repeat([]byte{0xBB}, store.PackedSegSize)))
	require.NoError(t, s.PutSegment(a, 0, bytes.Repeat([]byte{0xAA}, store.PackedSegSize)))

	resp := rawCall(t, srv, "getTape", map[string]string{"tape_address": a.String()})
	require.Nil(t, resp.Error)

	var entries []tapeSegmentEntry
	require.NoError(t, json.Unmarshal(resp.Result, &entries))
	require.Len(t, entries, 2)
	require.Equal(t, uint64(0), entries[0].SegmentNumber)
	require.Equal(t, uint64(store.SectorSlots+3), entries[1].SegmentNumber)
}

func TestGetRequiresPost(t *testing.T) {
	srv, _ := testServer(t)
	req := httptest.NewRequest(http.MethodGet, "/api", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)

	var resp jsonrpc.Response
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &resp))
	require.NotNil(t, resp.Error)
	require.Equal(t, jsonrpc.CodeInvalidRequest, resp.Error.Code)
}
