// Package rpcserver implements C7: a minimal JSON-RPC 2.0 endpoint over the
// local store, plus a /metrics route exposing the process's Prometheus-style
// instruments.
package rpcserver

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/metric"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/jsonrpc"
	"github.com/spool-labs/tape-node/internal/store"
)

// Server serves the read RPC surface over the local segment store.
type Server struct {
	store  *store.Store
	logger *slog.Logger

	methodDuration metric.Float64Histogram
	statusCounter  metric.Int64Counter
}

// NewServer builds a Server. The Prometheus exporter registered by
// internal/telemetry publishes through the default registry, so /metrics is
// served by promhttp.Handler() directly.
func NewServer(s *store.Store, logger *slog.Logger) *Server {
	meter := otel.Meter("tape-node-rpc")
	duration, _ := meter.Float64Histogram("tape_rpc_method_duration_seconds")
	status, _ := meter.Int64Counter("tape_rpc_status_total")

	return &Server{
		store:          s,
		logger:         logger.With("component", "rpc-server"),
		methodDuration: duration,
		statusCounter:  status,
	}
}

// Handler builds the HTTP mux: POST /api for JSON-RPC, GET /metrics for Prometheus.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/api", s.handleAPI)
	mux.Handle("/metrics", promhttp.Handler())
	return mux
}

func (s *Server) handleAPI(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	if r.Method != http.MethodPost {
		s.writeResponse(ctx, w, jsonrpc.NewError(nil, jsonrpc.CodeInvalidRequest, "POST required"), "")
		return
	}

	var req jsonrpc.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		s.writeResponse(ctx, w, jsonrpc.NewError(nil, jsonrpc.CodeParseError, "invalid json"), "")
		return
	}
	if req.JSONRPC != "2.0" || req.Method == "" {
		s.writeResponse(ctx, w, jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidRequest, "missing jsonrpc/method"), req.Method)
		return
	}

	start := time.Now()
	resp := s.dispatch(req)
	s.methodDuration.Record(ctx, time.Since(start).Seconds(), metric.WithAttributes(attribute.String("method", req.Method)))
	s.writeResponse(ctx, w, resp, req.Method)
}

func (s *Server) dispatch(req jsonrpc.Request) *jsonrpc.Response {
	handler, ok := methodTable[req.Method]
	if !ok {
		return jsonrpc.NewError(req.ID, jsonrpc.CodeMethodNotFound, "method not found")
	}
	resp, err := handler(s, req.ID, req.Params)
	if err != nil {
		var typeErr *json.UnmarshalTypeError
		var syntaxErr *json.SyntaxError
		if errors.As(err, &typeErr) || errors.As(err, &syntaxErr) {
			return jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, err.Error())
		}
		if errors.Is(err, addr.ErrBadLength) {
			return jsonrpc.NewError(req.ID, jsonrpc.CodeInvalidParams, err.Error())
		}
		// Store lookups, backend faults, and anything else typed by the
		// node's own error taxonomy surface as a server error with the
		// underlying message, per the fixed -32000 sub-message convention.
		return jsonrpc.NewError(req.ID, jsonrpc.CodeServerError, err.Error())
	}
	return resp
}

func (s *Server) writeResponse(ctx context.Context, w http.ResponseWriter, resp *jsonrpc.Response, method string) {
	statusAttr := "ok"
	if resp.Error != nil {
		statusAttr = "error"
	}
	s.statusCounter.Add(ctx, 1, metric.WithAttributes(
		attribute.String("method", method),
		attribute.String("status", statusAttr),
	))

	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(resp); err != nil {
		s.logger.Error("encode response failed", "error", err)
	}
}
