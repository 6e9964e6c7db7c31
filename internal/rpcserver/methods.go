package rpcserver

import (
	"encoding/base64"
	"encoding/json"

	"github.com/mr-tron/base58"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/jsonrpc"
)

type methodFunc func(s *Server, id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error)

var methodTable = map[string]methodFunc{
	"getHealth":            (*Server).getHealth,
	"getTapeAddress":       (*Server).getTapeAddress,
	"getTapeNumber":        (*Server).getTapeNumber,
	"getSegment":           (*Server).getSegment,
	"getSegmentByAddress":  (*Server).getSegmentByAddress,
	"getTape":              (*Server).getTape,
	"getSlot":              (*Server).getSlot,
	"getSlotByAddress":     (*Server).getSlotByAddress,
	"fetch_tape_address":   (*Server).getTapeAddress,
	"fetch_tape_segments":  (*Server).getTape,
}

type healthResult struct {
	LastProcessedSlot uint64 `json:"last_processed_slot"`
	Drift             uint64 `json:"drift"`
}

func (s *Server) getHealth(id json.RawMessage, _ json.RawMessage) (*jsonrpc.Response, error) {
	h, err := s.store.GetHealth()
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, healthResult{LastProcessedSlot: h.LastProcessedSlot, Drift: h.DriftSlots})
}

type tapeNumberParams struct {
	TapeNumber uint64 `json:"tape_number"`
}

func (s *Server) getTapeAddress(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p tapeNumberParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	a, err := s.store.GetTapeAddress(p.TapeNumber)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, base58.Encode(a[:]))
}

type tapeAddressParams struct {
	TapeAddress string `json:"tape_address"`
}

func (s *Server) getTapeNumber(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p tapeAddressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	a, err := addr.Parse(p.TapeAddress)
	if err != nil {
		return nil, err
	}
	n, err := s.store.GetTapeNumber(a)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, n)
}

type segmentByNumberParams struct {
	TapeNumber    uint64 `json:"tape_number"`
	SegmentNumber uint64 `json:"segment_number"`
}

func (s *Server) getSegment(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p segmentByNumberParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	tapeAddr, err := s.store.GetTapeAddress(p.TapeNumber)
	if err != nil {
		return nil, err
	}
	data, err := s.store.GetSegment(tapeAddr, p.SegmentNumber)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, base64.StdEncoding.EncodeToString(data))
}

type segmentByAddressParams struct {
	TapeAddress   string `json:"tape_address"`
	SegmentNumber uint64 `json:"segment_number"`
}

func (s *Server) getSegmentByAddress(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p segmentByAddressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	a, err := addr.Parse(p.TapeAddress)
	if err != nil {
		return nil, err
	}
	data, err := s.store.GetSegment(a, p.SegmentNumber)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, base64.StdEncoding.EncodeToString(data))
}

type tapeSegmentEntry struct {
	SegmentNumber uint64 `json:"segment_number"`
	Data          string `json:"data"`
}

func (s *Server) getTape(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p tapeAddressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	a, err := addr.Parse(p.TapeAddress)
	if err != nil {
		return nil, err
	}
	segments, err := s.store.GetTapeSegments(a)
	if err != nil {
		return nil, err
	}

	out := make([]tapeSegmentEntry, 0, len(segments))
	for _, seg := range segments {
		out = append(out, tapeSegmentEntry{SegmentNumber: seg.GlobalIndex, Data: base64.StdEncoding.EncodeToString(seg.Data)})
	}
	return jsonrpc.NewResult(id, out)
}

func (s *Server) getSlot(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p tapeNumberParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	count, err := s.getSegmentCountByNumber(p.TapeNumber)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, count)
}

func (s *Server) getSlotByAddress(id json.RawMessage, params json.RawMessage) (*jsonrpc.Response, error) {
	var p tapeAddressParams
	if err := json.Unmarshal(params, &p); err != nil {
		return nil, err
	}
	a, err := addr.Parse(p.TapeAddress)
	if err != nil {
		return nil, err
	}
	count, err := s.store.GetSegmentCount(a)
	if err != nil {
		return nil, err
	}
	return jsonrpc.NewResult(id, count)
}

func (s *Server) getSegmentCountByNumber(tapeNumber uint64) (uint64, error) {
	a, err := s.store.GetTapeAddress(tapeNumber)
	if err != nil {
		return 0, err
	}
	return s.store.GetSegmentCount(a)
}
