package chainclient

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/mr-tron/base58"

	"github.com/spool-labs/tape-node/internal/addr"
	"github.com/spool-labs/tape-node/internal/jsonrpc"
)

// RPCReader implements Reader against the chain's own JSON-RPC surface,
// using the same request/response envelope as internal/jsonrpc and
// internal/peersync.
type RPCReader struct {
	endpoint string
	http     *http.Client
}

// NewRPCReader builds a Reader against endpoint (a full "http://host:port/rpc" URL).
func NewRPCReader(endpoint string) *RPCReader {
	return &RPCReader{endpoint: endpoint, http: &http.Client{Timeout: 10 * time.Second}}
}

func (r *RPCReader) call(method string, params interface{}, out interface{}) error {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req := jsonrpc.Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: method, Params: paramsRaw}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(context.Background(), http.MethodPost, r.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := r.http.Do(httpReq)
	if err != nil {
		return &TransportError{Err: err}
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return &DecodeError{Err: err}
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// CurrentSlot fetches the chain tip.
func (r *RPCReader) CurrentSlot() (uint64, error) {
	var slot uint64
	err := r.call("getSlot", map[string]any{}, &slot)
	return slot, err
}

type blockWire struct {
	Slot      uint64 `json:"slot"`
	Challenge string `json:"challenge"`
	Timestamp int64  `json:"timestamp"`

	Finalized []struct {
		TapeNumber  uint64 `json:"tape_number"`
		TapeAddress string `json:"tape_address"`
	} `json:"finalized"`
	SegmentWrite []struct {
		TapeAddress string `json:"tape_address"`
		SegmentIdx  uint64 `json:"segment_idx"`
		RawBytes    string `json:"raw_bytes"`
		Slot        uint64 `json:"slot"`
		PrevSlot    uint64 `json:"prev_slot"`
	} `json:"segment_write"`
}

// BlockRange fetches every block's extracted events in [fromSlot, toSlot].
func (r *RPCReader) BlockRange(fromSlot, toSlot uint64) ([]BlockEvents, error) {
	var wire []blockWire
	if err := r.call("getBlockRange", map[string]uint64{"from_slot": fromSlot, "to_slot": toSlot}, &wire); err != nil {
		return nil, err
	}

	out := make([]BlockEvents, 0, len(wire))
	for _, w := range wire {
		be := BlockEvents{Slot: w.Slot}
		for _, f := range w.Finalized {
			a, err := addr.Parse(f.TapeAddress)
			if err != nil {
				return nil, &DecodeError{Err: err}
			}
			be.Finalized = append(be.Finalized, TapeFinalizedEvent{TapeNumber: f.TapeNumber, TapeAddress: a})
		}
		for _, sw := range w.SegmentWrite {
			a, err := addr.Parse(sw.TapeAddress)
			if err != nil {
				return nil, &DecodeError{Err: err}
			}
			raw, err := base64.StdEncoding.DecodeString(sw.RawBytes)
			if err != nil {
				return nil, &DecodeError{Err: err}
			}
			be.SegmentWrite = append(be.SegmentWrite, SegmentWriteEvent{
				TapeAddress: a, SegmentIdx: sw.SegmentIdx, RawBytes: raw, Slot: sw.Slot, PrevSlot: sw.PrevSlot,
			})
		}
		out = append(out, be)
	}
	return out, nil
}

// BlockHeader fetches a single block's header fields.
func (r *RPCReader) BlockHeader(slot uint64) (Block, error) {
	var w blockWire
	if err := r.call("getBlockHeader", map[string]uint64{"slot": slot}, &w); err != nil {
		return Block{}, err
	}
	challengeBytes, err := base58.Decode(w.Challenge)
	if err != nil {
		return Block{}, &DecodeError{Err: err}
	}
	var challenge [32]byte
	copy(challenge[:], challengeBytes)
	return Block{Slot: w.Slot, Challenge: challenge, Timestamp: time.Unix(w.Timestamp, 0)}, nil
}

type minerWire struct {
	Address        string `json:"address"`
	UnclaimedYield uint64 `json:"unclaimed_yield"`
	Challenge      string `json:"challenge"`
}

// MinerRecord fetches a miner's on-chain record.
func (r *RPCReader) MinerRecord(address addr.Address) (Miner, error) {
	var w minerWire
	if err := r.call("getMinerRecord", map[string]string{"miner_address": address.String()}, &w); err != nil {
		return Miner{}, err
	}
	challengeBytes, err := base58.Decode(w.Challenge)
	if err != nil {
		return Miner{}, &DecodeError{Err: err}
	}
	var challenge [32]byte
	copy(challenge[:], challengeBytes)
	return Miner{Address: address, UnclaimedYield: w.UnclaimedYield, Challenge: challenge}, nil
}

// EpochRecord fetches the current epoch's parameters.
func (r *RPCReader) EpochRecord() (Epoch, error) {
	var e Epoch
	err := r.call("getEpoch", map[string]any{}, &e)
	return e, err
}

type tapeWire struct {
	Number        uint64 `json:"number"`
	Address       string `json:"address"`
	Authority     string `json:"authority"`
	Name          string `json:"name"`
	MerkleRoot    string `json:"merkle_root"`
	TotalSegments uint64 `json:"total_segments"`
	FirstSlot     uint64 `json:"first_slot"`
	TailSlot      uint64 `json:"tail_slot"`
	Balance       uint64 `json:"balance"`
	RentPerBlock  uint64 `json:"rent_per_block"`
	State         uint8  `json:"state"`
}

func decodeTape(w tapeWire) (Tape, error) {
	var t Tape
	address, err := addr.Parse(w.Address)
	if err != nil {
		return t, &DecodeError{Err: err}
	}
	authority, err := addr.Parse(w.Authority)
	if err != nil {
		return t, &DecodeError{Err: err}
	}
	rootBytes, err := base58.Decode(w.MerkleRoot)
	if err != nil {
		return t, &DecodeError{Err: err}
	}
	var root [32]byte
	copy(root[:], rootBytes)

	var name [32]byte
	copy(name[:], w.Name)

	return Tape{
		Number: w.Number, Address: address, Authority: authority, Name: name,
		MerkleRoot: root, TotalSegments: w.TotalSegments, FirstSlot: w.FirstSlot,
		TailSlot: w.TailSlot, Balance: w.Balance, RentPerBlock: w.RentPerBlock,
		State: TapeState(w.State),
	}, nil
}

// TapeByNumber fetches the chain's authoritative record for tape number.
func (r *RPCReader) TapeByNumber(number uint64) (Tape, error) {
	var w tapeWire
	if err := r.call("getTapeByNumber", map[string]uint64{"tape_number": number}, &w); err != nil {
		return Tape{}, err
	}
	return decodeTape(w)
}

// TapeByAddress fetches the chain's authoritative record for address.
func (r *RPCReader) TapeByAddress(address addr.Address) (Tape, error) {
	var w tapeWire
	if err := r.call("getTapeByAddress", map[string]string{"tape_address": address.String()}, &w); err != nil {
		return Tape{}, err
	}
	return decodeTape(w)
}

// TransportError is a Chain-kind error: the RPC request itself
// failed (network, timeout).
type TransportError struct{ Err error }

func (e *TransportError) Error() string { return fmt.Sprintf("chainclient: transport: %v", e.Err) }
func (e *TransportError) Unwrap() error { return e.Err }

// DecodeError is a Chain-kind error: the response didn't match
// the expected shape.
type DecodeError struct{ Err error }

func (e *DecodeError) Error() string { return fmt.Sprintf("chainclient: decode: %v", e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }
