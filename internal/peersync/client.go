// Package peersync implements C5: bulk-fetching tape addresses and segments
// from a trusted peer over the same JSON-RPC shapes the read RPC server
// exposes.
package peersync

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
	"github.com/spool-labs/tape-node/internal/resilience"
)

// maxInFlight bounds the concurrent in-flight requests per peer endpoint
//.
const maxInFlight = 10

// Client talks to one trusted peer's read RPC endpoint.
type Client struct {
	endpoint string
	http     *http.Client
	breaker  *resilience.CircuitBreaker
	sem      chan struct{}
}

// NewClient builds a peer client against endpoint (a full "http://host:port/api" URL).
func NewClient(endpoint string) *Client {
	return &Client{
		endpoint: endpoint,
		http:     &http.Client{Timeout: 10 * time.Second},
		breaker:  resilience.NewCircuitBreaker(5, 0.5, 30*time.Second, 2),
		sem:      make(chan struct{}, maxInFlight),
	}
}

// SegmentEntry is one raw segment returned by fetch_tape_segments.
type SegmentEntry struct {
	Idx uint64
	Raw []byte
}

func (c *Client) call(ctx context.Context, method string, params interface{}, out interface{}) error {
	if !c.breaker.Allow() {
		return fmt.Errorf("peersync: circuit open for %s", c.endpoint)
	}

	select {
	case c.sem <- struct{}{}:
	case <-ctx.Done():
		return ctx.Err()
	}
	defer func() { <-c.sem }()

	err := c.doCall(ctx, method, params, out)
	c.breaker.RecordResult(err == nil)
	return err
}

func (c *Client) doCall(ctx context.Context, method string, params interface{}, out interface{}) error {
	paramsRaw, err := json.Marshal(params)
	if err != nil {
		return err
	}
	req := jsonrpc.Request{JSONRPC: "2.0", ID: json.RawMessage("1"), Method: method, Params: paramsRaw}
	body, err := json.Marshal(req)
	if err != nil {
		return err
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return err
	}
	httpReq.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(httpReq)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	var rpcResp jsonrpc.Response
	if err := json.NewDecoder(resp.Body).Decode(&rpcResp); err != nil {
		return err
	}
	if rpcResp.Error != nil {
		return rpcResp.Error
	}
	if out == nil {
		return nil
	}
	return json.Unmarshal(rpcResp.Result, out)
}

// FetchTapeAddress calls fetch_tape_address for tapeNumber.
func (c *Client) FetchTapeAddress(ctx context.Context, tapeNumber uint64) (addr.Address, error) {
	var encoded string
	err := c.call(ctx, "fetch_tape_address", map[string]uint64{"tape_number": tapeNumber}, &encoded)
	if err != nil {
		return addr.Address{}, err
	}
	return addr.Parse(encoded)
}

// FetchTapeSegments calls fetch_tape_segments for address.
func (c *Client) FetchTapeSegments(ctx context.Context, address addr.Address) ([]SegmentEntry, error) {
	var raw []struct {
		Idx  uint64 `json:"segment_number"`
		Data string `json:"data"`
	}
	err := c.call(ctx, "fetch_tape_segments", map[string]string{"tape_address": base58.Encode(address[:])}, &raw)
	if err != nil {
		return nil, err
	}

	out := make([]SegmentEntry, 0, len(raw))
	for _, r := range raw {
		data, err := base64.StdEncoding.DecodeString(r.Data)
		if err != nil {
			return nil, err
		}
		out = append(out, SegmentEntry{Idx: r.Idx, Raw: data})
	}
	return out, nil
}
