package chainclient

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestHTTPSubmitterSubmitSuccess(t *testing.T) {
	var received Instruction
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, json.NewDecoder(r.Body).Decode(&received))
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	submitter := NewHTTPSubmitter(srv.URL)
	err := submitter.Submit(Instruction{Kind: "write", Data: []byte(`{"k":"v"}`)})
	require.NoError(t, err)
	require.Equal(t, "write", received.Kind)
}

func TestHTTPSubmitterSubmitNonTwoXXIsTransportError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	submitter := NewHTTPSubmitter(srv.URL)
	err := submitter.Submit(Instruction{Kind: "claim"})
	require.Error(t, err)
	var transportErr *TransportError
	require.ErrorAs(t, err, &transportErr)
	require.Contains(t, err.Error(), "500")
}
