package sourceclient

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, handler http.Handler) (*Client, string) {
	t.Helper()

	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client := &Client{
		scheme:       "http",
		httpClient:   server.Client(),
		queryTimeout: 5 * time.Second,
	}
	source := strings.TrimPrefix(server.URL, "http://")

	return client, source
}

func TestCollectDrip(t *testing.T) {
	client, source := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		require.Equal(t, "/v1/collect-drip", r.URL.Path)

		var payload map[string]string
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
		require.Equal(t, "alice.example", payload["account_id"])

		w.Write([]byte(`"250"`))
	}))

	report, err := client.CollectDrip(context.Background(), source, "alice.example")
	require.NoError(t, err)
	require.Equal(t, ReportScalar, report.Kind)
	require.EqualValues(t, 250, report.Amount)
}

func TestCollectDrip_ServerError(t *testing.T) {
	client, source := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))

	_, err := client.CollectDrip(context.Background(), source, "alice.example")
	require.Error(t, err)
}

func TestAcceptRedemption(t *testing.T) {
	cases := []struct {
		name    string
		reply   string
		unused  uint64
		wantErr bool
	}{
		{name: "empty body means fully accepted", reply: "", unused: 0},
		{name: "unused field", reply: `{"unused": "30"}`, unused: 30},
		{name: "unused as number", reply: `{"unused": 30}`, unused: 30},
		{name: "bare scalar", reply: `"45"`, unused: 45},
		{name: "unparsable body", reply: `<html>`, wantErr: true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			client, source := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				require.Equal(t, "/v1/on-burn", r.URL.Path)

				var payload map[string]string
				require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))
				require.Equal(t, "100", payload["amount"])

				w.Write([]byte(tc.reply))
			}))

			unused, err := client.AcceptRedemption(context.Background(), source, "alice.example", 100, "order-7")
			if tc.wantErr {
				require.ErrorIs(t, err, ErrUnparsableReply)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.unused, unused)
		})
	}
}

func TestAcceptRedemption_Unreachable(t *testing.T) {
	client := &Client{
		scheme:       "http",
		httpClient:   &http.Client{},
		queryTimeout: 200 * time.Millisecond,
	}

	_, err := client.AcceptRedemption(context.Background(), "127.0.0.1:1", "alice.example", 100, "")
	require.Error(t, err)
}
