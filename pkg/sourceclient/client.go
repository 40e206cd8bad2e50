// Package sourceclient talks to remote source services over HTTP REST: the
// no-argument collection entry point and the redemption acceptance entry
// point. Amounts travel as base-10 strings on the wire; plain JSON numbers
// are accepted too.
package sourceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"strconv"
	"time"

	"drip-controlplane/pkg/config"

	"go.uber.org/fx"
)

const (
	// DefaultDialTimeout is the timeout for establishing a TCP connection
	// to a source.
	DefaultDialTimeout = 5 * time.Second

	maxReplyBytes = 1 << 20
)

// ErrUnparsableReply marks a 2xx reply whose body could not be decoded.
// Redemption treats it as "nothing was accepted".
var ErrUnparsableReply = errors.New("unparsable source reply")

var Module = fx.Module("sourceclient",
	fx.Provide(New),
)

// Client issues the two well-known remote calls against a source, addressed
// by its source identifier.
type Client struct {
	scheme       string
	httpClient   *http.Client
	queryTimeout time.Duration
}

func New(cfg *config.Config) *Client {
	return &Client{
		scheme: cfg.Drip.SourceScheme,
		httpClient: &http.Client{
			Transport: &http.Transport{
				MaxIdleConns:        10,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
				DialContext: (&net.Dialer{
					Timeout: DefaultDialTimeout,
				}).DialContext,
			},
		},
		queryTimeout: cfg.Drip.SourceCallTimeout,
	}
}

// CollectDrip queries a source for the caller's accrued drips. The reply is
// decoded as a tagged variant; a 2xx reply that fits neither shape is a
// zero-value report, not an error.
func (c *Client) CollectDrip(ctx context.Context, source, account string) (Report, error) {
	body, err := c.post(ctx, source, "/v1/collect-drip", map[string]string{
		"account_id": account,
	})
	if err != nil {
		return Report{}, err
	}

	return DecodeReport(body), nil
}

// AcceptRedemption asks the source to accept a redemption of amount drips.
// The returned value is the unused portion the source did not accept. An
// empty reply body means everything was accepted; a non-empty body that
// cannot be decoded yields ErrUnparsableReply.
func (c *Client) AcceptRedemption(ctx context.Context, source, account string, amount uint64, msg string) (uint64, error) {
	body, err := c.post(ctx, source, "/v1/on-burn", map[string]string{
		"account_id": account,
		"amount":     strconv.FormatUint(amount, 10),
		"msg":        msg,
	})
	if err != nil {
		return 0, err
	}

	if len(bytes.TrimSpace(body)) == 0 {
		return 0, nil
	}

	var reply struct {
		Unused json.RawMessage `json:"unused"`
	}
	if err := json.Unmarshal(body, &reply); err == nil && len(reply.Unused) > 0 {
		if unused, ok := parseAmount(reply.Unused); ok {
			return unused, nil
		}
	}

	// A bare scalar body is accepted as the unused amount as well.
	if unused, ok := parseAmount(body); ok {
		return unused, nil
	}

	return 0, ErrUnparsableReply
}

func (c *Client) post(ctx context.Context, source, path string, payload any) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.queryTimeout)
	defer cancel()

	data, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s://%s%s", c.scheme, source, path)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReplyBytes))
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("source %s returned status %d", source, resp.StatusCode)
	}

	return body, nil
}
