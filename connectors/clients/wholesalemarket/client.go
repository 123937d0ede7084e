package wholesalemarket

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"github.com/kilianp07/buildopt/auth"
	"github.com/kilianp07/buildopt/core/model"
)

const (
	DefaultBaseURL = "https://digital.iservices.rte-france.com"
	wholesalePath  = "/open_api/wholesale_market/v2/france_power_exchanges"
)

// Config selects the API root and the OAuth2 credentials.
type Config struct {
	BaseURL string    `json:"base_url"`
	Auth    auth.Conf `json:"auth"`
}

// Client fetches day-ahead power exchange prices. It implements
// connectors.PriceSource.
type Client struct {
	baseURL string
	auth    *auth.ClientCred
	http    *http.Client
}

func NewClient(cfg Config, opts ...Option) *Client {
	c := &Client{
		baseURL: DefaultBaseURL,
		auth:    auth.NewClientCred(cfg.Auth),
		http:    &http.Client{Timeout: 30 * time.Second},
	}
	WithBaseURL(cfg.BaseURL)(c)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Fetch retrieves the wholesale market data for [start, end).
func (w *Client) Fetch(ctx context.Context, start, end time.Time) (*Response, error) {
	q := url.Values{}
	q.Set("start_date", start.Format(time.RFC3339))
	q.Set("end_date", end.Format(time.RFC3339))

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, w.baseURL+wholesalePath+"?"+q.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	if err := w.auth.SetAuthHeader(ctx, req); err != nil {
		return nil, fmt.Errorf("failed to set auth header: %w", err)
	}

	resp, err := w.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return nil, fmt.Errorf("unexpected status code: %d, body: %s", resp.StatusCode, body)
	}

	var marketResponse Response
	if err := json.NewDecoder(resp.Body).Decode(&marketResponse); err != nil {
		return nil, fmt.Errorf("failed to decode response: %w", err)
	}
	return &marketResponse, nil
}

// Prices fetches the market window covering timesteps and samples it.
func (w *Client) Prices(ctx context.Context, timesteps []time.Time) (*model.Table, error) {
	if len(timesteps) == 0 {
		return model.NewTable(nil, []string{model.PriceColumn}), nil
	}
	step := time.Hour
	if len(timesteps) > 1 {
		step = timesteps[1].Sub(timesteps[0])
	}
	resp, err := w.Fetch(ctx, timesteps[0], timesteps[len(timesteps)-1].Add(step))
	if err != nil {
		return nil, err
	}
	return resp.PriceTable(timesteps)
}
