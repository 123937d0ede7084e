package wholesalemarket

import (
	"net/http"
	"strings"
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(c *http.Client) Option {
	return func(w *Client) {
		if c != nil {
			w.http = c
		}
	}
}

// WithBaseURL points the client at another API root, e.g. a sandbox.
func WithBaseURL(u string) Option {
	return func(w *Client) {
		if u != "" {
			w.baseURL = strings.TrimSuffix(u, "/")
		}
	}
}
