// Package backendclient talks to the REST service that owns user accounts
// and decides which wallet belongs to which user.
package backendclient

import (
	"log/slog"
	"net/http"
	"strings"

	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/utils"
)

// Client groups the backend sub-clients. Auth and Users share the HTTP
// client, base URL and session token.
type Client struct {
	URL string

	// Auth handles login and wallet verification
	// Endpoints: /api/users/auth/login, /api/users/auth/wallet-verify
	Auth *AuthClient

	// Users manages user records
	// Endpoints: /api/users, /api/users/{id}
	Users *UsersClient
}

type Option func(*options)

type options struct {
	httpClient *http.Client
	logger     *slog.Logger
}

func WithHTTPClient(client *http.Client) Option {
	return func(o *options) {
		o.httpClient = client
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(o *options) {
		o.logger = logger
	}
}

// New creates a backend client. An insecure or malformed URL falls back to
// constants.DefaultBackendURL.
func New(baseURL string, opts ...Option) *Client {
	o := &options{}
	for _, opt := range opts {
		opt(o)
	}
	if o.httpClient == nil {
		o.httpClient = utils.CreateHTTPClientWithTimeouts()
	}
	if o.logger == nil {
		o.logger = slog.Default()
	}

	if err := utils.ValidateServiceURL(baseURL); err != nil {
		o.logger.Warn("invalid backend URL, using default", "url", baseURL, "default", constants.DefaultBackendURL, "error", err)
		baseURL = constants.DefaultBackendURL
	}
	baseURL = strings.TrimRight(baseURL, "/")

	auth := newAuthClient(baseURL, o.httpClient)
	return &Client{
		URL:   baseURL,
		Auth:  auth,
		Users: newUsersClient(baseURL, o.httpClient, auth),
	}
}
