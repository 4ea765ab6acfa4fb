package backendclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"

	"github.com/sigweihq/traceledger/pkg/types"
)

var ErrNotAuthenticated = errors.New("not authenticated: please login first")

// AuthClient handles username/password sessions and wallet verification
type AuthClient struct {
	baseURL    string
	httpClient *http.Client
	token      string
	tokenMutex sync.RWMutex
}

func newAuthClient(baseURL string, httpClient *http.Client) *AuthClient {
	return &AuthClient{
		baseURL:    baseURL,
		httpClient: httpClient,
	}
}

// Login authenticates a user and stores the session token
// POST /api/users/auth/login
// Body: {"user_name": "...", "password": "..."}
func (c *AuthClient) Login(ctx context.Context, userName, password string) (*types.LoginResponse, error) {
	reqBody := types.LoginRequest{
		UserName: userName,
		Password: password,
	}

	url := fmt.Sprintf("%s/api/users/auth/login", c.baseURL)
	var result types.LoginResponse

	if err := httpRequest(ctx, c.httpClient, http.MethodPost, url, reqBody, nil, &result); err != nil {
		return nil, fmt.Errorf("failed to login: %w", err)
	}
	if result.Token == "" {
		return nil, errors.New("failed to login: backend returned no token")
	}

	c.SetToken(result.Token)
	return &result, nil
}

// VerifyWallet asks whether wallet belongs to the logged-in user.
// POST /api/users/auth/wallet-verify
// Requires: Authorization header with the session token
//
// A refusal by the backend, including one carried by an error status, is
// returned as a response with Success false and a nil error. Only transport
// failures and a missing token are errors.
func (c *AuthClient) VerifyWallet(ctx context.Context, wallet string) (*types.WalletVerifyResponse, error) {
	headers, err := c.authHeaders()
	if err != nil {
		return nil, err
	}

	url := fmt.Sprintf("%s/api/users/auth/wallet-verify", c.baseURL)
	var result types.WalletVerifyResponse

	err = httpRequest(ctx, c.httpClient, http.MethodPost, url, types.WalletVerifyRequest{Wallet: wallet}, headers, &result)
	var httpErr *HTTPError
	if errors.As(err, &httpErr) {
		return &types.WalletVerifyResponse{Success: false, Error: httpErr.Message()}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to verify wallet: %w", err)
	}
	return &result, nil
}

func (c *AuthClient) authHeaders() (map[string]string, error) {
	token := c.GetToken()
	if token == "" {
		return nil, ErrNotAuthenticated
	}
	return map[string]string{
		"Authorization": fmt.Sprintf("Bearer %s", token),
	}, nil
}

// SetToken stores the session token (thread-safe)
func (c *AuthClient) SetToken(token string) {
	c.tokenMutex.Lock()
	defer c.tokenMutex.Unlock()
	c.token = token
}

// GetToken retrieves the session token (thread-safe)
func (c *AuthClient) GetToken() string {
	c.tokenMutex.RLock()
	defer c.tokenMutex.RUnlock()
	return c.token
}

// ClearToken drops the session token (thread-safe)
func (c *AuthClient) ClearToken() {
	c.SetToken("")
}

// IsAuthenticated returns true if a session token is available
func (c *AuthClient) IsAuthenticated() bool {
	return c.GetToken() != ""
}
