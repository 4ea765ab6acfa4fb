package backendclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"

	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/utils"
)

// UsersClient manages user records. Every call requires a session token.
type UsersClient struct {
	baseURL    string
	httpClient *http.Client
	authClient *AuthClient
}

func newUsersClient(baseURL string, httpClient *http.Client, authClient *AuthClient) *UsersClient {
	return &UsersClient{
		baseURL:    baseURL,
		httpClient: httpClient,
		authClient: authClient,
	}
}

// List returns every user
// GET /api/users
func (c *UsersClient) List(ctx context.Context) ([]types.User, error) {
	users, err := utils.MakeJSONRequest[[]types.User](
		ctx,
		c.httpClient,
		http.MethodGet,
		fmt.Sprintf("%s/api/users", c.baseURL),
		nil,
		c.authClient.authHeaders,
		"list users",
	)
	if err != nil {
		return nil, err
	}
	return *users, nil
}

// Get returns one user
// GET /api/users/{id}
func (c *UsersClient) Get(ctx context.Context, id uint64) (*types.User, error) {
	return utils.MakeJSONRequest[types.User](
		ctx,
		c.httpClient,
		http.MethodGet,
		fmt.Sprintf("%s/api/users/%d", c.baseURL, id),
		nil,
		c.authClient.authHeaders,
		"get user",
	)
}

// Create registers a user and returns the stored record
// POST /api/users
func (c *UsersClient) Create(ctx context.Context, user *types.User) (*types.User, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}
	headers, err := c.authClient.authHeaders()
	if err != nil {
		return nil, err
	}

	var result types.User
	url := fmt.Sprintf("%s/api/users", c.baseURL)
	if err := httpRequest(ctx, c.httpClient, http.MethodPost, url, user, headers, &result); err != nil {
		return nil, fmt.Errorf("failed to create user: %w", err)
	}
	return &result, nil
}

// Update replaces a user record
// PUT /api/users/{id}
func (c *UsersClient) Update(ctx context.Context, id uint64, user *types.User) (*types.User, error) {
	if user == nil {
		return nil, errors.New("user is required")
	}
	return utils.MakeJSONRequest[types.User](
		ctx,
		c.httpClient,
		http.MethodPut,
		fmt.Sprintf("%s/api/users/%d", c.baseURL, id),
		user,
		c.authClient.authHeaders,
		"update user",
	)
}

// Delete removes a user
// DELETE /api/users/{id}
func (c *UsersClient) Delete(ctx context.Context, id uint64) error {
	headers, err := c.authClient.authHeaders()
	if err != nil {
		return err
	}

	url := fmt.Sprintf("%s/api/users/%d", c.baseURL, id)
	if err := httpRequest(ctx, c.httpClient, http.MethodDelete, url, nil, headers, nil); err != nil {
		return fmt.Errorf("failed to delete user: %w", err)
	}
	return nil
}
