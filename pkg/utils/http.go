package utils

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"

	"github.com/sigweihq/traceledger/pkg/constants"
)

// CreateHTTPClientWithTimeouts returns the client used for the backend, the
// content gateway and chainlist. Redirects are not followed.
func CreateHTTPClientWithTimeouts() *http.Client {
	return &http.Client{
		Timeout: constants.BackendTimeout,
		Transport: &http.Transport{
			Proxy:                 http.ProxyFromEnvironment,
			TLSHandshakeTimeout:   constants.TLSHandshakeTimeout,
			ResponseHeaderTimeout: constants.ResponseHeaderTimeout,
			ExpectContinueTimeout: constants.ExpectContinueTimeout,
		},
		CheckRedirect: func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		},
	}
}

// ValidateServiceURL requires HTTPS for backend and gateway URLs. Plain HTTP
// is accepted only for loopback hosts.
func ValidateServiceURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil {
		return fmt.Errorf("invalid service URL %q: %w", raw, err)
	}
	if u.Host == "" {
		return fmt.Errorf("service URL has no host: %q", raw)
	}

	switch u.Scheme {
	case "https":
		return nil
	case "http":
		if isLoopback(u.Hostname()) {
			return nil
		}
	}
	return fmt.Errorf("service URL must use HTTPS: %s", raw)
}

func isLoopback(host string) bool {
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

// MakeJSONRequest sends requestBody as JSON and decodes a 2xx JSON response
// into T. endpointName ("login", "wallet-verify", ...) prefixes error messages.
func MakeJSONRequest[T any](
	ctx context.Context,
	client *http.Client,
	method string,
	url string,
	requestBody any,
	createAuthHeaders func() (map[string]string, error),
	endpointName string,
) (*T, error) {
	var body io.Reader
	if requestBody != nil {
		jsonBody, err := json.Marshal(requestBody)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal %s request: %w", endpointName, err)
		}
		body = bytes.NewReader(jsonBody)
	}

	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s request: %w", endpointName, err)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	if createAuthHeaders != nil {
		headers, err := createAuthHeaders()
		if err != nil {
			return nil, fmt.Errorf("failed to create auth headers: %w", err)
		}
		for key, value := range headers {
			req.Header.Set(key, value)
		}
	}

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to send %s request: %w", endpointName, err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize))
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(limited)
		return nil, fmt.Errorf("%s request failed with status %d: %s", endpointName, resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result T
	if err := json.NewDecoder(limited).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode %s response: %w", endpointName, err)
	}
	return &result, nil
}
