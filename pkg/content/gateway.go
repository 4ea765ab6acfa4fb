// Package content reads product content from an IPFS gateway and uploads
// new content to a pinning service.
package content

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strings"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/ipfs/go-cid"
	"github.com/sigweihq/traceledger/pkg/constants"
	"github.com/sigweihq/traceledger/pkg/types"
	"github.com/sigweihq/traceledger/pkg/utils"
)

const ipfsScheme = "ipfs://"

var (
	ErrInvalidHash     = errors.New("invalid content hash")
	ErrPinningDisabled = errors.New("pinning is not configured")
)

// Kind is the broad type of a piece of content, derived from its Content-Type
type Kind string

const (
	KindJSON     Kind = "json"
	KindImage    Kind = "image"
	KindPDF      Kind = "pdf"
	KindDocument Kind = "docx"
	KindText     Kind = "text"
)

// Content is a fetched object
type Content struct {
	CID         cid.Cid
	ContentType string
	Kind        Kind
	Data        []byte
}

// Gateway fetches content by hash. Content addressed by a CID never changes,
// so decoded metadata is cached by CID.
type Gateway struct {
	gatewayURL string
	pinURL     string
	pinToken   string
	httpClient *http.Client
	cache      *lru.Cache[string, *types.ContentMetadata]
	logger     *slog.Logger
}

type Option func(*Gateway)

func WithHTTPClient(client *http.Client) Option {
	return func(g *Gateway) {
		g.httpClient = client
	}
}

// WithPinning enables Pin against a Pinata-compatible pinFileToIPFS endpoint
func WithPinning(url, token string) Option {
	return func(g *Gateway) {
		g.pinURL = url
		g.pinToken = token
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(g *Gateway) {
		g.logger = logger
	}
}

func NewGateway(gatewayURL string, opts ...Option) (*Gateway, error) {
	if gatewayURL == "" {
		gatewayURL = constants.DefaultGatewayURL
	}
	if err := utils.ValidateServiceURL(gatewayURL); err != nil {
		return nil, err
	}

	cache, err := lru.New[string, *types.ContentMetadata](constants.MetadataCacheSize)
	if err != nil {
		return nil, fmt.Errorf("creating metadata cache: %w", err)
	}

	g := &Gateway{
		gatewayURL: strings.TrimRight(gatewayURL, "/"),
		httpClient: utils.CreateHTTPClientWithTimeouts(),
		cache:      cache,
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(g)
	}
	if g.pinURL != "" {
		if err := utils.ValidateServiceURL(g.pinURL); err != nil {
			return nil, fmt.Errorf("pinning: %w", err)
		}
	}
	return g, nil
}

// ParseHash accepts a bare CID or an ipfs:// link
func ParseHash(hash string) (cid.Cid, error) {
	c, err := cid.Decode(strings.TrimPrefix(strings.TrimSpace(hash), ipfsScheme))
	if err != nil {
		return cid.Undef, fmt.Errorf("%w %q: %v", ErrInvalidHash, hash, err)
	}
	return c, nil
}

// URL returns the gateway URL serving hash
func (g *Gateway) URL(hash string) (string, error) {
	c, err := ParseHash(hash)
	if err != nil {
		return "", err
	}
	return g.url(c), nil
}

func (g *Gateway) url(c cid.Cid) string {
	return fmt.Sprintf("%s/ipfs/%s", g.gatewayURL, c.String())
}

// Fetch downloads the content behind hash
func (g *Gateway) Fetch(ctx context.Context, hash string) (*Content, error) {
	c, err := ParseHash(hash)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.url(c), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	resp, err := g.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch %s: %w", c, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize)))
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", c, err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("gateway returned status %d for %s", resp.StatusCode, c)
	}

	contentType := resp.Header.Get("Content-Type")
	return &Content{
		CID:         c,
		ContentType: contentType,
		Kind:        kindOf(contentType),
		Data:        data,
	}, nil
}

func kindOf(contentType string) Kind {
	switch {
	case strings.Contains(contentType, "application/json"):
		return KindJSON
	case strings.Contains(contentType, "image"):
		return KindImage
	case strings.Contains(contentType, "application/pdf"):
		return KindPDF
	case strings.Contains(contentType, "application/vnd.openxmlformats-officedocument.wordprocessingml.document"):
		return KindDocument
	default:
		return KindText
	}
}

// FetchMetadata downloads and decodes the metadata document behind hash
func (g *Gateway) FetchMetadata(ctx context.Context, hash string) (*types.ContentMetadata, error) {
	c, err := ParseHash(hash)
	if err != nil {
		return nil, err
	}
	key := c.String()
	if metadata, ok := g.cache.Get(key); ok {
		g.logger.Debug("metadata cache hit", "cid", key)
		return metadata, nil
	}

	metadata, err := utils.MakeJSONRequest[types.ContentMetadata](
		ctx,
		g.httpClient,
		http.MethodGet,
		g.url(c),
		nil,
		nil,
		"fetch metadata",
	)
	if err != nil {
		return nil, err
	}

	g.cache.Add(key, metadata)
	return metadata, nil
}

// Pin uploads r as name and returns the pinned CID
func (g *Gateway) Pin(ctx context.Context, name string, r io.Reader) (cid.Cid, error) {
	if g.pinURL == "" || g.pinToken == "" {
		return cid.Undef, ErrPinningDisabled
	}

	var body bytes.Buffer
	form := multipart.NewWriter(&body)
	part, err := form.CreateFormFile("file", name)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to create form file: %w", err)
	}
	if _, err := io.Copy(part, r); err != nil {
		return cid.Undef, fmt.Errorf("failed to read upload: %w", err)
	}
	if err := form.Close(); err != nil {
		return cid.Undef, fmt.Errorf("failed to finish form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.pinURL, &body)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", form.FormDataContentType())
	req.Header.Set("Authorization", fmt.Sprintf("Bearer %s", g.pinToken))

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to send pin request: %w", err)
	}
	defer resp.Body.Close()

	limited := io.LimitReader(resp.Body, int64(constants.MaxResponseBodySize))
	if resp.StatusCode != http.StatusOK {
		msg, _ := io.ReadAll(limited)
		return cid.Undef, fmt.Errorf("pin request failed with status %d: %s", resp.StatusCode, string(msg))
	}

	var result types.PinResponse
	if err := json.NewDecoder(limited).Decode(&result); err != nil {
		return cid.Undef, fmt.Errorf("failed to decode pin response: %w", err)
	}
	c, err := ParseHash(result.IpfsHash)
	if err != nil {
		return cid.Undef, fmt.Errorf("pinning service returned %w", err)
	}

	g.logger.Info("content pinned", "name", name, "cid", c.String(), "size", result.PinSize)
	return c, nil
}

// PinMetadata uploads metadata as a JSON document. The pinned document is
// cached, so reading it back does not hit the gateway.
func (g *Gateway) PinMetadata(ctx context.Context, metadata *types.ContentMetadata) (cid.Cid, error) {
	data, err := json.Marshal(metadata)
	if err != nil {
		return cid.Undef, fmt.Errorf("failed to marshal metadata: %w", err)
	}

	name := "metadata.json"
	if metadata.ProductID != "" {
		name = metadata.ProductID + ".json"
	}
	c, err := g.Pin(ctx, name, bytes.NewReader(data))
	if err != nil {
		return cid.Undef, err
	}
	g.cache.Add(c.String(), metadata)
	return c, nil
}
