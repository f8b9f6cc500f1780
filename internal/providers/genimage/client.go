// Package genimage wraps the ContentGecko product-image endpoint: request
// construction, response validation, and structured error extraction.
package genimage

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/contentgecko/imagegecko/internal/domain"
)

const maxResponseBytes = 64 << 20

// Options controls how the generation client is configured.
type Options struct {
	BaseURL    string
	APIKey     string
	HTTPClient *http.Client
	Timeout    time.Duration
	Logger     zerolog.Logger
}

// Client issues generation requests against the remote mediator.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	logger     zerolog.Logger
}

// InlineImage carries the source image as raw bytes plus its metadata.
type InlineImage struct {
	Data     []byte
	MIME     string
	FileName string
}

// Metadata accompanies a request for the remote side's bookkeeping.
type Metadata struct {
	SourceImageID string
	CategoryIDs   []string
	SKU           string
}

// Request is a single generation attempt.
type Request struct {
	Prompt   string
	Image    InlineImage
	Metadata Metadata
}

// Result is the validated remote output. Either Data or SourceURL is set;
// SourceURL means the remote stored the image itself and the caller must
// download it during persistence.
type Result struct {
	Data             []byte
	SourceURL        string
	MIME             string
	FileName         string
	Model            string
	RemainingCredits *int
}

// RejectionError is a non-2xx remote response with its extracted message. The
// message alone is surfaced to operators, so Error returns it verbatim.
type RejectionError struct {
	Code    int
	Message string
}

func (e *RejectionError) Error() string { return e.Message }

func (e *RejectionError) Unwrap() error { return domain.ErrRemoteRejected }

// NewClient constructs a generation client with sane defaults. Callers may
// provide a nil HTTP client; one matching the mediator's 120s budget is
// created.
func NewClient(opts Options) *Client {
	base := strings.TrimRight(opts.BaseURL, "/")
	if base == "" {
		base = "https://api.contentgecko.io"
	}
	client := opts.HTTPClient
	if client == nil {
		timeout := opts.Timeout
		if timeout <= 0 {
			timeout = 120 * time.Second
		}
		client = &http.Client{Timeout: timeout}
	}
	return &Client{
		httpClient: client,
		baseURL:    base,
		apiKey:     strings.TrimSpace(opts.APIKey),
		logger:     opts.Logger,
	}
}

type wireImage struct {
	Base64   string `json:"base64"`
	MimeType string `json:"mime_type"`
	FileName string `json:"file_name"`
}

type wireMetadata struct {
	SourceImageID string   `json:"source_image_id"`
	Categories    []string `json:"categories"`
	ProductSKU    string   `json:"product_sku"`
}

type wireRequest struct {
	Prompt   string       `json:"prompt"`
	Image    wireImage    `json:"image"`
	Metadata wireMetadata `json:"metadata"`
}

type wirePart struct {
	ImageBase64 string `json:"image_base64"`
	MimeType    string `json:"mime_type"`
}

// wireResponse accepts both snake_case and the mediator's camelCase fields.
type wireResponse struct {
	ImageBase64      string     `json:"image_base64"`
	ImageBase64Alt   string     `json:"imageBase64"`
	ImageURL         string     `json:"image_url"`
	MimeType         string     `json:"mime_type"`
	MimeTypeAlt      string     `json:"mimeType"`
	FileName         string     `json:"file_name"`
	Model            string     `json:"model"`
	RemainingCredits *int       `json:"remaining_credits"`
	RemainingAlt     *int       `json:"remainingCredits"`
	Parts            []wirePart `json:"parts"`
}

// Generate posts the prompt plus inline source image and validates the
// response down to a single usable image.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	if c.apiKey == "" {
		return nil, domain.ErrInvalidCredential
	}
	if len(req.Image.Data) == 0 {
		return nil, fmt.Errorf("%w: source image is empty", domain.ErrRemoteRequest)
	}

	mime := req.Image.MIME
	if mime == "" {
		mime = "image/jpeg"
	}
	fileName := req.Image.FileName
	if fileName == "" {
		fileName = "product.jpg"
	}
	categories := req.Metadata.CategoryIDs
	if categories == nil {
		categories = []string{}
	}

	payload := wireRequest{
		Prompt: req.Prompt,
		Image: wireImage{
			Base64:   base64.StdEncoding.EncodeToString(req.Image.Data),
			MimeType: mime,
			FileName: fileName,
		},
		Metadata: wireMetadata{
			SourceImageID: req.Metadata.SourceImageID,
			Categories:    categories,
			ProductSKU:    req.Metadata.SKU,
		},
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", domain.ErrRemoteRequest, err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/product-image", bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRequest, err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.apiKey)

	c.logger.Info().Str("sku", req.Metadata.SKU).Int("image_bytes", len(req.Image.Data)).Msg("genimage: dispatching generation request")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrRemoteRequest, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("%w: read response: %v", domain.ErrRemoteRequest, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg := extractErrorMessage(raw, resp.StatusCode)
		c.logger.Error().Int("code", resp.StatusCode).Str("error", msg).Msg("genimage: remote rejected request")
		return nil, &RejectionError{Code: resp.StatusCode, Message: msg}
	}

	var wire wireResponse
	if err := json.Unmarshal(raw, &wire); err != nil {
		return nil, fmt.Errorf("%w: malformed payload", domain.ErrInvalidRemoteResponse)
	}

	result, err := wire.toResult()
	if err != nil {
		return nil, err
	}

	c.logger.Info().Str("model", result.Model).Msg("genimage: generation succeeded")
	return result, nil
}

func (w *wireResponse) toResult() (*Result, error) {
	result := &Result{
		MIME:             firstNonEmpty(w.MimeType, w.MimeTypeAlt, "image/webp"),
		FileName:         w.FileName,
		Model:            w.Model,
		RemainingCredits: w.RemainingCredits,
	}
	if result.RemainingCredits == nil {
		result.RemainingCredits = w.RemainingAlt
	}

	if encoded := firstNonEmpty(w.ImageBase64, w.ImageBase64Alt); encoded != "" {
		data, err := decodeImage(encoded)
		if err != nil {
			return nil, err
		}
		result.Data = data
		return result, nil
	}

	// The first part carrying image data wins; the rest are ignored.
	for _, part := range w.Parts {
		if part.ImageBase64 == "" {
			continue
		}
		data, err := decodeImage(part.ImageBase64)
		if err != nil {
			return nil, err
		}
		result.Data = data
		if part.MimeType != "" {
			result.MIME = part.MimeType
		}
		return result, nil
	}

	if w.ImageURL != "" {
		result.SourceURL = w.ImageURL
		return result, nil
	}

	return nil, fmt.Errorf("%w: no image part in payload", domain.ErrInvalidRemoteResponse)
}

func decodeImage(encoded string) ([]byte, error) {
	compact := strings.Map(func(r rune) rune {
		switch r {
		case ' ', '\n', '\r', '\t':
			return -1
		}
		return r
	}, encoded)

	data, err := base64.StdEncoding.DecodeString(compact)
	if err != nil {
		return nil, fmt.Errorf("%w: undecodable image data", domain.ErrInvalidRemoteResponse)
	}
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty image data", domain.ErrInvalidRemoteResponse)
	}
	return data, nil
}

// extractErrorMessage pulls a human-readable message out of an error payload,
// trying the structured "error" field, then "message", then the first entry of
// an "errors" list, before falling back to the HTTP status code.
func extractErrorMessage(raw []byte, code int) string {
	var payload struct {
		Error   json.RawMessage   `json:"error"`
		Message string            `json:"message"`
		Errors  []json.RawMessage `json:"errors"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil {
		if msg := decodeMessageField(payload.Error); msg != "" {
			return msg
		}
		if payload.Message != "" {
			return payload.Message
		}
		if len(payload.Errors) > 0 {
			if msg := decodeMessageField(payload.Errors[0]); msg != "" {
				return msg
			}
		}
	}
	return fmt.Sprintf("HTTP %d", code)
}

// decodeMessageField handles fields that are either a bare string or an
// object with a "message" key.
func decodeMessageField(raw json.RawMessage) string {
	if len(raw) == 0 {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return strings.TrimSpace(s)
	}
	var obj struct {
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &obj); err == nil {
		return strings.TrimSpace(obj.Message)
	}
	return ""
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
