package faceclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net"
	"net/http"
	"net/textproto"
	"strings"
	"time"

	"presence/internal/apperr"
	"presence/internal/model"
)

var (
	// ErrNoMatch means the service found no enrolled face above its threshold.
	ErrNoMatch = apperr.NotFound("NoMatch", "user not found")
	// ErrUnavailable means the service timed out, was unreachable or failed.
	ErrUnavailable = apperr.BadRequest("RecognitionUnavailable", "face recognition service unavailable")
	// ErrRejected means the service refused the image, e.g. no face in it.
	ErrRejected = apperr.BadRequest("RecognitionRejected", "image could not be recognized")
)

// Client calls the face recognition microservice.
type Client struct {
	BaseURL string
	HTTP    *http.Client
	Timeout time.Duration
}

// New creates a client whose calls are bounded by timeout.
func New(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &Client{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Timeout: timeout,
		HTTP:    &http.Client{},
	}
}

// Recognize identifies the person in image and returns their id.
func (c *Client) Recognize(ctx context.Context, image model.Image) (string, error) {
	body, contentType, err := multipartBody(nil, image)
	if err != nil {
		return "", err
	}

	resp, err := c.do(ctx, http.MethodPost, "/recognize", contentType, body)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return "", ErrNoMatch
	}
	if err := checkStatus(resp); err != nil {
		if resp.StatusCode < 500 {
			return "", ErrRejected.Wrap(err)
		}
		return "", err
	}

	var out struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	id := decodeID(out.Data)
	if id == "" {
		return "", ErrNoMatch
	}
	return id, nil
}

// Enroll registers the face template for personID.
func (c *Client) Enroll(ctx context.Context, personID string, image model.Image) error {
	return c.upsert(ctx, personID, image)
}

// Update replaces the face template for personID.
func (c *Client) Update(ctx context.Context, personID string, image model.Image) error {
	return c.upsert(ctx, personID, image)
}

func (c *Client) upsert(ctx context.Context, personID string, image model.Image) error {
	body, contentType, err := multipartBody(map[string]string{"user_id": personID}, image)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/update", contentType, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	return checkStatus(resp)
}

// Delete removes the face template for personID. A template that is already
// gone is not an error.
func (c *Client) Delete(ctx context.Context, personID string) error {
	payload, _ := json.Marshal(map[string]string{"user_id": personID})
	resp, err := c.do(ctx, http.MethodDelete, "/delete", "application/json", bytes.NewReader(payload))
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode == http.StatusNotFound {
		return nil
	}
	return checkStatus(resp)
}

func (c *Client) do(ctx context.Context, method, path, contentType string, body io.Reader) (*http.Response, error) {
	ctx, cancel := context.WithTimeout(ctx, c.Timeout)
	req, err := http.NewRequestWithContext(ctx, method, c.BaseURL+path, body)
	if err != nil {
		cancel()
		return nil, err
	}
	req.Header.Set("Content-Type", contentType)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		cancel()
		if isUnavailable(err) {
			return nil, ErrUnavailable.Wrap(err)
		}
		return nil, fmt.Errorf("face service request failed: %w", err)
	}
	resp.Body = &cancelOnClose{ReadCloser: resp.Body, cancel: cancel}
	return resp, nil
}

// cancelOnClose keeps the request context alive until the body is consumed.
type cancelOnClose struct {
	io.ReadCloser
	cancel context.CancelFunc
}

func (b *cancelOnClose) Close() error {
	err := b.ReadCloser.Close()
	b.cancel()
	return err
}

func checkStatus(resp *http.Response) error {
	if resp.StatusCode < 300 {
		return nil
	}
	bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	err := fmt.Errorf("face service error %s: %s", resp.Status, strings.TrimSpace(string(bodyBytes)))
	if resp.StatusCode >= 500 {
		return ErrUnavailable.Wrap(err)
	}
	return err
}

func isUnavailable(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	if errors.As(err, &netErr) {
		return true
	}
	var opErr *net.OpError
	return errors.As(err, &opErr)
}

// decodeID accepts both string and numeric ids.
func decodeID(raw json.RawMessage) string {
	if len(raw) == 0 || string(raw) == "null" {
		return ""
	}
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		return s
	}
	var n json.Number
	if err := json.Unmarshal(raw, &n); err == nil {
		return n.String()
	}
	return ""
}

func multipartBody(fields map[string]string, image model.Image) (io.Reader, string, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	for k, v := range fields {
		if err := w.WriteField(k, v); err != nil {
			return nil, "", err
		}
	}

	filename := image.Filename
	if filename == "" {
		filename = "image"
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = "application/octet-stream"
	}
	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", err
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}
