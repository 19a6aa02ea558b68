package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/textproto"
	"net/url"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/attendance/internal/logger"
	"github.com/wolfeidau/attendance/internal/models"
	"golang.org/x/oauth2"
)

// maxErrorBody bounds how much of a rejected response is kept in APIError.
const maxErrorBody = 4096

// listEnvelopeKeys are the object keys under which list endpoints nest their
// records, in precedence order.
var listEnvelopeKeys = []string{"data", "records", "attendance", "items"}

// recordEnvelopeKeys are the object keys under which submit endpoints nest the
// created or updated record, in precedence order.
var recordEnvelopeKeys = []string{"data", "record", "attendance"}

var validate = validator.New()

// Config holds common client configuration
type Config struct {
	ServerURL string
	Timeout   time.Duration
	Token     string
	CacheDir  string
	Debug     bool
}

// DefaultConfig returns a default client configuration
func DefaultConfig() Config {
	return Config{
		ServerURL: "http://localhost:8080/api",
		Timeout:   15 * time.Second,
		Debug:     false,
	}
}

// APIError is returned when the backend answers with a non-2xx status.
type APIError struct {
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("backend returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, e.Body)
}

func (e *APIError) Unwrap() error {
	return models.ErrServerRejection
}

// StatusPayload is the body of the current-status endpoint.
type StatusPayload struct {
	IsActive        bool             `json:"isActive"`
	LoginTime       string           `json:"loginTime"`
	LoginImage      string           `json:"loginImage"`
	LogoutTime      string           `json:"logoutTime"`
	LogoutImage     string           `json:"logoutImage"`
	TimeLeftSeconds *int             `json:"timeLeftSeconds"`
	Record          models.RawRecord `json:"record"`
}

// Image is a captured still frame ready for upload.
type Image struct {
	Data        []byte
	ContentType string
	Filename    string
}

// CheckInRequest is the payload of a check-in submission.
type CheckInRequest struct {
	EmployeeID string `validate:"required"`
	Location   string `validate:"required"`
	Image      Image
}

// Client talks to the attendance REST backend.
type Client struct {
	baseURL *url.URL
	api     *http.Client
	cached  *http.Client
}

// New creates a client. Authenticated requests carry cfg.Token as a bearer
// token; history reads go through an HTTP cache rooted at cfg.CacheDir.
func New(cfg Config) (*Client, error) {
	if cfg.ServerURL == "" {
		return nil, errors.New("server URL is required")
	}

	baseURL, err := url.Parse(cfg.ServerURL)
	if err != nil {
		return nil, fmt.Errorf("invalid server URL: %w", err)
	}

	var transport http.RoundTripper = logger.NewTransport(log.Logger, http.DefaultTransport)
	if cfg.Token != "" {
		transport = &oauth2.Transport{
			Source: oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.Token, TokenType: "Bearer"}),
			Base:   transport,
		}
	}

	return &Client{
		baseURL: baseURL,
		api:     &http.Client{Timeout: cfg.Timeout, Transport: transport},
		cached:  &http.Client{Timeout: cfg.Timeout, Transport: NewCachingTransport(cfg.CacheDir, transport)},
	}, nil
}

// CurrentStatus queries GET current-status/{employeeId}.
func (c *Client) CurrentStatus(ctx context.Context, employeeID string) (*StatusPayload, error) {
	body, err := c.do(ctx, c.api, http.MethodGet, c.baseURL.JoinPath("current-status", employeeID), nil, "", "")
	if err != nil {
		return nil, err
	}

	raw, err := unwrapObject(body, []string{"data"}, "isActive")
	if err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}

	var payload StatusPayload
	if err := json.Unmarshal(raw, &payload); err != nil {
		return nil, fmt.Errorf("failed to decode status: %w", err)
	}

	return &payload, nil
}

// EmployeeHistory queries GET attendance/employee/{employeeId}.
func (c *Client) EmployeeHistory(ctx context.Context, employeeID string) ([]models.RawRecord, error) {
	body, err := c.do(ctx, c.cached, http.MethodGet, c.baseURL.JoinPath("attendance", "employee", employeeID), nil, "", "")
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// AllAttendance queries GET attendance, the organisation-wide list.
func (c *Client) AllAttendance(ctx context.Context) ([]models.RawRecord, error) {
	body, err := c.do(ctx, c.cached, http.MethodGet, c.baseURL.JoinPath("attendance"), nil, "", "")
	if err != nil {
		return nil, err
	}
	return decodeList(body)
}

// CheckIn submits POST attendance/checkin and returns the created record.
func (c *Client) CheckIn(ctx context.Context, req CheckInRequest) (models.RawRecord, error) {
	if err := validate.Struct(req); err != nil {
		return nil, fmt.Errorf("invalid check-in request: %w", err)
	}

	form, contentType, err := encodeForm(map[string]string{
		"employeeId": req.EmployeeID,
		"location":   req.Location,
	}, req.Image)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, c.api, http.MethodPost, c.baseURL.JoinPath("attendance", "checkin"), form, contentType, uuid.New().String())
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

// CheckOut submits POST attendance/checkout/{recordId} and returns the
// updated record.
func (c *Client) CheckOut(ctx context.Context, recordID string, image Image) (models.RawRecord, error) {
	if recordID == "" {
		return nil, models.ErrNoActiveRecord
	}

	form, contentType, err := encodeForm(nil, image)
	if err != nil {
		return nil, err
	}

	body, err := c.do(ctx, c.api, http.MethodPost, c.baseURL.JoinPath("attendance", "checkout", recordID), form, contentType, uuid.New().String())
	if err != nil {
		return nil, err
	}
	return decodeRecord(body)
}

func (c *Client) do(ctx context.Context, hc *http.Client, method string, u *url.URL, body io.Reader, contentType, requestID string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, method, u.String(), body)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if requestID != "" {
		req.Header.Set("X-Request-Id", requestID)
	}

	resp, err := hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s: %w", models.ErrNetworkFailure, method, u.Path, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", models.ErrNetworkFailure, err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		if len(data) > maxErrorBody {
			data = data[:maxErrorBody]
		}
		return nil, &APIError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(data))}
	}

	return data, nil
}

func encodeForm(fields map[string]string, image Image) (io.Reader, string, error) {
	if len(image.Data) == 0 {
		return nil, "", models.ErrEmptyCapture
	}

	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)

	for name, value := range fields {
		if err := w.WriteField(name, value); err != nil {
			return nil, "", fmt.Errorf("failed to write form field %s: %w", name, err)
		}
	}

	filename := image.Filename
	if filename == "" {
		filename = "capture.jpg"
	}
	contentType := image.ContentType
	if contentType == "" {
		contentType = "image/jpeg"
	}

	h := make(textproto.MIMEHeader)
	h.Set("Content-Disposition", fmt.Sprintf(`form-data; name="image"; filename=%q`, filename))
	h.Set("Content-Type", contentType)
	part, err := w.CreatePart(h)
	if err != nil {
		return nil, "", fmt.Errorf("failed to create image part: %w", err)
	}
	if _, err := part.Write(image.Data); err != nil {
		return nil, "", fmt.Errorf("failed to write image part: %w", err)
	}

	if err := w.Close(); err != nil {
		return nil, "", fmt.Errorf("failed to close form: %w", err)
	}

	return &buf, w.FormDataContentType(), nil
}

// decodeList accepts a bare array or an object nesting the array under one of
// listEnvelopeKeys.
func decodeList(body []byte) ([]models.RawRecord, error) {
	var records []models.RawRecord
	if err := json.Unmarshal(body, &records); err == nil {
		return records, nil
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, fmt.Errorf("failed to decode attendance list: %w", err)
	}

	for _, key := range listEnvelopeKeys {
		raw, ok := obj[key]
		if !ok || isNull(raw) {
			continue
		}
		if err := json.Unmarshal(raw, &records); err != nil {
			return nil, fmt.Errorf("failed to decode attendance list under %q: %w", key, err)
		}
		return records, nil
	}

	return nil, errors.New("failed to decode attendance list: no record array in response")
}

func decodeRecord(body []byte) (models.RawRecord, error) {
	raw, err := unwrapObject(body, recordEnvelopeKeys, "id")
	if err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}

	var record models.RawRecord
	if err := json.Unmarshal(raw, &record); err != nil {
		return nil, fmt.Errorf("failed to decode record: %w", err)
	}
	return record, nil
}

// unwrapObject returns the first object nested under keys, unless the
// top-level object already carries marker.
func unwrapObject(body []byte, keys []string, marker string) (json.RawMessage, error) {
	var obj map[string]json.RawMessage
	if err := json.Unmarshal(body, &obj); err != nil {
		return nil, err
	}

	if _, ok := obj[marker]; ok {
		return body, nil
	}

	for _, key := range keys {
		raw, ok := obj[key]
		if !ok || isNull(raw) {
			continue
		}
		trimmed := bytes.TrimSpace(raw)
		if len(trimmed) > 0 && trimmed[0] == '{' {
			return trimmed, nil
		}
	}

	return body, nil
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}
