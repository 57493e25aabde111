// Package fhir is a minimal client for the Patient endpoints of a FHIR R4
// registry.
package fhir

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/interpreter-booking-api/pkg/config"
	"github.com/noah-isme/interpreter-booking-api/pkg/middleware/requestid"
)

const contentType = "application/fhir+json"

// ErrNotFound is returned when the registry has no resource for an id.
var ErrNotFound = errors.New("fhir resource not found")

// StatusError carries an unexpected registry response code.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("fhir registry returned %d: %s", e.Code, e.Body)
}

// Client talks to a FHIR registry over HTTP.
type Client struct {
	baseURL     string
	searchCount int
	http        *http.Client
	logger      *zap.Logger
}

// NewClient builds a client from configuration. A nil httpClient uses one
// with the configured timeout.
func NewClient(cfg config.FHIRConfig, httpClient *http.Client, logger *zap.Logger) *Client {
	if httpClient == nil {
		timeout := cfg.Timeout
		if timeout <= 0 {
			timeout = 30 * time.Second
		}
		httpClient = &http.Client{Timeout: timeout}
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	count := cfg.SearchCount
	if count <= 0 {
		count = 20
	}
	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		searchCount: count,
		http:        httpClient,
		logger:      logger,
	}
}

// GetPatient fetches a patient by registry id.
func (c *Client) GetPatient(ctx context.Context, id string) (*Patient, error) {
	var patient Patient
	if err := c.do(ctx, http.MethodGet, "/Patient/"+url.PathEscape(id), nil, &patient); err != nil {
		return nil, err
	}
	return &patient, nil
}

// SearchPatients searches by name and language.
func (c *Client) SearchPatients(ctx context.Context, name, language string) ([]Patient, error) {
	params := url.Values{}
	params.Set("_count", strconv.Itoa(c.searchCount))
	if name != "" {
		params.Set("name", name)
	}
	if language != "" {
		params.Set("language", language)
	}
	var bundle Bundle
	if err := c.do(ctx, http.MethodGet, "/Patient?"+params.Encode(), nil, &bundle); err != nil {
		return nil, err
	}
	patients := make([]Patient, 0, len(bundle.Entry))
	for _, entry := range bundle.Entry {
		patients = append(patients, entry.Resource)
	}
	return patients, nil
}

// CreatePatient registers a patient and returns the stored resource.
func (c *Client) CreatePatient(ctx context.Context, patient Patient) (*Patient, error) {
	patient.ResourceType = "Patient"
	body, err := json.Marshal(patient)
	if err != nil {
		return nil, fmt.Errorf("encode patient: %w", err)
	}
	var created Patient
	if err := c.do(ctx, http.MethodPost, "/Patient", body, &created); err != nil {
		return nil, err
	}
	return &created, nil
}

func (c *Client) do(ctx context.Context, method, path string, body []byte, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("build fhir request: %w", err)
	}
	req.Header.Set("Accept", contentType)
	if body != nil {
		req.Header.Set("Content-Type", contentType)
	}
	if id := requestid.FromContext(ctx); id != "" {
		req.Header.Set("X-Request-ID", id)
	}

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("fhir %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()
	c.logger.Debug("fhir call",
		zap.String("method", method),
		zap.String("path", path),
		zap.Int("status", resp.StatusCode),
		zap.Duration("latency", time.Since(start)),
	)

	switch {
	case resp.StatusCode == http.StatusNotFound || resp.StatusCode == http.StatusGone:
		return ErrNotFound
	case resp.StatusCode < 200 || resp.StatusCode >= 300:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &StatusError{Code: resp.StatusCode, Body: string(snippet)}
	}

	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return fmt.Errorf("decode fhir response: %w", err)
	}
	return nil
}
