package main

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"golang.org/x/time/rate"
)

const maxBackendResponseBytes = 8 * 1024 * 1024

// BackendClient talks to the BRIMS REST API. Every request waits on a shared
// limiter so batch actions cannot flood the backend.
type BackendClient struct {
	BaseURL string
	Token   string
	Client  *http.Client
	limiter *rate.Limiter
}

func NewBackendClient(baseURL, token string, timeout time.Duration, perSecond float64) *BackendClient {
	limit := rate.Inf
	burst := 1
	if perSecond > 0 {
		limit = rate.Limit(perSecond)
		burst = max(1, int(perSecond))
	}
	return &BackendClient{
		BaseURL: strings.TrimRight(baseURL, "/"),
		Token:   token,
		Client:  &http.Client{Timeout: timeout},
		limiter: rate.NewLimiter(limit, burst),
	}
}

func (b *BackendClient) ListPendingUsers(ctx context.Context) ([]PendingUser, error) {
	raw, err := b.do(ctx, http.MethodGet, "/users/pending", nil)
	if err != nil {
		return nil, err
	}
	return decodeCollection[PendingUser](raw, "users")
}

func (b *BackendClient) ApproveUser(ctx context.Context, id string) error {
	raw, err := b.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/approve", nil)
	if err != nil {
		return err
	}
	return checkSuccessFlag(raw)
}

func (b *BackendClient) RejectUser(ctx context.Context, id, reason string) error {
	raw, err := b.do(ctx, http.MethodPost, "/users/"+url.PathEscape(id)+"/reject", map[string]string{"reason": reason})
	if err != nil {
		return err
	}
	return checkSuccessFlag(raw)
}

func (b *BackendClient) ListIncidents(ctx context.Context) ([]Incident, error) {
	raw, err := b.do(ctx, http.MethodGet, "/incidents", nil)
	if err != nil {
		return nil, err
	}
	return decodeCollection[Incident](raw, "incidents")
}

func (b *BackendClient) UpdateIncidentStatus(ctx context.Context, id, status, remarks string) (*Incident, error) {
	raw, err := b.do(ctx, http.MethodPut, "/incidents/"+url.PathEscape(id)+"/status", map[string]string{
		"status":  status,
		"remarks": remarks,
	})
	if err != nil {
		return nil, err
	}
	return decodeRecord[Incident](raw, "incident")
}

func (b *BackendClient) ArchiveIncident(ctx context.Context, id, reason string) (*Incident, error) {
	raw, err := b.do(ctx, http.MethodPost, "/incidents/"+url.PathEscape(id)+"/archive", map[string]string{"reason": reason})
	if err != nil {
		return nil, err
	}
	return decodeRecord[Incident](raw, "incident")
}

func (b *BackendClient) UnarchiveIncident(ctx context.Context, id, reason string) (*Incident, error) {
	raw, err := b.do(ctx, http.MethodPost, "/incidents/"+url.PathEscape(id)+"/unarchive", map[string]string{"reason": reason})
	if err != nil {
		return nil, err
	}
	return decodeRecord[Incident](raw, "incident")
}

func (b *BackendClient) ListPopulation(ctx context.Context) ([]PopulationRecord, error) {
	raw, err := b.do(ctx, http.MethodGet, "/population", nil)
	if err != nil {
		return nil, err
	}
	return decodeCollection[PopulationRecord](raw, "population")
}

func (b *BackendClient) ListIncidentPopulation(ctx context.Context, incidentID string) ([]PopulationRecord, error) {
	raw, err := b.do(ctx, http.MethodGet, "/incidents/"+url.PathEscape(incidentID)+"/population", nil)
	if err != nil {
		return nil, err
	}
	return decodeCollection[PopulationRecord](raw, "population")
}

func (b *BackendClient) AddIncidentPopulation(ctx context.Context, incidentID string, entry PopulationEntry) (*PopulationRecord, error) {
	raw, err := b.do(ctx, http.MethodPost, "/incidents/"+url.PathEscape(incidentID)+"/population", entry)
	if err != nil {
		return nil, err
	}
	return decodeRecord[PopulationRecord](raw, "population")
}

func (b *BackendClient) GetProfile(ctx context.Context) (*Profile, error) {
	raw, err := b.do(ctx, http.MethodGet, "/profile", nil)
	if err != nil {
		return nil, err
	}
	profile, err := decodeRecord[Profile](raw, "profile")
	if err != nil {
		return nil, err
	}
	if profile == nil {
		return nil, &apiError{Status: http.StatusBadGateway, Code: "invalid_backend_response", Message: "Profile missing from backend response"}
	}
	return profile, nil
}

func (b *BackendClient) UpdateProfile(ctx context.Context, profile Profile) (*Profile, error) {
	raw, err := b.do(ctx, http.MethodPut, "/profile", profile)
	if err != nil {
		return nil, err
	}
	return decodeRecord[Profile](raw, "profile")
}

func (b *BackendClient) do(ctx context.Context, method, path string, body any) ([]byte, error) {
	if err := b.limiter.Wait(ctx); err != nil {
		return nil, err
	}

	var reader io.Reader
	if body != nil {
		encoded, err := json.Marshal(body)
		if err != nil {
			return nil, err
		}
		reader = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(ctx, method, b.BaseURL+path, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if b.Token != "" {
		req.Header.Set("Authorization", "Bearer "+b.Token)
	}

	resp, err := b.Client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxBackendResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("backend %s %s: read body: %w", method, path, err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, decodeBackendError(resp.StatusCode, raw)
	}
	return raw, nil
}

type backendEnvelope struct {
	Success *bool               `json:"success"`
	Message string              `json:"message"`
	Error   string              `json:"error"`
	Errors  map[string][]string `json:"errors"`
}

func decodeBackendError(status int, raw []byte) *apiError {
	apiErr := &apiError{Status: status, Code: backendErrorCode(status)}
	var envelope backendEnvelope
	if err := json.Unmarshal(raw, &envelope); err == nil {
		apiErr.Message = strings.TrimSpace(envelope.Message)
		if apiErr.Message == "" {
			apiErr.Message = strings.TrimSpace(envelope.Error)
		}
		if len(envelope.Errors) > 0 {
			apiErr.Fields = envelope.Errors
		}
	}
	return apiErr
}

func backendErrorCode(status int) string {
	switch status {
	case http.StatusBadRequest:
		return "bad_request"
	case http.StatusUnauthorized:
		return "unauthorized"
	case http.StatusForbidden:
		return "forbidden"
	case http.StatusNotFound:
		return "not_found"
	case http.StatusConflict:
		return "conflict"
	case http.StatusUnprocessableEntity:
		return "validation_failed"
	case http.StatusTooManyRequests:
		return "rate_limited"
	default:
		if status >= 500 {
			return "backend_unavailable"
		}
		return "backend_error"
	}
}

// checkSuccessFlag turns {"success": false} on a 2xx response into an error.
func checkSuccessFlag(raw []byte) error {
	if len(bytes.TrimSpace(raw)) == 0 {
		return nil
	}
	var envelope backendEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil
	}
	if envelope.Success != nil && !*envelope.Success {
		return &apiError{Status: http.StatusBadGateway, Code: "backend_rejected", Message: strings.TrimSpace(envelope.Message), Fields: envelope.Errors}
	}
	return nil
}

// decodeCollection accepts a bare array, {"<key>": [...]} or
// {"success": true, "data": [...]} where data may itself hold <key>.
func decodeCollection[T any](raw []byte, key string) ([]T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) > 0 && trimmed[0] == '[' {
		var items []T
		if err := json.Unmarshal(trimmed, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return items, nil
	}
	if err := checkSuccessFlag(trimmed); err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, fmt.Errorf("decode %s: %w", key, err)
	}
	for _, candidate := range []string{key, "data"} {
		value, ok := envelope[candidate]
		if !ok {
			continue
		}
		value = bytes.TrimSpace(value)
		if len(value) > 0 && value[0] == '{' {
			return decodeCollection[T](value, key)
		}
		var items []T
		if err := json.Unmarshal(value, &items); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return items, nil
	}
	return nil, fmt.Errorf("decode %s: response has no %q collection", key, key)
}

// decodeRecord extracts the updated record from a mutation response. A bare
// success body yields nil.
func decodeRecord[T any](raw []byte, key string) (*T, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return nil, nil
	}
	if err := checkSuccessFlag(trimmed); err != nil {
		return nil, err
	}

	var envelope map[string]json.RawMessage
	if err := json.Unmarshal(trimmed, &envelope); err != nil {
		return nil, nil
	}
	for _, candidate := range []string{key, "data"} {
		value, ok := envelope[candidate]
		if !ok {
			continue
		}
		value = bytes.TrimSpace(value)
		if len(value) == 0 || value[0] != '{' {
			return nil, nil
		}
		var nested map[string]json.RawMessage
		if err := json.Unmarshal(value, &nested); err == nil {
			if inner, ok := nested[key]; ok && candidate == "data" {
				value = inner
			}
		}
		var record T
		if err := json.Unmarshal(value, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return &record, nil
	}
	if _, hasID := envelope["id"]; hasID {
		var record T
		if err := json.Unmarshal(trimmed, &record); err != nil {
			return nil, fmt.Errorf("decode %s: %w", key, err)
		}
		return &record, nil
	}
	return nil, nil
}

// fieldMessages flattens field errors in field order.
func fieldMessages(fields map[string][]string) []string {
	names := make([]string, 0, len(fields))
	for name := range fields {
		names = append(names, name)
	}
	sort.Strings(names)
	messages := make([]string, 0, len(names))
	for _, name := range names {
		for _, message := range fields[name] {
			if message = strings.TrimSpace(message); message != "" {
				messages = append(messages, message)
			}
		}
	}
	return messages
}

func isBackendStatus(err error, status int) bool {
	var apiErr *apiError
	return errors.As(err, &apiErr) && apiErr.Status == status
}
