package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/koclink/coachsync/pkg/config"
	appErrors "github.com/koclink/coachsync/pkg/errors"
)

// HTTPStore talks to the document store's REST API.
type HTTPStore struct {
	baseURL string
	apiKey  string
	client  *http.Client
}

// NewHTTPStore builds a Store over the remote HTTP API.
func NewHTTPStore(cfg config.RemoteConfig) *HTTPStore {
	return &HTTPStore{
		baseURL: cfg.BaseURL,
		apiKey:  cfg.APIKey,
		client:  &http.Client{Timeout: cfg.Timeout},
	}
}

// Put upserts a document. With merge set, absent fields keep their remote
// values; without it the document is replaced.
func (s *HTTPStore) Put(ctx context.Context, collection, id string, fields Document, merge bool) error {
	endpoint := fmt.Sprintf("%s/%s/%s?merge=%s", s.baseURL, url.PathEscape(collection), url.PathEscape(id), strconv.FormatBool(merge))
	return s.do(ctx, http.MethodPut, endpoint, fields, nil)
}

// Delete removes a document. Deleting an absent document is not an error.
func (s *HTTPStore) Delete(ctx context.Context, collection, id string) error {
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(collection), url.PathEscape(id))
	err := s.do(ctx, http.MethodDelete, endpoint, nil, nil)
	if err != nil && appErrors.FromError(err).Code == appErrors.ErrNotFound.Code {
		return nil
	}
	return err
}

// Get fetches a single document, returning ErrNotFound when absent.
func (s *HTTPStore) Get(ctx context.Context, collection, id string) (Document, error) {
	endpoint := fmt.Sprintf("%s/%s/%s", s.baseURL, url.PathEscape(collection), url.PathEscape(id))
	var doc Document
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &doc); err != nil {
		return nil, err
	}
	return doc, nil
}

// QueryWhere lists documents matching an equality filter.
func (s *HTTPStore) QueryWhere(ctx context.Context, collection, field string, value interface{}, opts *QueryOptions) ([]Document, error) {
	params := url.Values{}
	params.Set("field", field)
	params.Set("value", fmt.Sprintf("%v", value))
	if opts != nil && opts.OrderBy != "" {
		params.Set("orderBy", opts.OrderBy)
		params.Set("desc", strconv.FormatBool(opts.Descending))
	}
	endpoint := fmt.Sprintf("%s/%s?%s", s.baseURL, url.PathEscape(collection), params.Encode())

	var payload struct {
		Documents []Document `json:"documents"`
	}
	if err := s.do(ctx, http.MethodGet, endpoint, nil, &payload); err != nil {
		return nil, err
	}
	return payload.Documents, nil
}

// Commit applies a set of writes atomically on the remote side.
func (s *HTTPStore) Commit(ctx context.Context, ops []Operation) error {
	if len(ops) == 0 {
		return nil
	}
	endpoint := s.baseURL + "/batch"
	body := struct {
		Operations []Operation `json:"operations"`
	}{Operations: ops}
	return s.do(ctx, http.MethodPost, endpoint, body, nil)
}

func (s *HTTPStore) do(ctx context.Context, method, endpoint string, body, dest interface{}) error {
	var reader io.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request body: %w", err)
		}
		reader = bytes.NewReader(raw)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("X-API-Key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "remote document store unreachable")
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusNotFound:
		return appErrors.Clone(appErrors.ErrNotFound, "remote document not found")
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return appErrors.Clone(appErrors.ErrRemote, "remote document store rejected credentials")
	case resp.StatusCode >= 400:
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, 2048))
		return appErrors.Wrap(fmt.Errorf("status %d: %s", resp.StatusCode, raw),
			appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "remote document store call failed")
	}

	if dest == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(dest); err != nil {
		return appErrors.Wrap(err, appErrors.ErrRemote.Code, appErrors.ErrRemote.Status, "decode remote response")
	}
	return nil
}
