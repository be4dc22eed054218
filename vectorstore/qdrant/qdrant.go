// Copyright 2025 Calen Labs
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package qdrant implements vectorstore.Store over Qdrant's REST API.
//
// The client is deliberately minimal: collection lifecycle, batched upserts
// with wait=true, and payload-carrying similarity search. Collections are
// created with cosine distance. Point IDs are the unsigned 64-bit chunk IDs,
// which Qdrant accepts natively, so upserts are idempotent without any
// client-side bookkeeping.
package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/calenlabs/ragbook/core"
	"github.com/calenlabs/ragbook/vectorstore"
)

const defaultTimeout = 15 * time.Second

// Config holds connection settings for a Qdrant service.
type Config struct {
	// URL is the base URL of the Qdrant REST API, e.g. http://localhost:6333.
	URL string

	// APIKey, when non-empty, is sent as the api-key header on every request.
	APIKey string

	// Timeout bounds each HTTP request. Defaults to 15 seconds.
	Timeout time.Duration
}

// Store is a vectorstore.Store backed by a remote Qdrant service.
type Store struct {
	baseURL string
	apiKey  string
	client  *http.Client
	logger  *slog.Logger

	mu   sync.Mutex
	dims map[string]int
}

var _ vectorstore.Store = (*Store)(nil)

// Option configures a Store.
type Option func(*Store)

// WithLogger sets the logger used for request diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(s *Store) {
		s.logger = logger
	}
}

// WithHTTPClient overrides the HTTP client. The Config timeout is ignored
// when a client is supplied.
func WithHTTPClient(client *http.Client) Option {
	return func(s *Store) {
		s.client = client
	}
}

// New creates a Qdrant-backed store. It does not contact the service;
// the first collection operation does.
func New(config Config, opts ...Option) (*Store, error) {
	if strings.TrimSpace(config.URL) == "" {
		return nil, fmt.Errorf("%w: qdrant URL is required", core.ErrConfig)
	}

	timeout := config.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}

	s := &Store{
		baseURL: strings.TrimRight(config.URL, "/"),
		apiKey:  config.APIKey,
		client:  &http.Client{Timeout: timeout},
		logger:  slog.Default().With("component", "qdrant"),
		dims:    make(map[string]int),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s, nil
}

// collectionResponse is the subset of GET /collections/{name} we consume.
type collectionResponse struct {
	Result struct {
		PointsCount int `json:"points_count"`
		Config      struct {
			Params struct {
				Vectors struct {
					Size     int    `json:"size"`
					Distance string `json:"distance"`
				} `json:"vectors"`
			} `json:"params"`
		} `json:"config"`
	} `json:"result"`
}

func (s *Store) EnsureCollection(ctx context.Context, name string, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: collection dimension must be positive, got %d", core.ErrConfig, dimension)
	}

	info, err := s.Info(ctx, name)
	switch {
	case err == nil:
		if info.Dimension != dimension {
			return fmt.Errorf("%w: collection %q has dimension %d, want %d",
				vectorstore.ErrDimensionMismatch, name, info.Dimension, dimension)
		}
		s.cacheDimension(name, dimension)
		return nil
	case errors.Is(err, vectorstore.ErrCollectionNotFound):
		// fall through to create
	default:
		return err
	}

	body := map[string]any{
		"vectors": map[string]any{
			"size":     dimension,
			"distance": "Cosine",
		},
	}
	if err := s.do(ctx, http.MethodPut, "/collections/"+name, body, nil); err != nil {
		return fmt.Errorf("create collection %q: %w", name, err)
	}

	s.logger.Info("created collection", "name", name, "dimension", dimension)
	s.cacheDimension(name, dimension)
	return nil
}

func (s *Store) DeleteCollection(ctx context.Context, name string) error {
	err := s.do(ctx, http.MethodDelete, "/collections/"+name, nil, nil)
	if err != nil && !errors.Is(err, vectorstore.ErrCollectionNotFound) {
		return fmt.Errorf("delete collection %q: %w", name, err)
	}

	s.mu.Lock()
	delete(s.dims, name)
	s.mu.Unlock()
	return nil
}

// point is the Qdrant wire form of a core.Record. The ID marshals as an
// unsigned integer, which Qdrant accepts as a point ID.
type point struct {
	ID      core.ID      `json:"id"`
	Vector  []float32    `json:"vector"`
	Payload core.Payload `json:"payload"`
}

func (s *Store) Upsert(ctx context.Context, collection string, records []core.Record) error {
	if len(records) == 0 {
		return nil
	}

	dimension, err := s.dimension(ctx, collection)
	if err != nil {
		return err
	}

	points := make([]point, len(records))
	for i, record := range records {
		if len(record.Vector) != dimension {
			return fmt.Errorf("%w: record %d has dimension %d, collection %q expects %d",
				vectorstore.ErrDimensionMismatch, record.Id, len(record.Vector), collection, dimension)
		}
		points[i] = point{
			ID:      record.Id,
			Vector:  record.Vector,
			Payload: record.Payload,
		}
	}

	body := map[string]any{"points": points}
	if err := s.do(ctx, http.MethodPut, "/collections/"+collection+"/points?wait=true", body, nil); err != nil {
		return fmt.Errorf("upsert %d points into %q: %w", len(points), collection, err)
	}
	return nil
}

func (s *Store) Search(ctx context.Context, collection string, vector []float32, topK int) ([]core.Hit, error) {
	if err := core.ValidateTopK(topK); err != nil {
		return nil, err
	}

	body := map[string]any{
		"vector":       vector,
		"limit":        topK,
		"with_payload": true,
	}
	var resp struct {
		Result []struct {
			Score   float32      `json:"score"`
			Payload core.Payload `json:"payload"`
		} `json:"result"`
	}
	if err := s.do(ctx, http.MethodPost, "/collections/"+collection+"/points/search", body, &resp); err != nil {
		return nil, fmt.Errorf("search %q: %w", collection, err)
	}

	hits := make([]core.Hit, 0, len(resp.Result))
	for _, r := range resp.Result {
		hits = append(hits, core.Hit{Payload: r.Payload, Score: r.Score})
	}
	return hits, nil
}

func (s *Store) Info(ctx context.Context, collection string) (*vectorstore.CollectionInfo, error) {
	var resp collectionResponse
	if err := s.do(ctx, http.MethodGet, "/collections/"+collection, nil, &resp); err != nil {
		if errors.Is(err, vectorstore.ErrCollectionNotFound) {
			return nil, fmt.Errorf("%w: %q", vectorstore.ErrCollectionNotFound, collection)
		}
		return nil, fmt.Errorf("collection info %q: %w", collection, err)
	}
	return &vectorstore.CollectionInfo{
		Name:      collection,
		Dimension: resp.Result.Config.Params.Vectors.Size,
		Points:    resp.Result.PointsCount,
	}, nil
}

// Close releases idle connections. The remote service is unaffected.
func (s *Store) Close() error {
	s.client.CloseIdleConnections()
	return nil
}

func (s *Store) cacheDimension(name string, dimension int) {
	s.mu.Lock()
	s.dims[name] = dimension
	s.mu.Unlock()
}

// dimension returns the collection's vector size, fetching it once and
// caching it for subsequent upserts.
func (s *Store) dimension(ctx context.Context, collection string) (int, error) {
	s.mu.Lock()
	if d, ok := s.dims[collection]; ok {
		s.mu.Unlock()
		return d, nil
	}
	s.mu.Unlock()

	info, err := s.Info(ctx, collection)
	if err != nil {
		return 0, err
	}
	s.cacheDimension(collection, info.Dimension)
	return info.Dimension, nil
}

// do performs one JSON request against the Qdrant API. A nil out skips
// response decoding.
func (s *Store) do(ctx context.Context, method, path string, body, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		reader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, s.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if s.apiKey != "" {
		req.Header.Set("api-key", s.apiKey)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return classify(err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusNotFound {
		return vectorstore.ErrCollectionNotFound
	}
	if resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("%w: qdrant %s %s: %s: %s",
			core.ErrProvider, method, path, resp.Status, strings.TrimSpace(string(detail)))
	}

	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode qdrant response: %v", core.ErrProvider, err)
		}
	}
	return nil
}

// classify maps transport failures onto the shared error taxonomy.
func classify(err error) error {
	if core.IsTimeout(err) {
		return fmt.Errorf("%w: qdrant request timed out: %v", core.ErrTimeout, err)
	}
	if errors.Is(err, context.Canceled) {
		return err
	}
	return fmt.Errorf("%w: qdrant unreachable: %v", core.ErrProvider, err)
}
