// Package endee is a REST client for the Endee vector database. It is the
// single place where Endee's wire shapes are interpreted; everything above
// it sees only the normalized store types.
package endee

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/kbforge/ragpipe/internal/model"
	appErr "github.com/kbforge/ragpipe/internal/pkg/errors"
	"github.com/kbforge/ragpipe/internal/store"
)

const defaultTimeout = 15 * time.Second

type Config struct {
	BaseURL   string
	AuthToken string
	Timeout   time.Duration
}

type Client struct {
	baseURL string
	token   string
	client  *http.Client
}

func NewClient(cfg Config) *Client {
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = defaultTimeout
	}
	return &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		token:   cfg.AuthToken,
		client:  &http.Client{Timeout: timeout},
	}
}

type createIndexRequest struct {
	Name      string `json:"name"`
	Dimension int    `json:"dim"`
	SpaceType string `json:"space_type"`
	Precision string `json:"precision"`
	M         int    `json:"M"`
	EfCon     int    `json:"ef_con"`
}

type indexInfo struct {
	Name      string `json:"name"`
	Dimension int    `json:"dim"`
	SpaceType string `json:"space_type"`
}

func (c *Client) CreateIndex(ctx context.Context, desc model.IndexDescriptor) error {
	body := createIndexRequest{
		Name:      desc.Name,
		Dimension: desc.Dimension,
		SpaceType: desc.SpaceType,
		Precision: string(desc.Precision),
		M:         desc.M,
		EfCon:     desc.EfConstruction,
	}
	return c.do(ctx, http.MethodPost, "/index", body, nil)
}

func (c *Client) GetIndex(ctx context.Context, name string) (store.Index, error) {
	var info indexInfo
	if err := c.do(ctx, http.MethodGet, "/index/"+name, nil, &info); err != nil {
		return nil, err
	}
	if info.Name == "" {
		info.Name = name
	}
	return &index{client: c, name: info.Name, dimension: info.Dimension}, nil
}

func (c *Client) ListIndexes(ctx context.Context) ([]string, error) {
	var raw json.RawMessage
	if err := c.do(ctx, http.MethodGet, "/index/list", nil, &raw); err != nil {
		return nil, err
	}
	names, err := normalizeIndexNames(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreUnavailable, err)
	}
	return names, nil
}

func (c *Client) DeleteIndex(ctx context.Context, name string) error {
	return c.do(ctx, http.MethodDelete, "/index/"+name, nil, nil)
}

// normalizeIndexNames accepts every list shape Endee has been seen to
// return: a bare list of names, a list of index objects, or either wrapped
// in an "indexes" envelope.
func normalizeIndexNames(raw json.RawMessage) ([]string, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wrapped struct {
		Indexes json.RawMessage `json:"indexes"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Indexes) > 0 {
		raw = wrapped.Indexes
	}
	var names []string
	if err := json.Unmarshal(raw, &names); err == nil {
		return names, nil
	}
	var objects []struct {
		Name string `json:"name"`
	}
	if err := json.Unmarshal(raw, &objects); err == nil {
		names = make([]string, 0, len(objects))
		for _, obj := range objects {
			if obj.Name != "" {
				names = append(names, obj.Name)
			}
		}
		return names, nil
	}
	return nil, fmt.Errorf("unrecognized index list shape: %s", truncate(string(raw), 200))
}

type index struct {
	client    *Client
	name      string
	dimension int
}

func (i *index) Name() string {
	return i.name
}

func (i *index) Dimension() int {
	return i.dimension
}

type upsertItem struct {
	ID     string         `json:"id"`
	Vector []float32      `json:"vector"`
	Meta   map[string]any `json:"meta"`
}

func (i *index) Upsert(ctx context.Context, items []model.EmbeddedChunk) error {
	payload := make([]upsertItem, 0, len(items))
	for _, item := range items {
		payload = append(payload, upsertItem{
			ID:     item.ID,
			Vector: item.Vector,
			Meta: map[string]any{
				"text":        item.Text,
				"source":      item.Source,
				"chunk_index": item.Index,
			},
		})
	}
	return i.client.do(ctx, http.MethodPost, "/index/"+i.name+"/vector/insert", payload, nil)
}

type queryRequest struct {
	Vector []float32         `json:"vector"`
	TopK   int               `json:"top_k"`
	Ef     int               `json:"ef,omitempty"`
	Filter map[string]string `json:"filter,omitempty"`
}

type queryResult struct {
	ID         string  `json:"id"`
	Similarity float64 `json:"similarity"`
	Meta       struct {
		Text       string `json:"text"`
		Source     string `json:"source"`
		ChunkIndex int    `json:"chunk_index"`
	} `json:"meta"`
}

func (i *index) Query(ctx context.Context, vector []float32, topK, ef int, filter map[string]string) ([]model.RetrievedChunk, error) {
	var raw json.RawMessage
	req := queryRequest{Vector: vector, TopK: topK, Ef: ef, Filter: filter}
	if err := i.client.do(ctx, http.MethodPost, "/index/"+i.name+"/search", req, &raw); err != nil {
		return nil, err
	}
	results, err := normalizeQueryResults(raw)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", appErr.ErrStoreUnavailable, err)
	}
	out := make([]model.RetrievedChunk, 0, len(results))
	for _, r := range results {
		out = append(out, model.RetrievedChunk{
			ID:     r.ID,
			Text:   r.Meta.Text,
			Source: r.Meta.Source,
			Index:  r.Meta.ChunkIndex,
			Score:  r.Similarity,
		})
	}
	return out, nil
}

func normalizeQueryResults(raw json.RawMessage) ([]queryResult, error) {
	if len(raw) == 0 {
		return nil, nil
	}
	var wrapped struct {
		Results json.RawMessage `json:"results"`
	}
	if err := json.Unmarshal(raw, &wrapped); err == nil && len(wrapped.Results) > 0 {
		raw = wrapped.Results
	}
	var results []queryResult
	if err := json.Unmarshal(raw, &results); err != nil {
		return nil, fmt.Errorf("unrecognized search result shape: %s", truncate(string(raw), 200))
	}
	return results, nil
}

func (c *Client) do(ctx context.Context, method, path string, body any, out any) error {
	var reader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return err
		}
		reader = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return err
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.token != "" {
		req.Header.Set("Authorization", "Bearer "+c.token)
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %s %s: %v", appErr.ErrStoreUnavailable, method, path, err)
	}
	defer resp.Body.Close()
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		payload, _ := io.ReadAll(resp.Body)
		return statusToError(method, path, resp.StatusCode, string(payload))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("%w: decode %s %s response: %v", appErr.ErrStoreUnavailable, method, path, err)
		}
	}
	return nil
}

func statusToError(method, path string, status int, body string) error {
	detail := truncate(strings.TrimSpace(body), 200)
	switch {
	case status == http.StatusNotFound:
		return fmt.Errorf("%w: %s %s: %s", appErr.ErrNotFound, method, path, detail)
	case status == http.StatusConflict || strings.Contains(strings.ToLower(body), "already exists"):
		return fmt.Errorf("%w: %s %s: %s", appErr.ErrConflict, method, path, detail)
	default:
		return fmt.Errorf("%w: %s %s: status %d: %s", appErr.ErrStoreUnavailable, method, path, status, detail)
	}
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
