// Package pathstore is a client for the pathstore key/value HTTP API, where
// nodes live under slash-separated keys and can be listed by prefix.
package pathstore

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
	"time"
)

type Client struct {
	baseURL    string
	apiKey     string
	httpClient *http.Client
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL:    baseURL,
		apiKey:     apiKey,
		httpClient: &http.Client{Timeout: 30 * time.Second},
	}
}

// StatusError is a response whose status the caller did not accept.
type StatusError struct {
	Op   string
	Key  string
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("%s %s: status %d: %s", e.Op, e.Key, e.Code, e.Body)
}

// Temporary reports whether repeating the request may succeed.
func (e *StatusError) Temporary() bool {
	return e.Code == http.StatusTooManyRequests || e.Code >= 500
}

// IsTemporary reports whether err is a transport failure or a temporary
// status.
func IsTemporary(err error) bool {
	var se *StatusError
	if errors.As(err, &se) {
		return se.Temporary()
	}
	var ue *url.Error
	return errors.As(err, &ue)
}

type NodeRequest struct {
	Value     any    `json:"value"`
	MergeMode string `json:"merge_mode,omitempty"`
	Source    string `json:"source,omitempty"`
}

// Node is a stored value and its full key.
type Node struct {
	Key   string `json:"key_path"`
	Value any    `json:"value"`
}

func (c *Client) PutNode(ctx context.Context, key string, req NodeRequest) error {
	body, err := json.Marshal(req)
	if err != nil {
		return fmt.Errorf("marshal node: %w", err)
	}
	_, err = c.send(ctx, "put node", http.MethodPut, key, "/kv/"+key, body, nil, http.StatusOK, http.StatusCreated)
	return err
}

// GetNode returns nil, nil when key is absent.
func (c *Client) GetNode(ctx context.Context, key string) (*Node, error) {
	var node Node
	code, err := c.send(ctx, "get node", http.MethodGet, key, "/kv/"+key, nil, &node, http.StatusOK, http.StatusNotFound)
	if err != nil || code == http.StatusNotFound {
		return nil, err
	}
	return &node, nil
}

// DeleteNode removes key, and everything below it when recursive is set.
// Deleting an absent key succeeds.
func (c *Client) DeleteNode(ctx context.Context, key string, recursive bool) error {
	path := "/kv/" + key
	if recursive {
		path += "?children=true"
	}
	_, err := c.send(ctx, "delete node", http.MethodDelete, key, path, nil, nil,
		http.StatusOK, http.StatusNoContent, http.StatusNotFound)
	return err
}

// ListChildren returns every node under key. A limit of 0 means no limit.
func (c *Client) ListChildren(ctx context.Context, key string, limit int) ([]Node, error) {
	path := "/kv/" + key + "/*"
	if limit > 0 {
		path += "?limit=" + strconv.Itoa(limit)
	}
	var result struct {
		Nodes []Node `json:"nodes"`
	}
	if _, err := c.send(ctx, "list children", http.MethodGet, key, path, nil, &result, http.StatusOK); err != nil {
		return nil, err
	}
	return result.Nodes, nil
}

// Close releases idle connections.
func (c *Client) Close() {
	c.httpClient.CloseIdleConnections()
}

// send performs one request. A status outside accept becomes a
// *StatusError; out is decoded only from a 200 response.
func (c *Client) send(ctx context.Context, op, method, key, path string, body []byte, out any, accept ...int) (int, error) {
	var rd io.Reader
	if body != nil {
		rd = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("%s: create request: %w", op, err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	defer resp.Body.Close()

	ok := false
	for _, code := range accept {
		if resp.StatusCode == code {
			ok = true
			break
		}
	}
	if !ok {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return resp.StatusCode, &StatusError{Op: op, Key: key, Code: resp.StatusCode, Body: string(msg)}
	}
	if out != nil && resp.StatusCode == http.StatusOK {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("%s: decode: %w", op, err)
		}
	}
	return resp.StatusCode, nil
}
