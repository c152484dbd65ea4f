// Copyright 2024 The Radiam Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package indexclient

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/tidwall/gjson"
	"golang.org/x/oauth2"

	"github.com/usask-rc/radiam-agent/internal/model"
)

// HTTPClient is the net/http-based Client implementation used in
// production. It is ambient plumbing around the core engine, not the core
// itself: the core only ever sees the Client interface.
type HTTPClient struct {
	BaseURL    string
	TokenFile  string
	HTTP       *http.Client
	token      *oauth2.Token
}

// NewHTTPClient builds an HTTPClient rooted at baseURL, persisting its auth
// token to tokenFile.
func NewHTTPClient(baseURL, tokenFile string) *HTTPClient {
	return &HTTPClient{
		BaseURL:   strings.TrimRight(baseURL, "/"),
		TokenFile: tokenFile,
		HTTP:      &http.Client{Timeout: 30 * time.Second},
	}
}

func (c *HTTPClient) authHeader(req *http.Request) {
	if c.token != nil && c.token.AccessToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.token.AccessToken)
	}
}

func (c *HTTPClient) do(ctx context.Context, method, path string, body []byte) (*http.Response, error) {
	u := path
	if !strings.HasPrefix(path, "http") {
		u = c.BaseURL + path
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u, reader)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	c.authHeader(req)

	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, NewConnectionError(err)
	}
	return resp, nil
}

// SearchByPath finds documents indexed at an exact path under endpoint.
func (c *HTTPClient) SearchByPath(ctx context.Context, endpoint, path string) (*SearchResult, error) {
	q := url.Values{"path": {path}}
	resp, err := c.do(ctx, http.MethodGet, endpoint+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSearchResult(resp.Body)
}

// SearchByField finds entities of kind by field (default "name").
func (c *HTTPClient) SearchByField(ctx context.Context, kind, value, field string) (*SearchResult, error) {
	if field == "" {
		field = "name"
	}
	q := url.Values{field: {value}}
	resp, err := c.do(ctx, http.MethodGet, "/api/"+kind+"/?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	return decodeSearchResult(resp.Body)
}

func decodeSearchResult(r io.Reader) (*SearchResult, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, err
	}
	var sr SearchResult
	if err := json.Unmarshal(data, &sr); err != nil {
		return nil, fmt.Errorf("decode search result: %w", err)
	}
	return &sr, nil
}

// CreateDocument POSTs a single document.
func (c *HTTPClient) CreateDocument(ctx context.Context, endpoint string, doc *model.Document) error {
	body, err := json.Marshal(doc)
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, endpoint, body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return NewConnectionError(fmt.Errorf("server error %d", resp.StatusCode))
	}
	return nil
}

// CreateDocumentBulk POSTs a batch of documents to endpoint + "bulk/".
func (c *HTTPClient) CreateDocumentBulk(ctx context.Context, endpoint string, docs []*model.Document) ([]byte, bool, error) {
	body, err := json.Marshal(docs)
	if err != nil {
		return nil, false, err
	}
	resp, err := c.do(ctx, http.MethodPost, strings.TrimRight(endpoint, "/")+"/bulk/", body)
	if err != nil {
		return nil, false, err
	}
	defer resp.Body.Close()
	respBody, _ := io.ReadAll(resp.Body)
	if resp.StatusCode >= 500 {
		return respBody, false, nil
	}
	return respBody, resp.StatusCode >= 200 && resp.StatusCode < 300, nil
}

// DeleteDocument issues a DELETE for id.
func (c *HTTPClient) DeleteDocument(ctx context.Context, endpoint, id string) error {
	resp, err := c.do(ctx, http.MethodDelete, strings.TrimRight(endpoint, "/")+"/"+id+"/", nil)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	if resp.StatusCode >= 500 {
		return NewConnectionError(fmt.Errorf("server error %d", resp.StatusCode))
	}
	return nil
}

// CreateLocation POSTs a new location entity.
func (c *HTTPClient) CreateLocation(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.postJSON(ctx, "/api/locations/", payload)
}

// CreateUserAgent POSTs a new agent entity.
func (c *HTTPClient) CreateUserAgent(ctx context.Context, payload map[string]any) (map[string]any, error) {
	return c.postJSON(ctx, "/api/useragents/", payload)
}

// GetLoggedInUser returns the user associated with the current token.
func (c *HTTPClient) GetLoggedInUser(ctx context.Context) (map[string]any, error) {
	resp, err := c.do(ctx, http.MethodGet, "/api/users/me/", nil)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (c *HTTPClient) postJSON(ctx context.Context, path string, payload map[string]any) (map[string]any, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	resp, err := c.do(ctx, http.MethodPost, path, body)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}
	var out map[string]any
	if err := json.Unmarshal(data, &out); err != nil {
		return nil, fmt.Errorf("decode response: %w", err)
	}
	return out, nil
}

// Login exchanges a username/password for a bearer token and persists it.
func (c *HTTPClient) Login(ctx context.Context, username, password string) error {
	body, err := json.Marshal(map[string]string{"username": username, "password": password})
	if err != nil {
		return err
	}
	resp, err := c.do(ctx, http.MethodPost, "/api/login/", body)
	if err != nil {
		return err
	}
	defer resp.Body.Close()
	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return err
	}
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("login failed: status %d", resp.StatusCode)
	}
	tok := gjson.GetBytes(data, "token").String()
	if tok == "" {
		return errors.New("login response had no token field")
	}
	c.token = &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
	return c.persistToken()
}

func (c *HTTPClient) persistToken() error {
	if c.TokenFile == "" {
		return nil
	}
	return os.WriteFile(c.TokenFile, []byte(c.token.AccessToken), 0o600)
}

// LoadAuthFromFile reads a previously persisted token.
func (c *HTTPClient) LoadAuthFromFile() error {
	data, err := os.ReadFile(c.TokenFile)
	if err != nil {
		return err
	}
	tok := strings.TrimSpace(string(data))
	if tok == "" {
		return errors.New("token file is empty")
	}
	c.token = &oauth2.Token{AccessToken: tok, TokenType: "Bearer"}
	return nil
}

// GetStatusCode performs a bare GET and returns the HTTP status code,
// used by the Supervisor's API reachability pre-check.
func (c *HTTPClient) GetStatusCode(ctx context.Context, rawURL string) (int, error) {
	resp, err := c.do(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return 0, err
	}
	defer resp.Body.Close()
	return resp.StatusCode, nil
}
