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

// Package indexclient defines the contract the core engine uses to talk to
// the remote index service. Per spec.md §1/§6 this surface is an external
// collaborator: the core only depends on the Client interface below: a
// concrete net/http-based implementation lives in httpclient.go as ambient
// plumbing, not core logic.
package indexclient

import (
	"context"

	"github.com/usask-rc/radiam-agent/internal/model"
)

// SearchResult is the decoded shape of a search response.
type SearchResult struct {
	Count   int                      `json:"count"`
	Results []map[string]any `json:"results"`
}

// BulkItemResult is one entry of a bulk POST's per-document response array.
type BulkItemResult struct {
	DocName string `json:"docname"`
	Result  bool   `json:"result"`
}

// Client is the capability surface the core engine calls into. Every
// operation is named directly after the capability in spec.md §6.
type Client interface {
	// SearchByPath finds documents indexed at an exact path under endpoint.
	SearchByPath(ctx context.Context, endpoint, path string) (*SearchResult, error)
	// SearchByField finds entities of kind by field (default "name").
	SearchByField(ctx context.Context, kind, value, field string) (*SearchResult, error)

	CreateDocument(ctx context.Context, endpoint string, doc *model.Document) error
	// CreateDocumentBulk POSTs a batch and returns the raw decoded response
	// body plus whether the whole request succeeded at the transport/HTTP
	// level (per-item failures are reported inside the body).
	CreateDocumentBulk(ctx context.Context, endpoint string, docs []*model.Document) (body []byte, ok bool, err error)
	DeleteDocument(ctx context.Context, endpoint, id string) error

	CreateLocation(ctx context.Context, payload map[string]any) (map[string]any, error)
	CreateUserAgent(ctx context.Context, payload map[string]any) (map[string]any, error)
	GetLoggedInUser(ctx context.Context) (map[string]any, error)

	Login(ctx context.Context, username, password string) error
	LoadAuthFromFile() error
	GetStatusCode(ctx context.Context, url string) (int, error)
}

// ConnectionError wraps a transport-level failure that the Shipper
// retries, as opposed to an application-level error returned by the
// service.
type ConnectionError struct {
	Err error
}

func (e *ConnectionError) Error() string { return "connection error: " + e.Err.Error() }
func (e *ConnectionError) Unwrap() error { return e.Err }

// NewConnectionError wraps err as a ConnectionError.
func NewConnectionError(err error) error {
	if err == nil {
		return nil
	}
	return &ConnectionError{Err: err}
}
