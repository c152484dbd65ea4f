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

// Package shipper implements the Bulk Shipper (spec.md §4.3): it
// accumulates documents under a serialized-byte budget, flushes them to the
// index service, and retries connection-class failures with an
// interruptible fixed backoff.
package shipper

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/radlog"
)

// DefaultBudget is the default serialized-payload byte budget for a single
// bulk POST, per spec.md §4.3.
const DefaultBudget = 1_000_000

// DefaultRetryInterval is the fixed backoff delay for connection-class
// failures, per spec.md §7.
const DefaultRetryInterval = 10 * time.Second

// Shipper buffers documents for one project endpoint and flushes them in
// bulk. It is not safe for concurrent Submit calls; callers are expected to
// serialize through a single worker goroutine (spec.md §5).
type Shipper struct {
	Client   indexclient.Client
	Endpoint string
	Budget   int
	// RetryInterval overrides DefaultRetryInterval; tests shrink this to
	// keep the connection-retry loop fast.
	RetryInterval time.Duration

	buf     []*model.Document
	bufSize int
}

// New builds a Shipper posting to endpoint via client, using the default
// byte budget and retry interval.
func New(client indexclient.Client, endpoint string) *Shipper {
	return &Shipper{Client: client, Endpoint: endpoint, Budget: DefaultBudget, RetryInterval: DefaultRetryInterval}
}

func (s *Shipper) budget() int {
	if s.Budget <= 0 {
		return DefaultBudget
	}
	return s.Budget
}

func (s *Shipper) retryInterval() time.Duration {
	if s.RetryInterval <= 0 {
		return DefaultRetryInterval
	}
	return s.RetryInterval
}

func serializedSize(d *model.Document) int {
	data, err := json.Marshal(d)
	if err != nil {
		return 0
	}
	return len(data)
}

// Submit adds d to the buffer, flushing first if it would not fit under the
// budget (spec.md §4.3). A flush error is returned to the caller without
// clearing the buffer; d is not appended in that case.
func (s *Shipper) Submit(ctx context.Context, d *model.Document) error {
	size := serializedSize(d)
	if len(s.buf) > 0 && s.bufSize+size > s.budget() {
		if err := s.Flush(ctx); err != nil {
			return err
		}
	}
	s.buf = append(s.buf, d)
	s.bufSize += size
	return nil
}

// Flush POSTs the current buffer as a single bulk request and clears it on
// success. Connection-class failures retry indefinitely on a fixed
// interval until success or ctx cancellation; a non-retriable batch error
// is logged and returned without clearing the buffer.
func (s *Shipper) Flush(ctx context.Context) error {
	if len(s.buf) == 0 {
		return nil
	}

	var ok bool
	op := func() error {
		var err error
		_, ok, err = s.Client.CreateDocumentBulk(ctx, s.Endpoint, s.buf)
		if err == nil {
			return nil
		}
		var connErr *indexclient.ConnectionError
		if errors.As(err, &connErr) {
			radlog.Warnf("bulk flush connection error, retrying: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}

	bo := backoff.WithContext(backoff.NewConstantBackOff(s.retryInterval()), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			radlog.Errorf("bulk flush failed for %d documents: %v", len(s.buf), permanent.Err)
			return permanent.Err
		}
		radlog.Warnf("bulk flush aborted by cancellation: %v", err)
		return err
	}

	if !ok {
		radlog.Errorf("bulk flush rejected by service for %d documents", len(s.buf))
		return errBatchRejected
	}

	s.buf = s.buf[:0]
	s.bufSize = 0
	return nil
}

var errBatchRejected = errors.New("shipper: bulk flush rejected by index service")

// EmitSingle ships one document create/update, or a delete for path if doc
// is nil, used by the Watcher's per-event paths (spec.md §4.3). It looks up
// the existing document id(s) at path for deletes, since the local inode is
// already gone by the time a "deleted" event is handled.
func (s *Shipper) EmitSingle(ctx context.Context, path string, doc *model.Document) error {
	if doc != nil {
		return s.retryConnection(ctx, func() error {
			return s.Client.CreateDocument(ctx, s.Endpoint, doc)
		})
	}

	result, err := s.Client.SearchByPath(ctx, s.Endpoint, path)
	if err != nil {
		radlog.Warnf("search by path failed for delete of %s: %v", path, err)
		return err
	}
	for _, r := range result.Results {
		id, _ := r["id"].(string)
		if id == "" {
			continue
		}
		if err := s.retryConnection(ctx, func() error {
			return s.Client.DeleteDocument(ctx, s.Endpoint, id)
		}); err != nil {
			return err
		}
	}
	return nil
}

func (s *Shipper) retryConnection(ctx context.Context, op func() error) error {
	wrapped := func() error {
		err := op()
		if err == nil {
			return nil
		}
		var connErr *indexclient.ConnectionError
		if errors.As(err, &connErr) {
			radlog.Warnf("connection error, retrying: %v", err)
			return err
		}
		return backoff.Permanent(err)
	}
	bo := backoff.WithContext(backoff.NewConstantBackOff(s.retryInterval()), ctx)
	if err := backoff.Retry(wrapped, bo); err != nil {
		var permanent *backoff.PermanentError
		if errors.As(err, &permanent) {
			return permanent.Err
		}
		return err
	}
	return nil
}
