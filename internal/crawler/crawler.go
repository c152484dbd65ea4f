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

// Package crawler implements the Crawler (spec.md §4.4): a breadth-first
// traversal of each project's root directory, driven by a durable work
// queue, calling the Path Filter and Metadata Extractor and feeding the
// Bulk Shipper.
package crawler

import (
	"context"
	"os"
	"path/filepath"

	"github.com/usask-rc/radiam-agent/internal/filter"
	"github.com/usask-rc/radiam-agent/internal/metadata"
	"github.com/usask-rc/radiam-agent/internal/model"
	"github.com/usask-rc/radiam-agent/internal/queue"
	"github.com/usask-rc/radiam-agent/internal/radlog"
	"github.com/usask-rc/radiam-agent/internal/shipper"
	"github.com/usask-rc/radiam-agent/internal/snapshot"
)

// QueueFactory builds (or reopens) the durable work queue for one project's
// crawl, keyed by project name. The Supervisor decides the queue's
// location under the per-user data directory (spec.md §6); the Crawler
// closes each queue when that project's crawl returns.
type QueueFactory func(project string) (*queue.Queue, error)

// Crawler drives full_run(projects) (spec.md §4.4).
type Crawler struct {
	Extractor *metadata.Extractor
	Queues    QueueFactory
}

// New builds a Crawler using extractor for metadata extraction and qf to
// obtain each project's durable queue.
func New(extractor *metadata.Extractor, qf QueueFactory) *Crawler {
	return &Crawler{Extractor: extractor, Queues: qf}
}

// FullRun crawls every project in turn, shipping documents to ship and
// returning the resulting Snapshot sets keyed by project name. Crawling
// projects sequentially matches the single-threaded-per-project scheduling
// model of spec.md §5.
func (c *Crawler) FullRun(ctx context.Context, projects []model.ProjectConfig, ship func(proj model.ProjectConfig) *shipper.Shipper) (map[string]snapshot.Set, error) {
	results := make(map[string]snapshot.Set, len(projects))
	for _, proj := range projects {
		if err := ctx.Err(); err != nil {
			return results, err
		}
		set, err := c.runProject(ctx, proj, ship(proj))
		if err != nil {
			return results, err
		}
		results[proj.Name] = set
	}
	return results, nil
}

func (c *Crawler) runProject(ctx context.Context, proj model.ProjectConfig, s *shipper.Shipper) (snapshot.Set, error) {
	q, err := c.Queues(proj.Name)
	if err != nil {
		return nil, err
	}
	defer q.Close()

	if err := q.Recover(); err != nil {
		return nil, err
	}
	if n, _ := q.Len(); n == 0 {
		if err := q.Push(proj.RootDir); err != nil {
			return nil, err
		}
	}

	visited := snapshot.Set{}

	// The root itself is never discovered as a sub-entry of anything, so
	// its own directory document is submitted once up front; re-submitting
	// on a resumed crawl is harmless (the remote treats it as an upsert).
	if doc, outcome := c.Extractor.ExtractDir(ctx, proj.RootDir, proj); outcome == metadata.OutcomeOK {
		if err := s.Submit(ctx, doc); err != nil {
			return visited, err
		}
		visited[doc.Path] = struct{}{}
	}

	for {
		if err := ctx.Err(); err != nil {
			return visited, err
		}

		dir, ok, err := q.Pop()
		if err != nil {
			return visited, err
		}
		if !ok {
			break
		}

		if err := c.visitDirectory(ctx, dir, proj, s, q, visited); err != nil {
			radlog.Warnf("crawl: enumerating %s: %v", dir, err)
		}
		if err := q.Ack(dir); err != nil {
			return visited, err
		}
	}

	if err := s.Flush(ctx); err != nil {
		return visited, err
	}
	return visited, nil
}

// visitDirectory enumerates dir in one pass: admitted sub-directories are
// enqueued and their own documents submitted; admitted files are submitted
// directly. Permission/OS errors here are logged by the caller and do not
// abort the overall crawl (spec.md §4.4 step 3).
func (c *Crawler) visitDirectory(ctx context.Context, dir string, proj model.ProjectConfig, s *shipper.Shipper, q *queue.Queue, visited snapshot.Set) error {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return err
	}

	for _, ent := range entries {
		full := filepath.Join(dir, ent.Name())
		if ent.IsDir() {
			if filter.DirExcluded(full, proj.Rules) {
				continue
			}
			if doc, outcome := c.Extractor.ExtractDir(ctx, full, proj); outcome == metadata.OutcomeOK {
				if err := s.Submit(ctx, doc); err != nil {
					return err
				}
				visited[doc.Path] = struct{}{}
			}
			if err := q.Push(full); err != nil {
				return err
			}
			continue
		}

		doc, outcome := c.Extractor.ExtractFile(ctx, full, proj)
		switch outcome {
		case metadata.OutcomeOK:
			if err := s.Submit(ctx, doc); err != nil {
				return err
			}
			visited[doc.Path] = struct{}{}
		case metadata.OutcomeSkip:
			radlog.Warnf("crawl: skipping unreadable file %s", full)
		}
	}
	return nil
}
