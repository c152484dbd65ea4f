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

// Package appdir resolves the agent's per-user data directory and the
// well-known file names persisted underneath it (spec.md §6.5).
package appdir

import (
	"os"
	"path/filepath"
)

const appName = "radiam-agent"

// Dir returns the per-user data directory for the agent, creating it if
// absent.
func Dir() (string, error) {
	base, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	dir := filepath.Join(base, appName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	return dir, nil
}

// ConfigFile is the path to the INI configuration file.
func ConfigFile(dir string) string { return filepath.Join(dir, "radiam.txt") }

// TokenFile is the path to the persisted auth token.
func TokenFile(dir string) string { return filepath.Join(dir, "token") }

// LogFile is the path to the agent's log file.
func LogFile(dir string) string { return filepath.Join(dir, "radiam_log.txt") }

// QueueDir is the directory holding the durable per-project crawl queues.
func QueueDir(dir string) string { return filepath.Join(dir, "radiam_queue") }

// QueueFile is the bbolt file backing one project's crawl queue.
func QueueFile(dir, project string) string {
	return filepath.Join(QueueDir(dir), project+".db")
}

// SnapshotDir is the directory holding the persisted "last_crawl_*.data"
// snapshot files.
func SnapshotDir(dir string) string { return dir }
