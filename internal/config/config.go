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

// Package config loads and persists the agent's INI-like configuration
// file (spec.md §6), mirroring the original Python ConfigObj loader: an
// `[api]` section, an `[agent]` section, a `[location]` section, a
// `[projects]` section naming per-project sections by key.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/google/uuid"
	"gopkg.in/ini.v1"

	"github.com/usask-rc/radiam-agent/internal/model"
)

// defaultExcludedDirs and defaultExcludedFiles seed a freshly generated
// config, matching the original agent's scaffold.
var (
	defaultExcludedDirs  = []string{".*", ".snapshot", ".Snapshot", ".zfs"}
	defaultExcludedFiles = []string{".*", "Thumbs.db", ".DS_Store", "._.DS_Store", ".localized", "desktop.ini", "*.pyc", "*.swx", "*.swp", "*~", "~$*", "NULLEXT"}
)

// CLIOverrides carries the subset of CLI flags that can override config
// file values, per spec.md §6.
type CLIOverrides struct {
	RootDir     string
	ProjectName string
	Hostname    string
	MTimeDays   int
	MinSize     int64
	LogLevel    string
}

// Config is the parsed agent configuration.
type Config struct {
	Host         string
	AgentID      string
	MTimeDays    int
	MinSizeBytes int64
	LogLevel     string

	Location model.Location
	Projects []model.ProjectConfig

	path string
	raw  *ini.File
}

// Load reads path, generating and backing up a default scaffold if the
// file is missing or missing required fields, then applies overrides from
// the CLI.
func Load(path string, overrides CLIOverrides) (*Config, error) {
	if _, err := os.Stat(path); err != nil {
		if err := WriteDefault(path, overrides); err != nil {
			return nil, fmt.Errorf("config: generating default scaffold: %w", err)
		}
	}

	cfg, err := parse(path)
	if err != nil {
		if backupErr := regenerate(path, overrides); backupErr != nil {
			return nil, fmt.Errorf("config: regenerating scaffold: %w", backupErr)
		}
		cfg, err = parse(path)
		if err != nil {
			return nil, fmt.Errorf("config: parsing regenerated scaffold: %w", err)
		}
	}

	applyOverrides(cfg, overrides)

	if len(cfg.Projects) == 0 {
		return nil, fmt.Errorf("config: no projects configured")
	}
	for _, p := range cfg.Projects {
		if p.RootDir == "" || p.Name == "" {
			if err := regenerate(path, overrides); err != nil {
				return nil, fmt.Errorf("config: regenerating scaffold: %w", err)
			}
		}
		if p.RootDir == "" {
			return nil, fmt.Errorf("config: project %s has no rootdir", p.Name)
		}
		if p.Name == "" {
			return nil, fmt.Errorf("config: project section is missing a name")
		}
	}
	return cfg, nil
}

func parse(path string) (*Config, error) {
	raw, err := ini.Load(path)
	if err != nil {
		return nil, err
	}

	api := raw.Section("api")
	host := api.Key("host").String()
	if port := api.Key("port").String(); port != "" {
		host = host + ":" + port
	}
	if host == "" {
		return nil, fmt.Errorf("config: [api] host is required")
	}

	agent := raw.Section("agent")
	mtime, _ := strconv.Atoi(agent.Key("mtime").MustString("0"))
	minsize, _ := strconv.ParseInt(agent.Key("minsize").MustString("0"), 10, 64)

	loc := raw.Section("location")
	location := model.Location{Name: loc.Key("name").String(), ID: loc.Key("id").String()}
	if location.Name == "" {
		hostname, _ := os.Hostname()
		location.Name = hostname
	}

	projSection := raw.Section("projects")
	list := splitCSV(projSection.Key("project_list").String())
	if len(list) == 0 {
		return nil, fmt.Errorf("config: [projects] project_list is empty")
	}

	projects := make([]model.ProjectConfig, 0, len(list))
	for _, key := range list {
		sec := raw.Section(key)
		rich := strings.EqualFold(sec.Key("rich_metadata").String(), "enabled")
		projects = append(projects, model.ProjectConfig{
			Name:     sec.Key("name").String(),
			RootDir:  sec.Key("rootdir").String(),
			ID:       sec.Key("id").String(),
			Endpoint: sec.Key("endpoint").String(),
			Rules: model.PathRules{
				IncludedFiles: splitCSV(sec.Key("included_files").String()),
				ExcludedFiles: splitCSV(sec.Key("excluded_files").String()),
				IncludedDirs:  splitCSV(sec.Key("included_dirs").String()),
				ExcludedDirs:  splitCSV(sec.Key("excluded_dirs").String()),
			},
			TikaHost:     sec.Key("tika_host").String(),
			RichMetadata: rich,
			MinSizeBytes: minsize,
			MTimeDays:    mtime,
		})
	}

	return &Config{
		Host:         host,
		AgentID:      agent.Key("id").String(),
		MTimeDays:    mtime,
		MinSizeBytes: minsize,
		LogLevel:     agent.Key("loglevel").String(),
		Location:     location,
		Projects:     projects,
		path:         path,
		raw:          raw,
	}, nil
}

func applyOverrides(cfg *Config, o CLIOverrides) {
	if len(cfg.Projects) == 0 {
		return
	}
	if o.ProjectName != "" {
		cfg.Projects[0].Name = o.ProjectName
	}
	if o.RootDir != "" {
		cfg.Projects[0].RootDir = o.RootDir
	}
	if o.Hostname != "" {
		cfg.Location.Name = o.Hostname
	}
	if o.MTimeDays != 0 {
		cfg.MTimeDays = o.MTimeDays
		for i := range cfg.Projects {
			cfg.Projects[i].MTimeDays = o.MTimeDays
		}
	}
	if o.MinSize != 0 {
		cfg.MinSizeBytes = o.MinSize
		for i := range cfg.Projects {
			cfg.Projects[i].MinSizeBytes = o.MinSize
		}
	}
	if o.LogLevel != "" {
		cfg.LogLevel = o.LogLevel
	}
}

// Persist writes the Registrar-resolved ids and endpoint back into the
// underlying INI file in place.
func (c *Config) Persist() error {
	if c.raw == nil {
		return fmt.Errorf("config: no backing file to persist to")
	}
	c.raw.Section("agent").Key("id").SetValue(c.AgentID)
	c.raw.Section("location").Key("id").SetValue(c.Location.ID)
	projSection := c.raw.Section("projects")
	list := splitCSV(projSection.Key("project_list").String())
	for i, key := range list {
		if i >= len(c.Projects) {
			break
		}
		sec := c.raw.Section(key)
		sec.Key("id").SetValue(c.Projects[i].ID)
		sec.Key("endpoint").SetValue(c.Projects[i].Endpoint)
	}
	return c.raw.SaveTo(c.path)
}

func regenerate(path string, overrides CLIOverrides) error {
	backup := path + ".old"
	if _, err := os.Stat(backup); err == nil {
		if err := os.Remove(backup); err != nil {
			return err
		}
	}
	if _, err := os.Stat(path); err == nil {
		if err := os.Rename(path, backup); err != nil {
			return err
		}
	}
	return WriteDefault(path, overrides)
}

// WriteDefault writes a default configuration scaffold to path, matching
// the original agent's generated template, seeded from any CLI overrides
// given up front (rootdir/hostname/projectname).
func WriteDefault(path string, overrides CLIOverrides) error {
	var b strings.Builder
	b.WriteString("# Radiam agent configuration file\n")
	b.WriteString("# All lines without a starting hash mark are required and must be configured.\n")
	b.WriteString("# Remove the starting hash mark from any optional line that you fill in.\n\n")

	b.WriteString("[api]\n")
	b.WriteString("# Host will be the full URL to the Radiam API eg: https://dev.radiam.ca\n")
	fmt.Fprintf(&b, "host = %s\n\n", overrides.Hostname)
	b.WriteString("# Port number does not usually need to be changed\n#port = 8100\n\n")

	b.WriteString("[agent]\n")
	b.WriteString("# This ID is randomly generated and does not need to be changed.\n")
	fmt.Fprintf(&b, "id = %s\n", uuid.NewString())
	b.WriteString("# Minimum days ago for modified time (default: 0)\n#mtime = 0\n")
	b.WriteString("# Minimum file size in Bytes for indexing (default: 0 Bytes)\n#minsize = 0\n\n")

	b.WriteString("[location]\n")
	b.WriteString("# A nickname for the computer on which this is running.\n#name =\n\n")

	b.WriteString("[projects]\n")
	b.WriteString("# project_list is a comma separated list of labels eg: project1, project2, project3\n")
	b.WriteString("project_list = project1\n\n")

	b.WriteString("[project1]\n")
	b.WriteString("# rootdir is the top level directory for this project's data files.\n")
	fmt.Fprintf(&b, "rootdir = %s\n", overrides.RootDir)
	b.WriteString("# Project name must match exactly with a project that you have permission to.\n")
	fmt.Fprintf(&b, "name = %s\n", overrides.ProjectName)
	b.WriteString("# Comma separated lists of directories to include or exclude for this project.\n")
	b.WriteString("included_dirs =\n")
	fmt.Fprintf(&b, "excluded_dirs = %s\n", strings.Join(defaultExcludedDirs, ","))
	b.WriteString("# Comma separated lists of files to include or exclude for this project.\n")
	b.WriteString("included_files =\n")
	fmt.Fprintf(&b, "excluded_files = %s\n", strings.Join(defaultExcludedFiles, ","))
	b.WriteString("# URL to a Tika instance for optional metadata parsing in this project.\n#tika_host =\n")
	b.WriteString("# Enable local rich content-derived metadata extraction for this project.\n#rich_metadata = disabled\n")

	return os.WriteFile(path, []byte(b.String()), 0o644)
}

func splitCSV(s string) []string {
	if s == "" {
		return nil
	}
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
