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

// The radiam-agent command wraps the crawl-and-watch engine to create a
// standalone CLI that indexes a filesystem against the Radiam API and
// keeps the index current as files change.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/usask-rc/radiam-agent/internal/appdir"
	"github.com/usask-rc/radiam-agent/internal/config"
	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/radlog"
	"github.com/usask-rc/radiam-agent/internal/supervisor"
)

func main() {
	flags := parseFlags()
	os.Exit(run(flags))
}

// flags holds every CLI input, mirroring the original agent's flag set.
type flags struct {
	rootdir     string
	mtime       int
	minsize     int64
	hostname    string
	username    string
	password    string
	projectname string
	quitafter   bool
	logout      bool
	loglevel    string
}

func parseFlags() *flags {
	rootdir := flag.String("rootdir", "", "Root directory to index; overrides the configured project's rootdir")
	mtime := flag.Int("mtime", 0, "Only index files last modified at least this many days ago; 0 means no limit")
	minsize := flag.Int64("minsize", 0, "Only index files at least this many bytes; 0 means no limit")
	hostname := flag.String("hostname", "", "Location name to register this agent under; overrides the configured one")
	username := flag.String("username", "", "Username used to obtain a new login token")
	password := flag.String("password", "", "Password used to obtain a new login token")
	projectname := flag.String("projectname", "", "Project name; overrides the configured project's name")
	quitafter := flag.Bool("quitafter", false, "Perform a single reconcile-and-crawl pass then exit instead of watching")
	logout := flag.Bool("logout", false, "Delete the stored login token and exit")
	loglevel := flag.String("loglevel", "", "Log level: debug, info, warning, or error")
	flag.Parse()

	return &flags{
		rootdir:     *rootdir,
		mtime:       *mtime,
		minsize:     *minsize,
		hostname:    *hostname,
		username:    *username,
		password:    *password,
		projectname: *projectname,
		quitafter:   *quitafter,
		logout:      *logout,
		loglevel:    *loglevel,
	}
}

func run(f *flags) int {
	dir, err := appdir.Dir()
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiam-agent: could not resolve data directory: %v\n", err)
		return 1
	}

	if f.logout {
		return logout(dir)
	}

	logFile, err := os.OpenFile(appdir.LogFile(dir), os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiam-agent: could not open log file: %v\n", err)
		return 1
	}
	defer logFile.Close()

	overrides := config.CLIOverrides{
		RootDir:     f.rootdir,
		ProjectName: f.projectname,
		Hostname:    f.hostname,
		MTimeDays:   f.mtime,
		MinSize:     f.minsize,
		LogLevel:    f.loglevel,
	}

	cfg, err := config.Load(appdir.ConfigFile(dir), overrides)
	if err != nil {
		fmt.Fprintf(os.Stderr, "radiam-agent: %v\n", err)
		return 1
	}

	level := radlog.ParseLevel(cfg.LogLevel)
	radlog.SetLogger(radlog.NewStdLogger(level, logFile))

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	client := indexclient.NewHTTPClient(cfg.Host, appdir.TokenFile(dir))
	sup := supervisor.New(cfg, supervisor.Options{
		DataDir: dir,
		Client:  client,
		Credentials: supervisor.Credentials{
			Username: f.username,
			Password: f.password,
		},
		QuitAfter: f.quitafter,
	})

	if err := sup.Run(ctx); err != nil {
		radlog.Errorf("radiam-agent: %v", err)
		fmt.Fprintf(os.Stderr, "radiam-agent: %v\n", err)
		return 1
	}
	return 0
}

// logout deletes the persisted auth token so the next run requires a
// fresh username/password login.
func logout(dir string) int {
	path := appdir.TokenFile(dir)
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			fmt.Println("radiam-agent: no stored login token to remove")
			return 0
		}
		fmt.Fprintf(os.Stderr, "radiam-agent: could not remove login token: %v\n", err)
		return 1
	}
	fmt.Println("radiam-agent: logged out, stored login token removed")
	return 0
}
