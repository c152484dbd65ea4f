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

package indexclient_test

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/usask-rc/radiam-agent/internal/indexclient"
	"github.com/usask-rc/radiam-agent/internal/model"
)

func TestLoginPersistsTokenAndAuthenticatesSubsequentRequests(t *testing.T) {
	var gotAuth string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/api/login/":
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"token":"tok-123"}`))
		case "/api/users/me/":
			gotAuth = r.Header.Get("Authorization")
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"username":"alice"}`))
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	tokenFile := filepath.Join(t.TempDir(), "token")
	c := indexclient.NewHTTPClient(srv.URL, tokenFile)

	if err := c.Login(context.Background(), "alice", "secret"); err != nil {
		t.Fatalf("Login() = %v, want nil", err)
	}
	data, err := os.ReadFile(tokenFile)
	if err != nil {
		t.Fatalf("reading persisted token: %v", err)
	}
	if string(data) != "tok-123" {
		t.Errorf("persisted token = %q, want tok-123", data)
	}

	if _, err := c.GetLoggedInUser(context.Background()); err != nil {
		t.Fatalf("GetLoggedInUser() = %v, want nil", err)
	}
	if gotAuth != "Bearer tok-123" {
		t.Errorf("Authorization header = %q, want Bearer tok-123", gotAuth)
	}
}

func TestLoadAuthFromFileRejectsEmptyToken(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token")
	if err := os.WriteFile(tokenFile, []byte("  \n"), 0o600); err != nil {
		t.Fatal(err)
	}
	c := indexclient.NewHTTPClient("http://example.invalid", tokenFile)
	if err := c.LoadAuthFromFile(); err == nil {
		t.Fatal("LoadAuthFromFile() = nil, want error for empty token file")
	}
}

func TestCreateDocumentBulkReportsPerRequestSuccess(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/docs/bulk/" {
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusOK)
		w.Write([]byte(`[{"docname":"a","result":true}]`))
	}))
	defer srv.Close()

	c := indexclient.NewHTTPClient(srv.URL, "")
	docs := []*model.Document{{Name: "a", Path: "/a"}}
	body, ok, err := c.CreateDocumentBulk(context.Background(), "/api/docs/", docs)
	if err != nil {
		t.Fatalf("CreateDocumentBulk() = %v, want nil", err)
	}
	if !ok {
		t.Error("ok = false, want true for a 200 response")
	}
	if len(body) == 0 {
		t.Error("expected a non-empty response body")
	}
}

func TestCreateDocumentBulkServerErrorIsNotOK(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := indexclient.NewHTTPClient(srv.URL, "")
	_, ok, err := c.CreateDocumentBulk(context.Background(), "/api/docs/", nil)
	if err != nil {
		t.Fatalf("CreateDocumentBulk() = %v, want nil error even on server error", err)
	}
	if ok {
		t.Error("ok = true, want false for a 500 response")
	}
}

func TestGetStatusCode(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer srv.Close()

	c := indexclient.NewHTTPClient(srv.URL, "")
	status, err := c.GetStatusCode(context.Background(), srv.URL+"/docs/")
	if err != nil {
		t.Fatalf("GetStatusCode() = %v, want nil", err)
	}
	if status != http.StatusNotFound {
		t.Errorf("status = %d, want %d", status, http.StatusNotFound)
	}
}
