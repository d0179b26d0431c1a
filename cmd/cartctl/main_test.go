package main

import (
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"cartsync/internal/negotiation"
)

func TestCheckCompatible(t *testing.T) {
	tests := []struct {
		client, server string
		wantErr        bool
	}{
		{"v1.0.0", "v1.0.0", false},
		{"v1.0.0", "v1.3.2", false},
		{"v1.0.0", "1.2.0", false},
		{"v1.4.0", "v1.3.0", true},
		{"v1.0.0", "v2.0.0", true},
		{"v1.0.0", "garbage", true},
	}

	for _, tt := range tests {
		err := checkCompatible(tt.client, tt.server)
		if (err != nil) != tt.wantErr {
			t.Errorf("checkCompatible(%s, %s) error = %v, wantErr %v", tt.client, tt.server, err, tt.wantErr)
		}
	}
}

func TestSessionFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "session")

	if err := saveSession(path, ""); err == nil {
		t.Error("saveSession with empty id should fail")
	}
	if err := saveSession(path, "abc-123"); err != nil {
		t.Fatalf("saveSession() error = %v", err)
	}

	got, err := loadSession(path)
	if err != nil {
		t.Fatalf("loadSession() error = %v", err)
	}
	if got != "abc-123" {
		t.Errorf("loadSession() = %q, want abc-123", got)
	}
}

func TestDoRequest(t *testing.T) {
	var gotAuth, gotClient string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotClient = r.Header.Get(negotiation.ClientHeader)
		switch r.URL.Path {
		case "/cart":
			w.Header().Set(negotiation.CacheStatusHeader, `cartsync;hit;detail="backend unreachable"`)
			w.Write([]byte(`{"lines":[],"total":0}`))
		default:
			w.WriteHeader(http.StatusUnprocessableEntity)
			w.Write([]byte(`{"error":{"code":"EMPTY_CART","message":"cart has no items"}}`))
		}
	}))
	defer srv.Close()

	serverURL = srv.URL
	sessionFile = filepath.Join(t.TempDir(), "session")
	quiet = true
	if err := saveSession(sessionFile, "sess-1"); err != nil {
		t.Fatal(err)
	}

	resp, err := doRequest("GET", "/cart", nil, true)
	if err != nil {
		t.Fatalf("doRequest() error = %v", err)
	}
	if gotAuth != "Bearer sess-1" {
		t.Errorf("Authorization = %q, want Bearer sess-1", gotAuth)
	}
	info, err := negotiation.ParseClientHeader(gotClient)
	if err != nil || info.Version != clientVersion || info.Name != "cartctl" {
		t.Errorf("%s = %q (%v)", negotiation.ClientHeader, gotClient, err)
	}
	cs, found, _ := negotiation.ParseCacheStatus(resp.header.Get(negotiation.CacheStatusHeader))
	if !found || !cs.Hit {
		t.Errorf("Cache-Status = %+v, want hit", cs)
	}

	_, err = doRequest("POST", "/checkout", nil, false)
	if err == nil || !strings.HasPrefix(err.Error(), "EMPTY_CART") {
		t.Errorf("doRequest() error = %v, want EMPTY_CART", err)
	}
	if gotAuth != "" {
		t.Errorf("Authorization = %q, want none without auth", gotAuth)
	}
}

func TestFormatID(t *testing.T) {
	if got := formatID(float64(42)); got != "42" {
		t.Errorf("formatID(42.0) = %q, want 42", got)
	}
	if got := formatID("x"); got != "x" {
		t.Errorf("formatID(x) = %q, want x", got)
	}
}
