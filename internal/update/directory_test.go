package update

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"plugup/internal/domain"
)

func TestDirectoryLookup(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		if q.Get("format") != "json" || q.Get("plugin") != "block_xp@2024072500" || q.Get("branch") != "405" {
			t.Errorf("unexpected query: %v", q)
		}
		_, _ = io.WriteString(w, `{"status":"OK","pluginfo":{"component":"block_xp","version":{
			"version":"2024072500","release":"3.17","maturity":200,
			"downloadurl":"https://example.test/xp.zip","downloadmd5":"abc"}}}`)
	}))
	defer server.Close()

	info, err := NewDirectoryClient(server.URL).Lookup(context.Background(), "block_xp", 2024072500, "405")
	if err != nil {
		t.Fatalf("Lookup error: %v", err)
	}
	want := PluginInfo{
		Component:   "block_xp",
		Version:     2024072500,
		Release:     "3.17",
		Maturity:    domain.MaturityStable,
		DownloadURL: "https://example.test/xp.zip",
		DownloadMD5: "abc",
	}
	if info == nil || *info != want {
		t.Fatalf("Lookup = %+v, want %+v", info, want)
	}
}

func TestDirectoryLookupMisses(t *testing.T) {
	tests := map[string]http.HandlerFunc{
		"not found": func(w http.ResponseWriter, r *http.Request) {
			http.NotFound(w, r)
		},
		"error status": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"ERROR","error":"unknown plugin"}`)
		},
		"version false": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"OK","pluginfo":{"component":"mod_a","version":false}}`)
		},
		"no download": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `{"status":"OK","pluginfo":{"component":"mod_a","version":{"version":2}}}`)
		},
		"garbage": func(w http.ResponseWriter, r *http.Request) {
			_, _ = io.WriteString(w, `oops`)
		},
	}
	for name, handler := range tests {
		t.Run(name, func(t *testing.T) {
			server := httptest.NewServer(handler)
			defer server.Close()

			info, err := NewDirectoryClient(server.URL).Lookup(context.Background(), "mod_a", 2, "")
			if err != nil {
				t.Fatalf("misses must not be errors: %v", err)
			}
			if info != nil {
				t.Fatalf("expected nil, got %+v", info)
			}
		})
	}
}

func TestDirectoryLookupUnreachableIsMiss(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	addr := server.URL
	server.Close()

	info, err := NewDirectoryClient(addr).Lookup(context.Background(), "mod_a", 2, "")
	if err != nil || info != nil {
		t.Fatalf("Lookup = %+v, %v; want nil, nil", info, err)
	}
}

func TestDirectoryLookupCancelled(t *testing.T) {
	server := httptest.NewServer(http.NotFoundHandler())
	defer server.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := NewDirectoryClient(server.URL).Lookup(ctx, "mod_a", 2, ""); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}
