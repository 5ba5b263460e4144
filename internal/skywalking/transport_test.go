package skywalking

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func graphQLServer(t *testing.T, status int, body string, gotQuery *string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/graphql" || r.Method != http.MethodPost {
			http.NotFound(w, r)
			return
		}
		var req struct {
			Query string `json:"query"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if gotQuery != nil {
			*gotQuery = req.Query
		}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

func TestHTTPTransport_Query(t *testing.T) {
	var got string
	srv := graphQLServer(t, http.StatusOK, `{"data": {"services": [{"id": "1", "name": "songs"}]}}`, &got)
	tr := NewHTTPTransport(srv.URL+"/", time.Second)
	defer tr.Close()

	data, err := tr.Query(context.Background(), "query q { services }")
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	if got != "query q { services }" {
		t.Errorf("posted query = %q", got)
	}
	if data.Get("services.0.name").String() != "songs" {
		t.Errorf("data = %s", data.Raw)
	}
}

func TestHTTPTransport_Errors(t *testing.T) {
	testCases := []struct {
		name    string
		status  int
		body    string
		wantErr error
		wantMsg string
	}{
		{"graphql errors", http.StatusOK, `{"data": null, "errors": [{"message": "bad field"}, {"message": "oops"}]}`, ErrBackend, "bad field; oops"},
		{"http error", http.StatusInternalServerError, `{}`, ErrBackend, "500"},
		{"invalid json", http.StatusOK, `not json`, ErrMalformedResponse, ""},
		{"missing data", http.StatusOK, `{"errors": []}`, ErrMalformedResponse, ""},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			srv := graphQLServer(t, tc.status, tc.body, nil)
			tr := NewHTTPTransport(srv.URL, time.Second)
			_, err := tr.Query(context.Background(), "query q { x }")
			if !errors.Is(err, tc.wantErr) {
				t.Fatalf("err = %v, want %v", err, tc.wantErr)
			}
			if tc.wantMsg != "" && !strings.Contains(err.Error(), tc.wantMsg) {
				t.Errorf("err = %v, want it to mention %q", err, tc.wantMsg)
			}
		})
	}
}

func TestHTTPTransport_Unreachable(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()
	tr := NewHTTPTransport(url, time.Second)
	if _, err := tr.Query(context.Background(), "query q { x }"); err == nil {
		t.Fatal("expected error for unreachable backend")
	}
}
