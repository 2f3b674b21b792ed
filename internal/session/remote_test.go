package session

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/san-kum/quakesim/internal/scene"
)

func TestRemoteFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet || r.URL.Path != PathState {
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
		}
		json.NewEncoder(w).Encode(State{Magnitude: 5, Version: 4})
	}))
	defer srv.Close()

	st, err := NewRemote(srv.URL+"/", nil).Fetch(context.Background())
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if st.Magnitude != 5 || st.Version != 4 {
		t.Errorf("unexpected state %+v", st)
	}
	if st.Detections == nil {
		t.Error("expected non-nil detections")
	}
}

func TestRemotePush(t *testing.T) {
	var gotMag MagnitudeRequest
	var gotDet DetectionsRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if ct := r.Header.Get("Content-Type"); ct != "application/json" {
			t.Errorf("expected JSON content type, got %q", ct)
		}
		switch r.URL.Path {
		case PathMagnitude:
			json.NewDecoder(r.Body).Decode(&gotMag)
		case PathDetections:
			json.NewDecoder(r.Body).Decode(&gotDet)
		default:
			http.NotFound(w, r)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}))
	defer srv.Close()

	c := NewRemote(srv.URL, srv.Client())
	ctx := context.Background()
	if err := c.PushMagnitude(ctx, 6.3); err != nil {
		t.Fatalf("push magnitude: %v", err)
	}
	if err := c.PushDetections(ctx, []scene.Detection{{ID: "d1", Category: "lamp"}}); err != nil {
		t.Fatalf("push detections: %v", err)
	}

	if gotMag.Magnitude != 6.3 {
		t.Errorf("expected magnitude 6.3, got %f", gotMag.Magnitude)
	}
	if len(gotDet.Detections) != 1 || gotDet.Detections[0].ID != "d1" {
		t.Errorf("unexpected detections %+v", gotDet.Detections)
	}
}

func TestRemoteStatusError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, err := NewRemote(srv.URL, nil).Fetch(context.Background())
	if !errors.Is(err, ErrStatus) {
		t.Errorf("expected ErrStatus, got %v", err)
	}
}

func TestRemoteHonorsContext(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(2 * time.Second):
		}
	}))
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	if _, err := NewRemote(srv.URL, nil).Fetch(ctx); err == nil {
		t.Fatal("expected timeout error")
	}
	if time.Since(start) > time.Second {
		t.Error("fetch did not return promptly after context deadline")
	}
}
