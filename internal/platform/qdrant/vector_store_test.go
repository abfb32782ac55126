package qdrant

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/yungbote/bloomie-backend/internal/platform/logger"
)

type roundTripFunc func(*http.Request) (*http.Response, error)

func (f roundTripFunc) RoundTrip(r *http.Request) (*http.Response, error) {
	return f(r)
}

func newTestVectorStore(t *testing.T, roundTrip func(*http.Request) (*http.Response, error)) *vectorStore {
	t.Helper()
	return &vectorStore{
		log:      logger.Nop(),
		cfg:      Config{Collection: "knowledge", NamespacePrefix: "bloomie", VectorDim: 3},
		baseURL:  "http://qdrant.local",
		distance: "Cosine",
		http:     &http.Client{Transport: roundTripFunc(roundTrip)},
	}
}

func okResponse(t *testing.T, result any) *http.Response {
	t.Helper()
	raw, err := json.Marshal(map[string]any{"result": result, "status": "ok", "time": 0.001})
	if err != nil {
		t.Fatalf("marshal response: %v", err)
	}
	return &http.Response{
		StatusCode: http.StatusOK,
		Header:     make(http.Header),
		Body:       io.NopCloser(bytes.NewReader(raw)),
	}
}

func TestVectorStoreUpsertRequestShape(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.Method != http.MethodPut || r.URL.Path != "/collections/knowledge/points" || r.URL.RawQuery != "wait=true" {
			t.Fatalf("request: got=%s %s?%s", r.Method, r.URL.Path, r.URL.RawQuery)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, map[string]any{"status": "acknowledged"}), nil
	})

	meta := map[string]any{"category": "skin"}
	if err := s.Upsert(context.Background(), "articles", []Point{
		{ID: "eczema-moisture", Vector: []float32{1, 0, 0}, Payload: meta},
	}); err != nil {
		t.Fatalf("Upsert: %v", err)
	}
	points, _ := captured["points"].([]any)
	if len(points) != 1 {
		t.Fatalf("points: want=1 got=%d", len(points))
	}
	first := points[0].(map[string]any)
	if first["id"] != s.pointID("bloomie:articles", "eczema-moisture") {
		t.Fatalf("point id: got=%v", first["id"])
	}
	payload := first["payload"].(map[string]any)
	if payload[payloadNamespaceKey] != "bloomie:articles" || payload[payloadPointIDKey] != "eczema-moisture" || payload["category"] != "skin" {
		t.Fatalf("payload: got=%v", payload)
	}
	if _, ok := meta[payloadNamespaceKey]; ok {
		t.Fatalf("input payload mutated")
	}
}

func TestVectorStoreSearchFiltersAndOrders(t *testing.T) {
	var captured map[string]any
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		if r.URL.Path != "/collections/knowledge/points/search" {
			t.Fatalf("path: want=%q got=%q", "/collections/knowledge/points/search", r.URL.Path)
		}
		if err := json.NewDecoder(r.Body).Decode(&captured); err != nil {
			t.Fatalf("decode body: %v", err)
		}
		return okResponse(t, []map[string]any{
			{"id": "x", "score": 0.9, "payload": map[string]any{payloadPointIDKey: "far", "title": "Far"}},
			{"id": "y", "score": 0.1, "payload": map[string]any{payloadPointIDKey: "near", "title": "Near", payloadNamespaceKey: "bloomie:articles"}},
		}), nil
	})
	s.distance = "Euclid"

	got, err := s.Search(context.Background(), "articles", []float32{1, 2, 3}, 2, map[string]string{"category": "skin"})
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 || got[0].ID != "near" || got[1].ID != "far" {
		t.Fatalf("order: got=%+v", got)
	}
	if _, ok := got[0].Payload[payloadNamespaceKey]; ok || got[0].Payload["title"] != "Near" {
		t.Fatalf("payload: got=%v", got[0].Payload)
	}
	must := captured["filter"].(map[string]any)["must"].([]any)
	if len(must) != 2 {
		t.Fatalf("filter conditions: want=2 got=%d", len(must))
	}
	if key := must[1].(map[string]any)["key"]; key != "category" {
		t.Fatalf("filter key: want=%q got=%v", "category", key)
	}
}

func TestVectorStoreRejectsWrongDimension(t *testing.T) {
	s := newTestVectorStore(t, func(r *http.Request) (*http.Response, error) {
		t.Fatalf("no request expected")
		return nil, nil
	})
	_, err := s.Search(context.Background(), "articles", []float32{1, 2}, 3, nil)
	var oe *OperationError
	if !errors.As(err, &oe) || oe.Code != OperationErrorValidation {
		t.Fatalf("Search: want validation error got=%v", err)
	}
}

func TestNewVectorStoreCreatesMissingCollection(t *testing.T) {
	var mu sync.Mutex
	var created map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch {
		case r.URL.Path == "/readyz":
			w.WriteHeader(http.StatusOK)
		case r.Method == http.MethodGet && r.URL.Path == "/collections/knowledge":
			w.WriteHeader(http.StatusNotFound)
			_, _ = w.Write([]byte(`{"status":{"error":"Not found"}}`))
		case r.Method == http.MethodPut && r.URL.Path == "/collections/knowledge":
			mu.Lock()
			_ = json.NewDecoder(r.Body).Decode(&created)
			mu.Unlock()
			_, _ = w.Write([]byte(`{"result":true,"status":"ok"}`))
		default:
			t.Errorf("unexpected request %s %s", r.Method, r.URL.Path)
			w.WriteHeader(http.StatusTeapot)
		}
	}))
	t.Cleanup(srv.Close)

	if _, err := NewVectorStore(context.Background(), logger.Nop(), Config{URL: srv.URL, Collection: "knowledge", VectorDim: 8}); err != nil {
		t.Fatalf("NewVectorStore: %v", err)
	}
	mu.Lock()
	defer mu.Unlock()
	vectors, _ := created["vectors"].(map[string]any)
	if vectors["size"] != float64(8) || vectors["distance"] != defaultDistance {
		t.Fatalf("created collection: got=%v", created)
	}
}

func TestValidateConfig(t *testing.T) {
	cases := []struct {
		name string
		cfg  Config
		code ConfigErrorCode
	}{
		{name: "missing url", cfg: Config{Collection: "c", VectorDim: 3}, code: ConfigErrorMissingURL},
		{name: "relative url", cfg: Config{URL: "qdrant:6333", Collection: "c", VectorDim: 3}, code: ConfigErrorInvalidURL},
		{name: "missing collection", cfg: Config{URL: "http://q:6333", VectorDim: 3}, code: ConfigErrorMissingCollection},
		{name: "zero dim", cfg: Config{URL: "http://q:6333", Collection: "c"}, code: ConfigErrorInvalidVectorDim},
		{name: "ok", cfg: Config{URL: "http://q:6333", Collection: "c", VectorDim: 3}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			cfg := tc.cfg
			err := ValidateConfig(&cfg)
			if tc.code == "" {
				if err != nil || cfg.NamespacePrefix != "bloomie" || cfg.Distance != defaultDistance {
					t.Fatalf("ValidateConfig: got err=%v cfg=%+v", err, cfg)
				}
				return
			}
			var ce *ConfigError
			if !errors.As(err, &ce) || ce.Code != tc.code {
				t.Fatalf("ValidateConfig: want=%q got=%v", tc.code, err)
			}
		})
	}
}
