package retrieval

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestAzureSearch(t *testing.T) {
	var got azureSearchRequest
	var gotKey, gotPath, gotVersion string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotKey = r.Header.Get("api-key")
		gotPath = r.URL.Path
		gotVersion = r.URL.Query().Get("api-version")
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"value":[
			{"@search.score":2.5,"id":"1","text":"Ferritin measures stored iron.","source":"iron.pdf","title":"Iron"},
			{"@search.score":1.1,"id":"2","text":"Vitamin D.","source":"vitd.pdf","title":""}
		]}`))
	}))
	defer srv.Close()

	e := keywordEmbedder{vocab: []string{"ferritin", "iron"}}
	a := NewAzureSearch(AzureConfig{Endpoint: srv.URL + "/", Index: "vitaroute", APIKey: "secret"}, e)

	passages, err := a.Search(context.Background(), "ferritin", 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	if gotKey != "secret" || gotPath != "/indexes/vitaroute/docs/search" || gotVersion != "2024-07-01" {
		t.Errorf("request key=%q path=%q version=%q", gotKey, gotPath, gotVersion)
	}
	if got.Search != "ferritin" || got.Top != 3 {
		t.Errorf("body = %+v", got)
	}
	if len(got.VectorQueries) != 1 || got.VectorQueries[0].Fields != "embedding" || len(got.VectorQueries[0].Vector) != 2 {
		t.Errorf("vector queries = %+v", got.VectorQueries)
	}

	if len(passages) != 2 || passages[0].Metadata.Filename != "iron.pdf" || passages[0].Score != 2.5 {
		t.Errorf("passages = %+v", passages)
	}
	if passages[1].Render() != "Vitamin D.\nSource: vitd.pdf" {
		t.Errorf("render = %q", passages[1].Render())
	}
}

func TestAzureSearch_KeywordOnly(t *testing.T) {
	var got map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&got)
		w.Write([]byte(`{"value":[]}`))
	}))
	defer srv.Close()

	a := NewAzureSearch(AzureConfig{Endpoint: srv.URL, Index: "i"}, nil)
	passages, err := a.Search(context.Background(), "q", 3)
	if err != nil || len(passages) != 0 {
		t.Fatalf("Search = %v, %v", passages, err)
	}
	if _, ok := got["vectorQueries"]; ok {
		t.Error("keyword-only search should not send vector queries")
	}
}

func TestAzureSearch_Error(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error":{"message":"index not found"}}`, http.StatusNotFound)
	}))
	defer srv.Close()

	a := NewAzureSearch(AzureConfig{Endpoint: srv.URL, Index: "missing"}, nil)
	if _, err := a.Search(context.Background(), "q", 3); err == nil {
		t.Error("404 should fail")
	}
}
