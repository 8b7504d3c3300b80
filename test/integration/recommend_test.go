// Package integration exercises the full stack: catalog file, training,
// persistence, and the HTTP API.
package integration

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"go.uber.org/zap"

	"github.com/hyperjump/osusume/internal/catalog"
	"github.com/hyperjump/osusume/internal/config"
	"github.com/hyperjump/osusume/internal/engine"
	"github.com/hyperjump/osusume/internal/models"
	"github.com/hyperjump/osusume/internal/server"
	"github.com/hyperjump/osusume/internal/storage"
)

const catalogCSV = `bookID,title,authors,average_rating,isbn,language_code,num_pages,ratings_count,publication_date
1,The Fellowship of the Ring,J.R.R. Tolkien,4.38,0618346252,eng,398,2500000,9/5/2003
2,The Two Towers,J.R.R. Tolkien,4.36,0618346260,eng,322,700000,9/5/2003
3,The Return of the King,J.R.R. Tolkien,4.38,0618346279,eng,398,680000,9/5/2003
4,Pride and Prejudice,Jane Austen,4.28,0679783261,eng,279,3000000,10/10/2000
5,Le Petit Prince,Antoine de Saint-Exupery,4.32,0156012197,fre,96,1500000,4/6/2001
6,A Study in Scarlet,Arthur Conan Doyle,4.16,0140439080,eng,123,270000,3/1/2001
`

func TestIntegration_TrainPersistServe(t *testing.T) {
	dir := t.TempDir()
	catalogPath := filepath.Join(dir, "books.csv")
	if err := os.WriteFile(catalogPath, []byte(catalogCSV), 0644); err != nil {
		t.Fatal(err)
	}

	store, err := storage.NewSQLiteStore(filepath.Join(dir, "osusume.db"))
	if err != nil {
		t.Fatal(err)
	}
	defer store.Close()

	cfg := &config.Config{
		Server:    config.ServerConfig{Host: "127.0.0.1", Port: 0},
		Recommend: config.RecommendConfig{DefaultK: 5, MaxK: 50, MinSimilarity: 0},
	}
	eng := engine.NewEngine(zap.NewNop(), catalog.NewFileLoader(catalogPath), nil, store, &cfg.Recommend)
	if err := eng.Init(context.Background()); err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	srv := server.NewServer(eng, &cfg.Server, zap.NewNop())
	router := srv.Router()

	// The middle Tolkien volume's nearest neighbor is its sibling volume:
	// same author, language, year, rating band, and near-identical counts.
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/recommendations?title=two+towers&k=3", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("recommendations status = %d, body %s", rec.Code, rec.Body.String())
	}
	var recResp models.RecommendResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &recResp); err != nil {
		t.Fatal(err)
	}
	if recResp.Seed != "The Two Towers" {
		t.Errorf("seed = %q", recResp.Seed)
	}
	if recResp.Mode != "advanced" {
		t.Errorf("mode = %q, want advanced", recResp.Mode)
	}
	if len(recResp.Recommendations) != 3 {
		t.Fatalf("got %d recommendations, want 3", len(recResp.Recommendations))
	}
	if recResp.Recommendations[0].Title != "The Return of the King" {
		t.Errorf("nearest = %q, want The Return of the King", recResp.Recommendations[0].Title)
	}
	last := 1.0
	for _, r := range recResp.Recommendations {
		if r.Title == "The Two Towers" {
			t.Error("seed must be excluded")
		}
		if r.Similarity < 0 || r.Similarity > last {
			t.Errorf("similarities must be descending in [0, 1], got %v after %v", r.Similarity, last)
		}
		last = r.Similarity
	}

	// Search joins keyword hits back to catalog metadata.
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/search?q=scarlet", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("search status = %d", rec.Code)
	}
	var searchResp models.SearchResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &searchResp); err != nil {
		t.Fatal(err)
	}
	if len(searchResp.Hits) != 1 || searchResp.Hits[0].Title != "A Study in Scarlet" {
		t.Errorf("unexpected search hits: %+v", searchResp.Hits)
	}

	// Preference recommendations build a seedless target vector; a language
	// preference must surface the catalog's only French book first.
	prefBody, err := json.Marshal(&models.PreferenceRequest{Language: "fre"})
	if err != nil {
		t.Fatal(err)
	}
	rec = httptest.NewRecorder()
	router.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/recommendations/preferences?k=2", bytes.NewReader(prefBody)))
	if rec.Code != http.StatusOK {
		t.Fatalf("preferences status = %d, body %s", rec.Code, rec.Body.String())
	}
	var prefResp models.PreferenceResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &prefResp); err != nil {
		t.Fatal(err)
	}
	if len(prefResp.Recommendations) == 0 || prefResp.Recommendations[0].Title != "Le Petit Prince" {
		t.Errorf("unexpected preference results: %+v", prefResp.Recommendations)
	}

	// The trained bundle must be restorable by a fresh engine without the
	// catalog file.
	if err := os.Remove(catalogPath); err != nil {
		t.Fatal(err)
	}
	restored := engine.NewEngine(zap.NewNop(), catalog.NewFileLoader(catalogPath), nil, store, &cfg.Recommend)
	if err := restored.Init(context.Background()); err != nil {
		t.Fatalf("restore from bundle: %v", err)
	}
	defer restored.Close()
	if restored.Size() != 6 {
		t.Errorf("restored catalog size = %d, want 6", restored.Size())
	}
	resp, err := restored.RecommendSimilar(context.Background(), "pride and prejudice", 3, false)
	if err != nil {
		t.Fatalf("RecommendSimilar after restore: %v", err)
	}
	if len(resp.Recommendations) != 3 {
		t.Errorf("got %d recommendations after restore, want 3", len(resp.Recommendations))
	}
}
