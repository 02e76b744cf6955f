package main

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicha-kelia/drama-aggregator/internal/genres"
	"github.com/aicha-kelia/drama-aggregator/internal/shows"
	"github.com/aicha-kelia/drama-aggregator/pkg/database"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

func TestRouter(t *testing.T) {
	gin.SetMode(gin.TestMode)
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })

	showRepo := shows.NewRepo(db)
	_, err = showRepo.Create(context.Background(), &models.Show{TitleArabic: "رحمة", Country: models.CountryMoroccan, ReleaseYear: models.Year(2023)})
	require.NoError(t, err)

	r := newRouter(db.PingContext, showRepo, genres.NewRepo(db), 20, ":memory:")

	for _, path := range []string{"/health", "/shows", "/shows/1", "/genres", "/years"} {
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, path, nil))
		assert.Equal(t, http.StatusOK, w.Code, path)
	}

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shows?country=moroccan", nil))
	var body struct {
		Total int           `json:"total"`
		Items []models.Show `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, 1, body.Total)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/shows/99", nil))
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestHealthReportsDatabaseErrors(t *testing.T) {
	gin.SetMode(gin.TestMode)
	ping := func(context.Context) error { return errors.New("database is locked") }
	r := newRouter(ping, nil, nil, 20, "x.db")

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "database is locked")
}
