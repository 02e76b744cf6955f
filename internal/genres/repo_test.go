package genres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/aicha-kelia/drama-aggregator/pkg/database"
	"github.com/aicha-kelia/drama-aggregator/pkg/models"
)

func newTestDB(t *testing.T) *sql.DB {
	t.Helper()
	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, database.Migrate(db))
	t.Cleanup(func() { _ = db.Close() })
	return db
}

func TestEnsureCreatesOnce(t *testing.T) {
	repo := NewRepo(newTestDB(t))
	ctx := context.Background()

	calls := 0
	arabic := func(name string) string {
		calls++
		return "دراما"
	}

	g, created, err := repo.Ensure(ctx, "Drama", arabic)
	require.NoError(t, err)
	assert.True(t, created)
	assert.Equal(t, "دراما", g.NameArabic)

	again, created, err := repo.Ensure(ctx, "Drama", arabic)
	require.NoError(t, err)
	assert.False(t, created)
	assert.Equal(t, g.ID, again.ID)
	assert.Equal(t, 1, calls, "translation only runs on creation")

	other, created, err := repo.Ensure(ctx, "drama", arabic)
	require.NoError(t, err)
	assert.True(t, created, "lookup is case-sensitive")
	assert.NotEqual(t, g.ID, other.ID)
}

func TestEnsureFallsBackToName(t *testing.T) {
	repo := NewRepo(newTestDB(t))

	g, _, err := repo.Ensure(context.Background(), "Mystery", func(string) string { return "  " })
	require.NoError(t, err)
	assert.Equal(t, "Mystery", g.NameArabic)

	g, _, err = repo.Ensure(context.Background(), "Crime", nil)
	require.NoError(t, err)
	assert.Equal(t, "Crime", g.NameArabic)

	_, _, err = repo.Ensure(context.Background(), " ", nil)
	assert.Error(t, err)
}

func TestAttachAndListWithCounts(t *testing.T) {
	db := newTestDB(t)
	repo := NewRepo(db)
	ctx := context.Background()

	_, err := db.Exec(`INSERT INTO shows (title) VALUES ('Vincenzo'), ('Goblin')`)
	require.NoError(t, err)

	drama, _, err := repo.Ensure(ctx, "Drama", nil)
	require.NoError(t, err)
	_, _, err = repo.Ensure(ctx, "Unused", nil)
	require.NoError(t, err)

	added, err := repo.Attach(ctx, 1, drama.ID)
	require.NoError(t, err)
	assert.True(t, added)
	added, err = repo.Attach(ctx, 1, drama.ID)
	require.NoError(t, err)
	assert.False(t, added)
	_, err = repo.Attach(ctx, 2, drama.ID)
	require.NoError(t, err)

	list, err := repo.ListWithCounts(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "Drama", list[0].Name)
	assert.Equal(t, 2, list[0].ShowCount)

	gin.SetMode(gin.TestMode)
	r := gin.New()
	NewHandler(repo).RegisterRoutes(r.Group("/genres"))
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/genres", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		Items []models.Genre `json:"items"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Len(t, body.Items, 1)
}

func TestEnsureAndAttachReportRowsAffectedErrors(t *testing.T) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()
	repo := NewRepo(db)
	ctx := context.Background()

	mock.ExpectQuery(`SELECT id, name, name_arabic FROM genres`).
		WithArgs("Drama").
		WillReturnRows(sqlmock.NewRows([]string{"id", "name", "name_arabic"}))
	mock.ExpectExec(`INSERT INTO genres`).
		WithArgs("Drama", "Drama").
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver lost count")))

	_, _, err = repo.Ensure(ctx, "Drama", nil)
	assert.ErrorContains(t, err, "rows affected")

	mock.ExpectExec(`INSERT INTO show_genres`).
		WithArgs(int64(1), int64(2)).
		WillReturnResult(sqlmock.NewErrorResult(errors.New("driver lost count")))

	_, err = repo.Attach(ctx, 1, 2)
	assert.ErrorContains(t, err, "rows affected")
	assert.NoError(t, mock.ExpectationsWereMet())
}
