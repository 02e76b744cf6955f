package database

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMigrateIsIdempotent(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()

	require.NoError(t, Migrate(db))
	require.NoError(t, Migrate(db))

	var n int
	require.NoError(t, db.QueryRow(`SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name IN ('shows', 'genres', 'show_genres', 'watch_links')`).Scan(&n))
	assert.Equal(t, 4, n)
}

func TestSchemaRejectsUntitledShow(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	_, err = db.Exec(`INSERT INTO shows (title, title_arabic) VALUES ('', '')`)
	assert.Error(t, err)
}

func TestSchemaOneLinkPerSite(t *testing.T) {
	db, err := OpenMemory()
	require.NoError(t, err)
	defer db.Close()
	require.NoError(t, Migrate(db))

	res, err := db.Exec(`INSERT INTO shows (title) VALUES ('Vincenzo')`)
	require.NoError(t, err)
	id, _ := res.LastInsertId()

	_, err = db.Exec(`INSERT INTO watch_links (show_id, site_name, url) VALUES (?, 'Akwam', 'https://a/1')`, id)
	require.NoError(t, err)
	_, err = db.Exec(`INSERT INTO watch_links (show_id, site_name, url) VALUES (?, 'Akwam', 'https://a/2')`, id)
	assert.Error(t, err)
}

func TestOpenCreatesDataDir(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "nested", "catalog.db")}
	db, err := Open(cfg)
	require.NoError(t, err)
	defer db.Close()
	assert.FileExists(t, cfg.Path)
}

func TestOpenReadOnly(t *testing.T) {
	cfg := Config{Path: filepath.Join(t.TempDir(), "catalog.db")}

	_, err := OpenReadOnly(cfg)
	require.Error(t, err)
	assert.NoFileExists(t, cfg.Path)

	db, err := Open(cfg)
	require.NoError(t, err)
	_ = db.Close()

	_, err = OpenReadOnly(cfg)
	assert.ErrorContains(t, err, "run migrate first")

	db, err = Open(cfg)
	require.NoError(t, err)
	require.NoError(t, Migrate(db))
	_ = db.Close()

	ro, err := OpenReadOnly(cfg)
	require.NoError(t, err)
	defer ro.Close()
	_, err = ro.Exec(`INSERT INTO shows (title) VALUES ('Vincenzo')`)
	assert.Error(t, err)
}
