package migrate

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateSQLMigrationWritesTemplate(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "migrations")
	clock = func() time.Time { return time.Date(2026, 4, 2, 8, 15, 0, 0, time.UTC) }
	t.Cleanup(func() { clock = time.Now })

	path, err := CreateSQLMigration(dir, " Add Cart Expiry! ")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(dir, "20260402081500_add_cart_expiry.sql"), path)
	require.NoError(t, ValidateDir(dir))

	_, err = CreateSQLMigration(dir, "add cart expiry")
	assert.Error(t, err, "same second and name must not overwrite")

	_, err = CreateSQLMigration(dir, "!!!")
	assert.Error(t, err)
}

func TestValidateDirRejectsBadFiles(t *testing.T) {
	valid := "-- +goose Up\nSELECT 1;\n-- +goose Down\nSELECT 1;\n"
	cases := map[string]map[string]string{
		"bad name":      {"1_init.sql": valid},
		"bad timestamp": {"20261399000000_init.sql": valid},
		"duplicate": {
			"20260101000000_a.sql": valid,
			"20260101000000_b.sql": valid,
		},
		"missing down": {"20260101000000_a.sql": "-- +goose Up\nSELECT 1;\n"},
		"reversed":     {"20260101000000_a.sql": "-- +goose Down\n-- +goose Up\n"},
	}
	for name, files := range cases {
		t.Run(name, func(t *testing.T) {
			dir := t.TempDir()
			for file, body := range files {
				require.NoError(t, os.WriteFile(filepath.Join(dir, file), []byte(body), 0o644))
			}
			assert.Error(t, ValidateDir(dir))
		})
	}
}

func TestValidateDirIgnoresOtherFiles(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "README.md"), []byte("notes"), 0o644))
	require.NoError(t, os.Mkdir(filepath.Join(dir, "archive"), 0o755))
	assert.NoError(t, ValidateDir(dir))
	assert.Error(t, ValidateDir(filepath.Join(dir, "missing")))
}
