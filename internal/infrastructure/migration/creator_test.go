package migration

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/SWFTstudios/onlyatthekiosk-website/migrations"
)

func TestSanitizeName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"add cart index", "add_cart_index"},
		{"Add-Cart-Index", "add_cart_index"},
		{"add__cart__index", "add_cart_index"},
		{"   spaces   ", "spaces"},
		{"special!@#$chars", "specialchars"},
		{"_leading", "leading"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			assert.Equal(t, tt.expected, sanitizeName(tt.input))
		})
	}
}

func TestCreateMigration(t *testing.T) {
	dir := t.TempDir()

	first, err := CreateMigration(dir, "create products", "Mirror table")
	require.NoError(t, err)
	assert.Equal(t, "000001", first.Version)
	assert.Equal(t, filepath.Join(dir, "000001_create_products.up.sql"), first.UpPath)

	up, err := os.ReadFile(first.UpPath)
	require.NoError(t, err)
	assert.Contains(t, string(up), "-- Description: Mirror table")
	assert.FileExists(t, first.DownPath)

	second, err := CreateMigration(dir, "add products vendor index", "")
	require.NoError(t, err)
	assert.Equal(t, "000002", second.Version)

	list, err := ListMigrations(dir)
	require.NoError(t, err)
	assert.Equal(t, []string{"000001_create_products", "000002_add_products_vendor_index"}, list)
}

func TestCreateMigration_InvalidName(t *testing.T) {
	_, err := CreateMigration(t.TempDir(), "!!!", "")
	assert.Error(t, err)
}

func TestListMigrations_MissingDir(t *testing.T) {
	list, err := ListMigrations(filepath.Join(t.TempDir(), "missing"))
	require.NoError(t, err)
	assert.Empty(t, list)
}

func TestEmbeddedMigrationsArePaired(t *testing.T) {
	ups, err := migrationsGlob("*.up.sql")
	require.NoError(t, err)
	require.NotEmpty(t, ups)

	for _, up := range ups {
		base := up[:len(up)-len(".up.sql")]
		_, err := migrations.FS.Open(base + ".down.sql")
		assert.NoError(t, err, "missing down migration for %s", base)
	}
}

func migrationsGlob(pattern string) ([]string, error) {
	entries, err := migrations.FS.ReadDir(".")
	if err != nil {
		return nil, err
	}
	var out []string
	for _, e := range entries {
		if ok, _ := filepath.Match(pattern, e.Name()); ok {
			out = append(out, e.Name())
		}
	}
	return out, nil
}
