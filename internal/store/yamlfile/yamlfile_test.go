package yamlfile_test

import (
	"context"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sundayezeilo/customlinks/internal/links"
	"github.com/sundayezeilo/customlinks/internal/store/yamlfile"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestStore_LoadMissingFile(t *testing.T) {
	s := yamlfile.New(filepath.Join(t.TempDir(), "config.yaml"), testLogger())

	got, err := s.Load(context.Background())
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestStore_SaveLoad(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	s := yamlfile.New(path, testLogger())

	entries := []links.Entry{
		{ID: "custom_link_3", Record: links.Record{Href: "https://example.com/c", Icon: "fa-c", Location: "menu", Active: false}},
		{ID: "custom_link_1", Record: links.Record{Href: "https://example.com/a", Location: "nav", Active: true,
			Extra: map[string]any{"label": "Alpha", "order": 2}}},
	}
	require.NoError(t, s.Save(ctx, entries))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "custom_link_3", got[0].ID)
	assert.Equal(t, "fa-c", got[0].Record.Icon)
	assert.False(t, got[0].Record.Active)

	assert.Equal(t, "custom_link_1", got[1].ID)
	assert.True(t, got[1].Record.Active)
	assert.Equal(t, "Alpha", got[1].Record.Extra["label"])
	assert.Equal(t, 2, got[1].Record.Extra["order"])
}

func TestStore_FileLayout(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	s := yamlfile.New(path, testLogger())

	require.NoError(t, s.Save(context.Background(), []links.Entry{
		{ID: "custom_link_1", Record: links.Record{Href: "/a", Location: "nav", Active: true, Extra: map[string]any{"label": "A"}}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.True(t, strings.HasPrefix(text, "custom_links:\n"), "unexpected document:\n%s", text)
	assert.Less(t, strings.Index(text, "id: custom_link_1"), strings.Index(text, "href: /a"))
	assert.Less(t, strings.Index(text, "active: 1"), strings.Index(text, "label: A"))

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(0o644), info.Mode().Perm())
}

func TestStore_SaveKeepsHostSections(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	seed := "general:\n  http_port: 8181\n  # listen on all interfaces\n  http_host: 0.0.0.0\ncustom_links: []\nmonitoring:\n  enabled: true\n"
	require.NoError(t, os.WriteFile(path, []byte(seed), 0o644))

	s := yamlfile.New(path, testLogger())
	require.NoError(t, s.Save(ctx, []links.Entry{
		{ID: "custom_link_1", Record: links.Record{Href: "/a", Location: "nav", Active: true}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	text := string(data)

	assert.Contains(t, text, "http_port: 8181")
	assert.Contains(t, text, "# listen on all interfaces")
	assert.Contains(t, text, "enabled: true")
	assert.Contains(t, text, "id: custom_link_1")
	assert.Less(t, strings.Index(text, "general:"), strings.Index(text, "custom_links:"))
	assert.Less(t, strings.Index(text, "custom_links:"), strings.Index(text, "monitoring:"))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Equal(t, "custom_link_1", got[0].ID)
}

func TestStore_SaveAppendsSection(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("general:\n  http_port: 8181\n"), 0o644))

	s := yamlfile.New(path, testLogger())
	require.NoError(t, s.Save(ctx, []links.Entry{
		{ID: "custom_link_1", Record: links.Record{Href: "/a", Location: "menu"}},
	}))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "http_port: 8181")

	got, err := s.Load(ctx)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

func TestStore_SaveRejectsNonMapping(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("- a\n- b\n"), 0o644))

	err := yamlfile.New(path, testLogger()).Save(context.Background(), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "top level must be a mapping")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "- a\n- b\n", string(data))
}

func TestStore_SaveEmptyAndNoTempFiles(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	path := filepath.Join(dir, "config.yaml")
	s := yamlfile.New(path, testLogger())

	require.NoError(t, s.Save(ctx, []links.Entry{{ID: "custom_link_1", Record: links.Record{Href: "/a", Location: "nav"}}}))
	require.NoError(t, s.Save(ctx, nil))

	got, err := s.Load(ctx)
	require.NoError(t, err)
	assert.Empty(t, got)

	files, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, files, 1)
	assert.Equal(t, "config.yaml", files[0].Name())
}

func TestStore_LoadHandWritten(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	doc := `
custom_links:
  - id: custom_link_1
    href: " https://example.com "
    location: nav
    active: "yes"
  - id: custom_link_2
    href: /docs
    location: menu
    active: off
    tooltip: Documentation
`
	require.NoError(t, os.WriteFile(path, []byte(doc), 0o644))

	got, err := yamlfile.New(path, testLogger()).Load(context.Background())
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "https://example.com", got[0].Record.Href)
	assert.True(t, got[0].Record.Active)
	assert.False(t, got[1].Record.Active)
	assert.Equal(t, "Documentation", got[1].Record.Extra["tooltip"])
}

func TestStore_LoadErrors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"not yaml", "custom_links: [", "parse links file"},
		{"numeric id", "custom_links:\n  - id: 7\n    href: /a\n    location: nav\n", "id must be a string"},
		{"list href", "custom_links:\n  - id: custom_link_1\n    href: [a]\n    location: nav\n", "href must be a string"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(t.TempDir(), "config.yaml")
			require.NoError(t, os.WriteFile(path, []byte(tt.doc), 0o644))

			_, err := yamlfile.New(path, testLogger()).Load(context.Background())
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestStore_RegistryRoundTrip(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "config.yaml")

	r, err := links.Open(ctx, yamlfile.New(path, testLogger()), &links.RegistryConfig{Logger: testLogger()})
	require.NoError(t, err)

	id, err := r.Add(ctx, links.Fields{"href": "https://example.com", "location": "menu", "active": "1"})
	require.NoError(t, err)
	_, err = r.Update(ctx, id, links.Fields{"icon": "fa-link"})
	require.NoError(t, err)

	reopened, err := links.Open(ctx, yamlfile.New(path, testLogger()), &links.RegistryConfig{Logger: testLogger()})
	require.NoError(t, err)

	got, err := reopened.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "fa-link", got.Record.Icon)
	assert.Equal(t, []links.Entry{got}, reopened.MenuLinks(ctx))
}
