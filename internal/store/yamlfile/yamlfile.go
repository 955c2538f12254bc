// Package yamlfile persists the link collection in a YAML configuration
// file under the custom_links key. Other top-level sections of the file
// belong to the host and are written back untouched.
package yamlfile

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"maps"
	"os"
	"path/filepath"
	"slices"

	"gopkg.in/yaml.v3"

	"github.com/sundayezeilo/customlinks/internal/links"
)

const (
	documentKey = "custom_links"
	fileMode    = 0o644
)

// fixedKeys are written first, in this order; extra attributes follow sorted.
var fixedKeys = []string{"id", "href", "icon", "location", "active"}

type document struct {
	CustomLinks []map[string]any `yaml:"custom_links"`
}

// Store reads and rewrites a single YAML file.
type Store struct {
	path   string
	logger *slog.Logger
}

var _ links.Store = (*Store)(nil)

// New returns a store backed by the file at path. The file is created on
// the first Save.
func New(path string, logger *slog.Logger) *Store {
	if logger == nil {
		logger = slog.Default()
	}
	return &Store{
		path:   path,
		logger: logger.With("component", "store", "file", path),
	}
}

// Load parses the file. A missing file is an empty collection.
func (s *Store) Load(ctx context.Context) ([]links.Entry, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.logger.Debug("links file does not exist yet")
		return []links.Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read links file: %w", err)
	}

	var doc document
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse links file: %w", err)
	}

	out := make([]links.Entry, 0, len(doc.CustomLinks))
	for i, item := range doc.CustomLinks {
		id, ok := item["id"].(string)
		if !ok {
			return nil, fmt.Errorf("%s[%d]: id must be a string, got %T", documentKey, i, item["id"])
		}
		rec, err := links.DecodeRecord(item)
		if err != nil {
			return nil, fmt.Errorf("%s[%d]: %w", documentKey, i, err)
		}
		out = append(out, links.Entry{ID: id, Record: rec})
	}
	return out, nil
}

// Save replaces the custom_links section of the file, writes the whole
// document to a temporary file next to the target and renames it into place.
func (s *Store) Save(ctx context.Context, entries []links.Entry) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := s.readDocument()
	if err != nil {
		return err
	}

	seq, err := encode(entries)
	if err != nil {
		return fmt.Errorf("encode links: %w", err)
	}
	setSection(doc, documentKey, seq)

	data, err := yaml.Marshal(doc)
	if err != nil {
		return fmt.Errorf("encode links file: %w", err)
	}
	if err := writeAtomic(s.path, data); err != nil {
		return err
	}

	s.logger.Debug("links file written", "links", len(entries), "bytes", len(data))
	return nil
}

// readDocument parses the current file as a node tree. A missing or empty
// file yields a document with an empty top-level mapping.
func (s *Store) readDocument() (*yaml.Node, error) {
	doc := &yaml.Node{Kind: yaml.DocumentNode}

	data, err := os.ReadFile(s.path)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("read links file: %w", err)
	}
	if len(data) > 0 {
		if err := yaml.Unmarshal(data, doc); err != nil {
			return nil, fmt.Errorf("parse links file: %w", err)
		}
	}

	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		doc = &yaml.Node{Kind: yaml.DocumentNode}
		doc.Content = []*yaml.Node{{Kind: yaml.MappingNode}}
	}
	if doc.Content[0].Kind != yaml.MappingNode {
		return nil, errors.New("links file: top level must be a mapping")
	}
	return doc, nil
}

// setSection replaces the value under key in the top-level mapping of doc,
// appending the key when absent.
func setSection(doc *yaml.Node, key string, value *yaml.Node) {
	root := doc.Content[0]
	for i := 0; i+1 < len(root.Content); i += 2 {
		if root.Content[i].Value == key {
			root.Content[i+1] = value
			return
		}
	}
	root.Content = append(root.Content, keyNode(key), value)
}

func encode(entries []links.Entry) (*yaml.Node, error) {
	seq := &yaml.Node{Kind: yaml.SequenceNode}
	for _, e := range entries {
		n, err := entryNode(e)
		if err != nil {
			return nil, fmt.Errorf("link %s: %w", e.ID, err)
		}
		seq.Content = append(seq.Content, n)
	}
	return seq, nil
}

func entryNode(e links.Entry) (*yaml.Node, error) {
	p := e.Record.Payload()
	p["id"] = e.ID

	keys := slices.Clone(fixedKeys)
	for _, k := range slices.Sorted(maps.Keys(p)) {
		if !slices.Contains(fixedKeys, k) {
			keys = append(keys, k)
		}
	}

	n := &yaml.Node{Kind: yaml.MappingNode}
	for _, k := range keys {
		var v yaml.Node
		if err := v.Encode(p[k]); err != nil {
			return nil, fmt.Errorf("%s: %w", k, err)
		}
		n.Content = append(n.Content, keyNode(k), &v)
	}
	return n, nil
}

func keyNode(k string) *yaml.Node {
	return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k}
}

func writeAtomic(path string, data []byte) (err error) {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("create links directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	defer func() {
		if err != nil {
			_ = tmp.Close()
			_ = os.Remove(tmp.Name())
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err = tmp.Chmod(fileMode); err != nil {
		return fmt.Errorf("chmod temp file: %w", err)
	}
	if err = tmp.Sync(); err != nil {
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err = os.Rename(tmp.Name(), path); err != nil {
		return fmt.Errorf("replace links file: %w", err)
	}
	return nil
}
