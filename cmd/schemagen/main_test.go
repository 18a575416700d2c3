package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"livemap.ai/internal/protocol"
)

func TestWriteSchema(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "nested", schemaFileName(protocol.TypeBlockHashes))
	if err := writeSchema(path, protocol.Schemas()[protocol.TypeBlockHashes]); err != nil {
		t.Fatalf("writeSchema: %v", err)
	}
	raw, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var doc map[string]any
	if err := json.Unmarshal(raw, &doc); err != nil {
		t.Fatalf("schema is not json: %v", err)
	}
	if doc["title"] != protocol.TypeBlockHashes {
		t.Fatalf("unexpected title %v", doc["title"])
	}
	if _, err := os.Stat(path + ".tmp"); !os.IsNotExist(err) {
		t.Fatalf("temp file left behind")
	}
	if filepath.Base(path) != "block_hashes.schema.json" {
		t.Fatalf("unexpected name %s", filepath.Base(path))
	}
}
