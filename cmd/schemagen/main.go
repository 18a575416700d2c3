package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/invopop/jsonschema"

	"livemap.ai/internal/protocol"
)

func main() {
	var outDir string
	flag.StringVar(&outDir, "out", "./schemas", "directory to write one <type>.schema.json per message")
	flag.Parse()

	if strings.TrimSpace(outDir) == "" {
		fmt.Fprintln(os.Stderr, "--out is required")
		os.Exit(1)
	}

	schemas := protocol.Schemas()
	types := make([]string, 0, len(schemas))
	for typ := range schemas {
		types = append(types, typ)
	}
	sort.Strings(types)

	for _, typ := range types {
		path := filepath.Join(outDir, schemaFileName(typ))
		if err := writeSchema(path, schemas[typ]); err != nil {
			fmt.Fprintf(os.Stderr, "failed to write %s schema: %v\n", typ, err)
			os.Exit(1)
		}
		fmt.Println(path)
	}
}

func schemaFileName(typ string) string {
	return strings.ToLower(typ) + ".schema.json"
}

func writeSchema(outPath string, schema *jsonschema.Schema) error {
	data, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal schema: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(outPath), 0o755); err != nil {
		return fmt.Errorf("create schema directory: %w", err)
	}

	tmpPath := outPath + ".tmp"
	if err := os.WriteFile(tmpPath, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write temp schema: %w", err)
	}
	if err := os.Rename(tmpPath, outPath); err != nil {
		return fmt.Errorf("replace schema: %w", err)
	}
	return nil
}
