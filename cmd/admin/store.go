package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"livemap.ai/internal/persistence/mapstore"
	"livemap.ai/internal/sim/tuning"
	"livemap.ai/internal/sim/world/feature/livemap/blocks"
)

func importCmd(args []string) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dbPath := fs.String("db", "./data/maps.sqlite", "map store path")
	mapNum := fs.Int("map", -1, "map number (required)")
	file := fs.String("file", "", "raw land file (required)")
	_ = fs.Parse(args)

	if *mapNum < 0 || *mapNum > 255 {
		fmt.Fprintln(os.Stderr, "missing or bad -map")
		os.Exit(2)
	}
	if strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "missing -file")
		os.Exit(2)
	}

	f, err := os.Open(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer f.Close()

	store, err := mapstore.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := store.ImportLand(context.Background(), uint8(*mapNum), f)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	fmt.Printf("import ok: map=%d blocks=%d db=%s\n", *mapNum, n, *dbPath)
}

func importStaticsCmd(args []string) {
	fs := flag.NewFlagSet("import-statics", flag.ExitOnError)
	dbPath := fs.String("db", "./data/maps.sqlite", "map store path")
	mapNum := fs.Int("map", -1, "map number (required)")
	idxPath := fs.String("idx", "", "statics index file (required)")
	file := fs.String("file", "", "statics data file (required)")
	_ = fs.Parse(args)

	if *mapNum < 0 || *mapNum > 255 {
		fmt.Fprintln(os.Stderr, "missing or bad -map")
		os.Exit(2)
	}
	if strings.TrimSpace(*idxPath) == "" || strings.TrimSpace(*file) == "" {
		fmt.Fprintln(os.Stderr, "missing -idx or -file")
		os.Exit(2)
	}

	idx, err := os.Open(*idxPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer idx.Close()
	data, err := os.Open(*file)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open:", err)
		os.Exit(1)
	}
	defer data.Close()

	store, err := mapstore.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	n, err := store.ImportStatics(context.Background(), uint8(*mapNum), idx, data)
	if err != nil {
		fmt.Fprintln(os.Stderr, "import:", err)
		os.Exit(1)
	}
	fmt.Printf("import ok: map=%d statics_blocks=%d db=%s\n", *mapNum, n, *dbPath)
}

func mapsCmd(args []string) {
	fs := flag.NewFlagSet("maps", flag.ExitOnError)
	dbPath := fs.String("db", "./data/maps.sqlite", "map store path")
	tuningPath := fs.String("tuning", "./configs/tuning.yaml", "path to tuning.yaml (defaults are used when missing)")
	_ = fs.Parse(args)

	tune, err := tuning.Load(*tuningPath)
	if err != nil {
		if !os.IsNotExist(err) {
			fmt.Fprintln(os.Stderr, "load tuning:", err)
			os.Exit(1)
		}
		tune = tuning.Defaults()
	}

	store, err := mapstore.Open(*dbPath)
	if err != nil {
		fmt.Fprintln(os.Stderr, "open store:", err)
		os.Exit(1)
	}
	defer store.Close()

	for _, m := range tune.Maps {
		n, err := store.CountLand(context.Background(), m.Number)
		if err != nil {
			fmt.Fprintln(os.Stderr, "count:", err)
			os.Exit(1)
		}
		st, err := store.CountStatics(context.Background(), m.Number)
		if err != nil {
			fmt.Fprintln(os.Stderr, "count:", err)
			os.Exit(1)
		}
		g, err := blocks.NewGrid(m)
		if err != nil {
			fmt.Fprintln(os.Stderr, "map:", err)
			os.Exit(1)
		}
		fmt.Printf("map=%d size=%dx%d land_blocks=%d/%d statics_blocks=%d\n", m.Number, m.WidthTiles, m.HeightTiles, n, g.Count(), st)
	}
}
