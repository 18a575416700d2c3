package main

import (
	"bufio"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/klauspost/compress/zstd"

	"livemap.ai/internal/sim/world"
)

func crossingsCmd(args []string) {
	fs := flag.NewFlagSet("crossings", flag.ExitOnError)
	dataDir := fs.String("data", "./data", "runtime data directory")
	player := fs.String("player", "", "player id filter (optional)")
	since := fs.String("since", "", "RFC3339 lower time bound (optional)")
	limit := fs.Int("limit", 50, "print at most the last N entries (0 = all)")
	_ = fs.Parse(args)

	var after time.Time
	if s := strings.TrimSpace(*since); s != "" {
		t, err := time.Parse(time.RFC3339, s)
		if err != nil {
			fmt.Fprintln(os.Stderr, "bad -since:", err)
			os.Exit(2)
		}
		after = t
	}

	recs, err := readCrossings(filepath.Join(*dataDir, "crossings"), strings.TrimSpace(*player), after)
	if err != nil {
		fmt.Fprintln(os.Stderr, "read crossings:", err)
		os.Exit(1)
	}
	if *limit > 0 && len(recs) > *limit {
		recs = recs[len(recs)-*limit:]
	}
	enc := json.NewEncoder(os.Stdout)
	for _, r := range recs {
		_ = enc.Encode(r)
	}
}

// readCrossings reads every hourly crossing file in dir in time order.
func readCrossings(dir, playerID string, after time.Time) ([]world.CrossingLogEntry, error) {
	ents, err := os.ReadDir(dir)
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(ents))
	for _, e := range ents {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl.zst") {
			continue
		}
		names = append(names, e.Name())
	}
	// Hour stamps sort lexically.
	sort.Strings(names)

	var out []world.CrossingLogEntry
	for _, name := range names {
		if err := scanCrossingFile(filepath.Join(dir, name), func(e world.CrossingLogEntry) {
			if playerID != "" && e.PlayerID != playerID {
				return
			}
			if !after.IsZero() && e.Time.Before(after) {
				return
			}
			out = append(out, e)
		}); err != nil {
			return nil, fmt.Errorf("%s: %w", name, err)
		}
	}
	return out, nil
}

func scanCrossingFile(path string, fn func(world.CrossingLogEntry)) error {
	f, err := os.Open(path)
	if err != nil {
		return err
	}
	defer f.Close()
	dec, err := zstd.NewReader(f)
	if err != nil {
		return err
	}
	defer dec.Close()

	sc := bufio.NewScanner(dec)
	sc.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for sc.Scan() {
		var e world.CrossingLogEntry
		if err := json.Unmarshal(sc.Bytes(), &e); err != nil {
			return err
		}
		fn(e)
	}
	return sc.Err()
}
