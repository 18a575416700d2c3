package main

import (
	"testing"
	"time"

	persistlog "livemap.ai/internal/persistence/log"
	"livemap.ai/internal/sim/world"
)

func TestReadCrossings(t *testing.T) {
	dir := t.TempDir()
	l := persistlog.NewCrossingLogger(dir)
	base := time.Now().UTC().Truncate(time.Second)
	entries := []world.CrossingLogEntry{
		{Time: base.Add(-time.Minute), PlayerID: "P1", From: -1, To: 10, Blocks: 25},
		{Time: base, PlayerID: "P2", From: -1, To: 99, Blocks: 25},
		{Time: base.Add(time.Second), PlayerID: "P1", From: 10, To: 11, Blocks: 25},
	}
	for _, e := range entries {
		if err := l.WriteCrossing(e); err != nil {
			t.Fatalf("WriteCrossing: %v", err)
		}
	}
	if err := l.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}

	all, err := readCrossings(dir+"/crossings", "", time.Time{})
	if err != nil {
		t.Fatalf("readCrossings: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(all))
	}

	p1, err := readCrossings(dir+"/crossings", "P1", base)
	if err != nil {
		t.Fatalf("readCrossings: %v", err)
	}
	if len(p1) != 1 || p1[0].To != 11 {
		t.Fatalf("unexpected filtered entries %+v", p1)
	}
}
