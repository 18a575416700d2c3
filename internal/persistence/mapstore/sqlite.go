// Package mapstore keeps the server's authoritative map blocks in sqlite.
// Land blocks are stored raw; statics blocks are zstd compressed.
package mapstore

import (
	"bufio"
	"context"
	"database/sql"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/klauspost/compress/zstd"
	_ "modernc.org/sqlite"

	"livemap.ai/internal/sim/world/feature/livemap/blocks"
	"livemap.ai/internal/sim/world/feature/livemap/hash"
)

// RawLandRecordSize is one block of a raw land file: a 4-byte header
// followed by the 192-byte block.
const RawLandRecordSize = 4 + hash.LandBlockSize

// StaticsIndexRecordSize is one statics index entry: offset into the statics
// file, length and an unused field, each a little-endian int32.
const StaticsIndexRecordSize = 12

type Store struct {
	db  *sql.DB
	enc *zstd.Encoder
	dec *zstd.Decoder
}

func Open(path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("empty db path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, err
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	if err := initPragmas(db); err != nil {
		_ = db.Close()
		return nil, err
	}
	if err := initSchema(db); err != nil {
		_ = db.Close()
		return nil, err
	}

	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		_ = db.Close()
		return nil, err
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		_ = enc.Close()
		_ = db.Close()
		return nil, err
	}
	return &Store{db: db, enc: enc, dec: dec}, nil
}

func initPragmas(db *sql.DB) error {
	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA busy_timeout=5000;",
		"PRAGMA temp_store=MEMORY;",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			return err
		}
	}
	return nil
}

func initSchema(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS land (
			map INTEGER NOT NULL,
			block INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (map, block)
		);`,
		`CREATE TABLE IF NOT EXISTS statics (
			map INTEGER NOT NULL,
			block INTEGER NOT NULL,
			data BLOB NOT NULL,
			PRIMARY KEY (map, block)
		);`,
	}
	for _, s := range stmts {
		if _, err := db.Exec(s); err != nil {
			return err
		}
	}
	return nil
}

func (s *Store) Close() error {
	s.dec.Close()
	err := s.enc.Close()
	if cerr := s.db.Close(); err == nil {
		err = cerr
	}
	return err
}

func (s *Store) PutLand(ctx context.Context, mapNum uint8, id blocks.ID, data []byte) error {
	if len(data) != hash.LandBlockSize {
		return fmt.Errorf("land block %d: %d bytes, want %d", id, len(data), hash.LandBlockSize)
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO land(map, block, data) VALUES(?, ?, ?)
		 ON CONFLICT(map, block) DO UPDATE SET data=excluded.data`,
		int(mapNum), int64(id), data)
	return err
}

func (s *Store) PutStatics(ctx context.Context, mapNum uint8, id blocks.ID, data []byte) error {
	if len(data)%hash.StaticsRecordSize != 0 {
		return fmt.Errorf("statics block %d: %d bytes is not a whole number of records", id, len(data))
	}
	packed := s.enc.EncodeAll(data, nil)
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO statics(map, block, data) VALUES(?, ?, ?)
		 ON CONFLICT(map, block) DO UPDATE SET data=excluded.data`,
		int(mapNum), int64(id), packed)
	return err
}

// ReadLand returns nil, nil for blocks the store does not have.
func (s *Store) ReadLand(ctx context.Context, mapNum uint8, id blocks.ID) ([]byte, error) {
	return s.readBlob(ctx, `SELECT data FROM land WHERE map=? AND block=?`, mapNum, id)
}

// ReadStatics returns nil, nil for blocks without statics.
func (s *Store) ReadStatics(ctx context.Context, mapNum uint8, id blocks.ID) ([]byte, error) {
	packed, err := s.readBlob(ctx, `SELECT data FROM statics WHERE map=? AND block=?`, mapNum, id)
	if err != nil || packed == nil {
		return nil, err
	}
	out, err := s.dec.DecodeAll(packed, nil)
	if err != nil {
		return nil, fmt.Errorf("statics block %d: %w", id, err)
	}
	if out == nil {
		out = []byte{}
	}
	return out, nil
}

func (s *Store) readBlob(ctx context.Context, q string, mapNum uint8, id blocks.ID) ([]byte, error) {
	var data []byte
	err := s.db.QueryRowContext(ctx, q, int(mapNum), int64(id)).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return data, nil
}

// ImportLand loads a raw land file (consecutive RawLandRecordSize records,
// record i being block i) into the given map. It returns the number of
// blocks written.
func (s *Store) ImportLand(ctx context.Context, mapNum uint8, r io.Reader) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO land(map, block, data) VALUES(?, ?, ?)
		 ON CONFLICT(map, block) DO UPDATE SET data=excluded.data`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	br := bufio.NewReaderSize(r, 64*RawLandRecordSize)
	rec := make([]byte, RawLandRecordSize)
	n := 0
	for {
		if _, err := io.ReadFull(br, rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("land record %d truncated", n)
			}
			return 0, err
		}
		if _, err := stmt.ExecContext(ctx, int(mapNum), int64(n), rec[4:]); err != nil {
			return 0, fmt.Errorf("land record %d: %w", n, err)
		}
		n++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return n, nil
}

// ImportStatics loads a statics index (record i describing block i) and the
// statics file it points into. Index entries with a negative offset or no
// length are empty blocks and are skipped. It returns the number of blocks
// written.
func (s *Store) ImportStatics(ctx context.Context, mapNum uint8, idx io.Reader, data io.ReaderAt) (int, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, err
	}
	defer func() { _ = tx.Rollback() }()

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO statics(map, block, data) VALUES(?, ?, ?)
		 ON CONFLICT(map, block) DO UPDATE SET data=excluded.data`)
	if err != nil {
		return 0, err
	}
	defer stmt.Close()

	br := bufio.NewReaderSize(idx, 1024*StaticsIndexRecordSize)
	rec := make([]byte, StaticsIndexRecordSize)
	written := 0
	for block := 0; ; block++ {
		if _, err := io.ReadFull(br, rec); err != nil {
			if errors.Is(err, io.EOF) {
				break
			}
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, fmt.Errorf("statics index record %d truncated", block)
			}
			return 0, err
		}
		offset := int32(binary.LittleEndian.Uint32(rec[0:4]))
		length := int32(binary.LittleEndian.Uint32(rec[4:8]))
		if offset < 0 || length <= 0 {
			continue
		}
		if int(length)%hash.StaticsRecordSize != 0 {
			return 0, fmt.Errorf("statics block %d: length %d is not a whole number of records", block, length)
		}
		buf := make([]byte, length)
		if _, err := io.ReadFull(io.NewSectionReader(data, int64(offset), int64(length)), buf); err != nil {
			return 0, fmt.Errorf("statics block %d: %w", block, err)
		}
		if _, err := stmt.ExecContext(ctx, int(mapNum), int64(block), s.enc.EncodeAll(buf, nil)); err != nil {
			return 0, fmt.Errorf("statics block %d: %w", block, err)
		}
		written++
	}
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	return written, nil
}

// CountStatics reports how many blocks of a map carry statics.
func (s *Store) CountStatics(ctx context.Context, mapNum uint8) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM statics WHERE map=?`, int(mapNum)).Scan(&n)
	return n, err
}

// CountLand reports how many land blocks a map has.
func (s *Store) CountLand(ctx context.Context, mapNum uint8) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM land WHERE map=?`, int(mapNum)).Scan(&n)
	return n, err
}
