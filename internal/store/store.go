// Package store persists indexed files, chunks and their embeddings in
// SQLite, with sqlite-vec providing nearest-neighbour search.
package store

import (
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	sqlite_vec "github.com/asg017/sqlite-vec-go-bindings/cgo"
	_ "github.com/mattn/go-sqlite3"
	"github.com/zeebo/xxh3"
)

func init() {
	sqlite_vec.Auto()
}

// Meta keys.
const (
	MetaEmbeddingModel = "embedding_model"
	MetaEmbeddingDim   = "embedding_dim"
)

var (
	// ErrIndexEmpty is returned by Search before any vectors were stored.
	ErrIndexEmpty = errors.New("index is empty")
	// ErrNotFound is returned when a file or chunk is not in the store.
	ErrNotFound = errors.New("not found")
)

// Store provides persistence for indexed files, chunks, and embeddings.
type Store interface {
	// GetFileHash returns the stored hash for a path, or "" if not indexed.
	GetFileHash(path string) (string, error)
	// SetFileHash records the fingerprint of a file as it is on disk now.
	SetFileHash(f File) error
	// PrepareVectors readies the vector table for the given embedding model.
	// A different model or dimension than before drops every vector and file
	// row, so the next run re-indexes everything. Creating the table for the
	// first time clears stored fingerprints for the same reason.
	PrepareVectors(model string, dim int) (reset bool, err error)
	// ReplaceFile replaces all chunks of a file with entries.
	ReplaceFile(f File, entries []Entry) error
	// IndexedChunks returns the stored chunks of a file keyed by chunk ID.
	IndexedChunks(path string) (map[string]Indexed, error)
	// Search finds the top-k chunks closest to the query embedding.
	Search(queryEmbedding []float32, k int) ([]SearchResult, error)
	// ListFiles returns every indexed file, ordered by path.
	ListFiles() ([]FileSummary, error)
	// ListChunks returns every stored chunk, ordered by file and line.
	ListChunks() ([]ChunkRecord, error)
	// GetChunk returns one chunk by file path and chunk ID.
	GetChunk(path, chunkID string) (*ChunkRecord, error)
	// RecordRun stores a finished run.
	RecordRun(r Run) error
	// LastRun returns the most recent run, or ErrNotFound.
	LastRun() (*Run, error)
	// Counts returns row counts for status output.
	Counts() (Counts, error)
	// GetMeta returns a metadata value by key, or "" if not set.
	GetMeta(key string) (string, error)
	// SetMeta sets a metadata key-value pair.
	SetMeta(key, value string) error
	// Close closes the underlying database.
	Close() error
}

// SQLiteStore implements Store backed by SQLite + sqlite-vec.
type SQLiteStore struct {
	db *sql.DB

	mu  sync.RWMutex
	dim int
}

// Open creates or opens a SQLite database at the given path and initializes the schema.
func Open(dbPath string) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("create db dir: %w", err)
	}
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_foreign_keys=on&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}
	// One connection serialises writers from concurrent pipeline workers.
	db.SetMaxOpenConns(1)
	if err := Init(db); err != nil {
		db.Close()
		return nil, fmt.Errorf("init schema: %w", err)
	}

	s := &SQLiteStore{db: db}
	if err := s.loadDim(); err != nil {
		db.Close()
		return nil, fmt.Errorf("load vector config: %w", err)
	}
	return s, nil
}

func (s *SQLiteStore) loadDim() error {
	raw, err := s.GetMeta(MetaEmbeddingDim)
	if err != nil || raw == "" {
		return err
	}
	dim, err := strconv.Atoi(raw)
	if err != nil {
		return fmt.Errorf("bad %s %q: %w", MetaEmbeddingDim, raw, err)
	}
	if _, err := s.db.Exec(vectorDDL(dim)); err != nil {
		return err
	}
	s.dim = dim
	return nil
}

// Dim returns the embedding dimension of the vector table, or 0.
func (s *SQLiteStore) Dim() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.dim
}

func (s *SQLiteStore) GetFileHash(path string) (string, error) {
	var hash string
	err := s.db.QueryRow("SELECT hash FROM files WHERE path = ?", path).Scan(&hash)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return hash, err
}

func (s *SQLiteStore) SetFileHash(f File) error {
	_, err := s.db.Exec(`
		INSERT INTO files (path, hash, language, line_count, size_bytes) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(path) DO UPDATE SET
			hash = excluded.hash,
			line_count = excluded.line_count,
			size_bytes = excluded.size_bytes`,
		f.Path, f.Hash, f.Language, f.LineCount, f.SizeBytes,
	)
	return err
}

func (s *SQLiteStore) PrepareVectors(model string, dim int) (bool, error) {
	if dim <= 0 {
		return false, fmt.Errorf("invalid embedding dimension %d", dim)
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	prevModel, err := s.GetMeta(MetaEmbeddingModel)
	if err != nil {
		return false, err
	}
	if s.dim == dim && prevModel == model {
		return false, nil
	}
	reset := s.dim != 0 || prevModel != ""

	tx, err := s.db.Begin()
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DROP TABLE IF EXISTS vec_chunks"); err != nil {
		return false, fmt.Errorf("drop vectors: %w", err)
	}
	if _, err := tx.Exec(vectorDDL(dim)); err != nil {
		return false, fmt.Errorf("create vectors: %w", err)
	}
	stmt := "DELETE FROM files"
	if !reset {
		// Files fingerprinted before indexing was enabled have no chunks yet.
		stmt = "UPDATE files SET hash = ''"
	}
	if _, err := tx.Exec(stmt); err != nil {
		return false, err
	}
	for k, v := range map[string]string{MetaEmbeddingModel: model, MetaEmbeddingDim: strconv.Itoa(dim)} {
		if _, err := tx.Exec(
			"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
			k, v,
		); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	s.dim = dim
	return reset, nil
}

func (s *SQLiteStore) ReplaceFile(f File, entries []Entry) error {
	dim := s.Dim()

	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	fileID, err := upsertFile(tx, f, dim > 0)
	if err != nil {
		return fmt.Errorf("upsert file %s: %w", f.Path, err)
	}

	stmt, err := tx.Prepare(`
		INSERT INTO chunks (file_id, symbol, kind, parent, start_line, end_line, code, code_hash, summary, document, imports)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	var vecStmt *sql.Stmt
	if dim > 0 {
		vecStmt, err = tx.Prepare("INSERT INTO vec_chunks (chunk_id, embedding) VALUES (?, ?)")
		if err != nil {
			return err
		}
		defer vecStmt.Close()
	}

	for _, e := range dedupEntries(entries) {
		imports, err := json.Marshal(e.Imports)
		if err != nil {
			return err
		}
		if e.Imports == nil {
			imports = []byte("[]")
		}
		res, err := stmt.Exec(fileID, e.ChunkID, e.Kind, e.Parent, e.StartLine, e.EndLine,
			e.Code, CodeHash(e.Code), e.Summary, e.Document, string(imports))
		if err != nil {
			return fmt.Errorf("insert chunk %s: %w", e.ChunkID, err)
		}
		if vecStmt == nil || len(e.Embedding) != dim {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return err
		}
		blob, err := sqlite_vec.SerializeFloat32(e.Embedding)
		if err != nil {
			return fmt.Errorf("serialize embedding for %s: %w", e.ChunkID, err)
		}
		if _, err := vecStmt.Exec(id, blob); err != nil {
			return fmt.Errorf("insert embedding for %s: %w", e.ChunkID, err)
		}
	}
	return tx.Commit()
}

func (s *SQLiteStore) IndexedChunks(path string) (map[string]Indexed, error) {
	query := `
		SELECT c.symbol, c.code_hash, c.document, NULL
		FROM chunks c JOIN files f ON f.id = c.file_id
		WHERE f.path = ?`
	if s.Dim() > 0 {
		query = `
		SELECT c.symbol, c.code_hash, c.document, v.embedding
		FROM chunks c JOIN files f ON f.id = c.file_id
		LEFT JOIN vec_chunks v ON v.chunk_id = c.id
		WHERE f.path = ?`
	}
	rows, err := s.db.Query(query, path)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := make(map[string]Indexed)
	for rows.Next() {
		var id string
		var c Indexed
		var blob []byte
		if err := rows.Scan(&id, &c.CodeHash, &c.Document, &blob); err != nil {
			return nil, err
		}
		c.Embedding = decodeFloat32(blob)
		out[id] = c
	}
	return out, rows.Err()
}

// decodeFloat32 reverses sqlite_vec.SerializeFloat32.
func decodeFloat32(blob []byte) []float32 {
	if len(blob) == 0 || len(blob)%4 != 0 {
		return nil
	}
	out := make([]float32, len(blob)/4)
	for i := range out {
		out[i] = math.Float32frombits(binary.LittleEndian.Uint32(blob[i*4:]))
	}
	return out
}

// upsertFile inserts or updates a file row and clears its chunks and vectors.
func upsertFile(tx *sql.Tx, f File, vectors bool) (int64, error) {
	var id int64
	err := tx.QueryRow("SELECT id FROM files WHERE path = ?", f.Path).Scan(&id)
	if err == sql.ErrNoRows {
		res, err := tx.Exec(
			"INSERT INTO files (path, hash, language, line_count, size_bytes) VALUES (?, ?, ?, ?, ?)",
			f.Path, f.Hash, f.Language, f.LineCount, f.SizeBytes,
		)
		if err != nil {
			return 0, err
		}
		return res.LastInsertId()
	}
	if err != nil {
		return 0, err
	}

	if vectors {
		if _, err := tx.Exec(
			"DELETE FROM vec_chunks WHERE chunk_id IN (SELECT id FROM chunks WHERE file_id = ?)", id,
		); err != nil {
			return 0, err
		}
	}
	if _, err := tx.Exec("DELETE FROM chunks WHERE file_id = ?", id); err != nil {
		return 0, err
	}
	_, err = tx.Exec(
		"UPDATE files SET hash = ?, language = ?, line_count = ?, size_bytes = ?, indexed_at = CURRENT_TIMESTAMP WHERE id = ?",
		f.Hash, f.Language, f.LineCount, f.SizeBytes, id,
	)
	return id, err
}

// dedupEntries keeps the last entry for each chunk ID, in first-seen order.
func dedupEntries(entries []Entry) []Entry {
	pos := make(map[string]int, len(entries))
	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		if i, ok := pos[e.ChunkID]; ok {
			out[i] = e
			continue
		}
		pos[e.ChunkID] = len(out)
		out = append(out, e)
	}
	return out
}

// CodeHash returns the hex xxh3 hash of code.
func CodeHash(code string) string {
	return strconv.FormatUint(xxh3.HashString(code), 16)
}

const chunkColumns = `f.path, f.language, c.symbol, c.kind, c.parent, c.start_line, c.end_line,
	c.code, c.code_hash, c.summary, c.document, c.imports`

func scanChunk(row interface{ Scan(...any) error }, extra ...any) (ChunkRecord, error) {
	var c ChunkRecord
	var imports string
	dest := append([]any{
		&c.FilePath, &c.Language, &c.ChunkID, &c.Kind, &c.Parent, &c.StartLine, &c.EndLine,
		&c.Code, &c.CodeHash, &c.Summary, &c.Document, &imports,
	}, extra...)
	if err := row.Scan(dest...); err != nil {
		return c, err
	}
	if err := json.Unmarshal([]byte(imports), &c.Imports); err != nil {
		return c, fmt.Errorf("decode imports for %s: %w", c.ChunkID, err)
	}
	return c, nil
}

func (s *SQLiteStore) Search(queryEmbedding []float32, k int) ([]SearchResult, error) {
	dim := s.Dim()
	if dim == 0 {
		return nil, ErrIndexEmpty
	}
	if len(queryEmbedding) != dim {
		return nil, fmt.Errorf("query embedding has %d dimensions, index has %d", len(queryEmbedding), dim)
	}
	if k <= 0 {
		k = 3
	}
	blob, err := sqlite_vec.SerializeFloat32(queryEmbedding)
	if err != nil {
		return nil, fmt.Errorf("serialize query embedding: %w", err)
	}
	rows, err := s.db.Query(`
		WITH knn AS (
			SELECT chunk_id, distance FROM vec_chunks
			WHERE embedding MATCH ? AND k = ?
		)
		SELECT `+chunkColumns+`, knn.distance
		FROM knn
		JOIN chunks c ON c.id = knn.chunk_id
		JOIN files f ON f.id = c.file_id
		ORDER BY knn.distance
	`, blob, k)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var results []SearchResult
	for rows.Next() {
		var r SearchResult
		c, err := scanChunk(rows, &r.Distance)
		if err != nil {
			return nil, err
		}
		r.ChunkRecord = c
		results = append(results, r)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(results) == 0 {
		return nil, ErrIndexEmpty
	}
	return results, nil
}

func (s *SQLiteStore) ListFiles() ([]FileSummary, error) {
	rows, err := s.db.Query(`
		SELECT f.path, f.language, f.line_count, f.indexed_at, COUNT(c.id)
		FROM files f LEFT JOIN chunks c ON c.file_id = f.id
		GROUP BY f.id
		ORDER BY f.path
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []FileSummary
	for rows.Next() {
		var fs FileSummary
		if err := rows.Scan(&fs.Path, &fs.Language, &fs.LineCount, &fs.IndexedAt, &fs.Chunks); err != nil {
			return nil, err
		}
		out = append(out, fs)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetChunk(path, chunkID string) (*ChunkRecord, error) {
	row := s.db.QueryRow(`
		SELECT `+chunkColumns+`
		FROM chunks c JOIN files f ON f.id = c.file_id
		WHERE f.path = ? AND c.symbol = ?`, path, chunkID)
	c, err := scanChunk(row)
	if err == sql.ErrNoRows {
		return nil, fmt.Errorf("chunk %s in %s: %w", chunkID, path, ErrNotFound)
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

func (s *SQLiteStore) ListChunks() ([]ChunkRecord, error) {
	rows, err := s.db.Query(`
		SELECT ` + chunkColumns + `
		FROM chunks c JOIN files f ON f.id = c.file_id
		ORDER BY f.path, c.start_line`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []ChunkRecord
	for rows.Next() {
		c, err := scanChunk(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) RecordRun(r Run) error {
	_, err := s.db.Exec(`
		INSERT INTO runs (id, started_at, finished_at, dry_run, files_scanned, files_modified, chunks_injected, failures)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		r.ID, r.StartedAt.UTC(), r.FinishedAt.UTC(), r.DryRun,
		r.FilesScanned, r.FilesModified, r.ChunksInjected, r.Failures,
	)
	return err
}

func (s *SQLiteStore) LastRun() (*Run, error) {
	var r Run
	err := s.db.QueryRow(`
		SELECT id, started_at, finished_at, dry_run, files_scanned, files_modified, chunks_injected, failures
		FROM runs ORDER BY started_at DESC LIMIT 1`,
	).Scan(&r.ID, &r.StartedAt, &r.FinishedAt, &r.DryRun,
		&r.FilesScanned, &r.FilesModified, &r.ChunksInjected, &r.Failures)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

func (s *SQLiteStore) Counts() (Counts, error) {
	var c Counts
	if err := s.db.QueryRow("SELECT COUNT(*) FROM files").Scan(&c.Files); err != nil {
		return c, err
	}
	if err := s.db.QueryRow("SELECT COUNT(*) FROM chunks").Scan(&c.Chunks); err != nil {
		return c, err
	}
	if s.Dim() > 0 {
		if err := s.db.QueryRow("SELECT COUNT(*) FROM vec_chunks").Scan(&c.Vectors); err != nil {
			return c, err
		}
	}
	return c, nil
}

func (s *SQLiteStore) GetMeta(key string) (string, error) {
	var value string
	err := s.db.QueryRow("SELECT value FROM meta WHERE key = ?", key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

func (s *SQLiteStore) SetMeta(key, value string) error {
	_, err := s.db.Exec(
		"INSERT INTO meta (key, value) VALUES (?, ?) ON CONFLICT(key) DO UPDATE SET value = excluded.value",
		key, value,
	)
	return err
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
