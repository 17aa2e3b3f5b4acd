package store

import (
	"context"
	"database/sql"
	"encoding/binary"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/coder/hnsw"
	_ "modernc.org/sqlite"

	"github.com/codescout-dev/codescout/internal/xerrors"
)

// searchOverfetch multiplies the ANN candidate count when filters are
// present, so post-filtering still fills the requested limit.
const searchOverfetch = 4

// DefaultSearchLimit caps results when the caller gives no limit.
const DefaultSearchLimit = 10

// VectorStore keeps chunk rows in SQLite and an in-memory HNSW graph
// over their vectors for similarity search. One store per project
// index directory; the graph is rebuilt from the rows on Connect.
type VectorStore struct {
	mu  sync.RWMutex
	dir string
	db  *sql.DB

	graph   *hnsw.Graph[uint64]
	idMap   map[string]uint64
	keyMap  map[uint64]string
	nextKey uint64

	dims      int
	connected bool
	closed    bool
}

// NewVectorStore creates a store for the given project index
// directory. Call Connect before any other operation.
func NewVectorStore(indexDir string) *VectorStore {
	return &VectorStore{dir: indexDir}
}

// Connect opens the database, creates the chunks table if missing,
// and rebuilds the in-memory graph from the stored rows. Idempotent.
func (s *VectorStore) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return xerrors.Storage("store is closed", nil)
	}
	if s.connected {
		return nil
	}

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return xerrors.Storage("create index directory", err)
	}

	dbPath := filepath.Join(s.dir, ChunksDBFileName)
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return xerrors.Storage("open database", err)
	}

	// Single writer; SQLite serializes writes anyway and one
	// connection avoids lock contention.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	// WAL must be set via PRAGMA for modernc.org/sqlite.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA temp_store = MEMORY",
	}
	for _, pragma := range pragmas {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return xerrors.Storage("set pragma", err)
		}
	}

	schema := `
	CREATE TABLE IF NOT EXISTS chunks (
		id          TEXT PRIMARY KEY,
		file_path   TEXT NOT NULL,
		code        TEXT NOT NULL,
		start_line  INTEGER NOT NULL,
		end_line    INTEGER NOT NULL,
		file_hash   TEXT NOT NULL,
		chunk_type  TEXT NOT NULL,
		language    TEXT NOT NULL,
		symbol_name TEXT NOT NULL DEFAULT '',
		vector      BLOB NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_chunks_file_path ON chunks(file_path);
	`
	if _, err := db.ExecContext(ctx, schema); err != nil {
		_ = db.Close()
		return xerrors.Storage("initialize schema", err)
	}

	s.db = db
	s.resetGraphLocked()

	if err := s.rebuildGraphLocked(ctx); err != nil {
		_ = db.Close()
		s.db = nil
		return err
	}

	s.connected = true
	return nil
}

// resetGraphLocked creates a fresh empty graph. Caller holds mu.
func (s *VectorStore) resetGraphLocked() {
	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = 16
	graph.EfSearch = 20
	graph.Ml = 0.25

	s.graph = graph
	s.idMap = make(map[string]uint64)
	s.keyMap = make(map[uint64]string)
	s.nextKey = 0
	s.dims = 0
}

// rebuildGraphLocked loads every stored vector into the graph.
func (s *VectorStore) rebuildGraphLocked(ctx context.Context) error {
	rows, err := s.db.QueryContext(ctx, `SELECT id, vector FROM chunks`)
	if err != nil {
		return xerrors.Storage("load vectors", err)
	}
	defer func() { _ = rows.Close() }()

	count := 0
	for rows.Next() {
		var id string
		var blob []byte
		if err := rows.Scan(&id, &blob); err != nil {
			return xerrors.Storage("scan vector row", err)
		}
		vec := decodeVector(blob)
		if len(vec) == 0 {
			continue
		}
		s.addToGraphLocked(id, vec)
		count++
	}
	if err := rows.Err(); err != nil {
		return xerrors.Storage("iterate vector rows", err)
	}

	if count > 0 {
		slog.Debug("vector graph rebuilt", slog.Int("vectors", count))
	}
	return nil
}

// addToGraphLocked inserts one normalized vector. Caller holds mu.
func (s *VectorStore) addToGraphLocked(id string, vec []float32) {
	if s.dims == 0 {
		s.dims = len(vec)
	}

	// Lazy deletion: orphan the old node rather than removing it
	// from the graph; the mappings are authoritative.
	if oldKey, exists := s.idMap[id]; exists {
		delete(s.keyMap, oldKey)
		delete(s.idMap, id)
	}

	normalized := make([]float32, len(vec))
	copy(normalized, vec)
	normalizeVectorInPlace(normalized)

	key := s.nextKey
	s.nextKey++
	s.graph.Add(hnsw.MakeNode(key, normalized))
	s.idMap[id] = key
	s.keyMap[key] = id
}

// removeFromGraphLocked lazily deletes ids. Caller holds mu.
func (s *VectorStore) removeFromGraphLocked(ids []string) {
	for _, id := range ids {
		if key, exists := s.idMap[id]; exists {
			delete(s.keyMap, key)
			delete(s.idMap, id)
		}
	}
}

// UpsertChunks replaces chunks by file: for each distinct file path in
// the batch, all existing rows for that path are deleted, then the new
// rows inserted. The store has no per-row upsert; replace-by-file is
// what keeps the file-hash-keyed chunk IDs correct.
func (s *VectorStore) UpsertChunks(ctx context.Context, chunks []CodeChunk) error {
	if len(chunks) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnectedLocked(); err != nil {
		return err
	}

	for _, c := range chunks {
		if len(c.Vector) == 0 {
			return xerrors.Storage(fmt.Sprintf("chunk %s has no vector", c.ID), nil)
		}
		if s.dims != 0 && len(c.Vector) != s.dims {
			return xerrors.Storage(fmt.Sprintf(
				"vector dimension mismatch: store has %d, chunk %s has %d",
				s.dims, c.ID, len(c.Vector)), nil)
		}
	}

	paths := make(map[string]struct{})
	for _, c := range chunks {
		paths[c.FilePath] = struct{}{}
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Storage("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for path := range paths {
		if err := s.deleteFileLocked(ctx, tx, path); err != nil {
			return err
		}
	}

	insert, err := tx.PrepareContext(ctx, `
		INSERT INTO chunks (id, file_path, code, start_line, end_line,
			file_hash, chunk_type, language, symbol_name, vector)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return xerrors.Storage("prepare insert", err)
	}
	defer func() { _ = insert.Close() }()

	for _, c := range chunks {
		_, err := insert.ExecContext(ctx, c.ID, c.FilePath, c.Code,
			c.StartLine, c.EndLine, c.FileHash, c.ChunkType, c.Language,
			c.SymbolName, encodeVector(c.Vector))
		if err != nil {
			return xerrors.Storage("insert chunk "+c.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return xerrors.Storage("commit upsert", err)
	}

	// Rows are durable; now mirror into the graph.
	for _, c := range chunks {
		s.addToGraphLocked(c.ID, c.Vector)
	}
	return nil
}

// deleteFileLocked removes one file's rows and graph nodes inside tx.
func (s *VectorStore) deleteFileLocked(ctx context.Context, tx *sql.Tx, path string) error {
	rows, err := tx.QueryContext(ctx, `SELECT id FROM chunks WHERE file_path = ?`, path)
	if err != nil {
		return xerrors.Storage("query existing chunks", err)
	}
	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return xerrors.Storage("scan chunk id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Close(); err != nil {
		return xerrors.Storage("close id rows", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE file_path = ?`, path); err != nil {
		return xerrors.Storage("delete file chunks", err)
	}
	s.removeFromGraphLocked(ids)
	return nil
}

// DeleteFilesChunks removes all chunks for the given relative paths.
func (s *VectorStore) DeleteFilesChunks(ctx context.Context, paths []string) error {
	if len(paths) == 0 {
		return nil
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnectedLocked(); err != nil {
		return err
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return xerrors.Storage("begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	for _, path := range paths {
		if err := s.deleteFileLocked(ctx, tx, path); err != nil {
			return err
		}
	}
	if err := tx.Commit(); err != nil {
		return xerrors.Storage("commit delete", err)
	}
	return nil
}

// Search returns the chunks nearest to vector, filtered and ranked.
func (s *VectorStore) Search(ctx context.Context, vector []float32, filter Filter) ([]SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireConnectedLocked(); err != nil {
		return nil, err
	}
	if len(s.idMap) == 0 {
		return []SearchResult{}, nil
	}
	if s.dims != 0 && len(vector) != s.dims {
		return nil, xerrors.Storage(fmt.Sprintf(
			"query dimension mismatch: store has %d, query has %d",
			s.dims, len(vector)), nil)
	}

	limit := filter.Limit
	if limit <= 0 {
		limit = DefaultSearchLimit
	}

	filtered := filter.Language != "" || filter.ChunkType != "" ||
		filter.FilePattern != "" || filter.MinScore > 0
	k := limit
	if filtered {
		k = limit * searchOverfetch
	}
	// Lazy-deleted nodes still occupy the graph; widen so live
	// candidates are not crowded out.
	if orphans := s.graph.Len() - len(s.idMap); orphans > 0 {
		k += orphans
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeVectorInPlace(query)

	nodes := s.graph.Search(query, k)

	type candidate struct {
		id       string
		distance float32
		score    float32
	}
	candidates := make([]candidate, 0, len(nodes))
	ids := make([]string, 0, len(nodes))
	for _, node := range nodes {
		id, live := s.keyMap[node.Key]
		if !live {
			continue
		}
		distance, score := scoreFromDistance(s.graph.Distance(query, node.Value))
		candidates = append(candidates, candidate{id: id, distance: distance, score: score})
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return []SearchResult{}, nil
	}

	chunks, err := s.fetchChunksLocked(ctx, ids, filter)
	if err != nil {
		return nil, err
	}

	results := make([]SearchResult, 0, limit)
	for _, cand := range candidates {
		chunk, ok := chunks[cand.id]
		if !ok {
			continue // filtered out by SQL
		}
		if filter.MinScore > 0 && cand.score < filter.MinScore {
			continue
		}
		results = append(results, SearchResult{
			Chunk:    chunk,
			Score:    cand.score,
			Distance: cand.distance,
		})
		if len(results) == limit {
			break
		}
	}
	return results, nil
}

// fetchChunksLocked hydrates candidate rows, applying the equality and
// substring filters in SQL.
func (s *VectorStore) fetchChunksLocked(ctx context.Context, ids []string, filter Filter) (map[string]CodeChunk, error) {
	placeholders := strings.Repeat("?,", len(ids))
	placeholders = placeholders[:len(placeholders)-1]

	query := `SELECT id, file_path, code, start_line, end_line, file_hash,
		chunk_type, language, symbol_name FROM chunks WHERE id IN (` + placeholders + `)`
	args := make([]any, 0, len(ids)+3)
	for _, id := range ids {
		args = append(args, id)
	}
	if filter.Language != "" {
		query += ` AND language = ?`
		args = append(args, filter.Language)
	}
	if filter.ChunkType != "" {
		query += ` AND chunk_type = ?`
		args = append(args, filter.ChunkType)
	}
	if filter.FilePattern != "" {
		query += ` AND file_path LIKE ?`
		args = append(args, "%"+filter.FilePattern+"%")
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, xerrors.Storage("hydrate search results", err)
	}
	defer func() { _ = rows.Close() }()

	chunks := make(map[string]CodeChunk, len(ids))
	for rows.Next() {
		var c CodeChunk
		if err := rows.Scan(&c.ID, &c.FilePath, &c.Code, &c.StartLine,
			&c.EndLine, &c.FileHash, &c.ChunkType, &c.Language, &c.SymbolName); err != nil {
			return nil, xerrors.Storage("scan chunk row", err)
		}
		chunks[c.ID] = c
	}
	if err := rows.Err(); err != nil {
		return nil, xerrors.Storage("iterate chunk rows", err)
	}
	return chunks, nil
}

// CountRows returns the number of stored chunks.
func (s *VectorStore) CountRows(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.requireConnectedLocked(); err != nil {
		return 0, err
	}

	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM chunks`).Scan(&count); err != nil {
		return 0, xerrors.Storage("count rows", err)
	}
	return count, nil
}

// SizeOnDisk returns the total size of the database files in bytes.
func (s *VectorStore) SizeOnDisk() (int64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	base := filepath.Join(s.dir, ChunksDBFileName)
	var total int64
	for _, path := range []string{base, base + "-wal", base + "-shm"} {
		info, err := os.Stat(path)
		if err != nil {
			if os.IsNotExist(err) {
				continue
			}
			return 0, xerrors.Storage("stat database file", err)
		}
		total += info.Size()
	}
	return total, nil
}

// DropTable removes every chunk and resets the graph. Used for full
// rebuilds when the embedding model changes or a rebuild is forced.
func (s *VectorStore) DropTable(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.requireConnectedLocked(); err != nil {
		return err
	}

	if _, err := s.db.ExecContext(ctx, `DELETE FROM chunks`); err != nil {
		return xerrors.Storage("drop chunks", err)
	}
	s.resetGraphLocked()
	return nil
}

// Close releases the database. Safe to call more than once.
func (s *VectorStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil
	}
	s.closed = true
	s.connected = false
	s.graph = nil

	if s.db != nil {
		err := s.db.Close()
		s.db = nil
		if err != nil {
			return xerrors.Storage("close database", err)
		}
	}
	return nil
}

func (s *VectorStore) requireConnectedLocked() error {
	if s.closed {
		return xerrors.Storage("store is closed", nil)
	}
	if !s.connected {
		return xerrors.Storage("store is not connected", nil)
	}
	return nil
}

// encodeVector packs a float32 slice into a little-endian blob.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4*len(vec))
	for i, v := range vec {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
	return buf
}

// decodeVector unpacks a blob written by encodeVector.
func decodeVector(buf []byte) []float32 {
	vec := make([]float32, len(buf)/4)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return vec
}

// normalizeVectorInPlace scales v to unit length. Cosine distance on
// unit vectors is what keeps the distance range meaningful.
func normalizeVectorInPlace(v []float32) {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}
	if sumSquares == 0 {
		return
	}
	inv := float32(1.0 / math.Sqrt(sumSquares))
	for i := range v {
		v[i] *= inv
	}
}

// scoreFromDistance is the single place distance becomes score. Raw
// cosine distance on unit vectors ranges over [0, 2]; it is halved to
// the documented [0, 1] range, and score = 1 - distance.
func scoreFromDistance(raw float32) (distance, score float32) {
	distance = raw / 2
	if distance < 0 {
		distance = 0
	}
	if distance > 1 {
		distance = 1
	}
	return distance, 1 - distance
}
