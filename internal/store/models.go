package store

import "time"

// File is the per-file row: one per scanned source file.
type File struct {
	Path      string
	Hash      string
	Language  string
	LineCount int
	SizeBytes int64
}

// Entry is one chunk to index. Entries are keyed by (file path, ChunkID).
type Entry struct {
	ChunkID   string
	Kind      string
	Parent    string
	StartLine int
	EndLine   int
	Code      string
	Summary   string
	// Document is the text that was embedded.
	Document string
	Imports  []string
	// Embedding may be nil when the embedder was unavailable.
	Embedding []float32
}

// ChunkRecord is a stored chunk.
type ChunkRecord struct {
	FilePath  string
	Language  string
	ChunkID   string
	Kind      string
	Parent    string
	StartLine int
	EndLine   int
	Code      string
	CodeHash  string
	Summary   string
	Document  string
	Imports   []string
}

// Indexed is what the store holds for one chunk of a file.
type Indexed struct {
	CodeHash  string
	Document  string
	Embedding []float32 // nil when stored without a vector
}

// FileSummary is a lightweight file listing.
type FileSummary struct {
	Path      string
	Language  string
	LineCount int
	Chunks    int
	IndexedAt time.Time
}

// SearchResult is a chunk with its distance to the query.
type SearchResult struct {
	ChunkRecord
	Distance float64
}

// Run records one documenting pass.
type Run struct {
	ID             string
	StartedAt      time.Time
	FinishedAt     time.Time
	DryRun         bool
	FilesScanned   int
	FilesModified  int
	ChunksInjected int
	Failures       int
}

// Counts summarises the store's contents.
type Counts struct {
	Files   int
	Chunks  int
	Vectors int
}
