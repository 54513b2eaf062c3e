// Package pipeline sequences a documenting run: scan, chunk, annotate,
// inject and index, one task per file.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/afero"
	"golang.org/x/sync/errgroup"

	"docsmith/internal/annotator"
	"docsmith/internal/chunker"
	"docsmith/internal/embedder"
	"docsmith/internal/injector"
	"docsmith/internal/logging"
	"docsmith/internal/scanner"
	"docsmith/internal/store"
)

// Config holds the run configuration.
type Config struct {
	Root        string
	Extensions  []string
	ExcludeDirs []string
	// ExtraExcludeDirs are skipped on top of ExcludeDirs or the defaults.
	ExtraExcludeDirs []string
	Workers          int

	// Index embeds chunks and writes them to the store.
	Index bool
	// IndexOtherLanguages also indexes non-Python sources.
	IndexOtherLanguages bool
	// InjectPlaceholders writes the failure placeholder as a docstring.
	InjectPlaceholders bool
	DryRun             bool
	// Force reprocesses files whose fingerprint is unchanged.
	Force bool
}

// Deps are the collaborators of a Documenter. Embedder and Store may be nil.
type Deps struct {
	Chunker   *chunker.Chunker
	Annotator annotator.Annotator
	Embedder  embedder.Embedder
	Store     store.Store
	Fs        afero.Fs
	Logger    *slog.Logger
	Progress  ProgressFunc
}

// Documenter runs the documenting pipeline over one source tree.
type Documenter struct {
	cfg       Config
	chunker   *chunker.Chunker
	annotator annotator.Annotator
	embedder  embedder.Embedder
	store     store.Store
	fs        afero.Fs
	injector  *injector.Injector
	log       *slog.Logger

	progressMu sync.Mutex
	progress   ProgressFunc
}

// New creates a Documenter.
func New(cfg Config, deps Deps) *Documenter {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	log := logging.OrDiscard(deps.Logger)
	fsys := deps.Fs
	if fsys == nil {
		fsys = afero.NewOsFs()
	}
	return &Documenter{
		cfg:       cfg,
		chunker:   deps.Chunker,
		annotator: deps.Annotator,
		embedder:  deps.Embedder,
		store:     deps.Store,
		fs:        fsys,
		injector:  injector.New(injector.Options{DryRun: cfg.DryRun, Fs: fsys, Logger: log}),
		log:       log,
		progress:  deps.Progress,
	}
}

// fileJob is one file's chunks, owned by a single worker.
type fileJob struct {
	file   scanner.FileRecord
	chunks []chunker.Chunk
	// inject is set for files chunked structurally.
	inject bool
}

// Run executes the pipeline. Per-file failures are collected in Stats and do
// not abort the run; only scan errors and cancellation are returned.
func (d *Documenter) Run(ctx context.Context) (*Stats, error) {
	start := time.Now()
	stats := &Stats{RunID: uuid.NewString(), DryRun: d.cfg.DryRun}

	files, err := scanner.Scan(ctx, d.cfg.Root, scanner.Options{
		Extensions:       d.cfg.Extensions,
		ExcludeDirs:      d.cfg.ExcludeDirs,
		ExtraExcludeDirs: d.cfg.ExtraExcludeDirs,
		Language:         d.chunker.Registry().LanguageName,
		Fs:               d.fs,
		Logger:           d.log,
	})
	if err != nil {
		return nil, fmt.Errorf("scan: %w", err)
	}
	stats.FilesScanned = len(files)
	d.emit(Event{Stage: StageScan, Total: len(files), Message: fmt.Sprintf("found %d files", len(files))})

	indexing := d.prepareIndex(ctx, stats)
	jobs := d.plan(files, indexing, stats)

	var mu sync.Mutex
	var done int
	g := new(errgroup.Group)
	g.SetLimit(d.cfg.Workers)
	for _, job := range jobs {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			res, fileErr := d.processFile(ctx, job, indexing, stats, &mu)

			mu.Lock()
			defer mu.Unlock()
			done++
			if fileErr != nil {
				if errors.Is(fileErr, context.Canceled) || errors.Is(fileErr, context.DeadlineExceeded) {
					return nil
				}
				stats.Failures = append(stats.Failures, FileError{Path: job.file.Path, Err: fileErr})
				d.log.Error("failed to document file", "path", job.file.Path, "err", fileErr)
				d.emit(Event{Stage: StageFail, Path: job.file.Path, Done: done, Total: len(jobs), Err: fileErr})
				return nil
			}
			stats.FilesProcessed++
			stats.addResult(res)
			if d.cfg.DryRun && res.Injected > 0 {
				stats.Previews = append(stats.Previews, res)
			}
			d.emit(Event{
				Stage:   StageInject,
				Path:    job.file.Path,
				Done:    done,
				Total:   len(jobs),
				Message: fmt.Sprintf("%d injected, %d skipped", res.Injected, res.Skipped()),
			})
			return nil
		})
	}
	_ = g.Wait()
	stats.Duration = time.Since(start)

	if err := ctx.Err(); err != nil {
		return stats, err
	}

	if d.store != nil {
		if err := d.store.RecordRun(store.Run{
			ID:             stats.RunID,
			StartedAt:      start,
			FinishedAt:     start.Add(stats.Duration),
			DryRun:         stats.DryRun,
			FilesScanned:   stats.FilesScanned,
			FilesModified:  stats.FilesModified,
			ChunksInjected: stats.ChunksInjected,
			Failures:       len(stats.Failures),
		}); err != nil {
			d.log.Warn("could not record run", "err", err)
		}
	}

	d.emit(Event{Stage: StageDone, Done: len(jobs), Total: len(jobs)})
	return stats, nil
}

// prepareIndex embeds a sample text to learn the vector dimension. Any
// failure disables indexing for the run.
func (d *Documenter) prepareIndex(ctx context.Context, stats *Stats) bool {
	if !d.cfg.Index || d.cfg.DryRun || d.embedder == nil || d.store == nil {
		return false
	}
	vec, err := embedder.Single(ctx, d.embedder, "docsmith embedding check")
	if err != nil {
		d.log.Warn("embedder unavailable, indexing disabled for this run", "model", d.embedder.Model(), "err", err)
		stats.IndexDisabled = true
		return false
	}
	reset, err := d.store.PrepareVectors(d.embedder.Model(), len(vec))
	if err != nil {
		d.log.Warn("could not prepare vector index, indexing disabled", "err", err)
		stats.IndexDisabled = true
		return false
	}
	if reset {
		d.log.Info("embedding model changed, re-indexing all files", "model", d.embedder.Model(), "dim", len(vec))
	}
	return true
}

// plan chunks every eligible file and drops those whose fingerprint matches
// the last run.
func (d *Documenter) plan(files []scanner.FileRecord, indexing bool, stats *Stats) []fileJob {
	reg := d.chunker.Registry()
	var jobs []fileJob
	for _, f := range files {
		spec, _ := reg.Lookup(f.Path)
		if spec == nil {
			continue
		}
		structural := spec.Structural
		if !structural && !(indexing && d.cfg.IndexOtherLanguages) {
			continue
		}

		if d.unchanged(f) {
			stats.FilesUnchanged++
			d.emit(Event{Stage: StageSkip, Path: f.Path, Message: "unchanged"})
			continue
		}

		var chunks []chunker.Chunk
		var err error
		if structural {
			chunks, err = d.chunker.Chunk(f)
		} else {
			chunks, err = d.chunker.ChunkForIndex(f)
		}
		var synErr *chunker.SyntaxError
		switch {
		case errors.As(err, &synErr):
			stats.ParseFailures++
			d.log.Warn("skipping file with syntax error", "path", f.Path, "line", synErr.Line)
			continue
		case err != nil:
			stats.ParseFailures++
			d.log.Warn("could not chunk file", "path", f.Path, "err", err)
			continue
		}
		if len(chunks) == 0 {
			continue
		}

		stats.ChunksTotal += len(chunks)
		jobs = append(jobs, fileJob{file: f, chunks: chunks, inject: structural})
	}
	return jobs
}

func (d *Documenter) unchanged(f scanner.FileRecord) bool {
	if d.cfg.Force || d.store == nil {
		return false
	}
	hash, err := d.store.GetFileHash(f.Path)
	if err != nil {
		d.log.Warn("could not read stored fingerprint", "path", f.Path, "err", err)
		return false
	}
	return hash == f.Fingerprint
}

// processFile owns one file from annotation through injection and indexing.
func (d *Documenter) processFile(ctx context.Context, job fileJob, indexing bool, stats *Stats, mu *sync.Mutex) (injector.Result, error) {
	res := injector.Result{Path: job.file.AbsPath}
	if err := ctx.Err(); err != nil {
		return res, err
	}

	chunks := job.chunks
	var failed int
	for i := range chunks {
		summary := d.annotator.Summarize(ctx, chunks[i].Code, chunks[i].ID)
		if annotator.IsPlaceholder(summary) {
			failed++
			if !d.cfg.InjectPlaceholders {
				summary = ""
			}
		}
		chunks[i].Summary = summary
		d.emit(Event{Stage: StageAnnotate, Path: job.file.Path, ChunkID: chunks[i].ID, Done: i + 1, Total: len(chunks)})
	}
	mu.Lock()
	stats.AnnotationFailures += failed
	mu.Unlock()

	// A rewrite is never started for a cancelled run.
	if err := ctx.Err(); err != nil {
		return res, err
	}

	final := job.file
	if job.inject {
		var err error
		res, err = d.injector.Inject(job.file.AbsPath, chunks)
		if err != nil {
			return res, err
		}
		res.Path = job.file.Path
		if res.Missing || d.cfg.DryRun {
			return res, nil
		}
		if res.Written {
			if final, chunks, err = d.rechunk(job.file, chunks); err != nil {
				return res, err
			}
		}
	}

	if d.cfg.DryRun {
		return res, nil
	}

	row := fileRow(final)
	if failed > 0 || (d.cfg.Index && !indexing) {
		// Leave the fingerprint unset so the next run retries this file.
		row.Hash = ""
	}
	if indexing {
		n := d.index(ctx, row, chunks)
		mu.Lock()
		stats.ChunksIndexed += n
		mu.Unlock()
		return res, nil
	}
	if d.store != nil {
		if err := d.store.SetFileHash(row); err != nil {
			d.log.Warn("could not record fingerprint", "path", row.Path, "err", err)
		}
	}
	return res, nil
}

// rechunk reloads a rewritten file so indexed positions match the new text.
// Summaries carry over by chunk ID.
func (d *Documenter) rechunk(file scanner.FileRecord, annotated []chunker.Chunk) (scanner.FileRecord, []chunker.Chunk, error) {
	fresh, err := scanner.Reload(d.fs, file)
	if err != nil {
		return file, annotated, err
	}
	chunks, err := d.chunker.Chunk(fresh)
	if err != nil {
		d.log.Warn("rewritten file no longer parses", "path", file.Path, "err", err)
		return fresh, annotated, nil
	}
	summaries := make(map[string]string, len(annotated))
	for _, c := range annotated {
		summaries[c.ID] = c.Summary
	}
	for i := range chunks {
		chunks[i].Summary = summaries[chunks[i].ID]
	}
	return fresh, chunks, nil
}

// index embeds and stores a file's chunks and returns how many received a
// vector. Chunks whose code and document match the stored row keep their
// stored vector. Failures are logged; the file keeps its docstrings either
// way, and a file left partly unindexed is retried on the next run.
func (d *Documenter) index(ctx context.Context, file store.File, chunks []chunker.Chunk) int {
	docs := make([]string, len(chunks))
	for i, c := range chunks {
		docs[i] = embedder.Document(c.FilePath, c.ID, string(c.Kind), c.Summary, c.Code)
	}

	vecs := d.storedVectors(file.Path, chunks, docs)
	var pending []int
	for i := range chunks {
		if vecs[i] == nil {
			pending = append(pending, i)
		}
	}
	if len(pending) > 0 {
		texts := make([]string, len(pending))
		for j, i := range pending {
			texts[j] = docs[i]
		}
		fresh, err := d.embedder.Embed(ctx, texts)
		if err != nil {
			d.log.Warn("embedding failed, storing chunks without vectors", "path", file.Path, "err", err)
			fresh = nil
		}
		for j, i := range pending {
			if j < len(fresh) {
				vecs[i] = fresh[j]
			}
		}
	}
	if reused := len(chunks) - len(pending); reused > 0 {
		d.log.Debug("reusing stored embeddings", "path", file.Path, "chunks", reused)
	}

	entries := make([]store.Entry, len(chunks))
	indexed := 0
	for i, c := range chunks {
		entries[i] = store.Entry{
			ChunkID:   c.ID,
			Kind:      string(c.Kind),
			Parent:    c.Parent,
			StartLine: c.StartLine,
			EndLine:   c.EndLine,
			Code:      c.Code,
			Summary:   c.Summary,
			Document:  docs[i],
			Imports:   c.Imports,
		}
		if len(vecs[i]) > 0 {
			entries[i].Embedding = vecs[i]
			indexed++
		}
	}
	if indexed < len(chunks) {
		file.Hash = ""
	}

	if err := d.store.ReplaceFile(file, entries); err != nil {
		d.log.Warn("index write failed", "path", file.Path, "err", err)
		return 0
	}
	d.emit(Event{Stage: StageIndex, Path: file.Path, Done: indexed, Total: len(chunks)})
	return indexed
}

// storedVectors returns, per chunk, the vector already stored for identical
// code and document, or nil.
func (d *Documenter) storedVectors(path string, chunks []chunker.Chunk, docs []string) [][]float32 {
	vecs := make([][]float32, len(chunks))
	prev, err := d.store.IndexedChunks(path)
	if err != nil {
		d.log.Warn("could not read stored chunks", "path", path, "err", err)
		return vecs
	}
	for i, c := range chunks {
		p, ok := prev[c.ID]
		if ok && len(p.Embedding) > 0 && p.CodeHash == store.CodeHash(c.Code) && p.Document == docs[i] {
			vecs[i] = p.Embedding
		}
	}
	return vecs
}

func fileRow(f scanner.FileRecord) store.File {
	return store.File{
		Path:      f.Path,
		Hash:      f.Fingerprint,
		Language:  f.Language,
		LineCount: f.LineCount,
		SizeBytes: f.Size,
	}
}

func (d *Documenter) emit(e Event) {
	if d.progress == nil {
		return
	}
	d.progressMu.Lock()
	defer d.progressMu.Unlock()
	d.progress(e)
}
