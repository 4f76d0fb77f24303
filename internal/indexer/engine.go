// Package indexer wires the three retrieval cores together behind a single
// per-shard Engine: IIDX holds the searchable text, EHASH holds the raw
// document blob, and a similarity tree holds each document's feature vector
// for "related documents" k-NN queries.
package indexer

import (
	"context"
	"fmt"
	"log/slog"
	"path/filepath"
	"sync"
	"time"

	"github.com/sapj/retrieval-cores/internal/ehash"
	"github.com/sapj/retrieval-cores/internal/iidx"
	"github.com/sapj/retrieval-cores/internal/similarity"
	"github.com/sapj/retrieval-cores/pkg/config"
	"github.com/sapj/retrieval-cores/pkg/metrics"
)

// Engine is one shard's view of the retrieval stack: a boolean inverted
// index, a raw-record store, and a similarity tree, plus the persistence
// and flush-loop machinery to keep IIDX's on-disk snapshot current.
type Engine struct {
	inverted   *iidx.InvertedIndex
	storage    *iidx.StorageManager
	ehashStore *ehash.Store
	simIndex   *similarity.Index

	indexPath      string
	snapshotPeriod time.Duration

	metrics *metrics.Metrics

	flushMu sync.Mutex
	logger  *slog.Logger
}

// NewEngine creates a shard's Engine, reopening an existing EHASH directory
// and IIDX snapshot under cfg.DataDir if present.
func NewEngine(cfg config.IndexerConfig, ehashCfg config.EhashConfig, iidxCfg config.IIDXConfig) (*Engine, error) {
	return newEngine(cfg, ehashCfg, iidxCfg, nil)
}

// NewEngineWithMetrics is NewEngine plus a shared Metrics instance, used by
// the service binaries that expose a Prometheus endpoint.
func NewEngineWithMetrics(cfg config.IndexerConfig, ehashCfg config.EhashConfig, iidxCfg config.IIDXConfig, m *metrics.Metrics) (*Engine, error) {
	return newEngine(cfg, ehashCfg, iidxCfg, m)
}

func newEngine(cfg config.IndexerConfig, ehashCfg config.EhashConfig, iidxCfg config.IIDXConfig, m *metrics.Metrics) (*Engine, error) {
	logger := slog.Default().With("component", "indexer")

	ehashDir := ehashCfg.DataDir
	if ehashDir == "" {
		ehashDir = filepath.Join(cfg.DataDir, "ehash")
	}
	ehashStore, err := ehash.Open(ehash.Options{
		DataDir:            ehashDir,
		InitialGlobalDepth: ehashCfg.InitialGlobalDepth,
		MaxBucketSize:      ehashCfg.MaxBucketSize,
		KeyOf:              recordKeyOf,
		Logger:             logger.With("core", "ehash"),
	})
	if err != nil {
		return nil, fmt.Errorf("opening ehash store: %w", err)
	}

	indexPath := iidxCfg.IndexPath
	if cfg.DataDir != "" {
		indexPath = filepath.Join(cfg.DataDir, filepath.Base(iidxCfg.IndexPath))
	}
	storage := iidx.NewStorageManager(logger.With("core", "iidx"))
	inverted, err := storage.Load(indexPath, logger.With("core", "iidx"))
	if err != nil {
		logger.Info("no existing iidx snapshot, starting empty", "path", indexPath, "reason", err)
		inverted = iidx.New(logger.With("core", "iidx"))
	}

	e := &Engine{
		inverted:       inverted,
		storage:        storage,
		ehashStore:     ehashStore,
		simIndex:       similarity.NewIndex(logger.With("core", "kdindex")),
		indexPath:      indexPath,
		snapshotPeriod: iidxCfg.SnapshotPeriod,
		metrics:        m,
		logger:         logger,
	}
	return e, nil
}

// IndexDocument normalizes and tokenizes title+body into IIDX, stores the
// raw blob in EHASH keyed by doc_id, and updates the similarity tree with
// the document's feature vector. IIDX ignores a doc_id it has already seen
// (see iidx.InvertedIndex.AddDocument); EHASH replaces the stored record, and
// the similarity tree receives one more vector on every call.
func (e *Engine) IndexDocument(docID int64, title, body string) error {
	fullText := title + " " + body
	if err := e.inverted.AddDocument(docID, fullText); err != nil {
		return fmt.Errorf("indexing document %d into iidx: %w", docID, err)
	}

	bucketsBefore := e.ehashStore.Stats().NumBuckets
	record := encodeRecord(docID, title, body)
	if err := e.ehashStore.Insert(record); err != nil {
		return fmt.Errorf("storing document %d in ehash: %w", docID, err)
	}
	if stats := e.ehashStore.Stats(); e.metrics != nil {
		if stats.NumBuckets > bucketsBefore {
			e.metrics.EhashBucketSplitsTotal.Add(float64(stats.NumBuckets - bucketsBefore))
		}
		e.metrics.EhashDirectoryGlobalDepth.Set(float64(stats.GlobalDepth))
	}

	tokens := iidx.Tokenize(fullText)
	vec := similarity.Vectorize(tokens, time.Now().UTC())
	if err := e.simIndex.Insert(docID, vec); err != nil {
		return fmt.Errorf("indexing document %d into similarity tree: %w", docID, err)
	}

	if e.metrics != nil {
		e.metrics.DocsIndexedTotal.Inc()
	}
	e.logger.Debug("document indexed",
		"doc_id", docID,
		"token_count", len(tokens),
	)
	return nil
}

// Query evaluates a boolean query string against this shard's inverted
// index and returns the matching doc_ids, ascending.
func (e *Engine) Query(query string) ([]int64, error) {
	qp := iidx.NewQueryProcessor(e.inverted)
	start := time.Now()
	ids, err := qp.Evaluate(query)
	if e.metrics != nil {
		e.metrics.IIDXQueryLatency.Observe(time.Since(start).Seconds())
	}
	return ids, err
}

// TotalDocuments returns the number of distinct documents indexed on this
// shard.
func (e *Engine) TotalDocuments() int {
	return e.inverted.TotalDocuments()
}

// Related returns up to k doc_ids whose feature vectors are nearest the
// given document's. Since kdindex.Point carries no payload, the query
// document's own title/body are re-tokenized and re-vectorized rather than
// looked up by doc_id.
func (e *Engine) Related(title, body string, k int) ([]int64, error) {
	tokens := iidx.Tokenize(title + " " + body)
	vec := similarity.Vectorize(tokens, time.Now().UTC())
	ids, visited, err := e.simIndex.RelatedStats(vec, k)
	if e.metrics != nil {
		e.metrics.KDIndexNodesVisited.Observe(float64(visited))
	}
	return ids, err
}

// GetRecord fetches a document's raw title/body blob back out of EHASH.
func (e *Engine) GetRecord(docID int64) (title, body string, err error) {
	h := e.ehashStore.HashKey(docIDKey(docID))
	record, ok := e.ehashStore.Find(h)
	if !ok {
		return "", "", fmt.Errorf("document %d not found in ehash", docID)
	}
	_, title, body, err = decodeRecord(record)
	return title, body, err
}

// Flush persists the current IIDX snapshot to disk. EHASH persists on every
// mutation already, so Flush only concerns IIDX's in-memory posting lists.
func (e *Engine) Flush() error {
	e.flushMu.Lock()
	defer e.flushMu.Unlock()
	if err := e.storage.Save(e.inverted, e.indexPath); err != nil {
		if e.metrics != nil {
			e.metrics.IndexFlushesTotal.WithLabelValues("error").Inc()
		}
		return fmt.Errorf("saving iidx snapshot: %w", err)
	}
	if e.metrics != nil {
		e.metrics.IndexFlushesTotal.WithLabelValues("success").Inc()
	}
	e.logger.Info("iidx snapshot flushed", "path", e.indexPath, "terms", len(e.inverted.Terms()))
	return nil
}

// StartFlushLoop periodically snapshots IIDX until ctx is cancelled, then
// performs one final flush.
func (e *Engine) StartFlushLoop(ctx context.Context) {
	if e.snapshotPeriod <= 0 {
		return
	}
	ticker := time.NewTicker(e.snapshotPeriod)
	go func() {
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				e.logger.Info("flush loop stopping, performing final flush")
				if err := e.Flush(); err != nil {
					e.logger.Error("final flush failed", "error", err)
				}
				return
			case <-ticker.C:
				if err := e.Flush(); err != nil {
					e.logger.Error("periodic flush failed", "error", err)
				}
			}
		}
	}()
}

// Close flushes the IIDX snapshot and closes EHASH.
func (e *Engine) Close() error {
	if err := e.Flush(); err != nil {
		e.logger.Error("final flush on close failed", "error", err)
	}
	return e.ehashStore.Close()
}
