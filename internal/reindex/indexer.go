package reindex

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"docvault/internal/model"
	"docvault/internal/repository"
	"docvault/internal/search"
)

// Processor handles one claimed job.
type Processor interface {
	Process(ctx context.Context, job *model.ReindexJob) error
}

// DocumentFinder loads the current state of a document.
type DocumentFinder interface {
	FindByID(ctx context.Context, id string) (*model.Document, error)
}

// Indexer regenerates search artifacts from the current document state. Every effect
// overwrites or deletes, so processing a (document, version) any number of times
// converges to the same index.
type Indexer struct {
	docs  DocumentFinder
	index search.Index
	log   zerolog.Logger
}

// NewIndexer creates an indexer writing to index.
func NewIndexer(docs DocumentFinder, index search.Index, log zerolog.Logger) *Indexer {
	return &Indexer{docs: docs, index: index, log: log.With().Str("component", "indexer").Logger()}
}

var _ Processor = (*Indexer)(nil)

func (x *Indexer) Process(ctx context.Context, job *model.ReindexJob) error {
	doc, err := x.docs.FindByID(ctx, job.DocumentID)
	switch {
	case errors.Is(err, repository.ErrNotFound):
		return x.index.Remove(ctx, job.TenantID, job.DocumentID)
	case err != nil:
		return fmt.Errorf("load document %s: %w", job.DocumentID, err)
	}
	if doc.TenantID != job.TenantID {
		return fmt.Errorf("job tenant %s does not own document %s", job.TenantID, job.DocumentID)
	}

	if job.Op == model.JobOpRemove || !doc.IsActive() {
		return x.index.Remove(ctx, doc.TenantID, doc.ID)
	}
	if job.VersionID != "" && job.VersionID != doc.CurrentVersionID {
		// A newer job exists for the current version and will converge the index.
		x.log.Debug().
			Str("event", "reindex_stale_version").
			Str("document_id", doc.ID).
			Str("job_version", job.VersionID).
			Str("current_version", doc.CurrentVersionID).
			Msg("")
		return nil
	}
	return x.write(ctx, doc)
}

// maxRewrites bounds how often one job chases a document that keeps changing under it.
const maxRewrites = 3

// write upserts the entry of doc, then reads the row again. A mutation that commits
// between the load and the write can have its own job finish first, so whatever this
// write overwrote is put back from the row's current state.
func (x *Indexer) write(ctx context.Context, doc *model.Document) error {
	entry := search.EntryFor(doc)
	for i := 0; i < maxRewrites; i++ {
		if err := x.index.Upsert(ctx, entry); err != nil {
			return err
		}
		cur, err := x.docs.FindByID(ctx, doc.ID)
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return x.index.Remove(ctx, doc.TenantID, doc.ID)
		case err != nil:
			return fmt.Errorf("recheck document %s: %w", doc.ID, err)
		}
		if !cur.IsActive() {
			x.log.Debug().
				Str("event", "reindex_raced_removal").
				Str("document_id", doc.ID).
				Str("status", string(cur.Status)).
				Msg("")
			return x.index.Remove(ctx, cur.TenantID, cur.ID)
		}
		next := search.EntryFor(cur)
		if next.Equal(entry) {
			return nil
		}
		entry = next
	}
	return fmt.Errorf("document %s kept changing while being indexed", doc.ID)
}
