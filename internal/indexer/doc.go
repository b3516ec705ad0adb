// Package indexer turns an intent catalog into a searchable vector snapshot.
//
// # Basic Usage
//
//	idx := indexer.New(emb, store, logger, &indexer.Config{Workers: 4})
//
//	snap, err := idx.BuildOrLoad(ctx, cat)
//	if errors.Is(err, types.ErrConfiguration) {
//	    // abort startup
//	}
//
// # Build or Load
//
// When the store already holds a complete set of artifacts they are loaded as
// is and nothing is embedded. Otherwise every (tag, pattern) pair is embedded in
// catalog order, L2-normalized, added to a flat inner-product index and
// persisted before BuildOrLoad returns. Deleting either artifact forces a
// rebuild on the next start.
//
// Loaded artifacts are checked against the catalog:
//
//   - every metadata tag must have responses, otherwise ErrConfiguration
//   - the index dimension must match the embedder
//   - the stored catalog fingerprint is compared with the current one
//
// A fingerprint mismatch marks the snapshot Stale. With StaleWarn (the default)
// a warning is logged and the old artifacts are served. With StaleRebuild the
// catalog is re-embedded and the artifacts overwritten.
//
// # Concurrent Embedding
//
// Patterns are sent to the embedder in batches of Config.BatchSize, at most
// Config.Workers batches at a time, using an errgroup. Each batch writes a
// disjoint range of the result so rows always come out in catalog order. The
// first failing batch cancels the rest.
//
// # Rebuilds
//
// Rebuild ignores persisted artifacts. Only one build runs at a time:
//
//	snap, err := idx.Rebuild(ctx, cat)
//	if errors.Is(err, indexer.ErrIndexingInProgress) {
//	    // another build holds the lock
//	}
//
// Snapshots are immutable. Callers publish a new one to readers rather than
// mutating the old.
package indexer
