// Package storage holds the searchable vector corpus and persists it.
//
// # Index
//
// Index is a flat inner-product index over unit-length vectors, so the inner
// product of a query with a row is the cosine similarity:
//
//	idx := storage.NewIndex(384)
//	_ = idx.Add(vecA, vecB)
//	scores, rows, err := idx.Search(query, 1)
//
// Search scans every row. Equal scores keep row order, so for k=1 the first
// maximum encountered wins. Once built an index is read-only and safe for
// concurrent searches.
//
// # Persistence
//
// Artifacts bundles an index with row-aligned metadata records and the catalog
// fingerprint it was built from. Two Store backends are available:
//
//   - FileStore: a binary index file plus a JSON metadata file
//     ([{"tag": "...", "text": "..."}, ...]). Both must exist for Exists to
//     report true; deleting either forces a rebuild.
//   - SQLiteStore: one database with an index_meta header row and an examples
//     table holding tag, text and vector blob per row.
//
// Vectors are stored as little-endian float32, so a save/load round trip is
// bit-exact.
//
// # Build Modes
//
// The SQLite driver is chosen at compile time:
//
//	go build ./...                        # modernc.org/sqlite (pure Go, default)
//	CGO_ENABLED=1 go build -tags sqlite_cgo ./...   # github.com/mattn/go-sqlite3
//
// # Migrations
//
// Schema changes are listed in AllMigrations and applied in semver order when a
// SQLiteStore opens. RollbackMigration undoes the latest one.
package storage
