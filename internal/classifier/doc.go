// Package classifier assigns intents to free text by nearest-neighbor lookup.
//
// The query is embedded, L2-normalized and searched against the current index
// snapshot with k=1. The best row's tag is returned when its score reaches the
// threshold; otherwise the tag is None and the score is still reported, so
// callers can log near misses.
//
// Snapshots are read through an atomic pointer. Swap publishes a rebuilt index
// without blocking classifications already in flight.
package classifier
