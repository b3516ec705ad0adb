// Package session keeps per-conversation history and runs chat exchanges.
//
// Each exchange appends the user's message, classifies a contextual query made
// from the last NHistory user turns, appends the bot reply and keeps at most
// MaxHistory turns:
//
//	mgr := session.NewManager(clf, selector, session.NewCacheStore(time.Hour, 10*time.Minute), logger, nil)
//	res, err := mgr.Process(ctx, "s1", "a che ora aprite?")
//
// Prior user turns ["A", "B"] and a new message "C" produce the query "B C".
//
// # Stores
//
// Histories live in an injected Store. CacheStore (go-cache) expires sessions
// after a TTL of inactivity. LRUStore (golang-lru expirable) additionally caps
// how many sessions are kept. Stores copy turns on the way in and out.
//
// # Concurrency
//
// The read-modify-write of one session is serialized by a per-session lock;
// other sessions are never blocked.
package session
