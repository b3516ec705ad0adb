// Package responder chooses the reply for a classified intent.
//
// A matched tag yields one of its catalog responses, chosen uniformly at
// random. A None tag, or a tag the response table does not know, yields the
// fallback reply. Tests inject a deterministic Source with WithSource.
package responder
