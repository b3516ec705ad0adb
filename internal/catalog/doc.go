// Package catalog loads and validates the intent catalog.
//
// The catalog is the source of truth for both the vector index and the
// response lookup table:
//
//	{
//	  "intents": [
//	    {"tag": "greeting", "patterns": ["ciao", "salve"], "responses": ["Ciao!"]}
//	  ]
//	}
//
// JSON (.json) and YAML (.yaml, .yml) files are accepted. Every problem found
// while decoding or validating is reported as a types.ErrConfiguration, which
// callers treat as fatal.
//
// Fingerprint hashes tags and patterns in catalog order so persisted index
// artifacts can be checked against the catalog they were built from.
package catalog
