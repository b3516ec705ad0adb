// Package config loads gustavo settings from the environment.
//
// A .env file in the working directory is read first when present; real
// environment variables take precedence over it. Every setting has a default,
// so an empty environment yields a working local setup: the catalog at
// intents.json, artifacts under data/, the deterministic local embedder and a
// one hour session TTL.
//
// Load validates the result and reports problems as types.ErrConfiguration.
package config
