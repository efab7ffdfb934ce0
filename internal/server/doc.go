// Package server implements the ipkv HTTP API surface.
//
// Owns:
//   - HTTP routing, handlers, CORS and the JSON response envelope
//   - The API key gate in front of the list routes
//   - List semantics: parse/serialize/dedupe, replace and append, size limit
//   - Store adapters (memory, SQLite, Redis)
//
// Does not own:
//   - Producing candidate lists (latency probing happens in clients)
//   - Scheduling of periodic uploads
//
// Invariants:
//   - JSON responses go through writeJSON (except format=text and the index page)
//   - Every route except / and /api/health requires the API key
//   - A stored list never holds the same entry twice after an update
//   - Appends are an unlocked read-modify-write; concurrent appends can lose entries
package server
