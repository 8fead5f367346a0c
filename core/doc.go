// Package core provides the foundational domain types and interfaces used by
// Cora. It defines the core abstractions for:
//
//   - Sessions (stateful conversational containers with turn history and
//     derived memory: rolling summary + extracted entities)
//   - Retrieved / indexed knowledge-base documents and their metadata
//   - Tagged answer results (answered, no-context, unavailable, error)
//   - Pluggable capability contracts for vector search, translation and
//     text embedding
//
// The package intentionally keeps implementation concerns (storage backends,
// model providers, HTTP transport) out of scope, exposing small interfaces to
// enable custom backends and extensions.
package core
