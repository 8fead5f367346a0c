// Package index contains core.VectorIndex implementations. The in-memory
// index embeds documents via a core.Embedder and ranks by exact cosine
// distance; it backs tests and small local deployments. The weaviate
// subpackage provides the persistent production backend. Select an
// implementation at wiring time; callers depend only on core.VectorIndex.
package index
