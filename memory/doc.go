// Package memory contains the background memory compressor: best-effort
// entity extraction from the latest user turn plus periodic rolling
// summarization of recent history. Work is submitted per session and runs
// detached from the request that triggered it, so the caller's perceived
// latency excludes compression cost. At most one task per session is in
// flight at a time, and tests can await completion via Flush, keeping the
// otherwise fire-and-forget path deterministic to verify.
package memory
