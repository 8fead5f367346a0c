// Package model defines the provider-agnostic abstractions for interacting
// with language models inside Cora.
//
// Core goals:
//   - Unify streaming + non-streaming generation behind a single interface
//   - Keep request/response shapes minimal and transport independent
//   - Carry per-request sampling (classification calls run near-zero
//     temperature with a fixed seed and forced JSON output; conversational
//     calls run moderate temperature for natural phrasing)
//   - Facilitate lightweight mocking for tests (MockModel)
//
// Providers (e.g. OpenAI, Anthropic) implement the Model interface from this
// package so the orchestrator remains decoupled from vendor SDKs.
package model
