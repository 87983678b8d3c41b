// Package model defines the provider-agnostic abstractions for interacting
// with language models inside ArchMesh.
//
// Core goals:
//   - Unify token-incremental streaming behind a single Provider interface
//   - Normalize provider failures into a small closed set of error kinds
//     (timeout, rate limited, malformed response, auth failure, unavailable)
//   - Keep request/response shapes minimal and transport independent
//   - Facilitate lightweight mocking for tests (MockProvider)
//
// Providers (Anthropic, OpenAI, Gemini) implement the Provider interface from
// this package so the gateway remains decoupled from vendor SDKs.
package model
