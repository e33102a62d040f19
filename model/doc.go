// Package model defines the provider‑agnostic abstractions for streaming text
// from language models that reply with artifact directives.
//
// Core goals:
//   - A single streaming interface (Model.Stream) delivering text deltas
//   - Minimal, transport independent request/response shapes
//   - Lightweight mocking for tests (MockModel)
//
// Providers (Anthropic, OpenAI) live in sub-packages and implement Model so the
// workbench and CLI stay decoupled from vendor SDKs. SystemPrompt describes
// the directive grammar the parser understands.
package model
