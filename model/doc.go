// Package model defines the provider-agnostic chat model abstraction used by
// the rest of the harness. A Model turns a system prompt plus a message
// history into a single completion; provider adapters live in the openai and
// anthropic subpackages, while MockModel serves tests and offline examples.
package model
