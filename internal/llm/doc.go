// Package llm contains adapters for invoking large language models. Every
// provider exposes plain text generation and structured object extraction
// from a composed prompt context.
package llm
