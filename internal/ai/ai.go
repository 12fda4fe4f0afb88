// Package ai scores job listings against a candidate resume through an LLM
// and recovers structured data from the model's free-form text output.
package ai

import "context"

// Generator produces a text completion for a system/user prompt pair.
// Implemented by the openai and gemini subpackages.
type Generator interface {
	Generate(ctx context.Context, system, user string) (string, error)
	Model() string
}
