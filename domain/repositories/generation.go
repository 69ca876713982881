package repositories

import "context"

// GenerationService abstracts the text generation model used for scenario
// creation, profile extraction and feedback analysis. It returns the raw
// model text; callers are responsible for stripping code fences and parsing
// the JSON payload inside.
type GenerationService interface {
	Generate(ctx context.Context, prompt string) (string, error)
}
