package llm

import (
	"context"

	"github.com/recall-hq/recall/pkg/types"
)

// Classifier decides which sources a query needs. Opaque to the router:
// its ranking and extraction behavior are the provider's business.
type Classifier interface {
	Classify(ctx context.Context, query string) (*types.SourcePlan, error)
}

// Synthesizer turns merged evidence plus conversation history into a
// final answer. Also opaque.
type Synthesizer interface {
	Synthesize(ctx context.Context, query string, hits []types.Hit, history []types.Message) (string, error)
}
