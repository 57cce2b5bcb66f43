package playground

import (
	"context"

	"github.com/yubzen/playground/internal/providers"
)

// Backend is the network side of discovery and submission.
type Backend interface {
	Discover(ctx context.Context, projectID string) ([]providers.Connection, error)
	Complete(ctx context.Context, req providers.ChatRequest) (providers.Output, error)
	Stream(ctx context.Context, req providers.ChatRequest, onText func(string) error) error
}

// RunDiscovery performs req and packages the outcome for ApplyDiscovery.
func RunDiscovery(b Backend, req *DiscoveryRequest) DiscoveryResult {
	conns, err := b.Discover(req.Ctx, req.ProjectID)
	if err != nil && req.Ctx.Err() != nil {
		err = normalizeCancellationErr(context.Cause(req.Ctx))
	}
	return DiscoveryResult{
		PanelID:     req.PanelID,
		Generation:  req.Generation,
		Connections: conns,
		Err:         err,
	}
}

// RunSubmit performs req. Streamed text is passed to onChunk as it
// arrives; the returned output is nil for streamed runs.
func RunSubmit(b Backend, req *SubmitRequest, onChunk func(string)) (*providers.Output, error) {
	if !req.Streaming {
		out, err := b.Complete(req.Ctx, req.Body)
		if err != nil {
			return nil, err
		}
		return &out, nil
	}
	err := b.Stream(req.Ctx, req.Body, func(text string) error {
		onChunk(text)
		return nil
	})
	return nil, err
}
