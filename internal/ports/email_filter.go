package ports

import (
	"context"

	"github.com/mikey/mailtrust/internal/core"
)

// Inspector scores a raw or uploaded message
type Inspector interface {
	// Inspect extracts, checks and scores a message
	Inspect(ctx context.Context, filename string, data []byte) (*core.InspectResult, error)
}

// Verifier classifies an email address
type Verifier interface {
	// Verify never fails; degraded results carry notes instead
	Verify(ctx context.Context, address string) *core.VerifyResult
}

// Frontend is a long-running surface that exposes the services
type Frontend interface {
	// Start starts serving in the background
	Start() error

	// Stop stops serving
	Stop() error
}
