// Package sources provides candidate template sources. Each source wraps one
// external catalog behind a common Fetch contract; failures are sentinel
// errors so the scheduler can log and fall through to the next source.
package sources

import (
	"context"
	"errors"
	"fmt"
	"net"

	"github.com/memenem/memenem/pkg/models"
)

// Sentinel errors for source failures.
var (
	ErrSourceUnreachable = errors.New("template source unreachable")
	ErrSourceError       = errors.New("template source error")
	ErrSourceTimeout     = errors.New("template source timeout")
)

// Source fetches candidate templates from one external catalog.
type Source interface {
	Fetch(ctx context.Context, limit int) ([]models.Candidate, error)
	Name() string
}

// classifyError maps transport-level errors to sentinel errors.
func classifyError(err error) error {
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return fmt.Errorf("%w: %v", ErrSourceTimeout, err)
		}
		return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
	}

	return fmt.Errorf("%w: %v", ErrSourceUnreachable, err)
}
