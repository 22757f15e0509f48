// Package ports defines interfaces (contracts) between layers.
// These interfaces enable dependency injection and testability.
// Implementations live in adapters/.
package ports

import (
	"context"
	"time"
)

// -----------------------------------------------------------------------------
// Infrastructure Ports
// -----------------------------------------------------------------------------

// Clock abstracts time for testability.
type Clock interface {
	Now() time.Time
}

// Sleeper waits between retries.
type Sleeper interface {
	// Sleep blocks for d or until ctx is done, returning ctx.Err() in the latter case.
	Sleep(ctx context.Context, d time.Duration) error
}

// IDGenerator generates unique identifiers.
type IDGenerator interface {
	New() string
}

// -----------------------------------------------------------------------------
// Transport Ports
// -----------------------------------------------------------------------------

// Transport sends one JSON request to the page.
type Transport interface {
	// Send posts payload and decodes a successful response into result.
	// A timeout of zero or less disables the deadline.
	Send(ctx context.Context, method, url string, payload, result any, timeout time.Duration) error
}

// -----------------------------------------------------------------------------
// Page Ports
// -----------------------------------------------------------------------------

// Evaluator executes trusted script sent by the server. It is called with
// the document lock held.
type Evaluator interface {
	Eval(code string) error
}

// Indicator shows the connection state to the user.
type Indicator interface {
	// Normal marks a healthy connection.
	Normal()
	// Degraded marks a connection being retried.
	Degraded()
	// Expired marks a session the server no longer serves.
	Expired()
}
