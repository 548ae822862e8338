package health

import "context"

// Pinger checks a storage backend's availability.
type Pinger interface {
	Ping(ctx context.Context) error
}
