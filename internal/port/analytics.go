package port

import "context"

// AnalyticsSink is the third-party analytics destination.
type AnalyticsSink interface {
	// Ready reports whether the sink can accept events right now.
	Ready() bool

	// Event sends a generic analytics event.
	Event(ctx context.Context, name string, params map[string]any) error

	// Conversion sends a conversion-tracking call.
	Conversion(ctx context.Context, label string, value float64, currency string) error
}
