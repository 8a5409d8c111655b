package notification

import "context"

// Provider defines a delivery backend.
// Implementations must be safe for concurrent use.
type Provider interface {
	GetName() string
	ValidateConfig() error
	Send(ctx context.Context, n *Notification) error
	SupportsType(notifType Type) bool
	IsEnabled() bool
}

func typeSet(supported []string) map[string]bool {
	types := map[string]bool{}
	if len(supported) == 0 {
		types[string(TypeError)] = true
		types[string(TypeWarning)] = true
		types[string(TypeInfo)] = true
		return types
	}
	for _, t := range supported {
		types[t] = true
	}
	return types
}
