package notification

import (
	"context"

	"github.com/gen2brain/beeep"
)

// DesktopProvider shows notifications through the OS notification center.
type DesktopProvider struct {
	enabled bool
	types   map[string]bool
	notify  func(title, message string) error
}

// NewDesktopProvider creates a provider backed by beeep.
func NewDesktopProvider(enabled bool, supportedTypes []string) *DesktopProvider {
	return &DesktopProvider{
		enabled: enabled,
		types:   typeSet(supportedTypes),
		notify: func(title, message string) error {
			return beeep.Notify(title, message, "")
		},
	}
}

func (d *DesktopProvider) GetName() string          { return "desktop" }
func (d *DesktopProvider) IsEnabled() bool          { return d.enabled }
func (d *DesktopProvider) SupportsType(t Type) bool { return d.types[string(t)] }
func (d *DesktopProvider) ValidateConfig() error    { return nil }

func (d *DesktopProvider) Send(ctx context.Context, n *Notification) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return d.notify(n.Title, n.Message)
}
