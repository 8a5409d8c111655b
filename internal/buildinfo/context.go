// Package buildinfo contains build-time metadata separate from user configuration
package buildinfo

// UnknownValue is reported for metadata that was not injected at build time.
const UnknownValue = "unknown"

// Context contains build-time metadata that is not user-configurable.
type Context struct {
	// Version holds the Git version tag from build
	Version string

	// BuildDate is the time when the binary was built
	BuildDate string

	// SystemID is an anonymous installation identifier for telemetry
	SystemID string
}

// NewContext creates a build context.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{Version: version, BuildDate: buildDate, SystemID: systemID}
}

func orUnknown(c *Context, pick func(*Context) string) string {
	if c == nil {
		return UnknownValue
	}
	if v := pick(c); v != "" {
		return v
	}
	return UnknownValue
}

// GetVersion returns the build version string
func (c *Context) GetVersion() string {
	return orUnknown(c, func(c *Context) string { return c.Version })
}

// GetBuildDate returns the build date string
func (c *Context) GetBuildDate() string {
	return orUnknown(c, func(c *Context) string { return c.BuildDate })
}

// GetSystemID returns the installation identifier
func (c *Context) GetSystemID() string {
	return orUnknown(c, func(c *Context) string { return c.SystemID })
}

// Release is the Sentry release name.
func (c *Context) Release() string {
	return "replayclip@" + c.GetVersion()
}
