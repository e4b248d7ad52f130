// Package buildinfo carries build-time metadata injected at startup, kept
// separate from user configuration.
package buildinfo

// UnknownValue is returned for any metadata the build did not inject.
const UnknownValue = "unknown"

// BuildInfo is the read-only view handed to consumers such as the API health
// endpoint and telemetry.
type BuildInfo interface {
	GetVersion() string
	GetBuildDate() string
	GetSystemID() string
}

// Context holds the version, build date and anonymous system identifier.
// Values are injected by the linker and the startup sequence; none of them
// come from the config file.
type Context struct {
	Version   string
	BuildDate string
	SystemID  string
}

// NewContext bundles the injected values.
func NewContext(version, buildDate, systemID string) *Context {
	return &Context{
		Version:   version,
		BuildDate: buildDate,
		SystemID:  systemID,
	}
}

// GetVersion returns the version or UnknownValue. Safe on a nil receiver so
// early failure paths can log before metadata exists.
func (c *Context) GetVersion() string {
	if c == nil || c.Version == "" {
		return UnknownValue
	}
	return c.Version
}

// GetBuildDate returns the build date or UnknownValue.
func (c *Context) GetBuildDate() string {
	if c == nil || c.BuildDate == "" {
		return UnknownValue
	}
	return c.BuildDate
}

// GetSystemID returns the system identifier or UnknownValue.
func (c *Context) GetSystemID() string {
	if c == nil || c.SystemID == "" {
		return UnknownValue
	}
	return c.SystemID
}
