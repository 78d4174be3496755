package demoserver

// Config holds configuration for the demo server.
type Config struct {
	// Port is the port on which the demo server listens.
	Port int

	// InitialVersion is the version every page starts at. Pages with fewer
	// versions start at their highest one.
	InitialVersion int
}

// DefaultConfig starts every page in its non-compliant first version.
func DefaultConfig() Config {
	return Config{
		Port:           9999,
		InitialVersion: 1,
	}
}
