package store

// Config controls connection and persistence policy.
type Config struct {
	// EagerPersist flushes buffering backends after every mutating call.
	EagerPersist bool
	// CreateIfMissing lets Connect create absent backing storage.
	CreateIfMissing bool
}

// DefaultConfig persists eagerly and creates missing storage.
func DefaultConfig() Config {
	return Config{
		EagerPersist:    true,
		CreateIfMissing: true,
	}
}
