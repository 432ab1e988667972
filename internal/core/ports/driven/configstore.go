package driven

// ConfigStore holds raw user settings under flat dot-separated keys such
// as "retrieval.k". Values keep whatever type the backing format decoded;
// the settings service interprets them.
type ConfigStore interface {
	Get(key string) (any, bool)

	// Set stores value and persists it before returning.
	Set(key string, value any) error

	// Unset removes key. Removing an absent key is not an error.
	Unset(key string) error

	// Path locates the backing file for display.
	Path() string
}
