package config

import "path/filepath"

// All self-managed directories live under home (~/.bubblewire or
// BUBBLEWIRE_HOME) so the whole installation moves as one tree.

// Home returns the root directory (ResolveHome()).
func Home() string {
	return ResolveHome()
}

// DataDir returns the data directory, fixed at home/data.
func DataDir() string {
	return filepath.Join(Home(), "data")
}

// SessionDir returns the session storage directory, fixed at home/data/sessions.
func SessionDir() string {
	return filepath.Join(DataDir(), "sessions")
}

// LogsDir returns the log directory, fixed at home/logs.
func LogsDir() string {
	return filepath.Join(Home(), "logs")
}
