package repository

import "strings"

// SQLitePath reports whether a database URL names a SQLite file
// (sqlite://path or sqlite:path) and returns the path.
func SQLitePath(databaseURL string) (string, bool) {
	for _, prefix := range []string{"sqlite://", "sqlite:"} {
		if strings.HasPrefix(databaseURL, prefix) {
			return strings.TrimPrefix(databaseURL, prefix), true
		}
	}
	return "", false
}
