package store

// runMigrations executes all database migrations.
func (s *Store) runMigrations() error {
	migrations := []string{
		// Gesture events table - history of classified gestures
		`CREATE TABLE IF NOT EXISTS gesture_events (
			id TEXT PRIMARY KEY,
			kind TEXT NOT NULL,
			code INTEGER NOT NULL CHECK(code BETWEEN 0 AND 255),
			source_id TEXT NOT NULL DEFAULT '',
			occurred_at DATETIME NOT NULL
		)`,

		// Bindings table - commands routed to plugin tasks
		`CREATE TABLE IF NOT EXISTS bindings (
			id TEXT PRIMARY KEY,
			state TEXT NOT NULL DEFAULT 'main',
			gesture TEXT NOT NULL DEFAULT '',
			keyword TEXT NOT NULL DEFAULT '',
			interactable TEXT NOT NULL DEFAULT '',
			plugin_name TEXT NOT NULL,
			action_name TEXT NOT NULL,
			config TEXT NOT NULL DEFAULT '{}',
			enabled INTEGER NOT NULL DEFAULT 1,
			created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
			UNIQUE(state, gesture, keyword, interactable)
		)`,

		// Settings table - stores application settings as key-value pairs
		`CREATE TABLE IF NOT EXISTS settings (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		)`,

		`CREATE INDEX IF NOT EXISTS idx_gesture_events_occurred_at ON gesture_events(occurred_at)`,
		`CREATE INDEX IF NOT EXISTS idx_bindings_state ON bindings(state)`,
	}

	for _, migration := range migrations {
		if _, err := s.db.Exec(migration); err != nil {
			return err
		}
	}

	return nil
}
