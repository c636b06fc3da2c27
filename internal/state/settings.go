package state

import (
	"database/sql"
	"errors"
)

// Settings are the persisted playback settings.
type Settings struct {
	Rate        float64
	AutoAdvance bool
}

// getSettings reads the stored settings; nil with no error means nothing
// has been stored yet and the caller should apply its own defaults.
func getSettings(db *sql.DB) (*Settings, error) {
	var s Settings
	row := db.QueryRow(`SELECT rate, auto_advance FROM settings WHERE id = 1`)
	err := row.Scan(&s.Rate, &s.AutoAdvance)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if s.Rate <= 0 {
		s.Rate = 1.0
	}
	return &s, nil
}

func saveSettings(db *sql.DB, s Settings) error {
	_, err := db.Exec(`
		INSERT INTO settings (id, rate, auto_advance)
		VALUES (1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			rate = excluded.rate,
			auto_advance = excluded.auto_advance
	`, s.Rate, s.AutoAdvance)
	return err
}
