package state

import (
	"database/sql"
	"errors"

	dbutil "github.com/lmorel/readout/internal/db"
)

// QueueItem is one row of the saved queue.
type QueueItem struct {
	ItemID     string
	Kind       string
	Title      string
	Author     string
	Path       string // local resource path, empty if none
	URL        string // remote resource url, empty if none
	PositionMS int64  // resume position in milliseconds
	DurationMS int64  // total duration in milliseconds, 0 if unknown
}

// QueueState is the saved queue plus cursor.
type QueueState struct {
	CurrentIndex int
	Items        []QueueItem
}

func getQueue(db *sql.DB) (*QueueState, error) {
	var currentIndex int
	row := db.QueryRow(`SELECT current_index FROM queue_state WHERE id = 1`)
	err := row.Scan(&currentIndex)
	if errors.Is(err, sql.ErrNoRows) {
		return &QueueState{CurrentIndex: -1}, nil
	}
	if err != nil {
		return nil, err
	}

	rows, err := db.Query(`
		SELECT item_id, kind, title, author, resource_path, resource_url, position_ms, duration_ms
		FROM queue_items
		ORDER BY position
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var items []QueueItem
	for rows.Next() {
		var it QueueItem
		var author, path, url sql.NullString

		err := rows.Scan(&it.ItemID, &it.Kind, &it.Title, &author, &path, &url, &it.PositionMS, &it.DurationMS)
		if err != nil {
			return nil, err
		}

		it.Author = dbutil.NullStringValue(author)
		it.Path = dbutil.NullStringValue(path)
		it.URL = dbutil.NullStringValue(url)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueueState{
		CurrentIndex: currentIndex,
		Items:        items,
	}, nil
}

func saveQueue(sqlDB *sql.DB, state QueueState) error {
	return dbutil.WithTx(sqlDB, func(tx *sql.Tx) error {
		_, err := tx.Exec(`DELETE FROM queue_items`)
		if err != nil {
			return err
		}

		_, err = tx.Exec(`
			INSERT INTO queue_state (id, current_index)
			VALUES (1, ?)
			ON CONFLICT(id) DO UPDATE SET
				current_index = excluded.current_index
		`, state.CurrentIndex)
		if err != nil {
			return err
		}

		stmt, err := tx.Prepare(`
			INSERT INTO queue_items (position, item_id, kind, title, author, resource_path, resource_url, position_ms, duration_ms)
			VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		`)
		if err != nil {
			return err
		}
		defer stmt.Close()

		for i, it := range state.Items {
			_, err = stmt.Exec(i, it.ItemID, it.Kind, it.Title, it.Author, it.Path, it.URL, it.PositionMS, it.DurationMS)
			if err != nil {
				return err
			}
		}
		return nil
	})
}
