// Package sqlite reads work logs kept by earlier dlog releases, which stored
// entries in a SQLite table, so they can be imported into the log file.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"os"
	"slices"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/aretw0/dlog/pkg/core"
)

const legacyQuery = `SELECT id, timestamp, directory, content, tags FROM logs ORDER BY timestamp, id`

// ReadLegacy loads every row of the legacy logs table at path, oldest first.
// The database is opened read-only. Rows that cannot become a valid entry
// (blank content, relative directory, unparsable timestamp) are skipped
// with a warning.
func ReadLegacy(ctx context.Context, path string, logger *slog.Logger) ([]core.Entry, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}

	db, err := sql.Open("sqlite3", "file:"+path+"?mode=ro")
	if err != nil {
		return nil, fmt.Errorf("open legacy database: %w", err)
	}
	defer db.Close()

	rows, err := db.QueryContext(ctx, legacyQuery)
	if err != nil {
		return nil, fmt.Errorf("query legacy logs: %w", err)
	}
	defer rows.Close()

	var entries []core.Entry
	for rows.Next() {
		var (
			id        int64
			timestamp string
			directory string
			content   string
			tags      sql.NullString
		)
		if err := rows.Scan(&id, &timestamp, &directory, &content, &tags); err != nil {
			return nil, fmt.Errorf("scan legacy row: %w", err)
		}

		e, err := legacyEntry(timestamp, directory, content, tags.String)
		if err != nil {
			logger.Warn("skipping legacy row", "id", id, "error", err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("read legacy logs: %w", err)
	}

	// Timestamps are compared as text by the query; offsets can reorder them.
	slices.SortStableFunc(entries, func(a, b core.Entry) int {
		return a.CreatedAt.Compare(b.CreatedAt)
	})

	logger.Debug("legacy database read", "path", path, "entries", len(entries))
	return entries, nil
}

func legacyEntry(timestamp, directory, content, tags string) (core.Entry, error) {
	created, err := time.Parse(time.RFC3339Nano, strings.TrimSpace(timestamp))
	if err != nil {
		return core.Entry{}, fmt.Errorf("bad timestamp %q: %w", timestamp, err)
	}

	req := core.WriteRequest{Directory: directory, Message: content, Tags: core.SplitTags(tags)}
	if err := req.Validate(); err != nil {
		return core.Entry{}, err
	}
	req = req.Normalize()

	return core.Entry{
		CreatedAt: created.UTC(),
		Directory: req.Directory,
		Message:   req.Message,
		Tags:      req.Tags,
	}, nil
}
