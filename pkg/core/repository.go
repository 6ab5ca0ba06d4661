package core

import "context"

// Repository defines the contract for storing and retrieving entries.
// Adhering to this interface keeps the core independent of the on-disk
// format (append-only log file, SQL, ...).
type Repository interface {
	Scanner

	// Append assigns the next ID, stamps the creation time and durably
	// stores the entry before returning it.
	Append(ctx context.Context, directory, message string, tags []string) (Entry, error)

	// Close releases the underlying handles.
	Close() error
}

// Followable is implemented by repositories that can stream entries
// appended after the call.
type Followable interface {
	Follow(ctx context.Context) (<-chan Entry, error)
}

// Importer is implemented by repositories that can append entries carrying
// their original creation time, for migrating older logs.
type Importer interface {
	Import(ctx context.Context, entries []Entry) ([]Entry, error)
}
