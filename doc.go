// Package dlog is the Composition Root for the dlog work log.
//
// It connects the query engine and domain rules (pkg/core) with the log
// file adapter (pkg/adapters/fs) behind functional options.
//
// Every entry remembers the directory it was written in. Queries are scoped
// to a directory, either exactly or including everything below it, and
// return the most recent entries first.
//
// Storage:
//
// Entries live in a single append-only file of self-delimiting, checksummed
// records. There is no index; queries scan the file. Writers from separate
// processes are serialized by an advisory OS lock, and a record cut short
// by a crash is discarded by the next writer.
//
// Usage:
//
//	svc, err := dlog.New("~/.config/dlog/dlog.log",
//		dlog.WithAutoInit(true),
//		dlog.WithLogger(logger),
//	)
//
//	// Record work in the current directory
//	entry, err := svc.Write(ctx, dlog.WriteRequest{Directory: cwd, Message: "fixed login"})
//
//	// Last ten entries for the project tree
//	entries, err := svc.Query(ctx, dlog.Filter{Anchor: cwd, Scope: core.ScopeRecursive, Limit: 10})
package dlog
