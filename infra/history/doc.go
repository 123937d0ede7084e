// Package history implements run history stores: rotating JSONL files
// (lumberjack) and SQLite (modernc.org/sqlite, no cgo).
package history
