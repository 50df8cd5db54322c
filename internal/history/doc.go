// Package history persists the alert deduplication state between runs.
//
// The store is a flat JSON file mapping condition keys to the last
// alerted threshold (or replication error signature) and a timestamp. It
// is loaded once at run start, replaced wholesale by the evaluation
// engine, and written back once at run end via temp-file-plus-rename so
// the file is never left partially written.
//
// Runs are expected to be externally serialized (one cron trigger at a
// time); the package does not lock the file. Overlapping invocations
// would need flock or equivalent around the load-evaluate-save sequence.
package history
