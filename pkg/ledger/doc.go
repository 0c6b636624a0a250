// Package ledger tracks media that could not be downloaded so later runs can
// retry it before doing new work.
//
// An identity's ledger is either absent or lists only items not yet on disk.
// Entries are keyed by (locator, ordinal); saving an empty set removes the file.
//
// A ledger that cannot be read is never overwritten. Failures from such a run
// go to undownloaded.pending.json, which Load merges back and Save removes. A
// ledger that cannot be decoded is moved to a .bak copy by Quarantine.
package ledger
