// Package storage lays out the local archive.
//
// Every account gets one folder named after its resolved identity:
//
//	<identity>/metadata/step1/<sanitized-locator>.json   raw listing
//	<identity>/metadata/step2/<date>_<id>.json           raw post record
//	<identity>/<date>_<id>.json                          canonical record
//	<identity>/<date>_<id>_<ordinal>.<ext>               media
//	<identity>/undownloaded.json                         retry ledger
//
// File names depend only on (date, post id, ordinal), so repeated runs address
// the same files. Writes go through a temporary file and a rename; a file that
// exists is complete.
package storage
