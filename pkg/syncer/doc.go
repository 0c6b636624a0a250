/*
Package syncer mirrors one account's feed into the archive.

A PostSynchronizer handles a single post: it stores the raw record, downloads
every media item and then derives the canonical content record from the stored
raw record. The canonical record is written last, so its presence means every
media item of the post has been attempted.

A FeedSynchronizer walks an account's listing newest first. It replays the
identity's retry ledger before touching new posts and stops at the first post
whose canonical record already exists, assuming everything older was mirrored
by an earlier run. A feed that reorders or backfills older posts defeats that
assumption; run with incremental mode off to walk the whole listing.

Cancellation is checked between posts and between ledger entries. A media
transfer that has started is allowed to finish.
*/
package syncer
