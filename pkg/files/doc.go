// Package files implements the client file manager: hierarchical entries
// addressed by slash-delimited paths, with folder permissions inherited by
// two cooperating mechanisms.
//
// Permission is decided by a live walk over ancestor paths at mutation time
// (any ancestor folder granting the flag allows the action), and by an eager
// fan-out that writes a changed folder flag onto every existing descendant.
// Only the flag that changed fans out; the other keeps each descendant's own
// value. Both mechanisms share the single grantsPermission predicate.
package files
