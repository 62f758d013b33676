// Package session houses the session store: the single source of truth for
// one replica of a collaboration session (users, presence, selections,
// document blocks, strokes, comments, conflicts, activity log and dev
// settings).
//
// Every mutator runs under one mutex, so mutators are atomic with respect to
// each other and no caller can observe a partially applied state. Reads
// return deep copies. Invalid references (unknown block, stroke, comment or
// conflict ids) are reported uniformly as errors wrapping core.ErrNotFound;
// the state is left untouched.
//
// A store can be attached to a transport bus. Its remote-apply path then
// applies events published by other replicas or external clients, with the
// conflict engine interposed on document edits. Events that carry the
// store's own replica id are skipped because they were applied locally
// before being published.
package session
