package keyspace

import "errors"

// ErrOverwrite is returned by Set when the key already exists: SET is
// insert-only.
var ErrOverwrite = errors.New("keyspace: key already exists")

// ErrNotFound is returned by Update and Del when the key is absent: UPDATE
// is update-only, and DEL on a missing key is an ordinary miss.
var ErrNotFound = errors.New("keyspace: key not found")

// ErrNotEmpty is returned by LoadAll when the keyspace already holds data:
// restore only ever replaces state into an empty engine.
var ErrNotEmpty = errors.New("keyspace: restore requires an empty keyspace")
