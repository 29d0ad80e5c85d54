package crawler

import "errors"

// ErrDisallowed is returned when robots.txt forbids fetching a task URL.
var ErrDisallowed = errors.New("disallowed by robots.txt")
