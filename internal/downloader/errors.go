package downloader

import "fmt"

// ErrorKind tags a DownloadError with the error taxonomy category it
// belongs to, so callers can branch on the kind of failure without
// string-matching messages.
type ErrorKind string

const (
	KindParsing              ErrorKind = "parsing"
	KindNetwork              ErrorKind = "network"
	KindUnhandledMediaStream ErrorKind = "unhandled_media_stream"
	KindDecrypting           ErrorKind = "decrypting"
	KindMuxing               ErrorKind = "muxing"
	KindIO                   ErrorKind = "io"
	KindOther                ErrorKind = "other"
)

// DownloadError wraps an underlying error with the taxonomy kind and a
// human description of what was being attempted, so orchestrator-level
// callers (CLI, library consumers) can react by kind.
type DownloadError struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *DownloadError) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *DownloadError) Unwrap() error { return e.Err }

// newError wraps err with a taxonomy kind and an operation description.
// Returns nil when err is nil, so call sites can write
// `return newError(...)` directly after an `if err != nil` guard without
// double-checking.
func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		return nil
	}
	return &DownloadError{Kind: kind, Op: op, Err: err}
}
