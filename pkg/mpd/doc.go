// Package mpd holds the DASH manifest object model, its XML decoding, the
// xsd:duration grammar, content-kind/role/language classification helpers,
// and the best-effort conformity linter. It has no knowledge of HTTP, XLink
// resolution, or segment addressing — those live in internal/loader and
// internal/planner, which operate on the tree this package produces.
package mpd
