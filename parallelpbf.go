// Package parallelpbf reads and writes OSM PBF streams with
// block-level parallelism. A single goroutine walks the blob framing
// while a bounded pool of workers decompresses and decodes blocks,
// delivering entities to caller-supplied sinks. The complementary
// encoder package assembles blocks from entities; the blob package
// carries the framing for both directions.
package parallelpbf

import "errors"

// ErrParserBusy reports a Parse call on a parser whose previous Parse
// has not returned yet.
var ErrParserBusy = errors.New("parser is already running")

// ErrSequenceViolation reports an OSMData blob before the OSMHeader
// blob. The parser logs the offending blob and skips it; the error is
// never returned from Parse.
var ErrSequenceViolation = errors.New("data blob before header blob")
