// Package s2replay decodes Source 2 engine replay streams (Dota 2,
// Deadlock, Counter-Strike 2) into a tick-ordered sequence of entity,
// packet, and tick-boundary events.
//
// A replay is either a seekable demo file (".dem", framed per §4.10's
// demo-file mode) or an HLTV broadcast fragment stream (no seekable
// header, framed per §4.10's fragment mode). Both are read through the
// same demofile.DemoFile container; the caller picks the framing via
// parser.WithHLTVFraming.
//
// # Basic usage
//
//	f, _ := os.Open("match.dem")
//	df := demofile.New(f)
//	if _, err := df.ReadHeader(); err != nil { ... }
//
//	p, _ := s2replay.NewParser(df, parser.WithVisitor(myVisitor))
//	if err := p.RunToEnd(); err != nil { ... }
//
// # Package structure
//
// This package provides thin convenience constructors around demofile and
// parser. For fine-grained control (custom framing, buffer sizing, a
// Visitor that only cares about a subset of events), use those packages
// directly.
package s2replay

import (
	"io"

	"github.com/arloliu/s2replay/demofile"
	"github.com/arloliu/s2replay/parser"
)

// NewDemoFile wraps a seekable byte source as a demofile.DemoFile.
func NewDemoFile(r io.ReadSeeker) *demofile.DemoFile {
	return demofile.New(r)
}

// NewParser builds a parser.Parser over df with the given options.
func NewParser(df *demofile.DemoFile, opts ...parser.Option) (*parser.Parser, error) {
	return parser.New(df, opts...)
}

// WithVisitor re-exports parser.WithVisitor for callers that only import
// the root package.
func WithVisitor(v parser.Visitor) parser.Option {
	return parser.WithVisitor(v)
}
