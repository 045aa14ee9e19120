// Package aligner abstracts the external sequence aligner behind a small
// capability interface: submit query sequences and a reference region, get
// back typed alignment records. Any conforming implementation is
// substitutable; Blat shells out to the blat binary while Local runs an
// affine-gap alignment in process, and the rest of the pipeline cannot tell
// them apart.
package aligner

import (
	"context"
	"errors"

	"github.com/vertgenlab/gonomics/dna"
)

// ErrAlignmentUnavailable reports that the aligner could not be reached or
// errored, including timeouts. The caller may retry once with a relaxed
// identity threshold before treating the contig as unresolved.
var ErrAlignmentUnavailable = errors.New("aligner unavailable")

// Region is a 1-based inclusive reference interval.
type Region struct {
	Chrom string
	Start int
	End   int
}

// Segment is one gapless aligned block, 1-based inclusive on both target and
// query coordinates.
type Segment struct {
	Chrom  string
	TStart int
	TEnd   int
	QStart int
	QEnd   int
}

// Anchor is the aligned length of the block, the size of the evidence
// anchoring a breakpoint on one side.
func (s Segment) Anchor() int {
	return s.QEnd - s.QStart + 1
}

// ContigAlignment is one ranked hit for one query: its blocks in target
// order plus hit-level match statistics.
type ContigAlignment struct {
	ContigID   int
	QuerySize  int
	Matches    int
	Mismatches int
	PosStrand  bool
	Segments   []Segment
}

// QueryConsumption is the fraction of the query accounted for by aligned
// blocks, in [0,1].
func (a ContigAlignment) QueryConsumption() float64 {
	if a.QuerySize == 0 {
		return 0
	}
	var n int
	for i := range a.Segments {
		n += a.Segments[i].Anchor()
	}
	return float64(n) / float64(a.QuerySize)
}

// Identity is the fraction of aligned bases that match, in [0,1].
func (a ContigAlignment) Identity() float64 {
	total := a.Matches + a.Mismatches
	if total == 0 {
		return 0
	}
	return float64(a.Matches) / float64(total)
}

// Aligner is the external-aligner capability. Regions are the reference
// intervals that could explain the contig, one per evidence window.
// Implementations must honor context cancellation and report failure as
// ErrAlignmentUnavailable.
type Aligner interface {
	Align(ctx context.Context, queries [][]dna.Base, regions []Region, minIdentity float64) ([]ContigAlignment, error)
}

// filterIdentity keeps hits at or above the identity cutoff.
func filterIdentity(alns []ContigAlignment, minIdentity float64) []ContigAlignment {
	var keep []ContigAlignment
	for i := range alns {
		if alns[i].Identity() >= minIdentity {
			keep = append(keep, alns[i])
		}
	}
	return keep
}
