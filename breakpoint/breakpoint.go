// Package breakpoint defines genomic breakpoints, candidate breakpoint pairs,
// and the evidence windows searched around them.
package breakpoint

import (
	"fmt"

	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/fai"
)

// Orientation marks which side of a breakpoint is retained in the rearranged
// product: Left means sequence left of the position joins the partner, Right
// means sequence right of it does.
type Orientation byte

const (
	OrientUnknown Orientation = '?'
	OrientLeft    Orientation = 'L'
	OrientRight   Orientation = 'R'
)

// Breakpoint is a position (or small uncertainty interval) on a reference
// sequence. Start and End are 1-based inclusive.
type Breakpoint struct {
	Chrom  string
	Start  int
	End    int
	Orient Orientation
	Strand byte // '+', '-' or '.'
}

func (b Breakpoint) String() string {
	return fmt.Sprintf("%s:%d-%d%c", b.Chrom, b.Start, b.End, b.Orient)
}

// Pair is two breakpoints forming one candidate or called event. The two
// positions may sit on different reference sequences; Interchromosomal
// reports that explicitly rather than leaving callers to compare names.
type Pair struct {
	Name            string
	B1              Breakpoint
	B2              Breakpoint
	OpposingStrands bool
}

func (p Pair) Interchromosomal() bool {
	return p.B1.Chrom != p.B2.Chrom
}

// EventSize is the inter-position distance, or -1 for interchromosomal pairs.
func (p Pair) EventSize() int {
	if p.Interchromosomal() {
		return -1
	}
	size := p.B2.Start - p.B1.End
	if size < 0 {
		size = -size
	}
	return size
}

// Bin is one sub-interval of an evidence window with its own fetch cap.
type Bin struct {
	Start int
	End   int
	Limit int
}

// Window is the genomic interval scanned for evidence around one breakpoint,
// pre-divided into bins for bounded fetching. Read-only after creation.
type Window struct {
	Chrom string
	Start int
	End   int
	Bins  []Bin
}

// GenerateWindow builds the evidence window for one breakpoint. The window
// reaches a full abnormal fragment length plus call error away from the
// breakpoint, except on the oriented side where only a read length past the
// call error can hold informative alignments. Coordinates are clamped to the
// chromosome bounds from idx.
func GenerateWindow(b Breakpoint, s *config.Settings, idx fai.Index) Window {
	fragment := s.MaxExpectedFragmentSize()
	start := b.Start - fragment - s.CallError + 1
	end := b.End + fragment + s.CallError - 1

	switch b.Orient {
	case OrientLeft:
		end = b.End + s.CallError + s.ReadLength - 1
	case OrientRight:
		start = b.Start - s.CallError - s.ReadLength + 1
	}

	if start < 1 {
		start = 1
	}
	zeroStart, zeroEnd := idx.Clamp(b.Chrom, start-1, end)
	w := Window{Chrom: b.Chrom, Start: zeroStart + 1, End: zeroEnd}
	w.Bins = splitBins(w.Start, w.End, s.FetchReadsBins, s.FetchMinBinSize, s.FetchReadsLimit)
	return w
}

// splitBins divides [start, end] into at most binCount bins of at least
// minBinSize bases, spreading fetchLimit across them. The remainder of an
// uneven split goes to the leftmost bins so the partition is deterministic.
func splitBins(start, end, binCount, minBinSize, fetchLimit int) []Bin {
	span := end - start + 1
	if span < 1 {
		return nil
	}
	for binCount > 1 && span/binCount < minBinSize {
		binCount--
	}
	bins := make([]Bin, binCount)
	width := span / binCount
	extraBases := span % binCount
	perBin := fetchLimit / binCount
	extraReads := fetchLimit % binCount

	pos := start
	for i := range bins {
		w := width
		if i < extraBases {
			w++
		}
		bins[i].Start = pos
		bins[i].End = pos + w - 1
		bins[i].Limit = perBin
		if i < extraReads {
			bins[i].Limit++
		}
		pos += w
	}
	return bins
}
