// Package resolve turns contig alignments into a final breakpoint pair.
// Segments are merged across small anchor gaps, gated on anchor size, query
// consumption, and preceding soft clip, and the surviving candidates are
// ranked by a fixed tie-break chain so the same inputs always resolve to the
// same call. A window with no eligible alignment yields no call, which is an
// ordinary outcome, not an error.
package resolve

import (
	"math"

	"github.com/kmwatson/svalidate/aligner"
	"github.com/kmwatson/svalidate/assembly"
	"github.com/kmwatson/svalidate/breakpoint"
	"github.com/kmwatson/svalidate/config"
	"golang.org/x/exp/slices"
)

// Call is a resolved breakpoint pair plus the alignment metrics that ranked
// it. EventSize is -1 for interchromosomal calls.
type Call struct {
	Pair             breakpoint.Pair
	ContigID         int
	EventSize        int
	CombinedAnchor   int
	QueryConsumption float64
	RemapCoverage    float64
}

// Resolve picks the best breakpoint pair supported by the window's contig
// alignments. The tie-break chain is: largest combined anchor, then smallest
// event size (interchromosomal ranks last), then highest query consumption,
// then highest remap coverage, then lowest contig id. The returned bool is
// false when no alignment produces an eligible segment pair.
func Resolve(alns []aligner.ContigAlignment, contigs []assembly.Contig, name string, s *config.Settings) (Call, bool) {
	coverage := make(map[int]float64)
	for i := range contigs {
		coverage[contigs[i].ID] = contigs[i].RemapCoverage
	}

	anchored := make([][]aligner.Segment, len(alns))
	for i := range alns {
		anchored[i] = anchorSegments(mergeSegments(alns[i].Segments, s), s)
	}

	var cands []Call
	// junctions inside one hit: adjacent segments split by the event
	for i := range alns {
		if alns[i].QueryConsumption() < s.ContigAlnMinQueryConsumption {
			continue
		}
		segs := clipSegments(anchored[i], s)
		for j := 0; j+1 < len(segs); j++ {
			c, ok := buildCall(segs[j], segs[j+1], alns[i].PosStrand, alns[i].PosStrand, alns[i], alns[i].QueryConsumption(), name, s)
			if !ok {
				continue
			}
			c.RemapCoverage = coverage[alns[i].ContigID]
			cands = append(cands, c)
		}
	}
	// junctions across opposite-strand hits of the same contig: the two
	// query halves align separately, so consumption and the preceding clip
	// are judged on the pair, not on either half alone
	for i := range alns {
		for j := range alns {
			if i == j || alns[i].ContigID != alns[j].ContigID || alns[i].PosStrand == alns[j].PosStrand {
				continue
			}
			for _, sa := range anchored[i] {
				if sa.QStart-1 > s.MaxScPreceedingAnchor {
					continue
				}
				for _, sb := range anchored[j] {
					qGap := sb.QStart - sa.QEnd - 1
					if qGap < -s.ContigAlnMergeInnerAnchor || qGap > s.ContigAlnMergeInnerAnchor {
						continue
					}
					consumption := float64(sa.Anchor()+sb.Anchor()) / float64(alns[i].QuerySize)
					if consumption < s.ContigAlnMinQueryConsumption {
						continue
					}
					c, ok := buildCall(sa, sb, alns[i].PosStrand, alns[j].PosStrand, alns[i], consumption, name, s)
					if !ok {
						continue
					}
					c.RemapCoverage = coverage[alns[i].ContigID]
					cands = append(cands, c)
				}
			}
		}
	}
	if len(cands) == 0 {
		return Call{}, false
	}

	slices.SortFunc(cands, func(a, b Call) int {
		if a.CombinedAnchor != b.CombinedAnchor {
			return b.CombinedAnchor - a.CombinedAnchor
		}
		if ea, eb := eventSizeRank(a.EventSize), eventSizeRank(b.EventSize); ea != eb {
			return ea - eb
		}
		if a.QueryConsumption != b.QueryConsumption {
			if a.QueryConsumption > b.QueryConsumption {
				return -1
			}
			return 1
		}
		if a.RemapCoverage != b.RemapCoverage {
			if a.RemapCoverage > b.RemapCoverage {
				return -1
			}
			return 1
		}
		return a.ContigID - b.ContigID
	})
	return cands[0], true
}

// mergeSegments joins adjacent blocks separated by at most the inner anchor
// gap on the query and the outer anchor gap on the target. Gaps that small
// are alignment noise around an anchor, not evidence of a second event. The
// target gap is bounded in magnitude: blocks in reversed target order are a
// duplication junction and must survive as two segments.
// Segments come back sorted by query position.
func mergeSegments(segs []aligner.Segment, s *config.Settings) []aligner.Segment {
	if len(segs) == 0 {
		return nil
	}
	sorted := make([]aligner.Segment, len(segs))
	copy(sorted, segs)
	slices.SortFunc(sorted, func(a, b aligner.Segment) int { return a.QStart - b.QStart })

	merged := []aligner.Segment{sorted[0]}
	for _, next := range sorted[1:] {
		curr := &merged[len(merged)-1]
		qGap := next.QStart - curr.QEnd - 1
		tGap := next.TStart - curr.TEnd - 1
		if next.Chrom == curr.Chrom && qGap <= s.ContigAlnMergeInnerAnchor &&
			tGap <= s.ContigAlnMergeOuterAnchor && tGap >= -s.ContigAlnMergeOuterAnchor {
			if next.TEnd > curr.TEnd {
				curr.TEnd = next.TEnd
			}
			if next.QEnd > curr.QEnd {
				curr.QEnd = next.QEnd
			}
			continue
		}
		merged = append(merged, next)
	}
	return merged
}

// anchorSegments keeps segments long enough to anchor a breakpoint.
func anchorSegments(segs []aligner.Segment, s *config.Settings) []aligner.Segment {
	var keep []aligner.Segment
	for _, seg := range segs {
		if seg.Anchor() >= s.ContigAlnMinAnchorSize {
			keep = append(keep, seg)
		}
	}
	return keep
}

// clipSegments drops segments preceded by an oversized unaligned stretch of
// query within their own hit. Cross-hit pairing checks the clip on the pair
// instead, since the other hit accounts for the rest of the query.
func clipSegments(segs []aligner.Segment, s *config.Settings) []aligner.Segment {
	var keep []aligner.Segment
	prevEnd := 0
	for _, seg := range segs {
		clip := seg.QStart - prevEnd - 1
		prevEnd = seg.QEnd
		if clip > s.MaxScPreceedingAnchor {
			continue
		}
		keep = append(keep, seg)
	}
	return keep
}

// edgePoint is the junction-facing edge of one aligned segment: a target
// position plus the orientation and strand it implies for the breakpoint.
type edgePoint struct {
	chrom  string
	pos    int
	orient breakpoint.Orientation
	strand byte
}

// facingEdge maps a segment's junction-facing side from query space onto the
// target. The first segment of a junction faces right in query coordinates,
// the second faces left; a minus-strand segment swaps which target end that
// is. A Left edge keeps the sequence left of it, a Right edge the sequence
// right of it, so target order and strand together decide the event class:
// forward order gives L/R (deletion), reversed order R/L (duplication), and
// an opposite-strand pair matching orientations (inversion).
func facingEdge(seg aligner.Segment, posStrand, facingRight bool) edgePoint {
	strand := byte('+')
	if !posStrand {
		strand = '-'
	}
	if posStrand == facingRight {
		return edgePoint{chrom: seg.Chrom, pos: seg.TEnd, orient: breakpoint.OrientLeft, strand: strand}
	}
	return edgePoint{chrom: seg.Chrom, pos: seg.TStart, orient: breakpoint.OrientRight, strand: strand}
}

// buildCall builds the call for one junction between segment a (earlier in
// query) and segment b. Breakpoints are ordered by target coordinate and
// widened by the call-error uncertainty radius. Intrachromosomal spans above
// the max event size are rejected rather than merged into one event.
func buildCall(a, b aligner.Segment, aPlus, bPlus bool, aln aligner.ContigAlignment, consumption float64, name string, s *config.Settings) (Call, bool) {
	var c Call
	c.ContigID = aln.ContigID
	c.CombinedAnchor = a.Anchor() + b.Anchor()
	c.QueryConsumption = consumption

	e1 := facingEdge(a, aPlus, true)
	e2 := facingEdge(b, bPlus, false)
	if e1.chrom == e2.chrom {
		if e2.pos < e1.pos {
			e1, e2 = e2, e1
		}
		c.EventSize = e2.pos - e1.pos - 1
		if c.EventSize < 0 {
			c.EventSize = 0
		}
		if c.EventSize > s.ContigAlnMaxEventSize {
			return c, false
		}
	} else {
		c.EventSize = -1
	}

	c.Pair = breakpoint.Pair{
		Name:            name,
		B1:              uncertain(e1, s.CallError),
		B2:              uncertain(e2, s.CallError),
		OpposingStrands: aPlus != bPlus,
	}
	return c, true
}

func uncertain(e edgePoint, callError int) breakpoint.Breakpoint {
	start := e.pos - callError
	if start < 1 {
		start = 1
	}
	return breakpoint.Breakpoint{
		Chrom:  e.chrom,
		Start:  start,
		End:    e.pos + callError,
		Orient: e.orient,
		Strand: e.strand,
	}
}

// eventSizeRank orders event sizes ascending with interchromosomal calls
// ranked after every sized event.
func eventSizeRank(size int) int {
	if size < 0 {
		return math.MaxInt32
	}
	return size
}
