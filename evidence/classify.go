package evidence

import (
	"github.com/kmwatson/svalidate/breakpoint"
	"github.com/kmwatson/svalidate/config"
	"github.com/vertgenlab/gonomics/sam"
)

const (
	flagPaired       = 1
	flagUnmapped     = 4
	flagMateUnmapped = 8
	flagSecondary    = 256
)

// classify decides whether rec supports the candidate pair and with which
// evidence kind. Split reads are recognized first since a soft-clipped
// breakpoint crossing is the strongest signal, then spanning reads, then
// flanking pairs. The decision depends only on the record, the candidate,
// and the settings, so re-classification of an identical input is identical.
func classify(rec sam.Sam, p breakpoint.Pair, s *config.Settings) (Read, bool) {
	var r Read
	if rec.Flag&flagUnmapped != 0 {
		return r, false
	}
	if rec.MapQ < s.MinMappingQuality {
		return r, false
	}
	if s.FilterSecondaryAlignments && rec.Flag&flagSecondary != 0 {
		return r, false
	}
	if len(rec.Cigar) == 0 || rec.Cigar[0].Op == '*' {
		return r, false
	}

	r.Rec = rec
	r.Softclip = max(leadingClip(rec), trailingClip(rec))
	r.Mismatches = mismatchCount(rec)
	r.PosStrand = sam.IsPosStrand(rec)
	r.FirstInPair = sam.IsForwardRead(rec)

	switch sides := splitSides(rec, p, s); {
	case sides != 0:
		r.Kind = KindSplit
		r.SplitAt = sides
	case isSpanning(rec, p, s):
		r.Kind = KindSpanning
	case isFlanking(rec, p, s):
		r.Kind = KindFlanking
	default:
		return r, false
	}
	return r, true
}

// splitSides reports which breakpoints the read's soft clips support, as a
// SplitAtB1/SplitAtB2 bitmask. A split read needs a clip of at least
// MinSoftclipping at the read end facing a breakpoint, the clip boundary
// within call error of that breakpoint interval, and an anchor that is
// either a long enough exact match run or a long enough total alignment.
func splitSides(rec sam.Sam, p breakpoint.Pair, s *config.Settings) int {
	if !anchorOk(rec, s) {
		return 0
	}
	var sides int
	lead, trail := leadingClip(rec), trailingClip(rec)
	for i, b := range []breakpoint.Breakpoint{p.B1, p.B2} {
		if rec.RName != b.Chrom {
			continue
		}
		if lead >= s.MinSoftclipping && near(int(rec.Pos), b, s.CallError) {
			sides |= 1 << i
		}
		if trail >= s.MinSoftclipping && near(rec.GetChromEnd(), b, s.CallError) {
			sides |= 1 << i
		}
	}
	return sides
}

// isSpanning requires the full event to sit inside one read: the alignment
// anchors at least MinAnchorExact bases on either side of both breakpoints
// and carries an indel between them.
func isSpanning(rec sam.Sam, p breakpoint.Pair, s *config.Settings) bool {
	if p.Interchromosomal() || rec.RName != p.B1.Chrom {
		return false
	}
	if !hasIndel(rec) {
		return false
	}
	start := int(rec.Pos)
	end := rec.GetChromEnd()
	return start <= p.B1.Start-s.MinAnchorExact && end >= p.B2.End+s.MinAnchorExact
}

// isFlanking requires a mapped mate at abnormal distance (or on another
// chromosome) while the read itself stays on one side of both breakpoints.
// Both tails of the fragment-size distribution are abnormal: an over-long
// fragment flanks a deletion, an over-short one an insertion. Zero TLen
// means the aligner did not report a fragment size, not a short fragment.
func isFlanking(rec sam.Sam, p breakpoint.Pair, s *config.Settings) bool {
	if rec.Flag&flagPaired == 0 || rec.Flag&flagMateUnmapped != 0 {
		return false
	}
	tlen := int(rec.TLen)
	if tlen < 0 {
		tlen = -tlen
	}
	discordant := rec.RNext != "=" && rec.RNext != rec.RName
	if tlen > s.MaxExpectedFragmentSize() {
		discordant = true
	}
	if tlen > 0 && tlen < s.MinExpectedFragmentSize() {
		discordant = true
	}
	if !discordant {
		return false
	}
	for _, b := range []breakpoint.Breakpoint{p.B1, p.B2} {
		if rec.RName == b.Chrom && int(rec.Pos) <= b.Start && rec.GetChromEnd() >= b.End {
			return false // crosses the breakpoint, not flanking
		}
	}
	return true
}

func near(pos int, b breakpoint.Breakpoint, callError int) bool {
	return pos >= b.Start-callError && pos <= b.End+callError
}

func anchorOk(rec sam.Sam, s *config.Settings) bool {
	return longestMatchRun(rec) >= s.MinAnchorExact || alignedLength(rec) >= s.MinAnchorFuzzy
}

func leadingClip(rec sam.Sam) int {
	if len(rec.Cigar) > 0 && rec.Cigar[0].Op == 'S' {
		return rec.Cigar[0].RunLength
	}
	return 0
}

func trailingClip(rec sam.Sam) int {
	if n := len(rec.Cigar); n > 0 && rec.Cigar[n-1].Op == 'S' {
		return rec.Cigar[n-1].RunLength
	}
	return 0
}

func longestMatchRun(rec sam.Sam) int {
	var best int
	for i := range rec.Cigar {
		if rec.Cigar[i].Op == 'M' && rec.Cigar[i].RunLength > best {
			best = rec.Cigar[i].RunLength
		}
	}
	return best
}

func alignedLength(rec sam.Sam) int {
	var n int
	for i := range rec.Cigar {
		if rec.Cigar[i].Op == 'M' {
			n += rec.Cigar[i].RunLength
		}
	}
	return n
}

func hasIndel(rec sam.Sam) bool {
	for i := range rec.Cigar {
		if rec.Cigar[i].Op == 'I' || rec.Cigar[i].Op == 'D' {
			return true
		}
	}
	return false
}

// mismatchCount pulls the aligner-reported edit distance when present.
func mismatchCount(rec sam.Sam) int {
	sam.ParseExtra(&rec)
	query, found, err := sam.QueryTag(rec, "NM")
	if err != nil || !found {
		return 0
	}
	switch v := query.(type) {
	case int:
		return v
	case int32:
		return int(v)
	case uint32:
		return int(v)
	case int16:
		return int(v)
	case uint16:
		return int(v)
	case int8:
		return int(v)
	case uint8:
		return int(v)
	default:
		return 0
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
