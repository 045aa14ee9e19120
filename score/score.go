// Package score aggregates a window's evidence and its resolved call into a
// ValidatedEvent with a support tier. Nothing is dropped here: windows with
// weak or no support still produce an event, tagged so downstream filtering
// can apply its own policy.
package score

import (
	"sort"

	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/evidence"
	"github.com/kmwatson/svalidate/resolve"
	"gonum.org/v1/gonum/stat"
)

type Tier string

const (
	TierResolved     Tier = "resolved"
	TierPartial      Tier = "partial"
	TierInsufficient Tier = "insufficient"
)

// ValidatedEvent is the terminal record for one candidate window.
type ValidatedEvent struct {
	Set     *evidence.Set
	Call    resolve.Call
	HasCall bool
	Tier    Tier

	SplitReads        int
	LinkingSplitReads int
	FlankingPairs     int
	SpanningReads     int

	StrandConcordance float64
	EventStrand       byte // '+', '-', or '?' when undetermined

	FlankingMedian float64
	FlankingStdev  float64
}

// Score tallies per-kind support for the window and assigns the tier. Reads
// with more than FuzzyMismatchNumber mismatches do not contribute. Flanking
// support is counted in pairs (distinct read names), not individual mates.
func Score(set *evidence.Set, call resolve.Call, hasCall bool, s *config.Settings) ValidatedEvent {
	ev := ValidatedEvent{Set: set, Call: call, HasCall: hasCall}

	flankNames := make(map[string]bool)
	linkNames := make(map[string]int)
	var fragSizes []float64
	var strandReads, plusReads int

	for i := range set.Reads {
		r := &set.Reads[i]
		if r.Mismatches > s.FuzzyMismatchNumber {
			continue
		}
		switch r.Kind {
		case evidence.KindSplit:
			ev.SplitReads++
			linkNames[r.Rec.QName] |= r.SplitAt
		case evidence.KindSpanning:
			ev.SpanningReads++
		case evidence.KindFlanking:
			if !flankNames[r.Rec.QName] {
				flankNames[r.Rec.QName] = true
				ev.FlankingPairs++
				if t := abs(int(r.Rec.TLen)); t > 0 {
					fragSizes = append(fragSizes, float64(t))
				}
			}
		}
		if strandDetermining(r, s) {
			strandReads++
			if r.PosStrand {
				plusReads++
			}
		}
	}

	for _, sides := range linkNames {
		if sides == evidence.SplitAtB1|evidence.SplitAtB2 {
			ev.LinkingSplitReads++
		}
	}

	ev.StrandConcordance, ev.EventStrand = callStrand(strandReads, plusReads, s)
	ev.FlankingMedian, ev.FlankingStdev = flankingMetrics(fragSizes)
	ev.Tier = tier(&ev, s)
	return ev
}

// tier is resolved when any single evidence kind reaches its resolution
// minimum, partial when only a contig-backed call exists, and insufficient
// otherwise. When every kind is below its minimum and there is no call, the
// event can never be resolved.
func tier(ev *ValidatedEvent, s *config.Settings) Tier {
	supported := ev.SplitReads >= s.MinSplitsReadsResolution ||
		ev.FlankingPairs >= s.MinFlankingPairsResolution ||
		ev.SpanningReads >= s.MinSpanningReadsResolution
	switch {
	case supported:
		return TierResolved
	case ev.HasCall:
		return TierPartial
	default:
		return TierInsufficient
	}
}

// Linked reports whether enough split reads tie the two breakpoints to one
// another rather than supporting them independently.
func (ev *ValidatedEvent) Linked(s *config.Settings) bool {
	return ev.LinkingSplitReads >= s.MinLinkingSplitReads
}

// strandDetermining selects the mate that decides event orientation when the
// two mates disagree.
func strandDetermining(r *evidence.Read, s *config.Settings) bool {
	if s.StrandDeterminingRead == 2 {
		return !r.FirstInPair
	}
	return r.FirstInPair
}

// callStrand reports the majority-strand fraction and the called strand.
// The percentage-based call only applies once the sample is large enough;
// below that the strand stays undetermined.
func callStrand(total, plus int, s *config.Settings) (float64, byte) {
	if total == 0 {
		return 0, '?'
	}
	minus := total - plus
	concordance := float64(plus) / float64(total)
	if minus > plus {
		concordance = float64(minus) / float64(total)
	}
	if total < s.MinSampleSizeToApplyPercentage || plus == minus {
		return concordance, '?'
	}
	if plus > minus {
		return concordance, '+'
	}
	return concordance, '-'
}

// flankingMetrics summarizes the fragment-size distribution of the flanking
// pairs. An abnormal median relative to the library is what the flanking
// evidence is asserting, so the summary travels with the event.
func flankingMetrics(sizes []float64) (median, stdev float64) {
	if len(sizes) == 0 {
		return 0, 0
	}
	sort.Float64s(sizes)
	median = stat.Quantile(0.5, stat.Empirical, sizes, nil)
	if len(sizes) > 1 {
		stdev = stat.StdDev(sizes, nil)
	}
	return median, stdev
}

func abs(v int) int {
	if v < 0 {
		return -v
	}
	return v
}
