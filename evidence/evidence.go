// Package evidence scans the alignment store around a candidate breakpoint
// pair and classifies overlapping reads as split, flanking-pair, or spanning
// evidence. Collection is bounded: each window is divided into bins with a
// shared fetch cap so pathological pileups cannot exhaust memory.
package evidence

import (
	"errors"
	"fmt"
	"sort"

	"github.com/kmwatson/svalidate/breakpoint"
	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/fai"
	"github.com/vertgenlab/gonomics/sam"
)

// ErrSourceUnavailable reports that the alignment source could not serve the
// window's coordinates. Callers skip the candidate; the error is not
// retryable.
var ErrSourceUnavailable = errors.New("alignment source unavailable")

type Kind byte

const (
	KindSplit Kind = iota
	KindFlanking
	KindSpanning
)

func (k Kind) String() string {
	switch k {
	case KindSplit:
		return "split"
	case KindFlanking:
		return "flanking"
	case KindSpanning:
		return "spanning"
	default:
		return "unknown"
	}
}

// Split-read breakpoint attribution bits. A read clipped at both ends can
// support both breakpoints at once.
const (
	SplitAtB1 = 1 << iota
	SplitAtB2
)

// Read is one classified evidence read. The record is owned by the Set that
// collected it and is discarded once assembly and scoring consume it.
// SplitAt is a SplitAtB1/SplitAtB2 bitmask and is zero for non-split kinds.
type Read struct {
	Rec         sam.Sam
	Kind        Kind
	SplitAt     int
	Softclip    int
	Mismatches  int
	PosStrand   bool
	FirstInPair bool
}

// Set is all evidence collected for one candidate pair.
type Set struct {
	Pair    breakpoint.Pair
	Window1 breakpoint.Window
	Window2 breakpoint.Window
	Reads   []Read
}

func (s *Set) Count(k Kind) int {
	var n int
	for i := range s.Reads {
		if s.Reads[i].Kind == k {
			n++
		}
	}
	return n
}

// Collector owns the per-worker handles into the alignment store. A
// Collector must not be shared across goroutines; each worker opens its own.
type Collector struct {
	Bam      *sam.BamReader
	Bai      sam.Bai
	Header   sam.Header
	Idx      fai.Index
	Settings *config.Settings
}

// Collect gathers and classifies evidence for one candidate pair. Bins are
// fetched in window order so repeated runs on the same input yield an
// identical, deterministically ordered evidence set.
func (c *Collector) Collect(p breakpoint.Pair) (*Set, error) {
	for _, chrom := range []string{p.B1.Chrom, p.B2.Chrom} {
		if !c.Idx.Has(chrom) || !c.headerHas(chrom) {
			return nil, fmt.Errorf("%w: %s not present in alignment source", ErrSourceUnavailable, chrom)
		}
	}

	set := &Set{
		Pair:    p,
		Window1: breakpoint.GenerateWindow(p.B1, c.Settings, c.Idx),
		Window2: breakpoint.GenerateWindow(p.B2, c.Settings, c.Idx),
	}

	seen := make(map[string]bool)
	for _, w := range []breakpoint.Window{set.Window1, set.Window2} {
		for _, bin := range w.Bins {
			recs, err := c.fetchBin(w.Chrom, bin)
			if err != nil {
				return nil, err
			}
			for i := range recs {
				key := fmt.Sprintf("%s/%d/%d", recs[i].QName, recs[i].Pos, recs[i].Flag)
				if seen[key] {
					continue
				}
				seen[key] = true
				if r, ok := classify(recs[i], p, c.Settings); ok {
					set.Reads = append(set.Reads, r)
				}
			}
		}
	}

	sort.Slice(set.Reads, func(i, j int) bool {
		if set.Reads[i].Rec.Pos != set.Reads[j].Rec.Pos {
			return set.Reads[i].Rec.Pos < set.Reads[j].Rec.Pos
		}
		if set.Reads[i].Rec.QName != set.Reads[j].Rec.QName {
			return set.Reads[i].Rec.QName < set.Reads[j].Rec.QName
		}
		return set.Reads[i].Rec.Flag < set.Reads[j].Rec.Flag
	})
	return set, nil
}

// fetchBin pulls up to bin.Limit reads overlapping the bin. The underlying
// reader panics on a bad seek; that is recovered into ErrSourceUnavailable
// so one broken region skips a single candidate instead of killing the run.
func (c *Collector) fetchBin(chrom string, bin breakpoint.Bin) (recs []sam.Sam, err error) {
	defer func() {
		if r := recover(); r != nil {
			recs = nil
			err = fmt.Errorf("%w: fetch %s:%d-%d: %v", ErrSourceUnavailable, chrom, bin.Start, bin.End, r)
		}
	}()
	recs = sam.SeekBamRegion(c.Bam, c.Bai, chrom, uint32(bin.Start), uint32(bin.End))
	if len(recs) > bin.Limit {
		recs = recs[:bin.Limit]
	}
	return recs, nil
}

func (c *Collector) headerHas(chrom string) bool {
	for i := range c.Header.Chroms {
		if c.Header.Chroms[i].Name == chrom {
			return true
		}
	}
	return false
}
