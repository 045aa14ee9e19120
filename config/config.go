// Package config holds the validation parameter block shared by every stage
// of breakpoint validation. Settings are built from Default(), adjusted by
// the caller, and checked once with Validate() before a run starts; they are
// passed by pointer into each component and never mutated mid-run.
package config

import (
	"fmt"
)

type Settings struct {
	// library metrics required to size evidence windows
	ReadLength         int
	MedianFragmentSize int
	StdevFragmentSize  int
	StdevCountAbnormal float64

	// evidence collection
	FetchReadsLimit           int
	FetchReadsBins            int
	FetchMinBinSize           int
	MinMappingQuality         uint8
	FilterSecondaryAlignments bool
	MinSoftclipping           int
	MinAnchorExact            int
	MinAnchorFuzzy            int

	// contig assembly
	AssemblyMaxPaths             int
	AssemblyMinExactMatchToRemap int
	AssemblyMinEdgeTrimWeight    int
	AssemblyMinRemapCoverage     float64
	AssemblyMinRemappedSeq       int
	AssemblyStrandConcordance    float64

	// external alignment
	BlatMinIdentity float64

	// breakpoint resolution from contig alignments
	ContigAlnMaxEventSize        int
	ContigAlnMergeInnerAnchor    int
	ContigAlnMergeOuterAnchor    int
	ContigAlnMinAnchorSize       int
	ContigAlnMinQueryConsumption float64
	MaxScPreceedingAnchor        int
	CallError                    int

	// event scoring
	MinLinkingSplitReads           int
	MinSplitsReadsResolution       int
	MinFlankingPairsResolution     int
	MinSpanningReadsResolution     int
	MinSampleSizeToApplyPercentage int
	FuzzyMismatchNumber            int
	StrandDeterminingRead          int
}

// Default returns the stock validation settings. Library metrics
// (ReadLength, MedianFragmentSize, StdevFragmentSize) have no sensible
// defaults and must be set by the caller.
func Default() Settings {
	return Settings{
		StdevCountAbnormal:             3,
		FetchReadsLimit:                3000,
		FetchReadsBins:                 3,
		FetchMinBinSize:                50,
		MinMappingQuality:              5,
		FilterSecondaryAlignments:      true,
		MinSoftclipping:                6,
		MinAnchorExact:                 6,
		MinAnchorFuzzy:                 10,
		AssemblyMaxPaths:               8,
		AssemblyMinExactMatchToRemap:   6,
		AssemblyMinEdgeTrimWeight:      3,
		AssemblyMinRemapCoverage:       0.5,
		AssemblyMinRemappedSeq:         3,
		AssemblyStrandConcordance:      0.51,
		BlatMinIdentity:                0.9,
		ContigAlnMaxEventSize:          50,
		ContigAlnMergeInnerAnchor:      20,
		ContigAlnMergeOuterAnchor:      15,
		ContigAlnMinAnchorSize:         50,
		ContigAlnMinQueryConsumption:   0.9,
		MaxScPreceedingAnchor:          6,
		CallError:                      10,
		MinLinkingSplitReads:           2,
		MinSplitsReadsResolution:       3,
		MinFlankingPairsResolution:     3,
		MinSpanningReadsResolution:     5,
		MinSampleSizeToApplyPercentage: 100,
		FuzzyMismatchNumber:            1,
		StrandDeterminingRead:          2,
	}
}

// MaxExpectedFragmentSize is the discordance bound for flanking pairs:
// fragments longer than median + stdevCount*stdev are treated as abnormal.
func (s *Settings) MaxExpectedFragmentSize() int {
	return s.MedianFragmentSize + int(s.StdevCountAbnormal*float64(s.StdevFragmentSize))
}

// MinExpectedFragmentSize is the short-fragment discordance bound, the
// mirror of MaxExpectedFragmentSize, floored at zero for wide distributions.
func (s *Settings) MinExpectedFragmentSize() int {
	min := s.MedianFragmentSize - int(s.StdevCountAbnormal*float64(s.StdevFragmentSize))
	if min < 0 {
		return 0
	}
	return min
}

// Validate checks every parameter before a run begins. A non-nil error is
// fatal at startup; settings are never re-checked mid-processing.
func (s *Settings) Validate() error {
	if s.ReadLength < 1 {
		return fmt.Errorf("read length must be positive: %d", s.ReadLength)
	}
	if s.MedianFragmentSize < 1 || s.StdevFragmentSize < 0 {
		return fmt.Errorf("invalid fragment size distribution: median %d stdev %d", s.MedianFragmentSize, s.StdevFragmentSize)
	}
	if s.StdevCountAbnormal < 0 {
		return fmt.Errorf("stdev count abnormal must be non-negative: %f", s.StdevCountAbnormal)
	}
	for _, c := range []struct {
		name string
		val  int
	}{
		{"fetch reads limit", s.FetchReadsLimit},
		{"fetch reads bins", s.FetchReadsBins},
		{"fetch min bin size", s.FetchMinBinSize},
		{"min softclipping", s.MinSoftclipping},
		{"min anchor exact", s.MinAnchorExact},
		{"min anchor fuzzy", s.MinAnchorFuzzy},
		{"assembly max paths", s.AssemblyMaxPaths},
		{"assembly min exact match to remap", s.AssemblyMinExactMatchToRemap},
		{"assembly min edge trim weight", s.AssemblyMinEdgeTrimWeight},
		{"assembly min remapped seq", s.AssemblyMinRemappedSeq},
		{"contig aln max event size", s.ContigAlnMaxEventSize},
		{"contig aln merge inner anchor", s.ContigAlnMergeInnerAnchor},
		{"contig aln merge outer anchor", s.ContigAlnMergeOuterAnchor},
		{"contig aln min anchor size", s.ContigAlnMinAnchorSize},
		{"max softclip preceding anchor", s.MaxScPreceedingAnchor},
		{"call error", s.CallError},
		{"min linking split reads", s.MinLinkingSplitReads},
		{"min split reads resolution", s.MinSplitsReadsResolution},
		{"min flanking pairs resolution", s.MinFlankingPairsResolution},
		{"min spanning reads resolution", s.MinSpanningReadsResolution},
		{"min sample size to apply percentage", s.MinSampleSizeToApplyPercentage},
		{"fuzzy mismatch number", s.FuzzyMismatchNumber},
	} {
		if c.val < 0 {
			return fmt.Errorf("%s must be non-negative: %d", c.name, c.val)
		}
	}
	if s.FetchReadsBins < 1 {
		return fmt.Errorf("fetch reads bins must be >= 1: %d", s.FetchReadsBins)
	}
	if s.AssemblyMaxPaths < 1 {
		return fmt.Errorf("assembly max paths must be >= 1: %d", s.AssemblyMaxPaths)
	}
	for _, c := range []struct {
		name string
		val  float64
	}{
		{"assembly min remap coverage", s.AssemblyMinRemapCoverage},
		{"assembly strand concordance", s.AssemblyStrandConcordance},
		{"blat min identity", s.BlatMinIdentity},
		{"contig aln min query consumption", s.ContigAlnMinQueryConsumption},
	} {
		if c.val < 0 || c.val > 1 {
			return fmt.Errorf("%s must be a fraction in [0,1]: %f", c.name, c.val)
		}
	}
	if s.StrandDeterminingRead != 1 && s.StrandDeterminingRead != 2 {
		return fmt.Errorf("strand determining read must be 1 or 2: %d", s.StrandDeterminingRead)
	}
	return nil
}
