package aligner

import (
	"context"
	"fmt"

	"github.com/vertgenlab/gonomics/align"
	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/fasta"
)

var gapOpen int64 = -600
var gapExtend int64 = -20

// Local aligns contigs in process with an affine-gap local alignment against
// the candidate's evidence windows. No external binary, no subprocess; slower
// per base than blat but always available, which makes it the fallback when
// the blat adapter reports ErrAlignmentUnavailable.
type Local struct {
	Ref *fasta.Seeker
}

func (l *Local) Align(ctx context.Context, queries [][]dna.Base, regions []Region, minIdentity float64) ([]ContigAlignment, error) {
	var ans []ContigAlignment
	for _, region := range regions {
		target, err := fasta.SeekByName(l.Ref, region.Chrom, region.Start-1, region.End)
		if err != nil {
			return nil, fmt.Errorf("%w: fetching %s:%d-%d: %v", ErrAlignmentUnavailable, region.Chrom, region.Start, region.End, err)
		}
		dna.AllToUpper(target)

		for id, query := range queries {
			if err = ctx.Err(); err != nil {
				return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, err)
			}
			if len(query) == 0 {
				continue
			}
			aln := bestOrientation(target, query, region)
			aln.ContigID = id
			if len(aln.Segments) > 0 {
				ans = append(ans, aln)
			}
		}
	}
	return filterIdentity(ans, minIdentity), nil
}

// bestOrientation aligns the query both as given and reverse complemented
// and keeps the higher-scoring hit. Minus-strand hits report forward-strand
// query coordinates.
func bestOrientation(target, query []dna.Base, region Region) ContigAlignment {
	fwdScore, fwdCig := align.AffineGapLocal(target, query, align.HumanChimpTwoScoreMatrix, gapOpen, gapExtend)

	rc := make([]dna.Base, len(query))
	copy(rc, query)
	dna.ReverseComplement(rc)
	revScore, revCig := align.AffineGapLocal(target, rc, align.HumanChimpTwoScoreMatrix, gapOpen, gapExtend)

	if revScore > fwdScore {
		aln := toAlignment(target, rc, revCig, region)
		aln.PosStrand = false
		flipQueryCoords(&aln)
		return aln
	}
	aln := toAlignment(target, query, fwdCig, region)
	aln.PosStrand = true
	return aln
}

// toAlignment walks an alignment column run list into gapless segments, one
// per match run, counting matches and mismatches base by base.
func toAlignment(target, query []dna.Base, cig []align.Cigar, region Region) ContigAlignment {
	a := ContigAlignment{QuerySize: len(query)}
	var tpos, qpos int
	for _, c := range cig {
		run := int(c.RunLength)
		switch c.Op {
		case align.ColM:
			for i := 0; i < run; i++ {
				if target[tpos+i] == query[qpos+i] {
					a.Matches++
				} else {
					a.Mismatches++
				}
			}
			a.Segments = append(a.Segments, Segment{
				Chrom:  region.Chrom,
				TStart: region.Start + tpos,
				TEnd:   region.Start + tpos + run - 1,
				QStart: qpos + 1,
				QEnd:   qpos + run,
			})
			tpos += run
			qpos += run
		case align.ColD:
			tpos += run
		case align.ColI:
			qpos += run
		}
	}
	return a
}

// flipQueryCoords translates reverse-complement query positions back onto
// the forward strand, matching the convention of the psl parser.
func flipQueryCoords(a *ContigAlignment) {
	for i := range a.Segments {
		s := &a.Segments[i]
		s.QStart, s.QEnd = a.QuerySize-s.QEnd+1, a.QuerySize-s.QStart+1
	}
}
