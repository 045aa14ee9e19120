package aligner

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/fasta"
)

// Blat aligns contigs by shelling out to the blat binary. Queries go out as
// a temp FASTA, hits come back as headerless PSL. Any subprocess failure,
// including a context timeout, surfaces as ErrAlignmentUnavailable so the
// caller can apply its retry policy.
type Blat struct {
	Prog    string        // blat executable, defaults to "blat" on PATH
	Ref     string        // reference fasta or 2bit database
	Timeout time.Duration // zero means no limit beyond ctx
}

func (b *Blat) Align(ctx context.Context, queries [][]dna.Base, regions []Region, minIdentity float64) ([]ContigAlignment, error) {
	if len(queries) == 0 {
		return nil, nil
	}
	prog := b.Prog
	if prog == "" {
		prog = "blat"
	}
	if b.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.Timeout)
		defer cancel()
	}

	queryFile, err := writeQueryFasta(queries)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, err)
	}
	defer os.Remove(queryFile)
	outFile := queryFile + ".psl"
	defer os.Remove(outFile)

	cmd := exec.CommandContext(ctx, prog,
		fmt.Sprintf("-minIdentity=%d", int(minIdentity*100)),
		"-noHead", b.Ref, queryFile, outFile)
	if out, err := cmd.CombinedOutput(); err != nil {
		if ctx.Err() != nil {
			return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, ctx.Err())
		}
		return nil, fmt.Errorf("%w: %s: %v: %s", ErrAlignmentUnavailable, prog, err, out)
	}

	alns, err := readPsl(outFile)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAlignmentUnavailable, err)
	}
	return filterIdentity(filterRegionChrom(alns, regions), minIdentity), nil
}

// writeQueryFasta stages contig sequences for the subprocess, one record per
// contig named contig_N so hits can be traced back by id.
func writeQueryFasta(queries [][]dna.Base) (string, error) {
	tmp, err := os.CreateTemp("", "contigs_*.fa")
	if err != nil {
		return "", err
	}
	name := tmp.Name()
	if err = tmp.Close(); err != nil {
		return "", err
	}
	records := make([]fasta.Fasta, len(queries))
	for i := range queries {
		records[i] = fasta.Fasta{Name: fmt.Sprintf("contig_%d", i), Seq: queries[i]}
	}
	fasta.Write(name, records)
	return name, nil
}

// filterRegionChrom drops whole-genome hits that landed off the candidate's
// chromosomes. Blat searches the full database, so a repetitive contig can
// hit anywhere; only hits on a window chromosome can explain the event.
func filterRegionChrom(alns []ContigAlignment, regions []Region) []ContigAlignment {
	if len(regions) == 0 {
		return alns
	}
	chroms := make(map[string]bool)
	for i := range regions {
		chroms[regions[i].Chrom] = true
	}
	var keep []ContigAlignment
	for i := range alns {
		onChrom := false
		for j := range alns[i].Segments {
			if chroms[alns[i].Segments[j].Chrom] {
				onChrom = true
				break
			}
		}
		if onChrom {
			keep = append(keep, alns[i])
		}
	}
	return keep
}
