package aligner

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/vertgenlab/gonomics/fileio"
)

const pslFieldCount = 21

// readPsl parses a headerless PSL file into one ContigAlignment per line.
// Query names must carry the contig id as a trailing _N suffix, which is how
// writeQueryFasta names them.
func readPsl(filename string) ([]ContigAlignment, error) {
	var ans []ContigAlignment
	file := fileio.EasyOpen(filename)
	defer file.Close()
	for line, done := fileio.EasyNextRealLine(file); !done; line, done = fileio.EasyNextRealLine(file) {
		if strings.HasPrefix(line, "psLayout") || strings.HasPrefix(line, "match") || strings.HasPrefix(line, "-") {
			continue // tolerate a stray header
		}
		aln, err := parsePslLine(line)
		if err != nil {
			return nil, err
		}
		ans = append(ans, aln)
	}
	return ans, nil
}

// parsePslLine converts one PSL record into a ContigAlignment. PSL block
// coordinates are 0-based half-open; segments come out 1-based inclusive,
// with minus-strand query positions translated back to forward-strand
// coordinates so downstream consumers see one coordinate system.
func parsePslLine(line string) (ContigAlignment, error) {
	var a ContigAlignment
	fields := strings.Split(strings.TrimSpace(line), "\t")
	if len(fields) < pslFieldCount {
		return a, fmt.Errorf("malformed psl record, %d fields: %s", len(fields), line)
	}

	var err error
	if a.Matches, err = strconv.Atoi(fields[0]); err != nil {
		return a, fmt.Errorf("parsing psl matches: %w", err)
	}
	if a.Mismatches, err = strconv.Atoi(fields[1]); err != nil {
		return a, fmt.Errorf("parsing psl mismatches: %w", err)
	}
	a.PosStrand = !strings.HasPrefix(fields[8], "-")
	if a.ContigID, err = contigIDFromName(fields[9]); err != nil {
		return a, err
	}
	if a.QuerySize, err = strconv.Atoi(fields[10]); err != nil {
		return a, fmt.Errorf("parsing psl query size: %w", err)
	}
	chrom := fields[13]

	blockSizes, err := splitCommaInts(fields[18])
	if err != nil {
		return a, fmt.Errorf("parsing psl block sizes: %w", err)
	}
	qStarts, err := splitCommaInts(fields[19])
	if err != nil {
		return a, fmt.Errorf("parsing psl query starts: %w", err)
	}
	tStarts, err := splitCommaInts(fields[20])
	if err != nil {
		return a, fmt.Errorf("parsing psl target starts: %w", err)
	}
	if len(blockSizes) != len(qStarts) || len(blockSizes) != len(tStarts) {
		return a, fmt.Errorf("psl block lists disagree in length: %s", line)
	}

	for i := range blockSizes {
		qs := qStarts[i]
		if !a.PosStrand {
			// minus-strand qStarts count from the reverse complement
			qs = a.QuerySize - (qStarts[i] + blockSizes[i])
		}
		a.Segments = append(a.Segments, Segment{
			Chrom:  chrom,
			TStart: tStarts[i] + 1,
			TEnd:   tStarts[i] + blockSizes[i],
			QStart: qs + 1,
			QEnd:   qs + blockSizes[i],
		})
	}
	return a, nil
}

func contigIDFromName(name string) (int, error) {
	idx := strings.LastIndexByte(name, '_')
	if idx == -1 {
		return 0, fmt.Errorf("query name missing contig id: %s", name)
	}
	id, err := strconv.Atoi(name[idx+1:])
	if err != nil {
		return 0, fmt.Errorf("query name missing contig id: %s", name)
	}
	return id, nil
}

func splitCommaInts(s string) ([]int, error) {
	var ans []int
	for _, f := range strings.Split(strings.TrimSuffix(s, ","), ",") {
		v, err := strconv.Atoi(f)
		if err != nil {
			return nil, err
		}
		ans = append(ans, v)
	}
	return ans, nil
}
