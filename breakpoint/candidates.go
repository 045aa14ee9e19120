package breakpoint

import (
	"log"
	"strconv"
	"strings"

	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Candidate files are BEDPE-like TSV from the upstream clustering stage:
// chrom1 start1 end1 chrom2 start2 end2 name orient1 orient2 [strand1 strand2]
// Coordinates are 0-based half-open per BED convention; orientations are
// L/R/?. Strand columns are optional and default to '.'.

func parseCandidateLine(line string) Pair {
	words := strings.Split(line, "\t")
	if len(words) < 9 {
		log.Fatalf("ERROR: malformed candidate line, expected >= 9 columns:\n%s\n", line)
	}
	var p Pair
	var err error
	p.B1.Chrom = words[0]
	p.B1.Start, err = strconv.Atoi(words[1])
	exception.PanicOnErr(err)
	p.B1.Start++ // bed is 0-base, breakpoints are 1-base
	p.B1.End, err = strconv.Atoi(words[2])
	exception.PanicOnErr(err)
	p.B2.Chrom = words[3]
	p.B2.Start, err = strconv.Atoi(words[4])
	exception.PanicOnErr(err)
	p.B2.Start++
	p.B2.End, err = strconv.Atoi(words[5])
	exception.PanicOnErr(err)
	p.Name = words[6]
	p.B1.Orient = parseOrient(words[7], line)
	p.B2.Orient = parseOrient(words[8], line)
	p.B1.Strand, p.B2.Strand = '.', '.'
	if len(words) >= 11 {
		p.B1.Strand = words[9][0]
		p.B2.Strand = words[10][0]
		p.OpposingStrands = p.B1.Strand != p.B2.Strand && p.B1.Strand != '.' && p.B2.Strand != '.'
	}
	return p
}

func parseOrient(s string, line string) Orientation {
	switch s {
	case "L":
		return OrientLeft
	case "R":
		return OrientRight
	case "?", ".":
		return OrientUnknown
	}
	log.Fatalf("ERROR: bad orientation %q in candidate line:\n%s\n", s, line)
	return OrientUnknown
}

// ReadCandidates reads all candidate breakpoint pairs from file. Malformed
// input is fatal: candidates are a startup input and a partial read would
// silently drop windows.
func ReadCandidates(file string) []Pair {
	input := fileio.EasyOpen(file)
	var ans []Pair
	var line string
	var done bool
	for line, done = fileio.EasyNextRealLine(input); !done; line, done = fileio.EasyNextRealLine(input) {
		ans = append(ans, parseCandidateLine(line))
	}
	err := input.Close()
	exception.PanicOnErr(err)
	return ans
}
