// Package fai reads fasta index files for random access metadata: the set of
// reference sequences, their lengths, and byte offsets. Evidence windows are
// clamped against these lengths and the output VCF header lists its contigs
// from the same index, so the one .fai shipped beside the reference genome
// serves both.
package fai

import (
	"fmt"
	"log"
	"strconv"
	"strings"

	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fileio"
)

// Index stores the byte offset for each reference sequence allowing for
// efficient random access.
type Index struct {
	chroms  []chrOffset    // for search by index
	nameMap map[string]int // maps chr name to index in chroms
}

// chrOffset has offset information about each reference. Equivalent to one
// line of a fai file.
type chrOffset struct {
	name         string // Name of this reference sequence
	len          int    // Total length of this reference sequence, in bases
	offset       int    // Offset within the FASTA file of this sequence's first base
	basesPerLine int    // The number of bases on each line
	bytesPerLine int    // The number of bytes in each line, including the newline
}

// String method for Index enables easy writing with the fmt package.
func (idx Index) String() string {
	answer := new(strings.Builder)
	for i := range idx.chroms {
		answer.WriteString(idx.chroms[i].String())
		answer.WriteByte('\n')
	}
	return answer.String()
}

func (c chrOffset) String() string {
	return fmt.Sprintf("%s\t%d\t%d\t%d\t%d", c.name, c.len, c.offset, c.basesPerLine, c.bytesPerLine)
}

// Size returns the length of chr in bases, or zero if chr is not indexed.
func (idx Index) Size(chr string) int {
	i, ok := idx.nameMap[chr]
	if !ok {
		return 0
	}
	return idx.chroms[i].len
}

// Has reports whether chr is present in the index.
func (idx Index) Has(chr string) bool {
	_, ok := idx.nameMap[chr]
	return ok
}

// Clamp truncates the half-open interval [start, end) to the bounds of chr.
// Evidence window generation can push coordinates below zero or past the end
// of a chromosome; indexed fetches must never see such coordinates.
func (idx Index) Clamp(chr string, start, end int) (int, int) {
	size := idx.Size(chr)
	if start < 0 {
		start = 0
	}
	if end > size {
		end = size
	}
	if start > end {
		start = end
	}
	return start, end
}

// ReadIndex reads a fai index file to an Index struct that can be used for
// random access.
func ReadIndex(filename string) Index {
	file := fileio.EasyOpen(filename)
	var answer Index
	var curr chrOffset
	var line string
	var col []string
	var done bool
	var err error
	for line, done = fileio.EasyNextRealLine(file); !done; line, done = fileio.EasyNextRealLine(file) {
		col = strings.Split(line, "\t")
		if len(col) != 5 {
			log.Fatalf("ERROR: malformed index file: %s\nerror on line:\n%s\n", filename, line)
		}

		curr.name = col[0]
		curr.len, err = strconv.Atoi(col[1])
		exception.PanicOnErr(err)
		curr.offset, err = strconv.Atoi(col[2])
		exception.PanicOnErr(err)
		curr.basesPerLine, err = strconv.Atoi(col[3])
		exception.PanicOnErr(err)
		curr.bytesPerLine, err = strconv.Atoi(col[4])
		exception.PanicOnErr(err)

		answer.chroms = append(answer.chroms, curr)
	}

	err = file.Close()
	exception.PanicOnErr(err)

	answer.nameMap = make(map[string]int)
	for i := range answer.chroms {
		answer.nameMap[answer.chroms[i].name] = i
	}
	return answer
}

// IndexToVcfHeader formats the indexed sequences as ##contig header lines.
func IndexToVcfHeader(idx Index) string {
	ans := new(strings.Builder)
	for i := range idx.chroms {
		ans.WriteString(fmt.Sprintf("##contig=<ID=%s,length=%d>\n", idx.chroms[i].name, idx.chroms[i].len))
	}
	return ans.String()
}
