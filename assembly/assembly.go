// Package assembly merges overlapping evidence reads into consensus contigs.
// Reads are deduplicated into weighted nodes, joined by exact suffix-prefix
// overlaps, and chained greedily; ambiguous branch points fork into separate
// contigs, bounded by the configured path limit, so alternative breakpoint
// hypotheses survive to alignment instead of being tie-broken away here.
package assembly

import (
	"strings"

	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/evidence"
	"github.com/vertgenlab/gonomics/dna"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// Contig is one consensus sequence with its supporting-read bookkeeping.
// ReadIDs index into the evidence set the contig was assembled from; the
// reads stay owned by that set.
type Contig struct {
	ID                int
	Seq               []dna.Base
	ReadIDs           []int
	RemappedReads     int
	RemapCoverage     float64
	StrandConcordance float64
}

type node struct {
	seq    string
	weight int
}

type edge struct {
	to      string
	overlap int
	weight  int
}

// Assemble builds between 0 and AssemblyMaxPaths contigs from the window's
// evidence reads. Node and edge traversal orders are fixed by sorting on
// sequence, so the result is invariant under permutation of the input reads.
// Zero surviving contigs is a valid outcome, not an error.
func Assemble(reads []evidence.Read, s *config.Settings) []Contig {
	nodes := make(map[string]*node)
	for i := range reads {
		seq := dna.BasesToString(reads[i].Rec.Seq)
		if seq == "" {
			continue
		}
		n, ok := nodes[seq]
		if !ok {
			n = &node{seq: seq}
			nodes[seq] = n
		}
		n.weight++
	}
	if len(nodes) == 0 {
		return nil
	}

	keys := maps.Keys(nodes)
	slices.Sort(keys)

	edges := make(map[string][]edge)
	hasIncoming := make(map[string]bool)
	for _, a := range keys {
		for _, b := range keys {
			if a == b {
				continue
			}
			ov := suffixPrefixOverlap(a, b, s.AssemblyMinExactMatchToRemap)
			if ov == 0 {
				continue
			}
			w := nodes[a].weight
			if nodes[b].weight < w {
				w = nodes[b].weight
			}
			// trim weakly supported joins
			if w < s.AssemblyMinEdgeTrimWeight {
				continue
			}
			edges[a] = append(edges[a], edge{to: b, overlap: ov, weight: w})
			hasIncoming[b] = true
		}
	}
	for _, k := range keys {
		slices.SortFunc(edges[k], func(a, b edge) int {
			if a.overlap != b.overlap {
				return b.overlap - a.overlap
			}
			return strings.Compare(a.to, b.to)
		})
	}

	// chains start at nodes without an incoming overlap; if everything has
	// one (a cycle), fall back to every node so the window still assembles
	var starts []string
	for _, k := range keys {
		if !hasIncoming[k] {
			starts = append(starts, k)
		}
	}
	if len(starts) == 0 {
		starts = keys
	}

	var paths [][]string
	for _, start := range starts {
		if len(paths) >= s.AssemblyMaxPaths {
			break
		}
		paths = extendPath([]string{start}, edges, paths, s.AssemblyMaxPaths)
	}

	var contigs []Contig
	seenSeq := make(map[string]bool)
	for _, path := range paths {
		c := buildContig(path, edges, reads)
		key := dna.BasesToString(c.Seq)
		if seenSeq[key] {
			continue
		}
		seenSeq[key] = true
		if c.RemapCoverage < s.AssemblyMinRemapCoverage {
			continue
		}
		if c.RemappedReads < s.AssemblyMinRemappedSeq {
			continue
		}
		if c.StrandConcordance < s.AssemblyStrandConcordance {
			continue
		}
		c.ID = len(contigs)
		contigs = append(contigs, c)
		if len(contigs) == s.AssemblyMaxPaths {
			break
		}
	}
	return contigs
}

// extendPath grows path greedily; a branch point (more than one usable
// extension) forks one path per alternative rather than picking arbitrarily.
// The best-overlap extension is always explored first, so the primary chain
// is emitted before its alternatives when the path budget runs short.
func extendPath(path []string, edges map[string][]edge, paths [][]string, maxPaths int) [][]string {
	if len(paths) >= maxPaths {
		return paths
	}
	curr := path[len(path)-1]
	var exts []edge
	for _, e := range edges[curr] {
		if !slices.Contains(path, e.to) {
			exts = append(exts, e)
		}
	}
	if len(exts) == 0 {
		return append(paths, path)
	}
	for _, e := range exts {
		if len(paths) >= maxPaths {
			break
		}
		branch := make([]string, len(path), len(path)+1)
		copy(branch, path)
		paths = extendPath(append(branch, e.to), edges, paths, maxPaths)
	}
	return paths
}

// buildContig concatenates a chain and remaps every window read against it.
// Remap coverage is the fraction of all assembly input reads accounted for
// by the contig, so off-path reads (sequencing errors, rival haplotypes)
// pull it down.
func buildContig(path []string, edges map[string][]edge, reads []evidence.Read) Contig {
	var c Contig
	seq := path[0]
	for i := 1; i < len(path); i++ {
		ov := overlapBetween(path[i-1], path[i], edges)
		seq += path[i][ov:]
	}
	c.Seq = dna.StringToBases(seq)

	var plus int
	for i := range reads {
		if !strings.Contains(seq, dna.BasesToString(reads[i].Rec.Seq)) {
			continue
		}
		c.ReadIDs = append(c.ReadIDs, i)
		c.RemappedReads++
		if reads[i].PosStrand {
			plus++
		}
	}
	if len(reads) > 0 {
		c.RemapCoverage = float64(c.RemappedReads) / float64(len(reads))
	}
	if c.RemappedReads > 0 {
		minus := c.RemappedReads - plus
		if plus > minus {
			c.StrandConcordance = float64(plus) / float64(c.RemappedReads)
		} else {
			c.StrandConcordance = float64(minus) / float64(c.RemappedReads)
		}
	}
	return c
}

func overlapBetween(from, to string, edges map[string][]edge) int {
	for _, e := range edges[from] {
		if e.to == to {
			return e.overlap
		}
	}
	return 0
}

// suffixPrefixOverlap returns the longest overlap of at least minOverlap
// bases between the tail of a and the head of b, or 0 when none exists.
// Containment does not count: an overlap never swallows either sequence.
func suffixPrefixOverlap(a, b string, minOverlap int) int {
	limit := len(a)
	if len(b) < limit {
		limit = len(b)
	}
	for k := limit - 1; k >= minOverlap; k-- {
		if a[len(a)-k:] == b[:k] {
			return k
		}
	}
	return 0
}
