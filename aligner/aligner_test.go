package aligner

import (
	"strings"
	"testing"

	"github.com/vertgenlab/gonomics/align"
	"github.com/vertgenlab/gonomics/dna"
)

func pslLine(fields ...string) string {
	return strings.Join(fields, "\t")
}

func TestParsePslLine(t *testing.T) {
	line := pslLine("95", "5", "0", "0", "0", "0", "1", "50", "+",
		"contig_2", "100", "0", "100", "chr1", "248956422", "999", "1149",
		"2", "60,40,", "0,60,", "999,1109,")

	a, err := parsePslLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if a.ContigID != 2 || a.QuerySize != 100 || a.Matches != 95 || a.Mismatches != 5 {
		t.Error("wrong hit statistics:", a)
	}
	if !a.PosStrand {
		t.Error("expected plus strand hit")
	}
	if len(a.Segments) != 2 {
		t.Fatal("expected 2 segments, got", len(a.Segments))
	}
	want := []Segment{
		{Chrom: "chr1", TStart: 1000, TEnd: 1059, QStart: 1, QEnd: 60},
		{Chrom: "chr1", TStart: 1110, TEnd: 1149, QStart: 61, QEnd: 100},
	}
	for i := range want {
		if a.Segments[i] != want[i] {
			t.Error("segment mismatch:", a.Segments[i], want[i])
		}
	}
	if a.QueryConsumption() != 1 {
		t.Error("fully aligned query should have consumption 1:", a.QueryConsumption())
	}
	if a.Identity() != 0.95 {
		t.Error("wrong identity:", a.Identity())
	}
}

func TestParsePslLineMinusStrand(t *testing.T) {
	line := pslLine("40", "0", "0", "0", "0", "0", "0", "0", "-",
		"contig_0", "100", "0", "40", "chr2", "198295559", "1999", "2039",
		"1", "40,", "0,", "1999,")

	a, err := parsePslLine(line)
	if err != nil {
		t.Fatal(err)
	}
	if a.PosStrand {
		t.Error("expected minus strand hit")
	}
	got := a.Segments[0]
	if got.TStart != 2000 || got.TEnd != 2039 {
		t.Error("wrong target span:", got)
	}
	// reverse-complement block start 0 maps to the forward-strand tail
	if got.QStart != 61 || got.QEnd != 100 {
		t.Error("minus strand query coords not flipped:", got)
	}
}

func TestParsePslLineMalformed(t *testing.T) {
	if _, err := parsePslLine("not a psl record"); err == nil {
		t.Error("truncated record should fail")
	}
	line := pslLine("40", "0", "0", "0", "0", "0", "0", "0", "+",
		"noid", "100", "0", "40", "chr2", "198295559", "1999", "2039",
		"1", "40,", "0,", "1999,")
	if _, err := parsePslLine(line); err == nil {
		t.Error("query name without contig id should fail")
	}
}

func TestFilterIdentity(t *testing.T) {
	alns := []ContigAlignment{
		{ContigID: 0, Matches: 95, Mismatches: 5},
		{ContigID: 1, Matches: 80, Mismatches: 20},
	}
	keep := filterIdentity(alns, 0.9)
	if len(keep) != 1 || keep[0].ContigID != 0 {
		t.Error("identity filter kept the wrong hits:", keep)
	}
}

func TestFilterRegionChrom(t *testing.T) {
	alns := []ContigAlignment{
		{ContigID: 0, Segments: []Segment{{Chrom: "chr1"}}},
		{ContigID: 1, Segments: []Segment{{Chrom: "chr9"}}},
		{ContigID: 2, Segments: []Segment{{Chrom: "chr2"}}},
	}
	regions := []Region{{Chrom: "chr1", Start: 1, End: 100}, {Chrom: "chr2", Start: 1, End: 100}}
	keep := filterRegionChrom(alns, regions)
	if len(keep) != 2 || keep[0].ContigID != 0 || keep[1].ContigID != 2 {
		t.Error("off-window hits should be dropped:", keep)
	}
}

func TestToAlignment(t *testing.T) {
	target := dna.StringToBases("ACGTACGTACGT")
	query := dna.StringToBases("ACGTGTAC")
	cig := []align.Cigar{
		{RunLength: 4, Op: align.ColM},
		{RunLength: 2, Op: align.ColD},
		{RunLength: 4, Op: align.ColM},
	}
	region := Region{Chrom: "chr1", Start: 101, End: 112}

	a := toAlignment(target, query, cig, region)
	if a.Matches != 8 || a.Mismatches != 0 {
		t.Error("wrong match counts:", a.Matches, a.Mismatches)
	}
	if len(a.Segments) != 2 {
		t.Fatal("expected 2 segments, got", len(a.Segments))
	}
	want := []Segment{
		{Chrom: "chr1", TStart: 101, TEnd: 104, QStart: 1, QEnd: 4},
		{Chrom: "chr1", TStart: 107, TEnd: 110, QStart: 5, QEnd: 8},
	}
	for i := range want {
		if a.Segments[i] != want[i] {
			t.Error("segment mismatch:", a.Segments[i], want[i])
		}
	}
	if a.QueryConsumption() != 1 {
		t.Error("consumption should be 1:", a.QueryConsumption())
	}
}

func TestFlipQueryCoords(t *testing.T) {
	a := ContigAlignment{
		QuerySize: 100,
		Segments:  []Segment{{QStart: 1, QEnd: 40}, {QStart: 61, QEnd: 100}},
	}
	flipQueryCoords(&a)
	if a.Segments[0].QStart != 61 || a.Segments[0].QEnd != 100 {
		t.Error("flip failed:", a.Segments[0])
	}
	if a.Segments[1].QStart != 1 || a.Segments[1].QEnd != 40 {
		t.Error("flip failed:", a.Segments[1])
	}
}
