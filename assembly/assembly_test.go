package assembly

import (
	"testing"

	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/evidence"
	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/sam"
)

func testSettings() config.Settings {
	s := config.Default()
	s.ReadLength = 10
	s.MedianFragmentSize = 300
	s.StdevFragmentSize = 50
	s.AssemblyMinExactMatchToRemap = 4
	s.AssemblyMinEdgeTrimWeight = 2
	s.AssemblyMinRemappedSeq = 3
	s.AssemblyMinRemapCoverage = 0.5
	return s
}

func mkReads(seq string, count int, posStrand bool) []evidence.Read {
	ans := make([]evidence.Read, count)
	for i := range ans {
		var rec sam.Sam
		rec.Seq = dna.StringToBases(seq)
		ans[i] = evidence.Read{Rec: rec, PosStrand: posStrand}
	}
	return ans
}

func TestAssembleSimpleOverlap(t *testing.T) {
	s := testSettings()
	reads := append(mkReads("ACGTACGTAA", 3, true), mkReads("CGTAACCGGT", 3, true)...)

	contigs := Assemble(reads, &s)
	if len(contigs) != 1 {
		t.Fatal("expected 1 contig, got", len(contigs))
	}
	if dna.BasesToString(contigs[0].Seq) != "ACGTACGTAACCGGT" {
		t.Error("wrong contig sequence:", dna.BasesToString(contigs[0].Seq))
	}
	if contigs[0].RemappedReads != 6 || contigs[0].RemapCoverage != 1 {
		t.Error("all reads should remap:", contigs[0].RemappedReads, contigs[0].RemapCoverage)
	}
	if contigs[0].StrandConcordance != 1 {
		t.Error("uniform strands should give concordance 1:", contigs[0].StrandConcordance)
	}
	if len(contigs[0].ReadIDs) != 6 {
		t.Error("contig should back-reference its reads:", contigs[0].ReadIDs)
	}
}

func TestAssembleBranchesForkContigs(t *testing.T) {
	s := testSettings()
	var reads []evidence.Read
	reads = append(reads, mkReads("ACGTACGTAA", 3, true)...)
	reads = append(reads, mkReads("CGTAACCGGT", 3, true)...)
	reads = append(reads, mkReads("CGTAATTTTG", 3, true)...)

	contigs := Assemble(reads, &s)
	if len(contigs) != 2 {
		t.Fatal("ambiguous branch should fork into 2 contigs, got", len(contigs))
	}
	seqs := map[string]bool{}
	for i := range contigs {
		seqs[dna.BasesToString(contigs[i].Seq)] = true
	}
	if !seqs["ACGTACGTAACCGGT"] || !seqs["ACGTACGTAATTTTG"] {
		t.Error("missing expected branch contigs:", seqs)
	}

	s.AssemblyMaxPaths = 1
	contigs = Assemble(reads, &s)
	if len(contigs) > 1 {
		t.Error("max paths bound violated:", len(contigs))
	}
}

func TestAssembleMaxPathsBound(t *testing.T) {
	s := testSettings()
	s.AssemblyMinRemappedSeq = 0
	s.AssemblyMinRemapCoverage = 0
	s.AssemblyMinEdgeTrimWeight = 0

	// many incompatible branches from a common stem
	var reads []evidence.Read
	reads = append(reads, mkReads("ACGTACGTAA", 3, true)...)
	for _, tail := range []string{"CGTAACCGGT", "CGTAATTTTG", "CGTAAGGGGC", "CGTAACACAC", "CGTAAGTGTG"} {
		reads = append(reads, mkReads(tail, 3, true)...)
	}

	for maxPaths := 1; maxPaths <= 4; maxPaths++ {
		s.AssemblyMaxPaths = maxPaths
		contigs := Assemble(reads, &s)
		if len(contigs) > maxPaths {
			t.Error("contig count exceeds max paths:", len(contigs), maxPaths)
		}
	}
}

func TestAssembleOrderIndependent(t *testing.T) {
	s := testSettings()
	forward := append(mkReads("ACGTACGTAA", 3, true), mkReads("CGTAACCGGT", 3, true)...)
	backward := append(mkReads("CGTAACCGGT", 3, true), mkReads("ACGTACGTAA", 3, true)...)

	a := Assemble(forward, &s)
	b := Assemble(backward, &s)
	if len(a) != len(b) {
		t.Fatal("permuted input changed contig count:", len(a), len(b))
	}
	for i := range a {
		if dna.BasesToString(a[i].Seq) != dna.BasesToString(b[i].Seq) {
			t.Error("permuted input changed contig sequence")
		}
	}
}

func TestAssembleDiscardsDiscordantStrands(t *testing.T) {
	s := testSettings()
	reads := append(mkReads("ACGTACGTAA", 3, true), mkReads("CGTAACCGGT", 3, false)...)

	contigs := Assemble(reads, &s)
	if len(contigs) != 0 {
		t.Error("half-and-half strands should fail concordance, got", len(contigs))
	}
}

func TestAssembleInsufficientSupport(t *testing.T) {
	s := testSettings()
	// lone reads below the edge trim weight never join
	reads := append(mkReads("ACGTACGTAA", 1, true), mkReads("CGTAACCGGT", 1, true)...)
	contigs := Assemble(reads, &s)
	if len(contigs) != 0 {
		t.Error("weakly supported assembly should yield no contigs, got", len(contigs))
	}

	if got := Assemble(nil, &s); got != nil {
		t.Error("no reads should assemble to nothing")
	}
}

func TestSuffixPrefixOverlap(t *testing.T) {
	if ov := suffixPrefixOverlap("ACGTACGTAA", "CGTAACCGGT", 4); ov != 5 {
		t.Error("expected overlap 5, got", ov)
	}
	if ov := suffixPrefixOverlap("ACGTACGTAA", "CGTAACCGGT", 6); ov != 0 {
		t.Error("overlap below minimum should be 0, got", ov)
	}
	if ov := suffixPrefixOverlap("AAAA", "AAAA", 2); ov != 3 {
		t.Error("identical sequences overlap by len-1, got", ov)
	}
}
