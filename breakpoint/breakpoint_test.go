package breakpoint

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/fai"
)

func testSettings() config.Settings {
	s := config.Default()
	s.ReadLength = 125
	s.MedianFragmentSize = 380
	s.StdevFragmentSize = 100
	return s
}

func testIndex(t *testing.T) fai.Index {
	t.Helper()
	f, err := os.CreateTemp(t.TempDir(), "*.fai")
	if err != nil {
		t.Fatal(err)
	}
	f.WriteString("chr1\t10000\t6\t60\t61\n")
	f.Close()
	return fai.ReadIndex(f.Name())
}

func TestGenerateWindow(t *testing.T) {
	s := testSettings()
	idx := testIndex(t)
	fragment := s.MaxExpectedFragmentSize()

	b := Breakpoint{Chrom: "chr1", Start: 1114, End: 1114, Orient: OrientRight}
	w := GenerateWindow(b, &s, idx)
	if w.Start != 1114-s.CallError-s.ReadLength+1 {
		t.Error("wrong window start for right orientation:", w.Start)
	}
	if w.End != 1114+fragment+s.CallError-1 {
		t.Error("wrong window end for right orientation:", w.End)
	}

	b.Orient = OrientLeft
	w = GenerateWindow(b, &s, idx)
	if w.Start != 1114-fragment-s.CallError+1 {
		t.Error("wrong window start for left orientation:", w.Start)
	}
	if w.End != 1114+s.CallError+s.ReadLength-1 {
		t.Error("wrong window end for left orientation:", w.End)
	}

	// near the chromosome start the window must clamp to 1
	b = Breakpoint{Chrom: "chr1", Start: 5, End: 5, Orient: OrientUnknown}
	w = GenerateWindow(b, &s, idx)
	if w.Start != 1 {
		t.Error("window not clamped to chromosome start:", w.Start)
	}

	// near the chromosome end the window must clamp to its length
	b = Breakpoint{Chrom: "chr1", Start: 9990, End: 9990, Orient: OrientUnknown}
	w = GenerateWindow(b, &s, idx)
	if w.End != 10000 {
		t.Error("window not clamped to chromosome end:", w.End)
	}
}

func TestSplitBins(t *testing.T) {
	bins := splitBins(1, 300, 3, 50, 100)
	if len(bins) != 3 {
		t.Fatal("expected 3 bins, got", len(bins))
	}
	if bins[0].Start != 1 || bins[0].End != 100 || bins[2].End != 300 {
		t.Error("bad bin boundaries:", bins)
	}
	if bins[0].Limit != 34 || bins[1].Limit != 33 || bins[2].Limit != 33 {
		t.Error("fetch limit not spread across bins:", bins)
	}

	// bins collapse when the span cannot hold the minimum bin size
	bins = splitBins(1, 120, 3, 50, 100)
	if len(bins) != 2 {
		t.Error("expected bin count to shrink to 2, got", len(bins))
	}

	bins = splitBins(10, 5, 3, 50, 100)
	if bins != nil {
		t.Error("empty span should yield no bins")
	}
}

func TestReadCandidates(t *testing.T) {
	file := filepath.Join(t.TempDir(), "candidates.bedpe")
	content := "chr1\t999\t1000\tchr1\t1999\t2000\tevent1\tL\tR\t+\t+\n" +
		"chr1\t499\t500\tchr2\t299\t300\tevent2\tR\tL\t+\t-\n"
	if err := os.WriteFile(file, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	pairs := ReadCandidates(file)
	if len(pairs) != 2 {
		t.Fatal("expected 2 candidates, got", len(pairs))
	}
	if pairs[0].B1.Start != 1000 || pairs[0].B1.End != 1000 {
		t.Error("bed coordinates not converted to 1-base:", pairs[0].B1)
	}
	if pairs[0].B1.Orient != OrientLeft || pairs[0].B2.Orient != OrientRight {
		t.Error("orientations not parsed:", pairs[0])
	}
	if pairs[0].Interchromosomal() || !pairs[1].Interchromosomal() {
		t.Error("interchromosomal detection wrong")
	}
	if pairs[0].EventSize() != 1000 {
		t.Error("wrong event size:", pairs[0].EventSize())
	}
	if pairs[1].EventSize() != -1 {
		t.Error("interchromosomal pair should have event size -1")
	}
	if !pairs[1].OpposingStrands {
		t.Error("opposing strands not detected for event2")
	}
}
