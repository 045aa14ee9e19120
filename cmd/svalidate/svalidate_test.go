package main

import (
	"strings"
	"testing"

	"github.com/kmwatson/svalidate/breakpoint"
	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/evidence"
	"github.com/kmwatson/svalidate/resolve"
	"github.com/kmwatson/svalidate/score"
)

func delPair() breakpoint.Pair {
	return breakpoint.Pair{
		Name: "del1",
		B1:   breakpoint.Breakpoint{Chrom: "chr1", Start: 990, End: 1010, Orient: breakpoint.OrientLeft},
		B2:   breakpoint.Breakpoint{Chrom: "chr1", Start: 1990, End: 2010, Orient: breakpoint.OrientRight},
	}
}

func TestSvType(t *testing.T) {
	p := delPair()
	if got := svType(p); got != "DEL" {
		t.Error("L/R should be DEL, got", got)
	}
	p.B1.Orient, p.B2.Orient = breakpoint.OrientRight, breakpoint.OrientLeft
	if got := svType(p); got != "DUP" {
		t.Error("R/L should be DUP, got", got)
	}
	p.B2.Orient = breakpoint.OrientRight
	if got := svType(p); got != "INV" {
		t.Error("matching orientations should be INV, got", got)
	}
	p.B2.Chrom = "chr5"
	if got := svType(p); got != "BND" {
		t.Error("interchromosomal should be BND, got", got)
	}
	p = delPair()
	p.B1.Orient = breakpoint.OrientUnknown
	if got := svType(p); got != "BND" {
		t.Error("unknown orientation should fall back to BND, got", got)
	}
}

func TestEventToVcf(t *testing.T) {
	s := config.Default()
	s.ReadLength = 100
	s.MedianFragmentSize = 300
	s.StdevFragmentSize = 50

	candidate := delPair()
	ev := score.ValidatedEvent{
		Set:        &evidence.Set{Pair: candidate},
		HasCall:    true,
		Tier:       score.TierResolved,
		SplitReads: 6,
		Call: resolve.Call{
			Pair: breakpoint.Pair{
				Name: "del1",
				B1:   breakpoint.Breakpoint{Chrom: "chr1", Start: 990, End: 1010, Orient: breakpoint.OrientLeft},
				B2:   breakpoint.Breakpoint{Chrom: "chr1", Start: 1990, End: 2010, Orient: breakpoint.OrientRight},
			},
			EventSize: 989,
		},
		EventStrand: '?',
	}

	v := eventToVcf(&ev, candidate, &s)
	if v.Chr != "chr1" || v.Pos != 1000 || v.Id != "del1" {
		t.Error("wrong record coordinates:", v.Chr, v.Pos, v.Id)
	}
	if v.Alt[0] != "<DEL>" {
		t.Error("wrong symbolic allele:", v.Alt)
	}
	for _, want := range []string{"SVTYPE=DEL", "END=2000", "SVLEN=989", "TIER=resolved", "SPLIT=6"} {
		if !strings.Contains(v.Info, want) {
			t.Errorf("info field missing %s: %s", want, v.Info)
		}
	}
	if strings.Contains(v.Info, "STRAND=") {
		t.Error("undetermined strand should not be reported:", v.Info)
	}

	// an unresolved window still produces a record at the candidate position
	ev.HasCall = false
	ev.Tier = score.TierInsufficient
	v = eventToVcf(&ev, candidate, &s)
	if v.Pos != 1000 || !strings.Contains(v.Info, "TIER=insufficient") {
		t.Error("unresolved window record malformed:", v.Pos, v.Info)
	}
}

func TestSizeHistogram(t *testing.T) {
	hist := sizeHistogram([]float64{0, 10, 10, 20}, 10)
	if len(hist) != 10 {
		t.Fatal("wrong bin count:", len(hist))
	}
	var total float64
	for _, v := range hist {
		total += v
	}
	if total != 4 {
		t.Error("histogram should count every value:", total)
	}
	if hist[9] != 1 {
		t.Error("max value should land in the last bin:", hist)
	}

	hist = sizeHistogram([]float64{0, 0}, 5)
	if hist[0] != 2 {
		t.Error("all-zero values should pile in the first bin:", hist)
	}
}

func TestMapQInRange(t *testing.T) {
	for _, v := range []int{0, 5, 255} {
		if !mapQInRange(v) {
			t.Error("valid mapping quality rejected:", v)
		}
	}
	for _, v := range []int{-1, 256, 300} {
		if mapQInRange(v) {
			t.Error("out-of-range mapping quality accepted:", v)
		}
	}
}

func TestExcludedNilTree(t *testing.T) {
	if excluded(nil, delPair()) {
		t.Error("no exclude regions should never mask a candidate")
	}
}
