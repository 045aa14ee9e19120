package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"log"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/guptarohit/asciigraph"
	"github.com/kmwatson/svalidate/aligner"
	"github.com/kmwatson/svalidate/assembly"
	"github.com/kmwatson/svalidate/breakpoint"
	"github.com/kmwatson/svalidate/config"
	"github.com/kmwatson/svalidate/evidence"
	"github.com/kmwatson/svalidate/fai"
	"github.com/kmwatson/svalidate/resolve"
	"github.com/kmwatson/svalidate/score"
	"github.com/pkg/profile"
	"github.com/vertgenlab/gonomics/bed"
	"github.com/vertgenlab/gonomics/dna"
	"github.com/vertgenlab/gonomics/exception"
	"github.com/vertgenlab/gonomics/fasta"
	"github.com/vertgenlab/gonomics/fileio"
	"github.com/vertgenlab/gonomics/interval"
	"github.com/vertgenlab/gonomics/sam"
	"github.com/vertgenlab/gonomics/vcf"
)

func usage() {
	fmt.Print(
		"svalidate - Validate candidate structural variant breakpoints against read-level evidence.\n" +
			"Usage:\n" +
			"svalidate [options] -i input.bam -b candidates.bedpe -r reference.fasta > output.vcf\n\n")
	flag.PrintDefaults()
}

// inputFiles is a custom type that gets filled by flag.Parse()
type inputFiles []string

// String to satisfy flag.Value interface
func (i *inputFiles) String() string {
	return strings.Join(*i, " ")
}

// Set to satisfy flag.Value interface
func (i *inputFiles) Set(value string) error {
	*i = append(*i, value)
	return nil
}

func main() {
	var excludeBeds inputFiles
	cpuprofile := flag.Bool("cpuprofile", false, "write cpu profile")
	memprofile := flag.Bool("memprofile", false, "write memory profile")
	input := flag.String("i", "", "Input bam file. Must be indexed.")
	output := flag.String("o", "stdout", "Output VCF file.")
	candidateFile := flag.String("b", "", "Candidate breakpoint pairs in BEDPE format: chrom1 start1 end1 chrom2 start2 end2 name orient1 orient2 [strand1 strand2].")
	ref := flag.String("r", "", "Fasta file with reference genome used to align input bam. Must be indexed (.fai).")
	flag.Var(&excludeBeds, "e", "Bed file(s) with regions to exclude from validation. May be declared more than once with additional -e flags.")
	readLength := flag.Int("readLength", 0, "Read length of the sequencing library. Required.")
	medianFragmentSize := flag.Int("medianFragmentSize", 0, "Median fragment size of the sequencing library. Required.")
	stdevFragmentSize := flag.Int("stdevFragmentSize", 0, "Fragment size standard deviation of the sequencing library. Required.")
	minMapQ := flag.Int("minMapQ", 5, "Minimum mapping quality for evidence reads.")
	fetchReadsLimit := flag.Int("fetchReadsLimit", 3000, "Maximum reads fetched per evidence window.")
	minIdentity := flag.Float64("minIdentity", 0.9, "Minimum alignment identity for contig hits, as a fraction.")
	callError := flag.Int("callError", 10, "Uncertainty radius in bases around reported breakpoint positions.")
	blat := flag.String("blat", "", "Path to the blat executable. When empty, contigs are aligned in process against the evidence windows instead.")
	blatTimeout := flag.Int("blatTimeout", 300, "Seconds to wait for one blat invocation before giving up on the contig batch.")
	threads := flag.Int("threads", 1, "Number of processor threads to use for validation.")
	ordered := flag.Bool("ordered", false, "Buffer results and write them in candidate input order. Default is completion order, which is nondeterministic with threads > 1.")
	plotOut := flag.String("plotOut", "", "Write an event-size histogram of resolved calls to this file (pdf or png).")
	debugLevel := flag.Int("verbose", 0, "Level of verbosity in log.")
	flag.Parse()

	if *memprofile && *cpuprofile {
		usage()
		log.Fatal("ERROR: -memprofile and -cpuprofile are mutually exclusive.")
	}
	if *memprofile {
		defer profile.Start(profile.MemProfile).Stop()
	}
	if *cpuprofile {
		defer profile.Start(profile.CPUProfile).Stop()
	}

	if *threads < 1 {
		log.Fatal("ERROR: threads must be >= 1.")
	}
	if *input == "" || *candidateFile == "" || *ref == "" {
		usage()
		log.Fatal("ERROR: must specify bam (-i), candidates (-b), and fasta (-r).")
	}
	if *readLength == 0 || *medianFragmentSize == 0 || *stdevFragmentSize == 0 {
		usage()
		log.Fatal("ERROR: must specify -readLength, -medianFragmentSize, and -stdevFragmentSize for the sequencing library.")
	}
	if !mapQInRange(*minMapQ) {
		log.Fatal("ERROR: -minMapQ must be between 0 and 255.")
	}

	settings := config.Default()
	settings.ReadLength = *readLength
	settings.MedianFragmentSize = *medianFragmentSize
	settings.StdevFragmentSize = *stdevFragmentSize
	settings.MinMappingQuality = uint8(*minMapQ)
	settings.FetchReadsLimit = *fetchReadsLimit
	settings.BlatMinIdentity = *minIdentity
	settings.CallError = *callError
	if err := settings.Validate(); err != nil {
		log.Fatalf("ERROR: invalid settings: %s", err)
	}

	svalidate(*input, *output, *ref, *candidateFile, excludeBeds, *blat, time.Duration(*blatTimeout)*time.Second, *plotOut, &settings, *ordered, *debugLevel, *threads)
}

// job pairs a candidate with its input position for ordered output.
type job struct {
	idx  int
	pair breakpoint.Pair
}

// result is everything the output loop needs from one processed window.
type result struct {
	idx        int
	records    []vcf.Vcf
	tier       score.Tier
	eventSize  int
	hasCall    bool
	skipped    bool
	skipReason string
}

func svalidate(input, output, ref, candidateFile string, excludeBeds []string, blat string, blatTimeout time.Duration, plotOut string, s *config.Settings, ordered bool, debugLevel, threads int) {
	startTime := time.Now().UnixMilli()

	idx := fai.ReadIndex(ref + ".fai")
	excludedRegions := readExcludeTree(excludeBeds)
	candidates := breakpoint.ReadCandidates(candidateFile)

	vcfOut := fileio.EasyCreate(output)
	vcf.NewWriteHeader(vcfOut, makeVcfHeader(input, ref, idx))

	jobChan := make(chan job, 100)
	outputChan := make(chan result, 100)
	wg := new(sync.WaitGroup)
	for i := 0; i < threads; i++ {
		wg.Add(1)
		go spawnThread(jobChan, outputChan, input, ref, blat, blatTimeout, idx, s, wg)
	}

	// spawn a goroutine to wait until threads are done, then close the output
	go func(*sync.WaitGroup) {
		wg.Wait()
		close(outputChan)
	}(wg)

	var masked, submitted int
	go func() {
		for i := range candidates {
			if excluded(excludedRegions, candidates[i]) {
				masked++
				continue
			}
			jobChan <- job{idx: submitted, pair: candidates[i]}
			submitted++
		}
		close(jobChan)
	}()

	var processed, skipped int
	tierCounts := make(map[score.Tier]int)
	var resolvedSizes []float64
	buffered := make(map[int]result)
	nextIdx := 0
	lastCheckpointTime := startTime
	for res := range outputChan {
		processed++
		if debugLevel > -1 && processed%100 == 0 {
			currTime := time.Now().UnixMilli()
			log.Printf("Processed 100 candidates in:\t%dsec", (currTime-lastCheckpointTime)/1000)
			lastCheckpointTime = currTime
		}
		if res.skipped {
			skipped++
			if debugLevel > 0 {
				log.Printf("skipping candidate: %s", res.skipReason)
			}
		} else {
			tierCounts[res.tier]++
			if res.hasCall && res.eventSize >= 0 {
				resolvedSizes = append(resolvedSizes, float64(res.eventSize))
			}
		}

		if !ordered {
			writeRecords(vcfOut, res.records)
			continue
		}
		buffered[res.idx] = res
		for {
			next, ok := buffered[nextIdx]
			if !ok {
				break
			}
			writeRecords(vcfOut, next.records)
			delete(buffered, nextIdx)
			nextIdx++
		}
	}

	endTime := time.Now().UnixMilli()
	log.Printf("Successfully Completed\nCandidates Processed: %d\nMasked: %d\nSkipped (source unavailable): %d\nResolved: %d\nPartial: %d\nInsufficient: %d\nTotal Runtime: %d Seconds\n",
		processed, masked, skipped, tierCounts[score.TierResolved], tierCounts[score.TierPartial], tierCounts[score.TierInsufficient], (endTime-startTime)/1000)

	if debugLevel > 0 && len(resolvedSizes) > 0 {
		fmt.Fprintln(os.Stderr, asciigraph.Plot(sizeHistogram(resolvedSizes, 50), asciigraph.Height(8), asciigraph.Precision(0), asciigraph.Caption("resolved event sizes (binned)")))
	}
	if plotOut != "" {
		plotEventSizes(resolvedSizes, plotOut)
	}

	err := vcfOut.Close()
	exception.PanicOnErr(err)
}

func spawnThread(jobChan <-chan job, outputChan chan<- result, inputBam, ref, blat string, blatTimeout time.Duration, idx fai.Index, s *config.Settings, wg *sync.WaitGroup) {
	bamReader, bamHeader := sam.OpenBam(inputBam)
	bai := sam.ReadBai(inputBam + ".bai")
	faSeeker := fasta.NewSeeker(ref, "")

	collector := evidence.Collector{Bam: bamReader, Bai: bai, Header: bamHeader, Idx: idx, Settings: s}
	fallback := &aligner.Local{Ref: faSeeker}
	var alnr aligner.Aligner = fallback
	if blat != "" {
		alnr = &aligner.Blat{Prog: blat, Ref: ref, Timeout: blatTimeout}
	}

	for j := range jobChan {
		outputChan <- validateWindow(j, &collector, alnr, fallback, s)
	}

	err := bamReader.Close()
	exception.PanicOnErr(err)
	err = faSeeker.Close()
	exception.PanicOnErr(err)
	wg.Done()
}

// validateWindow runs one candidate through the full pipeline: collect,
// assemble, align, resolve, score. Every non-skipped window produces a
// record; weak support shows up in the tier, never as a dropped candidate.
func validateWindow(j job, collector *evidence.Collector, alnr, fallback aligner.Aligner, s *config.Settings) result {
	res := result{idx: j.idx}

	set, err := collector.Collect(j.pair)
	if err != nil {
		res.skipped = true
		res.skipReason = err.Error()
		return res
	}

	contigs := assembly.Assemble(set.Reads, s)
	queries := contigQueries(contigs, set)
	regions := []aligner.Region{
		{Chrom: set.Window1.Chrom, Start: set.Window1.Start, End: set.Window1.End},
		{Chrom: set.Window2.Chrom, Start: set.Window2.Start, End: set.Window2.End},
	}

	alns := alignContigs(alnr, fallback, queries, regions, s)
	call, hasCall := resolve.Resolve(alns, contigs, j.pair.Name, s)
	ev := score.Score(set, call, hasCall, s)

	res.tier = ev.Tier
	res.hasCall = hasCall
	res.eventSize = call.EventSize
	res.records = []vcf.Vcf{eventToVcf(&ev, j.pair, s)}
	return res
}

// contigQueries returns the assembled contig sequences, falling back to the
// distinct raw evidence read sequences when assembly produced nothing, so a
// window without a contig can still be aligned and resolved.
func contigQueries(contigs []assembly.Contig, set *evidence.Set) [][]dna.Base {
	if len(contigs) > 0 {
		queries := make([][]dna.Base, len(contigs))
		for i := range contigs {
			queries[i] = contigs[i].Seq
		}
		return queries
	}
	var queries [][]dna.Base
	seen := make(map[string]bool)
	for i := range set.Reads {
		if set.Reads[i].Kind == evidence.KindSpanning {
			continue
		}
		key := dna.BasesToString(set.Reads[i].Rec.Seq)
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		queries = append(queries, set.Reads[i].Rec.Seq)
	}
	return queries
}

// alignContigs applies the retry policy: one attempt at the configured
// identity, one relaxed retry at 90% of it, then the in-process fallback.
// Exhausting all three leaves the window unresolved rather than failing it.
func alignContigs(alnr, fallback aligner.Aligner, queries [][]dna.Base, regions []aligner.Region, s *config.Settings) []aligner.ContigAlignment {
	if len(queries) == 0 {
		return nil
	}
	ctx := context.Background()

	alns, err := alnr.Align(ctx, queries, regions, s.BlatMinIdentity)
	if err == nil {
		return alns
	}
	if !errors.Is(err, aligner.ErrAlignmentUnavailable) {
		log.Printf("WARNING: aligner failed: %s", err)
		return nil
	}

	alns, err = alnr.Align(ctx, queries, regions, 0.9*s.BlatMinIdentity)
	if err == nil {
		return alns
	}
	if fallback == alnr {
		log.Printf("WARNING: aligner unavailable, window left unresolved: %s", err)
		return nil
	}

	alns, err = fallback.Align(ctx, queries, regions, s.BlatMinIdentity)
	if err != nil {
		log.Printf("WARNING: fallback aligner failed, window left unresolved: %s", err)
		return nil
	}
	return alns
}

// eventToVcf renders one validated event as a single symbolic-allele record.
// The resolved call positions are used when present; otherwise the candidate
// coordinates pass through so unresolved windows stay visible downstream.
func eventToVcf(ev *score.ValidatedEvent, candidate breakpoint.Pair, s *config.Settings) vcf.Vcf {
	pair := candidate
	if ev.HasCall {
		pair = ev.Call.Pair
	}
	svtype := svType(pair)

	var v vcf.Vcf
	v.Chr = pair.B1.Chrom
	v.Pos = (pair.B1.Start + pair.B1.End) / 2
	v.Id = pair.Name
	v.Ref = "N"
	v.Alt = []string{"<" + svtype + ">"}
	v.Filter = "."

	info := new(strings.Builder)
	fmt.Fprintf(info, "SVTYPE=%s;CHR2=%s;END=%d", svtype, pair.B2.Chrom, (pair.B2.Start+pair.B2.End)/2)
	if size := ev.Call.EventSize; ev.HasCall && size >= 0 {
		fmt.Fprintf(info, ";SVLEN=%d", size)
	}
	fmt.Fprintf(info, ";CIPOS=-%d,%d;TIER=%s;SPLIT=%d;FLANK=%d;SPAN=%d", s.CallError, s.CallError, ev.Tier, ev.SplitReads, ev.FlankingPairs, ev.SpanningReads)
	if ev.Linked(s) {
		info.WriteString(";LINKED")
	}
	if ev.EventStrand != '?' {
		fmt.Fprintf(info, ";STRAND=%c;STRANDCONC=%.2f", ev.EventStrand, ev.StrandConcordance)
	}
	if ev.FlankingPairs > 0 {
		fmt.Fprintf(info, ";FRAGMEDIAN=%.0f;FRAGSTDEV=%.0f", ev.FlankingMedian, ev.FlankingStdev)
	}
	v.Info = info.String()
	return v
}

// mapQInRange bounds the mapping quality flag to what a bam record can
// carry; out-of-range values would otherwise truncate silently.
func mapQInRange(v int) bool {
	return v >= 0 && v <= 255
}

// svType maps breakpoint orientations onto a symbolic allele class.
func svType(p breakpoint.Pair) string {
	if p.Interchromosomal() {
		return "BND"
	}
	switch {
	case p.B1.Orient == breakpoint.OrientLeft && p.B2.Orient == breakpoint.OrientRight:
		return "DEL"
	case p.B1.Orient == breakpoint.OrientRight && p.B2.Orient == breakpoint.OrientLeft:
		return "DUP"
	case p.B1.Orient == p.B2.Orient && p.B1.Orient != breakpoint.OrientUnknown:
		return "INV"
	default:
		return "BND"
	}
}

func writeRecords(out *fileio.EasyWriter, records []vcf.Vcf) {
	for i := range records {
		vcf.WriteVcf(out, records[i])
	}
}

func excluded(tree map[string]*interval.IntervalNode, p breakpoint.Pair) bool {
	if tree == nil {
		return false
	}
	for _, b := range []breakpoint.Breakpoint{p.B1, p.B2} {
		q := bed.Bed{Chrom: b.Chrom, ChromStart: b.Start - 1, ChromEnd: b.End, FieldsInitialized: 3}
		if len(interval.Query(tree, q, "any")) > 0 {
			return true
		}
	}
	return false
}

func readExcludeTree(excludeBeds []string) map[string]*interval.IntervalNode {
	if len(excludeBeds) == 0 {
		return nil
	}
	var excludeIntervals []interval.Interval
	for _, e := range excludeBeds {
		bChan := bed.GoReadToChan(e)
		for b := range bChan {
			excludeIntervals = append(excludeIntervals, b)
		}
	}
	return interval.BuildTree(excludeIntervals)
}

func makeVcfHeader(infile, referenceFile string, idx fai.Index) vcf.Header {
	var header vcf.Header
	header.Text = append(header.Text, "##fileformat=VCFv4.2")
	header.Text = append(header.Text, fmt.Sprintf("##reference=%s", referenceFile))
	header.Text = append(header.Text, strings.TrimSuffix(fai.IndexToVcfHeader(idx), "\n"))
	header.Text = append(header.Text, "##ALT=<ID=DEL,Description=\"Deletion\">")
	header.Text = append(header.Text, "##ALT=<ID=DUP,Description=\"Duplication\">")
	header.Text = append(header.Text, "##ALT=<ID=INV,Description=\"Inversion\">")
	header.Text = append(header.Text, "##ALT=<ID=BND,Description=\"Breakend\">")
	header.Text = append(header.Text, "##INFO=<ID=SVTYPE,Number=1,Type=String,Description=\"Structural variant class\">")
	header.Text = append(header.Text, "##INFO=<ID=CHR2,Number=1,Type=String,Description=\"Chromosome of the second breakpoint\">")
	header.Text = append(header.Text, "##INFO=<ID=END,Number=1,Type=Integer,Description=\"Position of the second breakpoint\">")
	header.Text = append(header.Text, "##INFO=<ID=SVLEN,Number=1,Type=Integer,Description=\"Resolved event size\">")
	header.Text = append(header.Text, "##INFO=<ID=CIPOS,Number=2,Type=Integer,Description=\"Confidence interval around breakpoint positions\">")
	header.Text = append(header.Text, "##INFO=<ID=TIER,Number=1,Type=String,Description=\"Support tier: resolved, partial, or insufficient\">")
	header.Text = append(header.Text, "##INFO=<ID=SPLIT,Number=1,Type=Integer,Description=\"Supporting split reads\">")
	header.Text = append(header.Text, "##INFO=<ID=FLANK,Number=1,Type=Integer,Description=\"Supporting flanking read pairs\">")
	header.Text = append(header.Text, "##INFO=<ID=SPAN,Number=1,Type=Integer,Description=\"Supporting spanning reads\">")
	header.Text = append(header.Text, "##INFO=<ID=LINKED,Number=0,Type=Flag,Description=\"Breakpoints are linked by split reads\">")
	header.Text = append(header.Text, "##INFO=<ID=STRAND,Number=1,Type=String,Description=\"Called event strand\">")
	header.Text = append(header.Text, "##INFO=<ID=STRANDCONC,Number=1,Type=Float,Description=\"Strand concordance of strand-determining mates\">")
	header.Text = append(header.Text, "##INFO=<ID=FRAGMEDIAN,Number=1,Type=Float,Description=\"Median fragment size of flanking pairs\">")
	header.Text = append(header.Text, "##INFO=<ID=FRAGSTDEV,Number=1,Type=Float,Description=\"Fragment size standard deviation of flanking pairs\">")
	header.Text = append(header.Text, fmt.Sprintf("##source=%s", strings.TrimSuffix(infile, ".bam")))
	header.Text = append(header.Text, "#CHROM\tPOS\tID\tREF\tALT\tQUAL\tFILTER\tINFO")
	return header
}

// sizeHistogram buckets values into bins for the terminal sparkline.
func sizeHistogram(values []float64, bins int) []float64 {
	var maxVal float64
	for _, v := range values {
		if v > maxVal {
			maxVal = v
		}
	}
	hist := make([]float64, bins)
	if maxVal == 0 {
		hist[0] = float64(len(values))
		return hist
	}
	for _, v := range values {
		i := int(v / maxVal * float64(bins-1))
		hist[i]++
	}
	return hist
}
