package main

import (
	"log"

	"github.com/vertgenlab/gonomics/exception"
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"
)

// plotEventSizes writes a histogram of resolved event sizes. Format follows
// the output file extension (pdf, png, svg).
func plotEventSizes(sizes []float64, outfile string) {
	if len(sizes) == 0 {
		log.Printf("WARNING: no resolved intrachromosomal events, skipping -plotOut")
		return
	}
	pl := plot.New()
	h, err := plotter.NewHist(plotter.Values(sizes), 16)
	exception.PanicOnErr(err)
	pl.Add(h)

	pl.Title.Text = "Resolved event sizes"
	pl.X.Label.Text = "Event size (bp)"
	pl.Y.Label.Text = "Count"

	err = pl.Save(15*vg.Centimeter, 10*vg.Centimeter, outfile)
	exception.PanicOnErr(err)
}
