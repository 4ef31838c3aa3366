package viz

import (
	"github.com/guptarohit/asciigraph"
	"gonum.org/v1/gonum/floats"
)

// Plot draws values as an ASCII line chart. Long series are averaged down
// to width points. An empty series renders as an empty string.
func Plot(values []float64, caption string, width, height int) string {
	if len(values) == 0 {
		return ""
	}
	opts := []asciigraph.Option{
		asciigraph.Height(max(height, 2)),
		asciigraph.Precision(1),
	}
	if caption != "" {
		opts = append(opts, asciigraph.Caption(caption))
	}
	if width > 0 {
		values = Downsample(values, width)
		opts = append(opts, asciigraph.Width(width))
	}
	return asciigraph.Plot(values, opts...)
}

// Downsample averages values into at most n buckets.
func Downsample(values []float64, n int) []float64 {
	if n <= 0 || len(values) <= n {
		return values
	}
	out := make([]float64, n)
	for i := range out {
		lo := i * len(values) / n
		hi := (i + 1) * len(values) / n
		out[i] = floats.Sum(values[lo:hi]) / float64(hi-lo)
	}
	return out
}
