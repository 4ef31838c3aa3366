package analysis

import (
	"errors"
	"math"

	"github.com/mjibson/go-dsp/fft"
	"gonum.org/v1/gonum/stat"
)

var (
	ErrShortSeries = errors.New("analysis: series too short")
	ErrBadBlocks   = errors.New("analysis: block count must be at least 2")
)

// sokalWindow is the self-consistent cutoff factor for the integrated time.
const sokalWindow = 6.0

// Autocorrelation returns the normalized autocorrelation of series for lags
// 0 to len(series)-1, computed through a zero-padded FFT. A series with no
// variance yields nil.
func Autocorrelation(series []float64) []float64 {
	n := len(series)
	if n < 2 {
		return nil
	}

	mean := stat.Mean(series, nil)
	padded := make([]float64, 2*n)
	for i, v := range series {
		padded[i] = v - mean
	}

	power := fft.FFTReal(padded)
	for i, c := range power {
		power[i] = complex(real(c)*real(c)+imag(c)*imag(c), 0)
	}
	raw := fft.IFFT(power)

	c0 := real(raw[0])
	if c0 <= 1e-12 {
		return nil
	}

	acf := make([]float64, n)
	for i := range acf {
		acf[i] = real(raw[i]) / c0
	}
	acf[0] = 1
	return acf
}

// IntegratedTime estimates τ = 1 + 2 Σ ρ(k), summing lags until the window
// exceeds sokalWindow·τ. Uncorrelated samples give τ close to 1.
func IntegratedTime(series []float64) (float64, error) {
	if len(series) < 4 {
		return 0, ErrShortSeries
	}
	acf := Autocorrelation(series)
	if acf == nil {
		return 1, nil
	}

	tau := 1.0
	for m := 1; m < len(acf); m++ {
		tau += 2 * acf[m]
		if float64(m) >= sokalWindow*tau {
			break
		}
	}
	return math.Max(tau, 1), nil
}

// BlockMean splits series into blocks of equal length, dropping the
// remainder, and returns the mean and the standard error of the block means.
func BlockMean(series []float64, blocks int) (mean, stderr float64, err error) {
	if blocks < 2 {
		return 0, 0, ErrBadBlocks
	}
	size := len(series) / blocks
	if size == 0 {
		return 0, 0, ErrShortSeries
	}

	means := make([]float64, blocks)
	for b := range means {
		means[b] = stat.Mean(series[b*size:(b+1)*size], nil)
	}
	mean = stat.Mean(means, nil)
	stderr = stat.StdDev(means, nil) / math.Sqrt(float64(blocks))
	return mean, stderr, nil
}
