package media

import (
	"encoding/binary"
	"errors"
	"math"
)

var errNoSamples = errors.New("no audio samples")

// decodeS16LE converts little-endian signed 16-bit PCM into samples in -1..1.
// A trailing odd byte is ignored.
func decodeS16LE(raw []byte) []float64 {
	samples := make([]float64, len(raw)/2)
	for i := range samples {
		v := int16(binary.LittleEndian.Uint16(raw[i*2:]))
		samples[i] = float64(v) / 32768
	}
	return samples
}

// ComputeWaveform downsamples samples into at most buckets peak/RMS pairs. When there are
// fewer samples than buckets each sample becomes its own bucket.
func ComputeWaveform(samples []float64, buckets int) (*Waveform, error) {
	if len(samples) == 0 {
		return nil, errNoSamples
	}
	if buckets <= 0 {
		return nil, errors.New("bucket count must be positive")
	}
	if buckets > len(samples) {
		buckets = len(samples)
	}

	wf := &Waveform{
		Peaks: make([]float64, buckets),
		RMS:   make([]float64, buckets),
	}

	for b := 0; b < buckets; b++ {
		start := b * len(samples) / buckets
		end := (b + 1) * len(samples) / buckets
		if end <= start {
			end = start + 1
		}

		var peak, sumSquares float64
		for _, s := range samples[start:end] {
			a := math.Abs(s)
			if a > peak {
				peak = a
			}
			sumSquares += s * s
		}

		wf.Peaks[b] = clamp01(peak)
		wf.RMS[b] = clamp01(math.Sqrt(sumSquares / float64(end-start)))
	}

	return wf, nil
}

func clamp01(v float64) float64 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
