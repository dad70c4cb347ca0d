package media

import (
	"context"
	"fmt"
	"strconv"
	"time"

	"github.com/indieinfra/mediadrop/config"
)

const (
	waveformSampleRate = 8000
	// maxWaveformSamples keeps decoded PCM for long recordings bounded (~10 minutes at 8kHz).
	maxWaveformSamples = waveformSampleRate * 600
	minWaveformRate    = 100
)

// FFmpegExtractor implements Extractor with the ffprobe and ffmpeg binaries.
type FFmpegExtractor struct {
	runner             Runner
	ffmpeg             string
	ffprobe            string
	screenshotOffset   time.Duration
	screenshotMaxWidth int
	waveformBuckets    int
	timeout            time.Duration
}

func NewFFmpegExtractor(cfg *config.Extraction, runner Runner) *FFmpegExtractor {
	if runner == nil {
		runner = ExecRunner{}
	}

	e := &FFmpegExtractor{
		runner:             runner,
		ffmpeg:             "ffmpeg",
		ffprobe:            "ffprobe",
		screenshotOffset:   config.DefaultScreenshotOffset,
		screenshotMaxWidth: config.DefaultScreenshotMaxWidth,
		waveformBuckets:    config.DefaultWaveformBuckets,
		timeout:            config.DefaultExtractionTimeout,
	}

	if cfg == nil {
		return e
	}

	if cfg.FfmpegPath != "" {
		e.ffmpeg = cfg.FfmpegPath
	}
	if cfg.FfprobePath != "" {
		e.ffprobe = cfg.FfprobePath
	}
	if cfg.ScreenshotOffset > 0 {
		e.screenshotOffset = cfg.ScreenshotOffset
	}
	if cfg.ScreenshotMaxWidth > 0 {
		e.screenshotMaxWidth = cfg.ScreenshotMaxWidth
	}
	if cfg.WaveformBuckets > 0 {
		e.waveformBuckets = cfg.WaveformBuckets
	}
	if cfg.Timeout > 0 {
		e.timeout = cfg.Timeout
	}

	return e
}

func (e *FFmpegExtractor) withTimeout(ctx context.Context) (context.Context, context.CancelFunc) {
	if e.timeout <= 0 {
		return context.WithCancel(ctx)
	}
	return context.WithTimeout(ctx, e.timeout)
}

// ExtractVideoPreview probes the file and captures a single still at the screenshot offset
// (or the first frame when the clip is shorter than the offset).
func (e *FFmpegExtractor) ExtractVideoPreview(ctx context.Context, file *File) (*VideoPreview, error) {
	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	info, err := probe(ctx, e.runner, e.ffprobe, file.Path)
	if err != nil {
		return nil, err
	}

	if info.Dimensions == nil {
		return nil, ErrNoVideoStream
	}

	offset := e.screenshotOffset.Seconds()
	if info.Duration > 0 && offset >= info.Duration {
		offset = 0
	}

	frame, err := e.runner.Run(ctx, e.ffmpeg,
		"-v", "error",
		"-ss", strconv.FormatFloat(offset, 'f', 3, 64),
		"-i", file.Path,
		"-frames:v", "1",
		"-f", "image2pipe",
		"-vcodec", "png",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("capture frame: %w", err)
	}

	screenshot, err := encodeScreenshot(frame, e.screenshotMaxWidth)
	if err != nil {
		return nil, err
	}

	return &VideoPreview{
		Screenshot: screenshot,
		Metadata: Metadata{
			Duration:   info.Duration,
			Dimensions: info.Dimensions,
		},
	}, nil
}

// ExtractAudioMetadata reads the duration and computes a waveform. A waveform failure still
// resolves with the duration; only when nothing at all could be read is an error returned.
func (e *FFmpegExtractor) ExtractAudioMetadata(ctx context.Context, file *File) (*Metadata, error) {
	if !file.IsAudio() {
		return nil, ErrNotAudio
	}

	ctx, cancel := e.withTimeout(ctx)
	defer cancel()

	meta := &Metadata{}
	info, probeErr := probe(ctx, e.runner, e.ffprobe, file.Path)
	if probeErr == nil {
		meta.Duration = info.Duration
	}

	wf, wfErr := e.waveform(ctx, file.Path, meta.Duration)
	if wfErr == nil {
		meta.Waveform = wf
	}

	if probeErr != nil && wfErr != nil {
		return nil, probeErr
	}

	return meta, nil
}

func (e *FFmpegExtractor) waveform(ctx context.Context, path string, duration float64) (*Waveform, error) {
	rate := waveformSampleRate
	if duration > 0 && duration*float64(rate) > maxWaveformSamples {
		rate = max(int(maxWaveformSamples/duration), minWaveformRate)
	}

	raw, err := e.runner.Run(ctx, e.ffmpeg,
		"-v", "error",
		"-i", path,
		"-ac", "1",
		"-ar", strconv.Itoa(rate),
		"-f", "s16le",
		"-",
	)
	if err != nil {
		return nil, fmt.Errorf("decode pcm: %w", err)
	}

	return ComputeWaveform(decodeS16LE(raw), e.waveformBuckets)
}
