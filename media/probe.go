package media

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// Runner executes an external program and returns its stdout.
type Runner interface {
	Run(ctx context.Context, name string, args ...string) ([]byte, error)
}

type probeOutput struct {
	Streams []struct {
		CodecType string `json:"codec_type"`
		CodecName string `json:"codec_name"`
		Width     int    `json:"width"`
		Height    int    `json:"height"`
		Duration  string `json:"duration"`
	} `json:"streams"`
	Format struct {
		Duration string `json:"duration"`
	} `json:"format"`
}

// ProbeResult is the subset of ffprobe output the extractors need.
type ProbeResult struct {
	Duration   float64
	Dimensions *Dimensions
	HasAudio   bool
}

func parseProbeOutput(payload []byte) (*ProbeResult, error) {
	var out probeOutput
	if err := json.Unmarshal(payload, &out); err != nil {
		return nil, fmt.Errorf("decode ffprobe output: %w", err)
	}

	result := &ProbeResult{}
	result.Duration = parseSeconds(out.Format.Duration)

	for _, s := range out.Streams {
		switch s.CodecType {
		case "video":
			if result.Dimensions == nil && s.Width > 0 && s.Height > 0 {
				result.Dimensions = &Dimensions{Width: s.Width, Height: s.Height}
			}
		case "audio":
			result.HasAudio = true
		}

		if result.Duration == 0 {
			result.Duration = parseSeconds(s.Duration)
		}
	}

	return result, nil
}

func parseSeconds(raw string) float64 {
	raw = strings.TrimSpace(raw)
	if raw == "" || raw == "N/A" {
		return 0
	}

	v, err := strconv.ParseFloat(raw, 64)
	if err != nil || v < 0 {
		return 0
	}

	return v
}

func probe(ctx context.Context, runner Runner, ffprobe, path string) (*ProbeResult, error) {
	if strings.TrimSpace(path) == "" {
		return nil, fmt.Errorf("probe: empty path")
	}

	out, err := runner.Run(ctx, ffprobe,
		"-v", "error",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		path,
	)
	if err != nil {
		return nil, fmt.Errorf("ffprobe failed: %w", err)
	}

	return parseProbeOutput(out)
}
