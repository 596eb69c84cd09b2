package video

import (
	"encoding/json"
	"fmt"
	"strconv"

	"shortsbot/config"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// ProbeFunc returns the duration of a media file in seconds
type ProbeFunc func(path string) (float64, error)

// ProbeDuration reads format.duration with ffprobe
func ProbeDuration(path string) (float64, error) {
	out, err := ffmpeg.ProbeWithTimeout(path, config.ProbeTimeout, ffmpeg.KwArgs{})
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}
	return parseProbeDuration(out)
}

func parseProbeDuration(out string) (float64, error) {
	var probe struct {
		Format struct {
			Duration string `json:"duration"`
		} `json:"format"`
	}
	if err := json.Unmarshal([]byte(out), &probe); err != nil {
		return 0, fmt.Errorf("parse ffprobe output: %w", err)
	}
	d, err := strconv.ParseFloat(probe.Format.Duration, 64)
	if err != nil {
		return 0, fmt.Errorf("parse duration %q: %w", probe.Format.Duration, err)
	}
	return d, nil
}
