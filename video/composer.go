package video

import (
	"context"
	"fmt"
	"log"
	"math"
	"os"
	"path/filepath"
	"strings"

	"shortsbot/config"
	"shortsbot/pipeline"
	"shortsbot/types"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// Composer renders the final 9:16 short with ffmpeg
type Composer struct {
	Width  int
	Height int
	FPS    int
	// FontFile and MusicFile are optional
	FontFile  string
	MusicFile string
	Run       Runner
	Probe     ProbeFunc
}

// NewComposer returns a composer for the given output size
func NewComposer(width, height, fps int, fontFile, musicFile string) *Composer {
	return &Composer{
		Width:     width,
		Height:    height,
		FPS:       fps,
		FontFile:  fontFile,
		MusicFile: musicFile,
		Run:       ExecRunner,
		Probe:     ProbeDuration,
	}
}

// Compose renders the video, then burns subtitles in when there are any
func (c *Composer) Compose(ctx context.Context, req pipeline.ComposeRequest) (types.MediaAsset, error) {
	if len(req.SceneImages) == 0 {
		return types.MediaAsset{}, types.Stagef(types.StageComposition, "no scene images to compose")
	}
	duration := c.duration(req)
	log.Printf("🎬 Composing final video (%dx%d, %.1fs, %s)...", c.Width, c.Height, duration, req.Mode)

	if err := os.MkdirAll(filepath.Dir(req.Destination), 0o755); err != nil {
		return types.MediaAsset{}, stageErr(types.StageComposition, "create output dir", err)
	}

	target := req.Destination
	if req.Subtitles != "" {
		target = strings.TrimSuffix(req.Destination, filepath.Ext(req.Destination)) + "_raw.mp4"
		defer os.Remove(target)
	}

	var stream *ffmpeg.Stream
	if req.Mode == types.CompositionSlideshow {
		stream = c.slideshow(req, duration, target)
	} else {
		stream = c.avatar(req, duration, target)
	}
	if _, err := c.Run(ctx, "", "ffmpeg", stream.GetArgs()...); err != nil {
		return types.MediaAsset{}, stageErr(types.StageComposition, "ffmpeg failed", err)
	}

	if req.Subtitles != "" {
		if _, err := c.Run(ctx, "", "ffmpeg", c.burnSubtitles(target, req.Subtitles, req.Destination).GetArgs()...); err != nil {
			return types.MediaAsset{}, stageErr(types.StageComposition, "subtitle burn-in failed", err)
		}
	}

	log.Printf("✅ Final video composed: %s", req.Destination)
	return types.MediaAsset{Path: req.Destination, Kind: types.AssetComposedVideo, DurationSeconds: duration}, nil
}

// duration prefers the narration length and never exceeds the shorts limit
func (c *Composer) duration(req pipeline.ComposeRequest) float64 {
	d := req.DurationSeconds
	if d <= 0 && c.Probe != nil {
		if probed, err := c.Probe(req.Narration); err == nil {
			d = probed
		}
	}
	if d <= 0 || d > config.MaxVideoDuration {
		d = config.MaxVideoDuration
	}
	return d
}

// fill scales an input to cover the frame and crops the overflow
func (c *Composer) fill(s *ffmpeg.Stream) *ffmpeg.Stream {
	return s.
		Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": c.Width, "h": c.Height, "force_original_aspect_ratio": "increase"}).
		Filter("crop", ffmpeg.Args{}, ffmpeg.KwArgs{"w": c.Width, "h": c.Height}).
		Filter("setsar", ffmpeg.Args{"1"})
}

// avatar: full-frame background with the talking head centered at 80% width
func (c *Composer) avatar(req pipeline.ComposeRequest, duration float64, dest string) *ffmpeg.Stream {
	bg := c.fill(ffmpeg.Input(req.SceneImages[0], ffmpeg.KwArgs{"loop": 1, "t": seconds(duration)}))
	video := bg
	if req.AvatarVideo != "" {
		face := ffmpeg.Input(req.AvatarVideo).Video().
			Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": int(float64(c.Width) * 0.8), "h": -2})
		video = ffmpeg.Filter([]*ffmpeg.Stream{bg, face}, "overlay", ffmpeg.Args{}, ffmpeg.KwArgs{"x": "(W-w)/2", "y": "(H-h)/2"})
	}
	return c.output(video, req.Narration, duration, dest)
}

// slideshow: scenes split the duration evenly, avatar in the lower right corner at 25% width
func (c *Composer) slideshow(req pipeline.ComposeRequest, duration float64, dest string) *ffmpeg.Stream {
	per := duration / float64(len(req.SceneImages))
	scenes := make([]*ffmpeg.Stream, 0, len(req.SceneImages))
	for _, img := range req.SceneImages {
		scenes = append(scenes, c.fill(ffmpeg.Input(img, ffmpeg.KwArgs{"loop": 1, "t": seconds(per)})))
	}
	video := scenes[0]
	if len(scenes) > 1 {
		video = ffmpeg.Concat(scenes)
	}
	if req.AvatarVideo != "" {
		face := ffmpeg.Input(req.AvatarVideo).Video().
			Filter("scale", ffmpeg.Args{}, ffmpeg.KwArgs{"w": int(float64(c.Width) * 0.25), "h": -2})
		video = ffmpeg.Filter([]*ffmpeg.Stream{video, face}, "overlay", ffmpeg.Args{}, ffmpeg.KwArgs{"x": "W-w-40", "y": "H-h-320"})
	}
	return c.output(video, req.Narration, duration, dest)
}

func (c *Composer) output(video *ffmpeg.Stream, narration string, duration float64, dest string) *ffmpeg.Stream {
	audio := ffmpeg.Input(narration).Audio()
	if c.MusicFile != "" {
		if _, err := os.Stat(c.MusicFile); err == nil {
			music := ffmpeg.Input(c.MusicFile, ffmpeg.KwArgs{"stream_loop": -1}).Audio().
				Filter("volume", ffmpeg.Args{"0.01"})
			audio = ffmpeg.Filter([]*ffmpeg.Stream{audio, music}, "amix", ffmpeg.Args{}, ffmpeg.KwArgs{"inputs": 2, "duration": "first"})
			log.Println("🎵 Background music mixed at 1% volume")
		}
	}
	return ffmpeg.Output([]*ffmpeg.Stream{video, audio}, dest, ffmpeg.KwArgs{
		"t":        seconds(duration),
		"r":        c.FPS,
		"c:v":      config.VideoCodec,
		"c:a":      config.AudioCodec,
		"b:a":      config.AudioBitrate,
		"preset":   config.VideoPreset,
		"pix_fmt":  "yuv420p",
		"shortest": "",
	}).OverWriteOutput()
}

func (c *Composer) burnSubtitles(src, srt, dest string) *ffmpeg.Stream {
	return ffmpeg.Input(src).
		Output(dest, ffmpeg.KwArgs{
			"vf":     subtitleFilter(srt, c.FontFile),
			"c:v":    config.VideoCodec,
			"preset": config.VideoPreset,
			"c:a":    "copy",
		}).
		OverWriteOutput()
}

func subtitleFilter(srtPath, fontFile string) string {
	style := "FontName=Impact," +
		"FontSize=14," +
		"PrimaryColour=&H00FFFF," +
		"OutlineColour=&H000000," +
		"BorderStyle=3," +
		"Outline=2," +
		"Shadow=0," +
		"Alignment=2," +
		"MarginV=60," +
		"Bold=1"

	filter := fmt.Sprintf("subtitles='%s':force_style='%s'", escapeFilterPath(srtPath), style)
	if fontFile != "" {
		filter += fmt.Sprintf(":fontsdir='%s'", escapeFilterPath(filepath.Dir(fontFile)))
	}
	return filter
}

// escapeFilterPath makes a path safe inside a quoted filter argument
func escapeFilterPath(p string) string {
	p = filepath.ToSlash(p)
	p = strings.ReplaceAll(p, `'`, `'\''`)
	return strings.ReplaceAll(p, ":", `\:`)
}

func seconds(d float64) string {
	return fmt.Sprintf("%.2f", math.Max(d, 0.1))
}
