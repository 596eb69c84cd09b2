package video

import (
	"context"
	"fmt"
	"io/fs"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"shortsbot/types"

	ffmpeg "github.com/u2takey/ffmpeg-go"
)

// SadTalker lip-syncs a portrait to the narration, falling back to a slow zoom over the still image
type SadTalker struct {
	Dir      string
	Python   string
	Enhancer bool
	Run      Runner
	// Fallback renders the still image version when SadTalker fails
	Fallback *StillAvatar
}

// NewSadTalker returns an animator for a SadTalker checkout at dir
func NewSadTalker(dir string, enhancer bool) *SadTalker {
	return &SadTalker{
		Dir:      dir,
		Python:   "python3",
		Enhancer: enhancer,
		Run:      ExecRunner,
		Fallback: NewStillAvatar(),
	}
}

// Animate writes the talking-head video to destination
func (s *SadTalker) Animate(ctx context.Context, audioPath, imagePath, destination string) (types.MediaAsset, error) {
	log.Println("🗣️  Generating talking avatar with SadTalker...")
	if _, err := os.Stat(imagePath); err != nil {
		return types.MediaAsset{}, stageErr(types.StageAvatar, "avatar image", err)
	}
	if _, err := os.Stat(s.Dir); err != nil {
		return types.MediaAsset{}, types.Stagef(types.StageAvatar, "SadTalker not found at %s; clone it first or set SADTALKER_DIR", s.Dir)
	}

	resultDir := filepath.Join(filepath.Dir(destination), "sadtalker")
	if err := os.MkdirAll(resultDir, 0o755); err != nil {
		return types.MediaAsset{}, stageErr(types.StageAvatar, "create result dir", err)
	}
	defer os.RemoveAll(resultDir)

	if _, err := s.Run(ctx, s.Dir, s.Python, s.args(audioPath, imagePath, resultDir)...); err != nil {
		if ctx.Err() != nil {
			return types.MediaAsset{}, stageErr(types.StageAvatar, "sadtalker interrupted", ctx.Err())
		}
		log.Printf("⚠️  SadTalker failed, using still image fallback: %v", err)
		return s.fallback(ctx, audioPath, imagePath, destination)
	}

	generated, err := newestMP4(resultDir)
	if err != nil {
		log.Printf("⚠️  SadTalker produced no output, using still image fallback: %v", err)
		return s.fallback(ctx, audioPath, imagePath, destination)
	}
	if err := os.Rename(generated, destination); err != nil {
		return types.MediaAsset{}, stageErr(types.StageAvatar, "move avatar video", err)
	}
	log.Printf("✅ Talking avatar video generated: %s", destination)
	return types.MediaAsset{Path: destination, Kind: types.AssetAvatarVideo}, nil
}

func (s *SadTalker) args(audioPath, imagePath, resultDir string) []string {
	args := []string{
		filepath.Join(s.Dir, "inference.py"),
		"--driven_audio", absPath(audioPath),
		"--source_image", absPath(imagePath),
		"--result_dir", absPath(resultDir),
		"--still",
		"--preprocess", "crop",
	}
	if s.Enhancer {
		args = append(args, "--enhancer", "gfpgan")
	}
	return args
}

func (s *SadTalker) fallback(ctx context.Context, audioPath, imagePath, destination string) (types.MediaAsset, error) {
	if s.Fallback == nil {
		return types.MediaAsset{}, types.Stagef(types.StageAvatar, "sadtalker failed and no fallback is configured")
	}
	return s.Fallback.Animate(ctx, audioPath, imagePath, destination)
}

// newestMP4 finds the most recently written mp4 under dir
func newestMP4(dir string) (string, error) {
	var newest string
	var newestMod time.Time
	err := filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || d.IsDir() || !strings.EqualFold(filepath.Ext(path), ".mp4") {
			return err
		}
		info, err := d.Info()
		if err != nil {
			return err
		}
		if newest == "" || info.ModTime().After(newestMod) {
			newest, newestMod = path, info.ModTime()
		}
		return nil
	})
	if err != nil {
		return "", err
	}
	if newest == "" {
		return "", fmt.Errorf("no mp4 under %s", dir)
	}
	return newest, nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

// StillAvatar loops the portrait with a slow zoom for the length of the narration
type StillAvatar struct {
	Size int
	Run  Runner
}

// NewStillAvatar returns the ffmpeg zoom animator
func NewStillAvatar() *StillAvatar {
	return &StillAvatar{Size: 512, Run: ExecRunner}
}

// Animate renders the zoom video to destination
func (a *StillAvatar) Animate(ctx context.Context, audioPath, imagePath, destination string) (types.MediaAsset, error) {
	log.Println("🖼️  Creating still image zoom avatar...")
	if _, err := a.Run(ctx, "", "ffmpeg", a.stream(audioPath, imagePath, destination).GetArgs()...); err != nil {
		return types.MediaAsset{}, stageErr(types.StageAvatar, "still image avatar failed", err)
	}
	log.Printf("✅ Still image avatar created: %s", destination)
	return types.MediaAsset{Path: destination, Kind: types.AssetAvatarVideo}, nil
}

func (a *StillAvatar) stream(audioPath, imagePath, destination string) *ffmpeg.Stream {
	image := ffmpeg.Input(imagePath, ffmpeg.KwArgs{"loop": 1})
	audio := ffmpeg.Input(audioPath).Audio()
	return ffmpeg.Output([]*ffmpeg.Stream{image, audio}, destination, ffmpeg.KwArgs{
		"c:v":      "libx264",
		"tune":     "stillimage",
		"c:a":      "aac",
		"b:a":      "192k",
		"pix_fmt":  "yuv420p",
		"vf":       fmt.Sprintf("zoompan=z='min(zoom+0.001,1.3)':d=1:s=%dx%d:fps=30", a.Size, a.Size),
		"shortest": "",
	}).OverWriteOutput()
}
