// Package distribution publishes finished videos: upload, backup and notification channels.
package distribution

import (
	"context"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"shortsbot/common"
	"shortsbot/config"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/option"
	"google.golang.org/api/youtube/v3"
)

// YouTubeConfig selects the credentials and defaults for uploads
type YouTubeConfig struct {
	ClientID     string
	ClientSecret string
	RefreshToken string
	// ServiceAccountFile is used when no refresh token is set
	ServiceAccountFile string
	Privacy            string
	CategoryID         string
	// PublishAt schedules the video (RFC 3339); it forces private status until then
	PublishAt string
}

// YouTubeUploader uploads shorts through the YouTube Data API v3
type YouTubeUploader struct {
	service *youtube.Service
	cfg     YouTubeConfig
}

// NewYouTubeUploader authenticates and creates the API client
func NewYouTubeUploader(ctx context.Context, cfg YouTubeConfig) (*YouTubeUploader, error) {
	client, err := youtubeClient(ctx, cfg)
	if err != nil {
		return nil, err
	}
	service, err := youtube.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create YouTube service: %w", err)
	}
	if cfg.Privacy == "" {
		cfg.Privacy = config.YouTubePrivacyStatus
	}
	if cfg.CategoryID == "" {
		cfg.CategoryID = config.YouTubeCategoryID
	}
	return &YouTubeUploader{service: service, cfg: cfg}, nil
}

func youtubeClient(ctx context.Context, cfg YouTubeConfig) (*http.Client, error) {
	if cfg.RefreshToken != "" {
		if cfg.ClientID == "" || cfg.ClientSecret == "" {
			return nil, fmt.Errorf("YOUTUBE_CLIENT_ID and YOUTUBE_CLIENT_SECRET are required with a refresh token")
		}
		conf := &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint:     google.Endpoint,
			Scopes:       []string{youtube.YoutubeUploadScope},
		}
		token := &oauth2.Token{
			RefreshToken: cfg.RefreshToken,
			Expiry:       time.Now().Add(-time.Hour), // force refresh
		}
		return oauth2.NewClient(ctx, conf.TokenSource(ctx, token)), nil
	}
	if cfg.ServiceAccountFile != "" {
		return common.ServiceAccountClient(ctx, cfg.ServiceAccountFile, youtube.YoutubeUploadScope)
	}
	return nil, fmt.Errorf("no YouTube credentials configured")
}

// Upload sends the video and returns its shorts URL
func (u *YouTubeUploader) Upload(ctx context.Context, videoPath, title, description string, tags []string) (string, error) {
	file, err := os.Open(videoPath)
	if err != nil {
		return "", fmt.Errorf("failed to open video file: %w", err)
	}
	defer file.Close()

	if info, err := file.Stat(); err == nil {
		log.Printf("📤 Uploading: %s (%.2f MB)", videoPath, float64(info.Size())/(1024*1024))
	}

	call := u.service.Videos.Insert([]string{"snippet", "status"}, u.video(title, description, tags))
	call = call.Media(file)

	response, err := call.Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("failed to upload video: %w", err)
	}
	return ShortsURL(response.Id), nil
}

func (u *YouTubeUploader) video(title, description string, tags []string) *youtube.Video {
	status := &youtube.VideoStatus{
		PrivacyStatus:           u.cfg.Privacy,
		SelfDeclaredMadeForKids: false,
	}
	if u.cfg.PublishAt != "" {
		status.PrivacyStatus = "private" // must be private to schedule
		status.PublishAt = u.cfg.PublishAt
		log.Printf("📅 Scheduled for: %s", u.cfg.PublishAt)
	}
	return &youtube.Video{
		Snippet: &youtube.VideoSnippet{
			Title:       title,
			Description: description,
			Tags:        tags,
			CategoryId:  u.cfg.CategoryID,
		},
		Status: status,
	}
}

// ShortsURL is the public link for an uploaded video id
func ShortsURL(id string) string {
	return "https://youtube.com/shorts/" + id
}
