package distribution

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"shortsbot/common"

	"google.golang.org/api/drive/v3"
	"google.golang.org/api/option"
)

// DriveStorage backs videos up to a Google Drive folder
type DriveStorage struct {
	service  *drive.Service
	folderID string
}

// NewDriveStorage authenticates with a service account
func NewDriveStorage(ctx context.Context, credentialsFile, folderID string) (*DriveStorage, error) {
	client, err := common.ServiceAccountClient(ctx, credentialsFile, drive.DriveFileScope)
	if err != nil {
		return nil, err
	}
	service, err := drive.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Drive service: %w", err)
	}
	return &DriveStorage{service: service, folderID: folderID}, nil
}

// Save uploads path and returns its web link
func (d *DriveStorage) Save(ctx context.Context, path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	meta := &drive.File{Name: backupName(path)}
	if d.folderID != "" {
		meta.Parents = []string{d.folderID}
	}
	created, err := d.service.Files.Create(meta).Media(f).Fields("id, webViewLink").Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("drive upload: %w", err)
	}
	if created.WebViewLink != "" {
		return created.WebViewLink, nil
	}
	return "https://drive.google.com/file/d/" + created.Id, nil
}

// backupName flattens <run>/<lang>/<file> into one file name
func backupName(path string) string {
	parts := tailParts(path, 3)
	if len(parts) == 0 {
		return "video.mp4"
	}
	name := parts[0]
	for _, p := range parts[1:] {
		name += "_" + p
	}
	return name
}

// tailParts returns up to n trailing path elements, outermost first
func tailParts(path string, n int) []string {
	var parts []string
	for p := filepath.Clean(path); len(parts) < n; p = filepath.Dir(p) {
		base := filepath.Base(p)
		if base == "." || base == string(filepath.Separator) {
			break
		}
		parts = append([]string{base}, parts...)
	}
	return parts
}
