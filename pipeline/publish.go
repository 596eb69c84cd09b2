package pipeline

import (
	"context"
	"fmt"
	"log"

	"shortsbot/types"
)

// PublishRequest is one finished video ready to go out
type PublishRequest struct {
	VideoPath   string
	Title       string
	Description string
	Tags        []string
	// Upload false skips the upload channel entirely
	Upload bool
}

// PublishReceipt is where the video ended up; empty fields mean "not published there"
type PublishReceipt struct {
	URL        string
	BackupPath string
}

// Publisher runs backup, upload and notification in that order.
// Any channel may be nil.
type Publisher struct {
	Storage  Storage
	Uploader Uploader
	Notifier Notifier
}

// Publish backs up (non-fatal), uploads (fatal) and notifies (non-fatal)
func (p *Publisher) Publish(ctx context.Context, req PublishRequest) (PublishReceipt, error) {
	var receipt PublishReceipt

	if p.Storage != nil {
		backup, err := p.Storage.Save(ctx, req.VideoPath)
		if err != nil {
			log.Printf("⚠️  Storage backup failed (continuing): %v", err)
		} else {
			receipt.BackupPath = backup
			log.Printf("💾 Backed up to %s", backup)
		}
	}

	if req.Upload {
		if p.Uploader == nil {
			return receipt, types.Stagef(types.StageUpload, "upload requested but no uploader is configured")
		}
		url, err := p.Uploader.Upload(ctx, req.VideoPath, req.Title, req.Description, req.Tags)
		if err != nil {
			return receipt, types.NewStageError(types.StageUpload, fmt.Sprintf("upload failed: %v", err), err)
		}
		receipt.URL = url
		log.Printf("✅ Uploaded: %s", url)
	} else {
		log.Println("⏭️  Upload skipped")
	}

	if p.Notifier != nil {
		sent, err := p.Notifier.Send(ctx, CompletionMessage(req.Title, receipt))
		switch {
		case err != nil:
			log.Printf("⚠️  Notification failed (continuing): %v", err)
		case !sent:
			log.Println("⚠️  Notification was not delivered")
		}
	}

	return receipt, nil
}

// CompletionMessage is the text sent to notification channels
func CompletionMessage(title string, r PublishReceipt) string {
	url := r.URL
	if url == "" {
		url = "Upload skipped"
	}
	backup := r.BackupPath
	if backup == "" {
		backup = "N/A"
	}
	return fmt.Sprintf("🎬 *New Short Ready*\n\n*Title:* %s\n*YouTube:* %s\n*Backup:* %s", title, url, backup)
}
