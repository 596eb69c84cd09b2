package queue

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"log"
	"strings"

	"shortsbot/types"

	"github.com/mmcdole/gofeed"
)

// SeenSet remembers title hashes; MarkSeen reports true only for a first sighting
type SeenSet interface {
	MarkSeen(ctx context.Context, hash string) (bool, error)
}

// TopicSink accepts new topics and remembers which ones it has seen
type TopicSink interface {
	SeenSet
	Enqueue(ctx context.Context, text string, lang types.Language) (string, error)
}

// FeedFetcher returns the item titles of a feed
type FeedFetcher interface {
	Titles(ctx context.Context, feedURL string, max int) ([]string, error)
}

// GoFeed fetches RSS/Atom feeds with gofeed
type GoFeed struct {
	parser *gofeed.Parser
}

// NewGoFeed creates a feed fetcher
func NewGoFeed() *GoFeed {
	return &GoFeed{parser: gofeed.NewParser()}
}

// Titles retrieves and parses a feed, returning up to max item titles
func (g *GoFeed) Titles(ctx context.Context, feedURL string, max int) ([]string, error) {
	feed, err := g.parser.ParseURLWithContext(feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to fetch feed: %w", err)
	}

	titles := make([]string, 0, len(feed.Items))
	for _, item := range feed.Items {
		if max > 0 && len(titles) == max {
			break
		}
		if t := strings.TrimSpace(item.Title); t != "" {
			titles = append(titles, t)
		}
	}
	return titles, nil
}

// Seeder turns feed items into pending topics, skipping titles queued before
type Seeder struct {
	Feeds FeedFetcher
	Sink  TopicSink
	// Seen overrides the sink's own seen set when non-nil
	Seen SeenSet
}

// SeedReport counts what a seeding pass did
type SeedReport struct {
	Fetched    int
	Queued     int
	Duplicates int
}

// Seed fetches feedURL and queues every unseen title in lang
func (s *Seeder) Seed(ctx context.Context, feedURL string, lang types.Language, max int) (SeedReport, error) {
	var report SeedReport
	titles, err := s.Feeds.Titles(ctx, feedURL, max)
	if err != nil {
		return report, err
	}
	report.Fetched = len(titles)

	var seen SeenSet = s.Sink
	if s.Seen != nil {
		seen = s.Seen
	}
	for _, title := range titles {
		fresh, err := seen.MarkSeen(ctx, TitleHash(title))
		if err != nil {
			return report, fmt.Errorf("dedup %q: %w", title, err)
		}
		if !fresh {
			report.Duplicates++
			continue
		}
		id, err := s.Sink.Enqueue(ctx, title, lang)
		if err != nil {
			return report, fmt.Errorf("enqueue %q: %w", title, err)
		}
		log.Printf("➕ Queued %q (%s)", title, id)
		report.Queued++
	}
	log.Printf("🌱 Seeded %d/%d topics from %s (%d duplicates)", report.Queued, report.Fetched, feedURL, report.Duplicates)
	return report, nil
}

// TitleHash returns the sha256 hex of the normalized title
func TitleHash(title string) string {
	h := sha256.Sum256([]byte(normalizeTitle(title)))
	return hex.EncodeToString(h[:])
}

func normalizeTitle(t string) string {
	return strings.Join(strings.Fields(strings.ToLower(t)), " ")
}
