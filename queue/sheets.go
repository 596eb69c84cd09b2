package queue

import (
	"context"
	"fmt"
	"log"
	"regexp"
	"strconv"
	"strings"

	"shortsbot/common"
	"shortsbot/types"

	"google.golang.org/api/option"
	"google.golang.org/api/sheets/v4"
)

// Sheet columns: Topic | Language | Status | Video URL, header on row 1
const (
	colTopic = iota
	colLanguage
	colStatus
	colVideoURL
)

var spreadsheetIDPattern = regexp.MustCompile(`/spreadsheets/d/([a-zA-Z0-9_-]+)`)

// SpreadsheetID extracts the id from a sheet URL; a bare id is returned as is
func SpreadsheetID(sheetURL string) (string, error) {
	sheetURL = strings.TrimSpace(sheetURL)
	if sheetURL == "" {
		return "", fmt.Errorf("google sheet url not configured")
	}
	if m := spreadsheetIDPattern.FindStringSubmatch(sheetURL); m != nil {
		return m[1], nil
	}
	if strings.Contains(sheetURL, "/") {
		return "", fmt.Errorf("cannot find spreadsheet id in %q", sheetURL)
	}
	return sheetURL, nil
}

// sheetValues is the slice of the Sheets values API the source uses
type sheetValues interface {
	Get(ctx context.Context, rng string) ([][]any, error)
	Update(ctx context.Context, rng string, row []any) error
}

type googleValues struct {
	svc *sheets.Service
	id  string
}

func (g googleValues) Get(ctx context.Context, rng string) ([][]any, error) {
	resp, err := g.svc.Spreadsheets.Values.Get(g.id, rng).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	return resp.Values, nil
}

func (g googleValues) Update(ctx context.Context, rng string, row []any) error {
	vr := &sheets.ValueRange{Values: [][]any{row}}
	_, err := g.svc.Spreadsheets.Values.Update(g.id, rng, vr).ValueInputOption("RAW").Context(ctx).Do()
	return err
}

// SheetsSource reads topics from a Google Sheet and writes status back to it
type SheetsSource struct {
	values sheetValues
	sheet  string
}

// NewSheetsSource authenticates with a service account and opens the sheet
func NewSheetsSource(ctx context.Context, credentialsFile, sheetURL, sheetName string) (*SheetsSource, error) {
	id, err := SpreadsheetID(sheetURL)
	if err != nil {
		return nil, err
	}
	client, err := common.ServiceAccountClient(ctx, credentialsFile, sheets.SpreadsheetsScope)
	if err != nil {
		return nil, err
	}
	svc, err := sheets.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Sheets service: %w", err)
	}
	return newSheetsSource(googleValues{svc: svc, id: id}, sheetName), nil
}

func newSheetsSource(values sheetValues, sheetName string) *SheetsSource {
	if sheetName == "" {
		sheetName = "Sheet1"
	}
	return &SheetsSource{values: values, sheet: sheetName}
}

// ClaimNextPending returns the first row whose status reads Pending
func (s *SheetsSource) ClaimNextPending(ctx context.Context) (*types.Topic, error) {
	rows, err := s.values.Get(ctx, s.sheet+"!A2:D")
	if err != nil {
		return nil, fmt.Errorf("failed to fetch topics: %w", err)
	}

	for i, row := range rows {
		rowNum := i + 2
		if !strings.EqualFold(cell(row, colStatus), string(types.TopicPending)) {
			continue
		}
		text := cell(row, colTopic)
		if text == "" {
			continue
		}
		lang, err := types.ParseLanguage(cell(row, colLanguage))
		if err != nil {
			log.Printf("⚠️  Unsupported language %q in row %d, skipping", cell(row, colLanguage), rowNum)
			continue
		}
		return types.NewTopic(text, lang, strconv.Itoa(rowNum))
	}
	return nil, nil
}

// PersistStatus writes the Status and, when known, the Video URL cells of the topic's row
func (s *SheetsSource) PersistStatus(ctx context.Context, topic *types.Topic) error {
	rowNum, err := strconv.Atoi(topic.SourceRef)
	if err != nil || rowNum < 2 {
		return fmt.Errorf("topic %q has no sheet row", topic.Text)
	}

	rng := fmt.Sprintf("%s!C%d", s.sheet, rowNum)
	row := []any{string(topic.Status)}
	if topic.VideoURL != "" {
		rng = fmt.Sprintf("%s!C%d:D%d", s.sheet, rowNum, rowNum)
		row = append(row, topic.VideoURL)
	}
	if err := s.values.Update(ctx, rng, row); err != nil {
		return fmt.Errorf("failed to update sheet row %d: %w", rowNum, err)
	}
	log.Printf("📊 Sheet updated: Row %d → %s", rowNum, topic.Status)
	return nil
}

func cell(row []any, col int) string {
	if col >= len(row) || row[col] == nil {
		return ""
	}
	return strings.TrimSpace(fmt.Sprint(row[col]))
}
