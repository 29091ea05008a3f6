// package formatter renders release reports and run history as CSV, Markdown, JSON or plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/shared"
)

// Output formats accepted by [Render].
const (
	FormatText     = "text"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatJSON     = "json"
)

// Formats lists every accepted format name.
var Formats = []string{FormatText, FormatCSV, FormatMarkdown, FormatJSON}

// Report is the printable summary of an aggregation, with or without a created playlist.
type Report struct {
	Playlist    *models.Playlist `json:"playlist,omitempty"` // nil for previews
	Artists     int              `json:"artists"`
	Albums      []models.Album   `json:"albums"`
	Tracks      []string         `json:"tracks"`
	Cutoff      time.Time        `json:"cutoff"`
	GeneratedAt time.Time        `json:"generated_at"`
}

// ToCSV writes one row per album with columns: Position, ID, Album, Artist, Release Date
func ToCSV(r Report) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "ID", "Album", "Artist", "Release Date"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, a := range r.Albums {
		record := []string{strconv.Itoa(i + 1), a.ID, a.Name, a.Artist, a.Released()}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}
	return buf.Bytes(), nil
}

// ToMarkdown renders the report as a Markdown document
func ToMarkdown(r Report) ([]byte, error) {
	var buf bytes.Buffer

	if r.Playlist != nil {
		fmt.Fprintf(&buf, "# [%s](%s)\n\n", r.Playlist.Name, r.Playlist.URL)
		fmt.Fprintf(&buf, "**Visibility**: %s\n", shared.VisibilityString(r.Playlist.Public))
	} else {
		buf.WriteString("# New Releases (preview)\n\n")
	}

	if !r.Cutoff.IsZero() {
		fmt.Fprintf(&buf, "**Released after**: %s\n", r.Cutoff.Format(models.ReleaseDateLayout))
	}
	fmt.Fprintf(&buf, "**Artists followed**: %d\n", r.Artists)
	fmt.Fprintf(&buf, "**Releases**: %d\n", len(r.Albums))
	fmt.Fprintf(&buf, "**Tracks**: %d\n\n", len(r.Tracks))

	buf.WriteString("## Releases\n\n")
	if len(r.Albums) == 0 {
		buf.WriteString("_No new releases._\n")
	}
	for i, a := range r.Albums {
		fmt.Fprintf(&buf, "%d. %s - %s (%s)\n", i+1, a.Artist, a.Name, a.Released())
	}

	return buf.Bytes(), nil
}

// ToText renders the report as plain text
func ToText(r Report) ([]byte, error) {
	var buf bytes.Buffer

	if r.Playlist != nil {
		fmt.Fprintf(&buf, "Playlist: %s\n", r.Playlist.Name)
		fmt.Fprintf(&buf, "URL: %s\n", r.Playlist.URL)
	}
	fmt.Fprintf(&buf, "Artists: %d\n", r.Artists)
	fmt.Fprintf(&buf, "Releases: %d\n", len(r.Albums))
	fmt.Fprintf(&buf, "Tracks: %d\n\n", len(r.Tracks))

	for i, a := range r.Albums {
		fmt.Fprintf(&buf, "%d. %s - %s [%s]\n", i+1, a.Artist, a.Name, a.Released())
	}

	return buf.Bytes(), nil
}

// ToJSON renders the full report, including track URIs
func ToJSON(r Report) ([]byte, error) {
	return shared.MarshalJSON(r, true)
}

// ParseFormat normalizes a format name. "md" is accepted for Markdown and an empty name means text.
func ParseFormat(format string) (string, error) {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "":
		return FormatText, nil
	case "md":
		return FormatMarkdown, nil
	case FormatText, FormatCSV, FormatMarkdown, FormatJSON:
		return f, nil
	default:
		return "", fmt.Errorf("%w: unknown format %q (expected one of %s)", shared.ErrInvalidFlag, format, strings.Join(Formats, ", "))
	}
}

// Render dispatches to the renderer for format.
func Render(format string, r Report) ([]byte, error) {
	f, err := ParseFormat(format)
	if err != nil {
		return nil, err
	}
	switch f {
	case FormatCSV:
		return ToCSV(r)
	case FormatMarkdown:
		return ToMarkdown(r)
	case FormatJSON:
		return ToJSON(r)
	default:
		return ToText(r)
	}
}

// WriteReport renders r and writes it to path.
func WriteReport(path, format string, r Report) error {
	data, err := Render(format, r)
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write report: %w", err)
	}
	return nil
}

// HistoryToText renders runs as an aligned table
func HistoryToText(runs []*models.Run) []byte {
	var buf bytes.Buffer
	if len(runs) == 0 {
		buf.WriteString("No runs recorded.\n")
		return buf.Bytes()
	}

	w := tabwriter.NewWriter(&buf, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "#\tSTARTED\tSTATUS\tARTISTS\tRELEASES\tTRACKS\tRESULT")
	for _, run := range runs {
		fmt.Fprintf(w, "%d\t%s\t%s\t%d\t%d\t%d\t%s\n",
			run.Sequence(),
			run.StartedAt().Local().Format("2006-01-02 15:04"),
			run.Status(),
			run.ArtistCount(),
			run.AlbumCount(),
			run.TrackCount(),
			runOutcome(run),
		)
	}
	w.Flush()
	return buf.Bytes()
}

// HistoryToJSON renders runs as a JSON array
func HistoryToJSON(runs []*models.Run) ([]byte, error) {
	type row struct {
		ID         string     `json:"id"`
		Sequence   int        `json:"sequence"`
		Status     string     `json:"status"`
		Playlist   string     `json:"playlist_url,omitempty"`
		Artists    int        `json:"artists"`
		Albums     int        `json:"albums"`
		Tracks     int        `json:"tracks"`
		ErrorKind  string     `json:"error_kind,omitempty"`
		StartedAt  time.Time  `json:"started_at"`
		FinishedAt *time.Time `json:"finished_at,omitempty"`
	}

	rows := make([]row, 0, len(runs))
	for _, run := range runs {
		rows = append(rows, row{
			ID:         run.ID(),
			Sequence:   run.Sequence(),
			Status:     string(run.Status()),
			Playlist:   run.Playlist().URL,
			Artists:    run.ArtistCount(),
			Albums:     run.AlbumCount(),
			Tracks:     run.TrackCount(),
			ErrorKind:  run.ErrorKind(),
			StartedAt:  run.StartedAt(),
			FinishedAt: run.FinishedAt(),
		})
	}
	return shared.MarshalJSON(rows, true)
}

func runOutcome(run *models.Run) string {
	switch run.Status() {
	case models.RunSucceeded:
		return run.Playlist().URL
	case models.RunFailed:
		return run.ErrorKind()
	default:
		return "-"
	}
}
