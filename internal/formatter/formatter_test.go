package formatter

import (
	"encoding/json"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/shared"
	th "github.com/desertthunder/nrx/internal/testing"
)

func testReport(withPlaylist bool) Report {
	r := Report{
		Artists: 3,
		Albums: []models.Album{
			{ID: "al1", Name: "First, Again", Artist: "One", ReleaseDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
			{ID: "al2", Name: "Second", Artist: "Two", ReleaseDate: time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)},
		},
		Tracks:      []string{"spotify:track:1", "spotify:track:2", "spotify:track:3"},
		Cutoff:      time.Date(2026, 9, 18, 0, 0, 0, 0, time.UTC),
		GeneratedAt: time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC),
	}
	if withPlaylist {
		r.Playlist = &models.Playlist{ID: "pl1", Name: "New Monthly Releases - 10-16-2026", URL: "https://open.spotify.com/playlist/pl1", Public: true}
	}
	return r
}

func TestRenderers(t *testing.T) {
	t.Run("ToCSV", func(t *testing.T) {
		data, err := ToCSV(testReport(true))
		if err != nil {
			t.Fatalf("ToCSV failed: %v", err)
		}
		output := string(data)

		if !strings.HasPrefix(output, "Position,ID,Album,Artist,Release Date\n") {
			t.Errorf("CSV missing headers, got: %s", output)
		}
		if !strings.Contains(output, `1,al1,"First, Again",One,2026-10-01`) {
			t.Errorf("CSV missing quoted first row, got: %s", output)
		}
		if lines := strings.Count(output, "\n"); lines != 3 {
			t.Errorf("expected 3 lines, got %d", lines)
		}
	})

	t.Run("ToMarkdown", func(t *testing.T) {
		t.Run("with playlist", func(t *testing.T) {
			data, err := ToMarkdown(testReport(true))
			if err != nil {
				t.Fatalf("ToMarkdown failed: %v", err)
			}
			output := string(data)
			for _, want := range []string{
				"# [New Monthly Releases - 10-16-2026](https://open.spotify.com/playlist/pl1)",
				"**Visibility**: Public",
				"**Released after**: 2026-09-18",
				"**Tracks**: 3",
				"2. Two - Second (2026-10-09)",
			} {
				if !strings.Contains(output, want) {
					t.Errorf("Markdown missing %q, got:\n%s", want, output)
				}
			}
		})

		t.Run("preview without releases", func(t *testing.T) {
			r := testReport(false)
			r.Albums, r.Tracks = nil, nil
			data, err := ToMarkdown(r)
			if err != nil {
				t.Fatalf("ToMarkdown failed: %v", err)
			}
			if !strings.Contains(string(data), "(preview)") || !strings.Contains(string(data), "_No new releases._") {
				t.Errorf("unexpected preview markdown:\n%s", data)
			}
		})
	})

	t.Run("ToText", func(t *testing.T) {
		data, err := ToText(testReport(true))
		if err != nil {
			t.Fatalf("ToText failed: %v", err)
		}
		output := string(data)
		if !strings.Contains(output, "URL: https://open.spotify.com/playlist/pl1") {
			t.Errorf("text missing url, got: %s", output)
		}
		if !strings.Contains(output, "1. One - First, Again [2026-10-01]") {
			t.Errorf("text missing album line, got: %s", output)
		}
	})

	t.Run("ToJSON", func(t *testing.T) {
		data, err := ToJSON(testReport(true))
		if err != nil {
			t.Fatalf("ToJSON failed: %v", err)
		}
		var decoded struct {
			Playlist struct {
				URL string `json:"url"`
			} `json:"playlist"`
			Tracks []string `json:"tracks"`
		}
		if err := json.Unmarshal(data, &decoded); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if decoded.Playlist.URL != "https://open.spotify.com/playlist/pl1" || len(decoded.Tracks) != 3 {
			t.Errorf("unexpected JSON %s", data)
		}
	})
}

func TestRender(t *testing.T) {
	tests := []struct {
		format string
		prefix string
	}{
		{"", "Playlist:"},
		{"text", "Playlist:"},
		{"CSV", "Position,"},
		{"md", "# ["},
		{"markdown", "# ["},
		{"json", "{"},
	}
	for _, tt := range tests {
		t.Run(tt.format, func(t *testing.T) {
			data, err := Render(tt.format, testReport(true))
			if err != nil {
				t.Fatalf("Render failed: %v", err)
			}
			if !strings.HasPrefix(string(data), tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, string(data)[:min(len(data), 20)])
			}
		})
	}

	t.Run("unknown format", func(t *testing.T) {
		if _, err := Render("xml", testReport(true)); !errors.Is(err, shared.ErrInvalidFlag) {
			t.Errorf("expected ErrInvalidFlag, got %v", err)
		}
	})
}

func TestParseFormat(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"", FormatText},
		{"TEXT", FormatText},
		{"csv", FormatCSV},
		{"md", FormatMarkdown},
		{" markdown ", FormatMarkdown},
		{"json", FormatJSON},
	}
	for _, tt := range tests {
		got, err := ParseFormat(tt.in)
		if err != nil {
			t.Fatalf("ParseFormat(%q) failed: %v", tt.in, err)
		}
		if got != tt.want {
			t.Errorf("ParseFormat(%q) = %q, want %q", tt.in, got, tt.want)
		}
	}

	if _, err := ParseFormat("yaml"); !errors.Is(err, shared.ErrInvalidFlag) {
		t.Errorf("expected ErrInvalidFlag, got %v", err)
	}
}

func TestWriteReport(t *testing.T) {
	path := filepath.Join(t.TempDir(), "releases.md")
	if err := WriteReport(path, "markdown", testReport(true)); err != nil {
		t.Fatalf("WriteReport failed: %v", err)
	}
	th.AssertFileExists(t, path)
	if content := th.MustReadFile(t, path); !strings.Contains(content, "## Releases") {
		t.Errorf("unexpected file content:\n%s", content)
	}

	if err := WriteReport(filepath.Join(t.TempDir(), "missing", "x.csv"), "csv", testReport(true)); err == nil {
		t.Error("expected error writing into a missing directory")
	}
}

func TestHistory(t *testing.T) {
	start := time.Date(2026, 10, 16, 12, 0, 0, 0, time.UTC)

	ok := models.NewRun(start)
	ok.SetSequence(2)
	ok.SetCounts(3, 2, 6)
	ok.Succeed(models.Playlist{ID: "pl1", URL: "https://open.spotify.com/playlist/pl1"}, start.Add(time.Second))

	failed := models.NewRun(start.Add(-time.Hour))
	failed.SetSequence(1)
	failed.Fail("session_expired", errors.New("session expired"), start)

	t.Run("HistoryToText", func(t *testing.T) {
		output := string(HistoryToText([]*models.Run{ok, failed}))
		if !strings.Contains(output, "STATUS") {
			t.Errorf("missing header, got:\n%s", output)
		}
		if !strings.Contains(output, "https://open.spotify.com/playlist/pl1") || !strings.Contains(output, "session_expired") {
			t.Errorf("missing outcomes, got:\n%s", output)
		}
	})

	t.Run("HistoryToText empty", func(t *testing.T) {
		if output := string(HistoryToText(nil)); output != "No runs recorded.\n" {
			t.Errorf("unexpected output %q", output)
		}
	})

	t.Run("HistoryToJSON", func(t *testing.T) {
		data, err := HistoryToJSON([]*models.Run{ok, failed})
		if err != nil {
			t.Fatalf("HistoryToJSON failed: %v", err)
		}
		var rows []map[string]any
		if err := json.Unmarshal(data, &rows); err != nil {
			t.Fatalf("invalid JSON: %v", err)
		}
		if len(rows) != 2 || rows[1]["error_kind"] != "session_expired" {
			t.Errorf("unexpected rows %v", rows)
		}
	})
}
