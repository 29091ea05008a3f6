package repositories

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/desertthunder/nrx/internal/models"
	"github.com/desertthunder/nrx/internal/shared"
)

// setupTestDB creates an in-memory SQLite database with migrations applied
func setupTestDB(t *testing.T) *sql.DB {
	t.Helper()

	db, err := shared.NewDatabase(":memory:")
	if err != nil {
		t.Fatalf("failed to create test database: %v", err)
	}
	shared.ConfigureDatabase(db, 1, 1)

	if err := shared.RunMigrations(context.Background(), db); err != nil {
		db.Close()
		t.Fatalf("failed to run migrations: %v", err)
	}

	t.Cleanup(func() { db.Close() })
	return db
}

func testAlbums() []models.Album {
	return []models.Album{
		{ID: "al1", Name: "First", Artist: "One", ReleaseDate: time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)},
		{ID: "al2", Name: "Second", Artist: "Two", ReleaseDate: time.Date(2026, 10, 9, 0, 0, 0, 0, time.UTC)},
	}
}

func TestNextSequence(t *testing.T) {
	ctx := context.Background()
	db := setupTestDB(t)

	for want := 1; want <= 3; want++ {
		got, err := NextSequence(ctx, db, "runs")
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if got != want {
			t.Errorf("expected sequence %d, got %d", want, got)
		}
	}

	if _, err := NextSequence(ctx, db, "missing"); err == nil {
		t.Error("expected error for table without sequence")
	}
}

func TestRunRepository(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2026, 10, 16, 9, 30, 0, 0, time.UTC)

	t.Run("Create", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)

		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if run.ID() == "" {
			t.Error("run ID should be set after creation")
		}
		if run.Sequence() != 1 {
			t.Errorf("expected sequence 1, got %d", run.Sequence())
		}
	})

	t.Run("Create rejects invalid run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)
		run.SetStatus("bogus")

		if err := repo.Create(ctx, run); err == nil {
			t.Fatal("expected validation error")
		}
	})

	t.Run("Get", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.ID() != run.ID() || got.Status() != models.RunPending {
			t.Errorf("unexpected run %s/%s", got.ID(), got.Status())
		}
		if !got.StartedAt().Equal(start) {
			t.Errorf("expected start %v, got %v", start, got.StartedAt())
		}
		if got.FinishedAt() != nil {
			t.Errorf("expected no finish time, got %v", got.FinishedAt())
		}
	})

	t.Run("Get missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Get(ctx, "nope"); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("Update records outcome", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		run.SetCounts(3, 2, 6)
		run.Succeed(models.Playlist{ID: "pl1", Name: "New Monthly Releases - 10-16-2026", URL: "https://open.spotify.com/playlist/pl1"}, start.Add(5*time.Second))
		if err := repo.Update(ctx, run); err != nil {
			t.Fatalf("failed to update run: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		if got.Status() != models.RunSucceeded || got.Playlist().URL != "https://open.spotify.com/playlist/pl1" {
			t.Errorf("unexpected outcome %s %+v", got.Status(), got.Playlist())
		}
		if got.ArtistCount() != 3 || got.AlbumCount() != 2 || got.TrackCount() != 6 {
			t.Errorf("unexpected counts %d/%d/%d", got.ArtistCount(), got.AlbumCount(), got.TrackCount())
		}
		if got.Duration() != 5*time.Second {
			t.Errorf("expected 5s duration, got %v", got.Duration())
		}
	})

	t.Run("Update missing", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)
		run.SetID("ghost")
		if err := repo.Update(ctx, run); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})

	t.Run("SaveAlbums and Albums", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		run := models.NewRun(start)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}

		if err := repo.SaveAlbums(ctx, run.ID(), testAlbums()); err != nil {
			t.Fatalf("failed to save albums: %v", err)
		}
		// saving again replaces
		if err := repo.SaveAlbums(ctx, run.ID(), testAlbums()); err != nil {
			t.Fatalf("failed to save albums twice: %v", err)
		}

		got, err := repo.Get(ctx, run.ID())
		if err != nil {
			t.Fatalf("failed to get run: %v", err)
		}
		albums := got.Albums()
		if len(albums) != 2 {
			t.Fatalf("expected 2 albums, got %d", len(albums))
		}
		if albums[0].ID != "al1" || albums[1].Released() != "2026-10-09" {
			t.Errorf("unexpected albums %+v", albums)
		}
	})

	t.Run("SaveAlbums requires run", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if err := repo.SaveAlbums(ctx, "ghost", testAlbums()); err == nil {
			t.Error("expected foreign key error")
		}
	})

	t.Run("Delete cascades", func(t *testing.T) {
		db := setupTestDB(t)
		repo := NewRunRepository(db)
		run := models.NewRun(start)
		if err := repo.Create(ctx, run); err != nil {
			t.Fatalf("failed to create run: %v", err)
		}
		if err := repo.SaveAlbums(ctx, run.ID(), testAlbums()); err != nil {
			t.Fatalf("failed to save albums: %v", err)
		}

		if err := repo.Delete(ctx, run.ID()); err != nil {
			t.Fatalf("failed to delete run: %v", err)
		}

		var n int
		if err := db.QueryRow("SELECT COUNT(*) FROM run_albums").Scan(&n); err != nil {
			t.Fatalf("count failed: %v", err)
		}
		if n != 0 {
			t.Errorf("expected albums to cascade, %d remain", n)
		}
		if err := repo.Delete(ctx, run.ID()); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound on second delete, got %v", err)
		}
	})

	t.Run("List and Latest", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))

		for i := range 3 {
			run := models.NewRun(start.Add(time.Duration(i) * time.Minute))
			if err := repo.Create(ctx, run); err != nil {
				t.Fatalf("failed to create run: %v", err)
			}
			if i == 1 {
				run.Fail("session_expired", errors.New("session expired"), start.Add(time.Hour))
				if err := repo.Update(ctx, run); err != nil {
					t.Fatalf("failed to update run: %v", err)
				}
			}
		}

		all, err := repo.List(ctx, nil)
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(all) != 3 || all[0].Sequence() != 3 {
			t.Fatalf("expected 3 runs newest first, got %d", len(all))
		}

		limited, err := repo.List(ctx, map[string]any{"limit": 2})
		if err != nil || len(limited) != 2 {
			t.Errorf("expected 2 runs, got %d (%v)", len(limited), err)
		}

		failed, err := repo.List(ctx, map[string]any{"status": models.RunFailed})
		if err != nil {
			t.Fatalf("failed to list runs: %v", err)
		}
		if len(failed) != 1 || failed[0].ErrorKind() != "session_expired" {
			t.Errorf("unexpected failed runs %+v", failed)
		}

		latest, err := repo.Latest(ctx)
		if err != nil {
			t.Fatalf("failed to get latest: %v", err)
		}
		if latest.Sequence() != 3 {
			t.Errorf("expected latest sequence 3, got %d", latest.Sequence())
		}
	})

	t.Run("Latest empty", func(t *testing.T) {
		repo := NewRunRepository(setupTestDB(t))
		if _, err := repo.Latest(ctx); !errors.Is(err, shared.ErrRunNotFound) {
			t.Errorf("expected ErrRunNotFound, got %v", err)
		}
	})
}
