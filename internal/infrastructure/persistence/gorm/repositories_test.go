package gorm

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	catalogdomain "github.com/reelpack/reelpack/internal/catalog/domain"
	playlistdomain "github.com/reelpack/reelpack/internal/playlist/domain"
	"github.com/reelpack/reelpack/pkg/errors"
)

func TestOverrideRepository_SaveGetRoundTrip(t *testing.T) {
	db := NewTestDB(t)
	repo := NewOverrideRepository(db)
	ctx := context.Background()

	title := "Renamed"
	duration := 120
	override := &catalogdomain.Override{
		VideoID:         uuid.New(),
		Title:           &title,
		Tags:            []string{"promo", "spring"},
		DurationSeconds: &duration,
		UpdatedAt:       time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(ctx, override))

	got, err := repo.Get(ctx, override.VideoID)
	require.NoError(t, err)
	assert.Equal(t, override.VideoID, got.VideoID)
	assert.Equal(t, "Renamed", *got.Title)
	assert.Equal(t, []string{"promo", "spring"}, got.Tags)
	assert.Equal(t, 120, *got.DurationSeconds)
	assert.Nil(t, got.Resolution)
}

func TestOverrideRepository_SaveIsUpsert(t *testing.T) {
	db := NewTestDB(t)
	repo := NewOverrideRepository(db)
	ctx := context.Background()

	id := uuid.New()
	first := "First"
	second := "Second"
	require.NoError(t, repo.Save(ctx, &catalogdomain.Override{VideoID: id, Title: &first}))
	require.NoError(t, repo.Save(ctx, &catalogdomain.Override{VideoID: id, Title: &second}))

	got, err := repo.Get(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "Second", *got.Title)

	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestOverrideRepository_GetMissing(t *testing.T) {
	db := NewTestDB(t)
	repo := NewOverrideRepository(db)

	_, err := repo.Get(context.Background(), uuid.New())

	assert.Error(t, err)
	assert.True(t, errors.IsNotFound(err))
}

func TestOverrideRepository_Delete(t *testing.T) {
	db := NewTestDB(t)
	repo := NewOverrideRepository(db)
	ctx := context.Background()

	id := uuid.New()
	title := "Gone"
	require.NoError(t, repo.Save(ctx, &catalogdomain.Override{VideoID: id, Title: &title}))
	require.NoError(t, repo.Delete(ctx, id))

	_, err := repo.Get(ctx, id)
	assert.True(t, errors.IsNotFound(err))
}

func TestOrphanRepository_RoundTrip(t *testing.T) {
	db := NewTestDB(t)
	repo := NewOrphanRepository(db)
	ctx := context.Background()

	orphan := &catalogdomain.Orphan{
		VideoID:  uuid.New(),
		Key:      "videos/gone.mp4",
		Bucket:   "test-bucket",
		Reason:   "503 slow down",
		Attempts: 2,
		ForcedAt: time.Now().UTC().Truncate(time.Second),
	}

	require.NoError(t, repo.Save(ctx, orphan))

	got, err := repo.Get(ctx, orphan.VideoID)
	require.NoError(t, err)
	assert.Equal(t, orphan.Key, got.Key)
	assert.Equal(t, 2, got.Attempts)

	require.NoError(t, repo.Delete(ctx, orphan.VideoID))
	all, err := repo.List(ctx)
	require.NoError(t, err)
	assert.Empty(t, all)
}

func TestPlaylistRepository_RoundTrip(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	playlist := &playlistdomain.Playlist{
		ID:           uuid.New(),
		Name:         "Morning",
		Description:  "Start of day",
		VideoOrder:   []uuid.UUID{uuid.New(), uuid.New()},
		DateCreated:  time.Now().UTC().Truncate(time.Second),
		LastModified: time.Now().UTC().Truncate(time.Second),
		Meta: playlistdomain.Metadata{
			TotalDurationSeconds: 90,
			VideoCount:           2,
			TotalSizeBytes:       1500,
		},
	}

	require.NoError(t, repo.Save(ctx, playlist))

	got, err := repo.Get(ctx, playlist.ID)
	require.NoError(t, err)
	assert.Equal(t, playlist.Name, got.Name)
	assert.Equal(t, playlist.VideoOrder, got.VideoOrder)
	assert.Equal(t, playlist.Meta, got.Meta)
}

func TestPlaylistRepository_ListOrderedByCreation(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPlaylistRepository(db)
	ctx := context.Background()

	base := time.Now().UTC().Truncate(time.Second)
	for i, name := range []string{"first", "second", "third"} {
		require.NoError(t, repo.Save(ctx, &playlistdomain.Playlist{
			ID:          uuid.New(),
			Name:        name,
			DateCreated: base.Add(time.Duration(i) * time.Minute),
		}))
	}

	all, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "first", all[0].Name)
	assert.Equal(t, "third", all[2].Name)
}

func TestPlaylistRepository_DeleteMissingIsNoop(t *testing.T) {
	db := NewTestDB(t)
	repo := NewPlaylistRepository(db)

	assert.NoError(t, repo.Delete(context.Background(), uuid.New()))
}
