package service

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/singleflight"

	"github.com/reelpack/reelpack/internal/catalog/domain"
	"github.com/reelpack/reelpack/internal/catalog/repository"
	"github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/interfaces"
	"github.com/reelpack/reelpack/pkg/utils"
)

const (
	defaultRetryAttempts = 3
	defaultRetryBase     = 2 * time.Second

	thumbnailPrefix = "thumbnails/"
)

// PlaylistPruner strips a deleted video from every playlist, recomputing
// aggregates. Wired to the playlist service after construction.
type PlaylistPruner interface {
	RemoveVideoFromAll(ctx context.Context, videoID uuid.UUID) (int, error)
}

// ThumbnailProvider produces a thumbnail image and a duration for an ingested
// video. Consumed as a capability; pixel generation lives elsewhere.
type ThumbnailProvider interface {
	Generate(ctx context.Context, filename string, data []byte) (thumbnail []byte, durationSeconds int, err error)
}

// NoopThumbnailer satisfies ThumbnailProvider without producing any pixels.
// Deployments without a frame extractor wire this one in.
type NoopThumbnailer struct{}

func (NoopThumbnailer) Generate(context.Context, string, []byte) ([]byte, int, error) {
	return nil, 0, nil
}

// Reconciler maintains the authoritative in-memory view of the video catalog
// by listing the object store and merging the local edit overlay on top.
type Reconciler struct {
	store       interfaces.ObjectStore
	overrides   repository.OverrideRepository
	orphans     repository.OrphanRepository
	eventBus    interfaces.EventBus
	logger      interfaces.Logger
	videoPrefix string

	pruner PlaylistPruner
	thumbs ThumbnailProvider

	mu       sync.RWMutex
	snapshot map[uuid.UUID]*domain.Video

	// Concurrent Refresh calls share a single in-flight list operation.
	group singleflight.Group

	// Uploads are processed one at a time to bound store connections.
	uploadSlot chan struct{}

	retryAttempts int
	retryBase     time.Duration
}

// NewReconciler creates a catalog reconciler.
func NewReconciler(
	store interfaces.ObjectStore,
	overrides repository.OverrideRepository,
	orphans repository.OrphanRepository,
	eventBus interfaces.EventBus,
	logger interfaces.Logger,
	videoPrefix string,
) *Reconciler {
	return &Reconciler{
		store:         store,
		overrides:     overrides,
		orphans:       orphans,
		eventBus:      eventBus,
		logger:        logger,
		videoPrefix:   videoPrefix,
		snapshot:      make(map[uuid.UUID]*domain.Video),
		uploadSlot:    make(chan struct{}, 1),
		retryAttempts: defaultRetryAttempts,
		retryBase:     defaultRetryBase,
	}
}

// SetPruner wires the playlist pruner. Must be called before Delete is used.
func (r *Reconciler) SetPruner(p PlaylistPruner) {
	r.pruner = p
}

// SetThumbnailer wires the thumbnail capability used during ingestion.
func (r *Reconciler) SetThumbnailer(t ThumbnailProvider) {
	r.thumbs = t
}

// SetRetryBase overrides the delete-retry backoff base.
func (r *Reconciler) SetRetryBase(d time.Duration) {
	r.retryBase = d
}

// Refresh lists the store and replaces the catalog snapshot. Re-entrant calls
// while a refresh is in flight wait for and return the in-flight result.
func (r *Reconciler) Refresh(ctx context.Context) ([]*domain.Video, error) {
	result, err, _ := r.group.Do(r.videoPrefix, func() (interface{}, error) {
		return r.refresh(ctx)
	})
	if err != nil {
		return nil, err
	}
	return result.([]*domain.Video), nil
}

func (r *Reconciler) refresh(ctx context.Context) ([]*domain.Video, error) {
	objects, err := r.store.List(ctx, r.videoPrefix, 0)
	if err != nil {
		// The caller must be able to tell "empty library" from "store down".
		return nil, errors.Transport("listing video prefix failed", err)
	}

	overrides, err := r.overrides.List(ctx)
	if err != nil {
		return nil, err
	}
	overrideByID := make(map[uuid.UUID]*domain.Override, len(overrides))
	for _, o := range overrides {
		overrideByID[o.VideoID] = o
	}

	orphans, err := r.orphans.List(ctx)
	if err != nil {
		return nil, err
	}
	orphanedKeys := make(map[string]struct{}, len(orphans))
	for _, o := range orphans {
		orphanedKeys[o.Key] = struct{}{}
	}

	snapshot := make(map[uuid.UUID]*domain.Video, len(objects))
	for _, obj := range objects {
		if obj.Key == r.videoPrefix {
			continue // prefix marker object
		}
		if _, gone := orphanedKeys[obj.Key]; gone {
			// Force-removed locally; keep out of the live catalog until the
			// remote object is reconciled.
			continue
		}
		video := domain.VideoFromObject(obj.Key, r.store.Bucket(), obj.Size, obj.LastModified, obj.ETag)
		video.Storage.ThumbnailKey = thumbnailPrefix + utils.FileStem(video.Filename) + ".jpg"
		video.Storage.ThumbnailURL = r.store.PublicURL(video.Storage.ThumbnailKey)
		overrideByID[video.ID].Apply(video)
		snapshot[video.ID] = video
	}

	r.mu.Lock()
	r.snapshot = snapshot
	r.mu.Unlock()

	videos := snapshotSlice(snapshot)

	r.eventBus.PublishAsync(ctx, domain.NewCatalogRefreshedEvent(len(videos)))
	r.logger.Debug("catalog refreshed", interfaces.Int("videos", len(videos)))

	return videos, nil
}

// Get returns a video from the current snapshot.
func (r *Reconciler) Get(id uuid.UUID) (*domain.Video, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	v, ok := r.snapshot[id]
	return v, ok
}

// ByFilename returns the video with the given filename, if any.
func (r *Reconciler) ByFilename(filename string) (*domain.Video, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, v := range r.snapshot {
		if v.Filename == filename {
			return v, true
		}
	}
	return nil, false
}

// List returns the current snapshot sorted by filename.
func (r *Reconciler) List() []*domain.Video {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return snapshotSlice(r.snapshot)
}

// ApplyOverride merges partial user edits into the override map, persists
// them, and re-applies them to the live snapshot.
func (r *Reconciler) ApplyOverride(ctx context.Context, id uuid.UUID, patch domain.Override) (*domain.Video, error) {
	override, err := r.overrides.Get(ctx, id)
	if err != nil && !errors.IsNotFound(err) {
		return nil, err
	}
	if override == nil {
		override = &domain.Override{VideoID: id}
	}
	override.Merge(patch)

	if err := r.overrides.Save(ctx, override); err != nil {
		return nil, err
	}

	r.mu.Lock()
	video, ok := r.snapshot[id]
	if ok {
		override.Apply(video)
	}
	r.mu.Unlock()

	if !ok {
		// Override persisted; it will be merged on the next refresh.
		return nil, errors.NotFound(fmt.Sprintf("video %s not in catalog", id))
	}

	r.eventBus.PublishAsync(ctx, domain.NewVideoUpdatedEvent(video))
	return video, nil
}

// Delete removes a video. The remote delete is attempted first; local state
// is only mutated once the remote object is gone, unless force is set, in
// which case the asset is tracked as an orphan.
func (r *Reconciler) Delete(ctx context.Context, id uuid.UUID, force bool) (*domain.DeleteResult, error) {
	r.mu.RLock()
	video, ok := r.snapshot[id]
	r.mu.RUnlock()
	if !ok {
		return nil, errors.NotFound(fmt.Sprintf("video %s not in catalog", id))
	}

	result := &domain.DeleteResult{VideoID: id}

	if video.Storage.Key != "" {
		if err := r.store.Delete(ctx, video.Storage.Key); err != nil {
			result.RemoteErr = err
			if !force {
				// The video must remain visible and playable.
				return result, errors.Transport(
					fmt.Sprintf("remote delete of %s failed", video.Storage.Key), err)
			}
			orphan := &domain.Orphan{
				VideoID:  id,
				Key:      video.Storage.Key,
				Bucket:   video.Storage.Bucket,
				Reason:   err.Error(),
				ForcedAt: time.Now().UTC(),
			}
			if err := r.orphans.Save(ctx, orphan); err != nil {
				return result, err
			}
			result.Orphaned = true
			r.logger.Warn("remote delete failed, asset orphaned",
				interfaces.String("key", video.Storage.Key),
				interfaces.Error(result.RemoteErr))
		} else {
			result.RemoteDeleted = true
			// Thumbnail cleanup is best effort.
			if video.Storage.ThumbnailKey != "" {
				if err := r.store.Delete(ctx, video.Storage.ThumbnailKey); err != nil {
					r.logger.Warn("thumbnail delete failed",
						interfaces.String("key", video.Storage.ThumbnailKey),
						interfaces.Error(err))
				}
			}
		}
	}

	if err := r.removeLocal(ctx, id, result); err != nil {
		return result, err
	}

	r.eventBus.PublishAsync(ctx, domain.NewVideoDeletedEvent(id, video.Storage.Key, result.Orphaned))
	return result, nil
}

func (r *Reconciler) removeLocal(ctx context.Context, id uuid.UUID, result *domain.DeleteResult) error {
	r.mu.Lock()
	delete(r.snapshot, id)
	r.mu.Unlock()
	result.LocalRemoved = true

	if err := r.overrides.Delete(ctx, id); err != nil && !errors.IsNotFound(err) {
		return err
	}

	if r.pruner != nil {
		touched, err := r.pruner.RemoveVideoFromAll(ctx, id)
		if err != nil {
			return err
		}
		result.PlaylistsTouched = touched
	}
	return nil
}

// RetryDelete re-attempts the remote deletion of an orphaned asset with
// exponential backoff. The orphan marker is cleared only on success.
func (r *Reconciler) RetryDelete(ctx context.Context, id uuid.UUID) (attempts int, err error) {
	orphan, err := r.orphans.Get(ctx, id)
	if err != nil {
		return 0, err
	}

	backoff := r.retryBase
	var lastErr error
	for attempt := 1; attempt <= r.retryAttempts; attempt++ {
		attempts = attempt
		if lastErr = r.store.Delete(ctx, orphan.Key); lastErr == nil {
			if err := r.orphans.Delete(ctx, id); err != nil {
				return attempts, err
			}
			r.logger.Info("orphan reconciled",
				interfaces.String("key", orphan.Key),
				interfaces.Int("attempts", attempts))
			return attempts, nil
		}

		orphan.Attempts++
		if attempt == r.retryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return attempts, ctx.Err()
		case <-time.After(backoff):
		}
		backoff *= 2
	}

	// Marker stays in place on failure.
	if saveErr := r.orphans.Save(ctx, orphan); saveErr != nil {
		r.logger.Error("failed to record orphan attempts", interfaces.Error(saveErr))
	}
	return attempts, errors.Transport(
		fmt.Sprintf("remote delete of %s failed after %d attempts", orphan.Key, attempts), lastErr)
}

// Orphans lists the assets awaiting manual reconciliation.
func (r *Reconciler) Orphans(ctx context.Context) ([]*domain.Orphan, error) {
	return r.orphans.List(ctx)
}

// Upload ingests a video under the catalog prefix and refreshes. Uploads are
// serialized through a single slot to bound concurrent store connections.
func (r *Reconciler) Upload(ctx context.Context, filename string, data []byte, contentType string) (*domain.Video, error) {
	select {
	case r.uploadSlot <- struct{}{}:
		defer func() { <-r.uploadSlot }()
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	key := r.videoPrefix + filename
	if err := r.store.Put(ctx, key, data, contentType, map[string]string{
		"original-filename": filename,
	}); err != nil {
		return nil, errors.Transport(fmt.Sprintf("upload of %s failed", key), err)
	}

	if r.thumbs != nil {
		thumb, duration, err := r.thumbs.Generate(ctx, filename, data)
		if err != nil {
			r.logger.Warn("thumbnail generation failed",
				interfaces.String("filename", filename), interfaces.Error(err))
		} else {
			if len(thumb) > 0 {
				thumbKey := thumbnailPrefix + utils.FileStem(filename) + ".jpg"
				if err := r.store.Put(ctx, thumbKey, thumb, "image/jpeg", nil); err != nil {
					r.logger.Warn("thumbnail upload failed",
						interfaces.String("key", thumbKey), interfaces.Error(err))
				}
			}
			if duration > 0 {
				id := domain.VideoIDForKey(key)
				if _, err := r.ApplyOverride(ctx, id, domain.Override{DurationSeconds: &duration}); err != nil && !errors.IsNotFound(err) {
					r.logger.Warn("duration override failed", interfaces.Error(err))
				}
			}
		}
	}

	if _, err := r.Refresh(ctx); err != nil {
		return nil, err
	}

	id := domain.VideoIDForKey(key)
	video, ok := r.Get(id)
	if !ok {
		// Listings are eventually consistent; the object will surface on a
		// later refresh.
		return nil, errors.NotFound(fmt.Sprintf("uploaded video %s not yet listed", filename))
	}
	return video, nil
}

func snapshotSlice(snapshot map[uuid.UUID]*domain.Video) []*domain.Video {
	videos := make([]*domain.Video, 0, len(snapshot))
	for _, v := range snapshot {
		videos = append(videos, v)
	}
	sort.Slice(videos, func(i, j int) bool {
		return videos[i].Filename < videos[j].Filename
	})
	return videos
}
