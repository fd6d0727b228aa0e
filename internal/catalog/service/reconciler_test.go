package service_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/suite"

	"github.com/reelpack/reelpack/internal/catalog/domain"
	"github.com/reelpack/reelpack/internal/catalog/service"
	"github.com/reelpack/reelpack/internal/infrastructure/storage"
	apperrors "github.com/reelpack/reelpack/pkg/errors"
	"github.com/reelpack/reelpack/pkg/events"
	"github.com/reelpack/reelpack/pkg/interfaces"
	"github.com/reelpack/reelpack/pkg/logger"
)

// MockOverrideRepository is a mock for the override repository.
type MockOverrideRepository struct {
	mock.Mock
}

func (m *MockOverrideRepository) Save(ctx context.Context, override *domain.Override) error {
	args := m.Called(ctx, override)
	return args.Error(0)
}

func (m *MockOverrideRepository) Get(ctx context.Context, videoID uuid.UUID) (*domain.Override, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Override), args.Error(1)
}

func (m *MockOverrideRepository) List(ctx context.Context) ([]*domain.Override, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Override), args.Error(1)
}

func (m *MockOverrideRepository) Delete(ctx context.Context, videoID uuid.UUID) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

// MockOrphanRepository is a mock for the orphan repository.
type MockOrphanRepository struct {
	mock.Mock
}

func (m *MockOrphanRepository) Save(ctx context.Context, orphan *domain.Orphan) error {
	args := m.Called(ctx, orphan)
	return args.Error(0)
}

func (m *MockOrphanRepository) Get(ctx context.Context, videoID uuid.UUID) (*domain.Orphan, error) {
	args := m.Called(ctx, videoID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*domain.Orphan), args.Error(1)
}

func (m *MockOrphanRepository) List(ctx context.Context) ([]*domain.Orphan, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*domain.Orphan), args.Error(1)
}

func (m *MockOrphanRepository) Delete(ctx context.Context, videoID uuid.UUID) error {
	args := m.Called(ctx, videoID)
	return args.Error(0)
}

// MockPruner is a mock for the playlist pruner.
type MockPruner struct {
	mock.Mock
}

func (m *MockPruner) RemoveVideoFromAll(ctx context.Context, videoID uuid.UUID) (int, error) {
	args := m.Called(ctx, videoID)
	return args.Int(0), args.Error(1)
}

type ReconcilerTestSuite struct {
	suite.Suite
	ctx           context.Context
	store         *storage.MemoryStore
	mockOverrides *MockOverrideRepository
	mockOrphans   *MockOrphanRepository
	mockPruner    *MockPruner
	eventBus      *events.LocalEventBus
	reconciler    *service.Reconciler
}

func (suite *ReconcilerTestSuite) SetupTest() {
	suite.ctx = context.Background()
	suite.store = storage.NewMemoryStore("test-bucket")
	suite.mockOverrides = new(MockOverrideRepository)
	suite.mockOrphans = new(MockOrphanRepository)
	suite.mockPruner = new(MockPruner)
	suite.eventBus = events.NewLocalEventBus(logger.NewNoopLogger())

	suite.reconciler = service.NewReconciler(
		suite.store,
		suite.mockOverrides,
		suite.mockOrphans,
		suite.eventBus,
		logger.NewNoopLogger(),
		"videos/",
	)
	suite.reconciler.SetPruner(suite.mockPruner)
}

func (suite *ReconcilerTestSuite) TearDownTest() {
	suite.eventBus.Drain()
	suite.mockOverrides.AssertExpectations(suite.T())
	suite.mockOrphans.AssertExpectations(suite.T())
	suite.mockPruner.AssertExpectations(suite.T())
}

func (suite *ReconcilerTestSuite) putVideo(filename string) uuid.UUID {
	key := "videos/" + filename
	err := suite.store.Put(suite.ctx, key, []byte("video-bytes-"+filename), "video/mp4", nil)
	suite.Require().NoError(err)
	return domain.VideoIDForKey(key)
}

func (suite *ReconcilerTestSuite) expectEmptyOverlay() {
	suite.mockOverrides.On("List", suite.ctx).Return([]*domain.Override{}, nil)
	suite.mockOrphans.On("List", suite.ctx).Return([]*domain.Orphan{}, nil)
}

func (suite *ReconcilerTestSuite) TestRefresh_BuildsSnapshotFromStore() {
	// Arrange
	idA := suite.putVideo("a.mp4")
	idB := suite.putVideo("b.mp4")
	// Prefix marker objects must not surface as videos.
	suite.Require().NoError(suite.store.Put(suite.ctx, "videos/", nil, "", nil))
	suite.expectEmptyOverlay()

	// Act
	videos, err := suite.reconciler.Refresh(suite.ctx)

	// Assert
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), videos, 2)
	assert.Equal(suite.T(), "a.mp4", videos[0].Filename)
	assert.Equal(suite.T(), "b.mp4", videos[1].Filename)

	a, ok := suite.reconciler.Get(idA)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "a", a.Title)
	assert.Equal(suite.T(), "thumbnails/a.jpg", a.Storage.ThumbnailKey)

	_, ok = suite.reconciler.Get(idB)
	assert.True(suite.T(), ok)
}

func (suite *ReconcilerTestSuite) TestRefresh_AppliesOverrides() {
	// Arrange
	id := suite.putVideo("clip.mp4")
	title := "My Clip"
	duration := 90
	suite.mockOverrides.On("List", suite.ctx).Return([]*domain.Override{
		{VideoID: id, Title: &title, DurationSeconds: &duration},
	}, nil)
	suite.mockOrphans.On("List", suite.ctx).Return([]*domain.Orphan{}, nil)

	// Act
	videos, err := suite.reconciler.Refresh(suite.ctx)

	// Assert
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), videos, 1)
	assert.Equal(suite.T(), "My Clip", videos[0].Title)
	assert.Equal(suite.T(), 90, videos[0].DurationSeconds)
	assert.Equal(suite.T(), "clip.mp4", videos[0].Filename)
}

func (suite *ReconcilerTestSuite) TestRefresh_SkipsOrphanedKeys() {
	// Arrange
	idKept := suite.putVideo("kept.mp4")
	idGone := suite.putVideo("gone.mp4")
	suite.mockOverrides.On("List", suite.ctx).Return([]*domain.Override{}, nil)
	suite.mockOrphans.On("List", suite.ctx).Return([]*domain.Orphan{
		{VideoID: idGone, Key: "videos/gone.mp4"},
	}, nil)

	// Act
	videos, err := suite.reconciler.Refresh(suite.ctx)

	// Assert
	assert.NoError(suite.T(), err)
	assert.Len(suite.T(), videos, 1)
	assert.Equal(suite.T(), idKept, videos[0].ID)
	_, ok := suite.reconciler.Get(idGone)
	assert.False(suite.T(), ok)
}

func (suite *ReconcilerTestSuite) TestRefresh_StoreDownKeepsPreviousSnapshot() {
	// Arrange
	id := suite.putVideo("a.mp4")
	suite.expectEmptyOverlay()
	_, err := suite.reconciler.Refresh(suite.ctx)
	suite.Require().NoError(err)

	suite.store.FailList = errors.New("connection refused")

	// Act
	_, err = suite.reconciler.Refresh(suite.ctx)

	// Assert: the failure is distinguishable from an empty listing and the
	// last good snapshot stays live.
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsTransport(err))
	_, ok := suite.reconciler.Get(id)
	assert.True(suite.T(), ok)
}

func (suite *ReconcilerTestSuite) TestRefresh_ConcurrentCallsCoalesce() {
	// Arrange
	suite.putVideo("a.mp4")
	suite.mockOverrides.On("List", mock.Anything).Return([]*domain.Override{}, nil)
	suite.mockOrphans.On("List", mock.Anything).Return([]*domain.Orphan{}, nil)

	blocking := &blockingStore{MemoryStore: suite.store, gate: make(chan struct{}), entered: make(chan struct{})}
	reconciler := service.NewReconciler(
		blocking,
		suite.mockOverrides,
		suite.mockOrphans,
		suite.eventBus,
		logger.NewNoopLogger(),
		"videos/",
	)

	var wg sync.WaitGroup
	results := make([]int, 5)
	errs := make([]error, 5)

	wg.Add(1)
	go func() {
		defer wg.Done()
		videos, err := reconciler.Refresh(context.Background())
		results[0], errs[0] = len(videos), err
	}()
	<-blocking.entered

	// These join the in-flight refresh instead of listing again.
	for i := 1; i < 5; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			videos, err := reconciler.Refresh(context.Background())
			results[i], errs[i] = len(videos), err
		}(i)
	}
	time.Sleep(50 * time.Millisecond)
	close(blocking.gate)
	wg.Wait()

	// Assert
	for i := 0; i < 5; i++ {
		assert.NoError(suite.T(), errs[i])
		assert.Equal(suite.T(), 1, results[i])
	}
	assert.Equal(suite.T(), 1, suite.store.ListCalls)
}

func (suite *ReconcilerTestSuite) TestApplyOverride_PersistsAndUpdatesSnapshot() {
	// Arrange
	id := suite.putVideo("clip.mp4")
	suite.expectEmptyOverlay()
	_, err := suite.reconciler.Refresh(suite.ctx)
	suite.Require().NoError(err)

	title := "Renamed"
	suite.mockOverrides.On("Get", suite.ctx, id).Return(nil, apperrors.NotFound("no override"))
	suite.mockOverrides.On("Save", suite.ctx, mock.AnythingOfType("*domain.Override")).Return(nil)

	// Act
	video, err := suite.reconciler.ApplyOverride(suite.ctx, id, domain.Override{Title: &title})

	// Assert
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "Renamed", video.Title)

	got, ok := suite.reconciler.Get(id)
	assert.True(suite.T(), ok)
	assert.Equal(suite.T(), "Renamed", got.Title)
}

func (suite *ReconcilerTestSuite) TestApplyOverride_UnknownVideoStillPersists() {
	// Arrange
	id := uuid.New()
	title := "Ghost"
	suite.mockOverrides.On("Get", suite.ctx, id).Return(nil, apperrors.NotFound("no override"))
	suite.mockOverrides.On("Save", suite.ctx, mock.AnythingOfType("*domain.Override")).Return(nil)

	// Act
	_, err := suite.reconciler.ApplyOverride(suite.ctx, id, domain.Override{Title: &title})

	// Assert: persisted for the next refresh, but reported as not found.
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsNotFound(err))
	suite.mockOverrides.AssertCalled(suite.T(), "Save", suite.ctx, mock.AnythingOfType("*domain.Override"))
}

func (suite *ReconcilerTestSuite) TestDelete_RemovesRemoteThenLocal() {
	// Arrange
	id := suite.putVideo("clip.mp4")
	suite.expectEmptyOverlay()
	_, err := suite.reconciler.Refresh(suite.ctx)
	suite.Require().NoError(err)

	suite.mockOverrides.On("Delete", suite.ctx, id).Return(nil)
	suite.mockPruner.On("RemoveVideoFromAll", suite.ctx, id).Return(2, nil)

	// Act
	result, err := suite.reconciler.Delete(suite.ctx, id, false)

	// Assert
	assert.NoError(suite.T(), err)
	assert.True(suite.T(), result.RemoteDeleted)
	assert.True(suite.T(), result.LocalRemoved)
	assert.False(suite.T(), result.Orphaned)
	assert.Equal(suite.T(), 2, result.PlaylistsTouched)

	_, ok := suite.reconciler.Get(id)
	assert.False(suite.T(), ok)
	exists, _ := suite.store.Exists(suite.ctx, "videos/clip.mp4")
	assert.False(suite.T(), exists)
}

func (suite *ReconcilerTestSuite) TestDelete_RemoteFailureKeepsVideo() {
	// Arrange
	id := suite.putVideo("clip.mp4")
	suite.expectEmptyOverlay()
	_, err := suite.reconciler.Refresh(suite.ctx)
	suite.Require().NoError(err)

	suite.store.FailDelete["videos/clip.mp4"] = errors.New("503 slow down")

	// Act
	result, err := suite.reconciler.Delete(suite.ctx, id, false)

	// Assert: the video stays visible and playable, nothing was orphaned.
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsTransport(err))
	assert.False(suite.T(), result.RemoteDeleted)
	assert.False(suite.T(), result.LocalRemoved)
	assert.False(suite.T(), result.Orphaned)

	_, ok := suite.reconciler.Get(id)
	assert.True(suite.T(), ok)
}

func (suite *ReconcilerTestSuite) TestDelete_ForceOrphansOnRemoteFailure() {
	// Arrange
	id := suite.putVideo("clip.mp4")
	suite.expectEmptyOverlay()
	_, err := suite.reconciler.Refresh(suite.ctx)
	suite.Require().NoError(err)

	suite.store.FailDelete["videos/clip.mp4"] = errors.New("503 slow down")
	suite.mockOrphans.On("Save", suite.ctx, mock.AnythingOfType("*domain.Orphan")).Return(nil)
	suite.mockOverrides.On("Delete", suite.ctx, id).Return(nil)
	suite.mockPruner.On("RemoveVideoFromAll", suite.ctx, id).Return(0, nil)

	// Act
	result, err := suite.reconciler.Delete(suite.ctx, id, true)

	// Assert
	assert.NoError(suite.T(), err)
	assert.False(suite.T(), result.RemoteDeleted)
	assert.True(suite.T(), result.Orphaned)
	assert.True(suite.T(), result.LocalRemoved)

	_, ok := suite.reconciler.Get(id)
	assert.False(suite.T(), ok)

	var saved *domain.Orphan
	for _, call := range suite.mockOrphans.Calls {
		if call.Method == "Save" {
			saved = call.Arguments.Get(1).(*domain.Orphan)
		}
	}
	suite.Require().NotNil(saved)
	assert.Equal(suite.T(), "videos/clip.mp4", saved.Key)
	assert.Equal(suite.T(), id, saved.VideoID)
}

func (suite *ReconcilerTestSuite) TestDelete_UnknownVideo() {
	// Act
	_, err := suite.reconciler.Delete(suite.ctx, uuid.New(), false)

	// Assert
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsNotFound(err))
}

func (suite *ReconcilerTestSuite) TestRetryDelete_ClearsOrphanOnSuccess() {
	// Arrange
	id := uuid.New()
	orphan := &domain.Orphan{VideoID: id, Key: "videos/gone.mp4", Attempts: 1}
	suite.mockOrphans.On("Get", suite.ctx, id).Return(orphan, nil)
	suite.mockOrphans.On("Delete", suite.ctx, id).Return(nil)

	flaky := &flakyDeleteStore{MemoryStore: suite.store, failuresLeft: 1}
	reconciler := service.NewReconciler(
		flaky,
		suite.mockOverrides,
		suite.mockOrphans,
		suite.eventBus,
		logger.NewNoopLogger(),
		"videos/",
	)
	reconciler.SetRetryBase(time.Millisecond)

	// Act
	attempts, err := reconciler.RetryDelete(suite.ctx, id)

	// Assert
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), 2, attempts)
}

func (suite *ReconcilerTestSuite) TestRetryDelete_KeepsOrphanAfterExhaustion() {
	// Arrange
	id := uuid.New()
	orphan := &domain.Orphan{VideoID: id, Key: "videos/gone.mp4"}
	suite.mockOrphans.On("Get", suite.ctx, id).Return(orphan, nil)
	suite.mockOrphans.On("Save", suite.ctx, orphan).Return(nil)

	suite.store.FailDelete["videos/gone.mp4"] = errors.New("503 slow down")
	suite.reconciler.SetRetryBase(time.Millisecond)

	// Act
	attempts, err := suite.reconciler.RetryDelete(suite.ctx, id)

	// Assert: the marker survives with its attempt count bumped.
	assert.Error(suite.T(), err)
	assert.True(suite.T(), apperrors.IsTransport(err))
	assert.Equal(suite.T(), 3, attempts)
	assert.Equal(suite.T(), 3, orphan.Attempts)
}

func (suite *ReconcilerTestSuite) TestUpload_IngestsAndRefreshes() {
	// Arrange
	suite.mockOverrides.On("List", suite.ctx).Return([]*domain.Override{}, nil)
	suite.mockOrphans.On("List", suite.ctx).Return([]*domain.Orphan{}, nil)

	// Act
	video, err := suite.reconciler.Upload(suite.ctx, "fresh.mp4", []byte("bytes"), "video/mp4")

	// Assert
	assert.NoError(suite.T(), err)
	assert.Equal(suite.T(), "fresh.mp4", video.Filename)
	assert.Equal(suite.T(), domain.VideoIDForKey("videos/fresh.mp4"), video.ID)

	exists, _ := suite.store.Exists(suite.ctx, "videos/fresh.mp4")
	assert.True(suite.T(), exists)
}

func TestReconcilerTestSuite(t *testing.T) {
	suite.Run(t, new(ReconcilerTestSuite))
}

// blockingStore holds List open until gate closes so concurrent refreshes can
// pile onto a single in-flight call.
type blockingStore struct {
	*storage.MemoryStore
	gate    chan struct{}
	entered chan struct{}
	once    sync.Once
}

func (b *blockingStore) List(ctx context.Context, prefix string, maxKeys int) ([]interfaces.ObjectInfo, error) {
	b.once.Do(func() { close(b.entered) })
	<-b.gate
	return b.MemoryStore.List(ctx, prefix, maxKeys)
}

// flakyDeleteStore fails the first N deletes, then succeeds.
type flakyDeleteStore struct {
	*storage.MemoryStore
	failuresLeft int
}

func (f *flakyDeleteStore) Delete(ctx context.Context, key string) error {
	if f.failuresLeft > 0 {
		f.failuresLeft--
		return fmt.Errorf("transient delete failure for %s", key)
	}
	return f.MemoryStore.Delete(ctx, key)
}
