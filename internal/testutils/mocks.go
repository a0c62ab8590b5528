package testutils

import (
	"context"
	"time"

	"github.com/stretchr/testify/mock"

	"github.com/kpeis695/ithaca-weather-dashboard/internal/domain/entities"
)

type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, loc entities.Location) (*entities.Reading, error) {
	args := m.Called(ctx, loc)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Reading), args.Error(1)
}

func (m *MockFetcher) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

type MockStore struct {
	mock.Mock
}

func (m *MockStore) Persist(ctx context.Context, readings []entities.Reading) (entities.PersistResult, error) {
	args := m.Called(ctx, readings)
	return args.Get(0).(entities.PersistResult), args.Error(1)
}

func (m *MockStore) QueryRange(ctx context.Context, locationID string, from, to time.Time) ([]entities.Reading, error) {
	args := m.Called(ctx, locationID, from, to)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]entities.Reading), args.Error(1)
}

func (m *MockStore) LatestReading(ctx context.Context, locationID string) (*entities.Reading, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Reading), args.Error(1)
}

func (m *MockStore) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockStore) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockCache struct {
	mock.Mock
}

func (m *MockCache) SetLatest(ctx context.Context, reading entities.Reading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}

func (m *MockCache) GetLatest(ctx context.Context, locationID string) (*entities.Reading, error) {
	args := m.Called(ctx, locationID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*entities.Reading), args.Error(1)
}

func (m *MockCache) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockPublisher struct {
	mock.Mock
}

func (m *MockPublisher) PublishBatch(ctx context.Context, cycleID string, readings []entities.Reading) error {
	args := m.Called(ctx, cycleID, readings)
	return args.Error(0)
}

func (m *MockPublisher) HealthCheck(ctx context.Context) error {
	args := m.Called(ctx)
	return args.Error(0)
}

func (m *MockPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

type MockArchiver struct {
	mock.Mock
}

func (m *MockArchiver) Archive(ctx context.Context, reading entities.Reading) error {
	args := m.Called(ctx, reading)
	return args.Error(0)
}
