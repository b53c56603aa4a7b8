package draft

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/zsleinadg/WebCarros/internal/models"
	"github.com/zsleinadg/WebCarros/internal/session"
	"github.com/zsleinadg/WebCarros/internal/storage"
)

// MockS3Storage is a mock for storage.IS3Storage.
type MockS3Storage struct {
	mock.Mock
}

func (m *MockS3Storage) Upload(ctx context.Context, key, contentType string, data []byte) error {
	args := m.Called(ctx, key, contentType, data)
	return args.Error(0)
}

func (m *MockS3Storage) Get(ctx context.Context, key string) ([]byte, error) {
	args := m.Called(ctx, key)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]byte), args.Error(1)
}

func (m *MockS3Storage) Remove(ctx context.Context, key string) error {
	args := m.Called(ctx, key)
	return args.Error(0)
}

func (m *MockS3Storage) List(ctx context.Context, prefix string) ([]storage.StoredObject, error) {
	args := m.Called(ctx, prefix)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]storage.StoredObject), args.Error(1)
}

func (m *MockS3Storage) PublicURL(key string) string {
	args := m.Called(key)
	return args.String(0)
}


// MockCarInserter is a mock for ICarInserter.
type MockCarInserter struct {
	mock.Mock
}

func (m *MockCarInserter) Create(ctx context.Context, car *models.Car) error {
	args := m.Called(ctx, car)
	return args.Error(0)
}

// MockImageEnqueuer is a mock for IImageEnqueuer.
type MockImageEnqueuer struct {
	mock.Mock
}

func (m *MockImageEnqueuer) EnqueueImageProcess(ctx context.Context, path string) error {
	args := m.Called(ctx, path)
	return args.Error(0)
}

// stubSession returns a fixed snapshot.
type stubSession struct {
	snap session.Snapshot
}

func (s *stubSession) Snapshot() session.Snapshot { return s.snap }

func (s *stubSession) Subscribe(func(session.Snapshot)) func() { return func() {} }

func (s *stubSession) Start(ctx context.Context) error { return nil }

func (s *stubSession) Close() {}

func signedInSession(id, name string) *stubSession {
	return &stubSession{snap: session.Snapshot{
		SignedIn: true,
		User:     &session.UserInfo{ID: id, Email: id + "@example.com", Name: name},
	}}
}
