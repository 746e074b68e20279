package service

import (
	"context"
	"sync"
	"testing"
	"time"

	"github-trend-scout/internal/adapter/cache"
	"github-trend-scout/internal/domain"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// Mock implementations for testing
type MockParser struct {
	mock.Mock
}

func (m *MockParser) Parse(ctx context.Context, rawText string) (domain.SearchSpec, error) {
	args := m.Called(ctx, rawText)
	return args.Get(0).(domain.SearchSpec), args.Error(1)
}

type MockExecutor struct {
	mock.Mock
}

func (m *MockExecutor) Execute(ctx context.Context, spec domain.SearchSpec) ([]domain.RepositoryRecord, error) {
	args := m.Called(ctx, spec)
	repos, _ := args.Get(0).([]domain.RepositoryRecord)
	return repos, args.Error(1)
}

type MockNotifier struct {
	mock.Mock
}

func (m *MockNotifier) Deliver(ctx context.Context, text string) error {
	args := m.Called(ctx, text)
	return args.Error(0)
}

type MockHistory struct {
	mock.Mock
}

func (m *MockHistory) Save(ctx context.Context, record *domain.DigestRecord) error {
	args := m.Called(ctx, record)
	return args.Error(0)
}

func (m *MockHistory) Recent(ctx context.Context, limit int) ([]*domain.DigestRecord, error) {
	args := m.Called(ctx, limit)
	records, _ := args.Get(0).([]*domain.DigestRecord)
	return records, args.Error(1)
}

// fakeClock 可手动推进的时钟
type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2025, 10, 6, 8, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

func newTestStore(t *testing.T, clock *fakeClock) *cache.Store {
	t.Helper()
	store, err := cache.NewStore(100, cache.WithClock(clock.Now))
	require.NoError(t, err)
	return store
}

// rustRepos 按 stars 降序排好的 5 个仓库
func rustRepos() []domain.RepositoryRecord {
	return []domain.RepositoryRecord{
		{FullName: "tokio-rs/axum", Description: "Ergonomic web framework", URL: "https://github.com/tokio-rs/axum", Language: "Rust", Stars: 5200},
		{FullName: "astral-sh/uv", Description: "Python package manager", URL: "https://github.com/astral-sh/uv", Language: "Rust", Stars: 4100},
		{FullName: "zed-industries/zed", Description: "Code editor", URL: "https://github.com/zed-industries/zed", Language: "Rust", Stars: 3000},
		{FullName: "helix-editor/helix", URL: "https://github.com/helix-editor/helix", Language: "Rust", Stars: 1200},
		{FullName: "someone/tool", Description: "A tool", URL: "https://github.com/someone/tool", Stars: 800},
	}
}
