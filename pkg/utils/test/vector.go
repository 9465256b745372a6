package testutils

import (
	"context"
	"errors"

	"github.com/papercomputeco/docqa/pkg/vector"
)

// MockVectorDriver is a test vector driver that returns canned results.
type MockVectorDriver struct {
	Entries []vector.Entry
	Results []vector.QueryResult

	// QueryErr is returned by Query when set.
	QueryErr error

	// Queries records the k of every Query call.
	Queries []int

	Persisted bool
	Closed    bool
}

func NewMockVectorDriver() *MockVectorDriver {
	return &MockVectorDriver{
		Entries: make([]vector.Entry, 0),
		Results: make([]vector.QueryResult, 0),
	}
}

func (m *MockVectorDriver) InsertAll(_ context.Context, entries []vector.Entry) error {
	if m.Persisted {
		return vector.ErrReadOnly
	}
	m.Entries = append(m.Entries, entries...)
	return nil
}

func (m *MockVectorDriver) Persist(_ context.Context) error {
	m.Persisted = true
	return nil
}

func (m *MockVectorDriver) Query(_ context.Context, _ []float32, k int) ([]vector.QueryResult, error) {
	m.Queries = append(m.Queries, k)
	if m.QueryErr != nil {
		return nil, m.QueryErr
	}
	return vector.Truncate(m.Results, k), nil
}

func (m *MockVectorDriver) Count(_ context.Context) (int, error) {
	if m.Closed {
		return 0, errors.New("driver closed")
	}
	return max(len(m.Entries), len(m.Results)), nil
}

func (m *MockVectorDriver) Close() error {
	m.Closed = true
	return nil
}
