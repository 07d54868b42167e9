package storage

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/chrissnell/pvforecast/internal/pipeline"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type pingStore struct {
	mu  sync.Mutex
	err error
}

func (s *pingStore) SaveRun(context.Context, *pipeline.Run) error { return nil }
func (s *pingStore) LatestRun(context.Context) (*pipeline.Run, error) { return nil, ErrNoRuns }
func (s *pingStore) Close() error { return nil }

func (s *pingStore) Ping(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.err
}

func (s *pingStore) fail(err error) {
	s.mu.Lock()
	s.err = err
	s.mu.Unlock()
}

func TestHealthMonitorCheck(t *testing.T) {
	store := &pingStore{}
	var outcomes []bool
	m := NewHealthMonitor(store, time.Second, func(ok bool) { outcomes = append(outcomes, ok) })

	_, ok := m.Health()
	assert.False(t, ok)
	assert.False(t, m.IsHealthy(time.Minute))

	h := m.Check(context.Background())
	assert.Equal(t, StatusHealthy, h.Status)
	assert.True(t, m.IsHealthy(time.Minute))

	store.fail(errors.New("database is locked"))
	h = m.Check(context.Background())
	assert.Equal(t, StatusUnhealthy, h.Status)
	assert.Equal(t, "database is locked", h.Error)
	assert.False(t, m.IsHealthy(time.Minute))

	assert.Equal(t, []bool{true, false}, outcomes)
}

func TestHealthMonitorStaleness(t *testing.T) {
	m := NewHealthMonitor(&pingStore{}, time.Second, nil)
	m.Check(context.Background())
	assert.False(t, m.IsHealthy(-time.Second), "a check older than maxAge does not count")
}

func TestHealthMonitorStartStops(t *testing.T) {
	checked := make(chan bool, 16)
	m := NewHealthMonitor(&pingStore{}, 10*time.Millisecond, func(ok bool) {
		select {
		case checked <- ok:
		default:
		}
	})

	ctx, cancel := context.WithCancel(context.Background())
	var wg sync.WaitGroup
	m.Start(ctx, &wg)

	select {
	case ok := <-checked:
		assert.True(t, ok)
	case <-time.After(5 * time.Second):
		t.Fatal("no health check ran")
	}

	cancel()
	wg.Wait()
	_, ok := m.Health()
	require.True(t, ok)
}
