package store

import (
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daviddao/pairsum/pkg/clock"
	"github.com/daviddao/pairsum/pkg/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	dbPath := filepath.Join(t.TempDir(), "test.db")
	s, err := New(dbPath)
	if err != nil {
		t.Fatalf("New(%q): %v", dbPath, err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func sampleRun(session, label string, frame int) *model.Run {
	return &model.Run{
		Session:   session,
		Label:     label,
		Frame:     frame,
		Requested: model.KindOptimized,
		Used:      model.KindBasic,
		Tick:      clock.Stamp{Epoch: 1, Step: uint64(10 + frame)},
		Workers:   2,
		Sites:     16,
		Value:     []float64{1.5, -0.25, float64(frame)},
	}
}

// --- Session tests ---

func TestRegisterSession(t *testing.T) {
	s := newTestStore(t)
	sess, err := s.RegisterSession("s1")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Zero(t, sess.Runs)
	assert.False(t, sess.Started.IsZero())
}

func TestRegisterSession_Idempotent(t *testing.T) {
	s := newTestStore(t)
	a, err := s.RegisterSession("s1")
	require.NoError(t, err)
	b, err := s.RegisterSession("s1")
	require.NoError(t, err)
	assert.Equal(t, a.Started, b.Started)
	assert.False(t, b.LastSeen.Before(a.LastSeen))

	all, err := s.ListSessions()
	require.NoError(t, err)
	assert.Len(t, all, 1)
}

func TestGetSession_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetSession("nope")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessions_CountsRuns(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("a")
	require.NoError(t, err)
	time.Sleep(2 * time.Millisecond)
	_, err = s.RegisterSession("b")
	require.NoError(t, err)
	for i := 0; i < 3; i++ {
		_, err := s.RecordRun(sampleRun("a", "", i))
		require.NoError(t, err)
	}

	all, err := s.ListSessions()
	require.NoError(t, err)
	require.Len(t, all, 2)
	assert.Equal(t, "b", all[0].ID, "most recent first")
	assert.Equal(t, int64(0), all[0].Runs)
	assert.Equal(t, int64(3), all[1].Runs)
}

// --- Run tests ---

func TestRecordRun_RoundTrip(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("s1")
	require.NoError(t, err)

	in := sampleRun("s1", "nickel", 4)
	id, err := s.RecordRun(in)
	require.NoError(t, err)
	assert.Equal(t, id, in.ID)
	assert.False(t, in.CreatedAt.IsZero())

	got, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Equal(t, in.Session, got.Session)
	assert.Equal(t, in.Label, got.Label)
	assert.Equal(t, in.Frame, got.Frame)
	assert.Equal(t, model.KindOptimized, got.Requested)
	assert.Equal(t, model.KindBasic, got.Used)
	assert.Equal(t, in.Tick, got.Tick)
	assert.Equal(t, in.Workers, got.Workers)
	assert.Equal(t, in.Sites, got.Sites)
	assert.Equal(t, in.Value, got.Value)
	assert.True(t, in.CreatedAt.Equal(got.CreatedAt))
}

func TestRecordRun_UnknownSession(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RecordRun(sampleRun("ghost", "", 0))
	assert.ErrorIs(t, err, ErrNotFound)
	assert.Zero(t, s.CountRuns())
}

func TestRecordRun_EmptyValue(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("s1")
	require.NoError(t, err)
	r := sampleRun("s1", "", 0)
	r.Value = []float64{}
	id, err := s.RecordRun(r)
	require.NoError(t, err)
	got, err := s.GetRun(id)
	require.NoError(t, err)
	assert.Empty(t, got.Value)
}

func TestGetRun_NotFound(t *testing.T) {
	s := newTestStore(t)
	_, err := s.GetRun(42)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestListRuns_FilterAndLimit(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("s1")
	require.NoError(t, err)
	for i := 0; i < 6; i++ {
		label := "even"
		if i%2 == 1 {
			label = "odd"
		}
		_, err := s.RecordRun(sampleRun("s1", label, i))
		require.NoError(t, err)
	}

	all, err := s.ListRuns("", 0)
	require.NoError(t, err)
	require.Len(t, all, 6)
	for i := 1; i < len(all); i++ {
		assert.Less(t, all[i-1].ID, all[i].ID, "log order")
	}

	odd, err := s.ListRuns("odd", 0)
	require.NoError(t, err)
	require.Len(t, odd, 3)
	assert.Equal(t, []int{1, 3, 5}, []int{odd[0].Frame, odd[1].Frame, odd[2].Frame})

	limited, err := s.ListRuns("even", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	none, err := s.ListRuns("missing", 0)
	require.NoError(t, err)
	assert.Empty(t, none)
	assert.Equal(t, int64(6), s.CountRuns())
}

func TestLatestRun(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("s1")
	require.NoError(t, err)

	_, err = s.LatestRun("x")
	assert.ErrorIs(t, err, ErrNotFound)

	for i := 0; i < 3; i++ {
		_, err := s.RecordRun(sampleRun("s1", "x", i))
		require.NoError(t, err)
	}
	latest, err := s.LatestRun("x")
	require.NoError(t, err)
	assert.Equal(t, 2, latest.Frame)
}

func TestListSessionRuns_OrderedByFrame(t *testing.T) {
	s := newTestStore(t)
	_, err := s.RegisterSession("s1")
	require.NoError(t, err)
	_, err = s.RegisterSession("s2")
	require.NoError(t, err)
	for _, f := range []int{2, 0, 1} {
		_, err := s.RecordRun(sampleRun("s1", "", f))
		require.NoError(t, err)
	}
	_, err = s.RecordRun(sampleRun("s2", "", 7))
	require.NoError(t, err)

	runs, err := s.ListSessionRuns("s1")
	require.NoError(t, err)
	require.Len(t, runs, 3)
	for i, r := range runs {
		assert.Equal(t, i, r.Frame)
	}
}

func TestConcurrentRecordRun(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), "shared.db")
	s1, err := New(dbPath)
	require.NoError(t, err)
	defer s1.Close()
	s2, err := New(dbPath)
	require.NoError(t, err)
	defer s2.Close()

	_, err = s1.RegisterSession("shared")
	require.NoError(t, err)

	const perWriter = 20
	var wg sync.WaitGroup
	errs := make(chan error, 2*perWriter)
	for w, st := range []*Store{s1, s2} {
		wg.Add(1)
		go func(w int, st *Store) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				if _, err := st.RecordRun(sampleRun("shared", fmt.Sprintf("w%d", w), i)); err != nil {
					errs <- err
				}
			}
		}(w, st)
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		t.Errorf("RecordRun: %v", err)
	}
	assert.Equal(t, int64(2*perWriter), s1.CountRuns())
}
