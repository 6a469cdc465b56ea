package store

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/daviddao/pairsum/pkg/model"
)

// TestStoreImplementsInterface verifies at runtime that *Store satisfies
// StoreInterface by calling every method on a real store.
func TestStoreImplementsInterface(t *testing.T) {
	var iface StoreInterface = newTestStore(t)

	sess, err := iface.RegisterSession("sess")
	require.NoError(t, err)
	require.Equal(t, "sess", sess.ID)

	_, err = iface.GetSession("sess")
	require.NoError(t, err)

	sessions, err := iface.ListSessions()
	require.NoError(t, err)
	require.Len(t, sessions, 1)

	id, err := iface.RecordRun(&model.Run{
		Session: "sess", Label: "demo", Requested: model.KindCheck, Used: model.KindCheck,
		Workers: 1, Sites: 4, Value: []float64{3},
	})
	require.NoError(t, err)

	r, err := iface.GetRun(id)
	require.NoError(t, err)
	require.Equal(t, model.KindCheck, r.Used)

	runs, err := iface.ListRuns("demo", 10)
	require.NoError(t, err)
	require.Len(t, runs, 1)

	runs, err = iface.ListSessionRuns("sess")
	require.NoError(t, err)
	require.Len(t, runs, 1)

	latest, err := iface.LatestRun("demo")
	require.NoError(t, err)
	require.Equal(t, id, latest.ID)

	require.Equal(t, int64(1), iface.CountRuns())
}
