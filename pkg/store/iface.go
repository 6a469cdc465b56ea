// iface.go defines the StoreInterface for dependency injection and testing.
//
// The concrete *Store type satisfies this interface. Code that depends on
// the store (e.g., the cmd layer) can accept StoreInterface instead of
// *Store, enabling mock injection in tests.
package store

import "github.com/daviddao/pairsum/pkg/model"

// StoreInterface defines the full set of store operations.
// The concrete *Store type implements this interface.
type StoreInterface interface {
	// Close closes the database connection.
	Close() error

	// --- Sessions ---

	// RegisterSession creates or touches a session. Idempotent.
	RegisterSession(id string) (*model.Session, error)

	// GetSession retrieves a session with its run count.
	GetSession(id string) (*model.Session, error)

	// ListSessions returns all sessions, most recent first.
	ListSessions() ([]model.Session, error)

	// --- Runs ---

	// RecordRun appends a run to the log. Returns the row ID.
	RecordRun(r *model.Run) (int64, error)

	// GetRun retrieves a run by ID.
	GetRun(id int64) (*model.Run, error)

	// ListRuns returns runs with the given label ("" for all) in log order.
	ListRuns(label string, limit int) ([]model.Run, error)

	// ListSessionRuns returns the runs of one session ordered by frame.
	ListSessionRuns(session string) ([]model.Run, error)

	// LatestRun returns the most recent run with the given label.
	LatestRun(label string) (*model.Run, error)

	// CountRuns returns the total number of runs in the log.
	CountRuns() int64
}

// Compile-time check that *Store implements StoreInterface.
var _ StoreInterface = (*Store)(nil)
