// Package store keeps a journal of bus events in SQLite.
package store

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/golang/glog"
	_ "github.com/mattn/go-sqlite3" // SQLite driver

	"github.com/robotalks/dali.go/pkg/device/msgs"
	fx "github.com/robotalks/dali.go/pkg/framework"
)

const (
	dirPermissions    = 0750
	busyTimeoutMillis = 5000
	connectionTimeout = 5 * time.Second
)

const schema = `
CREATE TABLE IF NOT EXISTS events (
	id      INTEGER PRIMARY KEY AUTOINCREMENT,
	time    INTEGER NOT NULL,
	kind    TEXT NOT NULL,
	slave   TEXT NOT NULL DEFAULT '',
	payload BLOB NOT NULL
);
CREATE INDEX IF NOT EXISTS events_time ON events(time);
CREATE INDEX IF NOT EXISTS events_slave ON events(slave, time);
`

// Entry is one journaled event.
type Entry struct {
	ID    int64
	Time  time.Time
	Kind  string
	Slave string
	Msg   fx.Message
}

// Filter selects entries in Query. Zero values match everything.
type Filter struct {
	Slave string
	Kind  string
	Since time.Time
	// Limit keeps the latest Limit entries.
	Limit int
}

// Journal records events into a SQLite database. It implements
// device.Registrar so it can be attached next to other registrars.
type Journal struct {
	Now func() time.Time

	db   *sql.DB
	path string
}

// Open opens or creates the journal at path.
func Open(path string) (*Journal, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, dirPermissions); err != nil {
			return nil, fmt.Errorf("creating journal directory: %w", err)
		}
	}
	connStr := fmt.Sprintf("file:%s?_busy_timeout=%d&_journal_mode=WAL&_synchronous=NORMAL", path, busyTimeoutMillis)
	db, err := sql.Open("sqlite3", connStr)
	if err != nil {
		return nil, fmt.Errorf("opening journal: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)

	ctx, cancel := context.WithTimeout(context.Background(), connectionTimeout)
	defer cancel()
	if _, err := db.ExecContext(ctx, schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating journal schema: %w", err)
	}
	glog.V(1).Infof("journal opened: %s", path)
	return &Journal{Now: time.Now, db: db, path: path}, nil
}

// Path returns the database file path.
func (j *Journal) Path() string {
	return j.path
}

// Close closes the database.
func (j *Journal) Close() error {
	if err := j.db.Close(); err != nil {
		return fmt.Errorf("closing journal: %w", err)
	}
	return nil
}

// Record appends a message to the journal.
func (j *Journal) Record(ctx context.Context, msg fx.Message) error {
	pkt, err := msgs.Encode(msg)
	if err != nil {
		return err
	}
	_, err = j.db.ExecContext(ctx,
		"INSERT INTO events (time, kind, slave, payload) VALUES (?, ?, ?, ?)",
		j.Now().UnixNano(), msgs.TypeName(msg), slaveOf(msg), pkt)
	if err != nil {
		return fmt.Errorf("recording %s: %w", msgs.TypeName(msg), err)
	}
	return nil
}

// SendEvent implements device.Registrar.
func (j *Journal) SendEvent(ctx context.Context, msg fx.Message) error {
	return j.Record(ctx, msg)
}

// Query lists entries in time order.
func (j *Journal) Query(ctx context.Context, f Filter) ([]Entry, error) {
	var conds []string
	var args []interface{}
	if f.Slave != "" {
		conds = append(conds, "slave = ?")
		args = append(args, f.Slave)
	}
	if f.Kind != "" {
		conds = append(conds, "kind = ?")
		args = append(args, f.Kind)
	}
	if !f.Since.IsZero() {
		conds = append(conds, "time >= ?")
		args = append(args, f.Since.UnixNano())
	}
	query := "SELECT id, time, kind, slave, payload FROM events"
	if len(conds) > 0 {
		query += " WHERE " + strings.Join(conds, " AND ")
	}
	query += " ORDER BY id DESC"
	if f.Limit > 0 {
		query += fmt.Sprintf(" LIMIT %d", f.Limit)
	}

	rows, err := j.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying journal: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var e Entry
		var ts int64
		var payload []byte
		if err := rows.Scan(&e.ID, &ts, &e.Kind, &e.Slave, &payload); err != nil {
			return nil, fmt.Errorf("scanning journal: %w", err)
		}
		e.Time = time.Unix(0, ts)
		if e.Msg, _, err = msgs.Decode(payload); err != nil {
			glog.Warningf("journal entry %d: %v", e.ID, err)
			continue
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("reading journal: %w", err)
	}
	for i, n := 0, len(entries); i < n/2; i++ {
		entries[i], entries[n-1-i] = entries[n-1-i], entries[i]
	}
	return entries, nil
}

// Prune removes entries older than before and returns how many were removed.
func (j *Journal) Prune(ctx context.Context, before time.Time) (int64, error) {
	res, err := j.db.ExecContext(ctx, "DELETE FROM events WHERE time < ?", before.UnixNano())
	if err != nil {
		return 0, fmt.Errorf("pruning journal: %w", err)
	}
	return res.RowsAffected()
}

func slaveOf(msg fx.Message) string {
	switch m := msg.(type) {
	case *msgs.Frame:
		return m.Slave
	case *msgs.Answered:
		return m.Slave
	case *msgs.Fault:
		return m.Slave
	case *msgs.Stats:
		return m.Slave
	}
	return ""
}
