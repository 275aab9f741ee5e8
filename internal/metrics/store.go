package metrics

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite" // register sqlite driver
)

// Store persists telemetry to a local SQLite database.
type Store struct {
	db *sql.DB
}

// Open opens (and migrates) the metrics database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("ping sqlite db: %w", err)
	}
	if _, err := db.ExecContext(ctx, `PRAGMA journal_mode = WAL;`); err != nil {
		_ = db.Close()

		return nil, fmt.Errorf("set wal mode: %w", err)
	}
	if err := migrate(ctx, db); err != nil {
		_ = db.Close()

		return nil, err
	}

	return &Store{db: db}, nil
}

func migrate(ctx context.Context, db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS roundtrips (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			seq_num INTEGER NOT NULL,
			tx_at INTEGER NOT NULL,
			ack_at INTEGER NOT NULL,
			rtt_ms INTEGER NOT NULL,
			rssi INTEGER NOT NULL,
			snr REAL NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_roundtrips_session ON roundtrips(session_id);`,
		`CREATE TABLE IF NOT EXISTS transfers (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			session_id INTEGER NOT NULL,
			bytes INTEGER NOT NULL,
			fragments INTEGER NOT NULL,
			outcome TEXT NOT NULL,
			started_at INTEGER NOT NULL,
			finished_at INTEGER NOT NULL
		);`,
		`CREATE INDEX IF NOT EXISTS idx_transfers_session ON transfers(session_id);`,
	}
	for _, stmt := range stmts {
		if _, err := db.ExecContext(ctx, stmt); err != nil {
			return fmt.Errorf("migrate metrics db: %w", err)
		}
	}
	return nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) RecordRoundTrip(ctx context.Context, rt RoundTrip) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO roundtrips(session_id, seq_num, tx_at, ack_at, rtt_ms, rssi, snr)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`, int64(rt.SessionID), int64(rt.SeqNum), toUnixMillis(rt.TxAt), toUnixMillis(rt.AckAt), rt.RTT().Milliseconds(), rt.RSSI, rt.SNR)
	if err != nil {
		return fmt.Errorf("insert roundtrip: %w", err)
	}
	return nil
}

func (s *Store) RecordTransfer(ctx context.Context, tr Transfer) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO transfers(session_id, bytes, fragments, outcome, started_at, finished_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, int64(tr.SessionID), int64(tr.Bytes), int64(tr.Fragments), tr.Outcome, toUnixMillis(tr.StartedAt), toUnixMillis(tr.FinishedAt))
	if err != nil {
		return fmt.Errorf("insert transfer: %w", err)
	}
	return nil
}

// RoundTripsForSession returns the recorded exchanges of one session in
// transmit order.
func (s *Store) RoundTripsForSession(ctx context.Context, sessionID uint16) ([]RoundTrip, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, seq_num, tx_at, ack_at, rssi, snr
		FROM roundtrips
		WHERE session_id = ?
		ORDER BY seq_num ASC
	`, int64(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list roundtrips: %w", err)
	}
	defer rows.Close()

	var out []RoundTrip
	for rows.Next() {
		var (
			rt           RoundTrip
			session, seq int64
			txMs, ackMs  int64
		)
		if err := rows.Scan(&session, &seq, &txMs, &ackMs, &rt.RSSI, &rt.SNR); err != nil {
			return nil, fmt.Errorf("scan roundtrip: %w", err)
		}
		rt.SessionID = uint16(session)
		rt.SeqNum = uint16(seq)
		rt.TxAt = fromUnixMillis(txMs)
		rt.AckAt = fromUnixMillis(ackMs)
		out = append(out, rt)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate roundtrips: %w", err)
	}
	return out, nil
}

// TransfersForSession returns every recorded outcome of one session.
func (s *Store) TransfersForSession(ctx context.Context, sessionID uint16) ([]Transfer, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT session_id, bytes, fragments, outcome, started_at, finished_at
		FROM transfers
		WHERE session_id = ?
		ORDER BY id ASC
	`, int64(sessionID))
	if err != nil {
		return nil, fmt.Errorf("list transfers: %w", err)
	}
	defer rows.Close()

	var out []Transfer
	for rows.Next() {
		var (
			tr               Transfer
			session          int64
			bytes, frags     int64
			startMs, finisMs int64
		)
		if err := rows.Scan(&session, &bytes, &frags, &tr.Outcome, &startMs, &finisMs); err != nil {
			return nil, fmt.Errorf("scan transfer: %w", err)
		}
		tr.SessionID = uint16(session)
		tr.Bytes = uint32(bytes)
		tr.Fragments = uint16(frags)
		tr.StartedAt = fromUnixMillis(startMs)
		tr.FinishedAt = fromUnixMillis(finisMs)
		out = append(out, tr)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate transfers: %w", err)
	}
	return out, nil
}

func toUnixMillis(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixMilli()
}

func fromUnixMillis(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}

var _ Sink = (*Store)(nil)
