package transport

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"gridos/internal/logging"
	"gridos/internal/queue"
	"gridos/internal/router"
)

// messagesSchema is the store-and-forward mailbox. Rows are claimed with a
// read-then-delete, so delivery is at-most-once: if a reader crashes between
// the two, the batch is lost. That matches the best-effort contract.
const messagesSchema = `
CREATE TABLE IF NOT EXISTS messages (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	msg_id     TEXT NOT NULL UNIQUE,
	tag        TEXT NOT NULL,
	origin     TEXT NOT NULL,
	to_scope   INTEGER NOT NULL,
	to_id      INTEGER NOT NULL,
	from_scope INTEGER NOT NULL,
	from_id    INTEGER NOT NULL,
	endpoint   TEXT NOT NULL,
	payload    TEXT NOT NULL DEFAULT '',
	flags      INTEGER NOT NULL DEFAULT 0,
	created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_messages_tag ON messages(tag, id);
`

const defaultBatch = 16

// Store is a SQLite-backed store-and-forward transport. Multiple processes
// sharing one database file exchange packets through the messages table;
// each store claims (reads and deletes) batches addressed to its tag,
// skipping rows it wrote itself.
type Store struct {
	db      *sql.DB
	node    string
	tag     string
	batch   int
	pending *queue.Ring[router.Packet]
}

// Open opens (creating if needed) the shared message database.
func Open(path string) (*Store, error) {
	dsn := fmt.Sprintf("file:%s?_pragma=journal_mode(WAL)&_pragma=synchronous(NORMAL)&_pragma=busy_timeout(5000)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open message store: %w", err)
	}
	// WAL allows concurrent readers but a single writer per connection.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(messagesSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("init message schema: %w", err)
	}

	s := &Store{
		db:      db,
		node:    uuid.NewString(),
		batch:   defaultBatch,
		pending: queue.NewRing[router.Packet](defaultBatch),
	}
	logging.Get(logging.CategoryTransport).Infow("message store opened", "path", path, "node", s.node)
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error { return s.db.Close() }

// Node returns this store's origin identifier.
func (s *Store) Node() string { return s.node }

// Configure sets the tag this store sends and receives under.
func (s *Store) Configure(tag string) error {
	s.tag = tag
	return nil
}

// Send writes one packet to the shared mailbox.
func (s *Store) Send(pkt router.Packet) error {
	_, err := s.db.Exec(`
		INSERT INTO messages (msg_id, tag, origin, to_scope, to_id, from_scope, from_id, endpoint, payload, flags, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		uuid.NewString(), s.tag, s.node,
		int(pkt.To.Scope), int64(pkt.To.ID),
		int(pkt.From.Scope), int64(pkt.From.ID),
		pkt.Endpoint, pkt.Payload, pkt.Flags,
		time.Now().UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("forward message: %w", err)
	}
	return nil
}

// Receive returns one pending inbound packet. When the local buffer is
// empty, one bounded batch is claimed from the database; the router's pump
// budget therefore pays one query per batch, not per message.
func (s *Store) Receive() (router.Packet, bool) {
	if pkt, ok := s.pending.Pop(); ok {
		return pkt, true
	}
	if err := s.claim(); err != nil {
		logging.Get(logging.CategoryTransport).Warnw("claim batch failed", "error", err)
		return router.Packet{}, false
	}
	return s.pending.Pop()
}

// PendingByTag counts undelivered rows per tag across the whole mailbox.
// Diagnostic surface for the CLI; not part of the Transport contract.
func (s *Store) PendingByTag() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT tag, COUNT(*) FROM messages GROUP BY tag ORDER BY tag`)
	if err != nil {
		return nil, fmt.Errorf("count pending messages: %w", err)
	}
	defer rows.Close()

	counts := map[string]int{}
	for rows.Next() {
		var tag string
		var n int
		if err := rows.Scan(&tag, &n); err != nil {
			return nil, err
		}
		counts[tag] = n
	}
	return counts, rows.Err()
}

// claim moves up to one batch of rows for our tag from the database into the
// pending ring, deleting them as it goes.
func (s *Store) claim() error {
	tx, err := s.db.Begin()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	rows, err := tx.Query(`
		SELECT id, to_scope, to_id, from_scope, from_id, endpoint, payload, flags
		FROM messages
		WHERE tag = ? AND origin <> ?
		ORDER BY id
		LIMIT ?`, s.tag, s.node, s.batch)
	if err != nil {
		return err
	}

	var claimed []int64
	for rows.Next() {
		var (
			id                 int64
			toScope, fromScope int
			toID, fromID       int64
			pkt                router.Packet
		)
		if err := rows.Scan(&id, &toScope, &toID, &fromScope, &fromID, &pkt.Endpoint, &pkt.Payload, &pkt.Flags); err != nil {
			rows.Close()
			return err
		}
		pkt.To = router.Address{Scope: router.Scope(toScope), ID: uint64(toID)}
		pkt.From = router.Address{Scope: router.Scope(fromScope), ID: uint64(fromID)}
		s.pending.Push(pkt)
		claimed = append(claimed, id)
	}
	if err := rows.Close(); err != nil {
		return err
	}
	if len(claimed) == 0 {
		return nil
	}

	for _, id := range claimed {
		if _, err := tx.Exec(`DELETE FROM messages WHERE id = ?`, id); err != nil {
			return err
		}
	}
	return tx.Commit()
}
