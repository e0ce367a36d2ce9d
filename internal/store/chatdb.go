// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/tomtom215/courier/internal/config"
	"github.com/tomtom215/courier/internal/logging"
	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// MessageStore is the read-only view of the chat database used by the
// verifier and the synchronizer.
type MessageStore interface {
	FindRecentOutbound(ctx context.Context, handle, text string, within time.Duration) (*models.DeliveryRecord, error)
	GetStatus(ctx context.Context, recordID string) (*models.DeliveryRecord, error)
	GetRecord(ctx context.Context, sequenceID int64) (*models.DeliveryRecord, error)
	QueryNewRecords(ctx context.Context, afterSequenceID int64, limit int) ([]models.DeliveryRecord, error)
	MaxSequenceID(ctx context.Context) (int64, error)
}

var _ MessageStore = (*ChatDB)(nil)

// ChatDB reads the Messages chat database. The database belongs to another
// process, so it is opened read-only and every failure is reported as a
// StoreUnavailableError rather than treated as fatal.
type ChatDB struct {
	conn     *sql.DB
	path     string
	breakers *resilience.BreakerRegistry
	now      func() time.Time
}

const recordColumns = `
	m.ROWID,
	COALESCE(m.guid, ''),
	COALESCE(m.text, ''),
	COALESCE(h.id, ''),
	COALESCE(m.is_from_me, 0),
	COALESCE(m.date, 0),
	COALESCE(m.date_delivered, 0),
	COALESCE(m.is_sent, 0),
	COALESCE(m.is_delivered, 0),
	COALESCE(m.error, 0),
	COALESCE(m.cache_has_attachments, 0),
	COALESCE(m.service, ''),
	m.attributedBody`

const recordFrom = `
	FROM message m
	LEFT JOIN handle h ON h.ROWID = m.handle_id`

// Open opens the chat database read-only. Store queries run under the
// store-query breaker when breakers is non-nil.
func Open(cfg *config.StoreConfig, breakers *resilience.BreakerRegistry) (*ChatDB, error) {
	path, err := ExpandHome(cfg.ChatDBPath)
	if err != nil {
		return nil, err
	}

	busy := cfg.BusyTimeout
	if busy <= 0 {
		busy = 5 * time.Second
	}

	dsn := fmt.Sprintf("file:%s?mode=ro&_busy_timeout=%d", path, busy.Milliseconds())
	conn, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open chat database: %w", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := conn.PingContext(ctx); err != nil {
		closeQuietly(conn)
		return nil, fmt.Errorf("failed to connect to chat database %s: %w", path, err)
	}

	// Readers only; a small pool is enough
	conn.SetMaxOpenConns(4)
	conn.SetMaxIdleConns(2)
	conn.SetConnMaxIdleTime(5 * time.Minute)

	var probe int
	if err := conn.QueryRowContext(ctx, "SELECT COUNT(*) FROM sqlite_master WHERE type = 'table' AND name = 'message'").Scan(&probe); err != nil || probe == 0 {
		closeQuietly(conn)
		if err == nil {
			err = errors.New("message table not found")
		}
		return nil, fmt.Errorf("%s is not a chat database: %w", path, err)
	}

	logging.Info().Str("path", path).Msg("Chat database opened read-only")

	return &ChatDB{
		conn:     conn,
		path:     path,
		breakers: breakers,
		now:      time.Now,
	}, nil
}

// Path returns the resolved database path.
func (s *ChatDB) Path() string {
	return s.path
}

// Close closes the connection pool.
func (s *ChatDB) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

// FindRecentOutbound returns the newest outbound record to handle within the
// last window whose text matches. An empty text matches any record, and
// records whose text column is still empty match too (the store fills it in
// asynchronously). Email handles compare case-insensitively. Returns nil,
// nil when nothing matches.
func (s *ChatDB) FindRecentOutbound(ctx context.Context, handle, text string, within time.Duration) (*models.DeliveryRecord, error) {
	since := toAppleTime(s.now().Add(-within))

	query := `SELECT` + recordColumns + recordFrom + `
		WHERE m.is_from_me = 1
		  AND h.id = ? COLLATE NOCASE
		  AND m.date >= ?
		  AND (? = '' OR m.text = ? OR m.text IS NULL OR m.text = '')
		ORDER BY m.date DESC, m.ROWID DESC
		LIMIT 1`

	var record *models.DeliveryRecord
	err := s.run(ctx, "find_recent_outbound", func(ctx context.Context) error {
		r, err := s.queryOne(ctx, query, handle, since, text, text)
		record = r
		return err
	})
	return record, err
}

// GetStatus re-reads one record by its GUID. Returns nil, nil when absent.
func (s *ChatDB) GetStatus(ctx context.Context, recordID string) (*models.DeliveryRecord, error) {
	query := `SELECT` + recordColumns + recordFrom + ` WHERE m.guid = ?`

	var record *models.DeliveryRecord
	err := s.run(ctx, "get_status", func(ctx context.Context) error {
		r, err := s.queryOne(ctx, query, recordID)
		record = r
		return err
	})
	return record, err
}

// GetRecord re-reads one record by its row id. Returns nil, nil when absent.
func (s *ChatDB) GetRecord(ctx context.Context, sequenceID int64) (*models.DeliveryRecord, error) {
	query := `SELECT` + recordColumns + recordFrom + ` WHERE m.ROWID = ?`

	var record *models.DeliveryRecord
	err := s.run(ctx, "get_record", func(ctx context.Context) error {
		r, err := s.queryOne(ctx, query, sequenceID)
		record = r
		return err
	})
	return record, err
}

// QueryNewRecords returns up to limit records after afterSequenceID in
// ascending row id order. Tapbacks and other associated messages are excluded.
func (s *ChatDB) QueryNewRecords(ctx context.Context, afterSequenceID int64, limit int) ([]models.DeliveryRecord, error) {
	if limit <= 0 {
		limit = 200
	}

	query := `SELECT` + recordColumns + recordFrom + `
		WHERE m.ROWID > ?
		  AND COALESCE(m.associated_message_type, 0) = 0
		ORDER BY m.ROWID ASC
		LIMIT ?`

	var records []models.DeliveryRecord
	err := s.run(ctx, "query_new_records", func(ctx context.Context) error {
		rows, err := s.conn.QueryContext(ctx, query, afterSequenceID, limit)
		if err != nil {
			return err
		}
		defer closeQuietly(rows)

		batch := make([]models.DeliveryRecord, 0, limit)
		for rows.Next() {
			record, err := scanRecord(rows)
			if err != nil {
				return err
			}
			batch = append(batch, record)
		}
		if err := rows.Err(); err != nil {
			return err
		}
		// Attachments are loaded after the cursor is drained; one open
		// cursor per connection keeps the pool small.
		for i := range batch {
			if !batch[i].HasAttachment {
				continue
			}
			if batch[i].Attachments, err = s.loadAttachments(ctx, batch[i].SequenceID); err != nil {
				return err
			}
		}
		records = batch
		return nil
	})
	return records, err
}

// MaxSequenceID returns the highest row id in the message table, or 0 when empty.
func (s *ChatDB) MaxSequenceID(ctx context.Context) (int64, error) {
	var maxID int64
	err := s.run(ctx, "max_sequence_id", func(ctx context.Context) error {
		return s.conn.QueryRowContext(ctx, "SELECT COALESCE(MAX(ROWID), 0) FROM message").Scan(&maxID)
	})
	return maxID, err
}

// run executes fn under the store breaker, records metrics and maps every
// failure to StoreUnavailableError.
func (s *ChatDB) run(ctx context.Context, op string, fn func(ctx context.Context) error) error {
	start := time.Now()

	var err error
	if s.breakers != nil {
		err = s.breakers.Do(resilience.OpStoreQuery, func() error { return fn(ctx) })
	} else {
		err = fn(ctx)
	}

	metrics.RecordStoreQuery(op, time.Since(start), err)
	if err != nil {
		return &resilience.StoreUnavailableError{Op: op, Err: err}
	}
	return nil
}

func (s *ChatDB) queryOne(ctx context.Context, query string, args ...interface{}) (*models.DeliveryRecord, error) {
	record, err := scanRecord(s.conn.QueryRowContext(ctx, query, args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if record.HasAttachment {
		if record.Attachments, err = s.loadAttachments(ctx, record.SequenceID); err != nil {
			return nil, err
		}
	}
	return &record, nil
}

func (s *ChatDB) loadAttachments(ctx context.Context, sequenceID int64) ([]models.AttachmentRef, error) {
	rows, err := s.conn.QueryContext(ctx, `
		SELECT
			COALESCE(a.guid, ''),
			COALESCE(a.filename, ''),
			COALESCE(a.mime_type, ''),
			COALESCE(a.transfer_name, ''),
			COALESCE(a.total_bytes, 0)
		FROM attachment a
		JOIN message_attachment_join j ON j.attachment_id = a.ROWID
		WHERE j.message_id = ?
		ORDER BY a.ROWID`, sequenceID)
	if err != nil {
		return nil, fmt.Errorf("load attachments for %d: %w", sequenceID, err)
	}
	defer closeQuietly(rows)

	var refs []models.AttachmentRef
	for rows.Next() {
		var ref models.AttachmentRef
		if err := rows.Scan(&ref.ID, &ref.Filename, &ref.MimeType, &ref.TransferName, &ref.TotalBytes); err != nil {
			return nil, fmt.Errorf("scan attachment: %w", err)
		}
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (models.DeliveryRecord, error) {
	var (
		r             models.DeliveryRecord
		isFromMe      int
		date          int64
		dateDelivered int64
		isSent        int
		isDelivered   int
		hasAttachment int
	)

	err := row.Scan(
		&r.SequenceID,
		&r.RecordID,
		&r.Text,
		&r.Handle,
		&isFromMe,
		&date,
		&dateDelivered,
		&isSent,
		&isDelivered,
		&r.ErrorCode,
		&hasAttachment,
		&r.ServiceKind,
		&r.AttributedBody,
	)
	if err != nil {
		return r, err
	}

	r.Direction = models.DirectionInbound
	if isFromMe != 0 {
		r.Direction = models.DirectionOutbound
	}
	r.SentAt = fromAppleTime(date)
	if dateDelivered != 0 {
		at := fromAppleTime(dateDelivered)
		r.DeliveredAt = &at
	}
	r.IsSent = isSent != 0
	r.IsDelivered = isDelivered != 0
	r.HasAttachment = hasAttachment != 0
	r.Classify()

	return r, nil
}

// ExpandHome resolves a leading ~ to the current user's home directory.
func ExpandHome(path string) (string, error) {
	if path != "~" && !strings.HasPrefix(path, "~/") {
		return path, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to resolve home directory for %s: %w", path, err)
	}
	return filepath.Join(home, strings.TrimPrefix(path, "~")), nil
}

func closeQuietly(closer io.Closer) {
	if closer != nil {
		_ = closer.Close() // Explicitly ignore error - cleanup is best-effort
	}
}
