// Courier - Message Delivery Assurance Engine
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/courier

package sync

import (
	"context"
	"errors"
	"strconv"

	"golang.org/x/sync/errgroup"

	"github.com/tomtom215/courier/internal/metrics"
	"github.com/tomtom215/courier/internal/models"
	"github.com/tomtom215/courier/internal/resilience"
)

// runCycle drains every record past the cursor. A store failure ends the
// cycle; the next trigger starts over from the cursor.
func (m *Manager) runCycle(ctx context.Context, trigger string) error {
	m.triggerMu.Lock()
	defer m.triggerMu.Unlock()

	metrics.SyncTriggers.WithLabelValues(trigger).Inc()
	start := m.now()

	if err := m.ensureCursor(ctx); err != nil {
		metrics.RecordSyncCycle(m.now().Sub(start), m.Cursor(), err, cycleErrorType(err))
		return err
	}

	if expired := m.correlator.Sweep(); expired > 0 {
		m.logger.Debug().Int("expired", expired).Msg("Dropped unmatched correlations")
	}

	emitted := 0
	for {
		cursor := m.Cursor()
		records, err := m.source.QueryNewRecords(ctx, cursor, m.cfg.BatchLimit)
		if err != nil {
			if errors.Is(err, resilience.ErrStoreUnavailable) {
				m.logger.Warn().Err(err).Int64("cursor", cursor).Msg("Message store unavailable, skipping cycle")
			}
			metrics.RecordSyncCycle(m.now().Sub(start), cursor, err, cycleErrorType(err))
			return err
		}

		n, err := m.processBatch(ctx, records)
		emitted += n
		if err != nil {
			metrics.RecordSyncCycle(m.now().Sub(start), m.Cursor(), err, cycleErrorType(err))
			return err
		}

		// A short batch means the store is drained. A full batch that did
		// not move the cursor would be returned again.
		if len(records) < m.cfg.BatchLimit || m.Cursor() <= cursor {
			break
		}
	}

	m.mu.Lock()
	m.lastSync = m.now()
	cursor := m.cursor
	m.mu.Unlock()

	metrics.RecordSyncCycle(m.now().Sub(start), cursor, nil, "")
	if emitted > 0 {
		m.logger.Debug().Int("emitted", emitted).Int64("cursor", cursor).Str("trigger", trigger).Msg("Sync cycle complete")
	}
	return nil
}

// processBatch handles records in chunks of the configured concurrency.
// The cursor moves to the highest sequence id of a chunk once every record
// in it is done, and is persisted before the next chunk starts.
func (m *Manager) processBatch(ctx context.Context, records []models.DeliveryRecord) (int, error) {
	emitted := 0
	size := m.cfg.Concurrency

	for lo := 0; lo < len(records); lo += size {
		hi := lo + size
		if hi > len(records) {
			hi = len(records)
		}
		chunk := records[lo:hi]

		results := make([]bool, len(chunk))
		finished := make([]bool, len(chunk))
		marked := make([]string, len(chunk))
		g, gctx := errgroup.WithContext(ctx)

		var highest int64
		for i := range chunk {
			rec := chunk[i]
			if rec.SequenceID > highest {
				highest = rec.SequenceID
			}

			// Marked before any async work so a concurrent trigger cannot
			// pick the same record up.
			key := recencyKey(&rec)
			if !m.seen.AddIfAbsent(key) {
				metrics.SyncRecords.WithLabelValues("duplicate").Inc()
				continue
			}
			marked[i] = key

			g.Go(func() error {
				results[i] = m.processRecord(gctx, &rec)
				finished[i] = results[i] || gctx.Err() == nil
				return nil
			})
		}

		_ = g.Wait() //nolint:errcheck // record goroutines never return errors

		if err := ctx.Err(); err != nil {
			// The cursor stays put, so interrupted records come back on the
			// next cycle and must not be skipped as duplicates.
			for i, key := range marked {
				if key != "" && !finished[i] {
					m.seen.Remove(key)
				}
			}
			for _, ok := range results {
				if ok {
					emitted++
				}
			}
			return emitted, err
		}

		for _, ok := range results {
			if ok {
				emitted++
			}
		}

		if m.advanceCursor(highest) {
			m.persistCursor(ctx, highest)
		}
	}
	return emitted, nil
}

// processRecord normalizes one record and publishes it. It reports whether
// an event was emitted. Failures are logged and counted, never returned.
func (m *Manager) processRecord(ctx context.Context, rec *models.DeliveryRecord) bool {
	log := m.logger.With().Str("record_id", rec.RecordID).Int64("sequence_id", rec.SequenceID).Logger()

	text := rec.Text
	if text == "" && len(rec.AttributedBody) > 0 {
		text = RecoverText(rec.AttributedBody, rec.HasAttachment)
	}

	attachments := rec.Attachments
	if text == "" && !rec.HasAttachment && m.refetchable(rec) {
		text, attachments = m.refetch(ctx, rec, attachments)
	}

	msg := models.NewMessage{
		RecordID:    rec.RecordID,
		SequenceID:  rec.SequenceID,
		Direction:   rec.Direction,
		Text:        text,
		Handle:      rec.Handle,
		Attachments: m.resolveAttachments(ctx, attachments),
		OccurredAt:  rec.SentAt,
		ServiceKind: rec.ServiceKind,
	}

	if msg.Direction == models.DirectionOutbound && msg.Text != "" {
		if id, ok := m.correlator.Match(msg.Handle, msg.Text, rec.SentAt); ok {
			msg.CorrelationID = id
			metrics.SyncRecords.WithLabelValues("correlated").Inc()
			log.Debug().Str("correlation_id", id).Msg("Matched pending send")
		}
	}

	if !msg.Emittable() {
		metrics.SyncRecords.WithLabelValues("empty").Inc()
		return false
	}

	if err := m.publisher.PublishNewMessage(ctx, msg); err != nil {
		metrics.SyncRecords.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("Failed to publish new message")
		return false
	}

	metrics.SyncRecords.WithLabelValues("emitted").Inc()
	return true
}

// refetchable reports whether an empty record is recent enough that the
// store may still be filling in its body.
func (m *Manager) refetchable(rec *models.DeliveryRecord) bool {
	if m.cfg.RefetchAttempts <= 0 || rec.SentAt.IsZero() {
		return false
	}
	return m.now().Sub(rec.SentAt) < m.cfg.RefetchMaxAge
}

func (m *Manager) refetch(ctx context.Context, rec *models.DeliveryRecord, attachments []models.AttachmentRef) (string, []models.AttachmentRef) {
	for attempt := 1; attempt <= m.cfg.RefetchAttempts; attempt++ {
		if err := m.sleep(ctx, m.cfg.RefetchDelay); err != nil {
			return "", attachments
		}

		fresh, err := m.source.GetRecord(ctx, rec.SequenceID)
		if err != nil {
			m.logger.Debug().Err(err).Int64("sequence_id", rec.SequenceID).Int("attempt", attempt).Msg("Re-fetch failed")
			continue
		}
		if fresh == nil {
			continue
		}

		text := fresh.Text
		if text == "" && len(fresh.AttributedBody) > 0 {
			text = RecoverText(fresh.AttributedBody, fresh.HasAttachment)
		}
		if len(fresh.Attachments) > 0 {
			attachments = fresh.Attachments
		}
		if text != "" || len(attachments) > 0 {
			return text, attachments
		}
	}
	return "", attachments
}

func (m *Manager) resolveAttachments(ctx context.Context, refs []models.AttachmentRef) []models.AttachmentRef {
	out := make([]models.AttachmentRef, 0, len(refs))
	for _, ref := range refs {
		if m.resolver == nil {
			out = append(out, ref)
			continue
		}
		resolved, err := m.resolver.Resolve(ctx, ref)
		if err != nil {
			m.logger.Warn().Err(err).Str("attachment_id", ref.ID).Msg("Attachment resolution failed")
			ref.Error = err.Error()
			out = append(out, ref)
			continue
		}
		out = append(out, resolved)
	}
	return out
}

// recencyKey falls back to the sequence id for records without a GUID.
func recencyKey(rec *models.DeliveryRecord) string {
	if rec.RecordID != "" {
		return rec.RecordID
	}
	return "seq:" + strconv.FormatInt(rec.SequenceID, 10)
}

func cycleErrorType(err error) string {
	switch {
	case errors.Is(err, resilience.ErrStoreUnavailable), resilience.IsCircuitOpen(err):
		return "store_unavailable"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "canceled"
	default:
		return "other"
	}
}

func recordCheckpointError() {
	metrics.SyncErrors.WithLabelValues("checkpoint").Inc()
}

