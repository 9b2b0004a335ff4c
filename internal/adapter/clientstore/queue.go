package clientstore

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/arturoeanton/dyana-web/internal/domain"
)

// QueueStore is the session-scoped persistence of pending conversion events.
type QueueStore struct {
	store *Store
}

// NewQueueStore returns the conversion queue repository of store.
func NewQueueStore(store *Store) *QueueStore {
	return &QueueStore{store: store}
}

// Append adds ev, truncates the queue to the max most recent entries and
// replaces the last enqueue times with recent, all in one transaction.
func (q *QueueStore) Append(ctx context.Context, ev domain.ConversionEvent, max int, recent map[string]time.Time) error {
	params, err := json.Marshal(ev.Params)
	if err != nil {
		return fmt.Errorf("encode params: %w", err)
	}
	stamps, err := encodeRecent(recent)
	if err != nil {
		return err
	}

	return withTx(ctx, q.store.db, func(ctx context.Context, tx DBTX) error {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO conversion_queue (id, name, params, ts) VALUES (?, ?, ?, ?)`,
			ev.ID, ev.Name, string(params), ev.TS.UnixMilli(),
		); err != nil {
			return fmt.Errorf("insert event: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			DELETE FROM conversion_queue
			WHERE seq NOT IN (SELECT seq FROM conversion_queue ORDER BY seq DESC LIMIT ?)
		`, max); err != nil {
			return fmt.Errorf("truncate queue: %w", err)
		}
		return setKV(ctx, tx, ScopeSession, domain.KeyRecentEvents, stamps, q.store.now())
	})
}

// List returns queued events, oldest first.
func (q *QueueStore) List(ctx context.Context) ([]domain.ConversionEvent, error) {
	rows, err := q.store.db.QueryContext(ctx, `SELECT id, name, params, ts FROM conversion_queue ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("list events: %w", err)
	}
	defer rows.Close()

	var events []domain.ConversionEvent
	for rows.Next() {
		var (
			ev     domain.ConversionEvent
			params string
			ts     int64
		)
		if err := rows.Scan(&ev.ID, &ev.Name, &params, &ts); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		if err := json.Unmarshal([]byte(params), &ev.Params); err != nil {
			return nil, fmt.Errorf("decode params of %s: %w", ev.ID, err)
		}
		ev.TS = time.UnixMilli(ts)
		events = append(events, ev)
	}
	return events, rows.Err()
}

// Remove deletes the given events in one transaction.
func (q *QueueStore) Remove(ctx context.Context, ids []string) error {
	if len(ids) == 0 {
		return nil
	}
	return withTx(ctx, q.store.db, func(ctx context.Context, tx DBTX) error {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx, `DELETE FROM conversion_queue WHERE id = ?`, id); err != nil {
				return fmt.Errorf("remove event %s: %w", id, err)
			}
		}
		return nil
	})
}

// Recent returns the last enqueue time per event name.
func (q *QueueStore) Recent(ctx context.Context) (map[string]time.Time, error) {
	data, err := q.store.Get(ctx, ScopeSession, domain.KeyRecentEvents)
	if err != nil {
		return nil, err
	}
	recent := make(map[string]time.Time)
	if data == nil {
		return recent, nil
	}
	var ms map[string]int64
	if err := json.Unmarshal(data, &ms); err != nil {
		return recent, nil
	}
	for name, v := range ms {
		recent[name] = time.UnixMilli(v)
	}
	return recent, nil
}

func encodeRecent(recent map[string]time.Time) ([]byte, error) {
	ms := make(map[string]int64, len(recent))
	for name, ts := range recent {
		ms[name] = ts.UnixMilli()
	}
	data, err := json.Marshal(ms)
	if err != nil {
		return nil, fmt.Errorf("encode recent events: %w", err)
	}
	return data, nil
}
