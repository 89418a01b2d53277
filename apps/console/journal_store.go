package main

import (
	"context"
	"database/sql"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"brims/libs/listview"
)

const (
	journalOutcomeSucceeded = "succeeded"
	journalOutcomeFailed    = "failed"
	journalOutcomeDenied    = "denied"
)

// journalEntry is one settled or denied dashboard action.
type journalEntry struct {
	Workspace  string
	Screen     string
	Action     string
	Targets    []string
	Outcome    string
	Error      string
	DurationMS int64
	CreatedAt  time.Time
}

type actionJournal interface {
	Record(ctx context.Context, entry journalEntry) error
	Recent(ctx context.Context, limit int) ([]journalEntry, error)
}

func journalEntryFromOutcome(workspaceID string, outcome listview.Outcome) journalEntry {
	entry := journalEntry{
		Workspace:  workspaceID,
		Screen:     outcome.Screen,
		Action:     outcome.Action,
		Targets:    outcome.Targets,
		Outcome:    journalOutcomeSucceeded,
		DurationMS: outcome.Duration.Milliseconds(),
		CreatedAt:  time.Now().UTC(),
	}
	switch {
	case outcome.Denied:
		entry.Outcome = journalOutcomeDenied
	case outcome.Err != nil:
		entry.Outcome = journalOutcomeFailed
		entry.Error = outcome.Err.Error()
	}
	return entry
}

// recordOutcome journals an action outcome. Journal failures are logged and
// never reach the user.
func (a *App) recordOutcome(workspaceID string, outcome listview.Outcome) {
	entry := journalEntryFromOutcome(workspaceID, outcome)
	a.log.Info("console action",
		"workspace", workspaceID,
		"screen", entry.Screen,
		"action", entry.Action,
		"targets", len(entry.Targets),
		"outcome", entry.Outcome,
		"duration_ms", entry.DurationMS,
	)
	if a.journal == nil {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), journalWriteTimeout)
	defer cancel()
	if err := a.journal.Record(ctx, entry); err != nil {
		a.log.Warn("record action journal failed", "error", err, "action", entry.Action)
	}
}

type sqlJournal struct {
	db *sql.DB
}

func newSQLJournal(db *sql.DB) *sqlJournal {
	return &sqlJournal{db: db}
}

func (j *sqlJournal) Record(ctx context.Context, entry journalEntry) error {
	_, err := j.db.ExecContext(ctx, `
		INSERT INTO console_action_journal (workspace_id, screen, action, targets, outcome, error_message, duration_ms)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
	`, entry.Workspace, entry.Screen, entry.Action, strings.Join(entry.Targets, ","), entry.Outcome, entry.Error, entry.DurationMS)
	return err
}

func (j *sqlJournal) Recent(ctx context.Context, limit int) ([]journalEntry, error) {
	if limit < 1 {
		return nil, errors.New("limit must be positive")
	}
	rows, err := j.db.QueryContext(ctx, `
		SELECT workspace_id, screen, action, targets, outcome, error_message, duration_ms, created_at
		FROM console_action_journal
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	entries := make([]journalEntry, 0, limit)
	for rows.Next() {
		var (
			entry   journalEntry
			targets string
		)
		if err := rows.Scan(&entry.Workspace, &entry.Screen, &entry.Action, &targets, &entry.Outcome, &entry.Error, &entry.DurationMS, &entry.CreatedAt); err != nil {
			return nil, err
		}
		if targets != "" {
			entry.Targets = strings.Split(targets, ",")
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// logJournal writes entries to the logger and keeps the latest in memory.
type logJournal struct {
	log      *slog.Logger
	mu       sync.Mutex
	capacity int
	entries  []journalEntry
}

func newLogJournal(logger *slog.Logger, capacity int) *logJournal {
	if capacity < 1 {
		capacity = recentJournalEntries
	}
	return &logJournal{log: logger, capacity: capacity}
}

func (j *logJournal) Record(ctx context.Context, entry journalEntry) error {
	j.log.DebugContext(ctx, "action journal entry",
		"workspace", entry.Workspace,
		"screen", entry.Screen,
		"action", entry.Action,
		"targets", strings.Join(entry.Targets, ","),
		"outcome", entry.Outcome,
		"error", entry.Error,
	)

	j.mu.Lock()
	defer j.mu.Unlock()
	j.entries = append(j.entries, entry)
	if overflow := len(j.entries) - j.capacity; overflow > 0 {
		j.entries = append([]journalEntry(nil), j.entries[overflow:]...)
	}
	return nil
}

func (j *logJournal) Recent(_ context.Context, limit int) ([]journalEntry, error) {
	if limit < 1 {
		return nil, errors.New("limit must be positive")
	}
	j.mu.Lock()
	defer j.mu.Unlock()
	count := min(limit, len(j.entries))
	recent := make([]journalEntry, 0, count)
	for i := len(j.entries) - 1; i >= len(j.entries)-count; i-- {
		recent = append(recent, j.entries[i])
	}
	return recent, nil
}
