package runhistory

import (
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	dbmodel "headlessrun/internal/db"
)

// Store persists runs, their escalation attempts, and the prompts that
// were answered automatically, giving callers an audit trail of what
// the engine did on their behalf.
type Store struct {
	db *gorm.DB
}

func NewStore(gdb *gorm.DB) (*Store, error) {
	if gdb == nil {
		return nil, errors.New("db is required")
	}
	return &Store{db: gdb}, nil
}

// BeginRun inserts a running row and returns its id.
func (s *Store) BeginRun(command, workdir string) (string, error) {
	if s == nil || s.db == nil {
		return "", errors.New("run history store is not initialized")
	}
	command = strings.TrimSpace(command)
	if command == "" {
		return "", errors.New("command is required")
	}
	runID := uuid.NewString()
	row := dbmodel.Run{
		RunID:     runID,
		Command:   command,
		Workdir:   strings.TrimSpace(workdir),
		Status:    "running",
		StartedAt: time.Now().UTC().Unix(),
	}
	if err := s.db.Create(&row).Error; err != nil {
		return "", err
	}
	return runID, nil
}

// CompleteRun finalizes the run row with the propagated exit code.
func (s *Store) CompleteRun(runID string, exitCode int, succeeded bool) error {
	if s == nil || s.db == nil {
		return errors.New("run history store is not initialized")
	}
	status := "failed"
	if succeeded {
		status = "succeeded"
	}
	return s.db.Model(&dbmodel.Run{}).Where("run_id = ?", runID).Updates(map[string]any{
		"status":       status,
		"exit_code":    exitCode,
		"completed_at": time.Now().UTC().Unix(),
	}).Error
}

func (s *Store) RecordAttempt(runID, strategy string, exitCode int, errorKind string, timedOut bool, startedAt, completedAt time.Time) error {
	if s == nil || s.db == nil {
		return errors.New("run history store is not initialized")
	}
	row := dbmodel.Attempt{
		RunID:       runID,
		Strategy:    strategy,
		ExitCode:    exitCode,
		ErrorKind:   errorKind,
		TimedOut:    timedOut,
		StartedAt:   startedAt.UTC().Unix(),
		CompletedAt: completedAt.UTC().Unix(),
	}
	return s.db.Create(&row).Error
}

func (s *Store) RecordPrompt(runID, strategy, ruleTag, bufferTail string) error {
	if s == nil || s.db == nil {
		return errors.New("run history store is not initialized")
	}
	row := dbmodel.PromptEvent{
		RunID:      runID,
		Strategy:   strategy,
		RuleTag:    ruleTag,
		BufferTail: bufferTail,
		CreatedAt:  time.Now().UTC().Unix(),
	}
	return s.db.Create(&row).Error
}

type RunSummary struct {
	RunID       string
	Command     string
	Workdir     string
	Status      string
	ExitCode    int
	StartedAt   time.Time
	CompletedAt time.Time
	Attempts    []AttemptSummary
}

type AttemptSummary struct {
	Strategy  string
	ExitCode  int
	ErrorKind string
	TimedOut  bool
}

// ListRuns returns the most recent runs, newest first, each with its
// attempts in execution order.
func (s *Store) ListRuns(limit int) ([]RunSummary, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("run history store is not initialized")
	}
	if limit <= 0 {
		limit = 20
	}
	rows := make([]dbmodel.Run, 0, limit)
	if err := s.db.Order("started_at DESC").Limit(limit).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make([]RunSummary, 0, len(rows))
	for _, row := range rows {
		attempts := make([]dbmodel.Attempt, 0, 4)
		if err := s.db.Where("run_id = ?", row.RunID).Order("started_at ASC, id ASC").Find(&attempts).Error; err != nil {
			return nil, err
		}
		summary := RunSummary{
			RunID:       row.RunID,
			Command:     row.Command,
			Workdir:     row.Workdir,
			Status:      row.Status,
			ExitCode:    row.ExitCode,
			StartedAt:   time.Unix(row.StartedAt, 0).UTC(),
			CompletedAt: time.Unix(row.CompletedAt, 0).UTC(),
		}
		for _, at := range attempts {
			summary.Attempts = append(summary.Attempts, AttemptSummary{
				Strategy:  at.Strategy,
				ExitCode:  at.ExitCode,
				ErrorKind: at.ErrorKind,
				TimedOut:  at.TimedOut,
			})
		}
		out = append(out, summary)
	}
	return out, nil
}

// PromptsForRun returns the answered prompts for one run, oldest first.
func (s *Store) PromptsForRun(runID string) ([]dbmodel.PromptEvent, error) {
	if s == nil || s.db == nil {
		return nil, errors.New("run history store is not initialized")
	}
	rows := make([]dbmodel.PromptEvent, 0, 8)
	if err := s.db.Where("run_id = ?", runID).Order("created_at ASC, id ASC").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

// Close is a no-op; the DB handle is owned by the caller.
func (s *Store) Close() error {
	return nil
}
