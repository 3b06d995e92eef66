// Package project lays out project tasks for a Gantt view.
package project

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/sales"
)

const defaultBarLength = 24 * time.Hour

var (
	ErrTaskNotFound  = errors.New("task not found")
	ErrDatesInverted = errors.New("start date is after deadline")
)

// Row is one Gantt bar. IsVirtual marks rows whose dates were filled in
// for display because the task is missing one or both dates.
type Row struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	Start     time.Time `json:"start"`
	End       time.Time `json:"end"`
	IsVirtual bool      `json:"is_virtual"`
}

// ValidateDates rejects a start after the deadline when both are set.
func ValidateDates(start, deadline *time.Time) error {
	if start == nil || deadline == nil {
		return nil
	}
	if start.After(*deadline) {
		return &sales.ValidationError{
			Msg: fmt.Sprintf("start %s is after deadline %s", start.Format(time.DateOnly), deadline.Format(time.DateOnly)),
			Err: ErrDatesInverted,
		}
	}
	return nil
}

// GanttRows converts tasks to bars. Missing dates never hide a task:
// a missing start is one day before the deadline, a missing end is one day
// after the start, and a task without either spans today.
func GanttRows(tasks []database.ProjectTask, today time.Time) []Row {
	rows := make([]Row, 0, len(tasks))
	for _, t := range tasks {
		row := Row{ID: t.ID, Name: t.Name}
		switch {
		case t.DateStart.Valid && t.DateDeadline.Valid:
			row.Start, row.End = t.DateStart.Time, t.DateDeadline.Time
		case t.DateDeadline.Valid:
			row.Start, row.End = t.DateDeadline.Time.Add(-defaultBarLength), t.DateDeadline.Time
			row.IsVirtual = true
		case t.DateStart.Valid:
			row.Start, row.End = t.DateStart.Time, t.DateStart.Time.Add(defaultBarLength)
			row.IsVirtual = true
		default:
			row.Start, row.End = today, today.Add(defaultBarLength)
			row.IsVirtual = true
		}
		rows = append(rows, row)
	}
	return rows
}

// Store is the persistence the Gantt service needs.
type Store interface {
	ListProjectTasks(ctx context.Context, projectID uuid.UUID) ([]database.ProjectTask, error)
	UpdateProjectTaskDates(ctx context.Context, arg database.UpdateProjectTaskDatesParams) (database.ProjectTask, error)
}

// Service serves the Gantt endpoints.
type Service struct {
	store Store
	now   func() time.Time
}

func NewService(store Store) *Service {
	return &Service{store: store, now: time.Now}
}

func (s *Service) Gantt(ctx context.Context, projectID uuid.UUID) ([]Row, error) {
	tasks, err := s.store.ListProjectTasks(ctx, projectID)
	if err != nil {
		return nil, fmt.Errorf("list tasks: %w", err)
	}
	y, m, d := s.now().UTC().Date()
	return GanttRows(tasks, time.Date(y, m, d, 0, 0, 0, 0, time.UTC)), nil
}

// SetDates validates and stores a task's dates. Nil clears a date.
func (s *Service) SetDates(ctx context.Context, taskID uuid.UUID, start, deadline *time.Time) (database.ProjectTask, error) {
	if err := ValidateDates(start, deadline); err != nil {
		return database.ProjectTask{}, err
	}
	task, err := s.store.UpdateProjectTaskDates(ctx, database.UpdateProjectTaskDatesParams{
		ID:           taskID,
		DateStart:    timestamptz(start),
		DateDeadline: timestamptz(deadline),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return database.ProjectTask{}, ErrTaskNotFound
	}
	if err != nil {
		return database.ProjectTask{}, fmt.Errorf("update task dates: %w", err)
	}
	return task, nil
}

func timestamptz(t *time.Time) pgtype.Timestamptz {
	if t == nil {
		return pgtype.Timestamptz{}
	}
	return pgtype.Timestamptz{Time: *t, Valid: true}
}
