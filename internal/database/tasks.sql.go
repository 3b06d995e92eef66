package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

const projectTaskColumns = `id, project_id, name, date_start, date_deadline, created_at`

func scanProjectTask(row rowScanner) (ProjectTask, error) {
	var i ProjectTask
	err := row.Scan(
		&i.ID,
		&i.ProjectID,
		&i.Name,
		&i.DateStart,
		&i.DateDeadline,
		&i.CreatedAt,
	)
	return i, err
}

const createProjectTask = `INSERT INTO project_tasks (project_id, name, date_start, date_deadline)
VALUES ($1, $2, $3, $4)
RETURNING ` + projectTaskColumns

type CreateProjectTaskParams struct {
	ProjectID    uuid.UUID          `json:"project_id"`
	Name         string             `json:"name"`
	DateStart    pgtype.Timestamptz `json:"date_start"`
	DateDeadline pgtype.Timestamptz `json:"date_deadline"`
}

func (q *Queries) CreateProjectTask(ctx context.Context, arg CreateProjectTaskParams) (ProjectTask, error) {
	return scanProjectTask(q.db.QueryRow(ctx, createProjectTask,
		arg.ProjectID,
		arg.Name,
		arg.DateStart,
		arg.DateDeadline,
	))
}

const listProjectTasks = `SELECT ` + projectTaskColumns + ` FROM project_tasks
WHERE project_id = $1
ORDER BY COALESCE(date_start, date_deadline, created_at), id`

func (q *Queries) ListProjectTasks(ctx context.Context, projectID uuid.UUID) ([]ProjectTask, error) {
	rows, err := q.db.Query(ctx, listProjectTasks, projectID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []ProjectTask
	for rows.Next() {
		i, err := scanProjectTask(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

const updateProjectTaskDates = `UPDATE project_tasks SET date_start = $2, date_deadline = $3
WHERE id = $1
RETURNING ` + projectTaskColumns

type UpdateProjectTaskDatesParams struct {
	ID           uuid.UUID          `json:"id"`
	DateStart    pgtype.Timestamptz `json:"date_start"`
	DateDeadline pgtype.Timestamptz `json:"date_deadline"`
}

func (q *Queries) UpdateProjectTaskDates(ctx context.Context, arg UpdateProjectTaskDatesParams) (ProjectTask, error) {
	return scanProjectTask(q.db.QueryRow(ctx, updateProjectTaskDates, arg.ID, arg.DateStart, arg.DateDeadline))
}
