package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
)

// --- Tags ---

const createAnnouncementTag = `INSERT INTO announcement_tags (name, color) VALUES ($1, $2)
RETURNING id, name, color`

type CreateAnnouncementTagParams struct {
	Name  string `json:"name"`
	Color int32  `json:"color"`
}

func (q *Queries) CreateAnnouncementTag(ctx context.Context, arg CreateAnnouncementTagParams) (AnnouncementTag, error) {
	var i AnnouncementTag
	err := q.db.QueryRow(ctx, createAnnouncementTag, arg.Name, arg.Color).Scan(&i.ID, &i.Name, &i.Color)
	return i, err
}

const listAnnouncementTags = `SELECT id, name, color FROM announcement_tags ORDER BY name`

func (q *Queries) ListAnnouncementTags(ctx context.Context) ([]AnnouncementTag, error) {
	rows, err := q.db.Query(ctx, listAnnouncementTags)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []AnnouncementTag
	for rows.Next() {
		var i AnnouncementTag
		if err := rows.Scan(&i.ID, &i.Name, &i.Color); err != nil {
			return nil, err
		}
		items = append(items, i)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

// --- Announcements ---

const announcementColumns = `id, title, content, cover_image_key, tag_ids, author_id, state, published_at, created_at`

func scanAnnouncement(row rowScanner) (Announcement, error) {
	var i Announcement
	err := row.Scan(
		&i.ID,
		&i.Title,
		&i.Content,
		&i.CoverImageKey,
		&i.TagIds,
		&i.AuthorID,
		&i.State,
		&i.PublishedAt,
		&i.CreatedAt,
	)
	return i, err
}

const createAnnouncement = `INSERT INTO announcements (title, content, tag_ids, author_id)
VALUES ($1, $2, $3, $4)
RETURNING ` + announcementColumns

type CreateAnnouncementParams struct {
	Title    string      `json:"title"`
	Content  string      `json:"content"`
	TagIds   []uuid.UUID `json:"tag_ids"`
	AuthorID pgtype.UUID `json:"author_id"`
}

func (q *Queries) CreateAnnouncement(ctx context.Context, arg CreateAnnouncementParams) (Announcement, error) {
	return scanAnnouncement(q.db.QueryRow(ctx, createAnnouncement,
		arg.Title,
		arg.Content,
		arg.TagIds,
		arg.AuthorID,
	))
}

const getAnnouncement = `SELECT ` + announcementColumns + ` FROM announcements WHERE id = $1`

func (q *Queries) GetAnnouncement(ctx context.Context, id uuid.UUID) (Announcement, error) {
	return scanAnnouncement(q.db.QueryRow(ctx, getAnnouncement, id))
}

const publishAnnouncement = `UPDATE announcements SET state = 'published', published_at = COALESCE(published_at, now())
WHERE id = $1
RETURNING ` + announcementColumns

func (q *Queries) PublishAnnouncement(ctx context.Context, id uuid.UUID) (Announcement, error) {
	return scanAnnouncement(q.db.QueryRow(ctx, publishAnnouncement, id))
}

const setAnnouncementCover = `UPDATE announcements SET cover_image_key = $2 WHERE id = $1
RETURNING ` + announcementColumns

type SetAnnouncementCoverParams struct {
	ID            uuid.UUID   `json:"id"`
	CoverImageKey pgtype.Text `json:"cover_image_key"`
}

func (q *Queries) SetAnnouncementCover(ctx context.Context, arg SetAnnouncementCoverParams) (Announcement, error) {
	return scanAnnouncement(q.db.QueryRow(ctx, setAnnouncementCover, arg.ID, arg.CoverImageKey))
}

const listPublishedAnnouncements = `SELECT ` + announcementColumns + ` FROM announcements
WHERE state = 'published'
ORDER BY created_at DESC, id
LIMIT $1 OFFSET $2`

type ListPublishedAnnouncementsParams struct {
	Limit  int32 `json:"limit"`
	Offset int32 `json:"offset"`
}

func (q *Queries) ListPublishedAnnouncements(ctx context.Context, arg ListPublishedAnnouncementsParams) ([]Announcement, error) {
	rows, err := q.db.Query(ctx, listPublishedAnnouncements, arg.Limit, arg.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Announcement
	for rows.Next() {
		i, err := scanAnnouncement(rows)
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

const countPublishedAnnouncements = `SELECT COUNT(*) FROM announcements WHERE state = 'published'`

func (q *Queries) CountPublishedAnnouncements(ctx context.Context) (int64, error) {
	var count int64
	err := q.db.QueryRow(ctx, countPublishedAnnouncements).Scan(&count)
	return count, err
}
