package handler

import (
	"context"
	"errors"
	"io"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/middleware"
	"github.com/ups-sales/api/internal/storage"
	"go.uber.org/zap"
)

const (
	announcementsPerPage = 10
	maxCoverUploadBytes  = 10 << 20
	maxTagColor          = 11
)

// AnnouncementStore defines the database methods needed by the
// announcement board. Satisfied by *database.Queries.
type AnnouncementStore interface {
	ListPublishedAnnouncements(ctx context.Context, arg database.ListPublishedAnnouncementsParams) ([]database.Announcement, error)
	CountPublishedAnnouncements(ctx context.Context) (int64, error)
	GetAnnouncement(ctx context.Context, id uuid.UUID) (database.Announcement, error)
	CreateAnnouncement(ctx context.Context, arg database.CreateAnnouncementParams) (database.Announcement, error)
	PublishAnnouncement(ctx context.Context, id uuid.UUID) (database.Announcement, error)
	SetAnnouncementCover(ctx context.Context, arg database.SetAnnouncementCoverParams) (database.Announcement, error)
	ListAnnouncementTags(ctx context.Context) ([]database.AnnouncementTag, error)
	CreateAnnouncementTag(ctx context.Context, arg database.CreateAnnouncementTagParams) (database.AnnouncementTag, error)
}

// CoverUploader stores a normalized cover image and returns its key.
// Satisfied by *storage.CoverStore.
type CoverUploader interface {
	UploadCover(ctx context.Context, announcementID uuid.UUID, data []byte) (string, error)
}

// AnnouncementHandler serves the announcement board.
type AnnouncementHandler struct {
	store  AnnouncementStore
	covers CoverUploader
	logger *zap.Logger
}

// NewAnnouncementHandler creates a new AnnouncementHandler. covers may be
// nil when object storage is not configured.
func NewAnnouncementHandler(store AnnouncementStore, covers CoverUploader, logger *zap.Logger) *AnnouncementHandler {
	return &AnnouncementHandler{store: store, covers: covers, logger: logger}
}

// RegisterRoutes registers announcement endpoints.
// Expected to be mounted at /announcements
func (h *AnnouncementHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Post("/", h.Create)
	r.Post("/{id}/publish", h.Publish)
	r.Put("/{id}/cover", h.UploadCover)
}

// RegisterTagRoutes registers tag endpoints.
// Expected to be mounted at /tags
func (h *AnnouncementHandler) RegisterTagRoutes(r chi.Router) {
	r.Get("/", h.ListTags)
	r.Post("/", h.CreateTag)
}

// --- Request / Response types ---

type createAnnouncementRequest struct {
	Title   string   `json:"title"`
	Content string   `json:"content"`
	TagIDs  []string `json:"tag_ids"`
}

type createTagRequest struct {
	Name  string `json:"name"`
	Color int32  `json:"color"`
}

type announcementResponse struct {
	ID            uuid.UUID   `json:"id"`
	Title         string      `json:"title"`
	Content       string      `json:"content"`
	CoverImageKey *string     `json:"cover_image_key"`
	TagIDs        []uuid.UUID `json:"tag_ids"`
	AuthorID      *uuid.UUID  `json:"author_id"`
	State         string      `json:"state"`
	PublishedAt   *time.Time  `json:"published_at"`
	CreatedAt     time.Time   `json:"created_at"`
}

type announcementPage struct {
	Items     []announcementResponse `json:"items"`
	Total     int64                  `json:"total"`
	Page      int                    `json:"page"`
	PageCount int                    `json:"page_count"`
}

type tagResponse struct {
	ID    uuid.UUID `json:"id"`
	Name  string    `json:"name"`
	Color int32     `json:"color"`
}

func toAnnouncementResponse(a database.Announcement) announcementResponse {
	resp := announcementResponse{
		ID:            a.ID,
		Title:         a.Title,
		Content:       a.Content,
		CoverImageKey: textPtr(a.CoverImageKey),
		TagIDs:        nonNilIDs(a.TagIds),
		AuthorID:      uuidPtr(a.AuthorID),
		State:         a.State,
		CreatedAt:     a.CreatedAt.Time,
	}
	if a.PublishedAt.Valid {
		t := a.PublishedAt.Time
		resp.PublishedAt = &t
	}
	return resp
}

// pageCount returns at least 1 so an empty board still has a first page.
func pageCount(total int64, perPage int) int {
	if total <= 0 {
		return 1
	}
	return int(math.Ceil(float64(total) / float64(perPage)))
}

// --- Handlers ---

// List handles GET /announcements?page=N. Only published announcements
// are listed, newest first.
func (h *AnnouncementHandler) List(w http.ResponseWriter, r *http.Request) {
	page := 1
	if s := r.URL.Query().Get("page"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			page = v
		}
	}

	total, err := h.store.CountPublishedAnnouncements(r.Context())
	if err != nil {
		internalError(w, h.logger, "count announcements", err)
		return
	}

	rows, err := h.store.ListPublishedAnnouncements(r.Context(), database.ListPublishedAnnouncementsParams{
		Limit:  announcementsPerPage,
		Offset: int32((page - 1) * announcementsPerPage),
	})
	if err != nil {
		internalError(w, h.logger, "list announcements", err)
		return
	}

	resp := announcementPage{
		Items:     make([]announcementResponse, len(rows)),
		Total:     total,
		Page:      page,
		PageCount: pageCount(total, announcementsPerPage),
	}
	for i, a := range rows {
		resp.Items[i] = toAnnouncementResponse(a)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Get handles GET /announcements/{id}. Drafts are reported as not found.
func (h *AnnouncementHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "announcement ID")
	if !ok {
		return
	}

	a, err := h.store.GetAnnouncement(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "announcement not found")
			return
		}
		internalError(w, h.logger, "get announcement", err)
		return
	}
	if a.State != enum.AnnouncementStatePublished {
		writeError(w, http.StatusNotFound, "announcement not found")
		return
	}

	writeJSON(w, http.StatusOK, toAnnouncementResponse(a))
}

// Create handles POST /announcements. New announcements start as drafts.
func (h *AnnouncementHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeError(w, http.StatusUnauthorized, "not authenticated")
		return
	}

	var req createAnnouncementRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Title == "" {
		writeError(w, http.StatusBadRequest, "title is required")
		return
	}
	tagIDs, err := parseUUIDs(req.TagIDs, "tag_ids")
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	a, err := h.store.CreateAnnouncement(r.Context(), database.CreateAnnouncementParams{
		Title:    req.Title,
		Content:  req.Content,
		TagIds:   tagIDs,
		AuthorID: pgtype.UUID{Bytes: claims.UserID, Valid: true},
	})
	if err != nil {
		internalError(w, h.logger, "create announcement", err)
		return
	}

	writeJSON(w, http.StatusCreated, toAnnouncementResponse(a))
}

// Publish handles POST /announcements/{id}/publish.
func (h *AnnouncementHandler) Publish(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "announcement ID")
	if !ok {
		return
	}

	a, err := h.store.PublishAnnouncement(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "announcement not found")
			return
		}
		internalError(w, h.logger, "publish announcement", err)
		return
	}

	writeJSON(w, http.StatusOK, toAnnouncementResponse(a))
}

// UploadCover handles PUT /announcements/{id}/cover with a multipart
// "file" field.
func (h *AnnouncementHandler) UploadCover(w http.ResponseWriter, r *http.Request) {
	id, ok := urlUUID(w, r, "id", "announcement ID")
	if !ok {
		return
	}
	if h.covers == nil {
		writeError(w, http.StatusServiceUnavailable, "cover storage is not configured")
		return
	}

	if _, err := h.store.GetAnnouncement(r.Context(), id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "announcement not found")
			return
		}
		internalError(w, h.logger, "get announcement", err)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxCoverUploadBytes)
	file, _, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read file")
		return
	}

	key, err := h.covers.UploadCover(r.Context(), id, data)
	if err != nil {
		if errors.Is(err, storage.ErrInvalidImage) {
			writeError(w, http.StatusBadRequest, "file is not a supported image")
			return
		}
		internalError(w, h.logger, "upload cover", err)
		return
	}

	a, err := h.store.SetAnnouncementCover(r.Context(), database.SetAnnouncementCoverParams{
		ID:            id,
		CoverImageKey: pgtype.Text{String: key, Valid: true},
	})
	if err != nil {
		internalError(w, h.logger, "set announcement cover", err)
		return
	}

	writeJSON(w, http.StatusOK, toAnnouncementResponse(a))
}

// ListTags handles GET /tags.
func (h *AnnouncementHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	tags, err := h.store.ListAnnouncementTags(r.Context())
	if err != nil {
		internalError(w, h.logger, "list tags", err)
		return
	}

	resp := make([]tagResponse, len(tags))
	for i, t := range tags {
		resp[i] = tagResponse{ID: t.ID, Name: t.Name, Color: t.Color}
	}
	writeJSON(w, http.StatusOK, resp)
}

// CreateTag handles POST /tags. Tag names are unique.
func (h *AnnouncementHandler) CreateTag(w http.ResponseWriter, r *http.Request) {
	var req createTagRequest
	if !decodeJSON(w, r, &req) {
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.Color < 0 || req.Color > maxTagColor {
		writeError(w, http.StatusBadRequest, "color must be between 0 and 11")
		return
	}

	t, err := h.store.CreateAnnouncementTag(r.Context(), database.CreateAnnouncementTagParams{
		Name:  req.Name,
		Color: req.Color,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "tag name already exists")
			return
		}
		internalError(w, h.logger, "create tag", err)
		return
	}

	writeJSON(w, http.StatusCreated, tagResponse{ID: t.ID, Name: t.Name, Color: t.Color})
}
