package handler

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/ups-sales/api/internal/database"
	"github.com/ups-sales/api/internal/enum"
	"github.com/ups-sales/api/internal/middleware"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"
)

const minPasswordLength = 8

// UserStore defines the database methods needed by user handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type UserStore interface {
	ListUsers(ctx context.Context) ([]database.User, error)
	CreateUser(ctx context.Context, arg database.CreateUserParams) (database.User, error)
	DeactivateUser(ctx context.Context, id uuid.UUID) (uuid.UUID, error)
}

// UserHandler manages staff accounts.
type UserHandler struct {
	store  UserStore
	logger *zap.Logger
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(store UserStore, logger *zap.Logger) *UserHandler {
	return &UserHandler{store: store, logger: logger}
}

// RegisterRoutes registers user endpoints on the given Chi router.
// Expected to be mounted at /users behind an OWNER role check.
func (h *UserHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Delete("/{id}", h.Delete)
}

type createUserRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
	FullName string `json:"full_name"`
	Role     string `json:"role"`
}

type userDetailResponse struct {
	ID        uuid.UUID `json:"id"`
	Email     string    `json:"email"`
	FullName  string    `json:"full_name"`
	Role      string    `json:"role"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toUserDetailResponse(u database.User) userDetailResponse {
	return userDetailResponse{
		ID:        u.ID,
		Email:     u.Email,
		FullName:  u.FullName,
		Role:      u.Role,
		IsActive:  u.IsActive,
		CreatedAt: u.CreatedAt.Time,
	}
}

// List returns all active users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		internalError(w, h.logger, "list users", err)
		return
	}

	resp := make([]userDetailResponse, len(users))
	for i, u := range users {
		resp[i] = toUserDetailResponse(u)
	}
	writeJSON(w, http.StatusOK, resp)
}

// Create adds a user with a bcrypt-hashed password.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createUserRequest
	if !decodeJSON(w, r, &req) {
		return
	}

	req.Email = strings.TrimSpace(strings.ToLower(req.Email))
	if req.Email == "" || req.Password == "" || req.FullName == "" || req.Role == "" {
		writeError(w, http.StatusBadRequest, "email, password, full_name, and role are required")
		return
	}
	if !strings.Contains(req.Email, "@") {
		writeError(w, http.StatusBadRequest, "invalid email format")
		return
	}
	if len(req.Password) < minPasswordLength {
		writeError(w, http.StatusBadRequest, "password must be at least 8 characters")
		return
	}
	if !enum.IsValidRole(req.Role) {
		writeError(w, http.StatusBadRequest, "invalid role")
		return
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		internalError(w, h.logger, "hash password", err)
		return
	}

	user, err := h.store.CreateUser(r.Context(), database.CreateUserParams{
		Email:          req.Email,
		HashedPassword: string(hashed),
		FullName:       req.FullName,
		Role:           req.Role,
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeError(w, http.StatusConflict, "email already exists")
			return
		}
		internalError(w, h.logger, "create user", err)
		return
	}

	writeJSON(w, http.StatusCreated, toUserDetailResponse(user))
}

// Delete deactivates a user. Owners cannot deactivate themselves.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	userID, ok := urlUUID(w, r, "id", "user ID")
	if !ok {
		return
	}
	if claims := middleware.ClaimsFromContext(r.Context()); claims != nil && claims.UserID == userID {
		writeError(w, http.StatusBadRequest, "cannot deactivate your own account")
		return
	}

	if _, err := h.store.DeactivateUser(r.Context(), userID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeError(w, http.StatusNotFound, "user not found")
			return
		}
		internalError(w, h.logger, "deactivate user", err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
