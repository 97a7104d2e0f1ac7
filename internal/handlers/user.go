package handlers

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/nkiryanov/authgate/internal/handlers/render"
	"github.com/nkiryanov/authgate/internal/handlers/userctx"
	"github.com/nkiryanov/authgate/internal/models"
	"github.com/nkiryanov/authgate/internal/service/user"
)

type userService interface {
	Get(ctx context.Context, userID uuid.UUID) (models.User, error)
	GetByUsername(ctx context.Context, username string) (models.User, error)
	Update(ctx context.Context, userID uuid.UUID, params user.UpdateParams) (models.User, error)
	UpdateEmail(ctx context.Context, userID uuid.UUID, email string, password string) (models.User, error)
	Delete(ctx context.Context, userID uuid.UUID, password string) error
}

type UserHandler struct {
	userService userService
}

func NewUser(us userService) *UserHandler {
	return &UserHandler{userService: us}
}

func (h *UserHandler) me(w http.ResponseWriter, r *http.Request) {
	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	render.JSON(w, toUserResponse(u))
}

func (h *UserHandler) getByUsername(w http.ResponseWriter, r *http.Request) {
	u, err := h.userService.GetByUsername(r.Context(), r.PathValue("username"))
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, profileResponse{ID: u.ID, Username: u.Username, Name: u.Name})
}

func (h *UserHandler) update(w http.ResponseWriter, r *http.Request) {
	type UpdateRequest struct {
		Name     *string `json:"name" validate:"omitempty,min=3,max=100"`
		Username *string `json:"username" validate:"omitempty,min=3,max=106,username"`
	}

	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[UpdateRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.Update(r.Context(), u.ID, user.UpdateParams{
		Name:     data.Name,
		Username: data.Username,
	})
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, toUserResponse(updated))
}

func (h *UserHandler) updateEmail(w http.ResponseWriter, r *http.Request) {
	type UpdateEmailRequest struct {
		Email    string `json:"email" validate:"required,email,max=250"`
		Password string `json:"password" validate:"required"`
	}

	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[UpdateEmailRequest](w, r)
	if err != nil {
		return
	}

	updated, err := h.userService.UpdateEmail(r.Context(), u.ID, data.Email, data.Password)
	if err != nil {
		serviceError(w, err)
		return
	}

	render.JSON(w, toUserResponse(updated))
}

func (h *UserHandler) remove(w http.ResponseWriter, r *http.Request) {
	type DeleteRequest struct {
		Password string `json:"password" validate:"required"`
	}

	u, ok := userctx.FromContext(r.Context())
	if !ok {
		render.ServiceError(w, "Unauthorized", http.StatusUnauthorized)
		return
	}

	data, err := render.BindAndValidate[DeleteRequest](w, r)
	if err != nil {
		return
	}

	if err := h.userService.Delete(r.Context(), u.ID, data.Password); err != nil {
		serviceError(w, err)
		return
	}

	w.WriteHeader(http.StatusNoContent)
}
