package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/marvinalivio/p4-backend/internal/services"
	"github.com/marvinalivio/p4-backend/internal/validation"
	"github.com/marvinalivio/p4-backend/types"
	"go.uber.org/zap"
)

const deletedMessage = "user deleted"

// UserHandler provides HTTP handlers for accounts and their profile
// sections.
type UserHandler struct {
	users  *services.UserService
	logger *zap.Logger
	redact bool
}

// NewUserHandler constructs a UserHandler. When redact is set the password
// hash is blanked in every response.
func NewUserHandler(users *services.UserService, logger *zap.Logger, redact bool) *UserHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &UserHandler{users: users, logger: logger, redact: redact}
}

// UserRouter registers account routes on the given router.
func UserRouter(r chi.Router, h *UserHandler) {
	r.Post("/signup", h.Signup)
	r.Post("/login", h.Login)
	r.Post("/updateProfile/{id}", h.UpdateProfile)
	r.Post("/education/{id}", h.UpdateEducation)
	r.Post("/portfolio/{id}", h.UpdatePortfolio)
	r.Post("/experience/{id}", h.UpdateWorkExperience)
	r.Post("/skills/{id}", h.UpdateSkills)
	r.Get("/", h.List)
	r.Get("/users/{id}", h.Get)
	r.Delete("/delete/{id}", h.Delete)
}

type ProfileRequest struct {
	Profile []types.ProfileBlock `json:"profile" validate:"max=1,dive"`
}

type EducationRequest struct {
	Education []types.Education `json:"education"`
}

type PortfolioRequest struct {
	Portfolio []types.PortfolioItem `json:"portfolio"`
}

type WorkExperienceRequest struct {
	WorkExperience []types.WorkExperience `json:"work_experience"`
}

type SkillsRequest struct {
	Skills []types.Skill `json:"skills"`
}

type ListUsersResponse struct {
	AllUsers []types.User `json:"allUsers"`
}

type DeleteUserResponse struct {
	Message string     `json:"message"`
	User    types.User `json:"user"`
}

func (h *UserHandler) UpdateProfile(w http.ResponseWriter, r *http.Request) {
	var req ProfileRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}
	if err := validation.Struct(req); err != nil {
		writeError(w, http.StatusBadRequest, services.ErrValidation.Error()+": "+err.Error())
		return
	}

	user, err := h.users.UpdateProfile(r.Context(), chi.URLParam(r, "id"), req.Profile)
	h.writeUser(w, r, user, err)
}

func (h *UserHandler) UpdateEducation(w http.ResponseWriter, r *http.Request) {
	var req EducationRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdateEducation(r.Context(), chi.URLParam(r, "id"), req.Education)
	h.writeUser(w, r, user, err)
}

func (h *UserHandler) UpdatePortfolio(w http.ResponseWriter, r *http.Request) {
	var req PortfolioRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdatePortfolio(r.Context(), chi.URLParam(r, "id"), req.Portfolio)
	h.writeUser(w, r, user, err)
}

func (h *UserHandler) UpdateWorkExperience(w http.ResponseWriter, r *http.Request) {
	var req WorkExperienceRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdateWorkExperience(r.Context(), chi.URLParam(r, "id"), req.WorkExperience)
	h.writeUser(w, r, user, err)
}

func (h *UserHandler) UpdateSkills(w http.ResponseWriter, r *http.Request) {
	var req SkillsRequest
	if err := decodeJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request")
		return
	}

	user, err := h.users.UpdateSkills(r.Context(), chi.URLParam(r, "id"), req.Skills)
	h.writeUser(w, r, user, err)
}

// List returns every account that is not soft-deleted.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.users.ListActiveUsers(r.Context())
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	out := make([]types.User, 0, len(users))
	for _, user := range users {
		out = append(out, h.present(user))
	}
	writeJSON(w, http.StatusOK, ListUsersResponse{AllUsers: out})
}

func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.Get(r.Context(), chi.URLParam(r, "id"))
	h.writeUser(w, r, user, err)
}

// Delete soft-deletes the account and echoes the updated record.
func (h *UserHandler) Delete(w http.ResponseWriter, r *http.Request) {
	user, err := h.users.SoftDelete(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}

	writeJSON(w, http.StatusOK, DeleteUserResponse{Message: deletedMessage, User: h.present(user)})
}

func (h *UserHandler) writeUser(w http.ResponseWriter, r *http.Request, user types.User, err error) {
	if err != nil {
		writeServiceError(w, r, h.logger, err)
		return
	}
	writeJSON(w, http.StatusOK, h.present(user))
}

func (h *UserHandler) present(user types.User) types.User {
	if h.redact {
		return user.Redacted()
	}
	return user
}
