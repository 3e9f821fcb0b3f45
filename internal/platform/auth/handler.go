package auth

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"LEMS-backend/internal/platform/api"
)

type AuthHandler struct{ svc AuthService }

func RegisterRoutes(r gin.IRoutes, svc AuthService) {
	h := &AuthHandler{svc: svc}
	r.POST("/login", h.Login)
	r.POST("/register", h.Register)
	r.DELETE("/accounts/:id", h.DeleteAccount)
	r.PATCH("/accounts/:id", h.ChangeUsername) // ユーザー名変更 = id変更
}

type LoginRequest struct {
	ID       string `json:"id" binding:"required"`
	Password string `json:"password" binding:"required"`
}

func (h *AuthHandler) Login(c *gin.Context) {
	var req LoginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}

	token, err := h.svc.Login(c.Request.Context(), req.ID, req.Password)
	if err != nil {
		// 存在しないIDとパスワード違いは区別しない
		api.FailCode(c, http.StatusUnauthorized, api.CodeUnauthenticated, "IDまたはパスワードが間違っています")
		return
	}

	api.OK(c, http.StatusOK, gin.H{"token": token})
}

type RegisterRequest struct {
	ID       string  `json:"id" binding:"required"`
	Password string  `json:"password" binding:"required"`
	Role     *string `json:"role,omitempty"` // 未指定なら user
}

func (h *AuthHandler) Register(c *gin.Context) {
	var req RegisterRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}

	role := "user"
	if req.Role != nil && *req.Role != "" {
		role = *req.Role
	}

	if err := h.svc.Register(c.Request.Context(), req.ID, req.Password, role); err != nil {
		if err == ErrAlreadyExists {
			api.FailCode(c, http.StatusConflict, api.CodeConflict, "id already exists")
			return
		}
		api.FailCode(c, http.StatusInternalServerError, api.CodeInternal, "register failed")
		return
	}

	api.OK(c, http.StatusCreated, gin.H{"id": req.ID})
}

func (h *AuthHandler) DeleteAccount(c *gin.Context) {
	id := c.Param("id")

	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		if err == ErrNotFound {
			api.FailCode(c, http.StatusNotFound, api.CodeNotFound, "account not found")
			return
		}
		api.FailCode(c, http.StatusInternalServerError, api.CodeInternal, "delete failed")
		return
	}

	api.OK(c, http.StatusOK, gin.H{"id": id})
}

type ChangeUsernameRequest struct {
	NewID string `json:"new_id" binding:"required"`
}

func (h *AuthHandler) ChangeUsername(c *gin.Context) {
	oldID := c.Param("id")

	var req ChangeUsernameRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}

	if err := h.svc.ChangeID(c.Request.Context(), oldID, req.NewID); err != nil {
		if err == ErrNotFound {
			api.FailCode(c, http.StatusNotFound, api.CodeNotFound, "account not found")
			return
		}
		if err == ErrAlreadyExists {
			api.FailCode(c, http.StatusConflict, api.CodeConflict, "new id already exists")
			return
		}
		api.FailCode(c, http.StatusInternalServerError, api.CodeInternal, "change id failed")
		return
	}

	api.OK(c, http.StatusOK, gin.H{"id": req.NewID})
}
