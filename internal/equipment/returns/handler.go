package returns

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/gin-gonic/gin"

	"LEMS-backend/internal/platform/api"
)

type Handler struct{ svc *Service }

func RegisterRoutes(r gin.IRoutes, svc *Service) {
	h := &Handler{svc: svc}

	r.POST("/returning", h.Create)
	r.GET("/returning", h.List)
	r.GET("/returning/:return_ulid", h.Get)
	r.PATCH("/returning/:return_ulid", h.UpdateDecision)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}
	res, msg, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.Header("Location", "/returning/"+res.ReturnULID)
	api.OKMessage(c, http.StatusCreated, res, msg)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("return_ulid"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var f Filter
	if v := c.Query("borrow_ulid"); v != "" {
		f.BorrowULID = &v
	}
	if v := c.Query("status"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	}
	rows, total, err := h.svc.List(c.Request.Context(), f, p)
	if err != nil {
		api.Fail(c, err)
		return
	}
	next := p.Offset + p.Limit
	if int64(next) >= total {
		next = 0
	}
	api.OK(c, http.StatusOK, gin.H{"items": rows, "total": total, "next_offset": next})
}

func (h *Handler) UpdateDecision(c *gin.Context) {
	var req UpdateReturnRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json")
		return
	}
	res, err := h.svc.UpdateDecision(c.Request.Context(), c.Param("return_ulid"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func atoiDef(s string, d int) int {
	if s == "" {
		return d
	}
	v, err := strconv.Atoi(s)
	if err != nil {
		return d
	}
	return v
}
