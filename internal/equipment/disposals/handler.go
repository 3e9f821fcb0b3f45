package disposals

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

	r.POST("/disposals", h.Create)
	r.GET("/disposals", h.List)
	r.GET("/disposals/:disposal_ulid", h.Get)
	r.PUT("/disposals/:disposal_ulid", h.Update)
	r.DELETE("/disposals/:disposal_ulid", h.Delete)
}

func (h *Handler) Create(c *gin.Context) {
	var req CreateDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}
	res, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.Header("Location", "/disposals/"+res.DisposalULID)
	api.OK(c, http.StatusCreated, res)
}

func (h *Handler) Get(c *gin.Context) {
	res, err := h.svc.Get(c.Request.Context(), c.Param("disposal_ulid"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) List(c *gin.Context) {
	var f Filter
	if v := c.Query("item_ulid"); v != "" {
		f.ItemULID = &v
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

func (h *Handler) Update(c *gin.Context) {
	var req UpdateDisposalRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json")
		return
	}
	res, err := h.svc.Update(c.Request.Context(), c.Param("disposal_ulid"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) Delete(c *gin.Context) {
	if err := h.svc.Delete(c.Request.Context(), c.Param("disposal_ulid")); err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"deleted": true})
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
