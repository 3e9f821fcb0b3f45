package items

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

	r.POST("/items", h.CreateItem)
	r.GET("/items", h.ListItems)
	r.GET("/items/:item_ulid", h.GetItem)
	r.PUT("/items/:item_ulid", h.UpdateItem)
	r.DELETE("/items/:item_ulid", h.DeleteItem)

	// スキャン端末からの照会（全角読取値も受ける）
	r.GET("/items/code/:code", h.GetItemByCode)
}

func (h *Handler) CreateItem(c *gin.Context) {
	var req CreateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json or missing required fields")
		return
	}
	res, err := h.svc.CreateItem(c.Request.Context(), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	c.Header("Location", "/items/"+res.ItemULID)
	api.OK(c, http.StatusCreated, res)
}

func (h *Handler) GetItem(c *gin.Context) {
	res, err := h.svc.GetItem(c.Request.Context(), c.Param("item_ulid"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) GetItemByCode(c *gin.Context) {
	res, err := h.svc.GetItemByCode(c.Request.Context(), c.Param("code"))
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) ListItems(c *gin.Context) {
	var f ItemFilter
	if v := c.Query("q"); v != "" {
		f.Query = &v
	}
	if v := c.Query("status"); v != "" {
		st := Status(v)
		f.Status = &st
	}
	if v := c.Query("condition"); v != "" {
		cd := Condition(v)
		f.Condition = &cd
	}
	if v := c.Query("borrowable"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			f.Borrowable = &b
		}
	}
	p := Page{
		Limit:  atoiDef(c.Query("limit"), 50),
		Offset: atoiDef(c.Query("offset"), 0),
		Order:  strings.ToLower(c.DefaultQuery("order", "desc")),
	}
	rows, total, err := h.svc.ListItems(c.Request.Context(), f, p)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"items": rows, "total": total, "next_offset": nextOffset(total, p)})
}

func (h *Handler) UpdateItem(c *gin.Context) {
	var req UpdateItemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		api.FailCode(c, http.StatusBadRequest, api.CodeInvalidArgument, "invalid json")
		return
	}
	res, err := h.svc.UpdateItem(c.Request.Context(), c.Param("item_ulid"), req)
	if err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, res)
}

func (h *Handler) DeleteItem(c *gin.Context) {
	if err := h.svc.DeleteItem(c.Request.Context(), c.Param("item_ulid")); err != nil {
		api.Fail(c, err)
		return
	}
	api.OK(c, http.StatusOK, gin.H{"deleted": true})
}

// ---- helpers ----

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

func nextOffset(total int64, p Page) int {
	next := p.Offset + p.Limit
	if int64(next) >= total {
		return 0
	}
	return next
}
