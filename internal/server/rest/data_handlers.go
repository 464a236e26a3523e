package rest

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/services"
)

func (h *Handler) createRecord(c *gin.Context) {
	var req dataCreateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.data.Create(c.Request.Context(), principal(c), services.DataInput{
		Name:        req.Name,
		Description: req.Description,
		Config:      req.Config,
		Status:      req.Status,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newRecordResponse(rec))
}

func (h *Handler) listRecords(c *gin.Context) {
	var q dataQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := q.page()
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	res, err := h.data.List(c.Request.Context(), principal(c), models.DataRecordFilter{
		Page:       page,
		Status:     q.Status,
		NameSearch: q.NameSearch,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := recordListResponse{Total: res.Total, Skip: res.Skip, Limit: res.Limit, Data: make([]recordResponse, 0, len(res.Data))}
	for _, r := range res.Data {
		resp.Data = append(resp.Data, newRecordResponse(r))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getRecord(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	rec, err := h.data.Get(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newRecordResponse(rec))
}

func (h *Handler) updateRecord(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req dataUpdateRequest
	if !h.bindJSON(c, &req) {
		return
	}

	rec, err := h.data.Update(c.Request.Context(), principal(c), id, models.DataRecordUpdate{
		Name:             req.Name,
		Description:      req.Description.Value,
		Config:           req.Config.Value,
		Status:           req.Status,
		ClearDescription: req.Description.null(),
		ClearConfig:      req.Config.null(),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newRecordResponse(rec))
}

func (h *Handler) deleteRecord(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	if err := h.data.Delete(c.Request.Context(), principal(c), id); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "record deleted successfully"})
}
