package rest

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/dmitrijs2005/recordapi/internal/common"
	"github.com/dmitrijs2005/recordapi/internal/server/models"
	"github.com/dmitrijs2005/recordapi/internal/server/services"
)

func (h *Handler) register(c *gin.Context) {
	var req registerRequest
	if !h.bindJSON(c, &req) {
		return
	}

	u, err := h.auth.Register(c.Request.Context(), services.RegisterInput{
		Username: req.Username,
		Email:    req.Email,
		Password: req.Password,
		FullName: req.FullName,
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusCreated, newUserResponse(u))
}

func (h *Handler) login(c *gin.Context) {
	var req loginRequest
	if !h.bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Login(c.Request.Context(), req.Username, req.Password, clientMeta(c))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) {
			h.log.Info(c.Request.Context(), "login rejected", "client_ip", c.ClientIP())
		}
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

// refresh reports every rotation failure as one generic 401.
func (h *Handler) refresh(c *gin.Context) {
	var req refreshRequest
	if !h.bindJSON(c, &req) {
		return
	}

	pair, err := h.auth.Refresh(c.Request.Context(), req.RefreshToken, clientMeta(c))
	if err != nil {
		if errors.Is(err, common.ErrorUnauthorized) || errors.Is(err, common.ErrorNotFound) {
			err = errInvalidRefreshToken
		}
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newTokenResponse(pair))
}

func (h *Handler) logout(c *gin.Context) {
	var req refreshRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.auth.Logout(c.Request.Context(), principal(c), req.RefreshToken); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "successfully logged out"})
}

func (h *Handler) logoutAll(c *gin.Context) {
	n, err := h.auth.LogoutAll(c.Request.Context(), principal(c))
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "logged out from all sessions", Revoked: &n})
}

func (h *Handler) me(c *gin.Context) {
	c.JSON(http.StatusOK, newUserResponse(principal(c)))
}

func (h *Handler) updateMe(c *gin.Context) {
	var req profileRequest
	if !h.bindJSON(c, &req) {
		return
	}

	u, err := h.auth.UpdateProfile(c.Request.Context(), principal(c).ID, models.ProfileUpdate{
		Email:         req.Email,
		FullName:      req.FullName.Value,
		ClearFullName: req.FullName.null(),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}

func (h *Handler) changePassword(c *gin.Context) {
	var req changePasswordRequest
	if !h.bindJSON(c, &req) {
		return
	}

	if err := h.auth.ChangePassword(c.Request.Context(), principal(c).ID, req.CurrentPassword, req.NewPassword); err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "password changed successfully"})
}

func (h *Handler) listUsers(c *gin.Context) {
	var q pageQuery
	if !h.bindQuery(c, &q) {
		return
	}
	page, err := q.page()
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	list, total, page, err := h.auth.ListUsers(c.Request.Context(), principal(c), page)
	if err != nil {
		writeError(c, h.log, err)
		return
	}

	resp := userListResponse{Users: make([]userResponse, 0, len(list)), Total: total, Skip: page.Skip, Limit: page.Limit}
	for _, u := range list {
		resp.Users = append(resp.Users, newUserResponse(u))
	}
	c.JSON(http.StatusOK, resp)
}

func (h *Handler) getUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	u, err := h.auth.GetUser(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}

func (h *Handler) updateUser(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}
	var req adminUserRequest
	if !h.bindJSON(c, &req) {
		return
	}

	u, err := h.auth.AdminUpdateUser(c.Request.Context(), principal(c), id, models.AdminUserUpdate{
		Email:         req.Email,
		FullName:      req.FullName.Value,
		IsActive:      req.IsActive,
		IsSuperuser:   req.IsSuperuser,
		ClearFullName: req.FullName.null(),
	})
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, newUserResponse(u))
}

func (h *Handler) revokeUserTokens(c *gin.Context) {
	id, ok := h.pathID(c)
	if !ok {
		return
	}

	n, err := h.auth.RevokeUserTokens(c.Request.Context(), principal(c), id)
	if err != nil {
		writeError(c, h.log, err)
		return
	}
	c.JSON(http.StatusOK, messageResponse{Message: "tokens revoked", Revoked: &n})
}
