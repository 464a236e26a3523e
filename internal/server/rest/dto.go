package rest

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/dmitrijs2005/recordapi/internal/server/models"
)

type registerRequest struct {
	Username string  `json:"username" binding:"required"`
	Email    string  `json:"email" binding:"required"`
	Password string  `json:"password" binding:"required"`
	FullName *string `json:"full_name"`
}

type loginRequest struct {
	Username string `json:"username" binding:"required"`
	Password string `json:"password" binding:"required"`
}

type refreshRequest struct {
	RefreshToken string `json:"refresh_token" binding:"required"`
}

// nullable tells an absent field from an explicit JSON null. Value is nil
// for both; Set is true only when the key was present.
type nullable[T any] struct {
	Set   bool
	Value *T
}

func (n *nullable[T]) UnmarshalJSON(b []byte) error {
	n.Set = true
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		n.Value = nil
		return nil
	}
	var v T
	if err := json.Unmarshal(b, &v); err != nil {
		return err
	}
	n.Value = &v
	return nil
}

// null reports whether the client asked for the column to be cleared.
func (n nullable[T]) null() bool { return n.Set && n.Value == nil }

type profileRequest struct {
	Email    *string          `json:"email"`
	FullName nullable[string] `json:"full_name"`
}

type changePasswordRequest struct {
	CurrentPassword string `json:"current_password" binding:"required"`
	NewPassword     string `json:"new_password" binding:"required"`
}

type adminUserRequest struct {
	Email       *string          `json:"email"`
	FullName    nullable[string] `json:"full_name"`
	IsActive    *bool            `json:"is_active"`
	IsSuperuser *bool            `json:"is_superuser"`
}

type pageQuery struct {
	Skip  int  `form:"skip"`
	Limit *int `form:"limit"`
}

type dataQuery struct {
	pageQuery
	Status     string `form:"status"`
	NameSearch string `form:"name_search"`
}

type dataCreateRequest struct {
	Name        string         `json:"name" binding:"required"`
	Description *string        `json:"description"`
	Config      models.JSONMap `json:"config"`
	Status      string         `json:"status"`
}

type dataUpdateRequest struct {
	Name        *string                  `json:"name"`
	Description nullable[string]         `json:"description"`
	Config      nullable[models.JSONMap] `json:"config"`
	Status      *string                  `json:"status"`
}

type userResponse struct {
	ID          int64      `json:"id"`
	Username    string     `json:"username"`
	Email       string     `json:"email"`
	FullName    *string    `json:"full_name"`
	IsActive    bool       `json:"is_active"`
	IsSuperuser bool       `json:"is_superuser"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	LastLoginAt *time.Time `json:"last_login_at"`
}

func newUserResponse(u *models.User) userResponse {
	return userResponse{
		ID:          u.ID,
		Username:    u.Username,
		Email:       u.Email,
		FullName:    u.FullName,
		IsActive:    u.IsActive,
		IsSuperuser: u.IsSuperuser,
		CreatedAt:   u.CreatedAt,
		UpdatedAt:   u.UpdatedAt,
		LastLoginAt: u.LastLoginAt,
	}
}

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	TokenType    string `json:"token_type"`
	ExpiresIn    int64  `json:"expires_in"`
}

func newTokenResponse(p *models.TokenPair) tokenResponse {
	return tokenResponse{
		AccessToken:  p.AccessToken,
		RefreshToken: p.RefreshToken,
		TokenType:    p.TokenType,
		ExpiresIn:    p.ExpiresIn,
	}
}

type userListResponse struct {
	Users []userResponse `json:"users"`
	Total int64          `json:"total"`
	Skip  int            `json:"skip"`
	Limit int            `json:"limit"`
}

type recordResponse struct {
	ID          int64          `json:"id"`
	Name        string         `json:"name"`
	Description *string        `json:"description"`
	Config      models.JSONMap `json:"config"`
	Status      string         `json:"status"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
}

func newRecordResponse(r *models.DataRecord) recordResponse {
	return recordResponse{
		ID:          r.ID,
		Name:        r.Name,
		Description: r.Description,
		Config:      r.Config,
		Status:      r.Status,
		CreatedAt:   r.CreatedAt,
		UpdatedAt:   r.UpdatedAt,
	}
}

type recordListResponse struct {
	Total int64            `json:"total"`
	Skip  int              `json:"skip"`
	Limit int              `json:"limit"`
	Data  []recordResponse `json:"data"`
}

type messageResponse struct {
	Message string `json:"message"`
	Revoked *int64 `json:"revoked,omitempty"`
}
