package model

import (
	"time"

	"gorm.io/gorm"
)

type TokenData struct {
	AccessToken string `json:"accessToken"`
	ExpiresAt   int64  `json:"expiresAt"`
}

type TokenClaim struct {
	UserID   uint   `json:"userId"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type DTO struct {
	ID        uint           `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
	DeletedAt gorm.DeletedAt `gorm:"index" json:"-"`
}

type ResponseCustom struct {
	Rows       any   `json:"rows"`
	Limit      *int  `json:"limit"`
	Page       *int  `json:"page"`
	TotalCount int64 `json:"totalCount"`
}

type Pagination struct {
	Limit *int `json:"limit" query:"limit" validate:"omitempty,min=1,max=100"`
	Page  *int `json:"page" query:"page" validate:"omitempty,min=1"`
}

// Window turns the pagination into an offset/limit pair. A zero limit
// means "no limit".
func (p Pagination) Window() (offset, limit int) {
	if p.Limit == nil || *p.Limit <= 0 {
		return 0, 0
	}
	limit = *p.Limit
	if p.Page != nil && *p.Page > 1 {
		offset = limit * (*p.Page - 1)
	}
	return offset, limit
}

type Coordinates struct {
	Lat float64 `json:"lat" validate:"min=-90,max=90"`
	Lng float64 `json:"lng" validate:"min=-180,max=180"`
}
