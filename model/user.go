package model

import (
	"time"

	"github.com/pielancer314/PizzaForPi/constants"
)

type User struct {
	DTO
	PiUserID          string       `gorm:"uniqueIndex;not null" json:"piUserId"`
	Username          string       `gorm:"not null" json:"username"`
	Email             string       `gorm:"uniqueIndex;not null" json:"email"`
	Role              string       `gorm:"size:32;not null;index" json:"role"`
	RestaurantID      *uint        `json:"restaurantId,omitempty"`
	Active            bool         `gorm:"not null" json:"active"`
	CurrentLocation   *Coordinates `gorm:"serializer:json;type:text" json:"currentLocation,omitempty"`
	LocationUpdatedAt *time.Time   `json:"locationUpdatedAt,omitempty"`
	LastLogin         *time.Time   `json:"lastLogin,omitempty"`
}

// Principal is the authenticated caller as resolved by the identity
// directory. It is what authorization decisions are made against.
type Principal struct {
	UserID       uint   `json:"userId"`
	Username     string `json:"username"`
	Role         string `json:"role"`
	RestaurantID *uint  `json:"restaurantId,omitempty"`
}

func (u User) Principal() Principal {
	return Principal{
		UserID:       u.ID,
		Username:     u.Username,
		Role:         u.Role,
		RestaurantID: u.RestaurantID,
	}
}

func (p Principal) IsAdmin() bool {
	return p.Role == constants.ROLE_ADMIN
}

func (p Principal) IsDriver() bool {
	return p.Role == constants.ROLE_DRIVER
}

// WorksAt reports whether p is owner or staff of the given restaurant.
func (p Principal) WorksAt(restaurantID uint) bool {
	if p.Role != constants.ROLE_RESTAURANT_OWNER && p.Role != constants.ROLE_RESTAURANT_STAFF {
		return false
	}
	return p.RestaurantID != nil && *p.RestaurantID == restaurantID
}

type PiLoginInput struct {
	AccessToken string `json:"accessToken" validate:"required"`
}
