package model

type Restaurant struct {
	DTO
	Name    string     `gorm:"not null" json:"name"`
	Slug    string     `gorm:"uniqueIndex;size:120" json:"slug"`
	OwnerID *uint      `json:"ownerId,omitempty"`
	Active  bool       `gorm:"not null" json:"active"`
	Address Address    `gorm:"embedded;embeddedPrefix:address_" json:"address"`
	Menu    []MenuItem `gorm:"foreignKey:RestaurantID;constraint:OnDelete:CASCADE" json:"menu"`
}

type MenuItem struct {
	DTO
	RestaurantID uint    `gorm:"not null;index" json:"restaurantId"`
	Name         string  `gorm:"not null" json:"name"`
	Description  string  `json:"description"`
	Price        float64 `gorm:"not null" json:"price"`
	Available    bool    `gorm:"not null" json:"available"`
}

// MenuItem looks up an item of this restaurant's menu by id.
func (r Restaurant) MenuItem(id uint) (MenuItem, bool) {
	for _, item := range r.Menu {
		if item.ID == id {
			return item, true
		}
	}
	return MenuItem{}, false
}
