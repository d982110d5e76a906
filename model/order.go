package model

import (
	"math"
	"strings"
	"time"
)

type OrderStatus string

const (
	StatusPending   OrderStatus = "pending"
	StatusConfirmed OrderStatus = "confirmed"
	StatusPreparing OrderStatus = "preparing"
	StatusReady     OrderStatus = "ready"
	StatusPickedUp  OrderStatus = "picked_up"
	StatusDelivered OrderStatus = "delivered"
	StatusCancelled OrderStatus = "cancelled"
)

var orderStatusAliases = map[string]OrderStatus{
	"pending":    StatusPending,
	"ordered":    StatusPending,
	"confirmed":  StatusConfirmed,
	"preparing":  StatusPreparing,
	"ready":      StatusReady,
	"picked_up":  StatusPickedUp,
	"delivering": StatusPickedUp,
	"delivered":  StatusDelivered,
	"cancelled":  StatusCancelled,
	"canceled":   StatusCancelled,
}

// ParseOrderStatus accepts the canonical names plus the legacy aliases
// "ordered" and "delivering".
func ParseOrderStatus(s string) (OrderStatus, bool) {
	st, ok := orderStatusAliases[strings.ToLower(strings.TrimSpace(s))]
	return st, ok
}

func (s OrderStatus) Terminal() bool {
	return s == StatusDelivered || s == StatusCancelled
}

type PaymentStatus string

const (
	PaymentPending   PaymentStatus = "pending"
	PaymentCompleted PaymentStatus = "completed"
	PaymentFailed    PaymentStatus = "failed"
	PaymentRefunded  PaymentStatus = "refunded"
)

type Order struct {
	ID                    string          `gorm:"primaryKey;size:36" json:"id"`
	CustomerID            uint            `gorm:"not null;index:idx_orders_customer_created,priority:1" json:"customerId"`
	RestaurantID          uint            `gorm:"not null;index:idx_orders_restaurant_status,priority:1" json:"restaurantId"`
	Items                 []OrderItem     `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"items"`
	TotalAmount           float64         `gorm:"not null" json:"totalAmount"`
	DeliveryAddress       Address         `gorm:"embedded;embeddedPrefix:delivery_" json:"deliveryAddress"`
	SpecialInstructions   string          `json:"specialInstructions,omitempty"`
	Status                OrderStatus     `gorm:"size:20;not null;index:idx_orders_restaurant_status,priority:2" json:"status"`
	Timeline              []TimelineEntry `gorm:"foreignKey:OrderID;constraint:OnDelete:CASCADE" json:"timeline"`
	Payment               Payment         `gorm:"embedded;embeddedPrefix:payment_" json:"payment"`
	DriverID              *uint           `gorm:"index" json:"driverId,omitempty"`
	Rating                *Rating         `gorm:"serializer:json;type:text" json:"rating,omitempty"`
	CreatedAt             time.Time       `gorm:"index:idx_orders_customer_created,priority:2,sort:desc" json:"createdAt"`
	UpdatedAt             time.Time       `json:"updatedAt"`
	EstimatedDeliveryTime *time.Time      `json:"estimatedDeliveryTime,omitempty"`
	ActualDeliveryTime    *time.Time      `json:"actualDeliveryTime,omitempty"`
}

type OrderItem struct {
	ID           uint    `gorm:"primaryKey" json:"-"`
	OrderID      string  `gorm:"size:36;not null;index" json:"-"`
	Position     int     `gorm:"not null" json:"-"`
	ProductID    uint    `gorm:"not null" json:"productId"`
	Name         string  `gorm:"not null" json:"name"`
	UnitPrice    float64 `gorm:"not null" json:"price"`
	Quantity     int     `gorm:"not null" json:"quantity"`
	Instructions string  `json:"specialInstructions,omitempty"`
}

type TimelineEntry struct {
	ID        uint        `gorm:"primaryKey" json:"-"`
	OrderID   string      `gorm:"size:36;not null;index" json:"-"`
	Seq       int         `gorm:"not null" json:"-"`
	Status    OrderStatus `gorm:"size:20;not null" json:"status"`
	Time      time.Time   `gorm:"not null" json:"time"`
	Completed bool        `gorm:"not null" json:"completed"`
}

type Payment struct {
	PiPaymentID string        `gorm:"index" json:"piPaymentId"`
	Status      PaymentStatus `gorm:"size:20;not null" json:"status"`
	TxID        string        `json:"txid,omitempty"`
}

type Rating struct {
	Food     int    `json:"food"`
	Delivery int    `json:"delivery"`
	Comment  string `json:"comment,omitempty"`
}

type Address struct {
	Street      string      `json:"street"`
	City        string      `json:"city"`
	State       string      `json:"state,omitempty"`
	ZipCode     string      `json:"zipCode"`
	Coordinates Coordinates `gorm:"embedded;embeddedPrefix:coord_" json:"coordinates"`
}

// Cents converts a price to integer cents, rounding half away from zero.
func Cents(amount float64) int64 {
	return int64(math.Round(amount * 100))
}

// TotalOf sums unit price × quantity in integer cents so that the result
// is the closest float to the exact decimal total.
func TotalOf(items []OrderItem) float64 {
	var cents int64
	for _, item := range items {
		cents += Cents(item.UnitPrice) * int64(item.Quantity)
	}
	return float64(cents) / 100
}

// LastEntry returns the most recent timeline entry.
func (o *Order) LastEntry() (TimelineEntry, bool) {
	if len(o.Timeline) == 0 {
		return TimelineEntry{}, false
	}
	return o.Timeline[len(o.Timeline)-1], true
}

// Clone returns a deep copy; mutations on the copy never reach o.
func (o *Order) Clone() *Order {
	if o == nil {
		return nil
	}
	c := *o
	c.Items = append([]OrderItem(nil), o.Items...)
	c.Timeline = append([]TimelineEntry(nil), o.Timeline...)
	if o.DriverID != nil {
		id := *o.DriverID
		c.DriverID = &id
	}
	if o.Rating != nil {
		r := *o.Rating
		c.Rating = &r
	}
	if o.EstimatedDeliveryTime != nil {
		t := *o.EstimatedDeliveryTime
		c.EstimatedDeliveryTime = &t
	}
	if o.ActualDeliveryTime != nil {
		t := *o.ActualDeliveryTime
		c.ActualDeliveryTime = &t
	}
	return &c
}

type CreateOrderInput struct {
	RestaurantID        uint             `json:"restaurantId" validate:"required,gt=0"`
	Items               []OrderItemInput `json:"items" validate:"required,min=1,max=50,dive"`
	DeliveryAddress     AddressInput     `json:"deliveryAddress" validate:"required"`
	SpecialInstructions string           `json:"specialInstructions" validate:"max=500"`
}

type OrderItemInput struct {
	ProductID           uint   `json:"productId" validate:"required,gt=0"`
	Quantity            int    `json:"quantity" validate:"required,min=1,max=99"`
	SpecialInstructions string `json:"specialInstructions" validate:"max=200"`
}

type AddressInput struct {
	Street      string      `json:"street" validate:"required,max=200"`
	City        string      `json:"city" validate:"required,max=100"`
	State       string      `json:"state" validate:"max=100"`
	ZipCode     string      `json:"zipCode" validate:"required,max=20"`
	Coordinates Coordinates `json:"coordinates"`
}

type UpdateStatusInput struct {
	Status   string `json:"status" validate:"required"`
	DriverID *uint  `json:"driverId" validate:"omitempty,gt=0"`
}

type CompletePaymentInput struct {
	TxID string `json:"txid" validate:"required,max=128"`
}

type RateOrderInput struct {
	FoodRating     int    `json:"foodRating" validate:"required,min=1,max=5"`
	DeliveryRating int    `json:"deliveryRating" validate:"required,min=1,max=5"`
	Comment        string `json:"comment" validate:"max=1000"`
}

type FilterOrderInput struct {
	Pagination
	Status string `json:"status" query:"status"`
}

type DriverLocationInput struct {
	OrderID  string      `json:"orderId" validate:"required"`
	Location Coordinates `json:"location"`
}
