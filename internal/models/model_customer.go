package models

import "time"

// Customer links an internal account to a billing provider customer.
// Confirmed only ever moves from false to true.
type Customer struct {
	ID         string    `gorm:"column:id;type:uuid;primary_key" json:"id"`
	AccountID  string    `gorm:"column:account_id;type:varchar(128);not null;uniqueIndex" json:"account_id"`
	CustomerID string    `gorm:"column:customer_id;type:varchar(255);not null;uniqueIndex" json:"customer_id"`
	Confirmed  bool      `gorm:"column:confirmed;not null;default:false" json:"confirmed"`
	Email      string    `gorm:"column:email;type:varchar(255)" json:"email"`
	Name       string    `gorm:"column:name;type:varchar(255)" json:"name"`
	Phone      string    `gorm:"column:phone;type:varchar(64)" json:"phone"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
}

func (Customer) TableName() string { return "customer" }

// ContactFields is the subset of Customer refreshed from provider payloads.
type ContactFields struct {
	Email string `json:"email"`
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

func (c ContactFields) IsZero() bool {
	return c.Email == "" && c.Name == "" && c.Phone == ""
}
