package domain

import "time"

// User roles
const (
	RoleConsumer = "consumer" // Buys products
	RoleCompany  = "company"  // Owns a company
	RoleAdmin    = "admin"    // Back-office access
)

// User Model
type User struct {
	ID        uint      `gorm:"primaryKey" json:"id"`                                                   // Primary key
	Email     string    `gorm:"size:191;uniqueIndex;not null" json:"email"`                             // Login identifier, stored lowercase
	Name      string    `gorm:"size:150;not null" json:"name"`                                          // Display name
	Phone     string    `gorm:"size:30" json:"phone"`                                                   // Contact phone
	Password  string    `gorm:"not null" json:"-"`                                                      // Hashed password
	Role      string    `gorm:"size:20;not null;default:consumer" json:"role"`                          // Role: consumer, company or admin
	IsActive  bool      `gorm:"not null;default:true" json:"is_active"`                                 // Inactive users cannot log in
	Company   *Company  `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"company,omitempty"` // Zero-or-one company
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// ValidRole reports whether role can be chosen at registration
func ValidRole(role string) bool {
	return role == RoleConsumer || role == RoleCompany
}
