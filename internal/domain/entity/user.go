package entity

import "time"

// Roles de usuario del servicio de facturación.
const (
	RoleAdmin      = "admin"
	RoleFacturador = "facturador"
)

// User es un operador del servicio (login del backoffice).
type User struct {
	ID           string
	Email        string
	PasswordHash string
	Name         string
	Role         string
	Status       string // "active" | "disabled"
	CreatedAt    time.Time
	UpdatedAt    time.Time
}
