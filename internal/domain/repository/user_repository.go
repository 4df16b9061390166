package repository

import "github.com/tiendago/facturacion-api/internal/domain/entity"

// UserRepository puerto de persistencia de usuarios (login del backoffice).
type UserRepository interface {
	Create(user *entity.User) error
	GetByID(id string) (*entity.User, error)
	FindByEmail(email string) (*entity.User, error)
}
