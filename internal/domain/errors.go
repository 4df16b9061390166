package domain

import (
	"errors"
	"fmt"
)

// Errores de dominio (sin dependencias externas).
var (
	ErrNotFound           = errors.New("recurso no encontrado")
	ErrUserNotFound       = errors.New("usuario no encontrado")
	ErrEmailAlreadyExists = errors.New("el email ya está registrado")
	ErrInvalidInput       = errors.New("entrada inválida")
	ErrDuplicate          = errors.New("recurso duplicado")
	ErrUnauthorized       = errors.New("no autorizado")
	ErrForbidden          = errors.New("acceso denegado")
	ErrOrderNotPaid       = errors.New("la orden no está pagada")

	// ErrAuthenticationFailed: el firmador o el login WSAA fallaron antes de
	// reservar número. Reintentable tras una espera.
	ErrAuthenticationFailed = errors.New("autenticación con AFIP fallida")

	// ErrMustReconcile: el envío terminó indeterminado (timeout, respuesta
	// ilegible). No se reintenta automáticamente: la próxima emisión debe
	// conciliar contra el último número autorizado por AFIP.
	ErrMustReconcile = errors.New("resultado indeterminado: conciliar contra AFIP antes de reintentar")
)

// RejectionError: AFIP rechazó explícitamente el comprobante. El número
// reservado no fue consumido, por lo que un reintento con datos corregidos
// vuelve a resolver el mismo número.
type RejectionError struct {
	Code    string
	Message string
}

func (e *RejectionError) Error() string {
	return fmt.Sprintf("comprobante rechazado por AFIP [%s]: %s", e.Code, e.Message)
}
