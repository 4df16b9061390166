package entity

import (
	"time"

	"github.com/shopspring/decimal"
)

// Order es una orden pagada del storefront, insumo de solo lectura para la
// emisión: el núcleo de facturación nunca muta su estado.
type Order struct {
	ID            string
	BuyerName     string
	BuyerTaxID    string // CUIT o DNI; vacío para consumidor final
	BuyerTaxClass string // condición frente al IVA del comprador
	Total         decimal.Decimal
	Concept       int // 1=productos, 2=servicios, 3=ambos
	ServiceFrom   *time.Time
	ServiceTo     *time.Time
	PaidAt        *time.Time
	Items         []OrderItem
	CreatedAt     time.Time
}

// OrderItem es una línea de la orden con su importe final (IVA incluido).
type OrderItem struct {
	ID          string
	OrderID     string
	Description string
	Quantity    decimal.Decimal
	UnitPrice   decimal.Decimal // precio final unitario
	IVARate     decimal.Decimal // fracción: 0.21 para 21%
	LineTotal   decimal.Decimal
}

// Paid indica si la orden está pagada y por lo tanto es facturable.
func (o *Order) Paid() bool { return o.PaidAt != nil }
