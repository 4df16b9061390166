package dto

import "time"

// InvoiceResponse salida de un comprobante autorizado.
type InvoiceResponse struct {
	ID          string    `json:"id"`
	OrderID     string    `json:"order_id"`
	Number      string    `json:"number"` // formato legal 0001-00000042
	PointOfSale int       `json:"point_of_sale"`
	VoucherType int       `json:"voucher_type"`
	Letter      string    `json:"letter"` // A, B o C
	CAE         string    `json:"cae"`
	CAEExpiry   time.Time `json:"cae_expiry"`
	BuyerName   string    `json:"buyer_name"`
	NetAmount   string    `json:"net_amount"`
	IVAAmount   string    `json:"iva_amount"`
	TotalAmount string    `json:"total_amount"`
	IssuedAt    time.Time `json:"issued_at"`
}

// HealthResponse salida del health check contra los servidores de AFIP.
type HealthResponse struct {
	Status     string `json:"status"` // ok | degraded
	AppServer  string `json:"app_server"`
	DbServer   string `json:"db_server"`
	AuthServer string `json:"auth_server"`
}
