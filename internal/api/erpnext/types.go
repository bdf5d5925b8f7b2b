package erpnext

// Raw document shapes returned by the ERPNext REST resource API. Numeric
// fields are decoded as `any` because upstream may deliver them as
// numbers, strings, or omit them entirely; the extractor normalizes them
// through a safe conversion that keeps "missing" distinct from zero.

// Invoice is a raw Sales Invoice record.
type Invoice struct {
	Name        string `json:"name"`
	Customer    string `json:"customer"`
	PostingDate string `json:"posting_date"`
	DueDate     string `json:"due_date"`
	Currency    string `json:"currency"`

	Items   []InvoiceItem `json:"items"`
	Taxes   []TaxRow      `json:"taxes"`
	Charges []ChargeRow   `json:"charges"`

	NetTotal           any `json:"net_total"`
	GrandTotal         any `json:"grand_total"`
	RoundingAdjustment any `json:"rounding_adjustment"`
	DocStatus          any `json:"docstatus"`

	Remarks string `json:"remarks"`

	// Sales order linkage, in resolution priority order. Different
	// upstream versions populate different fields.
	SalesOrder               string           `json:"sales_order"`
	SalesOrderList           []string         `json:"sales_order_list"`
	LinkedDocuments          []LinkedDocument `json:"linked_document"`
	InvoiceAgainstSalesOrder string           `json:"invoice_against_sales_order"`
}

// InvoiceItem is one raw invoice line.
type InvoiceItem struct {
	ItemCode    string `json:"item_code"`
	ItemName    string `json:"item_name"`
	Description string `json:"description"`
	Qty         any    `json:"qty"`
	Rate        any    `json:"rate"`
	Amount      any    `json:"amount"`

	// SalesOrder is the per-line order reference some versions carry.
	SalesOrder string `json:"sales_order"`
}

// TaxRow is one raw tax line.
type TaxRow struct {
	TaxType     string `json:"tax_type"`
	Rate        any    `json:"rate"`
	TaxAmount   any    `json:"tax_amount"`
	Description string `json:"description"`
}

// ChargeRow is one raw charge or adjustment line.
type ChargeRow struct {
	ChargeType  string `json:"charge_type"`
	Amount      any    `json:"amount"`
	Description string `json:"description"`
}

// LinkedDocument is a generic cross-document reference.
type LinkedDocument struct {
	DocType string `json:"doctype"`
	Name    string `json:"name"`
}

// SalesOrder is a raw Sales Order record.
type SalesOrder struct {
	Name            string `json:"name"`
	Customer        string `json:"customer"`
	TransactionDate string `json:"transaction_date"`
	Currency        string `json:"currency"`

	Items []InvoiceItem `json:"items"`
	Taxes []TaxRow      `json:"taxes"`

	NetTotal   any `json:"net_total"`
	GrandTotal any `json:"grand_total"`
	DocStatus  any `json:"docstatus"`

	DeliveryStatus string `json:"delivery_status"`
	BillingStatus  string `json:"billing_status"`

	Remarks string `json:"remarks"`
}

// Customer is a raw Customer record.
type Customer struct {
	Name         string `json:"name"`
	CustomerName string `json:"customer_name"`
	Email        string `json:"email_id"`
	CreditLimit  any    `json:"credit_limit"`
	Outstanding  any    `json:"outstanding"`
	Country      string `json:"country"`
	Territory    string `json:"territory"`
	PaymentTerms string `json:"payment_terms"`
}

// envelope wraps every resource response.
type envelope[T any] struct {
	Data *T `json:"data"`
}
