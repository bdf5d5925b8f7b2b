package domain

import "time"

// SnapshotStatus reports whether an extraction produced complete data.
type SnapshotStatus string

const (
	SnapshotSuccess    SnapshotStatus = "SUCCESS"
	SnapshotIncomplete SnapshotStatus = "INCOMPLETE"
	SnapshotError      SnapshotStatus = "ERROR"
)

// ERPSnapshot is an immutable point-in-time read of the records relevant
// to one incident. It is built fresh on every resolution attempt, never
// cached, and consumed once by either the rule path or the AI path.
//
// Numeric fields inside the documents are pointers: nil means the
// upstream value was missing or non-numeric, which must stay
// distinguishable from zero.
type ERPSnapshot struct {
	Status SnapshotStatus `json:"status"`

	Invoice    *Invoice    `json:"invoice,omitempty"`
	SalesOrder *SalesOrder `json:"sales_order,omitempty"`
	Customer   *Customer   `json:"customer,omitempty"`

	// MissingFields lists dotted-path identifiers for absent critical
	// data, e.g. "invoice.grand_total" or "sales_order_not_linked".
	MissingFields []string `json:"missing_fields"`

	// ExtractionNotes carries data-quality notes for diagnostics.
	ExtractionNotes []string `json:"extraction_notes,omitempty"`

	// Error describes why the fetch itself failed (Status == ERROR).
	Error string `json:"error,omitempty"`

	ExtractedAt time.Time `json:"extracted_at"`
}

// MissingOrderLink is the missing-field marker recorded when no sales
// order could be resolved from the invoice.
const MissingOrderLink = "sales_order_not_linked"

// HasMissing reports whether the snapshot recorded the given
// missing-field marker.
func (s *ERPSnapshot) HasMissing(field string) bool {
	for _, f := range s.MissingFields {
		if f == field {
			return true
		}
	}
	return false
}

// Invoice is a normalized sales invoice record.
type Invoice struct {
	ID          string `json:"id"`
	Customer    string `json:"customer"`
	Currency    string `json:"currency"`
	PostingDate string `json:"posting_date,omitempty"`
	DueDate     string `json:"due_date,omitempty"`

	Items   []LineItem   `json:"items"`
	Taxes   []TaxLine    `json:"taxes,omitempty"`
	Charges []ChargeLine `json:"charges,omitempty"`

	Subtotal           *float64 `json:"subtotal"`
	GrandTotal         *float64 `json:"grand_total"`
	RoundingAdjustment *float64 `json:"rounding_adjustment,omitempty"`

	// DocStatus is the upstream status code: 0=draft, 1=submitted, 2=cancelled.
	DocStatus *float64 `json:"doc_status"`
	Remarks   string   `json:"remarks,omitempty"`
}

// SalesOrder is a normalized sales order record, shaped like Invoice.
type SalesOrder struct {
	ID              string `json:"id"`
	Customer        string `json:"customer"`
	Currency        string `json:"currency"`
	TransactionDate string `json:"transaction_date,omitempty"`

	Items []LineItem `json:"items"`
	Taxes []TaxLine  `json:"taxes,omitempty"`

	Subtotal   *float64 `json:"subtotal"`
	GrandTotal *float64 `json:"grand_total"`

	DeliveryStatus string `json:"delivery_status,omitempty"`
	BillingStatus  string `json:"billing_status,omitempty"`

	DocStatus *float64 `json:"doc_status"`
	Remarks   string   `json:"remarks,omitempty"`
}

// Customer carries contact and credit fields for the invoiced party.
type Customer struct {
	ID           string   `json:"id"`
	Name         string   `json:"name"`
	Email        string   `json:"email,omitempty"`
	CreditLimit  *float64 `json:"credit_limit"`
	Outstanding  *float64 `json:"outstanding"`
	Country      string   `json:"country,omitempty"`
	Territory    string   `json:"territory,omitempty"`
	PaymentTerms string   `json:"payment_terms,omitempty"`
}

// LineItem is a single invoice or order line.
type LineItem struct {
	ItemCode    string   `json:"item_code"`
	ItemName    string   `json:"item_name,omitempty"`
	Quantity    *float64 `json:"quantity"`
	Rate        *float64 `json:"rate"`
	Amount      *float64 `json:"amount"`
	Description string   `json:"description,omitempty"`
}

// TaxLine is a tax row attached to a document.
type TaxLine struct {
	TaxType string   `json:"tax_type"`
	Rate    *float64 `json:"rate"`
	Amount  *float64 `json:"amount"`
}

// ChargeLine is an extra charge or adjustment row.
type ChargeLine struct {
	ChargeType string   `json:"charge_type"`
	Amount     *float64 `json:"amount"`
}
