// Package extract builds validated financial snapshots from the external
// record system. It owns all data extraction: fetching the invoice, its
// linked sales order and customer, normalizing numerics, and marking
// missing critical fields. Pure extraction and validation, no business
// logic.
package extract

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/replaystack/incident-replay/internal/api/erpnext"
	"github.com/replaystack/incident-replay/internal/domain"
)

// RecordClient is the subset of the record system the extractor needs.
// A 404-equivalent surfaces as (nil, nil), not an error.
type RecordClient interface {
	GetInvoice(ctx context.Context, name string) (*erpnext.Invoice, error)
	GetSalesOrder(ctx context.Context, name string) (*erpnext.SalesOrder, error)
	GetCustomer(ctx context.Context, name string) (*erpnext.Customer, error)
}

// Option configures the extractor.
type Option func(*Extractor)

// WithNow overrides the clock, for tests.
func WithNow(now func() time.Time) Option {
	return func(e *Extractor) {
		e.now = now
	}
}

// Extractor fetches and validates financial data for one incident.
type Extractor struct {
	client RecordClient
	logger *slog.Logger
	now    func() time.Time
}

// New creates an extractor backed by the given record client.
func New(client RecordClient, logger *slog.Logger, opts ...Option) *Extractor {
	e := &Extractor{
		client: client,
		logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Extract builds a fresh snapshot for the invoice behind erpReference.
// It never returns an error: fetch failures produce an ERROR snapshot,
// missing critical data an INCOMPLETE one.
func (e *Extractor) Extract(ctx context.Context, erpReference string) *domain.ERPSnapshot {
	if strings.TrimSpace(erpReference) == "" {
		return e.errorSnapshot("erp reference is empty", nil)
	}

	e.logger.Info("starting extraction", slog.String("invoice", erpReference))

	invoice, err := e.client.GetInvoice(ctx, erpReference)
	if err != nil {
		return e.errorSnapshot(fmt.Sprintf("invoice %s fetch failed: %v", erpReference, err), nil)
	}
	if invoice == nil {
		return e.errorSnapshot(fmt.Sprintf("invoice %s not found", erpReference), []string{"invoice"})
	}

	var order *erpnext.SalesOrder
	if orderRef := resolveOrderReference(invoice); orderRef != "" {
		order, err = e.client.GetSalesOrder(ctx, orderRef)
		if err != nil {
			// A broken order fetch degrades to "not linked" rather than
			// failing the whole extraction; the marker records the gap.
			e.logger.Warn("sales order fetch failed",
				slog.String("order", orderRef), slog.String("error", err.Error()))
			order = nil
		}
	}

	var customer *erpnext.Customer
	if invoice.Customer != "" {
		customer, err = e.client.GetCustomer(ctx, invoice.Customer)
		if err != nil {
			return e.errorSnapshot(fmt.Sprintf("customer %s fetch failed: %v", invoice.Customer, err), nil)
		}
	}

	missing := validateCompleteness(invoice, order)
	status := domain.SnapshotSuccess
	if len(missing) > 0 {
		status = domain.SnapshotIncomplete
	}

	snap := &domain.ERPSnapshot{
		Status:        status,
		Invoice:       normalizeInvoice(invoice),
		SalesOrder:    normalizeOrder(order),
		Customer:      normalizeCustomer(customer),
		MissingFields: missing,
		ExtractedAt:   e.now().UTC(),
	}
	snap.ExtractionNotes = buildNotes(snap)

	e.logger.Info("extraction complete",
		slog.String("invoice", erpReference),
		slog.String("status", string(status)),
		slog.Int("missing_fields", len(missing)))

	return snap
}

// resolveOrderReference finds the linked sales order, trying the
// explicit fallbacks in priority order. First match wins; no guessing
// beyond these.
func resolveOrderReference(inv *erpnext.Invoice) string {
	if inv.SalesOrder != "" {
		return inv.SalesOrder
	}
	for _, item := range inv.Items {
		if item.SalesOrder != "" {
			return item.SalesOrder
		}
	}
	if len(inv.SalesOrderList) > 0 && inv.SalesOrderList[0] != "" {
		return inv.SalesOrderList[0]
	}
	for _, doc := range inv.LinkedDocuments {
		if doc.DocType == "Sales Order" && doc.Name != "" {
			return doc.Name
		}
	}
	if inv.InvoiceAgainstSalesOrder != "" {
		return inv.InvoiceAgainstSalesOrder
	}
	return ""
}

// validateCompleteness enumerates missing critical fields as dotted
// paths. An unlinked order is itself a missing-field condition.
func validateCompleteness(inv *erpnext.Invoice, order *erpnext.SalesOrder) []string {
	missing := []string{}

	if len(inv.Items) == 0 {
		missing = append(missing, "invoice.items")
	}
	if SafeFloat(inv.GrandTotal) == nil {
		missing = append(missing, "invoice.grand_total")
	}
	if inv.Customer == "" {
		missing = append(missing, "invoice.customer")
	}

	if order != nil {
		if len(order.Items) == 0 {
			missing = append(missing, "sales_order.items")
		}
		if SafeFloat(order.GrandTotal) == nil {
			missing = append(missing, "sales_order.grand_total")
		}
	} else {
		missing = append(missing, domain.MissingOrderLink)
	}

	return missing
}

func normalizeInvoice(inv *erpnext.Invoice) *domain.Invoice {
	return &domain.Invoice{
		ID:                 inv.Name,
		Customer:           inv.Customer,
		Currency:           inv.Currency,
		PostingDate:        inv.PostingDate,
		DueDate:            inv.DueDate,
		Items:              normalizeItems(inv.Items),
		Taxes:              normalizeTaxes(inv.Taxes),
		Charges:            normalizeCharges(inv.Charges),
		Subtotal:           SafeFloat(inv.NetTotal),
		GrandTotal:         SafeFloat(inv.GrandTotal),
		RoundingAdjustment: SafeFloat(inv.RoundingAdjustment),
		DocStatus:          SafeFloat(inv.DocStatus),
		Remarks:            inv.Remarks,
	}
}

func normalizeOrder(order *erpnext.SalesOrder) *domain.SalesOrder {
	if order == nil {
		return nil
	}
	return &domain.SalesOrder{
		ID:              order.Name,
		Customer:        order.Customer,
		Currency:        order.Currency,
		TransactionDate: order.TransactionDate,
		Items:           normalizeItems(order.Items),
		Taxes:           normalizeTaxes(order.Taxes),
		Subtotal:        SafeFloat(order.NetTotal),
		GrandTotal:      SafeFloat(order.GrandTotal),
		DeliveryStatus:  order.DeliveryStatus,
		BillingStatus:   order.BillingStatus,
		DocStatus:       SafeFloat(order.DocStatus),
		Remarks:         order.Remarks,
	}
}

func normalizeCustomer(cust *erpnext.Customer) *domain.Customer {
	if cust == nil {
		return nil
	}
	return &domain.Customer{
		ID:           cust.Name,
		Name:         cust.CustomerName,
		Email:        cust.Email,
		CreditLimit:  SafeFloat(cust.CreditLimit),
		Outstanding:  SafeFloat(cust.Outstanding),
		Country:      cust.Country,
		Territory:    cust.Territory,
		PaymentTerms: cust.PaymentTerms,
	}
}

func normalizeItems(items []erpnext.InvoiceItem) []domain.LineItem {
	out := make([]domain.LineItem, 0, len(items))
	for _, item := range items {
		out = append(out, domain.LineItem{
			ItemCode:    item.ItemCode,
			ItemName:    item.ItemName,
			Quantity:    SafeFloat(item.Qty),
			Rate:        SafeFloat(item.Rate),
			Amount:      SafeFloat(item.Amount),
			Description: item.Description,
		})
	}
	return out
}

func normalizeTaxes(taxes []erpnext.TaxRow) []domain.TaxLine {
	out := make([]domain.TaxLine, 0, len(taxes))
	for _, tax := range taxes {
		out = append(out, domain.TaxLine{
			TaxType: tax.TaxType,
			Rate:    SafeFloat(tax.Rate),
			Amount:  SafeFloat(tax.TaxAmount),
		})
	}
	return out
}

func normalizeCharges(charges []erpnext.ChargeRow) []domain.ChargeLine {
	out := make([]domain.ChargeLine, 0, len(charges))
	for _, charge := range charges {
		out = append(out, domain.ChargeLine{
			ChargeType: charge.ChargeType,
			Amount:     SafeFloat(charge.Amount),
		})
	}
	return out
}

func buildNotes(snap *domain.ERPSnapshot) []string {
	orderNote := "NOT_LINKED"
	if snap.SalesOrder != nil {
		orderNote = snap.SalesOrder.ID
	}
	customerNote := "N/A"
	if snap.Customer != nil {
		customerNote = snap.Customer.ID
	}
	return []string{
		"Invoice: " + snap.Invoice.ID,
		"Sales Order: " + orderNote,
		"Customer: " + customerNote,
	}
}

func (e *Extractor) errorSnapshot(message string, missing []string) *domain.ERPSnapshot {
	if missing == nil {
		missing = []string{}
	}
	e.logger.Error("extraction failed", slog.String("error", message))
	return &domain.ERPSnapshot{
		Status:          domain.SnapshotError,
		Error:           message,
		MissingFields:   missing,
		ExtractionNotes: []string{message},
		ExtractedAt:     e.now().UTC(),
	}
}

// SafeFloat converts an upstream numeric value of unknown JSON shape to
// a float pointer. Missing or non-numeric values become nil, never zero:
// zero and "missing" must remain distinguishable.
func SafeFloat(v any) *float64 {
	switch n := v.(type) {
	case nil:
		return nil
	case float64:
		return &n
	case float32:
		f := float64(n)
		return &f
	case int:
		f := float64(n)
		return &f
	case int64:
		f := float64(n)
		return &f
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil {
			return nil
		}
		return &f
	}
	return nil
}
