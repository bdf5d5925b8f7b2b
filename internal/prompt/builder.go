// Package prompt renders a normalized financial snapshot into the
// structured analysis request sent to the AI provider. Rendering is
// deterministic and side-effect-free: the same snapshot always produces
// the same prompt text.
package prompt

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/replaystack/incident-replay/internal/domain"
)

// Build renders the analysis request for an invoice/order discrepancy.
// The order may be nil when no sales order could be linked; the prompt
// then presents the missing link itself as a candidate cause.
func Build(invoice *domain.Invoice, order *domain.SalesOrder, description string) string {
	var b strings.Builder

	b.WriteString(`You are an expert ERP Financial Analyst. Your task is to analyze a financial discrepancy between a Sales Invoice and its linked Sales Order.

STRICT RULES:
1. Use ONLY the provided ERP data
2. Do NOT assume or guess missing values
3. Do NOT invent ERP records or transactions
4. Be specific and factual
5. Identify EXACT numeric sources of the difference
6. Output MUST be valid JSON only (no markdown, no free text)

`)

	b.WriteString("INCIDENT DESCRIPTION:\n")
	b.WriteString(description)
	b.WriteString("\n\n")

	writeOrderSection(&b, order)
	writeInvoiceSection(&b, invoice)
	writeNumericAnalysis(&b, invoice, order)
	writeItemsComparison(&b, invoice, order)

	b.WriteString(`
YOUR TASK:
1. Analyze line-by-line: Do quantities, rates, and amounts match between Invoice and Sales Order?
2. Identify all sources of difference:
   - Item price changes
   - Quantity changes
   - Tax additions/removals
   - Charge additions/removals
   - Currency mismatch
   - Discounts applied
   - Missing/unlinked Sales Order
3. Provide a numeric breakdown showing exactly how the final total differs
4. Explain WHY this difference exists based on ERP data
5. Suggest ONE clear, concrete ERP action to resolve

OUTPUT FORMAT (JSON ONLY - no other text):
{
  "root_cause": "factual ERP-level cause extracted from provided data",
  "difference_breakdown": "numeric explanation with line items: 'order subtotal: X + taxes: Y + charges: Z = invoice total'",
  "recommended_resolution": "single concrete ERP action",
  "confidence_score": 0.0
}

CONFIDENCE SCORE GUIDANCE:
- 0.95+: Data is complete, discrepancy fully explained with all sources identified
- 0.85-0.94: Data complete but multiple possible causes
- 0.70-0.84: Data mostly complete but some values missing or ambiguous
- 0.50-0.69: Partial data, explanation is uncertain
- <0.50: Insufficient data to explain discrepancy

OUTPUT ONLY THE JSON OBJECT. NO ADDITIONAL TEXT.`)

	return b.String()
}

func writeOrderSection(b *strings.Builder, order *domain.SalesOrder) {
	b.WriteString("SALES ORDER DATA:\n")
	if order == nil {
		b.WriteString("- (not linked: no sales order could be resolved from the invoice)\n\n")
		return
	}
	fmt.Fprintf(b, "- ID: %s\n", order.ID)
	fmt.Fprintf(b, "- Currency: %s\n", order.Currency)
	fmt.Fprintf(b, "- Total: %s\n", num(order.GrandTotal))
	fmt.Fprintf(b, "- Subtotal: %s\n", num(order.Subtotal))
	fmt.Fprintf(b, "- Items Count: %d\n", len(order.Items))
	b.WriteString("- Items:\n")
	writeItems(b, order.Items)
	b.WriteString("\n")
}

func writeInvoiceSection(b *strings.Builder, invoice *domain.Invoice) {
	b.WriteString("INVOICE DATA:\n")
	fmt.Fprintf(b, "- ID: %s\n", invoice.ID)
	fmt.Fprintf(b, "- Currency: %s\n", invoice.Currency)
	fmt.Fprintf(b, "- Total: %s\n", num(invoice.GrandTotal))
	fmt.Fprintf(b, "- Subtotal: %s\n", num(invoice.Subtotal))
	fmt.Fprintf(b, "- Tax Total: %s\n", num(sumTaxes(invoice.Taxes)))
	fmt.Fprintf(b, "- Charges Total: %s\n", num(sumCharges(invoice.Charges)))
	fmt.Fprintf(b, "- Items Count: %d\n", len(invoice.Items))
	b.WriteString("- Items:\n")
	writeItems(b, invoice.Items)
	b.WriteString("- Taxes:\n")
	if len(invoice.Taxes) == 0 {
		b.WriteString("  (No taxes applied)\n")
	}
	for i, tax := range invoice.Taxes {
		fmt.Fprintf(b, "  %d. %s: rate=%s%%, amount=%s\n", i+1, tax.TaxType, num(tax.Rate), num(tax.Amount))
	}
	b.WriteString("- Charges:\n")
	if len(invoice.Charges) == 0 {
		b.WriteString("  (No additional charges)\n")
	}
	for i, charge := range invoice.Charges {
		fmt.Fprintf(b, "  %d. %s: %s\n", i+1, charge.ChargeType, num(charge.Amount))
	}
	b.WriteString("\n")
}

func writeNumericAnalysis(b *strings.Builder, invoice *domain.Invoice, order *domain.SalesOrder) {
	b.WriteString("NUMERIC ANALYSIS:\n")
	if invoice.GrandTotal == nil || order == nil || order.GrandTotal == nil {
		b.WriteString("- Totals incomplete: difference cannot be computed from provided data\n\n")
		return
	}
	diff := *invoice.GrandTotal - *order.GrandTotal
	pct := 0.0
	if *order.GrandTotal != 0 {
		pct = diff / *order.GrandTotal * 100
	}
	fmt.Fprintf(b, "- Total Difference: %.2f (%s)\n", diff, invoice.Currency)
	fmt.Fprintf(b, "- Invoice Total vs Order Total: %.2f - %.2f = %.2f\n", *invoice.GrandTotal, *order.GrandTotal, diff)
	fmt.Fprintf(b, "- As Percentage: %.1f%%\n\n", pct)
}

// writeItemsComparison emits the line-by-line match table with a check
// or cross per item code present in both documents, and explicit flags
// for codes present in only one of them.
func writeItemsComparison(b *strings.Builder, invoice *domain.Invoice, order *domain.SalesOrder) {
	b.WriteString("ITEMS COMPARISON (Line-by-Line):\n")
	if order == nil {
		b.WriteString("  (No sales order to compare against)\n")
		return
	}

	orderByCode := make(map[string]domain.LineItem, len(order.Items))
	for _, item := range order.Items {
		orderByCode[item.ItemCode] = item
	}
	invoiceCodes := make(map[string]bool, len(invoice.Items))

	for _, inv := range invoice.Items {
		invoiceCodes[inv.ItemCode] = true
		so, ok := orderByCode[inv.ItemCode]
		if !ok {
			fmt.Fprintf(b, "  %s: NOT IN SALES ORDER (invoice qty=%s, rate=%s, amount=%s)\n",
				inv.ItemCode, num(inv.Quantity), num(inv.Rate), num(inv.Amount))
			continue
		}
		fmt.Fprintf(b, "  %s: Qty %s (Invoice: %s vs Order: %s), Rate %s (Invoice: %s vs Order: %s), Amount (Invoice: %s vs Order: %s)\n",
			inv.ItemCode,
			mark(eq(inv.Quantity, so.Quantity)), num(inv.Quantity), num(so.Quantity),
			mark(eq(inv.Rate, so.Rate)), num(inv.Rate), num(so.Rate),
			num(inv.Amount), num(so.Amount))
	}

	for _, so := range order.Items {
		if !invoiceCodes[so.ItemCode] {
			fmt.Fprintf(b, "  %s: NOT IN INVOICE (order qty=%s, amount=%s)\n",
				so.ItemCode, num(so.Quantity), num(so.Amount))
		}
	}

	if len(invoice.Items) == 0 && len(order.Items) == 0 {
		b.WriteString("  (No items to compare)\n")
	}
}

func writeItems(b *strings.Builder, items []domain.LineItem) {
	if len(items) == 0 {
		b.WriteString("  (No items provided)\n")
		return
	}
	for i, item := range items {
		fmt.Fprintf(b, "  %d. %s: qty=%s, rate=%s, amount=%s\n",
			i+1, item.ItemCode, num(item.Quantity), num(item.Rate), num(item.Amount))
	}
}

func mark(match bool) string {
	if match {
		return "✓"
	}
	return "✗"
}

func eq(a, b *float64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

// num renders a nullable numeric for the prompt. Missing values stay
// visibly missing instead of defaulting to zero.
func num(v *float64) string {
	if v == nil {
		return "null"
	}
	return strconv.FormatFloat(*v, 'f', -1, 64)
}

func sumTaxes(taxes []domain.TaxLine) *float64 {
	total := 0.0
	for _, tax := range taxes {
		if tax.Amount != nil {
			total += *tax.Amount
		}
	}
	return &total
}

func sumCharges(charges []domain.ChargeLine) *float64 {
	total := 0.0
	for _, charge := range charges {
		if charge.Amount != nil {
			total += *charge.Amount
		}
	}
	return &total
}
