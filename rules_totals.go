package fel

import (
	"context"

	"github.com/shopspring/decimal"
)

// checkTotals recomputes the grand total from the item totals plus the taxes
// the catalog marks as additive, and re-applies the consumidor final cap at
// the totals tier (2.19.x). IVA is price-inclusive in Guatemala and never
// added on top.
func (v *Validator) checkTotals(ctx context.Context, d *Document) []Finding {
	var out []Finding
	if !d.HasGrandTotal {
		f := R21920.Finding("")
		f.Field = "GranTotal"
		return append(out, f)
	}
	if d.GrandTotal.IsNegative() {
		f := R21922.Finding("")
		f.Field = "GranTotal"
		f.Actual = d.GrandTotal.StringFixed(2)
		return append(out, f)
	}
	if !InMonetaryRange(d.GrandTotal) {
		f := R21920.Finding("")
		f.Field = "GranTotal"
		f.Actual = d.GrandTotal.String()
		return append(out, f)
	}

	// Conversion silence (no rate provider, registry outage) is already
	// reported by the general group; here it just skips the cap.
	if d.ReceptorIDKind == ReceptorCF && d.Type.InvoiceClass() {
		if amount, ok := v.grandTotalInGTQ(ctx, d); ok && amount.GreaterThanOrEqual(v.cfg.MaxCFAmountGTQ) {
			f := R21924.Finding("")
			f.Field = "GranTotal"
			f.Expected = "menor que " + v.cfg.MaxCFAmountGTQ.StringFixed(2) + " GTQ"
			f.Actual = amount.StringFixed(2)
			out = append(out, f)
		}
	}

	if len(d.Items) == 0 {
		return out
	}

	sum := decimal.Zero
	for _, item := range d.Items {
		if item.ParseError {
			return out // item rules already rejected the document
		}
		sum = sum.Add(item.Total)
	}
	for _, tax := range d.Taxes {
		cfg, ok := TaxConfigs[tax.Kind]
		if ok && cfg.AddToTotal {
			sum = sum.Add(tax.TotalTaxAmount)
		}
	}
	expected := Round2(sum)
	if !WithinTolerance(d.GrandTotal, expected, v.cfg.MonetaryTolerance) {
		f := R21921.Finding("")
		f.Field = "GranTotal"
		f.Expected = expected.StringFixed(2)
		f.Actual = d.GrandTotal.StringFixed(2)
		out = append(out, f)
	}
	return out
}
