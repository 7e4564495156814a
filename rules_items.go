package fel

import (
	"context"
	"fmt"
)

// checkItems runs the per-line rules (2.3.x). Item arithmetic recomputes
// price and total from the raw components and compares within the configured
// tolerance.
func (v *Validator) checkItems(_ context.Context, d *Document) []Finding {
	var out []Finding

	if d.IsPublicShow && len(d.Items) != 1 {
		f := R2311.Finding("")
		f.Actual = fmt.Sprintf("%d ítems", len(d.Items))
		out = append(out, f)
	}
	if d.Type == TipoCIVA && len(d.Items) > 2 {
		f := R2312.Finding("")
		f.Actual = fmt.Sprintf("%d ítems", len(d.Items))
		out = append(out, f)
	}
	for i, item := range d.Items {
		if item.LineNumber != i+1 {
			f := R2321.Finding("")
			f.Expected = fmt.Sprintf("%d", i+1)
			f.Actual = fmt.Sprintf("%d", item.LineNumber)
			out = append(out, f)
			break // one finding per document, the rest would cascade
		}
	}

	tol := v.cfg.MonetaryTolerance
	for _, item := range d.Items {
		field := fmt.Sprintf("Item[%d]", item.LineNumber)
		if item.ParseError {
			f := R2350.Finding("")
			f.Field = field
			out = append(out, f)
			continue
		}
		if item.Quantity.IsNegative() || item.UnitPrice.IsNegative() {
			f := R2341.Finding("")
			f.Field = field
			out = append(out, f)
		}
		if !InMonetaryRange(item.Price) || !InMonetaryRange(item.Total) {
			f := R2342.Finding("")
			f.Field = field
			out = append(out, f)
			continue
		}
		expectedPrice := Round2(item.Quantity.Mul(item.UnitPrice))
		if !WithinTolerance(item.Price, expectedPrice, tol) {
			f := R2351.Finding("")
			f.Field = field
			f.Expected = expectedPrice.StringFixed(2)
			f.Actual = item.Price.StringFixed(2)
			out = append(out, f)
		}
		if item.Discount.GreaterThan(item.Price) {
			f := R2361.Finding("")
			f.Field = field
			f.Expected = "a lo sumo " + item.Price.StringFixed(2)
			f.Actual = item.Discount.StringFixed(2)
			out = append(out, f)
		}
		if item.OtherDiscount.GreaterThan(item.Price.Sub(item.Discount)) {
			f := R2371.Finding("")
			f.Field = field
			out = append(out, f)
		}
		expectedTotal := Round2(item.Price.Sub(item.Discount).Sub(item.OtherDiscount))
		if !WithinTolerance(item.Total, expectedTotal, tol) {
			f := R2391.Finding("")
			f.Field = field
			f.Expected = expectedTotal.StringFixed(2)
			f.Actual = item.Total.StringFixed(2)
			out = append(out, f)
		}
		if d.Type.Agricultural() && item.Kind != ItemGood {
			f := R2381.Finding("")
			f.Field = field
			f.Actual = string(item.Kind)
			out = append(out, f)
		}
		if d.IsPublicShow && item.Kind != ItemService {
			f := R2382.Finding("")
			f.Field = field
			f.Actual = string(item.Kind)
			out = append(out, f)
		}
	}
	return out
}
