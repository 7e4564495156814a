package fel

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
)

var hundred = decimal.NewFromInt(100)

// checkTaxes runs the tax rules (2.7.x IVA, 2.8.x Petróleo, 2.9.x others)
// against the static tax catalog.
func (v *Validator) checkTaxes(_ context.Context, d *Document) []Finding {
	var out []Finding
	tol := v.cfg.MonetaryTolerance
	for i, tax := range d.Taxes {
		field := fmt.Sprintf("Impuesto[%d]", i+1)
		if tax.ParseError {
			f := R2700.Finding("")
			f.Field = field
			out = append(out, f)
			continue
		}
		cfg, known := TaxConfigs[tax.Kind]
		if !known {
			f := R2701.Finding("")
			f.Field = field
			f.Actual = string(tax.Kind)
			out = append(out, f)
			continue
		}
		switch tax.Kind {
		case TaxIVA:
			out = append(out, v.checkIVA(tax, cfg, field, tol)...)
		case TaxPetroleo:
			out = append(out, v.checkPetroleo(tax, cfg, field, tol)...)
		default:
			if tax.HasUnitCode {
				if _, ok := cfg.Units[tax.UnitCode]; !ok {
					f := R2911.Finding("")
					f.Field = field
					f.Actual = fmt.Sprintf("%d", tax.UnitCode)
					out = append(out, f)
				}
			}
		}
	}
	return out
}

func (v *Validator) checkIVA(tax Tax, cfg TaxConfig, field string, tol decimal.Decimal) []Finding {
	var out []Finding
	if !tax.HasTaxable {
		f := R2711.Finding("")
		f.Field = field
		return append(out, f)
	}
	unit, ok := cfg.Units[tax.UnitCode]
	if !ok {
		f := R2721.Finding("")
		f.Field = field
		f.Actual = fmt.Sprintf("%d", tax.UnitCode)
		return append(out, f)
	}
	expected := Round2(tax.TaxableAmount.Mul(unit.Rate).Div(hundred))
	if !WithinTolerance(tax.TaxAmount, expected, tol) {
		f := R2741.Finding("")
		f.Field = field
		f.Expected = expected.StringFixed(2)
		f.Actual = tax.TaxAmount.StringFixed(2)
		out = append(out, f)
	}
	return out
}

// checkPetroleo validates the IDP, a specific tax: the rate is quetzales per
// taxable unit, not a percentage.
func (v *Validator) checkPetroleo(tax Tax, cfg TaxConfig, field string, tol decimal.Decimal) []Finding {
	var out []Finding
	unit, ok := cfg.Units[tax.UnitCode]
	if !ok {
		f := R2811.Finding("")
		f.Field = field
		f.Actual = fmt.Sprintf("%d", tax.UnitCode)
		return append(out, f)
	}
	expected := Round2(tax.UnitQuantity.Mul(unit.Rate))
	if !WithinTolerance(tax.TaxAmount, expected, tol) {
		f := R2821.Finding("")
		f.Field = field
		f.Expected = expected.StringFixed(2)
		f.Actual = tax.TaxAmount.StringFixed(2)
		out = append(out, f)
	}
	return out
}
