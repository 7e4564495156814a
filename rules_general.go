package fel

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"time"

	"github.com/shopspring/decimal"
)

var currencyPattern = regexp.MustCompile(`^[A-Z]{3}$`)

// daysBetween is the difference in calendar dates, ignoring the time of day.
func daysBetween(from, to time.Time) int {
	f := time.Date(from.Year(), from.Month(), from.Day(), 0, 0, 0, 0, time.UTC)
	t := time.Date(to.Year(), to.Month(), to.Day(), 0, 0, 0, 0, time.UTC)
	return int(t.Sub(f).Hours() / 24)
}

// registryOutage converts a registry error into the outage finding when it
// wraps ErrRegistryUnavailable. Any other error is treated the same way: the
// engine cannot tell a broken registry from an unreachable one.
func registryOutage(err error, cat Category, field string) Finding {
	msg := Message(CodeRegistryUnavailable)
	if !errors.Is(err, ErrRegistryUnavailable) {
		msg = fmt.Sprintf("%s: %v", msg, err)
	}
	return Finding{
		Code:     CodeRegistryUnavailable,
		Message:  msg,
		Severity: Reject,
		Category: cat,
		Field:    field,
		SATLevel: LevelCertificador,
	}
}

// checkGeneralPart1 runs the emission, emisor, establishment, receptor,
// export, public-show and currency rules (2.2.x).
func (v *Validator) checkGeneralPart1(ctx context.Context, d *Document) []Finding {
	var out []Finding
	if !d.Type.Known() {
		f := R2201.Finding("")
		f.Field = "TipoDTE"
		f.Actual = string(d.Type)
		out = append(out, f)
	}
	out = append(out, v.checkEmissionDate(d)...)
	out = append(out, v.checkEmisor(ctx, d)...)
	out = append(out, v.checkEstablishment(ctx, d)...)
	out = append(out, v.checkReceptor(ctx, d)...)
	out = append(out, v.checkExportFlags(d)...)
	out = append(out, v.checkPublicShowFlags(d)...)
	out = append(out, v.checkCurrency(d)...)
	return out
}

func (v *Validator) checkEmissionDate(d *Document) []Finding {
	var out []Finding
	if !d.HasEmissionTimestamp || d.EmissionTimestamp.IsZero() {
		f := R2211_0.Finding("")
		f.Field = "FechaHoraEmision"
		return append(out, f)
	}
	// Constancias are exempt from the certification window.
	if d.Type.ExemptionConstancy() {
		return out
	}
	cert := d.CertificationTimestamp
	if cert.IsZero() {
		cert = v.now()
	}
	// The window counts calendar dates, not elapsed hours: emission at
	// 01:00 and certification five days later at 23:00 is still five days.
	if daysBetween(d.EmissionTimestamp, cert) > v.cfg.MaxEmissionDaysBack {
		f := R2211.Finding("")
		f.Field = "FechaHoraEmision"
		f.Expected = fmt.Sprintf("a lo sumo %d días antes de la certificación", v.cfg.MaxEmissionDaysBack)
		f.Actual = d.EmissionTimestamp.Format("2006-01-02")
		out = append(out, f)
	}
	// Emission dated into a month after the certification month.
	endOfMonth := time.Date(cert.Year(), cert.Month(), 1, 0, 0, 0, 0, cert.Location()).
		AddDate(0, 1, 0)
	if !d.EmissionTimestamp.Before(endOfMonth) {
		f := R2212.Finding("")
		f.Field = "FechaHoraEmision"
		out = append(out, f)
	}
	return out
}

func (v *Validator) checkEmisor(ctx context.Context, d *Document) []Finding {
	var out []Finding
	if d.EmisorNIT == "" {
		f := R2220.Finding("")
		f.Field = "NITEmisor"
		return append(out, f)
	}
	if v.registry == nil {
		return out
	}
	exists, err := v.registry.NitExists(ctx, d.EmisorNIT)
	if err != nil {
		return append(out, registryOutage(err, GeneralPart1, "NITEmisor"))
	}
	if !exists {
		f := R2221.Finding("")
		f.Field = "NITEmisor"
		f.Actual = d.EmisorNIT
		return append(out, f)
	}
	tp, err := v.registry.Taxpayer(ctx, d.EmisorNIT)
	if err != nil {
		return append(out, registryOutage(err, GeneralPart1, "NITEmisor"))
	}
	if tp == nil {
		return out
	}
	if tp.Status != TaxpayerActive {
		f := R2222.Finding("")
		f.Field = "NITEmisor"
		f.Actual = string(tp.Status)
		out = append(out, f)
	}
	if d.Type.InvoiceClass() && tp.IVAAffiliation == IVANone {
		f := R2223.Finding("")
		f.Field = "NITEmisor"
		out = append(out, f)
	}
	if d.EmisorName != "" && tp.Name != "" &&
		NormalizeComparable(d.EmisorName) != NormalizeComparable(tp.Name) {
		f := R2224.Finding("")
		f.Field = "NombreEmisor"
		f.Expected = tp.Name
		f.Actual = d.EmisorName
		out = append(out, f)
	}
	return out
}

func (v *Validator) checkEstablishment(ctx context.Context, d *Document) []Finding {
	var out []Finding
	if d.EstablishmentCode == "" {
		f := R2230.Finding("")
		f.Field = "CodigoEstablecimiento"
		return append(out, f)
	}
	if v.registry == nil || d.EmisorNIT == "" {
		return out
	}
	active, err := v.registry.EstablishmentActive(ctx, d.EmisorNIT, d.EstablishmentCode, d.EmissionTimestamp)
	if err != nil {
		return append(out, registryOutage(err, GeneralPart1, "CodigoEstablecimiento"))
	}
	if !active {
		f := R2231.Finding("")
		f.Field = "CodigoEstablecimiento"
		f.Actual = d.EstablishmentCode
		out = append(out, f)
	}
	return out
}

func (v *Validator) checkReceptor(ctx context.Context, d *Document) []Finding {
	var out []Finding
	if d.ReceptorID == "" {
		f := R2240.Finding("")
		f.Field = "IDReceptor"
		return append(out, f)
	}
	switch d.ReceptorIDKind {
	case ReceptorCUI:
		if d.IsExport {
			out = append(out, R2242.Finding(""))
		}
		if !cuiPattern.MatchString(d.ReceptorID) {
			f := R2241.Finding("")
			f.Field = "IDReceptor"
			f.Actual = d.ReceptorID
			return append(out, f)
		}
		if !ValidCUI(d.ReceptorID) {
			f := R2243.Finding("")
			f.Field = "IDReceptor"
			f.Actual = d.ReceptorID
			return append(out, f)
		}
		if v.registry != nil {
			rec, err := v.registry.ValidateCUI(ctx, d.ReceptorID)
			if err != nil {
				return append(out, registryOutage(err, GeneralPart1, "IDReceptor"))
			}
			if rec == nil || !rec.Valid {
				out = append(out, R2249.Finding(""))
			} else if rec.Status == CUIDeceased {
				out = append(out, R22410.Finding(""))
			}
		}
	case ReceptorNIT:
		if !ValidNIT(d.ReceptorID) {
			f := R2244.Finding("")
			f.Field = "IDReceptor"
			f.Actual = d.ReceptorID
			out = append(out, f)
		}
	case ReceptorCF:
		out = append(out, v.checkCFCap(ctx, d)...)
	}
	return out
}

// grandTotalInGTQ converts the grand total to GTQ for cap checks. ok is
// false when the document carries no grand total or the conversion cannot be
// performed; the caller decides whether that silence warrants a finding.
func (v *Validator) grandTotalInGTQ(ctx context.Context, d *Document) (decimal.Decimal, bool) {
	if !d.HasGrandTotal {
		return decimal.Zero, false
	}
	if d.Currency == "" || d.Currency == "GTQ" {
		return d.GrandTotal, true
	}
	if v.rates == nil {
		return decimal.Zero, false
	}
	amount, err := v.rates.ToGTQ(ctx, d.GrandTotal, d.Currency, d.EmissionTimestamp)
	if err != nil {
		return decimal.Zero, false
	}
	return amount, true
}

// checkCFCap enforces the consumidor final amount cap. Documents in a foreign
// currency are converted to GTQ first; with no rate provider configured the
// check is skipped with a warning.
func (v *Validator) checkCFCap(ctx context.Context, d *Document) []Finding {
	if !d.Type.InvoiceClass() || !d.HasGrandTotal {
		return nil
	}
	amount := d.GrandTotal
	foreign := d.Currency != "" && d.Currency != "GTQ"
	if foreign {
		if v.rates == nil {
			return []Finding{R2273.Finding("")}
		}
		converted, err := v.rates.ToGTQ(ctx, amount, d.Currency, d.EmissionTimestamp)
		if err != nil {
			return []Finding{registryOutage(err, GeneralPart1, "GranTotal")}
		}
		amount = converted
	}
	if amount.GreaterThanOrEqual(v.cfg.MaxCFAmountGTQ) {
		r := R22411
		if foreign {
			r = R2272
		}
		f := r.Finding("")
		f.Field = "GranTotal"
		f.Expected = "menor que " + v.cfg.MaxCFAmountGTQ.StringFixed(2) + " GTQ"
		f.Actual = amount.StringFixed(2)
		return []Finding{f}
	}
	return nil
}

func (v *Validator) checkExportFlags(d *Document) []Finding {
	if !d.IsExport {
		return nil
	}
	var out []Finding
	if !d.Type.Exportable() {
		f := R2251.Finding("")
		f.Actual = string(d.Type)
		out = append(out, f)
	}
	// Credit and debit notes reference an exported document instead of
	// carrying the complement themselves.
	if !d.Type.Note() && d.FindComplement(ComplementExportacion) == nil {
		out = append(out, R2252.Finding(""))
	}
	return out
}

func (v *Validator) checkPublicShowFlags(d *Document) []Finding {
	if !d.IsPublicShow {
		return nil
	}
	var out []Finding
	if !d.Type.PublicShowAllowed() {
		f := R2261.Finding("")
		f.Actual = string(d.Type)
		out = append(out, f)
	}
	if d.IsExport {
		out = append(out, R2262.Finding(""))
	}
	if d.FindComplement(ComplementEspectaculosPublicos) == nil {
		out = append(out, R2263.Finding(""))
	}
	return out
}

func (v *Validator) checkCurrency(d *Document) []Finding {
	if d.Currency == "" {
		return nil // schema enforces presence
	}
	if !currencyPattern.MatchString(d.Currency) {
		f := R2271.Finding("")
		f.Field = "Moneda"
		f.Actual = d.Currency
		return []Finding{f}
	}
	return nil
}
