package fel

import (
	"context"
	"fmt"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// dteSpec renders a DTE document for the engine tests. Zero fields take the
// defaults of a plain consumidor final invoice that passes every rule.
type dteSpec struct {
	tipo       string
	emission   string
	currency   string
	receptor   string
	export     bool
	publicShow bool
	items      string
	taxes      string
	granTotal  string
	extras     string
	uncert     bool // omit the certification block and its signature
}

func (s dteSpec) render() []byte {
	if s.tipo == "" {
		s.tipo = "FACT"
	}
	if s.emission == "" {
		s.emission = "2026-08-20T10:30:00"
	}
	if s.currency == "" {
		s.currency = "GTQ"
	}
	if s.receptor == "" {
		s.receptor = "CF"
	}
	if s.items == "" {
		s.items = `<Item NumeroLinea="1"><BienOServicio>B</BienOServicio>
		  <Cantidad>2</Cantidad><PrecioUnitario>600.000000</PrecioUnitario>
		  <Precio>1200.00</Precio><Descuento>0.00</Descuento><Total>1200.00</Total></Item>`
	}
	if s.taxes == "" {
		s.taxes = `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>1071.43</MontoGravable>
		  <CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>128.57</MontoImpuesto></Impuesto>`
	}
	if s.granTotal == "" {
		s.granTotal = "1200.00"
	}
	var flags strings.Builder
	if s.export {
		flags.WriteString("<Exp/>")
	}
	if s.publicShow {
		flags.WriteString("<EspectaculoPublico/>")
	}
	cert := `<Certificacion>
	  <NumeroAutorizacion>550e8400-e29b-41d4-a716-446655440000</NumeroAutorizacion>
	  <Serie>550E8400</Serie><Numero>801825751</Numero>
	  <FechaHoraCertificacion>2026-08-20T10:31:00</FechaHoraCertificacion>
	</Certificacion>
	<Signature Id="SignatureCertificador"/>`
	if s.uncert {
		cert = ""
	}
	return []byte(fmt.Sprintf(`<?xml version="1.0" encoding="UTF-8"?>
<GTDocumento>
  <DatosGenerales><TipoDTE>%s</TipoDTE><FechaHoraEmision>%s</FechaHoraEmision><Moneda>%s</Moneda>%s</DatosGenerales>
  <Emisor><NITEmisor>123456789</NITEmisor><CodigoEstablecimiento>1</CodigoEstablecimiento></Emisor>
  <Receptor><IDReceptor>%s</IDReceptor></Receptor>
  <Items>%s</Items>
  <Totales>%s<GranTotal>%s</GranTotal></Totales>
  %s
  <Signature Id="SignatureEmisor"/>
  %s
</GTDocumento>`, s.tipo, s.emission, s.currency, flags.String(), s.receptor, s.items, s.taxes, s.granTotal, s.extras, cert))
}

func TestValidateValidDocument(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	verdict := v.Validate(context.Background(), dteSpec{}.render())

	assert.True(t, verdict.IsValid, "errors: %v", verdict.Errors)
	assert.Empty(t, verdict.Errors)
	assert.Equal(t, "FACT", verdict.DocumentType)
	assert.Equal(t, SchemaDocumento, verdict.SchemaUsed)
	assert.Equal(t, RulebookVersion, verdict.RulebookVersion)
	assert.Equal(t,
		[]string{"GENERAL", "ITEMS", "TAXES", "PHRASES", "COMPLEMENTS", "TOTALS", "SIGNATURES", "UUID_SERIE_NUMERO"},
		verdict.RulesApplied)
}

func TestConsumidorFinalCapBoundary(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	item := `<Item NumeroLinea="1"><BienOServicio>B</BienOServicio>
	  <Cantidad>1</Cantidad><PrecioUnitario>%s</PrecioUnitario>
	  <Precio>%s</Precio><Descuento>0.00</Descuento><Total>%s</Total></Item>`

	atCap := dteSpec{
		items:     fmt.Sprintf(item, "2500.000000", "2500.00", "2500.00"),
		taxes:     `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>2232.14</MontoGravable><CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>267.86</MontoImpuesto></Impuesto>`,
		granTotal: "2500.00",
	}
	verdict := v.Validate(context.Background(), atCap.render())
	f, found := hasCode(verdict.Errors, "2.2.4.11")
	require.True(t, found, "2500.00 exactly must reject")
	assert.Equal(t, Reject, f.Severity)
	assert.Equal(t, "2500.00", f.Actual)
	assert.False(t, verdict.IsValid)
	f, found = hasCode(verdict.Errors, "2.19.2.4")
	require.True(t, found, "the cap fires at the totals tier too")
	assert.Equal(t, GeneralPart3, f.Category)

	underCap := dteSpec{
		items:     fmt.Sprintf(item, "2499.990000", "2499.99", "2499.99"),
		taxes:     `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>2232.13</MontoGravable><CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>267.86</MontoImpuesto></Impuesto>`,
		granTotal: "2499.99",
	}
	verdict = v.Validate(context.Background(), underCap.render())
	_, found = hasCode(verdict.Findings(), "2.2.4.11")
	assert.False(t, found, "2499.99 stays under the cap")
	_, found = hasCode(verdict.Findings(), "2.19.2.4")
	assert.False(t, found)
	assert.True(t, verdict.IsValid, "errors: %v", verdict.Errors)
}

func TestIVAMiscalculation(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	spec := dteSpec{
		taxes: `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>1000.00</MontoGravable>
		  <CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>121.00</MontoImpuesto></Impuesto>`,
	}
	verdict := v.Validate(context.Background(), spec.render())
	f, found := hasCode(verdict.Errors, "2.7.4.1")
	require.True(t, found)
	assert.Equal(t, "120.00", f.Expected)
	assert.Equal(t, "121.00", f.Actual)

	spec.taxes = strings.Replace(spec.taxes, "121.00", "120.00", 1)
	verdict = v.Validate(context.Background(), spec.render())
	_, found = hasCode(verdict.Findings(), "2.7.4.1")
	assert.False(t, found)
}

func TestLateEmissionInformsWithoutBlocking(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	verdict := v.Validate(context.Background(), dteSpec{emission: "2026-08-10T09:00:00", uncert: true}.render())

	f, found := hasCode(verdict.Warnings, "2.2.1.1")
	require.True(t, found, "emission 11 days before the frozen clock")
	assert.Equal(t, InformError, f.Severity)
	_, inErrors := hasCode(verdict.Errors, "2.2.1.1")
	assert.False(t, inErrors)
	assert.True(t, verdict.IsValid, "errors: %v", verdict.Errors)
}

func TestEmissionWindowCountsCalendarDays(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())

	// Five calendar days but 142 hours of wall clock: within the window.
	v.now = func() time.Time { return time.Date(2026, 8, 21, 23, 0, 0, 0, time.UTC) }
	verdict := v.Validate(context.Background(), dteSpec{emission: "2026-08-16T01:00:00", uncert: true}.render())
	_, found := hasCode(verdict.Findings(), "2.2.1.1")
	assert.False(t, found, "five calendar days must not fire regardless of hours")

	// Six calendar days but under 120 hours: past the window.
	v.now = func() time.Time { return time.Date(2026, 8, 21, 2, 0, 0, 0, time.UTC) }
	verdict = v.Validate(context.Background(), dteSpec{emission: "2026-08-15T23:00:00", uncert: true}.render())
	_, found = hasCode(verdict.Warnings, "2.2.1.1")
	assert.True(t, found, "six calendar days must fire even under 120 hours")
}

func TestConstancyExemptFromEmissionWindow(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	verdict := v.Validate(context.Background(), dteSpec{tipo: "CIVA", emission: "2026-07-01T09:00:00", uncert: true}.render())
	_, found := hasCode(verdict.Findings(), "2.2.1.1")
	assert.False(t, found, "CIVA skips the certification window")
}

func TestUnknownEmisorNIT(t *testing.T) {
	reg := newFakeRegistry()
	delete(reg.taxpayers, "123456789")
	v := newTestValidator(t, reg)
	verdict := v.Validate(context.Background(), dteSpec{}.render())
	_, found := hasCode(verdict.Errors, "2.2.2.1")
	assert.True(t, found)
}

func TestRegistryOutageRejects(t *testing.T) {
	reg := newFakeRegistry()
	reg.fail = true
	v := newTestValidator(t, reg)
	verdict := v.Validate(context.Background(), dteSpec{}.render())
	f, found := hasCode(verdict.Errors, CodeRegistryUnavailable)
	require.True(t, found)
	assert.Equal(t, Reject, f.Severity)
	assert.False(t, verdict.IsValid)
}

func TestPublicShowRules(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	spec := dteSpec{
		publicShow: true,
		items: `<Item NumeroLinea="1"><BienOServicio>B</BienOServicio>
		  <Cantidad>1</Cantidad><PrecioUnitario>600.000000</PrecioUnitario>
		  <Precio>600.00</Precio><Descuento>0.00</Descuento><Total>600.00</Total></Item>
		<Item NumeroLinea="2"><BienOServicio>S</BienOServicio>
		  <Cantidad>1</Cantidad><PrecioUnitario>600.000000</PrecioUnitario>
		  <Precio>600.00</Precio><Descuento>0.00</Descuento><Total>600.00</Total></Item>`,
	}
	verdict := v.Validate(context.Background(), spec.render())

	_, found := hasCode(verdict.Errors, "2.3.1.1")
	assert.True(t, found, "public show needs exactly one item")
	_, found = hasCode(verdict.Errors, "2.3.8.2")
	assert.True(t, found, "public show items must be services")
	_, found = hasCode(verdict.Errors, "2.2.6.3")
	assert.True(t, found, "missing public show complement")
	_, found = hasCode(verdict.Errors, "3.7.1.1")
	assert.True(t, found)
}

func TestItemLineNumbersMustBeConsecutive(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	item := `<Item NumeroLinea="%d"><BienOServicio>B</BienOServicio>
	  <Cantidad>1</Cantidad><PrecioUnitario>600.000000</PrecioUnitario>
	  <Precio>600.00</Precio><Descuento>0.00</Descuento><Total>600.00</Total></Item>`

	gap := dteSpec{items: fmt.Sprintf(item, 1) + fmt.Sprintf(item, 3)}
	verdict := v.Validate(context.Background(), gap.render())
	f, found := hasCode(verdict.Errors, "2.3.2.1")
	require.True(t, found, "a gap in the line numbers must reject")
	assert.Equal(t, "2", f.Expected)
	assert.Equal(t, "3", f.Actual)
	assert.False(t, verdict.IsValid)

	startsAtTwo := dteSpec{
		items: fmt.Sprintf(item, 2),
		taxes: `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>535.71</MontoGravable>
		  <CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>64.29</MontoImpuesto></Impuesto>`,
		granTotal: "600.00",
	}
	verdict = v.Validate(context.Background(), startsAtTwo.render())
	f, found = hasCode(verdict.Errors, "2.3.2.1")
	require.True(t, found, "numbering must start at 1")
	assert.Equal(t, "1", f.Expected)
	assert.Equal(t, "2", f.Actual)

	consecutive := dteSpec{items: fmt.Sprintf(item, 1) + fmt.Sprintf(item, 2)}
	verdict = v.Validate(context.Background(), consecutive.render())
	_, found = hasCode(verdict.Findings(), "2.3.2.1")
	assert.False(t, found, "consecutive lines from 1 are fine")
}

func TestExportRequiresComplementAndPhrase(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	verdict := v.Validate(context.Background(), dteSpec{export: true, receptor: "123456789"}.render())

	_, found := hasCode(verdict.Errors, "2.2.5.2")
	assert.True(t, found)
	_, found = hasCode(verdict.Warnings, "2.6.1.6")
	assert.True(t, found, "export must carry the exemption phrase")

	withComplement := dteSpec{
		export:   true,
		receptor: "123456789",
		extras: `<Complementos><Exportacion><INCOTERM>CIF</INCOTERM></Exportacion></Complementos>
		  <Frases><Frase TipoFrase="4" CodigoEscenario="1"/></Frases>`,
	}
	verdict = v.Validate(context.Background(), withComplement.render())
	_, found = hasCode(verdict.Findings(), "2.2.5.2")
	assert.False(t, found)
	_, found = hasCode(verdict.Findings(), "2.6.1.6")
	assert.False(t, found)
}

func TestSerieNumeroMismatch(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	spec := dteSpec{}
	data := strings.Replace(string(spec.render()), "<Serie>550E8400</Serie>", "<Serie>AAAA0000</Serie>", 1)
	verdict := v.Validate(context.Background(), []byte(data))

	f, found := hasCode(verdict.Errors, "3.12.6.1")
	require.True(t, found)
	assert.Equal(t, "550E8400", f.Expected)
	assert.Equal(t, "AAAA0000", f.Actual)
}

func TestValidateAsUsesHint(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	data := strings.Replace(string(dteSpec{}.render()), "<TipoDTE>FACT</TipoDTE>", "", 1)

	verdict := v.Validate(context.Background(), []byte(data))
	_, found := hasCode(verdict.Errors, "2.2.0.1")
	assert.True(t, found, "missing type without hint rejects")

	verdict = v.ValidateAs(context.Background(), []byte(data), TipoFACT)
	assert.Equal(t, "FACT", verdict.DocumentType)
	_, found = hasCode(verdict.Findings(), "2.2.0.1")
	assert.False(t, found)

	// A declared type always wins over the hint.
	verdict = v.ValidateAs(context.Background(), dteSpec{tipo: "NCRE"}.render(), TipoFACT)
	assert.Equal(t, "NCRE", verdict.DocumentType)
}

func TestForeignCurrencyCap(t *testing.T) {
	usd400 := dteSpec{
		currency: "USD",
		items: `<Item NumeroLinea="1"><BienOServicio>B</BienOServicio>
		  <Cantidad>1</Cantidad><PrecioUnitario>400.000000</PrecioUnitario>
		  <Precio>400.00</Precio><Descuento>0.00</Descuento><Total>400.00</Total></Item>`,
		taxes: `<Impuesto><NombreCorto>IVA</NombreCorto><MontoGravable>357.14</MontoGravable>
		  <CodigoUnidadGravable>1</CodigoUnidadGravable><MontoImpuesto>42.86</MontoImpuesto></Impuesto>`,
		granTotal: "400.00",
	}

	reg := newFakeRegistry()
	reg.gtqRate = decimal.RequireFromString("7.80") // 400 USD = 3120 GTQ
	v := newTestValidator(t, reg)
	verdict := v.Validate(context.Background(), usd400.render())
	f, found := hasCode(verdict.Errors, "2.2.7.2")
	require.True(t, found)
	assert.Equal(t, "3120.00", f.Actual)

	// Without a rate provider the check degrades to a warning.
	v = newTestValidator(t, newFakeRegistry())
	verdict = v.Validate(context.Background(), usd400.render())
	_, found = hasCode(verdict.Warnings, "2.2.7.3")
	assert.True(t, found)
	_, found = hasCode(verdict.Errors, "2.2.7.2")
	assert.False(t, found)
}

func TestCancelledContext(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	verdict := v.Validate(ctx, dteSpec{}.render())

	_, found := hasCode(verdict.Errors, CodeCancelled)
	assert.True(t, found)
	assert.Empty(t, verdict.RulesApplied)
	assert.False(t, verdict.IsValid)
}

func TestVerdictDeterminism(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	data := dteSpec{granTotal: "999.00"}.render() // forces a totals mismatch

	first := v.Validate(context.Background(), data)
	second := v.Validate(context.Background(), data)
	if diff := cmp.Diff(first, second); diff != "" {
		t.Errorf("verdicts differ between runs (-first +second):\n%s", diff)
	}
}

func TestSchemaLoadFailureRejects(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SchemaCacheDir = t.TempDir() // empty cache
	cfg.SchemaBaseURL = "http://127.0.0.1:1"
	cache := NewSchemaCache(cfg, testLogger())
	v := NewValidator(cfg, NewSchemaSet(cache, testLogger()), newFakeRegistry(), nil, testLogger())

	verdict := v.Validate(context.Background(), dteSpec{}.render())
	_, found := hasCode(verdict.Errors, CodeSchemaLoadError)
	assert.True(t, found)
	assert.False(t, verdict.IsValid)
	assert.Empty(t, verdict.RulesApplied, "business rules must not run without a schema")
}

func TestSchemaViolationShortCircuits(t *testing.T) {
	cfg := DefaultConfig()
	cfg.SchemaCacheDir = t.TempDir()
	cfg.SchemaBaseURL = "http://127.0.0.1:1"
	cache := NewSchemaCache(cfg, testLogger())

	// A schema the sample document cannot satisfy.
	strict := `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
	  <xs:element name="GTDocumento">
	    <xs:complexType><xs:sequence>
	      <xs:element name="Encabezado"/>
	    </xs:sequence></xs:complexType>
	  </xs:element>
	</xs:schema>`
	require.NoError(t, cache.Put(SchemaDocumento, []byte(strict)))

	v := NewValidator(cfg, NewSchemaSet(cache, testLogger()), newFakeRegistry(), nil, testLogger())
	v.now = func() time.Time { return testNow }
	verdict := v.Validate(context.Background(), dteSpec{}.render())

	_, found := hasCode(verdict.Errors, CodeSchemaValidation)
	require.True(t, found)
	assert.False(t, verdict.IsValid)
	assert.Empty(t, verdict.RulesApplied, "a schema rejection stops the pipeline")
}

func TestValidateBatch(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	docs := [][]byte{
		dteSpec{}.render(),
		[]byte("<GTDocumento><broken>"),
	}
	verdicts, summary := v.ValidateBatch(context.Background(), docs)
	require.Len(t, verdicts, 2)
	assert.Equal(t, 2, summary.Total)
	assert.Equal(t, 1, summary.Valid)
	assert.Equal(t, 1, summary.Invalid)
	assert.True(t, verdicts[0].IsValid)
	assert.False(t, verdicts[1].IsValid)
}

const sampleAnulacion = `<?xml version="1.0" encoding="UTF-8"?>
<GTAnulacionDocumento>
  <SAT><AnulacionDTE>
    <DatosGenerales ID="DatosAnulacion"
      NumeroDocumentoAAnular="550e8400-e29b-41d4-a716-446655440000"
      NITEmisor="123456789"
      IDReceptor="CF"
      FechaEmisionDocumentoAnular="2026-08-18T10:00:00"
      FechaHoraAnulacion="2026-08-20T09:00:00"
      MotivoAnulacion="Error en los datos del receptor"/>
  </AnulacionDTE></SAT>
  <Signature Id="SignatureEmisor"/>
</GTAnulacionDocumento>`

func TestValidateAnulacion(t *testing.T) {
	v := newTestValidator(t, newFakeRegistry())
	verdict := v.ValidateAnulacion(context.Background(), []byte(sampleAnulacion))
	assert.True(t, verdict.IsValid, "errors: %v", verdict.Errors)
	assert.Equal(t, []string{"ANULACION"}, verdict.RulesApplied)

	bad := strings.Replace(sampleAnulacion,
		`FechaHoraAnulacion="2026-08-20T09:00:00"`,
		`FechaHoraAnulacion="2026-08-10T09:00:00"`, 1)
	verdict = v.ValidateAnulacion(context.Background(), []byte(bad))
	_, found := hasCode(verdict.Errors, "3.13.2.1")
	assert.True(t, found, "void before emission must reject")

	bad = strings.Replace(sampleAnulacion,
		"550e8400-e29b-41d4-a716-446655440000", "no-es-un-uuid", 1)
	verdict = v.ValidateAnulacion(context.Background(), []byte(bad))
	_, found = hasCode(verdict.Errors, "3.13.1.1")
	assert.True(t, found)
}
