package fel

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleDTE = `<?xml version="1.0" encoding="UTF-8"?>
<GTDocumento>
  <DatosEmision>
    <DatosGenerales>
      <TipoDTE>FACT</TipoDTE>
      <FechaHoraEmision>2026-08-20T10:30:00</FechaHoraEmision>
      <Moneda>GTQ</Moneda>
    </DatosGenerales>
    <Emisor>
      <NITEmisor>123456789</NITEmisor>
      <NombreEmisor>Comercial El Quetzal, S.A.</NombreEmisor>
      <CodigoEstablecimiento>1</CodigoEstablecimiento>
    </Emisor>
    <Receptor>
      <IDReceptor>CF</IDReceptor>
      <NombreReceptor>Consumidor Final</NombreReceptor>
    </Receptor>
    <Frases>
      <Frase TipoFrase="1" CodigoEscenario="1"/>
    </Frases>
    <Items>
      <Item NumeroLinea="1">
        <BienOServicio>B</BienOServicio>
        <Cantidad>2</Cantidad>
        <PrecioUnitario>600.000000</PrecioUnitario>
        <Precio>1200.00</Precio>
        <Descuento>0.00</Descuento>
        <Total>1200.00</Total>
      </Item>
      <Item NumeroLinea="2">
        <BienOServicio>S</BienOServicio>
        <Cantidad>1</Cantidad>
        <PrecioUnitario>300.000000</PrecioUnitario>
        <Precio>300.00</Precio>
        <Descuento>0.00</Descuento>
        <Total>300.00</Total>
      </Item>
    </Items>
    <Totales>
      <Impuesto>
        <NombreCorto>IVA</NombreCorto>
        <MontoGravable>1339.29</MontoGravable>
        <CodigoUnidadGravable>1</CodigoUnidadGravable>
        <MontoImpuesto>160.71</MontoImpuesto>
      </Impuesto>
      <GranTotal>1500.00</GranTotal>
    </Totales>
  </DatosEmision>
  <Certificacion>
    <NumeroAutorizacion>550e8400-e29b-41d4-a716-446655440000</NumeroAutorizacion>
    <Serie>550E8400</Serie>
    <Numero>801825751</Numero>
    <FechaHoraCertificacion>2026-08-20T10:31:00</FechaHoraCertificacion>
  </Certificacion>
  <Signature Id="SignatureEmisor"/>
  <Signature Id="SignatureCertificador"/>
</GTDocumento>`

func TestProjectSampleDocument(t *testing.T) {
	doc, findings := Project([]byte(sampleDTE))
	require.NotNil(t, doc)
	assert.Empty(t, findings)

	assert.Equal(t, TipoFACT, doc.Type)
	assert.True(t, doc.HasEmissionTimestamp)
	assert.Equal(t, 2026, doc.EmissionTimestamp.Year())
	assert.Equal(t, "GTQ", doc.Currency)
	assert.False(t, doc.IsExport)

	assert.Equal(t, "123456789", doc.EmisorNIT)
	assert.Equal(t, "1", doc.EstablishmentCode)
	assert.Equal(t, "CF", doc.ReceptorID)
	assert.Equal(t, ReceptorCF, doc.ReceptorIDKind)

	require.Len(t, doc.Items, 2)
	assert.Equal(t, 1, doc.Items[0].LineNumber)
	assert.Equal(t, ItemGood, doc.Items[0].Kind)
	assert.Equal(t, "1200.00", doc.Items[0].Price.StringFixed(2))
	assert.Equal(t, ItemService, doc.Items[1].Kind)
	assert.False(t, doc.Items[0].ParseError)

	require.Len(t, doc.Taxes, 1)
	assert.Equal(t, TaxIVA, doc.Taxes[0].Kind)
	assert.True(t, doc.Taxes[0].HasTaxable)
	assert.Equal(t, 1, doc.Taxes[0].UnitCode)
	assert.Equal(t, "160.71", doc.Taxes[0].TaxAmount.StringFixed(2))

	require.Len(t, doc.Phrases, 1)
	assert.Equal(t, PhraseISRRetention, doc.Phrases[0].Type)
	assert.Equal(t, 1, doc.Phrases[0].Scenario)

	assert.True(t, doc.HasGrandTotal)
	assert.Equal(t, "1500.00", doc.GrandTotal.StringFixed(2))

	assert.Equal(t, "550e8400-e29b-41d4-a716-446655440000", doc.AuthorizationID)
	assert.Equal(t, "550E8400", doc.Serie)
	assert.Equal(t, "801825751", doc.Numero)
	assert.True(t, doc.HasSignature(SignatureEmisor))
	assert.True(t, doc.HasSignature(SignatureCertificador))
}

func TestProjectMalformedXML(t *testing.T) {
	doc, findings := Project([]byte("<GTDocumento><TipoDTE>FACT</GTDocumento>"))
	assert.Nil(t, doc)
	require.NotEmpty(t, findings)
	assert.Equal(t, CodeMalformedXML, findings[0].Code)
	assert.Equal(t, Reject, findings[0].Severity)
}

func TestProjectInvalidEncoding(t *testing.T) {
	doc, findings := Project([]byte{'<', 0xff, 0xfe, '>'})
	assert.Nil(t, doc)
	require.Len(t, findings, 1)
	assert.Equal(t, CodeInvalidEncoding, findings[0].Code)
}

func TestProjectMissingEncodingDeclaration(t *testing.T) {
	xml := `<?xml version="1.0"?><GTDocumento><TipoDTE>FACT</TipoDTE></GTDocumento>`
	doc, findings := Project([]byte(xml))
	require.NotNil(t, doc)
	require.Len(t, findings, 1)
	assert.Equal(t, CodeMissingEncoding, findings[0].Code)
	assert.Equal(t, InformWarning, findings[0].Severity)
}

func TestProjectBadNumbersFlagParseError(t *testing.T) {
	xml := `<GTDocumento><Items><Item NumeroLinea="1">
	  <Cantidad>dos</Cantidad><PrecioUnitario>1.00</PrecioUnitario>
	</Item></Items></GTDocumento>`
	doc, _ := Project([]byte(xml))
	require.NotNil(t, doc)
	require.Len(t, doc.Items, 1)
	assert.True(t, doc.Items[0].ParseError)
}

func TestProjectExportComplement(t *testing.T) {
	xml := `<GTDocumento>
	  <DatosGenerales><TipoDTE>FACT</TipoDTE></DatosGenerales>
	  <Exp/>
	  <Complementos><Exportacion><INCOTERM>CIF</INCOTERM>
	    <NombreConsignatarioODestinatario>ACME Corp</NombreConsignatarioODestinatario>
	  </Exportacion></Complementos>
	</GTDocumento>`
	doc, _ := Project([]byte(xml))
	require.NotNil(t, doc)
	assert.True(t, doc.IsExport)
	c := doc.FindComplement(ComplementExportacion)
	require.NotNil(t, c)
	require.NotNil(t, c.Export)
	assert.Equal(t, "CIF", c.Export.Incoterm)
}
