package fel

import (
	"bytes"
	"encoding/xml"
	"errors"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/beevik/etree"
	"github.com/shopspring/decimal"
)

// datetimeLayouts are the timestamp shapes accepted on the wire, most
// specific first.
var datetimeLayouts = []string{
	"2006-01-02T15:04:05.000-07:00",
	"2006-01-02T15:04:05-07:00",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02",
	"02/01/2006 15:04:05",
	"02/01/2006",
}

func parseDatetime(s string) (time.Time, bool) {
	s = strings.TrimSpace(s)
	for _, layout := range datetimeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}

func parseDecimal(s string) (decimal.Decimal, bool) {
	d, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}

// elementText returns the trimmed text of the first element matching path
// under e, and whether the element exists.
func elementText(e *etree.Element, path string) (string, bool) {
	el := e.FindElement(path)
	if el == nil {
		return "", false
	}
	return strings.TrimSpace(el.Text()), true
}

// Project parses DTE XML into the typed document model. The parser is
// deliberately lenient: unknown elements are skipped and missing required
// data surfaces later as business-rule findings. Only malformed XML or a
// broken encoding aborts, returning a nil document alongside the findings.
func Project(data []byte) (*Document, []Finding) {
	var findings []Finding

	if !utf8.Valid(data) {
		findings = append(findings, Finding{
			Code:     CodeInvalidEncoding,
			Message:  Message(CodeInvalidEncoding),
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		})
		return nil, findings
	}
	head := data
	if len(head) > 200 {
		head = head[:200]
	}
	if bytes.Contains(head, []byte("<?xml")) && !bytes.Contains(head, []byte("encoding=")) {
		findings = append(findings, Finding{
			Code:     CodeMissingEncoding,
			Message:  "Se recomienda declarar la codificación del XML",
			Severity: InformWarning,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		})
	}

	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		f := Finding{
			Code:     CodeMalformedXML,
			Message:  Message(CodeMalformedXML) + ": " + err.Error(),
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		}
		var syn *xml.SyntaxError
		if errors.As(err, &syn) {
			f.Line = syn.Line
		}
		findings = append(findings, f)
		return nil, findings
	}
	root := tree.Root()
	if root == nil {
		findings = append(findings, Finding{
			Code:     CodeMalformedXML,
			Message:  Message(CodeMalformedXML) + ": documento vacío",
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		})
		return nil, findings
	}

	doc := &Document{}
	projectGeneral(root, doc)
	projectItems(root, doc)
	projectTaxes(root, doc)
	projectPhrases(root, doc)
	projectComplements(root, doc)
	projectCertification(root, doc)
	projectSignatures(root, doc)
	return doc, findings
}

func projectGeneral(root *etree.Element, doc *Document) {
	if v, ok := elementText(root, "//TipoDTE"); ok {
		doc.Type = DTEType(strings.ToUpper(v))
	}
	if v, ok := elementText(root, "//FechaHoraEmision"); ok {
		doc.HasEmissionTimestamp = true
		if t, ok := parseDatetime(v); ok {
			doc.EmissionTimestamp = t
		}
	}
	if v, ok := elementText(root, "//Moneda"); ok {
		doc.Currency = strings.ToUpper(v)
	}
	doc.IsExport = root.FindElement("//Exp") != nil
	doc.IsPublicShow = root.FindElement("//EspectaculoPublico") != nil

	if v, ok := elementText(root, "//NITEmisor"); ok {
		doc.EmisorNIT = v
	}
	doc.EmisorName, _ = elementText(root, "//NombreEmisor")
	doc.EstablishmentCode, _ = elementText(root, "//CodigoEstablecimiento")

	if v, ok := elementText(root, "//IDReceptor"); ok {
		doc.ReceptorID = v
	}
	doc.ReceptorName, _ = elementText(root, "//NombreReceptor")
	special, _ := elementText(root, "//TipoEspecial")
	switch {
	case doc.ReceptorID == "CF":
		doc.ReceptorIDKind = ReceptorCF
	case strings.EqualFold(special, "CUI"):
		doc.ReceptorIDKind = ReceptorCUI
	case strings.EqualFold(special, "EXT"):
		doc.ReceptorIDKind = ReceptorEXT
	default:
		doc.ReceptorIDKind = ReceptorNIT
	}

	// Total and GranTotal live under Totales; the descendant search also
	// tolerates flat test documents.
	if v, ok := elementText(root, "//GranTotal"); ok {
		doc.HasGrandTotal = true
		if d, ok := parseDecimal(v); ok {
			doc.GrandTotal = d
		}
	}
	if v, ok := elementText(root, "//Totales/Total"); ok {
		if d, ok := parseDecimal(v); ok {
			doc.Total = d
		}
	} else if v, ok := elementText(root, "//TotalMenosDescuento"); ok {
		if d, ok := parseDecimal(v); ok {
			doc.Total = d
		}
	}
}

func projectItems(root *etree.Element, doc *Document) {
	for _, el := range root.FindElements("//Item") {
		item := Item{}
		if v := el.SelectAttrValue("NumeroLinea", ""); v != "" {
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				item.LineNumber = n
			}
		}
		if v, ok := elementText(el, "BienOServicio"); ok {
			item.Kind = ItemKind(strings.ToUpper(v))
		}
		item.UOM, _ = elementText(el, "UnidadMedida")
		item.Description, _ = elementText(el, "Descripcion")
		item.ProductCode, _ = elementText(el, "CodigoProducto")

		num := func(path string) decimal.Decimal {
			v, ok := elementText(el, path)
			if !ok || v == "" {
				return decimal.Zero
			}
			d, ok := parseDecimal(v)
			if !ok {
				item.ParseError = true
				return decimal.Zero
			}
			return d
		}
		item.Quantity = num("Cantidad")
		item.UnitPrice = num("PrecioUnitario")
		item.Price = num("Precio")
		item.Discount = num("Descuento")
		item.OtherDiscount = num("OtrosDescuento")
		item.Total = num("Total")
		doc.Items = append(doc.Items, item)
	}
}

func projectTaxes(root *etree.Element, doc *Document) {
	for _, el := range root.FindElements("//Impuesto") {
		tax := Tax{}
		if v, ok := elementText(el, "NombreCorto"); ok {
			tax.Kind = TaxKind(strings.ToUpper(v))
		}
		if v, ok := elementText(el, "MontoGravable"); ok {
			tax.HasTaxable = true
			if d, ok := parseDecimal(v); ok {
				tax.TaxableAmount = d
			} else {
				tax.ParseError = true
			}
		}
		if v, ok := elementText(el, "CodigoUnidadGravable"); ok {
			tax.HasUnitCode = true
			if n, err := strconv.Atoi(strings.TrimSpace(v)); err == nil {
				tax.UnitCode = n
			} else {
				tax.ParseError = true
			}
		}
		if v, ok := elementText(el, "CantidadUnidadesGravables"); ok {
			if d, ok := parseDecimal(v); ok {
				tax.UnitQuantity = d
			} else {
				tax.ParseError = true
			}
		}
		if v, ok := elementText(el, "MontoImpuesto"); ok {
			if d, ok := parseDecimal(v); ok {
				tax.TaxAmount = d
			} else {
				tax.ParseError = true
			}
		}
		if v, ok := elementText(el, "TotalMontoImpuesto"); ok {
			if d, ok := parseDecimal(v); ok {
				tax.TotalTaxAmount = d
			}
		}
		doc.Taxes = append(doc.Taxes, tax)
	}
	// TotalImpuestos rollups live outside the per-item Impuesto blocks.
	for _, el := range root.FindElements("//TotalImpuesto") {
		kind := TaxKind(strings.ToUpper(el.SelectAttrValue("NombreCorto", "")))
		amt, ok := parseDecimal(el.SelectAttrValue("TotalMontoImpuesto", ""))
		if !ok {
			continue
		}
		for i := range doc.Taxes {
			if doc.Taxes[i].Kind == kind && doc.Taxes[i].TotalTaxAmount.IsZero() {
				doc.Taxes[i].TotalTaxAmount = amt
			}
		}
	}
}

func projectPhrases(root *etree.Element, doc *Document) {
	for _, el := range root.FindElements("//Frase") {
		p := Phrase{}
		tipo := el.SelectAttrValue("TipoFrase", "")
		if tipo == "" {
			tipo, _ = elementText(el, "TipoFrase")
		}
		if n, err := strconv.Atoi(strings.TrimSpace(tipo)); err == nil {
			p.Type = PhraseType(n)
		}
		scen := el.SelectAttrValue("CodigoEscenario", "")
		if scen == "" {
			scen, _ = elementText(el, "CodigoEscenario")
		}
		if n, err := strconv.Atoi(strings.TrimSpace(scen)); err == nil {
			p.Scenario = n
		}
		p.ResolutionNumber = el.SelectAttrValue("NumeroResolucion", "")
		if v := el.SelectAttrValue("FechaResolucion", ""); v != "" {
			if t, ok := parseDatetime(v); ok {
				p.ResolutionDate = t
			}
		}
		p.Text = strings.TrimSpace(el.Text())
		doc.Phrases = append(doc.Phrases, p)
	}
}

func projectComplements(root *etree.Element, doc *Document) {
	if el := root.FindElement("//Exportacion"); el != nil {
		exp := &ExportComplement{}
		exp.Incoterm, _ = elementText(el, "INCOTERM")
		exp.ConsigneeName, _ = elementText(el, "NombreConsignatarioODestinatario")
		exp.ConsigneeAddress, _ = elementText(el, "DireccionConsignatarioODestinatario")
		exp.ExporterCode, _ = elementText(el, "CodigoExportador")
		exp.DestinationCountry, _ = elementText(el, "PaisDestino")
		doc.Complements = append(doc.Complements, Complement{Kind: ComplementExportacion, Export: exp})
	}
	if el := root.FindElement("//ReferenciasNota"); el != nil {
		ref := &NoteReference{}
		if v, ok := elementText(el, "NumeroAutorizacionDocumentoOrigen"); ok {
			ref.OriginAuthorization = v
		} else {
			ref.OriginAuthorization = el.SelectAttrValue("NumeroAutorizacionDocumentoOrigen", "")
		}
		if v := el.SelectAttrValue("FechaEmisionDocumentoOrigen", ""); v != "" {
			if t, ok := parseDatetime(v); ok {
				ref.OriginEmissionDate = t
			}
		}
		ref.OriginSerie = el.SelectAttrValue("SerieDocumentoOrigen", "")
		ref.OriginNumero = el.SelectAttrValue("NumeroDocumentoOrigen", "")
		ref.Reason = el.SelectAttrValue("MotivoAjuste", "")
		doc.Complements = append(doc.Complements, Complement{Kind: ComplementReferenciasNota, NoteRef: ref})
	}
	if el := root.FindElement("//EspectaculosPublicos"); el != nil {
		show := &PublicShowComplement{}
		show.EventName, _ = elementText(el, "NombreEspectaculo")
		show.Location, _ = elementText(el, "LugarEspectaculo")
		if v, ok := elementText(el, "FechaEspectaculo"); ok {
			if t, ok := parseDatetime(v); ok {
				show.EventDate = t
			}
		}
		doc.Complements = append(doc.Complements, Complement{Kind: ComplementEspectaculosPublicos, Show: show})
	}
	if el := root.FindElement("//RetencionesFacturaEspecial"); el != nil {
		ret := &SpecialInvoiceRetention{}
		if v, ok := elementText(el, "RetencionIVA"); ok {
			if d, ok := parseDecimal(v); ok {
				ret.RetainedIVA = d
			}
		}
		if v, ok := elementText(el, "RetencionISR"); ok {
			if d, ok := parseDecimal(v); ok {
				ret.RetainedISR = d
			}
		}
		doc.Complements = append(doc.Complements, Complement{Kind: ComplementRetencFacturaEspecial, Retention: ret})
	}
	// Remaining complement kinds are opaque to the rules; record presence.
	opaque := []struct {
		element string
		kind    ComplementKind
	}{
		{"AbonosFacturaCambiaria", ComplementAbonosCambiaria},
		{"CobroXCuentaAjena", ComplementCobroCuentaAjena},
		{"ReferenciasConstancia", ComplementReferenciasConstancia},
		{"MediosDePago", ComplementMediosPago},
		{"Decreto312022", ComplementDecreto312022},
		{"OrganizacionesPoliticas", ComplementOrgPoliticas},
		{"TrasladoMercancias", ComplementTrasladoMercancias},
	}
	for _, c := range opaque {
		if root.FindElement("//"+c.element) != nil {
			doc.Complements = append(doc.Complements, Complement{Kind: c.kind})
		}
	}
}

func projectCertification(root *etree.Element, doc *Document) {
	if v, ok := elementText(root, "//FechaHoraCertificacion"); ok {
		if t, ok := parseDatetime(v); ok {
			doc.CertificationTimestamp = t
		}
	}
	doc.AuthorizationID, _ = elementText(root, "//NumeroAutorizacion")
	if doc.AuthorizationID == "" {
		if el := root.FindElement("//NumeroAutorizacion"); el != nil {
			doc.AuthorizationID = strings.TrimSpace(el.Text())
		}
	}
	doc.Serie, _ = elementText(root, "//Serie")
	if doc.Serie == "" {
		if el := root.FindElement("//NumeroAutorizacion"); el != nil {
			doc.Serie = el.SelectAttrValue("Serie", "")
		}
	}
	doc.Numero, _ = elementText(root, "//Numero")
	if doc.Numero == "" {
		if el := root.FindElement("//NumeroAutorizacion"); el != nil {
			doc.Numero = el.SelectAttrValue("Numero", "")
		}
	}
}

func projectSignatures(root *etree.Element, doc *Document) {
	for _, el := range root.FindElements("//Signature") {
		id := el.SelectAttrValue("Id", "")
		sig := SignatureDescriptor{}
		switch {
		case strings.Contains(id, "Emisor"):
			sig.Role = SignatureEmisor
		case strings.Contains(id, "Certificador"):
			sig.Role = SignatureCertificador
		default:
			continue
		}
		if m := el.FindElement(".//SignatureMethod"); m != nil {
			sig.Algorithm = m.SelectAttrValue("Algorithm", "")
		}
		doc.Signatures = append(doc.Signatures, sig)
	}
}
