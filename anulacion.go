package fel

import (
	"context"
	"strings"
	"time"

	"github.com/beevik/etree"
)

// AnulacionDocument is the typed projection of a void request
// (GT_AnulacionDocumento).
type AnulacionDocument struct {
	OriginAuthorization string
	EmisorNIT           string
	ReceptorID          string
	OriginEmissionDate  timeValue
	VoidTimestamp       timeValue
	Reason              string
	Signatures          []SignatureDescriptor
}

// timeValue pairs a timestamp with its raw presence so rules can distinguish
// an absent field from an unparseable one.
type timeValue struct {
	Value   time.Time
	Present bool
	Valid   bool
}

// ProjectAnulacion parses anulación XML into its projection. Same contract
// as Project: nil document plus findings on malformed input.
func ProjectAnulacion(data []byte) (*AnulacionDocument, []Finding) {
	tree := etree.NewDocument()
	if err := tree.ReadFromBytes(data); err != nil {
		return nil, []Finding{{
			Code:     CodeMalformedXML,
			Message:  Message(CodeMalformedXML) + ": " + err.Error(),
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		}}
	}
	root := tree.Root()
	if root == nil {
		return nil, []Finding{{
			Code:     CodeMalformedXML,
			Message:  Message(CodeMalformedXML) + ": documento vacío",
			Severity: Reject,
			Category: GeneralPart1,
			SATLevel: LevelCertificador,
		}}
	}

	doc := &AnulacionDocument{}
	// DatosGenerales carries the payload as attributes in the SAT schema;
	// element form is tolerated for hand-built documents.
	attrOrElem := func(name string) string {
		if dg := root.FindElement("//DatosGenerales"); dg != nil {
			if v := dg.SelectAttrValue(name, ""); v != "" {
				return strings.TrimSpace(v)
			}
		}
		v, _ := elementText(root, "//"+name)
		return v
	}
	doc.OriginAuthorization = attrOrElem("NumeroDocumentoAAnular")
	doc.EmisorNIT = attrOrElem("NITEmisor")
	doc.ReceptorID = attrOrElem("IDReceptor")
	doc.Reason = attrOrElem("MotivoAnulacion")
	if v := attrOrElem("FechaEmisionDocumentoAnular"); v != "" {
		doc.OriginEmissionDate.Present = true
		if t, ok := parseDatetime(v); ok {
			doc.OriginEmissionDate.Value = t
			doc.OriginEmissionDate.Valid = true
		}
	}
	if v := attrOrElem("FechaHoraAnulacion"); v != "" {
		doc.VoidTimestamp.Present = true
		if t, ok := parseDatetime(v); ok {
			doc.VoidTimestamp.Value = t
			doc.VoidTimestamp.Valid = true
		}
	}
	for _, el := range root.FindElements("//Signature") {
		id := el.SelectAttrValue("Id", "")
		switch {
		case strings.Contains(id, "Emisor"):
			doc.Signatures = append(doc.Signatures, SignatureDescriptor{Role: SignatureEmisor})
		case strings.Contains(id, "Certificador"):
			doc.Signatures = append(doc.Signatures, SignatureDescriptor{Role: SignatureCertificador})
		}
	}
	return doc, nil
}

// checkAnulacion runs the void-request rules (3.13.x).
func (v *Validator) checkAnulacion(ctx context.Context, d *AnulacionDocument) []Finding {
	var out []Finding

	if !ValidUUIDv4(d.OriginAuthorization) {
		f := R31311.Finding("")
		f.Field = "NumeroDocumentoAAnular"
		f.Actual = d.OriginAuthorization
		out = append(out, f)
	}

	if d.VoidTimestamp.Valid && d.OriginEmissionDate.Valid &&
		d.VoidTimestamp.Value.Before(d.OriginEmissionDate.Value) {
		f := R31321.Finding("")
		f.Field = "FechaHoraAnulacion"
		f.Expected = "posterior a " + d.OriginEmissionDate.Value.Format("2006-01-02")
		f.Actual = d.VoidTimestamp.Value.Format("2006-01-02 15:04:05")
		out = append(out, f)
	}

	if d.EmisorNIT == "" || !ValidNIT(d.EmisorNIT) || d.EmisorNIT == "CF" {
		f := R31331.Finding("")
		f.Field = "NITEmisor"
		f.Actual = d.EmisorNIT
		out = append(out, f)
	} else if v.registry != nil {
		exists, err := v.registry.NitExists(ctx, d.EmisorNIT)
		if err != nil {
			out = append(out, registryOutage(err, GeneralPart4, "NITEmisor"))
		} else if !exists {
			f := R31331.Finding("")
			f.Field = "NITEmisor"
			f.Actual = d.EmisorNIT
			out = append(out, f)
		}
	}
	return out
}
