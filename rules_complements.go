package fel

import "context"

// checkComplements runs the complement rules (3.x): each document type or
// flag requiring a structured complement must carry it, and the payloads the
// rules understand are checked against their catalogs.
func (v *Validator) checkComplements(_ context.Context, d *Document) []Finding {
	var out []Finding

	if d.IsExport {
		exp := d.FindComplement(ComplementExportacion)
		if exp == nil {
			if !d.Type.Note() {
				out = append(out, R3211.Finding(""))
			}
		} else if exp.Export != nil && exp.Export.Incoterm != "" {
			if _, ok := Incoterms[exp.Export.Incoterm]; !ok {
				f := R3212.Finding("")
				f.Field = "INCOTERM"
				f.Actual = exp.Export.Incoterm
				out = append(out, f)
			}
		}
	}

	if d.Type == TipoFESP {
		if d.FindComplement(ComplementRetencFacturaEspecial) == nil {
			out = append(out, R3411.Finding(""))
		}
	}

	if d.Type.Note() {
		ref := d.FindComplement(ComplementReferenciasNota)
		switch {
		case ref == nil || ref.NoteRef == nil:
			out = append(out, R3500.Finding(""))
		case ref.NoteRef.OriginAuthorization == "":
			out = append(out, R3510.Finding(""))
		case !ValidUUIDv4(ref.NoteRef.OriginAuthorization):
			f := R3511.Finding("")
			f.Field = "NumeroAutorizacionDocumentoOrigen"
			f.Actual = ref.NoteRef.OriginAuthorization
			out = append(out, f)
		}
	}

	if d.IsPublicShow {
		if d.FindComplement(ComplementEspectaculosPublicos) == nil {
			out = append(out, R3711.Finding(""))
		}
	}
	return out
}
