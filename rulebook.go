package fel

// Rule is one entry of the SAT rulebook. The engine emits findings through
// the rulebook so code, severity, category and SAT tier stay consistent with
// the published Reglas y Validaciones.
type Rule struct {
	Code        string
	Category    Category
	Severity    Severity
	SATLevel    SATLevel
	Description string
}

// Finding materializes the rule as a finding. An empty message falls back to
// the rule description.
func (r Rule) Finding(msg string) Finding {
	if msg == "" {
		msg = r.Description
	}
	return Finding{
		Code:     r.Code,
		Message:  msg,
		Severity: r.Severity,
		Category: r.Category,
		SATLevel: r.SATLevel,
	}
}

// Rulebook indexes every implemented rule by code.
var Rulebook = map[string]Rule{}

func rule(code string, cat Category, sev Severity, desc string) Rule {
	r := Rule{Code: code, Category: cat, Severity: sev, SATLevel: LevelCertificador, Description: desc}
	Rulebook[code] = r
	return r
}

// General part 1 (2.2.x): emission data, emisor, establishment, receptor,
// export and public-show flags, currency.
var (
	R2201   = rule("2.2.0.1", GeneralPart1, Reject, "Tipo de DTE no reconocido")
	R2211_0 = rule("2.2.1.0", GeneralPart1, Reject, "Falta la fecha de emisión o su formato es inválido")
	R2211   = rule("2.2.1.1", GeneralPart1, InformError, "La fecha de emisión excede el límite de cinco días respecto a la certificación")
	R2212   = rule("2.2.1.2", GeneralPart1, InformError, "La fecha de emisión es posterior al último día del mes de certificación")

	R2220 = rule("2.2.2.0", GeneralPart1, Reject, "Falta el NIT del emisor")
	R2221 = rule("2.2.2.1", GeneralPart1, Reject, "El NIT del emisor no existe en el RTU")
	R2222 = rule("2.2.2.2", GeneralPart1, Reject, "El NIT del emisor no se encuentra activo")
	R2223 = rule("2.2.2.3", GeneralPart1, Reject, "El NIT del emisor no está afiliado al IVA y el tipo de DTE lo requiere")
	R2224 = rule("2.2.2.4", GeneralPart1, InformWarning, "El nombre del emisor no coincide con el registrado en el RTU")

	R2230 = rule("2.2.3.0", GeneralPart1, Reject, "Falta el código de establecimiento")
	R2231 = rule("2.2.3.1", GeneralPart1, Reject, "El establecimiento no se encuentra activo en la fecha de emisión")

	R2240  = rule("2.2.4.0", GeneralPart1, Reject, "Falta el identificador del receptor")
	R2241  = rule("2.2.4.1", GeneralPart1, Reject, "El CUI del receptor no es numérico")
	R2242  = rule("2.2.4.2", GeneralPart1, Reject, "El identificador CUI no está permitido en exportaciones")
	R2243  = rule("2.2.4.3", GeneralPart1, Reject, "El CUI del receptor tiene dígito verificador inválido")
	R2244  = rule("2.2.4.4", GeneralPart1, Reject, "El NIT del receptor es inválido")
	R2249  = rule("2.2.4.9", GeneralPart1, Reject, "El CUI del receptor no existe en RENAP")
	R22410 = rule("2.2.4.10", GeneralPart1, InformError, "El CUI corresponde a una persona fallecida")
	R22411 = rule("2.2.4.11", GeneralPart1, Reject, "El monto excede el límite permitido para Consumidor Final")

	R2251 = rule("2.2.5.1", GeneralPart1, Reject, "El tipo de DTE no puede utilizarse en exportaciones")
	R2252 = rule("2.2.5.2", GeneralPart1, Reject, "Las exportaciones deben incluir el complemento Exportación")

	R2261 = rule("2.2.6.1", GeneralPart1, Reject, "El tipo de DTE no puede utilizarse para espectáculos públicos")
	R2262 = rule("2.2.6.2", GeneralPart1, Reject, "Una exportación no puede marcarse como espectáculo público")
	R2263 = rule("2.2.6.3", GeneralPart1, Reject, "Los espectáculos públicos deben incluir el complemento Espectáculos Públicos")

	R2271 = rule("2.2.7.1", GeneralPart1, Reject, "El código de moneda no es válido según ISO 4217")
	R2272 = rule("2.2.7.2", GeneralPart1, Reject, "El monto en moneda extranjera excede el límite de Consumidor Final al convertirlo a GTQ")
	R2273 = rule("2.2.7.3", GeneralPart1, InformWarning, "No hay tipo de cambio configurado; se omite la validación del límite de Consumidor Final")
)

// Items (2.3.x).
var (
	R2311 = rule("2.3.1.1", GeneralPart2, Reject, "Los documentos de espectáculo público deben tener exactamente un ítem")
	R2312 = rule("2.3.1.2", GeneralPart2, Reject, "Los documentos CIVA no pueden tener más de dos ítems")
	R2321 = rule("2.3.2.1", GeneralPart2, Reject, "Los números de línea deben ser consecutivos iniciando en 1")
	R2341 = rule("2.3.4.1", GeneralPart2, Reject, "Las cantidades y precios unitarios no pueden ser negativos")
	R2342 = rule("2.3.4.2", GeneralPart2, Reject, "Monto fuera del rango monetario permitido")
	R2350 = rule("2.3.5.0", GeneralPart2, Reject, "Valores numéricos inválidos en el ítem")
	R2351 = rule("2.3.5.1", GeneralPart2, Reject, "El precio del ítem no corresponde a cantidad por precio unitario")
	R2361 = rule("2.3.6.1", GeneralPart2, Reject, "El descuento no puede ser mayor que el precio")
	R2371 = rule("2.3.7.1", GeneralPart2, Reject, "Otros descuentos no pueden exceder el precio menos el descuento")
	R2381 = rule("2.3.8.1", GeneralPart2, Reject, "Los contribuyentes agropecuarios solo pueden facturar bienes (B)")
	R2382 = rule("2.3.8.2", GeneralPart2, Reject, "Los espectáculos públicos solo pueden facturar servicios (S)")
	R2391 = rule("2.3.9.1", GeneralPart2, Reject, "El total del ítem no corresponde al precio menos descuentos")
)

// Taxes (2.7.x IVA, 2.8.x Petróleo, 2.9.x other specific taxes).
var (
	R2700 = rule("2.7.0", TaxSpecific, Reject, "Valores numéricos de impuesto inválidos")
	R2701 = rule("2.7.0.1", TaxSpecific, Reject, "Impuesto no reconocido en el catálogo")
	R2711 = rule("2.7.1.1", TaxSpecific, Reject, "MontoGravable debe estar presente para el IVA")
	R2721 = rule("2.7.2.1", TaxSpecific, Reject, "Código de unidad gravable de IVA inválido")
	R2741 = rule("2.7.4.1", TaxSpecific, Reject, "El monto de IVA está calculado incorrectamente")
	R2811 = rule("2.8.1.1", TaxSpecific, Reject, "Código de unidad gravable de Petróleo inválido")
	R2821 = rule("2.8.2.1", TaxSpecific, Reject, "El monto del impuesto al Petróleo está calculado incorrectamente")
	R2911 = rule("2.9.1.1", TaxSpecific, Reject, "Código de unidad gravable inválido para el impuesto")
)

// Phrases (2.6.x).
var (
	R2611 = rule("2.6.1.1", PhraseValidation, InformError, "La frase de ISR escenario 1 requiere afiliación al régimen sobre utilidades")
	R2613 = rule("2.6.1.3", PhraseValidation, InformError, "Código de escenario inválido para frase tipo 4")
	R2615 = rule("2.6.1.5", PhraseValidation, InformError, "El agente de retención del IVA debe incluir la frase tipo 2")
	R2616 = rule("2.6.1.6", PhraseValidation, InformError, "Los documentos de exportación deben incluir la frase tipo 4")
	R2617 = rule("2.6.1.7", PhraseValidation, InformError, "La frase de exportación tipo 4 debe usar el escenario 1")
	R2621 = rule("2.6.2.1", PhraseValidation, Reject, "Tipo de frase no reconocido")
)

// Complements (3.x).
var (
	R3211 = rule("3.2.1.1", ComplementValidation, Reject, "Las exportaciones deben incluir el complemento Exportación")
	R3212 = rule("3.2.1.2", ComplementValidation, Reject, "INCOTERM inválido en el complemento de exportación")
	R3411 = rule("3.4.1.1", ComplementValidation, Reject, "La factura especial debe incluir el complemento de retención")
	R3500 = rule("3.5.0", ComplementValidation, Reject, "Las notas de crédito y débito deben incluir el complemento Referencias Nota")
	R3510 = rule("3.5.1.0", ComplementValidation, Reject, "Falta el número de autorización del documento origen")
	R3511 = rule("3.5.1.1", ComplementValidation, Reject, "Formato inválido del número de autorización del documento origen")
	R3711 = rule("3.7.1.1", ComplementValidation, Reject, "Los espectáculos públicos deben incluir el complemento Espectáculos Públicos")
)

// Totals (2.19.x).
var (
	R21920 = rule("2.19.2.0", GeneralPart3, Reject, "Formato inválido del Gran Total")
	R21921 = rule("2.19.2.1", GeneralPart3, Reject, "El Gran Total está calculado incorrectamente")
	R21922 = rule("2.19.2.2", GeneralPart3, Reject, "El Gran Total no puede ser negativo")
	R21924 = rule("2.19.2.4", GeneralPart3, Reject, "El Gran Total excede el límite permitido para Consumidor Final")
)

// Signatures and authorization (3.12.x).
var (
	R31211 = rule("3.12.1.1", GeneralPart4, Reject, "Falta la firma electrónica del emisor")
	R31241 = rule("3.12.4.1", GeneralPart4, Reject, "Falta la firma electrónica del certificador")
	R31251 = rule("3.12.5.1", GeneralPart4, Reject, "Formato UUID inválido en el número de autorización")
	R31261 = rule("3.12.6.1", GeneralPart4, Reject, "La serie no corresponde al número de autorización")
	R31270 = rule("3.12.7.0", GeneralPart4, Reject, "Formato inválido del número de DTE")
	R31271 = rule("3.12.7.1", GeneralPart4, Reject, "El número de DTE no corresponde al número de autorización")
)

// Anulación (3.13.x).
var (
	R31311 = rule("3.13.1.1", GeneralPart4, Reject, "El número de autorización del documento a anular es inválido")
	R31321 = rule("3.13.2.1", GeneralPart4, Reject, "La fecha de anulación no puede ser anterior a la emisión del documento")
	R31331 = rule("3.13.3.1", GeneralPart4, Reject, "El NIT del emisor de la anulación es inválido")
)
