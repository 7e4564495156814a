// Package fel implements the validation core of a FEL certificador:
// schema validation of DTE documents against the SAT XSD set and a business
// rule engine interpreting the rulebook (Reglas y Validaciones) over a typed
// document projection.
package fel

import "github.com/shopspring/decimal"

// RulebookVersion is the version of the SAT rulebook this catalog encodes.
// It is surfaced in every verdict for audit purposes.
const RulebookVersion = "1.7.9"

type (
	// DTEType is the document type code (TipoDTE).
	DTEType string
	// TaxKind identifies a tax by its short name (NombreCorto).
	TaxKind string
	// PhraseType is the numeric phrase class 1..9 (TipoFrase).
	PhraseType int
	// ComplementKind identifies a structured complement block.
	ComplementKind string
	// ReceptorIDKind distinguishes the receptor identifier flavors.
	ReceptorIDKind string
	// SignatureRole is the role of a signature block in the document.
	SignatureRole string
	// ItemKind distinguishes goods from services (BienOServicio).
	ItemKind string
)

// Document types per Acuerdo de Directorio SAT 13-2018.
const (
	TipoFACT DTEType = "FACT" // Factura
	TipoFCAM DTEType = "FCAM" // Factura Cambiaria
	TipoFPEQ DTEType = "FPEQ" // Factura Pequeño Contribuyente
	TipoFCAP DTEType = "FCAP" // Factura Cambiaria Pequeño Contribuyente
	TipoFESP DTEType = "FESP" // Factura Especial
	TipoNABN DTEType = "NABN" // Nota de Abono
	TipoRDON DTEType = "RDON" // Recibo por Donación
	TipoRECI DTEType = "RECI" // Recibo
	TipoNDEB DTEType = "NDEB" // Nota de Débito
	TipoNCRE DTEType = "NCRE" // Nota de Crédito
	TipoFACA DTEType = "FACA" // Factura Contribuyente Agropecuario
	TipoFCCA DTEType = "FCCA" // Factura Cambiaria Contribuyente Agropecuario
	TipoFAPE DTEType = "FAPE" // Factura Pequeño Contribuyente Régimen Electrónico
	TipoFCPE DTEType = "FCPE" // Factura Cambiaria Pequeño Contribuyente Régimen Electrónico
	TipoFAAE DTEType = "FAAE" // Factura Contribuyente Agropecuario Régimen Electrónico Especial
	TipoFCAE DTEType = "FCAE" // Factura Cambiaria Contribuyente Agropecuario Régimen Electrónico Especial
	TipoCIVA DTEType = "CIVA" // Constancia de Exención de IVA
	TipoCAIS DTEType = "CAIS" // Constancia de Adquisición de Insumos y Servicios
	TipoNEV  DTEType = "NEV"  // Nota de Envío
	TipoRANT DTEType = "RANT" // Recibo de Anticipos
)

// AllDTETypes lists every recognized document type.
var AllDTETypes = []DTEType{
	TipoFACT, TipoFCAM, TipoFPEQ, TipoFCAP, TipoFESP, TipoNABN, TipoRDON,
	TipoRECI, TipoNDEB, TipoNCRE, TipoFACA, TipoFCCA, TipoFAPE, TipoFCPE,
	TipoFAAE, TipoFCAE, TipoCIVA, TipoCAIS, TipoNEV, TipoRANT,
}

// Known reports whether t is one of the recognized document types.
func (t DTEType) Known() bool {
	for _, k := range AllDTETypes {
		if t == k {
			return true
		}
	}
	return false
}

// InvoiceClass reports whether t is one of the factura-class documents
// subject to the consumidor final amount cap.
func (t DTEType) InvoiceClass() bool {
	switch t {
	case TipoFACT, TipoFCAM, TipoFPEQ, TipoFCAP, TipoFCCA, TipoFACA,
		TipoFAPE, TipoFAAE, TipoFCPE, TipoFCAE:
		return true
	}
	return false
}

// Agricultural reports whether t belongs to the contribuyente agropecuario
// regime, which may only invoice goods.
func (t DTEType) Agricultural() bool {
	switch t {
	case TipoFACA, TipoFCCA, TipoFAAE, TipoFCAE:
		return true
	}
	return false
}

// SmallContributor reports whether t belongs to the pequeño contribuyente
// regime.
func (t DTEType) SmallContributor() bool {
	switch t {
	case TipoFPEQ, TipoFCAP, TipoFAPE, TipoFCPE:
		return true
	}
	return false
}

// ElectronicRegime reports whether t belongs to a régimen electrónico.
func (t DTEType) ElectronicRegime() bool {
	switch t {
	case TipoFAPE, TipoFCPE, TipoFAAE, TipoFCAE:
		return true
	}
	return false
}

// Note reports whether t is a credit or debit note.
func (t DTEType) Note() bool {
	return t == TipoNCRE || t == TipoNDEB
}

// ExemptionConstancy reports whether t is a constancia (CIVA/CAIS), which is
// exempt from the emission/certification date-window rules.
func (t DTEType) ExemptionConstancy() bool {
	return t == TipoCIVA || t == TipoCAIS
}

// Exportable reports whether t may carry the export flag.
func (t DTEType) Exportable() bool {
	switch t {
	case TipoNABN, TipoRDON, TipoRECI, TipoFESP, TipoCIVA, TipoCAIS:
		return false
	}
	return true
}

// PublicShowAllowed reports whether t may carry the espectáculo público flag.
func (t DTEType) PublicShowAllowed() bool {
	switch t {
	case TipoFACT, TipoFCAM, TipoFPEQ, TipoFCAP, TipoFAPE, TipoFCPE:
		return true
	}
	return false
}

// Receptor identifier kinds.
const (
	ReceptorNIT ReceptorIDKind = "NIT"
	ReceptorCUI ReceptorIDKind = "CUI"
	ReceptorEXT ReceptorIDKind = "EXT"
	ReceptorCF  ReceptorIDKind = "CF"
)

// Item kinds.
const (
	ItemGood    ItemKind = "B"
	ItemService ItemKind = "S"
)

// Signature roles.
const (
	SignatureEmisor       SignatureRole = "EMISOR"
	SignatureCertificador SignatureRole = "CERTIFICADOR"
)

// Tax kinds.
const (
	TaxIVA                  TaxKind = "IVA"
	TaxPetroleo             TaxKind = "PETROLEO"
	TaxTurismoHospedaje     TaxKind = "TURISMO HOSPEDAJE"
	TaxTurismoPasajes       TaxKind = "TURISMO PASAJES"
	TaxTimbrePrensa         TaxKind = "TIMBRE DE PRENSA"
	TaxBomberos             TaxKind = "BOMBEROS"
	TaxTasaMunicipal        TaxKind = "TASA MUNICIPAL"
	TaxBebidasAlcoholicas   TaxKind = "BEBIDAS ALCOHÓLICAS"
	TaxTabaco               TaxKind = "TABACO"
	TaxCemento              TaxKind = "CEMENTO"
	TaxBebidasNoAlcoholicas TaxKind = "BEBIDAS NO ALCOHÓLICAS"
	TaxTarifaPortuaria      TaxKind = "TARIFA PORTUARIA"
)

// GravableUnit is one taxable unit of a tax (CodigoUnidadGravable).
type GravableUnit struct {
	Name string
	// Rate is a percentage for percentage taxes (IVA) and an amount per
	// unit for specific taxes (Petróleo).
	Rate decimal.Decimal
}

// TaxConfig is the catalog entry for one tax kind.
type TaxConfig struct {
	Code       int
	Name       string
	ShortName  TaxKind
	BaseLegal  string
	AddToTotal bool
	// Units maps CodigoUnidadGravable to its configuration.
	Units map[int]GravableUnit
}

func pct(s string) decimal.Decimal { return decimal.RequireFromString(s) }

// TaxConfigs is the static tax catalog keyed by short name.
var TaxConfigs = map[TaxKind]TaxConfig{
	TaxIVA: {
		Code:       1,
		Name:       "Impuesto al Valor Agregado (IVA)",
		ShortName:  TaxIVA,
		BaseLegal:  "Decreto 27-92",
		AddToTotal: false, // already included in the price
		Units: map[int]GravableUnit{
			1: {Name: "Tasa 12.00%", Rate: pct("12")},
			2: {Name: "Tasa 0 (Cero)", Rate: pct("0")},
		},
	},
	TaxPetroleo: {
		Code:       2,
		Name:       "Impuesto a la Distribución de Petróleo Crudo y Combustibles Derivados del Petróleo (IDP)",
		ShortName:  TaxPetroleo,
		BaseLegal:  "Decreto 38-92",
		AddToTotal: true,
		Units: map[int]GravableUnit{
			1:  {Name: "Gasolina superior", Rate: pct("4.70")},
			2:  {Name: "Gasolina regular", Rate: pct("4.60")},
			3:  {Name: "Gasolina de aviación", Rate: pct("4.70")},
			4:  {Name: "Diésel", Rate: pct("1.30")},
			5:  {Name: "Gas Oil", Rate: pct("1.30")},
			6:  {Name: "Kerosina", Rate: pct("0.50")},
			7:  {Name: "Nafta", Rate: pct("0.50")},
			8:  {Name: "Fuel Oil (Bunker C)", Rate: pct("0")},
			9:  {Name: "Gas licuado de petróleo a granel", Rate: pct("0.50")},
			10: {Name: "Gas licuado petróleo carburación", Rate: pct("0.50")},
			11: {Name: "Petróleo crudo usado como combustible", Rate: pct("0")},
			12: {Name: "Otros combustibles derivados del petróleo", Rate: pct("0")},
			13: {Name: "Asfaltos", Rate: pct("0")},
		},
	},
	TaxTurismoHospedaje: {
		Code:      3,
		Name:      "Impuesto al Turismo Hospedaje",
		ShortName: TaxTurismoHospedaje,
		BaseLegal: "Decreto 1701",
		Units: map[int]GravableUnit{
			1: {Name: "Tasa 10%", Rate: pct("10")},
		},
	},
	TaxTurismoPasajes: {
		Code:      4,
		Name:      "Impuesto al Turismo Pasajes",
		ShortName: TaxTurismoPasajes,
		BaseLegal: "Decreto 1701",
		Units: map[int]GravableUnit{
			1: {Name: "Tasa 10%", Rate: pct("10")},
		},
	},
	TaxTimbrePrensa: {
		Code:      5,
		Name:      "Timbre de Prensa",
		ShortName: TaxTimbrePrensa,
		BaseLegal: "Decreto 821",
		Units: map[int]GravableUnit{
			1: {Name: "Tasa 0.5%", Rate: pct("0.5")},
		},
	},
	TaxBomberos: {
		Code:      6,
		Name:      "Impuesto a Favor del Cuerpo Voluntario de Bomberos",
		ShortName: TaxBomberos,
		BaseLegal: "Decreto 81-87",
		Units: map[int]GravableUnit{
			1: {Name: "Tarifa única", Rate: pct("0")},
		},
	},
	TaxTasaMunicipal: {
		Code:       7,
		Name:       "Tasa Municipal",
		ShortName:  TaxTasaMunicipal,
		BaseLegal:  "Código Municipal",
		AddToTotal: true,
		Units: map[int]GravableUnit{
			1: {Name: "Tasa municipal", Rate: pct("0")},
		},
	},
	TaxBebidasAlcoholicas: {
		Code:      8,
		Name:      "Impuesto sobre Bebidas Alcohólicas",
		ShortName: TaxBebidasAlcoholicas,
		BaseLegal: "Decreto 21-04",
		Units: map[int]GravableUnit{
			1: {Name: "Cervezas", Rate: pct("6")},
			2: {Name: "Vinos", Rate: pct("7.5")},
			3: {Name: "Bebidas destiladas", Rate: pct("8.5")},
		},
	},
	TaxTabaco: {
		Code:      9,
		Name:      "Impuesto al Tabaco",
		ShortName: TaxTabaco,
		BaseLegal: "Decreto 61-77",
		Units: map[int]GravableUnit{
			1: {Name: "Cigarrillos", Rate: pct("100")},
		},
	},
	TaxCemento: {
		Code:       10,
		Name:       "Impuesto Específico a la Distribución de Cemento",
		ShortName:  TaxCemento,
		BaseLegal:  "Decreto 79-2000",
		AddToTotal: true,
		Units: map[int]GravableUnit{
			1: {Name: "Bolsa de 42.5 kg", Rate: pct("1.50")},
		},
	},
	TaxBebidasNoAlcoholicas: {
		Code:      11,
		Name:      "Impuesto Específico sobre Bebidas No Alcohólicas",
		ShortName: TaxBebidasNoAlcoholicas,
		BaseLegal: "Decreto 09-2002",
		Units: map[int]GravableUnit{
			1: {Name: "Bebidas gaseosas", Rate: pct("0.18")},
			2: {Name: "Bebidas isotónicas", Rate: pct("0.12")},
		},
	},
	TaxTarifaPortuaria: {
		Code:       12,
		Name:       "Tarifa Portuaria",
		ShortName:  TaxTarifaPortuaria,
		BaseLegal:  "Decreto 100-85",
		AddToTotal: true,
		Units: map[int]GravableUnit{
			1: {Name: "Tarifa portuaria", Rate: pct("0")},
		},
	},
}

// Phrase types (TipoFrase).
const (
	PhraseISRRetention     PhraseType = 1 // retención del ISR
	PhraseIVAAgent         PhraseType = 2 // agente de retención del IVA
	PhraseNoCreditoFiscal  PhraseType = 3 // no genera derecho a crédito fiscal
	PhraseIVAExempt        PhraseType = 4 // exento o no afecto al IVA
	PhraseSpecialInvoice   PhraseType = 5 // facturas especiales
	PhraseAgricultural     PhraseType = 6 // contribuyente agropecuario
	PhraseElectronicRegime PhraseType = 7 // regímenes electrónicos
	PhraseISRExempt        PhraseType = 8 // exento de ISR
	PhraseSpecial          PhraseType = 9 // frases especiales
)

// Known reports whether p is a recognized phrase type.
func (p PhraseType) Known() bool { return p >= 1 && p <= 9 }

// ExemptionScenario is one escenario of phrase type 4 (exento del IVA).
type ExemptionScenario struct {
	Description string
	BaseLegal   string
	// AllowedDTE restricts the scenario to the listed document types.
	// Empty means no restriction.
	AllowedDTE []DTEType
}

// IVAExemptionScenarios maps CodigoEscenario of phrase type 4 to its catalog
// entry.
var IVAExemptionScenarios = map[int]ExemptionScenario{
	1: {
		Description: "Exportaciones",
		BaseLegal:   "Exenta del IVA (art. 7 num. 2 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoFACT, TipoFCAM, TipoNDEB, TipoNCRE},
	},
	2: {
		Description: "Servicios instituciones fiscalizadas por Superintendencia de Bancos",
		BaseLegal:   "Exenta del IVA (art. 7 num. 4 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoFACT, TipoFCAM},
	},
	3: {
		Description: "Ventas de cooperativas",
		BaseLegal:   "Exenta del IVA (art. 7 num. 5 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoFACT, TipoFCAM},
	},
	4: {
		Description: "Donaciones",
		BaseLegal:   "Exenta del IVA (art. 7 num. 9 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoRDON},
	},
	5: {
		Description: "Aportes a entidades no lucrativas",
		BaseLegal:   "Exenta del IVA (art. 7 num. 9 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoRDON},
	},
	6: {
		Description: "Constancia de exención",
		BaseLegal:   "Exenta del IVA (art. 8 Ley del IVA)",
		AllowedDTE:  []DTEType{TipoCIVA},
	},
}

// ScenarioAllowed reports whether the (phrase type, scenario) pair admits the
// document type. Unknown scenarios report false only for phrase type 4, the
// one with a closed scenario catalog.
func ScenarioAllowed(p PhraseType, scenario int, t DTEType) bool {
	if p != PhraseIVAExempt {
		return true
	}
	sc, ok := IVAExemptionScenarios[scenario]
	if !ok {
		return false
	}
	if len(sc.AllowedDTE) == 0 {
		return true
	}
	for _, d := range sc.AllowedDTE {
		if d == t {
			return true
		}
	}
	return false
}

// Complement kinds.
const (
	ComplementExportacion           ComplementKind = "EXPORTACION"
	ComplementRetencFacturaEspecial ComplementKind = "RETENC_FACTURA_ESPECIAL"
	ComplementAbonosCambiaria       ComplementKind = "ABONOS_FACTURA_CAMBIARIA"
	ComplementReferenciasNota       ComplementKind = "REFERENCIAS_NOTA"
	ComplementCobroCuentaAjena      ComplementKind = "COBRO_CUENTA_AJENA"
	ComplementEspectaculosPublicos  ComplementKind = "ESPECTACULOS_PUBLICOS"
	ComplementReferenciasConstancia ComplementKind = "REFERENCIAS_CONSTANCIA"
	ComplementMediosPago            ComplementKind = "MEDIOS_PAGO"
	ComplementDecreto312022         ComplementKind = "DECRETO_31_2022"
	ComplementOrgPoliticas          ComplementKind = "ORGANIZACIONES_POLITICAS"
	ComplementTrasladoMercancias    ComplementKind = "TRASLADO_MERCANCIAS"
)

// Incoterms lists the INCOTERM codes accepted in the export complement.
var Incoterms = map[string]string{
	"EXW": "En fábrica",
	"FCA": "Libre transportista",
	"FAS": "Libre al costado del buque",
	"FOB": "Libre a bordo",
	"CFR": "Costo y flete",
	"CIF": "Costo, seguro y flete",
	"CPT": "Flete pagado hasta",
	"CIP": "Flete y seguro pagado hasta",
	"DDP": "Entregado en destino con derechos pagados",
	"DAP": "Entregada en lugar",
	"DPU": "Entregada en el lugar de la descarga",
	"ZZZ": "Otros",
}

// CurrencyInfo describes a supported settlement currency.
type CurrencyInfo struct {
	Name          string
	Symbol        string
	DecimalPlaces int
}

// SupportedCurrencies lists the currencies the certificador settles in.
// Other ISO-4217 codes are accepted on documents but flagged for review.
var SupportedCurrencies = map[string]CurrencyInfo{
	"GTQ": {Name: "Quetzal Guatemalteco", Symbol: "Q", DecimalPlaces: 2},
	"USD": {Name: "Dólar Estadounidense", Symbol: "$", DecimalPlaces: 2},
	"EUR": {Name: "Euro", Symbol: "€", DecimalPlaces: 2},
}

// ProductSubsidy is a product code that implies a state-mandated discount.
type ProductSubsidy struct {
	Name     string
	Discount decimal.Decimal
}

// ProductSubsidies maps product codes to their subsidy configuration.
var ProductSubsidies = map[string]ProductSubsidy{
	"CGP10LBS":  {Name: "Subsidio cilindro 10 libras", Discount: pct("8.00")},
	"CGP20LBS":  {Name: "Subsidio cilindro 20 libras", Discount: pct("16.00")},
	"CGP25LBS":  {Name: "Subsidio cilindro 25 libras", Discount: pct("20.00")},
	"CGP35LBS":  {Name: "Subsidio cilindro 35 libras", Discount: pct("28.00")},
	"CGP100LBS": {Name: "Cilindro de gas envasado propano de 100 lbs", Discount: pct("0")},
	"GALDIESEL": {Name: "Galón de diesel con apoyo social", Discount: pct("0")},
}

// CIVAEstablishments maps taxpayer classification codes to the establishment
// classifications allowed to emit CIVA documents. An empty list allows any.
var CIVAEstablishments = map[int][]int{
	1703: {1704},            // persona individual - centros educativos privados
	969:  {},                // agentes diplomáticos
	970:  {},                // funcionarios diplomáticos
	971:  {},                // empleados diplomáticos
	887:  {962, 963, 1084},  // persona jurídica - centros educativos, universidades
}
