package fel

import (
	"strconv"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// Document is the typed projection of a DTE the rule engine operates on.
// It is built once by Project and never mutated afterwards.
type Document struct {
	Type                   DTEType
	EmissionTimestamp      time.Time
	CertificationTimestamp time.Time // zero when the document is not yet certified
	Currency               string
	IsExport               bool
	IsPublicShow           bool

	ReceptorID     string
	ReceptorIDKind ReceptorIDKind
	ReceptorName   string

	EmisorNIT         string
	EmisorName        string
	EstablishmentCode string

	Total      decimal.Decimal
	GrandTotal decimal.Decimal

	AuthorizationID string // UUID v4 assigned at certification
	Serie           string
	Numero          string

	Items       []Item
	Taxes       []Tax
	Phrases     []Phrase
	Complements []Complement
	Signatures  []SignatureDescriptor

	// Raw field presence, used to distinguish an absent element from a
	// zero value when emitting findings.
	HasEmissionTimestamp bool
	HasGrandTotal        bool
}

// Item is one document line.
type Item struct {
	LineNumber    int
	Kind          ItemKind
	Quantity      decimal.Decimal // 6 decimals
	UnitPrice     decimal.Decimal // 6 decimals
	Price         decimal.Decimal // 2 decimals
	Discount      decimal.Decimal
	OtherDiscount decimal.Decimal
	Total         decimal.Decimal // 2 decimals
	UOM           string
	Description   string
	ProductCode   string
	ParseError    bool // a numeric field failed to parse
}

// Tax is one tax entry of the document totals section.
type Tax struct {
	Kind           TaxKind
	TaxableAmount  decimal.Decimal
	HasTaxable     bool
	UnitCode       int
	HasUnitCode    bool
	UnitQuantity   decimal.Decimal
	TaxAmount      decimal.Decimal
	TotalTaxAmount decimal.Decimal
	ParseError     bool
}

// Phrase is one legal clause attached to the document.
type Phrase struct {
	Type             PhraseType
	Scenario         int
	ResolutionNumber string
	ResolutionDate   time.Time
	Text             string
}

// Complement is a structured extension block. The typed payloads below are
// populated for the complements the rules inspect; others carry only Kind.
type Complement struct {
	Kind ComplementKind

	Export    *ExportComplement
	NoteRef   *NoteReference
	Show      *PublicShowComplement
	Retention *SpecialInvoiceRetention
}

// ExportComplement is the payload of the Exportación complement.
type ExportComplement struct {
	Incoterm           string
	ConsigneeName      string
	ConsigneeAddress   string
	ExporterCode       string
	DestinationCountry string
}

// NoteReference is the payload of the Referencias Nota complement carried by
// credit and debit notes.
type NoteReference struct {
	OriginAuthorization string
	OriginEmissionDate  time.Time
	OriginSerie         string
	OriginNumero        string
	Reason              string
}

// PublicShowComplement is the payload of the Espectáculos Públicos
// complement.
type PublicShowComplement struct {
	EventName string
	EventDate time.Time
	Location  string
}

// SpecialInvoiceRetention is the payload of the Retención Factura Especial
// complement.
type SpecialInvoiceRetention struct {
	RetainedIVA decimal.Decimal
	RetainedISR decimal.Decimal
}

// SignatureDescriptor describes a signature block structurally. Cryptographic
// verification happens outside the core.
type SignatureDescriptor struct {
	Role      SignatureRole
	Algorithm string
	SignedAt  time.Time
}

// FindComplement returns the first complement of the given kind, or nil.
func (d *Document) FindComplement(kind ComplementKind) *Complement {
	for i := range d.Complements {
		if d.Complements[i].Kind == kind {
			return &d.Complements[i]
		}
	}
	return nil
}

// HasSignature reports whether a signature block with the role is present.
func (d *Document) HasSignature(role SignatureRole) bool {
	for _, s := range d.Signatures {
		if s.Role == role {
			return true
		}
	}
	return false
}

// PhraseScenarios maps each phrase type present on the document to its
// scenario code. Later phrases of the same type win, matching certification
// order.
func (d *Document) PhraseScenarios() map[PhraseType]int {
	out := make(map[PhraseType]int, len(d.Phrases))
	for _, p := range d.Phrases {
		out[p.Type] = p.Scenario
	}
	return out
}

// SerieFromAuthorization derives the serie from an authorization UUID: the
// first eight hex digits, uppercased.
func SerieFromAuthorization(auth string) string {
	hex := strings.ReplaceAll(auth, "-", "")
	if len(hex) < 8 {
		return ""
	}
	return strings.ToUpper(hex[:8])
}

// NumeroFromAuthorization derives the document number from an authorization
// UUID: hex digits 8..16 as an integer, modulo 999,999,999.
func NumeroFromAuthorization(auth string) (int64, bool) {
	hex := strings.ReplaceAll(auth, "-", "")
	if len(hex) < 16 {
		return 0, false
	}
	n, err := strconv.ParseInt(hex[8:16], 16, 64)
	if err != nil {
		return 0, false
	}
	return n % 999_999_999, true
}
