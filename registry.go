package fel

import (
	"context"
	"time"

	"github.com/shopspring/decimal"
)

// TaxpayerStatus is the RTU status of a taxpayer.
type TaxpayerStatus string

const (
	TaxpayerActive    TaxpayerStatus = "ACTIVE"
	TaxpayerInactive  TaxpayerStatus = "INACTIVE"
	TaxpayerSuspended TaxpayerStatus = "SUSPENDED"
)

// IVAAffiliation is the IVA regime a taxpayer is affiliated to.
type IVAAffiliation string

const (
	IVAGeneral          IVAAffiliation = "GEN"
	IVASmallContributor IVAAffiliation = "PEQ"
	IVAAgricultural     IVAAffiliation = "AGR"
	IVARetentionAgent   IVAAffiliation = "AGENT"
	IVANone             IVAAffiliation = ""
)

// ISRAffiliation is the ISR regime a taxpayer is affiliated to.
type ISRAffiliation string

const (
	ISRRegular  ISRAffiliation = "REG"
	ISROptional ISRAffiliation = "OPT"
	ISRNone     ISRAffiliation = ""
)

// Taxpayer is the RTU answer for one NIT.
type Taxpayer struct {
	NIT            string
	Name           string
	Status         TaxpayerStatus
	IVAAffiliation IVAAffiliation
	ISRAffiliation ISRAffiliation
	Classification int
}

// CUIStatus is the RENAP status of a person.
type CUIStatus string

const (
	CUIActive   CUIStatus = "ACTIVE"
	CUIDeceased CUIStatus = "DECEASED"
	CUIInvalid  CUIStatus = "INVALID_FORMAT"
)

// CUIRecord is the RENAP answer for one CUI.
type CUIRecord struct {
	Valid  bool
	Status CUIStatus
	Name   string
}

// NitLookup answers questions against the taxpayer registry (mini-RTU).
// Implementations must return an error wrapping ErrRegistryUnavailable on
// outage; a negative answer is (false, nil) or (nil, nil), never an error.
type NitLookup interface {
	NitExists(ctx context.Context, nit string) (bool, error)
	Taxpayer(ctx context.Context, nit string) (*Taxpayer, error)
}

// CuiLookup answers CUI questions against RENAP.
type CuiLookup interface {
	ValidateCUI(ctx context.Context, cui string) (*CUIRecord, error)
}

// EstablishmentLookup answers whether an establishment of a taxpayer was
// active at a given date.
type EstablishmentLookup interface {
	EstablishmentActive(ctx context.Context, nit, code string, at time.Time) (bool, error)
}

// Registry bundles the external registry capabilities the engine consumes.
// Implementations must be safe for concurrent use.
type Registry interface {
	NitLookup
	CuiLookup
	EstablishmentLookup
}

// RateProvider converts an amount in a foreign currency to GTQ for the
// consumidor final cap. A nil provider on the validator skips conversions.
type RateProvider interface {
	ToGTQ(ctx context.Context, amount decimal.Decimal, currency string, at time.Time) (decimal.Decimal, error)
}
