package fel

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testNow is the frozen clock of the engine tests.
var testNow = time.Date(2026, 8, 21, 12, 0, 0, 0, time.UTC)

// fakeRegistry is an in-memory Registry and RateProvider for tests.
type fakeRegistry struct {
	taxpayers     map[string]*Taxpayer
	cuis          map[string]*CUIRecord
	inactiveEstab map[string]bool // "nit/code"
	fail          bool
	gtqRate       decimal.Decimal // multiplier for ToGTQ, zero disables
}

func newFakeRegistry() *fakeRegistry {
	return &fakeRegistry{
		taxpayers: map[string]*Taxpayer{
			"123456789": {
				NIT:            "123456789",
				Name:           "Comercial El Quetzal, S.A.",
				Status:         TaxpayerActive,
				IVAAffiliation: IVAGeneral,
				ISRAffiliation: ISRRegular,
			},
		},
		cuis:          map[string]*CUIRecord{},
		inactiveEstab: map[string]bool{},
	}
}

func (r *fakeRegistry) NitExists(ctx context.Context, nit string) (bool, error) {
	if r.fail {
		return false, fmt.Errorf("rtu: %w", ErrRegistryUnavailable)
	}
	_, ok := r.taxpayers[nit]
	return ok, nil
}

func (r *fakeRegistry) Taxpayer(ctx context.Context, nit string) (*Taxpayer, error) {
	if r.fail {
		return nil, fmt.Errorf("rtu: %w", ErrRegistryUnavailable)
	}
	return r.taxpayers[nit], nil
}

func (r *fakeRegistry) ValidateCUI(ctx context.Context, cui string) (*CUIRecord, error) {
	if r.fail {
		return nil, fmt.Errorf("renap: %w", ErrRegistryUnavailable)
	}
	if rec, ok := r.cuis[cui]; ok {
		return rec, nil
	}
	return &CUIRecord{Valid: true, Status: CUIActive}, nil
}

func (r *fakeRegistry) EstablishmentActive(ctx context.Context, nit, code string, at time.Time) (bool, error) {
	if r.fail {
		return false, fmt.Errorf("rtu: %w", ErrRegistryUnavailable)
	}
	return !r.inactiveEstab[nit+"/"+code], nil
}

func (r *fakeRegistry) ToGTQ(ctx context.Context, amount decimal.Decimal, currency string, at time.Time) (decimal.Decimal, error) {
	if r.fail {
		return decimal.Zero, fmt.Errorf("banguat: %w", ErrRegistryUnavailable)
	}
	return amount.Mul(r.gtqRate), nil
}

const permissiveDocXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="GTDocumento"/>
</xs:schema>`

const permissiveAnulXSD = `<xs:schema xmlns:xs="http://www.w3.org/2001/XMLSchema">
  <xs:element name="GTAnulacionDocumento"/>
</xs:schema>`

// newTestValidator wires a validator over a pre-seeded offline schema cache,
// a fake registry and a frozen clock.
func newTestValidator(t *testing.T, reg *fakeRegistry) *Validator {
	t.Helper()
	cfg := DefaultConfig()
	cfg.SchemaCacheDir = t.TempDir()
	cfg.SchemaBaseURL = "http://127.0.0.1:1"

	cache := NewSchemaCache(cfg, testLogger())
	require.NoError(t, cache.Put(SchemaDocumento, []byte(permissiveDocXSD)))
	require.NoError(t, cache.Put(SchemaAnulacion, []byte(permissiveAnulXSD)))

	var registry Registry
	var rates RateProvider
	if reg != nil {
		registry = reg
		if !reg.gtqRate.IsZero() {
			rates = reg
		}
	}
	v := NewValidator(cfg, NewSchemaSet(cache, testLogger()), registry, rates, testLogger())
	v.now = func() time.Time { return testNow }
	return v
}

// hasCode reports whether any finding in the list carries the code, and
// returns the first match.
func hasCode(findings []Finding, code string) (Finding, bool) {
	for _, f := range findings {
		if f.Code == code {
			return f, true
		}
	}
	return Finding{}, false
}
