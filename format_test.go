package fel

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestValidNIT(t *testing.T) {
	cases := []struct {
		nit  string
		want bool
	}{
		{"CF", true},
		{"123456789", true}, // check digit 9
		{"27", true},        // remainder 0 maps to '0'... check digit 7 here
		{"6K", true},        // remainder 1 maps to 'K'
		{"123456788", false},
		{"6J", false},
		{"", false},
		{"K", false},
		{"12A4", false},
		{"cf", false},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, ValidNIT(c.nit), "nit %q", c.nit)
	}
}

func TestValidCUI(t *testing.T) {
	// First eight digits 12345678 yield check digit 2.
	assert.True(t, ValidCUI("1234567820101"))
	assert.False(t, ValidCUI("1234567830101"), "wrong check digit")
	assert.False(t, ValidCUI("123456782010"), "twelve digits")
	assert.False(t, ValidCUI("12345678201011"), "fourteen digits")
	assert.False(t, ValidCUI("123456782010A"))
}

func TestValidUUIDv4(t *testing.T) {
	assert.True(t, ValidUUIDv4("550e8400-e29b-41d4-a716-446655440000"))
	assert.True(t, ValidUUIDv4("550E8400-E29B-41D4-A716-446655440000"), "case-insensitive")
	assert.False(t, ValidUUIDv4("550e8400-e29b-11d4-a716-446655440000"), "version 1")
	assert.False(t, ValidUUIDv4("550e8400e29b41d4a716446655440000"), "no hyphens")
	assert.False(t, ValidUUIDv4("550e8400-e29b-41d4-a716-44665544000"), "short")
	assert.False(t, ValidUUIDv4(""))
}

func TestSerieNumeroDerivation(t *testing.T) {
	auth := "550e8400-e29b-41d4-a716-446655440000"
	assert.Equal(t, "550E8400", SerieFromAuthorization(auth))

	n, ok := NumeroFromAuthorization(auth)
	assert.True(t, ok)
	// 0xE29B41D4 = 3801825748, modulo 999999999.
	assert.Equal(t, int64(801825751), n)

	_, ok = NumeroFromAuthorization("550e8400")
	assert.False(t, ok)
}

func TestRound2AndTolerance(t *testing.T) {
	assert.Equal(t, "120.13", Round2(decimal.RequireFromString("120.125")).StringFixed(2), "half rounds up")
	assert.Equal(t, "120.12", Round2(decimal.RequireFromString("120.124")).StringFixed(2))

	tol := decimal.RequireFromString("0.01")
	a := decimal.RequireFromString("120.00")
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("120.01"), tol))
	assert.True(t, WithinTolerance(a, decimal.RequireFromString("119.99"), tol))
	assert.False(t, WithinTolerance(a, decimal.RequireFromString("120.02"), tol))
}

func TestNormalizeComparable(t *testing.T) {
	assert.Equal(t, "comercial el quetzal, s.a.", NormalizeComparable("  Comercial  El Quetzal, S.A. "))
	assert.Equal(t,
		NormalizeComparable("Panadería San José"),
		NormalizeComparable("PANADERIA  SAN  JOSE"))
	assert.NotEqual(t, NormalizeComparable("Distribuidora Norte"), NormalizeComparable("Distribuidora Sur"))
}

func TestInMonetaryRange(t *testing.T) {
	assert.True(t, InMonetaryRange(decimal.Zero))
	assert.True(t, InMonetaryRange(MaxMonetaryValue))
	assert.False(t, InMonetaryRange(MaxMonetaryValue.Add(decimal.RequireFromString("0.01"))))
	assert.False(t, InMonetaryRange(decimal.RequireFromString("-0.01")))
}
