package services

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
)

func TestParsePrice(t *testing.T) {
	tests := []struct {
		raw  string
		want string
	}{
		{"1 234,56", "1234.56"},
		{"1 234,56", "1234.56"},
		{"1 234,56 €", "1234.56"},
		{"1.234,56", "1234.56"},
		{"1,234.56", "1234.56"},
		{"$1,234.56", "1234.56"},
		{"129,90", "129.9"},
		{"129.90", "129.9"},
		{"12 EUR", "12"},
		{"1.000.000", "1000000"},
		{"1,000,000", "1000000"},
		{"1'250.50", "1250.5"},
		{"  42  ", "42"},
		{"-5,5", "-5.5"},
		{"12,50 € TTC", "12.5"},
		{"EUR 99", "99"},
		{"15 eur ht", "15"},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParsePrice(tt.raw)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestParsePrice_Invalid(t *testing.T) {
	for _, raw := range []string{"", "   ", "abc", "N/A", "12-5", "1,2,3.4.5", "€",
		"abc12", "12abc", "12 pieces", "x5", "12 SHT", "EUR", "12 HTT"} {
		t.Run(raw, func(t *testing.T) {
			_, err := ParsePrice(raw)
			assert.Error(t, err)
		})
	}
}

func TestParseInt(t *testing.T) {
	n, err := ParseInt("1 200")
	require.NoError(t, err)
	assert.Equal(t, 1200, n)

	n, err = ParseInt("7")
	require.NoError(t, err)
	assert.Equal(t, 7, n)

	_, err = ParseInt("3,5")
	assert.Error(t, err)

	_, err = ParseInt("beaucoup")
	assert.Error(t, err)
}

func TestParseBool(t *testing.T) {
	for _, raw := range []string{"oui", "OUI", "Yes", "true", "1", "vrai", "o", "y", "x", " Oui "} {
		v, ok := ParseBool(raw)
		assert.True(t, ok, raw)
		assert.True(t, v, raw)
	}
	for _, raw := range []string{"non", "No", "FALSE", "0", "faux", "n"} {
		v, ok := ParseBool(raw)
		assert.True(t, ok, raw)
		assert.False(t, v, raw)
	}
	for _, raw := range []string{"", "peut-être", "2"} {
		_, ok := ParseBool(raw)
		assert.False(t, ok, raw)
	}
}

func TestCoerceAttribute(t *testing.T) {
	assert.Equal(t, models.NumberValue(1500), coerceAttribute("1 500 W", models.AttributeNumber, true))
	assert.Equal(t, models.TextValue("beaucoup"), coerceAttribute("beaucoup", models.AttributeNumber, true))
	assert.Equal(t, models.BooleanValue(true), coerceAttribute("Oui", models.AttributeBoolean, true))
	assert.Equal(t, models.TextValue("parfois"), coerceAttribute("parfois", models.AttributeBoolean, true))
	assert.Equal(t, models.TextValue("42"), coerceAttribute("42", models.AttributeText, true))

	assert.Equal(t, models.NumberValue(2.5), coerceAttribute("2,5", "", false))
	assert.Equal(t, models.NumberValue(-3), coerceAttribute("-3", "", false))
	assert.Equal(t, models.TextValue("Rouge"), coerceAttribute("Rouge", "", false))
	assert.Equal(t, models.TextValue("oui"), coerceAttribute("oui", "", false))
	assert.Equal(t, models.TextValue("1 500"), coerceAttribute("1 500", "", false))
}
