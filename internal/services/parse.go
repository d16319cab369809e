package services

import (
	"errors"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"unicode"
	"unicode/utf8"

	"github.com/shopspring/decimal"

	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/models"
	"github.com/TristanBaldazzi/nicolas-crm-sub000/internal/textfold"
)

var errEmptyValue = errors.New("empty value")

// priceAffixes are the currency and tax codes allowed around an amount
var priceAffixes = []string{"EUR", "USD", "GBP", "TTC", "HT"}

// ParsePrice parses a locale-formatted amount: "1 234,56", "1.234,56 €",
// "$1,234.56", "12 EUR", "12,50 € TTC". Currency symbols and the codes in
// priceAffixes may surround the amount; any other letter is rejected.
// Whitespace (including non-breaking spaces) and apostrophes are thousands
// separators. When both ',' and '.' appear the
// last one is the decimal separator; a single ',' or '.' is a decimal
// separator; a repeated one is a thousands separator.
func ParsePrice(raw string) (decimal.Decimal, error) {
	s := trimPriceAffixes(raw)
	if s == "" {
		return decimal.Zero, errEmptyValue
	}

	var b strings.Builder
	b.Grow(len(s))
	for i, r := range s {
		switch {
		case r >= '0' && r <= '9', r == '.', r == ',':
			b.WriteRune(r)
		case r == '-' && i == 0:
			b.WriteRune(r)
		case unicode.IsSpace(r), r == '\'', r == '’':
			// thousands separator
		default:
			return decimal.Zero, fmt.Errorf("invalid character %q in %q", r, raw)
		}
	}

	s = normalizeSeparators(b.String())
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid number %q", raw)
	}
	return d, nil
}

func trimPriceAffixes(s string) string {
	for {
		s = strings.TrimFunc(s, func(r rune) bool {
			return unicode.IsSpace(r) || unicode.Is(unicode.Sc, r)
		})
		before := s
		for _, code := range priceAffixes {
			if n := len(code); len(s) >= n && strings.EqualFold(s[len(s)-n:], code) {
				if r, _ := utf8.DecodeLastRuneInString(s[:len(s)-n]); !unicode.IsLetter(r) {
					s = s[:len(s)-n]
				}
			}
			if n := len(code); len(s) >= n && strings.EqualFold(s[:n], code) {
				if r, _ := utf8.DecodeRuneInString(s[n:]); !unicode.IsLetter(r) {
					s = s[n:]
				}
			}
		}
		if s == before {
			return s
		}
	}
}

func normalizeSeparators(s string) string {
	lastComma := strings.LastIndex(s, ",")
	lastDot := strings.LastIndex(s, ".")

	switch {
	case lastComma >= 0 && lastDot >= 0:
		if lastComma > lastDot {
			s = strings.ReplaceAll(s, ".", "")
			return strings.Replace(s, ",", ".", 1)
		}
		return strings.ReplaceAll(s, ",", "")
	case lastComma >= 0:
		if strings.Count(s, ",") > 1 {
			return strings.ReplaceAll(s, ",", "")
		}
		return strings.Replace(s, ",", ".", 1)
	case lastDot >= 0:
		if strings.Count(s, ".") > 1 {
			return strings.ReplaceAll(s, ".", "")
		}
	}
	return s
}

// ParseInt parses a whole quantity using the same separator rules as ParsePrice
func ParseInt(raw string) (int, error) {
	d, err := ParsePrice(raw)
	if err != nil {
		return 0, err
	}
	if !d.IsInteger() {
		return 0, fmt.Errorf("%q is not a whole number", raw)
	}
	return int(d.IntPart()), nil
}

var (
	trueTokens  = map[string]bool{"oui": true, "yes": true, "true": true, "1": true, "vrai": true, "o": true, "y": true, "x": true}
	falseTokens = map[string]bool{"non": true, "no": true, "false": true, "0": true, "faux": true, "n": true}
)

// ParseBool reads a yes/no cell in French or English. ok is false when the
// value is empty or not a recognised token.
func ParseBool(raw string) (value bool, ok bool) {
	key := textfold.Key(raw)
	switch {
	case trueTokens[key]:
		return true, true
	case falseTokens[key]:
		return false, true
	}
	return false, false
}

var numericCell = regexp.MustCompile(`^-?\d+(?:[.,]\d+)?$`)

// coerceAttribute types a free-form attribute cell. A registry kind is honoured
// when the value parses as that kind; otherwise the value is kept as text.
// Without a registry entry only plain numbers are inferred.
func coerceAttribute(raw string, kind models.AttributeKind, known bool) models.AttributeValue {
	value := strings.TrimSpace(raw)
	if known {
		switch kind {
		case models.AttributeNumber:
			if d, err := ParsePrice(value); err == nil {
				return models.NumberValue(d.InexactFloat64())
			}
		case models.AttributeBoolean:
			if b, ok := ParseBool(value); ok {
				return models.BooleanValue(b)
			}
		}
		return models.TextValue(value)
	}

	if numericCell.MatchString(value) {
		if n, err := strconv.ParseFloat(strings.Replace(value, ",", ".", 1), 64); err == nil {
			return models.NumberValue(n)
		}
	}
	return models.TextValue(value)
}
