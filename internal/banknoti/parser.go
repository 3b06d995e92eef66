package banknoti

import (
	"errors"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Parse errors.
var (
	ErrNotArray             = errors.New("response is not a PHP array dump")
	ErrMissingTransactionID = errors.New("response has no transaction_id")
)

// Payload is one notification as published by the bank status endpoint.
type Payload struct {
	TransactionID string
	Time          string
	BankAccount   string
	Content       string
	Amount        decimal.Decimal
	HasAmount     bool
	Fields        map[string]string
}

// keyPattern matches the key of a `key => value` pair in var_export
// ('key', "key") or print_r ([key]) style, or a bare word.
var keyPattern = regexp.MustCompile(`(?:'(\w+)'|"(\w+)"|\[(\w+)\]|\b(\w+))\s*=>`)

// ParsePayload parses the PHP array dump returned by the endpoint, e.g.
//
//	array( 'transaction_id' => 'FT123', 'content' => 'Pay, order 42', 'amount' => '1500000' )
//
// A value runs until the next key, so values may contain commas.
func ParsePayload(text string) (Payload, error) {
	body, ok := arrayBody(text)
	if !ok {
		return Payload{}, ErrNotArray
	}

	fields := make(map[string]string)
	matches := keyPattern.FindAllStringSubmatchIndex(body, -1)
	for i, m := range matches {
		key := ""
		for g := 1; g <= 4; g++ {
			if m[2*g] >= 0 {
				key = body[m[2*g]:m[2*g+1]]
				break
			}
		}
		end := len(body)
		if i+1 < len(matches) {
			end = matches[i+1][0]
		}
		fields[strings.ToLower(key)] = cleanValue(body[m[1]:end])
	}

	p := Payload{
		TransactionID: fields["transaction_id"],
		Time:          fields["time"],
		BankAccount:   fields["bank_account"],
		Content:       fields["content"],
		Fields:        fields,
	}
	if p.TransactionID == "" {
		return Payload{}, ErrMissingTransactionID
	}
	if amt, ok := parseAmount(fields["amount"]); ok {
		p.Amount = amt
		p.HasAmount = true
	}
	return p, nil
}

// arrayBody strips the `array(` ... `)` wrapper, case-insensitively.
func arrayBody(text string) (string, bool) {
	text = strings.TrimSpace(text)
	if len(text) < len("array()") || !strings.EqualFold(text[:5], "array") {
		return "", false
	}
	rest := strings.TrimSpace(text[5:])
	if !strings.HasPrefix(rest, "(") || !strings.HasSuffix(rest, ")") {
		return "", false
	}
	return rest[1 : len(rest)-1], true
}

func cleanValue(v string) string {
	v = strings.TrimSpace(v)
	v = strings.TrimSuffix(v, ",")
	v = strings.TrimSpace(v)
	if len(v) >= 2 && (v[0] == '\'' || v[0] == '"') && v[len(v)-1] == v[0] {
		v = v[1 : len(v)-1]
	}
	v = strings.ReplaceAll(v, `\'`, `'`)
	return strings.TrimSpace(v)
}

// parseAmount accepts plain or thousands-separated amounts ("1,500,000",
// "1.500.000"). A single separator followed by 1-2 digits is decimal.
func parseAmount(s string) (decimal.Decimal, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return decimal.Zero, false
	}
	if d, err := decimal.NewFromString(s); err == nil {
		return d, true
	}

	lastSep := strings.LastIndexAny(s, ".,")
	intPart, frac := s, ""
	if lastSep >= 0 && len(s)-lastSep-1 <= 2 {
		intPart, frac = s[:lastSep], s[lastSep+1:]
	}
	intPart = strings.NewReplacer(",", "", ".", "", " ", "").Replace(intPart)
	if frac != "" {
		intPart += "." + frac
	}
	d, err := decimal.NewFromString(intPart)
	if err != nil {
		return decimal.Zero, false
	}
	return d, true
}
