// File: internal/identity/record.go
package identity

import "strings"

// Record is one synthetic identity. It is never modified by a fill.
type Record struct {
	Username string `json:"username"`
	Name     string `json:"name"`
	Address  string `json:"address"`
	Phone    string `json:"phone"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// FirstName is the first whitespace-separated token of Name.
func (r Record) FirstName() string {
	parts := strings.Fields(r.Name)
	if len(parts) == 0 {
		return ""
	}
	return parts[0]
}

// LastName is the last token of Name, or "" when Name has a single token.
func (r Record) LastName() string {
	parts := strings.Fields(r.Name)
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-1]
}

// Digits is Phone with every non-digit character removed.
func (r Record) Digits() string {
	var b strings.Builder
	for _, c := range r.Phone {
		if c >= '0' && c <= '9' {
			b.WriteRune(c)
		}
	}
	return b.String()
}

// AddressTokens splits Address on commas and trims each token.
func (r Record) AddressTokens() []string {
	if strings.TrimSpace(r.Address) == "" {
		return nil
	}
	parts := strings.Split(r.Address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	return parts
}

// Country is the last comma token of Address.
func (r Record) Country() string {
	parts := r.AddressTokens()
	if len(parts) == 0 {
		return ""
	}
	return parts[len(parts)-1]
}

// State is the second-to-last comma token of Address, or "" when the address
// has fewer than two tokens.
func (r Record) State() string {
	parts := r.AddressTokens()
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}

// Redacted returns a copy with the password masked, suitable for logs.
func (r Record) Redacted() Record {
	if r.Password != "" {
		r.Password = "********"
	}
	return r
}
