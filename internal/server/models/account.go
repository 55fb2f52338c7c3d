package models

import "time"

// AccountStatus is the linking state of an account.
type AccountStatus string

const (
	StatusPending   AccountStatus = "pending"
	StatusConnected AccountStatus = "connected"
)

// Credential is the token material of a linked account. Its shape belongs to
// the provider that issued it; the rest of the server only merges and
// persists it.
type Credential map[string]any

// Profile is provider-specific identity data captured at link time.
type Profile map[string]any

// Account is a link between a user and one external storage account.
//
// While pending, ID is the correlation token of the linking attempt and
// Tokens and Profile are nil. After finalization the account keeps that ID.
type Account struct {
	ID        string        `json:"id"`
	Provider  string        `json:"provider"`
	UserID    string        `json:"userId"`
	Label     string        `json:"label"`
	Status    AccountStatus `json:"status"`
	Tokens    Credential    `json:"tokens,omitempty"`
	Profile   Profile       `json:"profile,omitempty"`
	CreatedAt time.Time     `json:"createdAt"`
}

// Connected reports whether the account finished linking.
func (a *Account) Connected() bool {
	return a.Status == StatusConnected
}

// Clone returns a deep copy of a.
func (a *Account) Clone() *Account {
	if a == nil {
		return nil
	}
	c := *a
	c.Tokens = a.Tokens.Clone()
	c.Profile = Profile(cloneMap(a.Profile))
	return &c
}

// Summary is the client-visible view of an account.
func (a *Account) Summary() AccountSummary {
	return AccountSummary{
		ID:        a.ID,
		Provider:  a.Provider,
		Label:     a.Label,
		CreatedAt: a.CreatedAt,
		Status:    a.Status,
	}
}

// AccountSummary omits tokens and profile.
type AccountSummary struct {
	ID        string        `json:"id"`
	Provider  string        `json:"provider"`
	Label     string        `json:"label"`
	CreatedAt time.Time     `json:"createdAt"`
	Status    AccountStatus `json:"status"`
}

// Clone returns a deep copy of c.
func (c Credential) Clone() Credential {
	return Credential(cloneMap(c))
}

// Merge returns a new credential holding the fields of c overwritten by the
// fields of update. Fields absent from update are retained.
func (c Credential) Merge(update Credential) Credential {
	merged := make(Credential, len(c)+len(update))
	for k, v := range c {
		merged[k] = cloneValue(v)
	}
	for k, v := range update {
		merged[k] = cloneValue(v)
	}
	return merged
}

// String returns the string field key, or "" when absent or not a string.
func (c Credential) String(key string) string {
	s, _ := c[key].(string)
	return s
}

// String returns the string field key, or "" when absent or not a string.
func (p Profile) String(key string) string {
	s, _ := p[key].(string)
	return s
}

func cloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	c := make(map[string]any, len(m))
	for k, v := range m {
		c[k] = cloneValue(v)
	}
	return c
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return cloneMap(t)
	case Credential:
		return t.Clone()
	case Profile:
		return Profile(cloneMap(t))
	case []any:
		c := make([]any, len(t))
		for i := range t {
			c[i] = cloneValue(t[i])
		}
		return c
	default:
		return v
	}
}
