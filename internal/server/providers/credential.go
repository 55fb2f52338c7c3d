package providers

import (
	"time"

	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"golang.org/x/oauth2"
)

// Credential field names used by the OAuth based adapters.
const (
	FieldAccessToken  = "access_token"
	FieldRefreshToken = "refresh_token"
	FieldTokenType    = "token_type"
	FieldExpiry       = "expiry"
	FieldIDToken      = "id_token"
	FieldScope        = "scope"
	// FieldExpiryDate is a millisecond unix timestamp, accepted on read for
	// credentials written by other clients.
	FieldExpiryDate = "expiry_date"
)

// CredentialFromToken flattens tok into a credential. Empty fields are
// omitted so merging the result never clears stored values.
func CredentialFromToken(tok *oauth2.Token) models.Credential {
	c := models.Credential{}
	if tok == nil {
		return c
	}
	if tok.AccessToken != "" {
		c[FieldAccessToken] = tok.AccessToken
	}
	if tok.RefreshToken != "" {
		c[FieldRefreshToken] = tok.RefreshToken
	}
	if tok.TokenType != "" {
		c[FieldTokenType] = tok.TokenType
	}
	if !tok.Expiry.IsZero() {
		c[FieldExpiry] = tok.Expiry.UTC().Format(time.RFC3339)
	}
	if id, ok := tok.Extra(FieldIDToken).(string); ok && id != "" {
		c[FieldIDToken] = id
	}
	if scope, ok := tok.Extra(FieldScope).(string); ok && scope != "" {
		c[FieldScope] = scope
	}
	return c
}

// TokenFromCredential rebuilds an oauth2 token from c.
func TokenFromCredential(c models.Credential) *oauth2.Token {
	tok := &oauth2.Token{
		AccessToken:  c.String(FieldAccessToken),
		RefreshToken: c.String(FieldRefreshToken),
		TokenType:    c.String(FieldTokenType),
	}

	if s := c.String(FieldExpiry); s != "" {
		if t, err := time.Parse(time.RFC3339, s); err == nil {
			tok.Expiry = t
		}
	} else if ms, ok := c[FieldExpiryDate].(float64); ok && ms > 0 {
		tok.Expiry = time.UnixMilli(int64(ms))
	}

	return tok
}

// changedFields returns the fields of next that differ from prev.
func changedFields(prev, next models.Credential) models.Credential {
	diff := models.Credential{}
	for k, v := range next {
		if old, ok := prev[k]; !ok || old != v {
			diff[k] = v
		}
	}
	if len(diff) == 0 {
		return nil
	}
	return diff
}
