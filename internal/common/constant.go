// Package common contains shared constants and sentinel errors used across
// unidrive components.
package common

// TokenParamName is the query parameter and cookie name that may carry the
// access token when a browser cannot set an Authorization header (OAuth
// redirects started from a plain link).
const TokenParamName = "token"
