package providers

import (
	"context"
	"testing"

	"github.com/dmitrijs2005/unidrive/internal/server/models"
	"github.com/stretchr/testify/assert"
)

// stubProvider only needs a name for registry tests.
type stubProvider struct {
	Provider
	name string
}

func (s stubProvider) Name() string { return s.name }

func (s stubProvider) HandleOAuthCallback(ctx context.Context, params CallbackParams) (*models.Account, error) {
	return nil, nil
}

func TestRegistry_GetAndNames(t *testing.T) {
	r := NewRegistry(stubProvider{name: "onedrive"}, stubProvider{name: "google"})

	p, ok := r.Get("google")
	assert.True(t, ok)
	assert.Equal(t, "google", p.Name())

	_, ok = r.Get("dropbox")
	assert.False(t, ok)

	_, ok = r.Get("")
	assert.False(t, ok)

	assert.Equal(t, []string{"google", "onedrive"}, r.Names())
}

func TestRegistry_RegisterReplaces(t *testing.T) {
	first := stubProvider{name: "google"}
	r := NewRegistry(first)

	r.Register(stubProvider{name: "google"})
	assert.Len(t, r.Names(), 1)
}

func TestRegistry_Empty(t *testing.T) {
	r := NewRegistry()
	assert.Empty(t, r.Names())
	_, ok := r.Get("google")
	assert.False(t, ok)
}
