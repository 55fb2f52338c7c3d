package models

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCredential_Merge(t *testing.T) {
	stored := Credential{"access_token": "old", "refresh_token": "r1"}
	merged := stored.Merge(Credential{"access_token": "new", "expiry": "2030-01-01T00:00:00Z"})

	assert.Equal(t, Credential{
		"access_token":  "new",
		"refresh_token": "r1",
		"expiry":        "2030-01-01T00:00:00Z",
	}, merged)
	assert.Equal(t, "old", stored["access_token"], "merge must not mutate the receiver")
}

func TestCredential_MergeIntoNil(t *testing.T) {
	var stored Credential
	assert.Equal(t, Credential{"a": 1}, stored.Merge(Credential{"a": 1}))
}

func TestAccount_CloneIsDeep(t *testing.T) {
	a := &Account{
		ID:      "acc",
		Tokens:  Credential{"access_token": "t", "scopes": []any{"drive"}},
		Profile: Profile{"user": map[string]any{"email": "a@b.c"}},
	}
	c := a.Clone()

	c.Tokens["access_token"] = "changed"
	c.Tokens["scopes"].([]any)[0] = "changed"
	c.Profile["user"].(map[string]any)["email"] = "changed"

	assert.Equal(t, "t", a.Tokens["access_token"])
	assert.Equal(t, "drive", a.Tokens["scopes"].([]any)[0])
	assert.Equal(t, "a@b.c", a.Profile["user"].(map[string]any)["email"])
}

func TestUser_CloneIsDeep(t *testing.T) {
	u := &User{ID: "u", Accounts: []Account{{ID: "a", Label: "one"}}}
	c := u.Clone()
	c.Accounts[0].Label = "two"
	c.Accounts = append(c.Accounts, Account{ID: "b"})

	assert.Equal(t, "one", u.Accounts[0].Label)
	assert.Len(t, u.Accounts, 1)
	assert.Nil(t, (*User)(nil).Clone())
}

func TestAccount_Summary(t *testing.T) {
	now := time.Now()
	a := &Account{ID: "a", Provider: "google", Label: "me@x", Status: StatusConnected, CreatedAt: now, Tokens: Credential{"x": 1}}
	assert.Equal(t, AccountSummary{ID: "a", Provider: "google", Label: "me@x", Status: StatusConnected, CreatedAt: now}, a.Summary())
	assert.True(t, a.Connected())
}

func TestNewQuota(t *testing.T) {
	i64 := func(v int64) *int64 { return &v }

	q := NewQuota(i64(100), 40, nil)
	assert.Equal(t, int64(60), *q.AvailableBytes)

	q = NewQuota(i64(100), 140, nil)
	assert.Equal(t, int64(0), *q.AvailableBytes)

	q = NewQuota(nil, 140, nil)
	assert.Nil(t, q.TotalBytes)
	assert.Nil(t, q.AvailableBytes)
	assert.Equal(t, int64(140), q.UsedBytes)
}

func TestFileUpdate_Empty(t *testing.T) {
	name := "x"
	assert.True(t, FileUpdate{}.Empty())
	assert.False(t, FileUpdate{Name: &name}.Empty())
	assert.False(t, FileUpdate{Content: []byte{}}.Empty())
	assert.True(t, UserUpdate{}.Empty())
}
