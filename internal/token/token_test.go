package token

import (
	"testing"
	"time"

	"complaint-service/internal/account"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testAccount() *account.Account {
	return &account.Account{
		ID:           42,
		Username:     "alice",
		Email:        "alice@example.com",
		PasswordHash: "$2a$04$somehash",
		LastLogin:    time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC),
	}
}

func TestGenerator(t *testing.T) {
	gen := NewGenerator("secret", PurposeEmailVerification, 72*time.Hour)

	t.Run("RoundTrip", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)
		assert.True(t, gen.Check(acct, tok))
	})

	t.Run("WrongAccount", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		other := testAccount()
		other.ID = 43
		assert.False(t, gen.Check(other, tok))
	})

	t.Run("WrongPurpose", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		resetGen := NewGenerator("secret", PurposePasswordReset, 72*time.Hour)
		assert.False(t, resetGen.Check(acct, tok))
	})

	t.Run("WrongSecret", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		otherGen := NewGenerator("different", PurposeEmailVerification, 72*time.Hour)
		assert.False(t, otherGen.Check(acct, tok))
	})

	t.Run("PasswordChangeInvalidates", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		acct.PasswordHash = "$2a$04$rotatedhash"
		assert.False(t, gen.Check(acct, tok))
	})

	t.Run("LoginInvalidates", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		acct.LastLogin = acct.LastLogin.Add(time.Hour)
		assert.False(t, gen.Check(acct, tok))
	})

	t.Run("EmailChangeInvalidates", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		acct.Email = "alice@other.example.com"
		assert.False(t, gen.Check(acct, tok))
	})

	t.Run("Tampered", func(t *testing.T) {
		acct := testAccount()
		tok := gen.Make(acct)

		assert.False(t, gen.Check(acct, tok+"x"))
		assert.False(t, gen.Check(acct, "not-a-token"))
		assert.False(t, gen.Check(acct, ""))
	})

	t.Run("Expired", func(t *testing.T) {
		expGen := NewGenerator("secret", PurposeEmailVerification, 72*time.Hour)
		minted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		expGen.now = func() time.Time { return minted }
		acct := testAccount()
		tok := expGen.Make(acct)

		expGen.now = func() time.Time { return minted.Add(71 * time.Hour) }
		assert.True(t, expGen.Check(acct, tok))

		expGen.now = func() time.Time { return minted.Add(73 * time.Hour) }
		assert.False(t, expGen.Check(acct, tok))
	})

	t.Run("FutureTimestampRejected", func(t *testing.T) {
		futGen := NewGenerator("secret", PurposeEmailVerification, 72*time.Hour)
		minted := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)

		futGen.now = func() time.Time { return minted }
		acct := testAccount()
		tok := futGen.Make(acct)

		futGen.now = func() time.Time { return minted.Add(-time.Minute) }
		assert.False(t, futGen.Check(acct, tok))
	})
}

func TestUIDRoundTrip(t *testing.T) {
	uid := EncodeUID(1234)
	id, err := DecodeUID(uid)
	require.NoError(t, err)
	assert.Equal(t, int64(1234), id)

	_, err = DecodeUID("!!!")
	assert.Error(t, err)

	_, err = DecodeUID(EncodeUID(0))
	assert.Error(t, err)
}
