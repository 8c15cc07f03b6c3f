package common

import (
	"encoding/hex"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMakeRandHexString(t *testing.T) {
	for _, n := range []int{0, 8, 32} {
		t.Run(fmt.Sprintf("size=%d", n), func(t *testing.T) {
			s, err := MakeRandHexString(n)
			require.NoError(t, err)
			assert.Len(t, s, n*2)
			_, err = hex.DecodeString(s)
			assert.NoError(t, err)
		})
	}
}

func TestGenerateRandByteArray_Length(t *testing.T) {
	a := GenerateRandByteArray(16)
	b := GenerateRandByteArray(16)
	require.Len(t, a, 16)
	require.Len(t, b, 16)
	if string(a) == string(b) {
		t.Logf("warning: two random arrays are identical; extremely unlikely")
	}
}

func TestWipeByteArray(t *testing.T) {
	buf := []byte("882910")
	WipeByteArray(buf)
	assert.Equal(t, make([]byte, 6), buf)

	WipeByteArray(nil)
}

func TestSentinels_AreDistinct(t *testing.T) {
	all := []error{
		ErrNotFound, ErrRejected, ErrSessionExpired, ErrSessionNotFound,
		ErrEmptySelection, ErrPaymentFailed, ErrPaymentTimedOut,
		ErrCheckoutInProgress, ErrAssetNotInVault, ErrAssetLocked,
		ErrTooManyAttempts, ErrNotPublic, ErrAssetReserved,
	}
	for i, a := range all {
		for j, b := range all {
			if i != j && errors.Is(a, b) {
				t.Fatalf("%v must not match %v", a, b)
			}
		}
	}
	wrapped := fmt.Errorf("checkout: %w", ErrEmptySelection)
	assert.ErrorIs(t, wrapped, ErrEmptySelection)
}
