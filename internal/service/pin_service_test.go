package service

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"wallet-ledger/pkg/apperror"
)

// Low cost keeps hashing fast in tests.
func newTestPinService() *BcryptPinService {
	return NewBcryptPinService(4)
}

func TestValidPinFormat(t *testing.T) {
	valid := []string{"0000", "1234", "9999"}
	for _, pin := range valid {
		assert.True(t, ValidPinFormat(pin), pin)
	}

	invalid := []string{"", "123", "12345", "12a4", "12 4", "١٢٣٤", "-123", "12.4"}
	for _, pin := range invalid {
		assert.False(t, ValidPinFormat(pin), pin)
	}
}

func TestPinService_HashAndVerify(t *testing.T) {
	svc := newTestPinService()

	hash, err := svc.Hash("1234")
	require.NoError(t, err)
	assert.NotEqual(t, "1234", hash)

	assert.True(t, svc.Verify("1234", hash))
	assert.False(t, svc.Verify("4321", hash))
}

func TestPinService_Hash_RejectsMalformedPin(t *testing.T) {
	svc := newTestPinService()

	for _, pin := range []string{"", "12", "abcd", "12345"} {
		_, err := svc.Hash(pin)
		require.Error(t, err, pin)
		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, "VAL_002", appErr.Code)
	}
}

func TestPinService_Verify_FailClosedOnShape(t *testing.T) {
	svc := newTestPinService()
	hash, err := svc.Hash("1234")
	require.NoError(t, err)

	// Malformed input never reaches the hash comparison.
	assert.False(t, svc.Verify("12345", hash))
	assert.False(t, svc.Verify("", hash))
	assert.False(t, svc.Verify("123a", hash))
}

func TestPinService_HashesAreSalted(t *testing.T) {
	svc := newTestPinService()

	h1, err := svc.Hash("1234")
	require.NoError(t, err)
	h2, err := svc.Hash("1234")
	require.NoError(t, err)

	assert.NotEqual(t, h1, h2)
	assert.True(t, svc.Verify("1234", h1))
	assert.True(t, svc.Verify("1234", h2))
}

func TestNewBcryptPinService_CostFallback(t *testing.T) {
	svc := NewBcryptPinService(99)
	hash, err := svc.Hash("0000")
	require.NoError(t, err)
	assert.True(t, svc.Verify("0000", hash))
}
