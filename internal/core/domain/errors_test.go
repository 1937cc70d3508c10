package domain_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/pollum-io/sysweb3-sub000/internal/core/domain"
	"github.com/stretchr/testify/require"
)

func TestKindOf(t *testing.T) {
	tests := []struct {
		err  error
		kind domain.Kind
	}{
		{domain.ErrWalletLocked, domain.KindAuthentication},
		{fmt.Errorf("unlock: %w", domain.ErrInvalidPassword), domain.KindAuthentication},
		{domain.ErrAccountNotSet, domain.KindState},
		{domain.ErrInvalidAssets, domain.KindValidation},
		{domain.ErrChainIDMismatch, domain.KindNetwork},
		{domain.ErrWrongAddress, domain.KindSigning},
		{errors.New("plain"), domain.KindUnknown},
		{nil, domain.KindUnknown},
	}
	for _, tt := range tests {
		require.Equal(t, tt.kind, domain.KindOf(tt.err))
	}
}

func TestNetworkError(t *testing.T) {
	cause := errors.New("connection refused")
	err := domain.NetworkError(cause)
	require.ErrorIs(t, err, domain.ErrRPCUnreachable)
	require.ErrorIs(t, err, cause)
	require.Equal(t, domain.KindNetwork, domain.KindOf(err))

	require.Equal(t, domain.ErrChainIDMismatch, domain.NetworkError(domain.ErrChainIDMismatch))
	require.NoError(t, domain.NetworkError(nil))
}

func TestPasswordRecord(t *testing.T) {
	record, err := domain.NewPasswordRecord("Asdqwe123!")
	require.NoError(t, err)
	require.Len(t, record.Salt, 32)
	require.Len(t, record.Hash, 128)

	require.True(t, record.Matches("Asdqwe123!"))
	require.False(t, record.Matches("asdqwe123!"))
	require.False(t, record.Matches(""))

	other, err := domain.NewPasswordRecord("Asdqwe123!")
	require.NoError(t, err)
	require.NotEqual(t, record.Salt, other.Salt)

	_, err = domain.NewPasswordRecord("")
	require.ErrorIs(t, err, domain.ErrPasswordRequired)

	var nilRecord *domain.PasswordRecord
	require.False(t, nilRecord.Matches("Asdqwe123!"))
}
