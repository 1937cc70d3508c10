package secret_test

import (
	"testing"

	"github.com/pollum-io/sysweb3-sub000/pkg/secret"
	"github.com/stretchr/testify/require"
)

func TestSecretString(t *testing.T) {
	s := secret.New("pwd")
	require.False(t, s.IsEmpty())
	require.True(t, s.Equal("pwd"))

	s.Set("other")
	require.Equal(t, "other", s.Reveal())

	s.Wipe()
	require.True(t, s.IsEmpty())
	require.Empty(t, s.Reveal())
	require.False(t, s.Equal(""))

	var nilSecret *secret.String
	require.True(t, nilSecret.IsEmpty())
	nilSecret.Wipe()
}

func TestZero(t *testing.T) {
	b := []byte{1, 2, 3}
	secret.Zero(b)
	require.Equal(t, []byte{0, 0, 0}, b)
}
