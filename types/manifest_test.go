package types

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestDecodeManifest(t *testing.T) {
	t.Run("both scripts", func(t *testing.T) {
		m, err := DecodeManifest(strings.NewReader(`{
  "name": "opcode",
  "scripts": {
    "test-ganache": "yarn truffle test",
    "test-eidon-chain": "yarn truffle test --network eidon",
    "lint": "eslint ."
  }
}`))
		require.NoError(t, err)
		require.Equal(t, "opcode", m.Name)
		require.NoError(t, m.Validate())
		require.Equal(t, []Network{NetworkGanache, NetworkEidonChain}, m.SupportedNetworks())
	})

	t.Run("missing live script", func(t *testing.T) {
		m, err := DecodeManifest(strings.NewReader(`{"scripts": {"test-ganache": "truffle test"}}`))
		require.NoError(t, err)
		err = m.Validate()
		require.Error(t, err)
		require.True(t, errors.Is(err, ErrMissingScript))
		require.Contains(t, err.Error(), "test-eidon-chain")
		require.Equal(t, []Network{NetworkGanache}, m.SupportedNetworks())
	})

	t.Run("empty script counts as missing", func(t *testing.T) {
		m, err := DecodeManifest(strings.NewReader(`{"scripts": {"test-ganache": "  ", "test-eidon-chain": "x"}}`))
		require.NoError(t, err)
		require.ErrorIs(t, m.Validate(), ErrMissingScript)
	})

	t.Run("no scripts", func(t *testing.T) {
		m, err := DecodeManifest(strings.NewReader(`{"name": "empty"}`))
		require.NoError(t, err)
		require.ErrorIs(t, m.Validate(), ErrMissingScript)
		require.Empty(t, m.SupportedNetworks())
	})

	t.Run("scripts of wrong shape", func(t *testing.T) {
		_, err := DecodeManifest(strings.NewReader(`{"scripts": ["test-ganache"]}`))
		require.Error(t, err)
	})

	t.Run("invalid json", func(t *testing.T) {
		_, err := DecodeManifest(strings.NewReader(`{"scripts":`))
		require.Error(t, err)
	})

	t.Run("trailing content", func(t *testing.T) {
		_, err := DecodeManifest(strings.NewReader(`{"scripts":{"test-ganache":"a","test-eidon-chain":"b"}} }garbage`))
		require.Error(t, err)
	})

	t.Run("second document", func(t *testing.T) {
		_, err := DecodeManifest(strings.NewReader(`{"name":"a"} {"name":"b"}`))
		require.Error(t, err)
	})

	t.Run("trailing whitespace", func(t *testing.T) {
		m, err := DecodeManifest(strings.NewReader("{\"name\":\"a\"}\n\n"))
		require.NoError(t, err)
		require.Equal(t, "a", m.Name)
	})
}
