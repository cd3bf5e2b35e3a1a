package crypto

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/zalando/go-keyring"
)

func TestKeyring_StoreAndRetrieve(t *testing.T) {
	keyring.MockInit()
	k := NewKeyring("")

	_, err := k.GetKey()
	assert.True(t, errors.Is(err, ErrNoKey))

	require.NoError(t, k.SetKey("hunter2"))
	got, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "hunter2", got)
	assert.False(t, k.FromEnv())
	assert.True(t, k.IsAvailable())

	require.NoError(t, k.DeleteKey())
	assert.True(t, errors.Is(k.DeleteKey(), ErrNoKey))
}

func TestKeyring_EnvWins(t *testing.T) {
	keyring.MockInit()
	require.NoError(t, keyring.Set(ServiceName, KeyName, "stored"))

	k := NewKeyring("from-env")
	got, err := k.GetKey()
	require.NoError(t, err)
	assert.Equal(t, "from-env", got)
	assert.True(t, k.FromEnv())
}

func TestKeyring_RejectsEmpty(t *testing.T) {
	keyring.MockInit()
	assert.Error(t, NewKeyring("").SetKey(""))
}

func TestGenerateKey(t *testing.T) {
	a, err := GenerateKey()
	require.NoError(t, err)
	b, err := GenerateKey()
	require.NoError(t, err)
	assert.Len(t, a, 64)
	assert.NotEqual(t, a, b)
}
