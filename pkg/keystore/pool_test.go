package keystore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"

	"github.com/mahdiidarabi/chainkey/pkg/keys"
)

func TestPool(t *testing.T) {
	pool := NewPool(WithWorkers(3), WithPoolLogger(zaptest.NewLogger(t)))
	assert.Equal(t, 3, pool.Workers())

	const n = 7
	pairs := make([]*keys.KeyPair, n)
	reqs := make([]EncryptRequest, n)
	for i := range pairs {
		kp, err := keys.Generate()
		require.NoError(t, err)
		pairs[i] = kp
		reqs[i] = EncryptRequest{KeyPair: kp, Password: "pw", KDF: fastScrypt()}
	}
	reqs[4].KeyPair = pairs[4].Public()

	enc, err := pool.EncryptAll(context.Background(), reqs)
	require.NoError(t, err)
	require.Len(t, enc, n)

	dreqs := make([]DecryptRequest, 0, n)
	for i, res := range enc {
		assert.Equal(t, i, res.Index)
		if i == 4 {
			assert.ErrorIs(t, res.Err, keys.ErrMissingPrivateKey)
			continue
		}
		require.NoError(t, res.Err)
		dreqs = append(dreqs, DecryptRequest{Record: res.Record, Password: "pw"})
	}
	dreqs[0].Password = "wrong"

	dec, err := pool.DecryptAll(context.Background(), dreqs)
	require.NoError(t, err)
	require.Len(t, dec, n-1)

	assert.ErrorIs(t, dec[0].Err, ErrInvalidPassword)
	for i := 1; i < len(dec); i++ {
		require.NoError(t, dec[i].Err)
		src := i
		if i >= 4 {
			src++
		}
		assert.True(t, pairs[src].Equal(dec[i].KeyPair), "result %d", i)
	}
}

func TestPoolCancelled(t *testing.T) {
	kp, err := keys.Generate()
	require.NoError(t, err)

	reqs := make([]EncryptRequest, 5)
	for i := range reqs {
		reqs[i] = EncryptRequest{KeyPair: kp, Password: "pw", KDF: fastScrypt()}
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err = NewPool(WithWorkers(2)).EncryptAll(ctx, reqs)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestPoolDefaults(t *testing.T) {
	pool := NewPool(WithWorkers(0), WithPoolLogger(nil))
	assert.Greater(t, pool.Workers(), 0)

	res, err := pool.DecryptAll(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, res)
}
