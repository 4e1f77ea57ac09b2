package identity

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

const testSecret = "test-secret"

func TestResolve_ValidToken(t *testing.T) {
	r := NewResolver(Config{Secret: testSecret, CacheTTL: time.Minute}, nil, zap.NewNop())
	user := uuid.New()
	token, err := Issue(testSecret, user, time.Hour)
	require.NoError(t, err)

	id, err := r.Resolve(context.Background(), "Bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, user, id)

	// второй раз из кэша
	id, err = r.Resolve(context.Background(), "bearer "+token, "")
	require.NoError(t, err)
	assert.Equal(t, user, id)
}

func TestResolve_Anonymous(t *testing.T) {
	r := NewResolver(Config{Secret: testSecret}, nil, zap.NewNop())
	id, err := r.Resolve(context.Background(), "", "")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)
}

func TestResolve_Rejects(t *testing.T) {
	r := NewResolver(Config{Secret: testSecret, CacheTTL: time.Minute}, nil, zap.NewNop())

	wrong, err := Issue("other-secret", uuid.New(), time.Hour)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "Bearer "+wrong, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	expired, err := Issue(testSecret, uuid.New(), -time.Minute)
	require.NoError(t, err)
	_, err = r.Resolve(context.Background(), "Bearer "+expired, "")
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = r.Resolve(context.Background(), "Bearer not-a-jwt", "")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestResolve_DevHeader(t *testing.T) {
	user := uuid.New()

	strict := NewResolver(Config{Secret: testSecret}, nil, zap.NewNop())
	id, err := strict.Resolve(context.Background(), "", user.String())
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, id)

	dev := NewResolver(Config{Secret: testSecret, AllowUnverified: true}, nil, zap.NewNop())
	id, err = dev.Resolve(context.Background(), "", user.String())
	require.NoError(t, err)
	assert.Equal(t, user, id)

	_, err = dev.Resolve(context.Background(), "", "nope")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestMemoryCache_Expires(t *testing.T) {
	c := NewMemoryCache()
	now := time.Now()
	c.now = func() time.Time { return now }

	user := uuid.New()
	require.NoError(t, c.Set(context.Background(), "k", user, time.Second))

	id, ok, err := c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, user, id)

	now = now.Add(2 * time.Second)
	_, ok, err = c.Get(context.Background(), "k")
	require.NoError(t, err)
	assert.False(t, ok)
}
