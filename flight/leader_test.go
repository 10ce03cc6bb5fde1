package flight

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/jonwraymond/callgate/keys"
)

func TestLeaderMarks(t *testing.T) {
	ownerA, ownerB := new(int), new(int)
	k2 := keys.FromCanonical(`[2]`)
	ctx := context.Background()

	assert.False(t, IsLeader(ctx, ownerA, k1))

	ctx = WithLeader(ctx, ownerA, k1)
	assert.True(t, IsLeader(ctx, ownerA, k1))
	assert.False(t, IsLeader(ctx, ownerB, k1), "marks are scoped to their owner")
	assert.False(t, IsLeader(ctx, ownerA, k2))

	ctx = WithLeader(ctx, ownerA, k2)
	assert.True(t, IsLeader(ctx, ownerA, k1), "outer marks stay visible")
	assert.True(t, IsLeader(ctx, ownerA, k2))
}

func TestRun_MarksContext(t *testing.T) {
	owner := new(int)
	res := Run(context.Background(), owner, k1, func(ctx context.Context) (bool, error) {
		return IsLeader(ctx, owner, k1), nil
	})
	require.NoError(t, res.Err)
	assert.True(t, res.Value)
}

func TestRun_ReturnsError(t *testing.T) {
	boom := errors.New("boom")
	res := Run(context.Background(), nil, k1, func(context.Context) (int, error) {
		return 0, boom
	})
	assert.ErrorIs(t, res.Err, boom)
	assert.Nil(t, res.Panic)
}

func TestRun_RecoversPanic(t *testing.T) {
	res := Run(context.Background(), nil, k1, func(context.Context) (int, error) {
		panic("kaboom")
	})

	require.NotNil(t, res.Panic)
	assert.Equal(t, "kaboom", res.Panic.Value)
	assert.NotEmpty(t, res.Panic.Stack)
	assert.ErrorIs(t, res.Err, ErrPanicked)

	var pe *PanicError
	require.ErrorAs(t, res.Err, &pe)
	assert.Contains(t, pe.Error(), "kaboom")
}
