package flagstore

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestFlagStoreBasics(t *testing.T) {
	assert := assert.New(t)
	ctx := context.Background()

	fs := NewMemFlagStore()

	l, err := fs.Get(ctx, "evil.example")
	assert.NoError(err)
	assert.Empty(l)

	assert.NoError(fs.Add(ctx, "evil.example", []string{FlagBlacklisted, "red"}))
	assert.NoError(fs.Add(ctx, "evil.example", []string{FlagBlacklisted, "blue"}))
	l, err = fs.Get(ctx, "evil.example")
	assert.NoError(err)
	assert.Equal(3, len(l))

	ok, err := HasFlag(ctx, fs, "evil.example", FlagBlacklisted)
	assert.NoError(err)
	assert.True(ok)

	assert.NoError(fs.Remove(ctx, "evil.example", []string{FlagBlacklisted, "blue"}))
	l, err = fs.Get(ctx, "evil.example")
	assert.NoError(err)
	assert.Equal([]string{"red"}, l)

	ok, err = HasFlag(ctx, fs, "evil.example", FlagBlacklisted)
	assert.NoError(err)
	assert.False(ok)
}
