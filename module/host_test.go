package module

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestScopedHost_ForwardsToBot(t *testing.T) {
	ctx := context.Background()
	bot := newTestHost()
	h := newScopedHost("greeter", bot)

	require.NoError(t, h.Notice(ctx, "#chan", "hello"))
	require.NoError(t, h.Message(ctx, "nick", "hi"))
	require.NoError(t, h.SetConfig(ctx, "greeter", "greeting", "hey"))

	v, err := h.Config(ctx, "greeter", "greeting")
	require.NoError(t, err)
	assert.Equal(t, "hey", v)

	_, err = h.Config(ctx, "greeter", "missing")
	assert.ErrorIs(t, err, ErrConfigNotFound)

	assert.Equal(t, []sentLine{
		{"notice", "#chan", "hello"},
		{"message", "nick", "hi"},
	}, bot.sent)
}

func TestScopedHost_Revoked(t *testing.T) {
	ctx := context.Background()
	h := newScopedHost("greeter", newTestHost())
	h.revoke()

	assert.ErrorIs(t, h.Notice(ctx, "#chan", "x"), ErrHostRevoked)
	assert.ErrorIs(t, h.Message(ctx, "#chan", "x"), ErrHostRevoked)
	assert.ErrorIs(t, h.SetConfig(ctx, "s", "k", "v"), ErrHostRevoked)
	_, err := h.Config(ctx, "s", "k")
	assert.ErrorIs(t, err, ErrHostRevoked)
}

func TestScopedHost_NoBot(t *testing.T) {
	h := newScopedHost("greeter", nil)
	assert.Error(t, h.Notice(context.Background(), "#chan", "x"))
}

func TestManager_InstanceHostIsRestricted(t *testing.T) {
	ctx := context.Background()
	sp := &spawner{}
	bot := newTestHost()
	m := NewManager(ctx, newTestCatalog(sp.descriptor("alpha")), bot)
	defer m.Unload(ctx)

	require.True(t, m.Enable(ctx, "alpha").OK())
	inst := sp.last()
	require.NotNil(t, inst.host)

	_, isManager := any(inst.host).(*Manager)
	assert.False(t, isManager, "instances must not receive the manager")
	_, isBot := inst.host.(*testHost)
	assert.False(t, isBot, "instances must not receive the bot itself")

	require.NoError(t, inst.host.Notice(ctx, "#chan", "up"))
	assert.Len(t, bot.sent, 1)

	require.True(t, m.Disable(ctx, "alpha").OK())
	assert.ErrorIs(t, inst.host.Notice(ctx, "#chan", "down"), ErrHostRevoked)
	assert.Len(t, bot.sent, 1)
}
