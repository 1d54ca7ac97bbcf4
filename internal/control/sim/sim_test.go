package sim

import (
	"context"
	"image"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
	"go.uber.org/zap"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestCapture_FixedPlaceholder(t *testing.T) {
	b := New(zap.NewNop())

	first, err := b.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, image.Rect(0, 0, 1, 1), first.Bounds())

	second, err := b.Capture(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first.Bounds(), second.Bounds())
}

func TestExtractText_AlwaysEmpty(t *testing.T) {
	b := New(zap.NewNop())
	text, err := b.ExtractText(context.Background())
	require.NoError(t, err)
	assert.Empty(t, text)
}

func TestOpen_SucceedsForAnyName(t *testing.T) {
	b := New(zap.NewNop())
	ok, detail, err := b.Open(context.Background(), "an-app-that-does-not-exist")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Contains(t, detail, "an-app-that-does-not-exist")
}

func TestCalls_PreserveDispatchOrder(t *testing.T) {
	b := New(zap.NewNop())
	ctx := context.Background()

	x, y := 10, 20
	require.NoError(t, b.Move(ctx, x, y))
	require.NoError(t, b.Click(ctx, &x, &y, schemas.ButtonRight))
	require.NoError(t, b.Type(ctx, "hello"))
	require.NoError(t, b.PressCombination(ctx, []string{"ctrl", "s"}))

	calls := b.Calls()
	require.Len(t, calls, 4)
	assert.Equal(t, Call{Op: "move", Args: "10,20"}, calls[0])
	assert.Equal(t, Call{Op: "click", Args: "right@10,20"}, calls[1])
	assert.Equal(t, Call{Op: "type", Args: "hello"}, calls[2])
	assert.Equal(t, Call{Op: "hotkey", Args: "ctrl+s"}, calls[3])
}

func TestConcurrentDispatchIsSafe(t *testing.T) {
	b := New(zap.NewNop())
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = b.Type(ctx, "x")
		}()
	}
	wg.Wait()
	assert.Len(t, b.Calls(), 20)
}
