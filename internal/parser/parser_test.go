package parser

import (
	"regexp"
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xkilldash9x/deskpilot/api/schemas"
)

func TestParse_RecognizedPhrasings(t *testing.T) {
	p := New()

	testCases := []struct {
		name string
		text string
		want schemas.ActionPlan
	}{
		{
			name: "open app and type",
			text: "open notepad and type hello world",
			want: schemas.ActionPlan{
				{Kind: schemas.StepOpenApp, App: "notepad"},
				{Kind: schemas.StepTypeText, Text: "hello world"},
			},
		},
		{
			name: "click at coordinates",
			text: "click at 100,200",
			want: schemas.ActionPlan{
				{Kind: schemas.StepClick, X: intPtr(100), Y: intPtr(200), Button: schemas.ButtonLeft},
			},
		},
		{
			name: "right click without coordinates",
			text: "right click",
			want: schemas.ActionPlan{
				{Kind: schemas.StepClick, Button: schemas.ButtonRight},
			},
		},
		{
			name: "click with button suffix",
			text: "click at 100,200 with right button",
			want: schemas.ActionPlan{
				{Kind: schemas.StepClick, X: intPtr(100), Y: intPtr(200), Button: schemas.ButtonRight},
			},
		},
		{
			name: "click with button suffix and no coordinates",
			text: "click with the middle mouse button",
			want: schemas.ActionPlan{
				{Kind: schemas.StepClick, Button: schemas.ButtonMiddle},
			},
		},
		{
			name: "hotkey chord",
			text: "press ctrl+c",
			want: schemas.ActionPlan{
				{Kind: schemas.StepHotkey, Keys: []string{"ctrl", "c"}},
			},
		},
		{
			name: "single key press",
			text: "press enter",
			want: schemas.ActionPlan{
				{Kind: schemas.StepHotkey, Keys: []string{"enter"}},
			},
		},
		{
			name: "move mouse",
			text: "move the mouse to 50, 75",
			want: schemas.ActionPlan{
				{Kind: schemas.StepMoveMouse, X: intPtr(50), Y: intPtr(75)},
			},
		},
		{
			name: "quoted type text",
			text: `type "ham and eggs"`,
			want: schemas.ActionPlan{
				{Kind: schemas.StepTypeText, Text: "ham and eggs"},
			},
		},
		{
			name: "bare and stays inside the literal",
			text: "type ham and eggs",
			want: schemas.ActionPlan{
				{Kind: schemas.StepTypeText, Text: "ham and eggs"},
			},
		},
		{
			name: "screenshot",
			text: "take a screenshot",
			want: schemas.ActionPlan{
				{Kind: schemas.StepCaptureScreen},
			},
		},
		{
			name: "read screen",
			text: "read the screen text",
			want: schemas.ActionPlan{
				{Kind: schemas.StepReadScreenText},
			},
		},
		{
			name: "wait with unit",
			text: "wait 500 ms",
			want: schemas.ActionPlan{
				{Kind: schemas.StepWait, DurationMs: 500},
			},
		},
		{
			name: "wait in seconds by default",
			text: "wait for 2",
			want: schemas.ActionPlan{
				{Kind: schemas.StepWait, DurationMs: 2000},
			},
		},
		{
			name: "connector chain",
			text: "move to 300,400 then click; wait 1 second, then press ctrl+s",
			want: schemas.ActionPlan{
				{Kind: schemas.StepMoveMouse, X: intPtr(300), Y: intPtr(400)},
				{Kind: schemas.StepClick, Button: schemas.ButtonLeft},
				{Kind: schemas.StepWait, DurationMs: 1000},
				{Kind: schemas.StepHotkey, Keys: []string{"ctrl", "s"}},
			},
		},
		{
			name: "whitespace normalization",
			text: "  open \t notepad  and   type   hi  ",
			want: schemas.ActionPlan{
				{Kind: schemas.StepOpenApp, App: "notepad"},
				{Kind: schemas.StepTypeText, Text: "hi"},
			},
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			got, err := p.Parse(tc.text)
			require.NoError(t, err)
			assert.Empty(t, cmp.Diff(tc.want, got))
		})
	}
}

func TestParse_Deterministic(t *testing.T) {
	p := New()
	const text = "open notepad and type hello then press ctrl+s; wait 250 ms"

	first, err := p.Parse(text)
	require.NoError(t, err)
	for i := 0; i < 10; i++ {
		again, err := p.Parse(text)
		require.NoError(t, err)
		assert.Empty(t, cmp.Diff(first, again))
	}
}

func TestParse_EveryStepValidates(t *testing.T) {
	p := New()
	plan, err := p.Parse("open notepad and type hello then click at 10,20 then press ctrl+c then wait 1 second")
	require.NoError(t, err)
	for _, step := range plan {
		assert.NoError(t, step.Validate(), "step %s", step.Describe())
	}
}

func TestParse_Unrecognized(t *testing.T) {
	p := New()

	t.Run("empty input", func(t *testing.T) {
		_, err := p.Parse("   ")
		require.ErrorIs(t, err, ErrUnrecognizedTask)
	})

	t.Run("nonsense input", func(t *testing.T) {
		_, err := p.Parse("frobnicate the widgets")
		require.ErrorIs(t, err, ErrUnrecognizedTask)
		assert.Contains(t, err.Error(), "frobnicate the widgets")
	})

	t.Run("failure names the bad segment", func(t *testing.T) {
		_, err := p.Parse("open notepad then summon a daemon")
		require.ErrorIs(t, err, ErrUnrecognizedTask)
		assert.Contains(t, err.Error(), "summon a daemon")
		assert.NotContains(t, err.Error(), "open notepad")
	})
}

func TestParse_AmbiguousTier(t *testing.T) {
	// Two rules in the same tier that both fully cover the segment must be
	// reported, not resolved first-wins.
	p := &Parser{rules: []rule{
		{
			name:     "greet-a",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^greet\s+(.+)$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepTypeText, Text: m[1]})
			},
		},
		{
			name:     "greet-b",
			priority: 50,
			pattern:  regexp.MustCompile(`(?i)^greet\s+\w+$`),
			build: func(m []string) (schemas.ActionPlan, error) {
				return single(schemas.ActionStep{Kind: schemas.StepTypeText, Text: "hello"})
			},
		},
	}}

	_, err := p.Parse("greet world")
	require.ErrorIs(t, err, ErrAmbiguousTask)
	assert.Contains(t, err.Error(), "greet-a")
	assert.Contains(t, err.Error(), "greet-b")
}

func TestParse_HigherTierWins(t *testing.T) {
	p := New()
	plan, err := p.Parse("open notepad and type hello world")
	require.NoError(t, err)
	require.Len(t, plan, 2)
	assert.Equal(t, schemas.StepOpenApp, plan[0].Kind)
	assert.Equal(t, "notepad", plan[0].App)
}
