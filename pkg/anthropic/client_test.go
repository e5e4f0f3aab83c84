package anthropic

import (
	"testing"

	sdk "github.com/anthropics/anthropic-sdk-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEstimateCost(t *testing.T) {
	tests := []struct {
		name  string
		model string
		usage TokenUsage
		want  float64
	}{
		{"haiku", "claude-haiku-4-5-20251001", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 4.80},
		{"sonnet", "claude-sonnet-4-5-20250929", TokenUsage{InputTokens: 1_000_000, OutputTokens: 1_000_000}, 18.00},
		{
			name:  "haiku with cache",
			model: "claude-haiku-4-5-20251001",
			usage: TokenUsage{
				InputTokens:              500_000,
				OutputTokens:             100_000,
				CacheCreationInputTokens: 200_000,
				CacheReadInputTokens:     300_000,
			},
			want: 1.024,
		},
		{"unknown model", "gpt-oss:20b-cloud", TokenUsage{InputTokens: 1_000_000}, 0},
		{"zero", "claude-haiku-4-5-20251001", TokenUsage{}, 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.InDelta(t, tt.want, tt.usage.EstimateCost(tt.model), 0.001)
		})
	}
}

func TestLogCost_DoesNotPanic(t *testing.T) {
	assert.NotPanics(t, func() {
		TokenUsage{InputTokens: 100, OutputTokens: 50}.LogCost("unknown-model", "categorizer")
	})
}

func TestMessageResponse_Text(t *testing.T) {
	resp := &MessageResponse{Content: []ContentBlock{
		{Type: "text", Text: `{"main_category":`},
		{Type: "tool_use"},
		{Type: "text", Text: `"Drinks"}`},
	}}
	assert.Equal(t, `{"main_category":"Drinks"}`, resp.Text())
}

func TestFromSDKMessage(t *testing.T) {
	resp := fromSDKMessage(&sdk.Message{
		ID:         "msg_1",
		Model:      "claude-sonnet-4-5-20250929",
		StopReason: "end_turn",
		Content:    []sdk.ContentBlockUnion{{Type: "text", Text: "hello"}},
		Usage:      sdk.Usage{InputTokens: 12, OutputTokens: 3},
	})

	require.Len(t, resp.Content, 1)
	assert.Equal(t, "msg_1", resp.ID)
	assert.Equal(t, "end_turn", resp.StopReason)
	assert.Equal(t, "hello", resp.Text())
	assert.Equal(t, int64(12), resp.Usage.InputTokens)
}

func TestToSDKParams(t *testing.T) {
	temp := 0.7
	params := toSDKParams(MessageRequest{
		Model:       "claude-sonnet-4-5-20250929",
		MaxTokens:   2000,
		System:      []SystemBlock{{Text: "You are an expert product analyst."}, {Text: "ctx"}},
		Messages:    []Message{{Role: "user", Content: "hi"}, {Role: "assistant", Content: "yo"}},
		Temperature: &temp,
	})

	assert.Equal(t, int64(2000), params.MaxTokens)
	require.Len(t, params.System, 2)
	assert.Equal(t, "You are an expert product analyst.", params.System[0].Text)
	assert.Len(t, params.Messages, 2)
	assert.Equal(t, sdk.MessageParamRoleAssistant, params.Messages[1].Role)
}
