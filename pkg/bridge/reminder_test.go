package bridge

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseReminder(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		message string
		delay   time.Duration
		human   string
	}{
		{
			name:  "slash command",
			input: "/remind 5m stretch",
			message: "stretch", delay: 5 * time.Minute, human: "5 minutes",
		},
		{
			name:  "slash command single unit",
			input: "/remind 1m stretch",
			message: "stretch", delay: time.Minute, human: "1 minute",
		},
		{
			name:  "slash command spelled unit",
			input: "/remind 2 hours water the plants",
			message: "water the plants", delay: 2 * time.Hour, human: "2 hours",
		},
		{
			name:  "remind me natural",
			input: "remind me to stretch in 5 minutes",
			message: "stretch", delay: 5 * time.Minute, human: "5 minutes",
		},
		{
			name:  "remind me delay first",
			input: "remind me in 10m to call mom",
			message: "call mom", delay: 10 * time.Minute, human: "10 minutes",
		},
		{
			name:  "remind me with embedded in",
			input: "remind me to check in with Bob in 30 seconds",
			message: "check in with Bob", delay: 30 * time.Second, human: "30 seconds",
		},
		{
			name:  "set a reminder phrasing",
			input: "please set a reminder to drink water in 2 hours",
			message: "drink water", delay: 2 * time.Hour, human: "2 hours",
		},
		{
			name:  "reminder for phrasing",
			input: "reminder for standup in 1 day",
			message: "standup", delay: 24 * time.Hour, human: "1 day",
		},
		{
			name:  "about prefix stripped",
			input: "remind me about the oven in 45s",
			message: "the oven", delay: 45 * time.Second, human: "45 seconds",
		},
		{
			name:  "trailing punctuation stripped",
			input: "remind me to stretch in 5 minutes!",
			message: "stretch", delay: 5 * time.Minute, human: "5 minutes",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			intent := ParseReminder(tt.input)
			require.NotNil(t, intent)
			assert.Equal(t, tt.message, intent.Message)
			assert.Equal(t, tt.delay, intent.Delay)
			assert.Equal(t, tt.human, intent.DelayHuman)
		})
	}
}

func TestParseReminderRejects(t *testing.T) {
	for _, input := range []string{
		"",
		"hello there",
		"/remind",
		"/remind stretch",
		"/remind 0m stretch",
		"/remind 5x stretch",
		"/remind 5m",
		"remind me to stretch",      // no " in "
		"remind me in soon to rest", // no numeric delay
		"the reminder was nice",     // "reminder" without a prefix match
	} {
		assert.Nil(t, ParseReminder(input), "input %q", input)
	}
}

func TestShellSingleQuote(t *testing.T) {
	assert.Equal(t, `'stretch'`, shellSingleQuote("stretch"))
	assert.Equal(t, `'it'"'"'s time'`, shellSingleQuote("it's time"))
	assert.Equal(t, `''`, shellSingleQuote(""))
}
