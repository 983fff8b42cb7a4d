package cmd

import (
	"testing"
	"time"

	"github.com/longkey1/nostack/internal/nostack"
	"github.com/longkey1/nostack/internal/nostack/session"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseDate(t *testing.T) {
	tests := []struct {
		in   string
		want time.Time
	}{
		{"2024-01-15", time.Date(2024, 1, 15, 0, 0, 0, 0, time.Local)},
		{"2024-12", time.Date(2024, 12, 1, 0, 0, 0, 0, time.Local)},
		{"2023", time.Date(2023, 1, 1, 0, 0, 0, 0, time.Local)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := parseDate(tt.in)
			require.NoError(t, err)
			assert.True(t, tt.want.Equal(got))
		})
	}

	_, err := parseDate("15/01/2024")
	assert.Error(t, err)
}

func TestSelectForDeletion(t *testing.T) {
	cutoff := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	old := cutoff.Add(-48 * time.Hour)
	recent := cutoff.Add(48 * time.Hour)

	sessions := []session.Session{
		{ID: "old-alone", CreatedAt: old},
		{ID: "old-parent", CreatedAt: old},
		{ID: "new-child", ParentID: "old-parent", CreatedAt: recent},
		{ID: "new", CreatedAt: recent},
	}

	toDelete, protected := selectForDeletion(sessions, cutoff, false)
	require.Len(t, toDelete, 1)
	assert.Equal(t, "old-alone", toDelete[0].ID)
	require.Len(t, protected, 1)
	assert.Equal(t, "old-parent", protected[0].ID)

	toDelete, protected = selectForDeletion(sessions, time.Time{}, true)
	assert.Len(t, toDelete, 4)
	assert.Empty(t, protected)
}

func TestBuildTranscript(t *testing.T) {
	parent := session.NewSession("openai:gpt-4.1")
	parent.AddTextMessage(nostack.RoleUser, "What is Go?")
	parent.AddTextMessage(nostack.RoleAssistant, "A language.")
	parent.AddTextMessage(nostack.RoleError, "Error: 500: boom")

	child := session.NewSession("openai:gpt-4.1")
	child.ParentID = parent.ID
	child.AddTextMessage(nostack.RoleUser, "Previous conversation summary:\n\n...")
	child.AddTextMessage(nostack.RoleUser, "And Rust?")

	text, n := buildTranscript([]*session.Session{parent, child})
	assert.Equal(t, 3, n)
	assert.Contains(t, text, "[Message 1] User: What is Go?")
	assert.Contains(t, text, "[Message 2] Assistant: A language.")
	assert.Contains(t, text, "[Message 3] User: And Rust?")
	assert.NotContains(t, text, "boom")
	assert.NotContains(t, text, "summary")
}

func TestCompleteCommand(t *testing.T) {
	assert.Equal(t, []string{"/image", "/images", "/info"}, completeCommand("/i"))
	assert.Equal(t, []string{"/exit", "/export"}, completeCommand("/ex"))
	assert.Nil(t, completeCommand("hello"))
	assert.Nil(t, completeCommand("/model gpt"))
}

func TestMessageID(t *testing.T) {
	id, err := messageID("", 4)
	require.NoError(t, err)
	assert.Equal(t, 4, id)

	id, err = messageID("#7", 4)
	require.NoError(t, err)
	assert.Equal(t, 7, id)

	_, err = messageID("", -1)
	assert.Error(t, err)
	_, err = messageID("x", 0)
	assert.Error(t, err)
}

func TestSummaryLine(t *testing.T) {
	msg := &nostack.Message{Parts: []nostack.Part{
		{Type: nostack.PartText, Content: "a  long\nmessage that goes on"},
		{Type: nostack.PartImage, Content: "data:image/png;base64,AAAA"},
	}}
	assert.Equal(t, "[1 image(s)] a long…", summaryLine(msg, 20))
}
