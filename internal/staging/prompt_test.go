package staging

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"stagevision-backend-go/internal/models"
)

func TestBuildPromptWithoutMarkers(t *testing.T) {
	prompt := BuildPrompt("scandinavian", "living-room", "", nil, false)

	assert.Contains(t, prompt, "living-room")
	assert.Contains(t, prompt, "scandinavian")
	assert.Contains(t, prompt, "Stage the room naturally")
	assert.NotContains(t, prompt, "layout guide")
}

func TestBuildPromptWithMarkers(t *testing.T) {
	markers := []models.MarkerPayload{
		{ID: "a", Color: "#FF3B30", Instruction: "a three-seat sofa facing the window"},
		{ID: "b", Color: "#007AFF", RefImage: "aGVsbG8="},
	}
	prompt := BuildPrompt("modern", "bedroom", "use warm tones", markers, true)

	assert.Contains(t, prompt, "layout guide")
	assert.Contains(t, prompt, "must NEVER appear")
	assert.Contains(t, prompt, "1. #FF3B30 mark: a three-seat sofa facing the window")
	// A marker without text gets the default instruction.
	assert.Contains(t, prompt, "2. #007AFF mark: place a fitting piece of furniture here")
	assert.Contains(t, prompt, "reference photo for this item is attached")
	assert.Contains(t, prompt, "Additional Requirements: use warm tones")
	assert.NotContains(t, prompt, "Stage the room naturally")
}

func TestBuildPromptMarkersIgnoredWhenGuideMissing(t *testing.T) {
	markers := []models.MarkerPayload{{ID: "a", Color: "#FF3B30", Instruction: "a bed"}}
	prompt := BuildPrompt("modern", "bedroom", "", markers, false)

	// Without a rendered guide the per-mark section would point at nothing.
	assert.False(t, strings.Contains(prompt, "#FF3B30"))
	assert.Contains(t, prompt, "Stage the room naturally")
}
