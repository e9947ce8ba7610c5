package assistant

import (
	"context"
	"testing"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/sma-ledger-api/pkg/config"
)

func TestNewGeminiRequiresKey(t *testing.T) {
	g, err := NewGemini(context.Background(), config.AssistantConfig{})
	require.ErrorIs(t, err, ErrNotConfigured)
	assert.Nil(t, g)
}

func TestCandidateText(t *testing.T) {
	assert.Equal(t, "", candidateText(nil))
	assert.Equal(t, "", candidateText(&genai.GenerateContentResponse{}))

	resp := &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{{
			Content: &genai.Content{Parts: []genai.Part{genai.Text("Great work. "), genai.Text("Keep going!  ")}},
		}},
	}
	assert.Equal(t, "Great work. Keep going!", candidateText(resp))
}

func TestCloseNil(t *testing.T) {
	var g *Gemini
	assert.NoError(t, g.Close())
}
