package chat

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/askfloyd/orchestrator/internal/search"
)

func TestExtractCitations(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"none", "I don't know", nil},
		{"single", "House insurance is covered [doc1]", []string{"doc1"}},
		{"adjacent", "Covered [info1.txt][info2.pdf]", []string{"info1.txt", "info2.pdf"}},
		{"duplicate kept", "See [a] and [a]", []string{"a", "a"}},
		{"empty brackets ignored", "weird [] text", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ExtractCitations(tt.text))
		})
	}
}

func TestIsGroundedPositive(t *testing.T) {
	legit := LegitimateIDs([]search.Source{{ID: "doc1"}}, nil)
	assert.True(t, IsGrounded("House insurance is covered [doc1]", legit))
}

func TestIsGroundedNegative(t *testing.T) {
	legit := LegitimateIDs([]search.Source{{ID: "doc1"}, {ID: "doc2"}}, nil)
	assert.False(t, IsGrounded("Also covered [doc9]", legit))
}

func TestIsGroundedVacuous(t *testing.T) {
	assert.True(t, IsGrounded("I don't know, please contact customer support.", nil))
	assert.True(t, IsGrounded("No citations here", LegitimateIDs(nil, nil)))
}

func TestIsGroundedAcceptsPriorTurnCitations(t *testing.T) {
	transcript := Transcript{
		{User: "q1", Bot: "Earlier answer [old.pdf]"},
		{User: "q2"},
	}
	legit := LegitimateIDs([]search.Source{{ID: "new.txt"}}, transcript)

	assert.True(t, IsGrounded("Combining [old.pdf] and [new.txt]", legit))
	assert.False(t, IsGrounded("Citing [other.pdf]", legit))
}
