package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/Art-of-X/sparkworks/internal/adapter/knowledge"
	"github.com/Art-of-X/sparkworks/internal/config"
	"github.com/Art-of-X/sparkworks/internal/domain"
)

func testSpark() domain.Spark {
	return domain.Spark{
		SparkID:        "spk_1",
		Name:           "Vera",
		SystemPrompt:   "You are Vera, a textile artist.",
		MethodTags:     []string{"collage", "collage", "weaving"},
		CompetencyTags: []string{"color-theory"},
	}
}

func TestSystemContainsContractParts(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{})
	sys := b.System(testSpark(), nil)

	assert.True(t, strings.HasPrefix(sys, "You are Vera, a textile artist."))
	assert.Contains(t, sys, "Methods: collage, weaving")
	assert.Contains(t, sys, "Competencies: color-theory")
	assert.Contains(t, sys, "artistic lens")
	assert.Contains(t, sys, "Never invent biographical facts")
	assert.NotContains(t, sys, "Relevant knowledge")
}

func TestSystemDeduplicatesTags(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{})
	sys := b.System(testSpark(), nil)
	assert.Equal(t, 1, strings.Count(sys, "collage"))
}

func TestSystemResolvesTaxonomyLabels(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{
		Methods: map[string]string{"collage": "Collage and assemblage"},
	})
	sys := b.System(testSpark(), nil)
	assert.Contains(t, sys, "Methods: Collage and assemblage, weaving")
}

func TestSystemKnowledgeBlock(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{})
	sys := b.System(testSpark(), []knowledge.Chunk{
		{Text: "Vera's 2019 series used discarded sails.", Score: 0.92},
	})
	assert.Contains(t, sys, "Relevant knowledge from your archive:")
	assert.Contains(t, sys, "discarded sails")
}

func TestSystemNoTagsOmitsMentalModel(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{})
	sys := b.System(domain.Spark{Name: "Blank", SystemPrompt: "Base."}, nil)
	assert.NotContains(t, sys, "mental model")
	assert.Contains(t, sys, "artistic lens")
}

func TestUser(t *testing.T) {
	b := NewBuilder(&config.Taxonomy{})
	assert.Equal(t, "the task", b.User("the task", ""))
	assert.Equal(t, "the task\n\ndo it as a list", b.User("the task", "do it as a list"))
}
