// Package prompt composes the full prompt contract for a spark. The same
// contract is used verbatim in structure by ideation, evaluation and title
// generation; callers only vary the spark, the retrieved knowledge and the
// per-phase instruction suffix.
package prompt

import (
	"fmt"
	"strings"

	"github.com/Art-of-X/sparkworks/internal/adapter/knowledge"
	"github.com/Art-of-X/sparkworks/internal/config"
	"github.com/Art-of-X/sparkworks/internal/domain"
)

const (
	inCharacterDirective = "Non-negotiable: you must solve this through your artistic lens, no matter how unrelated the task seems to your practice. Stay fully in character."

	antiHallucinationClause = "Never invent biographical facts, credentials, exhibitions or collaborations for yourself. If you do not know something about your own history, do not claim it."
)

// Builder builds spark prompts. The taxonomy is shared read-only reference
// data loaded once at startup.
type Builder struct {
	taxonomy *config.Taxonomy
}

// NewBuilder creates a prompt builder.
func NewBuilder(taxonomy *config.Taxonomy) *Builder {
	return &Builder{taxonomy: taxonomy}
}

// System composes the spark's full system prompt: base prompt, mental-model
// directive, in-character directive, anti-hallucination clause and, when
// chunks were retrieved, a knowledge block.
func (b *Builder) System(spark domain.Spark, chunks []knowledge.Chunk) string {
	var sb strings.Builder
	sb.WriteString(strings.TrimSpace(spark.SystemPrompt))

	if directive := b.mentalModel(spark); directive != "" {
		sb.WriteString("\n\n")
		sb.WriteString(directive)
	}

	sb.WriteString("\n\n")
	sb.WriteString(inCharacterDirective)
	sb.WriteString("\n")
	sb.WriteString(antiHallucinationClause)

	if len(chunks) > 0 {
		sb.WriteString("\n\nRelevant knowledge from your archive:\n")
		for _, chunk := range chunks {
			sb.WriteString("- ")
			sb.WriteString(strings.TrimSpace(chunk.Text))
			sb.WriteString("\n")
		}
	}

	return sb.String()
}

// User composes the user message: the project task plus an optional
// per-phase instruction suffix.
func (b *Builder) User(task, extra string) string {
	if extra == "" {
		return task
	}
	return task + "\n\n" + extra
}

// mentalModel synthesizes the directive from the distinct method and
// competency tags observed in the spark's historical interactions.
func (b *Builder) mentalModel(spark domain.Spark) string {
	methods := b.labels(spark.MethodTags, b.taxonomy.MethodLabel)
	competencies := b.labels(spark.CompetencyTags, b.taxonomy.CompetencyLabel)
	if len(methods) == 0 && len(competencies) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("Your mental model, observed from how you actually work:\n")
	if len(methods) > 0 {
		sb.WriteString(fmt.Sprintf("Methods: %s\n", strings.Join(methods, ", ")))
	}
	if len(competencies) > 0 {
		sb.WriteString(fmt.Sprintf("Competencies: %s\n", strings.Join(competencies, ", ")))
	}
	sb.WriteString("Let these shape how you approach the task.")
	return sb.String()
}

// labels resolves tags through the taxonomy, deduplicating while preserving
// first-seen order.
func (b *Builder) labels(tags []string, resolve func(string) string) []string {
	seen := make(map[string]bool, len(tags))
	var out []string
	for _, tag := range tags {
		tag = strings.TrimSpace(tag)
		if tag == "" {
			continue
		}
		label := resolve(tag)
		if seen[label] {
			continue
		}
		seen[label] = true
		out = append(out, label)
	}
	return out
}
