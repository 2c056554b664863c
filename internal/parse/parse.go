// Package parse turns free-text model output into structured decisions.
// Every parser returns a tagged result so tolerant fallbacks stay observable
// instead of silently defaulting.
package parse

import (
	"regexp"
	"strconv"
	"strings"
)

// Mode tags how a result was obtained.
type Mode string

const (
	// ModeParsed means the expected structure was found.
	ModeParsed Mode = "parsed"
	// ModeFallback means the tolerant fallback was applied.
	ModeFallback Mode = "fallback"
	// ModeFailed means nothing usable could be extracted.
	ModeFailed Mode = "failed"
)

// MaxProposals caps how many proposals one spark contributes.
const MaxProposals = 3

var (
	listItemRe  = regexp.MustCompile(`^\s*(?:\d+[.)]|[-*•])\s+(.+)$`)
	topPicksRe  = regexp.MustCompile(`(?i)top\s*3\s*[:\-]?\s*([\d,\s]+)`)
	reasoningRe = regexp.MustCompile(`(?is)reasoning\s*[:\-]?\s*(.+)`)
	svgOpenRe   = regexp.MustCompile(`(?i)<svg[\s>]`)
)

// ProposalsResult is the outcome of splitting an ideation response into
// discrete proposals.
type ProposalsResult struct {
	Proposals []string
	Mode      Mode
}

// Proposals splits a numbered or bulleted response into at most MaxProposals
// proposal strings. When no list structure is found the whole response is
// treated as a single proposal; an empty response yields ModeFailed.
func Proposals(text string) ProposalsResult {
	var proposals []string
	for _, line := range strings.Split(text, "\n") {
		m := listItemRe.FindStringSubmatch(line)
		if m == nil {
			// Continuation of the previous item.
			if len(proposals) > 0 && strings.TrimSpace(line) != "" {
				proposals[len(proposals)-1] += " " + strings.TrimSpace(line)
			}
			continue
		}
		if len(proposals) >= MaxProposals {
			break
		}
		proposals = append(proposals, strings.TrimSpace(m[1]))
	}

	if len(proposals) > 0 {
		return ProposalsResult{Proposals: proposals, Mode: ModeParsed}
	}
	if trimmed := strings.TrimSpace(text); trimmed != "" {
		return ProposalsResult{Proposals: []string{trimmed}, Mode: ModeFallback}
	}
	return ProposalsResult{Mode: ModeFailed}
}

// VerdictResult is the outcome of parsing an evaluation response. Picks are
// 1-indexed references into the flattened proposal list; range checking is
// the caller's concern.
type VerdictResult struct {
	Picks     []int
	Reasoning string
	Mode      Mode
}

// Verdict parses a "Top 3: n,n,n" line and a "Reasoning: ..." block.
func Verdict(text string) VerdictResult {
	m := topPicksRe.FindStringSubmatch(text)
	if m == nil {
		return VerdictResult{Mode: ModeFailed}
	}

	var picks []int
	for _, field := range strings.FieldsFunc(m[1], func(r rune) bool { return r == ',' || r == ' ' || r == '\n' || r == '\t' }) {
		n, err := strconv.Atoi(field)
		if err != nil {
			continue
		}
		picks = append(picks, n)
		if len(picks) == 3 {
			break
		}
	}
	if len(picks) == 0 {
		return VerdictResult{Mode: ModeFailed}
	}

	reasoning := ""
	if rm := reasoningRe.FindStringSubmatch(text); rm != nil {
		reasoning = strings.TrimSpace(rm[1])
	}
	return VerdictResult{Picks: picks, Reasoning: reasoning, Mode: ModeParsed}
}

// TitleResult is the outcome of parsing a title generation response.
type TitleResult struct {
	Title string
	Mode  Mode
}

const titleMaxWords = 8

// Title normalizes a generated title to at most eight words. When the
// response is empty the title is derived from the proposal text instead.
func Title(text, proposalText string) TitleResult {
	title := strings.TrimSpace(text)
	title = strings.Trim(title, `"'`)
	if idx := strings.IndexByte(title, '\n'); idx >= 0 {
		title = strings.TrimSpace(title[:idx])
	}
	if title != "" {
		return TitleResult{Title: capWords(title, titleMaxWords), Mode: ModeParsed}
	}
	return TitleResult{Title: DeriveTitle(proposalText), Mode: ModeFallback}
}

// DeriveTitle builds a text-derived default title from a proposal.
func DeriveTitle(proposalText string) string {
	title := capWords(strings.TrimSpace(proposalText), titleMaxWords)
	if title == "" {
		return "Untitled"
	}
	return title
}

func capWords(s string, n int) string {
	words := strings.Fields(s)
	if len(words) > n {
		words = words[:n]
	}
	return strings.Join(words, " ")
}

// SVG extracts the <svg>...</svg> substring from a cover generation
// response. Validation is deliberately limited to the opening tag; malformed
// markup inside is accepted as-is.
func SVG(text string) (string, bool) {
	loc := svgOpenRe.FindStringIndex(text)
	if loc == nil {
		return "", false
	}
	end := strings.LastIndex(strings.ToLower(text), "</svg>")
	if end < loc[0] {
		return "", false
	}
	svg := text[loc[0] : end+len("</svg>")]
	if !strings.HasPrefix(strings.ToLower(svg), "<svg") {
		return "", false
	}
	return svg, true
}
