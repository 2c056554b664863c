package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"sort"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Art-of-X/sparkworks/internal/adapter/llm"
	"github.com/Art-of-X/sparkworks/internal/domain"
	"github.com/Art-of-X/sparkworks/internal/parse"
)

// errCancelled signals that a cancellation was observed at a checkpoint. The
// cancel endpoint already set the terminal status; the pipeline just stops.
var errCancelled = errors.New("run cancelled")

const (
	ideationInstruction = "Propose 2 to 3 distinct ideas for this task. Number them 1., 2., 3. and keep each proposal self-contained."

	evaluationInstruction = "Pick the top 3 proposals by number. Answer with a line 'Top 3: n, n, n' followed by a line 'Reasoning: ...' explaining your picks."

	summaryLimit = 200
)

// runPipeline executes the phased pipeline for a run. It is always invoked
// as a detached goroutine; failures surface only through Run.status and the
// event log.
func (s *Service) runPipeline(runID string, project *domain.Project, sparks []domain.Spark) {
	ctx := context.Background()

	defer func() {
		if r := recover(); r != nil {
			log.Printf("ERROR: run %s panicked: %v", runID, r)
			s.failRun(ctx, runID, fmt.Sprintf("%v", r))
		}
	}()

	err := s.executePhases(ctx, runID, project, sparks)
	switch {
	case err == nil:
	case errors.Is(err, errCancelled):
		log.Printf("INFO: run %s halted at cancellation checkpoint", runID)
	default:
		log.Printf("ERROR: run %s failed: %v", runID, err)
		s.failRun(ctx, runID, err.Error())
	}
}

func (s *Service) executePhases(ctx context.Context, runID string, project *domain.Project, sparks []domain.Spark) error {
	// Precondition: no phase events are appended on a validation failure.
	if project.Task == "" || len(sparks) == 0 {
		s.finishRun(ctx, runID, domain.RunStatusError, "No task or no sparks")
		return nil
	}

	s.appendEvent(ctx, runID, domain.EventTypeRunStarted, domain.RunStartedPayload{
		ProjectID: project.ProjectID,
		Task:      project.Task,
	})

	// Phase 1 - ideation
	s.appendEvent(ctx, runID, domain.EventTypePhaseIdeation, domain.PhasePayload{
		Message: "Sparks are generating proposals",
	})
	proposals, err := s.ideationPhase(ctx, runID, project, sparks)
	if err != nil {
		return err
	}

	var selected []domain.Proposal
	if len(sparks) == 1 {
		// Single-spark shortcut: nothing to evaluate or vote on.
		s.appendEvent(ctx, runID, domain.EventTypePhaseSingleAgent, domain.PhasePayload{
			Message: "Single spark attached, skipping evaluation",
		})
		selected = proposals
		if len(selected) > parse.MaxProposals {
			selected = selected[:parse.MaxProposals]
		}
		s.appendEvent(ctx, runID, domain.EventTypeSingleAgentSelected, domain.SelectedPayload{
			Message:   fmt.Sprintf("Selected %d proposals from %s", len(selected), sparks[0].Name),
			Proposals: proposalTexts(selected),
		})
	} else {
		if s.cancelled(ctx, runID) {
			return errCancelled
		}
		selected, err = s.evaluationPhase(ctx, runID, project, sparks, proposals)
		if err != nil {
			return err
		}
	}

	if s.cancelled(ctx, runID) {
		return errCancelled
	}

	// Phase 4 - output materialization
	created, err := s.outputPhase(ctx, runID, project, sparks, selected)
	if err != nil {
		return err
	}

	s.appendEvent(ctx, runID, domain.EventTypeOutputsSaved, domain.OutputsSavedPayload{Count: created})
	s.appendEvent(ctx, runID, domain.EventTypeRunFinished, struct{}{})
	s.finishRun(ctx, runID, domain.RunStatusFinished, fmt.Sprintf("Created %d outputs", created))
	return nil
}

// ideationPhase asks every spark for proposals, one spark at a time. Sparks
// are never fanned out; sequential calls bound cost and keep the event order
// deterministic. One spark's failure never aborts the run.
func (s *Service) ideationPhase(ctx context.Context, runID string, project *domain.Project, sparks []domain.Spark) ([]domain.Proposal, error) {
	items, err := s.store.ListContextItems(ctx, project.ProjectID)
	if err != nil {
		log.Printf("WARN: failed to list context items for project %s: %v", project.ProjectID, err)
		items = nil
	}

	var proposals []domain.Proposal
	for _, spark := range sparks {
		if s.cancelled(ctx, runID) {
			return nil, errCancelled
		}

		s.appendEvent(ctx, runID, domain.EventTypeAgentStarted, domain.AgentPayload{
			SparkID: spark.SparkID,
			Name:    spark.Name,
		})

		chunks, err := s.retriever.Search(ctx, spark.Name, project.Task, s.config.KnowledgeTopK)
		if err != nil {
			log.Printf("WARN: knowledge retrieval failed for spark %s: %v", spark.SparkID, err)
			chunks = nil
		}

		user := s.prompts.User(project.Task, ideationInstruction)
		if block := contextBlock(items); block != "" {
			user += "\n\n" + block
		}

		text, err := s.generator.Complete(ctx, llm.Request{
			System: s.prompts.System(spark, chunks),
			User:   user,
		})
		if err != nil {
			s.appendEvent(ctx, runID, domain.EventTypeAgentError, domain.AgentErrorPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
				Error:   err.Error(),
			})
			s.appendEvent(ctx, runID, domain.EventTypeAgentFinished, domain.AgentPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
			})
			continue
		}

		result := parse.Proposals(text)
		if result.Mode == parse.ModeFailed {
			s.appendEvent(ctx, runID, domain.EventTypeAgentError, domain.AgentErrorPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
				Error:   "spark returned no usable proposals",
			})
			s.appendEvent(ctx, runID, domain.EventTypeAgentFinished, domain.AgentPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
			})
			continue
		}
		for _, p := range result.Proposals {
			proposals = append(proposals, domain.Proposal{
				SparkID:   spark.SparkID,
				SparkName: spark.Name,
				Text:      p,
			})
		}

		s.appendEvent(ctx, runID, domain.EventTypeAgentResult, domain.AgentResultPayload{
			SparkID: spark.SparkID,
			Name:    spark.Name,
			Text:    text,
		})
		s.appendEvent(ctx, runID, domain.EventTypeAgentFinished, domain.AgentPayload{
			SparkID: spark.SparkID,
			Name:    spark.Name,
		})
	}
	return proposals, nil
}

// tallyEntry is one unique proposal in the vote tally, disambiguated by
// creator and text prefix; order is its position in the ideation output and
// breaks ties.
type tallyEntry struct {
	proposal domain.Proposal
	order    int
	votes    int
}

// evaluationPhase has every spark judge the flattened 1-indexed proposal
// list, then aggregates the votes. Returns the selected proposals.
func (s *Service) evaluationPhase(ctx context.Context, runID string, project *domain.Project, sparks []domain.Spark, proposals []domain.Proposal) ([]domain.Proposal, error) {
	s.appendEvent(ctx, runID, domain.EventTypePhaseEvaluation, domain.PhasePayload{
		Message: "Sparks are evaluating all proposals",
	})

	entries := make(map[string]*tallyEntry, len(proposals))
	var ordered []*tallyEntry
	for i, p := range proposals {
		key := voteKey(p)
		if _, ok := entries[key]; !ok {
			e := &tallyEntry{proposal: p, order: i}
			entries[key] = e
			ordered = append(ordered, e)
		}
	}

	listing := proposalListing(proposals)
	for _, spark := range sparks {
		if s.cancelled(ctx, runID) {
			return nil, errCancelled
		}

		text, err := s.generator.Complete(ctx, llm.Request{
			System: s.prompts.System(spark, nil),
			User:   s.prompts.User(project.Task, listing+"\n\n"+evaluationInstruction),
		})
		if err != nil {
			s.appendEvent(ctx, runID, domain.EventTypeAgentEvaluationError, domain.AgentErrorPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
				Error:   err.Error(),
			})
			continue
		}

		verdict := parse.Verdict(text)
		if verdict.Mode == parse.ModeFailed {
			s.appendEvent(ctx, runID, domain.EventTypeAgentEvaluationError, domain.AgentErrorPayload{
				SparkID: spark.SparkID,
				Name:    spark.Name,
				Error:   "unparseable verdict",
			})
			continue
		}

		// Out-of-range picks are dropped silently; one vote per unique
		// proposal per evaluator.
		seen := make(map[string]bool, len(verdict.Picks))
		var votes []string
		for _, pick := range verdict.Picks {
			if pick < 1 || pick > len(proposals) {
				continue
			}
			p := proposals[pick-1]
			key := voteKey(p)
			if seen[key] {
				continue
			}
			seen[key] = true
			entries[key].votes++
			votes = append(votes, p.Text)
		}

		s.appendEvent(ctx, runID, domain.EventTypeAgentEvaluated, domain.AgentEvaluatedPayload{
			SparkID:   spark.SparkID,
			Name:      spark.Name,
			Votes:     votes,
			Reasoning: verdict.Reasoning,
		})
	}

	if s.cancelled(ctx, runID) {
		return nil, errCancelled
	}

	// Phase 3 - voting aggregation
	s.appendEvent(ctx, runID, domain.EventTypePhaseVoting, domain.PhasePayload{
		Message: "Tallying votes",
	})

	sort.SliceStable(ordered, func(i, j int) bool {
		return ordered[i].votes > ordered[j].votes
	})

	// Prefix the creator so identical texts from different sparks, which the
	// tally keeps as separate buckets, stay separate in the payload too.
	voteCounts := make(map[string]int, len(ordered))
	for _, e := range ordered {
		voteCounts[e.proposal.SparkName+": "+e.proposal.Text] = e.votes
	}

	top := ordered
	if len(top) > parse.MaxProposals {
		top = top[:parse.MaxProposals]
	}
	selected := make([]domain.Proposal, 0, len(top))
	for _, e := range top {
		selected = append(selected, e.proposal)
	}

	s.appendEvent(ctx, runID, domain.EventTypeVotingResult, domain.VotingResultPayload{
		TopProposals: proposalTexts(selected),
		VoteCounts:   voteCounts,
	})
	return selected, nil
}

// outputPhase materializes each selected proposal: a title from the original
// creating spark, a persisted Output row and a best-effort SVG cover. One
// proposal's failure never aborts the phase.
func (s *Service) outputPhase(ctx context.Context, runID string, project *domain.Project, sparks []domain.Spark, selected []domain.Proposal) (int, error) {
	s.appendEvent(ctx, runID, domain.EventTypePhaseOutputs, domain.PhasePayload{
		Message: "Materializing selected proposals",
	})

	sparkByID := make(map[string]domain.Spark, len(sparks))
	for _, sp := range sparks {
		sparkByID[sp.SparkID] = sp
	}

	created := 0
	for _, sel := range selected {
		if s.cancelled(ctx, runID) {
			return created, errCancelled
		}
		creator := sparkByID[sel.SparkID]

		title := s.generateTitle(ctx, runID, creator, sel)

		output := &domain.Output{
			OutputID:  "out_" + uuid.New().String()[:8],
			ProjectID: project.ProjectID,
			SparkID:   sel.SparkID,
			RunID:     runID,
			Title:     title,
			Text:      sel.Text,
			CreatedAt: time.Now().UTC(),
		}
		if err := s.store.CreateOutput(ctx, output); err != nil {
			s.appendEvent(ctx, runID, domain.EventTypeOutputsError, domain.OutputsErrorPayload{
				Error: fmt.Sprintf("failed to persist output: %v", err),
			})
			continue
		}

		s.generateCover(ctx, creator, output)

		s.appendEvent(ctx, runID, domain.EventTypeOutputCreated, domain.OutputCreatedPayload{
			OutputID:  output.OutputID,
			Text:      output.Text,
			Title:     output.Title,
			SparkID:   sel.SparkID,
			SparkName: sel.SparkName,
		})
		created++
	}
	return created, nil
}

// generateTitle asks the creating spark for a title via a constrained
// single-field call. A failed call falls back to a text-derived default and
// is surfaced as an outputs:error event.
func (s *Service) generateTitle(ctx context.Context, runID string, creator domain.Spark, sel domain.Proposal) string {
	raw, err := s.generator.Complete(ctx, llm.Request{
		System:    s.prompts.System(creator, nil),
		User:      fmt.Sprintf("Give this proposal a title of at most 8 words. Answer with the title only.\n\nProposal: %s", sel.Text),
		MaxTokens: 32,
	})
	if err != nil {
		s.appendEvent(ctx, runID, domain.EventTypeOutputsError, domain.OutputsErrorPayload{
			Error: fmt.Sprintf("title generation failed: %v", err),
		})
		return parse.DeriveTitle(sel.Text)
	}
	return parse.Title(raw, sel.Text).Title
}

// generateCover requests an abstract single-color low-poly SVG cover. Purely
// best-effort: a failed or unusable cover is omitted without an event.
func (s *Service) generateCover(ctx context.Context, creator domain.Spark, output *domain.Output) {
	raw, err := s.generator.Complete(ctx, llm.Request{
		System: s.prompts.System(creator, nil),
		User:   fmt.Sprintf("Create an abstract single-color low-poly SVG cover for this work. Keep the markup under 2000 characters. Answer with the <svg> markup only.\n\nTitle: %s\nProposal: %s", output.Title, output.Text),
	})
	if err != nil {
		log.Printf("WARN: cover generation failed for output %s: %v", output.OutputID, err)
		return
	}
	svg, ok := parse.SVG(raw)
	if !ok {
		log.Printf("WARN: cover response for output %s contained no svg markup", output.OutputID)
		return
	}
	if err := s.store.SetOutputCover(ctx, output.OutputID, svg); err != nil {
		log.Printf("WARN: failed to store cover for output %s: %v", output.OutputID, err)
	}
	output.CoverSVG = svg
}

// cancelled re-reads the run row; any status other than running, or a run
// that disappeared, halts further work. An in-flight generation call is
// never interrupted, so one already-started step can still complete and emit
// its events before this checkpoint is reached.
func (s *Service) cancelled(ctx context.Context, runID string) bool {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to re-read run %s at checkpoint: %v", runID, err)
		return false
	}
	if run == nil {
		return true
	}
	return run.Status != domain.RunStatusRunning
}

// finishRun transitions the run to a terminal status unless a concurrent
// cancel already made it terminal.
func (s *Service) finishRun(ctx context.Context, runID string, status domain.RunStatus, summary string) {
	run, err := s.store.GetRun(ctx, runID)
	if err != nil {
		log.Printf("ERROR: failed to read run %s before finishing: %v", runID, err)
		return
	}
	if run == nil || run.Status.IsTerminal() {
		return
	}
	if err := s.store.FinishRun(ctx, runID, status, summary, time.Now().UTC()); err != nil {
		log.Printf("ERROR: failed to finish run %s: %v", runID, err)
	}
}

func (s *Service) failRun(ctx context.Context, runID, msg string) {
	s.finishRun(ctx, runID, domain.RunStatusError, truncate(msg, summaryLimit))
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	// Back up to a rune boundary so the cut never splits a multi-byte rune.
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}

// voteKey disambiguates proposals by creator and text prefix so identical
// re-proposals share one tally bucket.
func voteKey(p domain.Proposal) string {
	prefix := p.Text
	if len(prefix) > 50 {
		prefix = prefix[:50]
	}
	return p.SparkID + "|" + strings.ToLower(prefix)
}

func proposalTexts(proposals []domain.Proposal) []string {
	texts := make([]string, 0, len(proposals))
	for _, p := range proposals {
		texts = append(texts, p.Text)
	}
	return texts
}

// proposalListing renders the flattened 1-indexed proposal list shown to
// every evaluator.
func proposalListing(proposals []domain.Proposal) string {
	var sb strings.Builder
	sb.WriteString("All proposals:\n")
	for i, p := range proposals {
		sb.WriteString(fmt.Sprintf("%d. [%s] %s\n", i+1, p.SparkName, p.Text))
	}
	return sb.String()
}

func contextBlock(items []domain.ContextItem) string {
	if len(items) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("Context provided by the project owner:\n")
	for _, it := range items {
		sb.WriteString("- ")
		sb.WriteString(strings.TrimSpace(it.Text))
		sb.WriteString("\n")
	}
	return strings.TrimRight(sb.String(), "\n")
}
