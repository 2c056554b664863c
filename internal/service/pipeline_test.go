package service

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"
	"time"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"

	"github.com/Art-of-X/sparkworks/internal/adapter/knowledge"
	"github.com/Art-of-X/sparkworks/internal/adapter/llm"
	"github.com/Art-of-X/sparkworks/internal/config"
	"github.com/Art-of-X/sparkworks/internal/domain"
	"github.com/Art-of-X/sparkworks/internal/prompt"
	"github.com/Art-of-X/sparkworks/internal/store"
	"github.com/Art-of-X/sparkworks/policy"
	"github.com/Art-of-X/sparkworks/tests/helpers"
)

// scriptedGenerator routes completion requests to a test-provided function.
type scriptedGenerator struct {
	fn func(req llm.Request) (string, error)
}

func (g *scriptedGenerator) Complete(_ context.Context, req llm.Request) (string, error) {
	return g.fn(req)
}

func newTestService(t *testing.T, gen llm.Generator) (*Service, store.Store) {
	t.Helper()
	st := helpers.NewTestSQLiteStore(t)
	engine, err := policy.NewEngine(context.Background(), policy.DefaultPolicy)
	if err != nil {
		t.Fatalf("failed to create policy engine: %v", err)
	}
	cfg := &config.Config{
		RunLimit:           50,
		KnowledgeTopK:      5,
		StreamPollInterval: 10 * time.Millisecond,
	}
	svc := New(st, gen, knowledge.NewClient("", time.Second), engine, prompt.NewBuilder(&config.Taxonomy{}), cfg)
	return svc, st
}

func seedProject(t *testing.T, st store.Store, task string, sparks ...domain.Spark) (*domain.Project, []domain.Spark) {
	t.Helper()
	ctx := context.Background()
	project := &domain.Project{ProjectID: "p1", UserID: "u1", Task: task, CreatedAt: time.Now()}
	if err := st.CreateProject(ctx, project); err != nil {
		t.Fatalf("CreateProject failed: %v", err)
	}
	for i := range sparks {
		sparks[i].ProjectID = "p1"
		sparks[i].CreatedAt = time.Now().Add(time.Duration(i) * time.Millisecond)
		if err := st.CreateSpark(ctx, &sparks[i]); err != nil {
			t.Fatalf("CreateSpark failed: %v", err)
		}
	}
	return project, sparks
}

func seedRun(t *testing.T, st store.Store, runID string) *domain.Run {
	t.Helper()
	run := &domain.Run{RunID: runID, ProjectID: "p1", UserID: "u1", Status: domain.RunStatusRunning, CreatedAt: time.Now()}
	if err := st.CreateRun(context.Background(), run); err != nil {
		t.Fatalf("CreateRun failed: %v", err)
	}
	return run
}

func eventTypes(t *testing.T, st store.Store, runID string) []domain.EventType {
	t.Helper()
	events, err := st.TailEvents(context.Background(), runID, 0, 0)
	if err != nil {
		t.Fatalf("TailEvents failed: %v", err)
	}
	types := make([]domain.EventType, 0, len(events))
	for i, evt := range events {
		assert.Equal(t, int64(i+1), evt.Seq, "event ids must be gapless")
		types = append(types, evt.Type)
	}
	return types
}

// isPhase tells the scripted generator which call it is handling.
func isEvaluation(req llm.Request) bool { return strings.Contains(req.User, "Pick the top 3") }
func isTitle(req llm.Request) bool      { return strings.Contains(req.User, "title of at most 8 words") }
func isCover(req llm.Request) bool      { return strings.Contains(req.User, "SVG cover") }

// TestPipelineVotingScenario runs the two-spark scenario end to end: A
// proposes p1 and p2, B proposes p3; A votes for p3 and p1, B for p1 and p2.
// The tally must come out p1=2, p2=1, p3=1 and produce three outputs with p1
// attributed to A.
func TestPipelineVotingScenario(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		fromA := strings.Contains(req.System, "SYS-A")
		switch {
		case isEvaluation(req):
			if fromA {
				return "Top 3: 3, 1\nReasoning: contrast wins.", nil
			}
			return "Top 3: 1, 2\nReasoning: simplicity wins.", nil
		case isTitle(req):
			return "A Fine Title", nil
		case isCover(req):
			return `<svg viewBox="0 0 10 10"><polygon points="0,0 10,0 5,10"/></svg>`, nil
		default:
			if fromA {
				return "1. p1\n2. p2", nil
			}
			return "1. p3", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	ctx := context.Background()
	got, err := st.GetRun(ctx, "r1")
	assert.NoError(t, err)
	assert.Equal(t, domain.RunStatusFinished, got.Status)
	assert.NotNil(t, got.FinishedAt)

	outputs, err := st.ListRunOutputs(ctx, "r1")
	assert.NoError(t, err)
	assert.Len(t, outputs, 3)
	assert.Equal(t, "p1", outputs[0].Text)
	assert.Equal(t, "spk_a", outputs[0].SparkID)
	assert.Equal(t, "p2", outputs[1].Text)
	assert.Equal(t, "p3", outputs[2].Text)
	assert.Equal(t, "A Fine Title", outputs[0].Title)
	assert.True(t, strings.HasPrefix(outputs[0].CoverSVG, "<svg"))

	types := eventTypes(t, st, "r1")
	assert.Equal(t, domain.EventTypeRunStarted, types[0])
	assert.Equal(t, domain.EventTypeRunFinished, types[len(types)-1])
	assert.Contains(t, types, domain.EventTypePhaseEvaluation)
	assert.Contains(t, types, domain.EventTypeVotingResult)
	assert.NotContains(t, types, domain.EventTypePhaseSingleAgent)
}

// TestPipelineSingleSparkShortcut verifies that one attached spark skips
// evaluation and voting entirely.
func TestPipelineSingleSparkShortcut(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		switch {
		case isEvaluation(req):
			t.Error("evaluation must not run for a single spark")
			return "", errors.New("unexpected")
		case isTitle(req):
			return "Solo Title", nil
		case isCover(req):
			return "no svg today", nil
		default:
			return "1. idea one\n2. idea two", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a poster",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	ctx := context.Background()
	got, _ := st.GetRun(ctx, "r1")
	assert.Equal(t, domain.RunStatusFinished, got.Status)

	outputs, _ := st.ListRunOutputs(ctx, "r1")
	assert.Len(t, outputs, 2)
	// Cover response had no svg markup; output stays coverless.
	assert.Equal(t, "", outputs[0].CoverSVG)

	types := eventTypes(t, st, "r1")
	assert.Contains(t, types, domain.EventTypePhaseSingleAgent)
	assert.Contains(t, types, domain.EventTypeSingleAgentSelected)
	assert.NotContains(t, types, domain.EventTypePhaseEvaluation)
	assert.NotContains(t, types, domain.EventTypePhaseVoting)
}

// TestPipelinePreconditionFailure verifies a project with no sparks ends in
// status=error with the fixed summary and zero events.
func TestPipelinePreconditionFailure(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		t.Error("generator must not be called")
		return "", errors.New("unexpected")
	}}
	svc, st := newTestService(t, gen)
	project, _ := seedProject(t, st, "Design a logo")
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, nil)

	ctx := context.Background()
	got, _ := st.GetRun(ctx, "r1")
	assert.Equal(t, domain.RunStatusError, got.Status)
	assert.Equal(t, "No task or no sparks", got.Summary)

	events, _ := st.TailEvents(ctx, "r1", 0, 0)
	assert.Empty(t, events)
	outputs, _ := st.ListRunOutputs(ctx, "r1")
	assert.Empty(t, outputs)
}

// TestPipelineOutOfRangeVotesDropped verifies index references outside the
// flattened list are dropped without error.
func TestPipelineOutOfRangeVotesDropped(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		switch {
		case isEvaluation(req):
			return "Top 3: 9, 1, 0\nReasoning: bold picks.", nil
		case isTitle(req):
			return "T", nil
		case isCover(req):
			return "", errors.New("no cover")
		default:
			if strings.Contains(req.System, "SYS-A") {
				return "1. p1", nil
			}
			return "1. p2", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	ctx := context.Background()
	got, _ := st.GetRun(ctx, "r1")
	assert.Equal(t, domain.RunStatusFinished, got.Status)

	// Only index 1 was in range; both proposals still get selected (fewer
	// than 3 exist), p1 first with two deduplicated votes.
	outputs, _ := st.ListRunOutputs(ctx, "r1")
	assert.Len(t, outputs, 2)
	assert.Equal(t, "p1", outputs[0].Text)
}

// TestPipelinePerSparkFailureContinues verifies one spark's ideation failure
// excludes it without aborting the run.
func TestPipelinePerSparkFailureContinues(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		fromA := strings.Contains(req.System, "SYS-A")
		switch {
		case isEvaluation(req):
			return "Top 3: 1\nReasoning: only one left.", nil
		case isTitle(req):
			return "T", nil
		case isCover(req):
			return "", errors.New("no cover")
		default:
			if fromA {
				return "", errors.New("generation unavailable")
			}
			return "1. p-from-b", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	ctx := context.Background()
	got, _ := st.GetRun(ctx, "r1")
	assert.Equal(t, domain.RunStatusFinished, got.Status)

	outputs, _ := st.ListRunOutputs(ctx, "r1")
	assert.Len(t, outputs, 1)
	assert.Equal(t, "spk_b", outputs[0].SparkID)

	types := eventTypes(t, st, "r1")
	assert.Contains(t, types, domain.EventTypeAgentError)
	assert.Equal(t, domain.EventTypeRunFinished, types[len(types)-1])
}

// TestPipelineCancelBetweenPhases cancels during the last ideation call and
// verifies the run halts before evaluation with zero outputs and keeps
// status=cancelled.
func TestPipelineCancelBetweenPhases(t *testing.T) {
	var svc *Service
	var st store.Store
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		if isEvaluation(req) {
			t.Error("evaluation must not run after cancellation")
			return "", errors.New("unexpected")
		}
		if strings.Contains(req.System, "SYS-B") {
			// Cancel lands while this call is in flight; the step still
			// completes before the next checkpoint halts the run.
			if err := st.FinishRun(context.Background(), "r1", domain.RunStatusCancelled, "Run cancelled by user", time.Now()); err != nil {
				t.Errorf("FinishRun failed: %v", err)
			}
			return "1. p-from-b", nil
		}
		return "1. p-from-a", nil
	}}
	svc, st = newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	ctx := context.Background()
	got, _ := st.GetRun(ctx, "r1")
	assert.Equal(t, domain.RunStatusCancelled, got.Status)
	assert.Equal(t, "Run cancelled by user", got.Summary)

	outputs, _ := st.ListRunOutputs(ctx, "r1")
	assert.Empty(t, outputs)

	types := eventTypes(t, st, "r1")
	assert.NotContains(t, types, domain.EventTypePhaseEvaluation)
	assert.NotContains(t, types, domain.EventTypeRunFinished)
}

// TestPipelineUnparseableVerdictTolerated verifies an evaluator whose
// verdict cannot be parsed is recorded and skipped.
func TestPipelineUnparseableVerdictTolerated(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		switch {
		case isEvaluation(req):
			if strings.Contains(req.System, "SYS-A") {
				return "They are all wonderful.", nil
			}
			return "Top 3: 2, 1\nReasoning: order matters.", nil
		case isTitle(req):
			return "T", nil
		case isCover(req):
			return "", errors.New("no cover")
		default:
			if strings.Contains(req.System, "SYS-A") {
				return "1. p1", nil
			}
			return "1. p2", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	got, _ := st.GetRun(context.Background(), "r1")
	assert.Equal(t, domain.RunStatusFinished, got.Status)

	types := eventTypes(t, st, "r1")
	assert.Contains(t, types, domain.EventTypeAgentEvaluationError)
	assert.Contains(t, types, domain.EventTypeAgentEvaluated)
}

// TestPipelineVoteCountsSeparateIdenticalTexts verifies the voting:result
// payload keeps identical proposal texts from different sparks apart.
func TestPipelineVoteCountsSeparateIdenticalTexts(t *testing.T) {
	gen := &scriptedGenerator{fn: func(req llm.Request) (string, error) {
		switch {
		case isEvaluation(req):
			if strings.Contains(req.System, "SYS-A") {
				return "Top 3: 1, 2\nReasoning: both stand.", nil
			}
			return "Top 3: 1\nReasoning: the first one.", nil
		case isTitle(req):
			return "T", nil
		case isCover(req):
			return "", errors.New("no cover")
		default:
			return "1. same idea", nil
		}
	}}
	svc, st := newTestService(t, gen)
	project, sparks := seedProject(t, st, "Design a logo",
		domain.Spark{SparkID: "spk_a", Name: "A", SystemPrompt: "SYS-A"},
		domain.Spark{SparkID: "spk_b", Name: "B", SystemPrompt: "SYS-B"},
	)
	run := seedRun(t, st, "r1")

	svc.runPipeline(run.RunID, project, sparks)

	events, err := st.TailEvents(context.Background(), "r1", 0, 0)
	assert.NoError(t, err)
	var result *domain.VotingResultPayload
	for _, evt := range events {
		if evt.Type == domain.EventTypeVotingResult {
			var p domain.VotingResultPayload
			assert.NoError(t, json.Unmarshal(evt.Payload, &p))
			result = &p
		}
	}
	if result == nil {
		t.Fatal("no voting:result event recorded")
	}
	assert.Len(t, result.VoteCounts, 2)
	assert.Equal(t, 2, result.VoteCounts["A: same idea"])
	assert.Equal(t, 1, result.VoteCounts["B: same idea"])
}

func TestTruncateKeepsRuneBoundary(t *testing.T) {
	assert.Equal(t, "abc", truncate("abc", 10))

	s := strings.Repeat("é", 30)
	got := truncate(s, 31)
	assert.True(t, utf8.ValidString(got))
	assert.Equal(t, strings.Repeat("é", 15), got)
}
