package tools

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/c360studio/longform/llm"
	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/workflow"
)

// stubCompleter returns canned responses in order and records requests.
type stubCompleter struct {
	responses []string
	err       error
	requests  []llm.Request
}

func (s *stubCompleter) Complete(_ context.Context, req llm.Request) (*llm.Response, error) {
	s.requests = append(s.requests, req)
	if s.err != nil {
		return nil, s.err
	}
	content := ""
	if len(s.responses) > 0 {
		content = s.responses[0]
		s.responses = s.responses[1:]
	}
	return &llm.Response{Content: content, Model: "stub"}, nil
}

func testBreaker() *resilience.Breaker {
	return resilience.NewBreaker(resilience.DefaultBreakerConfig())
}

func TestParseOutline(t *testing.T) {
	content := "Here you go:\n```json\n" +
		`{"title":"T","synopsis":"S","chapters":[` +
		`{"title":"One","summary":"a"},` +
		`{"number":2,"title":"Two","summary":"b","target_words":1500,"depends_on":[1]}]}` +
		"\n```"

	outline, err := parseOutline(content)
	require.NoError(t, err)
	require.Len(t, outline.Chapters, 2)

	// Missing number and target_words get positional defaults.
	assert.Equal(t, 1, outline.Chapters[0].Number)
	assert.Equal(t, 2000, outline.Chapters[0].TargetWords)
	assert.Equal(t, 2, outline.Chapters[1].Number)
	assert.Equal(t, 1500, outline.Chapters[1].TargetWords)
	assert.Equal(t, []int{1}, outline.Chapters[1].DependsOn)
}

func TestParseOutline_NoJSON(t *testing.T) {
	_, err := parseOutline("I could not produce an outline, sorry.")
	assert.Error(t, err)
}

func TestOutlineTool(t *testing.T) {
	stub := &stubCompleter{responses: []string{
		`{"title":"T","synopsis":"S","chapters":[{"number":1,"title":"One","summary":"a","target_words":1000}]}`,
	}}
	tl := newOutlineTool(stub, testBreaker())

	params := OutlineParams{Premise: &workflow.Premise{Title: "T", Synopsis: "S"}, ChapterCount: 1}
	require.NoError(t, tl.ValidateParams(params))

	out, err := tl.Run(context.Background(), params)
	require.NoError(t, err)
	require.NoError(t, tl.ValidateResult(out))

	result := out.(OutlineResult)
	assert.Equal(t, "T", result.Outline.Title)
	require.Len(t, stub.requests, 1)
	assert.Equal(t, "planning", stub.requests[0].Capability)
	assert.Contains(t, stub.requests[0].Messages[1].Content, "exactly 1 chapters")
}

func TestOutlineTool_MalformedResponseIsTransient(t *testing.T) {
	stub := &stubCompleter{responses: []string{"no json here"}}
	tl := newOutlineTool(stub, testBreaker())

	_, err := tl.Run(context.Background(), OutlineParams{Premise: &workflow.Premise{Synopsis: "S"}})
	require.Error(t, err)
	assert.True(t, resilience.IsTransient(err))
}

func TestOutlineTool_RejectsMissingPremise(t *testing.T) {
	tl := newOutlineTool(&stubCompleter{}, testBreaker())
	assert.Error(t, tl.ValidateParams(OutlineParams{}))
	assert.Error(t, tl.ValidateParams("not params"))
}

func TestChapterTool(t *testing.T) {
	body := "word "
	for len(body) < 400 {
		body += "word "
	}
	stub := &stubCompleter{responses: []string{body}}
	tl := newChapterTool(stub, testBreaker())

	params := ChapterParams{
		Outline: &workflow.Outline{Title: "T", Synopsis: "S"},
		Chapter: &workflow.Chapter{
			Number: 3, Title: "Three", Summary: "the third", TargetWords: 800,
			DependsOn: []int{1},
		},
		DependencySummaries: map[int]string{1: "the beginning"},
	}
	require.NoError(t, tl.ValidateParams(params))

	out, err := tl.Run(context.Background(), params)
	require.NoError(t, err)
	require.NoError(t, tl.ValidateResult(out))

	result := out.(ChapterResult)
	assert.GreaterOrEqual(t, result.WordCount, 50)

	require.Len(t, stub.requests, 1)
	prompt := stub.requests[0].Messages[1].Content
	assert.Contains(t, prompt, "Chapter 1 covered: the beginning")
	assert.Contains(t, prompt, "about 800 words")
	assert.Equal(t, "drafting", stub.requests[0].Capability)
}

func TestChapterTool_ShortBodyRejected(t *testing.T) {
	tl := newChapterTool(&stubCompleter{}, testBreaker())
	err := tl.ValidateResult(ChapterResult{Body: "too short", WordCount: 2})
	assert.Error(t, err)
}

func TestChapterTool_RequiresTargetWords(t *testing.T) {
	tl := newChapterTool(&stubCompleter{}, testBreaker())
	err := tl.ValidateParams(ChapterParams{Chapter: &workflow.Chapter{Number: 1}})
	assert.Error(t, err)
}

func TestChapterTool_PropagatesClientError(t *testing.T) {
	wantErr := resilience.NewFatalError(errors.New("no endpoints"))
	stub := &stubCompleter{err: wantErr}
	tl := newChapterTool(stub, testBreaker())

	_, err := tl.Run(context.Background(), ChapterParams{
		Chapter: &workflow.Chapter{Number: 1, TargetWords: 500},
	})
	require.Error(t, err)
	assert.True(t, resilience.IsFatal(err))
}

func TestAnalyzeChapterTool(t *testing.T) {
	stub := &stubCompleter{responses: []string{`["timeline jumps back a day", "name changes"]`}}
	tl := newAnalyzeChapterTool(stub, testBreaker())

	out, err := tl.Run(context.Background(), AnalyzeChapterParams{
		Synopsis: "S",
		Chapter:  &workflow.Chapter{Number: 2, Title: "Two", Body: "prose"},
	})
	require.NoError(t, err)

	result := out.(AnalyzeChapterResult)
	assert.Equal(t, 2, result.ChapterNumber)
	assert.Len(t, result.Notes, 2)
	assert.Equal(t, "reviewing", stub.requests[0].Capability)
}

func TestAnalyzeChapterTool_CleanChapter(t *testing.T) {
	stub := &stubCompleter{responses: []string{"[]"}}
	tl := newAnalyzeChapterTool(stub, testBreaker())

	out, err := tl.Run(context.Background(), AnalyzeChapterParams{
		Chapter: &workflow.Chapter{Number: 1, Body: "prose"},
	})
	require.NoError(t, err)
	assert.Empty(t, out.(AnalyzeChapterResult).Notes)
}

func TestQualityReviewTool(t *testing.T) {
	stub := &stubCompleter{responses: []string{`{"score": 82, "notes": ["pacing drags in the middle"]}`}}
	tl := newQualityReviewTool(stub, testBreaker())

	params := QualityReviewParams{
		Synopsis: "S",
		Chapters: []*workflow.Chapter{{Number: 1, Title: "One", Body: "prose"}},
	}
	require.NoError(t, tl.ValidateParams(params))

	out, err := tl.Run(context.Background(), params)
	require.NoError(t, err)
	require.NoError(t, tl.ValidateResult(out))

	result := out.(QualityReviewResult)
	assert.Equal(t, 82, result.Score)
	assert.Len(t, result.Notes, 1)
}

func TestQualityReviewTool_ScoreOutOfRange(t *testing.T) {
	tl := newQualityReviewTool(&stubCompleter{}, testBreaker())
	assert.Error(t, tl.ValidateResult(QualityReviewResult{Score: 140}))
	assert.Error(t, tl.ValidateResult(QualityReviewResult{Score: -1}))
	assert.NoError(t, tl.ValidateResult(QualityReviewResult{Score: 0}))
	assert.NoError(t, tl.ValidateResult(QualityReviewResult{Score: 100}))
}

func TestParseNotes(t *testing.T) {
	notes, err := parseNotes("```json\n[\"a\", \"b\"]\n```")
	require.NoError(t, err)
	assert.Equal(t, []string{"a", "b"}, notes)

	_, err = parseNotes("not an array")
	assert.Error(t, err)
}

func TestRegister(t *testing.T) {
	reg := tool.NewRegistry()
	require.NoError(t, Register(reg, &stubCompleter{}))

	names := reg.List()
	assert.Equal(t, []string{
		ToolAnalyzeChapter, ToolChapter, ToolOutline, ToolQualityReview, ToolResearch,
	}, names)
}
