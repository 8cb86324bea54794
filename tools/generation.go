package tools

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/c360studio/longform/llm"
	"github.com/c360studio/longform/model"
	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/workflow"
)

// Completer is the slice of llm.Client the generation tools need.
// Narrowed to an interface so tests can stub model calls.
type Completer interface {
	Complete(ctx context.Context, req llm.Request) (*llm.Response, error)
}

// newOutlineTool builds the outline tool. The model is asked for a JSON
// structure; syntactically broken or structurally unusable output is a
// transient failure so the invocation layer retries it.
func newOutlineTool(client Completer, breaker *resilience.Breaker) *tool.Tool {
	return &tool.Tool{
		Name:        ToolOutline,
		Description: "Produce a chaptered book outline from a premise",
		Class:       tool.ClassAnalysis,
		Breaker:     breaker,
		ValidateParams: func(params any) error {
			p, ok := params.(OutlineParams)
			if !ok {
				return fmt.Errorf("expected OutlineParams, got %T", params)
			}
			if p.Premise == nil || p.Premise.Synopsis == "" {
				return fmt.Errorf("premise with synopsis is required")
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			p := params.(OutlineParams)

			countHint := "Choose a chapter count that fits the material."
			if p.ChapterCount > 0 {
				countHint = fmt.Sprintf("Produce exactly %d chapters.", p.ChapterCount)
			}

			resp, err := client.Complete(ctx, llm.Request{
				Capability: model.CapabilityPlanning.String(),
				Messages: []llm.Message{
					{Role: "system", Content: outlineSystemPrompt},
					{Role: "user", Content: fmt.Sprintf(
						"Title: %s\nSynopsis: %s\nAudience: %s\nThemes: %s\n%s\n\n%s",
						p.Premise.Title,
						p.Premise.Synopsis,
						p.Premise.Audience,
						strings.Join(p.Premise.Themes, ", "),
						p.Premise.ResearchCtx,
						countHint,
					)},
				},
			})
			if err != nil {
				return nil, err
			}

			outline, err := parseOutline(resp.Content)
			if err != nil {
				return nil, resilience.NewTransientError(err)
			}
			return OutlineResult{Outline: outline, Raw: resp.Content}, nil
		},
		ValidateResult: func(result any) error {
			r, ok := result.(OutlineResult)
			if !ok {
				return fmt.Errorf("expected OutlineResult, got %T", result)
			}
			if r.Outline == nil || len(r.Outline.Chapters) == 0 {
				return fmt.Errorf("outline has no chapters")
			}
			return nil
		},
	}
}

const outlineSystemPrompt = `You are a book architect. Respond with a single JSON object:
{"title": string, "synopsis": string, "chapters": [{"number": int, "title": string, "summary": string, "target_words": int, "depends_on": [int]}]}
Chapter numbers start at 1 and increase. A chapter's depends_on may list only strictly smaller numbers. No prose outside the JSON.`

// parseOutline extracts and validates the outline JSON from a model
// response.
func parseOutline(content string) (*workflow.Outline, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in outline response")
	}

	var outline workflow.Outline
	if err := json.Unmarshal([]byte(raw), &outline); err != nil {
		return nil, fmt.Errorf("parse outline JSON: %w", err)
	}

	for i := range outline.Chapters {
		if outline.Chapters[i].Number == 0 {
			outline.Chapters[i].Number = i + 1
		}
		if outline.Chapters[i].TargetWords <= 0 {
			outline.Chapters[i].TargetWords = 2000
		}
	}
	return &outline, nil
}

// newChapterTool builds the chapter drafting tool.
func newChapterTool(client Completer, breaker *resilience.Breaker) *tool.Tool {
	return &tool.Tool{
		Name:        ToolChapter,
		Description: "Draft one chapter's prose",
		Class:       tool.ClassGeneration,
		Breaker:     breaker,
		ValidateParams: func(params any) error {
			p, ok := params.(ChapterParams)
			if !ok {
				return fmt.Errorf("expected ChapterParams, got %T", params)
			}
			if p.Chapter == nil {
				return fmt.Errorf("chapter is required")
			}
			if p.Chapter.TargetWords <= 0 {
				return fmt.Errorf("chapter %d has no target length", p.Chapter.Number)
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			p := params.(ChapterParams)

			var brief strings.Builder
			if p.Outline != nil {
				fmt.Fprintf(&brief, "Book: %s\nSynopsis: %s\n", p.Outline.Title, p.Outline.Synopsis)
			}
			for _, dep := range p.Chapter.DependsOn {
				if summary, ok := p.DependencySummaries[dep]; ok {
					fmt.Fprintf(&brief, "Chapter %d covered: %s\n", dep, summary)
				}
			}

			resp, err := client.Complete(ctx, llm.Request{
				Capability: model.CapabilityDrafting.String(),
				Messages: []llm.Message{
					{Role: "system", Content: "You are a long-form author. Write polished prose for the requested chapter only. No headings, no meta commentary."},
					{Role: "user", Content: fmt.Sprintf(
						"%s\nWrite chapter %d, %q.\nChapter brief: %s\nTarget length: about %d words.",
						brief.String(), p.Chapter.Number, p.Chapter.Title, p.Chapter.Summary, p.Chapter.TargetWords)},
				},
			})
			if err != nil {
				return nil, err
			}

			body := strings.TrimSpace(resp.Content)
			return ChapterResult{Body: body, WordCount: len(strings.Fields(body))}, nil
		},
		ValidateResult: func(result any) error {
			r, ok := result.(ChapterResult)
			if !ok {
				return fmt.Errorf("expected ChapterResult, got %T", result)
			}
			if r.WordCount < 50 {
				return fmt.Errorf("chapter body implausibly short (%d words)", r.WordCount)
			}
			return nil
		},
	}
}

// newAnalyzeChapterTool builds the per-chapter consistency tool.
func newAnalyzeChapterTool(client Completer, breaker *resilience.Breaker) *tool.Tool {
	return &tool.Tool{
		Name:        ToolAnalyzeChapter,
		Description: "Analyze one chapter for continuity problems",
		Class:       tool.ClassAnalysis,
		Breaker:     breaker,
		ValidateParams: func(params any) error {
			p, ok := params.(AnalyzeChapterParams)
			if !ok {
				return fmt.Errorf("expected AnalyzeChapterParams, got %T", params)
			}
			if p.Chapter == nil || p.Chapter.Body == "" {
				return fmt.Errorf("chapter with body is required")
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			p := params.(AnalyzeChapterParams)

			resp, err := client.Complete(ctx, llm.Request{
				Capability: model.CapabilityReviewing.String(),
				Messages: []llm.Message{
					{Role: "system", Content: `You review manuscripts for continuity. Respond with a JSON array of short strings, one per issue found. Respond with [] if the chapter is consistent.`},
					{Role: "user", Content: fmt.Sprintf(
						"Book synopsis: %s\n\nChapter %d, %q:\n%s",
						p.Synopsis, p.Chapter.Number, p.Chapter.Title, p.Chapter.Body)},
				},
			})
			if err != nil {
				return nil, err
			}

			notes, err := parseNotes(resp.Content)
			if err != nil {
				return nil, resilience.NewTransientError(err)
			}
			return AnalyzeChapterResult{ChapterNumber: p.Chapter.Number, Notes: notes}, nil
		},
	}
}

// newQualityReviewTool builds the holistic quality tool.
func newQualityReviewTool(client Completer, breaker *resilience.Breaker) *tool.Tool {
	return &tool.Tool{
		Name:        ToolQualityReview,
		Description: "Score the assembled draft and list quality findings",
		Class:       tool.ClassAnalysis,
		Breaker:     breaker,
		ValidateParams: func(params any) error {
			p, ok := params.(QualityReviewParams)
			if !ok {
				return fmt.Errorf("expected QualityReviewParams, got %T", params)
			}
			if len(p.Chapters) == 0 {
				return fmt.Errorf("at least one chapter is required")
			}
			return nil
		},
		Run: func(ctx context.Context, params any) (any, error) {
			p := params.(QualityReviewParams)

			var draft strings.Builder
			for _, ch := range p.Chapters {
				fmt.Fprintf(&draft, "## Chapter %d: %s\n\n%s\n\n", ch.Number, ch.Title, ch.Body)
			}

			resp, err := client.Complete(ctx, llm.Request{
				Capability: model.CapabilityReviewing.String(),
				Messages: []llm.Message{
					{Role: "system", Content: `You are a quality editor. Respond with a JSON object {"score": int 0-100, "notes": [string]}.`},
					{Role: "user", Content: fmt.Sprintf("Synopsis: %s\n\nDraft:\n%s", p.Synopsis, draft.String())},
				},
			})
			if err != nil {
				return nil, err
			}

			raw := llm.ExtractJSON(resp.Content)
			if raw == "" {
				return nil, resilience.NewTransientError(fmt.Errorf("no JSON object in quality review response"))
			}

			var verdict struct {
				Score int      `json:"score"`
				Notes []string `json:"notes"`
			}
			if err := json.Unmarshal([]byte(raw), &verdict); err != nil {
				return nil, resilience.NewTransientError(fmt.Errorf("parse quality verdict: %w", err))
			}

			return QualityReviewResult{Score: verdict.Score, Notes: verdict.Notes}, nil
		},
		ValidateResult: func(result any) error {
			r, ok := result.(QualityReviewResult)
			if !ok {
				return fmt.Errorf("expected QualityReviewResult, got %T", result)
			}
			if r.Score < 0 || r.Score > 100 {
				return fmt.Errorf("quality score %d outside 0-100", r.Score)
			}
			return nil
		},
	}
}

// parseNotes decodes a JSON string array from a model response.
func parseNotes(content string) ([]string, error) {
	raw := llm.ExtractJSONArray(content)
	if raw == "" {
		// An empty response with no array means nothing found.
		if strings.TrimSpace(content) == "" {
			return nil, nil
		}
		return nil, fmt.Errorf("no JSON array in review response")
	}

	var notes []string
	if err := json.Unmarshal([]byte(raw), &notes); err != nil {
		return nil, fmt.Errorf("parse review notes: %w", err)
	}
	return notes, nil
}
