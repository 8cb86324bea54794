// Package tools implements the concrete tools registered with the
// invocation layer: model-backed generation and analysis plus web
// research. Each tool declares a typed parameter struct validated at
// invocation time.
package tools

import "github.com/c360studio/longform/workflow"

// Tool names as registered.
const (
	ToolOutline        = "outline"
	ToolChapter        = "chapter"
	ToolAnalyzeChapter = "analyze_chapter"
	ToolQualityReview  = "quality_review"
	ToolResearch       = "research"
)

// OutlineParams configures the outline tool.
type OutlineParams struct {
	// Premise is the structured expansion of the user's prompt.
	Premise *workflow.Premise

	// ChapterCount requests a specific number of chapters; 0 lets the
	// model decide.
	ChapterCount int
}

// OutlineResult is the outline tool's output.
type OutlineResult struct {
	Outline *workflow.Outline

	// Raw is the unparsed model response, kept for diagnostics.
	Raw string
}

// ChapterParams configures the chapter drafting tool.
type ChapterParams struct {
	Premise *workflow.Premise
	Outline *workflow.Outline

	// Chapter is the unit to draft. TargetWords may have been reduced by
	// recovery.
	Chapter *workflow.Chapter

	// DependencySummaries maps completed dependency chapter numbers to
	// their summaries, giving the model continuity context.
	DependencySummaries map[int]string
}

// ChapterResult is the chapter tool's output.
type ChapterResult struct {
	Body      string
	WordCount int
}

// AnalyzeChapterParams configures the per-chapter consistency tool.
type AnalyzeChapterParams struct {
	Synopsis string
	Chapter  *workflow.Chapter
}

// AnalyzeChapterResult is the consistency tool's output.
type AnalyzeChapterResult struct {
	ChapterNumber int
	Notes         []string
}

// QualityReviewParams configures the holistic quality tool.
type QualityReviewParams struct {
	Synopsis string
	Chapters []*workflow.Chapter
}

// QualityReviewResult is the quality tool's output.
type QualityReviewResult struct {
	// Score is the model's holistic quality verdict, 0-100.
	Score int
	Notes []string
}

// ResearchParams configures the web research tool.
type ResearchParams struct {
	URL string
}

// ResearchResult is the research tool's output.
type ResearchResult struct {
	Title    string
	Markdown string
}
