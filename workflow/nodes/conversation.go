package nodes

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"regexp"

	"github.com/c360studio/longform/llm"
	"github.com/c360studio/longform/model"
	"github.com/c360studio/longform/tool"
	"github.com/c360studio/longform/tools"
	"github.com/c360studio/longform/workflow"
)

// maxResearchURLs caps how many reference URLs the conversation stage
// will fetch from the prompt.
const maxResearchURLs = 3

var urlRe = regexp.MustCompile(`https?://[^\s<>"')\]]+`)

const premiseSystemPrompt = `You turn a book request into a structured premise. Respond with a single JSON object:
{"title": string, "synopsis": string, "audience": string, "themes": [string]}
The synopsis is 2-4 sentences. No prose outside the JSON.`

// ConversationNode expands the user's prompt into a structured premise.
// Reference URLs in the prompt are fetched through the research tool and
// folded into the premise as supporting context; a failed fetch degrades
// to proceeding without it.
type ConversationNode struct {
	registry *tool.Registry
	client   tools.Completer
	logger   *slog.Logger
}

func NewConversationNode(registry *tool.Registry, client tools.Completer, logger *slog.Logger) *ConversationNode {
	return &ConversationNode{registry: registry, client: client, logger: logger}
}

func (n *ConversationNode) Stage() workflow.Stage { return workflow.StageConversation }

func (n *ConversationNode) Validate(state *workflow.State) error {
	if state.Prompt == "" {
		return fmt.Errorf("prompt is empty")
	}
	return nil
}

func (n *ConversationNode) Execute(ctx context.Context, state *workflow.State) (*workflow.State, error) {
	refs := urlRe.FindAllString(state.Prompt, maxResearchURLs)

	researchCtx := ""
	for i, ref := range refs {
		workflow.UpdateProgress(state, float64(i)/float64(len(refs)+1)*100,
			fmt.Sprintf("researching %s", ref))

		res := n.registry.Execute(ctx, tools.ToolResearch, tools.ResearchParams{URL: ref})
		if !res.Success {
			n.logger.Warn("research fetch failed, continuing without it",
				"url", ref, "error", res.Error)
			continue
		}
		r := res.Data.(tools.ResearchResult)
		researchCtx += fmt.Sprintf("## %s (%s)\n\n%s\n\n", r.Title, ref, r.Markdown)
	}

	workflow.UpdateProgress(state, 80, "expanding premise")

	resp, err := n.client.Complete(ctx, llm.Request{
		Capability: model.CapabilityFast.String(),
		Messages: []llm.Message{
			{Role: "system", Content: premiseSystemPrompt},
			{Role: "user", Content: state.Prompt},
		},
	})
	if err != nil {
		return nil, workflow.AsNodeError(workflow.StageConversation, err)
	}

	premise, err := parsePremise(resp.Content)
	if err != nil {
		return nil, workflow.NewRecoverable(workflow.StageConversation,
			workflow.CodeMalformedOutput, err.Error(), err)
	}

	premise.References = refs
	premise.ResearchCtx = researchCtx
	state.Premise = premise

	workflow.TransitionTo(state, workflow.StageOutline)
	return state, nil
}

func (n *ConversationNode) Recover(ctx context.Context, state *workflow.State, nodeErr *workflow.NodeError) (*workflow.State, error) {
	if err := workflow.CheckRetryBudget(state, workflow.StageConversation); err != nil {
		return nil, err
	}
	n.logger.Info("retrying premise expansion",
		"session_id", state.SessionID, "attempt", state.RetryCount)
	return n.Execute(ctx, state)
}

func parsePremise(content string) (*workflow.Premise, error) {
	raw := llm.ExtractJSON(content)
	if raw == "" {
		return nil, fmt.Errorf("no JSON object in premise response")
	}

	var premise workflow.Premise
	if err := json.Unmarshal([]byte(raw), &premise); err != nil {
		return nil, fmt.Errorf("parse premise JSON: %w", err)
	}
	if premise.Synopsis == "" {
		return nil, fmt.Errorf("premise has no synopsis")
	}
	return &premise, nil
}
