package tools

import (
	"github.com/c360studio/longform/resilience"
	"github.com/c360studio/longform/tool"
)

// Register wires the standard tool set into reg. Each tool gets its own
// circuit breaker so a misbehaving model endpoint trips only the tools
// that depend on it, not the research fetcher (and vice versa).
func Register(reg *tool.Registry, client Completer) error {
	builders := []func() *tool.Tool{
		func() *tool.Tool { return newOutlineTool(client, newToolBreaker()) },
		func() *tool.Tool { return newChapterTool(client, newToolBreaker()) },
		func() *tool.Tool { return newAnalyzeChapterTool(client, newToolBreaker()) },
		func() *tool.Tool { return newQualityReviewTool(client, newToolBreaker()) },
		func() *tool.Tool { return newResearchTool(newToolBreaker()) },
	}

	for _, build := range builders {
		if err := reg.Register(build()); err != nil {
			return err
		}
	}
	return nil
}

func newToolBreaker() *resilience.Breaker {
	return resilience.NewBreaker(resilience.DefaultBreakerConfig())
}
