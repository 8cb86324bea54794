// Package model provides capability-based model selection for generation
// work. Instead of hardcoding model names, nodes and tools specify
// capabilities (drafting, planning, reviewing) and the registry resolves
// them to available models with fallback chains.
package model

// Capability represents a semantic capability for model selection.
// Instead of specifying "claude-sonnet", callers specify "drafting" or
// "planning".
type Capability string

const (
	// CapabilityPlanning is for premise expansion and outline structure.
	CapabilityPlanning Capability = "planning"

	// CapabilityDrafting is for long-form prose generation.
	CapabilityDrafting Capability = "drafting"

	// CapabilityReviewing is for consistency and quality analysis.
	CapabilityReviewing Capability = "reviewing"

	// CapabilityFast is for quick responses, simple tasks.
	CapabilityFast Capability = "fast"
)

// StageCapabilities maps pipeline stages to their default capability.
// Used when no explicit capability or model is specified.
var StageCapabilities = map[string]Capability{
	"conversation":       CapabilityPlanning,
	"outline":            CapabilityPlanning,
	"chapter_generation": CapabilityDrafting,
	"consistency_review": CapabilityReviewing,
	"quality_review":     CapabilityReviewing,
}

// CapabilityForStage returns the default capability for a pipeline stage.
// Returns CapabilityDrafting as fallback for unknown stages.
func CapabilityForStage(stage string) Capability {
	if cap, ok := StageCapabilities[stage]; ok {
		return cap
	}
	return CapabilityDrafting
}

// IsValid checks if a capability string is a known capability.
func (c Capability) IsValid() bool {
	switch c {
	case CapabilityPlanning, CapabilityDrafting, CapabilityReviewing, CapabilityFast:
		return true
	}
	return false
}

// String returns the string representation of the capability.
func (c Capability) String() string {
	return string(c)
}

// ParseCapability converts a string to a Capability, returning empty for
// invalid values.
func ParseCapability(s string) Capability {
	cap := Capability(s)
	if cap.IsValid() {
		return cap
	}
	return ""
}
