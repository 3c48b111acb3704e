package agent

import (
	"context"
	"strings"
)

// PromptSource supplies the base system prompt for scheduled runs.
type PromptSource interface {
	SystemPrompt(ctx context.Context) (string, error)
}

// SkillSource supplies metadata describing the skills available to a run.
type SkillSource interface {
	SkillSummaries(ctx context.Context) ([]string, error)
}

// MemorySource supplies recent memory entries relevant to a run.
type MemorySource interface {
	RecentMemory(ctx context.Context, limit int) ([]string, error)
}

// PromptFunc adapts a function to PromptSource.
type PromptFunc func(ctx context.Context) (string, error)

func (f PromptFunc) SystemPrompt(ctx context.Context) (string, error) { return f(ctx) }

// StaticPrompt returns a PromptSource that always yields the given text.
func StaticPrompt(text string) PromptSource {
	return PromptFunc(func(context.Context) (string, error) { return text, nil })
}

// recentMemoryLimit bounds how many memory entries are folded into a run's
// instruction context.
const recentMemoryLimit = 10

// BuildInstruction assembles the instruction context for a run: base system
// prompt, then skill metadata, then recent memory, then the job instruction.
// Nil sources contribute nothing; a failing source degrades to an empty
// section rather than failing the run.
func BuildInstruction(ctx context.Context, instruction string, prompts PromptSource, skills SkillSource, memory MemorySource) string {
	var b strings.Builder

	if prompts != nil {
		if base, err := prompts.SystemPrompt(ctx); err == nil && base != "" {
			b.WriteString(base)
			b.WriteString("\n\n")
		}
	}
	if skills != nil {
		if summaries, err := skills.SkillSummaries(ctx); err == nil && len(summaries) > 0 {
			b.WriteString("Available skills:\n")
			for _, s := range summaries {
				b.WriteString("- ")
				b.WriteString(s)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}
	if memory != nil {
		if entries, err := memory.RecentMemory(ctx, recentMemoryLimit); err == nil && len(entries) > 0 {
			b.WriteString("Recent memory:\n")
			for _, e := range entries {
				b.WriteString("- ")
				b.WriteString(e)
				b.WriteString("\n")
			}
			b.WriteString("\n")
		}
	}

	b.WriteString(instruction)
	return b.String()
}
