package anthropic

// BuildCachedSystemBlocks constructs a system block with an ephemeral cache
// breakpoint. The instructions are identical across every lead in a batch,
// so only the first call per five minutes pays for them in full.
func BuildCachedSystemBlocks(text string) []SystemBlock {
	return []SystemBlock{
		{
			Text: text,
			CacheControl: &CacheControl{
				TTL: "5m",
			},
		},
	}
}

// Prompt builds the single-turn request every enrichment layer sends: fixed
// instructions as a cached system block plus one user message.
func Prompt(model string, maxTokens int64, instructions, user string) MessageRequest {
	return MessageRequest{
		Model:     model,
		MaxTokens: maxTokens,
		System:    BuildCachedSystemBlocks(instructions),
		Messages:  []Message{{Role: RoleUser, Content: user}},
	}
}
