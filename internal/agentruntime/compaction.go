// Package agentruntime implements the turn procedure: session
// hydration, system prompt construction, the LLM/tool-call loop, and
// context compaction once a session grows past its token budget.
//
// Grounded on a prior internal/compaction package's token-estimation
// heuristic (~4 chars/token, ceiling division) and chunking helpers,
// reused here to decide when a session needs compacting and how much
// of its history to summarize away.
package agentruntime

import "github.com/therenovatio/teleton/internal/domain"

// CharsPerToken is the approximate character-to-token ratio used for
// the cheap token estimate driving compaction decisions.
const CharsPerToken = 4

// EstimateTokens approximates a message's token cost from its
// character length.
func EstimateTokens(msg domain.Message) int {
	chars := len(msg.Text) + len(msg.ToolCalls)
	return (chars + CharsPerToken - 1) / CharsPerToken
}

// EstimateTotalTokens sums EstimateTokens across messages.
func EstimateTotalTokens(msgs []domain.Message) int {
	total := 0
	for _, m := range msgs {
		total += EstimateTokens(m)
	}
	return total
}

// CompactionTokenThreshold triggers compaction once a session's
// estimated context exceeds this many tokens.
const CompactionTokenThreshold = 64_000

// CompactionMessageThreshold triggers compaction once a session holds
// more than this many messages, regardless of token estimate.
const CompactionMessageThreshold = 200

// KeepRecentMessages is how many of the most recent messages survive
// a compaction uncompressed; everything older is folded into the
// session's rolling summary.
const KeepRecentMessages = 20

// NeedsCompaction reports whether history has grown past either
// compaction trigger.
func NeedsCompaction(history []domain.Message) bool {
	if len(history) > CompactionMessageThreshold {
		return true
	}
	return EstimateTotalTokens(history) > CompactionTokenThreshold
}

// SplitForCompaction divides history into the portion to fold into a
// new summary and the portion (the most recent KeepRecentMessages) to
// keep verbatim.
func SplitForCompaction(history []domain.Message) (toSummarize, toKeep []domain.Message) {
	if len(history) <= KeepRecentMessages {
		return nil, history
	}
	cut := len(history) - KeepRecentMessages
	return history[:cut], history[cut:]
}
