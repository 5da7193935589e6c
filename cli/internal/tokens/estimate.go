// Package tokens estimates prompt size so an oversized staged diff can be
// flagged before it is sent to a model with a small context window.
package tokens

import (
	"fmt"
	"math"
)

// charsPerToken is the divisor for the byte-based estimator.
const charsPerToken = 4

// ResponseReserve is the number of tokens kept free for the generated
// message. Commit messages are short, so this is small.
const ResponseReserve = 256

// Estimate returns (len(text)+3)/4 bytes-as-tokens; empty text is 0.
func Estimate(text string) int {
	n := len(text)
	if n == 0 {
		return 0
	}
	return (n + charsPerToken - 1) / charsPerToken
}

// EstimatePrompt estimates the system and user parts of one request together.
func EstimatePrompt(system, user string) int {
	return Estimate(system) + Estimate(user)
}

// WarnIfOver returns a warning when promptTokens plus ResponseReserve reach
// warnThreshold of contextLimit, and "" otherwise. A non-positive
// contextLimit disables the check.
func WarnIfOver(promptTokens, contextLimit int, warnThreshold float64) string {
	if contextLimit <= 0 || promptTokens < 0 {
		return ""
	}
	if promptTokens > math.MaxInt-ResponseReserve {
		return fmt.Sprintf("prompt of %d tokens is too large to estimate", promptTokens)
	}
	total := promptTokens + ResponseReserve
	threshold := int(math.Ceil(float64(contextLimit) * warnThreshold))
	if total < threshold {
		return ""
	}
	return fmt.Sprintf("staged diff is large: about %d tokens (prompt %d + reply %d), %.0f%% threshold of the %d token context; the model may truncate it",
		total, promptTokens, ResponseReserve, warnThreshold*100, contextLimit)
}
