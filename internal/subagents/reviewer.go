package subagents

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/forgewell/agentrt/internal/llm"
	"github.com/forgewell/agentrt/internal/model"
)

const reviewerSystemPrompt = `You are a review assistant. You are given the user's original request
and a record of the tool calls an agent made while satisfying it.
Judge whether the outcome is acceptable.

Respond with ONLY a JSON object of this shape, no prose, no code fence:
{
  "passed": true | false,
  "score": 0-10,
  "feedback": "one paragraph",
  "issues": ["..."],
  "suggestions": ["..."]
}`

// Reviewer grades a completed run via a single dedicated LLM call.
type Reviewer struct {
	LLM Chatter
}

type reviewerJSON struct {
	Passed      bool     `json:"passed"`
	Score       int      `json:"score"`
	Feedback    string   `json:"feedback"`
	Issues      []string `json:"issues"`
	Suggestions []string `json:"suggestions"`
}

// Review grades the timeline, falling back to a deterministic rule-based
// verdict when the LLM response cannot be parsed, per spec §4.10: passed
// when there were no tool errors, or successes strictly outnumber errors.
func (r *Reviewer) Review(ctx context.Context, userPrompt string, timeline *model.ExecutionTimeline) *model.Review {
	successes, errorsCount := countOutcomes(timeline)

	summary := fmt.Sprintf("Request: %s\nFinal response: %s\nTool calls: %d succeeded, %d failed.",
		userPrompt, timeline.FinalResponse, successes, errorsCount)

	messages := []llm.Message{
		{Role: string(model.MessageSystem), Content: reviewerSystemPrompt},
		{Role: string(model.MessageUser), Content: summary},
	}
	result, err := r.LLM.Chat(ctx, messages, nil)
	if err != nil {
		return fallbackReview(successes, errorsCount)
	}

	var parsed reviewerJSON
	if err := json.Unmarshal([]byte(stripCodeFence(result.Content)), &parsed); err != nil {
		return fallbackReview(successes, errorsCount)
	}

	score := parsed.Score
	if score < 0 {
		score = 0
	}
	if score > 10 {
		score = 10
	}

	return &model.Review{
		Passed:      parsed.Passed,
		Score:       score,
		Feedback:    parsed.Feedback,
		Issues:      parsed.Issues,
		Suggestions: parsed.Suggestions,
	}
}

func countOutcomes(timeline *model.ExecutionTimeline) (successes, errorsCount int) {
	for _, c := range timeline.ToolCalls {
		switch c.Status {
		case model.ToolCallSuccess:
			successes++
		case model.ToolCallError:
			errorsCount++
		}
	}
	return successes, errorsCount
}

func fallbackReview(successes, errorsCount int) *model.Review {
	passed := errorsCount == 0 || successes > errorsCount

	score := 4
	switch {
	case errorsCount == 0:
		score = 8
	case successes > 0:
		score = 6
	}

	review := &model.Review{Passed: passed, Score: score}
	if errorsCount == 0 {
		review.Feedback = "No tool errors were recorded."
	} else if successes > 0 {
		review.Feedback = "Some tool calls failed, but at least one succeeded."
		review.Issues = append(review.Issues, fmt.Sprintf("%d tool call(s) failed", errorsCount))
	} else {
		review.Feedback = "Tool call failures outnumbered successes."
		review.Issues = append(review.Issues, fmt.Sprintf("%d tool call(s) failed against %d success(es)", errorsCount, successes))
	}
	return review
}
