package ai

import "telegram-llm-relay/internal/domain/model"

// DescriptionInstruction replaces the conversation's own system prompt when
// asking a backend for a one-line summary.
const DescriptionInstruction = "Summarize the following conversation in a single short sentence. Reply with the summary only."

type turnRole int

const (
	turnSystem turnRole = iota
	turnUser
	turnAssistant
)

// turn is one provider-neutral chat message.
type turn struct {
	role    turnRole
	name    string
	content string
}

// buildTurns lays out the system prompt (when set) followed by the transcript
// in order. User turns keep the sender name; assistant turns carry none.
func buildTurns(conv *model.Conversation, system *string) []turn {
	out := make([]turn, 0, len(conv.Messages)+1)
	if system != nil {
		out = append(out, turn{role: turnSystem, content: *system})
	}
	for _, m := range conv.Messages {
		if m.From.IsAssistant() {
			out = append(out, turn{role: turnAssistant, content: m.Content})
			continue
		}
		out = append(out, turn{role: turnUser, name: m.From.Name, content: m.Content})
	}
	return out
}

func replyTurns(conv *model.Conversation) []turn {
	return buildTurns(conv, conv.System)
}

func descriptionTurns(conv *model.Conversation) []turn {
	instr := DescriptionInstruction
	return buildTurns(conv, &instr)
}

func turnsText(turns []turn) []string {
	out := make([]string, 0, len(turns))
	for _, t := range turns {
		out = append(out, t.content)
	}
	return out
}
