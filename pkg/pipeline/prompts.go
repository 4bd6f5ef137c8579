package pipeline

import (
	"context"
	"fmt"

	"github.com/irisvoice/go-iris/pkg/command"
	"github.com/irisvoice/go-iris/pkg/llm"
	"github.com/irisvoice/go-iris/pkg/session"
)

const defaultSystemPrompt = "You are Iris, a voice assistant. Answers are spoken " +
	"aloud, so keep them short, conversational, and free of markup. One or two " +
	"sentences unless the user asks for depth."

const historyLimit = 10

// plan is what a command resolves to: nothing, a fixed reply, or a
// generated one.
type plan struct {
	silent   bool
	canned   string
	messages []llm.Message
}

// planFor maps a command to its response plan. Interrupting commands
// already had their effect at dispatch time.
func (p *Pipeline) planFor(ctx context.Context, sess *session.Session, cmd command.Command) plan {
	switch cmd.Kind {
	case command.KindStop:
		// The flag set at dispatch already cancelled in-flight work.
		return plan{silent: true}

	case command.KindVolumeUp:
		return plan{canned: "Volume up."}
	case command.KindVolumeDown:
		return plan{canned: "Volume down."}
	case command.KindSpeedUp:
		return plan{canned: "Speaking faster."}
	case command.KindSpeedDown:
		return plan{canned: "Speaking slower."}

	case command.KindHelp:
		return plan{canned: "You can ask me for the news, stock prices, or the weather. " +
			"Say stop to interrupt me, tell me more to go deeper, or skip to move on."}
	case command.KindSettings:
		return plan{canned: "Settings are managed in the companion app."}

	case command.KindRepeat:
		if last := p.lastAssistantMessage(ctx, sess); last != "" {
			return plan{canned: last}
		}
		return plan{canned: "I haven't said anything yet."}

	case command.KindDeepDive:
		return p.generated(ctx, sess,
			"Go deeper on what you just told me. Add the detail you left out.")

	case command.KindContinue:
		return p.generated(ctx, sess, "Please continue where you left off.")

	case command.KindSkip:
		item := sess.AdvanceNews()
		return p.generated(ctx, sess,
			fmt.Sprintf("Skip that. Give me the next headline (item %d).", item+1))

	case command.KindWeatherRequest:
		return p.generated(ctx, sess,
			fmt.Sprintf("Give me a brief weather report. Request: %s", cmd.Payload))

	case command.KindStockRequest:
		return p.generated(ctx, sess,
			fmt.Sprintf("Give me a brief stock market update. Request: %s", cmd.Payload))

	default: // KindNewsRequest
		item := sess.AdvanceNews()
		return p.generated(ctx, sess,
			fmt.Sprintf("Brief news summary, starting from headline %d. Request: %s",
				item+1, cmd.Payload))
	}
}

// generated builds the message list: system prompt, recent history,
// then the user request.
func (p *Pipeline) generated(ctx context.Context, sess *session.Session, prompt string) plan {
	messages := []llm.Message{llm.NewSystemMessage(p.cfg.SystemPrompt)}

	history, err := p.cfg.Store.RecentMessages(ctx, sess.ID, historyLimit)
	if err != nil {
		p.logger.Warn("history fetch failed", "session_id", sess.ID, "error", err)
	}
	for _, m := range history {
		messages = append(messages, llm.Message{Role: llm.Role(m.Role), Content: m.Content})
	}

	messages = append(messages, llm.NewUserMessage(prompt))
	return plan{messages: messages}
}

// lastAssistantMessage returns the most recent assistant reply, if
// the store has one.
func (p *Pipeline) lastAssistantMessage(ctx context.Context, sess *session.Session) string {
	history, err := p.cfg.Store.RecentMessages(ctx, sess.ID, historyLimit)
	if err != nil {
		p.logger.Warn("history fetch failed", "session_id", sess.ID, "error", err)
		return ""
	}
	for i := len(history) - 1; i >= 0; i-- {
		if history[i].Role == "assistant" {
			return history[i].Content
		}
	}
	return ""
}
