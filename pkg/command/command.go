// Package command provides the voice command vocabulary, the keyword
// classifier, and the priority queue that arbitrates pending commands.
//
// Commands are classified from transcribed speech by a fixed-precedence
// rule table and ranked by urgency. The queue pops the most urgent
// pending command and evicts superseded work when the user changes
// their mind mid-request ("actually, do X instead").
package command

import (
	"time"
)

// Kind identifies what the user asked for.
type Kind string

const (
	KindStop           Kind = "stop"
	KindContinue       Kind = "continue"
	KindSkip           Kind = "skip"
	KindRepeat         Kind = "repeat"
	KindDeepDive       Kind = "deep_dive"
	KindNewsRequest    Kind = "news_request"
	KindStockRequest   Kind = "stock_request"
	KindWeatherRequest Kind = "weather_request"
	KindVolumeUp       Kind = "volume_up"
	KindVolumeDown     Kind = "volume_down"
	KindSpeedUp        Kind = "speed_up"
	KindSpeedDown      Kind = "speed_down"
	KindHelp           Kind = "help"
	KindSettings       Kind = "settings"
)

// Priority ranks command urgency. Lower values are more urgent.
type Priority int

const (
	// PriorityImmediate commands abort in-flight work (stop, volume).
	PriorityImmediate Priority = 1

	// PriorityRefinement commands supersede pending normal work
	// ("actually", "instead", "wait").
	PriorityRefinement Priority = 2

	// PriorityContextual commands depend on recent output (deep dive,
	// skip, repeat).
	PriorityContextual Priority = 3

	// PriorityNormal is the default for content requests.
	PriorityNormal Priority = 4

	// PriorityExpired marks commands older than MaxAge.
	PriorityExpired Priority = 5
)

// String returns a human-readable priority name.
func (p Priority) String() string {
	switch p {
	case PriorityImmediate:
		return "immediate"
	case PriorityRefinement:
		return "refinement"
	case PriorityContextual:
		return "contextual"
	case PriorityNormal:
		return "normal"
	case PriorityExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// MaxAge is how long a command stays actionable. Older commands are
// demoted to PriorityExpired when their priority is next evaluated.
const MaxAge = 5 * time.Second

// Command is one classified user request.
type Command struct {
	// Kind is the classified intent.
	Kind Kind

	// Payload carries kind-specific data (e.g. the topic of a news
	// request or the ticker of a stock request).
	Payload string

	// OriginText is the raw transcription the command was classified
	// from.
	OriginText string

	// CreatedAt is when the command was constructed.
	CreatedAt time.Time

	// Priority is fixed at construction from kind and lexical cues;
	// only age can demote it afterwards.
	Priority Priority
}

// New builds a command of the given kind with priority derived from
// the kind and the origin text.
func New(kind Kind, payload, originText string) Command {
	return Command{
		Kind:       kind,
		Payload:    payload,
		OriginText: originText,
		CreatedAt:  time.Now(),
		Priority:   priorityFor(kind, originText),
	}
}

// EffectivePriority returns the command's priority as of now,
// demoting commands older than MaxAge to PriorityExpired.
func (c Command) EffectivePriority(now time.Time) Priority {
	if now.Sub(c.CreatedAt) > MaxAge {
		return PriorityExpired
	}
	return c.Priority
}

// Interrupts reports whether dispatching this command must abort the
// turn currently generating or synthesizing.
func (c Command) Interrupts() bool {
	return c.Kind == KindStop || c.Kind == KindDeepDive
}

// priorityFor derives the construction-time priority. Refinement cues
// never demote an immediate command: "wait, stop" still stops.
func priorityFor(kind Kind, originText string) Priority {
	switch kind {
	case KindStop, KindVolumeUp, KindVolumeDown, KindSpeedUp, KindSpeedDown:
		return PriorityImmediate
	}

	if hasRefinementCue(originText) {
		return PriorityRefinement
	}

	switch kind {
	case KindDeepDive, KindSkip, KindRepeat, KindContinue:
		return PriorityContextual
	default:
		return PriorityNormal
	}
}
