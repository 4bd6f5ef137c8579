package command

import (
	"strings"
)

// rule maps a set of trigger phrases to a command kind. Rules are
// evaluated in a fixed precedence order; the first match wins.
type rule struct {
	kind    Kind
	phrases []string

	// payload extracts kind-specific data from the cleaned text.
	// Nil means no payload.
	payload func(text string) string
}

// rules is the classifier table, highest precedence first:
// interrupt > deep dive > navigation > volume/speed > domain requests.
// Domain precedence is weather > stock > news.
var rules = []rule{
	{kind: KindStop, phrases: []string{"stop", "halt", "cancel", "shut up", "be quiet", "enough"}},
	{kind: KindDeepDive, phrases: []string{"tell me more", "more detail", "deep dive", "go deeper", "elaborate", "expand on"}},
	{kind: KindSkip, phrases: []string{"skip", "next", "move on", "next one", "next story"}},
	{kind: KindRepeat, phrases: []string{"repeat", "say that again", "again please", "one more time"}},
	{kind: KindContinue, phrases: []string{"continue", "keep going", "go on", "carry on"}},
	{kind: KindVolumeUp, phrases: []string{"volume up", "louder", "turn it up", "speak up"}},
	{kind: KindVolumeDown, phrases: []string{"volume down", "quieter", "turn it down", "lower the volume"}},
	{kind: KindSpeedUp, phrases: []string{"speed up", "faster", "talk faster"}},
	{kind: KindSpeedDown, phrases: []string{"slow down", "slower", "talk slower"}},
	{kind: KindHelp, phrases: []string{"help", "what can you do", "how does this work"}},
	{kind: KindSettings, phrases: []string{"settings", "preferences", "configure"}},
	{kind: KindWeatherRequest, phrases: []string{"weather", "forecast", "temperature", "rain", "sunny"}, payload: passthrough},
	{kind: KindStockRequest, phrases: []string{"stock", "stocks", "share price", "price of", "ticker", "market"}, payload: passthrough},
	{kind: KindNewsRequest, phrases: []string{"news", "headline", "headlines", "what's happening", "latest on"}, payload: passthrough},
}

// refinementCues mark a command as superseding pending work.
var refinementCues = []string{"actually", "instead", "wait"}

func passthrough(text string) string { return text }

// Classify maps transcribed text to a Command. It is a pure function
// over a fixed rule table: identical input always yields the identical
// kind and priority. Unmatched text defaults to a news request
// carrying the raw text, so the assistant always has something to do.
//
// Classify sits on the hot path between transcription and queueing and
// does nothing but lowercase and substring scans.
func Classify(text string) Command {
	cleaned := strings.ToLower(strings.TrimSpace(text))

	for _, r := range rules {
		for _, p := range r.phrases {
			if strings.Contains(cleaned, p) {
				payload := ""
				if r.payload != nil {
					payload = r.payload(cleaned)
				}
				return New(r.kind, payload, text)
			}
		}
	}

	return New(KindNewsRequest, cleaned, text)
}

// hasRefinementCue reports whether the text signals the user is
// replacing an earlier request.
func hasRefinementCue(text string) bool {
	cleaned := strings.ToLower(text)
	for _, cue := range refinementCues {
		if strings.Contains(cleaned, cue) {
			return true
		}
	}
	return false
}
