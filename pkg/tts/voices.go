package tts

// Voices maps friendly preset names to ElevenLabs voice IDs.
// Use ResolveVoice to look up a preset or pass through raw IDs.
var Voices = map[string]string{
	"charlotte": "XB0fDUnXU5powFXDhCwa", // British female, warm
	"aria":      "9BWtsMINqrJLrRacOk9x", // American female, expressive
	"sarah":     "EXAVITQu4vr4xnSDxMaL", // American female, soft
	"lily":      "pFZP5JQG7iQjIQuC4Bku", // British female, warm
	"rachel":    "21m00Tcm4TlvDq8ikWAM", // American female, calm
	"josh":      "TxGEqnHWrfWFTfGW9XjX", // American male, deep
	"adam":      "pNInz6obpgDQGcFmaJgB", // American male, deep
}

// DefaultVoice is the default voice preset.
const DefaultVoice = "charlotte"

// ResolveVoice returns the voice ID for a preset name, or the input
// unchanged if it's already a voice ID.
func ResolveVoice(name string) string {
	if id, ok := Voices[name]; ok {
		return id
	}
	return name
}
