package entities

// VoiceStatus is the single authoritative voice pipeline state of a session
type VoiceStatus string

const (
	VoiceStatusOff            VoiceStatus = "off"
	VoiceStatusReady          VoiceStatus = "ready"
	VoiceStatusListening      VoiceStatus = "listening"
	VoiceStatusWaitingCommand VoiceStatus = "waiting_command"
	VoiceStatusProcessing     VoiceStatus = "processing"
	VoiceStatusSpeaking       VoiceStatus = "speaking"
	VoiceStatusReconnecting   VoiceStatus = "reconnecting"
)

// Recognizer error codes reported by the Web Speech API
const (
	RecognizerErrorNoSpeech = "no-speech"
	RecognizerErrorAborted  = "aborted"
	RecognizerErrorNetwork  = "network"
	RecognizerErrorDenied   = "not-allowed"
)

// IsBenignRecognizerError reports whether a recognizer error code is an
// expected non-error that must not be logged or alerted.
func IsBenignRecognizerError(code string) bool {
	return code == RecognizerErrorNoSpeech || code == RecognizerErrorAborted
}
