package verb

import "time"

// Type enumerates the call-control verbs the engine can dispatch. The set is
// closed; the execution bridge switches exhaustively over it.
type Type string

const (
	TypeAnswer   Type = "answer"
	TypeGather   Type = "gather"
	TypePlay     Type = "play"
	TypePlayDtmf Type = "playDtmf"
	TypeSay      Type = "say"
	TypeDial     Type = "dial"
	TypeMute     Type = "mute"
	TypeUnmute   Type = "unmute"
	TypeHangup   Type = "hangup"
)

// GatherSource selects which caller inputs a gather accepts.
type GatherSource string

const (
	SourceSpeech        GatherSource = "speech"
	SourceDTMF          GatherSource = "dtmf"
	SourceSpeechAndDTMF GatherSource = "speech_and_dtmf"
)

// MuteDirection selects which leg of the media stream a mute applies to.
type MuteDirection string

const (
	DirectionIn   MuteDirection = "in"
	DirectionOut  MuteDirection = "out"
	DirectionBoth MuteDirection = "both"
)

// Request is one verb command addressed to a live session. Exactly one of the
// params fields matching Type must be set.
type Request struct {
	SessionRef string
	Type       Type

	Gather   *GatherParams
	Play     *PlayParams
	PlayDtmf *PlayDtmfParams
	Say      *SayParams
	Dial     *DialParams
	Mute     *MuteParams
}

// GatherParams arms caller-input collection. All fields are optional; nil or
// empty means "unset" and falls back to session defaults.
type GatherParams struct {
	Source      GatherSource
	FinishOnKey string
	Timeout     *int
	MaxDigits   *int
}

type PlayParams struct {
	MediaURL string
}

// PlayDtmfParams injects digits into the channel. Digits are forwarded to the
// driver byte-for-byte.
type PlayDtmfParams struct {
	Digits string
}

type SayParams struct {
	Text string
}

type DialParams struct {
	Destination string
	Timeout     time.Duration
}

type MuteParams struct {
	Direction MuteDirection
}

// Result is the verb-specific payload of a successful execution. It always
// carries the session ref of the originating request.
type Result struct {
	SessionRef  string
	Type        Type
	PlaybackRef string
}
