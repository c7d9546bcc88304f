package verb

import (
	"fmt"
	"strings"
)

// ValidationError reports the first constraint a request violates, naming the
// offending field. Requests that fail validation never reach the driver.
type ValidationError struct {
	Verb    Type
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: invalid %s: %s", e.Verb, e.Field, e.Message)
}

const dtmfAlphabet = "0123456789*#"

// Validate checks a request against its verb's constraint set.
func Validate(req Request) error {
	if strings.TrimSpace(req.SessionRef) == "" {
		return &ValidationError{Verb: req.Type, Field: "sessionRef", Message: "must not be empty"}
	}

	switch req.Type {
	case TypeAnswer, TypeHangup:
		return nil
	case TypeGather:
		return validateGather(req.Gather)
	case TypePlay:
		if req.Play == nil || strings.TrimSpace(req.Play.MediaURL) == "" {
			return &ValidationError{Verb: req.Type, Field: "mediaUrl", Message: "must not be empty"}
		}
		return nil
	case TypePlayDtmf:
		return validatePlayDtmf(req.PlayDtmf)
	case TypeSay:
		if req.Say == nil || strings.TrimSpace(req.Say.Text) == "" {
			return &ValidationError{Verb: req.Type, Field: "text", Message: "must not be empty"}
		}
		return nil
	case TypeDial:
		if req.Dial == nil || strings.TrimSpace(req.Dial.Destination) == "" {
			return &ValidationError{Verb: req.Type, Field: "destination", Message: "must not be empty"}
		}
		if req.Dial.Timeout < 0 {
			return &ValidationError{Verb: req.Type, Field: "timeout", Message: "must not be negative"}
		}
		return nil
	case TypeMute, TypeUnmute:
		return validateMute(req.Type, req.Mute)
	default:
		return &ValidationError{Verb: req.Type, Field: "verbType", Message: "unknown verb"}
	}
}

func validateGather(p *GatherParams) error {
	if p == nil {
		p = &GatherParams{}
	}
	switch p.Source {
	case "", SourceSpeech, SourceDTMF, SourceSpeechAndDTMF:
	default:
		return &ValidationError{Verb: TypeGather, Field: "source", Message: "invalid gather source"}
	}
	if p.FinishOnKey != "" {
		if len(p.FinishOnKey) != 1 {
			return &ValidationError{Verb: TypeGather, Field: "finishOnKey", Message: "must be a single character"}
		}
		if !strings.Contains(dtmfAlphabet, p.FinishOnKey) {
			return &ValidationError{Verb: TypeGather, Field: "finishOnKey", Message: "must be a digit, * or #"}
		}
	}
	if p.Timeout != nil && *p.Timeout <= 0 {
		return &ValidationError{Verb: TypeGather, Field: "timeout", Message: "must be a positive integer"}
	}
	if p.MaxDigits != nil && *p.MaxDigits <= 0 {
		return &ValidationError{Verb: TypeGather, Field: "maxDigits", Message: "must be a positive integer"}
	}
	return nil
}

func validatePlayDtmf(p *PlayDtmfParams) error {
	if p == nil || p.Digits == "" {
		return &ValidationError{Verb: TypePlayDtmf, Field: "digits", Message: "must not be empty"}
	}
	for i := 0; i < len(p.Digits); i++ {
		if !strings.ContainsRune(dtmfAlphabet, rune(p.Digits[i])) {
			return &ValidationError{Verb: TypePlayDtmf, Field: "digits", Message: "must contain only digits, * or #"}
		}
	}
	return nil
}

func validateMute(t Type, p *MuteParams) error {
	if p == nil {
		return nil
	}
	switch p.Direction {
	case "", DirectionIn, DirectionOut, DirectionBoth:
		return nil
	default:
		return &ValidationError{Verb: t, Field: "direction", Message: "invalid mute direction"}
	}
}
