package protocol

import (
	"errors"
	"fmt"
	"unicode/utf8"

	"github.com/go-playground/validator/v10"
	"github.com/goccy/go-json"
	"github.com/pion/webrtc/v4"

	"github.com/dkeye/LiveClass/internal/domain"
)

const DefaultMaxChatBody = 2000

var validate = validator.New(validator.WithRequiredStructEnabled())

// Decoder turns client frames into validated envelopes.
type Decoder struct {
	MaxChatBody int
}

func malformed(format string, args ...any) error {
	return fmt.Errorf("%w: %s", domain.ErrMalformedEnvelope, fmt.Sprintf(format, args...))
}

// Decode parses a client frame. Unknown kinds, server-only kinds and
// payloads missing required fields are rejected with ErrMalformedEnvelope.
// From is cleared; the caller stamps the asserted identity.
func (d Decoder) Decode(data []byte) (Envelope, error) {
	var env Envelope
	if err := json.Unmarshal(data, &env); err != nil {
		return Envelope{}, malformed("bad json: %v", err)
	}
	env.From = ""
	if env.Kind == "" {
		return env, malformed("missing kind")
	}
	if !env.Kind.fromClient() {
		return env, malformed("unknown kind %q", env.Kind)
	}
	if env.Kind.Targeted() && env.To == "" {
		return env, malformed("%s requires a target", env.Kind)
	}
	if err := d.checkPayload(env); err != nil {
		return env, err
	}
	return env, nil
}

func (d Decoder) checkPayload(env Envelope) error {
	switch env.Kind {
	case KindJoin:
		var p JoinPayload
		if err := d.bindStrict(env, &p); err != nil {
			return err
		}
		// length is checked on the trimmed name
		if _, err := domain.NormalizeDisplayName(p.DisplayName); err != nil {
			return malformed("%v", err)
		}
		if env.RoomID == "" {
			return malformed("join requires roomId")
		}
		if err := domain.ValidateRoomID(env.RoomID); err != nil {
			return malformed("%v", err)
		}
	case KindOffer, KindAnswer:
		var sd webrtc.SessionDescription
		if err := bindRequired(env, &sd); err != nil {
			return err
		}
		if sd.SDP == "" {
			return malformed("%s without sdp", env.Kind)
		}
		if sd.Type.String() != string(env.Kind) {
			return malformed("%s carries sdp type %q", env.Kind, sd.Type.String())
		}
	case KindICECandidate:
		var c webrtc.ICECandidateInit
		if err := bindRequired(env, &c); err != nil {
			return err
		}
	case KindChat:
		var p ChatPayload
		if err := d.bindStrict(env, &p); err != nil {
			return err
		}
		limit := d.MaxChatBody
		if limit <= 0 {
			limit = DefaultMaxChatBody
		}
		if utf8.RuneCountInString(p.Body) > limit {
			return malformed("chat body longer than %d", limit)
		}
	case KindStreamUpdate:
		var p StreamUpdatePayload
		if err := d.bindStrict(env, &p); err != nil {
			return err
		}
	case KindMute:
		var p MutePayload
		if err := d.bindStrict(env, &p); err != nil {
			return err
		}
	case KindRemove, KindEnd:
		var p ReasonPayload
		if len(env.Payload) > 0 {
			if err := d.bindStrict(env, &p); err != nil {
				return err
			}
		}
	}
	return nil
}

func bindRequired(env Envelope, v any) error {
	if len(env.Payload) == 0 || string(env.Payload) == "null" {
		return malformed("%s requires a payload", env.Kind)
	}
	if err := env.Bind(v); err != nil {
		return malformed("%s payload: %v", env.Kind, err)
	}
	return nil
}

func (d Decoder) bindStrict(env Envelope, v any) error {
	if err := bindRequired(env, v); err != nil {
		return err
	}
	if err := validate.Struct(v); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return malformed("%s payload field %s failed %q", env.Kind, verrs[0].Field(), verrs[0].Tag())
		}
		return malformed("%s payload: %v", env.Kind, err)
	}
	return nil
}

// Encode serializes an envelope into a text frame.
func Encode(env Envelope) ([]byte, error) {
	return json.Marshal(env)
}

// ErrorEnvelope reports err to the originator of an envelope of kind.
func ErrorEnvelope(kind Kind, err error) Envelope {
	env, _ := New(KindError, "", "", ErrorPayload{
		Code:    domain.Code(err),
		Message: err.Error(),
		Kind:    kind,
	})
	return env
}
