package jobs

import (
	"encoding/json"
	"fmt"
	"strings"
)

func EncodePayload(t JobType, payload any) (json.RawMessage, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}

	switch t {
	case JobClaimConfirmation:
		if _, ok := payload.(ClaimConfirmationPayload); !ok {
			if _, ok := payload.(*ClaimConfirmationPayload); !ok {
				return nil, ErrPayloadTypeMismatch
			}
		}

	case JobStoryDeleted:
		if _, ok := payload.(StoryDeletedPayload); !ok {
			if _, ok := payload.(*StoryDeletedPayload); !ok {
				return nil, ErrPayloadTypeMismatch
			}
		}
	}

	b, err := json.Marshal(payload)

	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
	}

	return json.RawMessage(b), nil
}

// DecodePayload unmarshals raw payload bytes into the typed payload struct for t.
func DecodePayload(t JobType, raw json.RawMessage) (any, error) {
	if !t.IsValid() {
		return nil, ErrInvalidJobType
	}
	if len(raw) == 0 {
		return nil, ErrInvalidJobPayload
	}

	switch t {
	case JobClaimConfirmation:
		var p ClaimConfirmationPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	case JobStoryDeleted:
		var p StoryDeletedPayload
		if err := json.Unmarshal(raw, &p); err != nil {
			return nil, fmt.Errorf("%w: %v", ErrInvalidJobPayload, err)
		}
		return p, nil

	default:
		return nil, ErrInvalidJobType
	}
}

// ValidatePayload performs minimal validation on decoded payloads.
func ValidatePayload(t JobType, payload any) error {
	if !t.IsValid() {
		return ErrInvalidJobType
	}

	trim := func(s string) string { return strings.TrimSpace(s) }

	switch t {
	case JobClaimConfirmation:
		var p ClaimConfirmationPayload
		switch v := payload.(type) {
		case ClaimConfirmationPayload:
			p = v
		case *ClaimConfirmationPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.StoryID) == "" || trim(p.UserID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	case JobStoryDeleted:
		var p StoryDeletedPayload
		switch v := payload.(type) {
		case StoryDeletedPayload:
			p = v
		case *StoryDeletedPayload:
			p = *v
		default:
			return ErrPayloadTypeMismatch
		}
		if trim(p.StoryID) == "" || trim(p.AuthorID) == "" {
			return ErrInvalidJobPayload
		}
		return nil

	default:
		return ErrInvalidJobType
	}
}
