package ping

import (
	"strings"

	"github.com/disgoorg/snowflake/v2"
	"github.com/robalyx/pingbot/internal/bot/constants"
)

// ConfirmButtonID returns the custom ID of the confirm button of a prompt.
func ConfirmButtonID(nonce string) string {
	return constants.PingConfirmButtonPrefix + constants.CustomIDSeparator + nonce
}

// CancelButtonID returns the custom ID of the cancel button of a prompt.
func CancelButtonID(nonce string) string {
	return constants.PingCancelButtonPrefix + constants.CustomIDSeparator + nonce
}

// StopButtonID returns the custom ID of the stop button bound to owner.
func StopButtonID(owner snowflake.ID) string {
	return constants.StopButtonPrefix + owner.String()
}

// ParsePromptButtonID splits a confirm or cancel custom ID into its nonce and
// whether it confirms. ok is false for any other custom ID.
func ParsePromptButtonID(customID string) (nonce string, confirm bool, ok bool) {
	prefix, nonce, found := strings.Cut(customID, constants.CustomIDSeparator)
	if !found || nonce == "" {
		return "", false, false
	}

	switch prefix {
	case constants.PingConfirmButtonPrefix:
		return nonce, true, true
	case constants.PingCancelButtonPrefix:
		return nonce, false, true
	default:
		return "", false, false
	}
}

// ParseStopButtonID extracts the owner of a stop button custom ID.
func ParseStopButtonID(customID string) (snowflake.ID, bool) {
	raw, found := strings.CutPrefix(customID, constants.StopButtonPrefix)
	if !found {
		return 0, false
	}

	owner, err := snowflake.Parse(raw)
	if err != nil || owner == 0 {
		return 0, false
	}

	return owner, true
}
