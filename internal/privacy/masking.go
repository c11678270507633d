package privacy

import (
	"strings"

	"dmrelay/internal/constants"
)

// MaskUserID masks a Slack user ID showing only the last 4 characters.
// Example: "U0123456789" -> "*******6789"
func MaskUserID(userID string) string {
	return maskString(userID, constants.DefaultIDMaskLength)
}

// MaskChannelID masks a channel ID but preserves the type prefix so logs
// still show whether it was a DM ("D"), public ("C") or group channel.
// Example: "D0123456789" -> "D******6789"
func MaskChannelID(channelID string) string {
	if channelID == "" {
		return ""
	}
	if len(channelID) <= 1 {
		return channelID
	}
	return string(channelID[0]) + maskString(channelID[1:], constants.DefaultIDMaskLength)
}

// MaskMessageTS masks a Slack message timestamp, keeping the fractional
// part for correlation while hiding the epoch seconds.
// Example: "1718000000.123456" -> "**********.123456"
func MaskMessageTS(ts string) string {
	if ts == "" {
		return ""
	}
	if idx := strings.Index(ts, "."); idx > 0 {
		return strings.Repeat("*", idx) + ts[idx:]
	}
	return maskString(ts, constants.DefaultIDMaskLength)
}

// MaskURL hides the path and query of a URL, keeping scheme and host.
// File download URLs carry tokens in the path and must not be logged whole.
func MaskURL(rawURL string) string {
	if rawURL == "" {
		return ""
	}
	idx := strings.Index(rawURL, "://")
	if idx < 0 {
		return maskString(rawURL, constants.DefaultIDMaskLength)
	}
	rest := rawURL[idx+3:]
	if slash := strings.Index(rest, "/"); slash >= 0 {
		return rawURL[:idx+3] + rest[:slash] + "/***"
	}
	return rawURL
}

// MaskSensitiveFields applies masking to well-known sensitive log fields,
// returning a copy of the map.
func MaskSensitiveFields(fields map[string]interface{}) map[string]interface{} {
	masked := make(map[string]interface{}, len(fields))
	for k, v := range fields {
		s, ok := v.(string)
		if !ok {
			masked[k] = v
			continue
		}
		switch k {
		case "user_id":
			masked[k] = MaskUserID(s)
		case "channel_id", "chat_id":
			masked[k] = MaskChannelID(s)
		case "message_ts", "preview_ts":
			masked[k] = MaskMessageTS(s)
		case "url", "download_url":
			masked[k] = MaskURL(s)
		default:
			masked[k] = v
		}
	}
	return masked
}

func maskString(s string, visible int) string {
	if s == "" {
		return ""
	}
	if len(s) <= visible {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", len(s)-visible) + s[len(s)-visible:]
}
