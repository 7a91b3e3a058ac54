package wa

import (
	"fmt"
	"strings"
)

// widStrategy extracts a raw identifier from one possible WID shape.
type widStrategy func(wid any) (string, bool)

// widStrategies are tried in order; the first match wins.
var widStrategies = []widStrategy{
	widFromString,
	widFromSerialized,
	widFromUser,
	widFromStringer,
}

func widFromString(wid any) (string, bool) {
	s, ok := wid.(string)
	return s, ok && s != ""
}

func widFromSerialized(wid any) (string, bool) {
	m, ok := wid.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m["_serialized"].(string)
	return s, ok && s != ""
}

func widFromUser(wid any) (string, bool) {
	m, ok := wid.(map[string]any)
	if !ok {
		return "", false
	}
	s, ok := m["user"].(string)
	return s, ok && s != ""
}

func widFromStringer(wid any) (string, bool) {
	st, ok := wid.(fmt.Stringer)
	if !ok {
		return "", false
	}
	s := st.String()
	return s, s != ""
}

// WIDString returns the serialized form of wid, or "" when no strategy applies.
func WIDString(wid any) string {
	if wid == nil {
		return ""
	}
	for _, extract := range widStrategies {
		if s, ok := extract(wid); ok {
			return s
		}
	}
	return ""
}

// FormatWID reduces wid to the account's phone number digits. The domain and
// any device suffix ("123:4@s.whatsapp.net") are dropped before filtering.
func FormatWID(wid any) string {
	s := WIDString(wid)
	if s == "" {
		return ""
	}
	user, _ := SplitChatID(s)
	if i := strings.IndexByte(user, ':'); i >= 0 {
		user = user[:i]
	}
	return DigitsOnly(user)
}
