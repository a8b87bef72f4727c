package contact

import (
	"encoding/json"
	"strings"
)

// Targets is a list of phone numbers or group ids. It decodes from a single
// string, a comma separated string or an array of strings.
type Targets []string

// UnmarshalJSON implements json.Unmarshaler
func (t *Targets) UnmarshalJSON(data []byte) error {
	var one string
	if err := json.Unmarshal(data, &one); err == nil {
		*t = splitTargets(one)
		return nil
	}
	var many []string
	if err := json.Unmarshal(data, &many); err != nil {
		return err
	}
	out := make(Targets, 0, len(many))
	for _, m := range many {
		out = append(out, splitTargets(m)...)
	}
	*t = out
	return nil
}

func splitTargets(s string) Targets {
	var out Targets
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// SubscribePresenceRequest is the body of subscribe-presence
type SubscribePresenceRequest struct {
	Phone   Targets `json:"phone"`
	IsGroup bool    `json:"isGroup"`
	All     bool    `json:"all"`
}

// SubscribePresenceResponse reports how many targets were subscribed
type SubscribePresenceResponse struct {
	Subscribed int `json:"subscribed"`
}
