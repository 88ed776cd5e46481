package realtime

import (
	"encoding/json"
	"fmt"
	"strconv"
)

// Namespaces served by the socket endpoint.
const (
	NamespaceAuth    = "/auth"
	NamespaceMessage = "/message"
)

// Event names.
const (
	EventSessionRegister         = "session:register"
	EventSessionRegisterSuccess  = "session:register_success"
	EventSessionComplete         = "session:complete"
	EventMessageSubscribe        = "message:subscribe"
	EventMessageSubscribeSuccess = "message:subscribe_success"
	EventNewMessage              = "message:new"
	EventError                   = "error"
)

// SessionRegisterPayload is both the session:register request and its
// acknowledgement.
type SessionRegisterPayload struct {
	SessionID string `json:"sessionId"`
}

// SubscribePayload is both the message:subscribe request and its
// acknowledgement.
type SubscribePayload struct {
	UserID FlexibleID `json:"userId"`
}

// ErrorPayload is emitted as "error" when a request is rejected.
type ErrorPayload struct {
	Message string `json:"message"`
}

// FlexibleID is an int64 id that browsers may send either as a JSON number
// or as a numeric string.
type FlexibleID int64

func (id *FlexibleID) UnmarshalJSON(b []byte) error {
	var n json.Number
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		n = json.Number(s)
	} else if err := json.Unmarshal(b, &n); err != nil {
		return err
	}
	if n == "" {
		*id = 0
		return nil
	}
	v, err := strconv.ParseInt(string(n), 10, 64)
	if err != nil {
		return fmt.Errorf("invalid id %q: %w", n, err)
	}
	*id = FlexibleID(v)
	return nil
}

func (id FlexibleID) String() string {
	return strconv.FormatInt(int64(id), 10)
}

func decodeAny(input any, out any) error {
	raw, err := json.Marshal(input)
	if err != nil {
		return err
	}
	return json.Unmarshal(raw, out)
}
