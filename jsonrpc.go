package studio

import (
	"encoding/json"
	"fmt"
)

// MustString is a type that enforces string representation for fields that can
// be either string or integer on the wire, such as JSON-RPC request IDs. It
// handles automatic conversion during JSON marshaling/unmarshaling.
type MustString string

// JSONRPCMessage represents a JSON-RPC 2.0 message captured from or sent to an
// inspected server. It can represent either a request, response, or
// notification depending on which fields are populated:
//   - Request: JSONRPC, ID, Method, and Params are set
//   - Response: JSONRPC, ID, and either Result or Error are set
//   - Notification: JSONRPC and Method are set (no ID)
type JSONRPCMessage struct {
	// JSONRPC must always be "2.0" per the JSON-RPC specification
	JSONRPC string `json:"jsonrpc"`
	// ID uniquely identifies request-response pairs and must be a string or number
	ID MustString `json:"id,omitempty"`
	// Method contains the RPC method name for requests and notifications
	Method string `json:"method,omitempty"`
	// Params contains the parameters for the method call as a raw JSON message
	Params json.RawMessage `json:"params,omitempty"`
	// Result contains the successful response data as a raw JSON message
	Result json.RawMessage `json:"result,omitempty"`
	// Error contains error details if the request failed
	Error *JSONRPCError `json:"error,omitempty"`
}

// JSONRPCError represents an error response in the JSON-RPC 2.0 protocol.
type JSONRPCError struct {
	// Code indicates the error type that occurred.
	Code int `json:"code"`
	// Message provides a short description of the error.
	Message string `json:"message"`
	// Data contains additional information about the error.
	Data map[string]any `json:"data,omitempty"`
}

// ElicitationCreateParams carries a server-initiated request for structured
// user input: a prompt message plus the schema the collected values must
// satisfy. The schema is expected, but not required, to pass
// CheckElicitationSchema.
type ElicitationCreateParams struct {
	// Message is the prompt shown to the user.
	Message string `json:"message"`
	// RequestedSchema describes the form to collect; the elicitation dialect
	// restricts it to a flat object of primitive fields.
	RequestedSchema *Schema `json:"requestedSchema"`
}

// ElicitationCreateResult is the client's answer to an elicitation request.
type ElicitationCreateResult struct {
	// Action is "accept", "decline" or "cancel".
	Action ElicitationAction `json:"action"`
	// Content holds the collected values when Action is accept.
	Content map[string]any `json:"content,omitempty"`
}

const (
	// JSONRPCVersion specifies the JSON-RPC protocol version used for communication.
	JSONRPCVersion = "2.0"

	// MethodElicitationCreate is the method name a server uses to request
	// structured input from the user.
	MethodElicitationCreate = "elicitation/create"

	methodPing = "ping"
)

// UnmarshalJSON implements json.Unmarshaler to convert JSON data into MustString,
// handling both string and numeric input formats.
func (m *MustString) UnmarshalJSON(data []byte) error {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}

	switch v := v.(type) {
	case string:
		*m = MustString(v)
	case float64:
		*m = MustString(fmt.Sprintf("%d", int(v)))
	case int:
		*m = MustString(fmt.Sprintf("%d", v))
	default:
		return fmt.Errorf("invalid type: %T", v)
	}

	return nil
}

// MarshalJSON implements json.Marshaler to convert MustString into its JSON
// representation, always encoding as a string value.
func (m MustString) MarshalJSON() ([]byte, error) {
	return json.Marshal(string(m))
}

func (j JSONRPCError) Error() string {
	return fmt.Sprintf("request error, code: %d, message: %s, data %v", j.Code, j.Message, j.Data)
}
