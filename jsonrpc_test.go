package studio_test

import (
	"encoding/json"
	"testing"

	studio "github.com/Epistates/turbomcpstudio-sub004"
)

func TestMustStringUnmarshal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    studio.MustString
		wantErr bool
	}{
		{
			name:  "string id",
			input: `"abc"`,
			want:  "abc",
		},
		{
			name:  "numeric id",
			input: `42`,
			want:  "42",
		},
		{
			name:    "object id",
			input:   `{}`,
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var got studio.MustString
			err := json.Unmarshal([]byte(tt.input), &got)
			if (err != nil) != tt.wantErr {
				t.Fatalf("UnmarshalJSON() error = %v, wantErr %v", err, tt.wantErr)
			}
			if got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}

func TestJSONRPCMessageDecodeMixedIDs(t *testing.T) {
	// Servers are split on whether IDs are strings or numbers; both must land
	// in the same history key space so responses correlate.
	var req, resp studio.JSONRPCMessage
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":7,"method":"ping"}`), &req); err != nil {
		t.Fatalf("failed to unmarshal request: %v", err)
	}
	if err := json.Unmarshal([]byte(`{"jsonrpc":"2.0","id":"7","result":{}}`), &resp); err != nil {
		t.Fatalf("failed to unmarshal response: %v", err)
	}
	if req.ID != resp.ID {
		t.Errorf("request id %q does not match response id %q", req.ID, resp.ID)
	}
}
