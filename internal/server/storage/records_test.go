package storage

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestRecordID(t *testing.T) {
	tests := []struct {
		name    string
		payload string
		want    string
		wantErr bool
	}{
		{name: "string id", payload: `{"id":"p1"}`, want: "p1"},
		{name: "number id", payload: `{"id": 42}`, want: "42"},
		{name: "big number keeps precision", payload: `{"id": 12345678901234567890}`, want: "12345678901234567890"},
		{name: "missing", payload: `{"name":"x"}`, wantErr: true},
		{name: "blank", payload: `{"id":"  "}`, wantErr: true},
		{name: "object id", payload: `{"id":{"a":1}}`, wantErr: true},
		{name: "not an object", payload: `[1,2]`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RecordID(json.RawMessage(tt.payload))
			if tt.wantErr {
				assert.ErrorIs(t, err, ErrMissingRecordID)
				return
			}
			assert.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
