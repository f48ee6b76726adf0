package models

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseAction(t *testing.T) {
	tests := []struct {
		in      string
		want    Action
		wantErr bool
	}{
		{in: "INSERT", want: ActionInsert},
		{in: "update", want: ActionUpdate},
		{in: " Delete ", want: ActionDelete},
		{in: "UPSERT", wantErr: true},
		{in: "", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseAction(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParsePriority(t *testing.T) {
	tests := []struct {
		in      string
		want    Priority
		wantErr bool
	}{
		{in: "", want: PriorityNormal},
		{in: "critical", want: PriorityCritical},
		{in: "HIGH", want: PriorityHigh},
		{in: "low", want: PriorityLow},
		{in: "urgent", wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParsePriority(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	assert.Equal(t, "priority(7)", Priority(7).String())
}

func TestPriority_JSON(t *testing.T) {
	data, err := json.Marshal(PriorityHigh)
	require.NoError(t, err)
	assert.JSONEq(t, `"high"`, string(data))

	tests := []struct {
		name    string
		in      string
		want    Priority
		wantErr bool
	}{
		{name: "by name", in: `"low"`, want: PriorityLow},
		{name: "numeric form", in: `0`, want: PriorityCritical},
		{name: "numeric out of range", in: `9`, wantErr: true},
		{name: "unknown name", in: `"urgent"`, wantErr: true},
		{name: "wrong type", in: `true`, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var p Priority
			err := json.Unmarshal([]byte(tt.in), &p)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, p)
		})
	}
}

func TestOperation_Clone(t *testing.T) {
	op := &Operation{ID: "a", Payload: json.RawMessage(`{"x":1}`)}
	c := op.Clone()

	c.Payload[2] = 'y'
	c.ID = "b"
	assert.Equal(t, `{"x":1}`, string(op.Payload))
	assert.Equal(t, "a", op.ID)

	var nilOp *Operation
	assert.Nil(t, nilOp.Clone())
}

func TestOperation_Before(t *testing.T) {
	base := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	tests := []struct {
		name string
		a, b Operation
		want bool
	}{
		{
			name: "higher priority first",
			a:    Operation{Priority: PriorityHigh, Timestamp: base.Add(time.Hour)},
			b:    Operation{Priority: PriorityNormal, Timestamp: base},
			want: true,
		},
		{
			name: "older first on equal priority",
			a:    Operation{Priority: PriorityNormal, Timestamp: base},
			b:    Operation{Priority: PriorityNormal, Timestamp: base.Add(time.Second)},
			want: true,
		},
		{
			name: "sequence breaks timestamp ties",
			a:    Operation{Priority: PriorityNormal, Timestamp: base, Seq: 2},
			b:    Operation{Priority: PriorityNormal, Timestamp: base, Seq: 1},
			want: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.a.Before(&tt.b))
		})
	}
}

func TestOperation_Due(t *testing.T) {
	now := time.Date(2024, 1, 1, 12, 0, 0, 0, time.UTC)

	assert.True(t, (&Operation{}).Due(now))
	assert.True(t, (&Operation{NextAttemptAt: now}).Due(now))
	assert.False(t, (&Operation{NextAttemptAt: now.Add(time.Second)}).Due(now))
}
