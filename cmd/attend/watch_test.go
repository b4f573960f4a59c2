package main

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/session"
	"github.com/teslashibe/go-attend/pkg/verify"
)

func TestStatusURL(t *testing.T) {
	tests := []struct {
		listen string
		want   string
	}{
		{":8090", "ws://localhost:8090/ws/status"},
		{"0.0.0.0:9000", "ws://localhost:9000/ws/status"},
		{"kiosk.local:8090", "ws://kiosk.local:8090/ws/status"},
		{"garbage", "ws://localhost:8090/ws/status"},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, statusURL(tt.listen), tt.listen)
	}
}

func TestFormatStatus(t *testing.T) {
	st := session.Status{
		State:       session.Live,
		Admission:   admission.MultiFace,
		FaceCount:   2,
		Warning:     verify.MultiFaceMessage(2),
		LastOutcome: &verify.Outcome{Kind: verify.KindRemoteRejected},
		UpdatedAt:   time.Date(2026, 10, 19, 9, 0, 0, 0, time.UTC),
	}

	line := formatStatus(st)
	assert.Contains(t, line, "state=live")
	assert.Contains(t, line, "admission=multi_face")
	assert.Contains(t, line, "faces=2")
	assert.Contains(t, line, "last=remote_rejected")
	assert.NotContains(t, line, "[ready]")
}

func TestReport(t *testing.T) {
	assert.NoError(t, report(verify.Outcome{Success: true, Kind: verify.KindSuccess, Message: verify.MsgSuccess}, false))
	assert.Error(t, report(verify.NoFace(), false))
	assert.Error(t, report(verify.MultiFace(3), true))
}
