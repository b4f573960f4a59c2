package web

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-attend/internal/log"
	"github.com/teslashibe/go-attend/pkg/admission"
	"github.com/teslashibe/go-attend/pkg/camera"
	"github.com/teslashibe/go-attend/pkg/detection"
	"github.com/teslashibe/go-attend/pkg/history"
	"github.com/teslashibe/go-attend/pkg/metrics"
	"github.com/teslashibe/go-attend/pkg/session"
	"github.com/teslashibe/go-attend/pkg/verify"
)

type stubSubmitter struct {
	counter verify.Counter
}

func (s *stubSubmitter) Submit(ctx context.Context, req verify.Request) verify.Outcome {
	s.counter.Inc()
	return verify.Outcome{Success: true, Kind: verify.KindSuccess, Message: verify.MsgSuccess, Timestamp: "10:00:00"}
}

func (s *stubSubmitter) Refreshes() *verify.Counter { return &s.counter }

type stubLister struct {
	err error
}

func (l stubLister) List(ctx context.Context, f history.Filter) ([]history.Record, error) {
	if l.err != nil {
		return nil, l.err
	}
	return []history.Record{{AttendanceID: 1, Date: fmt.Sprintf("%04d-%02d-%02d", f.Year, f.Month, f.Day), Status: "present"}}, nil
}

type fixture struct {
	srv    *Server
	ctrl   *session.Controller
	det    *detection.Mock
	opener *camera.MockOpener
}

func newFixture(t *testing.T, opts ...Option) *fixture {
	t.Helper()
	det := detection.NewMock(1)
	opener := &camera.MockOpener{}
	cfg := session.Config{
		Admission:    admission.Config{Threshold: 3, Interval: 5 * time.Millisecond},
		StillTimeout: time.Second,
	}
	ctrl := session.New(cfg, opener, detection.NewAdapter(det.Loader(), log.Discard()), &stubSubmitter{},
		session.WithLogger(log.Discard()))
	t.Cleanup(func() { _ = ctrl.Close() })

	reg := prometheus.NewRegistry()
	require.NoError(t, metrics.Register(reg))

	return &fixture{
		srv:    NewServer(DefaultConfig(), ctrl, reg, opts...),
		ctrl:   ctrl,
		det:    det,
		opener: opener,
	}
}

func (f *fixture) do(t *testing.T, method, path string) (*http.Response, []byte) {
	t.Helper()
	resp, err := f.srv.App().Test(httptest.NewRequest(method, path, nil), 5000)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	resp.Body.Close()
	return resp, body
}

func TestStatus_Idle(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodGet, "/api/status")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var st map[string]any
	require.NoError(t, json.Unmarshal(body, &st))
	assert.Equal(t, "idle", st["state"])
	assert.Equal(t, "unknown", st["admission"])
	assert.Equal(t, false, st["can_capture"])
}

func TestStart_CameraUnavailable(t *testing.T) {
	f := newFixture(t)
	f.opener.Err = fmt.Errorf("%w: denied", camera.ErrUnavailable)

	resp, body := f.do(t, http.MethodPost, "/api/session/start")
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var e errorBody
	require.NoError(t, json.Unmarshal(body, &e))
	assert.Equal(t, "camera_unavailable", e.Kind)
	assert.Equal(t, session.Idle, f.ctrl.State())
}

func TestCheckInFlow(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/session/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, f.ctrl.CanCapture, 2*time.Second, time.Millisecond)

	resp, body := f.do(t, http.MethodGet, "/api/preview")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, camera.FormatJPEG, resp.Header.Get("Content-Type"))
	assert.Equal(t, "frame", string(body))

	resp, body = f.do(t, http.MethodPost, "/api/session/capture")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var out verify.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.True(t, out.Success)
	assert.Equal(t, "10:00:00", out.Timestamp)
	assert.Equal(t, session.Idle, f.ctrl.State())
	assert.EqualValues(t, 1, f.ctrl.RefreshCount())
}

func TestCapture_Blocked(t *testing.T) {
	f := newFixture(t)
	f.det.SetCounts(3)

	resp, _ := f.do(t, http.MethodPost, "/api/session/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Eventually(t, func() bool { return f.ctrl.Admission() == admission.MultiFace }, 2*time.Second, time.Millisecond)

	resp, body := f.do(t, http.MethodPost, "/api/session/capture")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)

	var out verify.Outcome
	require.NoError(t, json.Unmarshal(body, &out))
	assert.Equal(t, verify.KindMultiFace, out.Kind)
	assert.Equal(t, 3, out.FaceCount)
	assert.Equal(t, session.Live, f.ctrl.State())
}

func TestCapture_NotLive(t *testing.T) {
	f := newFixture(t)

	resp, body := f.do(t, http.MethodPost, "/api/session/capture")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
	assert.Contains(t, string(body), "not_live")

	resp, _ = f.do(t, http.MethodGet, "/api/preview")
	assert.Equal(t, http.StatusConflict, resp.StatusCode)
}

func TestCancel(t *testing.T) {
	f := newFixture(t)

	resp, _ := f.do(t, http.MethodPost, "/api/session/start")
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp, body := f.do(t, http.MethodPost, "/api/session/cancel")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), `"state":"idle"`)
	assert.True(t, f.opener.Last().Closed())
}

func TestHistory(t *testing.T) {
	f := newFixture(t, WithHistory(stubLister{}))

	resp, body := f.do(t, http.MethodGet, "/api/history?year=2026&month=10&day=19")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "2026-10-19")

	resp, _ = f.do(t, http.MethodGet, "/api/history?month=13")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp, _ = f.do(t, http.MethodGet, "/api/history?day=abc")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestHistory_Errors(t *testing.T) {
	resp, _ := newFixture(t).do(t, http.MethodGet, "/api/history")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)

	f := newFixture(t, WithHistory(stubLister{err: history.ErrUnauthorized}))
	resp, body := f.do(t, http.MethodGet, "/api/history")
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
	assert.Contains(t, string(body), "session_expired")
}

func TestMetricsEndpoint(t *testing.T) {
	f := newFixture(t)
	f.opener.Err = camera.ErrUnavailable
	f.do(t, http.MethodPost, "/api/session/start")

	resp, body := f.do(t, http.MethodGet, "/metrics")
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, string(body), "attend_session_starts_total")
}

func TestWebSocketRequiresUpgrade(t *testing.T) {
	resp, _ := newFixture(t).do(t, http.MethodGet, "/ws/status")
	assert.Equal(t, http.StatusUpgradeRequired, resp.StatusCode)
}
