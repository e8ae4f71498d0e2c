package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/mailrelay/internal/discord"
	"github.com/joshsymonds/mailrelay/internal/format"
	"github.com/joshsymonds/mailrelay/internal/mailbox"
	"github.com/joshsymonds/mailrelay/internal/relay"
)

type fakeRunner struct {
	res  relay.Result
	err  error
	opts []relay.Options
}

func (f *fakeRunner) Run(ctx context.Context, opts relay.Options) (relay.Result, error) {
	_ = ctx
	f.opts = append(f.opts, opts)
	return f.res, f.err
}

func do(t *testing.T, s *Server, method, target string) (*httptest.ResponseRecorder, map[string]any) {
	t.Helper()
	rec := httptest.NewRecorder()
	s.Handler().ServeHTTP(rec, httptest.NewRequest(method, target, nil))
	var body map[string]any
	if strings.HasPrefix(rec.Header().Get("Content-Type"), "application/json") {
		require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	}
	return rec, body
}

func TestHealthz(t *testing.T) {
	s := New(&fakeRunner{}, "", slogDiscard())
	rec, _ := do(t, s, http.MethodGet, "/healthz")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "OK", rec.Body.String())
}

func TestHookSuccess(t *testing.T) {
	runner := &fakeRunner{res: relay.Result{RunID: "r1", State: relay.StateIdle, Pending: 2}}
	s := New(runner, "", slogDiscard())

	rec, body := do(t, s, http.MethodPost, "/hook")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "r1", body["run_id"])
	assert.Equal(t, "idle", body["state"])
	require.Len(t, runner.opts, 1)
	require.NotNil(t, runner.opts[0].Formatter)
}

func TestHookFormatParam(t *testing.T) {
	runner := &fakeRunner{}
	s := New(runner, "embed", slogDiscard())

	rec, _ := do(t, s, http.MethodPost, "/hook?format=content")
	require.Equal(t, http.StatusOK, rec.Code)
	require.Len(t, runner.opts, 1)

	msg := mailbox.Message{Subject: "s", From: "f"}
	got := runner.opts[0].Formatter.Format(msg, "b")
	assert.Equal(t, format.Content.Format(msg, "b"), got)

	rec, body := do(t, s, http.MethodPost, "/hook?format=xml")
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "request", body["kind"])
	assert.Len(t, runner.opts, 1)
}

func TestHookErrors(t *testing.T) {
	cases := []struct {
		name   string
		err    error
		status int
		kind   string
	}{
		{"busy", relay.ErrRunInProgress, http.StatusConflict, "busy"},
		{"config", fmt.Errorf("%w: missing", relay.ErrConfiguration), http.StatusInternalServerError, "configuration"},
		{"delivery", &relay.DeliveryError{MessageID: "m", Status: 429, Err: &discord.StatusError{Status: 429}}, http.StatusInternalServerError, "delivery"},
		{"persistence", &relay.PersistenceError{Op: "write watermark", Err: errors.New("locked")}, http.StatusInternalServerError, "persistence"},
		{"mailbox", errors.New("search mailbox: quota"), http.StatusInternalServerError, "mailbox"},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			s := New(&fakeRunner{err: tc.err, res: relay.Result{State: relay.StateFailed}}, "", slogDiscard())
			rec, body := do(t, s, http.MethodPost, "/hook")
			assert.Equal(t, tc.status, rec.Code)
			assert.Equal(t, tc.kind, body["kind"])
			assert.NotEmpty(t, body["error"])
		})
	}
}

func TestHookRejectsGet(t *testing.T) {
	s := New(&fakeRunner{}, "", slogDiscard())
	rec, _ := do(t, s, http.MethodGet, "/hook")
	assert.Equal(t, http.StatusMethodNotAllowed, rec.Code)
}

func slogDiscard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}
