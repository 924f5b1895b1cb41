package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/rryowa/dangbai_session/internal/metrics"
	"github.com/rryowa/dangbai_session/internal/models"
)

type staticTokens string

func (s staticTokens) AccessToken() (string, bool) {
	return string(s), s != ""
}

type fakeRefresher struct {
	mu    sync.Mutex
	stale []string
	token string
	err   error
}

func (f *fakeRefresher) Refresh(_ context.Context, stale string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stale = append(f.stale, stale)
	return f.token, f.err
}

func (f *fakeRefresher) calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.stale)
}

type hit struct {
	auth        string
	requestID   string
	apiKey      string
	contentType string
	body        []byte
}

type recordingServer struct {
	*httptest.Server
	mu   sync.Mutex
	hits []hit
}

func newRecordingServer(t *testing.T, handler func(w http.ResponseWriter, r *http.Request, n int)) *recordingServer {
	t.Helper()
	rs := &recordingServer{}
	rs.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		body, _ := io.ReadAll(r.Body)
		rs.mu.Lock()
		rs.hits = append(rs.hits, hit{
			auth:        r.Header.Get(models.MwAuthorizationHeader),
			requestID:   r.Header.Get(models.MwRequestIDHeader),
			apiKey:      r.Header.Get(models.MwAPIKeyHeader),
			contentType: r.Header.Get("Content-Type"),
			body:        body,
		})
		n := len(rs.hits)
		rs.mu.Unlock()
		handler(w, r, n)
	}))
	t.Cleanup(rs.Close)
	return rs
}

func (rs *recordingServer) recorded() []hit {
	rs.mu.Lock()
	defer rs.mu.Unlock()
	return append([]hit(nil), rs.hits...)
}

func writeEnvelope(w http.ResponseWriter, status int, message string, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(models.APIResponse[any]{
		Code:    status,
		Status:  status,
		Message: message,
		Data:    data,
		Path:    "/api/v1/posts",
	})
}

// acceptOnly answers 200 for the given bearer token and 401 otherwise.
func acceptOnly(token string) func(http.ResponseWriter, *http.Request, int) {
	return func(w http.ResponseWriter, r *http.Request, _ int) {
		if r.Header.Get(models.MwAuthorizationHeader) != models.MwBearerPrefix+token {
			writeEnvelope(w, http.StatusUnauthorized, "Token expired", nil)
			return
		}
		writeEnvelope(w, http.StatusOK, "OK", map[string]string{"title": "hello"})
	}
}

func newTestDispatcher(t *testing.T, baseURL string, tokens TokenSource, refresher Refresher, cfg Config) *Dispatcher {
	t.Helper()
	cfg.BaseURL = baseURL
	d, err := NewDispatcher(cfg, tokens, refresher, zap.NewNop().Sugar())
	require.NoError(t, err)
	return d
}

func TestDoRetriesOnceWithRefreshedToken(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	before := testutil.ToFloat64(metrics.RequestRetries.WithLabelValues("success"))
	got, err := Call[map[string]string](context.Background(), d, Request{Method: http.MethodGet, Path: "/posts"})
	require.NoError(t, err)
	assert.Equal(t, "hello", got["title"])

	hits := srv.recorded()
	require.Len(t, hits, 2)
	assert.Equal(t, "Bearer A1", hits[0].auth)
	assert.Equal(t, "Bearer A2", hits[1].auth)
	assert.NotEmpty(t, hits[0].requestID)
	assert.Equal(t, hits[0].requestID, hits[1].requestID)
	assert.Equal(t, []string{"A1"}, ref.stale)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestRetries.WithLabelValues("success")))
}

func TestDoDoesNotRefreshTwice(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("never"))
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/posts"})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Len(t, srv.recorded(), 2)
	assert.Equal(t, 1, ref.calls())
}

func TestDoSurfacesFirstUnauthorizedWhenRefreshFails(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	refreshErr := errors.New("refresh rejected")
	ref := &fakeRefresher{err: refreshErr}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/posts"})
	require.ErrorIs(t, err, ErrUnauthorized)
	require.ErrorIs(t, err, refreshErr)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusUnauthorized, apiErr.Status)
	assert.Equal(t, "Token expired", apiErr.Message)
	assert.Equal(t, "/api/v1/posts", apiErr.Path)
	assert.Len(t, srv.recorded(), 1)
}

type blockingRefresher struct{}

func (blockingRefresher) Refresh(ctx context.Context, _ string) (string, error) {
	<-ctx.Done()
	return "", ctx.Err()
}

func TestDoCallerDeadlineDuringRefreshIsTransportFailure(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), blockingRefresher{}, Config{})

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	before := testutil.ToFloat64(metrics.RequestRetries.WithLabelValues("abandoned"))
	_, err := d.Do(ctx, Request{Method: http.MethodGet, Path: "/posts"})
	require.ErrorIs(t, err, ErrTransport)
	assert.NotErrorIs(t, err, ErrUnauthorized)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.True(t, apiErr.Timeout)
	assert.Equal(t, displayMessages[CategoryTransport], apiErr.DisplayMessage())
	assert.Len(t, srv.recorded(), 1)
	assert.Equal(t, before+1, testutil.ToFloat64(metrics.RequestRetries.WithLabelValues("abandoned")))
}

func TestDoCallerCancelDuringRefreshIsTransportFailure(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), blockingRefresher{}, Config{})

	ctx, cancel := context.WithCancel(context.Background())
	time.AfterFunc(20*time.Millisecond, cancel)

	_, err := d.Do(ctx, Request{Method: http.MethodGet, Path: "/posts"})
	require.ErrorIs(t, err, ErrTransport)
	require.ErrorIs(t, err, context.Canceled)

	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.False(t, apiErr.Timeout)
}

func TestDoNeverRefreshesOnForbidden(t *testing.T) {
	srv := newRecordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		writeEnvelope(w, http.StatusForbidden, "Access denied", nil)
	})
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/admin/dashboard"})
	require.ErrorIs(t, err, ErrForbidden)
	assert.Zero(t, ref.calls())

	apiErr, _ := AsAPIError(err)
	assert.Equal(t, "You do not have permission to access this resource.", apiErr.DisplayMessage())
}

func TestDoClassifiesStatuses(t *testing.T) {
	tests := []struct {
		status int
		want   error
	}{
		{http.StatusNotFound, ErrNotFound},
		{http.StatusBadRequest, ErrValidation},
		{http.StatusConflict, ErrValidation},
		{http.StatusTooManyRequests, ErrClient},
		{http.StatusInternalServerError, ErrServer},
		{http.StatusBadGateway, ErrServer},
	}
	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			srv := newRecordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
				writeEnvelope(w, tt.status, "nope", nil)
			})
			ref := &fakeRefresher{token: "A2"}
			d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

			_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
			require.ErrorIs(t, err, tt.want)
			assert.Zero(t, ref.calls())
		})
	}
}

func TestDoTransportFailureDoesNotRefresh(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, url, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/posts"})
	require.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, ref.calls())

	apiErr, _ := AsAPIError(err)
	assert.Zero(t, apiErr.Status)
	assert.False(t, apiErr.Timeout)
}

func TestDoTimeoutIsTransportFailure(t *testing.T) {
	srv := newRecordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		time.Sleep(200 * time.Millisecond)
		writeEnvelope(w, http.StatusUnauthorized, "late", nil)
	})
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{Timeout: 20 * time.Millisecond})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/slow"})
	require.ErrorIs(t, err, ErrTransport)
	assert.Zero(t, ref.calls())

	apiErr, _ := AsAPIError(err)
	assert.True(t, apiErr.Timeout)
}

func TestDoReplaysMultipartBodyWithCallerContentType(t *testing.T) {
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	require.NoError(t, mw.WriteField("title", "cat"))
	require.NoError(t, mw.Close())
	payload := append([]byte(nil), buf.Bytes()...)

	srv := newRecordingServer(t, acceptOnly("A2"))
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), &fakeRefresher{token: "A2"}, Config{})

	resp, err := d.Do(context.Background(), Request{
		Method:      http.MethodPost,
		Path:        "/posts",
		Body:        &buf,
		ContentType: mw.FormDataContentType(),
	})
	require.NoError(t, err)
	resp.Body.Close()

	hits := srv.recorded()
	require.Len(t, hits, 2)
	for _, h := range hits {
		assert.Equal(t, mw.FormDataContentType(), h.contentType)
		assert.Equal(t, payload, h.body)
	}
}

func TestDoEncodesJSON(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A1"))
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), nil, Config{APIKey: "secret"})

	resp, err := d.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/posts",
		JSON:   map[string]string{"title": "cat"},
	})
	require.NoError(t, err)
	resp.Body.Close()

	hits := srv.recorded()
	require.Len(t, hits, 1)
	assert.Equal(t, "application/json", hits[0].contentType)
	assert.JSONEq(t, `{"title":"cat"}`, string(hits[0].body))
	assert.Equal(t, "secret", hits[0].apiKey)
}

func TestDoRejectsJSONAndRawBodyTogether(t *testing.T) {
	d := newTestDispatcher(t, "http://localhost", staticTokens("A1"), nil, Config{})

	_, err := d.Do(context.Background(), Request{
		Method: http.MethodPost,
		Path:   "/posts",
		JSON:   map[string]string{},
		Body:   bytes.NewReader(nil),
	})
	require.Error(t, err)
}

func TestDoSkipAuthSendsNoTokenAndNeverRefreshes(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A1"))
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: PathLogin, SkipAuth: true})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, ref.calls())

	hits := srv.recorded()
	require.Len(t, hits, 1)
	assert.Empty(t, hits[0].auth)
}

func TestDoNoRefreshAttachesTokenOnly(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), ref, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodPost, Path: PathLogout, NoRefresh: true})
	require.ErrorIs(t, err, ErrUnauthorized)
	assert.Zero(t, ref.calls())

	hits := srv.recorded()
	require.Len(t, hits, 1)
	assert.Equal(t, "Bearer A1", hits[0].auth)
}

func TestDoWithoutSessionSendsAnonymously(t *testing.T) {
	srv := newRecordingServer(t, acceptOnly("A2"))
	ref := &fakeRefresher{token: "A2"}
	d := newTestDispatcher(t, srv.URL, staticTokens(""), ref, Config{})

	resp, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/posts"})
	require.NoError(t, err)
	resp.Body.Close()

	hits := srv.recorded()
	require.Len(t, hits, 2)
	assert.Empty(t, hits[0].auth)
	assert.Equal(t, []string{""}, ref.stale)
}

func TestCallWithEmptyBodyReturnsZero(t *testing.T) {
	srv := newRecordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		w.WriteHeader(http.StatusNoContent)
	})
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), nil, Config{})

	got, err := Call[models.User](context.Background(), d, Request{Method: http.MethodPost, Path: PathLogout})
	require.NoError(t, err)
	assert.Zero(t, got.UserID)
}

func TestErrorWithoutEnvelopeKeepsStatus(t *testing.T) {
	srv := newRecordingServer(t, func(w http.ResponseWriter, _ *http.Request, _ int) {
		http.Error(w, "boom", http.StatusInternalServerError)
	})
	d := newTestDispatcher(t, srv.URL, staticTokens("A1"), nil, Config{})

	_, err := d.Do(context.Background(), Request{Method: http.MethodGet, Path: "/x"})
	apiErr, ok := AsAPIError(err)
	require.True(t, ok)
	assert.Equal(t, http.StatusInternalServerError, apiErr.Status)
	assert.Empty(t, apiErr.Message)
	assert.Equal(t, "server (500): Internal Server Error", apiErr.Error())
}
