package server

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forPelevin/hlscene/internal/config"
	"github.com/forPelevin/hlscene/internal/jobs"
	"github.com/forPelevin/hlscene/internal/service"
	"github.com/forPelevin/hlscene/internal/storage"
	"github.com/forPelevin/hlscene/internal/types"
	"github.com/forPelevin/hlscene/internal/usecase"
	"github.com/forPelevin/hlscene/internal/worker"
)

type stubProcessor struct {
	release chan struct{}
	seen    chan usecase.Input
}

func (p *stubProcessor) Run(_ context.Context, in usecase.Input) (usecase.Result, error) {
	if p.seen != nil {
		p.seen <- in
	}
	if p.release != nil {
		<-p.release
	}
	text := "what a goal"
	idx := 2
	md := types.Metadata{
		OriginalVideo: in.OriginalName,
		TotalDuration: 120,
		HasAudio:      true,
		Transcript:    &text,
		Highlights: []types.HighlightMetadata{
			{ID: "001", Filename: "highlight_001.mp4", StartTime: 60, EndTime: 90, Duration: 30, SourceSceneIndex: &idx, Origin: types.OriginScene},
		},
	}
	for name, body := range map[string]string{"highlight_001.mp4": "clip", usecase.TranscriptFile: text} {
		if err := os.WriteFile(filepath.Join(in.OutDir, name), []byte(body), 0o644); err != nil {
			return usecase.Result{}, err
		}
	}
	return usecase.Result{Metadata: md, Files: []string{"highlight_001.mp4", usecase.TranscriptFile}}, nil
}

func newTestServer(t *testing.T, p service.Processor) *httptest.Server {
	t.Helper()
	tmp := t.TempDir()
	st, err := storage.NewLocalStorage(filepath.Join(tmp, "uploads"), filepath.Join(tmp, "results"))
	require.NoError(t, err)
	runner := worker.New(worker.Config{QueueSize: 4, Concurrency: 1}, zerolog.Nop())
	t.Cleanup(runner.Close)

	svc := service.New(service.Deps{
		Store:     jobs.NewMemoryStore(),
		Runner:    runner,
		Storage:   st,
		Processor: p,
		CacheDir:  filepath.Join(tmp, "cache"),
		Log:       zerolog.Nop(),
	})
	srv := httptest.NewServer(NewRouter(&App{
		Service:       svc,
		Defaults:      config.Default().Selection,
		MaxUploadSize: 1 << 20,
		Log:           zerolog.Nop(),
	}))
	t.Cleanup(srv.Close)
	return srv
}

func upload(t *testing.T, srv *httptest.Server, filename string, fields map[string]string) *http.Response {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	if filename != "" {
		fw, err := mw.CreateFormFile("video", filename)
		require.NoError(t, err)
		_, _ = fw.Write([]byte("fake video"))
	}
	for k, v := range fields {
		require.NoError(t, mw.WriteField(k, v))
	}
	require.NoError(t, mw.Close())

	resp, err := http.Post(srv.URL+"/api/upload", mw.FormDataContentType(), &body)
	require.NoError(t, err)
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	defer resp.Body.Close()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func get(t *testing.T, url string) *http.Response {
	t.Helper()
	resp, err := http.Get(url)
	require.NoError(t, err)
	return resp
}

func TestUploadToDownload(t *testing.T) {
	p := &stubProcessor{seen: make(chan usecase.Input, 1)}
	srv := newTestServer(t, p)

	resp := upload(t, srv, "match.mp4", map[string]string{"num_highlights": "1", "min_duration": "15"})
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	up := decode[uploadResponse](t, resp)
	require.NotEmpty(t, up.JobID)
	assert.Equal(t, jobs.StatusQueued, up.Status)

	in := <-p.seen
	assert.Equal(t, 1, in.ClipsN)
	assert.Equal(t, 15.0, in.MinClip)
	assert.Equal(t, 30.0, in.MaxClip, "unset fields use the configured defaults")

	require.Eventually(t, func() bool {
		st := decode[jobs.Job](t, get(t, srv.URL+"/api/status/"+up.JobID))
		return st.Status == jobs.StatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	resp = get(t, srv.URL+"/api/results/"+up.JobID)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	res := decode[resultsResponse](t, resp)
	require.Len(t, res.Highlights, 1)
	assert.Equal(t, "/api/download/"+up.JobID+"/highlight_001.mp4", res.Highlights[0].URL)
	assert.Equal(t, 60.0, res.Highlights[0].StartTime)
	require.NotNil(t, res.TranscriptURL)

	resp = get(t, srv.URL+res.Highlights[0].URL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Disposition"), "highlight_001.mp4")
	b, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "clip", string(b))

	resp = get(t, srv.URL+*res.TranscriptURL)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	b, _ = io.ReadAll(resp.Body)
	resp.Body.Close()
	assert.Equal(t, "what a goal", string(b))

	resp = get(t, srv.URL+"/api/download/"+up.JobID+"/missing.mp4")
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
	resp.Body.Close()
}

func TestUploadValidation(t *testing.T) {
	srv := newTestServer(t, &stubProcessor{})

	cases := []struct {
		name     string
		filename string
		fields   map[string]string
	}{
		{"missing file", "", nil},
		{"bad extension", "notes.txt", nil},
		{"bad number", "a.mp4", map[string]string{"num_highlights": "three"}},
		{"zero highlights", "a.mp4", map[string]string{"num_highlights": "0"}},
		{"min above max", "a.mp4", map[string]string{"min_duration": "40", "max_duration": "30"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			resp := upload(t, srv, tc.filename, tc.fields)
			assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
			e := decode[map[string]string](t, resp)
			assert.NotEmpty(t, e["error"])
		})
	}
}

func TestResultsPendingAndUnknown(t *testing.T) {
	release := make(chan struct{})
	srv := newTestServer(t, &stubProcessor{release: release})
	defer close(release)

	up := decode[uploadResponse](t, upload(t, srv, "a.webm", nil))

	resp := get(t, srv.URL+"/api/results/"+up.JobID)
	require.Equal(t, http.StatusAccepted, resp.StatusCode)
	pending := decode[pendingResponse](t, resp)
	assert.NotEqual(t, jobs.StatusComplete, pending.Status)

	resp = get(t, srv.URL+"/api/download/"+up.JobID+"/highlight_001.mp4")
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()

	for _, path := range []string{"/api/status/nope", "/api/results/nope", "/api/transcript/nope", "/api/download/nope/x.mp4"} {
		resp := get(t, srv.URL+path)
		assert.Equal(t, http.StatusNotFound, resp.StatusCode, path)
		resp.Body.Close()
	}
}

func TestCleanupAndHealth(t *testing.T) {
	srv := newTestServer(t, &stubProcessor{})
	up := decode[uploadResponse](t, upload(t, srv, "a.mov", nil))
	require.Eventually(t, func() bool {
		return decode[jobs.Job](t, get(t, srv.URL+"/api/status/"+up.JobID)).Status == jobs.StatusComplete
	}, 2*time.Second, 10*time.Millisecond)

	h := decode[healthResponse](t, get(t, srv.URL+"/api/health"))
	assert.Equal(t, "ok", h.Status)
	assert.Equal(t, 1, h.ActiveJobs)
	assert.Zero(t, h.QueuedJobs)
	assert.Equal(t, Version, h.Version)

	resp, err := http.Post(srv.URL+"/api/cleanup", "application/json", strings.NewReader(`{}`))
	require.NoError(t, err)
	c := decode[cleanupResponse](t, resp)
	assert.Empty(t, c.DeletedJobs)

	resp, err = http.Post(srv.URL+"/api/cleanup", "application/json", strings.NewReader(`{"hours": 0}`))
	require.NoError(t, err)
	c = decode[cleanupResponse](t, resp)
	assert.Equal(t, []string{up.JobID}, c.DeletedJobs)

	resp, err = http.Post(srv.URL+"/api/cleanup", "application/json", strings.NewReader(`{"hours": -1}`))
	require.NoError(t, err)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	resp.Body.Close()
}
