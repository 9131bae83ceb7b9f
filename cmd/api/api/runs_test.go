package api

import (
	"bufio"
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Ashab24/batch-job-orch/lib/runs"
)

func createRun(t *testing.T, srv *httptest.Server, body createRunBody) (*http.Response, runs.Run) {
	t.Helper()

	data, err := json.Marshal(body)
	require.NoError(t, err)

	resp, err := http.Post(srv.URL+"/runs", "application/json", bytes.NewReader(data))
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })

	var run runs.Run
	if resp.StatusCode == http.StatusCreated {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&run))
	}
	return resp, run
}

func awaitRunTerminal(t *testing.T, srv *httptest.Server, id string) runs.Run {
	t.Helper()
	var run runs.Run
	require.Eventually(t, func() bool {
		resp, err := http.Get(srv.URL + "/runs/" + id)
		if err != nil || resp.StatusCode != http.StatusOK {
			return false
		}
		defer resp.Body.Close()
		if err := json.NewDecoder(resp.Body).Decode(&run); err != nil {
			return false
		}
		return run.Status == runs.StatusSucceeded || run.Status == runs.StatusFailed
	}, 10*time.Second, 10*time.Millisecond)
	return run
}

func TestCreateRun(t *testing.T) {
	rt := &fakeRuntime{output: "did the thing\n"}
	srv := newTestServer(t, rt)
	img := createReadyImage(t, srv)

	resp, run := createRun(t, srv, createRunBody{
		ImageID: img.ID,
		Env:     map[string]string{"INPUT_BUCKET": "raw-events"},
	})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	final := awaitRunTerminal(t, srv, run.ID)
	assert.Equal(t, runs.StatusSucceeded, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 0, *final.ExitCode)
}

func TestCreateRun_NonZeroExit(t *testing.T) {
	srv := newTestServer(t, &fakeRuntime{exitCode: 3})
	img := createReadyImage(t, srv)

	resp, run := createRun(t, srv, createRunBody{ImageID: img.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	final := awaitRunTerminal(t, srv, run.ID)
	assert.Equal(t, runs.StatusFailed, final.Status)
	require.NotNil(t, final.ExitCode)
	assert.Equal(t, 3, *final.ExitCode)
}

func TestCreateRun_MissingImage(t *testing.T) {
	srv := newTestServer(t, &fakeRuntime{})

	resp, _ := createRun(t, srv, createRunBody{ImageID: "img-missing"})
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestCreateRun_MissingImageID(t *testing.T) {
	srv := newTestServer(t, &fakeRuntime{})

	resp, _ := createRun(t, srv, createRunBody{})
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetRunLogs(t *testing.T) {
	srv := newTestServer(t, &fakeRuntime{output: "line one\nline two\n"})
	img := createReadyImage(t, srv)

	resp, run := createRun(t, srv, createRunBody{ImageID: img.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	awaitRunTerminal(t, srv, run.ID)

	logsResp, err := http.Get(srv.URL + "/runs/" + run.ID + "/logs?tail=10")
	require.NoError(t, err)
	defer logsResp.Body.Close()
	require.Equal(t, http.StatusOK, logsResp.StatusCode)

	var lines []string
	scanner := bufio.NewScanner(logsResp.Body)
	for scanner.Scan() {
		lines = append(lines, scanner.Text())
	}
	require.NoError(t, scanner.Err())
	assert.Equal(t, []string{"line one", "line two"}, lines)
}

func TestCancelRun_NotRunning(t *testing.T) {
	srv := newTestServer(t, &fakeRuntime{})
	img := createReadyImage(t, srv)

	resp, run := createRun(t, srv, createRunBody{ImageID: img.ID})
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	awaitRunTerminal(t, srv, run.ID)

	req, err := http.NewRequest(http.MethodDelete, srv.URL+"/runs/"+run.ID, nil)
	require.NoError(t, err)
	cancelResp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer cancelResp.Body.Close()
	assert.Equal(t, http.StatusConflict, cancelResp.StatusCode)
}
