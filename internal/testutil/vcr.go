// Package testutil holds shared test helpers: go-vcr cassettes for the
// backend client and a scripted fake backend for end-to-end session tests.
package testutil

import (
	"bytes"
	"encoding/json"
	"io"
	"maps"
	"net/http"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"gopkg.in/dnaeon/go-vcr.v2/cassette"
	"gopkg.in/dnaeon/go-vcr.v2/recorder"
)

// RecordedSessionID replaces the session id of every recorded request so a
// fresh recording diffs cleanly against the previous one.
const RecordedSessionID = "sess-vcr"

// NewVCRRecorder replays testdata/fixtures/<cassetteName>.yaml. Set
// VCR_MODE=record to capture a fresh cassette from a live backend.
func NewVCRRecorder(t *testing.T, cassetteName string) (*recorder.Recorder, func()) {
	t.Helper()

	mode := recorder.ModeReplaying
	if os.Getenv("VCR_MODE") == "record" {
		mode = recorder.ModeRecording
	}

	r, err := recorder.NewAsMode(filepath.Join("testdata", "fixtures", cassetteName), mode, nil)
	if err != nil {
		t.Fatalf("Failed to create VCR recorder: %v", err)
	}

	r.SetMatcher(matchExchange)
	r.AddFilter(scrubInteraction)

	cleanup := func() {
		if err := r.Stop(); err != nil {
			t.Errorf("Failed to stop VCR recorder: %v", err)
		}
	}

	return r, cleanup
}

// VCRHTTPClient returns an HTTP client that goes through the recorder.
func VCRHTTPClient(r *recorder.Recorder) *http.Client {
	return &http.Client{
		Transport: r,
	}
}

// matchExchange pairs a request with an interaction on the endpoint and the
// set of body fields. Field values carry session ids and user text and are
// not compared.
func matchExchange(r *http.Request, i cassette.Request) bool {
	if r.Method != i.Method || r.URL.String() != i.URL {
		return false
	}
	var body []byte
	if r.Body != nil {
		body, _ = io.ReadAll(r.Body)
		r.Body = io.NopCloser(bytes.NewReader(body))
	}
	return slices.Equal(bodyFields(body), bodyFields([]byte(i.Body)))
}

// bodyFields returns the sorted top-level keys of a JSON object body, or nil
// for anything else.
func bodyFields(body []byte) []string {
	var fields map[string]json.RawMessage
	if json.Unmarshal(body, &fields) != nil {
		return nil
	}
	return slices.Sorted(maps.Keys(fields))
}

func scrubInteraction(i *cassette.Interaction) error {
	delete(i.Request.Headers, "Authorization")

	var fields map[string]any
	if json.Unmarshal([]byte(i.Request.Body), &fields) != nil {
		return nil
	}
	if _, ok := fields["session_id"]; !ok {
		return nil
	}
	fields["session_id"] = RecordedSessionID
	body, err := json.Marshal(fields)
	if err != nil {
		return err
	}
	i.Request.Body = string(body)
	return nil
}
