package apperr_test

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http/httptest"
	"testing"

	"github.com/workhub/workhub/internal/apperr"
)

func TestWriteMapsKindsToStatusCodes(t *testing.T) {
	cases := []struct {
		err    error
		status int
		body   string
	}{
		{apperr.NotFound("conversation not found"), 404, "conversation not found"},
		{apperr.Forbidden("not a participant"), 403, "not a participant"},
		{apperr.InvalidState("window expired"), 400, "window expired"},
		{apperr.InvalidInput("missing emoji"), 400, "missing emoji"},
		{errors.New("pq: connection refused"), 500, "internal server error"},
	}

	for _, tc := range cases {
		rec := httptest.NewRecorder()
		apperr.Write(rec, tc.err)

		if rec.Code != tc.status {
			t.Errorf("%v: status %d, want %d", tc.err, rec.Code, tc.status)
		}
		var body map[string]string
		if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
			t.Fatalf("%v: body not JSON: %v", tc.err, err)
		}
		if body["error"] != tc.body {
			t.Errorf("%v: error %q, want %q", tc.err, body["error"], tc.body)
		}
	}
}

func TestStorageErrorsNeverLeakDetails(t *testing.T) {
	rec := httptest.NewRecorder()
	apperr.Write(rec, errors.New("dial tcp 10.0.0.3:5432: i/o timeout"))
	if got := rec.Body.String(); got != `{"error":"internal server error"}`+"\n" {
		t.Errorf("internal detail leaked: %s", got)
	}
}

func TestIsMatchesWrappedErrors(t *testing.T) {
	err := fmt.Errorf("sending message: %w", apperr.Forbidden("not a participant"))
	if !apperr.Is(err, apperr.KindForbidden) {
		t.Error("wrapped forbidden error should match")
	}
	if apperr.Is(err, apperr.KindNotFound) {
		t.Error("kind mismatch should not match")
	}
	if apperr.Is(errors.New("plain"), apperr.KindForbidden) {
		t.Error("plain errors carry no kind")
	}
}
