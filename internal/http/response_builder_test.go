package http

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
)

func TestJSONResponseBuilder_Success(t *testing.T) {
	w := httptest.NewRecorder()

	NewJSONResponse().
		Created("expense", map[string]int{"id": 7}).
		Header("X-Custom", "value").
		Write(w)

	if w.Code != http.StatusCreated {
		t.Errorf("Status code = %d, want %d", w.Code, http.StatusCreated)
	}
	if got := w.Header().Get("Content-Type"); got != "application/json; charset=utf-8" {
		t.Errorf("Content-Type = %q", got)
	}
	if w.Header().Get("X-Custom") != "value" {
		t.Errorf("custom header not set")
	}

	var body struct {
		Success bool           `json:"success"`
		Expense map[string]int `json:"expense"`
	}
	if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if !body.Success || body.Expense["id"] != 7 {
		t.Errorf("unexpected body %s", w.Body.String())
	}
}

func TestErrorResponses(t *testing.T) {
	tests := []struct {
		name   string
		build  *JSONResponseBuilder
		status int
		header string
	}{
		{"bad request", BadRequestError("invalid amount"), http.StatusBadRequest, ""},
		{"unauthorized", UnauthorizedError("authentication required"), http.StatusUnauthorized, "WWW-Authenticate"},
		{"not found", NotFoundError("not found"), http.StatusNotFound, ""},
		{"conflict", ConflictError("username already exists"), http.StatusConflict, ""},
		{"method", MethodNotAllowedError("POST"), http.StatusMethodNotAllowed, "Allow"},
		{"rate limited", TooManyRequestsError(), http.StatusTooManyRequests, ""},
		{"internal", InternalServerError("internal error"), http.StatusInternalServerError, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			tt.build.Write(w)

			if w.Code != tt.status {
				t.Errorf("Status code = %d, want %d", w.Code, tt.status)
			}
			if tt.header != "" && w.Header().Get(tt.header) == "" {
				t.Errorf("missing header %s", tt.header)
			}
			var body map[string]any
			if err := json.Unmarshal(w.Body.Bytes(), &body); err != nil {
				t.Fatalf("decode: %v", err)
			}
			if body["success"] != false {
				t.Errorf("success = %v, want false", body["success"])
			}
			if msg, _ := body["error"].(string); msg == "" {
				t.Errorf("error message missing: %s", w.Body.String())
			}
		})
	}
}

func TestJSONResponseBuilder_EncodeFailure(t *testing.T) {
	w := httptest.NewRecorder()
	NewJSONResponse().Field("bad", make(chan int)).Write(w)

	if w.Code != http.StatusInternalServerError {
		t.Errorf("Status code = %d, want 500", w.Code)
	}
}
