package httpx

import (
	"encoding/json"
	"net/http"
)

// ErrorBody is the error object inside a failure envelope.
type ErrorBody struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

type successEnvelope struct {
	Success bool `json:"success"`
	Data    any  `json:"data"`
}

type failureEnvelope struct {
	Success bool      `json:"success"`
	Error   ErrorBody `json:"error"`
}

// JSON sends a JSON response with the given status code.
func JSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(data)
}

// OK wraps data in the success envelope.
func OK(w http.ResponseWriter, status int, data any) {
	JSON(w, status, successEnvelope{Success: true, Data: data})
}

// Fail writes the failure envelope.
func Fail(w http.ResponseWriter, status int, code, message string) {
	JSON(w, status, failureEnvelope{Error: ErrorBody{Code: code, Message: message}})
}

// DecodeJSON decodes JSON request body into the target struct. Malformed
// bodies are reported as validation errors.
func DecodeJSON(r *http.Request, target any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(target); err != nil {
		return Invalid("", "invalid JSON body: "+err.Error())
	}
	return nil
}
