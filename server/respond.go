package server

import (
	"net/http"
	"time"

	jsoniter "github.com/json-iterator/go"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

type successEnvelope struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	Data      any     `json:"data"`
	Message   string  `json:"message,omitempty"`
}

type errorEnvelope struct {
	Status    string  `json:"status"`
	Timestamp float64 `json:"timestamp"`
	Error     string  `json:"error"`
	Message   string  `json:"message,omitempty"`
}

func unixSeconds(t time.Time) float64 {
	return float64(t.UnixNano()) / float64(time.Second)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeSuccess(w http.ResponseWriter, status int, data any, message string) {
	writeJSON(w, status, successEnvelope{
		Status:    "success",
		Timestamp: unixSeconds(time.Now()),
		Data:      data,
		Message:   message,
	})
}

func writeError(w http.ResponseWriter, status int, errMsg, message string) {
	writeJSON(w, status, errorEnvelope{
		Status:    "error",
		Timestamp: unixSeconds(time.Now()),
		Error:     errMsg,
		Message:   message,
	})
}
