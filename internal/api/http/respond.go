package http

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/golang/glog"

	"github.com/mind-engage/mindengage-quiz/internal/quiz"
)

// maxBody bounds JSON request bodies.
const maxBody = 1 << 20

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func statusFor(k quiz.Kind) int {
	switch k {
	case quiz.KindNotFound:
		return http.StatusNotFound
	case quiz.KindNotAvailable:
		return http.StatusForbidden
	case quiz.KindAlreadyAttempted:
		return http.StatusConflict
	case quiz.KindValidation:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// writeError renders err as {"error": msg, "kind": kind}. Store faults are
// logged with their cause; the client only sees the action that failed.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	k := quiz.KindOf(err)
	if k == quiz.KindTransientStore {
		glog.Errorf("%s %s [%s]: %+v", r.Method, r.URL.Path, middleware.GetReqID(r.Context()), err)
	}
	writeJSON(w, statusFor(k), map[string]string{"error": quiz.Message(err), "kind": k.String()})
}

// decodeJSON reads a bounded JSON body into v.
func decodeJSON(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBody))
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return quiz.Validation("request body is empty")
		}
		return quiz.Validation("bad json")
	}
	return nil
}
