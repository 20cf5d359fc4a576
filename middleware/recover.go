package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/Nexora-Open-Source/feed-queue/utils"
	"github.com/sirupsen/logrus"
)

// RecoverMiddleware turns a handler panic into a 500 INTERNAL_ERROR response
func RecoverMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			if rec == http.ErrAbortHandler {
				panic(rec)
			}

			requestID := utils.RequestID(r)
			Logger.WithFields(logrus.Fields{
				"request_id": requestID,
				"panic":      fmt.Sprint(rec),
				"stack":      string(debug.Stack()),
			}).Error("Recovered from handler panic")

			RespondInternalError(w, fmt.Errorf("unexpected server error"), requestID)
		}()

		next.ServeHTTP(w, r)
	})
}
