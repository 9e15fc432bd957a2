package handler

import (
	"encoding/json"
	"net/http"

	"github.com/sugartom/nexus/internal/kcommon"
	"github.com/sugartom/nexus/internal/kerror"
	"github.com/sugartom/nexus/internal/klogging"
)

// ErrorHandlingMiddleware recovers a kerror panic raised anywhere below the
// handler and renders it as status + msg JSON with the matching HTTP code.
// This is the only place where scheduler errors cross the process boundary.
func ErrorHandlingMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		startMs := kcommon.GetMonoTimeMs()
		defer func() {
			elapsedMs := kcommon.GetMonoTimeMs() - startMs
			if err := recover(); err != nil {
				logger := klogging.Error(r.Context()).With("elapsedMs", elapsedMs).With("path", r.URL.Path)

				var ke *kerror.Kerror
				switch v := err.(type) {
				case *kerror.Kerror:
					ke = v
					logger.WithError(ke)
				case error:
					ke = kerror.Create("InternalServerError", v.Error()).
						WithErrorCode(kerror.EC_UNKNOWN)
					logger.WithError(ke)
				default:
					ke = kerror.Create("UnknownPanic", "unexpected panic with non-error value").
						WithErrorCode(kerror.EC_UNKNOWN).
						With("panic_value", v)
					logger.With("panic_value", v)
				}

				logger.Log("PanicRecovered", "panic recovered in middleware")

				w.WriteHeader(ke.GetHttpErrorCode())
				json.NewEncoder(w).Encode(map[string]interface{}{
					"status": ke.Type,
					"msg":    ke.Msg,
					"code":   ke.ErrorCode,
				})
			}
		}()

		next.ServeHTTP(w, r)
	})
}
