package request

import (
	"net/http"

	dErrors "voxid/pkg/domain-errors"
	"voxid/pkg/platform/httputil"
)

// BodyLimit caps request bodies at maxBytes. A declared Content-Length over the
// cap is answered with 413 before the handler runs; otherwise the body is
// wrapped in http.MaxBytesReader and the handler sees *http.MaxBytesError
// once it reads past the cap.
func BodyLimit(maxBytes int64) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if r.ContentLength > maxBytes {
				httputil.WriteError(w, dErrors.Newf(dErrors.CodePayloadTooLarge,
					"request body exceeds %d bytes", maxBytes))
				return
			}
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
			next.ServeHTTP(w, r)
		})
	}
}
