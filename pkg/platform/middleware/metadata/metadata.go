// Package metadata attaches request-scoped metadata to the context: a
// correlation ID, the client IP, and a parsed client description. Audit
// payloads pick these up via pkg/requestcontext so every ledger entry can be
// tied back to the originating request.
package metadata

import (
	"fmt"
	"net"
	"net/http"
	"strings"

	"github.com/google/uuid"
	"github.com/mssola/useragent"

	"attest/pkg/requestcontext"
)

// HeaderRequestID is the inbound/outbound correlation header.
const HeaderRequestID = "X-Request-ID"

// Middleware injects request ID, request time, and client metadata into the
// request context. An inbound X-Request-ID is trusted if well-formed;
// otherwise a fresh UUID is assigned and echoed back.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		requestID := r.Header.Get(HeaderRequestID)
		if _, err := uuid.Parse(requestID); err != nil {
			requestID = uuid.NewString()
		}
		w.Header().Set(HeaderRequestID, requestID)

		ctx := requestcontext.WithRequestID(r.Context(), requestID)
		ctx = requestcontext.WithClientMetadata(ctx,
			clientIP(r),
			r.UserAgent(),
			describeClient(r.UserAgent()),
		)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// clientIP resolves the originating address, preferring the first
// X-Forwarded-For hop when present.
func clientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// describeClient condenses a raw User-Agent into "Browser Version / OS" for
// audit payloads. Unparseable agents fall back to the raw string, truncated.
func describeClient(rawUA string) string {
	if rawUA == "" {
		return ""
	}
	ua := useragent.New(rawUA)
	name, version := ua.Browser()
	if name == "" {
		if len(rawUA) > 64 {
			return rawUA[:64]
		}
		return rawUA
	}
	if os := ua.OS(); os != "" {
		return fmt.Sprintf("%s %s / %s", name, version, os)
	}
	return fmt.Sprintf("%s %s", name, version)
}
