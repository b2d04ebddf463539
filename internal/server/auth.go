package server

import (
	"crypto/subtle"
	"net/http"
	"strings"

	"github.com/ks2178o2/callharbor/internal/common"
)

func checkBearer(r *http.Request, token string) error {
	auth := r.Header.Get("Authorization")
	const prefix = "Bearer "
	if !strings.HasPrefix(auth, prefix) || subtle.ConstantTimeCompare([]byte(auth[len(prefix):]), []byte(token)) != 1 {
		return common.WrapError(common.ErrUnauthorized, "invalid or missing bearer token")
	}
	return nil
}

func BearerAuth(token string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := checkBearer(r, token); err != nil {
				httpError(w, http.StatusUnauthorized, "authentication_error", "%v", err)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
