package auth

import "net/http"

// AdminPolicy decides whether a caller may run admin operations.
type AdminPolicy interface {
	IsAdmin(callerID string) bool
}

// StaticAdmins is an AdminPolicy over a fixed set of caller ids.
type StaticAdmins map[string]struct{}

func NewStaticAdmins(ids ...string) StaticAdmins {
	s := make(StaticAdmins, len(ids))
	for _, id := range ids {
		s[id] = struct{}{}
	}
	return s
}

func (s StaticAdmins) IsAdmin(callerID string) bool {
	_, ok := s[callerID]
	return ok
}

// RequireAdmin rejects callers the policy does not recognise. A non-admin
// caller is Unauthorized, not Forbidden.
func RequireAdmin(policy AdminPolicy) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller := CallerFromContext(r.Context())
			if caller == nil || !policy.IsAdmin(caller.ID) {
				writeError(w, http.StatusUnauthorized, "admin access required")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
