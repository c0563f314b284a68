package usecase

import "strings"

// Identity policies controlling how requesters are keyed for rate limiting
// and owner-key fallback.
const (
	identityPolicyIP        = "ip"
	identityPolicyIPSession = "ip_session"
)

// resolveClientKey derives the requester identity from the client address and
// optional session token, following the configured policy. The same policy is
// applied to every operation so a requester is counted consistently.
func (s *Usecase) resolveClientKey(clientIP, sessionToken string) string {
	policy := strings.TrimSpace(s.cfg.GetString("modules.otp.identity_policy"))

	if policy == identityPolicyIPSession {
		token := strings.TrimSpace(sessionToken)
		if token != "" {
			return clientIP + ":" + token
		}
	}

	return clientIP
}
