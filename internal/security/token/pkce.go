package tokens

import "crypto/subtle"

// PKCE challenge methods (RFC 7636). Names are case-sensitive.
const (
	ChallengeS256  = "S256"
	ChallengePlain = "plain"
)

// ComputeCodeChallenge derives the challenge for verifier under method.
// An empty method means plain. ok is false for unknown methods.
func ComputeCodeChallenge(verifier, method string) (challenge string, ok bool) {
	switch method {
	case ChallengeS256:
		return SHA256Base64URL(verifier), true
	case ChallengePlain, "":
		return verifier, true
	default:
		return "", false
	}
}

// VerifyCodeChallenge recomputes the challenge from verifier and compares it in constant time.
func VerifyCodeChallenge(verifier, challenge, method string) bool {
	if verifier == "" || challenge == "" {
		return false
	}
	got, ok := ComputeCodeChallenge(verifier, method)
	if !ok {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(got), []byte(challenge)) == 1
}
