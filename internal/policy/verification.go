package policy

// VerifyMode selects when a human-verification challenge is required.
type VerifyMode uint8

const (
	// VerifyClosed never challenges.
	VerifyClosed VerifyMode = iota
	// VerifyOpen challenges every registration.
	VerifyOpen
	// VerifyCount challenges once the rolling count reaches the threshold.
	VerifyCount
)

// ShouldChallenge decides whether the current registration must pass a
// challenge given the rolling count of unchallenged registrations.
func ShouldChallenge(mode VerifyMode, rollingCount, threshold int64) bool {
	switch mode {
	case VerifyOpen:
		return true
	case VerifyCount:
		return rollingCount >= threshold
	default:
		return false
	}
}

// NextChallenge reports whether the registration after this one will need a
// challenge. countAfter is the rolling count once this registration has been
// recorded (incremented when skipped, reset when challenged).
func NextChallenge(mode VerifyMode, countAfter, threshold int64) bool {
	return ShouldChallenge(mode, countAfter, threshold)
}
