package session

// AttemptPending reports whether a connect attempt is still tracked.
func (g *Guard) AttemptPending() bool { return g.pending != nil }
