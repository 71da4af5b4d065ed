package core

const (
	// SudoModeSessionKey is the session key holding the unix timestamp of the last activation
	SudoModeSessionKey = "sudo-mode-last-activated"

	// DefaultLifetimeMinutes is how long an activation lasts when nothing else is configured.
	// A host session that times out first resets sudo mode along with it.
	DefaultLifetimeMinutes = 45
)

// SudoModeConfig holds the tunables of the sudo mode authorizer
type SudoModeConfig struct {
	LifetimeMinutes int
}

// DefaultSudoModeConfig returns the configuration used when nothing is overridden
func DefaultSudoModeConfig() SudoModeConfig {
	return SudoModeConfig{LifetimeMinutes: DefaultLifetimeMinutes}
}

// Validate checks the configuration invariants
func (c SudoModeConfig) Validate() error {
	if c.LifetimeMinutes < 0 {
		return ErrInvalidLifetime
	}
	return nil
}
