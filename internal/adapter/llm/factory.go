package llm

import (
	"log"
	"os"
)

const (
	// EnvCoachMode is the environment variable name for mode selection.
	EnvCoachMode = "COACH_MODE"
	// ModeMock indicates mock mode should be used.
	ModeMock = "MOCK"
)

// NewBackend creates an instrumented backend based on the COACH_MODE
// environment variable. COACH_MODE=MOCK selects MockClient.
func NewBackend(cfg Config) Backend {
	if os.Getenv(EnvCoachMode) == ModeMock {
		log.Println("COACH_MODE=MOCK detected, using mock inference backend")
		return Instrument(NewMockClient())
	}
	return Instrument(NewClient(cfg))
}
