package devkit

import (
	"context"
	"sync"

	"github.com/goliatone/go-mfa/core"
)

// ScriptedBiometricContext plays back configured outcomes for the two
// biometric gate calls and records the prompt reasons it saw.
type ScriptedBiometricContext struct {
	mu sync.Mutex

	CanEvaluateErr error
	EvaluateErr    error

	evaluateCalls int
	reasons       []string
}

// ApprovingBiometricContext always passes both gate calls.
func ApprovingBiometricContext() *ScriptedBiometricContext {
	return &ScriptedBiometricContext{}
}

// UnavailableBiometricContext fails CanEvaluate the way a platform without a
// usable sensor does.
func UnavailableBiometricContext() *ScriptedBiometricContext {
	return &ScriptedBiometricContext{
		CanEvaluateErr: core.NewBiometricFailedError(core.ReasonBiometryNotAvailable,
			"devkit: biometric hardware is not available"),
	}
}

// CancellingBiometricContext passes the availability check and then fails the
// prompt the way a user dismissal does.
func CancellingBiometricContext() *ScriptedBiometricContext {
	return &ScriptedBiometricContext{
		EvaluateErr: core.NewBiometricCancelledError("devkit: user dismissed the prompt"),
	}
}

func (c *ScriptedBiometricContext) CanEvaluate(context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.CanEvaluateErr
}

func (c *ScriptedBiometricContext) Evaluate(_ context.Context, reason string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.evaluateCalls++
	c.reasons = append(c.reasons, reason)
	return c.EvaluateErr
}

func (c *ScriptedBiometricContext) EvaluateCalls() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.evaluateCalls
}

// PromptReasons returns the reasons passed to Evaluate, in call order.
func (c *ScriptedBiometricContext) PromptReasons() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.reasons...)
}

var _ core.BiometricContext = (*ScriptedBiometricContext)(nil)
