package core

import (
	"time"
	"unicode/utf8"
)

// Password is an opaque knowledge-factor secret. Length is counted in
// characters, not bytes, so multi-byte alphabets are not penalized.
type Password struct {
	value []byte
}

func NewPassword(value string) Password {
	return Password{value: []byte(value)}
}

func PasswordFromBytes(value []byte) Password {
	copied := make([]byte, len(value))
	copy(copied, value)
	return Password{value: copied}
}

func (p Password) Length() int {
	return utf8.RuneCount(p.value)
}

func (p Password) IsEmpty() bool {
	return len(p.value) == 0
}

// Bytes returns a defensive copy of the secret.
func (p Password) Bytes() []byte {
	copied := make([]byte, len(p.value))
	copy(copied, p.value)
	return copied
}

// AuthenticationKind tags one of the five legal factor combinations.
type AuthenticationKind string

const (
	AuthenticationPossession                     AuthenticationKind = "possession"
	AuthenticationPossessionWithKnowledge        AuthenticationKind = "possession_knowledge"
	AuthenticationPossessionWithBiometry         AuthenticationKind = "possession_biometry"
	AuthenticationCommitWithKnowledge            AuthenticationKind = "commit_knowledge"
	AuthenticationCommitWithKnowledgeAndBiometry AuthenticationKind = "commit_knowledge_biometry"
)

// FactorClass partitions the five kinds: commit-class selectors finalize a
// pending activation exactly once, signing-class selectors drive every
// subsequent authenticated operation. No kind belongs to both.
type FactorClass string

const (
	FactorClassCommit  FactorClass = "commit"
	FactorClassSigning FactorClass = "signing"
)

func (k AuthenticationKind) Class() FactorClass {
	switch k {
	case AuthenticationCommitWithKnowledge, AuthenticationCommitWithKnowledgeAndBiometry:
		return FactorClassCommit
	default:
		return FactorClassSigning
	}
}

// Authentication is the factor selector. Fields are unexported and only the
// variant constructors can populate them, so a selector can never carry data
// its kind does not use (no secret on a possession-only selector, no
// biometric context on a knowledge selector).
type Authentication struct {
	kind                  AuthenticationKind
	password              Password
	hasPassword           bool
	overridePossessionKey []byte
	overrideBiometryKey   []byte
	biometricContext      BiometricContext
}

// AuthenticationOption configures the optional payloads a variant admits.
type AuthenticationOption func(*Authentication)

// WithOverridePossessionKey substitutes the stored possession key. Every
// variant admits it.
func WithOverridePossessionKey(key []byte) AuthenticationOption {
	return func(a *Authentication) {
		a.overridePossessionKey = copyBytes(key)
	}
}

// WithOverrideBiometryKey supplies the biometry key directly instead of
// generating one at commit time. Only the commit-with-biometry constructor
// accepts this option.
func WithOverrideBiometryKey(key []byte) AuthenticationOption {
	return func(a *Authentication) {
		a.overrideBiometryKey = copyBytes(key)
	}
}

func PossessionAuthentication(opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{kind: AuthenticationPossession}, opts, false)
}

func KnowledgeAuthentication(password Password, opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{
		kind:        AuthenticationPossessionWithKnowledge,
		password:    password,
		hasPassword: true,
	}, opts, false)
}

// BiometryAuthentication signs with a live biometric prompt.
func BiometryAuthentication(biometricContext BiometricContext, opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{
		kind:             AuthenticationPossessionWithBiometry,
		biometricContext: biometricContext,
	}, opts, false)
}

// BiometryAuthenticationWithKey signs with a biometry key the caller already
// holds, bypassing the prompt.
func BiometryAuthenticationWithKey(biometryKey []byte, opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{
		kind:                AuthenticationPossessionWithBiometry,
		overrideBiometryKey: copyBytes(biometryKey),
	}, opts, false)
}

// CommitWithKnowledge finalizes a pending activation with the knowledge
// factor only.
func CommitWithKnowledge(password Password, opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{
		kind:        AuthenticationCommitWithKnowledge,
		password:    password,
		hasPassword: true,
	}, opts, false)
}

// CommitWithKnowledgeAndBiometry additionally establishes the biometry
// factor. When no override key is supplied a fresh key is generated and
// stored during resolution; commit is the only path that creates this key.
func CommitWithKnowledgeAndBiometry(password Password, opts ...AuthenticationOption) Authentication {
	return buildAuthentication(Authentication{
		kind:        AuthenticationCommitWithKnowledgeAndBiometry,
		password:    password,
		hasPassword: true,
	}, opts, true)
}

func buildAuthentication(auth Authentication, opts []AuthenticationOption, allowBiometryOverride bool) Authentication {
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		opt(&auth)
	}
	if !allowBiometryOverride && auth.kind != AuthenticationPossessionWithBiometry {
		auth.overrideBiometryKey = nil
	}
	return auth
}

func (a Authentication) Kind() AuthenticationKind {
	return a.kind
}

func (a Authentication) Class() FactorClass {
	return a.kind.Class()
}

// SignatureFactorKeys is the resolved key material handed to the external
// cryptographic engine. Created per call, never persisted.
type SignatureFactorKeys struct {
	Possession []byte
	Biometry   []byte
	Password   *Password
}

func (k SignatureFactorKeys) HasBiometry() bool {
	return len(k.Biometry) > 0
}

func (k SignatureFactorKeys) HasKnowledge() bool {
	return k.Password != nil
}

// SignaturePurpose distinguishes the one-time activation commit from
// steady-state signing. The resolver enforces selector class against it.
type SignaturePurpose string

const (
	PurposeActivationCommit SignaturePurpose = "activation_commit"
	PurposeSigning          SignaturePurpose = "signing"
)

// AcceptedFactors restricts which signing-class kinds an operation accepts.
// A nil set accepts all signing-class selectors.
type AcceptedFactors []AuthenticationKind

func (f AcceptedFactors) Accepts(kind AuthenticationKind) bool {
	if len(f) == 0 {
		return true
	}
	for _, accepted := range f {
		if accepted == kind {
			return true
		}
	}
	return false
}

// ActivationPhase mirrors the engine-side activation lifecycle as far as
// this SDK needs to gate its own operations.
type ActivationPhase string

const (
	ActivationPhaseNone      ActivationPhase = "none"
	ActivationPhasePending   ActivationPhase = "pending"
	ActivationPhaseCommitted ActivationPhase = "committed"
)

// Lifecycle event names published on the facade event bus.
const (
	EventActivationCreated   = "mfa.activation.created"
	EventActivationCommitted = "mfa.activation.committed"
	EventActivationRemoved   = "mfa.activation.removed"
	EventBiometryKeyCreated  = "mfa.biometry.key_created"
	EventBiometryKeyRemoved  = "mfa.biometry.key_removed"
	EventStoragePurged       = "mfa.storage.purged"
)

type LifecycleEvent struct {
	ID         string
	Name       string
	InstanceID string
	Source     string
	OccurredAt time.Time
	Metadata   map[string]any
}

func copyBytes(value []byte) []byte {
	if len(value) == 0 {
		return nil
	}
	copied := make([]byte, len(value))
	copy(copied, value)
	return copied
}
