package core

import (
	"context"
	"crypto/rand"
	"fmt"
	"io"
)

// FactorResolver maps Authentication selectors to the exact key material the
// cryptographic engine consumes. BiometryPolicy decides the protection level
// for biometry keys created during activation commit.
type FactorResolver struct {
	BiometryPolicy BiometryPolicy
}

// ResolveFactors resolves with the default biometry policy.
func ResolveFactors(
	ctx context.Context,
	auth Authentication,
	provider CredentialProvider,
	purpose SignaturePurpose,
	accepted AcceptedFactors,
) (SignatureFactorKeys, error) {
	return FactorResolver{BiometryPolicy: DefaultBiometryPolicy()}.Resolve(ctx, auth, provider, purpose, accepted)
}

// Resolve enforces factor-class rules first and orders side effects so that
// persisting a new biometry key is the last possible failure point.
func (r FactorResolver) Resolve(
	ctx context.Context,
	auth Authentication,
	provider CredentialProvider,
	purpose SignaturePurpose,
	accepted AcceptedFactors,
) (SignatureFactorKeys, error) {
	if provider == nil {
		return SignatureFactorKeys{}, NewInternalError(nil, "core: credential provider is required")
	}

	// Class guard runs before any store access.
	switch purpose {
	case PurposeActivationCommit:
		if auth.Class() != FactorClassCommit {
			return SignatureFactorKeys{}, NewInvalidAuthenticationDataError(ReasonCommitFactorRequired,
				fmt.Sprintf("core: activation commit requires a commit-class selector, got %q", auth.Kind()))
		}
	case PurposeSigning:
		if auth.Class() != FactorClassSigning {
			return SignatureFactorKeys{}, NewInvalidAuthenticationDataError(ReasonSigningFactorRequired,
				fmt.Sprintf("core: signing requires a signing-class selector, got %q", auth.Kind()))
		}
		if !accepted.Accepts(auth.Kind()) {
			return SignatureFactorKeys{}, NewInvalidAuthenticationDataError(ReasonRequiredFactorMissing,
				fmt.Sprintf("core: selector %q is not acceptable for this operation", auth.Kind()))
		}
	default:
		return SignatureFactorKeys{}, NewInternalError(nil,
			fmt.Sprintf("core: unknown signature purpose %q", purpose))
	}

	password, err := resolvePassword(auth)
	if err != nil {
		return SignatureFactorKeys{}, err
	}

	possession := auth.overridePossessionKey
	if len(possession) == 0 {
		possession, err = provider.PossessionKey(ctx)
		if err != nil {
			return SignatureFactorKeys{}, taxonomyMapper(err)
		}
	}

	switch auth.Kind() {
	case AuthenticationPossession:
		return SignatureFactorKeys{Possession: possession}, nil

	case AuthenticationPossessionWithKnowledge, AuthenticationCommitWithKnowledge:
		return SignatureFactorKeys{Possession: possession, Password: password}, nil

	case AuthenticationPossessionWithBiometry:
		biometry := auth.overrideBiometryKey
		if len(biometry) == 0 {
			if auth.biometricContext == nil {
				return SignatureFactorKeys{}, NewInvalidAuthenticationDataError(ReasonLocalAuthenticationContextMissing,
					"core: biometry selector needs an override key or a biometric context")
			}
			biometry, err = provider.BiometryKey(ctx, auth.biometricContext)
			if err != nil {
				return SignatureFactorKeys{}, taxonomyMapper(err)
			}
		}
		return SignatureFactorKeys{Possession: possession, Biometry: biometry}, nil

	case AuthenticationCommitWithKnowledgeAndBiometry:
		biometry := auth.overrideBiometryKey
		if len(biometry) == 0 {
			biometry, err = generateBiometryKey()
			if err != nil {
				return SignatureFactorKeys{}, NewInternalError(err, "core: biometry key generation failed")
			}
		}
		// Cheapest-last ordering: the store write happens only after every
		// validation above has passed.
		if err := provider.SaveBiometryKey(ctx, biometry, r.BiometryPolicy.Protection()); err != nil {
			return SignatureFactorKeys{}, taxonomyMapper(err)
		}
		return SignatureFactorKeys{Possession: possession, Biometry: biometry, Password: password}, nil

	default:
		return SignatureFactorKeys{}, NewInternalError(nil,
			fmt.Sprintf("core: unknown authentication kind %q", auth.Kind()))
	}
}

func resolvePassword(auth Authentication) (*Password, error) {
	switch auth.Kind() {
	case AuthenticationPossessionWithKnowledge,
		AuthenticationCommitWithKnowledge,
		AuthenticationCommitWithKnowledgeAndBiometry:
		if !auth.hasPassword {
			// Only a zero-value Authentication carries no secret at all;
			// the knowledge constructors always attach one.
			return nil, NewInternalError(nil,
				fmt.Sprintf("core: selector %q requires a password", auth.Kind()))
		}
		// An empty password is a present secret that is too short, so the
		// host can match on the length reason.
		if auth.password.Length() < MinPasswordLength {
			return nil, NewInvalidAuthenticationDataError(ReasonPasswordTooShort,
				fmt.Sprintf("core: password must be at least %d characters", MinPasswordLength))
		}
		password := auth.password
		return &password, nil
	default:
		return nil, nil
	}
}

func generateBiometryKey() ([]byte, error) {
	key := make([]byte, BiometryKeySize)
	if _, err := io.ReadFull(rand.Reader, key); err != nil {
		return nil, err
	}
	return key, nil
}
