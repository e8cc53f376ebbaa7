package core

import "testing"

func TestAuthenticationKindClass(t *testing.T) {
	cases := []struct {
		kind     AuthenticationKind
		expected FactorClass
	}{
		{AuthenticationPossession, FactorClassSigning},
		{AuthenticationPossessionWithKnowledge, FactorClassSigning},
		{AuthenticationPossessionWithBiometry, FactorClassSigning},
		{AuthenticationCommitWithKnowledge, FactorClassCommit},
		{AuthenticationCommitWithKnowledgeAndBiometry, FactorClassCommit},
	}
	for _, tc := range cases {
		if got := tc.kind.Class(); got != tc.expected {
			t.Fatalf("kind %q: expected class %q, got %q", tc.kind, tc.expected, got)
		}
	}
}

func TestAuthenticationConstructors(t *testing.T) {
	t.Run("possession carries no secret", func(t *testing.T) {
		auth := PossessionAuthentication()
		if auth.Kind() != AuthenticationPossession {
			t.Fatalf("unexpected kind %q", auth.Kind())
		}
		if auth.hasPassword {
			t.Fatal("possession selector must not carry a password")
		}
	})

	t.Run("knowledge selector drops biometry override", func(t *testing.T) {
		auth := KnowledgeAuthentication(NewPassword("1234"),
			WithOverrideBiometryKey([]byte("should-not-stick")))
		if auth.overrideBiometryKey != nil {
			t.Fatal("knowledge selector must not carry a biometry override")
		}
		if !auth.hasPassword {
			t.Fatal("knowledge selector must carry the password")
		}
	})

	t.Run("biometry with key keeps the override", func(t *testing.T) {
		key := []byte("0123456789abcdef")
		auth := BiometryAuthenticationWithKey(key)
		if auth.Kind() != AuthenticationPossessionWithBiometry {
			t.Fatalf("unexpected kind %q", auth.Kind())
		}
		if len(auth.overrideBiometryKey) != len(key) {
			t.Fatal("expected biometry override to be retained")
		}
		key[0] = 'X'
		if auth.overrideBiometryKey[0] == 'X' {
			t.Fatal("override must be a defensive copy")
		}
	})

	t.Run("commit with biometry admits an override", func(t *testing.T) {
		auth := CommitWithKnowledgeAndBiometry(NewPassword("1234"),
			WithOverrideBiometryKey([]byte("0123456789abcdef")))
		if auth.overrideBiometryKey == nil {
			t.Fatal("commit-with-biometry selector should keep the override")
		}
	})

	t.Run("possession override available on every variant", func(t *testing.T) {
		auth := PossessionAuthentication(WithOverridePossessionKey([]byte("possession-bytes")))
		if auth.overridePossessionKey == nil {
			t.Fatal("expected possession override to be retained")
		}
	})
}

func TestPassword(t *testing.T) {
	t.Run("length counts runes not bytes", func(t *testing.T) {
		password := NewPassword("päss")
		if password.Length() != 4 {
			t.Fatalf("expected rune length 4, got %d", password.Length())
		}
		if len(password.Bytes()) != 5 {
			t.Fatalf("expected 5 bytes, got %d", len(password.Bytes()))
		}
	})

	t.Run("bytes returns a copy", func(t *testing.T) {
		password := NewPassword("secret")
		raw := password.Bytes()
		raw[0] = 'X'
		if password.Bytes()[0] == 'X' {
			t.Fatal("Bytes must return a defensive copy")
		}
	})

	t.Run("from bytes copies input", func(t *testing.T) {
		source := []byte("secret")
		password := PasswordFromBytes(source)
		source[0] = 'X'
		if password.Bytes()[0] == 'X' {
			t.Fatal("PasswordFromBytes must copy its input")
		}
	})

	t.Run("empty password", func(t *testing.T) {
		if !NewPassword("").IsEmpty() {
			t.Fatal("expected empty password")
		}
		if NewPassword("x").IsEmpty() {
			t.Fatal("expected non-empty password")
		}
	})
}

func TestAcceptedFactors(t *testing.T) {
	t.Run("nil accepts everything", func(t *testing.T) {
		var factors AcceptedFactors
		if !factors.Accepts(AuthenticationPossessionWithBiometry) {
			t.Fatal("nil set must accept every kind")
		}
	})

	t.Run("restricted set", func(t *testing.T) {
		factors := AcceptedFactors{AuthenticationPossessionWithKnowledge}
		if !factors.Accepts(AuthenticationPossessionWithKnowledge) {
			t.Fatal("expected listed kind to be accepted")
		}
		if factors.Accepts(AuthenticationPossession) {
			t.Fatal("expected unlisted kind to be rejected")
		}
	})
}

func TestSignatureFactorKeys(t *testing.T) {
	password := NewPassword("1234")
	keys := SignatureFactorKeys{Possession: []byte("p"), Password: &password}
	if !keys.HasKnowledge() {
		t.Fatal("expected knowledge factor")
	}
	if keys.HasBiometry() {
		t.Fatal("did not expect a biometry factor")
	}
	keys.Biometry = []byte("b")
	if !keys.HasBiometry() {
		t.Fatal("expected biometry factor")
	}
}
