package command

import (
	"context"
	"testing"

	goerrors "github.com/goliatone/go-errors"

	"github.com/goliatone/go-mfa/core"
)

func TestMessageValidateReturnsRichError(t *testing.T) {
	err := (CreateActivationMessage{}).Validate()
	if err == nil {
		t.Fatal("expected validation error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryValidation {
		t.Fatalf("expected validation category, got %q", rich.Category)
	}
	if rich.TextCode != core.MFAErrorInvalidParameter {
		t.Fatalf("expected %q text code, got %q", core.MFAErrorInvalidParameter, rich.TextCode)
	}
}

func TestNilCommandReturnsRichError(t *testing.T) {
	var cmd *CreateActivationCommand
	err := cmd.Execute(context.Background(), CreateActivationMessage{})
	if err == nil {
		t.Fatal("expected command dependency error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal {
		t.Fatalf("expected internal category, got %q", rich.Category)
	}
	if rich.TextCode != core.MFAErrorInternal {
		t.Fatalf("expected %q text code, got %q", core.MFAErrorInternal, rich.TextCode)
	}
}
