package apperror_test

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/fd1az/dexops/internal/apperror"
)

func TestAppError_IsByCode(t *testing.T) {
	cause := errors.New("execution reverted")
	err := apperror.Node("estimate gas", cause)

	wrapped := fmt.Errorf("submit approve: %w", err)

	if !errors.Is(wrapped, apperror.New(apperror.CodeNodeError)) {
		t.Error("expected errors.Is to match by code")
	}
	if errors.Is(wrapped, apperror.New(apperror.CodeInsufficientAllowance)) {
		t.Error("different codes must not match")
	}
	if !errors.Is(wrapped, cause) {
		t.Error("expected cause in chain")
	}
	if !apperror.HasCode(wrapped, apperror.CodeNodeError) {
		t.Error("HasCode should find the code")
	}
}

func TestAppError_Message(t *testing.T) {
	err := apperror.New(apperror.CodeInvalidSlippage, apperror.WithContextf("got %s", "101"))

	msg := err.Error()
	if !strings.Contains(msg, "INVALID_SLIPPAGE") || !strings.Contains(msg, "got 101") {
		t.Errorf("unexpected message %q", msg)
	}
}

func TestWrap(t *testing.T) {
	if apperror.Wrap(nil, apperror.CodeInternalError, "x") != nil {
		t.Fatal("wrapping nil must return nil")
	}

	plain := errors.New("io")
	w := apperror.Wrap(plain, apperror.CodeContractCallFailed, "balanceOf")
	if w.Code != apperror.CodeContractCallFailed {
		t.Errorf("expected code, got %s", w.Code)
	}

	app := apperror.New(apperror.CodeNodeError)
	if apperror.Wrap(app, apperror.CodeInternalError, "ctx") != app {
		t.Error("existing AppError should be returned unchanged")
	}
	if app.Context != "ctx" {
		t.Error("empty context should be filled")
	}
}

func TestGetCode(t *testing.T) {
	if apperror.GetCode(errors.New("x")) != apperror.CodeUnknownError {
		t.Error("plain errors map to unknown")
	}
	if apperror.GetCode(apperror.New(apperror.CodeSwapFailed)) != apperror.CodeSwapFailed {
		t.Error("expected swap failed code")
	}
}
