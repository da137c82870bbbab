package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifiedError(t *testing.T) {
	t.Run("Basic error creation", func(t *testing.T) {
		err := NewError(CategoryConfig, "invalid configuration").
			WithSeverity(SeverityFatal).
			WithContext("file", "docweave.yaml").
			Build()

		if err.Category() != CategoryConfig {
			t.Errorf("expected category %s, got %s", CategoryConfig, err.Category())
		}
		if err.Severity() != SeverityFatal {
			t.Errorf("expected severity %s, got %s", SeverityFatal, err.Severity())
		}
		if err.Message() != "invalid configuration" {
			t.Errorf("expected message 'invalid configuration', got %s", err.Message())
		}

		file, exists := err.Context().GetString("file")
		if !exists || file != "docweave.yaml" {
			t.Errorf("expected context file=docweave.yaml, got %v", file)
		}
	})

	t.Run("Error detection", func(t *testing.T) {
		err := ConfigError("test error").Build()

		if !IsClassified(err) {
			t.Error("expected error to be classified")
		}
		if !HasCategory(err, CategoryConfig) {
			t.Error("expected error to have config category")
		}
		if !err.IsFatal() {
			t.Error("expected config error to be fatal")
		}
	})

	t.Run("Per-file errors are not fatal", func(t *testing.T) {
		for _, err := range []*ClassifiedError{
			ParseError("p").Build(),
			RenderError("r").Build(),
			FileSystemError("f").Build(),
		} {
			if err.IsFatal() {
				t.Errorf("expected %s to be non-fatal", err.Category())
			}
		}
	})
}

func TestErrorBuilder(t *testing.T) {
	originalErr := errors.New("unexpected EOF")
	err := WrapError(originalErr, CategoryParse, "parse input document").
		WithContext("input", "news/item.xml").
		Build()

	if !errors.Is(err, originalErr) {
		t.Error("expected error to wrap original error")
	}
	if input, _ := err.Context().GetString("input"); input != "news/item.xml" {
		t.Errorf("expected input context, got %q", input)
	}
	if got := err.Error(); got != "[parse] parse input document: unexpected EOF" {
		t.Errorf("unexpected message %q", got)
	}
}

func TestWithContextDoesNotMutate(t *testing.T) {
	base := RenderError("render failed").WithContext("input", "a.xml").Build()
	derived := base.WithContext("output", "a.html")

	if _, ok := base.Context().Get("output"); ok {
		t.Error("WithContext must not mutate the original error")
	}
	if out, _ := derived.Context().GetString("output"); out != "a.html" {
		t.Errorf("expected output context on derived error, got %q", out)
	}
}

func TestHelpersOnWrappedChain(t *testing.T) {
	inner := ConfigError("style must be set").Build()
	wrapped := fmt.Errorf("startup: %w", inner)

	if GetCategory(wrapped) != CategoryConfig {
		t.Errorf("expected config category through wrap, got %s", GetCategory(wrapped))
	}
	if GetSeverity(wrapped) != SeverityFatal {
		t.Errorf("expected fatal severity through wrap, got %s", GetSeverity(wrapped))
	}
	if GetCategory(errors.New("plain")) != CategoryInternal {
		t.Error("expected unclassified errors to map to internal")
	}
	if !errors.Is(wrapped, ConfigError("style must be set").Build()) {
		t.Error("expected errors.Is to match by category and message")
	}
}
