package errors

import (
	"errors"
	"fmt"
	"testing"
)

func TestErrorMessageFallbacks(t *testing.T) {
	cause := errors.New("disk full")
	tests := []struct {
		name string
		err  Error
		want string
	}{
		{"message wins", New(CodeStorageFailed, "write cache", cause), "write cache"},
		{"cause when no message", New(CodeStorageFailed, "", cause), "disk full"},
		{"code when empty", New(CodeInstallFailed, "", nil), "install_failed"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.err.Error(); got != tt.want {
				t.Fatalf("Error() = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestCodeOfWalksWrapChain(t *testing.T) {
	base := New(CodeUnknownComponent, `plugin "mod_nope" not found`, nil)
	wrapped := fmt.Errorf("download: %w", base)

	if got := CodeOf(wrapped); got != CodeUnknownComponent {
		t.Fatalf("CodeOf = %q, want %q", got, CodeUnknownComponent)
	}
	if !IsCode(wrapped, CodeUnknownComponent) {
		t.Fatal("IsCode should match through fmt.Errorf wrapping")
	}
	if got := CodeOf(errors.New("plain")); got != CodeUnknown {
		t.Fatalf("CodeOf(plain) = %q, want %q", got, CodeUnknown)
	}
}

func TestUnwrapExposesCause(t *testing.T) {
	cause := errors.New("connection refused")
	err := New(CodeFetchFailed, "fetch updates", cause)
	if !errors.Is(err, cause) {
		t.Fatal("errors.Is should find the wrapped cause")
	}
}

func TestIsFatal(t *testing.T) {
	if IsFatal(nil) {
		t.Fatal("nil must not be fatal")
	}
	if IsFatal(New(CodeNoCandidates, "no update", nil)) {
		t.Fatal("no_candidates is informational")
	}
	for _, code := range []Code{CodeUnknownComponent, CodeUnresolvableRemote, CodeInstallFailed, CodeUnknown} {
		if !IsFatal(New(code, "x", nil)) {
			t.Fatalf("%s should be fatal", code)
		}
	}
}
