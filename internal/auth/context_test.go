// ABOUTME: Unit tests for authentication context functions
// ABOUTME: Tests user binding checks and context propagation helpers

package auth

import (
	"context"
	"testing"
)

func TestAuthContext_CanActFor(t *testing.T) {
	tests := []struct {
		name   string
		auth   AuthContext
		target string
		want   bool
	}{
		{"service token acts for anyone", AuthContext{Subject: "portal"}, "user-1", true},
		{"bound token acts for its user", AuthContext{Subject: "alice", UserID: "user-1"}, "user-1", true},
		{"bound token rejected for other user", AuthContext{Subject: "alice", UserID: "user-1"}, "user-2", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.auth.CanActFor(tt.target); got != tt.want {
				t.Errorf("CanActFor(%q) = %v, want %v", tt.target, got, tt.want)
			}
		})
	}
}

func TestWithAuthAndFromContext(t *testing.T) {
	ctx := context.Background()
	if FromContext(ctx) != nil {
		t.Fatal("FromContext() on empty context should be nil")
	}

	want := &AuthContext{Subject: "alice", UserID: "user-1"}
	got := FromContext(WithAuth(ctx, want))
	if got != want {
		t.Errorf("FromContext() = %+v, want %+v", got, want)
	}
}

func TestAllowed(t *testing.T) {
	if !Allowed(context.Background(), "anyone") {
		t.Error("Allowed() without auth should be true")
	}

	ctx := WithAuth(context.Background(), &AuthContext{Subject: "alice", UserID: "user-1"})
	if !Allowed(ctx, "user-1") {
		t.Error("Allowed() for own user should be true")
	}
	if Allowed(ctx, "user-2") {
		t.Error("Allowed() for other user should be false")
	}
}
