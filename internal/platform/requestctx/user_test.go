package requestctx

import (
	"context"
	"testing"
)

func TestPrincipalFromContextRoundTrip(t *testing.T) {
	ctx := WithPrincipal(context.Background(), Principal{AccountID: "acct-42", Roles: []string{"player"}})
	got, ok := PrincipalFromContext(ctx)
	if !ok {
		t.Fatal("expected principal")
	}
	if got.AccountID != "acct-42" {
		t.Fatalf("AccountID = %q, want %q", got.AccountID, "acct-42")
	}
	if UserIDFromContext(ctx) != "acct-42" {
		t.Fatalf("UserIDFromContext = %q, want %q", UserIDFromContext(ctx), "acct-42")
	}
}

func TestPrincipalFromContextEmpty(t *testing.T) {
	if _, ok := PrincipalFromContext(context.Background()); ok {
		t.Fatal("expected no principal")
	}
	if got := UserIDFromContext(nil); got != "" {
		t.Fatalf("expected empty string for nil context, got %q", got)
	}
}

func TestWithPrincipalNilContext(t *testing.T) {
	ctx := WithPrincipal(nil, Principal{AccountID: "acct-1"})
	if UserIDFromContext(ctx) != "acct-1" {
		t.Fatalf("expected acct-1, got %q", UserIDFromContext(ctx))
	}
}

func TestPrincipalRoles(t *testing.T) {
	player := Principal{AccountID: "a", Roles: []string{"player"}}
	if player.IsAdmin() {
		t.Fatal("expected player not to be admin")
	}
	admin := Principal{AccountID: "b", Roles: []string{"player", RoleAdmin}}
	if !admin.IsAdmin() {
		t.Fatal("expected admin role")
	}
}

func TestServiceNameRoundTrip(t *testing.T) {
	ctx := WithServiceName(context.Background(), "player")
	if got := ServiceNameFromContext(ctx); got != "player" {
		t.Fatalf("expected player, got %q", got)
	}
	if got := ServiceNameFromContext(nil); got != "" {
		t.Fatalf("expected empty service name, got %q", got)
	}
}
