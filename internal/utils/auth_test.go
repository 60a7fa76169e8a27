package utils

import (
	"testing"

	"github.com/tradefin-io/tradefingo/internal/models"
)

func TestPasswordHashRoundtrip(t *testing.T) {
	hash, err := HashPassword("demo1234")
	if err != nil {
		t.Fatalf("HashPassword failed: %v", err)
	}
	if hash == "demo1234" {
		t.Fatal("password stored in the clear")
	}
	if !CheckPasswordHash("demo1234", hash) {
		t.Fatal("correct password rejected")
	}
	if CheckPasswordHash("wrong-password", hash) {
		t.Fatal("wrong password accepted")
	}
}

func TestTokenCarriesActorIdentity(t *testing.T) {
	user := &models.User{
		ID:      "b1946ac9-2d3f-4c2a-9f3e-000000000001",
		Role:    models.RoleAuditor,
		OrgName: "Veritas Audit",
	}

	token, err := GenerateToken(user, "test-secret")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	actor, err := ParseActor(token, "test-secret")
	if err != nil {
		t.Fatalf("ParseActor failed: %v", err)
	}
	if actor.ID != user.ID {
		t.Errorf("actor id = %s, want %s", actor.ID, user.ID)
	}
	if actor.Role != models.RoleAuditor {
		t.Errorf("actor role = %s, want AUDITOR", actor.Role)
	}
	if actor.OrgName != user.OrgName {
		t.Errorf("actor org = %s, want %s", actor.OrgName, user.OrgName)
	}
}

func TestParseActorRejectsWrongSecret(t *testing.T) {
	user := &models.User{ID: "some-id", Role: models.RoleBank}
	token, err := GenerateToken(user, "right-secret")
	if err != nil {
		t.Fatalf("GenerateToken failed: %v", err)
	}

	if _, err := ParseActor(token, "wrong-secret"); err == nil {
		t.Fatal("token signed with a different secret was accepted")
	}
}

func TestParseActorRejectsGarbage(t *testing.T) {
	if _, err := ParseActor("not.a.token", "secret"); err == nil {
		t.Fatal("malformed token was accepted")
	}
}
