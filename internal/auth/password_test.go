package auth

import "testing"

func TestValidatePasswordStrength(t *testing.T) {
	cases := []struct {
		password string
		ok       bool
	}{
		{"short", false},
		{"alllowercaseonly", false},
		{"Planner-2026-one", true},
		{"Upper1lower2345", true},
		{"NOLOWERCASE123!", true},
		{"", false},
	}
	for _, c := range cases {
		err := ValidatePasswordStrength(c.password)
		if c.ok && err != nil {
			t.Errorf("%q: unexpected error %v", c.password, err)
		}
		if !c.ok && err == nil {
			t.Errorf("%q: expected rejection", c.password)
		}
	}
}

func TestHashAndCheckPassword(t *testing.T) {
	hash, err := HashPassword("Planner-2026-one")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}
	if !CheckPassword(hash, "Planner-2026-one") {
		t.Error("correct password rejected")
	}
	if CheckPassword(hash, "Planner-2026-two") {
		t.Error("wrong password accepted")
	}
}
