package validator

import "testing"

func TestValidatorKeepsFirstError(t *testing.T) {
	v := New()
	v.Check(false, "name", "must be provided")
	v.Check(false, "name", "must be at least 3 characters")
	v.Check(true, "description", "unused")

	if v.Valid() {
		t.Fatal("expected validator to be invalid")
	}
	if got := v.Errors["name"]; got != "must be provided" {
		t.Fatalf("name error = %q", got)
	}
	if _, ok := v.Errors["description"]; ok {
		t.Fatal("passing check must not add an error")
	}
}

func TestIsHost(t *testing.T) {
	cases := map[string]bool{
		"play.hypixel.net": true,
		"127.0.0.1":        true,
		"255.255.255.255":  true,
		"256.1.1.1":        false,
		"localhost":        false,
		"bad_host.com":     false,
		"":                 false,
	}
	for in, want := range cases {
		if got := IsHost(in); got != want {
			t.Errorf("IsHost(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsURL(t *testing.T) {
	cases := map[string]bool{
		"https://orbis.place":       true,
		"http://discord.gg/invite":  true,
		"ftp://files.example.com":   false,
		"orbis.place":               false,
		"https://":                  false,
	}
	for in, want := range cases {
		if got := IsURL(in); got != want {
			t.Errorf("IsURL(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestIsEmail(t *testing.T) {
	if !IsEmail("alice@orbis.place") {
		t.Error("expected plain address to be valid")
	}
	if IsEmail("Alice <alice@orbis.place>") {
		t.Error("display-name form must be rejected")
	}
	if IsEmail("alice") {
		t.Error("missing domain must be rejected")
	}
}

func TestTeamNameRX(t *testing.T) {
	for _, ok := range []string{"hypixel", "team-42", "a_b"} {
		if !Matches(ok, TeamNameRX) {
			t.Errorf("%q should match", ok)
		}
	}
	for _, bad := range []string{"ab", "-lead", "trail_", "has space", "UPPER"} {
		if Matches(bad, TeamNameRX) {
			t.Errorf("%q should not match", bad)
		}
	}
}

func TestUniqueAndPermitted(t *testing.T) {
	if !Unique([]string{"a", "b"}) || Unique([]string{"a", "a"}) {
		t.Error("Unique misbehaves")
	}
	if !PermittedValue("png", "jpeg", "png") || PermittedValue("gif", "jpeg", "png") {
		t.Error("PermittedValue misbehaves")
	}
}
