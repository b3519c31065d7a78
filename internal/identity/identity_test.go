package identity_test

import (
	"regexp"
	"testing"

	"reelgate/internal/config"
	"reelgate/internal/identity"
)

func TestResolveNormalizes(t *testing.T) {
	resolver := identity.NewResolver(nil)
	cases := []struct {
		input   string
		cleaned string
		rule    string
	}{
		{"hhd800.com@FNS-075.mp4", "FNS-075.mp4", "standard"},
		{"vdo-001-PT1.MKV", "VDO-001-pt1.mkv", "standard"},
		{"abc-123.mp4", "ABC-123.mp4", "standard"},
		{"/srv/drop/site@xyz-9.mkv", "XYZ-9.mkv", "standard"},
		{"prefix@ABC-DEF-123456.mp4", "ABC-DEF-123456.mp4", "extended"},
		{"prefix@abc-def-1234-Pt2.MP4", "DEF-1234-pt2.mp4", "standard"},
		{"prefix@abc-def-123456-Pt2.MP4", "ABC-DEF-123456-pt2.mp4", "extended"},
	}
	for _, tc := range cases {
		id, ok := resolver.Resolve(tc.input)
		if !ok {
			t.Fatalf("Resolve(%q) did not match", tc.input)
		}
		if id.CleanedName() != tc.cleaned {
			t.Fatalf("Resolve(%q) = %q, want %q", tc.input, id.CleanedName(), tc.cleaned)
		}
		if id.Rule != tc.rule {
			t.Fatalf("Resolve(%q) matched rule %q, want %q", tc.input, id.Rule, tc.rule)
		}
	}
}

func TestResolveIsDeterministic(t *testing.T) {
	resolver := identity.NewResolver(nil)
	first, _ := resolver.Resolve("hhd800.com@FNS-075.mp4")
	for range 10 {
		again, _ := resolver.Resolve("hhd800.com@FNS-075.mp4")
		if again != first {
			t.Fatalf("Resolve is not stable: %+v vs %+v", again, first)
		}
	}
}

func TestResolveRejectsUnrecognized(t *testing.T) {
	resolver := identity.NewResolver(nil)
	for _, name := range []string{
		"holiday video.mp4",
		"ABC-123.avi",
		"ABC-123.mp4.part",
		"ABC123.mp4",
		"",
	} {
		if id, ok := resolver.Resolve(name); ok {
			t.Fatalf("Resolve(%q) unexpectedly matched %+v", name, id)
		}
	}
}

func TestRulePrecedenceFirstMatchWins(t *testing.T) {
	// Both built-in rules can match this name; the first one wins.
	resolver := identity.NewResolver(nil)
	id, ok := resolver.Resolve("site@ABC-DEF-12345.mp4")
	if !ok {
		t.Fatal("expected a match")
	}
	if id.Rule != "standard" || id.Token != "DEF-12345" {
		t.Fatalf("unexpected identity %+v", id)
	}

	reordered := identity.DefaultRules()
	reordered[0], reordered[1] = reordered[1], reordered[0]
	id, ok = identity.NewResolver(reordered).Resolve("site@ABC-DEF-12345.mp4")
	if !ok || id.Rule != "extended" || id.Token != "ABC-DEF-12345" {
		t.Fatalf("reordered rules should prefer extended, got %+v", id)
	}
}

func TestCompileRulesFromConfig(t *testing.T) {
	rules, err := identity.CompileRules([]config.IdentityRule{
		{Name: "bracketed", Pattern: `(?i)^\[(\w+-\d+)\].*\.(mp4)$`, IdentityGroup: 1, ExtensionGroup: 2},
	})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	resolver := identity.NewResolver(rules)
	id, ok := resolver.Resolve("[abc-42] trailer.mp4")
	if !ok || id.CleanedName() != "ABC-42.mp4" || id.Rule != "bracketed" {
		t.Fatalf("unexpected identity %+v ok=%v", id, ok)
	}
	if _, ok := resolver.Resolve("ABC-123.mp4"); ok {
		t.Fatal("configured rules replace the defaults")
	}

	defaults, err := identity.CompileRules(nil)
	if err != nil || len(defaults) != 2 {
		t.Fatalf("empty config should yield built-in rules, got %d err=%v", len(defaults), err)
	}

	if _, err := identity.CompileRules([]config.IdentityRule{{Name: "bad", Pattern: "(", IdentityGroup: 1, ExtensionGroup: 1}}); err == nil {
		t.Fatal("expected compile error")
	}
	if _, err := identity.CompileRules([]config.IdentityRule{{Name: "groups", Pattern: `(\w+)`, IdentityGroup: 1, ExtensionGroup: 2}}); err == nil {
		t.Fatal("expected group range error")
	}
}

func TestResolverCopiesRules(t *testing.T) {
	rules := []identity.Rule{{Name: "only", Pattern: regexp.MustCompile(`^(\w+)\.(mp4)$`), IdentityGroup: 1, ExtensionGroup: 2}}
	resolver := identity.NewResolver(rules)
	rules[0].Name = "mutated"
	if got := resolver.Rules()[0].Name; got != "only" {
		t.Fatalf("resolver should not alias caller rules, got %q", got)
	}
}

func TestNormalizeTerm(t *testing.T) {
	resolver := identity.NewResolver(nil)
	cases := map[string]string{
		"fns-075":          "FNS-075",
		"FNS-075.mp4":      "FNS-075",
		"site.com@fns-075": "FNS-075",
		"vdo-001-pt1":      "VDO-001-pt1",
		" abc-def-12345 ":  "DEF-12345",
		"random words":     "RANDOM WORDS",
		"abc123":           "ABC123",
		"":                 "",
	}
	for input, want := range cases {
		if got := resolver.NormalizeTerm(input); got != want {
			t.Fatalf("NormalizeTerm(%q) = %q, want %q", input, got, want)
		}
	}
}

func TestCompactFallback(t *testing.T) {
	if got, ok := identity.CompactFallback("abc123"); !ok || got != "ABC-123" {
		t.Fatalf("CompactFallback(abc123) = %q, %v", got, ok)
	}
	for _, term := range []string{"ABC-123", "123ABC", "ABC", "A1B2"} {
		if _, ok := identity.CompactFallback(term); ok {
			t.Fatalf("CompactFallback(%q) should not apply", term)
		}
	}
}

func TestEmptyCaptureDoesNotFallThrough(t *testing.T) {
	rules, err := identity.CompileRules([]config.IdentityRule{
		{Name: "optional-code", Pattern: `(?i)^clip(\w*)\.(mp4)$`, IdentityGroup: 1, ExtensionGroup: 2},
		{Name: "catch-all", Pattern: `(?i)^(\w+)\.(mp4)$`, IdentityGroup: 1, ExtensionGroup: 2},
	})
	if err != nil {
		t.Fatalf("CompileRules: %v", err)
	}
	resolver := identity.NewResolver(rules)
	if id, ok := resolver.Resolve("clip.mp4"); ok {
		t.Fatalf("first matching rule yielded no token; later rules must not be used, got %+v", id)
	}
	id, ok := resolver.Resolve("clipABC.mp4")
	if !ok || id.Rule != "optional-code" || id.Token != "ABC" {
		t.Fatalf("unexpected identity %+v ok=%v", id, ok)
	}
}
