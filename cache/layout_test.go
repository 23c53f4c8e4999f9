package cache

import "testing"

func TestHashedLayoutDistinctKeysDistinctPaths(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := hashedLayout{}

	p1, _, err := l.paths(root, "https://a.test/x")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	p2, _, err := l.paths(root, "https://b.test/y")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if p1 == p2 {
		t.Fatalf("expected distinct payload paths, got %q for both", p1)
	}
}

func TestHashedLayoutStableForSameKey(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := hashedLayout{}

	p1, pol1, err := l.paths(root, "https://a.test/x")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	p2, pol2, err := l.paths(root, "https://a.test/x")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if p1 != p2 || pol1 != pol2 {
		t.Fatalf("expected identical paths for the same key, got (%q,%q) and (%q,%q)", p1, pol1, p2, pol2)
	}
}

func TestBasicLayoutSanitizesKey(t *testing.T) {
	t.Parallel()

	root := t.TempDir()
	l := basicLayout{}
	payload, policyFile, err := l.paths(root, "https://a.test/x?y=1&z=2")
	if err != nil {
		t.Fatalf("paths: %v", err)
	}
	if payload == "" || policyFile == "" {
		t.Fatal("expected non-empty paths")
	}
}
