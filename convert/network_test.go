package convert

import "testing"

func TestURLBlacklistAllowsOwnBaseURL(t *testing.T) {
	t.Parallel()

	b := NewURLBlacklist([]string{"https://example.test/*"}, "https://example.test/page")
	if b.Blocked("https://example.test/page") {
		t.Fatal("expected the conversion's own input URL to never be blocked")
	}
}

func TestURLBlacklistBlocksMatchingGlob(t *testing.T) {
	t.Parallel()

	b := NewURLBlacklist([]string{"https://ads.test/*"}, "https://example.test/page")
	if !b.Blocked("https://ads.test/banner.png") {
		t.Fatal("expected a blacklisted URL to be blocked")
	}
	if b.Blocked("https://cdn.test/photo.png") {
		t.Fatal("expected a non-matching URL to be unblocked")
	}
}

func TestURLBlacklistNilIsNeverBlocking(t *testing.T) {
	t.Parallel()

	var b *urlBlacklist
	if b.Blocked("https://anything.test/x") {
		t.Fatal("expected a nil blacklist to never block")
	}
}
