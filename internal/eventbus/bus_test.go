package eventbus

import "testing"

func TestPublishDeliversToTypedAndWildcard(t *testing.T) {
	b := New()
	var typedHits, wildcardHits int

	b.Subscribe("tool:result", func(Envelope) { typedHits++ })
	b.Subscribe("*", func(Envelope) { wildcardHits++ })

	b.Publish("tool:result", map[string]any{"ok": true})
	b.Publish("other:event", nil)

	if typedHits != 1 {
		t.Fatalf("expected 1 typed hit, got %d", typedHits)
	}
	if wildcardHits != 2 {
		t.Fatalf("expected 2 wildcard hits, got %d", wildcardHits)
	}
}

func TestDisposeRemovesSubscriber(t *testing.T) {
	b := New()
	var hits int
	dispose := b.Subscribe("e", func(Envelope) { hits++ })

	b.Publish("e", nil)
	dispose()
	b.Publish("e", nil)

	if hits != 1 {
		t.Fatalf("expected 1 hit after dispose, got %d", hits)
	}
}
