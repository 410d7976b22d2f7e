package event

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestHandlerRegistry(t *testing.T) {
	t.Run("typed handlers come before wildcard handlers", func(t *testing.T) {
		r := NewHandlerRegistry()
		typed := newTestHandler()
		wildcard := newTestHandler()
		r.Register(wildcard)
		r.Register(typed, "Applied")

		handlers := r.GetHandlers("Applied")
		assert.Len(t, handlers, 2)
		assert.Same(t, typed, handlers[0])
		assert.Same(t, wildcard, handlers[1])
		assert.Len(t, r.GetHandlers("Sent"), 1)
	})

	t.Run("registering twice for a type is ignored", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		r.Register(h, "Applied")
		r.Register(h, "Applied", "Sent")

		assert.Len(t, r.GetHandlers("Applied"), 1)
		assert.Len(t, r.GetHandlers("Sent"), 1)
		assert.Equal(t, 1, r.HandlerCount())
	})

	t.Run("unregister removes every subscription", func(t *testing.T) {
		r := NewHandlerRegistry()
		h := newTestHandler()
		other := newTestHandler()
		r.Register(h, "Applied", "Sent")
		r.Register(h)
		r.Register(other, "Applied")

		r.Unregister(h)

		assert.Equal(t, 1, r.HandlerCount())
		assert.Empty(t, r.GetHandlers("Sent"))
		assert.Len(t, r.GetHandlers("Applied"), 1)
	})
}
