package realtime

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscribeIsIdempotentPerKey(t *testing.T) {
	r := NewRegistry()

	attached := 0
	canceled := 0
	start := func(Token) func() {
		attached++
		return func() { canceled++ }
	}

	r.Subscribe("conversations_u1", start)
	r.Subscribe("conversations_u1", start)

	// İkinci subscribe eskisini kapatmış olmalı — tek aktif listener kalır.
	assert.Equal(t, 2, attached)
	assert.Equal(t, 1, canceled)
	assert.True(t, r.Active("conversations_u1"))

	r.Unsubscribe("conversations_u1")
	assert.Equal(t, 2, canceled)
	assert.False(t, r.Active("conversations_u1"))
}

func TestTokenDiesAfterUnsubscribe(t *testing.T) {
	r := NewRegistry()

	var token Token
	r.Subscribe("feed", func(tok Token) func() {
		token = tok
		return func() {}
	})
	require.True(t, token.Alive())

	r.Unsubscribe("feed")

	// Unsubscribe sonrası yolda kalan snapshot'ın callback'i bu kontrole
	// takılır — çalışmaz.
	assert.False(t, token.Alive())
}

func TestResubscribeInvalidatesOldGeneration(t *testing.T) {
	r := NewRegistry()

	var first, second Token
	r.Subscribe("k", func(tok Token) func() {
		first = tok
		return func() {}
	})
	r.Subscribe("k", func(tok Token) func() {
		second = tok
		return func() {}
	})

	assert.False(t, first.Alive(), "eski generation ölü olmalı")
	assert.True(t, second.Alive())
}

func TestUnsubscribeUnknownKeyIsNoop(t *testing.T) {
	r := NewRegistry()
	r.Unsubscribe("missing") // panik yok, hata yok
	assert.False(t, r.Active("missing"))
}

func TestCloseCancelsEverything(t *testing.T) {
	r := NewRegistry()

	canceled := 0
	for _, key := range []string{"a", "b", "c"} {
		r.Subscribe(key, func(Token) func() {
			return func() { canceled++ }
		})
	}

	r.Close()
	assert.Equal(t, 3, canceled)
	assert.False(t, r.Active("a"))
}
