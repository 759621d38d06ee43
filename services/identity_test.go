package services

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIdentityBrokerStartsSignedOut(t *testing.T) {
	b := NewIdentityBroker()

	_, signedIn := b.CurrentIdentity()
	assert.False(t, signedIn)
}

func TestOnIdentityChangedCallsBackImmediately(t *testing.T) {
	b := NewIdentityBroker()
	b.SignIn(Identity{UserID: "u1", Username: "ayse"})

	// Geç gelen abone mevcut durumu kaçırmaz
	var got Identity
	var gotSignedIn bool
	unsubscribe := b.OnIdentityChanged(func(id Identity, signedIn bool) {
		got = id
		gotSignedIn = signedIn
	})
	defer unsubscribe()

	require.True(t, gotSignedIn)
	assert.Equal(t, "u1", got.UserID)
	assert.Equal(t, "ayse", got.Username)
}

func TestIdentityBrokerAnnouncesTransitions(t *testing.T) {
	b := NewIdentityBroker()

	var mu sync.Mutex
	type event struct {
		id       Identity
		signedIn bool
	}
	var events []event
	unsubscribe := b.OnIdentityChanged(func(id Identity, signedIn bool) {
		mu.Lock()
		events = append(events, event{id, signedIn})
		mu.Unlock()
	})
	defer unsubscribe()

	b.SignIn(Identity{UserID: "u1", Username: "ayse"})
	b.SignOut()

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, events, 3) // kayıt anı + sign-in + sign-out
	assert.False(t, events[0].signedIn)
	assert.True(t, events[1].signedIn)
	assert.Equal(t, "u1", events[1].id.UserID)
	assert.False(t, events[2].signedIn)
	assert.Empty(t, events[2].id.UserID)
}

func TestUnsubscribeStopsIdentityCallbacks(t *testing.T) {
	b := NewIdentityBroker()

	var mu sync.Mutex
	calls := 0
	unsubscribe := b.OnIdentityChanged(func(Identity, bool) {
		mu.Lock()
		calls++
		mu.Unlock()
	})
	unsubscribe()

	b.SignIn(Identity{UserID: "u1"})

	mu.Lock()
	assert.Equal(t, 1, calls) // yalnızca kayıt anındaki çağrı
	mu.Unlock()
}

func TestIdentityCallbackMayReenterBroker(t *testing.T) {
	b := NewIdentityBroker()

	// Callback içinden broker'a geri dönmek deadlock yapmamalı
	var seen bool
	unsubscribe := b.OnIdentityChanged(func(id Identity, signedIn bool) {
		_, current := b.CurrentIdentity()
		seen = signedIn == current
	})
	defer unsubscribe()

	b.SignIn(Identity{UserID: "u1"})
	assert.True(t, seen)
}
