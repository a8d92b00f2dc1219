package registry

import (
	"fmt"
	"sync"
	"testing"

	"github.com/aloqachat/aloqa/channels"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRegistry_RegisterAndLookup(t *testing.T) {
	r := NewAccountRegistry()

	r.Register(AccountInfo{
		ExternalID:  "17841400001",
		TenantID:    "tenant-a",
		Channel:     channels.ChannelInstagram,
		AccessToken: "tok",
		DisplayName: "Aloqa Store",
	})

	info, ok := r.Lookup(channels.ChannelInstagram, "17841400001")
	require.True(t, ok)
	assert.Equal(t, "tenant-a", info.TenantID)

	// Same external id on another channel is a different key
	_, ok = r.Lookup(channels.ChannelFacebook, "17841400001")
	assert.False(t, ok)
}

func TestRegistry_LookupMissIsNormal(t *testing.T) {
	r := NewAccountRegistry()
	_, ok := r.Lookup(channels.ChannelTelegram, "unknown")
	assert.False(t, ok)
}

func TestRegistry_ConcurrentReadsDuringWrites(t *testing.T) {
	r := NewAccountRegistry()
	r.Register(AccountInfo{ExternalID: "page-0", TenantID: "t0", Channel: channels.ChannelFacebook})

	var wg sync.WaitGroup
	stop := make(chan struct{})

	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for {
				select {
				case <-stop:
					return
				default:
				}
				if info, ok := r.Lookup(channels.ChannelFacebook, "page-0"); ok {
					// An entry must always be fully formed
					assert.Equal(t, "t0", info.TenantID)
				}
			}
		}()
	}

	for i := 1; i <= 200; i++ {
		r.Register(AccountInfo{
			ExternalID: fmt.Sprintf("page-%d", i),
			TenantID:   fmt.Sprintf("t%d", i),
			Channel:    channels.ChannelFacebook,
		})
	}
	close(stop)
	wg.Wait()

	assert.Equal(t, 201, r.Len())
}

func TestRegistry_Unregister(t *testing.T) {
	r := NewAccountRegistry()
	r.Register(AccountInfo{ExternalID: "x", TenantID: "t", Channel: channels.ChannelTelegram})
	r.Unregister(channels.ChannelTelegram, "x")
	_, ok := r.Lookup(channels.ChannelTelegram, "x")
	assert.False(t, ok)
}

func TestRegistry_ByTenant(t *testing.T) {
	r := NewAccountRegistry()
	r.Register(AccountInfo{ExternalID: "a", TenantID: "t1", Channel: channels.ChannelInstagram})
	r.Register(AccountInfo{ExternalID: "b", TenantID: "t1", Channel: channels.ChannelFacebook})
	r.Register(AccountInfo{ExternalID: "c", TenantID: "t2", Channel: channels.ChannelFacebook})

	assert.Len(t, r.ByTenant("t1"), 2)
	assert.Len(t, r.ByTenant("t2"), 1)
}
