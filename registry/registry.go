// Package registry maps channel-specific external identifiers (Meta page id,
// Instagram business id, Telegram bot id) to tenant credentials. It is read
// on every inbound webhook event, so reads are lock-free against a
// copy-on-write snapshot; writes clone the map under a mutex.
package registry

import (
	"sync"
	"sync/atomic"

	"github.com/aloqachat/aloqa/channels"
	"github.com/sirupsen/logrus"
)

// AccountInfo is one registered channel account.
type AccountInfo struct {
	ExternalID  string
	TenantID    string
	Channel     channels.Channel
	AccessToken string
	DisplayName string
	PageID      string
	Metadata    map[string]string
}

// AccountRegistry is an injected, explicitly-owned lookup table. A lookup
// miss (unregistered page/bot) is a normal outcome, not an error.
type AccountRegistry struct {
	mu       sync.Mutex // serializes writers only
	snapshot atomic.Pointer[map[string]AccountInfo]
}

// NewAccountRegistry creates an empty registry.
func NewAccountRegistry() *AccountRegistry {
	r := &AccountRegistry{}
	empty := make(map[string]AccountInfo)
	r.snapshot.Store(&empty)
	return r
}

func key(ch channels.Channel, externalID string) string {
	return string(ch) + ":" + externalID
}

// Register inserts or replaces an account entry. Readers never observe a
// half-written entry: the snapshot is swapped atomically.
func (r *AccountRegistry) Register(info AccountInfo) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.snapshot.Load()
	next := make(map[string]AccountInfo, len(old)+1)
	for k, v := range old {
		next[k] = v
	}
	next[key(info.Channel, info.ExternalID)] = info
	r.snapshot.Store(&next)

	logrus.WithFields(logrus.Fields{
		"channel":     info.Channel,
		"external_id": info.ExternalID,
		"tenant":      info.TenantID,
	}).Info("[REGISTRY] Account registered")
}

// Unregister removes an account entry if present.
func (r *AccountRegistry) Unregister(ch channels.Channel, externalID string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old := *r.snapshot.Load()
	k := key(ch, externalID)
	if _, ok := old[k]; !ok {
		return
	}
	next := make(map[string]AccountInfo, len(old))
	for ok, ov := range old {
		if ok == k {
			continue
		}
		next[ok] = ov
	}
	r.snapshot.Store(&next)
}

// Lookup resolves an external id to account info. The second return value
// reports whether the account is registered.
func (r *AccountRegistry) Lookup(ch channels.Channel, externalID string) (AccountInfo, bool) {
	m := *r.snapshot.Load()
	info, ok := m[key(ch, externalID)]
	return info, ok
}

// ByTenant returns all accounts registered for a tenant.
func (r *AccountRegistry) ByTenant(tenantID string) []AccountInfo {
	m := *r.snapshot.Load()
	var out []AccountInfo
	for _, v := range m {
		if v.TenantID == tenantID {
			out = append(out, v)
		}
	}
	return out
}

// ByChannel returns all accounts registered for a channel.
func (r *AccountRegistry) ByChannel(ch channels.Channel) []AccountInfo {
	m := *r.snapshot.Load()
	var out []AccountInfo
	for _, v := range m {
		if v.Channel == ch {
			out = append(out, v)
		}
	}
	return out
}

// Len returns the number of registered accounts.
func (r *AccountRegistry) Len() int {
	return len(*r.snapshot.Load())
}
