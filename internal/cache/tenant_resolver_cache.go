package cache

import (
	"time"

	tenantdomain "github.com/smallbiznis/votechain/internal/tenant/domain"
)

const (
	defaultSettingsTTL = 60 * time.Second
	defaultPolicyTTL   = 30 * time.Second
)

// TenantResolverCache stores hot-path tenant lookups consulted on every
// intake and settlement decision. Invalidate is called on explicit policy
// updates so a tenant never observes a stale policy past one write.
type TenantResolverCache interface {
	GetSettings(businessID string) (*tenantdomain.TenantSettings, bool)
	SetSettings(businessID string, settings *tenantdomain.TenantSettings)
	GetPolicy(businessID string) (tenantdomain.BatchingPolicy, bool)
	SetPolicy(businessID string, policy tenantdomain.BatchingPolicy)
	Invalidate(businessID string)
}

type tenantResolverCache struct {
	settings Cache[string, *tenantdomain.TenantSettings]
	policies Cache[string, tenantdomain.BatchingPolicy]

	settingsTTL time.Duration
	policyTTL   time.Duration
}

// NewTenantResolverCache returns an in-memory cache tuned for intake traffic.
func NewTenantResolverCache() TenantResolverCache {
	return &tenantResolverCache{
		settings:    NewTTLCache[string, *tenantdomain.TenantSettings](),
		policies:    NewTTLCache[string, tenantdomain.BatchingPolicy](),
		settingsTTL: defaultSettingsTTL,
		policyTTL:   defaultPolicyTTL,
	}
}

func (c *tenantResolverCache) GetSettings(businessID string) (*tenantdomain.TenantSettings, bool) {
	return c.settings.Get(businessID)
}

func (c *tenantResolverCache) SetSettings(businessID string, settings *tenantdomain.TenantSettings) {
	if settings == nil {
		return
	}
	c.settings.Set(businessID, settings, c.settingsTTL)
}

func (c *tenantResolverCache) GetPolicy(businessID string) (tenantdomain.BatchingPolicy, bool) {
	return c.policies.Get(businessID)
}

func (c *tenantResolverCache) SetPolicy(businessID string, policy tenantdomain.BatchingPolicy) {
	c.policies.Set(businessID, policy, c.policyTTL)
}

func (c *tenantResolverCache) Invalidate(businessID string) {
	c.settings.Delete(businessID)
	c.policies.Delete(businessID)
}
