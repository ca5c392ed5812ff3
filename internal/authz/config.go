package authz

import (
	"errors"
	"fmt"
	"strings"
)

// ErrConfiguration wraps defects in the static security tables. These are
// meant to be caught by Validate at boot; reaching one at request time is
// fatal and is never silently defaulted.
var ErrConfiguration = errors.New("authz: configuration error")

// Rule declares who may perform an operation on a resource: either an
// explicit allow-list of role names, or a minimum-role threshold using
// the role priority ordering. When both are set the allow-list wins.
type Rule struct {
	Allowed []string
	MinRole string
}

// Config is the immutable authorization configuration: role table,
// permission rules, policy table and per-resource security records.
// It is built once at process start and read concurrently without
// synchronization; nothing mutates it afterwards.
type Config struct {
	roles     map[string]Role
	rules     map[string]map[Operation]Rule
	policies  map[string]map[string]PolicyToken
	resources map[string]ResourceRule
}

// NewConfig assembles and validates a Config. Rules maps resource name to
// per-operation rules; policies maps role name to resource name to policy
// token.
func NewConfig(
	roles []Role,
	resources map[string]ResourceRule,
	rules map[string]map[Operation]Rule,
	policies map[string]map[string]PolicyToken,
) (*Config, error) {
	cfg := &Config{
		roles:     make(map[string]Role, len(roles)),
		rules:     rules,
		policies:  policies,
		resources: resources,
	}
	for _, role := range roles {
		name := strings.TrimSpace(role.Name)
		if name == "" {
			return nil, fmt.Errorf("%w: role with empty name", ErrConfiguration)
		}
		if _, dup := cfg.roles[name]; dup {
			return nil, fmt.Errorf("%w: duplicate role %q", ErrConfiguration, name)
		}
		role.Name = name
		cfg.roles[name] = role
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) validate() error {
	for name, rule := range c.resources {
		if rule.Classification == ClassificationUnknown {
			return fmt.Errorf("%w: resource %q has no null-classification", ErrConfiguration, name)
		}
		for token, column := range rule.OwnerColumns {
			if token == PolicyUnset || token == PolicyAllRecords {
				return fmt.Errorf("%w: resource %q binds non-ownership policy %q to a column", ErrConfiguration, name, token)
			}
			if column == "" {
				return fmt.Errorf("%w: resource %q policy %q has empty owner column", ErrConfiguration, name, token)
			}
		}
	}
	for resource, ops := range c.rules {
		if _, ok := c.resources[resource]; !ok {
			return fmt.Errorf("%w: permission rule for unregistered resource %q", ErrConfiguration, resource)
		}
		for op, rule := range ops {
			for _, role := range rule.Allowed {
				if _, ok := c.roles[role]; !ok {
					return fmt.Errorf("%w: rule %s/%s allows unknown role %q", ErrConfiguration, resource, op, role)
				}
			}
			if rule.MinRole != "" {
				if _, ok := c.roles[rule.MinRole]; !ok {
					return fmt.Errorf("%w: rule %s/%s requires unknown role %q", ErrConfiguration, resource, op, rule.MinRole)
				}
			}
		}
	}
	for role, byResource := range c.policies {
		if _, ok := c.roles[role]; !ok {
			return fmt.Errorf("%w: policy entry for unknown role %q", ErrConfiguration, role)
		}
		for resource, token := range byResource {
			rule, ok := c.resources[resource]
			if !ok {
				return fmt.Errorf("%w: policy entry for unregistered resource %q", ErrConfiguration, resource)
			}
			switch token {
			case PolicyUnset, PolicyAllRecords:
			default:
				if _, ok := rule.OwnerColumns[token]; !ok {
					return fmt.Errorf("%w: resource %q does not recognize policy %q", ErrConfiguration, resource, token)
				}
			}
		}
	}
	return nil
}

// Role returns the named role.
func (c *Config) Role(name string) (Role, bool) {
	role, ok := c.roles[name]
	return role, ok
}

// Resource returns the security record for a resource.
func (c *Config) Resource(name string) (ResourceRule, bool) {
	rule, ok := c.resources[name]
	return rule, ok
}

// HasAtLeast reports whether role meets the threshold role's priority.
// Unknown roles on either side fail the check.
func (c *Config) HasAtLeast(role, threshold string) bool {
	r, ok := c.roles[role]
	if !ok || !r.Active {
		return false
	}
	t, ok := c.roles[threshold]
	if !ok {
		return false
	}
	return r.Priority >= t.Priority
}

// IsAllowed decides whether role may perform op on resource. Unknown
// roles, resources or operations deny; an inactive role denies; a
// resource with no rule for the operation denies. Never panics.
func (c *Config) IsAllowed(role, resource string, op Operation) bool {
	r, ok := c.roles[role]
	if !ok || !r.Active {
		return false
	}
	ops, ok := c.rules[resource]
	if !ok {
		return false
	}
	rule, ok := ops[op]
	if !ok {
		return false
	}
	if len(rule.Allowed) > 0 {
		for _, name := range rule.Allowed {
			if name == role {
				return true
			}
		}
		return false
	}
	if rule.MinRole != "" {
		return c.HasAtLeast(role, rule.MinRole)
	}
	return false
}

// ResolvePolicy looks up the policy token for a (role, resource) pair.
// PolicyUnset is a valid first-class result, not an error.
func (c *Config) ResolvePolicy(role, resource string) PolicyToken {
	byResource, ok := c.policies[role]
	if !ok {
		return PolicyUnset
	}
	return byResource[resource]
}

// Filter resolves the policy for actx.Role on resource and renders its
// row-level-security fragment. A resource missing from the configuration
// fails closed.
func (c *Config) Filter(actx *RequestAuthContext, resource string) Fragment {
	rule, ok := c.resources[resource]
	if !ok {
		return NewFragment(RawFalse(), true)
	}
	if actx == nil {
		return BuildFilter(nil, rule)
	}
	scoped := *actx
	scoped.Resource = resource
	if scoped.Policy == PolicyUnset {
		scoped.Policy = c.ResolvePolicy(scoped.Role, resource)
	}
	return BuildFilter(&scoped, rule)
}
