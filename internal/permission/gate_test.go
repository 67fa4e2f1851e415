package permission

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const rolesYAML = `
permissions:
  client: [service_provider, property_owner, support]
  service_provider: [client, admin]
  admin: [client, service_provider, property_owner, support]
  support: []
`

func TestGate_Directional(t *testing.T) {
	rules, err := ParseYAML([]byte(rolesYAML))
	require.NoError(t, err)
	g := NewGate(rules)

	assert.True(t, g.CanMessage(domain.RoleClient, domain.RoleServiceProvider))
	assert.True(t, g.CanMessage(domain.RoleServiceProvider, domain.RoleAdmin))
	assert.False(t, g.CanMessage(domain.RoleClient, domain.RoleAdmin))
	assert.True(t, g.CanMessage(domain.RoleAdmin, domain.RoleClient))
	// support → client не разрешён, хотя client → support разрешён
	assert.False(t, g.CanMessage(domain.RoleSupport, domain.RoleClient))
	assert.False(t, g.CanMessage("unknown", domain.RoleClient))
}

func TestGate_DeterministicForAllPairs(t *testing.T) {
	rules, err := ParseYAML([]byte(rolesYAML))
	require.NoError(t, err)
	g := NewGate(rules)

	roles := []domain.Role{
		domain.RoleClient, domain.RoleServiceProvider, domain.RolePropertyOwner,
		domain.RoleSupport, domain.RoleAdmin, "guest",
	}
	for _, a := range roles {
		for _, b := range roles {
			want := false
			for _, r := range rules[a] {
				if r == b {
					want = true
				}
			}
			for i := 0; i < 3; i++ {
				assert.Equal(t, want, g.CanMessage(a, b), "%s -> %s", a, b)
			}
		}
	}
}

func TestGate_CopiesRules(t *testing.T) {
	rules := Rules{domain.RoleClient: {domain.RoleSupport}}
	g := NewGate(rules)
	rules[domain.RoleClient] = append(rules[domain.RoleClient], domain.RoleAdmin)

	assert.False(t, g.CanMessage(domain.RoleClient, domain.RoleAdmin))
	assert.Equal(t, []domain.Role{domain.RoleSupport}, g.Rules()[domain.RoleClient])
}

func TestNilGate_DeniesEverything(t *testing.T) {
	var g *Gate
	assert.False(t, g.CanMessage(domain.RoleAdmin, domain.RoleAdmin))
}

func TestParseYAML_Errors(t *testing.T) {
	_, err := ParseYAML([]byte("permissions: {}"))
	assert.Error(t, err)

	_, err = ParseYAML([]byte("permissions: ["))
	assert.Error(t, err)
}

func TestLoadFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "roles.yaml")
	require.NoError(t, os.WriteFile(path, []byte(rolesYAML), 0o600))

	g, err := LoadFile(path)
	require.NoError(t, err)
	assert.True(t, g.CanMessage(domain.RoleClient, domain.RolePropertyOwner))

	_, err = LoadFile(filepath.Join(t.TempDir(), "missing.yaml"))
	assert.Error(t, err)
}
