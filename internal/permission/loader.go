package permission

import (
	"fmt"
	"os"

	"github.com/cwrk-planet/realtime-service/internal/domain"

	"gopkg.in/yaml.v3"
)

// roles.yaml:
//
//	permissions:
//	  client: [service_provider, property_owner]
//	  admin: [client, service_provider]
type rulesFile struct {
	Permissions map[string][]string `yaml:"permissions"`
}

func ParseYAML(data []byte) (Rules, error) {
	var f rulesFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse roles: %w", err)
	}
	if len(f.Permissions) == 0 {
		return nil, fmt.Errorf("parse roles: empty permissions table")
	}

	rules := make(Rules, len(f.Permissions))
	for sender, receivers := range f.Permissions {
		s := domain.ParseRole(sender)
		for _, r := range receivers {
			rules[s] = append(rules[s], domain.ParseRole(r))
		}
		if _, ok := rules[s]; !ok {
			rules[s] = nil
		}
	}

	return rules, nil
}

func LoadFile(path string) (*Gate, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read roles file: %w", err)
	}
	rules, err := ParseYAML(data)
	if err != nil {
		return nil, err
	}

	return NewGate(rules), nil
}
