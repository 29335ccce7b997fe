package registry

import (
	"os"
	"strings"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/sells-group/event-scout/internal/model"
)

// LoadProfiles reads named interest profiles from a YAML file. Profiles
// without a name are skipped with a warning.
func LoadProfiles(path string) ([]model.InterestProfile, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, eris.Wrapf(err, "registry: read profiles %s", path)
	}

	// The YAML has a top-level "profiles" key
	var wrapper struct {
		Profiles []model.InterestProfile `yaml:"profiles"`
	}
	if err := yaml.Unmarshal(data, &wrapper); err != nil {
		return nil, eris.Wrap(err, "registry: parse profiles")
	}

	profiles := wrapper.Profiles[:0]
	for _, p := range wrapper.Profiles {
		if p.Name == "" {
			zap.L().Warn("registry: skipping unnamed profile",
				zap.String("path", path),
			)
			continue
		}
		profiles = append(profiles, p)
	}

	return profiles, nil
}

// FindProfile returns the profile with the given name, ignoring case.
func FindProfile(profiles []model.InterestProfile, name string) (model.InterestProfile, bool) {
	for _, p := range profiles {
		if strings.EqualFold(p.Name, name) {
			return p, true
		}
	}
	return model.InterestProfile{}, false
}

// SaveProfiles writes the profiles back to the YAML file, preserving the
// top-level "profiles" key.
func SaveProfiles(path string, profiles []model.InterestProfile) error {
	wrapper := struct {
		Profiles []model.InterestProfile `yaml:"profiles"`
	}{Profiles: profiles}

	data, err := yaml.Marshal(wrapper)
	if err != nil {
		return eris.Wrap(err, "registry: marshal profiles")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "registry: write profiles %s", path)
	}
	return nil
}

// UpsertProfile replaces the same-named profile or appends a new one.
func UpsertProfile(profiles []model.InterestProfile, p model.InterestProfile) []model.InterestProfile {
	for i := range profiles {
		if strings.EqualFold(profiles[i].Name, p.Name) {
			profiles[i] = p
			return profiles
		}
	}
	return append(profiles, p)
}
