package model

// InterestProfile is a named coverage profile for a photographer: the
// beats they shoot, where they work, and the access they hold. Profiles
// seed DiscoveryRequest fields that the caller leaves blank.
type InterestProfile struct {
	Name        string   `yaml:"name" json:"name"`
	Location    string   `yaml:"location,omitempty" json:"location,omitempty"`
	Interests   []string `yaml:"interests,omitempty" json:"interests,omitempty"`
	Keywords    []string `yaml:"keywords,omitempty" json:"keywords,omitempty"`
	Credentials []string `yaml:"credentials,omitempty" json:"credentials,omitempty"`
	Domains     []string `yaml:"domains,omitempty" json:"domains,omitempty"`
}

// Apply fills blank request fields from the profile. Explicit request
// values always win.
func (p InterestProfile) Apply(req DiscoveryRequest) DiscoveryRequest {
	if req.Location == "" {
		req.Location = p.Location
	}
	if len(req.Interests) == 0 {
		req.Interests = append([]string(nil), p.Interests...)
	}
	return req
}
