// Package domain holds the normalized records produced from SkyWalking responses.
package domain

// Service is a service registered in SkyWalking.
type Service struct {
	ID        string
	Name      string
	ShortName string
	// Normal is false for virtual services (e.g. databases or MQ seen only as peers).
	Normal bool
	Layers []string
}

// PrimaryLayer returns the first layer of the service, or "GENERAL" when none is reported.
func (s *Service) PrimaryLayer() string {
	if s == nil || len(s.Layers) == 0 {
		return "GENERAL"
	}
	return s.Layers[0]
}
