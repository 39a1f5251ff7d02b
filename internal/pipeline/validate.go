package pipeline

import (
	"fmt"
	"net/url"
	"strings"

	"reel-compare/internal/domain"
	"reel-compare/internal/domain/model"
)

// ValidateSource checks the source shape and the host allow-list. It
// runs before any external call: a disallowed source never enters the
// pipeline.
func ValidateSource(src model.Source, allowedHosts []string) error {
	if len(src.Notes) > model.MaxSourceNotes {
		return fmt.Errorf("notes exceed %d characters: %w", model.MaxSourceNotes, domain.ErrInvalidRequest)
	}
	switch src.Kind {
	case model.SourceKindURL:
		return validateAddress(src.Address, allowedHosts)
	case model.SourceKindUpload:
		if strings.TrimSpace(src.FileKey) == "" {
			return fmt.Errorf("upload source without file key: %w", domain.ErrInvalidRequest)
		}
		return nil
	default:
		return fmt.Errorf("unknown source kind %q: %w", src.Kind, domain.ErrInvalidRequest)
	}
}

func validateAddress(address string, allowedHosts []string) error {
	u, err := url.Parse(strings.TrimSpace(address))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return fmt.Errorf("%q: %w", address, domain.ErrInvalidURL)
	}
	host := strings.ToLower(u.Hostname())
	for _, allowed := range allowedHosts {
		allowed = strings.ToLower(allowed)
		if host == allowed || strings.HasSuffix(host, "."+allowed) {
			return nil
		}
	}
	return fmt.Errorf("host %q: %w", host, domain.ErrUnsupportedHost)
}
