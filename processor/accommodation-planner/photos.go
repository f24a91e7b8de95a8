package accommodationplanner

import (
	"net/url"
	"regexp"
	"strings"

	"golang.org/x/net/publicsuffix"

	"github.com/c360studio/skitrip/trip"
)

// MaxPhotos caps the photos kept per option.
const MaxPhotos = 5

// placeholderPatterns match URLs a model invents when it has no real photo.
var placeholderPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?i)placeholder`),
	regexp.MustCompile(`(?i)(photo|image)\d+\.(jpg|jpeg|png)$`),
	regexp.MustCompile(`(?i)/\d{4}/photo\d+\.`),
	regexp.MustCompile(`(?i)/placeholder\d+\.`),
}

var (
	imageExtension = regexp.MustCompile(`(?i)\.(jpg|jpeg|png|webp|gif)(\?|$)`)
	hostLabel      = regexp.MustCompile(`^[a-z0-9]([a-z0-9-]*[a-z0-9])?$`)
	topLevelDomain = regexp.MustCompile(`^[a-z]{2,}$`)
)

// IsPlaceholderPhoto reports whether raw looks like an invented image URL.
func IsPlaceholderPhoto(raw string) bool {
	for _, p := range placeholderPatterns {
		if p.MatchString(raw) {
			return true
		}
	}
	return false
}

// IsValidPhotoURL reports whether raw is a direct http(s) image URL on a real
// domain that does not match any placeholder pattern.
func IsValidPhotoURL(raw string) bool {
	raw = strings.TrimSpace(raw)
	if raw == "" || IsPlaceholderPhoto(raw) {
		return false
	}
	if !imageExtension.MatchString(raw) {
		return false
	}
	return hasValidDomain(raw)
}

func hasValidDomain(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return false
	}

	host := strings.ToLower(u.Hostname())
	labels := strings.Split(host, ".")
	if len(labels) < 2 {
		return false
	}
	for _, l := range labels {
		if !hostLabel.MatchString(l) {
			return false
		}
	}
	if !topLevelDomain.MatchString(labels[len(labels)-1]) {
		return false
	}

	// Reject hosts whose suffix is not on the public suffix list.
	suffix, icann := publicsuffix.PublicSuffix(host)
	if !icann && !strings.Contains(suffix, ".") {
		return false
	}
	_, err = publicsuffix.EffectiveTLDPlusOne(host)
	return err == nil
}

// SanitizePhotos keeps the valid photo URLs in order, capped at MaxPhotos.
// The result is never nil.
func SanitizePhotos(photos []string) []string {
	out := make([]string, 0, min(len(photos), MaxPhotos))
	for _, p := range photos {
		if len(out) == MaxPhotos {
			break
		}
		if IsValidPhotoURL(p) {
			out = append(out, strings.TrimSpace(p))
		}
	}
	return out
}

// sanitizeOptions returns copies of options with their photos sanitized.
func sanitizeOptions(options []trip.AccommodationOption) []trip.AccommodationOption {
	out := make([]trip.AccommodationOption, len(options))
	for i, o := range options {
		o.Photos = SanitizePhotos(o.Photos)
		out[i] = o
	}
	return out
}
