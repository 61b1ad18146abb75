//
//  internal/requestinfo/requestinfo.go
//
//  Per-request metadata: user-agent fingerprint, client IP with optional
//  geolocation, and arrival time.  These structs are inert, so they are
//  safe to log or JSON-encode.  Request logs tag bots and countries, and
//  the debug component echoes the whole record.
//
//  Dependencies
//  • github.com/avct/uasurfer          (UA parsing)
//  • github.com/oschwald/geoip2-golang (MaxMind lookup, optional)
//

package requestinfo

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/avct/uasurfer"
	"github.com/oschwald/geoip2-golang"
)

//
//  -----------------------------
//  Struct definitions
//  -----------------------------
//

// UA holds the parsed user-agent properties.
//
// Example (Chrome on macOS):
//
//	Browser   "Chrome"
//	Version   "125.0.6422"
//	OS        "MacOSX"
//	OSVersion "14.4"
//	Device    "Desktop"
//	Platform  "Mac"
//
// Device is one of "Desktop", "Mobile", "Tablet", or "Other".
type UA struct {
	Raw         string `json:"-"`
	Browser     string `json:"browser,omitempty"`
	Version     string `json:"version,omitempty"`
	OS          string `json:"os,omitempty"`
	OSVersion   string `json:"os_version,omitempty"`
	Device      string `json:"device"`
	Platform    string `json:"platform,omitempty"`
	IsBot       bool   `json:"bot"`
	PrimaryLang string `json:"lang,omitempty"`
}

// Geo holds best-effort location hints; fields are empty when no database
// is loaded or the address has no match.
type Geo struct {
	IP         net.IP `json:"ip,omitempty"`
	CountryISO string `json:"country,omitempty"`
	City       string `json:"city,omitempty"`
}

// RequestInfo is stored in the request context by Enrich.
type RequestInfo struct {
	UA        UA        `json:"ua"`
	Geo       Geo       `json:"geo"`
	Path      string    `json:"path"`
	Timestamp time.Time `json:"ts"`
}

//
//  -----------------------------
//  GeoDB
//  -----------------------------
//

// GeoDB wraps a MaxMind City reader.  A nil *GeoDB is valid and resolves
// nothing, so deployments without a database need no special casing.
type GeoDB struct{ r *geoip2.Reader }

// OpenGeo opens the database at path.  An empty path returns (nil, nil).
func OpenGeo(path string) (*GeoDB, error) {
	if path == "" {
		return nil, nil
	}
	r, err := geoip2.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open geo db: %w", err)
	}
	return &GeoDB{r: r}, nil
}

// Lookup resolves ip.  Reader errors are swallowed.
func (g *GeoDB) Lookup(ip net.IP) Geo {
	if g == nil || g.r == nil || ip == nil {
		return Geo{IP: ip}
	}
	rec, err := g.r.City(ip)
	if err != nil {
		return Geo{IP: ip}
	}
	return Geo{
		IP:         ip,
		CountryISO: rec.Country.IsoCode,
		City:       rec.City.Names["en"],
	}
}

func (g *GeoDB) Close() error {
	if g == nil || g.r == nil {
		return nil
	}
	return g.r.Close()
}

//
//  -----------------------------
//  Public helper: FromContext
//  -----------------------------
//

type ctxKey struct{}

// FromContext returns the value stored by Enrich, or nil.
func FromContext(ctx context.Context) *RequestInfo {
	v, _ := ctx.Value(ctxKey{}).(*RequestInfo)
	return v
}

// WithInfo returns a child context carrying info.
func WithInfo(ctx context.Context, info *RequestInfo) context.Context {
	return context.WithValue(ctx, ctxKey{}, info)
}

//
//  -----------------------------
//  UA parsing
//  -----------------------------
//

// ParseUA converts a raw header into UA.
func ParseUA(raw, acceptLang string) UA {
	u := uasurfer.Parse(raw)

	info := UA{
		Raw:         raw,
		Browser:     strings.TrimPrefix(u.Browser.Name.String(), "Browser"),
		Version:     versionString(u.Browser.Version),
		OS:          strings.TrimPrefix(u.OS.Name.String(), "OS"),
		OSVersion:   versionString(u.OS.Version),
		Platform:    strings.TrimPrefix(u.OS.Platform.String(), "Platform"),
		IsBot:       u.IsBot(),
		PrimaryLang: primaryLang(acceptLang),
	}

	switch u.DeviceType {
	case uasurfer.DeviceComputer:
		info.Device = "Desktop"
	case uasurfer.DeviceTablet:
		info.Device = "Tablet"
	case uasurfer.DevicePhone, uasurfer.DeviceWearable:
		info.Device = "Mobile"
	default:
		info.Device = "Other"
	}
	if info.Browser == "Unknown" {
		info.Browser = ""
	}
	if info.OS == "Unknown" {
		info.OS = ""
	}
	if info.Platform == "Unknown" {
		info.Platform = ""
	}
	return info
}

// versionString renders a version in dotted form while trimming trailing
// zeros, e.g. 17.0.0 → "17", 17.3.0 → "17.3", 17.3.1 → "17.3.1".
func versionString(v uasurfer.Version) string {
	switch {
	case v.Major == 0 && v.Minor == 0 && v.Patch == 0:
		return ""
	case v.Patch != 0:
		return fmt.Sprintf("%d.%d.%d", v.Major, v.Minor, v.Patch)
	case v.Minor != 0:
		return fmt.Sprintf("%d.%d", v.Major, v.Minor)
	}
	return strconv.Itoa(v.Major)
}

// primaryLang extracts the first language tag before any ";q=" weight.
func primaryLang(al string) string {
	if al == "" {
		return ""
	}
	tag, _, _ := strings.Cut(al, ",")
	tag, _, _ = strings.Cut(tag, ";")
	return strings.ToLower(strings.TrimSpace(tag))
}
