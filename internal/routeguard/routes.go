package routeguard

import (
	"errors"
	"fmt"
	"strings"

	"appshell/internal/session/models"
	pstrings "appshell/pkg/platform/strings"
)

var (
	ErrUnknownRoute = errors.New("unknown route")
	ErrNotHydrated  = errors.New("session not hydrated")
)

// Route is a screen path owned by a region.
type Route struct {
	Path   string
	Region Region
}

// The first route of each region is its entry route.
var routes = []Route{
	{Path: "/", Region: RegionProtected},
	{Path: "/(onboarding)", Region: RegionOnboarding},
	{Path: "/(onboarding)/onboarding-one", Region: RegionOnboarding},
	{Path: "/(onboarding)/onboarding-two", Region: RegionOnboarding},
	{Path: "/(account-verification)", Region: RegionAccountVerification},
	{Path: "/(account-verification)/verify-otp", Region: RegionAccountVerification},
	{Path: "/(registration)", Region: RegionRegistration},
	{Path: "/(registration)/contact-information", Region: RegionRegistration},
}

// Routes returns a copy of the route table.
func Routes() []Route {
	return append([]Route(nil), routes...)
}

// EntryRoute returns the path a region is entered through.
func EntryRoute(region Region) string {
	for _, r := range routes {
		if r.Region == region {
			return r.Path
		}
	}
	return "/"
}

// RegionOf returns the region owning path.
func RegionOf(path string) (Region, error) {
	clean := normalizePath(path)
	for _, r := range routes {
		if r.Path == clean {
			return r.Region, nil
		}
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownRoute, path)
}

// SuggestRoute returns the known path closest to an unknown one.
func SuggestRoute(path string) (string, bool) {
	paths := make([]string, len(routes))
	for i, r := range routes {
		paths[i] = r.Path
	}
	return pstrings.Suggest(normalizePath(path), paths)
}

// Resolution is the outcome of resolving a requested path.
type Resolution struct {
	Path       string `json:"path"`
	Region     Region `json:"region"`
	Redirected bool   `json:"redirected"`
}

// Resolve returns path when its region is reachable from state, otherwise
// the entry route of the active region.
func Resolve(state models.SessionState, path string) (Resolution, error) {
	region, err := RegionOf(path)
	if err != nil {
		return Resolution{}, err
	}
	if CanEnter(state, region) {
		return Resolution{Path: normalizePath(path), Region: region}, nil
	}
	active := Evaluate(state)
	return Resolution{Path: EntryRoute(active), Region: active, Redirected: true}, nil
}

func normalizePath(path string) string {
	path = strings.TrimSpace(path)
	if path == "" {
		return "/"
	}
	if !strings.HasPrefix(path, "/") {
		path = "/" + path
	}
	if len(path) > 1 {
		path = strings.TrimRight(path, "/")
	}
	return path
}
