package server

const (
	// RouteAuthProvider exchanges a provider authorization code for an
	// application token pair. The {provider} segment selects the
	// adapter ("github", "google").
	RouteAuthProvider = "/auth/{provider}"

	// RouteAuthRefresh trades a refresh token for a new pair
	RouteAuthRefresh = "/auth/refresh"

	// RouteAuthMe returns the identity embedded in a bearer access token
	RouteAuthMe = "/auth/me"
)
