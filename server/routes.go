package server

func (s *Server) initRoutes() {
	// Literal segments win over wildcards in the mux, so /auth/refresh
	// and /auth/me are never treated as provider names
	s.RegisterRouteHandler("POST "+RouteAuthRefresh, ChainMiddleware(s.RefreshHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("POST "+RouteAuthProvider, ChainMiddleware(s.ExchangeHandler(), s.APIMiddleware()...))
	s.RegisterRouteHandler("GET "+RouteAuthMe, ChainMiddleware(s.CurrentUserHandler(), append(s.APIMiddleware(), s.RequireAuth())...))

	// CORS preflight for the auth subtree; CorsMiddleware answers
	// OPTIONS requests before the handler runs
	s.RegisterRouteHandler("OPTIONS /auth/", ChainMiddleware(s.PreflightHandler(), s.CorsMiddleware))
}
