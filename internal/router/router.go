package router // package router defines how HTTP routes are registered for the API

import (
	"github.com/labstack/echo/v4" // import the Echo web framework to handle routing

	"github.com/iliyamo/jo-ticketing/internal/handler"
	"github.com/iliyamo/jo-ticketing/internal/middleware"
	"github.com/iliyamo/jo-ticketing/internal/model"
)

// RegisterRoutes registers the unauthenticated infrastructure routes: the
// health check and the static media tree holding ticket QR images.
func RegisterRoutes(e *echo.Echo, health echo.HandlerFunc, mediaURL, mediaRoot string) {
	e.GET("/healthz", health)
	e.Static(mediaURL, mediaRoot)
}

// RegisterAuth registers the identity routes.  Token exchange lives under
// /v1/auth behind the rate limiter; /v1/me needs a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group("/v1/auth", limit)
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)
	g.POST("/refresh", a.Refresh)               // rotates the refresh token
	g.POST("/refresh-access", a.RefreshAccess) // keeps the refresh token
	// logout accepts either a refresh token or a bearer, so no JWTAuth here
	g.POST("/logout", a.Logout)
	e.POST("/v1/logout", a.Logout)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret), middleware.RequireRole(model.RoleCustomer, model.RoleAdmin))
	auth.GET("/me", a.Me)
}

// RegisterTicketing registers the purchase flow.  Everything except verify
// is scoped to the bearer's own reservations and tickets.
func RegisterTicketing(e *echo.Echo, r *handler.ReservationHandler, t *handler.TicketHandler, jwtSecret string, limit echo.MiddlewareFunc) {
	g := e.Group(
		"/v1",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleCustomer, model.RoleAdmin),
	)
	g.POST("/reservations", r.Create)
	g.GET("/reservations/:id", r.Get)
	g.POST("/checkout", t.Checkout)
	g.GET("/tickets/:id", t.Get)
	// 404 unless DEBUG is on
	g.GET("/tickets/:id/opaque", t.Opaque)
	g.GET("/my-tickets", t.MyTickets)
	g.GET("/my-tickets/", t.MyTickets)

	// scanners are not logged in
	e.POST("/v1/verify", t.Verify, limit)
}

// RegisterCatalog registers the public offer listing (cached) and the admin
// CRUD.
func RegisterCatalog(e *echo.Echo, o *handler.OfferHandler, jwtSecret string, cache echo.MiddlewareFunc) {
	e.GET("/v1/offers", o.List, cache)
	e.GET("/v1/offers/:id", o.Get, cache)

	admin := e.Group(
		"/v1/admin",
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole(model.RoleAdmin),
	)
	admin.GET("/offers", o.AdminList)
	admin.POST("/offers", o.Create)
	admin.PUT("/offers/:id", o.Update)
	admin.DELETE("/offers/:id", o.Delete)
}
