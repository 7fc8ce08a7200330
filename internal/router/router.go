package router

import (
	"net/http"

	"github.com/covidsafe/services-backend/internal/auth"
	"github.com/covidsafe/services-backend/internal/booking"
	"github.com/covidsafe/services-backend/internal/catalog"
	"github.com/covidsafe/services-backend/internal/dashboard"
	"github.com/covidsafe/services-backend/internal/health"
	"github.com/covidsafe/services-backend/internal/middleware"
)

// New returns the API handler. Registration, login and the public
// catalog reads are open; everything else requires a Bearer JWT.
func New(
	authHandler *auth.Handler,
	catalogHandler *catalog.Handler,
	bookingHandler *booking.Handler,
	healthHandler *health.Handler,
	dashHandler *dashboard.Handler,
	tokens middleware.TokenValidator,
) http.Handler {
	authed := middleware.JWTAuth(tokens)

	mux := http.NewServeMux()

	mux.HandleFunc("POST /api/auth/register", authHandler.Register)
	mux.HandleFunc("POST /api/auth/login", authHandler.Login)
	mux.Handle("GET /api/auth/me", authed(http.HandlerFunc(authHandler.Me)))

	mux.HandleFunc("GET /api/services", catalogHandler.List)
	mux.HandleFunc("GET /api/services/{id}", catalogHandler.Get)
	mux.Handle("POST /api/services", authed(http.HandlerFunc(catalogHandler.Create)))
	mux.Handle("PUT /api/services/{id}", authed(http.HandlerFunc(catalogHandler.Update)))
	mux.Handle("DELETE /api/services/{id}", authed(http.HandlerFunc(catalogHandler.Delete)))

	mux.Handle("GET /api/bookings", authed(http.HandlerFunc(bookingHandler.List)))
	mux.Handle("POST /api/bookings", authed(http.HandlerFunc(bookingHandler.Create)))
	mux.Handle("GET /api/bookings/{id}", authed(http.HandlerFunc(bookingHandler.Get)))
	mux.Handle("POST /api/bookings/{id}/verify-otp", authed(http.HandlerFunc(bookingHandler.VerifyOTP)))
	mux.Handle("POST /api/bookings/{id}/complete", authed(http.HandlerFunc(bookingHandler.Complete)))
	mux.Handle("POST /api/bookings/{id}/cancel", authed(http.HandlerFunc(bookingHandler.Cancel)))

	mux.Handle("POST /api/health-declarations", authed(http.HandlerFunc(healthHandler.Record)))

	mux.Handle("GET /api/stats/dashboard", authed(http.HandlerFunc(dashHandler.Stats)))

	return mux
}
