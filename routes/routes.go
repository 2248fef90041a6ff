package routes

import (
	"github.com/gin-gonic/gin"

	handlers "carhire/internal/handlers/shared"
	"carhire/internal/middleware"
	"carhire/internal/models"
	"carhire/pkg/logger"
	"carhire/pkg/websocket"
)

type Handlers struct {
	Profile  *handlers.ProfileHandler
	Trips    *handlers.TripHandler
	Chats    *handlers.ChatHandler
	VIP      *handlers.VIPHandler
	Tracking *handlers.TrackingHandler
	Realtime *handlers.RealtimeHandler
	Socket   *websocket.Handler
}

// Setup mounts every API route under r.
func Setup(r *gin.RouterGroup, h Handlers, jwtSecret string, log *logger.Logger) {
	auth := middleware.AuthRequired(jwtSecret, log)

	// Public routes (no auth required)
	r.POST("/webhooks/payments", h.VIP.HandlePaymentWebhook)
	r.GET("/track/:userId/:token", h.Tracking.WatchPublic)
	r.GET("/vip/tiers", h.VIP.ListTiers)

	// Device socket
	r.GET("/ws", auth, h.Socket.Serve(h.Realtime.Attach))

	profile := r.Group("/profile", auth)
	{
		profile.POST("", h.Profile.CreateProfile)
		profile.GET("", h.Profile.GetProfile)
		profile.PATCH("", h.Profile.UpdateProfile)
		profile.POST("/push-token", h.Profile.RegisterPushToken)
		profile.POST("/contact/code", h.Profile.RequestContactCode)
		profile.POST("/contact/verify", h.Profile.VerifyContactCode)
		profile.GET("/referrals", h.Profile.GetReferrals)
	}

	trips := r.Group("/trips", auth)
	{
		trips.POST("", middleware.RoleRequired(models.RoleCustomer), h.Trips.CreateTrip)
		trips.GET("", h.Trips.ListActive)
		trips.GET("/:id", h.Trips.GetTrip)
		trips.POST("/:id/complete", h.Trips.CompleteTrip)
		trips.POST("/:id/cancel", h.Trips.CancelTrip)
		trips.POST("/:id/rating", middleware.RoleRequired(models.RoleCustomer), h.Trips.RateTrip)
	}
	r.DELETE("/location/sharing", auth, h.Trips.StopSharing)

	chats := r.Group("/chats", auth)
	{
		chats.POST("", h.Chats.OpenThread)
		chats.GET("/:id/messages", h.Chats.GetMessages)
		chats.POST("/:id/messages", h.Chats.SendMessage)
		chats.POST("/:id/read", h.Chats.MarkRead)
		chats.DELETE("/:id", h.Chats.DeleteThread)
	}

	vip := r.Group("/vip", auth)
	{
		vip.POST("/checkout", h.VIP.CreateCheckout)
		vip.POST("/purchases", h.VIP.Purchase)
	}

	links := r.Group("/tracking-links", auth)
	{
		links.POST("", h.Tracking.CreateLink)
		links.DELETE("/:token", h.Tracking.RevokeLink)
	}
}
