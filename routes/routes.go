package routes

import (
	"time"

	"harambee/handlers"
	"harambee/middleware"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// RegisterPaymentRoutes registers the member payment endpoints.
func RegisterPaymentRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/payments")
	{
		// Gateway callback (no member token)
		api.POST("/mpesa/callback", hb.MpesaCallback)

		// Protected routes (Require Authentication)
		protected := api.Group("")
		protected.Use(middleware.JWTAuthMemberMiddleware())
		protected.POST("/contributions", hb.StartContribution)
		protected.POST("/mandatory-fee", hb.StartMandatoryFee)
		protected.POST("/wallet-recharge", hb.StartWalletRecharge)
		protected.POST("/tickets", hb.StartTicket)
		protected.GET("/sessions/:id", hb.GetPaymentSession)
		protected.DELETE("/sessions/:id", hb.CancelPaymentSession)
	}
}

// RegisterMemberRoutes registers member account endpoints.
func RegisterMemberRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api/members/me")
	{
		api.Use(middleware.JWTAuthMemberMiddleware())
		api.GET("/mandatory-status", hb.MandatoryStatus)
		api.GET("/wallet", hb.Wallet)
	}
}

// RegisterLedgerRoutes registers lookups of what settled payments produced.
func RegisterLedgerRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	api := r.Group("/api")
	{
		api.Use(middleware.JWTAuthMemberMiddleware())
		api.GET("/tickets/:number", hb.GetTicket)
		api.GET("/projects/:id/contributions", hb.ProjectContributions)
	}
}

// RegisterRechargeRoutes registers owner management and the public payer surface of recharge links.
func RegisterRechargeRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	owner := r.Group("/api/recharge-links")
	{
		owner.Use(middleware.JWTAuthMemberMiddleware())
		owner.POST("", hb.CreateRechargeLink)
		owner.GET("", hb.ListRechargeLinks)
		owner.DELETE("/:token", hb.CancelRechargeLink)
	}

	public := r.Group("/recharge/:token")
	{
		public.Use(middleware.PublicRateLimitMiddleware())
		public.GET("", hb.PublicRechargeView)
		public.POST("/pay", hb.PublicRechargePay)
		public.GET("/sessions/:id", hb.PublicRechargeSession)
		public.DELETE("/sessions/:id", hb.PublicRechargeCancel)
	}
}

// RegisterHealthRoute registers the health-check and metrics endpoints.
func RegisterHealthRoute(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.GET("/health", hb.Health)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))
}

// RegisterRoutes centralizes registration of all endpoints and middleware.
func RegisterRoutes(r *gin.Engine, hb *handlers.HandlerBundle) {
	r.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowHeaders:     []string{"Origin", "Authorization", "Content-Type"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: true,
		MaxAge:           12 * time.Hour,
	}))

	RegisterHealthRoute(r, hb)
	RegisterPaymentRoutes(r, hb)
	RegisterMemberRoutes(r, hb)
	RegisterLedgerRoutes(r, hb)
	RegisterRechargeRoutes(r, hb)
}
