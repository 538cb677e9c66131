package routes

import (
	"time"

	"github.com/atoz-auto/autoshop-api/controllers"
	"github.com/atoz-auto/autoshop-api/metrics"
	"github.com/atoz-auto/autoshop-api/middleware"
	"github.com/atoz-auto/autoshop-api/realtime"
	"github.com/atoz-auto/autoshop-api/services"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Dependencies are the collaborators the HTTP surface is wired to.
// Hub and Metrics are optional.
type Dependencies struct {
	Tokens    middleware.TokenValidator
	Orders    *services.OrderStore
	Payments  *services.PaymentReconciler
	Webhooks  *services.WebhookProcessor
	Employees *services.EmployeeStore
	Hub       *realtime.Hub
	Metrics   *metrics.Registry
}

// Options tunes the engine built by New.
type Options struct {
	Logger         zerolog.Logger
	AllowedOrigins []string
}

// New builds a gin engine with the standard middleware stack and every route.
func New(opts Options, deps Dependencies) *gin.Engine {
	router := gin.New()
	router.Use(
		middleware.RequestContext(opts.Logger),
		middleware.Recovery(),
		middleware.RequestLogger(),
		deps.Metrics.Middleware(),
	)

	if len(opts.AllowedOrigins) > 0 {
		router.Use(cors.New(cors.Config{
			AllowOrigins:     opts.AllowedOrigins,
			AllowMethods:     []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", middleware.RequestIDHeader},
			ExposeHeaders:    []string{middleware.RequestIDHeader},
			AllowCredentials: true,
			MaxAge:           12 * time.Hour,
		}))
	}

	Register(router, deps)
	return router
}

// Register mounts the API under /api/v1 and the metrics endpoint on router.
func Register(router *gin.Engine, deps Dependencies) {
	if deps.Metrics != nil {
		router.GET("/metrics", gin.WrapH(deps.Metrics.Handler()))
	}

	auth := middleware.RequireAuth(deps.Tokens)
	orders := controllers.NewOrderController(deps.Orders)
	payments := controllers.NewPaymentController(deps.Payments, deps.Orders)
	webhooks := controllers.NewWebhookController(deps.Webhooks)
	employees := controllers.NewEmployeeController(deps.Employees)

	v1 := router.Group("/api/v1")
	{
		v1.GET("/health", controllers.HealthCheck)
		v1.GET("/database/status", controllers.DatabaseStatus)

		orderRoutes := v1.Group("/orders", auth)
		{
			orderRoutes.POST("", orders.CreateOrder)
			orderRoutes.GET("", orders.ListOrders)
			orderRoutes.GET("/:id", orders.GetOrder)
			orderRoutes.PUT("/:id", middleware.RequireStaff(), orders.UpdateOrder)
			orderRoutes.POST("/:id/services", orders.AddService)
		}

		v1.GET("/vehicles/:id", auth, orders.GetVehicle)

		paymentRoutes := v1.Group("/payments")
		{
			paymentRoutes.POST("/webhook", webhooks.Receive)
			paymentRoutes.POST("/orders/:id/intent", auth, middleware.RequireCustomer(), payments.CreateIntent)
			paymentRoutes.POST("/confirm", auth, middleware.RequireCustomer(), payments.ConfirmPayment)
			paymentRoutes.GET("/orders/:id/history", auth, payments.History)
		}

		v1.PUT("/employees/:id/role", auth, middleware.RequireStaff(), employees.UpdateRole)

		if deps.Hub != nil {
			v1.GET("/ws", middleware.RequireAuth(deps.Tokens, middleware.WithQueryToken("token")), deps.Hub.ServeWS)
		}
	}
}
