package handler

import (
	"net/http"

	"github.com/dafibh/loanledger/loanledger-backend/internal/domain"
	"github.com/dafibh/loanledger/loanledger-backend/internal/middleware"
	"github.com/labstack/echo/v4"
)

// Handlers groups the HTTP handlers mounted by RegisterRoutes
type Handlers struct {
	Auth       *AuthHandler
	User       *UserHandler
	Loan       *LoanHandler
	Payment    *PaymentHandler
	Calculator *CalculatorHandler
	Document   *DocumentHandler
	WebSocket  *WebSocketHandler
}

// RegisterRoutes sets up all API routes. A nil rate limiter disables limiting.
func RegisterRoutes(e *echo.Echo, authMiddleware *middleware.AuthMiddleware, rateLimiter *middleware.RateLimiter, h Handlers) {
	e.GET("/health", func(c echo.Context) error {
		return c.JSON(http.StatusOK, map[string]string{"status": "ok"})
	})

	if h.WebSocket != nil {
		// The WebSocket token travels as a query parameter, validated by the handler
		e.GET("/ws", h.WebSocket.HandleWS)
	}

	// API version 1
	api := e.Group("/api/v1")

	// Protected groups authenticate first so the limiter can key by user
	protected := []echo.MiddlewareFunc{authMiddleware.Authenticate()}
	public := []echo.MiddlewareFunc{}
	if rateLimiter != nil {
		protected = append(protected, middleware.RateLimitMiddleware(rateLimiter))
		public = append(public, middleware.RateLimitMiddleware(rateLimiter))
	}
	reviewers := middleware.RequireRole(domain.RoleLoanOfficer, domain.RoleAdmin)
	admins := middleware.RequireRole(domain.RoleAdmin)

	// Auth routes
	auth := api.Group("/auth")
	auth.POST("/register", h.Auth.Register, public...)
	auth.POST("/login", h.Auth.Login, public...)
	auth.GET("/me", h.Auth.Me, protected...)
	auth.POST("/change-password", h.Auth.ChangePassword, protected...)

	// User routes (protected)
	users := api.Group("/users", protected...)
	users.POST("", h.User.CreateUser, admins)
	users.GET("", h.User.GetUsers, reviewers)
	users.GET("/:id", h.User.GetUser)
	users.PUT("/:id", h.User.UpdateUser)
	users.DELETE("/:id", h.User.DeleteUser, admins)

	// Loan application routes (protected)
	loans := api.Group("/loans", protected...)
	loans.POST("", h.Loan.CreateLoan)
	loans.GET("", h.Loan.GetLoans)
	loans.GET("/user/:userId", h.Loan.GetLoansByUser)
	loans.GET("/:id", h.Loan.GetLoan)
	loans.PUT("/:id", h.Loan.UpdateLoan, reviewers)
	loans.POST("/:id/approve", h.Loan.ApproveLoan, reviewers)
	loans.POST("/:id/reject", h.Loan.RejectLoan, reviewers)
	loans.POST("/:id/prepayment-projection", h.Loan.ProjectPrepayment)
	loans.POST("/:id/documents", h.Document.UploadDocument)
	loans.GET("/:id/documents", h.Document.GetDocuments)
	loans.DELETE("/:id/documents/:docId", h.Document.DeleteDocument)

	// Payment routes (protected)
	payments := api.Group("/payments", protected...)
	payments.GET("/loan/:loanId/schedule", h.Payment.GetSchedule)
	payments.GET("/loan/:loanId/history", h.Payment.GetHistory)
	payments.GET("/loan/:loanId/balance", h.Payment.GetBalance)
	payments.GET("/schedule/:scheduleId", h.Payment.GetScheduleEntry)
	payments.POST("/schedule/:scheduleId/pay", h.Payment.MakePayment)

	// Calculator routes (public, no stored data involved)
	calculator := api.Group("/calculator", public...)
	calculator.POST("/schedule", h.Calculator.QuoteSchedule)
	calculator.POST("/prepayment", h.Calculator.QuotePrepayment)
	calculator.GET("/rate", h.Calculator.QuoteRate)
}
