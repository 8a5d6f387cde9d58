package handlers

import (
	"net/http"

	"tendering/internal/auth"
	"tendering/internal/logger"
	"tendering/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter собирает маршруты /api. Доступ по ролям проверяется middleware,
// владение тендером, предложением или отзывом - в обработчиках.
func NewRouter(h *Handler, corsOrigins []string) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(logger.RequestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"X-Request-Id"},
		MaxAge:         300,
	}))
	r.Use(h.Tokens.Authenticate)
	r.Use(h.CheckTokenUser)

	r.Route("/api", func(r chi.Router) {
		r.Get("/ping", h.PingHandler)
		r.Post("/auth/register", h.RegisterHandler)
		r.Post("/auth/login", h.LoginHandler)

		// публичное чтение
		r.Get("/user_types", h.ListUserTypesHandler)
		r.Get("/user_types/{typeId}", h.GetUserTypeHandler)
		r.Get("/categories", h.ListCategoriesHandler)
		r.Get("/categories/{categoryId}", h.GetCategoryHandler)
		r.Get("/tenders", h.GetTendersHandler)
		r.Get("/tenders/find", h.FindTendersHandler)
		r.Get("/tenders/{tenderId}", h.GetTenderHandler)
		r.Get("/tenders/{tenderId}/feedback", h.TenderFeedbackHandler)

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireAuth)
			r.Get("/users/me", h.MeHandler)
			r.Get("/users/{userId}", h.GetUserHandler)
			r.Put("/users/{userId}", h.UpdateUserHandler)
			r.Put("/users/{userId}/categories", h.SetUserCategoriesHandler)

			r.Get("/tenders/{tenderId}/bids", h.GetBidsForTenderHandler)
			r.Get("/bids/{bidId}", h.GetBidHandler)
			r.Put("/bids/{bidId}", h.EditBidHandler)
			r.Delete("/bids/{bidId}", h.DeleteBidHandler)

			r.Post("/feedback", h.CreateFeedbackHandler)
			r.Delete("/feedback/{feedbackId}", h.DeleteFeedbackHandler)
		})

		// тендеры: сотрудник города или администратор
		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleCity, models.RoleAdmin))
			r.Put("/tenders/{tenderId}", h.EditTenderHandler)
			r.Delete("/tenders/{tenderId}", h.DeleteTenderHandler)
			r.Put("/tenders/{tenderId}/status", h.ChangeTenderStatusHandler)
			r.Post("/tenders/{tenderId}/winner", h.SelectWinnerHandler)
			r.Get("/tenders/{tenderId}/versions", h.TenderVersionsHandler)
			r.Put("/tenders/{tenderId}/rollback/{version}", h.RollbackTenderHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleCity))
			r.Get("/tenders/my", h.GetUserTendersHandler)
			r.Post("/tenders", h.CreateTenderHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleCompany))
			r.Get("/tenders/recommended", h.RecommendedTendersHandler)
			r.Post("/tenders/{tenderId}/bids", h.CreateBidHandler)
			r.Get("/bids/my", h.GetUserBidsHandler)
		})

		r.Group(func(r chi.Router) {
			r.Use(auth.RequireRole(models.RoleAdmin))
			r.Get("/users", h.ListUsersHandler)
			r.Post("/users", h.CreateUserHandler)
			r.Delete("/users/{userId}", h.DeleteUserHandler)
			r.Post("/users/{userId}/unlock", h.UnlockUserHandler)
			r.Get("/users_categories", h.UsersCategoriesHandler)

			r.Post("/user_types", h.CreateUserTypeHandler)
			r.Put("/user_types/{typeId}", h.UpdateUserTypeHandler)
			r.Delete("/user_types/{typeId}", h.DeleteUserTypeHandler)

			r.Post("/categories", h.CreateCategoryHandler)
			r.Put("/categories/{categoryId}", h.UpdateCategoryHandler)
			r.Delete("/categories/{categoryId}", h.DeleteCategoryHandler)
			r.Get("/categories/{categoryId}/users", h.CategoryUsersHandler)

			r.Get("/bids", h.ListBidsHandler)
			r.Get("/feedback", h.ListFeedbackHandler)
			r.Get("/admin/stats", h.StatsHandler)
		})
	})
	return r
}
