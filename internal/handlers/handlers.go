package handlers

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"time"

	"tendering/db"
	"tendering/internal/auth"
	"tendering/internal/procurement"
	"tendering/models"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
)

const maxBodyBytes = 1048576

// Handler оборачивает хранилище и сервисы авторизации
type Handler struct {
	Store   StorageInterface
	Tokens  *auth.TokenManager
	Lockout auth.LockoutPolicy
	Log     zerolog.Logger
	// Now подменяется в тестах
	Now func() time.Time

	validate *validator.Validate
}

// NewHandler создает новый Handler
func NewHandler(store StorageInterface, tokens *auth.TokenManager, lockout auth.LockoutPolicy, log zerolog.Logger) *Handler {
	return &Handler{
		Store:    store,
		Tokens:   tokens,
		Lockout:  lockout,
		Log:      log,
		Now:      func() time.Time { return time.Now().UTC() },
		validate: validator.New(validator.WithRequiredStructEnabled()),
	}
}

// PingHandler отвечает "ok", если хранилище доступно
func (h *Handler) PingHandler(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Ping(r.Context()); err != nil {
		h.Log.Error().Err(err).Msg("storage ping failed")
		http.Error(w, "Storage unavailable", http.StatusServiceUnavailable)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("ok"))
}

type PaginationParams struct {
	Limit  int
	Offset int
}

// parsePaginationParams парсит limit и offset из query, с дефолтами и ограничениями
func parsePaginationParams(r *http.Request) PaginationParams {
	var params PaginationParams
	limitStr := r.URL.Query().Get("limit")
	offsetStr := r.URL.Query().Get("offset")

	params.Limit = 5 // дефолт
	params.Offset = 0

	if limitStr != "" {
		if l, err := strconv.Atoi(limitStr); err == nil && l > 0 && l <= 50 {
			params.Limit = l
		}
	}
	if offsetStr != "" {
		if o, err := strconv.Atoi(offsetStr); err == nil && o >= 0 {
			params.Offset = o
		}
	}
	return params
}

// decodeBody читает JSON с ограничением размера и проверяет validate-теги
func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, dst interface{}) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	defer r.Body.Close()

	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		http.Error(w, "Invalid JSON format", http.StatusBadRequest)
		return false
	}
	if err := h.validate.Struct(dst); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			http.Error(w, "Invalid field: "+verrs[0].Field(), http.StatusBadRequest)
			return false
		}
		http.Error(w, "Invalid request", http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// pathID достаёт положительный идентификатор из параметра пути
func pathID(w http.ResponseWriter, r *http.Request, name string) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, name), 10, 64)
	if err != nil || id <= 0 {
		http.Error(w, "Invalid "+name, http.StatusBadRequest)
		return 0, false
	}
	return id, true
}

// queryID разбирает необязательный числовой параметр запроса, 0 - не задан
func queryID(r *http.Request, name string) (int64, error) {
	v := r.URL.Query().Get(name)
	if v == "" {
		return 0, nil
	}
	id, err := strconv.ParseInt(v, 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("invalid " + name)
	}
	return id, nil
}

// fail переводит ошибку хранилища или правила в HTTP-ответ
func (h *Handler) fail(w http.ResponseWriter, r *http.Request, err error, what string) {
	switch {
	case errors.Is(err, db.ErrNotFound):
		http.Error(w, what+" not found", http.StatusNotFound)
	case errors.Is(err, db.ErrConflict):
		http.Error(w, what+" conflicts with existing data", http.StatusConflict)
	case errors.Is(err, db.ErrInvalid):
		http.Error(w, what+" has an invalid value", http.StatusBadRequest)
	case errors.Is(err, procurement.ErrInvalidDates),
		errors.Is(err, procurement.ErrInvalidPrice),
		errors.Is(err, procurement.ErrBidNotInTender):
		http.Error(w, err.Error(), http.StatusBadRequest)
	case errors.Is(err, procurement.ErrInvalidTransition),
		errors.Is(err, procurement.ErrTenderNotOpen),
		errors.Is(err, procurement.ErrTenderNotEditable),
		errors.Is(err, procurement.ErrNotFinalizable),
		errors.Is(err, procurement.ErrNoBids):
		http.Error(w, err.Error(), http.StatusConflict)
	default:
		h.Log.Error().Err(err).
			Str("request_id", middleware.GetReqID(r.Context())).
			Str("path", r.URL.Path).
			Msg(what + " storage failure")
		http.Error(w, "Internal server error", http.StatusInternalServerError)
	}
}

// CheckTokenUser сверяет токен с текущим состоянием пользователя: токен удалённого
// пользователя или выданный до смены user_type отклоняется
func (h *Handler) CheckTokenUser(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		claims := auth.ClaimsFromContext(r.Context())
		if claims == nil {
			next.ServeHTTP(w, r)
			return
		}
		users, err := h.Store.GetUsersByIDs(r.Context(), []int64{claims.UserID})
		if err != nil {
			h.fail(w, r, err, "User")
			return
		}
		if len(users) == 0 || users[0].UserType != claims.UserType {
			http.Error(w, "Invalid or expired token", http.StatusUnauthorized)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func isAdmin(c *auth.Claims) bool {
	return c != nil && c.UserType == models.RoleAdmin
}

// ownsTender - сотрудник, опубликовавший тендер, или администратор
func ownsTender(c *auth.Claims, t *models.Tender) bool {
	if c == nil {
		return false
	}
	return isAdmin(c) || (c.UserType == models.RoleCity && c.UserID == t.StaffID)
}
