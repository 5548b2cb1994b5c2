package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"Playdatewebserver/internal/service"
)

type RouterOpts struct {
	Logger      *zap.Logger
	IsProd      bool
	CORSOrigins []string

	DBPing func(context.Context) error

	Auth        *service.AuthService
	Users       *service.UsersService
	Admin       *service.AdminService
	Children    *service.ChildrenService
	Connections *service.ConnectionsService
	Activities  *service.ActivitiesService
	Invitations *service.InvitationsService
}

func NewRouter(opts RouterOpts) http.Handler {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	a := &api{
		logger:         logger,
		dbPing:         opts.DBPing,
		authSvc:        opts.Auth,
		usersSvc:       opts.Users,
		adminSvc:       opts.Admin,
		childrenSvc:    opts.Children,
		connectionsSvc: opts.Connections,
		activitiesSvc:  opts.Activities,
		invitationsSvc: opts.Invitations,
		validator:      newValidator(),
		loginLimiter:   newLoginLimiter(),
		requestLimiter: newRequestLimiter(),
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(RequestLogger(logger))
	r.Use(Recoverer(logger, opts.IsProd))
	r.Use(corsHandler(opts.CORSOrigins))
	r.Use(middleware.Timeout(30 * time.Second))

	r.NotFound(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusNotFound, "not_found", "not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, _ *http.Request) {
		WriteError(w, http.StatusMethodNotAllowed, "method_not_allowed", "method not allowed")
	})

	r.Get("/healthz", a.handleHealthz)

	r.Route("/api", func(r chi.Router) {
		r.Post("/auth/register", a.handleAuthRegister)
		r.Post("/auth/login", a.handleAuthLogin)

		r.Group(func(r chi.Router) {
			r.Use(a.requireAuth)

			r.Get("/auth/me", a.handleAuthMe)

			r.Route("/users", func(r chi.Router) {
				r.Get("/search", a.handleUsersSearch)
				r.Put("/me", a.handleUsersMeUpdate)
				r.Put("/me/password", a.handleUsersMePassword)
				r.Delete("/me", a.handleUsersMeDelete)
			})

			r.Route("/children", func(r chi.Router) {
				r.Get("/", a.handleChildrenList)
				r.Post("/", a.handleChildrenCreate)
				r.Get("/{id}", a.handleChildrenGet)
				r.Put("/{id}", a.handleChildrenRename)
				r.Delete("/{id}", a.handleChildrenDelete)
			})

			r.Route("/activities", func(r chi.Router) {
				r.Get("/", a.handleActivitiesList)
				r.Post("/", a.handleActivitiesCreate)
				r.Get("/{id}", a.handleActivitiesGet)
				r.Put("/{id}", a.handleActivitiesUpdate)
				r.Delete("/{id}", a.handleActivitiesDelete)
				r.Post("/{id}/duplicate", a.handleActivitiesDuplicate)
				r.Post("/{id}/invite", a.handleActivitiesInvite)
				r.Post("/{id}/pending-invitations", a.handleActivitiesPendingInvitations)
				r.Get("/{id}/invitations", a.handleActivitiesInvitations)
			})

			r.Route("/invitations", func(r chi.Router) {
				r.Get("/", a.handleInvitationsReceived)
				r.Get("/sent", a.handleInvitationsSent)
				r.Post("/{id}/accept", a.handleInvitationsAccept)
				r.Post("/{id}/reject", a.handleInvitationsReject)
			})

			r.Route("/connections", func(r chi.Router) {
				r.Get("/", a.handleConnectionsList)
				r.Delete("/{id}", a.handleConnectionsRemove)
				r.Post("/request", a.handleConnectionsRequest)
				r.Get("/requests", a.handleConnectionsRequests)
				r.Post("/requests/{id}/accept", a.handleConnectionsAccept)
				r.Post("/requests/{id}/reject", a.handleConnectionsReject)
			})

			r.Route("/calendar", func(r chi.Router) {
				r.Get("/activities", a.handleCalendarActivities)
				r.Get("/connected-activities", a.handleCalendarConnected)
				r.Get("/invited-activities", a.handleCalendarInvited)
			})

			r.Route("/admin", func(r chi.Router) {
				r.Use(a.requireAdmin)
				r.Get("/users", a.handleAdminUsersList)
				r.Put("/users/{id}/role", a.handleAdminUsersRole)
				r.Put("/users/{id}/status", a.handleAdminUsersStatus)
				r.Get("/failures", a.handleAdminFailuresList)
				r.Delete("/failures/{id}", a.handleAdminFailuresDismiss)
			})
		})
	})

	return r
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	opts := cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: false,
		MaxAge:           300,
	}
	if len(origins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return cors.Handler(opts)
}

type api struct {
	logger *zap.Logger

	dbPing func(context.Context) error

	authSvc        *service.AuthService
	usersSvc       *service.UsersService
	adminSvc       *service.AdminService
	childrenSvc    *service.ChildrenService
	connectionsSvc *service.ConnectionsService
	activitiesSvc  *service.ActivitiesService
	invitationsSvc *service.InvitationsService

	validator      *validator.Validate
	loginLimiter   *rateLimiter
	requestLimiter *rateLimiter
}

// writeErr writes err and logs anything that is not part of the domain
// taxonomy; those details never reach the client.
func (a *api) writeErr(w http.ResponseWriter, r *http.Request, err error) {
	if WriteDomainError(w, err) {
		return
	}
	log := a.logger
	if log == nil {
		log = zap.NewNop()
	}
	log.Error("request failed",
		zap.String("method", r.Method),
		zap.String("path", r.URL.Path),
		zap.String("request_id", middleware.GetReqID(r.Context())),
		zap.Error(err),
	)
}

func (a *api) handleHealthz(w http.ResponseWriter, r *http.Request) {
	if a.dbPing != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 1*time.Second)
		defer cancel()
		if err := a.dbPing(ctx); err != nil {
			WriteError(w, http.StatusServiceUnavailable, "db_down", "database unavailable")
			return
		}
	}
	WriteData(w, http.StatusOK, map[string]string{"status": "ok"})
}
