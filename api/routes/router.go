package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/monkelabs/monke-backend/api/controllers"
	"github.com/monkelabs/monke-backend/api/middleware"
	"github.com/monkelabs/monke-backend/internal/activity"
	deal "github.com/monkelabs/monke-backend/internal/deals"
	group "github.com/monkelabs/monke-backend/internal/groups"
	"github.com/monkelabs/monke-backend/internal/notifications"
	"github.com/monkelabs/monke-backend/pkg/config"
	"github.com/monkelabs/monke-backend/pkg/db"
	"github.com/monkelabs/monke-backend/pkg/logger"
	"github.com/monkelabs/monke-backend/pkg/redis"
)

// NewRouter assembles the HTTP surface of the deal engine.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	dealService deal.Service,
	groupService group.Service,
	activityService activity.Service,
	notificationsService notifications.Service,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, redisClient))
	})

	// Public catalog surface. Deal browsing and group status need no
	// caller identity.
	r.Route("/api/public/v1", func(r chi.Router) {
		r.Get("/deals", controllers.ListActiveDeals(dealService, logg))
		r.Get("/deals/{dealId}", controllers.GetDeal(dealService, logg))
		r.Get("/deals/{dealId}/groups", controllers.ListGroupsByDeal(groupService, logg))
		r.Get("/groups/{groupId}", controllers.GroupStatus(groupService, logg))
		r.Get("/groups/{groupId}/activity", controllers.GroupActivity(activityService, logg))
		r.Get("/merchants/{merchantId}", controllers.GetMerchant(dealService, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.WalletContext(logg))

		r.Route("/merchants", func(r chi.Router) {
			r.Post("/", controllers.CreateMerchant(dealService, logg))
		})

		r.Route("/deals", func(r chi.Router) {
			r.Post("/", controllers.CreateDeal(dealService, logg))
			r.Post("/{dealId}/close", controllers.CloseDeal(dealService, logg))
		})

		r.Route("/groups", func(r chi.Router) {
			r.Post("/", controllers.CreateGroup(groupService, logg))
			r.Get("/mine", controllers.MyGroups(groupService, logg))
			r.Post("/{groupId}/join", controllers.JoinGroup(groupService, logg))
			r.Post("/{groupId}/lock", controllers.LockGroup(groupService, logg))
			r.Post("/{groupId}/cancel", controllers.CancelGroup(groupService, logg))
			r.Post("/{groupId}/recompute", controllers.RecomputeGroupProgress(groupService, logg))
		})

		r.Route("/redemptions", func(r chi.Router) {
			r.Get("/mine", controllers.MyRedemptions(groupService, logg))
			r.Get("/{code}", controllers.GetRedemption(groupService, logg))
			r.Post("/{code}/redeem", controllers.RedeemCode(groupService, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(notificationsService, logg))
			r.Post("/{notificationId}/read", controllers.MarkNotificationRead(notificationsService, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(notificationsService, logg))
		})

		r.Get("/activity", controllers.MyActivity(activityService, logg))
	})

	return r
}
