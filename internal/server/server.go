package server

import (
	"database/sql"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/rvestal/habitat/internal/auth"
	"github.com/rvestal/habitat/internal/backup"
	"github.com/rvestal/habitat/internal/handler"
	"github.com/rvestal/habitat/internal/middleware"
	"github.com/rvestal/habitat/internal/push"
	"github.com/rvestal/habitat/internal/store"
	ws "github.com/rvestal/habitat/internal/websocket"
)

type Server struct {
	db            *sql.DB
	hub           *ws.Hub
	authH         *handler.AuthHandler
	habitH        *handler.HabitHandler
	statsH        *handler.StatsHandler
	challengeH    *handler.ChallengeHandler
	pushH         *handler.PushHandler
	backupH       *handler.BackupHandler
	sessionStore  *store.SessionStore
	issuer        *auth.TokenIssuer
	rateLimiter   *middleware.RateLimiter
	backupManager *backup.Manager
	pushService   *push.Service
	pushScheduler *push.Scheduler
	logger        *slog.Logger
}

func New(db *sql.DB, jwtSecret string, backupCfg backup.Config, logger *slog.Logger) *Server {
	hub := ws.NewHub(logger.With("component", "websocket"))

	userStore := store.NewUserStore(db)
	sessionStore := store.NewSessionStore(db)
	habitStore := store.NewHabitStore(db)
	streakStore := store.NewStreakStore(db)
	milestoneStore := store.NewMilestoneStore(db)
	challengeStore := store.NewChallengeStore(db)
	settingsStore := store.NewSettingsStore(db)
	pushStore := store.NewPushStore(db)
	backupStore := store.NewBackupStore(db)

	issuer := auth.NewTokenIssuer(jwtSecret)

	backupMgr := backup.NewManager(backupCfg, db, backupStore, settingsStore, logger.With("component", "backup"), func(s backup.Status) {
		hub.BroadcastAll(ws.Message{
			Type:   "backup_status",
			Entity: "backup",
			Action: string(s.State),
			Extra: map[string]any{
				"in_progress": s.InProgress,
				"error":       s.Error,
			},
		})
	})

	pushLogger := logger.With("component", "push")
	pushSvc := newPushService(settingsStore, pushLogger)
	var pushSched *push.Scheduler
	var pushH *handler.PushHandler
	if pushSvc != nil {
		pushSched = push.NewScheduler(pushSvc, pushStore, userStore, habitStore, streakStore, pushLogger)
		pushH = handler.NewPushHandler(pushStore, pushSvc, logger.With("component", "push_handler"))
	}

	return &Server{
		db:            db,
		hub:           hub,
		authH:         handler.NewAuthHandler(userStore, sessionStore, issuer, logger.With("component", "auth")),
		habitH:        handler.NewHabitHandler(habitStore, streakStore, milestoneStore, userStore, hub, pushSched, logger.With("component", "habit")),
		statsH:        handler.NewStatsHandler(habitStore, userStore, logger.With("component", "stats")),
		challengeH:    handler.NewChallengeHandler(challengeStore, habitStore, userStore, hub, pushSched, logger.With("component", "challenge")),
		pushH:         pushH,
		backupH:       handler.NewBackupHandler(backupMgr, backupStore, settingsStore, logger.With("component", "backup_handler")),
		sessionStore:  sessionStore,
		issuer:        issuer,
		rateLimiter:   middleware.NewRateLimiter(),
		backupManager: backupMgr,
		pushService:   pushSvc,
		pushScheduler: pushSched,
		logger:        logger,
	}
}

// newPushService loads the VAPID key pair from settings, generating and
// persisting one on first boot so push works out of the box.
func newPushService(ss *store.SettingsStore, logger *slog.Logger) *push.Service {
	settings, err := ss.GetVapidSettings()
	if err != nil {
		logger.Error("load vapid settings", "error", err)
		return nil
	}

	pub, priv := settings["vapid_public_key"], settings["vapid_private_key"]
	if pub == "" || priv == "" {
		pub, priv, err = push.GenerateVAPIDKeys()
		if err != nil {
			logger.Error("generate vapid keys", "error", err)
			return nil
		}
		if err := ss.Set("vapid_public_key", pub); err != nil {
			logger.Error("save vapid public key", "error", err)
			return nil
		}
		if err := ss.Set("vapid_private_key", priv); err != nil {
			logger.Error("save vapid private key", "error", err)
			return nil
		}
		logger.Info("generated vapid key pair")
	}

	return push.NewService(pub, priv)
}

// SessionStore returns the session store for cleanup tasks.
func (s *Server) SessionStore() *store.SessionStore {
	return s.sessionStore
}

// RateLimiter returns the rate limiter for cleanup tasks.
func (s *Server) RateLimiter() *middleware.RateLimiter {
	return s.rateLimiter
}

// BackupManager returns the backup manager.
func (s *Server) BackupManager() *backup.Manager {
	return s.backupManager
}

// PushScheduler returns the push reminder scheduler; nil when push is
// not configured.
func (s *Server) PushScheduler() *push.Scheduler {
	return s.pushScheduler
}

func (s *Server) Router() http.Handler {
	outerMux := http.NewServeMux()

	// Public routes
	outerMux.HandleFunc("POST /api/auth/register", s.rateLimitedHandler(s.authH.Register))
	outerMux.HandleFunc("POST /api/auth/login", s.rateLimitedHandler(s.authH.Login))
	outerMux.HandleFunc("GET /health", s.healthHandler)

	// Everything else requires a session cookie or bearer token
	protectedMux := http.NewServeMux()
	s.registerProtectedRoutes(protectedMux)

	authMiddleware := middleware.RequireAuth(s.sessionStore, s.issuer)
	outerMux.Handle("/", authMiddleware(protectedMux))

	return middleware.RequestLogger(s.logger.With("component", "http"))(outerMux)
}

func (s *Server) healthHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(map[string]string{"status": "ok"})
}

func (s *Server) rateLimitedHandler(h http.HandlerFunc) http.HandlerFunc {
	keyFunc := func(r *http.Request) string {
		return middleware.RealIP(r)
	}
	rl := middleware.RateLimit(s.rateLimiter, keyFunc, 10, time.Minute)
	return func(w http.ResponseWriter, r *http.Request) {
		rl(http.HandlerFunc(h)).ServeHTTP(w, r)
	}
}

func (s *Server) registerProtectedRoutes(mux *http.ServeMux) {
	// Account
	mux.HandleFunc("POST /api/auth/logout", s.authH.Logout)
	mux.HandleFunc("GET /api/me", s.authH.Me)
	mux.HandleFunc("PUT /api/me", s.authH.UpdateMe)
	mux.HandleFunc("PUT /api/me/password", s.authH.UpdatePassword)
	mux.HandleFunc("POST /api/tokens", s.authH.CreateToken)

	// Habits and check-ins
	mux.HandleFunc("POST /api/habits", s.habitH.Create)
	mux.HandleFunc("GET /api/habits", s.habitH.List)
	mux.HandleFunc("GET /api/habits/{id}", s.habitH.Get)
	mux.HandleFunc("PUT /api/habits/{id}", s.habitH.Update)
	mux.HandleFunc("DELETE /api/habits/{id}", s.habitH.Delete)
	mux.HandleFunc("POST /api/habits/{id}/archive", s.habitH.Archive)
	mux.HandleFunc("POST /api/habits/{id}/unarchive", s.habitH.Unarchive)
	mux.HandleFunc("POST /api/habits/{id}/logs", s.habitH.CheckIn)
	mux.HandleFunc("GET /api/habits/{id}/logs", s.habitH.ListLogs)
	mux.HandleFunc("DELETE /api/habits/{id}/logs/{date}", s.habitH.DeleteLog)
	mux.HandleFunc("GET /api/habits/{id}/streak", s.habitH.GetStreak)
	mux.HandleFunc("GET /api/habits/{id}/milestones", s.habitH.ListMilestones)
	mux.HandleFunc("GET /api/milestones", s.habitH.RecentMilestones)

	// Stats
	mux.HandleFunc("GET /api/stats/calendar", s.statsH.Calendar)
	mux.HandleFunc("GET /api/stats/heatmap", s.statsH.Heatmap)
	mux.HandleFunc("GET /api/stats/score", s.statsH.Score)
	mux.HandleFunc("GET /api/stats/correlation", s.statsH.Correlation)
	mux.HandleFunc("GET /api/stats/correlations", s.statsH.Correlations)

	// Challenges
	mux.HandleFunc("POST /api/challenges", s.challengeH.Create)
	mux.HandleFunc("GET /api/challenges", s.challengeH.List)
	mux.HandleFunc("GET /api/challenges/{id}", s.challengeH.Get)
	mux.HandleFunc("DELETE /api/challenges/{id}", s.challengeH.Delete)
	mux.HandleFunc("POST /api/challenges/{id}/abandon", s.challengeH.Abandon)
	mux.HandleFunc("GET /api/challenges/{id}/progress", s.challengeH.Progress)

	// Push notifications
	if s.pushH != nil {
		mux.HandleFunc("POST /api/push/subscribe", s.pushH.Subscribe)
		mux.HandleFunc("DELETE /api/push/subscriptions/{id}", s.pushH.Unsubscribe)
		mux.HandleFunc("GET /api/push/subscriptions", s.pushH.ListSubscriptions)
		mux.HandleFunc("GET /api/push/vapid-key", s.pushH.GetVAPIDKey)
		mux.HandleFunc("GET /api/push/preferences", s.pushH.GetPreferences)
		mux.HandleFunc("PUT /api/push/preferences", s.pushH.UpdatePreferences)
		mux.HandleFunc("POST /api/push/test", s.pushH.TestNotification)
	}

	// Backup
	mux.HandleFunc("GET /api/backup/settings", s.backupH.GetSettings)
	mux.HandleFunc("PUT /api/backup/settings", s.backupH.UpdateSettings)
	mux.HandleFunc("POST /api/backup/run", s.backupH.RunNow)
	mux.HandleFunc("GET /api/backup/history", s.backupH.List)
	mux.HandleFunc("GET /api/backup/status", s.backupH.Status)
	mux.HandleFunc("POST /api/backup/restore/{id}", s.backupH.Restore)
	mux.HandleFunc("GET /api/backup/download/{id}", s.backupH.Download)

	// WebSocket
	mux.HandleFunc("GET /ws", ws.HandleWebSocket(s.hub))
}
