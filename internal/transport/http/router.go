package http

import (
	"log/slog"
	"net/http"
	"time"

	"echo-trivia/internal/app"
	"echo-trivia/internal/auth"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// Services are the use cases exposed over HTTP.
type Services struct {
	Practice    *app.PracticeService
	Daily       *app.DailyService
	Survival    *app.SurvivalService
	Jeopardy    *app.JeopardyService
	Tower       *app.TowerService
	Faceoff     *app.FaceoffService
	Play        *app.PlayService
	Leaderboard *app.LeaderboardService
}

type Server struct {
	svc  Services
	auth *auth.Service
	log  *slog.Logger
	ws   *WSHandler
}

func NewServer(svc Services, authSvc *auth.Service, log *slog.Logger) *Server {
	if log == nil {
		log = slog.Default()
	}
	s := &Server{svc: svc, auth: authSvc, log: log}
	s.ws = NewWSHandler(svc.Jeopardy, log)
	return s
}

// Router mounts every route. corsOrigins defaults to allowing any origin.
func (s *Server) Router(corsOrigins []string) http.Handler {
	if len(corsOrigins) == 0 {
		corsOrigins = []string{"*"}
	}

	r := chi.NewRouter()
	r.Use(middleware.RequestID, middleware.RealIP, s.accessLog, middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: corsOrigins,
		AllowedMethods: []string{"GET", "POST", "OPTIONS"},
		AllowedHeaders: []string{"Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	})

	r.Group(func(r chi.Router) {
		r.Use(s.auth.Middleware)

		r.Get("/ws/jeopardy", s.ws.ServeWS)

		r.Route("/api", func(r chi.Router) {
			r.Use(middleware.Timeout(60 * time.Second))

			r.Post("/practice/quizzes", s.createPracticeQuiz)
			r.Post("/practice/quizzes/{quizID}/answers", s.answerPractice)

			r.Get("/daily", s.dailyQuiz)
			r.Post("/daily/sessions", s.startDaily)

			r.Post("/survival/runs", s.startSurvival)
			r.Post("/survival/runs/{id}/question", s.survivalQuestion)
			r.Post("/survival/runs/{id}/answer", s.answerSurvival)
			r.Post("/survival/runs/{id}/end", s.endSurvival)

			r.Post("/jeopardy/games", s.startJeopardy)
			r.Post("/jeopardy/games/{id}/select", s.selectCell)
			r.Post("/jeopardy/games/{id}/answer", s.answerJeopardy)
			r.Post("/jeopardy/games/{id}/abandon", s.abandonJeopardy)

			r.Get("/tower/progress", s.towerProgress)
			r.Post("/tower/floors/{floor}", s.startFloor)
			r.Post("/tower/attempts/{id}/answer", s.answerFloor)
			r.Post("/tower/attempts/{id}/complete", s.completeFloor)

			r.Post("/faceoff/challenges", s.createChallenge)
			r.Post("/faceoff/challenges/{code}/sessions", s.startFaceoff)

			r.Post("/play/sessions/{id}/answer", s.answerPlay)
			r.Post("/play/sessions/{id}/finish", s.finishPlay)

			r.Get("/leaderboard/{mode}", s.leaderboard)
		})
	})
	return r
}

func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		next.ServeHTTP(ww, r)
		s.log.Info("http request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"bytes", ww.BytesWritten(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()),
		)
	})
}
