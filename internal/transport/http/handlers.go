package http

import (
	"net/http"
	"strconv"

	"echo-trivia/internal/auth"
	"echo-trivia/internal/domain"
	"github.com/go-chi/chi/v5"
)

type answerRequest struct {
	QuestionID string `json:"questionId"`
	Response   string `json:"response"`
}

// user returns the authenticated caller or writes 401.
func (s *Server) user(w http.ResponseWriter, r *http.Request) (string, bool) {
	id := auth.FromContext(r.Context())
	if !id.IsAuthenticated() {
		s.writeError(w, r, domain.ErrSignInRequired)
		return "", false
	}
	return id.UserID, true
}

func (s *Server) answer(w http.ResponseWriter, r *http.Request) (answerRequest, bool) {
	var req answerRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return req, false
	}
	if req.QuestionID == "" {
		s.writeError(w, r, domain.Validationf("questionId is required"))
		return req, false
	}
	return req, true
}

// practice

func (s *Server) createPracticeQuiz(w http.ResponseWriter, r *http.Request) {
	var settings domain.QuizSettings
	if err := decode(r, &settings); err != nil {
		s.writeError(w, r, err)
		return
	}
	quiz, err := s.svc.Practice.Create(r.Context(), auth.FromContext(r.Context()).UserID, settings)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, quiz)
}

func (s *Server) answerPractice(w http.ResponseWriter, r *http.Request) {
	req, ok := s.answer(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Practice.Evaluate(r.Context(), auth.FromContext(r.Context()).UserID, chi.URLParam(r, "quizID"), req.QuestionID, req.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAnswer(w, res.Verdict, res)
}

// daily

func (s *Server) dailyQuiz(w http.ResponseWriter, r *http.Request) {
	quiz, err := s.svc.Daily.Today(r.Context())
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, quiz)
}

func (s *Server) startDaily(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	start, err := s.svc.Daily.Start(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, start)
}

// survival

type startSurvivalRequest struct {
	Mode     domain.SurvivalMode `json:"mode"`
	Category string              `json:"category"`
}

func (s *Server) startSurvival(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req startSurvivalRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.Mode == "" {
		req.Mode = domain.SurvivalMixed
	}
	run, err := s.svc.Survival.Start(r.Context(), userID, req.Mode, req.Category)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, run)
}

func (s *Server) survivalQuestion(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	q, err := s.svc.Survival.NextQuestion(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) answerSurvival(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	req, ok := s.answer(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Survival.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "id"), req.QuestionID, req.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAnswer(w, res.Verdict, res)
}

func (s *Server) endSurvival(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Survival.End(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// jeopardy

type startJeopardyRequest struct {
	BoardSize  int      `json:"boardSize"`
	Categories []string `json:"categories"`
}

type selectCellRequest struct {
	Category string `json:"category"`
	Points   int    `json:"points"`
}

func (s *Server) startJeopardy(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req startJeopardyRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	game, err := s.svc.Jeopardy.Start(r.Context(), userID, req.BoardSize, req.Categories)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, game)
}

func (s *Server) selectCell(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req selectCellRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	q, err := s.svc.Jeopardy.SelectCell(r.Context(), userID, chi.URLParam(r, "id"), req.Category, req.Points)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, q)
}

func (s *Server) answerJeopardy(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	req, ok := s.answer(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Jeopardy.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "id"), req.QuestionID, req.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAnswer(w, res.Verdict, res)
}

func (s *Server) abandonJeopardy(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	if err := s.svc.Jeopardy.Abandon(r.Context(), userID, chi.URLParam(r, "id")); err != nil {
		s.writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// tower

func (s *Server) towerProgress(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	view, err := s.svc.Tower.Progress(r.Context(), userID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, view)
}

func (s *Server) startFloor(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	floor, err := strconv.Atoi(chi.URLParam(r, "floor"))
	if err != nil {
		s.writeError(w, r, domain.Validationf("floor must be a number"))
		return
	}
	start, err := s.svc.Tower.StartFloor(r.Context(), userID, floor)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, start)
}

func (s *Server) answerFloor(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	req, ok := s.answer(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Tower.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "id"), req.QuestionID, req.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAnswer(w, res.Verdict, res)
}

func (s *Server) completeFloor(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	out, err := s.svc.Tower.CompleteFloor(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, out)
}

// faceoff and shared sessions

type createChallengeRequest struct {
	QuizID string `json:"quizId"`
}

func (s *Server) createChallenge(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	var req createChallengeRequest
	if err := decode(r, &req); err != nil {
		s.writeError(w, r, err)
		return
	}
	if req.QuizID == "" {
		s.writeError(w, r, domain.Validationf("quizId is required"))
		return
	}
	view, err := s.svc.Faceoff.Create(r.Context(), userID, req.QuizID)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, view)
}

func (s *Server) startFaceoff(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	start, err := s.svc.Faceoff.Start(r.Context(), userID, chi.URLParam(r, "code"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, start)
}

func (s *Server) answerPlay(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	req, ok := s.answer(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Play.SubmitAnswer(r.Context(), userID, chi.URLParam(r, "id"), req.QuestionID, req.Response)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeAnswer(w, res.Verdict, res)
}

func (s *Server) finishPlay(w http.ResponseWriter, r *http.Request) {
	userID, ok := s.user(w, r)
	if !ok {
		return
	}
	res, err := s.svc.Play.Finish(r.Context(), userID, chi.URLParam(r, "id"))
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

// leaderboard

func (s *Server) leaderboard(w http.ResponseWriter, r *http.Request) {
	limit := 0
	if raw := r.URL.Query().Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil {
			s.writeError(w, r, domain.Validationf("limit must be a number"))
			return
		}
		limit = n
	}
	lb, err := s.svc.Leaderboard.Top(r.Context(), chi.URLParam(r, "mode"), r.URL.Query().Get("bucket"), limit)
	if err != nil {
		s.writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, lb)
}
