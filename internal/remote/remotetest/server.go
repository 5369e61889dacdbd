// Package remotetest поднимает в процессе сервер списка задач с тем же протоколом, что и настоящий.
package remotetest

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"time"

	"todoList/internal/remote/dto"

	"github.com/go-chi/chi/v5"
)

const revisionHeader = "X-Last-Known-Revision"

type Server struct {
	*httptest.Server

	mtx            sync.Mutex
	token          string
	revision       int64
	items          []dto.RemoteTask
	requests       map[string]int
	revisionHeader []string
	failNext       int
	omitRevision   bool
	now            func() time.Time
}

func New(token string) *Server {
	s := &Server{
		token:    token,
		requests: make(map[string]int),
		now:      time.Now,
	}

	r := chi.NewRouter()
	r.Use(s.count)
	r.Use(s.authorize)
	r.Use(s.failures)

	r.Get("/list", s.getList)
	r.Patch("/list", s.patchList)
	r.Post("/list", s.postElement)
	r.Get("/list/{id}", s.getElement)
	r.Put("/list/{id}", s.putElement)
	r.Delete("/list/{id}", s.deleteElement)

	s.Server = httptest.NewServer(r)
	return s
}

func (s *Server) SetRevision(revision int64) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.revision = revision
}

func (s *Server) Revision() int64 {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.revision
}

func (s *Server) SetItems(items []dto.RemoteTask) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.items = append([]dto.RemoteTask(nil), items...)
}

func (s *Server) Items() []dto.RemoteTask {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]dto.RemoteTask(nil), s.items...)
}

// Requests возвращает число запросов вида "GET /list".
func (s *Server) Requests(key string) int {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return s.requests[key]
}

// RevisionHeaders возвращает значения заголовка ревизии из всех запросов, где он был.
func (s *Server) RevisionHeaders() []string {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	return append([]string(nil), s.revisionHeader...)
}

// FailNext заставляет следующие n запросов завершиться ответом 500.
func (s *Server) FailNext(n int) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.failNext = n
}

// OmitRevision убирает ревизию из ответов на изменения.
func (s *Server) OmitRevision(omit bool) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.omitRevision = omit
}

func (s *Server) SetClock(now func() time.Time) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.now = now
}

func (s *Server) count(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		s.requests[r.Method+" "+r.URL.Path]++
		if v := r.Header.Get(revisionHeader); v != "" {
			s.revisionHeader = append(s.revisionHeader, v)
		}
		s.mtx.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer "+s.token {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) failures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mtx.Lock()
		fail := s.failNext > 0
		if fail {
			s.failNext--
		}
		s.mtx.Unlock()

		if fail {
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) getList(w http.ResponseWriter, r *http.Request) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	s.writeList(w)
}

func (s *Server) getElement(w http.ResponseWriter, r *http.Request) {
	s.mtx.Lock()
	defer s.mtx.Unlock()

	i := s.index(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}
	s.writeElement(w, s.items[i], false)
}

func (s *Server) patchList(w http.ResponseWriter, r *http.Request) {
	var req dto.ListRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.checkRevision(w, r) {
		return
	}

	s.items = make([]dto.RemoteTask, 0, len(req.List))
	for _, item := range req.List {
		s.items = append(s.items, s.stamp(item))
	}
	s.revision++
	s.writeList(w)
}

func (s *Server) postElement(w http.ResponseWriter, r *http.Request) {
	var req dto.ElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.checkRevision(w, r) {
		return
	}
	if s.index(req.Element.ID) >= 0 {
		writeError(w, http.StatusBadRequest, "duplicate element")
		return
	}

	item := s.stamp(req.Element)
	s.items = append(s.items, item)
	s.revision++
	s.writeElement(w, item, true)
}

func (s *Server) putElement(w http.ResponseWriter, r *http.Request) {
	var req dto.ElementRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "malformed request")
		return
	}

	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.checkRevision(w, r) {
		return
	}
	i := s.index(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}

	item := s.stamp(req.Element)
	s.items[i] = item
	s.revision++
	s.writeElement(w, item, true)
}

func (s *Server) deleteElement(w http.ResponseWriter, r *http.Request) {
	s.mtx.Lock()
	defer s.mtx.Unlock()
	if !s.checkRevision(w, r) {
		return
	}
	i := s.index(chi.URLParam(r, "id"))
	if i < 0 {
		writeError(w, http.StatusNotFound, "element not found")
		return
	}

	item := s.items[i]
	s.items = append(s.items[:i], s.items[i+1:]...)
	s.revision++
	s.writeElement(w, item, true)
}

func (s *Server) checkRevision(w http.ResponseWriter, r *http.Request) bool {
	got, err := strconv.ParseInt(r.Header.Get(revisionHeader), 10, 64)
	if err != nil || got != s.revision {
		writeError(w, http.StatusBadRequest, "unsynchronized data")
		return false
	}
	return true
}

// сервер проставляет время изменения, если клиент его не прислал
func (s *Server) stamp(item dto.RemoteTask) dto.RemoteTask {
	if item.ChangedAt == nil {
		now := s.now().Unix()
		item.ChangedAt = &now
	}
	return item
}

func (s *Server) index(id string) int {
	for i, item := range s.items {
		if item.ID == id {
			return i
		}
	}
	return -1
}

func (s *Server) writeList(w http.ResponseWriter) {
	revision := s.revision
	writeJSON(w, http.StatusOK, dto.ListResponse{
		Status:   "ok",
		List:     append([]dto.RemoteTask{}, s.items...),
		Revision: &revision,
	})
}

func (s *Server) writeElement(w http.ResponseWriter, item dto.RemoteTask, mutation bool) {
	resp := dto.ElementResponse{Status: "ok", Element: item}
	if !mutation || !s.omitRevision {
		revision := s.revision
		resp.Revision = &revision
	}
	writeJSON(w, http.StatusOK, resp)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"status": "error", "message": message})
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(payload)
}
