// Package apitest provides an in-memory implementation of the scheduling
// REST API for tests.
package apitest

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"

	"schedulink/internal/models"
)

// Failure is a canned error response.
type Failure struct {
	Status int
	Detail string
}

// Server is a fake API backed by maps. Safe for concurrent use.
type Server struct {
	*httptest.Server

	mu       sync.Mutex
	users    map[int64]models.User
	slots    map[int64]models.Slot
	nextUser int64
	nextSlot int64
	failures map[string][]Failure
	calls    map[string]int
	hold     map[string]chan struct{}
	headers  []http.Header
}

// New starts a server. Call Close when done.
func New() *Server {
	s := &Server{
		users:    make(map[int64]models.User),
		slots:    make(map[int64]models.Slot),
		failures: make(map[string][]Failure),
		calls:    make(map[string]int),
		hold:     make(map[string]chan struct{}),
	}

	r := mux.NewRouter()
	r.HandleFunc("/health", s.health).Methods(http.MethodGet)
	r.HandleFunc("/users", s.createUser).Methods(http.MethodPost)
	r.HandleFunc("/users", s.listUsers).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}", s.getUser).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}/slots", s.userSlots).Methods(http.MethodGet)
	r.HandleFunc("/users/{id:[0-9]+}/bookings", s.userBookings).Methods(http.MethodGet)
	r.HandleFunc("/slots", s.createSlot).Methods(http.MethodPost)
	r.HandleFunc("/slots", s.listSlots).Methods(http.MethodGet)
	r.HandleFunc("/slots/{id:[0-9]+}", s.getSlot).Methods(http.MethodGet)
	r.HandleFunc("/slots/{id:[0-9]+}", s.updateSlot).Methods(http.MethodPut)
	r.HandleFunc("/slots/{id:[0-9]+}", s.deleteSlot).Methods(http.MethodDelete)
	r.HandleFunc("/slots/{id:[0-9]+}/book", s.bookSlot).Methods(http.MethodPatch)
	r.HandleFunc("/slots/{id:[0-9]+}/cancel", s.cancelSlot).Methods(http.MethodPatch)
	r.Use(s.intercept)

	s.Server = httptest.NewServer(handlers.RecoveryHandler()(r))
	return s
}

// SeedUser inserts a user directly and returns it.
func (s *Server) SeedUser(name, email, phone string) models.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextUser++
	u := models.User{ID: s.nextUser, Name: name, Email: email, Phone: phone}
	s.users[u.ID] = u
	return u
}

// SeedSlot inserts a slot directly and returns it. ID is assigned.
func (s *Server) SeedSlot(slot models.Slot) models.Slot {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextSlot++
	slot.ID = s.nextSlot
	s.slots[slot.ID] = slot.Clone()
	return slot
}

// PutSlot replaces the server copy of slot.ID, as another client would.
func (s *Server) PutSlot(slot models.Slot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.slots[slot.ID] = slot.Clone()
}

// RemoveSlot deletes a slot as if another client had removed it.
func (s *Server) RemoveSlot(id int64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.slots, id)
}

// Slot returns the server-side copy of a slot.
func (s *Server) Slot(id int64) (models.Slot, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	slot, ok := s.slots[id]
	return slot.Clone(), ok
}

// Fail queues a failure for the next request whose route name matches op,
// e.g. "PATCH /slots/{id}/book".
func (s *Server) Fail(op string, f Failure) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failures[op] = append(s.failures[op], f)
}

// Hold blocks requests for op until the returned func is called.
func (s *Server) Hold(op string) (release func()) {
	ch := make(chan struct{})
	s.mu.Lock()
	s.hold[op] = ch
	s.mu.Unlock()
	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.hold, op)
			s.mu.Unlock()
			close(ch)
		})
	}
}

// Calls returns how many requests hit op.
func (s *Server) Calls(op string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.calls[op]
}

// LastHeaders returns the headers of the most recent request.
func (s *Server) LastHeaders() http.Header {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.headers) == 0 {
		return nil
	}
	return s.headers[len(s.headers)-1]
}

func (s *Server) intercept(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		op := r.Method + " " + routeShape(r)

		s.mu.Lock()
		s.calls[op]++
		s.headers = append(s.headers, r.Header.Clone())
		hold := s.hold[op]
		var fail *Failure
		if q := s.failures[op]; len(q) > 0 {
			f := q[0]
			fail = &f
			s.failures[op] = q[1:]
		}
		s.mu.Unlock()

		if hold != nil {
			select {
			case <-hold:
			case <-r.Context().Done():
				return
			}
		}
		if fail != nil {
			writeDetail(w, fail.Status, fail.Detail)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func routeShape(r *http.Request) string {
	route := mux.CurrentRoute(r)
	if route == nil {
		return r.URL.Path
	}
	tpl, err := route.GetPathTemplate()
	if err != nil {
		return r.URL.Path
	}
	return strings.ReplaceAll(tpl, "{id:[0-9]+}", "{id}")
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeDetail(w http.ResponseWriter, status int, detail string) {
	if detail == "" {
		w.WriteHeader(status)
		return
	}
	writeJSON(w, status, map[string]string{"detail": detail})
}

func pathID(r *http.Request) int64 {
	id, _ := strconv.ParseInt(mux.Vars(r)["id"], 10, 64)
	return id
}

func decode(r *http.Request, v any) error {
	data, err := io.ReadAll(r.Body)
	if err != nil {
		return err
	}
	return json.Unmarshal(data, v)
}

func (s *Server) health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, models.Health{Status: "healthy", Service: "schedulink-api"})
}

func (s *Server) createUser(w http.ResponseWriter, r *http.Request) {
	var in models.NewUser
	if err := decode(r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, u := range s.users {
		if strings.EqualFold(u.Email, in.Email) {
			writeDetail(w, http.StatusBadRequest, "Email already registered")
			return
		}
	}
	s.nextUser++
	u := models.User{ID: s.nextUser, Name: in.Name, Email: in.Email, Phone: in.Phone}
	s.users[u.ID] = u
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) listUsers(w http.ResponseWriter, _ *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]models.User, 0, len(s.users))
	for _, u := range s.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) getUser(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	u, ok := s.users[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *Server) filterSlots(keep func(models.Slot) bool) []models.Slot {
	out := make([]models.Slot, 0, len(s.slots))
	for _, sl := range s.slots {
		if keep(sl) {
			out = append(out, sl.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *Server) userSlots(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.users[id]; !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, s.filterSlots(func(sl models.Slot) bool {
		return sl.UserID != nil && *sl.UserID == id
	}))
}

func (s *Server) userBookings(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.users[id]; !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, s.filterSlots(func(sl models.Slot) bool {
		return sl.BookedBy() == id
	}))
}

func (s *Server) createSlot(w http.ResponseWriter, r *http.Request) {
	var in models.NewSlot
	if err := decode(r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if in.UserID != nil {
		if _, ok := s.users[*in.UserID]; !ok {
			writeDetail(w, http.StatusNotFound, "User not found")
			return
		}
	}
	s.nextSlot++
	sl := models.Slot{
		ID:          s.nextSlot,
		Title:       in.Title,
		Description: in.Description,
		Date:        in.Date,
		StartTime:   in.StartTime,
		EndTime:     in.EndTime,
		UserID:      in.UserID,
	}
	s.slots[sl.ID] = sl
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) listSlots(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date := q.Get("date")
	var isBooked *bool
	if v := q.Get("is_booked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			writeDetail(w, http.StatusUnprocessableEntity, fmt.Sprintf("invalid is_booked %q", v))
			return
		}
		isBooked = &b
	}
	userID, _ := strconv.ParseInt(q.Get("user_id"), 10, 64)

	s.mu.Lock()
	defer s.mu.Unlock()
	writeJSON(w, http.StatusOK, s.filterSlots(func(sl models.Slot) bool {
		if date != "" && sl.Date != date {
			return false
		}
		if isBooked != nil && sl.IsBooked != *isBooked {
			return false
		}
		if userID != 0 && (sl.UserID == nil || *sl.UserID != userID) {
			return false
		}
		return true
	}))
}

func (s *Server) getSlot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Slot not found")
		return
	}
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) updateSlot(w http.ResponseWriter, r *http.Request) {
	var in models.SlotUpdate
	if err := decode(r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Slot not found")
		return
	}
	if in.Title != nil {
		sl.Title = *in.Title
	}
	if in.Description != nil {
		sl.Description = in.Description
	}
	if in.Date != nil {
		sl.Date = *in.Date
	}
	if in.StartTime != nil {
		sl.StartTime = *in.StartTime
	}
	if in.EndTime != nil {
		sl.EndTime = *in.EndTime
	}
	s.slots[sl.ID] = sl
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) deleteSlot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := pathID(r)
	if _, ok := s.slots[id]; !ok {
		writeDetail(w, http.StatusNotFound, "Slot not found")
		return
	}
	delete(s.slots, id)
	writeJSON(w, http.StatusOK, map[string]string{"message": "Slot deleted successfully"})
}

func (s *Server) bookSlot(w http.ResponseWriter, r *http.Request) {
	var in struct {
		UserID int64 `json:"user_id"`
	}
	if err := decode(r, &in); err != nil {
		writeDetail(w, http.StatusUnprocessableEntity, "invalid request body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Slot not found")
		return
	}
	if sl.IsBooked {
		writeDetail(w, http.StatusBadRequest, "Slot is already booked")
		return
	}
	if _, ok := s.users[in.UserID]; !ok {
		writeDetail(w, http.StatusNotFound, "User not found")
		return
	}
	sl.MarkBooked(in.UserID)
	s.slots[sl.ID] = sl
	writeJSON(w, http.StatusOK, sl)
}

func (s *Server) cancelSlot(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sl, ok := s.slots[pathID(r)]
	if !ok {
		writeDetail(w, http.StatusNotFound, "Slot not found")
		return
	}
	if !sl.IsBooked {
		writeDetail(w, http.StatusBadRequest, "Slot is not booked")
		return
	}
	sl.MarkAvailable()
	s.slots[sl.ID] = sl
	writeJSON(w, http.StatusOK, sl)
}
