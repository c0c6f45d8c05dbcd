package testutil

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sort"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"

	"tasky/internal/service"
)

// RecordedRequest is one request seen by APIServer.
type RecordedRequest struct {
	Method        string
	Path          string
	Query         string
	Token         string
	Authorization string
}

type account struct {
	user     service.User
	password string
}

// APIServer is an in-memory task API served over httptest.
// Access tokens are read from TokenHeader, like the real API.
type APIServer struct {
	*httptest.Server

	// TokenHeader is the header carrying the access token.
	TokenHeader string

	// Now stamps created and updated tasks.
	Now func() time.Time

	// OmitTimestamps makes create responses leave out createdAt/updatedAt.
	OmitTimestamps bool

	mu            sync.Mutex
	accounts      map[string]account // email -> account
	accessTokens  map[string]string  // token -> user id
	refreshTokens map[string]string  // token -> user id
	tasks         []service.Task
	nextID        int
	nextToken     int
	refreshCalls  int
	refreshSeen   []RecordedRequest
	requests      []RecordedRequest
	failures      map[string]int // "METHOD /path" -> status

	// RefreshGate, if set, blocks the refresh handler until it is closed.
	RefreshGate chan struct{}

	// RefreshStarted, if set, receives a value when a refresh call arrives.
	RefreshStarted chan struct{}

	// FailRefresh makes every refresh call answer 401.
	FailRefresh bool

	// TokenTTL, if set, is announced as expiresIn by login and refresh.
	TokenTTL time.Duration
}

// NewAPIServer starts an APIServer and closes it when the test ends.
func NewAPIServer(t testing.TB) *APIServer {
	t.Helper()
	s := &APIServer{
		TokenHeader:   "AccessToken",
		Now:           time.Now,
		accounts:      make(map[string]account),
		accessTokens:  make(map[string]string),
		refreshTokens: make(map[string]string),
		failures:      make(map[string]int),
	}
	s.Server = httptest.NewServer(s.routes())
	t.Cleanup(s.Close)
	return s
}

func (s *APIServer) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(s.record)
	r.Use(s.injectFailures)

	r.Post("/auth/login", s.handleLogin)
	r.Post("/auth/register", s.handleRegister)
	r.Post("/auth/refresh", s.handleRefresh)

	r.Group(func(r chi.Router) {
		r.Use(s.requireToken)
		r.Get("/auth/me", s.handleMe)
		r.Get("/tasks", s.handleList)
		r.Post("/tasks", s.handleCreate)
		r.Get("/tasks/{id}", s.handleGet)
		r.Patch("/tasks/{id}", s.handleUpdate)
		r.Delete("/tasks/{id}", s.handleDelete)
	})
	return r
}

// AddUser registers an account.
func (s *APIServer) AddUser(name, email, password string) service.User {
	s.mu.Lock()
	defer s.mu.Unlock()
	u := service.User{ID: fmt.Sprintf("user-%d", len(s.accounts)+1), Name: name, Email: email}
	s.accounts[email] = account{user: u, password: password}
	return u
}

// IssueTokens creates a valid access/refresh token pair for userID.
func (s *APIServer) IssueTokens(userID string) (access, refresh string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueLocked(userID)
}

func (s *APIServer) issueLocked(userID string) (access, refresh string) {
	s.nextToken++
	access = fmt.Sprintf("access-%d", s.nextToken)
	refresh = fmt.Sprintf("refresh-%d", s.nextToken)
	s.accessTokens[access] = userID
	s.refreshTokens[refresh] = userID
	return access, refresh
}

// ExpireAccessToken makes token answer 401 from now on.
func (s *APIServer) ExpireAccessToken(token string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.accessTokens, token)
}

// AddTask stores t, assigning an id if it has none.
func (s *APIServer) AddTask(t service.Task) service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	if t.ID == "" {
		s.nextID++
		t.ID = fmt.Sprintf("task-%d", s.nextID)
	}
	s.tasks = append(s.tasks, t)
	return t
}

// Tasks returns a copy of the stored tasks.
func (s *APIServer) Tasks() []service.Task {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]service.Task, len(s.tasks))
	copy(out, s.tasks)
	return out
}

// RefreshCalls returns how many refresh calls arrived.
func (s *APIServer) RefreshCalls() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshCalls
}

// RefreshRequests returns the refresh calls as recorded.
func (s *APIServer) RefreshRequests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.refreshSeen...)
}

// Requests returns every recorded request.
func (s *APIServer) Requests() []RecordedRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]RecordedRequest(nil), s.requests...)
}

// CountRequests counts recorded requests matching method and path.
func (s *APIServer) CountRequests(method, path string) int {
	n := 0
	for _, r := range s.Requests() {
		if r.Method == method && r.Path == path {
			n++
		}
	}
	return n
}

// FailWith makes requests to method+path answer status until cleared with 0.
func (s *APIServer) FailWith(method, path string, status int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := method + " " + path
	if status == 0 {
		delete(s.failures, key)
		return
	}
	s.failures[key] = status
}

func (s *APIServer) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, RecordedRequest{
			Method:        r.Method,
			Path:          r.URL.Path,
			Query:         r.URL.RawQuery,
			Token:         r.Header.Get(s.TokenHeader),
			Authorization: r.Header.Get("Authorization"),
		})
		s.mu.Unlock()
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) injectFailures(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		status, ok := s.failures[r.Method+" "+r.URL.Path]
		s.mu.Unlock()
		if ok {
			writeError(w, status, http.StatusText(status))
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		_, ok := s.accessTokens[r.Header.Get(s.TokenHeader)]
		s.mu.Unlock()
		if !ok {
			writeError(w, http.StatusUnauthorized, "Unauthorized")
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *APIServer) userFor(r *http.Request) (service.User, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id, ok := s.accessTokens[r.Header.Get(s.TokenHeader)]
	if !ok {
		return service.User{}, false
	}
	for _, a := range s.accounts {
		if a.user.ID == id {
			return a.user, true
		}
	}
	return service.User{}, false
}

func (s *APIServer) handleLogin(w http.ResponseWriter, r *http.Request) {
	var creds service.Credentials
	if err := json.NewDecoder(r.Body).Decode(&creds); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	a, ok := s.accounts[creds.Email]
	if !ok || a.password != creds.Password {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid credentials")
		return
	}
	access, refresh := s.issueLocked(a.user.ID)
	ttl := s.TokenTTL
	s.mu.Unlock()
	user := a.user
	writeJSON(w, http.StatusOK, service.AuthResult{
		AccessToken:  access,
		RefreshToken: refresh,
		User:         &user,
		ExpiresIn:    int(ttl / time.Second),
	})
}

func (s *APIServer) handleRegister(w http.ResponseWriter, r *http.Request) {
	var form service.SignupForm
	if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	s.mu.Lock()
	if _, exists := s.accounts[form.Email]; exists {
		s.mu.Unlock()
		writeError(w, http.StatusConflict, "Email already registered")
		return
	}
	u := service.User{ID: fmt.Sprintf("user-%d", len(s.accounts)+1), Name: form.Name, Email: form.Email}
	s.accounts[form.Email] = account{user: u, password: form.Password}
	access, refresh := s.issueLocked(u.ID)
	s.mu.Unlock()
	writeJSON(w, http.StatusCreated, service.AuthResult{AccessToken: access, RefreshToken: refresh, User: &u})
}

func (s *APIServer) handleRefresh(w http.ResponseWriter, r *http.Request) {
	s.mu.Lock()
	s.refreshCalls++
	s.refreshSeen = append(s.refreshSeen, RecordedRequest{
		Method: r.Method,
		Path:   r.URL.Path,
		Token:  r.Header.Get(s.TokenHeader),
	})
	started, gate, fail := s.RefreshStarted, s.RefreshGate, s.FailRefresh
	s.mu.Unlock()

	if started != nil {
		select {
		case started <- struct{}{}:
		default:
		}
	}
	if gate != nil {
		select {
		case <-gate:
		case <-r.Context().Done():
			return
		}
	}
	if fail {
		writeError(w, http.StatusUnauthorized, "Refresh token expired")
		return
	}

	var body struct {
		RefreshToken string `json:"refreshToken"`
	}
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	userID, ok := s.refreshTokens[body.RefreshToken]
	if !ok {
		s.mu.Unlock()
		writeError(w, http.StatusUnauthorized, "Invalid refresh token")
		return
	}
	s.nextToken++
	access := fmt.Sprintf("access-%d", s.nextToken)
	s.accessTokens[access] = userID
	ttl := s.TokenTTL
	s.mu.Unlock()

	res := map[string]any{"accessToken": access}
	if ttl > 0 {
		res["expiresIn"] = int(ttl / time.Second)
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *APIServer) handleMe(w http.ResponseWriter, r *http.Request) {
	u, ok := s.userFor(r)
	if !ok {
		writeError(w, http.StatusNotFound, "User not found")
		return
	}
	writeJSON(w, http.StatusOK, u)
}

func (s *APIServer) handleList(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	page, _ := strconv.Atoi(q.Get("page"))
	limit, _ := strconv.Atoi(q.Get("limit"))
	query := service.Query{Page: page, Limit: limit, Status: q.Get("status"), Search: q.Get("search")}.Normalize()

	s.mu.Lock()
	var matched []service.Task
	for _, t := range s.tasks {
		if query.Status != "" && string(t.Status) != query.Status {
			continue
		}
		if query.Search != "" && !strings.Contains(strings.ToLower(t.Name), strings.ToLower(query.Search)) {
			continue
		}
		matched = append(matched, t)
	}
	s.mu.Unlock()

	sort.SliceStable(matched, func(i, j int) bool { return matched[i].CreatedAt.After(matched[j].CreatedAt) })
	writeJSON(w, http.StatusOK, Paginate(matched, query))
}

func (s *APIServer) handleGet(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, t := range s.tasks {
		if t.ID == id {
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func (s *APIServer) handleCreate(w http.ResponseWriter, r *http.Request) {
	var in service.TaskInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}
	if strings.TrimSpace(in.Name) == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	now := s.Now().UTC()
	t := service.Task{
		Name:        in.Name,
		Description: in.Description,
		Priority:    in.Priority,
		Status:      in.Status,
		Tags:        in.Tags,
		ParentID:    in.ParentID,
		Children:    service.Children{},
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if t.Priority == "" {
		t.Priority = service.PriorityMedium
	}
	if t.Status == "" {
		t.Status = service.StatusTodo
	}

	s.mu.Lock()
	s.nextID++
	t.ID = fmt.Sprintf("task-%d", s.nextID)
	s.tasks = append(s.tasks, t)
	omit := s.OmitTimestamps
	s.mu.Unlock()

	if omit {
		writeJSON(w, http.StatusCreated, withoutTimestamps(t))
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (s *APIServer) handleUpdate(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var u service.TaskUpdate
	if err := json.NewDecoder(r.Body).Decode(&u); err != nil {
		writeError(w, http.StatusBadRequest, "invalid body")
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			t = u.Apply(t)
			t.UpdatedAt = s.Now().UTC()
			s.tasks[i] = t
			writeJSON(w, http.StatusOK, t)
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

func (s *APIServer) handleDelete(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, t := range s.tasks {
		if t.ID == id {
			s.tasks = append(s.tasks[:i], s.tasks[i+1:]...)
			writeJSON(w, http.StatusOK, map[string]string{"message": "Task deleted"})
			return
		}
	}
	writeError(w, http.StatusNotFound, "Task not found")
}

// Paginate slices tasks into the page selected by q and fills the meta block.
func Paginate(tasks []service.Task, q service.Query) service.TaskPage {
	q = q.Normalize()
	total := len(tasks)
	totalPages := (total + q.Limit - 1) / q.Limit
	start := (q.Page - 1) * q.Limit
	data := []service.Task{}
	if start < total {
		end := start + q.Limit
		if end > total {
			end = total
		}
		data = append(data, tasks[start:end]...)
	}
	return service.TaskPage{
		Data: data,
		Meta: service.PageMeta{
			Total:           total,
			Page:            q.Page,
			Limit:           q.Limit,
			TotalPages:      totalPages,
			HasNextPage:     q.Page < totalPages,
			HasPreviousPage: q.Page > 1,
		},
	}
}

func withoutTimestamps(t service.Task) map[string]any {
	data, _ := json.Marshal(t)
	var m map[string]any
	_ = json.Unmarshal(data, &m)
	delete(m, "createdAt")
	delete(m, "updatedAt")
	return m
}

func writeJSON(w http.ResponseWriter, code int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, code int, message string) {
	writeJSON(w, code, map[string]string{"message": message})
}
