package mockapi

import (
	"errors"
	"net/http"
	"net/url"
	"sort"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"

	"github.com/MrEthical07/goCampus/api"
)

// resource is an in-memory collection served with list, create, update and delete
// routes. T is the stored record, I the create/update body.
type resource[T, I any] struct {
	mu     *sync.Mutex
	items  map[string]T
	nextID int

	validate func(in I) error
	build    func(id string, in I) T
	apply    func(cur T, in I) T
	match    func(item T, q url.Values) bool
}

func newResource[T, I any](mu *sync.Mutex) *resource[T, I] {
	return &resource[T, I]{mu: mu, items: map[string]T{}}
}

func (rs *resource[T, I]) mount(r chi.Router, base string) {
	r.Get(base, rs.list)
	r.Post(base, rs.create)
	r.Put(base+"/{id}", rs.update)
	r.Delete(base+"/{id}", rs.remove)
}

type pageData[T any] struct {
	List  []T `json:"list"`
	Total int `json:"total"`
}

func (rs *resource[T, I]) list(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()

	rs.mu.Lock()
	ids := make([]string, 0, len(rs.items))
	for id, item := range rs.items {
		if rs.match == nil || rs.match(item, q) {
			ids = append(ids, id)
		}
	}
	sort.Slice(ids, func(i, j int) bool {
		a, _ := strconv.Atoi(ids[i])
		b, _ := strconv.Atoi(ids[j])
		return a < b
	})
	matched := make([]T, 0, len(ids))
	for _, id := range ids {
		matched = append(matched, rs.items[id])
	}
	rs.mu.Unlock()

	writeOK(w, pageData[T]{List: paginate(matched, q), Total: len(matched)})
}

func (rs *resource[T, I]) create(w http.ResponseWriter, r *http.Request) {
	in, ok := rs.decode(w, r)
	if !ok {
		return
	}
	rs.mu.Lock()
	rs.nextID++
	id := strconv.Itoa(rs.nextID)
	item := rs.build(id, in)
	rs.items[id] = item
	rs.mu.Unlock()
	writeOK(w, item)
}

func (rs *resource[T, I]) update(w http.ResponseWriter, r *http.Request) {
	in, ok := rs.decode(w, r)
	if !ok {
		return
	}
	id := chi.URLParam(r, "id")

	rs.mu.Lock()
	defer rs.mu.Unlock()
	cur, found := rs.items[id]
	if !found {
		writeFail(w, http.StatusNotFound, "not found")
		return
	}
	next := rs.apply(cur, in)
	rs.items[id] = next
	writeOK(w, next)
}

func (rs *resource[T, I]) remove(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	rs.mu.Lock()
	_, found := rs.items[id]
	delete(rs.items, id)
	rs.mu.Unlock()

	if !found {
		writeFail(w, http.StatusNotFound, "not found")
		return
	}
	writeOK(w, nil)
}

func (rs *resource[T, I]) decode(w http.ResponseWriter, r *http.Request) (I, bool) {
	var in I
	if err := decodeBody(r, &in); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return in, false
	}
	if rs.validate != nil {
		if err := rs.validate(in); err != nil {
			writeFail(w, http.StatusBadRequest, err.Error())
			return in, false
		}
	}
	return in, true
}

// paginate applies page/pageSize (1-based). Without pageSize everything is returned.
func paginate[T any](items []T, q url.Values) []T {
	size, _ := strconv.Atoi(q.Get("pageSize"))
	if size <= 0 {
		return items
	}
	page, _ := strconv.Atoi(q.Get("page"))
	if page <= 0 {
		page = 1
	}
	start := (page - 1) * size
	if start >= len(items) {
		return []T{}
	}
	end := start + size
	if end > len(items) {
		end = len(items)
	}
	return items[start:end]
}

func keywordMatch(q url.Values, fields ...string) bool {
	kw := strings.ToLower(strings.TrimSpace(q.Get("keyword")))
	if kw == "" {
		return true
	}
	for _, f := range fields {
		if strings.Contains(strings.ToLower(f), kw) {
			return true
		}
	}
	return false
}

func requireField(name, value string) error {
	if strings.TrimSpace(value) == "" {
		return errors.New(name + " is required")
	}
	return nil
}

func newStudents(mu *sync.Mutex) *resource[api.Student, api.StudentInput] {
	rs := newResource[api.Student, api.StudentInput](mu)
	rs.validate = func(in api.StudentInput) error { return requireField("name", in.Name) }
	rs.build = func(id string, in api.StudentInput) api.Student {
		return api.Student{ID: api.FlexString(id), Name: in.Name, Username: in.Username, Phone: in.Phone, ClassName: in.ClassName}
	}
	rs.apply = func(cur api.Student, in api.StudentInput) api.Student {
		return rs.build(cur.ID.String(), in)
	}
	rs.match = func(s api.Student, q url.Values) bool {
		return keywordMatch(q, s.Name, s.Username, s.ClassName)
	}
	return rs
}

func newCourses(mu *sync.Mutex) *resource[api.Course, api.CourseInput] {
	rs := newResource[api.Course, api.CourseInput](mu)
	rs.validate = func(in api.CourseInput) error { return requireField("name", in.Name) }
	rs.build = func(id string, in api.CourseInput) api.Course {
		return api.Course{ID: api.FlexString(id), Name: in.Name, Description: in.Description, TeacherID: api.FlexString(in.TeacherID)}
	}
	rs.apply = func(cur api.Course, in api.CourseInput) api.Course {
		return rs.build(cur.ID.String(), in)
	}
	rs.match = func(c api.Course, q url.Values) bool {
		return keywordMatch(q, c.Name, c.Description)
	}
	return rs
}

func newSchedules(mu *sync.Mutex) *resource[api.Schedule, api.ScheduleInput] {
	rs := newResource[api.Schedule, api.ScheduleInput](mu)
	rs.validate = func(in api.ScheduleInput) error {
		if err := requireField("courseId", in.CourseID); err != nil {
			return err
		}
		if in.StartTime == "" || in.EndTime == "" {
			return errors.New("startTime and endTime are required")
		}
		return nil
	}
	rs.build = func(id string, in api.ScheduleInput) api.Schedule {
		return api.Schedule{
			ID:        api.FlexString(id),
			CourseID:  api.FlexString(in.CourseID),
			StartTime: in.StartTime,
			EndTime:   in.EndTime,
			Location:  in.Location,
			Capacity:  in.Capacity,
		}
	}
	rs.apply = func(cur api.Schedule, in api.ScheduleInput) api.Schedule {
		next := rs.build(cur.ID.String(), in)
		next.Booked = cur.Booked
		return next
	}
	rs.match = func(s api.Schedule, q url.Values) bool {
		course := q.Get("courseId")
		return (course == "" || s.CourseID.String() == course) && keywordMatch(q, s.Location)
	}
	return rs
}

func newHomeworks(mu *sync.Mutex) *resource[api.Homework, api.HomeworkInput] {
	rs := newResource[api.Homework, api.HomeworkInput](mu)
	rs.validate = func(in api.HomeworkInput) error { return requireField("title", in.Title) }
	rs.build = func(id string, in api.HomeworkInput) api.Homework {
		return api.Homework{
			ID:       api.FlexString(id),
			CourseID: api.FlexString(in.CourseID),
			Title:    in.Title,
			Content:  in.Content,
			Deadline: in.Deadline,
			Status:   "assigned",
		}
	}
	rs.apply = func(cur api.Homework, in api.HomeworkInput) api.Homework {
		cur.CourseID = api.FlexString(in.CourseID)
		cur.Title = in.Title
		cur.Content = in.Content
		cur.Deadline = in.Deadline
		return cur
	}
	rs.match = func(h api.Homework, q url.Values) bool {
		course := q.Get("courseId")
		status := q.Get("status")
		return (course == "" || h.CourseID.String() == course) &&
			(status == "" || h.Status == status) &&
			keywordMatch(q, h.Title, h.Content)
	}
	return rs
}

func (s *Server) handleBook(w http.ResponseWriter, r *http.Request) {
	var req api.BookingRequest
	if r.ContentLength != 0 {
		if err := decodeBody(r, &req); err != nil {
			writeFail(w, http.StatusBadRequest, "invalid request body")
			return
		}
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	sched, ok := s.schedules.items[id]
	if !ok {
		writeFail(w, http.StatusNotFound, "schedule not found")
		return
	}
	if sched.Capacity > 0 && sched.Booked >= sched.Capacity {
		writeFail(w, http.StatusConflict, "schedule is full")
		return
	}
	sched.Booked++
	s.schedules.items[id] = sched
	writeOK(w, sched)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req api.Submission
	if err := decodeBody(r, &req); err != nil || strings.TrimSpace(req.Content) == "" {
		writeFail(w, http.StatusBadRequest, "content is required")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	hw, ok := s.homeworks.items[id]
	if !ok {
		writeFail(w, http.StatusNotFound, "homework not found")
		return
	}
	hw.Status = "submitted"
	s.homeworks.items[id] = hw
	writeOK(w, hw)
}

func (s *Server) handleGrade(w http.ResponseWriter, r *http.Request) {
	if userType := s.callerType(r); userType == api.UserTypeStudent {
		writeFail(w, http.StatusForbidden, "only teachers can grade")
		return
	}
	var req api.Grade
	if err := decodeBody(r, &req); err != nil {
		writeFail(w, http.StatusBadRequest, "invalid request body")
		return
	}
	id := chi.URLParam(r, "id")

	s.mu.Lock()
	defer s.mu.Unlock()
	hw, ok := s.homeworks.items[id]
	if !ok {
		writeFail(w, http.StatusNotFound, "homework not found")
		return
	}
	score := req.Score
	hw.Score = &score
	hw.Comment = req.Comment
	hw.Status = "graded"
	s.homeworks.items[id] = hw
	writeOK(w, hw)
}

func (s *Server) callerType(r *http.Request) api.UserType {
	s.mu.Lock()
	defer s.mu.Unlock()
	if u, ok := s.users[userIDFromContext(r.Context())]; ok {
		return u.UserType
	}
	return 0
}
