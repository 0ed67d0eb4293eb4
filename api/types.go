package api

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
)

// UserType is the account role the backend assigns.
type UserType int

const (
	// UserTypeStudent is a learner account.
	UserTypeStudent UserType = 1
	// UserTypeTeacher is an instructor account.
	UserTypeTeacher UserType = 2
	// UserTypeAdmin is an administrator account.
	UserTypeAdmin UserType = 3
)

// Valid reports whether t is one of the known roles.
func (t UserType) Valid() bool {
	return t >= UserTypeStudent && t <= UserTypeAdmin
}

func (t UserType) String() string {
	switch t {
	case UserTypeStudent:
		return "student"
	case UserTypeTeacher:
		return "teacher"
	case UserTypeAdmin:
		return "admin"
	default:
		return "unknown"
	}
}

// ParseUserType accepts either the role name or its numeric code.
func ParseUserType(s string) (UserType, error) {
	s = strings.ToLower(strings.TrimSpace(s))
	switch s {
	case "student":
		return UserTypeStudent, nil
	case "teacher":
		return UserTypeTeacher, nil
	case "admin":
		return UserTypeAdmin, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || !UserType(n).Valid() {
		return 0, fmt.Errorf("unknown user type %q", s)
	}
	return UserType(n), nil
}

// FlexString decodes from either a JSON string or a JSON number. The backend is not
// consistent about identifier types.
type FlexString string

func (f *FlexString) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*f = ""
		return nil
	}
	if len(data) > 0 && data[0] == '"' {
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*f = FlexString(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(data, &n); err != nil {
		return fmt.Errorf("flex string: %w", err)
	}
	*f = FlexString(n.String())
	return nil
}

func (f FlexString) String() string { return string(f) }

// LoginRequest is the body of POST /auth/login.
type LoginRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	UserType UserType `json:"userType,omitempty"`
}

// LoginResponse is the data member of a successful login.
type LoginResponse struct {
	UserID    FlexString `json:"userId"`
	Nickname  string     `json:"nickname"`
	Username  string     `json:"username"`
	Token     string     `json:"token"`
	TokenType string     `json:"tokenType"`
	ExpiresIn int64      `json:"expiresIn"`
	Avatar    string     `json:"avatar"`
	UserType  UserType   `json:"userType"`
}

// RegisterRequest is the body of POST /auth/register.
type RegisterRequest struct {
	Username string   `json:"username"`
	Password string   `json:"password"`
	Nickname string   `json:"nickname,omitempty"`
	Phone    string   `json:"phone,omitempty"`
	UserType UserType `json:"userType"`
}

// UserProfile is the data member of GET /user/info.
type UserProfile struct {
	ID       FlexString `json:"id"`
	Name     string     `json:"name"`
	Nickname string     `json:"nickname,omitempty"`
	Username string     `json:"username"`
	Phone    string     `json:"phone,omitempty"`
	Avatar   string     `json:"avatar"`
	UserType UserType   `json:"userType"`
}

// DisplayName prefers the explicit name, then the nickname.
func (p UserProfile) DisplayName() string {
	if p.Name != "" {
		return p.Name
	}
	return p.Nickname
}

// ProfileUpdate is the body of PUT /user/update. Nil fields are omitted.
type ProfileUpdate struct {
	Nickname *string `json:"nickname,omitempty"`
	Phone    *string `json:"phone,omitempty"`
	Avatar   *string `json:"avatar,omitempty"`
}

// ListQuery is the common query string of list endpoints.
type ListQuery struct {
	Page     int    `json:"page,omitempty"`
	PageSize int    `json:"pageSize,omitempty"`
	Keyword  string `json:"keyword,omitempty"`
	CourseID string `json:"courseId,omitempty"`
	Status   string `json:"status,omitempty"`
}

// Page is a list result. The backend answers list endpoints either with a bare
// array or with {list, total}; both decode into Page.
type Page[T any] struct {
	List  []T `json:"list"`
	Total int `json:"total"`
}

func (p *Page[T]) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '[' {
		var list []T
		if err := json.Unmarshal(data, &list); err != nil {
			return err
		}
		p.List = list
		p.Total = len(list)
		return nil
	}
	var out struct {
		List  []T `json:"list"`
		Total int `json:"total"`
	}
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	p.List = out.List
	p.Total = out.Total
	if p.Total == 0 {
		p.Total = len(p.List)
	}
	return nil
}

// Student is a student record.
type Student struct {
	ID        FlexString `json:"id"`
	Name      string     `json:"name"`
	Username  string     `json:"username,omitempty"`
	Phone     string     `json:"phone,omitempty"`
	Avatar    string     `json:"avatar,omitempty"`
	ClassName string     `json:"className,omitempty"`
}

// StudentInput is the body of student create and update calls.
type StudentInput struct {
	Name      string `json:"name"`
	Username  string `json:"username,omitempty"`
	Phone     string `json:"phone,omitempty"`
	ClassName string `json:"className,omitempty"`
}

// Course is a course record.
type Course struct {
	ID          FlexString `json:"id"`
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	TeacherID   FlexString `json:"teacherId,omitempty"`
	TeacherName string     `json:"teacherName,omitempty"`
}

// CourseInput is the body of course create and update calls.
type CourseInput struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	TeacherID   string `json:"teacherId,omitempty"`
}

// Schedule is a bookable time slot of a course.
type Schedule struct {
	ID        FlexString `json:"id"`
	CourseID  FlexString `json:"courseId"`
	TeacherID FlexString `json:"teacherId,omitempty"`
	StartTime string     `json:"startTime"`
	EndTime   string     `json:"endTime"`
	Location  string     `json:"location,omitempty"`
	Capacity  int        `json:"capacity,omitempty"`
	Booked    int        `json:"booked,omitempty"`
}

// ScheduleInput is the body of schedule create and update calls.
type ScheduleInput struct {
	CourseID  string `json:"courseId"`
	StartTime string `json:"startTime"`
	EndTime   string `json:"endTime"`
	Location  string `json:"location,omitempty"`
	Capacity  int    `json:"capacity,omitempty"`
}

// BookingRequest is the body of POST /schedules/{id}/book.
type BookingRequest struct {
	StudentID string `json:"studentId,omitempty"`
	Note      string `json:"note,omitempty"`
}

// Homework is an assignment record.
type Homework struct {
	ID       FlexString `json:"id"`
	CourseID FlexString `json:"courseId"`
	Title    string     `json:"title"`
	Content  string     `json:"content,omitempty"`
	Deadline string     `json:"deadline,omitempty"`
	Status   string     `json:"status,omitempty"`
	Score    *float64   `json:"score,omitempty"`
	Comment  string     `json:"comment,omitempty"`
}

// HomeworkInput is the body of POST /homeworks.
type HomeworkInput struct {
	CourseID string `json:"courseId"`
	Title    string `json:"title"`
	Content  string `json:"content,omitempty"`
	Deadline string `json:"deadline,omitempty"`
}

// Submission is the body of POST /homeworks/{id}/submit.
type Submission struct {
	Content     string   `json:"content"`
	Attachments []string `json:"attachments,omitempty"`
}

// Grade is the body of PUT /homeworks/{id}/grade.
type Grade struct {
	StudentID string  `json:"studentId,omitempty"`
	Score     float64 `json:"score"`
	Comment   string  `json:"comment,omitempty"`
}

// UploadResult is the data member of upload endpoints. Some deployments answer
// with a bare URL string instead of an object.
type UploadResult struct {
	URL      string `json:"url"`
	Avatar   string `json:"avatar,omitempty"`
	FileName string `json:"fileName,omitempty"`
}

func (u *UploadResult) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) > 0 && data[0] == '"' {
		return json.Unmarshal(data, &u.URL)
	}
	type plain UploadResult
	var out plain
	if err := json.Unmarshal(data, &out); err != nil {
		return err
	}
	*u = UploadResult(out)
	return nil
}

// Location returns the avatar URL when present, else the generic URL.
func (u UploadResult) Location() string {
	if u.Avatar != "" {
		return u.Avatar
	}
	return u.URL
}
