package api

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
)

// Backend paths, relative to the gateway base URL.
const (
	PathLogin        = "/auth/login"
	PathRegister     = "/auth/register"
	PathUserInfo     = "/user/info"
	PathUserUpdate   = "/user/update"
	PathUploadAvatar = "/user/upload-avatar"
	PathUpload       = "/upload"
	PathStudents     = "/students"
	PathCourses      = "/courses"
	PathSchedules    = "/schedules"
	PathHomeworks    = "/homeworks"
)

// API binds backend endpoints to the gateway. Read endpoints decode the data member
// into typed records with avatar URLs normalized; write endpoints return the
// envelope as-is.
type API struct {
	gw *Gateway
}

// New binds the endpoint set to gw.
func New(gw *Gateway) *API {
	return &API{gw: gw}
}

// Gateway returns the underlying gateway for calls that have no binding.
func (a *API) Gateway() *Gateway {
	return a.gw
}

// Login authenticates with username, password and role.
func (a *API) Login(ctx context.Context, req LoginRequest) (*LoginResponse, error) {
	var out LoginResponse
	if err := a.fetch(ctx, http.MethodPost, PathLogin, req, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Register creates an account.
func (a *API) Register(ctx context.Context, req RegisterRequest) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: PathRegister, Data: req})
}

// GetUserInfo fetches the profile of the token holder.
func (a *API) GetUserInfo(ctx context.Context) (*UserProfile, error) {
	var out UserProfile
	if err := a.fetch(ctx, http.MethodGet, PathUserInfo, nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// UpdateUserInfo updates the profile of the token holder.
func (a *API) UpdateUserInfo(ctx context.Context, req ProfileUpdate) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPut, URL: PathUserUpdate, Data: req})
}

func (a *API) GetStudents(ctx context.Context, q ListQuery) (*Page[Student], error) {
	var out Page[Student]
	if err := a.fetch(ctx, http.MethodGet, PathStudents, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddStudent(ctx context.Context, in StudentInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: PathStudents, Data: in})
}

func (a *API) UpdateStudent(ctx context.Context, id string, in StudentInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPut, URL: itemPath(PathStudents, id), Data: in})
}

func (a *API) DeleteStudent(ctx context.Context, id string) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodDelete, URL: itemPath(PathStudents, id)})
}

func (a *API) GetCourses(ctx context.Context, q ListQuery) (*Page[Course], error) {
	var out Page[Course]
	if err := a.fetch(ctx, http.MethodGet, PathCourses, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddCourse(ctx context.Context, in CourseInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: PathCourses, Data: in})
}

func (a *API) UpdateCourse(ctx context.Context, id string, in CourseInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPut, URL: itemPath(PathCourses, id), Data: in})
}

func (a *API) DeleteCourse(ctx context.Context, id string) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodDelete, URL: itemPath(PathCourses, id)})
}

func (a *API) GetSchedules(ctx context.Context, q ListQuery) (*Page[Schedule], error) {
	var out Page[Schedule]
	if err := a.fetch(ctx, http.MethodGet, PathSchedules, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddSchedule(ctx context.Context, in ScheduleInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: PathSchedules, Data: in})
}

func (a *API) UpdateSchedule(ctx context.Context, id string, in ScheduleInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPut, URL: itemPath(PathSchedules, id), Data: in})
}

func (a *API) DeleteSchedule(ctx context.Context, id string) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodDelete, URL: itemPath(PathSchedules, id)})
}

// BookSchedule reserves a seat in a schedule slot.
func (a *API) BookSchedule(ctx context.Context, id string, in BookingRequest) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: itemPath(PathSchedules, id) + "/book", Data: in})
}

func (a *API) GetHomeworks(ctx context.Context, q ListQuery) (*Page[Homework], error) {
	var out Page[Homework]
	if err := a.fetch(ctx, http.MethodGet, PathHomeworks, q, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

func (a *API) AddHomework(ctx context.Context, in HomeworkInput) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: PathHomeworks, Data: in})
}

// SubmitHomework hands in a solution for homework id.
func (a *API) SubmitHomework(ctx context.Context, id string, in Submission) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPost, URL: itemPath(PathHomeworks, id) + "/submit", Data: in})
}

// GradeHomework records a score for homework id.
func (a *API) GradeHomework(ctx context.Context, id string, in Grade) (*Envelope, error) {
	return a.gw.Request(ctx, Options{Method: http.MethodPut, URL: itemPath(PathHomeworks, id) + "/grade", Data: in})
}

// UploadFile uploads a file under the "file" field.
func (a *API) UploadFile(ctx context.Context, filePath string) (*UploadResult, error) {
	return a.uploadResult(ctx, UploadOptions{URL: PathUpload, FieldName: "file", FilePath: filePath})
}

// UploadAvatar uploads an avatar image for userID under the "avatar" field.
func (a *API) UploadAvatar(ctx context.Context, filePath, userID string) (*UploadResult, error) {
	return a.uploadResult(ctx, UploadOptions{
		URL:       PathUploadAvatar,
		FieldName: "avatar",
		FilePath:  filePath,
		FormData:  map[string]string{"userId": userID},
	})
}

func (a *API) uploadResult(ctx context.Context, opts UploadOptions) (*UploadResult, error) {
	var out UploadResult
	_, err := a.gw.upload(ctx, opts, func(env *Envelope) *Error {
		if err := env.Decode(&out); err != nil {
			return &Error{Kind: KindDecode, Status: http.StatusOK, Code: env.Code, Err: fmt.Errorf("upload %s: %w", opts.URL, err)}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	out.URL = NormalizeAvatarURL(a.gw.BaseURL(), out.URL)
	out.Avatar = NormalizeAvatarURL(a.gw.BaseURL(), out.Avatar)
	return &out, nil
}

// fetch decodes the data member into out. A body that does not fit out fails the
// call as KindDecode, with the reactor and observer told.
func (a *API) fetch(ctx context.Context, method, path string, data, out any) error {
	_, err := a.gw.request(ctx, Options{Method: method, URL: path, Data: data}, func(env *Envelope) *Error {
		env.Data = NormalizeAvatars(a.gw.BaseURL(), env.Data)
		if err := env.Decode(out); err != nil {
			return &Error{Kind: KindDecode, Status: http.StatusOK, Code: env.Code, Err: fmt.Errorf("%s %s: %w", method, path, err)}
		}
		return nil
	})
	return err
}

func itemPath(collection, id string) string {
	return collection + "/" + url.PathEscape(id)
}
