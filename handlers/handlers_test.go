package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"foodcost/api/analytics"
	"foodcost/api/middleware"
	"foodcost/api/models"
	"foodcost/api/store"
	"foodcost/api/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func doJSON(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

// --- analytics ---

type fakeCollector struct {
	got       models.TrackRequest
	userAgent string
	err       error
}

func (f *fakeCollector) Collect(ctx context.Context, req models.TrackRequest, userAgent string) error {
	f.got, f.userAgent = req, userAgent
	return f.err
}

type fakeReporter struct {
	days int
	err  error
}

func (f *fakeReporter) Report(ctx context.Context, days int) (*models.Report, error) {
	f.days = days
	if f.err != nil {
		return nil, f.err
	}
	if days < 1 {
		return nil, analytics.ErrInvalidWindow
	}
	return &models.Report{TotalViews: 7, ConversionRate: "0"}, nil
}

func analyticsRouter(h *AnalyticsHandlers) *gin.Engine {
	r := gin.New()
	r.POST("/api/analytics/track", h.TrackEvent)
	r.GET("/api/analytics", h.GetReport)
	return r
}

func TestTrackEvent(t *testing.T) {
	c := &fakeCollector{}
	r := analyticsRouter(NewAnalyticsHandlers(c, &fakeReporter{}, 30))

	req := httptest.NewRequest(http.MethodPost, "/api/analytics/track",
		strings.NewReader(`{"type":"pageview","page":"/","sessionId":"s1"}`))
	req.Header.Set("User-Agent", "Mozilla/5.0 (iPad)")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, "/", c.got.Page)
	assert.Equal(t, "Mozilla/5.0 (iPad)", c.userAgent)
}

func TestTrackEvent_Errors(t *testing.T) {
	tests := []struct {
		name   string
		body   string
		err    error
		status int
	}{
		{"malformed json", `{"type":`, nil, http.StatusBadRequest},
		{"rejected payload", `{"type":"event"}`, fmt.Errorf("%w: eventName is required", analytics.ErrInvalidPayload), http.StatusBadRequest},
		{"storage failure", `{"type":"event","eventName":"x"}`, errors.New("clickhouse down"), http.StatusInternalServerError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := analyticsRouter(NewAnalyticsHandlers(&fakeCollector{err: tt.err}, &fakeReporter{}, 30))
			w := doJSON(r, http.MethodPost, "/api/analytics/track", tt.body)
			assert.Equal(t, tt.status, w.Code)
			assert.Contains(t, w.Body.String(), `"error"`)
		})
	}
}

func TestGetReport(t *testing.T) {
	rep := &fakeReporter{}
	r := analyticsRouter(NewAnalyticsHandlers(&fakeCollector{}, rep, 30))

	w := doJSON(r, http.MethodGet, "/api/analytics", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 30, rep.days)

	var body map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.EqualValues(t, 7, body["totalViews"])

	w = doJSON(r, http.MethodGet, "/api/analytics?days=7", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, 7, rep.days)
}

func TestGetReport_Errors(t *testing.T) {
	r := analyticsRouter(NewAnalyticsHandlers(&fakeCollector{}, &fakeReporter{}, 30))
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/analytics?days=abc", "").Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodGet, "/api/analytics?days=0", "").Code)

	r = analyticsRouter(NewAnalyticsHandlers(&fakeCollector{}, &fakeReporter{err: errors.New("timeout")}, 30))
	w := doJSON(r, http.MethodGet, "/api/analytics", "")
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.JSONEq(t, `{"error":"Failed to fetch analytics"}`, w.Body.String())
}

// --- auth ---

type fakeAdmins struct {
	users map[string]*models.AdminUser
	err   error
}

func (f *fakeAdmins) GetAdminByUsername(ctx context.Context, username string) (*models.AdminUser, error) {
	if f.err != nil {
		return nil, f.err
	}
	u, ok := f.users[username]
	if !ok {
		return nil, store.ErrNotFound
	}
	return u, nil
}

func authRouter(t *testing.T, admins *fakeAdmins) (*gin.Engine, *utils.TokenManager) {
	t.Helper()
	tm, err := utils.NewTokenManager("test-secret", 24*time.Hour)
	require.NoError(t, err)

	h := NewAuthHandlers(admins, tm, false)
	r := gin.New()
	r.POST("/api/auth/login", h.Login)
	r.POST("/api/auth/logout", h.Logout)
	r.GET("/api/auth/check", middleware.AuthRequired(tm), h.Check)
	return r, tm
}

func testAdmins(t *testing.T) *fakeAdmins {
	t.Helper()
	hash, err := bcrypt.GenerateFromPassword([]byte("s3cret"), bcrypt.MinCost)
	require.NoError(t, err)
	return &fakeAdmins{users: map[string]*models.AdminUser{
		"chef": {ID: "u-1", Username: "chef", PasswordHash: hash},
	}}
}

func TestLogin_SetsSessionCookie(t *testing.T) {
	r, _ := authRouter(t, testAdmins(t))

	w := doJSON(r, http.MethodPost, "/api/auth/login", `{"username":"chef","password":"s3cret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, middleware.SessionCookie, cookies[0].Name)
	assert.True(t, cookies[0].HttpOnly)
	assert.Equal(t, http.SameSiteLaxMode, cookies[0].SameSite)
	assert.Equal(t, 24*60*60, cookies[0].MaxAge)

	req := httptest.NewRequest(http.MethodGet, "/api/auth/check", nil)
	req.AddCookie(cookies[0])
	check := httptest.NewRecorder()
	r.ServeHTTP(check, req)
	assert.Equal(t, http.StatusOK, check.Code)
	assert.JSONEq(t, `{"authenticated":true,"username":"chef"}`, check.Body.String())
}

func TestLogin_Failures(t *testing.T) {
	r, _ := authRouter(t, testAdmins(t))

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/auth/login", `{"username":"chef"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/api/auth/login", `{"username":"chef","password":"wrong"}`).Code)
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodPost, "/api/auth/login", `{"username":"ghost","password":"s3cret"}`).Code)

	r, _ = authRouter(t, &fakeAdmins{err: errors.New("db down")})
	assert.Equal(t, http.StatusInternalServerError, doJSON(r, http.MethodPost, "/api/auth/login", `{"username":"chef","password":"s3cret"}`).Code)
}

func TestLogout_ClearsCookie(t *testing.T) {
	r, _ := authRouter(t, testAdmins(t))

	w := doJSON(r, http.MethodPost, "/api/auth/logout", "")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.Len(t, cookies, 1)
	assert.Equal(t, "", cookies[0].Value)
	assert.Negative(t, cookies[0].MaxAge)
}

func TestCheck_RequiresSession(t *testing.T) {
	r, _ := authRouter(t, testAdmins(t))
	assert.Equal(t, http.StatusUnauthorized, doJSON(r, http.MethodGet, "/api/auth/check", "").Code)
}

// --- leads ---

type fakeLeads struct {
	created   models.CreateLeadRequest
	filter    models.LeadFilter
	updated   models.UpdateLeadRequest
	deletedID string
	err       error
}

func (f *fakeLeads) CreateLead(ctx context.Context, req models.CreateLeadRequest) (*models.Lead, error) {
	f.created = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: "lead-1", Name: req.Name, Phone: req.Phone, Source: models.LeadSourceForm, Status: models.LeadStatusNew}, nil
}

func (f *fakeLeads) ListLeads(ctx context.Context, filter models.LeadFilter) ([]models.Lead, error) {
	f.filter = filter
	return []models.Lead{}, f.err
}

func (f *fakeLeads) UpdateLead(ctx context.Context, id string, req models.UpdateLeadRequest) (*models.Lead, error) {
	f.updated = req
	if f.err != nil {
		return nil, f.err
	}
	return &models.Lead{ID: id, Status: *req.Status}, nil
}

func (f *fakeLeads) DeleteLead(ctx context.Context, id string) error {
	f.deletedID = id
	return f.err
}

type fakeNotifier struct {
	leads []models.Lead
}

func (f *fakeNotifier) LeadCreated(lead models.Lead) {
	f.leads = append(f.leads, lead)
}

const leadID = "7d0e6c5a-3b1f-4a8e-9c2d-1f0a2b3c4d5e"

func leadRouter(leads *fakeLeads) *gin.Engine {
	return leadRouterWithNotifier(leads, nil)
}

func leadRouterWithNotifier(leads *fakeLeads, n LeadNotifier) *gin.Engine {
	h := NewLeadHandlers(leads, n)
	r := gin.New()
	r.POST("/api/leads", h.CreateLead)
	r.GET("/api/leads", h.ListLeads)
	r.PUT("/api/leads/:id", h.UpdateLead)
	r.DELETE("/api/leads/:id", h.DeleteLead)
	return r
}

func TestCreateLead(t *testing.T) {
	leads := &fakeLeads{}
	notifier := &fakeNotifier{}
	r := leadRouterWithNotifier(leads, notifier)

	w := doJSON(r, http.MethodPost, "/api/leads", `{"name":"Ivan","phone":"+7900","utmData":{"utm_source":"fb"}}`)
	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "Ivan", leads.created.Name)
	assert.JSONEq(t, `{"utm_source":"fb"}`, string(leads.created.UtmData))

	require.Len(t, notifier.leads, 1)
	assert.Equal(t, "lead-1", notifier.leads[0].ID)
}

func TestCreateLead_StoreErrorSkipsNotification(t *testing.T) {
	notifier := &fakeNotifier{}
	r := leadRouterWithNotifier(&fakeLeads{err: errors.New("db down")}, notifier)

	w := doJSON(r, http.MethodPost, "/api/leads", `{"name":"Ivan","phone":"+7900"}`)
	assert.Equal(t, http.StatusInternalServerError, w.Code)
	assert.Empty(t, notifier.leads)
}

func TestCreateLead_Validation(t *testing.T) {
	r := leadRouter(&fakeLeads{})

	for name, body := range map[string]string{
		"missing phone":  `{"name":"Ivan"}`,
		"bad source":     `{"name":"Ivan","phone":"1","source":"fax"}`,
		"utm not object": `{"name":"Ivan","phone":"1","utmData":[1,2]}`,
	} {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPost, "/api/leads", body).Code)
		})
	}
}

func TestListLeads_PassesFilters(t *testing.T) {
	leads := &fakeLeads{}
	r := leadRouter(leads)

	w := doJSON(r, http.MethodGet, "/api/leads?status=new&source=all&search=ivan", "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "[]", w.Body.String())
	assert.Equal(t, models.LeadFilter{Status: "new", Source: "all", Search: "ivan"}, leads.filter)
}

func TestUpdateLead(t *testing.T) {
	leads := &fakeLeads{}
	r := leadRouter(leads)

	w := doJSON(r, http.MethodPut, "/api/leads/"+leadID, `{"status":"completed","name":"ignored"}`)
	require.Equal(t, http.StatusOK, w.Code)
	require.NotNil(t, leads.updated.Status)
	assert.Equal(t, models.LeadStatusCompleted, *leads.updated.Status)
	assert.Nil(t, leads.updated.Notes)

	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPut, "/api/leads/"+leadID, `{}`).Code)
	assert.Equal(t, http.StatusBadRequest, doJSON(r, http.MethodPut, "/api/leads/"+leadID, `{"status":"lost"}`).Code)

	r = leadRouter(&fakeLeads{err: store.ErrNotFound})
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPut, "/api/leads/"+leadID, `{"status":"new"}`).Code)
}

func TestDeleteLead(t *testing.T) {
	leads := &fakeLeads{}
	w := doJSON(leadRouter(leads), http.MethodDelete, "/api/leads/"+leadID, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true}`, w.Body.String())
	assert.Equal(t, leadID, leads.deletedID)

	w = doJSON(leadRouter(&fakeLeads{err: store.ErrNotFound}), http.MethodDelete, "/api/leads/"+leadID, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestLeadEndpoints_NonUUIDIDIsNotFound(t *testing.T) {
	leads := &fakeLeads{err: errors.New("pq: invalid input syntax for type uuid")}
	r := leadRouter(leads)

	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodPut, "/api/leads/not-a-uuid", `{"status":"new"}`).Code)
	assert.Equal(t, http.StatusNotFound, doJSON(r, http.MethodDelete, "/api/leads/42", "").Code)
	// the store is never asked
	assert.Empty(t, leads.deletedID)
	assert.Nil(t, leads.updated.Status)
}

// --- upload ---

type fakeUploader struct {
	key         string
	contentType string
	data        []byte
	err         error
}

func (f *fakeUploader) Upload(ctx context.Context, key string, data []byte, contentType string) (string, error) {
	f.key, f.data, f.contentType = key, data, contentType
	if f.err != nil {
		return "", f.err
	}
	return "https://cdn.example.com/" + key, nil
}

func multipartBody(t *testing.T, contentType string, data []byte, folder string) (*bytes.Buffer, string) {
	t.Helper()
	buf := &bytes.Buffer{}
	mw := multipart.NewWriter(buf)

	hdr := textproto.MIMEHeader{}
	hdr.Set("Content-Disposition", `form-data; name="file"; filename="photo"`)
	hdr.Set("Content-Type", contentType)
	part, err := mw.CreatePart(hdr)
	require.NoError(t, err)
	_, err = part.Write(data)
	require.NoError(t, err)

	if folder != "" {
		require.NoError(t, mw.WriteField("folder", folder))
	}
	require.NoError(t, mw.Close())
	return buf, mw.FormDataContentType()
}

func uploadRequest(t *testing.T, up *fakeUploader, contentType string, data []byte, folder string) *httptest.ResponseRecorder {
	t.Helper()
	h := NewUploadHandlers(up)
	h.now = func() time.Time { return time.UnixMilli(1760443200000) }
	r := gin.New()
	r.POST("/api/upload", h.UploadImage)

	body, ct := multipartBody(t, contentType, data, folder)
	req := httptest.NewRequest(http.MethodPost, "/api/upload", body)
	req.Header.Set("Content-Type", ct)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestUploadImage(t *testing.T) {
	up := &fakeUploader{}
	w := uploadRequest(t, up, "image/webp", []byte("webp-bytes"), "cases")

	require.Equal(t, http.StatusOK, w.Code)
	assert.Regexp(t, `^cases/1760443200000-[0-9a-f]{6}\.webp$`, up.key)
	assert.Equal(t, "image/webp", up.contentType)
	assert.Equal(t, []byte("webp-bytes"), up.data)
	assert.Contains(t, w.Body.String(), `"url":"https://cdn.example.com/cases/`)
}

func TestUploadImage_UnknownFolderFallsBack(t *testing.T) {
	up := &fakeUploader{}
	w := uploadRequest(t, up, "image/png", []byte("png"), "../etc")

	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.HasPrefix(up.key, "general/"))
}

func TestUploadImage_Rejects(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, uploadRequest(t, &fakeUploader{}, "image/gif", []byte("gif"), "").Code)
	assert.Equal(t, http.StatusBadRequest,
		uploadRequest(t, &fakeUploader{}, "image/jpeg", bytes.Repeat([]byte("x"), MaxUploadSize+1), "").Code)
	assert.Equal(t, http.StatusInternalServerError,
		uploadRequest(t, &fakeUploader{err: errors.New("denied")}, "image/jpeg", []byte("jpg"), "").Code)
}

// --- health ---

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestHealth(t *testing.T) {
	ok := pingFunc(func(context.Context) error { return nil })
	down := pingFunc(func(context.Context) error { return errors.New("refused") })

	r := gin.New()
	r.GET("/health", NewHealthHandlers(HealthCheck{"postgres", ok}, HealthCheck{"clickhouse", ok}).Health)
	w := doJSON(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"status":"ok"}`, w.Body.String())

	r = gin.New()
	r.GET("/health", NewHealthHandlers(HealthCheck{"postgres", ok}, HealthCheck{"clickhouse", down}).Health)
	w = doJSON(r, http.MethodGet, "/health", "")
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "clickhouse")
}
