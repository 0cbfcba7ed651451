package generation

import (
	"bytes"
	"encoding/json"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"net/textproto"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/jobhunter/server/internal/utils/middleware"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func newTestRouter(f *fixture) *gin.Engine {
	router := gin.New()
	api := router.Group("/api/v1", func(c *gin.Context) {
		c.Set(middleware.UserIDKey, "u1")
		c.Next()
	})
	NewHandler(f.svc, 1<<10, nil).RegisterProtectedRoutes(api)
	return router
}

func postJSON(router *gin.Engine, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodPost, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func errorCode(t *testing.T, w *httptest.ResponseRecorder) string {
	t.Helper()
	var body struct {
		Error struct {
			Code string `json:"code"`
		} `json:"error"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	return body.Error.Code
}

func TestHandler_GenerateCV(t *testing.T) {
	f := newFixture(t, Config{})
	f.subs.On("GetSubscription", mock.Anything, "u1").Return(nil, nil)
	f.provider.On("Complete", mock.Anything, mock.Anything).Return(completion(sampleCV), nil)
	router := newTestRouter(f)

	w := postJSON(router, "/api/v1/cv/generate", `{"job_description": "Go dev", "resume": "Ada"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var body struct {
		CVData map[string]any `json:"cv_data"`
		Quota  Quota          `json:"quota"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, `Ada "The Engineer" Example`, body.CVData["fullName"])
	assert.Equal(t, Quota{Remaining: 4, Total: 5}, body.Quota)
}

func TestHandler_BadRequests(t *testing.T) {
	f := newFixture(t, Config{})
	router := newTestRouter(f)

	tests := []struct {
		name string
		path string
		body string
	}{
		{"missing resume", "/api/v1/cv/generate", `{"job_description": "Go dev"}`},
		{"malformed json", "/api/v1/cv/generate", `{"job_description":`},
		{"cover letter without job", "/api/v1/cv/generate_cover_letter", `{"resume": "Ada"}`},
		{"structure without text", "/api/v1/cv/structure_from_text", `{}`},
		{"profile without answers", "/api/v1/profiling/generate_profile", `{"cv_text": "cv"}`},
		{"profile with partial answers", "/api/v1/profiling/generate_profile",
			`{"cv_text": "cv", "profiling_questions": {"work_approach": "a"}}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := postJSON(router, tt.path, tt.body)
			assert.Equal(t, http.StatusBadRequest, w.Code)
			assert.Equal(t, "BAD_REQUEST", errorCode(t, w))
		})
	}
	f.provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
}

func TestHandler_QuotaExceeded(t *testing.T) {
	f := newFixture(t, Config{})
	f.subs.On("GetSubscription", mock.Anything, "u1").Return(nil, nil)
	f.provider.On("Complete", mock.Anything, mock.Anything).Return(completion("Dear Sir,\nRegards"), nil)
	router := newTestRouter(f)

	body := `{"job_description": "Go dev", "resume": "Ada"}`
	for i := 0; i < 5; i++ {
		require.Equal(t, http.StatusOK, postJSON(router, "/api/v1/cv/generate_cover_letter", body).Code)
	}

	w := postJSON(router, "/api/v1/cv/generate_cover_letter", body)
	assert.Equal(t, http.StatusTooManyRequests, w.Code)
	assert.Equal(t, "QUOTA_EXCEEDED", errorCode(t, w))
	f.provider.AssertNumberOfCalls(t, "Complete", 5)
}

func TestHandler_GenerateProfile(t *testing.T) {
	f := newFixture(t, Config{})
	f.subs.On("GetSubscription", mock.Anything, "u1").Return(nil, nil)
	f.provider.On("Complete", mock.Anything, mock.Anything).Return(completion(sampleProfile), nil)
	f.profiles.On("SaveProfile", mock.Anything, "u1", mock.Anything).Return(nil)
	router := newTestRouter(f)

	w := postJSON(router, "/api/v1/profiling/generate_profile", `{
		"cv_text": "cv",
		"non_professional_experience": "coach",
		"profiling_questions": {"work_approach": "a", "problem_solving": "b", "work_values": "c"}
	}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"confidence_score":0.6`)
	assert.Contains(t, w.Body.String(), `"quota":{"remaining":4,"total":5}`)
}

func uploadRequest(t *testing.T, filename, contentType string, content []byte) *http.Request {
	t.Helper()
	var buf bytes.Buffer
	mw := multipart.NewWriter(&buf)
	if filename != "" {
		header := make(textproto.MIMEHeader)
		header.Set("Content-Disposition", `form-data; name="file"; filename="`+filename+`"`)
		header.Set("Content-Type", contentType)
		part, err := mw.CreatePart(header)
		require.NoError(t, err)
		_, err = part.Write(content)
		require.NoError(t, err)
	}
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/cv/upload_and_parse_cv", &buf)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	return req
}

func TestHandler_UploadAndParseCV(t *testing.T) {
	tests := []struct {
		name        string
		filename    string
		contentType string
		content     []byte
		wantStatus  int
		wantCode    string
	}{
		{"text file", "cv.txt", "application/octet-stream", []byte("Ada Example\nEngineer"), http.StatusOK, ""},
		{"text media type", "cv", "text/plain; charset=utf-8", []byte("Ada Example"), http.StatusOK, ""},
		{"pdf", "cv.pdf", "application/pdf", []byte("%PDF-1.7"), http.StatusBadRequest, "BAD_REQUEST"},
		{"docx", "cv.docx", "application/vnd.openxmlformats-officedocument.wordprocessingml.document",
			[]byte("PK"), http.StatusBadRequest, "BAD_REQUEST"},
		{"empty text", "cv.txt", "text/plain", []byte("  \n"), http.StatusUnprocessableEntity, "CONTENT_EXTRACTION_FAILED"},
		{"invalid utf-8", "cv.txt", "text/plain", []byte{0xff, 0xfe, 0x41}, http.StatusUnprocessableEntity, "CONTENT_EXTRACTION_FAILED"},
		{"missing file", "", "", nil, http.StatusBadRequest, "BAD_REQUEST"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, Config{})
			f.subs.On("GetSubscription", mock.Anything, "u1").Return(nil, nil)
			f.provider.On("Complete", mock.Anything, mock.Anything).Return(completion(sampleCV), nil)
			router := newTestRouter(f)

			w := httptest.NewRecorder()
			router.ServeHTTP(w, uploadRequest(t, tt.filename, tt.contentType, tt.content))

			assert.Equal(t, tt.wantStatus, w.Code)
			if tt.wantCode != "" {
				assert.Equal(t, tt.wantCode, errorCode(t, w))
				f.provider.AssertNotCalled(t, "Complete", mock.Anything, mock.Anything)
			} else {
				assert.Contains(t, w.Body.String(), `"cv_data"`)
			}
		})
	}
}
