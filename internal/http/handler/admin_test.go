package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"

	"github.com/gin-gonic/gin"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifecalendar.app/api/internal/http/handler"
	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
)

var _ = Describe("AdminHandler", func() {
	var (
		router      *gin.Engine
		creds       *mockCredentialService
		settings    *mockSettingsService
		adminAPIKey string
	)

	setup := func(key string) {
		gin.SetMode(gin.TestMode)
		router = gin.New()
		h := handler.NewAdminHandler(creds, settings, key)

		admin := router.Group("/admin")
		admin.Use(h.RequireAdminAPIKey())
		{
			admin.GET("/withings/credentials", h.GetCredentials)
			admin.POST("/withings/credentials", h.SaveCredentials)
			admin.GET("/withings/test-oauth", h.TestOAuth)
			admin.GET("/settings", h.GetSettings)
			admin.POST("/settings", h.SaveSettings)
		}
	}

	BeforeEach(func() {
		creds = &mockCredentialService{}
		settings = &mockSettingsService{}
		adminAPIKey = "test-admin-key"
		setup(adminAPIKey)
	})

	do := func(method, path string, body io.Reader) *httptest.ResponseRecorder {
		req := httptest.NewRequest(method, path, body)
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("X-Admin-API-Key", adminAPIKey)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)
		return w
	}

	Describe("RequireAdminAPIKey", func() {
		It("rejects a missing key", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusUnauthorized))
		})

		It("accepts a bearer token", func() {
			req := httptest.NewRequest(http.MethodGet, "/admin/settings", nil)
			req.Header.Set("Authorization", "Bearer "+adminAPIKey)
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			Expect(w.Code).To(Equal(http.StatusOK))
		})

		It("returns 503 when no key is configured", func() {
			setup("")

			w := do(http.MethodGet, "/admin/settings", nil)

			Expect(w.Code).To(Equal(http.StatusServiceUnavailable))
		})
	})

	Describe("GetCredentials", func() {
		It("returns null when nothing is stored", func() {
			w := do(http.MethodGet, "/admin/withings/credentials", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(strings.TrimSpace(w.Body.String())).To(Equal("null"))
		})

		It("never returns the raw secret", func() {
			creds.getFn = func(_ context.Context) (*service.MaskedCredentials, error) {
				return &service.MaskedCredentials{
					ClientID:           "client-id",
					ClientSecretMasked: "abc******456",
					RedirectURI:        "https://lifecal.example/cb",
				}, nil
			}

			w := do(http.MethodGet, "/admin/withings/credentials", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp map[string]any
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp["client_secret"]).To(Equal("abc******456"))
			Expect(resp["client_secret_masked"]).To(Equal("abc******456"))
			Expect(resp["scopes"]).To(BeEmpty())
		})
	})

	Describe("SaveCredentials", func() {
		It("stores valid credentials", func() {
			var saved model.WithingsCredentials
			creds.saveFn = func(_ context.Context, c model.WithingsCredentials) error {
				saved = c
				return nil
			}

			body, _ := json.Marshal(map[string]any{
				"client_id":     "cid",
				"client_secret": "secret",
				"redirect_uri":  "https://lifecal.example/cb",
				"scopes":        []string{"user.metrics"},
			})
			w := do(http.MethodPost, "/admin/withings/credentials", bytes.NewBuffer(body))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"success":true}`))
			Expect(saved.ClientSecret).To(Equal("secret"))
			Expect(saved.Scopes).To(ConsistOf("user.metrics"))
		})

		It("returns 400 for missing fields", func() {
			creds.saveFn = func(_ context.Context, _ model.WithingsCredentials) error {
				return fmt.Errorf("%w: client_secret", service.ErrInvalidCredentials)
			}

			w := do(http.MethodPost, "/admin/withings/credentials", strings.NewReader(`{"client_id":"cid"}`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})

		It("returns 400 for malformed JSON", func() {
			w := do(http.MethodPost, "/admin/withings/credentials", strings.NewReader(`{`))

			Expect(w.Code).To(Equal(http.StatusBadRequest))
		})
	})

	Describe("TestOAuth", func() {
		It("reports the check result", func() {
			creds.testFn = func(_ context.Context) (*service.CredentialCheck, error) {
				return &service.CredentialCheck{OK: false, Message: "Missing redirect URI"}, nil
			}

			w := do(http.MethodGet, "/admin/withings/test-oauth", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(w.Body.String()).To(MatchJSON(`{"success":false,"message":"Missing redirect URI"}`))
		})
	})

	Describe("Settings", func() {
		It("returns the current settings", func() {
			w := do(http.MethodGet, "/admin/settings", nil)

			Expect(w.Code).To(Equal(http.StatusOK))
			var resp model.AppSettings
			Expect(json.Unmarshal(w.Body.Bytes(), &resp)).To(Succeed())
			Expect(resp).To(Equal(model.DefaultAppSettings()))
		})

		It("saves posted settings", func() {
			var saved model.AppSettings
			settings.saveFn = func(_ context.Context, s model.AppSettings) error {
				saved = s
				return nil
			}

			w := do(http.MethodPost, "/admin/settings", strings.NewReader(`{"goals":{"steps":12000}}`))

			Expect(w.Code).To(Equal(http.StatusOK))
			Expect(saved.Goals.Steps).To(Equal(12000))
		})

		DescribeTable("rejects bad payloads",
			func(body string) {
				w := do(http.MethodPost, "/admin/settings", strings.NewReader(body))
				Expect(w.Code).To(Equal(http.StatusBadRequest))
			},
			Entry("empty", ""),
			Entry("null", "null"),
			Entry("malformed", "{"),
		)
	})
})
