package withings_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifecalendar.app/api/internal/withings"
)

var _ = Describe("Client", func() {
	var (
		ctx      context.Context
		server   *httptest.Server
		client   *withings.Client
		day      time.Time
		lastReq  *http.Request
		lastForm url.Values
		respond  func(w http.ResponseWriter, r *http.Request)
	)

	BeforeEach(func() {
		ctx = context.Background()
		day = time.Date(2024, 3, 5, 0, 0, 0, 0, time.UTC)
		lastReq = nil
		lastForm = nil
		respond = func(w http.ResponseWriter, _ *http.Request) {
			_, _ = io.WriteString(w, `{"status":0,"body":{}}`)
		}

		server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			lastReq = r
			if r.Method == http.MethodPost {
				Expect(r.ParseForm()).To(Succeed())
				lastForm = r.PostForm
			}
			respond(w, r)
		}))
		client = withings.New(withings.Config{BaseURL: server.URL, Timeout: 2 * time.Second})
	})

	AfterEach(func() {
		server.Close()
	})

	Describe("GetActivity", func() {
		It("requests the day and returns the first activity", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"activities":[
					{"date":"2024-03-05","steps":8432,"distance":6120.5,"calories":2180.4,"moderate":20,"intense":25},
					{"date":"2024-03-05","steps":1}
				]}}`)
			}

			activity, err := client.GetActivity(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(activity).NotTo(BeNil())
			Expect(activity.Steps).To(Equal(8432.0))
			Expect(activity.Calories).To(Equal(2180.4))

			Expect(lastReq.Method).To(Equal(http.MethodGet))
			Expect(lastReq.URL.Path).To(Equal("/v2/measure"))
			q := lastReq.URL.Query()
			Expect(q.Get("action")).To(Equal("getactivity"))
			Expect(q.Get("access_token")).To(Equal("access-1"))
			Expect(q.Get("startdateymd")).To(Equal("2024-03-05"))
			Expect(q.Get("enddateymd")).To(Equal("2024-03-05"))
			Expect(lastReq.Header.Get("User-Agent")).To(Equal("LifeCalendar/1.0"))
		})

		It("returns nil when there are no activities", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"activities":[]}}`)
			}

			activity, err := client.GetActivity(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(activity).To(BeNil())
		})
	})

	Describe("GetMeasurements", func() {
		It("scales values and lets the last group win", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"measuregrps":[
					{"date":1709600000,"measures":[{"value":72345,"unit":-3,"type":1},{"value":58,"unit":0,"type":11}]},
					{"date":1709610000,"measures":[{"value":61,"unit":0,"type":11}]}
				]}}`)
			}

			values, err := client.GetMeasurements(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(values).To(HaveLen(2))
			Expect(values[withings.MeasTypeWeight]).To(Equal(72.345))
			Expect(values[withings.MeasTypeHeartRate]).To(Equal(61.0))

			q := lastReq.URL.Query()
			Expect(lastReq.URL.Path).To(Equal("/measure"))
			Expect(q.Get("action")).To(Equal("getmeas"))
			Expect(q.Get("meastype")).To(Equal("1,8,76,11,10,9,123"))
			Expect(q.Get("startdate")).To(Equal("1709510400"))
			Expect(q.Get("enddate")).To(Equal("1709683200"))
		})

		It("returns an empty map when there are no groups", func() {
			values, err := client.GetMeasurements(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(values).To(BeEmpty())
		})
	})

	Describe("GetSleep", func() {
		It("uses a 12 hour window and returns the first series entry", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"series":[
					{"startdate":1709590000,"enddate":1709620000,"date":"2024-03-05","data":{"deepsleepduration":3600,"hr_average":54}}
				]}}`)
			}

			sleep, err := client.GetSleep(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(sleep).NotTo(BeNil())
			Expect(sleep.Data).To(HaveKey("deepsleepduration"))
			Expect(lastReq.URL.Path).To(Equal("/v2/sleep"))
			Expect(lastReq.URL.Query().Get("startdate")).To(Equal("1709553600"))
			Expect(lastReq.URL.Query().Get("enddate")).To(Equal("1709640000"))
		})

		It("returns nil when the series is empty", func() {
			sleep, err := client.GetSleep(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(sleep).To(BeNil())
		})
	})

	Describe("GetWorkouts", func() {
		It("decodes numeric ids and optional data", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"series":[
					{"id":123456,"category":2,"startdate":1000,"enddate":3700,"data":{"calories":312.6,"distance":5234}},
					{"id":"abc","category":1,"startdate":1000,"enddate":1100}
				]}}`)
			}

			series, err := client.GetWorkouts(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(series).To(HaveLen(2))
			Expect(series[0].ID.String()).To(Equal("123456"))
			Expect(*series[0].Data.Calories).To(Equal(312.6))
			Expect(series[0].Data.Steps).To(BeNil())
			Expect(series[1].ID.String()).To(Equal("abc"))
			Expect(series[1].Data).To(BeNil())
			Expect(lastReq.URL.Query().Get("action")).To(Equal("getworkouts"))
		})

		It("returns an empty slice when Withings omits the series", func() {
			series, err := client.GetWorkouts(ctx, "access-1", day)

			Expect(err).NotTo(HaveOccurred())
			Expect(series).NotTo(BeNil())
			Expect(series).To(BeEmpty())
		})
	})

	Describe("envelope validation", func() {
		It("rejects a non-zero status", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":401,"error":"invalid_token"}`)
			}

			_, err := client.GetActivity(ctx, "bad", day)

			var remote *withings.RemoteAPIError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Status).To(Equal(401))
			Expect(remote.Message).To(Equal("invalid_token"))
			Expect(withings.IsRemote(err)).To(BeTrue())
		})

		It("rejects a non-2xx HTTP status", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				w.WriteHeader(http.StatusServiceUnavailable)
			}

			_, err := client.GetWorkouts(ctx, "access-1", day)

			var remote *withings.RemoteAPIError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.HTTPStatus).To(Equal(http.StatusServiceUnavailable))
		})

		It("fails closed when the status is missing", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"body":{"activities":[]}}`)
			}

			_, err := client.GetActivity(ctx, "access-1", day)

			var remote *withings.RemoteAPIError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Status).To(Equal(-1))
		})

		It("fails closed on malformed JSON", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `not json`)
			}

			_, err := client.GetSleep(ctx, "access-1", day)

			Expect(withings.IsRemote(err)).To(BeTrue())
		})

		It("reports transport failures without a RemoteAPIError", func() {
			server.Close()

			_, err := client.GetActivity(ctx, "access-1", day)

			Expect(err).To(HaveOccurred())
			Expect(withings.IsRemote(err)).To(BeFalse())
			Expect(errors.Is(err, withings.ErrUnavailable)).To(BeTrue())
		})
	})

	Describe("token operations", func() {
		It("exchanges a code with the redirect uri", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"userid":987,"access_token":"a1","refresh_token":"r1","expires_in":10800,"scope":"user.metrics"}}`)
			}

			grant, err := client.ExchangeCodeForToken(ctx, withings.ExchangeRequest{
				ClientID:     "cid",
				ClientSecret: "secret",
				RedirectURI:  "https://app.example/cb",
				Code:         "code-1",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(grant.AccessToken).To(Equal("a1"))
			Expect(grant.RefreshToken).To(Equal("r1"))
			Expect(grant.ExpiresIn).To(Equal(int64(10800)))
			Expect(grant.WithingsUser).To(Equal("987"))

			Expect(lastReq.Method).To(Equal(http.MethodPost))
			Expect(lastReq.URL.Path).To(Equal("/v2/oauth2"))
			Expect(lastForm.Get("action")).To(Equal("requesttoken"))
			Expect(lastForm.Get("grant_type")).To(Equal("authorization_code"))
			Expect(lastForm.Get("code")).To(Equal("code-1"))
			Expect(lastForm.Get("redirect_uri")).To(Equal("https://app.example/cb"))
			Expect(lastForm.Get("client_secret")).To(Equal("secret"))
		})

		It("refreshes with the stored refresh token", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"access_token":"a2","refresh_token":"r2","expires_in":3600}}`)
			}

			grant, err := client.RefreshToken(ctx, withings.RefreshRequest{
				ClientID:     "cid",
				ClientSecret: "secret",
				RefreshToken: "r1",
			})

			Expect(err).NotTo(HaveOccurred())
			Expect(grant.AccessToken).To(Equal("a2"))
			Expect(lastForm.Get("grant_type")).To(Equal("refresh_token"))
			Expect(lastForm.Get("refresh_token")).To(Equal("r1"))
			Expect(lastForm.Has("redirect_uri")).To(BeFalse())
		})

		It("fails closed on an incomplete token body", func() {
			respond = func(w http.ResponseWriter, _ *http.Request) {
				_, _ = io.WriteString(w, `{"status":0,"body":{"access_token":"a2"}}`)
			}

			_, err := client.RefreshToken(ctx, withings.RefreshRequest{RefreshToken: "r1"})

			Expect(withings.IsRemote(err)).To(BeTrue())
		})
	})
})

var _ = Describe("ScaleMeasure", func() {
	DescribeTable("applies the unit exponent",
		func(value float64, unit int, expected float64) {
			Expect(withings.ScaleMeasure(value, unit)).To(Equal(expected))
		},
		Entry("negative unit", 72345.0, -3, 72.345),
		Entry("zero unit", 58.0, 0, 58.0),
		Entry("positive unit", 5.0, 2, 500.0),
	)
})
