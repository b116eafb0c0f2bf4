package service_test

import (
	"context"
	"errors"
	"net/url"
	"sync"
	"sync/atomic"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
	"lifecalendar.app/api/internal/store"
	"lifecalendar.app/api/internal/withings"
)

var _ = Describe("OAuthService", func() {
	var (
		ctx         context.Context
		now         time.Time
		credentials *mockCredentialStore
		tokens      *mockTokenStore
		states      *mockStateStore
		client      *mockWithingsClient
		svc         service.OAuthService
		stored      *model.WithingsToken
	)

	BeforeEach(func() {
		ctx = context.Background()
		now = time.Date(2024, 3, 5, 12, 0, 0, 0, time.UTC)
		stored = &model.WithingsToken{
			ID:           42,
			UserID:       "user-1",
			AccessToken:  "access-old",
			RefreshToken: "refresh-old",
			ExpiresAt:    now.Add(2 * time.Hour),
		}

		credentials = &mockCredentialStore{
			getFn: func(_ context.Context) (*model.WithingsCredentials, error) {
				return validCredentials(), nil
			},
		}
		tokens = &mockTokenStore{
			getByUserFn: func(_ context.Context, userID string) (*model.WithingsToken, error) {
				if userID != stored.UserID {
					return nil, store.ErrNotFound
				}
				token := *stored
				return &token, nil
			},
		}
		states = &mockStateStore{}
		client = &mockWithingsClient{}
	})

	JustBeforeEach(func() {
		svc = service.NewOAuthService(credentials, tokens, states, client, service.OAuthConfig{
			AuthorizeURL:  "https://account.withings.com/oauth2_user/authorize2",
			DefaultScopes: []string{"user.info", "user.metrics"},
			RefreshSkew:   60 * time.Second,
			Now:           func() time.Time { return now },
		})
	})

	Describe("GetValidToken", func() {
		It("fails with ErrConfiguration when no credentials are stored", func() {
			credentials.getFn = nil

			_, err := svc.GetValidToken(ctx, "user-1")

			Expect(err).To(MatchError(service.ErrConfiguration))
		})

		It("fails with ErrConfiguration when credentials are incomplete", func() {
			credentials.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				return &model.WithingsCredentials{ClientID: "only-id"}, nil
			}

			_, err := svc.GetValidToken(ctx, "user-1")

			Expect(err).To(MatchError(service.ErrConfiguration))
		})

		It("fails with ErrNotConnected when the user has no token", func() {
			_, err := svc.GetValidToken(ctx, "someone-else")

			Expect(err).To(MatchError(service.ErrNotConnected))
		})

		It("returns the stored token unchanged while it is comfortably valid", func() {
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				Fail("refresh must not be called")
				return nil, nil
			}

			token, err := svc.GetValidToken(ctx, "user-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(token.AccessToken).To(Equal("access-old"))
			Expect(token.ExpiresAt).To(Equal(stored.ExpiresAt))
			Expect(tokens.upsertCount()).To(BeZero())
		})

		It("does not refresh a token expiring 61 seconds from now", func() {
			stored.ExpiresAt = now.Add(61 * time.Second)
			var calls int32
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				atomic.AddInt32(&calls, 1)
				return nil, nil
			}

			_, err := svc.GetValidToken(ctx, "user-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(atomic.LoadInt32(&calls)).To(BeZero())
		})

		DescribeTable("refreshes tokens inside the skew window",
			func(expiresAt func(time.Time) time.Time) {
				stored.ExpiresAt = expiresAt(now)
				var captured withings.RefreshRequest
				client.refreshFn = func(_ context.Context, req withings.RefreshRequest) (*model.TokenGrant, error) {
					captured = req
					return &model.TokenGrant{AccessToken: "access-new", RefreshToken: "refresh-new", ExpiresIn: 10800}, nil
				}

				token, err := svc.GetValidToken(ctx, "user-1")

				Expect(err).NotTo(HaveOccurred())
				Expect(captured.RefreshToken).To(Equal("refresh-old"))
				Expect(captured.ClientID).To(Equal("client-id"))
				Expect(captured.ClientSecret).To(Equal("client-secret"))
				Expect(token.AccessToken).To(Equal("access-new"))
				Expect(token.RefreshToken).To(Equal("refresh-new"))
				Expect(token.ExpiresAt).To(Equal(now.Add(10800 * time.Second)))
				Expect(tokens.upserts).To(HaveLen(1))
				Expect(tokens.upserts[0].UserID).To(Equal("user-1"))
				Expect(tokens.upserts[0].AccessToken).To(Equal("access-new"))
			},
			Entry("exactly at the 60 second boundary", func(t time.Time) time.Time { return t.Add(60 * time.Second) }),
			Entry("30 seconds from now", func(t time.Time) time.Time { return t.Add(30 * time.Second) }),
			Entry("already expired", func(t time.Time) time.Time { return t.Add(-time.Hour) }),
			Entry("unparsable expiry", func(time.Time) time.Time { return time.Time{} }),
		)

		It("wraps refresh failures in ErrRefresh and writes nothing", func() {
			stored.ExpiresAt = now
			cause := &withings.RemoteAPIError{Action: withings.ActionRequestToken, Status: 503, Message: "invalid refresh token"}
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				return nil, cause
			}

			token, err := svc.GetValidToken(ctx, "user-1")

			Expect(token).To(BeNil())
			Expect(err).To(MatchError(service.ErrRefresh))
			var remote *withings.RemoteAPIError
			Expect(errors.As(err, &remote)).To(BeTrue())
			Expect(remote.Status).To(Equal(503))
			Expect(tokens.upsertCount()).To(BeZero())
		})

		It("reports ErrRefresh when the refreshed token cannot be stored", func() {
			stored.ExpiresAt = now
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				return &model.TokenGrant{AccessToken: "a", RefreshToken: "r", ExpiresIn: 60}, nil
			}
			tokens.upsertFn = func(_ context.Context, _ *model.WithingsToken) error {
				return errors.New("db down")
			}

			_, err := svc.GetValidToken(ctx, "user-1")

			Expect(err).To(MatchError(service.ErrRefresh))
		})

		It("collapses concurrent refreshes for one user into a single remote call", func() {
			stored.ExpiresAt = now
			const callers = 5

			var reads int32
			allRead := make(chan struct{})
			tokens.getByUserFn = func(_ context.Context, _ string) (*model.WithingsToken, error) {
				if atomic.AddInt32(&reads, 1) == callers {
					close(allRead)
				}
				token := *stored
				return &token, nil
			}

			var refreshCalls int32
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				atomic.AddInt32(&refreshCalls, 1)
				<-allRead
				time.Sleep(100 * time.Millisecond)
				return &model.TokenGrant{AccessToken: "access-new", RefreshToken: "refresh-new", ExpiresIn: 3600}, nil
			}

			var wg sync.WaitGroup
			results := make([]*model.WithingsToken, callers)
			errs := make([]error, callers)
			for i := range callers {
				wg.Add(1)
				go func(i int) {
					defer GinkgoRecover()
					defer wg.Done()
					results[i], errs[i] = svc.GetValidToken(ctx, "user-1")
				}(i)
			}
			wg.Wait()

			Expect(atomic.LoadInt32(&refreshCalls)).To(Equal(int32(1)))
			Expect(tokens.upsertCount()).To(Equal(1))
			for i := range callers {
				Expect(errs[i]).NotTo(HaveOccurred())
				Expect(results[i].AccessToken).To(Equal("access-new"))
			}
		})
	})

	Describe("RefreshIfExpiring", func() {
		It("uses the caller's window instead of the default skew", func() {
			stored.ExpiresAt = now.Add(30 * time.Minute)
			client.refreshFn = func(_ context.Context, _ withings.RefreshRequest) (*model.TokenGrant, error) {
				return &model.TokenGrant{AccessToken: "a", RefreshToken: "r", ExpiresIn: 3600}, nil
			}

			_, refreshed, err := svc.RefreshIfExpiring(ctx, "user-1", time.Hour)

			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed).To(BeTrue())
		})

		It("leaves tokens outside the window alone", func() {
			_, refreshed, err := svc.RefreshIfExpiring(ctx, "user-1", time.Hour)

			Expect(err).NotTo(HaveOccurred())
			Expect(refreshed).To(BeFalse())
		})
	})

	Describe("ExchangeCode", func() {
		It("stores the exchanged token with the computed expiry", func() {
			var captured withings.ExchangeRequest
			client.exchangeFn = func(_ context.Context, req withings.ExchangeRequest) (*model.TokenGrant, error) {
				captured = req
				return &model.TokenGrant{AccessToken: "a1", RefreshToken: "r1", ExpiresIn: 10800, WithingsUser: "987"}, nil
			}

			token, grant, err := svc.ExchangeCode(ctx, "user-2", "code-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(captured.Code).To(Equal("code-1"))
			Expect(captured.RedirectURI).To(Equal("https://lifecal.example/withings/callback"))
			Expect(grant.WithingsUser).To(Equal("987"))
			Expect(token.UserID).To(Equal("user-2"))
			Expect(token.ExpiresAt).To(Equal(now.Add(3 * time.Hour)))
			Expect(tokens.upserts).To(HaveLen(1))
			Expect(tokens.upserts[0].RefreshToken).To(Equal("r1"))
		})

		It("wraps remote failures in ErrOAuthExchange and writes nothing", func() {
			client.exchangeFn = func(_ context.Context, _ withings.ExchangeRequest) (*model.TokenGrant, error) {
				return nil, &withings.RemoteAPIError{Status: 503, Message: "invalid code"}
			}

			_, _, err := svc.ExchangeCode(ctx, "user-2", "bad")

			Expect(err).To(MatchError(service.ErrOAuthExchange))
			Expect(tokens.upsertCount()).To(BeZero())
		})

		It("fails with ErrConfiguration before calling Withings", func() {
			credentials.getFn = nil
			client.exchangeFn = func(_ context.Context, _ withings.ExchangeRequest) (*model.TokenGrant, error) {
				Fail("exchange must not be called")
				return nil, nil
			}

			_, _, err := svc.ExchangeCode(ctx, "user-2", "code")

			Expect(err).To(MatchError(service.ErrConfiguration))
		})
	})

	Describe("AuthorizationURL", func() {
		It("builds the authorize URL with a fresh stored state", func() {
			req, err := svc.AuthorizationURL(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(req.State).To(MatchRegexp(`^[0-9a-f]{32}$`))
			Expect(states.saved).To(ConsistOf(req.State))

			parsed, err := url.Parse(req.URL)
			Expect(err).NotTo(HaveOccurred())
			Expect(parsed.Host).To(Equal("account.withings.com"))
			q := parsed.Query()
			Expect(q.Get("response_type")).To(Equal("code"))
			Expect(q.Get("client_id")).To(Equal("client-id"))
			Expect(q.Get("redirect_uri")).To(Equal("https://lifecal.example/withings/callback"))
			Expect(q.Get("scope")).To(Equal("user.info,user.metrics"))
			Expect(q.Get("state")).To(Equal(req.State))
		})

		It("prefers the stored scopes", func() {
			credentials.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				creds := validCredentials()
				creds.Scopes = []string{"user.activity"}
				return creds, nil
			}

			req, err := svc.AuthorizationURL(ctx)

			Expect(err).NotTo(HaveOccurred())
			parsed, _ := url.Parse(req.URL)
			Expect(parsed.Query().Get("scope")).To(Equal("user.activity"))
		})

		It("issues a different state each time", func() {
			first, err := svc.AuthorizationURL(ctx)
			Expect(err).NotTo(HaveOccurred())
			second, err := svc.AuthorizationURL(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(first.State).NotTo(Equal(second.State))
		})
	})

	Describe("VerifyState", func() {
		It("accepts an issued state exactly once", func() {
			req, err := svc.AuthorizationURL(ctx)
			Expect(err).NotTo(HaveOccurred())

			Expect(svc.VerifyState(ctx, req.State)).To(Succeed())
			Expect(svc.VerifyState(ctx, req.State)).To(MatchError(service.ErrInvalidState))
		})

		It("rejects unknown states", func() {
			Expect(svc.VerifyState(ctx, "deadbeef")).To(MatchError(service.ErrInvalidState))
		})
	})

	Describe("Status", func() {
		It("reports a connected user with expiry", func() {
			status, err := svc.Status(ctx, "user-1")

			Expect(err).NotTo(HaveOccurred())
			Expect(status.Connected).To(BeTrue())
			Expect(*status.ExpiresAt).To(Equal(stored.ExpiresAt))
		})

		It("reports an unknown user as not connected", func() {
			status, err := svc.Status(ctx, "nobody")

			Expect(err).NotTo(HaveOccurred())
			Expect(status.Connected).To(BeFalse())
			Expect(status.ExpiresAt).To(BeNil())
		})
	})
})
