package service_test

import (
	"context"
	"errors"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
)

var _ = Describe("CredentialService", func() {
	var (
		ctx    context.Context
		stored *mockCredentialStore
		svc    service.CredentialService
	)

	BeforeEach(func() {
		ctx = context.Background()
		stored = &mockCredentialStore{}
	})

	JustBeforeEach(func() {
		svc = service.NewCredentialService(stored)
	})

	Describe("Get", func() {
		It("returns nil when nothing is stored", func() {
			creds, err := svc.Get(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(creds).To(BeNil())
		})

		It("masks the client secret", func() {
			stored.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				return &model.WithingsCredentials{
					ClientID:     "client-id",
					ClientSecret: "abcdef123456",
					RedirectURI:  "https://lifecal.example/cb",
					Scopes:       []string{"user.metrics"},
				}, nil
			}

			creds, err := svc.Get(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(creds.ClientSecretMasked).To(Equal("abc******456"))
			Expect(creds.ClientID).To(Equal("client-id"))
			Expect(creds.Scopes).To(ConsistOf("user.metrics"))
		})

		It("surfaces store failures", func() {
			stored.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				return nil, errors.New("db down")
			}

			_, err := svc.Get(ctx)

			Expect(err).To(MatchError(ContainSubstring("db down")))
		})
	})

	Describe("Save", func() {
		DescribeTable("rejects incomplete credentials",
			func(creds model.WithingsCredentials, field string) {
				stored.upsertFn = func(_ context.Context, _ model.WithingsCredentials) error {
					Fail("must not store invalid credentials")
					return nil
				}

				err := svc.Save(ctx, creds)

				Expect(err).To(MatchError(service.ErrInvalidCredentials))
				Expect(err.Error()).To(ContainSubstring(field))
			},
			Entry("no client id", model.WithingsCredentials{ClientSecret: "s", RedirectURI: "r"}, "client_id"),
			Entry("blank secret", model.WithingsCredentials{ClientID: "c", ClientSecret: "   ", RedirectURI: "r"}, "client_secret"),
			Entry("no redirect", model.WithingsCredentials{ClientID: "c", ClientSecret: "s"}, "redirect_uri"),
		)

		It("stores trimmed credentials", func() {
			var saved model.WithingsCredentials
			stored.upsertFn = func(_ context.Context, creds model.WithingsCredentials) error {
				saved = creds
				return nil
			}

			err := svc.Save(ctx, model.WithingsCredentials{ClientID: " c ", ClientSecret: "s", RedirectURI: "r"})

			Expect(err).NotTo(HaveOccurred())
			Expect(saved.ClientID).To(Equal("c"))
		})
	})

	Describe("Test", func() {
		It("reports missing credentials", func() {
			check, err := svc.Test(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(check.OK).To(BeFalse())
			Expect(check.Message).To(Equal("No credentials stored"))
		})

		It("reports a missing redirect uri", func() {
			stored.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				return &model.WithingsCredentials{ClientID: "c", ClientSecret: "s"}, nil
			}

			check, err := svc.Test(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(check.OK).To(BeFalse())
			Expect(check.Message).To(Equal("Missing redirect URI"))
		})

		It("passes complete credentials", func() {
			stored.getFn = func(_ context.Context) (*model.WithingsCredentials, error) {
				return validCredentials(), nil
			}

			check, err := svc.Test(ctx)

			Expect(err).NotTo(HaveOccurred())
			Expect(check.OK).To(BeTrue())
		})
	})
})
