package service_test

import (
	"context"
	"encoding/json"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"

	"lifecalendar.app/api/internal/model"
	"lifecalendar.app/api/internal/service"
)

var _ = Describe("SettingsService", func() {
	var (
		ctx    context.Context
		stored *mockSettingStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		stored = &mockSettingStore{}
	})

	It("returns defaults when nothing is stored", func() {
		settings, err := service.NewSettingsService(stored).Get(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(*settings).To(Equal(model.DefaultAppSettings()))
	})

	It("overlays stored values on the defaults", func() {
		stored.getFn = func(_ context.Context, key string) (*model.Setting, error) {
			Expect(key).To(Equal(model.SettingKeyApp))
			return &model.Setting{Key: key, Value: `{"goals":{"steps":12000}}`}, nil
		}

		settings, err := service.NewSettingsService(stored).Get(ctx)

		Expect(err).NotTo(HaveOccurred())
		Expect(settings.Goals.Steps).To(Equal(12000))
		Expect(settings.ModulesEnabled.Withings).To(BeTrue())
	})

	It("fails on a corrupt stored value", func() {
		stored.getFn = func(_ context.Context, key string) (*model.Setting, error) {
			return &model.Setting{Key: key, Value: `{`}, nil
		}

		_, err := service.NewSettingsService(stored).Get(ctx)

		Expect(err).To(HaveOccurred())
	})

	It("stores settings as JSON under the app key", func() {
		var savedKey, savedValue string
		stored.upsertFn = func(_ context.Context, key, value string) (*model.Setting, error) {
			savedKey, savedValue = key, value
			return &model.Setting{Key: key, Value: value}, nil
		}

		settings := model.DefaultAppSettings()
		settings.Goals.CardioMinutes = 45
		Expect(service.NewSettingsService(stored).Save(ctx, settings)).To(Succeed())

		Expect(savedKey).To(Equal(model.SettingKeyApp))
		var decoded model.AppSettings
		Expect(json.Unmarshal([]byte(savedValue), &decoded)).To(Succeed())
		Expect(decoded.Goals.CardioMinutes).To(Equal(45))
	})
})
