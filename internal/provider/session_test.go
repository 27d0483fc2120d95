package provider

import (
	"context"
	"net/http"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"translation-orchestrator/internal/config"
	"translation-orchestrator/internal/domain"
	"translation-orchestrator/internal/settings"
)

var _ = Describe("Factory", func() {
	var factory *Factory

	BeforeEach(func() {
		factory = NewFactory(&http.Client{}, NewMockProvider(), zerolog.Nop())
	})

	It("opens a mock session when the settings ask for it", func() {
		session, err := factory.Open(context.Background(), settings.Merge(map[string]any{
			config.SettingProviderType: config.ProviderTypeMock,
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())
	})

	It("opens a REST session when url and keys are configured", func() {
		session, err := factory.Open(context.Background(), settings.Merge(map[string]any{
			config.SettingProviderURL:          "https://provider.test",
			config.SettingProviderAPIKey:       "key",
			config.SettingProviderConnectorKey: "connector",
		}))
		Expect(err).NotTo(HaveOccurred())
		Expect(session).NotTo(BeNil())
	})

	DescribeTable("refuses incomplete or disabled configuration",
		func(values map[string]any, kind domain.FailureKind) {
			_, err := factory.Open(context.Background(), settings.Merge(values))
			Expect(domain.IsFailureKind(err, kind)).To(BeTrue(), "got %v", err)
		},
		Entry("disabled", map[string]any{config.SettingProviderType: config.ProviderTypeDisabled}, domain.FailureConfig),
		Entry("unknown type", map[string]any{config.SettingProviderType: "carrier-pigeon"}, domain.FailureConfig),
		Entry("missing url", map[string]any{}, domain.FailureConfig),
		Entry("missing api key", map[string]any{config.SettingProviderURL: "https://provider.test"}, domain.FailureAccess),
		Entry("missing connector key", map[string]any{
			config.SettingProviderURL:    "https://provider.test",
			config.SettingProviderAPIKey: "key",
		}, domain.FailureConnectorKey),
	)

	It("refuses the mock type when no mock provider is wired", func() {
		_, err := NewFactory(nil, nil, zerolog.Nop()).Open(context.Background(), settings.Merge(map[string]any{
			config.SettingProviderType: config.ProviderTypeMock,
		}))
		Expect(domain.IsFailureKind(err, domain.FailureConfig)).To(BeTrue())
	})
})
