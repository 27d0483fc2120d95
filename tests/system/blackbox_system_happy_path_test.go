//go:build system

package system_test

import (
	"context"
	"database/sql"
	"os"
	"strings"
	"time"

	_ "github.com/lib/pq"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/client"

	"translation-orchestrator/internal/action"
	"translation-orchestrator/internal/domain"
	appTemporal "translation-orchestrator/internal/temporal"
)

var _ = Describe("System blackbox happy path", Ordered, func() {
	var cfg systemTestConfig

	BeforeAll(func() {
		if os.Getenv("RUN_BLACKBOX_SYSTEM_TEST") != "1" {
			Skip("set RUN_BLACKBOX_SYSTEM_TEST=1 to run real blackbox system test")
		}

		cfg = loadSystemTestConfig()

		By("failing fast if infrastructure is unreachable")
		Expect(waitForPostgres(cfg.PostgresDSN, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForTemporal(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(cfg.MinioReadyURL, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIHealthPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForHTTPStatus(strings.TrimRight(cfg.APIBaseURL, "/")+cfg.APIReadyPath, 200, cfg.PreflightTimeout)).To(Succeed())
		Expect(waitForWorkerPoller(cfg.TemporalAddress, cfg.TemporalNamespace, cfg.TemporalTaskQueue, cfg.WorkerPollerTimeout)).To(Succeed())

		By("switching the provider to the mock with a short poll delay")
		Expect(putGlobalSettings(cfg.APIBaseURL, cfg.GlobalSettings)).To(Succeed())
	})

	It("submits exports over HTTP and delivers the translations via a real worker", func() {
		apiBaseURL := strings.TrimRight(cfg.APIBaseURL, "/")
		locales := []string{"de", "fr"}

		By("starting a translation exactly like the export pipeline")
		started, err := startTranslation(apiBaseURL, map[string]any{
			"subject":        "Spring campaign",
			"source_locale":  "en",
			"target_locales": locales,
			"due_date":       time.Now().Add(30 * 24 * time.Hour).UTC().Format(time.RFC3339),
		}, locales)
		Expect(err).ToNot(HaveOccurred())
		Expect(started.RequestID).ToNot(BeEmpty())
		Expect(started.WorkflowID).To(HaveSuffix(started.RequestID))
		Expect(started.Status).To(Equal("RECEIVED"))

		By("polling the stored snapshot until delivery")
		var last domain.SubmissionSnapshot
		Eventually(func() domain.CanonicalState {
			var getErr error
			last, getErr = getTranslation(apiBaseURL, started.RequestID)
			if getErr != nil {
				return ""
			}
			Expect(last.State).ToNot(Equal(domain.StateCancelled))
			return last.State
		}, cfg.WorkflowCompletionTimeout, cfg.WorkflowPollInterval).Should(Equal(domain.StateDelivered))
		Expect(last.SubmissionID).ToNot(BeEmpty())
		Expect(last.CompletedLocales).To(ConsistOf(locales))
		Expect(last.Action).To(Equal(action.NameDownload))

		By("validating activity inputs and outputs from Temporal workflow history")
		temporalClient, err := client.Dial(client.Options{
			HostPort:  cfg.TemporalAddress,
			Namespace: cfg.TemporalNamespace,
		})
		Expect(err).ToNot(HaveOccurred())
		defer temporalClient.Close()

		Eventually(func() []string {
			trace, traceErr := collectActivityTrace(context.Background(), temporalClient, started.WorkflowID)
			Expect(traceErr).ToNot(HaveOccurred())
			return trace.CompletedOrder
		}, 30*time.Second, time.Second).Should(Equal(cfg.ExpectedActivityOrder))

		trace, err := collectActivityTrace(context.Background(), temporalClient, started.WorkflowID)
		Expect(err).ToNot(HaveOccurred())
		Expect(trace.ScheduledOrder).To(Equal(cfg.ExpectedActivityOrder))

		sendIn := trace.Inputs["SendTranslationActivity"][0].(appTemporal.TranslationProcess)
		Expect(sendIn.State.RequestID).To(Equal(started.RequestID))
		Expect(sendIn.State.Request.TargetLocales).To(Equal(locales))
		Expect(sendIn.State.SubmissionID).To(BeEmpty())

		sendOut := trace.Outputs["SendTranslationActivity"][0].(appTemporal.ActionResult)
		Expect(sendOut.Outcome).To(Equal(action.OutcomeSucceeded))
		Expect(sendOut.Process.State.SubmissionID).To(Equal(last.SubmissionID))

		downloads := trace.Outputs["DownloadTranslationActivity"]
		Expect(downloads).To(HaveLen(2))
		final := downloads[1].(appTemporal.ActionResult)
		Expect(final.Process.State.State).To(Equal(domain.StateDelivered))
		Expect(final.Process.State.CompletedLocales).To(ConsistOf(locales))

		By("verifying snapshot and audit records in Postgres")
		db, err := sql.Open("postgres", cfg.PostgresDSN)
		Expect(err).ToNot(HaveOccurred())
		defer db.Close()

		Expect(db.Ping()).To(Succeed())

		events, err := fetchStringRows(db, `SELECT event FROM audit_log WHERE request_id = $1 ORDER BY id`, started.RequestID)
		Expect(err).ToNot(HaveOccurred())
		Expect(events).To(Equal([]string{"action.send", "action.download", "action.download"}))

		states, err := fetchStringRows(db, `SELECT state FROM translation_snapshots WHERE request_id = $1`, started.RequestID)
		Expect(err).ToNot(HaveOccurred())
		Expect(states).To(Equal([]string{string(domain.StateDelivered)}))
	})
})
