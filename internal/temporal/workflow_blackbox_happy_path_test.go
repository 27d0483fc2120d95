package temporal

import (
	"context"
	"sync"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/converter"
	"go.temporal.io/sdk/testsuite"

	"translation-orchestrator/internal/action"
	"translation-orchestrator/internal/domain"
)

type activityTrace struct {
	mu sync.Mutex

	startedOrder   []string
	completedOrder []string

	sendIn    *TranslationProcess
	downloads []TranslationProcess
	snapshots []RecordSnapshotInput
}

func (t *activityTrace) recordStarted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.startedOrder = append(t.startedOrder, name)
}

func (t *activityTrace) recordCompleted(name string) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.completedOrder = append(t.completedOrder, name)
}

var _ = Describe("TranslationWorkflow blackbox happy path", func() {
	It("submits the request, polls the provider and completes with the delivered translations", func() {
		var suite testsuite.WorkflowTestSuite
		env := suite.NewTestWorkflowEnvironment()
		h := newHarness(nil)
		registerActivities(env, h.acts)

		trace := &activityTrace{}

		env.SetOnActivityStartedListener(func(info *activity.Info, _ context.Context, args converter.EncodedValues) {
			trace.recordStarted(info.ActivityType.Name)

			switch info.ActivityType.Name {
			case "SendTranslationActivity":
				var in TranslationProcess
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.sendIn = &in
				trace.mu.Unlock()
			case "DownloadTranslationActivity":
				var in TranslationProcess
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.downloads = append(trace.downloads, in)
				trace.mu.Unlock()
			case "RecordSnapshotActivity":
				var in RecordSnapshotInput
				_ = args.Get(&in)
				trace.mu.Lock()
				trace.snapshots = append(trace.snapshots, in)
				trace.mu.Unlock()
			}
		})
		env.SetOnActivityCompletedListener(func(info *activity.Info, _ converter.EncodedValue, _ error) {
			trace.recordCompleted(info.ActivityType.Name)
		})

		var midway StatusView
		env.RegisterDelayedCallback(func() {
			val, err := env.QueryWorkflow(StatusQueryName)
			Expect(err).NotTo(HaveOccurred())
			Expect(val.Get(&midway)).To(Succeed())
		}, time.Minute)

		input := newWorkflowInput()
		env.ExecuteWorkflow(TranslationWorkflow, input)

		Expect(env.IsWorkflowCompleted()).To(BeTrue())
		Expect(env.GetWorkflowError()).NotTo(HaveOccurred())

		var result WorkflowResult
		Expect(env.GetWorkflowResult(&result)).To(Succeed())
		Expect(result.RequestID).To(Equal("req-1"))
		Expect(result.SubmissionID).To(Equal("1000"))
		Expect(result.Status).To(Equal(WorkflowDelivered))
		Expect(result.State).To(Equal(domain.StateDelivered))
		Expect(result.Issues).To(BeEmpty())

		By("running each action once per poll and recording a snapshot after it")
		expectedOrder := []string{
			"SendTranslationActivity",
			"RecordSnapshotActivity",
			"DownloadTranslationActivity",
			"RecordSnapshotActivity",
			"DownloadTranslationActivity",
			"RecordSnapshotActivity",
		}
		trace.mu.Lock()
		defer trace.mu.Unlock()
		Expect(trace.startedOrder).To(Equal(expectedOrder))
		Expect(trace.completedOrder).To(Equal(expectedOrder))

		Expect(trace.sendIn).NotTo(BeNil())
		Expect(trace.sendIn.State.RequestID).To(Equal("req-1"))
		Expect(trace.sendIn.State.Request.TargetLocales).To(Equal([]string{"de", "fr"}))
		Expect(trace.sendIn.State.SubmissionID).To(BeEmpty())

		Expect(trace.downloads).To(HaveLen(2))
		Expect(trace.downloads[0].State.SubmissionID).To(Equal("1000"))
		Expect(trace.downloads[1].State.State).To(Equal(domain.StateTranslate))
		Expect(trace.downloads[1].State.PDSubmissionIDs).NotTo(BeEmpty())

		Expect(trace.snapshots).To(HaveLen(3))
		Expect(trace.snapshots[0].Action).To(Equal(action.NameSend))
		Expect(trace.snapshots[0].Result.Outcome).To(Equal(action.OutcomeSucceeded))
		Expect(trace.snapshots[2].Result.Process.State.CompletedLocales).To(Equal([]string{"de", "fr"}))

		By("answering status queries while waiting for the next poll")
		Expect(midway.Phase).To(Equal(action.NameDownload))
		Expect(midway.Process.State.State).To(Equal(domain.StateTranslate))
		Expect(midway.Process.State.CancellationAllowed).To(BeTrue())

		Expect(h.translations.count()).To(Equal(2))
	})
})
