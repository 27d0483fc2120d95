package provider

import (
	"context"
	"io"
	"time"

	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
	"github.com/rs/zerolog"

	"translation-orchestrator/internal/domain"
)

func submitMock(ctx context.Context, session *Session, locales ...string) domain.SubmissionID {
	fileID, err := session.Upload(ctx, "en2de.xliff", []byte(`<xliff target-language="en"/>`))
	Expect(err).NotTo(HaveOccurred())
	id, err := session.Submit(ctx, SubmitRequest{
		Subject:      "Spring campaign",
		SourceLocale: "en",
		DueDate:      time.Now().Add(48 * time.Hour),
		Files:        map[string][]string{fileID: locales},
	})
	Expect(err).NotTo(HaveOccurred())
	return id
}

func pollStates(ctx context.Context, session *Session, id domain.SubmissionID, n int) []domain.CanonicalState {
	states := make([]domain.CanonicalState, 0, n)
	for i := 0; i < n; i++ {
		sub, err := session.Submission(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		states = append(states, sub.State)
	}
	return states
}

var _ = Describe("MockProvider", func() {
	var (
		ctx  context.Context
		mock *MockProvider
	)

	BeforeEach(func() {
		ctx = context.Background()
		mock = NewMockProvider()
	})

	It("walks a submission through the default lifecycle", func() {
		session := NewSession(mock.Transport(MockErrorNone, ""), zerolog.Nop())
		id := submitMock(ctx, session, "de", "fr", "it")

		Expect(pollStates(ctx, session, id, 3)).To(Equal([]domain.CanonicalState{
			domain.StateStarted,
			domain.StateTranslate,
			domain.StateCompleted,
		}))

		By("delivering every completed task")
		var locales []string
		confirmed, err := session.DownloadCompleted(ctx, id, func(_ context.Context, payload io.Reader, task domain.TaskRecord) (bool, error) {
			body, err := io.ReadAll(payload)
			Expect(err).NotTo(HaveOccurred())
			Expect(string(body)).To(ContainSubstring(`target-language="` + task.Locale + `"`))
			locales = append(locales, task.Locale)
			return true, nil
		})
		Expect(err).NotTo(HaveOccurred())
		Expect(confirmed).To(Equal(3))
		Expect(locales).To(ConsistOf("de", "fr", "it"))

		Expect(pollStates(ctx, session, id, 1)).To(Equal([]domain.CanonicalState{domain.StateDelivered}))
	})

	It("keeps replay state per submission", func() {
		session := NewSession(mock.Transport(MockErrorNone, "approval"), zerolog.Nop())
		first := submitMock(ctx, session, "de")
		second := submitMock(ctx, session, "fr")

		Expect(pollStates(ctx, session, first, 2)).To(Equal([]domain.CanonicalState{
			domain.StateInPreProcess,
			domain.StateAnalyzed,
		}))
		Expect(pollStates(ctx, session, second, 1)).To(Equal([]domain.CanonicalState{domain.StateInPreProcess}))
		Expect(pollStates(ctx, session, first, 1)).To(Equal([]domain.CanonicalState{domain.StateAwaitingApproval}))
	})

	It("reports unknown provider states as OTHER", func() {
		session := NewSession(mock.Transport(MockErrorNone, "unknown-state"), zerolog.Nop())
		id := submitMock(ctx, session, "de")

		Expect(pollStates(ctx, session, id, 2)).To(Equal([]domain.CanonicalState{
			domain.StateOther,
			domain.StateStarted,
		}))
	})

	It("confirms a cancellation once every task was acknowledged", func() {
		session := NewSession(mock.Transport(MockErrorNone, ""), zerolog.Nop())
		id := submitMock(ctx, session, "de", "fr")
		pollStates(ctx, session, id, 1)

		accepted, err := session.Cancel(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(accepted).To(BeTrue())
		Expect(pollStates(ctx, session, id, 1)).To(Equal([]domain.CanonicalState{domain.StateCancelled}))

		confirmed, err := session.ConfirmCancelled(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(confirmed).To(Equal(2))
		Expect(pollStates(ctx, session, id, 1)).To(Equal([]domain.CanonicalState{domain.StateCancellationConfirmed}))

		By("sending nothing on a repeated confirmation")
		before := mock.Requests("confirm_task_cancellation")
		confirmed, err = session.ConfirmCancelled(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(confirmed).To(BeZero())
		Expect(mock.Requests("confirm_task_cancellation")).To(Equal(before))
	})

	It("detects a cancellation hidden behind a regular state name", func() {
		session := NewSession(mock.Transport(MockErrorNone, "silent-cancel"), zerolog.Nop())
		id := submitMock(ctx, session, "de")

		_, err := session.Cancel(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		sub, err := session.Submission(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(sub.State).To(Equal(domain.StateCancelled))
	})

	It("redelivers completed tasks before reporting REDELIVERED", func() {
		session := NewSession(mock.Transport(MockErrorNone, "redeliver"), zerolog.Nop())
		id := submitMock(ctx, session, "de")
		pollStates(ctx, session, id, 3)

		deliver := func() int {
			n, err := session.DownloadCompleted(ctx, id, func(context.Context, io.Reader, domain.TaskRecord) (bool, error) {
				return true, nil
			})
			Expect(err).NotTo(HaveOccurred())
			return n
		}

		Expect(deliver()).To(Equal(1))
		Expect(pollStates(ctx, session, id, 1)).To(Equal([]domain.CanonicalState{domain.StateCompleted}))
		Expect(deliver()).To(Equal(1))
		Expect(pollStates(ctx, session, id, 1)).To(Equal([]domain.CanonicalState{domain.StateRedelivered}))
	})

	DescribeTable("injected errors",
		func(mode MockError, call func(*Session) error, kind domain.FailureKind) {
			healthy := NewSession(mock.Transport(MockErrorNone, ""), zerolog.Nop())
			id := submitMock(ctx, healthy, "de")
			pollStates(ctx, healthy, id, 3)

			faulty := NewSession(mock.Transport(mode, ""), zerolog.Nop())
			err := call(faulty)
			Expect(err).To(HaveOccurred())
			Expect(domain.Classify(err).Kind).To(Equal(kind))
		},
		Entry("upload", MockErrorUploadCommunication, func(s *Session) error {
			_, err := s.Upload(context.Background(), "en2fr.xliff", []byte("x"))
			return err
		}, domain.FailureCommunication),
		Entry("submit", MockErrorSubmitCommunication, func(s *Session) error {
			_, err := s.Submit(context.Background(), SubmitRequest{Subject: "x"})
			return err
		}, domain.FailureCommunication),
		Entry("download", MockErrorDownloadCommunication, func(s *Session) error {
			_, err := s.DownloadCompleted(context.Background(), 1000, func(context.Context, io.Reader, domain.TaskRecord) (bool, error) {
				return true, nil
			})
			return err
		}, domain.FailureCommunication),
		Entry("cancel", MockErrorCancelCommunication, func(s *Session) error {
			_, err := s.Cancel(context.Background(), 1000)
			return err
		}, domain.FailureCommunication),
	)

	It("reports a refused cancellation without an error", func() {
		healthy := NewSession(mock.Transport(MockErrorNone, ""), zerolog.Nop())
		id := submitMock(ctx, healthy, "de")

		faulty := NewSession(mock.Transport(MockErrorCancelResult, ""), zerolog.Nop())
		accepted, err := faulty.Cancel(ctx, id)
		Expect(err).NotTo(HaveOccurred())
		Expect(accepted).To(BeFalse())
	})

	It("rejects unknown scenarios", func() {
		session := NewSession(mock.Transport(MockErrorNone, "nope"), zerolog.Nop())
		fileID, err := session.Upload(ctx, "en2de.xliff", []byte("x"))
		Expect(err).NotTo(HaveOccurred())
		_, err = session.Submit(ctx, SubmitRequest{Files: map[string][]string{fileID: {"de"}}})
		Expect(domain.IsFailureKind(err, domain.FailureConfig)).To(BeTrue())
	})
})
