package notifications

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"rental_app_backend/internal/models"

	"github.com/aws/aws-sdk-go-v2/service/ses"
	"github.com/aws/aws-sdk-go-v2/service/sns"
	"github.com/segmentio/kafka-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func testApplication() *models.Application {
	return &models.Application{
		ApplicationID:     "CP-20260310-ABCDEF12",
		ApplicantName:     "Jane Doe",
		ApplicantEmail:    "jane@example.com",
		ApplicantPhone:    strPtr("555-123-4567"),
		PropertyAddress:   strPtr("12 Elm St"),
		ApplicationStatus: models.ApplicationStatusApproved,
		PaymentStatus:     models.PaymentStatusPaid,
		StatusNote:        strPtr("Welcome home"),
		FormData:          models.FormData{"contactSMS": true},
	}
}

func TestStatusChanged_RendersAndOptsIntoSMS(t *testing.T) {
	msg, err := StatusChanged(testApplication())
	require.NoError(t, err)

	assert.Equal(t, "jane@example.com", msg.To)
	assert.Equal(t, "Application CP-20260310-ABCDEF12: Approved", msg.Subject)
	assert.Contains(t, msg.Body, "Hi Jane Doe")
	assert.Contains(t, msg.Body, "Welcome home")
	assert.Equal(t, "+15551234567", msg.SMSTo)
	assert.Contains(t, msg.SMSBody, "Approved")
}

func TestSubmissionReceived_NoSMSTemplate(t *testing.T) {
	msg, err := SubmissionReceived(testApplication())
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "12 Elm St")
	assert.Empty(t, msg.SMSTo)
}

func TestStatusChanged_NoSMSWithoutOptIn(t *testing.T) {
	app := testApplication()
	app.FormData = models.FormData{}
	msg, err := StatusChanged(app)
	require.NoError(t, err)
	assert.Empty(t, msg.SMSTo)
}

func TestIDRecovery_ListsIDs(t *testing.T) {
	msg, err := IDRecovery("jane@example.com", []string{"CP-1", "CP-2"})
	require.NoError(t, err)
	assert.Contains(t, msg.Body, "- CP-1")
	assert.Contains(t, msg.Body, "- CP-2")
}

type mockSES struct {
	input *ses.SendEmailInput
	err   error
}

func (m *mockSES) SendEmail(_ context.Context, in *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.input = in
	return &ses.SendEmailOutput{}, m.err
}

type mockSNS struct {
	input *sns.PublishInput
	err   error
}

func (m *mockSNS) Publish(_ context.Context, in *sns.PublishInput, _ ...func(*sns.Options)) (*sns.PublishOutput, error) {
	m.input = in
	return &sns.PublishOutput{}, m.err
}

func TestAWSSender_EmailAndSMS(t *testing.T) {
	sesMock, snsMock := &mockSES{}, &mockSNS{}
	sender := NewAWSSenderWithClients(sesMock, snsMock, "noreply@choiceproperties.com")

	msg, err := StatusChanged(testApplication())
	require.NoError(t, err)
	require.NoError(t, sender.Send(context.Background(), msg))

	require.NotNil(t, sesMock.input)
	assert.Equal(t, []string{"jane@example.com"}, sesMock.input.Destination.ToAddresses)
	assert.Equal(t, "noreply@choiceproperties.com", *sesMock.input.Source)
	require.NotNil(t, snsMock.input)
	assert.Equal(t, "+15551234567", *snsMock.input.PhoneNumber)
}

func TestAWSSender_EmailFailureSkipsSMS(t *testing.T) {
	sesMock, snsMock := &mockSES{err: errors.New("throttled")}, &mockSNS{}
	sender := NewAWSSenderWithClients(sesMock, snsMock, "noreply@choiceproperties.com")

	msg, _ := StatusChanged(testApplication())
	assert.Error(t, sender.Send(context.Background(), msg))
	assert.Nil(t, snsMock.input)
}

type mockWriter struct {
	msgs []kafka.Message
}

func (m *mockWriter) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	m.msgs = append(m.msgs, msgs...)
	return nil
}

func (m *mockWriter) Close() error { return nil }

func TestKafkaSender_KeysByApplication(t *testing.T) {
	w := &mockWriter{}
	msg, _ := SubmissionReceived(testApplication())
	require.NoError(t, NewKafkaSenderWithWriter(w).Send(context.Background(), msg))

	require.Len(t, w.msgs, 1)
	assert.Equal(t, "CP-20260310-ABCDEF12", string(w.msgs[0].Key))
	assert.Contains(t, string(w.msgs[0].Value), `"kind":"submission_received"`)
}

type flakySender struct {
	mu       sync.Mutex
	failures int
	calls    atomic.Int32
	sent     []Message
}

func (f *flakySender) Send(_ context.Context, msg Message) error {
	f.calls.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures > 0 {
		f.failures--
		return errors.New("temporary")
	}
	f.sent = append(f.sent, msg)
	return nil
}

func TestDispatcher_RetriesThenDelivers(t *testing.T) {
	sender := &flakySender{failures: 2}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1, QueueSize: 4, MaxAttempts: 3, RetryDelay: time.Millisecond})
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(Message{Kind: KindSubmissionReceived, To: "a@b.co"}))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int32(3), sender.calls.Load())
	assert.Len(t, sender.sent, 1)
}

func TestDispatcher_GivesUpAfterMaxAttempts(t *testing.T) {
	sender := &flakySender{failures: 10}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 2, MaxAttempts: 2, RetryDelay: time.Millisecond})
	d.Start(context.Background())

	require.NoError(t, d.Enqueue(Message{Kind: KindStatusChanged, To: "a@b.co"}))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int32(2), sender.calls.Load())
	assert.Empty(t, sender.sent)
}

func TestDispatcher_QueueFullAndStopped(t *testing.T) {
	d := NewDispatcher(&flakySender{}, DispatcherConfig{QueueSize: 1})

	require.NoError(t, d.Enqueue(Message{To: "a@b.co"}))
	assert.ErrorIs(t, d.Enqueue(Message{To: "a@b.co"}), ErrQueueFull)

	d.Start(context.Background())
	require.NoError(t, d.Stop(context.Background()))
	assert.ErrorIs(t, d.Enqueue(Message{To: "a@b.co"}), ErrDispatcherStopped)
}

type countingSES struct {
	sends atomic.Int32
}

func (m *countingSES) SendEmail(_ context.Context, _ *ses.SendEmailInput, _ ...func(*ses.Options)) (*ses.SendEmailOutput, error) {
	m.sends.Add(1)
	return &ses.SendEmailOutput{}, nil
}

func TestAWSSender_SMSFailureDoesNotResendEmail(t *testing.T) {
	sesMock, snsMock := &countingSES{}, &mockSNS{err: errors.New("opted out")}
	sender := NewAWSSenderWithClients(sesMock, snsMock, "noreply@choiceproperties.com")
	d := NewDispatcher(sender, DispatcherConfig{Workers: 1, MaxAttempts: 3, RetryDelay: time.Millisecond})
	d.Start(context.Background())

	msg, err := StatusChanged(testApplication())
	require.NoError(t, err)
	require.NotEmpty(t, msg.SMSTo)
	require.NoError(t, d.Enqueue(msg))
	require.NoError(t, d.Stop(context.Background()))

	assert.Equal(t, int32(1), sesMock.sends.Load())
	require.NotNil(t, snsMock.input)
}

// liveContextSender fails any send whose context is already cancelled.
type liveContextSender struct {
	delivered atomic.Int32
}

func (s *liveContextSender) Send(ctx context.Context, _ Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	s.delivered.Add(1)
	return nil
}

func TestDispatcher_DrainsAfterParentContextCancelled(t *testing.T) {
	sender := &liveContextSender{}
	d := NewDispatcher(sender, DispatcherConfig{Workers: 2, QueueSize: 8, MaxAttempts: 1})
	parent, cancel := context.WithCancel(context.Background())
	d.Start(parent)
	cancel()

	for i := 0; i < 5; i++ {
		require.NoError(t, d.Enqueue(Message{Kind: KindSubmissionReceived, To: "a@b.co"}))
	}
	stopCtx, stopCancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer stopCancel()
	require.NoError(t, d.Stop(stopCtx))

	assert.Equal(t, int32(5), sender.delivered.Load())
}
