package bdd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"testing"

	"marketplace_messaging_service/internal/messaging/app"
	"marketplace_messaging_service/internal/messaging/domain"
	"marketplace_messaging_service/pkg/logger"

	"github.com/cucumber/godog"
	"github.com/google/uuid"
)

func TestFeatures(t *testing.T) {
	logger.SetNewNop()

	suite := godog.TestSuite{
		ScenarioInitializer: InitializeScenario,
		Options: &godog.Options{
			Paths:  []string{"./featureFiles"},
			Format: "pretty",
			Output: os.Stdout,
		},
	}

	if suite.Run() != 0 {
		t.Fail()
	}
}

// suiteState one scenario's world, rebuilt before each scenario
type suiteState struct {
	store    *memStore
	threadUC *app.ThreadUseCase
	sendUC   *app.SendMessageUseCase

	users    map[string]domain.Identity // name -> identity
	threadID string
	lastErr  error
}

func newSuiteState() *suiteState {
	s := newMemStore()
	threadRepo := &memThreadRepo{s: s}
	msgRepo := &memMessageRepo{s: s}
	staffRepo := &memStaffRepo{s: s}
	typingRepo := newMemTypingRepo()
	pub := &memPublisher{s: s}

	return &suiteState{
		store:    s,
		threadUC: app.NewThreadUseCase(threadRepo, msgRepo, staffRepo, typingRepo, pub),
		sendUC:   app.NewSendMessageUseCase(threadRepo, msgRepo, staffRepo, typingRepo, pub, memNotifyRepo{}),
		users:    make(map[string]domain.Identity),
	}
}

func (st *suiteState) identity(name string) (domain.Identity, error) {
	who, ok := st.users[name]
	if !ok {
		return domain.Identity{}, fmt.Errorf("unknown user %q", name)
	}
	return who, nil
}

func (st *suiteState) requesterAndProvider(requester, provider string) error {
	st.users[requester] = domain.Identity{UserID: uuid.NewString(), DisplayName: requester, Role: "requester"}
	st.users[provider] = domain.Identity{UserID: uuid.NewString(), DisplayName: provider, Role: "provider"}
	return nil
}

func (st *suiteState) staffOfWithRole(staff, provider, role string) error {
	prov, err := st.identity(provider)
	if err != nil {
		return err
	}
	who := domain.Identity{UserID: uuid.NewString(), DisplayName: staff, Role: "staff"}
	st.users[staff] = who
	st.store.mu.Lock()
	st.store.staff[pairKey(prov.UserID, who.UserID)] = role
	st.store.mu.Unlock()
	return nil
}

func (st *suiteState) startsConversation(requester, provider, message string) error {
	who, err := st.identity(requester)
	if err != nil {
		return err
	}
	prov, err := st.identity(provider)
	if err != nil {
		return err
	}
	thread, _, err := st.sendUC.StartThread(context.Background(), who, prov.UserID, nil, message, nil)
	if err != nil {
		return err
	}
	st.threadID = thread.ID
	return nil
}

func (st *suiteState) replies(sender, message string) error {
	who, err := st.identity(sender)
	if err != nil {
		return err
	}
	_, st.lastErr = st.sendUC.Execute(context.Background(), st.threadID, who, message, nil, "")
	return nil
}

func (st *suiteState) exactlyThreadsExist(count int, requester, provider string) error {
	req, err := st.identity(requester)
	if err != nil {
		return err
	}
	prov, err := st.identity(provider)
	if err != nil {
		return err
	}
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	found := 0
	for _, t := range st.store.threads {
		if t.RequesterID == req.UserID && t.ProviderID == prov.UserID {
			found++
		}
	}
	if found != count {
		return fmt.Errorf("expected %d threads, found %d", count, found)
	}
	return nil
}

func (st *suiteState) receivesNewMessageEvent(recipient, content string) error {
	if _, err := st.identity(recipient); err != nil {
		return err
	}
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	for _, ev := range st.store.newMessages[st.threadID] {
		if ev.Content == content {
			return nil
		}
	}
	return fmt.Errorf("no new-message event with content %q on thread %s", content, st.threadID)
}

func (st *suiteState) viewsConversation(viewer string) error {
	who, err := st.identity(viewer)
	if err != nil {
		return err
	}
	_, _, _, err = st.threadUC.View(context.Background(), st.threadID, who.UserID, "", 50)
	return err
}

func (st *suiteState) hasUnreadMessages(viewer string, count int) error {
	who, err := st.identity(viewer)
	if err != nil {
		return err
	}
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	var unread int
	for _, m := range st.store.messages[st.threadID] {
		if m.SenderID != who.UserID && m.Status != domain.StatusRead {
			unread++
		}
	}
	if unread != count {
		return fmt.Errorf("expected %d unread for %s, got %d", count, viewer, unread)
	}
	return nil
}

func (st *suiteState) receivesReadReceipt(recipient string, count int) error {
	if _, err := st.identity(recipient); err != nil {
		return err
	}
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	for _, ev := range st.store.readReceipts[st.threadID] {
		if ev.Count == int64(count) {
			return nil
		}
	}
	return fmt.Errorf("no read receipt for %d messages on thread %s", count, st.threadID)
}

func (st *suiteState) sendRejectedAsInvalid() error {
	if st.lastErr == nil {
		return fmt.Errorf("expected the send to fail, it succeeded")
	}
	if !errors.Is(st.lastErr, domain.ErrValidation) {
		return fmt.Errorf("expected a validation error, got %v", st.lastErr)
	}
	return nil
}

func (st *suiteState) lastMessageSentBy(sender string) error {
	who, err := st.identity(sender)
	if err != nil {
		return err
	}
	st.store.mu.Lock()
	defer st.store.mu.Unlock()
	msgs := st.store.messages[st.threadID]
	if len(msgs) == 0 {
		return fmt.Errorf("no messages on thread %s", st.threadID)
	}
	last := msgs[len(msgs)-1]
	if last.SenderID != who.UserID {
		return fmt.Errorf("last message sent by %s, expected %s", last.SenderID, who.UserID)
	}
	return nil
}

// InitializeScenario binds the Gherkin steps to their definitions
func InitializeScenario(sc *godog.ScenarioContext) {
	var st *suiteState

	sc.Before(func(ctx context.Context, s *godog.Scenario) (context.Context, error) {
		st = newSuiteState()
		return ctx, nil
	})

	sc.Step(`^"([^"]*)" is a requester and "([^"]*)" is a provider$`, func(a, b string) error {
		return st.requesterAndProvider(a, b)
	})
	sc.Step(`^"([^"]*)" is staff of "([^"]*)" with role "([^"]*)"$`, func(a, b, c string) error {
		return st.staffOfWithRole(a, b, c)
	})
	sc.Step(`^"([^"]*)" starts a conversation with "([^"]*)" saying "([^"]*)"$`, func(a, b, c string) error {
		return st.startsConversation(a, b, c)
	})
	sc.Step(`^"([^"]*)" replies "([^"]*)"$`, func(a, b string) error {
		return st.replies(a, b)
	})
	sc.Step(`^exactly (\d+) thread exists between "([^"]*)" and "([^"]*)"$`, func(n int, a, b string) error {
		return st.exactlyThreadsExist(n, a, b)
	})
	sc.Step(`^"([^"]*)" receives a new-message event saying "([^"]*)"$`, func(a, b string) error {
		return st.receivesNewMessageEvent(a, b)
	})
	sc.Step(`^"([^"]*)" views the conversation$`, func(a string) error {
		return st.viewsConversation(a)
	})
	sc.Step(`^"([^"]*)" has (\d+) unread messages in the conversation$`, func(a string, n int) error {
		return st.hasUnreadMessages(a, n)
	})
	sc.Step(`^"([^"]*)" receives a read receipt for (\d+) message$`, func(a string, n int) error {
		return st.receivesReadReceipt(a, n)
	})
	sc.Step(`^the send is rejected as invalid$`, func() error {
		return st.sendRejectedAsInvalid()
	})
	sc.Step(`^the last message in the conversation was sent by "([^"]*)"$`, func(a string) error {
		return st.lastMessageSentBy(a)
	})
}
