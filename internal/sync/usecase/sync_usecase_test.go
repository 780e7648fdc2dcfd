package usecase

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"testing"
	"time"

	"schoolcomms-backend/internal/comm/domain"
	"schoolcomms-backend/internal/comm/repository"
	"schoolcomms-backend/internal/database"
	"schoolcomms-backend/pkg/childcare"
	"schoolcomms-backend/pkg/messaging"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

type fixture struct {
	db        *gorm.DB
	commRepo  repository.CommunicationRepository
	stateRepo repository.SyncStateRepository
	uc        *SyncUsecase
}

func newFixture(t *testing.T, mail MailProvider, cc ChildcareProvider, scraper messaging.Scraper, groups GroupSource, opener AttachmentOpener) *fixture {
	t.Helper()
	db, err := database.OpenSQLite(":memory:", nil)
	require.NoError(t, err)

	commRepo := repository.NewCommunicationRepository(db)
	stateRepo := repository.NewSyncStateRepository(db)
	uc := NewSyncUsecase(db, commRepo, stateRepo, mail, cc, scraper, groups, opener,
		Config{AttachmentsDir: t.TempDir(), PDFMaxBytes: 1024}, nil, nil)
	return &fixture{db: db, commRepo: commRepo, stateRepo: stateRepo, uc: uc}
}

func mailItem(id string, ts time.Time) *domain.CommunicationItem {
	return &domain.CommunicationItem{
		Source:    domain.SourceMail,
		SourceID:  "mail_" + id,
		Timestamp: ts,
		Title:     "subject " + id,
		Sender:    "sender@example.com",
		BodyPlain: "body " + id,
	}
}

// fakeMail serves fixed pages; the page token is the next page index.
type fakeMail struct {
	pages   [][]*domain.CommunicationItem
	errOn   int // 1-based page to fail on, 0 disables
	fetches int
}

func (f *fakeMail) FetchPage(ctx context.Context, pageToken string) ([]*domain.CommunicationItem, string, error) {
	index := 0
	if pageToken != "" {
		index, _ = strconv.Atoi(pageToken)
	}
	f.fetches++
	if f.errOn > 0 && index+1 == f.errOn {
		return nil, "", fmt.Errorf("upstream unavailable")
	}
	if index >= len(f.pages) {
		return nil, "", nil
	}
	next := ""
	if index+1 < len(f.pages) {
		next = strconv.Itoa(index + 1)
	}
	return f.pages[index], next, nil
}

func (f *fixture) countItems(t *testing.T) int64 {
	t.Helper()
	var count int64
	require.NoError(t, f.db.Model(&domain.CommunicationItem{}).Count(&count).Error)
	return count
}

func TestMailSyncThreeNewOneDuplicate(t *testing.T) {
	now := time.Now()
	fix := newFixture(t, nil, nil, nil, nil, nil)

	// one item already stored from an earlier pass
	require.NoError(t, fix.commRepo.Create(mailItem("dup", now.Add(-time.Hour))))

	mail := &fakeMail{pages: [][]*domain.CommunicationItem{{
		mailItem("a", now),
		mailItem("b", now),
		mailItem("dup", now.Add(-time.Hour)),
		mailItem("c", now),
	}}}
	fix.uc.mail = mail

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.NoError(t, err)
	assert.Equal(t, 3, counts.Inserted)
	assert.Equal(t, 1, counts.Skipped)
	assert.EqualValues(t, 4, fix.countItems(t))
}

func TestMailSyncIdempotent(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)

	// future-dated items dodge the watermark so the second pass exercises
	// the dedup check itself
	future := time.Now().Add(time.Hour)
	page := []*domain.CommunicationItem{mailItem("a", future), mailItem("b", future)}
	fix.uc.mail = &fakeMail{pages: [][]*domain.CommunicationItem{page}}

	first, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.NoError(t, err)
	assert.Equal(t, 2, first.Inserted)

	fix.uc.mail = &fakeMail{pages: [][]*domain.CommunicationItem{{mailItem("a", future), mailItem("b", future)}}}
	second, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.NoError(t, err)
	assert.Equal(t, 0, second.Inserted)
	assert.Equal(t, 2, second.Skipped)
	assert.EqualValues(t, 2, fix.countItems(t))
}

func TestMailSyncWatermarkEarlyExit(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)

	watermark := time.Now().Add(-24 * time.Hour)
	require.NoError(t, fix.stateRepo.Save(&domain.SyncState{
		Source:     domain.SourceMail,
		LastSyncAt: &watermark,
	}))

	mail := &fakeMail{pages: [][]*domain.CommunicationItem{
		{
			mailItem("new", time.Now()),
			mailItem("old", watermark.Add(-time.Hour)),
		},
		{mailItem("older", watermark.Add(-2*time.Hour))},
	}}
	fix.uc.mail = mail

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.NoError(t, err)
	assert.Equal(t, 1, counts.Inserted, "records older than the watermark stop the feed")
	assert.Equal(t, 1, mail.fetches, "no page beyond the watermark hit")
}

func TestMailSyncFailureRollsBackEverything(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)

	fix.uc.mail = &fakeMail{
		pages: [][]*domain.CommunicationItem{
			{mailItem("a", time.Now()), mailItem("b", time.Now())},
			nil,
		},
		errOn: 2,
	}

	_, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.Error(t, err)
	assert.EqualValues(t, 0, fix.countItems(t), "partial page must roll back")

	state, err := fix.stateRepo.Get(domain.SourceMail)
	require.NoError(t, err)
	assert.Nil(t, state, "watermark must not advance on failure")
}

func TestDegenerateSourceIDSkippedNotFatal(t *testing.T) {
	now := time.Now()
	fix := newFixture(t, nil, nil, nil, nil, nil)

	bad := mailItem("x", now)
	bad.SourceID = "mail_"
	fix.uc.mail = &fakeMail{pages: [][]*domain.CommunicationItem{{
		mailItem("a", now),
		bad,
		mailItem("b", now),
	}}}

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceMail)
	require.NoError(t, err, "one malformed record must not fail the pass")
	assert.Equal(t, 2, counts.Inserted)
	assert.Equal(t, 1, counts.Skipped)
	assert.EqualValues(t, 2, fix.countItems(t))

	state, err := fix.stateRepo.Get(domain.SourceMail)
	require.NoError(t, err)
	require.NotNil(t, state, "watermark still advances past the bad record")
	assert.NotNil(t, state.LastSyncAt)
}

// fakeChildcare serves one dependent with fixed activity/message pages.
type fakeChildcare struct {
	activities [][]*domain.CommunicationItem
	messages   [][]*domain.CommunicationItem
}

func (f *fakeChildcare) GuardianID(ctx context.Context) (string, error) { return "g-1", nil }

func (f *fakeChildcare) Dependents(ctx context.Context, guardianID string) ([]childcare.Dependent, error) {
	return []childcare.Dependent{{ID: "st-1", FirstName: "Maya"}}, nil
}

func page(pages [][]*domain.CommunicationItem, n int) ([]*domain.CommunicationItem, bool, error) {
	if n > len(pages) {
		return nil, false, nil
	}
	return pages[n-1], n < len(pages), nil
}

func (f *fakeChildcare) ActivitiesPage(ctx context.Context, dep childcare.Dependent, n int) ([]*domain.CommunicationItem, bool, error) {
	return page(f.activities, n)
}

func (f *fakeChildcare) MessagesPage(ctx context.Context, dep childcare.Dependent, n int) ([]*domain.CommunicationItem, bool, error) {
	return page(f.messages, n)
}

func childcareItem(id string, ts time.Time) *domain.CommunicationItem {
	return &domain.CommunicationItem{
		Source:      domain.SourceChildcare,
		SourceID:    "childcare_act_" + id,
		Timestamp:   ts,
		Title:       "Maya: Activity",
		StudentName: "Maya",
	}
}

func TestChildcareSyncWatermarkStopsFeedNotPass(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)

	watermark := time.Now().Add(-24 * time.Hour)
	require.NoError(t, fix.stateRepo.Save(&domain.SyncState{
		Source:     domain.SourceChildcare,
		LastSyncAt: &watermark,
	}))

	msg := childcareItem("m1", time.Now())
	msg.SourceID = "childcare_msg_m1"
	fix.uc.childcare = &fakeChildcare{
		activities: [][]*domain.CommunicationItem{
			{childcareItem("a1", time.Now()), childcareItem("stale", watermark.Add(-time.Hour))},
			{childcareItem("never", time.Now())},
		},
		messages: [][]*domain.CommunicationItem{{msg}},
	}

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceChildcare)
	require.NoError(t, err)
	// activity feed stops at the stale record, message feed still runs
	assert.Equal(t, 2, counts.Inserted)

	stored, err := fix.commRepo.FindBySourceID("childcare_act_never")
	require.NoError(t, err)
	assert.Nil(t, stored)
}

type fakeScraper struct {
	session  bool
	messages map[string][]messaging.Message
}

func (f *fakeScraper) HasSession(ctx context.Context) bool { return f.session }

func (f *fakeScraper) ScrapeGroup(ctx context.Context, group string, since *time.Time) ([]messaging.Message, error) {
	return f.messages[group], nil
}

type fakeGroups struct{ groups []string }

func (f *fakeGroups) MessagingGroups() ([]string, error) { return f.groups, nil }

func TestMessagingSyncRequiresSession(t *testing.T) {
	fix := newFixture(t, nil, nil, &fakeScraper{session: false}, &fakeGroups{groups: []string{"g"}}, nil)

	_, err := fix.uc.SyncSource(context.Background(), domain.SourceMessaging)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "session")
}

func TestMessagingSyncStoresHashedMessages(t *testing.T) {
	scraper := &fakeScraper{
		session: true,
		messages: map[string][]messaging.Message{
			"Room 4 Parents": {
				{Timestamp: time.Now(), Sender: "Sam", Body: "snacks tomorrow"},
				{Timestamp: time.Now(), Sender: "Alex", Body: "thanks!"},
			},
		},
	}
	fix := newFixture(t, nil, nil, scraper, &fakeGroups{groups: []string{"Room 4 Parents"}}, nil)

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceMessaging)
	require.NoError(t, err)
	assert.Equal(t, 2, counts.Inserted)

	var items []*domain.CommunicationItem
	require.NoError(t, fix.db.Where("source = ?", domain.SourceMessaging).Find(&items).Error)
	require.Len(t, items, 2)
	for _, item := range items {
		assert.True(t, strings.HasPrefix(item.SourceID, "msg_"))
		assert.Equal(t, "Room 4 Parents", item.GroupName)
	}
}

func TestMessagingSyncNoGroupsIsNoop(t *testing.T) {
	fix := newFixture(t, nil, nil, &fakeScraper{session: true}, &fakeGroups{}, nil)

	counts, err := fix.uc.SyncSource(context.Background(), domain.SourceMessaging)
	require.NoError(t, err)
	assert.Equal(t, Counts{}, counts)
}

func TestSyncAllIsolatesFailures(t *testing.T) {
	fix := newFixture(t, nil, nil, &fakeScraper{session: true}, &fakeGroups{}, nil)
	fix.uc.mail = &fakeMail{errOn: 1}
	fix.uc.childcare = &fakeChildcare{
		activities: [][]*domain.CommunicationItem{{childcareItem("a1", time.Now())}},
	}

	results, errs := fix.uc.SyncAll(context.Background(), nil)
	assert.Error(t, errs[domain.SourceMail])
	assert.NoError(t, errs[domain.SourceChildcare])
	assert.Equal(t, 1, results[domain.SourceChildcare].Inserted)
	assert.NoError(t, errs[domain.SourceMessaging])
}

func TestUnknownSource(t *testing.T) {
	fix := newFixture(t, nil, nil, nil, nil, nil)
	_, err := fix.uc.SyncSource(context.Background(), domain.Source("carrier-pigeon"))
	assert.Error(t, err)
}
