package bot

import (
	"context"
	"path/filepath"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
	"cleaning-manager/internal/service"
)

const chatID int64 = 100

// fakeSender records everything the bot sends.
type fakeSender struct {
	mu       sync.Mutex
	sent     []tgbotapi.Chattable
	requests []tgbotapi.Chattable
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, c)
	return tgbotapi.Message{MessageID: len(f.sent)}, nil
}

func (f *fakeSender) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.requests = append(f.requests, c)
	return &tgbotapi.APIResponse{Ok: true}, nil
}

func (f *fakeSender) texts() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, 0, len(f.sent))
	for _, c := range f.sent {
		out = append(out, textOf(c))
	}
	return out
}

func (f *fakeSender) last() tgbotapi.Chattable {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.sent) == 0 {
		return nil
	}
	return f.sent[len(f.sent)-1]
}

func (f *fakeSender) reset() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = nil
	f.requests = nil
}

func textOf(c tgbotapi.Chattable) string {
	switch m := c.(type) {
	case tgbotapi.MessageConfig:
		return m.Text
	case tgbotapi.EditMessageTextConfig:
		return m.Text
	}
	return ""
}

func joined(f *fakeSender) string {
	return strings.Join(f.texts(), "\n---\n")
}

type failingProvider struct{}

func (failingProvider) Authenticate(context.Context, service.Credential) (string, error) {
	return "", service.ErrAuthFailed
}

func testSeed() model.Catalog {
	return model.NewCatalog(
		model.Category{Name: "안방", Tasks: []model.Task{{ID: 1, Text: "안방 침대 및 청소"}, {ID: 2, Text: "안방 책장 정리"}}},
		model.Category{Name: "주방", Tasks: []model.Task{{ID: 22, Text: "식탁 위 수납"}, {ID: 23, Text: "싱크대 위"}}},
		model.Category{Name: "욕실", Tasks: []model.Task{{ID: 33, Text: "안방 욕실"}}},
	)
}

func newTestBot(t *testing.T, provider service.IdentityProvider) (*Bot, *fakeSender) {
	t.Helper()
	db, err := repository.NewDB(filepath.Join(t.TempDir(), "bot.db"))
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})

	users := repository.NewUserRepository(db)
	store := repository.NewDocumentRepository(db)
	if provider == nil {
		provider = service.NewAuthService(users)
	}
	sessions := service.NewSessionManager(store, provider, service.SessionConfig{
		AppID:     "cleaning-test",
		Seed:      testSeed(),
		Location:  time.UTC,
		SyncDelay: time.Millisecond,
	})
	t.Cleanup(sessions.CloseAll)

	api := &fakeSender{}
	return newBot(api, sessions, service.NewReportService(store, "cleaning-test"), users, time.UTC), api
}

func textMessage(text string) tgbotapi.Update {
	msg := &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: chatID, FirstName: "민지"},
		Chat:      &tgbotapi.Chat{ID: chatID, Type: "private"},
		Text:      text,
	}
	if strings.HasPrefix(text, "/") {
		end := strings.IndexByte(text, ' ')
		if end < 0 {
			end = len(text)
		}
		msg.Entities = []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: end}}
	}
	return tgbotapi.Update{Message: msg}
}

func callback(data string) tgbotapi.Update {
	return tgbotapi.Update{CallbackQuery: &tgbotapi.CallbackQuery{
		ID:      "cb",
		From:    &tgbotapi.User{ID: chatID},
		Message: &tgbotapi.Message{MessageID: 7, Chat: &tgbotapi.Chat{ID: chatID, Type: "private"}},
		Data:    data,
	}}
}

func session(t *testing.T, b *Bot) *service.Session {
	t.Helper()
	s, ok := b.sessions.Lookup(chatID)
	require.True(t, ok)
	return s
}

func TestBot_StartShowsOverview(t *testing.T) {
	b, api := newTestBot(t, nil)
	b.handleUpdate(context.Background(), textMessage("/start"))

	out := joined(api)
	assert.Contains(t, out, "안녕하세요, 민지님")
	assert.Contains(t, out, session(t, b).Identity())
	assert.Contains(t, out, "전체 진행률: <b>0%</b> (0/5)")

	msg, ok := api.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	markup, ok := msg.ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	require.True(t, ok)
	first := markup.InlineKeyboard[0][0]
	require.NotNil(t, first.CallbackData)
	assert.Equal(t, "c:0", *first.CallbackData)
	assert.Equal(t, "⬜ 안방 0%", first.Text)
}

func TestBot_ToggleEditsCategoryInPlace(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/list"))
	api.reset()

	b.handleUpdate(ctx, callback("t:1:22"))

	edit, ok := api.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Equal(t, 7, edit.MessageID)
	assert.Contains(t, edit.Text, "<b>주방</b> · 50% (1/2)")
	require.NotNil(t, edit.ReplyMarkup)
	assert.Equal(t, "✅ 식탁 위 수납", edit.ReplyMarkup.InlineKeyboard[0][0].Text)

	tasks, _ := session(t, b).Catalog().Tasks("주방")
	assert.True(t, tasks[0].Completed)

	b.handleUpdate(ctx, callback("t:1:22"))
	tasks, _ = session(t, b).Catalog().Tasks("주방")
	assert.False(t, tasks[0].Completed, "toggling twice restores the task")
}

func TestBot_RemoveFromCategory(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/list"))

	b.handleUpdate(ctx, callback("d:0:2"))

	tasks, _ := session(t, b).Catalog().Tasks("안방")
	require.Len(t, tasks, 1)
	assert.Equal(t, int64(1), tasks[0].ID)

	api.mu.Lock()
	ack, ok := api.requests[len(api.requests)-1].(tgbotapi.CallbackConfig)
	api.mu.Unlock()
	require.True(t, ok)
	assert.Equal(t, "🗑 항목이 삭제되었습니다.", ack.Text)
}

func TestBot_StaleCallbackIsIgnored(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/list"))
	api.reset()

	b.handleUpdate(ctx, callback("t:9:22"))
	b.handleUpdate(ctx, callback("c:x"))
	assert.Empty(t, api.texts())
	assert.Equal(t, 0, session(t, b).Catalog().Progress())
}

func TestBot_AddConversation(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, textMessage(menuLabelAdd))
	assert.Contains(t, joined(api), "어느 방에 추가할까요?")

	b.handleUpdate(ctx, textMessage("베란다"))
	assert.Contains(t, joined(api), "목록에 있는 방을 선택해 주세요.")

	b.handleUpdate(ctx, textMessage("욕실"))
	b.handleUpdate(ctx, textMessage("   "))
	assert.Contains(t, joined(api), "내용을 입력해 주세요.")
	assert.True(t, b.hasConversation(chatID), "empty text keeps the dialog open")

	b.handleUpdate(ctx, textMessage("수건 교체"))
	assert.Contains(t, joined(api), "새 항목이 추가되었습니다.")
	assert.False(t, b.hasConversation(chatID))

	tasks, _ := session(t, b).Catalog().Tasks("욕실")
	require.Len(t, tasks, 2)
	assert.Equal(t, "수건 교체", tasks[1].Text)
	assert.False(t, tasks[1].Completed)
}

func TestBot_AddDefaultsToKitchen(t *testing.T) {
	b, _ := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, textMessage("/add"))
	b.handleUpdate(ctx, textMessage(btnDefaultCategory))
	b.handleUpdate(ctx, textMessage("행주 삶기"))

	b.handleUpdate(ctx, textMessage("/add 화분 물주기"))
	b.handleUpdate(ctx, textMessage("/add 안방 이불 빨래"))

	kitchen, _ := session(t, b).Catalog().Tasks("주방")
	require.Len(t, kitchen, 4)
	assert.Equal(t, "행주 삶기", kitchen[2].Text)
	assert.Equal(t, "화분 물주기", kitchen[3].Text)

	bedroom, _ := session(t, b).Catalog().Tasks("안방")
	assert.Equal(t, "이불 빨래", bedroom[len(bedroom)-1].Text)
}

func TestBot_ResetNeedsConfirmation(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/list"))
	b.handleUpdate(ctx, callback("t:2:33"))

	b.handleUpdate(ctx, textMessage("/reset"))
	assert.Contains(t, joined(api), "체크를 모두 해제할까요?")
	b.handleUpdate(ctx, textMessage(btnCancel))
	assert.Equal(t, 20, session(t, b).Catalog().Progress())

	b.handleUpdate(ctx, textMessage(menuLabelReset))
	b.handleUpdate(ctx, textMessage(btnConfirm))
	assert.Contains(t, joined(api), "진행 상황이 초기화되었습니다.")
	assert.Equal(t, 0, session(t, b).Catalog().Progress())
	assert.Equal(t, 5, len(session(t, b).Catalog().AllTasks()))
}

func TestBot_ArchiveAndHistory(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()

	b.handleUpdate(ctx, textMessage("/history"))
	assert.Contains(t, joined(api), "아직 백업된 기록이 없습니다.")

	b.handleUpdate(ctx, textMessage("/archive"))
	label := model.DateLabel(time.Now().In(time.UTC))
	assert.Contains(t, joined(api), label+" 기록이 서버에 백업되었습니다.")

	history := session(t, b).History()
	require.Len(t, history, 1)
	ts := history[0].Timestamp

	api.reset()
	b.handleUpdate(ctx, textMessage(menuLabelHistory))
	out := joined(api)
	assert.Contains(t, out, "백업 내역")
	assert.Contains(t, out, "안방 0% · 주방 0% · 욕실 0%")
	assert.NotContains(t, out, "식탁 위 수납")

	b.handleUpdate(ctx, callback(cbDetailPfx+strconv.FormatInt(ts, 10)))
	edit, ok := api.last().(tgbotapi.EditMessageTextConfig)
	require.True(t, ok)
	assert.Contains(t, edit.Text, "⬜ 식탁 위 수납")

	b.handleUpdate(ctx, callback(cbDropPfx+strconv.FormatInt(ts, 10)))
	assert.Contains(t, joined(api), label+" 기록을 삭제할까요?")
	b.handleUpdate(ctx, textMessage(btnConfirm))
	assert.Contains(t, joined(api), "기록이 삭제되었습니다.")
	assert.Empty(t, session(t, b).History())
}

func TestBot_LoadingWhenSignInFails(t *testing.T) {
	b, api := newTestBot(t, failingProvider{})
	ctx := context.Background()

	b.handleUpdate(ctx, textMessage("/list"))
	b.handleUpdate(ctx, callback("t:1:22"))
	b.handleUpdate(ctx, textMessage("/archive"))

	for _, text := range api.texts() {
		assert.Equal(t, loadingNotice, text)
	}
	assert.Len(t, api.texts(), 3)
}

func TestBot_Logout(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/start"))
	identity := session(t, b).Identity()

	b.handleUpdate(ctx, textMessage("/logout"))
	assert.Contains(t, joined(api), "로그아웃했습니다")
	_, ok := b.sessions.Lookup(chatID)
	assert.False(t, ok)

	b.handleUpdate(ctx, textMessage("/logout"))
	assert.Contains(t, joined(api), "로그인된 세션이 없습니다.")

	b.handleUpdate(ctx, textMessage("/start"))
	assert.Equal(t, identity, session(t, b).Identity())
}

func TestBot_ShareCodeSurvivesRestart(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	owner, err := b.users.UpsertFromTelegram(ctx, 200, "준호", "", "")
	require.NoError(t, err)
	code := owner.UID

	b.handleUpdate(ctx, textMessage("/start "+code))
	require.Equal(t, code, session(t, b).Identity())
	b.handleUpdate(ctx, callback("t:2:33"))

	assert.Eventually(t, func() bool {
		api.reset()
		b.handleUpdate(ctx, textMessage("/report"))
		return strings.Contains(textOf(api.last()), "전체 진행률: <b>20%</b> (1/5)")
	}, 2*time.Second, 10*time.Millisecond)

	b.sessions.CloseAll()
	b.handleUpdate(ctx, textMessage("/list"))
	assert.Equal(t, code, session(t, b).Identity(), "the shared list reopens after a restart")
	assert.Equal(t, 20, session(t, b).Catalog().Progress())

	api.reset()
	require.NoError(t, b.SendProgressReports(ctx))
	for _, text := range api.texts() {
		assert.Contains(t, text, "전체 진행률: <b>20%</b> (1/5)")
	}
	assert.Len(t, api.texts(), 2, "owner and member get the same list")
}

func TestBot_UnknownShareCode(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/start"))
	own := session(t, b).Identity()

	b.handleUpdate(ctx, textMessage("/start "+uuid.NewString()))
	assert.Contains(t, textOf(api.last()), "공유 코드를 찾을 수 없습니다.")
	_, ok := b.sessions.Lookup(chatID)
	assert.False(t, ok)

	b.handleUpdate(ctx, textMessage("/list"))
	assert.Equal(t, own, session(t, b).Identity())
}

func TestBot_SendProgressReports(t *testing.T) {
	b, api := newTestBot(t, nil)
	ctx := context.Background()
	b.handleUpdate(ctx, textMessage("/start"))
	b.handleUpdate(ctx, callback("t:2:33"))
	b.sessions.CloseAll()
	api.reset()

	require.NoError(t, b.SendProgressReports(ctx))

	msg, ok := api.last().(tgbotapi.MessageConfig)
	require.True(t, ok)
	assert.Equal(t, chatID, msg.ChatID)
	assert.Contains(t, msg.Text, "전체 진행률: <b>20%</b> (1/5)")
	assert.Contains(t, msg.Text, "✅ 욕실 100% (1/1)")
}

func TestSplitAddArguments(t *testing.T) {
	catalog := testSeed()
	cat, text := splitAddArguments(catalog, "욕실 수건 교체")
	assert.Equal(t, "욕실", cat)
	assert.Equal(t, "수건 교체", text)

	cat, text = splitAddArguments(catalog, "거실 소파")
	assert.Equal(t, "주방", cat)
	assert.Equal(t, "거실 소파", text)

	assert.Equal(t, "안방", defaultCategory(model.NewCatalog(model.Category{Name: "안방"})))
}

func TestFormatPreview(t *testing.T) {
	catalog := testSeed()
	assert.Equal(t, "안방 0% · 주방 0% · 욕실 0%", formatPreview(catalog))

	more := model.NewCatalog(append(catalog.Categories(), model.Category{Name: "거실"})...)
	assert.Equal(t, "안방 0% · 주방 0% · 욕실 0% …", formatPreview(more))
}
