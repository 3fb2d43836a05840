package bot

import (
	"context"
	"errors"
	"fmt"
	"html"
	"log"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
	"cleaning-manager/internal/service"
)

type conversationStage int

const (
	stageNone conversationStage = iota
	stageCategory
	stageText
)

const (
	cbOverview     = "o"
	cbArchive      = "a"
	cbHistory      = "h"
	cbCategoryPfx  = "c:"
	cbTogglePfx    = "t:"
	cbRemovePfx    = "d:"
	cbAddPfx       = "n:"
	cbDetailPfx    = "h:"
	cbDropPfx      = "hd:"
	previewCount   = 3
	defaultRoom    = "주방"
	loadingNotice  = "⏳ 데이터를 동기화 중입니다..."
	syncingNotice  = "☁️ 저장 중..."
	previewDivider = " · "
)

const (
	btnConfirm         = "✅ 확인"
	btnCancel          = "↩️ 취소"
	btnCancelDialog    = "⏪ 입력 취소"
	btnDefaultCategory = "⏭ 기본(주방)"
	menuLabelList      = "📋 현황 리스트"
	menuLabelAdd       = "➕ 항목 추가"
	menuLabelHistory   = "🗂 백업 내역"
	menuLabelArchive   = "📦 백업하기"
	menuLabelReset     = "🔄 체크 초기화"
	menuLabelHelp      = "ℹ️ 도움말"
)

type conversationState struct {
	stage    conversationStage
	category string
}

type confirmationAction int

const (
	actionReset confirmationAction = iota
	actionDeleteRecord
)

type confirmationRequest struct {
	action    confirmationAction
	timestamp int64
	label     string
}

// sender is the part of the Telegram API the bot talks to.
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// Bot aggregates Telegram API with services.
type Bot struct {
	api           sender
	updates       *tgbotapi.BotAPI
	sessions      *service.SessionManager
	reports       *service.ReportService
	users         *repository.UserRepository
	location      *time.Location
	conversations map[int64]*conversationState
	confirmations map[int64]confirmationRequest
	mu            sync.Mutex
}

func New(token string, sessions *service.SessionManager, reports *service.ReportService, users *repository.UserRepository, loc *time.Location) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("create bot api: %w", err)
	}

	log.Printf("[info] bot authorized on account %s", api.Self.UserName)

	b := newBot(api, sessions, reports, users, loc)
	b.updates = api
	return b, nil
}

func newBot(api sender, sessions *service.SessionManager, reports *service.ReportService, users *repository.UserRepository, loc *time.Location) *Bot {
	if loc == nil {
		loc = time.Local
	}
	return &Bot{
		api:           api,
		sessions:      sessions,
		reports:       reports,
		users:         users,
		location:      loc,
		conversations: make(map[int64]*conversationState),
		confirmations: make(map[int64]confirmationRequest),
	}
}

// Start begins polling updates until ctx is cancelled.
func (b *Bot) Start(ctx context.Context) error {
	if b.updates == nil {
		return errors.New("bot has no update source")
	}
	updateConfig := tgbotapi.NewUpdate(0)
	updateConfig.Timeout = 60
	updates := b.updates.GetUpdatesChan(updateConfig)

	log.Println("[info] start polling updates")

	go func() {
		<-ctx.Done()
		b.updates.StopReceivingUpdates()
	}()

	for update := range updates {
		b.handleUpdate(ctx, update)
	}

	return nil
}

func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	switch {
	case update.CallbackQuery != nil:
		if err := b.handleCallback(ctx, update.CallbackQuery); err != nil {
			log.Printf("handle callback: %v", err)
		}
	case update.Message != nil:
		if update.Message.Chat == nil || !update.Message.Chat.IsPrivate() {
			return
		}
		if err := b.handleMessage(ctx, update.Message); err != nil {
			log.Printf("handle message: %v", err)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.From == nil {
		return nil
	}

	if !msg.IsCommand() && isCancelDialogInput(msg.Text) {
		b.clearConversation(msg.From.ID)
		b.clearConfirmation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ 입력을 취소했습니다.")
	}

	if !msg.IsCommand() {
		if handled, err := b.handleMenuAlias(ctx, msg); handled {
			return err
		}
	}

	if msg.IsCommand() {
		log.Printf("[info] command from %d: /%s %s", msg.From.ID, msg.Command(), msg.CommandArguments())
		return b.handleCommand(ctx, msg)
	}

	if pending, ok := b.getConfirmation(msg.From.ID); ok {
		return b.handleConfirmationResponse(ctx, msg, pending)
	}

	if b.hasConversation(msg.From.ID) {
		return b.handleConversation(ctx, msg)
	}

	return b.sendText(msg.Chat.ID, "무슨 말인지 잘 모르겠어요. 아래 메뉴를 누르거나 /help 를 입력해 보세요.")
}

func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) error {
	b.clearConfirmation(msg.From.ID)
	switch msg.Command() {
	case "start":
		return b.handleStart(ctx, msg)
	case "help":
		return b.handleHelp(msg)
	case "list":
		return b.handleList(ctx, msg)
	case "add":
		return b.handleAdd(ctx, msg)
	case "archive":
		return b.handleArchive(ctx, msg)
	case "history":
		return b.handleHistory(ctx, msg)
	case "reset":
		return b.askResetConfirmation(ctx, msg)
	case "report":
		return b.handleReport(ctx, msg)
	case "logout":
		return b.handleLogout(msg)
	case "cancel":
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "⏪ 입력을 취소했습니다.")
	default:
		return b.sendText(msg.Chat.ID, "지원하지 않는 명령입니다. /help 를 확인해 주세요.")
	}
}

func (b *Bot) handleStart(ctx context.Context, msg *tgbotapi.Message) error {
	cred := credential(msg.From)
	if token := strings.TrimSpace(msg.CommandArguments()); token != "" {
		// A share code switches this chat to another checklist.
		cred.Token = token
		b.sessions.Close(msg.From.ID)
	}

	s := b.sessions.Open(ctx, cred)
	if cred.Token != "" && s.State() == service.StateAuthFailed {
		// Drop the failed session so the next command signs in without the code.
		b.sessions.Close(msg.From.ID)
		return b.sendText(msg.Chat.ID, "🔑 공유 코드를 찾을 수 없습니다. 코드를 다시 확인해 주세요.")
	}
	if s.State() != service.StateReady {
		return b.sendText(msg.Chat.ID, loadingNotice)
	}

	name := strings.TrimSpace(msg.From.FirstName)
	if name == "" {
		name = "친구"
	}
	text := fmt.Sprintf(
		"👋 안녕하세요, %s님!\n<b>우리집 대청소 체크리스트입니다.</b>\n\n"+
			"방마다 할 일을 체크하고, 한 달에 한 번 진행 상황을 백업해 두세요.\n"+
			"공유 코드: <code>%s</code>\n"+
			"(다른 기기에서 <code>/start 공유코드</code> 로 같은 리스트를 열 수 있어요)",
		escape(name), escape(s.Identity()),
	)
	if err := b.sendText(msg.Chat.ID, text); err != nil {
		return err
	}
	return b.sendOverview(msg.Chat.ID, s)
}

func (b *Bot) handleHelp(msg *tgbotapi.Message) error {
	text := "ℹ️ <b>도움말</b>\n" +
		"• /list — 방별 진행 현황\n" +
		"• /add — 항목 추가 (예: <code>/add 주방 냉장고 정리</code>)\n" +
		"• /archive — 이번 달 기록 백업\n" +
		"• /history — 백업 내역 보기\n" +
		"• /reset — 모든 체크 해제\n" +
		"• /report — 진행 상황 요약\n" +
		"• /logout — 로그아웃\n" +
		"• /cancel — 입력 취소"
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleList(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}
	log.Printf("[info] list checklist user=%d", msg.From.ID)
	return b.sendOverview(msg.Chat.ID, s)
}

func (b *Bot) handleAdd(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}

	args := strings.TrimSpace(msg.CommandArguments())
	if args == "" {
		return b.startAddConversation(msg.Chat.ID, msg.From.ID, s, "")
	}
	if s.Catalog().Has(args) {
		return b.startAddConversation(msg.Chat.ID, msg.From.ID, s, args)
	}
	category, text := splitAddArguments(s.Catalog(), args)
	if err := b.finishAdd(msg.Chat.ID, msg.From.ID, s, category, text); !errors.Is(err, model.ErrEmptyText) {
		return err
	}
	return nil
}

func (b *Bot) startAddConversation(chatID, userID int64, s *service.Session, category string) error {
	log.Printf("[info] start add conversation user=%d", userID)
	if category != "" {
		b.setConversation(userID, &conversationState{stage: stageText, category: category})
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("✏️ <b>%s</b>에 추가할 내용을 입력하세요.", escape(category)), cancelKeyboard())
	}
	b.setConversation(userID, &conversationState{stage: stageCategory})
	return b.sendWithReplyMarkup(chatID, "🏷 어느 방에 추가할까요?", categoryKeyboard(s.Catalog()))
}

func (b *Bot) handleConversation(ctx context.Context, msg *tgbotapi.Message) error {
	state := b.getConversation(msg.From.ID)
	if state == nil {
		return nil
	}
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		b.clearConversation(msg.From.ID)
		return err
	}

	text := strings.TrimSpace(msg.Text)
	switch state.stage {
	case stageCategory:
		catalog := s.Catalog()
		category := text
		if isDefaultCategoryInput(text) {
			category = defaultCategory(catalog)
		}
		if !catalog.Has(category) {
			return b.sendWithReplyMarkup(msg.Chat.ID, "목록에 있는 방을 선택해 주세요.", categoryKeyboard(catalog))
		}
		state.category = category
		state.stage = stageText
		return b.sendWithReplyMarkup(msg.Chat.ID, fmt.Sprintf("✏️ <b>%s</b>에 추가할 내용을 입력하세요.", escape(category)), cancelKeyboard())
	case stageText:
		err := b.finishAdd(msg.Chat.ID, msg.From.ID, s, state.category, text)
		if errors.Is(err, model.ErrEmptyText) {
			return nil
		}
		b.clearConversation(msg.From.ID)
		return err
	default:
		b.clearConversation(msg.From.ID)
		return b.sendText(msg.Chat.ID, "입력이 초기화되었습니다. /add 로 다시 시작해 주세요.")
	}
}

// finishAdd returns model.ErrEmptyText after prompting again, so a
// conversation can stay open.
func (b *Bot) finishAdd(chatID, userID int64, s *service.Session, category, text string) error {
	task, err := s.AddTask(category, text)
	switch {
	case errors.Is(err, model.ErrEmptyText):
		if sendErr := b.sendText(chatID, "내용을 입력해 주세요."); sendErr != nil {
			return sendErr
		}
		return err
	case errors.Is(err, model.ErrUnknownCategory):
		return b.sendText(chatID, fmt.Sprintf("「%s」 방을 찾을 수 없습니다.", escape(category)))
	case err != nil:
		return b.sendText(chatID, fmt.Sprintf("항목을 추가하지 못했습니다: %s", escape(err.Error())))
	}

	log.Printf("[info] task added id=%d category=%s user=%d", task.ID, category, userID)
	if err := b.sendTextWithRemove(chatID, "✅ 새 항목이 추가되었습니다."); err != nil {
		return err
	}
	return b.sendCategory(chatID, s, category)
}

func (b *Bot) handleArchive(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}
	return b.archive(ctx, msg.Chat.ID, s)
}

func (b *Bot) archive(ctx context.Context, chatID int64, s *service.Session) error {
	record, err := s.Archive(ctx)
	if err != nil {
		return b.sendText(chatID, fmt.Sprintf("백업하지 못했습니다: %s", escape(err.Error())))
	}
	return b.sendText(chatID, fmt.Sprintf("📦 %s 기록이 서버에 백업되었습니다. (진행률 %d%%)", escape(record.Date), record.Progress))
}

func (b *Bot) handleHistory(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}
	return b.sendHistory(msg.Chat.ID, s)
}

func (b *Bot) askResetConfirmation(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}
	b.clearConversation(msg.From.ID)
	b.setConfirmation(msg.From.ID, confirmationRequest{action: actionReset})
	return b.sendWithReplyMarkup(msg.Chat.ID, "🔄 체크를 모두 해제할까요?", confirmKeyboard())
}

func (b *Bot) handleReport(ctx context.Context, msg *tgbotapi.Message) error {
	s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
	if s == nil {
		return err
	}
	user, err := b.users.FindByTelegramID(ctx, msg.From.ID)
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("요약을 만들지 못했습니다: %s", escape(err.Error())))
	}
	text, err := b.reports.ProgressSummary(ctx, *user, time.Now().In(b.location))
	if err != nil {
		return b.sendText(msg.Chat.ID, fmt.Sprintf("요약을 만들지 못했습니다: %s", escape(err.Error())))
	}
	return b.sendText(msg.Chat.ID, text)
}

func (b *Bot) handleLogout(msg *tgbotapi.Message) error {
	b.clearConversation(msg.From.ID)
	if !b.sessions.Close(msg.From.ID) {
		return b.sendText(msg.Chat.ID, "로그인된 세션이 없습니다.")
	}
	return b.sendTextWithRemove(msg.Chat.ID, "👋 로그아웃했습니다. /start 로 다시 시작할 수 있어요.")
}

func (b *Bot) handleConfirmationResponse(ctx context.Context, msg *tgbotapi.Message, req confirmationRequest) error {
	text := strings.TrimSpace(msg.Text)
	switch {
	case isConfirmInput(text):
		b.clearConfirmation(msg.From.ID)
		s, err := b.readySession(ctx, msg.Chat.ID, msg.From)
		if s == nil {
			return err
		}
		if req.action == actionDeleteRecord {
			return b.deleteRecordAndRefresh(ctx, msg.Chat.ID, s, req)
		}
		return b.resetAndRefresh(msg.Chat.ID, msg.From.ID, s)
	case isCancelInput(text):
		b.clearConfirmation(msg.From.ID)
		return b.sendMenuPlaceholder(msg.Chat.ID)
	default:
		prompt := "초기화를 확인하거나 취소해 주세요."
		if req.action == actionDeleteRecord {
			prompt = "기록 삭제를 확인하거나 취소해 주세요."
		}
		return b.sendWithReplyMarkup(msg.Chat.ID, prompt, confirmKeyboard())
	}
}

func (b *Bot) resetAndRefresh(chatID, userID int64, s *service.Session) error {
	if err := s.ResetAll(); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("초기화하지 못했습니다: %s", escape(err.Error())))
	}
	log.Printf("[info] checklist reset user=%d", userID)
	if err := b.sendTextWithRemove(chatID, "🔄 진행 상황이 초기화되었습니다."); err != nil {
		return err
	}
	return b.sendOverview(chatID, s)
}

func (b *Bot) deleteRecordAndRefresh(ctx context.Context, chatID int64, s *service.Session, req confirmationRequest) error {
	if err := s.DeleteRecord(ctx, req.timestamp, req.label); err != nil {
		return b.sendTextWithRemove(chatID, fmt.Sprintf("기록을 삭제하지 못했습니다: %s", escape(err.Error())))
	}
	if err := b.sendTextWithRemove(chatID, "🗑 기록이 삭제되었습니다."); err != nil {
		return err
	}
	return b.sendHistory(chatID, s)
}

// SendProgressReports sends a progress summary to every known user.
func (b *Bot) SendProgressReports(ctx context.Context) error {
	users, err := b.users.ListAll(ctx)
	if err != nil {
		return err
	}
	now := time.Now().In(b.location)
	for _, user := range users {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}
		text, err := b.reports.ProgressSummary(ctx, user, now)
		if errors.Is(err, service.ErrNoChecklist) {
			continue
		}
		if err != nil {
			log.Printf("build summary for user %d: %v", user.TelegramID, err)
			continue
		}
		if err := b.sendText(user.TelegramID, text); err != nil {
			log.Printf("send summary to %d: %v", user.TelegramID, err)
		}
	}
	return nil
}

func (b *Bot) handleCallback(ctx context.Context, cb *tgbotapi.CallbackQuery) error {
	if cb == nil || cb.From == nil || cb.Message == nil || cb.Message.Chat == nil {
		return nil
	}

	chatID := cb.Message.Chat.ID
	messageID := cb.Message.MessageID
	data := cb.Data

	s := b.sessions.Open(ctx, credential(cb.From))
	if s.State() != service.StateReady {
		b.ack(cb.ID, "")
		return b.sendText(chatID, loadingNotice)
	}

	switch {
	case data == cbOverview:
		b.ack(cb.ID, "")
		return b.editOverview(chatID, messageID, s)
	case data == cbArchive:
		b.ack(cb.ID, "")
		return b.archive(ctx, chatID, s)
	case data == cbHistory:
		b.ack(cb.ID, "")
		return b.sendHistory(chatID, s)
	case strings.HasPrefix(data, cbCategoryPfx):
		b.ack(cb.ID, "")
		category, ok := categoryAt(s.Catalog(), data, cbCategoryPfx)
		if !ok {
			return nil
		}
		return b.editCategory(chatID, messageID, s, category)
	case strings.HasPrefix(data, cbAddPfx):
		b.ack(cb.ID, "")
		category, ok := categoryAt(s.Catalog(), data, cbAddPfx)
		if !ok {
			return nil
		}
		return b.startAddConversation(chatID, cb.From.ID, s, category)
	case strings.HasPrefix(data, cbTogglePfx):
		category, id, ok := taskAt(s.Catalog(), data, cbTogglePfx)
		if !ok {
			b.ack(cb.ID, "")
			return nil
		}
		b.ack(cb.ID, "")
		if _, err := s.Toggle(category, id); err != nil {
			return err
		}
		return b.editCategory(chatID, messageID, s, category)
	case strings.HasPrefix(data, cbRemovePfx):
		category, id, ok := taskAt(s.Catalog(), data, cbRemovePfx)
		if !ok {
			b.ack(cb.ID, "")
			return nil
		}
		removed, err := s.RemoveTask(category, id)
		if err != nil {
			b.ack(cb.ID, "")
			return err
		}
		if removed {
			log.Printf("[info] task removed id=%d category=%s user=%d", id, category, cb.From.ID)
			b.ack(cb.ID, "🗑 항목이 삭제되었습니다.")
		} else {
			b.ack(cb.ID, "")
		}
		return b.editCategory(chatID, messageID, s, category)
	case strings.HasPrefix(data, cbDropPfx):
		b.ack(cb.ID, "")
		ts, err := strconv.ParseInt(strings.TrimPrefix(data, cbDropPfx), 10, 64)
		if err != nil {
			return nil
		}
		record, ok := s.FindRecord(ts)
		if !ok {
			return b.sendText(chatID, "이미 삭제된 기록입니다.")
		}
		b.clearConversation(cb.From.ID)
		b.setConfirmation(cb.From.ID, confirmationRequest{action: actionDeleteRecord, timestamp: record.Timestamp, label: record.Date})
		return b.sendWithReplyMarkup(chatID, fmt.Sprintf("🗑 %s 기록을 삭제할까요?", escape(record.Date)), confirmKeyboard())
	case strings.HasPrefix(data, cbDetailPfx):
		b.ack(cb.ID, "")
		ts, err := strconv.ParseInt(strings.TrimPrefix(data, cbDetailPfx), 10, 64)
		if err != nil {
			return nil
		}
		if _, err := s.ToggleDetail(ts); err != nil {
			return err
		}
		return b.editHistory(chatID, messageID, s)
	default:
		b.ack(cb.ID, "")
		return nil
	}
}

func (b *Bot) handleMenuAlias(ctx context.Context, msg *tgbotapi.Message) (bool, error) {
	text := strings.TrimSpace(msg.Text)
	switch text {
	case menuLabelList:
		return true, b.handleList(ctx, msg)
	case menuLabelAdd:
		return true, b.handleAdd(ctx, msg)
	case menuLabelHistory:
		return true, b.handleHistory(ctx, msg)
	case menuLabelArchive:
		return true, b.handleArchive(ctx, msg)
	case menuLabelReset:
		return true, b.askResetConfirmation(ctx, msg)
	case menuLabelHelp:
		return true, b.handleHelp(msg)
	default:
		return false, nil
	}
}

// readySession returns nil after telling the user to wait when the session
// cannot serve requests yet.
func (b *Bot) readySession(ctx context.Context, chatID int64, from *tgbotapi.User) (*service.Session, error) {
	s := b.sessions.Open(ctx, credential(from))
	if s.State() != service.StateReady {
		return nil, b.sendText(chatID, loadingNotice)
	}
	return s, nil
}

func (b *Bot) ack(callbackID, text string) {
	if _, err := b.api.Request(tgbotapi.NewCallback(callbackID, text)); err != nil {
		log.Printf("callback ack: %v", err)
	}
}

func (b *Bot) sendOverview(chatID int64, s *service.Session) error {
	text, markup := renderOverview(s.Catalog(), s.Syncing())
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) editOverview(chatID int64, messageID int, s *service.Session) error {
	text, markup := renderOverview(s.Catalog(), s.Syncing())
	return b.editMessage(chatID, messageID, text, markup)
}

func (b *Bot) sendCategory(chatID int64, s *service.Session, category string) error {
	text, markup := renderCategory(s.Catalog(), category, s.Syncing())
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) editCategory(chatID int64, messageID int, s *service.Session, category string) error {
	text, markup := renderCategory(s.Catalog(), category, s.Syncing())
	return b.editMessage(chatID, messageID, text, markup)
}

func (b *Bot) sendHistory(chatID int64, s *service.Session) error {
	text, markup, ok := b.renderHistory(s)
	if !ok {
		return b.sendText(chatID, text)
	}
	return b.sendWithReplyMarkup(chatID, text, markup)
}

func (b *Bot) editHistory(chatID int64, messageID int, s *service.Session) error {
	text, markup, ok := b.renderHistory(s)
	if !ok {
		edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
		edit.ParseMode = tgbotapi.ModeHTML
		_, err := b.api.Send(edit)
		return err
	}
	return b.editMessage(chatID, messageID, text, markup)
}

func (b *Bot) editMessage(chatID int64, messageID int, text string, markup tgbotapi.InlineKeyboardMarkup) error {
	edit := tgbotapi.NewEditMessageTextAndMarkup(chatID, messageID, text, markup)
	edit.ParseMode = tgbotapi.ModeHTML
	_, err := b.api.Send(edit)
	return err
}

func (b *Bot) sendText(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendTextWithRemove(chatID int64, text string) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = tgbotapi.NewRemoveKeyboard(true)
	if _, err := b.api.Send(msg); err != nil {
		return err
	}
	return b.sendMenuPlaceholder(chatID)
}

func (b *Bot) sendWithReplyMarkup(chatID int64, text string, markup interface{}) error {
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = markup
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) sendMenuPlaceholder(chatID int64) error {
	msg := tgbotapi.NewMessage(chatID, "🔹 메인 메뉴")
	msg.ParseMode = tgbotapi.ModeHTML
	msg.ReplyMarkup = mainMenuKeyboard()
	_, err := b.api.Send(msg)
	return err
}

func (b *Bot) getConfirmation(userID int64) (confirmationRequest, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	req, ok := b.confirmations[userID]
	return req, ok
}

func (b *Bot) setConfirmation(userID int64, req confirmationRequest) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.confirmations[userID] = req
}

func (b *Bot) clearConfirmation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.confirmations, userID)
}

func (b *Bot) setConversation(userID int64, state *conversationState) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.conversations[userID] = state
}

func (b *Bot) getConversation(userID int64) *conversationState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conversations[userID]
}

func (b *Bot) hasConversation(userID int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.conversations[userID]
	return ok
}

func (b *Bot) clearConversation(userID int64) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.conversations, userID)
}

func credential(from *tgbotapi.User) service.Credential {
	return service.Credential{
		TelegramID: from.ID,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
		Username:   from.UserName,
	}
}

// splitAddArguments reads "<room> <text>"; without a known room the whole
// argument is the text and the default room is used.
func splitAddArguments(catalog model.Catalog, args string) (string, string) {
	fields := strings.SplitN(args, " ", 2)
	if len(fields) == 2 && catalog.Has(fields[0]) {
		return fields[0], strings.TrimSpace(fields[1])
	}
	return defaultCategory(catalog), args
}

func defaultCategory(catalog model.Catalog) string {
	if catalog.Has(defaultRoom) {
		return defaultRoom
	}
	if names := catalog.Names(); len(names) > 0 {
		return names[0]
	}
	return ""
}

func categoryAt(catalog model.Catalog, data, prefix string) (string, bool) {
	idx, err := strconv.Atoi(strings.TrimPrefix(data, prefix))
	if err != nil {
		return "", false
	}
	names := catalog.Names()
	if idx < 0 || idx >= len(names) {
		return "", false
	}
	return names[idx], true
}

func taskAt(catalog model.Catalog, data, prefix string) (string, int64, bool) {
	raw := strings.TrimPrefix(data, prefix)
	sep := strings.IndexByte(raw, ':')
	if sep < 0 {
		return "", 0, false
	}
	category, ok := categoryAt(catalog, raw[:sep], "")
	if !ok {
		return "", 0, false
	}
	id, err := strconv.ParseInt(raw[sep+1:], 10, 64)
	if err != nil {
		return "", 0, false
	}
	return category, id, true
}

func confirmKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnConfirm),
			tgbotapi.NewKeyboardButton(btnCancel),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func mainMenuKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelList),
			tgbotapi.NewKeyboardButton(menuLabelAdd),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelHistory),
			tgbotapi.NewKeyboardButton(menuLabelArchive),
		),
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(menuLabelReset),
			tgbotapi.NewKeyboardButton(menuLabelHelp),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = false
	return kb
}

func cancelKeyboard() tgbotapi.ReplyKeyboardMarkup {
	kb := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(
			tgbotapi.NewKeyboardButton(btnCancelDialog),
		),
	)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

// categoryKeyboard lists the rooms two per row, in checklist order.
func categoryKeyboard(catalog model.Catalog) tgbotapi.ReplyKeyboardMarkup {
	var rows [][]tgbotapi.KeyboardButton
	var row []tgbotapi.KeyboardButton
	for _, name := range catalog.Names() {
		row = append(row, tgbotapi.NewKeyboardButton(name))
		if len(row) == 2 {
			rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, tgbotapi.NewKeyboardButtonRow(row...))
	}
	rows = append(rows, tgbotapi.NewKeyboardButtonRow(
		tgbotapi.NewKeyboardButton(btnDefaultCategory),
		tgbotapi.NewKeyboardButton(btnCancelDialog),
	))
	kb := tgbotapi.NewReplyKeyboard(rows...)
	kb.ResizeKeyboard = true
	kb.OneTimeKeyboard = true
	return kb
}

func isDefaultCategoryInput(text string) bool {
	value := strings.TrimSpace(text)
	return value == btnDefaultCategory || value == "-" || value == "기본"
}

func isConfirmInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnConfirm) || value == "확인" || value == "네" || value == "yes"
}

func isCancelInput(text string) bool {
	value := strings.TrimSpace(strings.ToLower(text))
	return value == strings.ToLower(btnCancel) || value == "취소" || value == "아니요" || value == "no"
}

func isCancelDialogInput(text string) bool {
	value := strings.TrimSpace(text)
	return value == btnCancelDialog || value == "입력 취소"
}

func escape(s string) string {
	return html.EscapeString(s)
}
