package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/service"
)

func renderOverview(catalog model.Catalog, syncing bool) (string, tgbotapi.InlineKeyboardMarkup) {
	all := catalog.AllTasks()

	var builder strings.Builder
	builder.WriteString("🧹 <b>우리집 대청소 체크리스트</b>\n")
	builder.WriteString(fmt.Sprintf("전체 진행률: <b>%d%%</b> (%d/%d)\n", catalog.Progress(), model.CountCompleted(all), len(all)))
	if syncing {
		builder.WriteString(syncingNotice + "\n")
	}
	builder.WriteString("\n방을 눌러 항목을 확인하세요.")

	var rows [][]tgbotapi.InlineKeyboardButton
	var row []tgbotapi.InlineKeyboardButton
	for i, cat := range catalog.Categories() {
		label := fmt.Sprintf("%s %s %d%%", progressIcon(cat), cat.Name, cat.Progress())
		row = append(row, tgbotapi.NewInlineKeyboardButtonData(label, cbCategoryPfx+strconv.Itoa(i)))
		if len(row) == 2 {
			rows = append(rows, row)
			row = nil
		}
	}
	if len(row) > 0 {
		rows = append(rows, row)
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData(menuLabelArchive, cbArchive),
		tgbotapi.NewInlineKeyboardButtonData(menuLabelHistory, cbHistory),
	))

	return builder.String(), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func renderCategory(catalog model.Catalog, category string, syncing bool) (string, tgbotapi.InlineKeyboardMarkup) {
	idx := indexOf(catalog.Names(), category)
	tasks, _ := catalog.Tasks(category)

	var builder strings.Builder
	builder.WriteString(fmt.Sprintf("🏠 <b>%s</b> · %d%% (%d/%d)\n", escape(category), model.Progress(tasks), model.CountCompleted(tasks), len(tasks)))
	if syncing {
		builder.WriteString(syncingNotice + "\n")
	}
	if len(tasks) == 0 {
		builder.WriteString("\n아직 항목이 없습니다.")
	}

	var rows [][]tgbotapi.InlineKeyboardButton
	for _, task := range tasks {
		toggle := fmt.Sprintf("%s%d:%d", cbTogglePfx, idx, task.ID)
		remove := fmt.Sprintf("%s%d:%d", cbRemovePfx, idx, task.ID)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(fmt.Sprintf("%s %s", checkIcon(task.Completed), shortText(task.Text, 28)), toggle),
			tgbotapi.NewInlineKeyboardButtonData("🗑", remove),
		))
	}
	rows = append(rows, tgbotapi.NewInlineKeyboardRow(
		tgbotapi.NewInlineKeyboardButtonData("⬅️ 전체 보기", cbOverview),
		tgbotapi.NewInlineKeyboardButtonData("➕ 추가", cbAddPfx+strconv.Itoa(idx)),
	))

	return strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(rows...)
}

// renderHistory reports false when there is nothing to attach buttons to.
func (b *Bot) renderHistory(s *service.Session) (string, tgbotapi.InlineKeyboardMarkup, bool) {
	records := s.History()
	if len(records) == 0 {
		return "🗂 아직 백업된 기록이 없습니다. 📦 백업하기로 이번 달 기록을 남겨 보세요.", tgbotapi.InlineKeyboardMarkup{}, false
	}
	expanded, hasExpanded := s.ExpandedRecord()

	var builder strings.Builder
	builder.WriteString("🗂 <b>백업 내역</b>\n")
	var rows [][]tgbotapi.InlineKeyboardButton
	for _, record := range records {
		open := hasExpanded && record.Timestamp == expanded
		builder.WriteString(fmt.Sprintf("\n📅 <b>%s</b> · %d%% · %s\n", escape(record.Date), record.Progress, b.formatTimestamp(record.Timestamp)))
		if open {
			builder.WriteString(formatRecordDetail(record.Data))
		} else if preview := formatPreview(record.Data); preview != "" {
			builder.WriteString("   " + preview + "\n")
		}

		detail := "🔍 " + record.Date + " 자세히"
		if open {
			detail = "🔼 " + record.Date + " 접기"
		}
		ts := strconv.FormatInt(record.Timestamp, 10)
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(detail, cbDetailPfx+ts),
			tgbotapi.NewInlineKeyboardButtonData("🗑 삭제", cbDropPfx+ts),
		))
	}
	return strings.TrimSpace(builder.String()), tgbotapi.NewInlineKeyboardMarkup(rows...), true
}

func (b *Bot) formatTimestamp(ms int64) string {
	return time.UnixMilli(ms).In(b.location).Format("2006.01.02 15:04")
}

// formatPreview summarises the first few rooms of an archived checklist.
func formatPreview(catalog model.Catalog) string {
	categories := catalog.Categories()
	if len(categories) > previewCount {
		categories = categories[:previewCount]
	}
	parts := make([]string, 0, len(categories))
	for _, cat := range categories {
		parts = append(parts, fmt.Sprintf("%s %d%%", escape(cat.Name), cat.Progress()))
	}
	preview := strings.Join(parts, previewDivider)
	if catalog.Len() > previewCount {
		preview += " …"
	}
	return preview
}

func formatRecordDetail(catalog model.Catalog) string {
	var builder strings.Builder
	for _, cat := range catalog.Categories() {
		builder.WriteString(fmt.Sprintf("   <b>%s</b> %d%%\n", escape(cat.Name), cat.Progress()))
		for _, task := range cat.Tasks {
			builder.WriteString(fmt.Sprintf("     %s %s\n", checkIcon(task.Completed), escape(task.Text)))
		}
	}
	return builder.String()
}

func progressIcon(cat model.Category) string {
	switch p := cat.Progress(); {
	case len(cat.Tasks) == 0:
		return "▫️"
	case p == 100:
		return "✅"
	case p > 0:
		return "🟡"
	default:
		return "⬜"
	}
}

func checkIcon(done bool) string {
	if done {
		return "✅"
	}
	return "⬜"
}

func indexOf(names []string, name string) int {
	for i, n := range names {
		if n == name {
			return i
		}
	}
	return -1
}

func shortText(text string, maxLen int) string {
	clean := strings.TrimSpace(strings.ReplaceAll(text, "\n", " "))
	runes := []rune(clean)
	if len(runes) <= maxLen {
		return clean
	}
	if maxLen <= 1 {
		return string(runes[:maxLen])
	}
	return string(runes[:maxLen-1]) + "…"
}
