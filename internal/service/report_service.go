package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html"
	"strings"
	"time"

	"cleaning-manager/internal/model"
	"cleaning-manager/internal/repository"
)

// ReportService builds progress summaries for scheduled notifications.
// It reads straight from the store so it works for users without a live session.
type ReportService struct {
	store DocumentStore
	appID string
}

func NewReportService(store DocumentStore, appID string) *ReportService {
	return &ReportService{store: store, appID: appID}
}

// ErrNoChecklist means the user never opened the checklist.
var ErrNoChecklist = errors.New("no checklist stored")

// ProgressSummary renders the stored checklist of user as Telegram HTML.
func (s *ReportService) ProgressSummary(ctx context.Context, user model.User, now time.Time) (string, error) {
	var doc model.CatalogDocument
	if err := s.store.GetDocument(ctx, CatalogPath(s.appID, user.ChecklistID()), &doc); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return "", ErrNoChecklist
		}
		return "", err
	}

	bodies, err := s.store.ListDocuments(ctx, HistoryCollection(s.appID, user.ChecklistID()))
	if err != nil {
		return "", err
	}

	catalog := doc.Categories
	var builder strings.Builder
	builder.WriteString("📋 <b>우리집 대청소 현황</b>\n")
	builder.WriteString(fmt.Sprintf("🗓 %s\n\n", now.Format("2006.01.02")))
	builder.WriteString(fmt.Sprintf("전체 진행률: <b>%d%%</b> (%d/%d)\n\n", catalog.Progress(), model.CountCompleted(catalog.AllTasks()), len(catalog.AllTasks())))

	var pending []string
	for _, cat := range catalog.Categories() {
		builder.WriteString(formatCategoryLine(cat))
		if len(cat.Tasks) > 0 && cat.Progress() < 100 {
			pending = append(pending, cat.Name)
		}
	}

	if len(pending) == 0 {
		builder.WriteString("\n🎉 모든 구역을 끝냈어요! /archive 로 이번 달 기록을 남겨 보세요.\n")
	} else {
		builder.WriteString(fmt.Sprintf("\n🧹 남은 구역: %s\n", html.EscapeString(strings.Join(pending, ", "))))
	}

	label := model.DateLabel(now)
	if !hasArchive(bodies, label) {
		builder.WriteString(fmt.Sprintf("📦 %s 백업이 아직 없습니다.\n", label))
	}

	return strings.TrimSpace(builder.String()), nil
}

func formatCategoryLine(cat model.Category) string {
	icon := "⬜"
	switch p := cat.Progress(); {
	case len(cat.Tasks) == 0:
		icon = "▫️"
	case p == 100:
		icon = "✅"
	case p > 0:
		icon = "🟡"
	}
	return fmt.Sprintf("%s %s %d%% (%d/%d)\n", icon, html.EscapeString(cat.Name), cat.Progress(), model.CountCompleted(cat.Tasks), len(cat.Tasks))
}

func hasArchive(bodies []json.RawMessage, label string) bool {
	for _, body := range bodies {
		var head struct {
			Date string `json:"date"`
		}
		if err := json.Unmarshal(body, &head); err == nil && head.Date == label {
			return true
		}
	}
	return false
}
