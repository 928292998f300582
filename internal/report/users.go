// Package report выгрузки для админа в Excel.
package report

import (
	"bytes"
	"fmt"
	"time"

	"github.com/xuri/excelize/v2"

	"github.com/Spok95/subaccess-bot/internal/domain/accounts"
)

const usersSheet = "Пользователи"

// Users .xlsx со всеми аккаунтами; даты в loc. Статус считается по now,
// а не по сохранённому флагу.
func Users(list []accounts.Account, now time.Time, loc *time.Location) ([]byte, error) {
	if loc == nil {
		loc = time.UTC
	}
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	sheet := f.GetSheetName(f.GetActiveSheetIndex())
	if err := f.SetSheetName(sheet, usersSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}

	header := []interface{}{
		"user_id",
		"username",
		"Телефон",
		"Подписка до",
		"Активна",
		"Добавлен в канал",
		"Удалён из канала",
		"Создан",
	}
	if err := f.SetSheetRow(usersSheet, "A1", &header); err != nil {
		return nil, fmt.Errorf("header: %w", err)
	}

	for i, a := range list {
		end := ""
		if a.SubscriptionEnd != nil {
			end = a.SubscriptionEnd.In(loc).Format("2006-01-02 15:04")
		}
		active := a.IsActive && a.SubscriptionEnd != nil && a.SubscriptionEnd.After(now)
		row := []interface{}{
			a.UserID,
			deref(a.Username),
			deref(a.Phone),
			end,
			yesNo(active),
			yesNo(a.AddedToChannel),
			yesNo(a.ChannelMemberRemoved),
			a.CreatedAt.In(loc).Format("2006-01-02 15:04"),
		}
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		if err := f.SetSheetRow(usersSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("row %d: %w", i+2, err)
		}
	}
	_ = f.SetColWidth(usersSheet, "A", "H", 18)

	buf := &bytes.Buffer{}
	if err := f.Write(buf); err != nil {
		return nil, fmt.Errorf("write: %w", err)
	}
	return buf.Bytes(), nil
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func yesNo(b bool) string {
	if b {
		return "да"
	}
	return "нет"
}
