package services

import (
	"context"
	"fmt"

	"github.com/saeid-a/SoccerCoachBack/internal/auth"
	"github.com/saeid-a/SoccerCoachBack/internal/models"
	"github.com/saeid-a/SoccerCoachBack/internal/repository"
	"github.com/xuri/excelize/v2"
)

const exportSheet = "Sessions"

var exportHeader = []any{
	"ID", "Date", "Time", "Duration (min)", "Type", "Status", "Price",
	"Student", "Participants", "Capacity", "Location", "Notes",
}

// ExportSessions renders every session of the coach into an xlsx workbook.
func (s *SessionService) ExportSessions(ctx context.Context, identity *auth.Identity) ([]byte, error) {
	if err := auth.Authorize(identity, models.RoleCoach); err != nil {
		return nil, err
	}

	sessions, err := s.sessions.List(ctx, repository.SessionListFilter{
		ActorID: identity.UserID,
		Role:    models.RoleCoach,
	})
	if err != nil {
		return nil, err
	}
	return buildSessionsWorkbook(sessions)
}

func buildSessionsWorkbook(sessions []models.SessionDetail) ([]byte, error) {
	f := excelize.NewFile()
	defer func() { _ = f.Close() }()

	if err := f.SetSheetName("Sheet1", exportSheet); err != nil {
		return nil, fmt.Errorf("rename sheet: %w", err)
	}
	if err := f.SetSheetRow(exportSheet, "A1", &exportHeader); err != nil {
		return nil, fmt.Errorf("write header: %w", err)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return nil, fmt.Errorf("create header style: %w", err)
	}
	lastColumn, err := excelize.ColumnNumberToName(len(exportHeader))
	if err != nil {
		return nil, err
	}
	if err := f.SetCellStyle(exportSheet, "A1", lastColumn+"1", headerStyle); err != nil {
		return nil, fmt.Errorf("style header: %w", err)
	}
	if err := f.SetColWidth(exportSheet, "A", lastColumn, 16); err != nil {
		return nil, fmt.Errorf("set column width: %w", err)
	}

	for i, session := range sessions {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return nil, err
		}
		row := []any{
			session.ID,
			session.Date,
			session.Time,
			session.DurationMinutes,
			string(session.Type),
			string(session.Status),
			session.Price,
			studentName(session),
			session.CurrentParticipants,
			optionalInt(session.MaxParticipants),
			optionalString(session.Location),
			optionalString(session.Notes),
		}
		if err := f.SetSheetRow(exportSheet, cell, &row); err != nil {
			return nil, fmt.Errorf("write session %d: %w", session.ID, err)
		}
	}

	buf, err := f.WriteToBuffer()
	if err != nil {
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func studentName(session models.SessionDetail) string {
	if session.Student == nil {
		return ""
	}
	return session.Student.Name
}

func optionalInt(value *int) any {
	if value == nil {
		return ""
	}
	return *value
}

func optionalString(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
