package service

import (
	"bytes"
	"context"
	"encoding/csv"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/xuri/excelize/v2"

	visitorsrepo "github.com/steelworks-digital/vms-server/domains/visitors/be/repo"
	"github.com/steelworks-digital/vms-server/platform/go/auth"
	"github.com/steelworks-digital/vms-server/platform/go/persistence"
	"github.com/steelworks-digital/vms-server/platform/go/plantscope"
)

// ExportHeader is the column order of every visitor export.
var ExportHeader = []string{
	"Batch No",
	"Name",
	"Mobile",
	"Company",
	"Host",
	"Purpose",
	"Plant",
	"Assets",
	"Visit Date",
	"Visit Time",
	"Entry Time",
	"Exit Time",
	"Status",
	"Photo Link",
}

const (
	visitDateLayout = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"
	sheetName       = "Visitors"
)

// Options captures export filters. The plant restriction always comes from
// the acting admin.
type Options struct {
	Status   *string
	FromDate *time.Time
	ToDate   *time.Time
}

// Service renders visitor reports scoped to the acting admin.
type Service interface {
	ExportCSV(ctx context.Context, actor auth.AdminCredentials, opts Options, w io.Writer) error
	ExportXLSX(ctx context.Context, actor auth.AdminCredentials, opts Options) ([]byte, error)
}

type service struct {
	repo     visitorsrepo.Repository
	plants   *plantscope.Resolver
	location *time.Location
}

// New constructs a reports Service reading from the visitors repository.
func New(repo visitorsrepo.Repository, plants *plantscope.Resolver, location *time.Location) Service {
	if repo == nil {
		panic("visitors repository is required")
	}
	if plants == nil {
		plants = plantscope.Default()
	}
	if location == nil {
		location = time.UTC
	}
	return &service{repo: repo, plants: plants, location: location}
}

func (s *service) ExportCSV(ctx context.Context, actor auth.AdminCredentials, opts Options, w io.Writer) error {
	visitors, err := s.rows(ctx, actor, opts)
	if err != nil {
		return err
	}

	writer := csv.NewWriter(w)
	if err := writer.Write(ExportHeader); err != nil {
		return fmt.Errorf("write header: %w", err)
	}
	for _, visitor := range visitors {
		record := s.exportRow(visitor)
		for i, cell := range record {
			record[i] = neutralizeCell(cell)
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("write row: %w", err)
		}
	}
	writer.Flush()
	return writer.Error()
}

func (s *service) ExportXLSX(ctx context.Context, actor auth.AdminCredentials, opts Options) ([]byte, error) {
	visitors, err := s.rows(ctx, actor, opts)
	if err != nil {
		return nil, err
	}

	f := excelize.NewFile()
	index, err := f.NewSheet(sheetName)
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create sheet: %w", err)
	}
	f.DeleteSheet("Sheet1")
	f.SetActiveSheet(index)

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{Bold: true},
		Fill: excelize.Fill{Type: "pattern", Color: []string{"#E6F3FF"}, Pattern: 1},
	})
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("create header style: %w", err)
	}

	for col, header := range ExportHeader {
		cell, cellErr := excelize.CoordinatesToCellName(col+1, 1)
		if cellErr != nil {
			f.Close()
			return nil, fmt.Errorf("convert coordinates: %w", cellErr)
		}
		if err := f.SetCellValue(sheetName, cell, header); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header cell %s: %w", cell, err)
		}
		if err := f.SetCellStyle(sheetName, cell, cell, headerStyle); err != nil {
			f.Close()
			return nil, fmt.Errorf("set header style: %w", err)
		}
	}

	for rowIdx, visitor := range visitors {
		for colIdx, value := range s.exportRow(visitor) {
			cell, cellErr := excelize.CoordinatesToCellName(colIdx+1, rowIdx+2)
			if cellErr != nil {
				f.Close()
				return nil, fmt.Errorf("convert coordinates: %w", cellErr)
			}
			if err := f.SetCellValue(sheetName, cell, value); err != nil {
				f.Close()
				return nil, fmt.Errorf("set cell %s: %w", cell, err)
			}
		}
	}

	if err := f.SetPanes(sheetName, &excelize.Panes{
		Freeze:      true,
		YSplit:      1,
		TopLeftCell: "A2",
		ActivePane:  "bottomLeft",
	}); err != nil {
		f.Close()
		return nil, fmt.Errorf("freeze panes: %w", err)
	}

	var buf bytes.Buffer
	if _, err := f.WriteTo(&buf); err != nil {
		f.Close()
		return nil, fmt.Errorf("write workbook: %w", err)
	}
	if err := f.Close(); err != nil {
		return nil, fmt.Errorf("close workbook: %w", err)
	}
	return buf.Bytes(), nil
}

func (s *service) rows(ctx context.Context, actor auth.AdminCredentials, opts Options) ([]persistence.Visitor, error) {
	params := persistence.ListVisitorsParams{
		Status:   opts.Status,
		FromDate: opts.FromDate,
		ToDate:   opts.ToDate,
	}
	if !actor.IsSuperAdmin() {
		params.Plants = s.plants.Resolve(*actor.Plant)
	}
	return s.repo.List(ctx, params)
}

func (s *service) exportRow(visitor persistence.Visitor) []string {
	visitDate := ""
	if visitor.VisitDate != nil {
		visitDate = visitor.VisitDate.Format(visitDateLayout)
	}
	entryTime := ""
	if visitor.EntryTime != nil {
		entryTime = visitor.EntryTime.In(s.location).Format(timestampLayout)
	}
	exitTime := ""
	if visitor.ExitTime != nil {
		exitTime = visitor.ExitTime.In(s.location).Format(timestampLayout)
	}

	return []string{
		visitor.BatchNo,
		visitor.Name,
		visitor.Mobile,
		visitor.Company,
		visitor.Host,
		visitor.Purpose,
		visitor.Plant,
		visitor.Assets,
		visitDate,
		visitor.VisitTime,
		entryTime,
		exitTime,
		visitor.Status,
		visitor.PhotoPath,
	}
}

// neutralizeCell defuses spreadsheet formula injection in CSV output. Cells
// beginning with =, +, - or @ get a leading apostrophe.
func neutralizeCell(cell string) string {
	if cell == "" {
		return cell
	}
	if strings.ContainsRune("=+-@", rune(cell[0])) {
		return "'" + cell
	}
	return cell
}
