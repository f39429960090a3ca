package excel

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/xuri/excelize/v2"

	"github.com/onegreenvn/storybook-services-backend/internal/models"
	"github.com/onegreenvn/storybook-services-backend/internal/utils"
)

const storiesSheetName = "Stories"

// StoryLister lists stored stories with their illustration counts
type StoryLister interface {
	List(limit, offset int) ([]*models.Story, map[string]int, error)
}

// Service exports story history to Excel workbooks
type Service struct {
	stories    StoryLister
	exportsDir string
}

// NewExcelService creates a new Excel service instance
func NewExcelService(stories StoryLister, exportsDir string) *Service {
	// Create exports directory if it doesn't exist
	if _, err := os.Stat(exportsDir); os.IsNotExist(err) {
		os.MkdirAll(exportsDir, 0755)
	}

	return &Service{
		stories:    stories,
		exportsDir: exportsDir,
	}
}

// ExportResult contains the result of an export operation
type ExportResult struct {
	Filename     string
	FilePath     string
	StoriesCount int
}

var storyColumns = []string{
	"id", "title", "prompt", "status", "paragraphs", "illustrations", "created_at",
}

// ExportStories writes the newest stories to an xlsx file in the exports directory
func (s *Service) ExportStories(limit int) (*ExportResult, error) {
	stories, counts, err := s.stories.List(limit, 0)
	if err != nil {
		return nil, err
	}

	filename := fmt.Sprintf("stories_%d.xlsx", time.Now().UnixNano())
	filePath := filepath.Join(s.exportsDir, filename)

	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName(f.GetSheetName(0), storiesSheetName); err != nil {
		return nil, fmt.Errorf("failed to rename sheet: %w", err)
	}
	f.SetActiveSheet(0)

	for i, col := range storyColumns {
		f.SetCellValue(storiesSheetName, fmt.Sprintf("%s1", columnToLetter(i+1)), col)
	}

	headerStyle, err := f.NewStyle(&excelize.Style{
		Font: &excelize.Font{
			Bold: true,
		},
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"FFFF00"},
			Pattern: 1,
		},
		Border: []excelize.Border{
			{Type: "left", Color: "000000", Style: 1},
			{Type: "top", Color: "000000", Style: 1},
			{Type: "right", Color: "000000", Style: 1},
			{Type: "bottom", Color: "000000", Style: 1},
		},
	})
	if err == nil {
		f.SetCellStyle(storiesSheetName, "A1", columnToLetter(len(storyColumns))+strconv.Itoa(1), headerStyle)
	}

	failedStyle, _ := f.NewStyle(&excelize.Style{
		Fill: excelize.Fill{
			Type:    "pattern",
			Color:   []string{"D9D9D9"}, // Gray
			Pattern: 1,
		},
	})

	for i, col := range storyColumns {
		colLetter := columnToLetter(i + 1)
		width := 20.0

		switch col {
		case "id":
			width = 38.0
		case "title":
			width = 30.0
		case "prompt":
			width = 50.0
		case "status", "paragraphs", "illustrations":
			width = 14.0
		}

		f.SetColWidth(storiesSheetName, colLetter, colLetter, width)
	}

	for j, story := range stories {
		rowNum := j + 2

		f.SetCellValue(storiesSheetName, fmt.Sprintf("A%d", rowNum), story.ID)
		f.SetCellValue(storiesSheetName, fmt.Sprintf("B%d", rowNum), story.Title)
		f.SetCellValue(storiesSheetName, fmt.Sprintf("C%d", rowNum), story.Prompt)
		f.SetCellValue(storiesSheetName, fmt.Sprintf("D%d", rowNum), story.Status)
		f.SetCellValue(storiesSheetName, fmt.Sprintf("E%d", rowNum), len(utils.SplitParagraphs(story.Body)))
		f.SetCellValue(storiesSheetName, fmt.Sprintf("F%d", rowNum), counts[story.ID])
		f.SetCellValue(storiesSheetName, fmt.Sprintf("G%d", rowNum), story.CreatedAt.Format(time.RFC3339))

		if story.Status == models.StoryStatusFailed {
			f.SetCellStyle(storiesSheetName, fmt.Sprintf("A%d", rowNum), fmt.Sprintf("%s%d", columnToLetter(len(storyColumns)), rowNum), failedStyle)
		}
	}

	if err := f.SaveAs(filePath); err != nil {
		return nil, fmt.Errorf("failed to save Excel file: %w", err)
	}

	return &ExportResult{
		Filename:     filename,
		FilePath:     filePath,
		StoriesCount: len(stories),
	}, nil
}

// Remove deletes an exported workbook once it has been delivered
func (s *Service) Remove(result *ExportResult) {
	if err := os.Remove(result.FilePath); err != nil && !os.IsNotExist(err) {
		logrus.Warnf("Failed to remove export %s: %v", result.FilePath, err)
	}
}

// Helper function to convert column number to Excel column letter
func columnToLetter(col int) string {
	var result string
	for col > 0 {
		col--
		result = string(rune('A'+col%26)) + result
		col /= 26
	}
	return result
}
