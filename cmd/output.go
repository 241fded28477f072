package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/fatih/color"
	"github.com/schollz/progressbar/v3"

	"github.com/Enchanted-Dev-stack/we-study/internal/models"
)

func getProgressBar(total int, description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(total,
		progressbar.OptionSetDescription(color.BlueString(description)),
		progressbar.OptionSetItsString("chunks"),
		progressbar.OptionShowCount(),
		progressbar.OptionShowIts(),
		progressbar.OptionSetTheme(progressbar.Theme{
			Saucer:        "█",
			SaucerHead:    "█",
			SaucerPadding: "░",
			BarStart:      "[",
			BarEnd:        "]",
		}),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetWidth(40),
		progressbar.OptionShowElapsedTimeOnFinish(),
		progressbar.OptionSetPredictTime(true),
		progressbar.OptionFullWidth(),
		progressbar.OptionSetRenderBlankState(true),
	)
}

func getSpinner(description string) *progressbar.ProgressBar {
	return progressbar.NewOptions(-1,
		progressbar.OptionSetDescription(color.CyanString(description)),
		progressbar.OptionSpinnerType(14),
		progressbar.OptionSetWidth(20),
		progressbar.OptionEnableColorCodes(true),
		progressbar.OptionSetRenderBlankState(true),
	)
}

// printDocument renders a study document for the terminal.
func printDocument(w io.Writer, doc *models.StudyDocument) {
	heading := color.New(color.FgCyan, color.Bold).SprintFunc()
	faint := color.New(color.Faint).SprintFunc()
	answer := color.New(color.FgGreen).SprintFunc()

	var meta []string
	if doc.DifficultyLevel != "" {
		meta = append(meta, string(doc.DifficultyLevel))
	}
	if doc.EstimatedStudyTime != "" {
		meta = append(meta, doc.EstimatedStudyTime)
	}
	if len(meta) > 0 {
		fmt.Fprintf(w, "%s\n", faint(strings.Join(meta, " · ")))
	}

	fmt.Fprintf(w, "\n%s\n", heading("Summary"))
	for _, s := range doc.Summary {
		fmt.Fprintf(w, "  • %s\n", s)
	}

	fmt.Fprintf(w, "\n%s\n", heading(fmt.Sprintf("Flashcards (%d)", len(doc.Flashcards))))
	for i, f := range doc.Flashcards {
		fmt.Fprintf(w, "  %d. %s\n     %s\n", i+1, f.Question, answer(f.Answer))
	}

	fmt.Fprintf(w, "\n%s\n", heading(fmt.Sprintf("Quiz (%d)", len(doc.Quiz))))
	for i, q := range doc.Quiz {
		fmt.Fprintf(w, "  %d. %s %s\n", i+1, q.Question, faint("["+string(q.Difficulty)+"]"))
		for j, opt := range q.Options {
			line := fmt.Sprintf("%c) %s", 'a'+j, opt)
			if opt == q.CorrectAnswer {
				line = answer(line)
			}
			fmt.Fprintf(w, "     %s\n", line)
		}
		if q.Explanation != "" {
			fmt.Fprintf(w, "     %s\n", faint(q.Explanation))
		}
	}

	if len(doc.Hashtags) > 0 {
		fmt.Fprintf(w, "\n%s\n", faint(strings.Join(doc.Hashtags, " ")))
	}
	fmt.Fprintln(w)
}

func printMaterials(w io.Writer, materials []models.Material) {
	if len(materials) == 0 {
		fmt.Fprintln(w, color.YellowString("No matching study materials"))
		return
	}
	for i, m := range materials {
		fmt.Fprintf(w, "%d. %s\n   %s  %s\n",
			i+1,
			color.CyanString(m.Title),
			m.SourceURL,
			color.New(color.Faint).Sprint(m.CreatedAt.Format("2006-01-02")),
		)
	}
}
