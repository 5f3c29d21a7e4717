package textutil

import (
	"strings"

	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

var titleSeparators = strings.NewReplacer("_", " ", "-", " ", ".", " ")

// TitleFromFileName turns a file name stem such as "my_comic-vol.01" into a
// display title ("My Comic Vol 01"). Runs of separators collapse to one space.
func TitleFromFileName(stem string) string {
	words := strings.Fields(titleSeparators.Replace(stem))
	if len(words) == 0 {
		return ""
	}
	return cases.Title(language.Und).String(strings.Join(words, " "))
}
