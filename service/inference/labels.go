package inference

import (
	"bufio"
	"fmt"
	"os"
	"strings"

	"github.com/khaledhikmat/ws-go/model"
)

// LoadCategories reads the classifier's label file: one label per line, in output
// index order. Blank lines and lines starting with # are ignored.
func LoadCategories(path string) (model.CategorySet, error) {
	file, err := os.Open(path)
	if err != nil {
		return model.CategorySet{}, fmt.Errorf("failed to open categories file: %w", err)
	}
	defer file.Close()

	labels := []string{}
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		labels = append(labels, line)
	}
	if err := scanner.Err(); err != nil {
		return model.CategorySet{}, err
	}

	return model.NewCategorySet(labels)
}
