// Package universe loads the tracked watch universe from CSV.
package universe

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/therealtplum/watch-heat/internal/domain"
)

// LoadCSV reads a universe file. The header must name brand and reference
// columns; display_name is optional and maps to the nickname. Column order
// does not matter.
func LoadCSV(path string) ([]domain.WatchRef, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open universe file: %w", err)
	}
	defer f.Close()

	refs, err := ParseCSV(f)
	if err != nil {
		return nil, fmt.Errorf("parse universe file %s: %w", path, err)
	}
	return refs, nil
}

// ParseCSV reads universe entries from r.
func ParseCSV(r io.Reader) ([]domain.WatchRef, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("missing header row")
	}
	if err != nil {
		return nil, err
	}

	cols := make(map[string]int, len(header))
	for i, name := range header {
		cols[strings.TrimSpace(name)] = i
	}
	for _, required := range []string{"brand", "reference"} {
		if _, ok := cols[required]; !ok {
			return nil, fmt.Errorf("missing required column %q", required)
		}
	}
	nicknameCol, hasNickname := cols["display_name"]

	var refs []domain.WatchRef
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		line++

		ref := domain.WatchRef{
			Brand:     strings.TrimSpace(record[cols["brand"]]),
			Reference: strings.TrimSpace(record[cols["reference"]]),
		}
		if hasNickname && nicknameCol < len(record) {
			ref.Nickname = strings.TrimSpace(record[nicknameCol])
		}
		if ref.Brand == "" || ref.Reference == "" {
			return nil, fmt.Errorf("line %d: empty brand or reference", line)
		}
		refs = append(refs, ref)
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("universe file has no entries")
	}
	return refs, nil
}
