package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"whatsapp-messenger/internal/broadcast"
	"whatsapp-messenger/internal/models"

	"gorm.io/datatypes"
)

var (
	nameHeaders  = []string{"name", "contact name", "full name", "full_name", "contact_name"}
	phoneHeaders = []string{"phone", "phone number", "phone_number", "number", "mobile", "mobile number", "whatsapp", "contact number"}
)

// ValidationError reports an upload that cannot be imported as given.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string {
	return e.Msg
}

// IsValidation reports whether err is caused by the uploaded content rather
// than by reading it.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}

// ParseContacts reads a CSV with a header row. Rows without a name or a phone
// are skipped; every other column becomes an extra field keyed by its header.
// The returned contacts carry their row position but no id or timestamp.
func ParseContacts(r io.Reader, defaultCountryCode string) ([]models.Contact, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, &ValidationError{Msg: "CSV file is empty"}
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	columns := make([]string, len(header))
	for i, col := range header {
		columns[i] = strings.TrimSpace(strings.TrimPrefix(col, "\ufeff"))
	}
	nameIdx := findColumn(columns, nameHeaders)
	phoneIdx := findColumn(columns, phoneHeaders)
	if nameIdx == -1 || phoneIdx == -1 {
		return nil, &ValidationError{Msg: "CSV must contain a name column and a phone column"}
	}

	var contacts []models.Contact
	for line := 2; ; line++ {
		row, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV row %d: %w", line, err)
		}

		name := cell(row, nameIdx)
		phone := NormalizePhone(cell(row, phoneIdx), defaultCountryCode)
		if name == "" || phone == "" {
			continue
		}

		fields := make(map[string]string)
		for j, col := range columns {
			if j == nameIdx || j == phoneIdx || col == "" || broadcast.IsReservedField(col) {
				continue
			}
			fields[col] = cell(row, j)
		}

		contacts = append(contacts, models.Contact{
			Name:             name,
			Phone:            phone,
			AdditionalFields: datatypes.NewJSONType(fields),
			Position:         len(contacts),
		})
	}
	return contacts, nil
}

// NormalizePhone strips everything but digits and returns a +<digits> dial
// string. Ten digit numbers are treated as local and get the default country
// code. An input without digits yields "".
func NormalizePhone(raw, defaultCountryCode string) string {
	var b strings.Builder
	for _, r := range raw {
		if r >= '0' && r <= '9' {
			b.WriteRune(r)
		}
	}
	digits := b.String()
	if digits == "" {
		return ""
	}
	if len(digits) == 10 && !strings.HasPrefix(strings.TrimSpace(raw), "+") {
		digits = strings.TrimPrefix(defaultCountryCode, "+") + digits
	}
	return "+" + digits
}

func findColumn(columns []string, candidates []string) int {
	for _, want := range candidates {
		for i, col := range columns {
			if strings.EqualFold(col, want) {
				return i
			}
		}
	}
	return -1
}

func cell(row []string, i int) string {
	if i >= len(row) {
		return ""
	}
	return strings.TrimSpace(row[i])
}
