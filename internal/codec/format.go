package codec

import (
	"fmt"
	"strings"

	"todoList/internal/models/task"
)

type Format string

const FormatJSON Format = "json"
const FormatCSV Format = "csv"

func ParseFormat(raw string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimPrefix(raw, "."))) {
	case FormatJSON:
		return FormatJSON, nil
	case FormatCSV:
		return FormatCSV, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownFormat, raw)
}

func (f Format) Ext() string {
	return "." + string(f)
}

// Marshal сериализует весь список задач в выбранный формат файла.
func Marshal(format Format, tasks []task.Task) ([]byte, error) {
	switch format {
	case FormatJSON:
		return EncodeJSONList(tasks)
	case FormatCSV:
		return EncodeCSVFile(tasks)
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}

// Unmarshal читает весь файл. Для JSON битые элементы отбрасываются и возвращаются в skipped,
// для CSV любая битая строка проваливает всё чтение.
func Unmarshal(format Format, data []byte) (tasks []task.Task, skipped []error, err error) {
	switch format {
	case FormatJSON:
		return DecodeJSONList(data)
	case FormatCSV:
		tasks, err = DecodeCSVFile(data)
		return tasks, nil, err
	}
	return nil, nil, fmt.Errorf("%w: %q", ErrUnknownFormat, format)
}
