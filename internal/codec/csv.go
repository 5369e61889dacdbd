package codec

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	"todoList/internal/models/task"
)

const csvSeparator = ';'
const csvFields = 7

// минимум заполненных позиций: id, text, createdAt, isDone
const csvMinFilled = 4

// csv.Reader превращает \r\n внутри кавычек в \n, поэтому \r в тексте экранируется
var textEscaper = strings.NewReplacer(`\`, `\\`, "\r", `\r`)

var CSVHeader = []string{keyID, keyText, keyCreatedAt, keyDeadline, keyChangedAt, keyImportance, keyIsDone}

func EncodeCSV(t task.Task) (string, error) {
	var buf bytes.Buffer
	w := newCSVWriter(&buf)
	if err := w.Write(record(t)); err != nil {
		return "", fmt.Errorf("кодирование задачи %s: %w", t.ID, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return "", fmt.Errorf("кодирование задачи %s: %w", t.ID, err)
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

func EncodeCSVFile(tasks []task.Task) ([]byte, error) {
	var buf bytes.Buffer
	w := newCSVWriter(&buf)
	if err := w.Write(CSVHeader); err != nil {
		return nil, fmt.Errorf("запись заголовка: %w", err)
	}
	for _, t := range tasks {
		if err := w.Write(record(t)); err != nil {
			return nil, fmt.Errorf("кодирование задачи %s: %w", t.ID, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return nil, fmt.Errorf("запись csv: %w", err)
	}
	return buf.Bytes(), nil
}

func DecodeCSV(line string) (task.Task, error) {
	r := newCSVReader(strings.NewReader(line))
	fields, err := r.Read()
	if err != nil {
		if errors.Is(err, io.EOF) {
			return task.Task{}, &DecodeError{Format: FormatCSV, Reason: "пустая строка"}
		}
		return task.Task{}, &DecodeError{Format: FormatCSV, Reason: "некорректная строка", Err: err}
	}
	return decodeFields(fields)
}

// DecodeCSVFile ожидает заголовок в первой строке. Ошибка в любой строке данных проваливает всё чтение.
func DecodeCSVFile(data []byte) ([]task.Task, error) {
	r := newCSVReader(bytes.NewReader(data))
	tasks := make([]task.Task, 0)

	header, err := r.Read()
	if errors.Is(err, io.EOF) {
		return tasks, nil
	}
	if err != nil {
		return nil, &DecodeError{Format: FormatCSV, Reason: "некорректный заголовок", Err: err}
	}
	if !equalHeader(header) {
		return nil, &DecodeError{Format: FormatCSV, Reason: fmt.Sprintf("неожиданный заголовок %q", strings.Join(header, ";"))}
	}

	for row := 1; ; row++ {
		fields, err := r.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &DecodeError{Format: FormatCSV, Row: row, Reason: "некорректная строка", Err: err}
		}
		t, err := decodeFields(fields)
		if err != nil {
			var decodeErr *DecodeError
			if errors.As(err, &decodeErr) {
				decodeErr.Row = row
			}
			return nil, err
		}
		tasks = append(tasks, t)
	}
	return tasks, nil
}

func decodeFields(fields []string) (task.Task, error) {
	if len(fields) > csvFields {
		return task.Task{}, &DecodeError{Format: FormatCSV, Reason: fmt.Sprintf("слишком много полей: %d", len(fields))}
	}
	filled := 0
	for i, f := range fields {
		// пустой текст допустим для модели, поэтому позиция текста считается заполненной всегда
		if f != "" || i == 1 {
			filled++
		}
	}
	if filled < csvMinFilled {
		return task.Task{}, &DecodeError{Format: FormatCSV, Reason: fmt.Sprintf("заполнено полей: %d, нужно не меньше %d", filled, csvMinFilled)}
	}
	if len(fields) < csvFields {
		return task.Task{}, &DecodeError{Format: FormatCSV, Reason: fmt.Sprintf("неполная строка: %d полей из %d", len(fields), csvFields)}
	}

	createdAt, err := strconv.ParseInt(fields[2], 10, 64)
	if err != nil {
		return task.Task{}, &DecodeError{Format: FormatCSV, Field: keyCreatedAt, Reason: "ожидалось целое число", Err: err}
	}
	deadline, err := optionalUnix(fields[3], keyDeadline)
	if err != nil {
		return task.Task{}, err
	}
	changedAt, err := optionalUnix(fields[4], keyChangedAt)
	if err != nil {
		return task.Task{}, err
	}

	importance := task.ImportanceNormal
	if fields[5] != "" {
		importance, err = task.ParseImportance(fields[5])
		if err != nil {
			return task.Task{}, &DecodeError{Format: FormatCSV, Field: keyImportance, Reason: "неизвестный тег", Err: err}
		}
	}

	var isDone bool
	switch fields[6] {
	case "true":
		isDone = true
	case "false":
		isDone = false
	default:
		return task.Task{}, fieldError(FormatCSV, keyIsDone, fmt.Sprintf("ожидалось true или false, получено %q", fields[6]))
	}

	return task.Task{
		ID:         fields[0],
		Text:       unescapeText(fields[1]),
		CreatedAt:  task.FromUnix(createdAt),
		Deadline:   deadline,
		ChangedAt:  changedAt,
		Importance: importance,
		IsDone:     isDone,
	}, nil
}

func record(t task.Task) []string {
	rec := []string{t.ID, textEscaper.Replace(t.Text), strconv.FormatInt(t.CreatedAt.Unix(), 10), "", "", "", strconv.FormatBool(t.IsDone)}
	if t.Deadline != nil {
		rec[3] = strconv.FormatInt(t.Deadline.Unix(), 10)
	}
	if t.ChangedAt != nil {
		rec[4] = strconv.FormatInt(t.ChangedAt.Unix(), 10)
	}
	if t.Importance != "" && t.Importance != task.ImportanceNormal {
		rec[5] = string(t.Importance)
	}
	return rec
}

// неизвестные последовательности остаются как есть
func unescapeText(raw string) string {
	if !strings.Contains(raw, `\`) {
		return raw
	}
	var b strings.Builder
	b.Grow(len(raw))
	for i := 0; i < len(raw); i++ {
		if raw[i] != '\\' || i+1 == len(raw) {
			b.WriteByte(raw[i])
			continue
		}
		switch raw[i+1] {
		case '\\':
			b.WriteByte('\\')
			i++
		case 'r':
			b.WriteByte('\r')
			i++
		default:
			b.WriteByte(raw[i])
		}
	}
	return b.String()
}

func optionalUnix(raw, field string) (*time.Time, error) {
	if raw == "" {
		return nil, nil
	}
	sec, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return nil, &DecodeError{Format: FormatCSV, Field: field, Reason: "ожидалось целое число", Err: err}
	}
	return task.UnixPtr(sec), nil
}

func equalHeader(header []string) bool {
	if len(header) != len(CSVHeader) {
		return false
	}
	for i := range header {
		if strings.TrimSpace(header[i]) != CSVHeader[i] {
			return false
		}
	}
	return true
}

func newCSVWriter(w io.Writer) *csv.Writer {
	cw := csv.NewWriter(w)
	cw.Comma = csvSeparator
	return cw
}

func newCSVReader(r io.Reader) *csv.Reader {
	cr := csv.NewReader(r)
	cr.Comma = csvSeparator
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	return cr
}
