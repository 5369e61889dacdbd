package codec

import (
	"bytes"
	"fmt"
	"strconv"
	"time"

	"todoList/internal/models/task"

	"github.com/tidwall/gjson"
	"github.com/tidwall/sjson"
)

const (
	keyID         = "id"
	keyText       = "text"
	keyCreatedAt  = "createdAt"
	keyDeadline   = "deadline"
	keyChangedAt  = "changedAt"
	keyImportance = "importance"
	keyIsDone     = "isDone"
)

// EncodeJSON пишет только непустые необязательные поля; важность normal не сериализуется.
func EncodeJSON(t task.Task) ([]byte, error) {
	out := []byte("{}")
	var err error

	set := func(key string, value any) {
		if err != nil {
			return
		}
		out, err = sjson.SetBytes(out, key, value)
	}

	set(keyID, t.ID)
	set(keyText, t.Text)
	set(keyCreatedAt, t.CreatedAt.Unix())
	if t.Deadline != nil {
		set(keyDeadline, t.Deadline.Unix())
	}
	if t.ChangedAt != nil {
		set(keyChangedAt, t.ChangedAt.Unix())
	}
	if t.Importance != "" && t.Importance != task.ImportanceNormal {
		set(keyImportance, string(t.Importance))
	}
	set(keyIsDone, t.IsDone)

	if err != nil {
		return nil, fmt.Errorf("кодирование задачи %s: %w", t.ID, err)
	}
	return out, nil
}

func EncodeJSONList(tasks []task.Task) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('[')
	for i, t := range tasks {
		raw, err := EncodeJSON(t)
		if err != nil {
			return nil, err
		}
		if i > 0 {
			buf.WriteByte(',')
		}
		buf.Write(raw)
	}
	buf.WriteByte(']')
	return buf.Bytes(), nil
}

func DecodeJSON(data []byte) (task.Task, error) {
	if !gjson.ValidBytes(data) {
		return task.Task{}, &DecodeError{Format: FormatJSON, Reason: "некорректный JSON"}
	}
	return decodeObject(gjson.ParseBytes(data))
}

// DecodeJSONList декодирует каждый элемент массива независимо: битые элементы не попадают в результат,
// а их ошибки возвращаются в skipped.
func DecodeJSONList(data []byte) (tasks []task.Task, skipped []error, err error) {
	if !gjson.ValidBytes(data) {
		return nil, nil, &DecodeError{Format: FormatJSON, Reason: "некорректный JSON", Err: ErrNotArray}
	}
	root := gjson.ParseBytes(data)
	if !root.IsArray() {
		return nil, nil, ErrNotArray
	}

	tasks = make([]task.Task, 0)
	root.ForEach(func(_, value gjson.Result) bool {
		t, decodeErr := decodeObject(value)
		if decodeErr != nil {
			skipped = append(skipped, decodeErr)
			return true
		}
		tasks = append(tasks, t)
		return true
	})
	return tasks, skipped, nil
}

func decodeObject(obj gjson.Result) (task.Task, error) {
	if !obj.IsObject() {
		return task.Task{}, &DecodeError{Format: FormatJSON, Reason: "элемент не является объектом"}
	}

	id, err := stringField(obj, keyID)
	if err != nil {
		return task.Task{}, err
	}
	text, err := stringField(obj, keyText)
	if err != nil {
		return task.Task{}, err
	}
	isDone, err := boolField(obj, keyIsDone)
	if err != nil {
		return task.Task{}, err
	}
	createdAt, err := intField(obj, keyCreatedAt)
	if err != nil {
		return task.Task{}, err
	}
	deadline, err := optionalTimeField(obj, keyDeadline)
	if err != nil {
		return task.Task{}, err
	}
	changedAt, err := optionalTimeField(obj, keyChangedAt)
	if err != nil {
		return task.Task{}, err
	}

	importance := task.ImportanceNormal
	if v := obj.Get(keyImportance); v.Exists() {
		if v.Type != gjson.String {
			return task.Task{}, fieldError(FormatJSON, keyImportance, "ожидалась строка")
		}
		importance, err = task.ParseImportance(v.Str)
		if err != nil {
			return task.Task{}, &DecodeError{Format: FormatJSON, Field: keyImportance, Reason: "неизвестный тег", Err: err}
		}
	}

	return task.Task{
		ID:         id,
		Text:       text,
		CreatedAt:  task.FromUnix(createdAt),
		Deadline:   deadline,
		ChangedAt:  changedAt,
		Importance: importance,
		IsDone:     isDone,
	}, nil
}

func stringField(obj gjson.Result, key string) (string, error) {
	v := obj.Get(key)
	if !v.Exists() {
		return "", fieldError(FormatJSON, key, "обязательное поле отсутствует")
	}
	if v.Type != gjson.String {
		return "", fieldError(FormatJSON, key, "ожидалась строка")
	}
	return v.Str, nil
}

func boolField(obj gjson.Result, key string) (bool, error) {
	v := obj.Get(key)
	if !v.Exists() {
		return false, fieldError(FormatJSON, key, "обязательное поле отсутствует")
	}
	switch v.Type {
	case gjson.True:
		return true, nil
	case gjson.False:
		return false, nil
	}
	return false, fieldError(FormatJSON, key, "ожидалось логическое значение")
}

func intField(obj gjson.Result, key string) (int64, error) {
	v := obj.Get(key)
	if !v.Exists() {
		return 0, fieldError(FormatJSON, key, "обязательное поле отсутствует")
	}
	return integer(v, key)
}

// null в необязательных полях трактуется как отсутствие значения
func optionalTimeField(obj gjson.Result, key string) (*time.Time, error) {
	v := obj.Get(key)
	if !v.Exists() || v.Type == gjson.Null {
		return nil, nil
	}
	sec, err := integer(v, key)
	if err != nil {
		return nil, err
	}
	return task.UnixPtr(sec), nil
}

func integer(v gjson.Result, key string) (int64, error) {
	if v.Type != gjson.Number {
		return 0, fieldError(FormatJSON, key, "ожидалось целое число")
	}
	n, err := strconv.ParseInt(v.Raw, 10, 64)
	if err != nil {
		return 0, &DecodeError{Format: FormatJSON, Field: key, Reason: "ожидалось целое число", Err: err}
	}
	return n, nil
}
