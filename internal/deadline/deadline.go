// Package deadline разбирает срок задачи, введённый пользователем: дату, unix-время
// или фразу вроде "tomorrow 18:00" / "завтра в 10:00".
package deadline

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/olebedev/when"
	"github.com/olebedev/when/rules/common"
	"github.com/olebedev/when/rules/en"
	"github.com/olebedev/when/rules/ru"
)

var ErrUnrecognized = errors.New("не удалось распознать срок")

var layouts = []string{
	time.RFC3339,
	"2006-01-02 15:04",
	"2006-01-02",
	"02.01.2006 15:04",
	"02.01.2006",
}

type Parser struct {
	w *when.Parser
}

func NewParser() *Parser {
	w := when.New(nil)
	w.Add(en.All...)
	w.Add(ru.All...)
	w.Add(common.All...)
	return &Parser{w: w}
}

// Parse возвращает момент времени с точностью до секунды. Относительные фразы
// отсчитываются от base.
func (p *Parser) Parse(text string, base time.Time) (time.Time, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return time.Time{}, ErrUnrecognized
	}

	if sec, err := strconv.ParseInt(text, 10, 64); err == nil {
		return time.Unix(sec, 0), nil
	}
	for _, layout := range layouts {
		if t, err := time.ParseInLocation(layout, text, base.Location()); err == nil {
			return t.Truncate(time.Second), nil
		}
	}

	res, err := p.w.Parse(text, base)
	if err != nil {
		return time.Time{}, fmt.Errorf("%w: %q: %w", ErrUnrecognized, text, err)
	}
	if res == nil {
		return time.Time{}, fmt.Errorf("%w: %q", ErrUnrecognized, text)
	}
	return res.Time.Truncate(time.Second), nil
}
